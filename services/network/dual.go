package network

import (
	"context"
	"log/slog"
	"sync"

	"voiceboard-go/bus"
	"voiceboard-go/errcode"
	"voiceboard-go/services/settings"
	"voiceboard-go/types"
	"voiceboard-go/x/timex"
)

// Switchable reports whether the transport may be swapped while the
// application is in state s. Anything past start-up, configuration or idle
// could be carrying a live session.
func Switchable(s types.DeviceState) bool {
	switch s {
	case types.DeviceStateStarting, types.DeviceStateWifiConfiguring, types.DeviceStateIdle:
		return true
	}
	return false
}

// Dual fronts a Wi-Fi and a cellular transport. Exactly one is active; every
// network-shaped call goes through the active one. mu only guards the
// selection and is never held across a transport Start or Stop, so readers
// stay prompt while a transport is coming up.
type Dual struct {
	wifi *WiFi
	cell *Cellular
	log  *slog.Logger
	conn *bus.Connection
	sett *settings.Settings // "network" namespace

	mu     sync.Mutex
	active types.NetworkType
	busy   bool // a Start or Switch is bringing a transport up
}

var _ Transport = (*Dual)(nil)

// NewDual restores the persisted selection from store ("type" key), which
// may be nil.
func NewDual(wifi *WiFi, cell *Cellular, store *settings.Settings, conn *bus.Connection, log *slog.Logger) *Dual {
	if log == nil {
		log = slog.Default()
	}
	d := &Dual{wifi: wifi, cell: cell, sett: store, conn: conn, log: log.With("component", "dual_network")}
	if store != nil {
		d.active = types.ParseNetworkType(store.String("type", types.NetworkWiFi.String()))
	}
	return d
}

func (d *Dual) Active() types.NetworkType {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

func (d *Dual) transport(t types.NetworkType) Transport {
	if t == types.NetworkCellular {
		return d.cell
	}
	return d.wifi
}

// Network returns the active transport.
func (d *Dual) Network() Transport { return d.transport(d.Active()) }

// WiFi returns the Wi-Fi transport regardless of selection.
func (d *Dual) WiFi() *WiFi { return d.wifi }

// Cellular returns the cellular transport regardless of selection.
func (d *Dual) Cellular() *Cellular { return d.cell }

func (d *Dual) Type() types.NetworkType { return d.Active() }

// acquire marks a bring-up in progress and returns the active type. It fails
// with Busy while another bring-up runs.
func (d *Dual) acquire(op string) (types.NetworkType, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.busy {
		return d.active, &errcode.E{C: errcode.Busy, Op: op, Msg: "transport bring-up in progress"}
	}
	d.busy = true
	return d.active, nil
}

func (d *Dual) release() {
	d.mu.Lock()
	d.busy = false
	d.mu.Unlock()
}

func (d *Dual) Start(ctx context.Context) error {
	t, err := d.acquire("dual_start")
	if err != nil {
		return err
	}
	err = d.transport(t).Start(ctx)
	d.release()
	d.publish()
	return err
}

func (d *Dual) Stop() error { return d.Network().Stop() }

func (d *Dual) Connected() bool   { return d.Network().Connected() }
func (d *Dual) StateIcon() string { return d.Network().StateIcon() }
func (d *Dual) Status() Status    { return d.Network().Status() }

// StatusJSON is the active transport's status document.
func (d *Dual) StatusJSON() string { return d.Status().JSON() }

// Switch moves to the other transport when state allows it: the old one is
// stopped first, then the new one started. Outside the allowed states it
// does nothing and reports false. A switch while another bring-up runs
// fails with Busy.
func (d *Dual) Switch(ctx context.Context, state types.DeviceState) (bool, error) {
	if !Switchable(state) {
		d.log.Warn("transport switch ignored", "state", state.String())
		return false, nil
	}
	from, err := d.acquire("dual_switch")
	if err != nil {
		return false, err
	}
	defer d.publish()
	defer d.release()

	to := from.Other()
	if err := d.transport(from).Stop(); err != nil {
		d.log.Warn("stopping transport failed", "type", from.String(), "err", err)
	}
	d.mu.Lock()
	d.active = to
	d.mu.Unlock()
	if d.sett != nil {
		if err := d.sett.SetString("type", to.String()); err != nil {
			d.log.Warn("persisting transport failed", "err", err)
		}
	}
	d.log.Info("transport switched", "from", from.String(), "to", to.String())
	return true, d.transport(to).Start(ctx)
}

func (d *Dual) publish() {
	if d.conn == nil {
		return
	}
	t := d.Active()
	cur := d.transport(t)
	ev := types.NetworkEvent{Type: t, Active: cur.Connected(), Icon: cur.StateIcon(), TSms: timex.NowMs()}
	d.conn.Publish(d.conn.NewMessage(TopicState, ev, true))
}
