package network

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voiceboard-go/bus"
	"voiceboard-go/errcode"
	"voiceboard-go/internal/log"
	"voiceboard-go/internal/platform"
	"voiceboard-go/services/settings"
	"voiceboard-go/types"
)

func newCellular(m *platform.FakeModem) *Cellular {
	at := NewATClient(UARTPort(m), 200*time.Millisecond)
	return NewCellular(at, CellularConfig{RegisterTimeout: 300 * time.Millisecond, PollInterval: 10 * time.Millisecond}, log.Discard())
}

func TestATClientCommand(t *testing.T) {
	m := platform.NewFakeModem()
	at := NewATClient(UARTPort(m), 200*time.Millisecond)
	ctx := context.Background()

	lines, err := at.Command(ctx, "AT+CSQ")
	require.NoError(t, err)
	assert.Equal(t, []string{"+CSQ: 20,99"}, lines, "echo and blank lines dropped")

	_, err = at.Command(ctx, "AT+BOGUS")
	assert.Equal(t, errcode.HWError, errcode.Of(err))

	m.SetSilent(true)
	start := time.Now()
	_, err = at.Command(ctx, "AT")
	assert.Equal(t, errcode.Timeout, errcode.Of(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestCellularStartAndStatus(t *testing.T) {
	m := platform.NewFakeModem()
	m.SetCSQ(26)
	c := newCellular(m)

	assert.Equal(t, IconSignalOff, c.StateIcon())
	require.NoError(t, c.Start(context.Background()))
	assert.True(t, c.Connected())
	assert.Equal(t, IconSignalStrong, c.StateIcon())

	st := c.Status()
	assert.Equal(t, "cellular", st.Type)
	assert.Equal(t, 26, st.CSQ)
	assert.Equal(t, "CHINA MOBILE", st.Carrier)
	assert.Contains(t, st.JSON(), `"csq":26`)

	require.NoError(t, c.Stop())
	assert.False(t, c.Connected())
}

func TestCellularRegistrationTimeout(t *testing.T) {
	m := platform.NewFakeModem()
	m.SetRegistration(2) // searching
	c := newCellular(m)
	err := c.Start(context.Background())
	assert.Equal(t, errcode.Timeout, errcode.Of(err))
	assert.False(t, c.Connected())
}

func TestCellularNoModem(t *testing.T) {
	m := platform.NewFakeModem()
	m.SetSilent(true)
	err := newCellular(m).Start(context.Background())
	assert.Equal(t, errcode.ProbeFailed, errcode.Of(err))
}

func TestIconThresholds(t *testing.T) {
	assert.Equal(t, IconWiFi, wifiIcon(-40))
	assert.Equal(t, IconWiFiFair, wifiIcon(-60))
	assert.Equal(t, IconWiFiWeak, wifiIcon(-80))
	assert.Equal(t, IconSignalOff, cellularIcon(99))
	assert.Equal(t, IconSignalWeak, cellularIcon(5))
	assert.Equal(t, IconSignalFair, cellularIcon(10))
	assert.Equal(t, IconSignalGood, cellularIcon(18))
}

type fakeAdvertiser struct {
	instance string
	ads      int
	shutdown int
}

func (f *fakeAdvertiser) Advertise(instance string, _ int, _ []string) error {
	f.instance = instance
	f.ads++
	return nil
}
func (f *fakeAdvertiser) Shutdown() { f.shutdown++ }

func TestWiFiStartAdvertisesAndStops(t *testing.T) {
	st := platform.NewFakeStation("home", -50)
	adv := &fakeAdvertiser{}
	w := NewWiFi(st, WiFiConfig{Hostname: "xiaozhi", Port: 80}, adv, nil, log.Discard())

	require.NoError(t, w.Start(context.Background()))
	assert.True(t, w.Connected())
	assert.Equal(t, IconWiFi, w.StateIcon())
	assert.Equal(t, "xiaozhi", adv.instance)
	assert.Equal(t, "home", w.Status().SSID)

	require.NoError(t, w.Stop())
	assert.False(t, w.Connected())
	assert.Equal(t, IconWiFiOff, w.StateIcon())
	assert.Equal(t, 1, adv.shutdown)
}

func TestWiFiConnectFailure(t *testing.T) {
	st := platform.NewFakeStation("home", -50)
	st.FailWith(errors.New("auth"))
	w := NewWiFi(st, WiFiConfig{}, nil, nil, log.Discard())
	err := w.Start(context.Background())
	assert.Equal(t, errcode.NotConnected, errcode.Of(err))
}

func TestWiFiResetConfigPersists(t *testing.T) {
	store := settings.NewMemory().Namespace("wifi")
	st := platform.NewFakeStation("home", -50)
	w := NewWiFi(st, WiFiConfig{}, nil, store, log.Discard())
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, w.ResetConfig())
	assert.True(t, w.ConfigMode())
	assert.Equal(t, IconWiFiConfig, w.StateIcon())

	// A fresh start (as after reboot) comes up in config mode once.
	w2 := NewWiFi(st, WiFiConfig{}, nil, store, log.Discard())
	require.NoError(t, w2.Start(context.Background()))
	assert.True(t, w2.ConfigMode())
	assert.False(t, store.Bool("force_ap", false))
}

type dualRig struct {
	dual  *Dual
	st    *platform.FakeStation
	modem *platform.FakeModem
	store *settings.Settings
}

func newDual(t *testing.T, conn *bus.Connection) dualRig {
	t.Helper()
	st := platform.NewFakeStation("home", -50)
	m := platform.NewFakeModem()
	store := settings.NewMemory().Namespace("network")
	w := NewWiFi(st, WiFiConfig{}, nil, nil, log.Discard())
	d := NewDual(w, newCellular(m), store, conn, log.Discard())
	return dualRig{dual: d, st: st, modem: m, store: store}
}

func TestDualSwitchInWhitelistedState(t *testing.T) {
	r := newDual(t, nil)
	ctx := context.Background()
	require.NoError(t, r.dual.Start(ctx))
	assert.Equal(t, types.NetworkWiFi, r.dual.Type())
	assert.Same(t, r.dual.WiFi(), r.dual.Network())

	ok, err := r.dual.Switch(ctx, types.DeviceStateIdle)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Same(t, r.dual.Cellular(), r.dual.Network())
	assert.False(t, r.st.Connected(), "old transport torn down")
	assert.Equal(t, 1, r.st.Disconnects, "old transport torn down exactly once")
	assert.Equal(t, 1, r.st.Connects, "old transport not restarted")
	assert.True(t, r.dual.Connected())
	assert.Equal(t, "cellular", r.store.String("type", ""))
	assert.Contains(t, r.dual.StatusJSON(), `"type":"cellular"`)
}

func TestDualReadersDoNotWaitOnBringUp(t *testing.T) {
	r := newDual(t, nil)
	r.dual.Cellular().cfg.RegisterTimeout = 5 * time.Second
	r.modem.SetRegistration(0)
	require.NoError(t, r.dual.Start(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.dual.Switch(ctx, types.DeviceStateIdle)
		done <- err
	}()
	require.Eventually(t, func() bool {
		return slices.Contains(r.modem.History(), "AT+CEREG?")
	}, time.Second, 5*time.Millisecond)

	start := time.Now()
	assert.Equal(t, types.NetworkCellular, r.dual.Type())
	assert.False(t, r.dual.Connected())
	assert.Equal(t, IconSignalOff, r.dual.StateIcon())
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	ok, err := r.dual.Switch(context.Background(), types.DeviceStateIdle)
	assert.False(t, ok)
	assert.ErrorIs(t, err, errcode.Busy)
	assert.ErrorIs(t, r.dual.Start(context.Background()), errcode.Busy)

	cancel()
	require.Eventually(t, func() bool { return len(done) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, errcode.Timeout, errcode.Of(<-done))
	assert.Equal(t, 1, r.st.Disconnects)
}

func TestDualSwitchRejectedOutsideWhitelist(t *testing.T) {
	r := newDual(t, nil)
	ctx := context.Background()
	require.NoError(t, r.dual.Start(ctx))

	for _, s := range []types.DeviceState{types.DeviceStateListening, types.DeviceStateSpeaking, types.DeviceStateConnecting, types.DeviceStateUpgrading} {
		ok, err := r.dual.Switch(ctx, s)
		assert.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Same(t, r.dual.WiFi(), r.dual.Network())
	assert.True(t, r.st.Connected())
	assert.Empty(t, r.modem.History(), "cellular never touched")
}

func TestDualRestoresPersistedSelection(t *testing.T) {
	r := newDual(t, nil)
	require.NoError(t, r.store.SetString("type", "cellular"))
	d := NewDual(r.dual.WiFi(), r.dual.Cellular(), r.store, nil, log.Discard())
	assert.Equal(t, types.NetworkCellular, d.Active())
}

func TestDualPublishesRetainedState(t *testing.T) {
	b := bus.NewBus(4)
	r := newDual(t, b.NewConnection("net"))
	require.NoError(t, r.dual.Start(context.Background()))

	sub := b.NewConnection("obs").Subscribe(TopicState)
	select {
	case m := <-sub.Channel():
		ev := m.Payload.(types.NetworkEvent)
		assert.Equal(t, types.NetworkWiFi, ev.Type)
		assert.True(t, ev.Active)
	case <-time.After(time.Second):
		t.Fatal("no network state")
	}
}

func TestSwitchable(t *testing.T) {
	assert.True(t, Switchable(types.DeviceStateStarting))
	assert.True(t, Switchable(types.DeviceStateWifiConfiguring))
	assert.True(t, Switchable(types.DeviceStateIdle))
	assert.False(t, Switchable(types.DeviceStateListening))
}
