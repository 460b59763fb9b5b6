package board

import (
	"context"

	"voiceboard-go/errcode"
	"voiceboard-go/services/config"
	"voiceboard-go/services/network"
)

const VariantS3ML307 = "kalicyh-s3-ml307"

// KalicyhS3ML307 is the ESP32-S3 board with an ML307 LTE modem alongside
// Wi-Fi, a battery monitor and a single status LED. It has no screen.
type KalicyhS3ML307 struct {
	*base
}

var _ Board = (*KalicyhS3ML307)(nil)

func NewKalicyhS3ML307(ctx context.Context, p *config.Profile, hw Hardware, d Deps) (*KalicyhS3ML307, error) {
	if hw.Station == nil {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "kalicyh_s3_ml307", Msg: "wifi station required"}
	}
	m := p.Network.Modem
	if hw.Modem == nil || m == nil {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "kalicyh_s3_ml307", Msg: "modem port required"}
	}
	b, err := newBase(p, hw, d, decideS3)
	if err != nil {
		return nil, err
	}
	b.wifi = b.newWiFi()
	b.cell = network.NewCellular(network.NewATClient(hw.Modem, m.ATTimeout),
		network.CellularConfig{RegisterTimeout: m.RegisterTimeout}, b.log)
	b.dual = network.NewDual(b.wifi, b.cell, b.store.Namespace("network"), b.conn, b.log)
	b.net = b.dual

	if err := b.probeBus(ctx, d.ProbeInterval); err != nil {
		return nil, err
	}
	if err := b.initButtons(d.Timing); err != nil {
		return nil, err
	}
	b.initPower()

	// The power coordinator stays off while the charger is connected.
	if bat := b.battery(); bat != nil {
		bat.OnChargingStatusChanged(func(charging bool) { b.power.SetEnabled(!charging) })
		if _, charging, _ := bat.Level(); charging {
			b.power.SetEnabled(false)
		}
	}
	if err := b.initTools(); err != nil {
		return nil, err
	}
	b.NotifyDeviceState(b.app.DeviceState())
	b.log.Info("board ready", "uuid", b.uuid, "network", b.dual.Active(), "tools", len(b.tools.List()))
	return &KalicyhS3ML307{base: b}, nil
}
