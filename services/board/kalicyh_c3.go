package board

import (
	"context"

	"voiceboard-go/errcode"
	"voiceboard-go/services/config"
	"voiceboard-go/types"
)

const VariantC3 = "kalicyh-c3"

// KalicyhC3 is the ESP32-C3 Wi-Fi board: SPI panel with PWM backlight, ES8311
// codec on a shared I²C bus, boot and ASR buttons, optional servo.
type KalicyhC3 struct {
	*base
}

var _ Board = (*KalicyhC3)(nil)

func NewKalicyhC3(ctx context.Context, p *config.Profile, hw Hardware, d Deps) (*KalicyhC3, error) {
	if hw.Station == nil {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "kalicyh_c3", Msg: "wifi station required"}
	}
	b, err := newBase(p, hw, d, decideC3)
	if err != nil {
		return nil, err
	}
	b.wifi = b.newWiFi()
	b.net = b.wifi

	if err := b.probeBus(ctx, d.ProbeInterval); err != nil {
		return nil, err
	}
	if b.Display() == nil && p.Display != nil {
		b.log.Warn("display unavailable, continuing headless", "err", b.caps.Err(types.KindDisplay))
	}
	if err := b.initButtons(d.Timing); err != nil {
		return nil, err
	}
	b.initPower()
	if err := b.initTools(); err != nil {
		return nil, err
	}

	if bl := b.Backlight(); bl != nil {
		var err error
		if level := p.Display.Brightness; level > 0 {
			err = bl.SetBrightness(level, false)
		} else {
			err = bl.RestoreBrightness()
		}
		if err != nil {
			b.log.Warn("backlight bring-up failed", "err", err)
		}
	}
	b.log.Info("board ready", "uuid", b.uuid, "tools", len(b.tools.List()))
	return &KalicyhC3{base: b}, nil
}
