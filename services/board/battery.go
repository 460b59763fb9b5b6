package board

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tinygo.org/x/drivers"

	"voiceboard-go/errcode"
	"voiceboard-go/internal/platform"
	"voiceboard-go/types"
	"voiceboard-go/x/mathx"
)

// Battery reports charge level and charger state.
type Battery interface {
	Level() (level int, charging, discharging bool)
	Value() types.BatteryValue
}

// Pin reads a digital input.
type Pin interface {
	Get() bool
}

// Single-cell Li-ion discharge curve, millivolts to percent.
var dischargeCurve = [...]struct{ mV, pct uint16 }{
	{3300, 0},
	{3500, 10},
	{3600, 20},
	{3700, 40},
	{3800, 60},
	{3900, 80},
	{4100, 100},
}

const adcRefMilliV = 3300

// levelFromMilliV interpolates the discharge curve.
func levelFromMilliV(mV uint16) int {
	first, last := dischargeCurve[0], dischargeCurve[len(dischargeCurve)-1]
	if mV <= first.mV {
		return int(first.pct)
	}
	if mV >= last.mV {
		return int(last.pct)
	}
	for i := 1; i < len(dischargeCurve); i++ {
		lo, hi := dischargeCurve[i-1], dischargeCurve[i]
		if mV <= hi.mV {
			return int(mathx.MapRange(mV, lo.mV, hi.mV, lo.pct, hi.pct))
		}
	}
	return int(last.pct)
}

// ADCBattery reads the cell through a resistor divider and a charger status
// pin.
type ADCBattery struct {
	adc         platform.ADC
	charge      Pin
	top, bottom uint32
	log         *slog.Logger

	mu       sync.Mutex
	value    types.BatteryValue
	seeded   bool
	onCharge []func(charging bool)
}

var (
	_ Battery        = (*ADCBattery)(nil)
	_ drivers.Sensor = (*ADCBattery)(nil)
)

// NewADCBattery takes the divider resistances in ohms; charge may be nil when
// the board has no charger status line.
func NewADCBattery(adc platform.ADC, charge Pin, topOhm, bottomOhm uint32, log *slog.Logger) (*ADCBattery, error) {
	if adc == nil {
		return nil, errcode.Absent
	}
	if bottomOhm == 0 {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "battery", Msg: "divider bottom resistance is zero"}
	}
	if log == nil {
		log = slog.Default()
	}
	b := &ADCBattery{adc: adc, charge: charge, top: topOhm, bottom: bottomOhm, log: log.With("component", "battery")}
	if err := b.Update(drivers.Voltage); err != nil {
		return nil, err
	}
	return b, nil
}

// OnChargingStatusChanged registers fn for charger transitions.
func (b *ADCBattery) OnChargingStatusChanged(fn func(charging bool)) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	b.onCharge = append(b.onCharge, fn)
	b.mu.Unlock()
}

// Update samples the ADC and charger pin.
func (b *ADCBattery) Update(which drivers.Measurement) error {
	if which&drivers.Voltage == 0 {
		return nil
	}
	raw := uint32(b.adc.Get())
	pin := raw * adcRefMilliV / 0xFFFF
	cell := pin * (b.top + b.bottom) / b.bottom
	mV := uint16(min(cell, 0xFFFF))
	charging := b.charge != nil && b.charge.Get()

	b.mu.Lock()
	changed := b.seeded && b.value.Charging != charging
	b.seeded = true
	b.value = types.BatteryValue{
		Level:       levelFromMilliV(mV),
		MilliV:      int32(mV),
		Charging:    charging,
		Discharging: !charging,
	}
	var fns []func(bool)
	if changed {
		fns = append(fns, b.onCharge...)
	}
	b.mu.Unlock()

	if changed {
		b.log.Info("charging status changed", "charging", charging)
	}
	for _, fn := range fns {
		fn(charging)
	}
	return nil
}

func (b *ADCBattery) Value() types.BatteryValue {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value
}

func (b *ADCBattery) Level() (int, bool, bool) {
	v := b.Value()
	return v.Level, v.Charging, v.Discharging
}

// Run polls every interval until ctx is done.
func (b *ADCBattery) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := b.Update(drivers.Voltage); err != nil {
				b.log.Warn("battery update failed", "err", err)
			}
		}
	}
}
