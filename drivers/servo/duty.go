package servo

import (
	"voiceboard-go/x/mathx"
	"voiceboard-go/x/timex"
)

// Mapping describes a servo's pulse range and the PWM signal driving it.
type Mapping struct {
	MinPulseUs     uint32  // pulse width at angle 0
	MaxPulseUs     uint32  // pulse width at MaxAngle
	MaxAngle       float32 // degrees
	FreqHz         uint32
	ResolutionBits uint8
}

// SG92R is the micro servo fitted to the reference boards.
var SG92R = Mapping{
	MinPulseUs:     500,
	MaxPulseUs:     2500,
	MaxAngle:       180,
	FreqHz:         50,
	ResolutionBits: 14,
}

// Steps is the largest duty value for the mapping's resolution.
func (m Mapping) Steps() uint32 {
	return (uint32(1) << m.ResolutionBits) - 1
}

// Clamp limits angle to [0, MaxAngle].
func (m Mapping) Clamp(angle float32) float32 {
	return mathx.Clamp(angle, 0, m.MaxAngle)
}

// Duty converts angle to a duty value. The pulse width is interpolated
// linearly between MinPulseUs and MaxPulseUs, then scaled by steps/period.
// The result is truncated toward zero. Angles outside [0, MaxAngle] are
// clamped so the result always stays inside the representable range.
func (m Mapping) Duty(angle float32) uint32 {
	if m.MaxAngle <= 0 {
		return 0
	}
	a := float64(m.Clamp(angle))
	span := float64(m.MaxPulseUs) - float64(m.MinPulseUs)
	pulse := float64(m.MinPulseUs) + span*a/float64(m.MaxAngle)
	duty := pulse / timex.PeriodUs(m.FreqHz) * float64(m.Steps())
	if duty < 0 {
		return 0
	}
	return min(uint32(duty), m.Steps())
}

// AngleToDuty maps angle with the SG92R mapping.
func AngleToDuty(angle float32) uint32 { return SG92R.Duty(angle) }
