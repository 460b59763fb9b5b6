// Package ramp walks a level towards a target in evenly spaced steps.
package ramp

import (
	"context"
	"time"

	"voiceboard-go/x/mathx"
)

// Linear describes one fade. Levels are clamped to [0, Top].
type Linear struct {
	From, To, Top uint16
	Duration      time.Duration
	Steps         uint16
}

// Plan derives a step count for a fade of d that runs through span levels
// of top, one step every interval at most, capped at maxSteps.
func Plan(from, to, top uint16, d, interval time.Duration, maxSteps uint16) Linear {
	l := Linear{From: from, To: to, Top: top}
	if top == 0 || d <= 0 || interval <= 0 {
		return l
	}
	span := mathx.Abs(int32(to) - int32(from))
	l.Duration = d * time.Duration(span) / time.Duration(top)
	l.Steps = uint16(mathx.Clamp(int64(l.Duration/interval), 1, int64(maxSteps)))
	return l
}

// Run calls set for each intermediate level and finally for To. It returns
// false, without setting To, when ctx ends first. A zero Steps or Duration
// snaps straight to To.
func (l Linear) Run(ctx context.Context, set func(level uint16)) bool {
	to := min(l.To, l.Top)
	if l.Steps == 0 || l.Duration <= 0 {
		set(to)
		return true
	}
	step := max(l.Duration/time.Duration(l.Steps), time.Millisecond)
	t := time.NewTicker(step)
	defer t.Stop()

	delta := int32(to) - int32(l.From)
	n := int32(l.Steps)
	last := int32(l.From)
	for i := int32(1); i < n; i++ {
		select {
		case <-ctx.Done():
			return false
		case <-t.C:
		}
		lvl := int32(l.From) + delta*i/n
		if lvl != last {
			last = lvl
			set(uint16(mathx.Clamp(lvl, 0, int32(l.Top))))
		}
	}
	set(to)
	return true
}
