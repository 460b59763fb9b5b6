package ledc

import (
	"fmt"

	"voiceboard-go/errcode"
)

// Assignment is the static timer/channel allocation of one PWM peripheral.
type Assignment struct {
	Owner          string    `yaml:"owner"` // e.g. "backlight", "led", "servo"
	Pin            int       `yaml:"pin"`
	Timer          TimerID   `yaml:"timer"`
	Channel        ChannelID `yaml:"channel"`
	FreqHz         uint32    `yaml:"freq_hz"`
	ResolutionBits uint8     `yaml:"resolution_bits"`
}

func (a Assignment) TimerConfig() TimerConfig {
	return TimerConfig{Timer: a.Timer, ResolutionBits: a.ResolutionBits, FreqHz: a.FreqHz}
}

// Plan is the board-wide PWM allocation table.
type Plan []Assignment

// Validate enforces the static allocation invariant across the whole board:
// channels and pins are exclusive, and a timer shared by two owners must
// agree on frequency and resolution.
func (p Plan) Validate() error {
	channels := map[ChannelID]string{}
	pins := map[int]string{}
	timers := map[TimerID]Assignment{}
	for _, a := range p {
		if err := ValidateTimer(a.TimerConfig()); err != nil {
			return &errcode.E{C: errcode.InvalidParams, Op: "ledc_plan", Msg: a.Owner, Err: err}
		}
		if prev, ok := channels[a.Channel]; ok {
			return &errcode.E{C: errcode.ResourceInUse, Op: "ledc_plan",
				Msg: fmt.Sprintf("channel %d shared by %s and %s", a.Channel, prev, a.Owner)}
		}
		channels[a.Channel] = a.Owner
		if prev, ok := pins[a.Pin]; ok {
			return &errcode.E{C: errcode.ResourceInUse, Op: "ledc_plan",
				Msg: fmt.Sprintf("pin %d shared by %s and %s", a.Pin, prev, a.Owner)}
		}
		pins[a.Pin] = a.Owner
		if prev, ok := timers[a.Timer]; ok &&
			(prev.FreqHz != a.FreqHz || prev.ResolutionBits != a.ResolutionBits) {
			return &errcode.E{C: errcode.Conflict, Op: "ledc_plan",
				Msg: fmt.Sprintf("timer %d configured differently by %s and %s", a.Timer, prev.Owner, a.Owner)}
		}
		timers[a.Timer] = a
	}
	return nil
}

// Lookup returns the assignment for owner.
func (p Plan) Lookup(owner string) (Assignment, bool) {
	for _, a := range p {
		if a.Owner == owner {
			return a, true
		}
	}
	return Assignment{}, false
}
