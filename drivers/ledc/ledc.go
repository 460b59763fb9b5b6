// Package ledc is the facade over the board's PWM timer/channel peripheral.
//
// A timer fixes frequency and duty resolution; a channel binds one pin to one
// timer and carries a duty value. SetDuty stages a value and UpdateDuty latches
// it onto the output, so callers that need an atomic update must hold their own
// per-channel lock across both calls.
package ledc

import (
	"errors"
)

type TimerID uint8

type ChannelID uint8

type TimerConfig struct {
	Timer          TimerID
	ResolutionBits uint8  // duty resolution; duty range is 0..(1<<bits)-1
	FreqHz         uint32 // output frequency
}

// MaxDuty is the largest representable duty for the timer's resolution.
func (c TimerConfig) MaxDuty() uint32 {
	if c.ResolutionBits == 0 || c.ResolutionBits > 20 {
		return 0
	}
	return (uint32(1) << c.ResolutionBits) - 1
}

type ChannelConfig struct {
	Pin     int
	Channel ChannelID
	Timer   TimerID
	Duty    uint32 // initial duty, latched immediately
	Invert  bool   // output inversion
}

// Controller is the hardware SDK surface used by PWM peripherals.
type Controller interface {
	ConfigureTimer(cfg TimerConfig) error
	ConfigureChannel(cfg ChannelConfig) error
	SetDuty(ch ChannelID, duty uint32) error
	UpdateDuty(ch ChannelID) error
	// Stop halts the channel output and holds the pin at idle.
	Stop(ch ChannelID, idle bool) error
}

var (
	errBadResolution = errors.New("ledc: unsupported duty resolution")
	errBadFrequency  = errors.New("ledc: frequency must be > 0")
)

// ValidateTimer checks a timer config independent of any hardware.
func ValidateTimer(cfg TimerConfig) error {
	if cfg.MaxDuty() == 0 {
		return errBadResolution
	}
	if cfg.FreqHz == 0 {
		return errBadFrequency
	}
	return nil
}
