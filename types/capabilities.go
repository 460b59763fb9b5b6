package types

// ------------------------
// Capability categories
// ------------------------

type Kind string

const (
	KindDisplay    Kind = "display"
	KindBacklight  Kind = "backlight"
	KindAudioCodec Kind = "audio_codec"
	KindLED        Kind = "led"
	KindNetwork    Kind = "network"
	KindBattery    Kind = "battery"
	KindServo      Kind = "servo"
	KindButton     Kind = "button"
)

// Link is the link/state reported for a capability.
type Link string

const (
	LinkUp       Link = "up"
	LinkDown     Link = "down"
	LinkDegraded Link = "degraded"
)

type CapabilityStatus struct {
	Kind  Kind   `json:"kind"`
	Link  Link   `json:"link"`
	TSms  int64  `json:"ts_ms"`
	Error string `json:"error,omitempty"` // machine-readable short code
}
