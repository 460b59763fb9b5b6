package types

// PowerState is the power coordinator state.
type PowerState uint8

const (
	PowerActive PowerState = iota
	PowerSleeping
	PowerShuttingDown
)

func (s PowerState) String() string {
	switch s {
	case PowerSleeping:
		return "sleeping"
	case PowerShuttingDown:
		return "shutting_down"
	default:
		return "active"
	}
}

// PowerEvent is published (retained) on power/state after every transition.
type PowerEvent struct {
	From PowerState `json:"from"`
	To   PowerState `json:"to"`
	TSms int64      `json:"ts_ms"`
}

// ------------------------
// Battery
// ------------------------

type BatteryValue struct {
	Level       int   `json:"level"` // 0..100
	MilliV      int32 `json:"mV"`
	Charging    bool  `json:"charging"`
	Discharging bool  `json:"discharging"`
}
