package types

// DeviceState mirrors the application state machine. It is owned by the
// application; the board only reads it.
type DeviceState uint8

const (
	DeviceStateUnknown DeviceState = iota
	DeviceStateStarting
	DeviceStateWifiConfiguring
	DeviceStateIdle
	DeviceStateConnecting
	DeviceStateListening
	DeviceStateSpeaking
	DeviceStateUpgrading
	DeviceStateActivating
	DeviceStateAudioTesting
	DeviceStateFatalError
)

var deviceStateNames = [...]string{
	DeviceStateUnknown:         "unknown",
	DeviceStateStarting:        "starting",
	DeviceStateWifiConfiguring: "wifi_configuring",
	DeviceStateIdle:            "idle",
	DeviceStateConnecting:      "connecting",
	DeviceStateListening:       "listening",
	DeviceStateSpeaking:        "speaking",
	DeviceStateUpgrading:       "upgrading",
	DeviceStateActivating:      "activating",
	DeviceStateAudioTesting:    "audio_testing",
	DeviceStateFatalError:      "fatal_error",
}

func (s DeviceState) String() string {
	if int(s) < len(deviceStateNames) {
		return deviceStateNames[s]
	}
	return "unknown"
}

// ParseDeviceState is the inverse of String; ok is false for unknown names.
func ParseDeviceState(s string) (DeviceState, bool) {
	for i, n := range deviceStateNames {
		if n == s {
			return DeviceState(i), true
		}
	}
	return DeviceStateUnknown, false
}
