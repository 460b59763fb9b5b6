package board

import (
	"voiceboard-go/bus"
	"voiceboard-go/types"
)

// TopicAction carries the types.Action decided for a button gesture.
var TopicAction = bus.T("board", "action")

// Application is the part of the assistant state machine the board drives.
type Application interface {
	DeviceState() types.DeviceState
	ToggleChatState()
	StartListening()
	StopListening()
	WakeWordInvoke(word string)
}

// Snapshot is the state a button decision depends on.
type Snapshot struct {
	State         types.DeviceState
	Network       types.NetworkType
	Connected     bool
	PressToTalk   bool
	CanSwitchLink bool // board has a second transport
}

// Decider maps a gesture and the current snapshot to at most one action.
type Decider func(ev types.ButtonEvent, s Snapshot) types.Action

// decideC3 is the two-button Wi-Fi board: boot toggles the chat (or resets
// Wi-Fi while the device cannot get online), asr invokes the wake word.
func decideC3(ev types.ButtonEvent, s Snapshot) types.Action {
	switch ev.Button {
	case "boot":
		switch ev.Gesture {
		case types.GestureClick:
			if s.State == types.DeviceStateStarting && !s.Connected {
				return types.ActionResetWiFiConfig
			}
			if !s.PressToTalk {
				return types.ActionToggleChat
			}
		case types.GesturePressDown:
			if s.PressToTalk {
				return types.ActionStartListening
			}
		case types.GesturePressUp:
			if s.PressToTalk {
				return types.ActionStopListening
			}
		case types.GestureMultiClick:
			if ev.Count == 3 {
				return types.ActionResetWiFiConfig
			}
		}
	case "asr":
		if ev.Gesture == types.GestureClick {
			return types.ActionWakeWord
		}
	}
	return types.ActionNone
}

// decideS3 is the single-button dual-transport board.
func decideS3(ev types.ButtonEvent, s Snapshot) types.Action {
	if ev.Button != "boot" {
		return types.ActionNone
	}
	switch ev.Gesture {
	case types.GestureClick:
		if s.Network == types.NetworkWiFi && s.State == types.DeviceStateStarting {
			return types.ActionEnterWiFiConfig
		}
		return types.ActionToggleChat
	case types.GestureDoubleClick:
		if s.CanSwitchLink {
			return types.ActionSwitchTransport
		}
	}
	return types.ActionNone
}
