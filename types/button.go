package types

// Gesture is a decoded button interaction.
type Gesture uint8

const (
	GesturePressDown Gesture = iota + 1
	GesturePressUp
	GestureClick
	GestureDoubleClick
	GestureMultiClick
	GestureLongPress
)

var gestureNames = [...]string{
	GesturePressDown:   "press_down",
	GesturePressUp:     "press_up",
	GestureClick:       "click",
	GestureDoubleClick: "double_click",
	GestureMultiClick:  "multi_click",
	GestureLongPress:   "long_press",
}

func (g Gesture) String() string {
	if int(g) < len(gestureNames) && gestureNames[g] != "" {
		return gestureNames[g]
	}
	return "none"
}

// ButtonEvent is published on board/button/<name>.
type ButtonEvent struct {
	Button  string  `json:"button"`
	Gesture Gesture `json:"gesture"`
	Count   int     `json:"count,omitempty"` // clicks, for GestureMultiClick
	TSms    int64   `json:"ts_ms"`
}

// Action is the single high-level action a button gesture may trigger.
type Action uint8

const (
	ActionNone Action = iota
	ActionToggleChat
	ActionStartListening
	ActionStopListening
	ActionResetWiFiConfig
	ActionEnterWiFiConfig
	ActionSwitchTransport
	ActionWakeWord
)

var actionNames = [...]string{
	ActionNone:            "none",
	ActionToggleChat:      "toggle_chat",
	ActionStartListening:  "start_listening",
	ActionStopListening:   "stop_listening",
	ActionResetWiFiConfig: "reset_wifi_config",
	ActionEnterWiFiConfig: "enter_wifi_config",
	ActionSwitchTransport: "switch_transport",
	ActionWakeWord:        "wake_word",
}

func (a Action) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return "none"
}
