package board

import (
	"encoding/json"

	"voiceboard-go/errcode"
	"voiceboard-go/services/network"
	"voiceboard-go/types"
	"voiceboard-go/x/timex"
)

type boardJSON struct {
	Type    string          `json:"type"`
	Name    string          `json:"name"`
	UUID    string          `json:"uuid"`
	Network *network.Status `json:"network,omitempty"`

	Capabilities []types.CapabilityStatus `json:"capabilities,omitempty"`
}

// BoardJSON describes the board to the backend during activation.
func (b *base) BoardJSON() string {
	out := boardJSON{Type: b.p.Variant, Name: b.p.Name, UUID: b.uuid, Capabilities: b.Capabilities()}
	if b.net != nil {
		s := b.net.Status()
		out.Network = &s
	}
	return mustJSON(out)
}

// Capabilities reports the link state of every capability built so far,
// plus the transport and buttons. A servo that could not claim its channel
// is degraded.
func (b *base) Capabilities() []types.CapabilityStatus {
	out := b.caps.Status()
	for i := range out {
		if out[i].Kind == types.KindServo {
			if s := b.Servo(); s != nil && !s.Initialized() {
				out[i].Link = types.LinkDegraded
				out[i].Error = string(errcode.NotInitialized)
			}
		}
	}
	now := timex.NowMs()
	if b.net != nil {
		link := types.LinkDown
		if b.net.Connected() {
			link = types.LinkUp
		}
		out = append(out, types.CapabilityStatus{Kind: types.KindNetwork, Link: link, TSms: now})
	}
	if b.buttons != nil && len(b.buttons.Names()) > 0 {
		out = append(out, types.CapabilityStatus{Kind: types.KindButton, Link: types.LinkUp, TSms: now})
	}
	return out
}

type speakerStatus struct {
	Volume int `json:"volume"`
}

type screenStatus struct {
	Brightness int `json:"brightness"`
}

type batteryStatus struct {
	Level    int  `json:"level"`
	Charging bool `json:"charging"`
}

type networkStatus struct {
	Type      string `json:"type"`
	Connected bool   `json:"connected"`
	Signal    string `json:"signal"`
	SSID      string `json:"ssid,omitempty"`
	Carrier   string `json:"carrier,omitempty"`
}

type servoStatus struct {
	Angle int `json:"angle"`
}

type deviceStatus struct {
	AudioSpeaker *speakerStatus `json:"audio_speaker,omitempty"`
	Screen       *screenStatus  `json:"screen,omitempty"`
	Battery      *batteryStatus `json:"battery,omitempty"`
	Network      *networkStatus `json:"network,omitempty"`
	Servo        *servoStatus   `json:"servo,omitempty"`
	Power        string         `json:"power,omitempty"`
}

// DeviceStatusJSON is the live status document of the status tool. Absent
// capabilities are left out.
func (b *base) DeviceStatusJSON() string {
	var st deviceStatus
	if c := b.AudioCodec(); c != nil {
		st.AudioSpeaker = &speakerStatus{Volume: c.OutputVolume()}
	}
	if bl := b.Backlight(); bl != nil {
		st.Screen = &screenStatus{Brightness: bl.Brightness()}
	}
	if level, charging, _, ok := b.BatteryLevel(); ok {
		st.Battery = &batteryStatus{Level: level, Charging: charging}
	}
	if b.net != nil {
		s := b.net.Status()
		st.Network = &networkStatus{
			Type:      s.Type,
			Connected: s.Connected,
			Signal:    signalStrength(s.Icon),
			SSID:      s.SSID,
			Carrier:   s.Carrier,
		}
	}
	if s := b.Servo(); s != nil && s.Initialized() {
		st.Servo = &servoStatus{Angle: int(s.Angle())}
	}
	if b.power != nil {
		st.Power = b.power.State().String()
	}
	return mustJSON(st)
}

func signalStrength(icon string) string {
	switch icon {
	case network.IconWiFi, network.IconSignalStrong:
		return "strong"
	case network.IconWiFiFair, network.IconSignalGood:
		return "medium"
	case network.IconWiFiWeak, network.IconSignalFair, network.IconSignalWeak:
		return "weak"
	default:
		return "none"
	}
}

// mustJSON marshals documents built from plain structs, which cannot fail.
func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
