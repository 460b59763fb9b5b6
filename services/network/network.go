// Package network holds the board's network transports: Wi-Fi, a cellular
// modem, and Dual, which fronts both and switches between them at runtime.
package network

import (
	"context"
	"encoding/json"

	"voiceboard-go/bus"
	"voiceboard-go/types"
)

// TopicState carries the retained types.NetworkEvent of the active transport.
var TopicState = bus.T("network", "state")

// Transport is one network backend.
type Transport interface {
	Type() types.NetworkType
	// Start brings the transport up. It returns when connected, on failure,
	// or when ctx is done.
	Start(ctx context.Context) error
	Stop() error
	Connected() bool
	StateIcon() string
	Status() Status
}

// Status is the JSON-facing transport summary.
type Status struct {
	Type      string `json:"type"`
	Connected bool   `json:"connected"`
	Icon      string `json:"icon"`
	SSID      string `json:"ssid,omitempty"`
	RSSI      int    `json:"rssi,omitempty"`
	CSQ       int    `json:"csq,omitempty"`
	Carrier   string `json:"carrier,omitempty"`
	IP        string `json:"ip,omitempty"`
}

// JSON renders the status; it never fails for this struct.
func (s Status) JSON() string {
	b, _ := json.Marshal(s)
	return string(b)
}

const (
	IconWiFiConfig   = "wifi_config"
	IconWiFiOff      = "wifi_off"
	IconWiFiWeak     = "wifi_weak"
	IconWiFiFair     = "wifi_fair"
	IconWiFi         = "wifi"
	IconSignalOff    = "signal_off"
	IconSignalWeak   = "signal_weak"
	IconSignalFair   = "signal_fair"
	IconSignalGood   = "signal_good"
	IconSignalStrong = "signal_strong"
)

func wifiIcon(rssi int) string {
	switch {
	case rssi >= -55:
		return IconWiFi
	case rssi >= -65:
		return IconWiFiFair
	default:
		return IconWiFiWeak
	}
}

// cellularIcon maps a +CSQ value (0..31, 99 unknown).
func cellularIcon(csq int) string {
	switch {
	case csq <= 0 || csq == 99:
		return IconSignalOff
	case csq >= 24:
		return IconSignalStrong
	case csq >= 16:
		return IconSignalGood
	case csq >= 8:
		return IconSignalFair
	default:
		return IconSignalWeak
	}
}
