package types

// NetworkType selects the active transport.
type NetworkType uint8

const (
	NetworkWiFi NetworkType = iota
	NetworkCellular
)

func (t NetworkType) String() string {
	if t == NetworkCellular {
		return "cellular"
	}
	return "wifi"
}

// Other returns the alternative transport.
func (t NetworkType) Other() NetworkType {
	if t == NetworkCellular {
		return NetworkWiFi
	}
	return NetworkCellular
}

// NetworkEvent is published (retained) on network/state.
type NetworkEvent struct {
	Type   NetworkType `json:"type"`
	Active bool        `json:"active"`
	Icon   string      `json:"icon"`
	TSms   int64       `json:"ts_ms"`
}

// ParseNetworkType maps a stored name back to a type, defaulting to Wi-Fi.
func ParseNetworkType(s string) NetworkType {
	if s == "cellular" {
		return NetworkCellular
	}
	return NetworkWiFi
}
