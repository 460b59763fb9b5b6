//go:build rp2040 || rp2350

package network

import (
	"time"

	"voiceboard-go/errcode"
)

// MDNS is unavailable without a host network stack.
type MDNS struct{}

var _ Advertiser = (*MDNS)(nil)

func NewMDNS(time.Duration) *MDNS { return &MDNS{} }

func (*MDNS) Advertise(string, int, []string) error { return errcode.Unsupported }
func (*MDNS) Shutdown()                             {}
