//go:build !rp2040 && !rp2350

package network

import (
	"fmt"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

const (
	MDNSService = "_xiaozhi._tcp"
	MDNSDomain  = "local."
)

// MDNS advertises the board with zeroconf.
type MDNS struct {
	ttl time.Duration

	mu     sync.Mutex
	server *zeroconf.Server
}

var _ Advertiser = (*MDNS)(nil)

func NewMDNS(ttl time.Duration) *MDNS { return &MDNS{ttl: ttl} }

func (m *MDNS) Advertise(instance string, port int, txt []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.server != nil {
		m.server.Shutdown()
		m.server = nil
	}
	var opts []zeroconf.ServerOption
	if m.ttl > 0 {
		opts = append(opts, zeroconf.TTL(uint32(m.ttl.Seconds())))
	}
	server, err := zeroconf.Register(instance, MDNSService, MDNSDomain, port, txt, nil, opts...)
	if err != nil {
		return fmt.Errorf("mdns register: %w", err)
	}
	m.server = server
	return nil
}

func (m *MDNS) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.server != nil {
		m.server.Shutdown()
		m.server = nil
	}
}
