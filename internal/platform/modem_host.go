//go:build !rp2040 && !rp2350

package platform

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"tinygo.org/x/drivers"
)

// FakeModem emulates the AT command port of an ML307-class modem.
type FakeModem struct {
	mu      sync.Mutex
	rx      bytes.Buffer // modem -> host
	line    []byte       // host -> modem, partial line
	echo    bool
	silent  bool
	stat    int // +CEREG stat
	csq     int
	carrier string
	history []string
}

var _ drivers.UART = (*FakeModem)(nil)

// NewFakeModem starts registered on the home network with echo on.
func NewFakeModem() *FakeModem {
	return &FakeModem{echo: true, stat: 1, csq: 20, carrier: "CHINA MOBILE"}
}

func (m *FakeModem) SetRegistration(stat int) { m.mu.Lock(); m.stat = stat; m.mu.Unlock() }
func (m *FakeModem) SetCSQ(v int)             { m.mu.Lock(); m.csq = v; m.mu.Unlock() }

// SetSilent stops the modem answering, as when it is powered down.
func (m *FakeModem) SetSilent(on bool) { m.mu.Lock(); m.silent = on; m.mu.Unlock() }

// History returns the commands received so far.
func (m *FakeModem) History() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.history...)
}

func (m *FakeModem) Buffered() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rx.Len()
}

func (m *FakeModem) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rx.Len() == 0 {
		return 0, nil
	}
	return m.rx.Read(p)
}

func (m *FakeModem) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range p {
		if b == '\r' || b == '\n' {
			if len(m.line) > 0 {
				m.handle(string(m.line))
				m.line = m.line[:0]
			}
			continue
		}
		m.line = append(m.line, b)
	}
	return len(p), nil
}

// caller holds mu
func (m *FakeModem) handle(cmd string) {
	m.history = append(m.history, cmd)
	if m.silent {
		return
	}
	if m.echo {
		m.rx.WriteString(cmd + "\r\n")
	}
	reply := func(lines ...string) {
		for _, l := range lines {
			m.rx.WriteString("\r\n" + l + "\r\n")
		}
	}
	switch strings.ToUpper(cmd) {
	case "AT":
		reply("OK")
	case "ATE0":
		m.echo = false
		reply("OK")
	case "AT+CEREG?":
		reply(fmt.Sprintf("+CEREG: 0,%d", m.stat), "OK")
	case "AT+CSQ":
		reply(fmt.Sprintf("+CSQ: %d,99", m.csq), "OK")
	case "AT+COPS?":
		reply(fmt.Sprintf(`+COPS: 0,0,"%s",7`, m.carrier), "OK")
	default:
		reply("ERROR")
	}
}
