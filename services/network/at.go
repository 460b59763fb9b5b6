package network

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	"tinygo.org/x/drivers"

	"voiceboard-go/errcode"
)

// SerialPort is the modem link. uartx.UART satisfies it directly; a plain
// drivers.UART can be adapted with UARTPort.
type SerialPort interface {
	Write(p []byte) (int, error)
	// RecvSomeContext blocks until at least one byte is read or ctx is done.
	RecvSomeContext(ctx context.Context, buf []byte) (int, error)
}

type uartPort struct {
	u    drivers.UART
	poll time.Duration
}

// UARTPort adapts a polled drivers.UART.
func UARTPort(u drivers.UART) SerialPort { return &uartPort{u: u, poll: 2 * time.Millisecond} }

func (p *uartPort) Write(b []byte) (int, error) { return p.u.Write(b) }

func (p *uartPort) RecvSomeContext(ctx context.Context, buf []byte) (int, error) {
	for {
		if p.u.Buffered() > 0 {
			return p.u.Read(buf)
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(p.poll):
		}
	}
}

// ATClient runs AT commands over a modem port. Every command is bounded by
// the client timeout and the caller's context.
type ATClient struct {
	port    SerialPort
	timeout time.Duration

	mu  sync.Mutex
	buf []byte
}

func NewATClient(port SerialPort, timeout time.Duration) *ATClient {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &ATClient{port: port, timeout: timeout}
}

// Command sends cmd and collects response lines up to the final OK. Echoed
// commands and blank lines are dropped. ERROR and +CME ERROR finals map to
// errcode.HWError.
func (c *ATClient) Command(ctx context.Context, cmd string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.buf = c.buf[:0]
	if _, err := c.port.Write([]byte(cmd + "\r\n")); err != nil {
		return nil, errcode.Wrap(errcode.HWError, cmd, err)
	}

	var lines []string
	for {
		line, err := c.readLine(ctx)
		if err != nil {
			return lines, errcode.Wrap(errcode.Timeout, cmd, err)
		}
		switch {
		case line == "" || line == cmd:
		case line == "OK":
			return lines, nil
		case line == "ERROR" || strings.HasPrefix(line, "+CME ERROR"):
			return lines, &errcode.E{C: errcode.HWError, Op: cmd, Msg: line}
		default:
			lines = append(lines, line)
		}
	}
}

// caller holds mu
func (c *ATClient) readLine(ctx context.Context) (string, error) {
	tmp := make([]byte, 64)
	for {
		if i := bytes.IndexAny(c.buf, "\r\n"); i >= 0 {
			line := string(c.buf[:i])
			c.buf = c.buf[i+1:]
			return strings.TrimSpace(line), nil
		}
		n, err := c.port.RecvSomeContext(ctx, tmp)
		if err != nil {
			return "", err
		}
		c.buf = append(c.buf, tmp[:n]...)
	}
}

// field returns the value part of "+TAG: a,b,c" for tag.
func field(lines []string, tag string) (string, bool) {
	for _, l := range lines {
		if v, ok := strings.CutPrefix(l, tag+":"); ok {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}
