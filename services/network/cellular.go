package network

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"voiceboard-go/errcode"
	"voiceboard-go/types"
)

type CellularConfig struct {
	// RegisterTimeout bounds the wait for network registration in Start.
	RegisterTimeout time.Duration
	// PollInterval is the delay between registration queries.
	PollInterval time.Duration
}

// Cellular is an ML307-class LTE modem driven over AT commands.
type Cellular struct {
	at  *ATClient
	cfg CellularConfig
	log *slog.Logger

	mu         sync.Mutex
	registered bool
	csq        int
	carrier    string
}

var _ Transport = (*Cellular)(nil)

func NewCellular(at *ATClient, cfg CellularConfig, log *slog.Logger) *Cellular {
	if cfg.RegisterTimeout <= 0 {
		cfg.RegisterTimeout = 30 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if log == nil {
		log = slog.Default()
	}
	return &Cellular{at: at, cfg: cfg, log: log.With("component", "cellular"), csq: 99}
}

func (c *Cellular) Type() types.NetworkType { return types.NetworkCellular }

// Start probes the modem and waits for registration on the home or a
// roaming network.
func (c *Cellular) Start(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RegisterTimeout)
	defer cancel()

	if _, err := c.at.Command(ctx, "AT"); err != nil {
		c.log.Warn("modem not responding", "err", err)
		return errcode.Wrap(errcode.ProbeFailed, "cellular_start", err)
	}
	if _, err := c.at.Command(ctx, "ATE0"); err != nil {
		c.log.Debug("echo off failed", "err", err)
	}

	for {
		reg, err := c.queryRegistration(ctx)
		if err == nil && reg {
			break
		}
		select {
		case <-ctx.Done():
			c.log.Warn("network registration timed out")
			return errcode.Wrap(errcode.Timeout, "cellular_start", ctx.Err())
		case <-time.After(c.cfg.PollInterval):
		}
	}
	c.Refresh(ctx)
	c.log.Info("cellular registered", "csq", c.CSQ(), "carrier", c.Carrier())
	return nil
}

// queryRegistration parses +CEREG: <n>,<stat>; stat 1 is home, 5 roaming.
func (c *Cellular) queryRegistration(ctx context.Context) (bool, error) {
	lines, err := c.at.Command(ctx, "AT+CEREG?")
	if err != nil {
		return false, err
	}
	v, ok := field(lines, "+CEREG")
	if !ok {
		return false, &errcode.E{C: errcode.HWError, Op: "AT+CEREG?", Msg: "no +CEREG line"}
	}
	parts := strings.Split(v, ",")
	if len(parts) < 2 {
		return false, &errcode.E{C: errcode.HWError, Op: "AT+CEREG?", Msg: v}
	}
	stat, _ := strconv.Atoi(strings.TrimSpace(parts[1]))
	reg := stat == 1 || stat == 5
	c.mu.Lock()
	c.registered = reg
	c.mu.Unlock()
	return reg, nil
}

// Refresh re-reads signal quality and operator. Errors leave the previous
// values in place.
func (c *Cellular) Refresh(ctx context.Context) {
	if lines, err := c.at.Command(ctx, "AT+CSQ"); err == nil {
		if v, ok := field(lines, "+CSQ"); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(strings.Split(v, ",")[0])); err == nil {
				c.mu.Lock()
				c.csq = n
				c.mu.Unlock()
			}
		}
	}
	if lines, err := c.at.Command(ctx, "AT+COPS?"); err == nil {
		if v, ok := field(lines, "+COPS"); ok {
			parts := strings.Split(v, ",")
			if len(parts) >= 3 {
				c.mu.Lock()
				c.carrier = strings.Trim(parts[2], `"`)
				c.mu.Unlock()
			}
		}
	}
}

func (c *Cellular) Stop() error {
	c.mu.Lock()
	c.registered = false
	c.csq = 99
	c.mu.Unlock()
	return nil
}

func (c *Cellular) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registered
}

func (c *Cellular) CSQ() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.csq
}

func (c *Cellular) Carrier() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.carrier
}

func (c *Cellular) StateIcon() string {
	if !c.Connected() {
		return IconSignalOff
	}
	return cellularIcon(c.CSQ())
}

func (c *Cellular) Status() Status {
	s := Status{Type: types.NetworkCellular.String(), Connected: c.Connected(), Icon: c.StateIcon()}
	if s.Connected {
		s.CSQ = c.CSQ()
		s.Carrier = c.Carrier()
	}
	return s
}
