package heartbeat

import (
	"context"
	"log/slog"
	"time"

	"voiceboard-go/bus"
)

var (
	topicConfigHeartbeat = bus.T("config", "heartbeat")
	// TopicStatus carries the latest status document, retained.
	TopicStatus = bus.T("board", "status")
)

const DefaultInterval = 10 * time.Second

// StatusSource renders the document published on every beat.
type StatusSource interface {
	DeviceStatusJSON() string
}

// Config is the payload accepted on config/heartbeat.
type Config struct {
	Interval time.Duration
}

type Service struct {
	src      StatusSource
	interval time.Duration
	log      *slog.Logger
}

func New(src StatusSource, interval time.Duration, log *slog.Logger) *Service {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{src: src, interval: interval, log: log.With("component", "heartbeat")}
}

// interval extracts a period from a config payload: a Config, a
// time.Duration, or a map with "interval" in seconds.
func interval(p any) (time.Duration, bool) {
	switch v := p.(type) {
	case Config:
		return v.Interval, v.Interval > 0
	case time.Duration:
		return v, v > 0
	case map[string]any:
		switch s := v["interval"].(type) {
		case float64:
			return time.Duration(s * float64(time.Second)), s > 0
		case int:
			return time.Duration(s) * time.Second, s > 0
		}
	}
	return 0, false
}

func (s *Service) beat(conn *bus.Connection) {
	doc := s.src.DeviceStatusJSON()
	conn.Publish(conn.NewMessage(TopicStatus, doc, true))
	s.log.Debug("heartbeat", "status", doc)
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)

	tick := time.NewTicker(s.interval)
	defer tick.Stop()
	s.beat(conn)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("heartbeat stopping")
			return
		case <-tick.C:
			s.beat(conn)
		case msg := <-cfgSub.Channel():
			iv, ok := interval(msg.Payload)
			if !ok {
				s.log.Warn("ignoring heartbeat config", "payload", msg.Payload)
				continue
			}
			tick.Reset(iv)
			s.log.Info("heartbeat interval set", "interval", iv)
		}
	}
}

// Start runs the heartbeat until ctx is cancelled.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
