package heartbeat

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voiceboard-go/bus"
	"voiceboard-go/internal/log"
)

type counter struct{ n atomic.Int32 }

func (c *counter) DeviceStatusJSON() string {
	c.n.Add(1)
	return `{"power":"active"}`
}

func TestBeatsAndReconfigures(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("hb")
	src := &counter{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, New(src, time.Hour, log.Discard()).Start(ctx, conn))

	sub := b.NewConnection("test").Subscribe(TopicStatus)
	select {
	case m := <-sub.Channel():
		assert.Equal(t, `{"power":"active"}`, m.Payload)
	case <-time.After(time.Second):
		t.Fatal("no initial status")
	}

	cfg := b.NewConnection("cfg")
	cfg.Publish(cfg.NewMessage(topicConfigHeartbeat, map[string]any{"interval": 0.01}, false))
	require.Eventually(t, func() bool { return src.n.Load() >= 4 }, 2*time.Second, 5*time.Millisecond)
}

func TestInterval(t *testing.T) {
	cases := []struct {
		in   any
		want time.Duration
		ok   bool
	}{
		{Config{Interval: time.Second}, time.Second, true},
		{2 * time.Second, 2 * time.Second, true},
		{map[string]any{"interval": 5.0}, 5 * time.Second, true},
		{map[string]any{"interval": 3}, 3 * time.Second, true},
		{map[string]any{"interval": 0}, 0, false},
		{"soon", 0, false},
	}
	for _, tc := range cases {
		got, ok := interval(tc.in)
		assert.Equal(t, tc.ok, ok, "%v", tc.in)
		if tc.ok {
			assert.Equal(t, tc.want, got)
		}
	}
}
