package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voiceboard-go/bus"
	"voiceboard-go/errcode"
	"voiceboard-go/internal/log"
)

func TestEmbeddedProfilesLoad(t *testing.T) {
	assert.Equal(t, []string{"kalicyh-c3", "kalicyh-s3-ml307"}, Boards())

	c3, err := Load("kalicyh-c3")
	require.NoError(t, err)
	assert.Equal(t, "kalicyh-c3", c3.Variant)
	assert.Equal(t, uint16(0x18), c3.I2C.ProbeAddr)
	require.NotNil(t, c3.Display)
	assert.Equal(t, int16(240), c3.Display.Width)
	assert.Equal(t, 300*time.Second, c3.Power.SleepAfter)
	assert.Zero(t, c3.Power.ShutdownAfter, "c3 never shuts down")
	servo, ok := c3.PWM.Lookup("servo")
	require.True(t, ok)
	assert.Equal(t, uint32(50), servo.FreqHz)

	s3, err := Load("kalicyh-s3-ml307")
	require.NoError(t, err)
	assert.True(t, s3.Network.Dual)
	require.NotNil(t, s3.Battery)
	assert.Nil(t, s3.Display)
	assert.Equal(t, 60*time.Second, s3.Power.SleepAfter)
	assert.Equal(t, 600*time.Second, s3.Power.ShutdownAfter)
	assert.Equal(t, DefaultWakeWord, s3.WakeWord)
}

func TestUnknownBoard(t *testing.T) {
	_, err := Load("nope")
	assert.Equal(t, errcode.InvalidParams, errcode.Of(err))
}

func TestValidateRejectsSharedChannel(t *testing.T) {
	_, err := Parse([]byte(`
name: bad
pwm:
  - {owner: backlight, pin: 8, timer: 0, channel: 0, freq_hz: 25000, resolution_bits: 10}
  - {owner: servo, pin: 7, timer: 3, channel: 0, freq_hz: 50, resolution_bits: 14}
`))
	assert.Equal(t, errcode.ResourceInUse, errcode.Of(err))
}

func TestValidateRejectsButtonOnPWMPin(t *testing.T) {
	_, err := Parse([]byte(`
name: bad
buttons: [{name: boot, pin: 8}]
pwm:
  - {owner: backlight, pin: 8, timer: 0, channel: 0, freq_hz: 25000, resolution_bits: 10}
`))
	assert.Equal(t, errcode.ResourceInUse, errcode.Of(err))
}

func TestValidateThresholds(t *testing.T) {
	_, err := Parse([]byte("name: bad\npower: {sleep_after: 60s, shutdown_after: 30s}\n"))
	assert.Equal(t, errcode.InvalidParams, errcode.Of(err))

	_, err = Parse([]byte("name: bad\nnetwork: {dual: true}\n"))
	assert.Equal(t, errcode.InvalidParams, errcode.Of(err))

	_, err = Parse([]byte("name: [unterminated"))
	assert.Error(t, err)
}

func TestLoadFileOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: custom\ncodec: {addr: 0x18}\n"), 0o644))
	p, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "custom", p.Variant)
	assert.Equal(t, 70, p.Codec.DefaultVolume)
}

func TestConfig_PublishRetainedPerSection(t *testing.T) {
	old := EmbeddedProfileLookup
	EmbeddedProfileLookup = func(board string) ([]byte, bool) {
		if board != "pico" {
			return nil, false
		}
		return []byte("name: pico\nbattery: {adc_pin: 26, charge_pin: 22}\n"), true
	}
	t.Cleanup(func() { EmbeddedProfileLookup = old })

	p, err := Load("pico")
	require.NoError(t, err)

	b := bus.NewBus(16)
	conn := b.NewConnection("test-config")
	NewConfigService(p, log.Discard()).Start(context.Background(), conn)

	sub := conn.Subscribe(bus.T(configPrefix, "#"))
	got := map[string]any{}
	deadline := time.After(600 * time.Millisecond)
	for len(got) < 7 {
		select {
		case m := <-sub.Channel():
			got[m.Topic[1].(string)] = m.Payload
		case <-deadline:
			t.Fatalf("only got %d sections: %v", len(got), got)
		}
	}
	assert.Equal(t, "pico", got["board"])
	assert.Equal(t, 26, got["battery"].(Battery).ADCPin)
	assert.NotContains(t, got, "display")
}
