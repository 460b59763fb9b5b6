package board

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/drivers"

	"voiceboard-go/drivers/ledc"
	"voiceboard-go/errcode"
	"voiceboard-go/internal/log"
	"voiceboard-go/internal/platform"
	"voiceboard-go/services/settings"
	"voiceboard-go/types"
)

var backlightPWM = ledc.Assignment{Owner: "backlight", Pin: 8, Timer: 0, Channel: 0, FreqHz: 25000, ResolutionBits: 10}

func TestBacklightLevels(t *testing.T) {
	hw := ledc.NewHost()
	store := settings.NewMemory().Namespace("display")
	bl, err := NewPWMBacklight(hw, backlightPWM, false, 0, store, log.Discard())
	require.NoError(t, err)

	require.NoError(t, bl.SetBrightness(100, false))
	duty, running := hw.Latched(0)
	assert.True(t, running)
	assert.Equal(t, uint32(1023), duty)

	require.NoError(t, bl.SetBrightness(150, true))
	assert.Equal(t, 100, bl.Brightness())
	assert.Equal(t, 100, store.Int("brightness", 0))

	require.NoError(t, bl.SetBrightness(50, false))
	duty, _ = hw.Latched(0)
	assert.Equal(t, uint32(511), duty)
	assert.Equal(t, 100, store.Int("brightness", 0), "non-persisted change leaves saved level")
}

func TestBacklightRestore(t *testing.T) {
	cases := []struct {
		name  string
		saved int
		set   bool
		want  int
	}{
		{"default when unset", 0, false, DefaultBrightness},
		{"saved level", 40, true, 40},
		{"zero restores minimum", 0, true, minRestoreBrightness},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := settings.NewMemory().Namespace("display")
			if tc.set {
				require.NoError(t, store.SetInt("brightness", tc.saved))
			}
			bl, err := NewPWMBacklight(ledc.NewHost(), backlightPWM, false, 0, store, log.Discard())
			require.NoError(t, err)
			require.NoError(t, bl.RestoreBrightness())
			assert.Equal(t, tc.want, bl.Brightness())
		})
	}
}

func TestBacklightFadeReachesTarget(t *testing.T) {
	hw := ledc.NewHost()
	bl, err := NewPWMBacklight(hw, backlightPWM, false, 40*time.Millisecond, nil, log.Discard())
	require.NoError(t, err)

	require.NoError(t, bl.SetBrightness(100, false))
	bl.Wait()
	duty, _ := hw.Latched(0)
	assert.Equal(t, uint32(1023), duty)
	assert.Greater(t, hw.Updates(0), 1, "fade should latch intermediate levels")

	// a new level cancels a running fade
	require.NoError(t, bl.SetBrightness(0, false))
	require.NoError(t, bl.SetBrightness(30, false))
	bl.Wait()
	duty, _ = hw.Latched(0)
	assert.Equal(t, uint32(306), duty)
}

func TestBacklightClose(t *testing.T) {
	hw := ledc.NewHost()
	bl, err := NewPWMBacklight(hw, backlightPWM, true, 0, nil, log.Discard())
	require.NoError(t, err)
	require.NoError(t, bl.SetBrightness(60, false))
	require.NoError(t, bl.Close())
	require.NoError(t, bl.Close())
	_, running := hw.Latched(0)
	assert.False(t, running)
	assert.ErrorIs(t, bl.SetBrightness(10, false), errcode.NotInitialized)
}

func TestBacklightChannelOwnedElsewhere(t *testing.T) {
	hw := ledc.NewHost()
	require.NoError(t, hw.ConfigureTimer(backlightPWM.TimerConfig()))
	require.NoError(t, hw.ConfigureChannel(ledc.ChannelConfig{Pin: 13, Channel: 0, Timer: 0}))
	_, err := NewPWMBacklight(hw, backlightPWM, false, 0, nil, log.Discard())
	assert.Equal(t, errcode.ResourceInUse, errcode.Of(err))
}

func TestES8311Volume(t *testing.T) {
	bus := platform.NewI2C()
	chip := bus.Attach(0x18)
	store := settings.NewMemory().Namespace("audio")
	c, err := NewES8311(bus, CodecConfig{Addr: 0x18, InputSampleRate: 16000, OutputSampleRate: 24000, DefaultVolume: 70}, store, log.Discard())
	require.NoError(t, err)

	assert.Equal(t, 70, c.OutputVolume())
	assert.Equal(t, byte(70*es8311Vol0dB/100), chip.Reg(es8311RegDACVol))
	assert.Equal(t, 16000, c.InputSampleRate())
	assert.Equal(t, 24000, c.OutputSampleRate())

	require.NoError(t, c.SetOutputVolume(120))
	assert.Equal(t, 100, c.OutputVolume())
	assert.Equal(t, byte(es8311Vol0dB), chip.Reg(es8311RegDACVol))
	assert.Equal(t, 100, store.Int("output_volume", 0))

	require.NoError(t, c.EnableOutput(true))
	assert.True(t, c.OutputEnabled())
	assert.Equal(t, byte(0x00), chip.Reg(es8311RegDACPower))
	require.NoError(t, c.EnableInput(true))
	assert.Equal(t, byte(es8311Vol0dB), chip.Reg(es8311RegADCVol))

	// saved volume survives a rebuild
	c2, err := NewES8311(bus, CodecConfig{Addr: 0x18}, store, log.Discard())
	require.NoError(t, err)
	assert.Equal(t, 100, c2.OutputVolume())
}

func TestES8311Absent(t *testing.T) {
	_, err := NewES8311(platform.NewI2C(), CodecConfig{Addr: 0x18}, nil, log.Discard())
	assert.Equal(t, errcode.HWError, errcode.Of(err))
}

func TestLevelFromMilliV(t *testing.T) {
	cases := map[uint16]int{
		3000: 0,
		3300: 0,
		3600: 20,
		3650: 30,
		3900: 80,
		4000: 90,
		4200: 100,
	}
	for mV, want := range cases {
		assert.Equal(t, want, levelFromMilliV(mV), "mV=%d", mV)
	}
}

// rawFor returns the ADC reading for a cell voltage behind a 1:1 divider.
func rawFor(cellMilliV uint32) uint16 {
	return uint16(cellMilliV / 2 * 0xFFFF / adcRefMilliV)
}

func TestADCBatteryAndChargeCallback(t *testing.T) {
	adc := &platform.FakeADC{}
	adc.Set(rawFor(4000))
	pins := &platform.Pins{}
	charge := pins.Pin(46)

	bat, err := NewADCBattery(adc, charge, 100000, 100000, log.Discard())
	require.NoError(t, err)
	var _ drivers.Sensor = bat

	level, charging, discharging := bat.Level()
	assert.InDelta(t, 90, level, 2)
	assert.False(t, charging)
	assert.True(t, discharging)

	var seen []bool
	bat.OnChargingStatusChanged(func(c bool) { seen = append(seen, c) })
	charge.Set(true)
	require.NoError(t, bat.Update(drivers.Voltage))
	require.NoError(t, bat.Update(drivers.Voltage))
	charge.Set(false)
	adc.Set(rawFor(3600))
	require.NoError(t, bat.Update(drivers.Voltage))

	assert.Equal(t, []bool{true, false}, seen)
	assert.InDelta(t, 20, bat.Value().Level, 2)

	// other measurements are not this sensor's business
	adc.Set(rawFor(4200))
	require.NoError(t, bat.Update(drivers.Temperature))
	assert.InDelta(t, 20, bat.Value().Level, 2)
}

func TestADCBatteryConfig(t *testing.T) {
	_, err := NewADCBattery(nil, nil, 1, 1, log.Discard())
	assert.ErrorIs(t, err, errcode.Absent)
	_, err = NewADCBattery(&platform.FakeADC{}, nil, 1, 0, log.Discard())
	assert.Equal(t, errcode.InvalidParams, errcode.Of(err))
}

func TestPWMLedFollowsState(t *testing.T) {
	hw := ledc.NewHost()
	a := ledc.Assignment{Owner: "led", Pin: 48, Timer: 1, Channel: 1, FreqHz: 4000, ResolutionBits: 13}
	led, err := NewPWMLed(hw, a, log.Discard())
	require.NoError(t, err)

	led.OnStateChanged(types.DeviceStateListening)
	duty, _ := hw.Latched(1)
	assert.Equal(t, uint32(8191), duty)

	led.OnStateChanged(types.DeviceStateIdle)
	duty, _ = hw.Latched(1)
	assert.Equal(t, uint32(0), duty)
	assert.Equal(t, 0, led.Brightness())

	hw.FailNext(ledc.OpUpdateDuty, errors.New("bus fault"))
	led.OnStateChanged(types.DeviceStateSpeaking)
	assert.Equal(t, 0, led.Brightness(), "failed write keeps the last level")
}

func TestLCDDisplayPowerSave(t *testing.T) {
	panel := platform.NewFakePanel(8, 8)
	d, err := NewLCDDisplay(panel, log.Discard())
	require.NoError(t, err)
	assert.Equal(t, 1, panel.Flushes)

	d.SetChatMessage("user", "hello")
	d.SetPowerSaveMode(true)
	assert.True(t, panel.Asleep())
	assert.Equal(t, "sleepy", d.Emotion())
	role, content := d.ChatMessage()
	assert.Equal(t, "system", role)
	assert.Empty(t, content)

	panel.SleepErr = errors.New("spi timeout")
	d.SetPowerSaveMode(false) // logged, not fatal
	assert.Equal(t, "neutral", d.Emotion())
	assert.False(t, d.PowerSave())

	_, err = NewLCDDisplay(nil, log.Discard())
	assert.ErrorIs(t, err, errcode.Absent)
}
