package board

import (
	"context"
	"encoding/json"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/drivers"

	"voiceboard-go/bus"
	"voiceboard-go/drivers/ledc"
	"voiceboard-go/errcode"
	"voiceboard-go/internal/log"
	"voiceboard-go/internal/platform"
	"voiceboard-go/services/config"
	"voiceboard-go/services/network"
	"voiceboard-go/services/settings"
	"voiceboard-go/services/tools"
	"voiceboard-go/types"
)

type rig struct {
	p       *config.Profile
	bus     *bus.Bus
	store   *settings.Store
	app     *LocalApp
	pwm     *ledc.Host
	i2c     *platform.I2C
	pins    *platform.Pins
	panel   *platform.FakePanel
	adc     *platform.FakeADC
	station *platform.FakeStation
	modem   *platform.FakeModem
}

func newRig(t *testing.T, board string) *rig {
	t.Helper()
	p, err := config.Load(board)
	require.NoError(t, err)
	r := &rig{
		p:       p,
		bus:     bus.NewBus(32),
		store:   settings.NewMemory(),
		app:     NewLocalApp(types.DeviceStateIdle, log.Discard()),
		pwm:     platform.NewPWM(),
		i2c:     platform.NewI2C(),
		pins:    &platform.Pins{},
		panel:   platform.NewFakePanel(24, 24),
		adc:     &platform.FakeADC{},
		station: platform.NewFakeStation("home", -50),
		modem:   platform.NewFakeModem(),
	}
	r.i2c.Attach(0x18)
	for _, b := range p.Buttons {
		r.pins.Pin(b.Pin).Set(b.ActiveLow) // released
	}
	r.adc.Set(rawFor(3900))
	return r
}

func (r *rig) hardware() Hardware {
	hw := Hardware{
		PWM:     r.pwm,
		I2C:     r.i2c,
		Pins:    r.pins,
		ADC:     r.adc,
		Station: r.station,
		Modem:   network.UARTPort(r.modem),
	}
	if r.p.Display != nil {
		hw.Panel = r.panel
	}
	return hw
}

func (r *rig) deps() Deps {
	return Deps{
		Bus:           r.bus,
		Settings:      r.store,
		App:           r.app,
		Log:           log.Discard(),
		Timing:        fastTiming,
		ProbeInterval: 5 * time.Millisecond,
	}
}

func (r *rig) build(t *testing.T) Board {
	t.Helper()
	b, err := New(context.Background(), r.p, r.hardware(), r.deps())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func call(t *testing.T, b Board, name string, args map[string]any) tools.Result {
	t.Helper()
	res, err := b.Tools().Call(context.Background(), name, args)
	require.NoError(t, err)
	return res
}

// ----------------------------- kalicyh-c3 ------------------------------------

func TestC3Capabilities(t *testing.T) {
	r := newRig(t, VariantC3)
	b := r.build(t)

	require.NotNil(t, b.Display())
	assert.Same(t, b.Display(), b.Display(), "capabilities are singletons")
	require.NotNil(t, b.Backlight())
	assert.Equal(t, 100, b.Backlight().Brightness())
	duty, _ := r.pwm.Latched(0)
	assert.Equal(t, uint32(1023), duty)

	require.NotNil(t, b.AudioCodec())
	assert.Equal(t, 70, b.AudioCodec().OutputVolume())
	assert.Nil(t, b.LED())
	_, _, _, ok := b.BatteryLevel()
	assert.False(t, ok)

	s := b.Servo()
	require.NotNil(t, s)
	assert.True(t, s.Initialized())
	duty, _ = r.pwm.Latched(5)
	assert.Equal(t, uint32(1228), duty, "servo parked at 90 degrees")

	var names []string
	for _, d := range b.Tools().List() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{
		ToolPressToTalk, ToolDeviceStatus, ToolSetVolume, ToolSetBrightness,
		tools.ServoSetAngle, tools.ServoGetAngle,
	}, names)
}

func TestC3ProbeFailureBlocksUntilCancelled(t *testing.T) {
	r := newRig(t, VariantC3)
	r.i2c.Detach(0x18)
	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()

	start := time.Now()
	b, err := New(ctx, r.p, r.hardware(), r.deps())
	assert.Nil(t, b)
	assert.Equal(t, errcode.ProbeFailed, errcode.Of(err))
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
}

func TestC3ProbeRecovers(t *testing.T) {
	r := newRig(t, VariantC3)
	r.i2c.SetStuck(true)
	go func() {
		time.Sleep(20 * time.Millisecond)
		r.i2c.SetStuck(false)
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b, err := New(ctx, r.p, r.hardware(), r.deps())
	require.NoError(t, err)
	_ = b.Close()
}

func TestC3HeadlessWhenPanelFails(t *testing.T) {
	r := newRig(t, VariantC3)
	r.panel.SleepErr = errcode.HWError
	b := r.build(t)
	assert.Nil(t, b.Display())
	assert.NotNil(t, b.Backlight())
}

func capLinks(b Board) map[types.Kind]types.Link {
	out := map[types.Kind]types.Link{}
	for _, c := range b.Capabilities() {
		out[c.Kind] = c.Link
	}
	return out
}

func TestC3CapabilityReport(t *testing.T) {
	r := newRig(t, VariantC3)
	b := r.build(t)
	assert.Nil(t, b.LED())

	links := capLinks(b)
	assert.Equal(t, types.LinkUp, links[types.KindDisplay])
	assert.Equal(t, types.LinkUp, links[types.KindBacklight])
	assert.Equal(t, types.LinkUp, links[types.KindServo])
	assert.Equal(t, types.LinkDown, links[types.KindNetwork], "network not started")
	assert.Equal(t, types.LinkUp, links[types.KindButton])
	assert.NotContains(t, links, types.KindLED)

	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(b.BoardJSON()), &info))
	assert.NotEmpty(t, info["capabilities"])
}

func TestC3ServoSharedChannelStaysUninitialized(t *testing.T) {
	r := newRig(t, VariantC3)
	servoPWM, _ := r.p.PWM.Lookup("servo")
	require.NoError(t, r.pwm.ConfigureTimer(servoPWM.TimerConfig()))
	require.NoError(t, r.pwm.ConfigureChannel(ledc.ChannelConfig{Pin: 13, Channel: servoPWM.Channel, Timer: servoPWM.Timer}))

	b := r.build(t)
	require.NotNil(t, b.Servo())
	assert.False(t, b.Servo().Initialized())
	_, err := b.Tools().Call(context.Background(), tools.ServoSetAngle, map[string]any{"angle": 45})
	assert.Equal(t, errcode.NotInitialized, errcode.Of(err))
	assert.Equal(t, types.LinkDegraded, capLinks(b)[types.KindServo])
}

func TestC3ServoToolsClamp(t *testing.T) {
	r := newRig(t, VariantC3)
	b := r.build(t)

	res := call(t, b, tools.ServoSetAngle, map[string]any{"angle": 45})
	assert.Equal(t, "Servo angle set to 45 degrees", res.Value.String())
	assert.Equal(t, 45, call(t, b, tools.ServoGetAngle, nil).Value.AsInt())

	call(t, b, tools.ServoSetAngle, map[string]any{"angle": 999})
	assert.Equal(t, 180, call(t, b, tools.ServoGetAngle, nil).Value.AsInt())
	duty, _ := r.pwm.Latched(5)
	assert.Equal(t, uint32(2047), duty)
}

func TestC3VolumeAndBrightnessTools(t *testing.T) {
	r := newRig(t, VariantC3)
	b := r.build(t)

	call(t, b, ToolSetVolume, map[string]any{"volume": 35})
	assert.Equal(t, 35, b.AudioCodec().OutputVolume())
	assert.Equal(t, 35, r.store.Namespace("audio").Int("output_volume", 0))

	call(t, b, ToolSetBrightness, map[string]any{"brightness": 20})
	assert.Equal(t, 20, b.Backlight().Brightness())
	assert.Equal(t, 20, r.store.Namespace("display").Int("brightness", 0))
}

func TestC3PressToTalk(t *testing.T) {
	r := newRig(t, VariantC3)
	b := r.build(t)
	ctx := context.Background()

	press := types.ButtonEvent{Button: "boot", Gesture: types.GesturePressDown}
	click := types.ButtonEvent{Button: "boot", Gesture: types.GestureClick, Count: 1}
	assert.Equal(t, types.ActionNone, b.HandleButton(press))
	assert.Equal(t, types.ActionToggleChat, b.HandleButton(click))

	call(t, b, ToolPressToTalk, map[string]any{"mode": "press_to_talk"})
	assert.Equal(t, types.ActionStartListening, b.HandleButton(press))
	assert.Equal(t, types.ActionNone, b.HandleButton(click))
	require.NoError(t, b.Execute(ctx, types.ActionStartListening))
	assert.Equal(t, types.DeviceStateListening, r.app.DeviceState())

	_, err := b.Tools().Call(ctx, ToolPressToTalk, map[string]any{"mode": "shout_to_talk"})
	assert.Equal(t, errcode.InvalidArgs, errcode.Of(err))
	assert.Equal(t, 1, r.store.Namespace("vendor").Int("press_to_talk", 0))
}

func TestC3ExecuteActions(t *testing.T) {
	r := newRig(t, VariantC3)
	b := r.build(t)
	ctx := context.Background()

	require.NoError(t, b.Execute(ctx, types.ActionToggleChat))
	assert.Equal(t, types.DeviceStateListening, r.app.DeviceState())
	require.NoError(t, b.Execute(ctx, types.ActionToggleChat))
	assert.Equal(t, types.DeviceStateIdle, r.app.DeviceState())

	require.NoError(t, b.Execute(ctx, types.ActionWakeWord))
	assert.Equal(t, []string{config.DefaultWakeWord}, r.app.WakeWords())

	assert.ErrorIs(t, b.Execute(ctx, types.ActionSwitchTransport), errcode.Unsupported)
}

func TestC3ResetWiFiEntersConfigMode(t *testing.T) {
	r := newRig(t, VariantC3)
	b := r.build(t)
	ctx := context.Background()
	require.NoError(t, b.StartNetwork(ctx))
	assert.Equal(t, network.IconWiFi, b.NetworkStateIcon())

	require.NoError(t, b.Execute(ctx, types.ActionResetWiFiConfig))
	assert.Equal(t, network.IconWiFiConfig, b.NetworkStateIcon())
	assert.False(t, b.Network().Connected())
	assert.False(t, r.store.Namespace("wifi").Bool("force_ap", false), "reset flag consumed")
}

func TestC3PowerSaveFollowsCoordinator(t *testing.T) {
	r := newRig(t, VariantC3)
	b := r.build(t)
	pc := b.Power()
	d := b.Display().(*LCDDisplay)

	for i := 0; i < 300; i++ {
		pc.Tick()
	}
	require.Equal(t, types.PowerSleeping, pc.State())
	assert.True(t, d.PowerSave())
	assert.True(t, r.panel.Asleep())

	b.HandleButton(types.ButtonEvent{Button: "asr", Gesture: types.GesturePressDown})
	assert.Equal(t, types.PowerActive, pc.State())
	assert.False(t, d.PowerSave())

	for i := 0; i < 300; i++ {
		pc.Tick()
	}
	require.Equal(t, types.PowerSleeping, pc.State())
	b.SetPowerSaveMode(false)
	assert.Equal(t, types.PowerActive, pc.State())
}

func TestC3SleepsButNeverShutsDown(t *testing.T) {
	r := newRig(t, VariantC3)
	b := r.build(t)
	for i := 0; i < 299; i++ {
		b.Power().Tick()
	}
	assert.Equal(t, types.PowerActive, b.Power().State())
	for i := 0; i < 3600; i++ {
		b.Power().Tick()
	}
	assert.Equal(t, types.PowerSleeping, b.Power().State())
}

func TestShutdownTurnsBacklightOff(t *testing.T) {
	r := newRig(t, VariantC3)
	r.p.Power.ShutdownAfter = 600 * time.Second
	b := r.build(t)
	for i := 0; i < 600; i++ {
		b.Power().Tick()
	}
	require.Equal(t, types.PowerShuttingDown, b.Power().State())
	assert.Equal(t, 0, b.Backlight().Brightness())
}

func TestC3StatusDocuments(t *testing.T) {
	r := newRig(t, VariantC3)
	b := r.build(t)
	require.NoError(t, b.StartNetwork(context.Background()))

	var st map[string]any
	require.NoError(t, json.Unmarshal([]byte(b.DeviceStatusJSON()), &st))
	assert.Equal(t, 70.0, st["audio_speaker"].(map[string]any)["volume"])
	assert.Equal(t, 100.0, st["screen"].(map[string]any)["brightness"])
	assert.Equal(t, "wifi", st["network"].(map[string]any)["type"])
	assert.Equal(t, "strong", st["network"].(map[string]any)["signal"])
	assert.Equal(t, 90.0, st["servo"].(map[string]any)["angle"])
	assert.NotContains(t, st, "battery")

	res := call(t, b, ToolDeviceStatus, nil)
	raw, err := json.Marshal(res.Value)
	require.NoError(t, err)
	assert.JSONEq(t, b.DeviceStatusJSON(), string(raw))

	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(b.BoardJSON()), &info))
	assert.Equal(t, VariantC3, info["type"])
	assert.Equal(t, b.UUID(), info["uuid"])
	assert.Equal(t, "home", info["network"].(map[string]any)["ssid"])
}

func TestUUIDIsPersisted(t *testing.T) {
	r := newRig(t, VariantC3)
	first := r.build(t)
	second := r.build(t)
	assert.NotEmpty(t, first.UUID())
	assert.Equal(t, first.UUID(), second.UUID())
}

func TestC3RunDispatchesPinGestures(t *testing.T) {
	r := newRig(t, VariantC3)
	b := r.build(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = b.Run(ctx) }()

	boot := r.pins.Pin(9)
	boot.Set(false)
	boot.Set(true)
	require.Eventually(t, func() bool {
		return r.app.DeviceState() == types.DeviceStateListening
	}, 2*time.Second, 5*time.Millisecond)

	asr := r.pins.Pin(10)
	asr.Set(false)
	asr.Set(true)
	require.Eventually(t, func() bool { return len(r.app.WakeWords()) == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestUnknownVariant(t *testing.T) {
	r := newRig(t, VariantC3)
	r.p.Variant = "esp-box"
	_, err := New(context.Background(), r.p, r.hardware(), r.deps())
	assert.Equal(t, errcode.Unsupported, errcode.Of(err))
}

// ----------------------------- kalicyh-s3-ml307 ------------------------------

func TestS3Capabilities(t *testing.T) {
	r := newRig(t, VariantS3ML307)
	b := r.build(t)

	assert.Nil(t, b.Display(), "no screen on this board")
	assert.Nil(t, b.Backlight())
	assert.Nil(t, b.Servo())
	require.NotNil(t, b.AudioCodec())
	require.NotNil(t, b.LED())

	level, charging, discharging, ok := b.BatteryLevel()
	require.True(t, ok)
	assert.InDelta(t, 80, level, 2)
	assert.False(t, charging)
	assert.True(t, discharging)

	assert.False(t, b.Tools().Has(ToolSetBrightness))
	assert.True(t, b.Tools().Has(ToolSetVolume))
	assert.Equal(t, types.NetworkWiFi, b.Network().Type())
}

func TestS3ChargingDisablesPowerSave(t *testing.T) {
	r := newRig(t, VariantS3ML307)
	b := r.build(t).(*KalicyhS3ML307)
	require.True(t, b.Power().Enabled())

	r.pins.Pin(r.p.Battery.ChargePin).Set(true)
	require.NoError(t, b.battery().Update(drivers.Voltage))
	assert.False(t, b.Power().Enabled())

	r.pins.Pin(r.p.Battery.ChargePin).Set(false)
	require.NoError(t, b.battery().Update(drivers.Voltage))
	assert.True(t, b.Power().Enabled())
}

func TestS3StartsDisabledWhileCharging(t *testing.T) {
	r := newRig(t, VariantS3ML307)
	r.pins.Pin(r.p.Battery.ChargePin).Set(true)
	b := r.build(t)
	assert.False(t, b.Power().Enabled())
}

func TestS3DoubleClickSwitchesTransport(t *testing.T) {
	r := newRig(t, VariantS3ML307)
	b := r.build(t).(*KalicyhS3ML307)
	ctx := context.Background()
	require.NoError(t, b.StartNetwork(ctx))
	before := b.Network()
	assert.Same(t, b.Dual().WiFi(), before)

	double := types.ButtonEvent{Button: "boot", Gesture: types.GestureDoubleClick, Count: 2}
	a := b.HandleButton(double)
	require.Equal(t, types.ActionSwitchTransport, a)
	require.NoError(t, b.Execute(ctx, a))
	assert.NotSame(t, before, b.Network())
	assert.Same(t, b.Dual().Cellular(), b.Network())
	assert.Equal(t, types.NetworkCellular, b.Network().Type())
	assert.True(t, b.Network().Connected())
	assert.Equal(t, "cellular", r.store.Namespace("network").String("type", ""))
	assert.False(t, r.station.Connected(), "wifi torn down before cellular came up")

	// not allowed mid-conversation
	r.app.SetDeviceState(types.DeviceStateListening)
	err := b.Execute(ctx, b.HandleButton(double))
	assert.ErrorIs(t, err, errcode.SwitchNotAllowed)
	assert.Equal(t, types.NetworkCellular, b.Network().Type())
}

func TestS3SwitchDoesNotBlockButtons(t *testing.T) {
	r := newRig(t, VariantS3ML307)
	r.p.Network.Modem.RegisterTimeout = 5 * time.Second
	r.modem.SetRegistration(0)
	b := r.build(t)
	require.NoError(t, b.StartNetwork(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Execute(ctx, types.ActionSwitchTransport) }()
	require.Eventually(t, func() bool {
		return slices.Contains(r.modem.History(), "AT+CEREG?")
	}, time.Second, 5*time.Millisecond, "cellular registration under way")

	start := time.Now()
	b.HandleButton(types.ButtonEvent{Button: "boot", Gesture: types.GestureClick, Count: 1})
	_ = b.DeviceStatusJSON()
	_ = b.NetworkStateIcon()
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, types.NetworkCellular, b.Network().Type())
	assert.False(t, b.Network().Connected())

	// a second switch while the first is still bringing cellular up
	assert.ErrorIs(t, b.Execute(context.Background(), types.ActionSwitchTransport), errcode.Busy)

	cancel()
	select {
	case err := <-done:
		assert.Equal(t, errcode.Timeout, errcode.Of(err))
	case <-time.After(time.Second):
		t.Fatal("switch did not return after cancel")
	}
}

func TestS3RestoresPersistedTransport(t *testing.T) {
	r := newRig(t, VariantS3ML307)
	require.NoError(t, r.store.Namespace("network").SetString("type", "cellular"))
	b := r.build(t)
	assert.Equal(t, types.NetworkCellular, b.Network().Type())

	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(b.BoardJSON()), &info))
	assert.Equal(t, VariantS3ML307, info["type"])
	assert.Equal(t, "cellular", info["network"].(map[string]any)["type"])
}

func TestS3ClickAtBootEntersWiFiConfig(t *testing.T) {
	r := newRig(t, VariantS3ML307)
	r.app.SetDeviceState(types.DeviceStateStarting)
	b := r.build(t)

	a := b.HandleButton(types.ButtonEvent{Button: "boot", Gesture: types.GestureClick, Count: 1})
	require.Equal(t, types.ActionEnterWiFiConfig, a)
	require.NoError(t, b.Execute(context.Background(), a))
	assert.Equal(t, network.IconWiFiConfig, b.NetworkStateIcon())
}

func TestS3LedFollowsDeviceState(t *testing.T) {
	r := newRig(t, VariantS3ML307)
	b := r.build(t)
	r.app.OnStateChanged(b.NotifyDeviceState)

	r.app.SetDeviceState(types.DeviceStateListening)
	assert.Equal(t, 100, b.LED().Brightness())
	r.app.SetDeviceState(types.DeviceStateIdle)
	assert.Equal(t, 0, b.LED().Brightness())
}

func TestS3RequiresModem(t *testing.T) {
	r := newRig(t, VariantS3ML307)
	hw := r.hardware()
	hw.Modem = nil
	_, err := New(context.Background(), r.p, hw, r.deps())
	assert.Equal(t, errcode.InvalidParams, errcode.Of(err))
}

func TestCloseIsIdempotent(t *testing.T) {
	r := newRig(t, VariantC3)
	b, err := New(context.Background(), r.p, r.hardware(), r.deps())
	require.NoError(t, err)
	require.NotNil(t, b.Servo())
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	_, running := r.pwm.Latched(5)
	assert.False(t, running)
}
