package config

import (
	"cmp"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"voiceboard-go/drivers/ledc"
	"voiceboard-go/errcode"
	"voiceboard-go/services/power"
)

// Profile describes one board: pins, buses and policy knobs.
type Profile struct {
	Name     string `yaml:"name"`
	Variant  string `yaml:"variant"`
	WakeWord string `yaml:"wake_word"`

	I2C     I2C       `yaml:"i2c"`
	Codec   *Codec    `yaml:"codec"`
	Display *Display  `yaml:"display"`
	Buttons []Button  `yaml:"buttons"`
	PWM     ledc.Plan `yaml:"pwm"`
	Battery *Battery  `yaml:"battery"`
	Power   Power     `yaml:"power"`
	Network Network   `yaml:"network"`
}

type I2C struct {
	Bus       int    `yaml:"bus"`
	SDA       int    `yaml:"sda"`
	SCL       int    `yaml:"scl"`
	Hz        uint32 `yaml:"hz"`
	ProbeAddr uint16 `yaml:"probe_addr"` // 0: no bring-up probe
}

type Codec struct {
	Addr             uint16 `yaml:"addr"`
	InputSampleRate  int    `yaml:"input_sample_rate"`
	OutputSampleRate int    `yaml:"output_sample_rate"`
	DefaultVolume    int    `yaml:"default_volume"`
}

type SPI struct {
	Bus int    `yaml:"bus"`
	SCK int    `yaml:"sck"`
	SDO int    `yaml:"sdo"`
	SDI int    `yaml:"sdi"`
	Hz  uint32 `yaml:"hz"`
}

type Display struct {
	Width           int16 `yaml:"width"`
	Height          int16 `yaml:"height"`
	SPI             SPI   `yaml:"spi"`
	Reset           int   `yaml:"reset"`
	DC              int   `yaml:"dc"`
	CS              int   `yaml:"cs"`
	BacklightInvert bool  `yaml:"backlight_invert"`
	Brightness      int   `yaml:"brightness"` // applied at boot; 0 restores the saved value
}

type Button struct {
	Name      string `yaml:"name"`
	Pin       int    `yaml:"pin"`
	ActiveLow bool   `yaml:"active_low"`
}

type Battery struct {
	ADCPin           int           `yaml:"adc_pin"`
	ChargePin        int           `yaml:"charge_pin"`
	DividerTopOhm    uint32        `yaml:"divider_top_ohm"`
	DividerBottomOhm uint32        `yaml:"divider_bottom_ohm"`
	Poll             time.Duration `yaml:"poll"`
}

type Power struct {
	SleepAfter    time.Duration `yaml:"sleep_after"`
	ShutdownAfter time.Duration `yaml:"shutdown_after"`
}

// Config converts the section into a power coordinator config.
func (p Power) Config() power.Config {
	return power.Config{Tick: time.Second, SleepAfter: p.SleepAfter, ShutdownAfter: p.ShutdownAfter}
}

type WiFi struct {
	Hostname string `yaml:"hostname"`
	Port     int    `yaml:"port"`
}

type Modem struct {
	UART            int           `yaml:"uart"`
	TX              int           `yaml:"tx"`
	RX              int           `yaml:"rx"`
	Baud            uint32        `yaml:"baud"`
	ATTimeout       time.Duration `yaml:"at_timeout"`
	RegisterTimeout time.Duration `yaml:"register_timeout"`
}

type Network struct {
	Dual  bool   `yaml:"dual"`
	WiFi  WiFi   `yaml:"wifi"`
	Modem *Modem `yaml:"modem"`
}

// Parse decodes a YAML profile, fills defaults and validates it.
func Parse(raw []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, errcode.Wrap(errcode.InvalidParams, "parse_profile", err)
	}
	p.Variant = cmp.Or(p.Variant, p.Name)
	p.WakeWord = cmp.Or(p.WakeWord, DefaultWakeWord)
	if p.Codec != nil && p.Codec.DefaultVolume == 0 {
		p.Codec.DefaultVolume = 70
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

const DefaultWakeWord = "你好小智"

// Validate checks the static resource plan and policy thresholds.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return &errcode.E{C: errcode.InvalidParams, Op: "profile", Msg: "name is required"}
	}
	if err := p.PWM.Validate(); err != nil {
		return err
	}
	if err := p.Power.Config().Validate(); err != nil {
		return err
	}
	names := map[string]bool{}
	pins := map[int]string{}
	for _, a := range p.PWM {
		pins[a.Pin] = a.Owner
	}
	for _, b := range p.Buttons {
		if b.Name == "" || names[b.Name] {
			return &errcode.E{C: errcode.InvalidParams, Op: "profile", Msg: fmt.Sprintf("bad button name %q", b.Name)}
		}
		names[b.Name] = true
		if owner, ok := pins[b.Pin]; ok {
			return &errcode.E{C: errcode.ResourceInUse, Op: "profile",
				Msg: fmt.Sprintf("button %s pin %d already used by %s", b.Name, b.Pin, owner)}
		}
		pins[b.Pin] = "button " + b.Name
	}
	if p.Network.Dual && p.Network.Modem == nil {
		return &errcode.E{C: errcode.InvalidParams, Op: "profile", Msg: "dual network needs a modem section"}
	}
	return nil
}
