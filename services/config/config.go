// Package config loads board profiles and publishes them on the bus.
//
// Profiles are YAML documents. Every supported board has one embedded in
// the binary; a file on disk can replace it.
package config

import (
	"context"
	"embed"
	"log/slog"
	"os"
	"sort"
	"strings"

	"voiceboard-go/bus"
	"voiceboard-go/errcode"
)

const (
	serviceName  = "config"
	configPrefix = "config"
)

//go:embed profiles/*.yaml
var profileFS embed.FS

// EmbeddedProfileLookup allows overriding how profiles are resolved.
var EmbeddedProfileLookup = func(board string) ([]byte, bool) {
	b, err := profileFS.ReadFile("profiles/" + board + ".yaml")
	return b, err == nil
}

// Boards lists the embedded profile names.
func Boards() []string {
	entries, _ := profileFS.ReadDir("profiles")
	var out []string
	for _, e := range entries {
		if n, ok := strings.CutSuffix(e.Name(), ".yaml"); ok {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// Load returns the embedded profile for board.
func Load(board string) (*Profile, error) {
	raw, ok := EmbeddedProfileLookup(board)
	if !ok || len(raw) == 0 {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "load_profile", Msg: "no embedded profile for board: " + board}
	}
	return Parse(raw)
}

// LoadFile reads a profile from path.
func LoadFile(path string) (*Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errcode.Wrap(errcode.InvalidParams, "load_profile", err)
	}
	return Parse(raw)
}

// -----------------------------------------------------------------------------
// Config Service
// -----------------------------------------------------------------------------

type ConfigService struct {
	Name    string
	profile *Profile
	log     *slog.Logger
}

func NewConfigService(p *Profile, log *slog.Logger) *ConfigService {
	if log == nil {
		log = slog.Default()
	}
	return &ConfigService{Name: serviceName, profile: p, log: log.With("component", serviceName)}
}

// Publish posts each profile section as a retained message under
// config/<section>. Absent optional sections are not published.
func (s *ConfigService) Publish(conn *bus.Connection) {
	p := s.profile
	sections := map[string]any{
		"board":   p.Name,
		"i2c":     p.I2C,
		"buttons": p.Buttons,
		"pwm":     p.PWM,
		"power":   p.Power,
		"network": p.Network,
	}
	if p.Codec != nil {
		sections["codec"] = *p.Codec
	}
	if p.Display != nil {
		sections["display"] = *p.Display
	}
	if p.Battery != nil {
		sections["battery"] = *p.Battery
	}
	for k, v := range sections {
		conn.Publish(conn.NewMessage(bus.T(configPrefix, k), v, true))
	}
	s.log.Debug("profile published", "board", p.Name, "sections", len(sections))
}

// Start publishes the profile in the background.
func (s *ConfigService) Start(_ context.Context, conn *bus.Connection) {
	go s.Publish(conn)
}
