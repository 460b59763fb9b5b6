package board

import (
	"image/color"
	"log/slog"
	"sync"

	"voiceboard-go/errcode"
	"voiceboard-go/internal/platform"
)

// Display is the text-state surface of the screen. Rendering is the panel's
// business; the board only tracks what should be shown.
type Display interface {
	SetPowerSaveMode(on bool)
	SetStatus(status string)
	SetEmotion(emotion string)
	SetChatMessage(role, content string)
	Status() string
	Emotion() string
	ChatMessage() (role, content string)
	Size() (w, h int16)
}

// LCDDisplay fronts an SPI panel.
type LCDDisplay struct {
	panel platform.Panel
	log   *slog.Logger

	mu        sync.Mutex
	powerSave bool
	status    string
	emotion   string
	role      string
	content   string
}

var _ Display = (*LCDDisplay)(nil)

// NewLCDDisplay wakes the panel and clears it to black.
func NewLCDDisplay(panel platform.Panel, log *slog.Logger) (*LCDDisplay, error) {
	if panel == nil {
		return nil, errcode.Absent
	}
	if log == nil {
		log = slog.Default()
	}
	if err := panel.Sleep(false); err != nil {
		return nil, errcode.Wrap(errcode.MapDriverErr(err), "display_wake", err)
	}
	if err := platform.Fill(panel, color.RGBA{A: 0xff}); err != nil {
		return nil, errcode.Wrap(errcode.MapDriverErr(err), "display_clear", err)
	}
	return &LCDDisplay{panel: panel, log: log.With("component", "display"), emotion: "neutral"}, nil
}

func (d *LCDDisplay) Size() (int16, int16) { return d.panel.Size() }

// SetPowerSaveMode puts the panel to sleep and shows the sleepy face, or
// wakes it back to neutral. Panel errors are logged, never returned.
func (d *LCDDisplay) SetPowerSaveMode(on bool) {
	d.mu.Lock()
	d.powerSave = on
	d.role, d.content = "system", ""
	if on {
		d.emotion = "sleepy"
	} else {
		d.emotion = "neutral"
	}
	d.mu.Unlock()
	if err := d.panel.Sleep(on); err != nil {
		d.log.Warn("panel sleep failed", "on", on, "err", err)
	}
}

func (d *LCDDisplay) PowerSave() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.powerSave
}

func (d *LCDDisplay) SetStatus(s string) {
	d.mu.Lock()
	d.status = s
	d.mu.Unlock()
}

func (d *LCDDisplay) SetEmotion(e string) {
	d.mu.Lock()
	d.emotion = e
	d.mu.Unlock()
}

func (d *LCDDisplay) SetChatMessage(role, content string) {
	d.mu.Lock()
	d.role, d.content = role, content
	d.mu.Unlock()
}

func (d *LCDDisplay) Status() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

func (d *LCDDisplay) Emotion() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.emotion
}

func (d *LCDDisplay) ChatMessage() (string, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.role, d.content
}

// Close puts the panel to sleep.
func (d *LCDDisplay) Close() error { return d.panel.Sleep(true) }
