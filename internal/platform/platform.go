// Package platform provides the concrete buses, pins and panels a board is
// built on: in-memory fakes on the host, machine peripherals on RP2040.
package platform

import (
	"image/color"

	"tinygo.org/x/drivers"
)

// Panel is an LCD panel with a sleep control.
type Panel interface {
	drivers.Displayer
	Sleep(sleep bool) error
}

// ADC is a single analogue input.
type ADC interface {
	Get() uint16
}

// Fill paints the whole panel.
func Fill(p drivers.Displayer, c color.RGBA) error {
	w, h := p.Size()
	for y := int16(0); y < h; y++ {
		for x := int16(0); x < w; x++ {
			p.SetPixel(x, y, c)
		}
	}
	return p.Display()
}
