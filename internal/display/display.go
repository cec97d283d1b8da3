// Package display renders the combined status screen onto a small
// monochrome OLED.
package display

import (
	"fmt"
	"image"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/sweeney/dht-node/internal/status"
)

// Sink is a monochrome panel. *ssd1306.Dev satisfies it.
type Sink interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
	Halt() error
}

// Lines returns the three status lines: IP last octet, LED state, and
// either the last reading or the last error kind.
func Lines(snap status.Snapshot) []string {
	ip := "IP:--"
	if snap.Network != nil && snap.Network.IP != "" {
		addr := snap.Network.IP
		if i := strings.LastIndexByte(addr, '.'); i >= 0 {
			addr = addr[i+1:]
		}
		ip = "IP:" + addr
	}

	return []string{ip, "LED:" + status.LEDString(snap.LED), sensorLine(snap)}
}

func sensorLine(snap status.Snapshot) string {
	switch {
	case snap.Lost && snap.LastError != nil:
		return "DHT:" + string(snap.LastError.Kind)
	case snap.Reading != nil:
		return fmt.Sprintf("%.1fC %.0f%%", snap.Reading.Temperature, snap.Reading.Humidity)
	case snap.LastError != nil:
		return "DHT:" + string(snap.LastError.Kind)
	default:
		return "DHT:WAIT"
	}
}

// Render draws lines top to bottom in a 7x13 font.
func Render(bounds image.Rectangle, lines []string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(bounds)
	face := basicfont.Face7x13
	d := font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{C: image1bit.On},
		Face: face,
	}
	for i, line := range lines {
		d.Dot = fixed.P(bounds.Min.X, bounds.Min.Y+face.Ascent+i*face.Height)
		d.DrawString(line)
	}
	return img
}

// Display pushes status screens to a Sink, skipping unchanged frames.
type Display struct {
	mu   sync.Mutex
	sink Sink
	log  *slog.Logger
	last []string
}

// New creates a Display drawing to sink.
func New(sink Sink, log *slog.Logger) *Display {
	return &Display{sink: sink, log: log}
}

// Show renders snap if its lines differ from the last frame drawn.
func (d *Display) Show(snap status.Snapshot) error {
	lines := Lines(snap)

	d.mu.Lock()
	defer d.mu.Unlock()
	if slices.Equal(lines, d.last) {
		return nil
	}

	b := d.sink.Bounds()
	if err := d.sink.Draw(b, Render(b, lines), b.Min); err != nil {
		return fmt.Errorf("display draw: %w", err)
	}
	d.last = lines
	d.log.Debug("display updated", "lines", strings.Join(lines, " | "))
	return nil
}

// Close blanks the panel.
func (d *Display) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sink.Halt()
}
