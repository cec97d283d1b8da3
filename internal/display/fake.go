package display

import (
	"image"
	"image/draw"

	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// FakeSink records frames in memory.
type FakeSink struct {
	Rect      image.Rectangle
	Frames    int
	Frame     *image1bit.VerticalLSB
	DrawError error
	Halted    bool
}

// NewFakeSink creates a w x h FakeSink.
func NewFakeSink(w, h int) *FakeSink {
	return &FakeSink{Rect: image.Rect(0, 0, w, h)}
}

func (f *FakeSink) Bounds() image.Rectangle { return f.Rect }

func (f *FakeSink) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	if f.DrawError != nil {
		return f.DrawError
	}
	f.Frame = image1bit.NewVerticalLSB(f.Rect)
	draw.Draw(f.Frame, r, src, sp, draw.Src)
	f.Frames++
	return nil
}

func (f *FakeSink) Halt() error {
	f.Halted = true
	return nil
}

// Lit counts the pixels that are on in the last frame.
func (f *FakeSink) Lit() int {
	if f.Frame == nil {
		return 0
	}
	n := 0
	for y := f.Rect.Min.Y; y < f.Rect.Max.Y; y++ {
		for x := f.Rect.Min.X; x < f.Rect.Max.X; x++ {
			if f.Frame.BitAt(x, y) == image1bit.On {
				n++
			}
		}
	}
	return n
}
