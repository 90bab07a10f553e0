package vf

import (
	"testing"

	"github.com/tyrese/barburn/av"
)

func newFrame(w, h, stride int) *av.VideoFrame {
	frame := &av.VideoFrame{}
	frame.Alloc(w, h, stride)
	return frame
}

// barWidth counts how many leading pixels of the given row carry the fill.
func barWidth(frame *av.VideoFrame, row int) int {
	n := 0
	for j := 0; j < frame.Width; j++ {
		p := frame.Data[row*frame.Stride+j*3:]
		if p[0] == 255 && p[1] == 0 && p[2] == 0 {
			n++
		} else {
			break
		}
	}
	return n
}

func TestDrawBarWidth(t *testing.T) {
	total := int64(10)
	for done := int64(0); done <= total; done++ {
		frame := newFrame(64, 64, 0)
		DrawBar(frame, done, total, 255, 0, 0)

		want := int(int64(frame.Width) * done / total)
		for row := frame.Height - BarHeight; row < frame.Height; row++ {
			if got := barWidth(frame, row); got != want {
				t.Fatalf("done=%d row=%d width=%d want %d", done, row, got, want)
			}
		}
	}
}

func TestDrawBarHalfway(t *testing.T) {
	// 64x64, total 10, frame index 5: width must be exactly 32
	frame := newFrame(64, 64, 0)
	DrawBar(frame, 5, 10, 255, 0, 0)
	if got := barWidth(frame, frame.Height-1); got != 32 {
		t.Errorf("width=%d want 32", got)
	}
}

func TestDrawBarFootprint(t *testing.T) {
	// stride wider than 3*width: padding and rows above the bar must stay zero
	frame := newFrame(16, 32, 64)
	DrawBar(frame, 16, 16, 255, 0, 0)

	for i := 0; i < frame.Height; i++ {
		for b := 0; b < frame.Stride; b++ {
			v := frame.Data[i*frame.Stride+b]
			inBar := i >= frame.Height-BarHeight && b < frame.Width*3
			if inBar {
				continue
			}
			if v != 0 {
				t.Fatalf("byte outside bar footprint written at row=%d off=%d", i, b)
			}
		}
	}

	// full width at done == total
	for row := frame.Height - BarHeight; row < frame.Height; row++ {
		if got := barWidth(frame, row); got != frame.Width {
			t.Fatalf("row=%d width=%d want full %d", row, got, frame.Width)
		}
	}
}

func TestDrawBarUnknownTotal(t *testing.T) {
	// total 0 or negative must draw nothing instead of dividing by zero
	for _, total := range []int64{0, -1} {
		frame := newFrame(64, 64, 0)
		DrawBar(frame, 5, total, 255, 0, 0)
		for i := range frame.Data {
			if frame.Data[i] != 0 {
				t.Fatalf("total=%d wrote byte %d", total, i)
			}
		}
	}
}

func TestDrawBarClamp(t *testing.T) {
	// metadata undercount: done beyond total clamps to frame width
	frame := newFrame(64, 64, 0)
	DrawBar(frame, 25, 10, 255, 0, 0)
	if got := barWidth(frame, frame.Height-1); got != frame.Width {
		t.Errorf("width=%d want clamped %d", got, frame.Width)
	}
}

func TestDrawBarShortFrame(t *testing.T) {
	// frames shorter than the bar fill every existing row, nothing more
	frame := newFrame(8, 4, 0)
	DrawBar(frame, 1, 1, 255, 0, 0)
	for row := 0; row < frame.Height; row++ {
		if got := barWidth(frame, row); got != frame.Width {
			t.Fatalf("row=%d width=%d want %d", row, got, frame.Width)
		}
	}
}

type countFilter struct {
	calls int
	fail  error
}

func (self *countFilter) ModifyFrame(frame *av.VideoFrame, done int64, total int64) error {
	self.calls++
	return self.fail
}

func TestFiltersChain(t *testing.T) {
	a := &countFilter{}
	b := &countFilter{}
	frame := newFrame(8, 8, 0)

	if err := (Filters{a, b}).ModifyFrame(frame, 0, 10); err != nil {
		t.Fatal(err)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Errorf("calls a=%d b=%d, want 1 each", a.calls, b.calls)
	}
}
