
// Package vf provides in-place filters over decoded video frames. Filters
// run between decode and encode inside the transcode loop.
package vf

import (
	"github.com/tyrese/barburn/av"
)

// Filter mutates one decoded frame in place. done is the number of frames
// delivered by the decoder before this one, total the expected frame count
// from container metadata (0 when unknown).
type Filter interface {
	ModifyFrame(frame *av.VideoFrame, done int64, total int64) error
}

type Filters []Filter

func (self Filters) ModifyFrame(frame *av.VideoFrame, done int64, total int64) (err error) {
	for _, filter := range self {
		if err = filter.ModifyFrame(frame, done, total); err != nil {
			return
		}
	}
	return
}

// BarHeight is the number of pixel rows the progress bar occupies at the
// bottom edge of the frame.
const BarHeight = 10

// ProgressBar burns a solid horizontal progress bar into the bottom of
// every frame, its filled width proportional to done/total.
type ProgressBar struct {
	// Solid fill written to the 3 channels of every bar pixel.
	C0, C1, C2 byte
}

// DefaultProgressBar matches the classic full-intensity-first-channel fill.
func DefaultProgressBar() *ProgressBar {
	return &ProgressBar{C0: 255}
}

func (self *ProgressBar) ModifyFrame(frame *av.VideoFrame, done int64, total int64) error {
	DrawBar(frame, done, total, self.C0, self.C1, self.C2)
	return nil
}

// DrawBar paints the bottom BarHeight rows of frame with a bar of width
// floor(frame.Width*done/total) pixels filled with c0,c1,c2.
//
// total <= 0 means the container did not report a frame count; the bar
// width is then 0. done past total clamps to the full frame width. Rows
// are addressed through Stride, and bytes beyond the bar's pixels in a
// row are left untouched.
func DrawBar(frame *av.VideoFrame, done int64, total int64, c0 byte, c1 byte, c2 byte) {
	if frame.Width <= 0 || frame.Height <= 0 {
		return
	}

	width := 0
	if total > 0 {
		width = int(int64(frame.Width) * done / total)
	}
	if width < 0 {
		width = 0
	}
	if width > frame.Width {
		width = frame.Width
	}
	if width == 0 {
		return
	}

	top := frame.Height - BarHeight
	if top < 0 {
		top = 0
	}

	for i := top; i < frame.Height; i++ {
		row := frame.Data[i*frame.Stride:]
		for j := 0; j < width; j++ {
			row[j*3+0] = c0
			row[j*3+1] = c1
			row[j*3+2] = c2
		}
	}
}
