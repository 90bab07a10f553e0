
// Package av defines basic interfaces and data structures of container demux/mux and video decode/encode.
package av

import (
	"fmt"
)

// Video/Audio stream type inside a container.
type CodecType uint32

const (
	VIDEO = CodecType(iota + 1)
	AUDIO
	DATA // subtitles, attachments, anything the pipeline passes over
)

func (self CodecType) String() string {
	switch self {
	case VIDEO:
		return "VIDEO"
	case AUDIO:
		return "AUDIO"
	case DATA:
		return "DATA"
	}
	return "?"
}

func (self CodecType) IsVideo() bool {
	return self == VIDEO
}

func (self CodecType) IsAudio() bool {
	return self == AUDIO
}

// NOPTS marks a missing timestamp, same bit pattern as ffmpeg's AV_NOPTS_VALUE.
const NOPTS = int64(-0x8000000000000000)

// Rational is a time base: the duration of one timestamp tick as Num/Den seconds.
// Timestamps expressed in different time bases must go through Rescale before
// they can be compared or handed to another stage.
type Rational struct {
	Num int
	Den int
}

func (self Rational) String() string {
	return fmt.Sprintf("%d/%d", self.Num, self.Den)
}

func (self Rational) IsValid() bool {
	return self.Num > 0 && self.Den > 0
}

// Rescale converts ts from this time base into dst, rounding to the
// nearest tick (half away from zero).
func (self Rational) Rescale(ts int64, dst Rational) int64 {
	if ts == NOPTS {
		return NOPTS
	}
	num := ts * int64(self.Num) * int64(dst.Den)
	den := int64(self.Den) * int64(dst.Num)
	if num < 0 {
		return -((-num + den/2) / den)
	}
	return (num + den/2) / den
}

// StreamInfo describes one stream found in a container. Produced once by the
// demuxer when the header is probed, read-only afterwards.
type StreamInfo struct {
	Idx       int // stream index inside the container
	Type      CodecType
	CodecName string // codec identity, e.g. "h264"
	Width     int    // coded width, video only
	Height    int    // coded height, video only
	TimeBase  Rational
	NumFrames int64 // total frame count from container metadata, 0 when unknown

	// CodecParams is the demuxer-owned opaque parameter handle used to open a
	// decoder/encoder for this stream. Only the collaborator that produced
	// the StreamInfo knows its concrete type.
	CodecParams interface{}
}

// Packet stores one compressed video/audio packet.
//
// Whoever consumes a Packet last must call Free exactly once, no matter
// whether the consuming stage succeeded. Free releases the stage-owned
// buffer behind Data; Data must not be used afterwards.
type Packet struct {
	Idx        int  // stream index in container format
	IsKeyFrame bool // video packet is key frame
	Pts        int64
	Dts        int64
	TimeBase   Rational
	Data       []byte

	free func()
}

// SetFree installs the release hook run by Free. Used by demuxers and
// encoders that hand out buffers which need explicit unref.
func (self *Packet) SetFree(fn func()) {
	self.free = fn
}

// Free releases the packet buffer. Safe to call on a packet without a
// release hook; the second and later calls are no-ops.
func (self *Packet) Free() {
	if self.free != nil {
		fn := self.free
		self.free = nil
		fn()
	}
	self.Data = nil
}

// VideoFrame is one decoded picture in packed 3-byte-per-pixel layout.
// Rows start every Stride bytes; Stride can exceed 3*Width because of
// alignment padding, so per-row access must use Stride.
//
// The transcode loop allocates one VideoFrame and the decoder refills it
// in place every iteration, so no reference into Data may survive past
// the encode submission of the same iteration.
type VideoFrame struct {
	Width    int
	Height   int
	Stride   int
	Data     []byte
	Pts      int64
	TimeBase Rational
}

// Alloc sizes the frame buffer for w x h with the given row stride,
// reusing the backing array when it is big enough.
func (self *VideoFrame) Alloc(w int, h int, stride int) {
	if stride < w*3 {
		stride = w * 3
	}
	size := stride * h
	if cap(self.Data) < size {
		self.Data = make([]byte, size)
	}
	self.Data = self.Data[:size]
	self.Width = w
	self.Height = h
	self.Stride = stride
}

type PacketWriter interface {
	WritePacket(Packet) error
}

type PacketReader interface {
	ReadPacket() (Packet, error)
}

// Demuxer reads compressed packets out of a container. ReadPacket returns
// io.EOF when the input is exhausted.
type Demuxer interface {
	PacketReader
	Streams() ([]StreamInfo, error) // reads the container header once, returns stream descriptors
}

// Demuxer with Close() method
type DemuxCloser interface {
	Demuxer
	Close() error
}

// Muxer writes compressed packets into a container, interleaving across
// streams by timestamp.
type Muxer interface {
	WriteHeader([]StreamInfo) error // write the file header
	PacketWriter                    // interleaved write of one packet
	WriteTrailer() error            // finish writing file, this func can be called only once
}

// Muxer with Close() method
type MuxCloser interface {
	Muxer
	Close() error
}

// VideoDecoder turns compressed packets into raw frames, avcodec
// submit/drain style: one Submit may yield zero, one or several frames
// from Receive.
type VideoDecoder interface {
	Submit(Packet) error               // feed one compressed packet
	Receive(*VideoFrame) (bool, error) // fill the caller's frame in place; false when the decoder needs more input
	Flush() error                      // signal end of stream; keep calling Receive to drain lookahead
	Close()
}

// VideoEncoder turns raw frames back into compressed packets. Frame
// timestamps submitted to it must already be expressed in TimeBase().
type VideoEncoder interface {
	Submit(*VideoFrame) error      // feed one raw frame
	Receive(*Packet) (bool, error) // false when the encoder has no packet ready
	Flush() error                  // signal end of stream; keep calling Receive to drain
	Close()
	TimeBase() Rational // the encoder's internal clock
}

// FindVideoStream returns the first video stream, the way the pipeline
// selects its input.
func FindVideoStream(streams []StreamInfo) (stream StreamInfo, err error) {
	for _, stream = range streams {
		if stream.Type.IsVideo() {
			return
		}
	}
	err = fmt.Errorf("av: no video stream found")
	return
}
