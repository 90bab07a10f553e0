
// Package fake provides scripted in-memory collaborators for testing the
// transcode pipeline without real containers or codecs. Every packet
// handed out carries a release hook feeding a shared Counter, so tests
// can assert the freed-exactly-once invariant.
package fake

import (
	"fmt"
	"io"

	"github.com/tyrese/barburn/av"
)

// Counter tracks how often each handed-out packet was released.
type Counter struct {
	Frees map[string]int
}

func NewCounter() *Counter {
	return &Counter{Frees: map[string]int{}}
}

func (self *Counter) hook(key string) func() {
	return func() { self.Frees[key]++ }
}

// Leaked returns the keys of packets not freed exactly once.
func (self *Counter) Leaked(want int) (bad []string) {
	if len(self.Frees) != want {
		bad = append(bad, fmt.Sprintf("tracked %d packets, want %d", len(self.Frees), want))
	}
	for key, n := range self.Frees {
		if n != 1 {
			bad = append(bad, fmt.Sprintf("%s freed %d times", key, n))
		}
	}
	return
}

// PacketScript describes one packet the Demuxer will produce.
type PacketScript struct {
	Idx        int
	Pts        int64
	Frames     int  // frames the Decoder yields for this packet
	FailSubmit bool // Decoder.Submit rejects this packet
}

// Demuxer plays back a scripted packet sequence, then io.EOF.
type Demuxer struct {
	Infos   []av.StreamInfo
	Script  []PacketScript
	Counter *Counter
	pos     int
}

func (self *Demuxer) Streams() ([]av.StreamInfo, error) {
	return self.Infos, nil
}

func (self *Demuxer) ReadPacket() (pkt av.Packet, err error) {
	if self.pos >= len(self.Script) {
		err = io.EOF
		return
	}
	s := self.Script[self.pos]
	self.pos++

	stream := self.Infos[s.Idx]
	pkt = av.Packet{
		Idx:      s.Idx,
		Pts:      s.Pts,
		Dts:      s.Pts,
		TimeBase: stream.TimeBase,
		Data:     []byte{byte(s.Frames), boolByte(s.FailSubmit)},
	}
	if self.Counter != nil {
		pkt.SetFree(self.Counter.hook(fmt.Sprintf("in:%d", self.pos-1)))
	}
	return
}

func (self *Demuxer) Close() error {
	return nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// Decoder consumes Demuxer packets and yields as many frames as the
// packet's script asked for, each one Pts tick apart, filled with zero
// pixels at the stream's coded size. Lookahead frames stay buffered
// until Flush, the way a real decoder delays reordered pictures.
type Decoder struct {
	Width     int
	Height    int
	Stride    int // 0 means tight rows
	Lookahead int

	pending   []int64 // pts of frames not yet received
	flushed   bool
	Submitted int
}

func (self *Decoder) Submit(pkt av.Packet) error {
	if len(pkt.Data) >= 2 && pkt.Data[1] != 0 {
		return fmt.Errorf("fake: decoder rejected packet pts=%d", pkt.Pts)
	}
	self.Submitted++
	n := 1
	if len(pkt.Data) >= 1 {
		n = int(pkt.Data[0])
	}
	for k := 0; k < n; k++ {
		self.pending = append(self.pending, pkt.Pts+int64(k))
	}
	return nil
}

func (self *Decoder) Receive(frame *av.VideoFrame) (bool, error) {
	hold := self.Lookahead
	if self.flushed {
		hold = 0
	}
	if len(self.pending) <= hold {
		return false, nil
	}
	pts := self.pending[0]
	self.pending = self.pending[1:]

	frame.Alloc(self.Width, self.Height, self.Stride)
	for i := range frame.Data {
		frame.Data[i] = 0
	}
	frame.Pts = pts
	return true, nil
}

func (self *Decoder) Flush() error {
	self.flushed = true
	return nil
}

func (self *Decoder) Close() {}

// Encoder emits one packet per submitted frame, optionally holding back
// Lookahead frames until Flush the way a real encoder buffers B-frames.
type Encoder struct {
	TB        av.Rational
	Lookahead int
	FailPts   int64 // Submit rejects a frame with this Pts; 0 disables
	Counter   *Counter

	queue   []int64
	flushed bool
	seq     int
}

func (self *Encoder) Submit(frame *av.VideoFrame) error {
	if self.FailPts != 0 && frame.Pts == self.FailPts {
		return fmt.Errorf("fake: encoder rejected frame pts=%d", frame.Pts)
	}
	self.queue = append(self.queue, frame.Pts)
	return nil
}

func (self *Encoder) Receive(pkt *av.Packet) (bool, error) {
	hold := self.Lookahead
	if self.flushed {
		hold = 0
	}
	if len(self.queue) <= hold {
		return false, nil
	}
	pts := self.queue[0]
	self.queue = self.queue[1:]

	*pkt = av.Packet{
		Pts:      pts,
		Dts:      pts,
		TimeBase: self.TB,
		Data:     []byte{0xEC},
	}
	if self.Counter != nil {
		pkt.SetFree(self.Counter.hook(fmt.Sprintf("out:%d", self.seq)))
	}
	self.seq++
	return true, nil
}

func (self *Encoder) Flush() error {
	self.flushed = true
	return nil
}

func (self *Encoder) Close() {}

func (self *Encoder) TimeBase() av.Rational {
	return self.TB
}

// WrittenPacket records what the Muxer saw for one WritePacket call.
type WrittenPacket struct {
	Idx        int
	Pts        int64
	Dts        int64
	TimeBase   av.Rational
	FreedEarly bool // packet buffer was already released when written
}

// Muxer records header, packets and trailer.
type Muxer struct {
	HeaderStreams []av.StreamInfo
	Written       []WrittenPacket
	TrailerDone   bool
	FailWrites    int // reject this many writes, counting from the first
}

func (self *Muxer) WriteHeader(streams []av.StreamInfo) error {
	self.HeaderStreams = streams
	return nil
}

func (self *Muxer) WritePacket(pkt av.Packet) error {
	self.Written = append(self.Written, WrittenPacket{
		Idx:        pkt.Idx,
		Pts:        pkt.Pts,
		Dts:        pkt.Dts,
		TimeBase:   pkt.TimeBase,
		FreedEarly: pkt.Data == nil,
	})
	if self.FailWrites > 0 {
		self.FailWrites--
		return fmt.Errorf("fake: muxer write failed")
	}
	return nil
}

func (self *Muxer) WriteTrailer() error {
	self.TrailerDone = true
	return nil
}

func (self *Muxer) Close() error {
	return nil
}
