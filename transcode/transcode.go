
// Package transcode drives the per-frame pipeline: read compressed packets
// from a demuxer, decode, run frame filters (the progress bar), remap
// timestamps, re-encode and hand the packets to a muxer.
package transcode

import (
	"io"

	uuid "github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"

	"github.com/tyrese/barburn/av"
	"github.com/tyrese/barburn/vf"
)

// Progress is the per-run frame accounting threaded through the loop.
// FrameCount only ever grows: +1 for every frame the decoder delivers,
// bumped after the filters saw the frame. TotalFrames comes from
// container metadata and can be 0 when the container does not know.
type Progress struct {
	FrameCount  int64
	TotalFrames int64
}

// Session owns one transcode run. All stages execute strictly in
// sequence on the caller's goroutine, which is what makes reusing the
// single decoded-frame buffer across iterations safe.
type Session struct {
	Demuxer av.Demuxer
	Decoder av.VideoDecoder
	Encoder av.VideoEncoder
	Muxer   av.Muxer

	Stream      av.StreamInfo // selected input video stream
	OutIdx      int           // stream index inside the output container
	OutTimeBase av.Rational   // output stream clock

	Filters  vf.Filter
	Progress Progress

	frame av.VideoFrame
	log   *logrus.Entry
}

// NewSession wires a run together with the progress-bar filter
// installed; replace Filters before Run to customize.
func NewSession(demuxer av.Demuxer, decoder av.VideoDecoder, encoder av.VideoEncoder, muxer av.Muxer, stream av.StreamInfo, outIdx int, outTimeBase av.Rational) *Session {
	return &Session{
		Demuxer:     demuxer,
		Decoder:     decoder,
		Encoder:     encoder,
		Muxer:       muxer,
		Stream:      stream,
		OutIdx:      outIdx,
		OutTimeBase: outTimeBase,
		Filters:     vf.Filters{vf.DefaultProgressBar()},
		Progress:    Progress{TotalFrames: stream.NumFrames},
		log: logrus.WithFields(logrus.Fields{
			"run":    uuid.NewV4().String()[:8],
			"stream": stream.Idx,
		}),
	}
}

// Run processes packets until the demuxer is exhausted, then flushes the
// decoder and encoder so buffered lookahead frames reach the output.
//
// Decode/encode submission failures and muxer write failures only abort
// the current packet's cycle; the loop moves on to the next packet. Any
// demuxer error counts as end of input: the run still flushes and
// finishes, it just stops reading.
func (self *Session) Run() (err error) {
	for {
		var pkt av.Packet
		var rerr error
		if pkt, rerr = self.Demuxer.ReadPacket(); rerr != nil {
			if rerr != io.EOF {
				self.log.Error("demux read failed, err: ", rerr)
			}
			break
		}

		if pkt.Idx != self.Stream.Idx {
			pkt.Free()
			continue
		}

		if serr := self.Decoder.Submit(pkt); serr != nil {
			self.log.Error("decode submit failed, err: ", serr)
			pkt.Free()
			continue
		}
		pkt.Free()

		self.drainDecoder()
	}

	self.flush()
	self.log.Info("transcode done, frames: ", self.Progress.FrameCount)
	return
}

// drainDecoder pulls every frame the decoder has ready and pushes each
// through filter, timestamp remap and encode. An encode submission
// failure breaks the drain for the current packet.
func (self *Session) drainDecoder() {
	for {
		ok, err := self.Decoder.Receive(&self.frame)
		if err != nil {
			self.log.Error("decode receive failed, err: ", err)
			return
		}
		if !ok {
			return
		}
		if !self.processFrame() {
			return
		}
	}
}

// processFrame runs the filter chain over the decoded frame, advances the
// frame counter, remaps the presentation timestamp from the input stream
// clock to the encoder clock and submits the frame for encoding.
func (self *Session) processFrame() bool {
	if self.Filters != nil {
		if err := self.Filters.ModifyFrame(&self.frame, self.Progress.FrameCount, self.Progress.TotalFrames); err != nil {
			self.log.Error("frame filter failed, err: ", err)
		}
	}
	self.Progress.FrameCount++

	self.frame.Pts = self.Stream.TimeBase.Rescale(self.frame.Pts, self.Encoder.TimeBase())
	self.frame.TimeBase = self.Encoder.TimeBase()

	if err := self.Encoder.Submit(&self.frame); err != nil {
		self.log.Error("encode submit failed, err: ", err)
		return false
	}

	self.drainEncoder()
	return true
}

// drainEncoder writes out every packet the encoder has ready.
func (self *Session) drainEncoder() {
	for {
		var pkt av.Packet
		ok, err := self.Encoder.Receive(&pkt)
		if err != nil {
			self.log.Error("encode receive failed, err: ", err)
			return
		}
		if !ok {
			return
		}
		self.writePacket(pkt)
	}
}

// writePacket rescales the packet timestamps from the encoder clock to
// the output stream clock, tags it with the output stream index and
// hands it to the interleaving writer. The packet is freed right after
// the write returns, success or not.
func (self *Session) writePacket(pkt av.Packet) {
	enctb := self.Encoder.TimeBase()
	pkt.Pts = enctb.Rescale(pkt.Pts, self.OutTimeBase)
	pkt.Dts = enctb.Rescale(pkt.Dts, self.OutTimeBase)
	pkt.TimeBase = self.OutTimeBase
	pkt.Idx = self.OutIdx

	err := self.Muxer.WritePacket(pkt)
	pkt.Free()
	if err != nil {
		self.log.Error("mux write failed, err: ", err)
	}
}

// flush signals end of stream to the decoder, pushes its buffered frames
// through the normal path, then drains the encoder the same way.
func (self *Session) flush() {
	if err := self.Decoder.Flush(); err != nil {
		self.log.Error("decoder flush failed, err: ", err)
	} else {
		self.drainDecoder()
	}

	if err := self.Encoder.Flush(); err != nil {
		self.log.Error("encoder flush failed, err: ", err)
		return
	}
	self.drainEncoder()
}
