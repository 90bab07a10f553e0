package ffmpeg

import (
	"fmt"

	"github.com/asticode/go-astiav"

	"github.com/tyrese/barburn/av"
)

// VideoDecoder wraps an FFmpeg decoder and converts every decoded picture
// to the pipeline's packed 3-byte BGR layout.
type VideoDecoder struct {
	cc       *astiav.CodecContext
	pkt      *astiav.Packet
	srcFrame *astiav.Frame
	bgrFrame *astiav.Frame
	ssc      *astiav.SoftwareScaleContext
}

// NewVideoDecoder finds and opens the decoder for the stream's codec.
func NewVideoDecoder(stream av.StreamInfo) (dec *VideoDecoder, err error) {
	cp, ok := stream.CodecParams.(*astiav.CodecParameters)
	if !ok {
		err = fmt.Errorf("ffmpeg: stream %d has no codec parameters", stream.Idx)
		return
	}

	codec := astiav.FindDecoder(cp.CodecID())
	if codec == nil {
		err = fmt.Errorf("ffmpeg: no decoder for codec %s", cp.CodecID().Name())
		return
	}
	cc := astiav.AllocCodecContext(codec)
	if cc == nil {
		err = fmt.Errorf("ffmpeg: alloc codec context failed")
		return
	}
	if err = cc.FromCodecParameters(cp); err != nil {
		cc.Free()
		err = fmt.Errorf("ffmpeg: copy codec parameters failed: %w", err)
		return
	}
	if err = cc.Open(codec, nil); err != nil {
		cc.Free()
		err = fmt.Errorf("ffmpeg: open decoder failed: %w", err)
		return
	}

	dec = &VideoDecoder{
		cc:       cc,
		pkt:      astiav.AllocPacket(),
		srcFrame: astiav.AllocFrame(),
		bgrFrame: astiav.AllocFrame(),
	}
	return
}

// Submit feeds one compressed packet. The caller keeps ownership of pkt
// and may free it as soon as Submit returns.
func (self *VideoDecoder) Submit(pkt av.Packet) (err error) {
	if err = self.pkt.FromData(pkt.Data); err != nil {
		return fmt.Errorf("ffmpeg: packet from data failed: %w", err)
	}
	self.pkt.SetPts(pkt.Pts)
	self.pkt.SetDts(pkt.Dts)

	err = self.cc.SendPacket(self.pkt)
	self.pkt.Unref()
	if err != nil {
		err = fmt.Errorf("ffmpeg: send packet failed: %w", err)
	}
	return
}

// Receive fills the caller's frame with the next decoded picture in
// packed BGR, tight rows. Returns false when the decoder wants more
// input (or is fully drained after Flush).
func (self *VideoDecoder) Receive(frame *av.VideoFrame) (ok bool, err error) {
	if err = self.cc.ReceiveFrame(self.srcFrame); err != nil {
		if drained(err) {
			err = nil
			return
		}
		err = fmt.Errorf("ffmpeg: receive frame failed: %w", err)
		return
	}

	w := self.srcFrame.Width()
	h := self.srcFrame.Height()
	if self.ssc == nil {
		if self.ssc, err = astiav.CreateSoftwareScaleContext(
			w, h, self.srcFrame.PixelFormat(),
			w, h, astiav.PixelFormatBgr24,
			astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBilinear),
		); err != nil {
			self.srcFrame.Unref()
			err = fmt.Errorf("ffmpeg: create scale context failed: %w", err)
			return
		}
	}
	if err = self.ssc.ScaleFrame(self.srcFrame, self.bgrFrame); err != nil {
		self.srcFrame.Unref()
		err = fmt.Errorf("ffmpeg: scale frame failed: %w", err)
		return
	}

	var data []byte
	if data, err = self.bgrFrame.Data().Bytes(1); err != nil {
		self.srcFrame.Unref()
		err = fmt.Errorf("ffmpeg: frame bytes failed: %w", err)
		return
	}
	frame.Alloc(w, h, 0)
	copy(frame.Data, data)
	frame.Pts = self.srcFrame.Pts()

	self.srcFrame.Unref()
	ok = true
	return
}

// Flush enters drain mode; Receive keeps yielding buffered pictures
// until it returns false.
func (self *VideoDecoder) Flush() error {
	if err := self.cc.SendPacket(nil); err != nil && !drained(err) {
		return fmt.Errorf("ffmpeg: decoder flush failed: %w", err)
	}
	return nil
}

func (self *VideoDecoder) Close() {
	if self.ssc != nil {
		self.ssc.Free()
	}
	self.bgrFrame.Free()
	self.srcFrame.Free()
	self.pkt.Free()
	self.cc.Free()
}

// VideoEncoder wraps an FFmpeg encoder of the same codec as the input
// stream, clocked at 1/30 like the classic tool.
type VideoEncoder struct {
	cc       *astiav.CodecContext
	bgrFrame *astiav.Frame
	encFrame *astiav.Frame
	ssc      *astiav.SoftwareScaleContext
	tb       av.Rational
	packed   []byte
}

// EncoderTimeBase is the fixed internal clock of the encoder.
var EncoderTimeBase = av.Rational{Num: 1, Den: 30}

// NewVideoEncoder opens an encoder with the stream's codec and copied
// parameters, so the output stream mirrors the input's codec identity
// and dimensions.
func NewVideoEncoder(stream av.StreamInfo) (enc *VideoEncoder, err error) {
	cp, ok := stream.CodecParams.(*astiav.CodecParameters)
	if !ok {
		err = fmt.Errorf("ffmpeg: stream %d has no codec parameters", stream.Idx)
		return
	}

	codec := astiav.FindEncoder(cp.CodecID())
	if codec == nil {
		err = fmt.Errorf("ffmpeg: no encoder for codec %s", cp.CodecID().Name())
		return
	}
	cc := astiav.AllocCodecContext(codec)
	if cc == nil {
		err = fmt.Errorf("ffmpeg: alloc codec context failed")
		return
	}
	if err = cc.FromCodecParameters(cp); err != nil {
		cc.Free()
		err = fmt.Errorf("ffmpeg: copy codec parameters failed: %w", err)
		return
	}
	cc.SetTimeBase(astiRational(EncoderTimeBase))
	cc.SetFramerate(astiav.NewRational(EncoderTimeBase.Den, EncoderTimeBase.Num))
	if err = cc.Open(codec, nil); err != nil {
		cc.Free()
		err = fmt.Errorf("ffmpeg: open encoder failed: %w", err)
		return
	}

	enc = &VideoEncoder{
		cc:       cc,
		bgrFrame: astiav.AllocFrame(),
		encFrame: astiav.AllocFrame(),
		tb:       EncoderTimeBase,
	}
	return
}

func (self *VideoEncoder) TimeBase() av.Rational {
	return self.tb
}

// Submit converts the packed BGR frame back to the encoder's pixel
// format and feeds it. frame.Pts must already be in TimeBase() units.
func (self *VideoEncoder) Submit(frame *av.VideoFrame) (err error) {
	if self.bgrFrame.Width() != frame.Width || self.bgrFrame.Height() != frame.Height {
		self.bgrFrame.Unref()
		self.bgrFrame.SetWidth(frame.Width)
		self.bgrFrame.SetHeight(frame.Height)
		self.bgrFrame.SetPixelFormat(astiav.PixelFormatBgr24)
		if err = self.bgrFrame.AllocBuffer(1); err != nil {
			return fmt.Errorf("ffmpeg: alloc frame buffer failed: %w", err)
		}
	}

	if err = self.bgrFrame.Data().SetBytes(self.tightRows(frame), 1); err != nil {
		return fmt.Errorf("ffmpeg: set frame bytes failed: %w", err)
	}

	if self.ssc == nil {
		if self.ssc, err = astiav.CreateSoftwareScaleContext(
			frame.Width, frame.Height, astiav.PixelFormatBgr24,
			frame.Width, frame.Height, self.cc.PixelFormat(),
			astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBilinear),
		); err != nil {
			return fmt.Errorf("ffmpeg: create scale context failed: %w", err)
		}
	}
	if err = self.ssc.ScaleFrame(self.bgrFrame, self.encFrame); err != nil {
		return fmt.Errorf("ffmpeg: scale frame failed: %w", err)
	}
	self.encFrame.SetPts(frame.Pts)

	if err = self.cc.SendFrame(self.encFrame); err != nil {
		return fmt.Errorf("ffmpeg: send frame failed: %w", err)
	}
	return
}

// tightRows returns the frame pixels with stride padding dropped, which
// is what SetBytes expects for align 1.
func (self *VideoEncoder) tightRows(frame *av.VideoFrame) []byte {
	rowlen := frame.Width * 3
	if frame.Stride == rowlen {
		return frame.Data
	}
	size := rowlen * frame.Height
	if cap(self.packed) < size {
		self.packed = make([]byte, size)
	}
	self.packed = self.packed[:size]
	for i := 0; i < frame.Height; i++ {
		copy(self.packed[i*rowlen:(i+1)*rowlen], frame.Data[i*frame.Stride:i*frame.Stride+rowlen])
	}
	return self.packed
}

// Receive fetches the next encoded packet, false when the encoder has
// nothing ready. The packet's release hook frees the underlying buffer.
func (self *VideoEncoder) Receive(pkt *av.Packet) (ok bool, err error) {
	p := astiav.AllocPacket()
	if err = self.cc.ReceivePacket(p); err != nil {
		p.Free()
		if drained(err) {
			err = nil
			return
		}
		err = fmt.Errorf("ffmpeg: receive packet failed: %w", err)
		return
	}

	*pkt = av.Packet{
		IsKeyFrame: p.Flags().Has(astiav.PacketFlagKey),
		Pts:        p.Pts(),
		Dts:        p.Dts(),
		TimeBase:   self.tb,
		Data:       p.Data(),
	}
	pkt.SetFree(func() { p.Free() })
	ok = true
	return
}

// Flush enters drain mode; Receive keeps yielding buffered packets until
// it returns false.
func (self *VideoEncoder) Flush() error {
	if err := self.cc.SendFrame(nil); err != nil && !drained(err) {
		return fmt.Errorf("ffmpeg: encoder flush failed: %w", err)
	}
	return nil
}

func (self *VideoEncoder) Close() {
	if self.ssc != nil {
		self.ssc.Free()
	}
	self.encFrame.Free()
	self.bgrFrame.Free()
	self.cc.Free()
}
