package ffmpeg

import (
	"fmt"

	"github.com/asticode/go-astiav"

	"github.com/tyrese/barburn/av"
)

// Muxer writes compressed packets into an output container whose format
// FFmpeg guesses from the path extension.
type Muxer struct {
	fc      *astiav.FormatContext
	ioc     *astiav.IOContext
	uri     string
	streams []av.StreamInfo
	pkt     *astiav.Packet
	stage   int
}

// CreateMuxer allocates the output context for uri. Nothing touches the
// filesystem until WriteHeader.
func CreateMuxer(uri string) (muxer *Muxer, err error) {
	fc, err := astiav.AllocOutputFormatContext(nil, "", uri)
	if err != nil {
		err = fmt.Errorf("ffmpeg: create output context %s failed: %w", uri, err)
		return
	}
	muxer = &Muxer{fc: fc, uri: uri, pkt: astiav.AllocPacket()}
	return
}

// WriteHeader adds one output stream per input stream descriptor, copying
// codec parameters, opens the output file when the format needs one and
// writes the container header. The output stream time bases are final
// only after this call; read them back through Streams.
func (self *Muxer) WriteHeader(streams []av.StreamInfo) (err error) {
	if self.stage != 0 {
		return
	}

	for _, info := range streams {
		stream := self.fc.NewStream(nil)
		if stream == nil {
			err = fmt.Errorf("ffmpeg: new output stream failed")
			return
		}
		cp, ok := info.CodecParams.(*astiav.CodecParameters)
		if !ok {
			err = fmt.Errorf("ffmpeg: stream %d has no codec parameters", info.Idx)
			return
		}
		if err = cp.Copy(stream.CodecParameters()); err != nil {
			err = fmt.Errorf("ffmpeg: copy codec parameters failed: %w", err)
			return
		}
		stream.SetTimeBase(astiRational(info.TimeBase))
	}

	if !self.fc.OutputFormat().Flags().Has(astiav.IOFormatFlagNofile) {
		if self.ioc, err = astiav.OpenIOContext(self.uri, astiav.NewIOContextFlags(astiav.IOContextFlagWrite), nil, nil); err != nil {
			err = fmt.Errorf("ffmpeg: open output %s failed: %w", self.uri, err)
			return
		}
		self.fc.SetPb(self.ioc)
	}

	if err = self.fc.WriteHeader(nil); err != nil {
		err = fmt.Errorf("ffmpeg: write header failed: %w", err)
		return
	}
	self.stage = 1

	self.streams = self.streams[:0]
	for _, stream := range self.fc.Streams() {
		cp := stream.CodecParameters()
		self.streams = append(self.streams, av.StreamInfo{
			Idx:         stream.Index(),
			Type:        mediaType(cp.MediaType()),
			CodecName:   cp.CodecID().Name(),
			Width:       cp.Width(),
			Height:      cp.Height(),
			TimeBase:    rational(stream.TimeBase()),
			CodecParams: cp,
		})
	}
	return
}

// Streams returns the output stream descriptors. Valid after WriteHeader.
func (self *Muxer) Streams() ([]av.StreamInfo, error) {
	if self.stage == 0 {
		return nil, fmt.Errorf("ffmpeg: muxer header not written yet")
	}
	return self.streams, nil
}

// WritePacket hands one packet to the interleaving writer. Timestamps
// must already be in the destination stream's time base.
func (self *Muxer) WritePacket(pkt av.Packet) (err error) {
	if err = self.pkt.FromData(pkt.Data); err != nil {
		err = fmt.Errorf("ffmpeg: packet from data failed: %w", err)
		return
	}
	self.pkt.SetStreamIndex(pkt.Idx)
	self.pkt.SetPts(pkt.Pts)
	self.pkt.SetDts(pkt.Dts)

	err = self.fc.WriteInterleavedFrame(self.pkt)
	self.pkt.Unref()
	if err != nil {
		err = fmt.Errorf("ffmpeg: interleaved write failed: %w", err)
	}
	return
}

func (self *Muxer) WriteTrailer() (err error) {
	if self.stage == 1 {
		self.stage = 2
		if err = self.fc.WriteTrailer(); err != nil {
			err = fmt.Errorf("ffmpeg: write trailer failed: %w", err)
			return
		}
	}
	return
}

func (self *Muxer) Close() (err error) {
	err = self.WriteTrailer()
	if self.ioc != nil {
		self.ioc.Close()
		self.ioc = nil
	}
	self.pkt.Free()
	self.fc.Free()
	return
}
