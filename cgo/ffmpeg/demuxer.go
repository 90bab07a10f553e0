package ffmpeg

import (
	"errors"
	"fmt"
	"io"

	"github.com/asticode/go-astiav"
	"github.com/sirupsen/logrus"

	"github.com/tyrese/barburn/av"
)

// Demuxer reads compressed packets out of any container FFmpeg can probe.
type Demuxer struct {
	fc      *astiav.FormatContext
	streams []av.StreamInfo
}

// OpenDemuxer opens uri and probes its streams.
func OpenDemuxer(uri string) (demuxer *Demuxer, err error) {
	fc := astiav.AllocFormatContext()
	if fc == nil {
		err = fmt.Errorf("ffmpeg: alloc format context failed")
		return
	}

	if err = fc.OpenInput(uri, nil, nil); err != nil {
		fc.Free()
		err = fmt.Errorf("ffmpeg: open input %s failed: %w", uri, err)
		return
	}
	if err = fc.FindStreamInfo(nil); err != nil {
		fc.CloseInput()
		fc.Free()
		err = fmt.Errorf("ffmpeg: find stream info failed: %w", err)
		return
	}

	demuxer = &Demuxer{fc: fc}
	for _, stream := range fc.Streams() {
		cp := stream.CodecParameters()
		info := av.StreamInfo{
			Idx:         stream.Index(),
			Type:        mediaType(cp.MediaType()),
			CodecName:   cp.CodecID().Name(),
			Width:       cp.Width(),
			Height:      cp.Height(),
			TimeBase:    rational(stream.TimeBase()),
			NumFrames:   stream.NbFrames(),
			CodecParams: cp,
		}
		demuxer.streams = append(demuxer.streams, info)

		logrus.Infof("ffmpeg: stream %d: %v %s %dx%d tb %v frames %d",
			info.Idx, info.Type, info.CodecName, info.Width, info.Height, info.TimeBase, info.NumFrames)
	}
	return
}

func (self *Demuxer) Streams() ([]av.StreamInfo, error) {
	return self.streams, nil
}

// ReadPacket returns the next packet in the container, io.EOF at the end
// of the input. The packet's release hook frees the underlying buffer.
func (self *Demuxer) ReadPacket() (pkt av.Packet, err error) {
	p := astiav.AllocPacket()
	if err = self.fc.ReadFrame(p); err != nil {
		p.Free()
		if errors.Is(err, astiav.ErrEof) {
			err = io.EOF
		}
		return
	}

	idx := p.StreamIndex()
	pkt = av.Packet{
		Idx:        idx,
		IsKeyFrame: p.Flags().Has(astiav.PacketFlagKey),
		Pts:        p.Pts(),
		Dts:        p.Dts(),
		Data:       p.Data(),
	}
	if idx >= 0 && idx < len(self.streams) {
		pkt.TimeBase = self.streams[idx].TimeBase
	}
	pkt.SetFree(func() { p.Free() })
	return
}

func (self *Demuxer) Close() error {
	self.fc.CloseInput()
	self.fc.Free()
	return nil
}
