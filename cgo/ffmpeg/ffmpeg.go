
// Package ffmpeg implements the container and codec collaborators of the
// transcode pipeline on top of FFmpeg, through github.com/asticode/go-astiav.
// It registers itself as the catch-all url handler for avutil.Open and
// avutil.Create, so any container FFmpeg can read or write works, with the
// output format picked from the output path's extension.
package ffmpeg

import (
	"errors"

	"github.com/asticode/go-astiav"

	"github.com/tyrese/barburn/av"
	"github.com/tyrese/barburn/av/avutil"
)

// Handler registers the FFmpeg demuxer and muxer as url handlers.
func Handler(h *avutil.RegisterHandler) {
	h.UrlDemuxer = func(uri string) (bool, av.DemuxCloser, error) {
		demuxer, err := OpenDemuxer(uri)
		return true, demuxer, err
	}
	h.UrlMuxer = func(uri string) (bool, av.MuxCloser, error) {
		muxer, err := CreateMuxer(uri)
		return true, muxer, err
	}
}

func rational(r astiav.Rational) av.Rational {
	return av.Rational{Num: r.Num(), Den: r.Den()}
}

func astiRational(r av.Rational) astiav.Rational {
	return astiav.NewRational(r.Num, r.Den)
}

func mediaType(t astiav.MediaType) av.CodecType {
	switch t {
	case astiav.MediaTypeVideo:
		return av.VIDEO
	case astiav.MediaTypeAudio:
		return av.AUDIO
	}
	return av.DATA
}

// drained reports errors that mean "no output available now" on the
// avcodec receive side: EAGAIN wants more input, EOF means fully flushed.
func drained(err error) bool {
	return errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof)
}
