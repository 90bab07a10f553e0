
// Command barburn transcodes a video file while burning a progress bar
// into the bottom of every frame:
//
//	barburn <input video> <output video>
//
// The output container format follows the output path's extension; codec
// identity and dimensions are copied from the input's video stream.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/tyrese/barburn/av"
	"github.com/tyrese/barburn/av/avutil"
	"github.com/tyrese/barburn/cgo/ffmpeg"
	"github.com/tyrese/barburn/format"
	"github.com/tyrese/barburn/transcode"
)

func init() {
	format.RegisterAll()
}

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s <input video> <output video>\n", os.Args[0])
		os.Exit(1)
	}
	input := os.Args[1]
	output := os.Args[2]

	demuxer, err := avutil.Open(input)
	if err != nil {
		logrus.Fatal("open input failed, err: ", err)
	}
	defer demuxer.Close()

	streams, err := demuxer.Streams()
	if err != nil {
		logrus.Fatal("probe streams failed, err: ", err)
	}
	stream, err := av.FindVideoStream(streams)
	if err != nil {
		logrus.Fatal(err)
	}

	decoder, err := ffmpeg.NewVideoDecoder(stream)
	if err != nil {
		logrus.Fatal("open decoder failed, err: ", err)
	}
	defer decoder.Close()

	encoder, err := ffmpeg.NewVideoEncoder(stream)
	if err != nil {
		logrus.Fatal("open encoder failed, err: ", err)
	}
	defer encoder.Close()

	muxer, err := avutil.Create(output)
	if err != nil {
		logrus.Fatal("create output failed, err: ", err)
	}
	defer muxer.Close()

	if err = muxer.WriteHeader([]av.StreamInfo{stream}); err != nil {
		logrus.Fatal("write header failed, err: ", err)
	}

	// the muxer owns the output stream's final index and time base
	outIdx := stream.Idx
	outTimeBase := stream.TimeBase
	type outStreams interface {
		Streams() ([]av.StreamInfo, error)
	}
	if fn, ok := muxer.(outStreams); ok {
		outs, err := fn.Streams()
		if err != nil || len(outs) == 0 {
			logrus.Fatal("output streams unavailable, err: ", err)
		}
		outIdx = outs[0].Idx
		outTimeBase = outs[0].TimeBase
	}

	session := transcode.NewSession(demuxer, decoder, encoder, muxer, stream, outIdx, outTimeBase)
	if err = session.Run(); err != nil {
		logrus.Fatal("transcode failed, err: ", err)
	}

	if err = muxer.WriteTrailer(); err != nil {
		logrus.Fatal("write trailer failed, err: ", err)
	}
}
