
// Package format registers the container handlers used by avutil.Open and
// avutil.Create.
package format

import (
	"github.com/tyrese/barburn/av/avutil"
	"github.com/tyrese/barburn/cgo/ffmpeg"
)

func RegisterAll() {
	avutil.AddHandler(ffmpeg.Handler)
}
