
// Package avutil opens demuxers and creates muxers by dispatching on the
// URL scheme or the path extension of the target, through a registry of
// format handlers.
package avutil

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path"

	"github.com/tyrese/barburn/av"
)

type HandlerDemuxer struct {
	av.Demuxer
	r io.ReadCloser
}

func (self *HandlerDemuxer) Close() error {
	return self.r.Close()
}

// HandlerMuxer guards the header/trailer steps so Close can always be
// deferred: the trailer is written once, on the first of WriteTrailer or
// Close.
type HandlerMuxer struct {
	av.Muxer
	w     io.WriteCloser
	stage int
}

func (self *HandlerMuxer) WriteHeader(streams []av.StreamInfo) (err error) {
	if self.stage == 0 {
		if err = self.Muxer.WriteHeader(streams); err != nil {
			return
		}
		self.stage++
	}
	return
}

func (self *HandlerMuxer) WriteTrailer() (err error) {
	if self.stage == 1 {
		self.stage++
		if err = self.Muxer.WriteTrailer(); err != nil {
			return
		}
	}
	return
}

func (self *HandlerMuxer) Close() (err error) {
	if err = self.WriteTrailer(); err != nil {
		return
	}
	return self.w.Close()
}

type RegisterHandler struct {
	Ext           string
	ReaderDemuxer func(io.Reader) av.Demuxer
	WriterMuxer   func(io.Writer) av.Muxer
	UrlDemuxer    func(string) (bool, av.DemuxCloser, error)
	UrlMuxer      func(string) (bool, av.MuxCloser, error)
}

type Handlers struct {
	handlers []RegisterHandler
}

func (self *Handlers) Add(fn func(*RegisterHandler)) {
	handler := &RegisterHandler{}
	fn(handler)
	self.handlers = append(self.handlers, *handler)
}

func parseExt(uri string) string {
	if u, _ := url.Parse(uri); u != nil && u.Scheme != "" {
		return path.Ext(u.Path)
	}
	return path.Ext(uri)
}

// Open finds a handler for uri and returns a demuxer over it. Url
// handlers get the first shot; otherwise the extension picks a
// reader-based handler over the opened file.
func (self *Handlers) Open(uri string) (demuxer av.DemuxCloser, err error) {
	for _, handler := range self.handlers {
		if handler.UrlDemuxer != nil {
			var ok bool
			if ok, demuxer, err = handler.UrlDemuxer(uri); ok {
				return
			}
		}
	}

	if ext := parseExt(uri); ext != "" {
		for _, handler := range self.handlers {
			if handler.Ext == ext && handler.ReaderDemuxer != nil {
				var r io.ReadCloser
				if r, err = os.Open(uri); err != nil {
					return
				}
				demuxer = &HandlerDemuxer{
					Demuxer: handler.ReaderDemuxer(r),
					r:       r,
				}
				return
			}
		}
	}

	err = fmt.Errorf("avutil: open %s failed", uri)
	return
}

func (self *Handlers) Create(uri string) (muxer av.MuxCloser, err error) {
	_, muxer, err = self.FindCreate(uri)
	return
}

// FindCreate picks the muxer for uri the same way Open picks demuxers;
// the output container format follows entirely from the uri extension.
func (self *Handlers) FindCreate(uri string) (handler RegisterHandler, muxer av.MuxCloser, err error) {
	for _, handler = range self.handlers {
		if handler.UrlMuxer != nil {
			var ok bool
			if ok, muxer, err = handler.UrlMuxer(uri); ok {
				return
			}
		}
	}

	if ext := parseExt(uri); ext != "" {
		for _, handler = range self.handlers {
			if handler.Ext == ext && handler.WriterMuxer != nil {
				var w io.WriteCloser
				if w, err = os.Create(uri); err != nil {
					return
				}
				muxer = &HandlerMuxer{
					Muxer: handler.WriterMuxer(w),
					w:     w,
				}
				return
			}
		}
	}

	err = fmt.Errorf("avutil: create muxer %s failed", uri)
	return
}

var DefaultHandlers = &Handlers{}

func AddHandler(fn func(*RegisterHandler)) {
	DefaultHandlers.Add(fn)
}

func Open(url string) (demuxer av.DemuxCloser, err error) {
	return DefaultHandlers.Open(url)
}

func Create(url string) (muxer av.MuxCloser, err error) {
	return DefaultHandlers.Create(url)
}
