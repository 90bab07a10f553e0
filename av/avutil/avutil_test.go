package avutil

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/tyrese/barburn/av"
)

type recMuxer struct {
	headers  int
	trailers int
}

func (self *recMuxer) WriteHeader(streams []av.StreamInfo) error { self.headers++; return nil }
func (self *recMuxer) WritePacket(pkt av.Packet) error           { return nil }
func (self *recMuxer) WriteTrailer() error                       { self.trailers++; return nil }

type recDemuxer struct{}

func (self *recDemuxer) Streams() ([]av.StreamInfo, error) { return nil, nil }
func (self *recDemuxer) ReadPacket() (av.Packet, error)    { return av.Packet{}, io.EOF }

func TestCreateDispatchByExt(t *testing.T) {
	handlers := &Handlers{}
	mux := &recMuxer{}
	handlers.Add(func(h *RegisterHandler) {
		h.Ext = ".rec"
		h.WriterMuxer = func(w io.Writer) av.Muxer { return mux }
	})

	out := filepath.Join(t.TempDir(), "out.rec")
	muxer, err := handlers.Create(out)
	if err != nil {
		t.Fatal(err)
	}
	if err = muxer.WriteHeader(nil); err != nil {
		t.Fatal(err)
	}
	if err = muxer.WriteTrailer(); err != nil {
		t.Fatal(err)
	}
	// Close after an explicit WriteTrailer must not write it again
	if err = muxer.Close(); err != nil {
		t.Fatal(err)
	}
	if mux.headers != 1 || mux.trailers != 1 {
		t.Errorf("headers=%d trailers=%d, want 1 and 1", mux.headers, mux.trailers)
	}
	if _, err = os.Stat(out); err != nil {
		t.Errorf("output file missing: %v", err)
	}
}

func TestCreateUnknownExt(t *testing.T) {
	handlers := &Handlers{}
	if _, err := handlers.Create(filepath.Join(t.TempDir(), "out.xyz")); err == nil {
		t.Errorf("want error for unhandled extension")
	}
}

func TestOpenDispatch(t *testing.T) {
	handlers := &Handlers{}
	handlers.Add(func(h *RegisterHandler) {
		h.Ext = ".rec"
		h.ReaderDemuxer = func(r io.Reader) av.Demuxer { return &recDemuxer{} }
	})

	in := filepath.Join(t.TempDir(), "in.rec")
	if err := os.WriteFile(in, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	demuxer, err := handlers.Open(in)
	if err != nil {
		t.Fatal(err)
	}
	if _, err = demuxer.ReadPacket(); err != io.EOF {
		t.Errorf("want io.EOF from the fake demuxer, got %v", err)
	}
	if err = demuxer.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err = handlers.Open(filepath.Join(t.TempDir(), "missing.xyz")); err == nil {
		t.Errorf("want error for unhandled extension")
	}
}

func TestUrlHandlerWins(t *testing.T) {
	handlers := &Handlers{}
	urlHit := false
	handlers.Add(func(h *RegisterHandler) {
		h.UrlDemuxer = func(uri string) (bool, av.DemuxCloser, error) {
			urlHit = true
			return false, nil, nil
		}
	})
	handlers.Add(func(h *RegisterHandler) {
		h.Ext = ".rec"
		h.ReaderDemuxer = func(r io.Reader) av.Demuxer { return &recDemuxer{} }
	})

	in := filepath.Join(t.TempDir(), "in.rec")
	if err := os.WriteFile(in, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := handlers.Open(in); err != nil {
		t.Fatal(err)
	}
	if !urlHit {
		t.Errorf("url handlers must be consulted before extension handlers")
	}
}
