package capture

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/wiresentry/internal/core"
)

type linkReader interface {
	packetReader
	LinkType() layers.LinkType
}

// File replays a pcap or pcapng file once, then goes idle.
type File struct {
	path string

	f    *os.File
	r    linkReader
	loop readLoop
}

func NewFile(path string) *File {
	return &File{path: path, loop: readLoop{name: "file"}}
}

func (s *File) Name() string { return "file" }

func (s *File) Open() error {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", s.path, core.ErrDeviceNotFound)
		}
		return fmt.Errorf("open capture file: %w", err)
	}

	var r linkReader
	if strings.HasSuffix(s.path, ".pcapng") {
		r, err = pcapgo.NewNgReader(bufio.NewReader(f), pcapgo.DefaultNgReaderOptions)
	} else {
		r, err = pcapgo.NewReader(bufio.NewReader(f))
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("read capture file header: %w", err)
	}

	s.f, s.r = f, r
	return nil
}

func (s *File) Start(handler func(Frame)) error {
	if s.r == nil {
		return core.ErrCaptureClosed
	}
	s.loop.start(s.r, s.r.LinkType(), nil, handler)
	return nil
}

func (s *File) Stop() { s.loop.halt() }

// Done reports whether the whole file has been replayed.
func (s *File) Done() bool { return s.r != nil && s.loop.Done() }

func (s *File) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f, s.r = nil, nil
	return err
}

func (s *File) Stats() Stats {
	return Stats{Received: s.loop.received.Load()}
}
