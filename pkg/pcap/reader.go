// Package pcap acquires traces for the engine: text summaries as produced by
// tcpdump -nn, and binary pcap or pcapng capture files.
package pcap

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"

	"Go2TraceSpectra/internal/core/model"
	"Go2TraceSpectra/internal/engine/protocol"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Format is the encoding of a trace file.
type Format string

const (
	FormatText   Format = "text"
	FormatPcap   Format = "pcap"
	FormatPcapNG Format = "pcapng"
)

const pcapNGMagic = 0x0a0d0d0a

var pcapMagics = map[uint32]bool{
	0xa1b2c3d4: true, 0xd4c3b2a1: true, // microsecond
	0xa1b23c4d: true, 0x4d3cb2a1: true, // nanosecond
}

// Detect inspects the first bytes of a buffered stream without consuming them.
func Detect(r *bufio.Reader) Format {
	head, err := r.Peek(4)
	if err != nil {
		return FormatText
	}
	magic := binary.LittleEndian.Uint32(head)
	switch {
	case magic == pcapNGMagic:
		return FormatPcapNG
	case pcapMagics[magic]:
		return FormatPcap
	}
	return FormatText
}

// packetSource is implemented by both pcapgo readers.
type packetSource interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Reader decodes frames from a pcap or pcapng stream.
type Reader struct {
	closer io.Closer
	src    packetSource
	format Format
}

// NewReader creates a frame reader over r, detecting the capture format.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	switch format := Detect(br); format {
	case FormatPcap:
		src, err := pcapgo.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", model.ErrUpstreamRead, err)
		}
		return &Reader{src: src, format: format}, nil
	case FormatPcapNG:
		src, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", model.ErrUpstreamRead, err)
		}
		return &Reader{src: src, format: format}, nil
	}
	return nil, fmt.Errorf("%w: not a pcap or pcapng stream", model.ErrUpstreamRead)
}

// Open opens a capture file.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrUpstreamRead, err)
	}
	r, err := NewReader(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	r.closer = file
	return r, nil
}

// Format returns the detected capture format.
func (r *Reader) Format() Format {
	return r.format
}

// LinkType returns the link type of the capture.
func (r *Reader) LinkType() layers.LinkType {
	return r.src.LinkType()
}

// Results decodes every frame into a parser outcome. The sequence ends at
// the end of the capture; a truncated or corrupt capture yields one error
// and ends.
func (r *Reader) Results() iter.Seq2[protocol.ParseResult, error] {
	return func(yield func(protocol.ParseResult, error) bool) {
		linkType := r.src.LinkType()
		for {
			data, ci, err := r.src.ReadPacketData()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(protocol.ParseResult{}, err)
				return
			}
			if !yield(protocol.ParseFrame(data, linkType, ci), nil) {
				return
			}
		}
	}
}

// Close closes the underlying file, if the reader opened one.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
