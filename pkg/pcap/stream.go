package pcap

import (
	"bufio"
	"io"
	"iter"

	"Go2TraceSpectra/internal/engine/protocol"
)

// Stream detects the encoding of r and returns its parser outcomes.
// Text traces are parsed line by line; captures are decoded frame by frame.
// Passing a non-empty format skips detection.
func Stream(r io.Reader, format Format) (Format, iter.Seq2[protocol.ParseResult, error], error) {
	br := bufio.NewReader(r)
	if format == "" {
		format = Detect(br)
	}
	if format == FormatText {
		return format, textResults(br), nil
	}
	reader, err := NewReader(br)
	if err != nil {
		return format, nil, err
	}
	return reader.Format(), reader.Results(), nil
}

func textResults(r io.Reader) iter.Seq2[protocol.ParseResult, error] {
	return func(yield func(protocol.ParseResult, error) bool) {
		for line, err := range Lines(r) {
			if err != nil {
				yield(protocol.ParseResult{}, err)
				return
			}
			if !yield(protocol.ParseLine(line), nil) {
				return
			}
		}
	}
}
