package pcap

import (
	"bufio"
	"errors"
	"io"
	"iter"
	"strings"
)

// maxLineSize bounds a single trace line; tcpdump -X style dumps can be long.
const maxLineSize = 1 << 20

// Lines yields the lines of a text trace. A line longer than maxLineSize is
// discarded and yielded as an empty line. A read error is yielded once and
// ends the sequence.
func Lines(r io.Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		br := bufio.NewReaderSize(r, 64*1024)
		var buf []byte
		oversized := false
		for {
			chunk, err := br.ReadSlice('\n')
			if !oversized {
				if len(buf)+len(chunk) > maxLineSize+1 {
					oversized = true
					buf = buf[:0]
				} else {
					buf = append(buf, chunk...)
				}
			}
			if errors.Is(err, bufio.ErrBufferFull) {
				continue
			}
			if err != nil && !errors.Is(err, io.EOF) {
				yield("", err)
				return
			}
			if err != nil && len(buf) == 0 && !oversized {
				return
			}

			line := ""
			if !oversized {
				line = strings.TrimRight(strings.TrimSuffix(string(buf), "\n"), "\r")
			}
			if !yield(line, nil) || err != nil {
				return
			}
			buf = buf[:0]
			oversized = false
		}
	}
}
