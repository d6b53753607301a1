package protocol

import (
	"strconv"
	"strings"

	"Go2TraceSpectra/internal/core/model"
)

// ParseStatus tags the outcome of parsing one line or frame.
type ParseStatus int

const (
	// Skipped means the input carried no packet summary. It is not an error.
	Skipped ParseStatus = iota
	// Matched means Record holds a parsed packet.
	Matched
)

// ParseResult is either Matched with a record or Skipped with a reason.
type ParseResult struct {
	Status ParseStatus
	Record model.PacketRecord
	Reason string
}

// IsMatched reports whether the result carries a record.
func (r ParseResult) IsMatched() bool {
	return r.Status == Matched
}

func skipped(reason string) ParseResult {
	return ParseResult{Status: Skipped, Reason: reason}
}

// ParseLine extracts a packet record from one line of tcpdump -nn output:
//
//	<time> IP <src>.<port> > <dst>.<port>: [Flags [<code>], ...] [length <N>]
//
// The structural pattern may start at any token, so date prefixes and
// interface annotations are tolerated. Lines without it are Skipped.
func ParseLine(line string) ParseResult {
	tokens := strings.Fields(line)
	if len(tokens) < 5 {
		return skipped("too few tokens")
	}

	for i := 0; i+4 < len(tokens); i++ {
		if tokens[i+1] != "IP" || tokens[i+3] != ">" {
			continue
		}
		if !isTimestamp(tokens[i]) {
			continue
		}
		src, ok := parseAddrPort(tokens[i+2])
		if !ok {
			continue
		}
		dstTok, hasColon := strings.CutSuffix(tokens[i+4], ":")
		if !hasColon {
			continue
		}
		dst, ok := parseAddrPort(dstTok)
		if !ok {
			continue
		}

		return ParseResult{
			Status: Matched,
			Record: model.PacketRecord{
				Timestamp:   tokens[i],
				Source:      src,
				Destination: dst,
				Length:      findLength(tokens),
				Flags:       findFlags(tokens[i+5:]),
			},
		}
	}
	return skipped("no packet summary")
}

// isTimestamp matches d+:d+:d+.d+ as printed by tcpdump.
func isTimestamp(tok string) bool {
	hms, frac, ok := strings.Cut(tok, ".")
	if !ok || !isDigits(frac) {
		return false
	}
	parts := strings.Split(hms, ":")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if !isDigits(p) {
			return false
		}
	}
	return true
}

// parseAddrPort splits "a.b.c.d.port" into an IPv4 endpoint.
func parseAddrPort(tok string) (model.Endpoint, bool) {
	idx := strings.LastIndexByte(tok, '.')
	if idx <= 0 || idx == len(tok)-1 {
		return model.Endpoint{}, false
	}
	host, portStr := tok[:idx], tok[idx+1:]
	if !isIPv4(host) || !isDigits(portStr) {
		return model.Endpoint{}, false
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port > 65535 {
		return model.Endpoint{}, false
	}
	return model.Endpoint{Host: host, Port: port}, true
}

func isIPv4(s string) bool {
	octets := strings.Split(s, ".")
	if len(octets) != 4 {
		return false
	}
	for _, o := range octets {
		if !isDigits(o) || len(o) > 3 {
			return false
		}
	}
	return true
}

// findLength returns the value of the first "length <N>" pair, or 0.
func findLength(tokens []string) int {
	for i := 0; i+1 < len(tokens); i++ {
		if tokens[i] != "length" {
			continue
		}
		digits := leadingDigits(tokens[i+1])
		if digits == "" {
			continue
		}
		n, err := strconv.Atoi(digits)
		if err != nil {
			continue
		}
		return n
	}
	return 0
}

// findFlags reads "Flags [<code>]" from the tokens following the address pair.
func findFlags(tokens []string) model.TCPFlags {
	for i := 0; i+1 < len(tokens); i++ {
		if tokens[i] != "Flags" {
			continue
		}
		code := strings.TrimRight(tokens[i+1], ",")
		if !strings.HasPrefix(code, "[") || !strings.HasSuffix(code, "]") {
			return 0
		}
		return model.ParseFlagCode(code[1 : len(code)-1])
	}
	return 0
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func leadingDigits(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i]
}
