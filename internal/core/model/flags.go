package model

import "strings"

// TCPFlags is the set of TCP control flags present on a packet.
type TCPFlags uint8

const (
	FlagSYN TCPFlags = 1 << iota
	FlagACK
	FlagFIN
	FlagPSH
	FlagRST
	FlagURG
)

// FlagKind names the flag combinations the engine tallies.
type FlagKind string

const (
	FlagKindNone   FlagKind = ""
	FlagKindSYN    FlagKind = "SYN"
	FlagKindSYNACK FlagKind = "SYN-ACK"
	FlagKindFIN    FlagKind = "FIN"
	FlagKindFINACK FlagKind = "FIN-ACK"
	FlagKindPSHACK FlagKind = "PSH-ACK"
	FlagKindACK    FlagKind = "ACK"
)

// FlagKinds lists the tallied kinds in reporting order.
var FlagKinds = []FlagKind{
	FlagKindSYN, FlagKindSYNACK, FlagKindFIN, FlagKindFINACK, FlagKindPSHACK, FlagKindACK,
}

// ParseFlagCode converts a tcpdump flag code such as "S." or "FP." into flags.
// Unknown characters (ECN markers) are ignored.
func ParseFlagCode(code string) TCPFlags {
	var f TCPFlags
	for _, c := range code {
		switch c {
		case 'S':
			f |= FlagSYN
		case 'F':
			f |= FlagFIN
		case 'P':
			f |= FlagPSH
		case 'R':
			f |= FlagRST
		case 'U':
			f |= FlagURG
		case '.':
			f |= FlagACK
		}
	}
	return f
}

// Has reports whether every flag in o is set.
func (f TCPFlags) Has(o TCPFlags) bool {
	return o != 0 && f&o == o
}

// Kind maps the exact flag combination to its tallied kind.
func (f TCPFlags) Kind() FlagKind {
	switch f {
	case FlagSYN:
		return FlagKindSYN
	case FlagSYN | FlagACK:
		return FlagKindSYNACK
	case FlagFIN:
		return FlagKindFIN
	case FlagFIN | FlagACK:
		return FlagKindFINACK
	case FlagPSH | FlagACK:
		return FlagKindPSHACK
	case FlagACK:
		return FlagKindACK
	}
	return FlagKindNone
}

// String renders the flags in tcpdump notation.
func (f TCPFlags) String() string {
	if f == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range []struct {
		flag TCPFlags
		c    byte
	}{{FlagSYN, 'S'}, {FlagFIN, 'F'}, {FlagPSH, 'P'}, {FlagRST, 'R'}, {FlagURG, 'U'}, {FlagACK, '.'}} {
		if f&p.flag != 0 {
			b.WriteByte(p.c)
		}
	}
	return b.String()
}
