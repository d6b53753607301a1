package model

import (
	"errors"
	"strconv"
)

var (
	// ErrConfig marks a configuration problem detected before processing starts.
	ErrConfig = errors.New("invalid configuration")
	// ErrUpstreamRead marks a trace source that could not be opened or ended abnormally.
	ErrUpstreamRead = errors.New("upstream trace read failed")
)

// Endpoint is one side of a connection as printed by the capture tool.
type Endpoint struct {
	Host string
	Port int
}

// String renders the endpoint as host:port.
func (e Endpoint) String() string {
	return e.Host + ":" + strconv.Itoa(e.Port)
}

// PacketRecord is the normalized form of one observed packet.
// Records are created once by the trace parser and never mutated afterwards.
type PacketRecord struct {
	// Seq is the position of the record among all parsed records of a run.
	Seq         uint64
	Timestamp   string
	Source      Endpoint
	Destination Endpoint
	Length      int
	Flags       TCPFlags
}

// Direction tells which side of an attributed packet is the endpoint group.
type Direction string

const (
	ClientToGroup Direction = "CLIENT->GROUP"
	GroupToClient Direction = "GROUP->CLIENT"
)

// FlowEvent is the directional summary of one attributed packet.
type FlowEvent struct {
	Seq       uint64    `json:"seq"`
	Timestamp string    `json:"time"`
	Direction Direction `json:"direction"`
	Group     string    `json:"group"`
	Src       string    `json:"src"`
	Dst       string    `json:"dst"`
	Bytes     int       `json:"bytes"`
}

// GroupAggregate holds the finalized per-group counters of the flow aggregator.
type GroupAggregate struct {
	Name        string      `json:"name"`
	Addresses   []string    `json:"addresses"`
	PacketCount uint64      `json:"packets"`
	ByteCount   uint64      `json:"bytes"`
	UniquePeers []string    `json:"unique_peers"`
	Sample      []FlowEvent `json:"sample_flows"`
}

// HandshakeEvent is one lifecycle transition observed for a group.
type HandshakeEvent struct {
	Seq       uint64   `json:"seq"`
	Timestamp string   `json:"time"`
	Kind      FlagKind `json:"kind"`
}

// HandshakeLog is the append-only lifecycle log of one group.
type HandshakeLog struct {
	Group        string           `json:"group"`
	Events       []HandshakeEvent `json:"events"`
	SynCount     int              `json:"syn_count"`
	FirstSynTime string           `json:"first_syn,omitempty"`
}

// SignatureCount is the tally of one configured packet-size signature.
type SignatureCount struct {
	Name   string `json:"name"`
	Length int    `json:"length"`
	Count  uint64 `json:"count"`
}

// Totals are the scalar counters of a run.
type Totals struct {
	TotalLines        uint64 `json:"total_lines"`
	ParsedRecords     uint64 `json:"parsed_records"`
	SkippedLines      uint64 `json:"skipped_lines"`
	FilteredRecords   uint64 `json:"filtered_records"`
	QualifyingPackets uint64 `json:"qualifying_packets"`
	AttributedPackets uint64 `json:"attributed_packets"`
	UniqueConnections int    `json:"unique_connections"`
}

// Result is the structured output of one engine pass.
type Result struct {
	ServicePort int                 `json:"service_port"`
	Groups      []GroupAggregate    `json:"groups"`
	Sample      []FlowEvent         `json:"sample_flows"`
	Handshakes  []HandshakeLog      `json:"handshakes"`
	FlagCounts  map[FlagKind]uint64 `json:"tcp_flags"`
	Signatures  []SignatureCount    `json:"signatures"`
	Totals      Totals              `json:"totals"`
	// Partial is set when the trace source failed before it was exhausted.
	Partial bool `json:"partial"`
}

// Group returns the aggregate of the named group.
func (r *Result) Group(name string) (GroupAggregate, bool) {
	for _, g := range r.Groups {
		if g.Name == name {
			return g, true
		}
	}
	return GroupAggregate{}, false
}

// Handshake returns the lifecycle log of the named group.
func (r *Result) Handshake(name string) (HandshakeLog, bool) {
	for _, h := range r.Handshakes {
		if h.Group == name {
			return h, true
		}
	}
	return HandshakeLog{}, false
}

// SignatureTally returns the signature tallies keyed by name.
func (r *Result) SignatureTally() map[string]uint64 {
	tally := make(map[string]uint64, len(r.Signatures))
	for _, s := range r.Signatures {
		tally[s.Name] = s.Count
	}
	return tally
}
