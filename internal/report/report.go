// Package report turns an engine result into a persisted or displayed report.
package report

import (
	"encoding/json"
	"time"

	"Go2TraceSpectra/internal/core/model"

	"github.com/google/uuid"
)

// Verdict summarizes how traffic spread over the endpoint groups.
type Verdict string

const (
	// VerdictConcentrated means exactly one group received traffic.
	VerdictConcentrated Verdict = "concentrated"
	// VerdictDistributed means more than one group received traffic.
	VerdictDistributed Verdict = "distributed"
	// VerdictNoTraffic means no packet was attributed to any group.
	VerdictNoTraffic Verdict = "no-traffic"
)

// Meta carries the context a result was produced in.
type Meta struct {
	Source string
	Filter string
	// Err is the error that cut processing short, if any.
	Err error
}

// GroupReport is a group aggregate with its derived values.
type GroupReport struct {
	model.GroupAggregate
	SharePercent float64 `json:"share_percent"`
	SynCount     int     `json:"syn_count"`
	FirstSyn     string  `json:"first_syn,omitempty"`
}

// Report is the structured output handed to writers, the alerter and the API.
type Report struct {
	ID           string                    `json:"id"`
	GeneratedAt  time.Time                 `json:"generated_at"`
	Source       string                    `json:"source"`
	Filter       string                    `json:"filter,omitempty"`
	ServicePort  int                       `json:"service_port"`
	Verdict      Verdict                   `json:"verdict"`
	ActiveGroups []string                  `json:"active_groups"`
	Groups       []GroupReport             `json:"groups"`
	Handshakes   []model.HandshakeLog      `json:"handshakes"`
	FlagCounts   map[model.FlagKind]uint64 `json:"tcp_flags"`
	Signatures   []model.SignatureCount    `json:"signatures"`
	Sample       []model.FlowEvent         `json:"sample_flows"`
	Totals       model.Totals              `json:"totals"`
	Partial      bool                      `json:"partial"`
	Error        string                    `json:"error,omitempty"`
}

// Build merges an engine result with its metadata.
func Build(res *model.Result, meta Meta) *Report {
	rep := &Report{
		ID:           uuid.NewString(),
		GeneratedAt:  time.Now().UTC(),
		Source:       meta.Source,
		Filter:       meta.Filter,
		ServicePort:  res.ServicePort,
		ActiveGroups: []string{},
		Groups:       make([]GroupReport, 0, len(res.Groups)),
		Handshakes:   res.Handshakes,
		FlagCounts:   res.FlagCounts,
		Signatures:   res.Signatures,
		Sample:       res.Sample,
		Totals:       res.Totals,
		Partial:      res.Partial,
	}
	if meta.Err != nil {
		rep.Partial = true
		rep.Error = meta.Err.Error()
	}

	attributed := res.Totals.AttributedPackets
	for _, g := range res.Groups {
		gr := GroupReport{GroupAggregate: g}
		if attributed > 0 {
			gr.SharePercent = float64(g.PacketCount) / float64(attributed) * 100
		}
		if hs, ok := res.Handshake(g.Name); ok {
			gr.SynCount = hs.SynCount
			gr.FirstSyn = hs.FirstSynTime
		}
		if g.PacketCount > 0 {
			rep.ActiveGroups = append(rep.ActiveGroups, g.Name)
		}
		rep.Groups = append(rep.Groups, gr)
	}

	switch len(rep.ActiveGroups) {
	case 0:
		rep.Verdict = VerdictNoTraffic
	case 1:
		rep.Verdict = VerdictConcentrated
	default:
		rep.Verdict = VerdictDistributed
	}
	return rep
}

// Group returns the report of the named group.
func (r *Report) Group(name string) (GroupReport, bool) {
	for _, g := range r.Groups {
		if g.Name == name {
			return g, true
		}
	}
	return GroupReport{}, false
}

// JSON encodes the report with indentation.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// GroupRow is the flattened per-group record persisted by the history stores.
type GroupRow struct {
	Timestamp    time.Time `json:"timestamp"`
	ReportID     string    `json:"report_id"`
	Source       string    `json:"source"`
	Group        string    `json:"group"`
	Packets      uint64    `json:"packets"`
	Bytes        uint64    `json:"bytes"`
	Peers        uint32    `json:"peers"`
	Syns         uint32    `json:"syns"`
	SharePercent float64   `json:"share_percent"`
	Verdict      string    `json:"verdict"`
	Partial      bool      `json:"partial"`
}

// Rows flattens the report into one row per group.
func (r *Report) Rows() []GroupRow {
	rows := make([]GroupRow, 0, len(r.Groups))
	for _, g := range r.Groups {
		rows = append(rows, GroupRow{
			Timestamp:    r.GeneratedAt,
			ReportID:     r.ID,
			Source:       r.Source,
			Group:        g.Name,
			Packets:      g.PacketCount,
			Bytes:        g.ByteCount,
			Peers:        uint32(len(g.UniquePeers)),
			Syns:         uint32(g.SynCount),
			SharePercent: g.SharePercent,
			Verdict:      string(r.Verdict),
			Partial:      r.Partial,
		})
	}
	return rows
}
