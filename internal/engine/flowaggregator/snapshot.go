package flowaggregator

import (
	"slices"
	"sort"

	"Go2TraceSpectra/internal/core/model"
)

// GroupSnapshot is the per-group part of a Snapshot.
type GroupSnapshot struct {
	Name      string
	Addresses []string
	Packets   uint64
	Bytes     uint64
	Peers     map[string]struct{}
	Sample    []model.FlowEvent
}

// Snapshot is an independent copy of an aggregator's state.
type Snapshot struct {
	SampleSize        int
	Groups            []GroupSnapshot
	Sample            []model.FlowEvent
	QualifyingPackets uint64
	Connections       map[string]struct{}
}

// Merge combines shard snapshots. Counts are summed and sets unioned, which
// is order independent; samples are merged by record sequence so the result
// does not depend on which shard finished first.
func Merge(snaps ...*Snapshot) *Snapshot {
	if len(snaps) == 0 {
		return &Snapshot{Connections: make(map[string]struct{})}
	}
	if len(snaps) == 1 {
		return snaps[0]
	}

	out := &Snapshot{
		SampleSize:  snaps[0].SampleSize,
		Groups:      make([]GroupSnapshot, len(snaps[0].Groups)),
		Connections: make(map[string]struct{}),
	}
	for i, g := range snaps[0].Groups {
		out.Groups[i] = GroupSnapshot{Name: g.Name, Addresses: g.Addresses, Peers: make(map[string]struct{})}
	}

	for _, s := range snaps {
		out.QualifyingPackets += s.QualifyingPackets
		for k := range s.Connections {
			out.Connections[k] = struct{}{}
		}
		out.Sample = append(out.Sample, s.Sample...)
		for i, g := range s.Groups {
			merged := &out.Groups[i]
			merged.Packets += g.Packets
			merged.Bytes += g.Bytes
			for p := range g.Peers {
				merged.Peers[p] = struct{}{}
			}
			merged.Sample = append(merged.Sample, g.Sample...)
		}
	}

	out.Sample = firstBySeq(out.Sample, out.SampleSize)
	for i := range out.Groups {
		out.Groups[i].Sample = firstBySeq(out.Groups[i].Sample, out.SampleSize)
	}
	return out
}

func firstBySeq(events []model.FlowEvent, n int) []model.FlowEvent {
	sort.SliceStable(events, func(i, j int) bool { return events[i].Seq < events[j].Seq })
	if len(events) > n {
		events = events[:n]
	}
	return events
}

// Aggregates converts the snapshot into finalized per-group aggregates.
func (s *Snapshot) Aggregates() []model.GroupAggregate {
	out := make([]model.GroupAggregate, len(s.Groups))
	for i, g := range s.Groups {
		peers := make([]string, 0, len(g.Peers))
		for p := range g.Peers {
			peers = append(peers, p)
		}
		slices.Sort(peers)
		out[i] = model.GroupAggregate{
			Name:        g.Name,
			Addresses:   g.Addresses,
			PacketCount: g.Packets,
			ByteCount:   g.Bytes,
			UniquePeers: peers,
			Sample:      g.Sample,
		}
	}
	return out
}

// AttributedPackets is the sum of packet counts across groups.
func (s *Snapshot) AttributedPackets() uint64 {
	var total uint64
	for _, g := range s.Groups {
		total += g.Packets
	}
	return total
}
