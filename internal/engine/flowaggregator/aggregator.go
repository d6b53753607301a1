package flowaggregator

import (
	"fmt"
	"hash/fnv"
	"sync"

	"Go2TraceSpectra/internal/core/model"
	"Go2TraceSpectra/internal/engine/registry"
)

// groupState is the mutable per-group accumulator.
type groupState struct {
	packets uint64
	bytes   uint64
	peers   map[string]struct{}
	sample  []model.FlowEvent
}

func newGroupState() *groupState {
	return &groupState{peers: make(map[string]struct{})}
}

// Aggregator attributes qualifying packets to endpoint groups and accumulates
// per-group counters. It implements the model.Task interface.
//
// An aggregator may be one shard of several: it then only owns the groups
// whose name hashes to its index, and only shard 0 keeps the run-wide
// qualifying and connection tallies. Shards are combined with Merge.
type Aggregator struct {
	mu         sync.Mutex
	reg        *registry.Registry
	sampleSize int
	shardIndex uint32
	shardCount uint32

	groups      []*groupState // indexed by registry.Group.Index, nil when not owned
	sample      []model.FlowEvent
	qualifying  uint64
	connections map[string]struct{}
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithShard makes the aggregator shard index of count.
func WithShard(index, count int) Option {
	return func(a *Aggregator) {
		if count <= 0 || index < 0 || index >= count {
			return
		}
		a.shardIndex = uint32(index)
		a.shardCount = uint32(count)
	}
}

// New creates a flow aggregator over the given registry.
func New(reg *registry.Registry, sampleSize int, opts ...Option) *Aggregator {
	a := &Aggregator{
		reg:        reg,
		sampleSize: sampleSize,
		shardCount: 1,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.Reset()
	return a
}

// Name returns the name of the task.
func (a *Aggregator) Name() string {
	if a.shardCount == 1 {
		return "flow"
	}
	return fmt.Sprintf("flow-%d", a.shardIndex)
}

// owns reports whether this shard accumulates the named group.
func (a *Aggregator) owns(name string) bool {
	if a.shardCount == 1 {
		return true
	}
	return ShardOf(name, int(a.shardCount)) == int(a.shardIndex)
}

// ShardOf returns the shard a group belongs to among count shards.
func ShardOf(name string, count int) int {
	hasher := fnv.New32a()
	hasher.Write([]byte(name))
	return int(hasher.Sum32() % uint32(count))
}

// ProcessPacket attributes one record and updates the owning group.
func (a *Aggregator) ProcessPacket(rec *model.PacketRecord) {
	if !a.reg.Qualifies(rec) {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.shardIndex == 0 {
		a.qualifying++
		a.connections[rec.Source.String()+" -> "+rec.Destination.String()] = struct{}{}
	}

	group, dir, ok := a.reg.Attribute(rec)
	if !ok {
		return
	}
	state := a.groups[group.Index]
	if state == nil {
		return
	}

	state.packets++
	state.bytes += uint64(rec.Length)
	if dir == model.ClientToGroup {
		state.peers[rec.Source.String()] = struct{}{}
	}

	if len(state.sample) < a.sampleSize || len(a.sample) < a.sampleSize {
		ev := model.FlowEvent{
			Seq:       rec.Seq,
			Timestamp: rec.Timestamp,
			Direction: dir,
			Group:     group.Name,
			Src:       rec.Source.String(),
			Dst:       rec.Destination.String(),
			Bytes:     rec.Length,
		}
		if len(state.sample) < a.sampleSize {
			state.sample = append(state.sample, ev)
		}
		if len(a.sample) < a.sampleSize {
			a.sample = append(a.sample, ev)
		}
	}
}

// Reset clears the internal state of the task, preparing for a new run.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.groups = make([]*groupState, a.reg.Len())
	for _, g := range a.reg.Groups() {
		if a.owns(g.Name) {
			a.groups[g.Index] = newGroupState()
		}
	}
	a.sample = nil
	a.qualifying = 0
	a.connections = make(map[string]struct{})
}

// Snapshot returns a deep copy of the current aggregated data.
func (a *Aggregator) Snapshot() *Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	groups := a.reg.Groups()
	snap := &Snapshot{
		SampleSize:        a.sampleSize,
		Groups:            make([]GroupSnapshot, len(groups)),
		Sample:            append([]model.FlowEvent(nil), a.sample...),
		QualifyingPackets: a.qualifying,
		Connections:       make(map[string]struct{}, len(a.connections)),
	}
	for k := range a.connections {
		snap.Connections[k] = struct{}{}
	}
	for _, g := range groups {
		gs := GroupSnapshot{
			Name:      g.Name,
			Addresses: g.Addresses,
			Peers:     make(map[string]struct{}),
		}
		if state := a.groups[g.Index]; state != nil {
			gs.Packets = state.packets
			gs.Bytes = state.bytes
			for p := range state.peers {
				gs.Peers[p] = struct{}{}
			}
			gs.Sample = append([]model.FlowEvent(nil), state.sample...)
		}
		snap.Groups[g.Index] = gs
	}
	return snap
}
