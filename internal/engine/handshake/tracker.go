// Package handshake tracks TCP connection lifecycle events per endpoint group.
package handshake

import (
	"sync"

	"Go2TraceSpectra/internal/core/model"
	"Go2TraceSpectra/internal/engine/registry"
)

// Tracker records SYN, SYN-ACK, FIN and FIN-ACK transitions involving an
// endpoint group on the service port, and the distribution of flag kinds
// over every record it sees. SYNs are not paired with FINs.
type Tracker struct {
	mu    sync.Mutex
	reg   *registry.Registry
	logs  []*model.HandshakeLog // indexed by registry.Group.Index
	flags map[model.FlagKind]uint64
}

// New creates a tracker over the given registry.
func New(reg *registry.Registry) *Tracker {
	t := &Tracker{reg: reg}
	t.Reset()
	return t
}

// Name returns the name of the task.
func (t *Tracker) Name() string {
	return "handshake"
}

// ProcessPacket folds one record into the lifecycle logs.
func (t *Tracker) ProcessPacket(rec *model.PacketRecord) {
	kind := rec.Flags.Kind()
	if kind == model.FlagKindNone {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.flags[kind]++

	if g, ok := t.reg.LookupEndpoint(rec.Destination); ok {
		switch kind {
		case model.FlagKindSYN, model.FlagKindFIN, model.FlagKindFINACK:
			t.append(g, rec, kind)
		}
		return
	}
	if g, ok := t.reg.LookupEndpoint(rec.Source); ok {
		switch kind {
		case model.FlagKindSYNACK, model.FlagKindFIN, model.FlagKindFINACK:
			t.append(g, rec, kind)
		}
	}
}

func (t *Tracker) append(g registry.Group, rec *model.PacketRecord, kind model.FlagKind) {
	hl := t.logs[g.Index]
	hl.Events = append(hl.Events, model.HandshakeEvent{Seq: rec.Seq, Timestamp: rec.Timestamp, Kind: kind})
	if kind == model.FlagKindSYN {
		if hl.SynCount == 0 {
			hl.FirstSynTime = rec.Timestamp
		}
		hl.SynCount++
	}
}

// Reset clears the internal state of the task, preparing for a new run.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	groups := t.reg.Groups()
	t.logs = make([]*model.HandshakeLog, len(groups))
	for _, g := range groups {
		t.logs[g.Index] = &model.HandshakeLog{Group: g.Name}
	}
	t.flags = make(map[model.FlagKind]uint64, len(model.FlagKinds))
}

// Snapshot returns a copy of the per-group logs in configuration order and
// the flag distribution. Every tallied kind is present in the distribution.
func (t *Tracker) Snapshot() ([]model.HandshakeLog, map[model.FlagKind]uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	logs := make([]model.HandshakeLog, len(t.logs))
	for i, hl := range t.logs {
		logs[i] = *hl
		logs[i].Events = append([]model.HandshakeEvent(nil), hl.Events...)
	}
	flags := make(map[model.FlagKind]uint64, len(model.FlagKinds))
	for _, k := range model.FlagKinds {
		flags[k] = t.flags[k]
	}
	return logs, flags
}
