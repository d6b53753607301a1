// Package signature tallies packets whose length equals a configured
// protocol-characteristic size.
//
// Exact-length matching is a heuristic signal, not a protocol decode: an
// unrelated packet of the same size is counted too.
package signature

import (
	"sync"

	"Go2TraceSpectra/internal/config"
	"Go2TraceSpectra/internal/core/model"
)

// Signature is a named exact packet length.
type Signature struct {
	Name   string
	Length int
}

// Detector counts each record against the first signature whose length it
// matches, in configuration order. It never rejects a record.
type Detector struct {
	mu         sync.Mutex
	signatures []Signature
	counts     []uint64
}

// New creates a detector for the configured signatures.
func New(defs []config.SignatureDef) *Detector {
	d := &Detector{signatures: make([]Signature, len(defs))}
	for i, def := range defs {
		d.signatures[i] = Signature{Name: def.Name, Length: def.Length}
	}
	d.Reset()
	return d
}

// Name returns the name of the task.
func (d *Detector) Name() string {
	return "signature"
}

// Match returns the index of the first signature matching length, or -1.
func (d *Detector) Match(length int) int {
	for i, sig := range d.signatures {
		if sig.Length == length {
			return i
		}
	}
	return -1
}

// ProcessPacket tallies one record.
func (d *Detector) ProcessPacket(rec *model.PacketRecord) {
	i := d.Match(rec.Length)
	if i < 0 {
		return
	}
	d.mu.Lock()
	d.counts[i]++
	d.mu.Unlock()
}

// Reset clears the internal state of the task, preparing for a new run.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.counts = make([]uint64, len(d.signatures))
}

// Snapshot returns the tallies of signatures with at least one hit, in
// configuration order.
func (d *Detector) Snapshot() []model.SignatureCount {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []model.SignatureCount
	for i, sig := range d.signatures {
		if d.counts[i] == 0 {
			continue
		}
		out = append(out, model.SignatureCount{Name: sig.Name, Length: sig.Length, Count: d.counts[i]})
	}
	return out
}
