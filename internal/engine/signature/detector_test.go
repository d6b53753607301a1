package signature

import (
	"testing"

	"Go2TraceSpectra/internal/config"
	"Go2TraceSpectra/internal/core/model"

	"github.com/stretchr/testify/assert"
)

func lengths(d *Detector, ls ...int) {
	for i, l := range ls {
		d.ProcessPacket(&model.PacketRecord{Seq: uint64(i), Length: l})
	}
}

func TestDetector_Tally(t *testing.T) {
	d := New([]config.SignatureDef{
		{Name: "sigA", Length: 268},
		{Name: "sigB", Length: 276},
	})
	lengths(d, 268, 268, 999, 268, 999, 276)

	got := d.Snapshot()
	assert.Equal(t, []model.SignatureCount{
		{Name: "sigA", Length: 268, Count: 3},
		{Name: "sigB", Length: 276, Count: 1},
	}, got)
}

func TestDetector_ExactLengthOnly(t *testing.T) {
	d := New([]config.SignatureDef{{Name: "heartbeat", Length: 36}})
	lengths(d, 360, 3600, 136, 0)
	assert.Empty(t, d.Snapshot())
}

func TestDetector_FirstMatchWins(t *testing.T) {
	d := New([]config.SignatureDef{
		{Name: "first", Length: 524},
		{Name: "second", Length: 524},
	})
	lengths(d, 524, 524)

	got := d.Snapshot()
	assert.Equal(t, []model.SignatureCount{{Name: "first", Length: 524, Count: 2}}, got)
}

func TestDetector_Exclusivity(t *testing.T) {
	d := New([]config.SignatureDef{
		{Name: "a", Length: 268},
		{Name: "b", Length: 276},
		{Name: "c", Length: 36},
		{Name: "d", Length: 524},
		{Name: "e", Length: 340},
	})
	records := []int{268, 276, 36, 524, 340, 0, 1, 268, 340, 4096}
	lengths(d, records...)

	var sum uint64
	for _, sc := range d.Snapshot() {
		sum += sc.Count
	}
	assert.Equal(t, uint64(7), sum)
	assert.LessOrEqual(t, sum, uint64(len(records)))
}

func TestDetector_NoSignatures(t *testing.T) {
	d := New(nil)
	lengths(d, 268)
	assert.Empty(t, d.Snapshot())
	assert.Equal(t, -1, d.Match(268))
}

func TestDetector_Reset(t *testing.T) {
	d := New([]config.SignatureDef{{Name: "sigA", Length: 268}})
	lengths(d, 268)
	d.Reset()
	assert.Empty(t, d.Snapshot())
}
