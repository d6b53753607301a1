package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"Go2TraceSpectra/internal/core/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func result(packets ...uint64) *model.Result {
	names := []string{"QM1", "QM2", "QM3"}
	res := &model.Result{
		ServicePort: 1414,
		FlagCounts:  map[model.FlagKind]uint64{model.FlagKindSYN: 2},
		Signatures:  []model.SignatureCount{{Name: "sigA", Length: 268, Count: 3}},
		Sample: []model.FlowEvent{
			{Seq: 0, Timestamp: "10:00:00.000001", Direction: model.ClientToGroup, Group: "QM1", Src: "10.10.10.2:40000", Dst: "10.10.10.10:1414", Bytes: 268},
		},
	}
	for i, p := range packets {
		res.Groups = append(res.Groups, model.GroupAggregate{
			Name:        names[i],
			Addresses:   []string{"10.10.10.1" + string(rune('0'+i))},
			PacketCount: p,
			ByteCount:   p * 100,
			UniquePeers: []string{},
		})
		res.Handshakes = append(res.Handshakes, model.HandshakeLog{Group: names[i]})
		res.Totals.AttributedPackets += p
		res.Totals.QualifyingPackets += p
	}
	res.Handshakes[0].SynCount = 2
	res.Handshakes[0].FirstSynTime = "10:00:00.000001"
	return res
}

func TestBuild_Verdicts(t *testing.T) {
	cases := []struct {
		packets []uint64
		verdict Verdict
		active  []string
	}{
		{[]uint64{20, 0, 0}, VerdictConcentrated, []string{"QM1"}},
		{[]uint64{10, 0, 5}, VerdictDistributed, []string{"QM1", "QM3"}},
		{[]uint64{0, 0, 0}, VerdictNoTraffic, []string{}},
	}
	for _, tc := range cases {
		rep := Build(result(tc.packets...), Meta{Source: "trace.txt"})
		assert.Equal(t, tc.verdict, rep.Verdict)
		assert.Equal(t, tc.active, rep.ActiveGroups)
	}
}

func TestBuild_Shares(t *testing.T) {
	rep := Build(result(30, 10, 0), Meta{Source: "trace.txt", Filter: "length > 0"})

	require.NotEmpty(t, rep.ID)
	assert.Equal(t, "length > 0", rep.Filter)
	qm1, ok := rep.Group("QM1")
	require.True(t, ok)
	assert.InDelta(t, 75.0, qm1.SharePercent, 0.001)
	assert.Equal(t, 2, qm1.SynCount)
	assert.Equal(t, "10:00:00.000001", qm1.FirstSyn)

	qm3, _ := rep.Group("QM3")
	assert.Zero(t, qm3.SharePercent)

	_, ok = rep.Group("QM9")
	assert.False(t, ok)

	other := Build(result(30, 10, 0), Meta{})
	assert.NotEqual(t, rep.ID, other.ID)
}

func TestBuild_Partial(t *testing.T) {
	res := result(1, 0, 0)
	res.Partial = true
	rep := Build(res, Meta{Source: "trace.pcap", Err: errors.New("upstream trace read failed: unexpected EOF")})
	assert.True(t, rep.Partial)
	assert.Contains(t, rep.Error, "unexpected EOF")

	var text bytes.Buffer
	require.NoError(t, RenderText(&text, rep))
	assert.Contains(t, text.String(), "WARNING: processing incomplete")
}

func TestReport_JSON(t *testing.T) {
	rep := Build(result(20, 0, 0), Meta{Source: "trace.txt"})
	data, err := rep.JSON()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "concentrated", decoded["verdict"])
	assert.Equal(t, float64(1414), decoded["service_port"])
	groups := decoded["groups"].([]any)
	require.Len(t, groups, 3)
	first := groups[0].(map[string]any)
	assert.Equal(t, "QM1", first["name"])
	assert.Equal(t, float64(20), first["packets"])
	assert.Equal(t, float64(100), first["share_percent"])
	assert.Equal(t, float64(2), decoded["tcp_flags"].(map[string]any)["SYN"])
}

func TestRenderText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderText(&buf, Build(result(20, 0, 0), Meta{Source: "mq_packets.txt"})))
	out := buf.String()

	assert.Contains(t, out, "Source:             mq_packets.txt")
	assert.Contains(t, out, "QM1 (10.10.10.10:1414)")
	assert.Contains(t, out, "Packets:     20 (100.00%)")
	assert.Contains(t, out, "First SYN at: 10:00:00.000001")
	assert.Contains(t, out, "sigA")
	assert.Contains(t, out, "All attributed traffic (20 packets) went to QM1.")
	assert.Contains(t, out, "[##################################################]")

	buf.Reset()
	require.NoError(t, RenderText(&buf, Build(result(0, 0, 0), Meta{})))
	assert.Contains(t, buf.String(), "No traffic was attributed")
}

func TestShareBar(t *testing.T) {
	assert.Len(t, shareBar(0), barWidth)
	assert.Len(t, shareBar(100), barWidth)
	assert.Len(t, shareBar(250), barWidth)
	assert.Equal(t, 25, bytes.Count([]byte(shareBar(50)), []byte("#")))
}

func TestReport_Rows(t *testing.T) {
	rep := Build(result(3, 1, 0), Meta{Source: "live"})
	rows := rep.Rows()
	require.Len(t, rows, 3)
	assert.Equal(t, "QM1", rows[0].Group)
	assert.Equal(t, uint64(3), rows[0].Packets)
	assert.Equal(t, uint64(300), rows[0].Bytes)
	assert.Equal(t, uint32(2), rows[0].Syns)
	assert.Equal(t, rep.ID, rows[2].ReportID)
	assert.Equal(t, "distributed", rows[1].Verdict)
	assert.Equal(t, rep.GeneratedAt, rows[1].Timestamp)
}
