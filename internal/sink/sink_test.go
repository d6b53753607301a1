package sink

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"Go2TraceSpectra/internal/alerter"
	"Go2TraceSpectra/internal/config"
	coremodel "Go2TraceSpectra/internal/core/model"
	"Go2TraceSpectra/internal/metrics"
	"Go2TraceSpectra/internal/model"
	"Go2TraceSpectra/internal/report"
	_ "Go2TraceSpectra/internal/snapshot"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memWriter struct {
	name    string
	err     error
	written []string
	closed  bool
}

func (m *memWriter) Name() string { return m.name }
func (m *memWriter) Write(rep *report.Report) error {
	m.written = append(m.written, rep.ID)
	return m.err
}
func (m *memWriter) Close() error {
	m.closed = true
	return nil
}

type countingNotifier struct{ sent int }

func (c *countingNotifier) Name() string { return "counting" }

func (c *countingNotifier) Send(subject, body string) error {
	c.sent++
	return nil
}

func testReport() *report.Report {
	return report.Build(&coremodel.Result{
		ServicePort: 1414,
		Groups:      []coremodel.GroupAggregate{{Name: "QM1", PacketCount: 20, UniquePeers: []string{}}},
		Totals:      coremodel.Totals{AttributedPackets: 20},
	}, report.Meta{Source: "test"})
}

func TestSink_Handle(t *testing.T) {
	good := &memWriter{name: "good"}
	bad := &memWriter{name: "bad", err: errors.New("disk full")}
	met := metrics.New()

	n := &countingNotifier{}
	a, err := alerter.NewAlerter(&config.AlerterConfig{Enabled: true, Rules: []config.AlerterRule{
		{Name: "busy", Group: "QM1", Metric: "packets", Operator: ">", Threshold: 10},
	}}, met, n)
	require.NoError(t, err)

	s := New([]model.Writer{bad, good}, a, met)
	assert.Equal(t, []string{"bad", "good"}, s.Writers())

	rep := testReport()
	err = s.Handle(rep)
	require.Error(t, err)
	assert.ErrorContains(t, err, "writer bad: disk full")

	// The failing writer does not keep the others from running.
	assert.Equal(t, []string{rep.ID}, good.written)
	assert.Equal(t, 1, n.sent)
	count, err := testutil.GatherAndCount(met.Registry(), "tracespectra_report_writes_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	s.Close()
	assert.True(t, good.closed)
	assert.True(t, bad.closed)
}

func TestSink_NoAlerter(t *testing.T) {
	w := &memWriter{name: "only"}
	s := New([]model.Writer{w}, nil, nil)
	require.NoError(t, s.Handle(testReport()))
	assert.Len(t, w.written, 1)
}

func TestFromConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Writers: []config.WriterDef{
			{Type: "json", Enabled: true, Path: dir},
			{Type: "text", Enabled: false, Path: dir},
		},
		Alerter: config.AlerterConfig{Enabled: true, Rules: []config.AlerterRule{
			{Name: "busy", Metric: "packets", Operator: ">", Threshold: 1},
		}},
	}
	s, err := FromConfig(cfg, nil)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, []string{"json"}, s.Writers())

	require.NoError(t, s.Handle(testReport()))
	matches, err := filepath.Glob(filepath.Join(dir, "*", "report.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	_, err = os.Stat(matches[0])
	assert.NoError(t, err)
}

func TestFromConfig_BadRule(t *testing.T) {
	cfg := &config.Config{Alerter: config.AlerterConfig{Enabled: true, Rules: []config.AlerterRule{
		{Name: "bad", Metric: "latency", Operator: ">"},
	}}}
	_, err := FromConfig(cfg, nil)
	assert.ErrorContains(t, err, "unknown metric")
}

func TestFromConfig_UnknownRuleGroup(t *testing.T) {
	cfg := &config.Config{
		Engine: config.EngineConfig{EndpointGroups: []config.EndpointGroupDef{
			{Name: "QM1", Addresses: []string{"10.10.10.10"}},
		}},
		Alerter: config.AlerterConfig{Enabled: true, Rules: []config.AlerterRule{
			{Name: "all", Metric: "packets", Operator: ">", Threshold: 1},
			{Name: "typo", Group: "QM01", Metric: "packets", Operator: ">", Threshold: 1},
		}},
	}
	_, err := FromConfig(cfg, nil)
	assert.ErrorIs(t, err, coremodel.ErrConfig)
	assert.ErrorContains(t, err, "QM01")

	cfg.Alerter.Rules[1].Group = "QM1"
	s, err := FromConfig(cfg, nil)
	require.NoError(t, err)
	s.Close()
}
