package streamaggregator

import (
	"fmt"
	"time"

	"Go2TraceSpectra/internal/config"
	"Go2TraceSpectra/internal/core/model"
	"Go2TraceSpectra/internal/engine/manager"
	"Go2TraceSpectra/internal/probe"
	"Go2TraceSpectra/internal/report"

	log "github.com/sirupsen/logrus"
)

// ReportHandler receives one report per snapshot interval.
type ReportHandler func(rep *report.Report)

// StreamAggregator consumes trace lines from NATS and folds them into a
// manager, emitting one report per snapshot interval.
type StreamAggregator struct {
	sub      *probe.Subscriber
	manager  *manager.Manager
	probeCfg config.ProbeConfig
	interval time.Duration
	handle   ReportHandler
}

// NewStreamAggregator creates a new real-time stream aggregator.
func NewStreamAggregator(cfg *config.Config, handle ReportHandler, opts ...manager.Option) (*StreamAggregator, error) {
	mgr, err := manager.NewManager(cfg.Engine, opts...)
	if err != nil {
		return nil, err
	}
	return &StreamAggregator{
		manager:  mgr,
		probeCfg: cfg.Probe,
		interval: cfg.Interval(),
		handle:   handle,
	}, nil
}

// Manager returns the underlying manager.
func (sa *StreamAggregator) Manager() *manager.Manager {
	return sa.manager
}

// Source names the feed in reports.
func (sa *StreamAggregator) Source() string {
	return "nats:" + sa.probeCfg.Subject
}

// Start connects to NATS, starts the manager's workers and snapshotter, and
// begins processing messages.
func (sa *StreamAggregator) Start() error {
	log.Println("StreamAggregator starting for nats: ", sa.probeCfg.NATSURL)
	sub, err := probe.NewSubscriber(sa.probeCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	sa.sub = sub

	sa.manager.Start()
	sa.manager.StartSnapshotter(sa.interval, sa.publish)

	if err := sa.sub.Start(sa.handleLine); err != nil {
		sa.Stop()
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	return nil
}

// Stop unsubscribes, drains the manager and emits the final report.
func (sa *StreamAggregator) Stop() {
	log.Println("StreamAggregator stopping...")
	if sa.sub != nil {
		sa.sub.Close()
	}
	sa.manager.Stop()
	log.Println("StreamAggregator stopped.")
}

func (sa *StreamAggregator) handleLine(line string) {
	sa.manager.ProcessLine(line)
}

// publish turns a snapshot into a report. Empty intervals are not reported.
func (sa *StreamAggregator) publish(res *model.Result) {
	if res.Totals.TotalLines == 0 {
		log.Debug("No trace lines in this interval, skipping report.")
		return
	}
	rep := report.Build(res, report.Meta{Source: sa.Source(), Filter: sa.manager.Filter()})
	log.WithFields(log.Fields{"report": rep.ID, "lines": res.Totals.TotalLines, "verdict": rep.Verdict}).
		Info("Interval report ready.")
	if sa.handle != nil {
		sa.handle(rep)
	}
}
