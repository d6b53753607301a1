package manager

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"Go2TraceSpectra/internal/config"
	"Go2TraceSpectra/internal/core/model"
	"Go2TraceSpectra/internal/engine/filter"
	"Go2TraceSpectra/internal/engine/flowaggregator"
	"Go2TraceSpectra/internal/engine/handshake"
	"Go2TraceSpectra/internal/engine/protocol"
	"Go2TraceSpectra/internal/engine/registry"
	"Go2TraceSpectra/internal/engine/signature"
	"Go2TraceSpectra/internal/metrics"
	taskmodel "Go2TraceSpectra/internal/model"

	log "github.com/sirupsen/logrus"
)

const taskChannelSize = 1024

// Manager feeds parsed records to the engine's reducers and assembles their
// aggregates into a model.Result.
//
// Without Start every record is folded synchronously. After Start each
// reducer runs on its own goroutine and receives records over its own
// channel in input order; Snapshot waits for every in-flight record before
// reading the reducers.
type Manager struct {
	reg      *registry.Registry
	filter   *filter.Filter
	flows    []*flowaggregator.Aggregator
	tracker  *handshake.Tracker
	detector *signature.Detector
	tasks    []taskmodel.Task
	metrics  *metrics.Metrics

	// mu serializes record intake so sequence numbers follow input order.
	mu     sync.Mutex
	seq    uint64
	totals model.Totals

	// Fan-out workers.
	numWorkers int
	running    bool
	channels   []chan *model.PacketRecord
	inflight   sync.WaitGroup
	workerWg   sync.WaitGroup

	// Periodic snapshots.
	done          chan struct{}
	snapshotterWg sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithMetrics makes the manager report to the given collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(mgr *Manager) {
		mgr.metrics = m
	}
}

// NewManager builds the registry, the optional record filter and the reducers.
func NewManager(cfg config.EngineConfig, opts ...Option) (*Manager, error) {
	if cfg.SampleSize < 0 {
		return nil, fmt.Errorf("%w: sample_size must not be negative", model.ErrConfig)
	}
	for _, sig := range cfg.Signatures {
		if sig.Length <= 0 {
			return nil, fmt.Errorf("%w: signature '%s' must have a positive length", model.ErrConfig, sig.Name)
		}
	}
	reg, err := registry.New(cfg)
	if err != nil {
		return nil, err
	}
	f, err := filter.Compile(cfg.Filter)
	if err != nil {
		return nil, err
	}

	sampleSize := cfg.SampleSize
	if sampleSize == 0 {
		sampleSize = config.DefaultSampleSize
	}
	numWorkers := max(cfg.NumWorkers, 1)
	shards := 1
	if numWorkers > 1 {
		shards = max(cfg.FlowShards, 1)
	}

	m := &Manager{
		reg:        reg,
		filter:     f,
		tracker:    handshake.New(reg),
		detector:   signature.New(cfg.Signatures),
		numWorkers: numWorkers,
		done:       make(chan struct{}),
	}
	for i := 0; i < shards; i++ {
		var flow *flowaggregator.Aggregator
		if shards == 1 {
			flow = flowaggregator.New(reg, sampleSize)
		} else {
			flow = flowaggregator.New(reg, sampleSize, flowaggregator.WithShard(i, shards))
		}
		m.flows = append(m.flows, flow)
		m.tasks = append(m.tasks, flow)
	}
	m.tasks = append(m.tasks, m.tracker, m.detector)

	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Registry returns the endpoint registry the manager classifies against.
func (m *Manager) Registry() *registry.Registry {
	return m.reg
}

// Filter returns the record filter expression, or "".
func (m *Manager) Filter() string {
	return m.filter.String()
}

// Start launches one worker per reducer when more than one worker is
// configured. It is a no-op otherwise.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running || m.numWorkers <= 1 {
		return
	}
	m.channels = make([]chan *model.PacketRecord, len(m.tasks))
	m.workerWg.Add(len(m.tasks))
	for i, task := range m.tasks {
		ch := make(chan *model.PacketRecord, taskChannelSize)
		m.channels[i] = ch
		go m.worker(task, ch)
	}
	m.running = true
	log.Printf("Manager started with %d workers.", len(m.tasks))
}

func (m *Manager) worker(task taskmodel.Task, ch <-chan *model.PacketRecord) {
	defer m.workerWg.Done()
	for rec := range ch {
		task.ProcessPacket(rec)
		m.inflight.Done()
	}
}

// StartSnapshotter calls handle with a snapshot every interval and resets
// the reducers afterwards, so each snapshot covers one interval. A final
// snapshot is taken when the manager stops.
func (m *Manager) StartSnapshotter(interval time.Duration, handle func(*model.Result)) {
	if interval <= 0 {
		log.Printf("Invalid snapshot interval %s, snapshotter will not run.", interval)
		return
	}
	m.snapshotterWg.Add(1)
	go func() {
		defer m.snapshotterWg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				handle(m.Rotate())
			case <-m.done:
				handle(m.Rotate())
				return
			}
		}
	}()
	log.Printf("Started snapshotter with interval %s", interval)
}

// Stop drains the workers, takes the final snapshot and shuts down.
// Records processed after Stop are folded synchronously.
func (m *Manager) Stop() {
	log.Println("Manager stopping...")

	m.mu.Lock()
	if m.running {
		for _, ch := range m.channels {
			close(ch)
		}
		m.running = false
	}
	m.mu.Unlock()

	log.Println("Waiting for workers to finish...")
	m.workerWg.Wait()

	select {
	case <-m.done:
	default:
		close(m.done)
	}
	m.snapshotterWg.Wait()
	log.Println("Manager stopped.")
}

// ProcessLine parses one trace line and folds it in. It reports whether the
// line produced a record.
func (m *Manager) ProcessLine(line string) bool {
	return m.ProcessResult(protocol.ParseLine(line))
}

// ProcessRecord folds in one already parsed record.
func (m *Manager) ProcessRecord(rec model.PacketRecord) {
	m.ProcessResult(protocol.ParseResult{Status: protocol.Matched, Record: rec})
}

// ProcessResult folds in one parser outcome. Skipped input is counted and
// logged at debug level only.
func (m *Manager) ProcessResult(res protocol.ParseResult) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totals.TotalLines++
	if !res.IsMatched() {
		m.totals.SkippedLines++
		m.metrics.ObserveLine(metrics.LineSkipped)
		log.Debugf("Skipping trace input: %s", res.Reason)
		return false
	}

	rec := res.Record
	rec.Seq = m.seq
	m.seq++
	m.totals.ParsedRecords++

	if !m.filter.Match(&rec) {
		m.totals.FilteredRecords++
		m.metrics.ObserveLine(metrics.LineFiltered)
		return true
	}
	m.metrics.ObserveLine(metrics.LineParsed)
	m.dispatch(&rec)
	return true
}

// dispatch must be called with mu held.
func (m *Manager) dispatch(rec *model.PacketRecord) {
	if m.running {
		m.inflight.Add(len(m.channels))
		for _, ch := range m.channels {
			ch <- rec
		}
		return
	}
	for _, task := range m.tasks {
		task.ProcessPacket(rec)
	}
}

// RunResults folds a stream of parser outcomes into the current state and
// returns the resulting snapshot. If the source fails or ctx is cancelled,
// the snapshot covers the consumed prefix, is marked partial and is returned
// together with the error.
func (m *Manager) RunResults(ctx context.Context, results iter.Seq2[protocol.ParseResult, error]) (*model.Result, error) {
	start := time.Now()
	var runErr error
	for res, err := range results {
		if err != nil {
			runErr = fmt.Errorf("%w: %w", model.ErrUpstreamRead, err)
			break
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			runErr = fmt.Errorf("processing interrupted: %w", ctxErr)
			break
		}
		m.ProcessResult(res)
	}

	result := m.Snapshot()
	if runErr != nil {
		result.Partial = true
		log.WithField("records", result.Totals.ParsedRecords).Warnf("Trace processing incomplete: %v", runErr)
		return result, runErr
	}
	m.metrics.ObserveRun(time.Since(start))
	return result, nil
}

// RunLines is RunResults over raw text trace lines.
func (m *Manager) RunLines(ctx context.Context, lines iter.Seq2[string, error]) (*model.Result, error) {
	return m.RunResults(ctx, func(yield func(protocol.ParseResult, error) bool) {
		for line, err := range lines {
			if err != nil {
				yield(protocol.ParseResult{}, err)
				return
			}
			if !yield(protocol.ParseLine(line), nil) {
				return
			}
		}
	})
}

// RunRecords is RunResults over already parsed records.
func (m *Manager) RunRecords(ctx context.Context, records iter.Seq2[model.PacketRecord, error]) (*model.Result, error) {
	return m.RunResults(ctx, func(yield func(protocol.ParseResult, error) bool) {
		for rec, err := range records {
			if err != nil {
				yield(protocol.ParseResult{}, err)
				return
			}
			if !yield(protocol.ParseResult{Status: protocol.Matched, Record: rec}, nil) {
				return
			}
		}
	})
}

// Snapshot returns the aggregates of every record folded in so far.
func (m *Manager) Snapshot() *model.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Reset clears all reducers and counters.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

// Rotate returns a snapshot and resets in one step, so no record falls
// between two consecutive snapshots.
func (m *Manager) Rotate() *model.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := m.snapshotLocked()
	m.resetLocked()
	return res
}

func (m *Manager) snapshotLocked() *model.Result {
	m.inflight.Wait()

	snaps := make([]*flowaggregator.Snapshot, len(m.flows))
	for i, flow := range m.flows {
		snaps[i] = flow.Snapshot()
	}
	flows := flowaggregator.Merge(snaps...)
	handshakes, flags := m.tracker.Snapshot()

	totals := m.totals
	totals.QualifyingPackets = flows.QualifyingPackets
	totals.AttributedPackets = flows.AttributedPackets()
	totals.UniqueConnections = len(flows.Connections)

	sample := flows.Sample
	if sample == nil {
		sample = []model.FlowEvent{}
	}
	signatures := m.detector.Snapshot()
	if signatures == nil {
		signatures = []model.SignatureCount{}
	}

	res := &model.Result{
		ServicePort: m.reg.ServicePort(),
		Groups:      flows.Aggregates(),
		Sample:      sample,
		Handshakes:  handshakes,
		FlagCounts:  flags,
		Signatures:  signatures,
		Totals:      totals,
	}
	m.metrics.ObserveResult(res)
	return res
}

func (m *Manager) resetLocked() {
	m.inflight.Wait()

	var wg sync.WaitGroup
	wg.Add(len(m.tasks))
	for _, task := range m.tasks {
		go func(t taskmodel.Task) {
			defer wg.Done()
			t.Reset()
		}(task)
	}
	wg.Wait()

	m.seq = 0
	m.totals = model.Totals{}
	log.Debugf("All tasks have been reset at %s", time.Now().Format("2006-01-02_15-04-05"))
}
