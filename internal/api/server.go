// Package api serves analysis requests, the latest report and the report
// history over HTTP.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"Go2TraceSpectra/internal/config"
	"Go2TraceSpectra/internal/engine/manager"
	"Go2TraceSpectra/internal/metrics"
	"Go2TraceSpectra/internal/query"
	"Go2TraceSpectra/internal/report"
	"Go2TraceSpectra/pkg/pcap"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// MaxTraceBytes bounds the body of an analysis request.
const MaxTraceBytes = 256 << 20

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	engine  config.EngineConfig
	querier query.Querier
	metrics *metrics.Metrics

	mu     sync.RWMutex
	latest *report.Report
}

// NewServer creates a server. querier and m may be nil; without a querier
// the history endpoint answers 503.
func NewServer(engine config.EngineConfig, querier query.Querier, m *metrics.Metrics) *Server {
	return &Server{engine: engine, querier: querier, metrics: m}
}

// SetLatest replaces the report served by /api/v1/reports/latest.
func (s *Server) SetLatest(rep *report.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = rep
}

// Latest returns the most recent report, or nil.
func (s *Server) Latest() *report.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Router returns the HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.healthHandler).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	r.HandleFunc("/api/v1/analyze", s.analyzeHandler).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/reports/latest", s.latestHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/groups/{name}/history", s.historyHandler).Methods(http.MethodGet)
	return r
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// analyzeHandler runs a fresh engine over the request body, which may be a
// text trace or a pcap/pcapng capture. ?format= forces the encoding and
// ?source= names the trace in the report. An interrupted trace yields the
// partial report with status 422.
func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	mgr, err := manager.NewManager(s.engine, manager.WithMetrics(s.metrics))
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to create engine: %v", err), http.StatusInternalServerError)
		return
	}

	body := http.MaxBytesReader(w, r.Body, MaxTraceBytes)
	format, results, err := pcap.Stream(body, pcap.Format(r.URL.Query().Get("format")))
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read trace: %v", err), http.StatusBadRequest)
		return
	}

	source := r.URL.Query().Get("source")
	if source == "" {
		source = "http:" + string(format)
	}
	res, runErr := mgr.RunResults(r.Context(), results)
	rep := report.Build(res, report.Meta{Source: source, Filter: mgr.Filter(), Err: runErr})
	s.SetLatest(rep)

	status := http.StatusOK
	if runErr != nil {
		status = http.StatusUnprocessableEntity
	}
	log.WithFields(log.Fields{"report": rep.ID, "source": source, "records": rep.Totals.ParsedRecords}).
		Info("Analysis request completed.")
	writeJSON(w, status, rep)
}

func (s *Server) latestHandler(w http.ResponseWriter, r *http.Request) {
	rep := s.Latest()
	if rep == nil {
		http.Error(w, "no report available yet", http.StatusNotFound)
		return
	}
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := report.RenderText(w, rep); err != nil {
			log.Printf("Error rendering report %s: %v", rep.ID, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	if s.querier == nil {
		http.Error(w, "report history is not configured", http.StatusServiceUnavailable)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, fmt.Sprintf("invalid limit: '%s'", v), http.StatusBadRequest)
			return
		}
		limit = n
	}

	group := mux.Vars(r)["name"]
	rows, err := s.querier.GroupHistory(r.Context(), group, limit)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to query history: %v", err), http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []report.GroupRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to marshal response: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(jsonBytes)
}
