package model

import "Go2TraceSpectra/internal/report"

// Writer defines a generic interface for persisting finished reports.
type Writer interface {
	// Name identifies the writer in logs.
	Name() string

	// Write persists one report. Implementations must not modify it.
	Write(rep *report.Report) error
}
