package snapshot

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"Go2TraceSpectra/internal/config"
	"Go2TraceSpectra/internal/factory"
	"Go2TraceSpectra/internal/model"
	"Go2TraceSpectra/internal/report"

	log "github.com/sirupsen/logrus"
)

// TimestampLayout names the per-report directories of the file writers.
const TimestampLayout = "2006-01-02_15-04-05"

func init() {
	factory.RegisterWriter("text", func(def config.WriterDef) (model.Writer, error) {
		return NewTextWriter(def.Path), nil
	})
	factory.RegisterWriter("json", func(def config.WriterDef) (model.Writer, error) {
		return NewJSONWriter(def.Path), nil
	})
	factory.RegisterWriter("gob", func(def config.WriterDef) (model.Writer, error) {
		return NewGobWriter(def.Path), nil
	})
}

// SummaryData holds the metadata written next to a gob report.
type SummaryData struct {
	ReportID          string `json:"report_id"`
	Source            string `json:"source"`
	Verdict           string `json:"verdict"`
	Groups            int    `json:"groups"`
	AttributedPackets uint64 `json:"attributed_packets"`
	Partial           bool   `json:"partial"`
	Timestamp         string `json:"timestamp"`
}

// reportDir creates <root>/<timestamp>_<id prefix> for one report.
func reportDir(root string, rep *report.Report) (string, error) {
	id := rep.ID
	if len(id) > 8 {
		id = id[:8]
	}
	dir := filepath.Join(root, rep.GeneratedAt.Format(TimestampLayout)+"_"+id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return dir, nil
}

func createIn(root string, rep *report.Report, name string) (*os.File, error) {
	dir, err := reportDir(root, rep)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot file '%s': %w", path, err)
	}
	return file, nil
}

// TextWriter writes the human-readable report.
type TextWriter struct {
	rootPath string
}

// NewTextWriter creates a text writer below rootPath.
func NewTextWriter(rootPath string) *TextWriter {
	return &TextWriter{rootPath: rootPath}
}

// Name returns the writer type.
func (w *TextWriter) Name() string { return "text" }

// Write renders the report to report.txt.
func (w *TextWriter) Write(rep *report.Report) error {
	file, err := createIn(w.rootPath, rep, "report.txt")
	if err != nil {
		return err
	}
	defer file.Close()

	if err := report.RenderText(file, rep); err != nil {
		return fmt.Errorf("failed to render text report: %w", err)
	}
	return nil
}

// JSONWriter writes the structured report.
type JSONWriter struct {
	rootPath string
}

// NewJSONWriter creates a JSON writer below rootPath.
func NewJSONWriter(rootPath string) *JSONWriter {
	return &JSONWriter{rootPath: rootPath}
}

// Name returns the writer type.
func (w *JSONWriter) Name() string { return "json" }

// Write encodes the report to report.json.
func (w *JSONWriter) Write(rep *report.Report) error {
	file, err := createIn(w.rootPath, rep, "report.json")
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(rep); err != nil {
		return fmt.Errorf("failed to encode report to json: %w", err)
	}
	return nil
}

// GobWriter writes the report in gob format with a JSON summary beside it.
type GobWriter struct {
	rootPath string
}

// NewGobWriter creates a gob writer below rootPath.
func NewGobWriter(rootPath string) *GobWriter {
	return &GobWriter{rootPath: rootPath}
}

// Name returns the writer type.
func (w *GobWriter) Name() string { return "gob" }

// Write encodes the report to report.dat and summary.json.
func (w *GobWriter) Write(rep *report.Report) error {
	file, err := createIn(w.rootPath, rep, "report.dat")
	if err != nil {
		return err
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(rep); err != nil {
		return fmt.Errorf("failed to encode report to gob: %w", err)
	}

	summary := SummaryData{
		ReportID:          rep.ID,
		Source:            rep.Source,
		Verdict:           string(rep.Verdict),
		Groups:            len(rep.Groups),
		AttributedPackets: rep.Totals.AttributedPackets,
		Partial:           rep.Partial,
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
	}
	summaryFile, err := createIn(w.rootPath, rep, "summary.json")
	if err != nil {
		return err
	}
	defer summaryFile.Close()

	jsonEncoder := json.NewEncoder(summaryFile)
	jsonEncoder.SetIndent("", "  ")
	if err := jsonEncoder.Encode(summary); err != nil {
		return fmt.Errorf("failed to encode summary to json: %w", err)
	}
	log.WithField("report", rep.ID).Debugf("Wrote gob report to %s", w.rootPath)
	return nil
}

// ReadGob decodes a report written by GobWriter.
func ReadGob(path string) (*report.Report, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var rep report.Report
	if err := gob.NewDecoder(file).Decode(&rep); err != nil {
		return nil, fmt.Errorf("failed to decode gob report '%s': %w", path, err)
	}
	return &rep, nil
}
