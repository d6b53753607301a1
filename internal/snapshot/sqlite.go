package snapshot

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"Go2TraceSpectra/internal/config"
	"Go2TraceSpectra/internal/factory"
	"Go2TraceSpectra/internal/model"
	"Go2TraceSpectra/internal/report"

	_ "github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"
)

func init() {
	factory.RegisterWriter("sqlite", func(def config.WriterDef) (model.Writer, error) {
		return NewSQLiteWriter(def.SQLite)
	})
}

const createSQLiteTable = `
CREATE TABLE IF NOT EXISTS group_reports (
	timestamp     INTEGER NOT NULL,
	report_id     TEXT    NOT NULL,
	source        TEXT    NOT NULL,
	group_name    TEXT    NOT NULL,
	packets       INTEGER NOT NULL,
	bytes         INTEGER NOT NULL,
	peers         INTEGER NOT NULL,
	syns          INTEGER NOT NULL,
	share_percent REAL    NOT NULL,
	verdict       TEXT    NOT NULL,
	partial       INTEGER NOT NULL,
	PRIMARY KEY (report_id, group_name)
);
CREATE INDEX IF NOT EXISTS idx_group_reports_group_time ON group_reports(group_name, timestamp);
`

// OpenSQLite opens the report store, creating the file and schema if needed.
func OpenSQLite(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(createSQLiteTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return db, nil
}

// SQLiteWriter stores one row per group and report in SQLite.
type SQLiteWriter struct {
	db *sql.DB
}

// NewSQLiteWriter opens the configured database.
func NewSQLiteWriter(cfg config.SQLiteConfig) (*SQLiteWriter, error) {
	db, err := OpenSQLite(cfg.Path)
	if err != nil {
		return nil, err
	}
	log.Printf("Opened SQLite report store at %s", cfg.Path)
	return &SQLiteWriter{db: db}, nil
}

// Name returns the writer type.
func (w *SQLiteWriter) Name() string { return "sqlite" }

// Write inserts the report rows in one transaction.
func (w *SQLiteWriter) Write(rep *report.Report) error {
	rows := rep.Rows()
	if len(rows) == 0 {
		return nil
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO group_reports
		(timestamp, report_id, source, group_name, packets, bytes, peers, syns, share_percent, verdict, partial)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		_, err := stmt.Exec(r.Timestamp.UnixNano(), r.ReportID, r.Source, r.Group,
			int64(r.Packets), int64(r.Bytes), r.Peers, r.Syns, r.SharePercent, r.Verdict, r.Partial)
		if err != nil {
			return fmt.Errorf("insert group row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close closes the database.
func (w *SQLiteWriter) Close() error {
	return w.db.Close()
}
