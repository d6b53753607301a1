package query

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"Go2TraceSpectra/internal/config"
	"Go2TraceSpectra/internal/report"
	"Go2TraceSpectra/internal/snapshot"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// DefaultLimit bounds history queries that do not set a limit.
const DefaultLimit = 100

// Querier reads persisted per-group report history.
type Querier interface {
	// GroupHistory returns the latest rows of a group, newest first.
	GroupHistory(ctx context.Context, group string, limit int) ([]report.GroupRow, error)
	Close() error
}

// New creates the querier named by the API history source.
func New(cfg *config.Config) (Querier, error) {
	switch cfg.API.HistorySource {
	case "clickhouse":
		for _, w := range cfg.Writers {
			if w.Type == "clickhouse" {
				return NewClickHouseQuerier(w.ClickHouse)
			}
		}
		return nil, fmt.Errorf("history source clickhouse has no clickhouse writer configured")
	case "sqlite":
		for _, w := range cfg.Writers {
			if w.Type == "sqlite" {
				return NewSQLiteQuerier(w.SQLite)
			}
		}
		return nil, fmt.Errorf("history source sqlite has no sqlite writer configured")
	case "":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown history source: '%s'", cfg.API.HistorySource)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}

// clickhouseQuerier implements Querier for ClickHouse.
type clickhouseQuerier struct {
	conn driver.Conn
}

// NewClickHouseQuerier creates a new querier for ClickHouse.
func NewClickHouseQuerier(cfg config.ClickHouseConfig) (Querier, error) {
	conn, err := snapshot.ConnectClickHouse(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	return &clickhouseQuerier{conn: conn}, nil
}

func (q *clickhouseQuerier) GroupHistory(ctx context.Context, group string, limit int) ([]report.GroupRow, error) {
	rows, err := q.conn.Query(ctx, `
		SELECT Timestamp, ReportID, Source, GroupName, Packets, Bytes, Peers, Syns, SharePercent, Verdict, Partial
		FROM group_reports
		WHERE GroupName = ?
		ORDER BY Timestamp DESC
		LIMIT ?`, group, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var out []report.GroupRow
	for rows.Next() {
		var r report.GroupRow
		if err := rows.Scan(&r.Timestamp, &r.ReportID, &r.Source, &r.Group, &r.Packets, &r.Bytes,
			&r.Peers, &r.Syns, &r.SharePercent, &r.Verdict, &r.Partial); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *clickhouseQuerier) Close() error {
	return q.conn.Close()
}

// sqliteQuerier implements Querier for the SQLite report store.
type sqliteQuerier struct {
	db *sql.DB
}

// NewSQLiteQuerier opens the SQLite report store for reading.
func NewSQLiteQuerier(cfg config.SQLiteConfig) (Querier, error) {
	db, err := snapshot.OpenSQLite(cfg.Path)
	if err != nil {
		return nil, err
	}
	return &sqliteQuerier{db: db}, nil
}

func (q *sqliteQuerier) GroupHistory(ctx context.Context, group string, limit int) ([]report.GroupRow, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT timestamp, report_id, source, group_name, packets, bytes, peers, syns, share_percent, verdict, partial
		FROM group_reports
		WHERE group_name = ?
		ORDER BY timestamp DESC
		LIMIT ?`, group, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var out []report.GroupRow
	for rows.Next() {
		var (
			r                      report.GroupRow
			ts, packets, byteCount int64
		)
		if err := rows.Scan(&ts, &r.ReportID, &r.Source, &r.Group, &packets, &byteCount,
			&r.Peers, &r.Syns, &r.SharePercent, &r.Verdict, &r.Partial); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		r.Timestamp = time.Unix(0, ts).UTC()
		r.Packets = uint64(packets)
		r.Bytes = uint64(byteCount)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *sqliteQuerier) Close() error {
	return q.db.Close()
}
