package snapshot

import (
	"context"
	"fmt"

	"Go2TraceSpectra/internal/config"
	"Go2TraceSpectra/internal/factory"
	"Go2TraceSpectra/internal/model"
	"Go2TraceSpectra/internal/report"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	log "github.com/sirupsen/logrus"
)

func init() {
	factory.RegisterWriter("clickhouse", func(def config.WriterDef) (model.Writer, error) {
		return NewClickHouseWriter(def.ClickHouse)
	})
}

const createClickHouseTable = `
CREATE TABLE IF NOT EXISTS group_reports (
    Timestamp    DateTime,
    ReportID     String,
    Source       String,
    GroupName    String,
    Packets      UInt64,
    Bytes        UInt64,
    Peers        UInt32,
    Syns         UInt32,
    SharePercent Float64,
    Verdict      String,
    Partial      Bool
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (GroupName, Timestamp);
`

// ClickHouseWriter inserts one row per group and report into ClickHouse.
type ClickHouseWriter struct {
	conn driver.Conn
}

// NewClickHouseWriter connects and ensures the group_reports table exists.
func NewClickHouseWriter(cfg config.ClickHouseConfig) (*ClickHouseWriter, error) {
	conn, err := ConnectClickHouse(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	if err := conn.Exec(context.Background(), createClickHouseTable); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	log.Println("Successfully connected to ClickHouse and ensured table exists.")
	return &ClickHouseWriter{conn: conn}, nil
}

// ConnectClickHouse opens and pings a ClickHouse connection.
func ConnectClickHouse(cfg config.ClickHouseConfig) (driver.Conn, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

// Name returns the writer type.
func (w *ClickHouseWriter) Name() string { return "clickhouse" }

// Write inserts the report rows as one batch.
func (w *ClickHouseWriter) Write(rep *report.Report) error {
	rows := rep.Rows()
	if len(rows) == 0 {
		return nil
	}

	batch, err := w.conn.PrepareBatch(context.Background(), "INSERT INTO group_reports")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, r := range rows {
		err = batch.Append(
			r.Timestamp,
			r.ReportID,
			r.Source,
			r.Group,
			r.Packets,
			r.Bytes,
			r.Peers,
			r.Syns,
			r.SharePercent,
			r.Verdict,
			r.Partial,
		)
		if err != nil {
			return fmt.Errorf("failed to append row to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	log.Printf("Wrote %d group rows to ClickHouse for report '%s'", len(rows), rep.ID)
	return nil
}

// Close closes the connection.
func (w *ClickHouseWriter) Close() error {
	return w.conn.Close()
}
