// Package clickhouse stores the history of variation reports.
package clickhouse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/couchcryptid/censoc-variation-service/internal/domain"
)

const createTable = `
	CREATE TABLE IF NOT EXISTS period_variations (
		report_id String,
		strata LowCardinality(String),
		leap_rule LowCardinality(String),
		generated_at DateTime64(3, 'UTC'),
		category String,
		sex LowCardinality(String),
		age_group LowCardinality(String),
		year UInt16,
		month UInt8,
		weighted_count Float64,
		deaths UInt32,
		moving_total Nullable(Float64),
		expected_count Nullable(Float64),
		variation Nullable(Float64)
	) ENGINE = MergeTree()
	ORDER BY (strata, category, year, month, generated_at)
`

// Config holds connection settings.
type Config struct {
	Addr        string
	Database    string
	Username    string
	Password    string
	DialTimeout time.Duration
}

// Repository implements pipeline.ReportSink on a ClickHouse table.
type Repository struct {
	conn   driver.Conn
	logger *slog.Logger
}

// NewRepository connects, pings, and ensures the table exists.
func NewRepository(ctx context.Context, cfg Config, logger *slog.Logger) (*Repository, error) {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: cfg.DialTimeout,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}
	if err := conn.Exec(ctx, createTable); err != nil {
		return nil, fmt.Errorf("create period_variations table: %w", err)
	}

	return &Repository{conn: conn, logger: logger}, nil
}

// PublishReport appends every row of report in one batch insert.
func (r *Repository) PublishReport(ctx context.Context, report domain.VariationReport) error {
	if len(report.Variations) == 0 {
		return nil
	}
	batch, err := r.conn.PrepareBatch(ctx, "INSERT INTO period_variations")
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, v := range report.Variations {
		if err := batch.Append(toRow(report, v)...); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append variation row: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send variation batch: %w", err)
	}
	r.logger.Debug("variations stored", "report_id", report.ID, "rows", len(report.Variations))
	return nil
}

// toRow orders values to match the period_variations columns.
func toRow(report domain.VariationReport, v domain.PeriodVariation) []any {
	return []any{
		report.ID,
		string(report.Strata),
		report.LeapRule,
		report.GeneratedAt,
		v.Category.Key(),
		v.Category.Sex,
		v.Category.AgeGroup,
		uint16(v.Year),
		uint8(v.Month),
		v.WeightedCount,
		uint32(v.Deaths),
		v.MovingTotal,
		v.ExpectedCount,
		v.Variation,
	}
}

// ReportVariations reads back the rows of one report ordered by category
// and period.
func (r *Repository) ReportVariations(ctx context.Context, reportID string) ([]domain.PeriodVariation, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT sex, age_group, year, month, weighted_count, deaths,
			moving_total, expected_count, variation
		FROM period_variations
		WHERE report_id = ?
		ORDER BY category, year, month
	`, reportID)
	if err != nil {
		return nil, fmt.Errorf("query report variations: %w", err)
	}
	defer rows.Close()

	var out []domain.PeriodVariation
	for rows.Next() {
		var (
			v      domain.PeriodVariation
			year   uint16
			month  uint8
			deaths uint32
		)
		if err := rows.Scan(
			&v.Category.Sex,
			&v.Category.AgeGroup,
			&year,
			&month,
			&v.WeightedCount,
			&deaths,
			&v.MovingTotal,
			&v.ExpectedCount,
			&v.Variation,
		); err != nil {
			return nil, fmt.Errorf("scan variation row: %w", err)
		}
		v.Year, v.Month, v.Deaths = int(year), int(month), int(deaths)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variation rows: %w", err)
	}
	return out, nil
}

func (r *Repository) Close() error {
	return r.conn.Close()
}
