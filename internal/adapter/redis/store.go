// Package redis caches the latest variation report per strata and the
// aggregator checkpoint.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/censoc-variation-service/internal/aggregate"
	"github.com/couchcryptid/censoc-variation-service/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// Store implements pipeline.ReportSink and pipeline.Checkpointer.
type Store struct {
	client    *goredis.Client
	namespace string
	logger    *slog.Logger
}

// NewStore creates a Store. Keys are prefixed with namespace so several
// consumer groups can share one Redis database.
func NewStore(addr, password string, db int, namespace string, logger *slog.Logger) *Store {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Store{client: client, namespace: namespace, logger: logger}
}

// Ping verifies the connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

func (s *Store) reportKey(strata domain.Strata) string {
	return fmt.Sprintf("censoc:%s:report:%s", s.namespace, strata)
}

func (s *Store) checkpointKey() string {
	return fmt.Sprintf("censoc:%s:checkpoint", s.namespace)
}

// PublishReport replaces the cached report for the report's strata.
func (s *Store) PublishReport(ctx context.Context, report domain.VariationReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := s.client.Set(ctx, s.reportKey(report.Strata), data, 0).Err(); err != nil {
		return fmt.Errorf("cache report: %w", err)
	}
	return nil
}

// LatestReport returns the cached report for strata, or nil if none exists.
func (s *Store) LatestReport(ctx context.Context, strata domain.Strata) (*domain.VariationReport, error) {
	data, err := s.client.Get(ctx, s.reportKey(strata)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cached report: %w", err)
	}

	var report domain.VariationReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("unmarshal cached report: %w", err)
	}
	return &report, nil
}

// SaveCheckpoint stores the aggregator cells.
func (s *Store) SaveCheckpoint(ctx context.Context, cells []aggregate.Cell) error {
	data, err := json.Marshal(cells)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := s.client.Set(ctx, s.checkpointKey(), data, 0).Err(); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	s.logger.Debug("checkpoint saved", "cells", len(cells))
	return nil
}

// LoadCheckpoint returns the stored cells, or nil when no checkpoint exists.
func (s *Store) LoadCheckpoint(ctx context.Context) ([]aggregate.Cell, error) {
	data, err := s.client.Get(ctx, s.checkpointKey()).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	var cells []aggregate.Cell
	if err := json.Unmarshal(data, &cells); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return cells, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
