package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/censoc-variation-service/internal/domain"
)

// DeathTransformer implements Transformer: parse, enrich, then validate
// against the coverage window.
type DeathTransformer struct {
	groups  domain.AgeGroups
	minYear int
	maxYear int
	logger  *slog.Logger
}

// NewTransformer creates a DeathTransformer. A zero year bound disables that
// side of the window.
func NewTransformer(groups domain.AgeGroups, minYear, maxYear int, logger *slog.Logger) *DeathTransformer {
	return &DeathTransformer{
		groups:  groups,
		minYear: minYear,
		maxYear: maxYear,
		logger:  logger,
	}
}

func (t *DeathTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.DeathRecord, error) {
	rec, err := domain.ParseRawEvent(raw)
	if err != nil {
		return domain.DeathRecord{}, err
	}
	return t.Prepare(rec)
}

// Prepare enriches and validates an already parsed record. The offline CLI
// uses it for CSV rows.
func (t *DeathTransformer) Prepare(rec domain.DeathRecord) (domain.DeathRecord, error) {
	rec = domain.EnrichDeathRecord(rec, t.groups)
	if rec.AgeGroup == domain.UnknownAgeGroup {
		if rec.DeathAge == nil {
			t.logger.Debug("death age unknown", "id", rec.ID)
		} else {
			t.logger.Debug("death age outside configured age groups", "id", rec.ID, "death_age", *rec.DeathAge)
		}
	}
	if err := domain.ValidateDeathRecord(rec, t.minYear, t.maxYear); err != nil {
		return domain.DeathRecord{}, err
	}
	return rec, nil
}
