package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/kevin07696/nmi-gateway/internal/domain/ports"
)

// RetryRepository tracks weekly attempt counters in PostgreSQL
type RetryRepository struct {
	db     ports.DBPort
	logger *zap.Logger
}

// NewRetryRepository creates a new retry repository
func NewRetryRepository(db ports.DBPort, logger *zap.Logger) *RetryRepository {
	return &RetryRepository{db: db, logger: logger}
}

var _ ports.RetryRepository = (*RetryRepository)(nil)

// Count returns the counter for the given scope, subject and week key.
// A missing row counts as zero.
func (r *RetryRepository) Count(ctx context.Context, scope ports.RetryScope, subjectID string, weekKey string) (int, error) {
	const query = `
		SELECT count FROM payment_retries
		WHERE scope = $1 AND subject_id = $2 AND week_key = $3`

	var count int
	err := r.db.GetDB().QueryRow(ctx, query, string(scope), subjectID, weekKey).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count retries: %w", err)
	}
	return count, nil
}

// Increment bumps the counter for the week and returns the new value.
// The upsert increments in a single statement so concurrent attempts
// cannot read-modify-write past each other. Buckets for earlier weeks
// are left in place.
func (r *RetryRepository) Increment(ctx context.Context, scope ports.RetryScope, subjectID string, weekKey string) (int, error) {
	const query = `
		INSERT INTO payment_retries (scope, subject_id, week_key, count)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (scope, subject_id, week_key)
		DO UPDATE SET count = payment_retries.count + 1, updated_at = now()
		RETURNING count`

	var count int
	err := r.db.GetDB().QueryRow(ctx, query, string(scope), subjectID, weekKey).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("increment retries: %w", err)
	}

	r.logger.Debug("retry counter incremented",
		zap.String("scope", string(scope)),
		zap.String("subject_id", subjectID),
		zap.String("week_key", weekKey),
		zap.Int("count", count),
	)
	return count, nil
}

// PruneStale deletes counters that have not been touched within the
// retention window. Week keys repeat across years, so age is judged by
// updated_at rather than by comparing keys.
func (r *RetryRepository) PruneStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	const query = `
		DELETE FROM payment_retries
		WHERE updated_at < now() - make_interval(secs => $1)`

	tag, err := r.db.GetDB().Exec(ctx, query, olderThan.Seconds())
	if err != nil {
		return 0, fmt.Errorf("prune retries: %w", err)
	}
	return tag.RowsAffected(), nil
}
