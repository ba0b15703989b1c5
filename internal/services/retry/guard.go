package retry

import (
	"context"

	"go.uber.org/zap"

	"github.com/kevin07696/nmi-gateway/internal/domain/ports"
	"github.com/kevin07696/nmi-gateway/pkg/timeutil"
)

// Guard caps repeated attempts per subject per ISO week. Two independent
// scopes exist: user-scoped tokenization failures and order-scoped payment
// failures. A threshold of zero or less disables blocking entirely.
type Guard struct {
	repo      ports.RetryRepository
	threshold int
	logger    *zap.Logger
}

// NewGuard creates a new retry guard
func NewGuard(repo ports.RetryRepository, threshold int, logger *zap.Logger) *Guard {
	return &Guard{
		repo:      repo,
		threshold: threshold,
		logger:    logger,
	}
}

// Enabled reports whether the guard blocks at all
func (g *Guard) Enabled() bool {
	return g.threshold > 0
}

// IsBlocked reports whether the subject has exhausted this week's attempts.
// Only the current week's bucket is consulted; older buckets are kept for
// audit but never read.
func (g *Guard) IsBlocked(ctx context.Context, scope ports.RetryScope, subjectID string) (bool, error) {
	if !g.Enabled() {
		return false, nil
	}

	weekKey := timeutil.WeekKey(timeutil.Now())
	count, err := g.repo.Count(ctx, scope, subjectID, weekKey)
	if err != nil {
		return false, err
	}

	blocked := count >= g.threshold
	g.logger.Debug("retry guard checked",
		zap.String("scope", string(scope)),
		zap.String("subject_id", subjectID),
		zap.String("week_key", weekKey),
		zap.Int("count", count),
		zap.Int("threshold", g.threshold),
		zap.Bool("blocked", blocked),
	)
	return blocked, nil
}

// RecordAttempt increments the subject's counter for the current week
func (g *Guard) RecordAttempt(ctx context.Context, scope ports.RetryScope, subjectID string) error {
	if !g.Enabled() {
		return nil
	}

	weekKey := timeutil.WeekKey(timeutil.Now())
	_, err := g.repo.Increment(ctx, scope, subjectID, weekKey)
	return err
}
