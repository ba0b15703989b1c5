package ports

import (
	"context"
)

// RetryScope separates the two independent failure counters
type RetryScope string

const (
	// RetryScopeUser counts failed tokenization attempts per registered user
	RetryScopeUser RetryScope = "user"
	// RetryScopeOrder counts failed payment attempts per order
	RetryScopeOrder RetryScope = "order"
)

// RetryRepository tracks weekly failure counts. Increment must be atomic so
// two concurrent failures cannot both observe the same count.
type RetryRepository interface {
	// Count returns the bucket's current value, 0 when absent
	Count(ctx context.Context, scope RetryScope, subjectID string, weekKey string) (int, error)

	// Increment adds one to the bucket and returns the new value,
	// creating the bucket at 1 when absent. Buckets from earlier weeks
	// are left in place.
	Increment(ctx context.Context, scope RetryScope, subjectID string, weekKey string) (int, error)
}
