package ports

import (
	"context"
)

// OrderRepository is the write-back channel to the host system's orders:
// namespaced metadata, human-readable notes, and the failed flag.
type OrderRepository interface {
	// SetMeta stores a key/value pair on the order. Keys are namespaced by
	// the repository so the gateway cannot clobber foreign metadata.
	SetMeta(ctx context.Context, orderID, key, value string) error

	// GetMeta reads a previously stored value, "" when absent
	GetMeta(ctx context.Context, orderID, key string) (string, error)

	// AddNote appends a note to the order's history
	AddNote(ctx context.Context, orderID, note string) error

	// MarkFailed flips the order to failed and reports whether it already
	// was; callers use the flag to keep failure handling idempotent.
	MarkFailed(ctx context.Context, orderID string) (alreadyFailed bool, err error)
}
