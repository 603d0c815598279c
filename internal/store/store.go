package store

import (
	"context"
	"errors"

	"github.com/punchamoorthee/nobreverify/internal/domain"
)

var (
	ErrEmptyIdentity = errors.New("identity must not be empty")
	ErrNotFound      = errors.New("identity not recorded")
)

// Ledger records identities that already completed verification. Entries
// are never updated or removed.
type Ledger interface {
	// Contains reports whether identity was recorded. A ledger whose backing
	// storage does not exist yet contains nothing.
	Contains(ctx context.Context, identity string) (bool, error)
	// Append records identity without checking for a previous entry.
	Append(ctx context.Context, identity string) error
	// InsertIfAbsent records identity unless present, atomically. It returns
	// false when the identity was already recorded.
	InsertIfAbsent(ctx context.Context, identity string) (bool, error)
	Close() error
}

// RecordGetter is implemented by ledgers that keep per-entry metadata.
type RecordGetter interface {
	Get(ctx context.Context, identity string) (*domain.IdentityRecord, error)
}
