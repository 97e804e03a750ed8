// Package store owns the persisted claim collection. All mutation goes
// through Update, which serializes load-mutate-save behind a single writer.
package store

import (
	"errors"

	"github.com/savline-dev/savline/internal/claim"
)

// ErrCorrupt is returned when the persisted document exists but cannot be
// decoded into the claim collection.
var ErrCorrupt = errors.New("store: persisted document is corrupt")

// Store is the persistence contract for the claim collection. FileStore is
// the flat-file implementation; tests may substitute their own.
type Store interface {
	// LoadAll returns the full ordered claim collection, empty if no
	// document has been written yet.
	LoadAll() ([]claim.Claim, error)
	// SaveAll overwrites the persisted document with the given collection.
	SaveAll(claims []claim.Claim) error
	// Update runs mutate over the freshly loaded collection and persists
	// the result, all inside one writer critical section. Returning an
	// error from mutate aborts without writing.
	Update(mutate func(claims []claim.Claim) ([]claim.Claim, error)) error
	// NewID mints a fresh claim identifier, unique across the store.
	NewID() string
}
