// Package repository defines storage interfaces implemented by concrete session backends.
package repository

import (
	"context"

	"github.com/and161185/travelblog/internal/model"
)

// SessionRepository persists one token pair per API origin.
// Implementations must write the pair atomically: a reader never sees access and refresh
// tokens from different sessions.
type SessionRepository interface {
	// Load returns the stored pair, or empty Tokens and nil error when none is stored.
	Load(ctx context.Context, origin string) (model.Tokens, error)
	// Save replaces the pair for origin.
	Save(ctx context.Context, origin string, t model.Tokens) error
	// Delete removes the pair for origin. Deleting a missing pair is not an error.
	Delete(ctx context.Context, origin string) error
}
