// Package contentstore abstracts the external content store the engine
// mutates: post fields, post meta, and site-wide options.
package contentstore

import (
	"context"
	"errors"
)

// Post fields the engine reads and writes.
const (
	FieldTitle   = "title"
	FieldContent = "content"
	FieldExcerpt = "excerpt"
	FieldStatus  = "status"
	FieldDate    = "date"
)

// ErrNotFound distinguishes a missing resource/field/key from a store
// failure. Callers must check with errors.Is.
var ErrNotFound = errors.New("not found")

// IsNotFound reports whether err means the resource does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Store is the engine's view of the content store. All writes honor the
// acting user carried in ctx (see WithActor).
type Store interface {
	ReadField(ctx context.Context, resourceID, field string) (string, error)
	WriteField(ctx context.Context, resourceID, field, value string) error
	ReadMeta(ctx context.Context, resourceID, key string) (string, error)
	WriteMeta(ctx context.Context, resourceID, key, value string) error
	ReadOption(ctx context.Context, key string) (string, error)
	WriteOption(ctx context.Context, key, value string) error
}

type actorKey struct{}

// WithActor returns a context whose store writes are attributed to userID.
// Scoping attribution through the context guarantees the previous identity
// is restored on every exit path: the derived context simply goes out of
// scope.
func WithActor(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}

	return context.WithValue(ctx, actorKey{}, userID)
}

// Actor returns the acting user for ctx, or "" when none was set.
func Actor(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)

	return actor
}
