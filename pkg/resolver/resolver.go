// Package resolver maps human-readable names to record ids. Every call is a
// fresh lookup against the store; nothing is cached between calls.
package resolver

import (
	"context"
	"errors"
	"strings"

	kerrors "github.com/jllopis/campusdesk/pkg/errors"
	"github.com/jllopis/campusdesk/pkg/store"
)

// Finder is the slice of store.Store the resolver needs.
type Finder interface {
	FindByName(ctx context.Context, kind store.Kind, name string) (store.Record, error)
}

// Resolver resolves entity names to ids.
type Resolver struct {
	finder Finder
}

// New creates a resolver over finder.
func New(finder Finder) *Resolver {
	return &Resolver{finder: finder}
}

// Resolve returns the id of the first record of kind whose name equals
// name exactly. A miss yields an ENTITY_NOT_FOUND error whose message is
// "<Entity> not found".
func (r *Resolver) Resolve(ctx context.Context, kind store.Kind, name string) (int64, error) {
	rec, err := r.Lookup(ctx, kind, name)
	if err != nil {
		return 0, err
	}
	return rec.ID(), nil
}

// Lookup is Resolve returning the whole record.
func (r *Resolver) Lookup(ctx context.Context, kind store.Kind, name string) (store.Record, error) {
	rec, err := r.finder.FindByName(ctx, kind, name)
	if err == nil {
		return rec, nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, NotFound(kind).WithContext("name", name)
	}
	return nil, kerrors.New(kerrors.CodeInternal, "lookup failed", err).
		WithContext("kind", string(kind))
}

// NotFound builds the canonical miss error for kind.
func NotFound(kind store.Kind) *kerrors.Error {
	return kerrors.New(kerrors.CodeEntityNotFound, EntityLabel(kind)+" not found", nil).
		WithContext("kind", string(kind))
}

// EntityLabel is the capitalized display name of kind.
func EntityLabel(kind store.Kind) string {
	s := string(kind)
	if s == "" {
		return "Entity"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
