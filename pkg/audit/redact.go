package audit

import "context"

// Redactor rewrites text before it is persisted.
type Redactor interface {
	Redact(ctx context.Context, text string) string
}

type redacting struct {
	next     Store
	redactor Redactor
}

// Redacting wraps next so entry arguments and messages pass through r
// before they are stored. A nil r returns next unchanged.
func Redacting(next Store, r Redactor) Store {
	if r == nil {
		return next
	}
	return &redacting{next: next, redactor: r}
}

func (s *redacting) Record(ctx context.Context, entry Entry) error {
	entry.Arguments = s.redactor.Redact(ctx, entry.Arguments)
	entry.Message = s.redactor.Redact(ctx, entry.Message)
	return s.next.Record(ctx, entry)
}

func (s *redacting) List(ctx context.Context, filter Filter) ([]Entry, error) {
	return s.next.List(ctx, filter)
}
