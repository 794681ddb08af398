// SPDX-License-Identifier: Apache-2.0
package resilience

import (
	"context"
	"errors"
	"time"

	kerrors "github.com/jllopis/campusdesk/pkg/errors"
)

// WithTimeout runs fn under a deadline of d. A zero d runs fn unbounded.
// Exceeding the deadline yields a recoverable TIMEOUT error.
func WithTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	v, err := fn(ctx)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		var zero T
		return zero, kerrors.New(kerrors.CodeTimeout, "operation exceeded timeout", err).
			WithContext("timeout", d.String()).
			WithRecoverable(true)
	}
	return v, err
}
