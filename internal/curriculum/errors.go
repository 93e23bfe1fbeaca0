package curriculum

import (
	"context"
	"errors"
	"fmt"

	"github.com/abhisek/traverse/internal/lock"
	"github.com/abhisek/traverse/internal/observe"
	"github.com/abhisek/traverse/internal/store"
)

var (
	// ErrUnknownPath is returned when a path does not exist.
	ErrUnknownPath = errors.New("unknown path")

	// ErrNotOwner is returned when a path exists but belongs to another
	// user. It matches ErrUnknownPath so callers can treat both as not found.
	ErrNotOwner = fmt.Errorf("%w: owned by another user", ErrUnknownPath)

	// ErrUnknownNode is returned when a node is not part of the path.
	ErrUnknownNode = errors.New("unknown node")

	// ErrUnknownChallenge is returned when a challenge does not exist.
	ErrUnknownChallenge = errors.New("unknown challenge")

	// ErrInvalidInput is returned for missing or malformed arguments.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConcurrentModification is returned when the path lock or the
	// database write lock could not be acquired in time. The operation had
	// no effect and may be retried.
	ErrConcurrentModification = errors.New("concurrent modification")
)

// conflict tags lock and database contention as ErrConcurrentModification.
func conflict(err error) error {
	if errors.Is(err, lock.ErrTimeout) || errors.Is(err, store.ErrBusy) {
		return fmt.Errorf("%w: %w", ErrConcurrentModification, err)
	}
	return err
}

// RetryOnce runs fn and runs it a second time if the first call failed with
// ErrConcurrentModification. It is meant for callers of the Service; the
// Service itself never retries. obs may be nil.
func RetryOnce(ctx context.Context, obs observe.Observer, fn func() error) error {
	err := fn()
	if errors.Is(err, ErrConcurrentModification) {
		observe.OrNop(obs).Event(ctx, observe.EventConcurrentRetry, observe.String("error", err.Error()))
		err = fn()
	}
	return err
}
