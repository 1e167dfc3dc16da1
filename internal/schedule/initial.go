package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// RunAll calls fn for every id concurrently, at most limit at a time
// (unlimited when limit <= 0), and waits for all of them.
//
// A failing call does not cancel the others. The returned error joins every
// failure, each prefixed with its id; it is nil when all calls succeed.
func RunAll(ctx context.Context, ids []string, limit int, fn func(ctx context.Context, id string) error) error {
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	for _, id := range ids {
		g.Go(func() error {
			if err := fn(ctx, id); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", id, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}
