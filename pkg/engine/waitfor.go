package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"domcache/pkg/dom"
	"domcache/pkg/utils"
)

// resolve tries a discriminator as an id first, then as a CSS selector.
func (e *Engine) resolve(discriminator string) *dom.Node {
	if n := e.LookupByID(discriminator); n != nil {
		return n
	}
	return e.LookupSelector(discriminator)
}

// WaitFor polls until every discriminator resolves to an element or the
// timeout elapses (timeout <= 0 uses the configured default). On timeout
// the error wraps ErrWaitTimeout and names every discriminator that never
// resolved; if the caller's ctx is canceled first the error wraps
// context.Canceled instead. The poll granularity is wait_poll_interval, so
// resolution can lag actual attachment by up to one interval.
func (e *Engine) WaitFor(ctx context.Context, discriminators []string, timeout time.Duration) (map[string]*dom.Node, error) {
	if len(discriminators) == 0 {
		return map[string]*dom.Node{}, nil
	}
	e.mu.Lock()
	pollInterval := e.cfg.WaitPollInterval
	defaultTimeout := e.cfg.WaitTimeout
	e.mu.Unlock()
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var mu sync.Mutex
	found := make(map[string]*dom.Node, len(discriminators))
	var missing []string

	g, ctx := errgroup.WithContext(ctx)
	for _, d := range discriminators {
		d := d
		g.Go(func() error {
			ticker := time.NewTicker(pollInterval)
			defer ticker.Stop()
			for {
				if n := e.resolve(d); n != nil {
					mu.Lock()
					found[d] = n
					mu.Unlock()
					return nil
				}
				select {
				case <-ctx.Done():
					mu.Lock()
					missing = append(missing, d)
					mu.Unlock()
					return ctx.Err()
				case <-ticker.C:
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		sort.Strings(missing)
		// Caller cancellation is not a timeout; report it as what it is.
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("wait canceled: %w", err)
		}
		return nil, fmt.Errorf("%w after %v: %s", utils.ErrWaitTimeout, timeout, strings.Join(missing, ", "))
	}
	return found, nil
}

// WaitForElement is WaitFor for a single discriminator.
func (e *Engine) WaitForElement(ctx context.Context, discriminator string, timeout time.Duration) (*dom.Node, error) {
	found, err := e.WaitFor(ctx, []string{discriminator}, timeout)
	if err != nil {
		return nil, err
	}
	return found[discriminator], nil
}

// Require resolves every discriminator immediately and fails if any are
// missing. This is the only lookup path that surfaces absence as an error;
// everything else degrades to nil/empty.
func (e *Engine) Require(discriminators ...string) (map[string]*dom.Node, error) {
	found := make(map[string]*dom.Node, len(discriminators))
	var missing []string
	for _, d := range discriminators {
		if n := e.resolve(d); n != nil {
			found[d] = n
		} else {
			missing = append(missing, d)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", utils.ErrRequiredMissing, strings.Join(missing, ", "))
	}
	return found, nil
}
