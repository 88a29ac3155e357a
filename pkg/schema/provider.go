// Package schema builds and caches database schema snapshots. Snapshots are
// immutable; a refresh constructs a fresh one and swaps an atomic pointer, so
// concurrent readers never observe a half-built schema.
package schema

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/askdb/askdb/pkg/models"
	"github.com/robfig/cron/v3"
)

// DefaultTTL is how long a snapshot is served before a refresh is attempted.
const DefaultTTL = time.Hour

// Fetcher introspects the target database into a snapshot.
type Fetcher interface {
	Fetch(ctx context.Context) (*models.SchemaSnapshot, error)
}

// Provider serves the current schema snapshot, refreshing it lazily when the
// TTL expires and eagerly on Invalidate or a cron tick.
type Provider struct {
	fetcher Fetcher
	ttl     time.Duration
	logger  *slog.Logger

	current atomic.Pointer[models.SchemaSnapshot]
	mu      sync.Mutex
}

// NewProvider builds a snapshot provider. A non-positive ttl falls back to
// DefaultTTL.
func NewProvider(fetcher Fetcher, ttl time.Duration, logger *slog.Logger) *Provider {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Provider{
		fetcher: fetcher,
		ttl:     ttl,
		logger:  logger.With("module", "schema"),
	}
}

// Snapshot returns the current snapshot, refreshing first if none exists or
// the cached one is older than the TTL. When a refresh fails but a stale
// snapshot exists, the stale one is served and the failure logged; answering
// from slightly old schema beats failing the request.
func (p *Provider) Snapshot(ctx context.Context) (*models.SchemaSnapshot, error) {
	if cur := p.current.Load(); cur != nil && time.Since(cur.BuiltAt) < p.ttl {
		return cur, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Another request may have refreshed while we waited for the lock.
	if cur := p.current.Load(); cur != nil && time.Since(cur.BuiltAt) < p.ttl {
		return cur, nil
	}

	fresh, err := p.fetcher.Fetch(ctx)
	if err != nil {
		if stale := p.current.Load(); stale != nil {
			p.logger.WarnContext(ctx, "Schema refresh failed, serving stale snapshot",
				"error", err,
				"snapshot_age", time.Since(stale.BuiltAt).String())

			return stale, nil
		}

		return nil, fmt.Errorf("fetching schema: %w", err)
	}

	p.current.Store(fresh)
	p.logger.InfoContext(ctx, "Schema snapshot refreshed",
		"version", fresh.Version,
		"tables", len(fresh.Tables))

	return fresh, nil
}

// Invalidate drops the cached snapshot so the next Snapshot call refetches.
func (p *Provider) Invalidate() {
	p.current.Store(nil)
}

// ScheduleRefresh registers a background refresh on the given cron schedule.
// The cron instance is owned by the caller. A failed refresh keeps the
// current snapshot in place.
func (p *Provider) ScheduleRefresh(c *cron.Cron, spec string) error {
	_, err := c.AddFunc(spec, func() {
		if err := p.Refresh(context.Background()); err != nil {
			p.logger.Error("Scheduled schema refresh failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling schema refresh: %w", err)
	}

	return nil
}

// Refresh fetches a new snapshot and swaps it in. The previous snapshot
// stays current if the fetch fails.
func (p *Provider) Refresh(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	fresh, err := p.fetcher.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetching schema: %w", err)
	}

	p.current.Store(fresh)
	p.logger.InfoContext(ctx, "Schema snapshot refreshed",
		"version", fresh.Version,
		"tables", len(fresh.Tables))

	return nil
}
