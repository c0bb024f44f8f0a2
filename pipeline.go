package asuslink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/asuslink/internal/logging"
	"github.com/muurk/asuslink/internal/readers"
)

// DefaultCacheFreshness is how long a fetched record is served from
// cache before the next request triggers a re-fetch.
const DefaultCacheFreshness = 30 * time.Second

// fetchCall is one in-flight category fetch that concurrent requesters
// coalesce onto.
type fetchCall struct {
	done   chan struct{}
	record *Record
	err    error
}

// pipeline orchestrates fetch → clean → transform → cache per category.
type pipeline struct {
	sess      *session
	freshness time.Duration

	// firmware resolves the current firmware descriptor; endpoint
	// applicability is evaluated against it on every fetch.
	firmware func() Firmware

	// mu guards cache and inflight.
	mu       sync.Mutex
	cache    map[Category]*Record
	inflight map[Category]*fetchCall
}

func newPipeline(sess *session, freshness time.Duration, firmware func() Firmware) *pipeline {
	if freshness <= 0 {
		freshness = DefaultCacheFreshness
	}
	return &pipeline{
		sess:      sess,
		freshness: freshness,
		firmware:  firmware,
		cache:     make(map[Category]*Record),
		inflight:  make(map[Category]*fetchCall),
	}
}

// get returns the category's normalized record, from cache when fresh.
// force bypasses the freshness check unconditionally. Concurrent calls
// for the same category share one device fetch.
func (p *pipeline) get(ctx context.Context, category Category, force bool) (*Record, error) {
	if !category.valid() {
		return nil, newError(KindUnsupportedData, fmt.Sprintf("unknown data category %q", category), nil)
	}

	for {
		p.mu.Lock()
		if !force {
			if entry, ok := p.cache[category]; ok && time.Since(entry.Timestamp) < p.freshness {
				p.mu.Unlock()
				return entry, nil
			}
		}

		if call, ok := p.inflight[category]; ok {
			p.mu.Unlock()
			select {
			case <-call.done:
			case <-ctx.Done():
				return nil, &Error{Kind: KindTimeout, Message: fmt.Sprintf("waiting for %s fetch", category), Err: ctx.Err()}
			}
			// A coalesced waiter shares the leader's outcome, except when
			// the leader ran out of time and this caller has not: then its
			// own fetch is still worth issuing.
			if call.err != nil && IsTimeoutError(call.err) && ctx.Err() == nil {
				force = true
				continue
			}
			return call.record, call.err
		}

		call := &fetchCall{done: make(chan struct{})}
		p.inflight[category] = call
		p.mu.Unlock()

		record, err := p.fetch(ctx, category)

		p.mu.Lock()
		delete(p.inflight, category)
		if err == nil {
			p.cache[category] = record
		}
		p.mu.Unlock()

		// Total fetch failure keeps the previous entry and degrades to it
		// rather than erasing history.
		if err != nil && IsDataRetrievalError(err) {
			if stale := p.staleCopy(category); stale != nil {
				logging.Warn("All endpoints failed, returning stale cache entry",
					zap.Stringer("category", category),
				)
				record, err = stale, nil
			}
		}

		call.record = record
		call.err = err
		close(call.done)
		return record, err
	}
}

// staleCopy returns the cached entry flagged stale, or nil without one.
func (p *pipeline) staleCopy(category Category) *Record {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.cache[category]
	if !ok {
		return nil
	}
	stale := *entry
	stale.Stale = true
	return &stale
}

// fetch performs the full pipeline for one category: resolve endpoints,
// request each, clean, merge (later descriptors win per field) and
// transform. Per-endpoint failures are absorbed; only total failure is
// an error.
func (p *pipeline) fetch(ctx context.Context, category Category) (*Record, error) {
	descriptors, err := endpointsFor(category, p.firmware())
	if err != nil {
		return nil, err
	}

	fields := make(map[string]any)
	failures := 0
	var lastErr error

	for _, descriptor := range descriptors {
		body, err := p.sess.request(ctx, descriptor.method, descriptor.path, descriptor.payload)
		if err != nil {
			// Authentication failures poison every endpoint of the fetch;
			// absorbing them would just repeat the same error.
			if IsAuthenticationError(err) {
				return nil, err
			}
			logging.Warn("Endpoint fetch failed",
				zap.Stringer("category", category),
				zap.String("path", descriptor.path),
				zap.Error(err),
			)
			failures++
			lastErr = err
			continue
		}

		parsed, err := descriptor.parse(body)
		if err != nil {
			logging.Warn("Endpoint response unreadable",
				zap.Stringer("category", category),
				zap.String("path", descriptor.path),
				zap.Error(err),
			)
			failures++
			lastErr = err
			continue
		}

		fields = readers.MergeMaps(fields, parsed)
	}

	if len(descriptors) > 0 && failures == len(descriptors) {
		return nil, &Error{
			Kind:    KindDataRetrieval,
			Message: fmt.Sprintf("all %d endpoints for %s failed", len(descriptors), category),
			Err:     lastErr,
		}
	}

	record := &Record{
		Category:  category,
		Data:      transformCategory(category, fields),
		Timestamp: time.Now(),
		Partial:   failures > 0,
	}
	return record, nil
}

// invalidate drops the cache entries for the given categories, forcing
// the next read to re-fetch. Used for command side effects.
func (p *pipeline) invalidate(categories ...Category) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, category := range categories {
		delete(p.cache, category)
	}
}

// cached returns the cache entry for introspection, fresh or not.
func (p *pipeline) cached(category Category) (*Record, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.cache[category]
	return entry, ok
}
