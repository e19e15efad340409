// Package engine implements the memoizing lookup layer over a dom.Document:
// a bounded FIFO cache consulted before live tree queries, kept consistent
// by the mutation watcher and a periodic reaper. Lookups never fail loudly;
// bad input degrades to a logged nil/empty result.
package engine

import (
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"domcache/pkg/cache"
	"domcache/pkg/config"
	"domcache/pkg/dom"
	"domcache/pkg/watch"
)

// Engine owns one document's cache store, mutation watcher and reaper.
// It is safe for concurrent use.
type Engine struct {
	id     string
	doc    *dom.Document
	logger *logrus.Logger // engine-owned; output toggled by enable_logging
	logOut io.Writer      // destination while logging is enabled
	log    *logrus.Entry
	store  *cache.Store
	stats  *cache.Stats

	flight singleflight.Group

	mu         sync.Mutex // guards cfg, watcher and reaper lifecycle
	cfg        config.Config
	watcher    *watch.Watcher
	reaperStop chan struct{}
	reaperDone chan struct{}

	destroyed atomic.Bool
}

// New creates an engine over doc, applying defaults to cfg and logging any
// config warnings. The engine logs through its own logger, inheriting the
// level, formatter and output of the one passed in; enable_logging switches
// that output against io.Discard, at construction and again on Configure.
func New(doc *dom.Document, cfg config.Config, logger *logrus.Logger) *Engine {
	warnings, _ := cfg.Validate()

	logOut := io.Writer(os.Stderr)
	lg := logrus.New()
	if logger != nil {
		logOut = logger.Out
		lg.SetLevel(logger.GetLevel())
		lg.SetFormatter(logger.Formatter)
	}
	if cfg.EnableLogging {
		lg.SetOutput(logOut)
	} else {
		lg.SetOutput(io.Discard)
	}

	id := uuid.NewString()
	log := lg.WithField("engine_id", id[:8])
	for _, w := range warnings {
		log.Warn(w)
	}

	e := &Engine{
		id:     id,
		doc:    doc,
		logger: lg,
		logOut: logOut,
		log:    log,
		cfg:    cfg,
		store:  cache.NewStore(cfg.MaxCacheSize, log),
		stats:  cache.NewStats(),
	}

	e.watcher = watch.NewWatcher(doc, e.store, e.stats, cfg.DebounceDelay, cfg.GetEffectiveSmartCaching(), log)
	e.watcher.Start()

	if cfg.GetEffectiveAutoCleanup() {
		e.startReaper(cfg.CleanupInterval)
	}

	log.WithFields(logrus.Fields{
		"max_cache_size":   cfg.MaxCacheSize,
		"debounce_delay":   cfg.DebounceDelay,
		"cleanup_interval": cfg.CleanupInterval,
		"auto_cleanup":     cfg.GetEffectiveAutoCleanup(),
		"smart_caching":    cfg.GetEffectiveSmartCaching(),
	}).Debug("Engine created")
	return e
}

// Document returns the underlying document.
func (e *Engine) Document() *dom.Document {
	return e.doc
}

// ID returns the engine's instance id.
func (e *Engine) ID() string {
	return e.id
}

// Stats returns a point-in-time snapshot of the engine's counters.
func (e *Engine) Stats() cache.Snapshot {
	return e.stats.Snapshot(e.id, e.store.Len(), e.store.Evictions())
}

// IsCached reports whether an unscoped entry for kind/value is currently in
// the store. It does not run a validity check.
func (e *Engine) IsCached(kind cache.Kind, value string) bool {
	_, ok := e.store.Get(cache.Key{Kind: kind, Value: value})
	return ok
}

// CacheSnapshot returns the composite form of every cached key, oldest
// first.
func (e *Engine) CacheSnapshot() []string {
	return e.store.Snapshot()
}

// Clear empties the cache without touching the watcher or reaper.
func (e *Engine) Clear() {
	e.store.DeleteAll()
	e.log.Debug("Cache cleared")
}

// FlushInvalidation applies any pending mutation batch immediately instead
// of waiting out the debounce window.
func (e *Engine) FlushInvalidation() {
	e.mu.Lock()
	w := e.watcher
	e.mu.Unlock()
	if w != nil {
		w.Flush()
	}
}

// Configure applies new option values to a running engine. The cache bound,
// debounce window, reaper schedule and log output adjust in place; flipping
// enable_smart_caching rebuilds the watcher.
func (e *Engine) Configure(cfg config.Config) {
	warnings, _ := cfg.Validate()
	for _, w := range warnings {
		e.log.Warn(w)
	}
	if e.destroyed.Load() {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	old := e.cfg
	e.cfg = cfg

	if old.EnableLogging != cfg.EnableLogging {
		if cfg.EnableLogging {
			e.logger.SetOutput(e.logOut)
		} else {
			e.logger.SetOutput(io.Discard)
		}
	}

	e.store.SetMaxSize(cfg.MaxCacheSize)
	e.watcher.SetDebounce(cfg.DebounceDelay)

	if old.GetEffectiveSmartCaching() != cfg.GetEffectiveSmartCaching() {
		e.watcher.Stop()
		e.watcher = watch.NewWatcher(e.doc, e.store, e.stats, cfg.DebounceDelay, cfg.GetEffectiveSmartCaching(), e.log)
		e.watcher.Start()
	}

	e.stopReaperLocked()
	if cfg.GetEffectiveAutoCleanup() {
		e.startReaperLocked(cfg.CleanupInterval)
	}
}

// Destroy disconnects the watcher, cancels the reaper and empties the store.
// The engine stays usable afterwards: lookups keep working as uncached
// passthroughs, they just never populate the cache again. Destroy is
// idempotent.
func (e *Engine) Destroy() {
	if !e.destroyed.CompareAndSwap(false, true) {
		return
	}
	e.mu.Lock()
	e.watcher.Stop()
	e.stopReaperLocked()
	e.mu.Unlock()
	e.store.DeleteAll()
	e.log.Debug("Engine destroyed, lookups degrade to uncached passthrough")
}

func (e *Engine) startReaper(interval time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.startReaperLocked(interval)
}
