// Package watch turns observed document mutations into cache invalidation.
//
// A Watcher registers three observers on the document, one per cache key
// family, each with the attribute filter that family cares about. Record
// deliveries are debounced: the first notification arms a timer, and when it
// fires all pending records are drained, reduced to an invalidation signal,
// and applied to the store in one pass. The debounce window bounds how long
// a stale entry can survive after a mutation.
package watch

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"domcache/pkg/cache"
	"domcache/pkg/dom"
)

// Watcher invalidates cache entries in response to document mutations.
type Watcher struct {
	doc   *dom.Document
	store *cache.Store
	stats *cache.Stats
	log   *logrus.Entry

	debounce atomic.Int64 // window in nanoseconds
	smart    bool         // selector-kind observer registered

	idObs   *dom.Observer
	collObs *dom.Observer
	selObs  *dom.Observer // nil when smart caching is disabled

	mu      sync.Mutex
	running bool
	stopped bool // a stopped watcher cannot be restarted
	stopCh  chan struct{}
	doneCh  chan struct{}
	flushCh chan chan struct{}
}

// NewWatcher creates a watcher over doc that prunes store. smartCaching
// controls whether selector-kind entries are watched at all.
func NewWatcher(doc *dom.Document, store *cache.Store, stats *cache.Stats, debounce time.Duration, smartCaching bool, log *logrus.Entry) *Watcher {
	w := &Watcher{
		doc:     doc,
		store:   store,
		stats:   stats,
		log:     log,
		smart:   smartCaching,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		flushCh: make(chan chan struct{}),
	}
	w.debounce.Store(int64(debounce))
	return w
}

// Start registers the observers and launches the debounce loop. Calling
// Start on a running watcher is a no-op.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running || w.stopped {
		return
	}
	w.running = true

	w.idObs = w.doc.Observe(nil, dom.ObserveOptions{
		Attributes:        true,
		AttributeFilter:   []string{"id"},
		AttributeOldValue: true,
		ChildList:         true,
		Subtree:           true,
	})
	w.collObs = w.doc.Observe(nil, dom.ObserveOptions{
		Attributes:        true,
		AttributeFilter:   []string{"class", "name"},
		AttributeOldValue: true,
		ChildList:         true,
		Subtree:           true,
	})
	if w.smart {
		w.selObs = w.doc.Observe(nil, dom.ObserveOptions{
			Attributes:        true,
			AttributeFilter:   []string{"id", "class", "style", "hidden", "disabled"},
			AttributeOldValue: true,
			ChildList:         true,
			Subtree:           true,
		})
	}

	go w.run()
	w.log.WithField("smart_caching", w.smart).Debug("Mutation watcher started")
}

// Stop disconnects the observers and waits for the loop to exit. Pending
// records are discarded, not applied.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.stopped = true
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.idObs.Disconnect()
	w.collObs.Disconnect()
	if w.selObs != nil {
		w.selObs.Disconnect()
	}
	w.log.Debug("Mutation watcher stopped")
}

// SetDebounce changes the batch collapse window for subsequent batches.
func (w *Watcher) SetDebounce(d time.Duration) {
	if d < 0 {
		d = 0
	}
	w.debounce.Store(int64(d))
}

// Flush runs any pending invalidation immediately, without waiting for the
// debounce timer. Blocks until the pass completes. No-op on a watcher that
// is not running: before Start there is no loop to receive the request, and
// after Stop pending records are already discarded.
func (w *Watcher) Flush() {
	w.mu.Lock()
	running := w.running
	w.mu.Unlock()
	if !running {
		return
	}
	ack := make(chan struct{})
	select {
	case w.flushCh <- ack:
		<-ack
	case <-w.doneCh:
	}
}

func (w *Watcher) selNotify() <-chan struct{} {
	if w.selObs == nil {
		return nil
	}
	return w.selObs.Notify()
}

// run is the debounce loop: Idle until a notification arms the timer,
// Batching until it fires, then one Invalidating pass and back to Idle.
// The timer is armed on the first notification of a batch and deliberately
// not re-armed by later ones, so invalidation lag stays bounded by the
// window even under a continuous mutation stream.
func (w *Watcher) run() {
	defer close(w.doneCh)

	var timer *time.Timer
	var timerC <-chan time.Time
	arm := func() {
		if timerC == nil {
			timer = time.NewTimer(time.Duration(w.debounce.Load()))
			timerC = timer.C
		}
	}
	disarm := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = nil
		timerC = nil
	}

	for {
		select {
		case <-w.stopCh:
			disarm()
			return
		case <-w.idObs.Notify():
			arm()
		case <-w.collObs.Notify():
			arm()
		case <-w.selNotify():
			arm()
		case <-timerC:
			disarm()
			w.invalidate()
		case ack := <-w.flushCh:
			disarm()
			w.invalidate()
			close(ack)
		}
	}
}

// invalidate drains all pending records, derives the invalidation signal and
// deletes every matching cache key. The key scan is linear; cache sizes are
// capped and batches debounced, so this stays cheap.
func (w *Watcher) invalidate() {
	sig := newSignal(w.doc)
	sig.addIDRecords(w.idObs.TakeRecords())
	sig.addCollectionRecords(w.collObs.TakeRecords())
	if w.selObs != nil {
		sig.addSelectorRecords(w.selObs.TakeRecords())
	}
	if sig.empty() {
		return
	}

	removed := 0
	for _, k := range w.store.Keys() {
		if sig.matches(k) && w.store.Delete(k) {
			removed++
		}
	}
	w.stats.Invalidated(removed)
	if removed > 0 {
		w.log.WithFields(logrus.Fields{
			"removed":        removed,
			"selector_clear": sig.selectorClear,
		}).Debug("Invalidated cache entries after mutation batch")
	}
}
