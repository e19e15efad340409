package engine

import "time"

// The periodic reaper is the safety net behind the mutation watcher: it
// catches staleness the watcher cannot see, such as entries cached before
// the watcher attached or documents mutated through a path that emits no
// records.

func (e *Engine) startReaperLocked(interval time.Duration) {
	stop := make(chan struct{})
	done := make(chan struct{})
	e.reaperStop = stop
	e.reaperDone = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				e.Reap()
			}
		}
	}()
	e.log.WithField("interval", interval).Debug("Reaper started")
}

func (e *Engine) stopReaperLocked() {
	if e.reaperStop == nil {
		return
	}
	close(e.reaperStop)
	<-e.reaperDone
	e.reaperStop = nil
	e.reaperDone = nil
}

// Reap sweeps every cache entry through the validity check and removes the
// failures, returning how many were removed. The reaper calls this on its
// interval; callers may also invoke it directly for an immediate sweep.
func (e *Engine) Reap() int {
	removed := 0
	for _, k := range e.store.Keys() {
		payload, ok := e.store.Get(k)
		if !ok {
			continue
		}
		if !e.validPayload(payload) && e.store.Delete(k) {
			removed++
		}
	}
	e.stats.Reaped(removed)
	if removed > 0 {
		e.log.WithField("removed", removed).Debug("Reaper removed stale entries")
	}
	return removed
}
