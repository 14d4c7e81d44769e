package vchain

import (
	"time"

	"github.com/ValentinKolb/mvKV/lib/mvcc/engines/vchain/internal"
	"github.com/ValentinKolb/mvKV/lib/mvcc/util"
)

// --------------------------------------------------------------------------
// Garbage Collection
// --------------------------------------------------------------------------

// GarbageCollect prunes every chain that holds more than MaxVersions versions.
// For such a chain the greatest version below the collection floor is kept
// together with all newer versions; older versions are removed. The floor is
// the smallest start version of all active transactions, or the current
// version counter if no transaction is active. Empty chains are dropped.
// Returns the number of removed versions.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (e *Engine[K, V]) GarbageCollect() int {
	start := time.Now()
	floor := e.gcFloor()

	e.mu.Lock()
	removed := 0
	var empty []*internal.Chain[K, V]
	e.data.Ascend(func(c *internal.Chain[K, V]) bool {
		if c.Len() > e.opts.MaxVersions {
			removed += c.PruneBelow(floor)
		}
		if c.Len() == 0 {
			empty = append(empty, c)
		}
		return true
	})
	for _, c := range empty {
		e.data.Delete(c)
	}
	e.versionCount -= removed
	e.mu.Unlock()

	e.metrics.gcRuns.Inc()
	e.metrics.gcRemoved.Add(removed)
	e.metrics.gcDuration.UpdateDuration(start)
	plog.Debugf("gc: floor %d, removed %d versions, dropped %d keys in %s", floor, removed, len(empty), time.Since(start))

	return removed
}

// gcFloor returns the oldest start version still in use
func (e *Engine[K, V]) gcFloor() uint64 {
	e.activeMu.Lock()
	defer e.activeMu.Unlock()

	if oldest, ok := e.active.Peek(); ok {
		return oldest.Priority
	}
	return e.versionIdx.Load()
}

// startGC starts the background collector if a GC interval is configured.
// if the collector is already running, this function does nothing
//
// Thread-safety: This method is not thread-safe, it is only called during initialization.
func (e *Engine[K, V]) startGC() {
	if e.opts.GCInterval <= 0 {
		return
	}
	if e.gcIsRunning.CompareAndSwap(false, true) {
		e.events = util.NewLockFreeMPSC[internal.Event]()
		e.gcDone = make(chan struct{})
		go e.garbageCollector(e.events, e.gcDone)
		plog.Infof("background gc started (interval %s, max versions %d)", e.opts.GCInterval, e.opts.MaxVersions)
	}
}

// stopGC stops the background collector and waits until it has returned.
// the collector can't be started again after it has been stopped!
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (e *Engine[K, V]) stopGC() {
	if e.gcIsRunning.CompareAndSwap(true, false) {
		e.events.Close()
		<-e.gcDone
		plog.Infof("background gc stopped")
	}
}

// garbageCollector runs GarbageCollect on every tick of the GC interval and
// whenever a write reports a chain above the version limit.
// WARNING: this method should never be called directly! use startGC() and stopGC()
func (e *Engine[K, V]) garbageCollector(events *util.LockFreeMPSC[internal.Event], done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.opts.GCInterval)
	defer ticker.Stop()

	/*
		Note: sweptUntil is the version counter at the start of the last run. Pressure
		events of writes up to that version were already covered by that run, so a
		burst of writes to a hot key results in one run instead of one per write.
	*/
	var sweptUntil uint64

	for {
		select {
		case event, ok := <-events.Recv():
			if !ok {
				return
			}

			switch event.Type {
			case internal.EventTPressure:
				if event.Version <= sweptUntil {
					continue
				}
				sweptUntil = e.versionIdx.Load()
				e.GarbageCollect()
			default:
				plog.Warningf("gc: ignoring unknown event %s", event)
			}

		case <-ticker.C:
			sweptUntil = e.versionIdx.Load()
			e.GarbageCollect()
		}
	}
}
