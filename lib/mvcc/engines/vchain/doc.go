// Package vchain provides an in-memory implementation of the mvcc.IEngine
// interface based on version chains.
//
// Key Components:
//
//   - Key Index: A B-tree (github.com/google/btree) ordered by key whose items
//     are version chains. One reader/writer lock guards the whole index: Read
//     and Scan take the shared lock, Write, Delete, Abort and GarbageCollect
//     take the exclusive lock.
//
//   - Transaction Table: A concurrent map (github.com/puzpuzpuz/xsync) from
//     transaction id to transaction record. Commit and Abort change the state
//     with an atomic compute on the map entry, so only one of two concurrent
//     calls can succeed.
//
//   - Snapshot Registry: A min-heap keyed by transaction id with the start
//     version as priority. It holds exactly the active transactions and yields
//     the collection floor in O(1).
//
//   - Allocators: Two atomic counters for versions and transaction ids. A
//     version is allocated before the index lock is taken, so two writers may
//     insert versions 5 and 6 in either order; chains use ordered insertion.
//
// Locking Discipline:
//
// Every operation holds at most one of the three guarded resources at a time.
// Lock scopes never contain calls into another resource, which rules out
// deadlocks. No operation blocks on anything else than these locks.
//
// Garbage Collection:
//
// GarbageCollect runs on demand. With Options.GCInterval > 0 a background
// goroutine additionally runs it on every interval and whenever a write grows
// a chain above Options.MaxVersions. Writes report this through a lock-free
// queue, so the write path never waits for the collector.
//
// Metrics:
//
// Each engine registers counters and gauges (github.com/VictoriaMetrics/metrics)
// in its own metrics set. WritePrometheus exposes them in Prometheus text format.
//
// Usage Example:
//
//	engine := vchain.New[string, []byte](&mvcc.Options[[]byte]{
//		MaxVersions: 10,
//		CloneValue:  mvcc.CloneBytes,
//	})
//	defer engine.Close()
//
//	tx := engine.Begin()
//	if err := engine.Write(tx, "user:1", []byte("alice")); err != nil {
//		// handle error
//	}
//	if err := engine.Commit(tx); err != nil {
//		// handle error
//	}
//
//	reader := engine.Begin()
//	value, ok, err := engine.Read(reader, "user:1")
package vchain
