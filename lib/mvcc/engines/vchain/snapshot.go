package vchain

import (
	"github.com/ValentinKolb/mvKV/lib/mvcc"
	"github.com/ValentinKolb/mvKV/lib/mvcc/engines/vchain/internal"
)

// --------------------------------------------------------------------------
// Deep Copy
// --------------------------------------------------------------------------

// Clone returns an independent engine with the same transactions, versions,
// counters and options. Values are duplicated with Options.CloneValue if set.
// The clone gets its own metrics set and, if configured, its own background
// collector.
//
// The transaction table and the key index are copied one after the other, so
// a clone taken while other goroutines use the engine may contain versions of
// transactions that began after the table was copied. Both counters are read
// last and therefore cover every copied id and version.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (e *Engine[K, V]) Clone() *Engine[K, V] {
	opts := e.opts
	opts.Metrics = nil
	clone := newEngine[K, V](&opts)

	// transaction table and snapshot registry
	e.txns.Range(func(id mvcc.TransactionID, txn internal.Txn) bool {
		clone.txns.Store(id, txn)
		if txn.State == mvcc.TxActive {
			clone.active.AddItem(id, txn.StartVersion)
		}
		return true
	})

	// key index
	e.mu.RLock()
	e.data.Ascend(func(c *internal.Chain[K, V]) bool {
		clone.data.ReplaceOrInsert(c.Clone(e.opts.CloneValue))
		return true
	})
	clone.versionCount = e.versionCount
	e.mu.RUnlock()

	// allocators
	clone.versionIdx.Store(e.versionIdx.Load())
	clone.txIdx.Store(e.txIdx.Load())

	clone.startGC()
	return clone
}

// Snapshot returns Clone as mvcc.IEngine.
func (e *Engine[K, V]) Snapshot() mvcc.IEngine[K, V] {
	return e.Clone()
}
