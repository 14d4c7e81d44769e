package vchain

import (
	"cmp"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/mvKV/lib/mvcc"
	"github.com/ValentinKolb/mvKV/lib/mvcc/engines/vchain/internal"
	"github.com/ValentinKolb/mvKV/lib/mvcc/util"
	"github.com/google/btree"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	btreeDegree = 32 // Degree of the key index
)

var plog = logger.GetLogger("mvcc")

// --------------------------------------------------------------------------
// Core engine structure
// --------------------------------------------------------------------------

// Engine is an in-memory MVCC engine built from version chains.
//
// The engine owns three guarded resources that are never held at the same time:
//   - the key index (mu): a B-tree of version chains
//   - the transaction table (txns): a concurrent map
//   - the snapshot registry (activeMu): the start versions of active transactions
//
// The version and transaction counters are atomics outside of any lock.
type Engine[K cmp.Ordered, V any] struct {
	opts mvcc.Options[V]

	// key index
	mu           sync.RWMutex
	data         *btree.BTreeG[*internal.Chain[K, V]]
	versionCount int // number of entries in all chains, guarded by mu

	// transaction table
	txns *xsync.MapOf[mvcc.TransactionID, internal.Txn]

	// snapshot registry (tx id -> start version)
	activeMu sync.Mutex
	active   *util.MapHeap[mvcc.TransactionID]

	// allocators
	versionIdx atomic.Uint64 // last allocated version
	txIdx      atomic.Uint64 // last allocated transaction id

	// garbage collection
	events      *util.LockFreeMPSC[internal.Event]
	gcIsRunning atomic.Bool
	gcDone      chan struct{}

	metrics *engineMetrics
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// New creates an engine with the specified options (optional).
// If opts.GCInterval is set the background collector is started and must be
// stopped with Close.
func New[K cmp.Ordered, V any](opts *mvcc.Options[V]) *Engine[K, V] {
	e := newEngine[K, V](opts)
	e.startGC()
	return e
}

// Default creates an engine with the default options.
func Default[K cmp.Ordered, V any]() *Engine[K, V] {
	return New[K, V](nil)
}

// newEngine creates an engine without starting background work
func newEngine[K cmp.Ordered, V any](opts *mvcc.Options[V]) *Engine[K, V] {
	if opts == nil {
		opts = mvcc.DefaultOptions[V]()
	}

	o := *opts
	if o.MaxVersions < 1 {
		o.MaxVersions = mvcc.DefaultMaxVersions
	}

	e := &Engine[K, V]{
		opts:   o,
		data:   btree.NewG[*internal.Chain[K, V]](btreeDegree, internal.LessChain[K, V]),
		txns:   xsync.NewMapOf[mvcc.TransactionID, internal.Txn](),
		active: util.NewMapHeap[mvcc.TransactionID](),
	}
	e.metrics = newEngineMetrics(e, o.Metrics)

	return e
}

// --------------------------------------------------------------------------
// Transaction Lifecycle
// --------------------------------------------------------------------------

// Begin registers a new active transaction whose snapshot boundary is the
// current value of the version counter.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (e *Engine[K, V]) Begin() mvcc.TransactionID {
	id := mvcc.TransactionID(e.txIdx.Add(1))

	/*
		The start version is loaded while the registry is locked. The collector reads
		its floor under the same lock, so it either sees this snapshot or computes a
		floor that is not above the start version.
	*/
	e.activeMu.Lock()
	startVersion := e.versionIdx.Load()
	e.active.AddItem(id, startVersion)
	e.activeMu.Unlock()

	e.txns.Store(id, internal.Txn{
		ID:           id,
		StartVersion: startVersion,
		State:        mvcc.TxActive,
	})

	e.metrics.begins.Inc()
	return id
}

// Commit marks an active transaction as committed.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (e *Engine[K, V]) Commit(id mvcc.TransactionID) error {
	if err := e.finish(id, mvcc.TxCommitted); err != nil {
		return err
	}
	e.metrics.commits.Inc()
	return nil
}

// Abort marks an active transaction as aborted and removes all versions it
// created. The whole key index is locked exclusively while the chains are filtered.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (e *Engine[K, V]) Abort(id mvcc.TransactionID) error {
	if err := e.finish(id, mvcc.TxAborted); err != nil {
		return err
	}

	e.mu.Lock()
	removed := 0
	var empty []*internal.Chain[K, V]
	e.data.Ascend(func(c *internal.Chain[K, V]) bool {
		removed += c.RemoveCreatedBy(id)
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

	e.metrics.aborts.Inc()
	plog.Debugf("aborted transaction %d, rolled back %d versions", id, removed)
	return nil
}

// finish moves an active transaction to a terminal state and removes it from
// the snapshot registry.
func (e *Engine[K, V]) finish(id mvcc.TransactionID, to mvcc.TxState) error {
	var err error
	e.txns.Compute(id, func(old internal.Txn, loaded bool) (internal.Txn, bool) {
		if !loaded {
			err = mvcc.NewTxNotFoundError(id)
			return old, true // set delete to true because else the value will be created
		}
		if old.State != mvcc.TxActive {
			err = mvcc.NewTxNotActiveError(id, old.State)
			return old, false
		}
		old.State = to
		return old, false
	})
	if err != nil {
		return err
	}

	e.activeMu.Lock()
	e.active.RemoveByKey(id)
	e.activeMu.Unlock()
	return nil
}

// activeTxn returns the transaction if it exists and is active
func (e *Engine[K, V]) activeTxn(id mvcc.TransactionID) (internal.Txn, error) {
	txn, ok := e.txns.Load(id)
	if !ok {
		return txn, mvcc.NewTxNotFoundError(id)
	}
	if txn.State != mvcc.TxActive {
		return txn, mvcc.NewTxNotActiveError(id, txn.State)
	}
	return txn, nil
}

// TransactionState returns the state of a transaction and whether it is known.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (e *Engine[K, V]) TransactionState(id mvcc.TransactionID) (mvcc.TxState, bool) {
	txn, ok := e.txns.Load(id)
	if !ok {
		return 0, false
	}
	return txn.State, true
}

// ActiveTransactionCount returns the number of active transactions.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (e *Engine[K, V]) ActiveTransactionCount() int {
	e.activeMu.Lock()
	defer e.activeMu.Unlock()
	return e.active.Len()
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

// Write appends a new version of key holding value.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (e *Engine[K, V]) Write(id mvcc.TransactionID, key K, value V) error {
	if _, err := e.activeTxn(id); err != nil {
		return err
	}

	if e.opts.CloneValue != nil {
		value = e.opts.CloneValue(value)
	}

	e.insert(key, internal.NewValueEntry(e.versionIdx.Add(1), value, id))
	e.metrics.writes.Inc()
	return nil
}

// Delete appends a tombstone version for key. Older versions are not modified.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (e *Engine[K, V]) Delete(id mvcc.TransactionID, key K) error {
	if _, err := e.activeTxn(id); err != nil {
		return err
	}

	e.insert(key, internal.NewTombstone[V](e.versionIdx.Add(1), id))
	e.metrics.deletes.Inc()
	return nil
}

// insert adds entry to the chain of key, creating the chain if needed
func (e *Engine[K, V]) insert(key K, entry internal.Entry[V]) {
	e.mu.Lock()
	chain, ok := e.data.Get(internal.NewChain[K, V](key))
	if !ok {
		chain = internal.NewChain[K, V](key)
		e.data.ReplaceOrInsert(chain)
	}
	chain.Insert(entry)
	e.versionCount++
	chainLen := chain.Len()
	e.mu.Unlock()

	// notify the background collector (Push is a no-op after Close)
	if e.events != nil && chainLen > e.opts.MaxVersions {
		e.events.Push(&internal.Event{
			Type:    internal.EventTPressure,
			Version: entry.Version,
		})
	}
}

// --------------------------------------------------------------------------
// Read Operations
// --------------------------------------------------------------------------

// Read returns the value of key visible to the transaction.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (e *Engine[K, V]) Read(id mvcc.TransactionID, key K) (V, bool, error) {
	var zero V

	txn, err := e.activeTxn(id)
	if err != nil {
		return zero, false, err
	}
	e.metrics.reads.Inc()

	e.mu.RLock()
	chain, ok := e.data.Get(internal.NewChain[K, V](key))
	if !ok {
		e.mu.RUnlock()
		return zero, false, nil
	}
	value, found := chain.Visible(id, txn.StartVersion)
	e.mu.RUnlock()

	if found && e.opts.CloneValue != nil {
		value = e.opts.CloneValue(value)
	}
	return value, found, nil
}

// Scan calls fn in key order for every key in [from, to) with a visible value.
// The visible values are collected under the read lock and fn is called after
// the lock was released, so fn may use the engine.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (e *Engine[K, V]) Scan(id mvcc.TransactionID, from, to K, fn func(key K, value V) bool) error {
	txn, err := e.activeTxn(id)
	if err != nil {
		return err
	}
	e.metrics.reads.Inc()

	type pair struct {
		key   K
		value V
	}
	var visible []pair

	e.mu.RLock()
	e.data.AscendRange(internal.NewChain[K, V](from), internal.NewChain[K, V](to), func(c *internal.Chain[K, V]) bool {
		if value, ok := c.Visible(id, txn.StartVersion); ok {
			visible = append(visible, pair{c.Key, value})
		}
		return true
	})
	e.mu.RUnlock()

	for _, p := range visible {
		value := p.value
		if e.opts.CloneValue != nil {
			value = e.opts.CloneValue(value)
		}
		if !fn(p.key, value) {
			break
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Introspection
// --------------------------------------------------------------------------

// VersionCount returns the number of stored versions across all keys.
func (e *Engine[K, V]) VersionCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.versionCount
}

// KeyCount returns the number of keys with at least one stored version.
func (e *Engine[K, V]) KeyCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.data.Len()
}

// WriteIdx returns the last allocated version.
func (e *Engine[K, V]) WriteIdx() uint64 {
	return e.versionIdx.Load()
}

// MaxVersions returns the effective version limit per key.
func (e *Engine[K, V]) MaxVersions() int {
	return e.opts.MaxVersions
}

// Close stops the background collector. Further calls do nothing.
func (e *Engine[K, V]) Close() error {
	e.stopGC()
	return nil
}

var _ mvcc.IEngine[string, []byte] = (*Engine[string, []byte])(nil)
