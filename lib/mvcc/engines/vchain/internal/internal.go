package internal

import (
	"cmp"
	"fmt"
	"slices"
	"sort"

	"github.com/ValentinKolb/mvKV/lib/mvcc"
)

// --------------------------------------------------------------------------
// Event Types are used to signal the background collector
// --------------------------------------------------------------------------

type EventType int

const (
	// EventTPressure is sent when a write grows a chain above the version limit
	EventTPressure EventType = iota
)

func (e EventType) String() string {
	switch e {
	case EventTPressure:
		return "Pressure"
	default:
		return "Unknown"
	}
}

type Event struct {
	Type    EventType
	Version uint64 // version of the write that caused the event
}

func (e Event) String() string {
	return fmt.Sprintf("Event{Type: %s, Version: %d}", e.Type, e.Version)
}

// --------------------------------------------------------------------------
// Transaction record
// --------------------------------------------------------------------------

// Txn is the transaction table entry. It is stored by value so a loaded copy
// never races with a state transition.
type Txn struct {
	ID           mvcc.TransactionID
	StartVersion uint64
	State        mvcc.TxState
}

// --------------------------------------------------------------------------
// Entry Type (one version of a key)
// --------------------------------------------------------------------------

// Entry is one version of a key. A tombstone has no value and is marked
// deleted by the transaction that created it.
type Entry[V any] struct {
	Version   uint64
	Value     V
	HasValue  bool
	CreatedBy mvcc.TransactionID
	DeletedBy mvcc.TransactionID
	IsDeleted bool // DeletedBy is set
}

// NewValueEntry creates the version written by Write
func NewValueEntry[V any](version uint64, value V, createdBy mvcc.TransactionID) Entry[V] {
	return Entry[V]{
		Version:   version,
		Value:     value,
		HasValue:  true,
		CreatedBy: createdBy,
	}
}

// NewTombstone creates the version written by Delete
func NewTombstone[V any](version uint64, createdBy mvcc.TransactionID) Entry[V] {
	return Entry[V]{
		Version:   version,
		CreatedBy: createdBy,
		DeletedBy: createdBy,
		IsDeleted: true,
	}
}

// --------------------------------------------------------------------------
// Chain Type (all versions of a key)
// --------------------------------------------------------------------------

// Chain holds the versions of one key sorted by ascending version
type Chain[K cmp.Ordered, V any] struct {
	Key     K
	Entries []Entry[V]
}

// NewChain creates an empty chain for key
func NewChain[K cmp.Ordered, V any](key K) *Chain[K, V] {
	return &Chain[K, V]{Key: key}
}

// LessChain orders chains by key (used by the key index)
func LessChain[K cmp.Ordered, V any](a, b *Chain[K, V]) bool {
	return a.Key < b.Key
}

// Len returns the number of versions in the chain
func (c *Chain[K, V]) Len() int {
	return len(c.Entries)
}

// Insert adds e at its ordered position. Versions are allocated before the
// chain is locked, so a later version can arrive first.
func (c *Chain[K, V]) Insert(e Entry[V]) {
	n := len(c.Entries)
	if n == 0 || c.Entries[n-1].Version < e.Version {
		c.Entries = append(c.Entries, e)
		return
	}
	pos := sort.Search(n, func(i int) bool { return c.Entries[i].Version > e.Version })
	c.Entries = slices.Insert(c.Entries, pos, e)
}

// Visible returns the value of the chain as seen by transaction txID whose
// snapshot boundary is startVersion.
//
// Versions above startVersion are never considered. From the newest remaining
// version downwards, versions created by a transaction with an id >= txID are
// skipped. The first other version decides the result, except a version marked
// deleted by a transaction with an id <= txID, which is skipped as well.
func (c *Chain[K, V]) Visible(txID mvcc.TransactionID, startVersion uint64) (value V, ok bool) {
	hi := sort.Search(len(c.Entries), func(i int) bool { return c.Entries[i].Version > startVersion })

	for i := hi - 1; i >= 0; i-- {
		e := &c.Entries[i]
		if e.CreatedBy >= txID {
			continue
		}
		if !e.IsDeleted {
			return e.Value, e.HasValue
		}
		if e.DeletedBy > txID {
			return e.Value, e.HasValue
		}
	}

	return value, false
}

// RemoveCreatedBy removes all versions created by txID and returns their count
func (c *Chain[K, V]) RemoveCreatedBy(txID mvcc.TransactionID) int {
	before := len(c.Entries)
	c.Entries = slices.DeleteFunc(c.Entries, func(e Entry[V]) bool {
		return e.CreatedBy == txID
	})
	return before - len(c.Entries)
}

// PruneBelow finds the greatest version strictly below floor and removes
// every version older than it. Returns the number of removed versions.
func (c *Chain[K, V]) PruneBelow(floor uint64) int {
	// index of the first version >= floor, the version before it is kept
	idx := sort.Search(len(c.Entries), func(i int) bool { return c.Entries[i].Version >= floor })
	if idx <= 1 {
		return 0
	}
	keepFrom := idx - 1

	// help the go gc
	clear(c.Entries[:keepFrom])
	c.Entries = slices.Clone(c.Entries[keepFrom:])
	return keepFrom
}

// Clone returns a deep copy of the chain. cloneValue may be nil.
func (c *Chain[K, V]) Clone(cloneValue func(V) V) *Chain[K, V] {
	entries := make([]Entry[V], len(c.Entries))
	copy(entries, c.Entries)
	if cloneValue != nil {
		for i := range entries {
			if entries[i].HasValue {
				entries[i].Value = cloneValue(entries[i].Value)
			}
		}
	}
	return &Chain[K, V]{Key: c.Key, Entries: entries}
}
