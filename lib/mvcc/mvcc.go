package mvcc

import (
	"cmp"

	"github.com/ValentinKolb/mvKV/lib/mvcc/util"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplVChain Implementation = "vchain"
)

// TransactionID identifies a transaction. Ids are handed out by a monotonically
// increasing counter that is independent of the version allocator.
type TransactionID uint64

// TxState is the lifecycle state of a transaction.
// The only valid transitions are TxActive -> TxCommitted and TxActive -> TxAborted.
type TxState int

const (
	TxActive TxState = iota
	TxCommitted
	TxAborted
)

func (s TxState) String() string {
	switch s {
	case TxActive:
		return "Active"
	case TxCommitted:
		return "Committed"
	case TxAborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// Feature represents engine features as bit flags
type Feature uint64

const (
	FeatureRead           Feature = 1 << iota // Support for Read operations
	FeatureWrite                              // Support for Write operations
	FeatureDelete                             // Support for Delete operations
	FeatureScan                               // Support for ordered range reads
	FeatureGarbageCollect                     // Support for on-demand GarbageCollect
	FeatureBackgroundGC                       // Support for an interval driven collector
	FeatureSnapshot                           // Support for deep copies of the engine
)

func (f Feature) String() string {
	switch f {
	case FeatureRead:
		return "Read"
	case FeatureWrite:
		return "Write"
	case FeatureDelete:
		return "Delete"
	case FeatureScan:
		return "Scan"
	case FeatureGarbageCollect:
		return "GarbageCollect"
	case FeatureBackgroundGC:
		return "BackgroundGC"
	case FeatureSnapshot:
		return "Snapshot"
	default:
		return "Unknown"
	}
}

// EngineInfo reports the state of an engine. Counts are exact at the moment
// they were taken, but the fields are not collected atomically with each other.
type EngineInfo struct {
	EngineType         Implementation         `json:"engine_type"`
	WriteIndex         uint64                 `json:"write_index"`
	VersionCount       int                    `json:"version_count"`
	KeyCount           int                    `json:"key_count"`
	ActiveTransactions int                    `json:"active_transactions"`
	TotalTransactions  int                    `json:"total_transactions"`
	MaxVersions        int                    `json:"max_versions"`
	ChainLengths       util.DistributionStats `json:"chain_lengths"`
	ChainLengthP99     int                    `json:"chain_length_p99"`
	SupportedFeatures  []Feature              `json:"supported_features"`
	Metadata           interface{}            `json:"metadata"`
}

// --------------------------------------------------------------------------
// Engine Interface
// --------------------------------------------------------------------------

// IEngine defines the call surface of a multi-version key-value engine.
// Readers see a snapshot bounded by the version counter at the time their
// transaction began; writers append new versions without blocking readers.
type IEngine[K cmp.Ordered, V any] interface {

	// --------------------------------------------------------------------------
	// Transaction Lifecycle
	// --------------------------------------------------------------------------

	// Begin registers a new active transaction. Its snapshot boundary is the
	// current value of the version counter. Begin never fails.
	Begin() TransactionID

	// Commit marks an active transaction as committed.
	// Writes are not validated against concurrent writers.
	Commit(id TransactionID) (err error)

	// Abort marks an active transaction as aborted and removes every version
	// the transaction created, across all keys.
	Abort(id TransactionID) (err error)

	// TransactionState returns the state of a transaction and whether it is known.
	TransactionState(id TransactionID) (state TxState, ok bool)

	// ActiveTransactionCount returns the number of transactions in the active state.
	ActiveTransactionCount() (count int)

	// --------------------------------------------------------------------------
	// Data Operations
	// --------------------------------------------------------------------------

	// Read returns the value of key visible to the transaction.
	// The boolean return value indicates whether a value was found.
	Read(id TransactionID, key K) (value V, ok bool, err error)

	// Write appends a new version of key holding value.
	Write(id TransactionID, key K, value V) (err error)

	// Delete appends a tombstone version for key.
	Delete(id TransactionID, key K) (err error)

	// Scan calls fn in key order for every key in [from, to) that has a value
	// visible to the transaction. Iteration stops when fn returns false.
	Scan(id TransactionID, from, to K, fn func(key K, value V) bool) (err error)

	// --------------------------------------------------------------------------
	// Maintenance
	// --------------------------------------------------------------------------

	// GarbageCollect prunes versions that no active snapshot can reach and
	// returns the number of removed versions.
	GarbageCollect() (removed int)

	// VersionCount returns the number of stored versions across all keys.
	VersionCount() (count int)

	// WriteIdx returns the current value of the version counter.
	WriteIdx() (index uint64)

	// Snapshot returns an independent deep copy of the engine.
	Snapshot() IEngine[K, V]

	// SupportsFeature checks if the engine supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the engine.
	GetInfo() (info EngineInfo)

	// Close stops background work of the engine.
	Close() (err error)
}
