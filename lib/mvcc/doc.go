// Package mvcc defines the contract of an in-process multi-version
// concurrency control (MVCC) key-value engine. Transactions read a consistent
// snapshot of the data while other transactions append new versions, without
// taking read locks.
//
// The package focuses on:
//   - A generic engine interface (IEngine) for ordered keys and arbitrary values
//   - The transaction lifecycle types (TransactionID, TxState)
//   - A typed error (Error) with codes for unknown and finished transactions
//   - Engine options (Options) and feature discovery (Feature, EngineInfo)
//
// Key Concepts:
//
//   - Version Counter: A single, store-wide counter assigns a unique version
//     to every Write and Delete regardless of the key. Versions are therefore
//     totally ordered across the whole engine, not per key.
//
//   - Version Chain: For each key the engine keeps the versions written to it,
//     ordered by version. A Delete does not remove anything; it appends a
//     tombstone version without a value.
//
//   - Snapshot Boundary: Begin captures the current value of the version
//     counter as the start version of the transaction. Reads only consider
//     versions at or below that boundary.
//
// Note on Visibility:
//   - A version is visible to a reader when its version is at or below the
//     reader's start version and the id of the transaction that created it is
//     smaller than the reader's id. The commit state of the creator is not
//     consulted, so a write of a still active transaction can be visible to a
//     transaction with a higher id.
//   - A tombstone created by a transaction with a smaller id is skipped and the
//     scan continues with older versions of the key. A value written before the
//     tombstone can therefore be returned again.
//   - Concurrent writers to the same key never conflict. The version with the
//     highest number is the newest for later readers.
//
// Note on Garbage Collection:
//   - Aborting a transaction removes every version it created.
//   - GarbageCollect computes the minimum start version of all active
//     transactions (or the current version counter if none is active). For each
//     key with more than Options.MaxVersions versions it keeps the newest
//     version below that floor and everything above it, and drops the rest.
//   - Finished transactions stay in the transaction table.
//
// Related Packages:
//
// The engines/vchain package (github.com/ValentinKolb/mvKV/lib/mvcc/engines/vchain)
// implements IEngine with a B-tree of version chains guarded by a reader/writer
// lock and a concurrent map as transaction table.
//
// The testing package (github.com/ValentinKolb/mvKV/lib/mvcc/testing) provides
// a conformance suite and benchmarks for IEngine implementations.
package mvcc
