// Package internal contains the data structures of the vchain engine:
// the versioned Entry, the ordered version Chain of a key including the
// visibility scan, the transaction record Txn and the Event type consumed by
// the background collector.
//
// The types are not synchronized. The engine guards every Chain with its key
// index lock and stores Txn values in a concurrent map.
package internal
