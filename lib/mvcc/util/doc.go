// Package util provides support structures for engine implementations
// that satisfy the mvcc.IEngine interface.
//
// The package contains:
//   - mapheap: A min-heap that is also addressable by key, used as registry of active snapshots
//   - lockfreempsc: A lock-free Multi-Producer Single-Consumer (MPSC) queue used to feed the background collector
//   - statistics: Summary statistics and a Histogram for reporting version chain lengths
//
// None of the components depend on the engine, so they can be tested and
// reused in isolation.
package util
