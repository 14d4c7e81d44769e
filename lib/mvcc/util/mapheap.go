// Package util
//
// This file provides a min-heap that is also addressable by key.
//
// The engine uses it as the registry of active snapshots: the key is a
// transaction id and the priority is the start version of that transaction.
// Peek then yields the oldest snapshot that is still in use, which is the
// floor below which the garbage collector may prune.
//
// Time Complexity:
//   - O(log n) for AddItem, RemoveByKey and updates of an existing key
//   - O(1) for Peek, Contains and GetByKey
//
// Concurrency Considerations:
//   - This implementation is not thread-safe
//   - For concurrent use, external synchronization should be applied
//
// Example usage:
//
//	snapshots := NewMapHeap[uint64]()
//
//	snapshots.AddItem(txID, startVersion)
//
//	// the oldest snapshot still in use
//	oldest, exists := snapshots.Peek()
//
//	// the transaction finished
//	snapshots.RemoveByKey(txID)
package util

import (
	"container/heap"
	"fmt"
)

// HeapItem is an element of a MapHeap
type HeapItem[K comparable] struct {
	Key      K      // Unique identifier for the item
	Priority uint64 // Ordering value, the smallest priority is on top
	index    int    // Index in the heap, maintained by heap package
}

func (i *HeapItem[K]) String() string {
	return fmt.Sprintf("{Key: %v, Priority: %d}", i.Key, i.Priority)
}

// MapHeap is a min-heap by priority with O(1) access by key
type MapHeap[K comparable] struct {
	items    []*HeapItem[K]
	itemsMap map[K]*HeapItem[K]
}

// NewMapHeap creates a new empty MapHeap
func NewMapHeap[K comparable]() *MapHeap[K] {
	return &MapHeap[K]{
		items:    make([]*HeapItem[K], 0),
		itemsMap: make(map[K]*HeapItem[K]),
	}
}

// Len returns the number of items in the heap (part of heap.Interface)
func (mh *MapHeap[K]) Len() int { return len(mh.items) }

// Less compares items by priority (part of heap.Interface)
func (mh *MapHeap[K]) Less(i, j int) bool {
	return mh.items[i].Priority < mh.items[j].Priority
}

// Swap exchanges items at positions i and j (part of heap.Interface)
func (mh *MapHeap[K]) Swap(i, j int) {
	mh.items[i], mh.items[j] = mh.items[j], mh.items[i]
	mh.items[i].index = i
	mh.items[j].index = j
}

// Push adds an item to the heap (part of heap.Interface). Use AddItem instead.
func (mh *MapHeap[K]) Push(x interface{}) {
	it := x.(*HeapItem[K])
	it.index = len(mh.items)
	mh.items = append(mh.items, it)
	mh.itemsMap[it.Key] = it
}

// Pop removes and returns the last item (part of heap.Interface). Use heap.Pop instead.
func (mh *MapHeap[K]) Pop() interface{} {
	old := mh.items
	n := len(old)
	it := old[n-1]
	old[n-1] = nil // Avoid memory leak
	it.index = -1
	mh.items = old[:n-1]
	delete(mh.itemsMap, it.Key)
	return it
}

// AddItem adds a new item or updates the priority of an existing one
func (mh *MapHeap[K]) AddItem(key K, priority uint64) {
	if it, exists := mh.itemsMap[key]; exists {
		it.Priority = priority
		heap.Fix(mh, it.index)
		return
	}

	heap.Push(mh, &HeapItem[K]{
		Key:      key,
		Priority: priority,
	})
}

// RemoveByKey removes an item by its key and returns its priority
func (mh *MapHeap[K]) RemoveByKey(key K) (uint64, bool) {
	it, exists := mh.itemsMap[key]
	if !exists {
		return 0, false
	}

	heap.Remove(mh, it.index)
	return it.Priority, true
}

// Peek returns the item with the smallest priority without removing it
func (mh *MapHeap[K]) Peek() (*HeapItem[K], bool) {
	if len(mh.items) == 0 {
		return nil, false
	}
	return mh.items[0], true
}

// Contains checks if a key exists in the heap
func (mh *MapHeap[K]) Contains(key K) bool {
	_, exists := mh.itemsMap[key]
	return exists
}

// GetByKey retrieves an item by its key without removing it
func (mh *MapHeap[K]) GetByKey(key K) (*HeapItem[K], bool) {
	it, exists := mh.itemsMap[key]
	return it, exists
}
