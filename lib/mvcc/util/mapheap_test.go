package util

import (
	"container/heap"
	"math/rand"
	"sort"
	"testing"
)

// TestNewMapHeap tests the creation of a new MapHeap
func TestNewMapHeap(t *testing.T) {
	mh := NewMapHeap[uint64]()

	if mh == nil {
		t.Fatal("NewMapHeap() returned nil")
	}

	if mh.Len() != 0 {
		t.Errorf("New heap should be empty, but has length %d", mh.Len())
	}

	if _, exists := mh.Peek(); exists {
		t.Error("Peek on empty heap should return exists=false")
	}
}

// TestOldestSnapshot registers snapshots and checks that Peek yields the oldest
func TestOldestSnapshot(t *testing.T) {
	mh := NewMapHeap[uint64]()

	// tx id -> start version
	mh.AddItem(1, 10)
	mh.AddItem(2, 10)
	mh.AddItem(3, 4)
	mh.AddItem(4, 12)

	if mh.Len() != 4 {
		t.Errorf("Heap should have 4 items, but has %d", mh.Len())
	}

	oldest, exists := mh.Peek()
	if !exists {
		t.Fatal("Peek() should return an item")
	}
	if oldest.Key != 3 || oldest.Priority != 4 {
		t.Errorf("Expected oldest snapshot (3,4), got (%d,%d)", oldest.Key, oldest.Priority)
	}

	// the oldest transaction finishes
	start, exists := mh.RemoveByKey(3)
	if !exists || start != 4 {
		t.Errorf("RemoveByKey should return (4, true), got (%d, %t)", start, exists)
	}

	oldest, _ = mh.Peek()
	if oldest.Priority != 10 {
		t.Errorf("Expected oldest start version 10, got %d", oldest.Priority)
	}

	// removing a key twice is a no-op
	if _, exists := mh.RemoveByKey(3); exists {
		t.Error("RemoveByKey should return false for a removed key")
	}
	if mh.Contains(3) {
		t.Error("Heap should not contain key 3 after removal")
	}
}

// TestUpdateItem tests updating existing items
func TestUpdateItem(t *testing.T) {
	mh := NewMapHeap[string]()

	mh.AddItem("a", 100)
	mh.AddItem("b", 200)

	mh.AddItem("a", 300)

	item, exists := mh.GetByKey("a")
	if !exists {
		t.Fatal("Item with key a should exist")
	}
	if item.Priority != 300 {
		t.Errorf("Item with key a should have priority 300, got %d", item.Priority)
	}
	if mh.Len() != 2 {
		t.Errorf("Update should not add an item, heap has %d items", mh.Len())
	}

	min, _ := mh.Peek()
	if min.Key != "b" {
		t.Errorf("Min item should now be key b, got %s", min.Key)
	}

	mh.AddItem("b", 50)
	min, _ = mh.Peek()
	if min.Key != "b" || min.Priority != 50 {
		t.Errorf("Min item should now be (b,50), got (%s,%d)", min.Key, min.Priority)
	}
}

// TestPopOrder tests if items are popped in correct order
func TestPopOrder(t *testing.T) {
	mh := NewMapHeap[uint64]()

	items := []struct {
		key      uint64
		priority uint64
	}{
		{5, 50},
		{3, 30},
		{1, 10},
		{4, 40},
		{2, 20},
	}

	for _, item := range items {
		mh.AddItem(item.key, item.priority)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].priority < items[j].priority
	})

	for i, expected := range items {
		if mh.Len() == 0 {
			t.Fatalf("Heap empty after %d items, expected %d items", i, len(items))
		}

		item := heap.Pop(mh).(*HeapItem[uint64])
		if item.Key != expected.key || item.Priority != expected.priority {
			t.Errorf("Pop %d: expected (%d,%d), got (%d,%d)",
				i, expected.key, expected.priority, item.Key, item.Priority)
		}
		if mh.Contains(item.Key) {
			t.Errorf("Popped key %d should not be in the map", item.Key)
		}
	}
}

// TestRandomRemovals removes random keys and checks the minimum after each step
func TestRandomRemovals(t *testing.T) {
	mh := NewMapHeap[uint64]()
	r := rand.New(rand.NewSource(42))

	priorities := make(map[uint64]uint64)
	for i := uint64(1); i <= 500; i++ {
		p := uint64(r.Intn(1000))
		priorities[i] = p
		mh.AddItem(i, p)
	}

	for len(priorities) > 0 {
		// remove some key
		var key uint64
		for k := range priorities {
			key = k
			break
		}
		if _, exists := mh.RemoveByKey(key); !exists {
			t.Fatalf("Key %d should exist", key)
		}
		delete(priorities, key)

		if len(priorities) == 0 {
			break
		}

		var want uint64 = 1 << 63
		for _, p := range priorities {
			if p < want {
				want = p
			}
		}
		min, _ := mh.Peek()
		if min.Priority != want {
			t.Fatalf("Expected min priority %d, got %d", want, min.Priority)
		}
	}

	if mh.Len() != 0 {
		t.Errorf("Heap should be empty, has %d items", mh.Len())
	}
}
