package parallel

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestForEach(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	var sum int64
	ForEach(items, func(n int) {
		atomic.AddInt64(&sum, int64(n))
	})
	if sum != 15 {
		t.Fatalf("got %d, want 15", sum)
	}
}

func TestForRange(t *testing.T) {
	n := 100
	seen := make([]int32, n)
	ForRange(n, func(i int) {
		atomic.AddInt32(&seen[i], 1)
	})
	for i, v := range seen {
		if v != 1 {
			t.Fatalf("index %d visited %d times, want 1", i, v)
		}
	}
}

func TestWorklistDrain(t *testing.T) {
	// A small tree: 1 -> {2,3}, 2 -> {4}, 3 -> {}, 4 -> {}.
	edges := map[int][]int{
		1: {2, 3},
		2: {4},
		3: {},
		4: {},
	}

	var visited int32
	var mu sync.Mutex
	seen := make(map[int]bool)

	w := NewWorklist([]int{1})
	w.Drain(func(item int, feed func(int)) {
		mu.Lock()
		already := seen[item]
		seen[item] = true
		mu.Unlock()
		if already {
			return
		}
		atomic.AddInt32(&visited, 1)
		for _, next := range edges[item] {
			feed(next)
		}
	})

	if visited != 4 {
		t.Fatalf("visited %d nodes, want 4", visited)
	}
}
