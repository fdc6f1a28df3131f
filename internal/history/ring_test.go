package history

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func seq(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

func TestRing_EvictsOldestFirst(t *testing.T) {
	t.Parallel()

	r := NewRing[int](5)
	for i := 1; i <= 8; i++ {
		r.Push(i)
	}
	require.Equal(t, 5, r.Len())
	if diff := cmp.Diff([]int{4, 5, 6, 7, 8}, r.Snapshot()); diff != "" {
		t.Fatalf("snapshot (-want +got):\n%s", diff)
	}
}

func TestRing_CapacityPlusK(t *testing.T) {
	t.Parallel()

	const capacity = 7
	for k := 0; k <= 3*capacity; k++ {
		r := NewRing[int](capacity)
		for i := 1; i <= capacity+k; i++ {
			r.Push(i)
		}
		want := seq(k+1, capacity+k)
		if diff := cmp.Diff(want, r.Snapshot()); diff != "" {
			t.Fatalf("k=%d (-want +got):\n%s", k, diff)
		}
	}
}

func TestRing_PartialFill(t *testing.T) {
	t.Parallel()

	r := NewRing[int](4)
	require.Empty(t, r.Snapshot())
	r.Push(1)
	r.Push(2)
	require.Equal(t, []int{1, 2}, r.Snapshot())
	require.Equal(t, 4, r.Cap())
}

func TestRing_MinimumCapacity(t *testing.T) {
	t.Parallel()

	r := NewRing[string](0)
	r.Push("a")
	r.Push("b")
	require.Equal(t, []string{"b"}, r.Snapshot())
}

func TestBuffer_SnapshotIsIndependent(t *testing.T) {
	t.Parallel()

	b := NewBuffer[int](3)
	b.Append(1)
	b.Append(2)
	snap := b.Snapshot()
	snap[0] = 99
	b.Append(3)
	require.Equal(t, []int{1, 2, 3}, b.Snapshot())
	require.Equal(t, []int{99, 2}, snap)
}

func TestBuffer_ConcurrentReadersSeeOrderedPrefixes(t *testing.T) {
	t.Parallel()

	const total = 500
	b := NewBuffer[int](DefaultCapacity)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= total; i++ {
			b.Append(i)
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				snap := b.Snapshot()
				if len(snap) > b.Cap() {
					t.Errorf("snapshot longer than capacity: %d", len(snap))
					return
				}
				for j := 1; j < len(snap); j++ {
					if snap[j] != snap[j-1]+1 {
						t.Errorf("snapshot out of order at %d: %v", j, snap)
						return
					}
				}
			}
		}()
	}
	wg.Wait()

	require.Equal(t, DefaultCapacity, b.Len())
	require.Equal(t, seq(total-DefaultCapacity+1, total), b.Snapshot())
}
