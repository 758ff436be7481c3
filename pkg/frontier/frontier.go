// Package frontier implements the §4.C frontier queue: per-remoteness
// buckets of (position, source) pairs discovered during a tier solve, with
// per-bucket dividers that are later turned into prefix-sum offsets marking
// which source tier contributed which sub-range.
//
// Grounded on the teacher's per-key striped locking in
// pkg/blobserver/diskpacked.go (statGate-bounded concurrent StatBlobs) and
// go4.org/syncutil's Gate/Group idiom for bounding fan-out goroutines; the
// per-bucket mutex here is the direct analogue of diskpacked's per-blob
// append lock, one level up (per-remoteness instead of per-offset).
package frontier

import (
	"fmt"
	"sync"

	"tiersolve.dev/pkg/record"
)

// ErrCapacity is returned by Add when remoteness exceeds the configured
// maximum (§4.C).
type ErrCapacity struct {
	Remoteness record.Remoteness
	Max        record.Remoteness
}

func (e *ErrCapacity) Error() string {
	return fmt.Sprintf("frontier: remoteness %d exceeds configured maximum %d", e.Remoteness, e.Max)
}

// SourceIndex names where a pushed position came from: either "self" (the
// tier being solved, pushed during propagation) or the index of one of the
// tier's canonical child tiers (pushed while loading initial frontier
// entries in Phase 1).
type SourceIndex int

// Entry is one frontier member: a position at a given remoteness, tagged
// with the source slot that produced it.
type Entry struct {
	Position record.Position
	Source   SourceIndex
}

// Frontier is the §4.C structure. NumSources is C+1: the number of
// canonical child tiers plus one slot for "this tier" (propagation writes).
// By convention SourceIndex(NumSources-1) is the "self" slot.
type Frontier struct {
	maxRemoteness record.Remoteness
	numSources    int

	mu        []sync.Mutex // one per remoteness bucket
	buckets   [][]Entry
	dividers  [][]int // dividers[r] has NumSources+1 entries; counts until accumulate, offsets after
	accumulated bool
}

// New allocates a Frontier for remotenesses [0, maxRemoteness] and the given
// number of distinct push sources (canonical child tier count + 1).
func New(maxRemoteness record.Remoteness, numSources int) *Frontier {
	n := int(maxRemoteness) + 1
	f := &Frontier{
		maxRemoteness: maxRemoteness,
		numSources:    numSources,
		mu:            make([]sync.Mutex, n),
		buckets:       make([][]Entry, n),
		dividers:      make([][]int, n),
	}
	for r := range f.dividers {
		f.dividers[r] = make([]int, numSources+1)
	}
	return f
}

// SelfSource is the source index propagation pushes use, by convention the
// last slot.
func (f *Frontier) SelfSource() SourceIndex { return SourceIndex(f.numSources - 1) }

// Add appends position at the given remoteness, tagged with source, and
// increments that bucket's divider count for source. Thread-safe: callers
// from any number of goroutines may call Add concurrently, serialized only
// per remoteness bucket, matching §5's "add serializes per bucket".
func (f *Frontier) Add(position record.Position, remoteness record.Remoteness, source SourceIndex) error {
	if remoteness > f.maxRemoteness {
		return &ErrCapacity{Remoteness: remoteness, Max: f.maxRemoteness}
	}
	r := int(remoteness)
	f.mu[r].Lock()
	defer f.mu[r].Unlock()
	if f.accumulated && source != f.SelfSource() {
		// Programmer error per §5: "any add after accumulate_dividers is a
		// bug" refers to Phase-1 divider loading from child tiers. Phase-2
		// propagation legitimately keeps pushing self-source entries into
		// strictly higher remoteness buckets long after AccumulateDividers
		// has run; only a non-self-source add past that point is the bug.
		// We don't silently drop it; surfacing loudly in a panic would be
		// disproportionate for a library, so we return it as an ordinary
		// error and let the worker treat it as fatal.
		return fmt.Errorf("frontier: add(%d, %d, %d) after accumulate_dividers", position, remoteness, source)
	}
	f.buckets[r] = append(f.buckets[r], Entry{Position: position, Source: source})
	f.dividers[r][source]++
	return nil
}

// AccumulateDividers converts every bucket's per-source counts into
// prefix-sum offsets. Must be called exactly once, after all Phase 1
// loading completes and before Phase 2 propagation begins (§4.C, §5).
func (f *Frontier) AccumulateDividers() {
	for r := range f.dividers {
		sum := 0
		for s := 0; s < len(f.dividers[r]); s++ {
			count := f.dividers[r][s]
			f.dividers[r][s] = sum
			sum += count
		}
	}
	f.accumulated = true
}

// Len returns the number of entries pushed into bucket r.
func (f *Frontier) Len(remoteness record.Remoteness) int {
	return len(f.buckets[int(remoteness)])
}

// Get retrieves the i-th entry of bucket remoteness.
func (f *Frontier) Get(remoteness record.Remoteness, i int) Entry {
	return f.buckets[int(remoteness)][i]
}

// Bucket returns the full slice for remoteness, for range-based iteration
// by worker goroutines; callers must not mutate it.
func (f *Frontier) Bucket(remoteness record.Remoteness) []Entry {
	return f.buckets[int(remoteness)]
}

// Dividers returns the accumulated offsets for bucket r (valid only after
// AccumulateDividers): Dividers(r)[s] is where source s's contribution
// begins within Bucket(r), and Dividers(r)[s+1] is where it ends.
func (f *Frontier) Dividers(remoteness record.Remoteness) []int {
	return f.dividers[int(remoteness)]
}

// Free releases bucket r's backing storage after it has been fully
// processed, bounding peak memory during a long induction.
func (f *Frontier) Free(remoteness record.Remoteness) {
	r := int(remoteness)
	f.mu[r].Lock()
	f.buckets[r] = nil
	f.mu[r].Unlock()
}

// MaxRemoteness returns the configured ceiling.
func (f *Frontier) MaxRemoteness() record.Remoteness { return f.maxRemoteness }
