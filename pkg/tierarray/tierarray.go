// Package tierarray implements the §4.B tier record array: a flat,
// position-indexed array of packed Records, plus the value-maximization
// compare-and-swap update used by backward induction and the
// undecided-children counters used to detect when a position has become a
// forced loss or tie.
package tierarray

import (
	"sync/atomic"

	"tiersolve.dev/pkg/record"
)

// Array is a contiguous, position-indexed store of Records for the tier
// currently being solved. Every cell starts Undecided, 0. Cells are
// independently owned by their position index; concurrent writes to
// distinct cells are always safe, and concurrent writes to the same cell
// go through CompareUpdate's compare-and-swap on the 32-bit cell holding the
// 16-bit record, per §5.
type Array struct {
	cells   []atomic.Uint32 // only the low 16 bits are meaningful
	counter []atomic.Int32  // undecided_children_count, §4.E.2
	tieSeen []atomic.Bool   // set when a win-or-tie-decrement came from a tie child
}

// New allocates an Array of length size, all cells Undecided,0 and all
// counters 0 (the worker fills counters in during Phase 1 initialization).
func New(size record.Position) *Array {
	return &Array{
		cells:   make([]atomic.Uint32, size),
		counter: make([]atomic.Int32, size),
		tieSeen: make([]atomic.Bool, size),
	}
}

// Len returns the array's length (the tier size it was built for).
func (a *Array) Len() record.Position { return record.Position(len(a.cells)) }

// Get returns the current record at p.
func (a *Array) Get(p record.Position) record.Record {
	return record.Record(a.cells[p].Load())
}

// Set unconditionally overwrites the record at p, bypassing the dominance
// check. Used only during Phase 1 initialization, before any position has a
// competing write.
func (a *Array) Set(p record.Position, r record.Record) {
	a.cells[p].Store(uint32(r))
}

// CompareUpdate applies the §4.B value-maximization update at position p:
// it replaces the stored record with candidate iff candidate strictly
// dominates the record currently there, retrying under contention via CAS
// so concurrent writers to the same cell never lose an update silently. It
// reports whether candidate's write won.
func (a *Array) CompareUpdate(p record.Position, candidate record.Record) bool {
	cell := &a.cells[p]
	for {
		old := record.Record(cell.Load())
		if !record.Dominates(candidate, old) {
			return false
		}
		if cell.CompareAndSwap(uint32(old), uint32(candidate)) {
			return true
		}
		// Lost the race to another writer; re-read and retry the dominance
		// check against whatever is there now.
	}
}

// InitCounter sets the undecided_children_count for p. Called once per
// position during Phase 1, before any propagation touches it.
func (a *Array) InitCounter(p record.Position, n int) {
	a.counter[p].Store(int32(n))
}

// DecrementCounter atomically decrements p's undecided_children_count and
// returns the counter's value after the decrement.
func (a *Array) DecrementCounter(p record.Position) int32 {
	return a.counter[p].Add(-1)
}

// Counter returns the current undecided_children_count for p, used by the
// final Phase 2 sweep that converts any residual counter-zero positions.
func (a *Array) Counter(p record.Position) int32 {
	return a.counter[p].Load()
}

// MarkTieSeen records that one of p's children resolved to tie, so that
// when p's counter reaches zero the final verdict is tie rather than lose
// (§4.E.2's "tie follows the same counter-based rule... in place of lose").
func (a *Array) MarkTieSeen(p record.Position) {
	a.tieSeen[p].Store(true)
}

// TieSeen reports whether MarkTieSeen has been called for p.
func (a *Array) TieSeen(p record.Position) bool {
	return a.tieSeen[p].Load()
}

// Records copies the array out as a plain []record.Record, e.g. for
// flushing to a CRF.
func (a *Array) Records() []record.Record {
	out := make([]record.Record, len(a.cells))
	for i := range a.cells {
		out[i] = record.Record(a.cells[i].Load())
	}
	return out
}
