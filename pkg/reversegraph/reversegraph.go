// Package reversegraph implements the §4.D reverse graph: a lazily-built,
// per-slot-locked parent adjacency cache used when the Game API does not
// supply a native canonical-parents function.
//
// Grounded on pkg/blobserver/blobpacked.go's manifest bookkeeping (a flat,
// offset-addressed array built once per pack operation and torn down after)
// and on §9's explicit direction to replace "parent enumeration via linked
// lists of positions" with flat per-slot arrays using a small-vector
// optimization when most parent lists are short.
package reversegraph

import (
	"sync"

	"tiersolve.dev/pkg/record"
)

// inlineCap is the small-vector's inline capacity: the overwhelming
// majority of positions in most solved games have one or two canonical
// parents, so three inline slots absorb that case without a heap
// allocation; a fourth parent spills to the slice.
const inlineCap = 3

// smallVec holds up to inlineCap positions inline before spilling to a
// slice.
type smallVec struct {
	inline [inlineCap]record.Position
	n      int
	spill  []record.Position
}

func (v *smallVec) append(p record.Position) {
	if v.spill != nil {
		v.spill = append(v.spill, p)
		return
	}
	if v.n < inlineCap {
		v.inline[v.n] = p
		v.n++
		return
	}
	v.spill = make([]record.Position, v.n, v.n+1)
	copy(v.spill, v.inline[:v.n])
	v.spill = append(v.spill, p)
}

func (v *smallVec) values() []record.Position {
	if v.spill != nil {
		return v.spill
	}
	if v.n == 0 {
		return nil
	}
	out := make([]record.Position, v.n)
	copy(out, v.inline[:v.n])
	return out
}

// Graph maps a child TierPosition (in one of the tier's canonical child
// tiers, or the tier itself for same-tier moves) to the list of positions in
// the tier being solved that canonically move into it.
type Graph struct {
	tier       record.Tier
	childTiers []record.Tier // index i is slot i; the tier itself occupies the trailing slot
	sizes      []record.Position

	base   []int // base offset of child tier i within the flat slot array
	mu     []sync.Mutex
	slots  []smallVec
}

// New allocates a reverse graph for tier t, whose canonical child tiers are
// childTiers (sizes given in parallel), plus a trailing self-slot of size
// selfSize for same-tier moves.
func New(t record.Tier, childTiers []record.Tier, childSizes []record.Position, selfSize record.Position) *Graph {
	g := &Graph{
		tier:       t,
		childTiers: append(append([]record.Tier{}, childTiers...), t),
		sizes:      append(append([]record.Position{}, childSizes...), selfSize),
	}
	g.base = make([]int, len(g.sizes))
	total := 0
	for i, sz := range g.sizes {
		g.base[i] = total
		total += int(sz)
	}
	g.mu = make([]sync.Mutex, total)
	g.slots = make([]smallVec, total)
	return g
}

// slotIndex resolves tp, known to lie in child tier at index childIdx, to
// its offset in the flat slot array.
func (g *Graph) slotIndex(childIdx int, pos record.Position) int {
	return g.base[childIdx] + int(pos)
}

// childIndexOf returns the slot index of tier t, or -1 if t is not one of
// this graph's child tiers or the tier itself.
func (g *Graph) childIndexOf(t record.Tier) int {
	for i, ct := range g.childTiers {
		if ct == t {
			return i
		}
	}
	return -1
}

// AddParent records that parent canonically moves into child (which must lie
// in one of the graph's child tiers or the tier itself). One lock per slot,
// per §4.D step 2 and §5's "one lock per parents_of slot."
func (g *Graph) AddParent(child record.TierPosition, parent record.Position) bool {
	idx := g.childIndexOf(child.Tier)
	if idx < 0 {
		return false
	}
	slot := g.slotIndex(idx, child.Position)
	g.mu[slot].Lock()
	g.slots[slot].append(parent)
	g.mu[slot].Unlock()
	return true
}

// PopParentsOf is a destructive read: it returns child's parent list and
// clears the slot, bounding peak memory as positions are consumed during
// propagation (§4.D step 3).
func (g *Graph) PopParentsOf(child record.TierPosition) []record.Position {
	idx := g.childIndexOf(child.Tier)
	if idx < 0 {
		return nil
	}
	slot := g.slotIndex(idx, child.Position)
	g.mu[slot].Lock()
	defer g.mu[slot].Unlock()
	v := g.slots[slot].values()
	g.slots[slot] = smallVec{}
	return v
}

// ParentsOf is a non-destructive read, used by tests and by the frontier
// percolation strategy for entries from child tiers.
func (g *Graph) ParentsOf(child record.TierPosition) []record.Position {
	idx := g.childIndexOf(child.Tier)
	if idx < 0 {
		return nil
	}
	slot := g.slotIndex(idx, child.Position)
	g.mu[slot].Lock()
	defer g.mu[slot].Unlock()
	return g.slots[slot].values()
}
