// Package worker implements the §4.E tier worker: the backward-induction
// core that solves one canonical tier given its child tiers already solved
// on disk.
//
// Grounded on pkg/blobserver/diskpacked.go's statGate-bounded fan-out
// (go4.org/syncutil.Gate/Group, §4.E.6) and on the teacher's general
// "collaborator supplies the domain logic, the core supplies the storage
// and concurrency plumbing" split between blobserver.Storage and its
// callers.
package worker

import (
	"fmt"
	"runtime"

	"go4.org/syncutil"

	"tiersolve.dev/pkg/analysis"
	"tiersolve.dev/pkg/database"
	"tiersolve.dev/pkg/frontier"
	"tiersolve.dev/pkg/gameapi"
	"tiersolve.dev/pkg/record"
	"tiersolve.dev/pkg/reversegraph"
	"tiersolve.dev/pkg/tierarray"
)

// Strategy is one of the two interchangeable induction strategies of
// §4.E.1.
type Strategy int

const (
	// FrontierPercolation keeps an explicit frontier queue and, if the
	// Game API lacks native canonical parents, a reverse graph.
	FrontierPercolation Strategy = iota
	// FrontierLess avoids the frontier by rescanning the tier's record
	// array at each remoteness; requires native canonical parents.
	FrontierLess
)

func (s Strategy) String() string {
	if s == FrontierLess {
		return "frontier_less"
	}
	return "frontier_percolation"
}

// recordBytesPerPosition, frontierBytesPerEntry and reverseGraphBytesPerSlot
// are the constants of the §4.E.1 memory-usage heuristic (an implementation
// choice — §9 records there was no original-source constant to reproduce;
// the only binding contract is identical output across strategies).
const (
	recordBytesPerPosition      = 2
	frontierBytesPerEntry       = 24
	reverseGraphBytesPerSlot    = 8
	estimatedFrontierMultiplier = 1 // estimated_frontier_positions ~= tier_size, conservatively
)

// SelectStrategy applies §4.E.1's heuristic: prefer frontier percolation if
// it fits memLimit; else frontier-less if native canonical parents are
// available and its (smaller) estimate fits; else memory_error.
func SelectStrategy(tierSize, childTotalSize record.Position, hasCanonicalParents bool, memLimit int64) (Strategy, error) {
	needsReverseGraph := !hasCanonicalParents
	percolationEstimate := int64(tierSize) * recordBytesPerPosition
	percolationEstimate += int64(tierSize) * estimatedFrontierMultiplier * frontierBytesPerEntry
	if needsReverseGraph {
		percolationEstimate += int64(childTotalSize) * reverseGraphBytesPerSlot
	}
	if memLimit <= 0 || percolationEstimate <= memLimit {
		return FrontierPercolation, nil
	}
	if !hasCanonicalParents {
		return 0, record.New(record.MemoryError, fmt.Sprintf("worker: frontier percolation needs %d bytes > limit %d, and frontier-less is unavailable without native canonical parents", percolationEstimate, memLimit), nil)
	}
	lessEstimate := int64(tierSize) * recordBytesPerPosition
	if lessEstimate > memLimit {
		return 0, record.New(record.MemoryError, fmt.Sprintf("worker: even frontier-less needs %d bytes > limit %d", lessEstimate, memLimit), nil)
	}
	return FrontierLess, nil
}

// Options configures one Solve call.
type Options struct {
	Force       bool
	Verbose     int
	MemLimit    int64 // 0 => no limit enforced
	Concurrency int   // 0 => runtime.GOMAXPROCS(0)
}

func (o Options) gateWidth() int {
	if o.Concurrency > 0 {
		return o.Concurrency
	}
	return runtime.GOMAXPROCS(0)
}

// ChildTier is one already-solved canonical child tier's data, as loaded by
// the caller (pkg/manager) from its CRF.
type ChildTier struct {
	Tier    record.Tier
	Records []record.Record
}

// Result is the outcome of a successful Solve.
type Result struct {
	Strategy Strategy
	Sidecar  *analysis.Sidecar
}

// Worker solves tiers of one Game API implementation against one database
// Manager.
type Worker struct {
	caps *gameapi.Capabilities
	db   *database.Manager
}

// New constructs a Worker.
func New(caps *gameapi.Capabilities, db *database.Manager) *Worker {
	return &Worker{caps: caps, db: db}
}

// Solve solves tier t, given its already-solved canonical children in
// children (ordered arbitrarily; the worker consults Tier to match them to
// caps.ChildTiers(t)'s order), writing a CRF via the database.Manager and
// returning the tier's analysis sidecar in the Result. The sidecar is not
// written to disk here.
func (w *Worker) Solve(t record.Tier, children []ChildTier, opts Options) (*Result, error) {
	tierSize, err := w.caps.TierSize(t)
	if err != nil {
		return nil, record.NewAt(record.GameAPIError, t, 0, "worker: TierSize", err)
	}
	name, ok := w.caps.TierName(t)
	if !ok {
		name = database.DecimalTierName(t)
	}
	if !opts.Force {
		if st, err := w.db.Status(name); err == nil && st.String() == "solved" {
			return &Result{Strategy: FrontierPercolation}, nil
		}
	}

	var childTotal record.Position
	for _, c := range children {
		childTotal += record.Position(len(c.Records))
	}
	strategy, err := SelectStrategy(tierSize, childTotal, w.caps.HasCanonicalParents, opts.MemLimit)
	if err != nil {
		return nil, err
	}

	arr, err := w.db.SolvingTierCreate(t, name, tierSize)
	if err != nil {
		return nil, err
	}
	defer w.db.SolvingTierFree()

	sidecar := analysis.New(t)

	switch strategy {
	case FrontierPercolation:
		if err := w.solveFrontierPercolation(t, tierSize, children, arr, sidecar, opts); err != nil {
			return nil, err
		}
	case FrontierLess:
		if err := w.solveFrontierLess(t, tierSize, children, arr, sidecar, opts); err != nil {
			return nil, err
		}
	}

	if err := w.db.SolvingTierFlush(); err != nil {
		return nil, err
	}
	return &Result{Strategy: strategy, Sidecar: sidecar}, nil
}

// canonicalChildrenOf returns p's distinct canonical child positions,
// de-duplicated, via the native capability when available or else by
// enumerating moves (§4.E.4).
func (w *Worker) canonicalChildrenOf(tp record.TierPosition) ([]record.TierPosition, error) {
	if w.caps.HasCanonicalChildren {
		kids, err := w.caps.CanonicalChildren(tp)
		if err != nil {
			return nil, err
		}
		return dedupeTierPositions(kids), nil
	}
	moves, err := w.caps.GenerateMoves(tp)
	if err != nil {
		return nil, err
	}
	out := make([]record.TierPosition, 0, len(moves))
	for _, m := range moves {
		child, err := w.caps.DoMove(tp, m)
		if err != nil {
			return nil, err
		}
		canon, err := w.caps.Canonicalize(child)
		if err != nil {
			return nil, err
		}
		out = append(out, canon)
	}
	return dedupeTierPositions(out), nil
}

func dedupeTierPositions(in []record.TierPosition) []record.TierPosition {
	if len(in) < 2 {
		return in
	}
	seen := make(map[record.TierPosition]bool, len(in))
	out := in[:0]
	for _, tp := range in {
		if seen[tp] {
			continue
		}
		seen[tp] = true
		out = append(out, tp)
	}
	return out
}

func dedupePositions(in []record.Position) []record.Position {
	if len(in) < 2 {
		return in
	}
	seen := make(map[record.Position]bool, len(in))
	out := in[:0]
	for _, p := range in {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// solveFrontierPercolation implements §4.E.2's three phases using an
// explicit frontier.Frontier, building a reversegraph.Graph only when the
// Game API lacks native canonical parents.
func (w *Worker) solveFrontierPercolation(t record.Tier, tierSize record.Position, children []ChildTier, arr *tierarray.Array, sidecar *analysis.Sidecar, opts Options) error {
	childTiers := make([]record.Tier, len(children))
	childSizes := make([]record.Position, len(children))
	for i, c := range children {
		childTiers[i] = c.Tier
		childSizes[i] = record.Position(len(c.Records))
	}

	var rg *reversegraph.Graph
	if !w.caps.HasCanonicalParents {
		rg = reversegraph.New(t, childTiers, childSizes, tierSize)
	}

	fr := frontier.New(record.MaxRemoteness, len(children)+1)
	gate := syncutil.NewGate(opts.gateWidth())

	// Phase 1, step 2: primitives and counters for this tier's own
	// positions.
	var grp syncutil.Group
	for p := record.Position(0); p < tierSize; p++ {
		p := p
		gate.Start()
		grp.Go(func() error {
			defer gate.Done()
			return w.initPosition(t, p, arr, fr, rg)
		})
	}
	if err := grp.Err(); err != nil {
		return err
	}

	// Phase 1, step 3: load frontier entries from each already-solved
	// child tier.
	for i, c := range children {
		if err := w.loadChildFrontier(record.SourceIndex(i), c, fr); err != nil {
			return err
		}
	}
	fr.AccumulateDividers()

	// Phase 2: propagate remoteness levels in strict ascending order.
	for r := record.Remoteness(0); r <= fr.MaxRemoteness(); r++ {
		bucket := fr.Bucket(r)
		if len(bucket) == 0 {
			continue
		}
		var pg syncutil.Group
		for _, entry := range bucket {
			entry := entry
			gate.Start()
			pg.Go(func() error {
				defer gate.Done()
				return w.propagateEntry(t, r, entry, children, arr, fr, rg)
			})
		}
		if err := pg.Err(); err != nil {
			return err
		}
		fr.Free(r)
	}

	w.finalize(tierSize, arr, sidecar)
	return nil
}

func (w *Worker) initPosition(t record.Tier, p record.Position, arr *tierarray.Array, fr *frontier.Frontier, rg *reversegraph.Graph) error {
	tp := record.TierPosition{Tier: t, Position: p}
	legal, err := w.caps.IsLegal(tp)
	if err != nil {
		return record.NewAt(record.GameAPIError, t, p, "worker: IsLegal", err)
	}
	if !legal {
		return nil
	}
	val, isPrimitive, err := w.caps.Primitive(tp)
	if err != nil {
		return record.NewAt(record.GameAPIError, t, p, "worker: Primitive", err)
	}
	if isPrimitive {
		arr.Set(p, record.NewRecord(val, 0))
		return fr.Add(p, 0, fr.SelfSource())
	}
	kids, err := w.canonicalChildrenOf(tp)
	if err != nil {
		return record.NewAt(record.GameAPIError, t, p, "worker: enumerate children", err)
	}
	arr.InitCounter(p, len(kids))
	if rg != nil {
		for _, kid := range kids {
			rg.AddParent(kid, p)
		}
	}
	return nil
}

// loadChildFrontier implements Phase 1 step 3 for one already-solved child
// tier: every decided position of the child is pushed onto the frontier in
// its own right, tagged with the child's source index. propagateEntry
// re-derives each entry's parents in t when it's popped in Phase 2, so this
// only needs to record which child positions are already decided and at
// what remoteness — it must not push t-side parent positions here, since
// propagateEntry indexes child.Records by entry.Position directly.
func (w *Worker) loadChildFrontier(src record.SourceIndex, child ChildTier, fr *frontier.Frontier) error {
	for q := 0; q < len(child.Records); q++ {
		rec := child.Records[q]
		if rec.Value() == record.Undecided {
			continue
		}
		if err := fr.Add(record.Position(q), rec.Remoteness(), src); err != nil {
			return err
		}
	}
	return nil
}

// parentsOf returns tp's canonical parents lying in tier t, via the native
// capability when available or else the reverse graph's non-destructive
// read. propagateEntry calls it for child-tier entries; self-source entries
// without native parents are drained with PopParentsOf instead.
func (w *Worker) parentsOf(t record.Tier, tp record.TierPosition, rg *reversegraph.Graph) ([]record.Position, error) {
	if w.caps.HasCanonicalParents {
		parents, err := w.caps.CanonicalParents(tp, t)
		if err != nil {
			return nil, record.NewAt(record.GameAPIError, tp.Tier, tp.Position, "worker: CanonicalParents", err)
		}
		out := make([]record.Position, 0, len(parents))
		for _, p := range parents {
			if p.Tier == t {
				out = append(out, p.Position)
			}
		}
		return dedupePositions(out), nil
	}
	return dedupePositions(rg.ParentsOf(tp)), nil
}

// propagateEntry applies one frontier entry's update to every one of its
// canonical parents, per §4.E.2 Phase 2.
func (w *Worker) propagateEntry(t record.Tier, r record.Remoteness, entry frontier.Entry, children []ChildTier, arr *tierarray.Array, fr *frontier.Frontier, rg *reversegraph.Graph) error {
	var qtp record.TierPosition
	var qval record.Value
	if entry.Source == fr.SelfSource() {
		qtp = record.TierPosition{Tier: t, Position: entry.Position}
		qval = arr.Get(entry.Position).Value()
	} else {
		c := children[entry.Source]
		qtp = record.TierPosition{Tier: c.Tier, Position: entry.Position}
		qval = c.Records[entry.Position].Value()
	}

	var parents []record.Position
	var err error
	if w.caps.HasCanonicalParents {
		parents, err = w.parentsOf(t, qtp, rg)
	} else if entry.Source == fr.SelfSource() {
		parents = dedupePositions(rg.PopParentsOf(qtp))
	} else {
		parents, err = w.parentsOf(t, qtp, rg)
	}
	if err != nil {
		return err
	}

	next := r + 1
	for _, p := range parents {
		switch qval {
		case record.Lose:
			if arr.CompareUpdate(p, record.NewRecord(record.Win, next)) {
				if err := fr.Add(p, next, fr.SelfSource()); err != nil {
					return err
				}
			}
		case record.Win, record.Tie:
			if qval == record.Tie {
				arr.MarkTieSeen(p)
			}
			if arr.DecrementCounter(p) == 0 {
				verdict := record.Lose
				if arr.TieSeen(p) {
					verdict = record.Tie
				}
				if arr.CompareUpdate(p, record.NewRecord(verdict, next)) {
					if err := fr.Add(p, next, fr.SelfSource()); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// finalize implements §4.E.2 Phase 3's residual sweep (counter-zero
// positions that never got pushed back through the frontier, plus any
// still-undecided positions become draw) and populates the sidecar.
func (w *Worker) finalize(tierSize record.Position, arr *tierarray.Array, sidecar *analysis.Sidecar) {
	for p := record.Position(0); p < tierSize; p++ {
		rec := arr.Get(p)
		if rec.Value() == record.Undecided && arr.Counter(p) <= 0 {
			verdict := record.Lose
			if arr.TieSeen(p) {
				verdict = record.Tie
			}
			arr.Set(p, record.NewRecord(verdict, 0))
			rec = arr.Get(p)
		} else if rec.Value() == record.Undecided {
			arr.Set(p, record.NewRecord(record.Draw, 0))
			rec = arr.Get(p)
		}
		sidecar.Observe(rec)
	}
}

// solveFrontierLess implements §4.E.1's alternative strategy: no explicit
// frontier, rescanning the record array at each remoteness round to
// rediscover newly-settled positions. Requires native canonical parents.
func (w *Worker) solveFrontierLess(t record.Tier, tierSize record.Position, children []ChildTier, arr *tierarray.Array, sidecar *analysis.Sidecar, opts Options) error {
	gate := syncutil.NewGate(opts.gateWidth())

	var grp syncutil.Group
	for p := record.Position(0); p < tierSize; p++ {
		p := p
		gate.Start()
		grp.Go(func() error {
			defer gate.Done()
			return w.initPosition(t, p, arr, noopFrontier(), nil)
		})
	}
	if err := grp.Err(); err != nil {
		return err
	}

	// Seed settlement from this tier's own primitives (initPosition already
	// wrote their records into arr; the frontier-less path tracks
	// newly-settled positions via this map instead of a frontier.Frontier).
	settled := map[record.Position]record.Remoteness{}
	for p := record.Position(0); p < tierSize; p++ {
		if arr.Get(p).Value() != record.Undecided {
			settled[p] = 0
		}
	}

	// Round 0: resolve from already-solved children directly (they all
	// count as remoteness-0 sources to this tier's first round, mirroring
	// the frontier strategy's Phase 1 step 3 without an explicit queue).
	for _, c := range children {
		for q, rec := range c.Records {
			if rec.Value() == record.Undecided {
				continue
			}
			qtp := record.TierPosition{Tier: c.Tier, Position: record.Position(q)}
			parents, err := w.parentsOf(t, qtp, nil)
			if err != nil {
				return err
			}
			if err := w.applyUpdate(arr, parents, rec.Value(), 0, settled); err != nil {
				return err
			}
		}
	}

	for r := record.Remoteness(0); r <= record.MaxRemoteness; r++ {
		round := settled
		settled = map[record.Position]record.Remoteness{}
		if len(round) == 0 {
			continue
		}
		progressed := false
		for p, rr := range round {
			if rr != r {
				continue
			}
			progressed = true
			tp := record.TierPosition{Tier: t, Position: p}
			parents, err := w.parentsOf(t, tp, nil)
			if err != nil {
				return err
			}
			qval := arr.Get(p).Value()
			if err := w.applyUpdate(arr, parents, qval, r, settled); err != nil {
				return err
			}
		}
		if !progressed && len(settled) == 0 {
			break
		}
	}

	w.finalize(tierSize, arr, sidecar)
	return nil
}

// applyUpdate is solveFrontierLess's inlined equivalent of propagateEntry,
// recording newly-settled positions into next instead of pushing a
// frontier.Entry.
func (w *Worker) applyUpdate(arr *tierarray.Array, parents []record.Position, qval record.Value, r record.Remoteness, next map[record.Position]record.Remoteness) error {
	nextR := r + 1
	for _, p := range parents {
		switch qval {
		case record.Lose:
			if arr.CompareUpdate(p, record.NewRecord(record.Win, nextR)) {
				next[p] = nextR
			}
		case record.Win, record.Tie:
			if qval == record.Tie {
				arr.MarkTieSeen(p)
			}
			if arr.DecrementCounter(p) == 0 {
				verdict := record.Lose
				if arr.TieSeen(p) {
					verdict = record.Tie
				}
				if arr.CompareUpdate(p, record.NewRecord(verdict, nextR)) {
					next[p] = nextR
				}
			}
		}
	}
	return nil
}

// noopFrontier returns a Frontier wide enough for initPosition's Phase-1
// primitive push in the frontier-less path, where the pushes are simply
// discarded (frontier-less tracks settlement via the settled map instead).
func noopFrontier() *frontier.Frontier {
	return frontier.New(0, 1)
}
