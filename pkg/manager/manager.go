// Package manager implements the §4.F tier manager: discovers the tier
// graph via the Game API, tracks in-degree (unsolved canonical children) per
// tier, and dispatches ready tiers to worker.Worker, optionally solving
// independent tiers concurrently.
//
// Grounded on golang.org/x/sync/errgroup's role in the pack as the
// concurrency primitive for bounded, cancelable fan-out (mirroring how
// icza/bsc-erigon-style pipelines and perkeep's own sync points use an
// errgroup.Group to fan out and propagate the first fatal error), in place
// of the single-goroutine dispatch loop a smaller tool would use.
package manager

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"tiersolve.dev/pkg/crf"
	"tiersolve.dev/pkg/database"
	"tiersolve.dev/pkg/gameapi"
	"tiersolve.dev/pkg/record"
	"tiersolve.dev/pkg/worker"
)

// Options configures one end-to-end Solve run.
type Options struct {
	Worker  worker.Options
	Workers int // max tiers solved concurrently; 0 => 1
}

// Status summarizes one tier's outcome after Solve returns.
type Status struct {
	Tier    record.Tier
	Name    string
	Solved  bool
	Skipped bool // memory_error: reported, not propagated
	Err     error
}

// Manager discovers and dispatches the tier graph rooted at one starting
// tier of a Game API implementation.
type Manager struct {
	caps *gameapi.Capabilities
	db   *database.Manager
	w    *worker.Worker

	mu       sync.Mutex
	statuses map[record.Tier]*Status
	wopts    worker.Options
}

// New constructs a Manager over caps, persisting through db.
func New(caps *gameapi.Capabilities, db *database.Manager) *Manager {
	return &Manager{
		caps:     caps,
		db:       db,
		w:        worker.New(caps, db),
		statuses: map[record.Tier]*Status{},
	}
}

// Solve discovers the tier DAG reachable from root and solves every
// canonical tier in dependency order, up to opts.Workers concurrently.
func (m *Manager) Solve(ctx context.Context, root record.Tier, opts Options) ([]Status, error) {
	children, parents, order, err := m.discover(root)
	if err != nil {
		return nil, err
	}

	inDegree := make(map[record.Tier]int, len(order))
	for _, t := range order {
		inDegree[t] = len(children[t])
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	m.wopts = opts.Worker

	ready := make(chan record.Tier, len(order))
	var readyMu sync.Mutex
	pushIfReady := func(t record.Tier) {
		readyMu.Lock()
		defer readyMu.Unlock()
		if inDegree[t] == 0 {
			ready <- t
		}
	}
	for _, t := range order {
		pushIfReady(t)
	}

	remaining := int64(len(order))
	var remainingMu sync.Mutex

	grp, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		grp.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case t, ok := <-ready:
					if !ok {
						return nil
					}
					if err := m.solveOne(t, children, parents, inDegree, &readyMu, ready); err != nil {
						return err
					}
					remainingMu.Lock()
					remaining--
					done := remaining <= 0
					remainingMu.Unlock()
					if done {
						close(ready)
						return nil
					}
				}
			}
		})
	}
	if err := grp.Wait(); err != nil {
		return m.snapshot(order), err
	}
	return m.snapshot(order), nil
}

func (m *Manager) snapshot(order []record.Tier) []Status {
	out := make([]Status, 0, len(order))
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range order {
		if st, ok := m.statuses[t]; ok {
			out = append(out, *st)
		}
	}
	return out
}

// solveOne loads t's already-solved children from disk, invokes the worker,
// and on success decrements every parent's in-degree, pushing any that reach
// zero back onto the ready channel.
func (m *Manager) solveOne(t record.Tier, children, parents map[record.Tier][]record.Tier, inDegree map[record.Tier]int, readyMu *sync.Mutex, ready chan<- record.Tier) error {
	name, ok := m.caps.TierName(t)
	if !ok {
		name = database.DecimalTierName(t)
	}

	loaded := make([]worker.ChildTier, 0, len(children[t]))
	for _, ct := range children[t] {
		recs, err := m.loadSolvedTier(ct)
		if err != nil {
			m.recordStatus(Status{Tier: t, Name: name, Err: err})
			return record.NewAt(record.GameAPIError, ct, 0, "manager: load child tier", err)
		}
		loaded = append(loaded, worker.ChildTier{Tier: ct, Records: recs})
	}

	_, err := m.w.Solve(t, loaded, m.workerOpts())
	if err != nil {
		if record.KindOf(err) == record.MemoryError {
			m.recordStatus(Status{Tier: t, Name: name, Skipped: true, Err: err})
			return nil
		}
		m.recordStatus(Status{Tier: t, Name: name, Err: err})
		return err
	}
	m.recordStatus(Status{Tier: t, Name: name, Solved: true})

	readyMu.Lock()
	defer readyMu.Unlock()
	for _, p := range parents[t] {
		inDegree[p]--
		if inDegree[p] == 0 {
			ready <- p
		}
	}
	return nil
}

func (m *Manager) workerOpts() worker.Options {
	return m.wopts
}

func (m *Manager) recordStatus(s Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[s.Tier] = &s
}

// loadSolvedTier decodes a child tier's CRF into a plain []record.Record.
func (m *Manager) loadSolvedTier(t record.Tier) ([]record.Record, error) {
	name, ok := m.caps.TierName(t)
	if !ok {
		name = database.DecimalTierName(t)
	}
	path, err := m.db.TierPath(name)
	if err != nil {
		return nil, err
	}
	h, err := crf.Open(path)
	if err != nil {
		return nil, err
	}
	defer h.Close()
	raw, err := h.ReadAll()
	if err != nil {
		return nil, err
	}
	out := make([]record.Record, len(raw)/2)
	for i := range out {
		out[i] = record.Record(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return out, nil
}

// discover builds the canonical tier DAG reachable from root via
// caps.ChildTiers, asserting it is acyclic and returning each tier's
// canonical children, parents, and a topological order (leaves first).
func (m *Manager) discover(root record.Tier) (children, parents map[record.Tier][]record.Tier, order []record.Tier, err error) {
	children = map[record.Tier][]record.Tier{}
	parents = map[record.Tier][]record.Tier{}
	visited := map[record.Tier]bool{}
	inStack := map[record.Tier]bool{}
	order = nil

	var visit func(t record.Tier) error
	visit = func(t record.Tier) error {
		canon, err := m.caps.CanonicalTier(t)
		if err != nil {
			return record.NewAt(record.GameAPIError, t, 0, "manager: CanonicalTier", err)
		}
		t = canon
		if visited[t] {
			return nil
		}
		if inStack[t] {
			return record.New(record.GameAPIError, fmt.Sprintf("manager: tier graph has a cycle at tier %d", t), nil)
		}
		inStack[t] = true

		kids, err := m.caps.ChildTiers(t)
		if err != nil {
			return record.NewAt(record.GameAPIError, t, 0, "manager: ChildTiers", err)
		}
		seen := map[record.Tier]bool{}
		for _, kid := range kids {
			kc, err := m.caps.CanonicalTier(kid)
			if err != nil {
				return record.NewAt(record.GameAPIError, kid, 0, "manager: CanonicalTier", err)
			}
			if kc == t || seen[kc] {
				continue
			}
			seen[kc] = true
			children[t] = append(children[t], kc)
			parents[kc] = append(parents[kc], t)
			if err := visit(kc); err != nil {
				return err
			}
		}

		inStack[t] = false
		visited[t] = true
		order = append(order, t)
		return nil
	}

	if err := visit(root); err != nil {
		return nil, nil, nil, err
	}
	return children, parents, order, nil
}
