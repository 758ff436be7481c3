// Package gameapi declares the capability interface the tier solver core
// expects from its external collaborator: the game-specific move generator
// and primitive oracle that §1 places out of scope for this module.
//
// Grounded on the teacher's function-pointer-as-field pattern for optional
// storage capabilities (pkg/blobserver/interface.go's optional
// BlobStreamer/Generationer/MaxEnumerateConfig interfaces, each probed with
// a type assertion rather than a nil function-pointer check) — here
// generalized into a single capability struct with explicit Has* booleans
// populated once at registration, per §9's "optional methods captured by
// Option<Fn…> so the manager can branch on availability without null
// checks."
package gameapi

import "tiersolve.dev/pkg/record"

// Game is the mandatory subset of the Game API every tier needs solved.
type Game interface {
	// Name identifies the game for path construction (§6); it need not be
	// unique across variants, only across games.
	Name() string

	// TierSize returns the number of positions in tier t.
	TierSize(t record.Tier) (record.Position, error)

	// TierName returns a path-safe name for t (ASCII, <= 63 chars, no path
	// separators), or ("", false) to fall back to the decimal tier id per
	// §9's decision that the decimal form is stable across runs.
	TierName(t record.Tier) (string, bool)

	// ChildTiers returns every canonical child tier of t; the manager uses
	// this to build the tier graph and assert it is a DAG.
	ChildTiers(t record.Tier) ([]record.Tier, error)

	// IsLegal reports whether p is a legal position of tier t.
	IsLegal(tp record.TierPosition) (bool, error)

	// Primitive returns the terminal value of tp if it is a primitive
	// (terminal) position, or (record.Undecided, false) otherwise.
	Primitive(tp record.TierPosition) (record.Value, bool, error)

	// GenerateMoves returns every legal move out of tp. Only called for
	// legal, non-primitive positions.
	GenerateMoves(tp record.TierPosition) ([]record.Move, error)

	// DoMove applies m to tp and returns the resulting position, which may
	// lie in the same tier or a child tier.
	DoMove(tp record.TierPosition, m record.Move) (record.TierPosition, error)

	// Canonicalize maps tp to its canonical-position representative within
	// its (already canonical) tier.
	Canonicalize(tp record.TierPosition) (record.TierPosition, error)

	// CanonicalTier maps t to its canonical tier. When tier symmetry is
	// disabled (Options.TierSymmetry = false), the manager substitutes the
	// identity map instead of calling this.
	CanonicalTier(t record.Tier) (record.Tier, error)
}

// CanonicalParents is an optional capability: given a canonical child
// position in tier "in", return its canonical parent positions in tier
// "of". When absent, the worker builds a reverse graph instead (§4.D).
type CanonicalParents interface {
	CanonicalParents(child record.TierPosition, of record.Tier) ([]record.TierPosition, error)
}

// CanonicalChildren is an optional capability used to size a position's
// undecided-children counter (§4.E.4) without enumerating moves by hand.
type CanonicalChildren interface {
	CanonicalChildren(tp record.TierPosition) ([]record.TierPosition, error)
}

// PositionSymmetry is an optional capability mapping a position into its
// representative within a cross-tier symmetric class (§4.H step 1). When
// absent, or when Options.PositionSymmetry is false, the identity map is
// used.
type PositionSymmetry interface {
	PositionInSymmetricTier(tp record.TierPosition, symmetric record.Tier) (record.TierPosition, error)
}

// Capabilities reflects a Game value once at registration time into a
// struct of typed, always-callable optional hooks, each either the game's
// own implementation or the identity/error fallback appropriate for the
// configured options. This is what lets pkg/worker and pkg/probe call
// c.CanonicalParents(...) unconditionally instead of branching on a type
// assertion at every call site.
type Capabilities struct {
	Game

	HasCanonicalParents  bool
	HasCanonicalChildren bool
	HasPositionSymmetry  bool

	canonicalParents  func(child record.TierPosition, of record.Tier) ([]record.TierPosition, error)
	canonicalChildren func(tp record.TierPosition) ([]record.TierPosition, error)
	positionSymmetry  func(tp record.TierPosition, symmetric record.Tier) (record.TierPosition, error)
}

// Options gates which symmetry hooks are consulted, per §6's "when a
// symmetry option is off, the corresponding Game-API hook is replaced by
// the identity map."
type Options struct {
	PositionSymmetry bool
	TierSymmetry     bool
}

// Build reflects g's optional interfaces into a Capabilities value honoring
// opts.
func Build(g Game, opts Options) *Capabilities {
	c := &Capabilities{Game: g}

	if cp, ok := g.(CanonicalParents); ok {
		c.HasCanonicalParents = true
		c.canonicalParents = cp.CanonicalParents
	}
	if cc, ok := g.(CanonicalChildren); ok {
		c.HasCanonicalChildren = true
		c.canonicalChildren = cc.CanonicalChildren
	}
	if ps, ok := g.(PositionSymmetry); ok && opts.PositionSymmetry {
		c.HasPositionSymmetry = true
		c.positionSymmetry = ps.PositionInSymmetricTier
	} else {
		c.positionSymmetry = func(tp record.TierPosition, _ record.Tier) (record.TierPosition, error) {
			return tp, nil
		}
	}

	if !opts.TierSymmetry {
		identity := g
		c.Game = tierSymmetryOff{identity}
	}
	return c
}

// CanonicalParents calls the game's native implementation; callers must
// first check HasCanonicalParents.
func (c *Capabilities) CanonicalParents(child record.TierPosition, of record.Tier) ([]record.TierPosition, error) {
	return c.canonicalParents(child, of)
}

// CanonicalChildren calls the game's native implementation; callers must
// first check HasCanonicalChildren.
func (c *Capabilities) CanonicalChildren(tp record.TierPosition) ([]record.TierPosition, error) {
	return c.canonicalChildren(tp)
}

// PositionInSymmetricTier always succeeds: it is either the game's own
// implementation or the identity map, resolved once in Build.
func (c *Capabilities) PositionInSymmetricTier(tp record.TierPosition, symmetric record.Tier) (record.TierPosition, error) {
	return c.positionSymmetry(tp, symmetric)
}

// tierSymmetryOff wraps a Game so CanonicalTier is the identity map,
// implementing the Options.TierSymmetry = false override.
type tierSymmetryOff struct {
	Game
}

func (tierSymmetryOff) CanonicalTier(t record.Tier) (record.Tier, error) {
	return t, nil
}

// registry lets a process-local binary (the CLI, primarily) look up a Game
// implementation by name without every caller importing every game package,
// mirroring the kvstore backend registry's "name string -> constructor"
// shape.
var registry = map[string]Game{}

// Register adds a Game implementation under name, for lookup by the CLI's
// solve-all/probe/status subcommands. Panics on duplicate registration.
func Register(name string, g Game) {
	if name == "" || g == nil {
		panic("gameapi: empty name or nil Game")
	}
	if _, dup := registry[name]; dup {
		panic("gameapi: duplicate registration of " + name)
	}
	registry[name] = g
}

// Lookup returns the Game registered under name, if any.
func Lookup(name string) (Game, bool) {
	g, ok := registry[name]
	return g, ok
}
