package gameapi

import (
	"testing"

	"tiersolve.dev/pkg/record"
)

// baseGame implements the mandatory Game interface only.
type baseGame struct {
	canonicalTier record.Tier
}

func (baseGame) Name() string                                       { return "base" }
func (baseGame) TierSize(t record.Tier) (record.Position, error)     { return 10, nil }
func (baseGame) TierName(t record.Tier) (string, bool)               { return "", false }
func (baseGame) ChildTiers(t record.Tier) ([]record.Tier, error)     { return nil, nil }
func (baseGame) IsLegal(tp record.TierPosition) (bool, error)        { return true, nil }
func (baseGame) Primitive(tp record.TierPosition) (record.Value, bool, error) {
	return record.Undecided, false, nil
}
func (baseGame) GenerateMoves(tp record.TierPosition) ([]record.Move, error) { return nil, nil }
func (baseGame) DoMove(tp record.TierPosition, m record.Move) (record.TierPosition, error) {
	return tp, nil
}
func (baseGame) Canonicalize(tp record.TierPosition) (record.TierPosition, error) { return tp, nil }
func (g baseGame) CanonicalTier(t record.Tier) (record.Tier, error)              { return g.canonicalTier, nil }

type fullGame struct{ baseGame }

func (fullGame) CanonicalParents(child record.TierPosition, of record.Tier) ([]record.TierPosition, error) {
	return []record.TierPosition{{Tier: of, Position: child.Position + 1}}, nil
}

func (fullGame) CanonicalChildren(tp record.TierPosition) ([]record.TierPosition, error) {
	return []record.TierPosition{{Tier: tp.Tier, Position: tp.Position + 1}}, nil
}

func (fullGame) PositionInSymmetricTier(tp record.TierPosition, symmetric record.Tier) (record.TierPosition, error) {
	return record.TierPosition{Tier: symmetric, Position: tp.Position}, nil
}

func TestBuildDetectsAllOptionalCapabilities(t *testing.T) {
	g := fullGame{baseGame{canonicalTier: 7}}
	c := Build(g, Options{PositionSymmetry: true, TierSymmetry: true})

	if !c.HasCanonicalParents || !c.HasCanonicalChildren || !c.HasPositionSymmetry {
		t.Fatalf("Build should detect all three optional capabilities: %+v", c)
	}
	parents, err := c.CanonicalParents(record.TierPosition{Tier: 1, Position: 5}, 2)
	if err != nil || len(parents) != 1 || parents[0].Position != 6 {
		t.Errorf("CanonicalParents = %v, %v", parents, err)
	}
	children, err := c.CanonicalChildren(record.TierPosition{Tier: 1, Position: 5})
	if err != nil || len(children) != 1 || children[0].Position != 6 {
		t.Errorf("CanonicalChildren = %v, %v", children, err)
	}
	sym, err := c.PositionInSymmetricTier(record.TierPosition{Tier: 1, Position: 5}, 3)
	if err != nil || sym.Tier != 3 || sym.Position != 5 {
		t.Errorf("PositionInSymmetricTier = %v, %v", sym, err)
	}
	ct, err := c.CanonicalTier(1)
	if err != nil || ct != 7 {
		t.Errorf("CanonicalTier = %v, %v, want 7", ct, err)
	}
}

func TestBuildFallsBackWhenCapabilitiesAbsent(t *testing.T) {
	g := baseGame{canonicalTier: 9}
	c := Build(g, Options{PositionSymmetry: true, TierSymmetry: true})

	if c.HasCanonicalParents || c.HasCanonicalChildren || c.HasPositionSymmetry {
		t.Fatalf("Build should find no optional capabilities on a bare Game: %+v", c)
	}
	tp := record.TierPosition{Tier: 1, Position: 5}
	sym, err := c.PositionInSymmetricTier(tp, 3)
	if err != nil || sym != tp {
		t.Errorf("PositionInSymmetricTier fallback = %v, %v, want identity", sym, err)
	}
}

func TestBuildHonorsPositionSymmetryOptionOff(t *testing.T) {
	g := fullGame{baseGame{}}
	c := Build(g, Options{PositionSymmetry: false, TierSymmetry: true})

	if c.HasPositionSymmetry {
		t.Error("PositionSymmetry option off should suppress the capability even if the game implements it")
	}
	tp := record.TierPosition{Tier: 1, Position: 5}
	sym, err := c.PositionInSymmetricTier(tp, 3)
	if err != nil || sym != tp {
		t.Errorf("PositionInSymmetricTier = %v, %v, want identity", sym, err)
	}
}

func TestBuildHonorsTierSymmetryOptionOff(t *testing.T) {
	g := fullGame{baseGame{canonicalTier: 7}}
	c := Build(g, Options{PositionSymmetry: true, TierSymmetry: false})

	ct, err := c.CanonicalTier(1)
	if err != nil || ct != 1 {
		t.Errorf("CanonicalTier with TierSymmetry off = %v, %v, want identity (1)", ct, err)
	}
}

func TestRegisterAndLookup(t *testing.T) {
	defer func() { registry = map[string]Game{} }()

	g := baseGame{}
	Register("somegame", g)
	got, ok := Lookup("somegame")
	if !ok || got != Game(g) {
		t.Errorf("Lookup(somegame) = %v, %v", got, ok)
	}
	if _, ok := Lookup("nope"); ok {
		t.Error("Lookup of unregistered name should report false")
	}
}

func TestRegisterPanicsOnDuplicate(t *testing.T) {
	defer func() { registry = map[string]Game{} }()

	Register("dupgame", baseGame{})
	defer func() {
		if recover() == nil {
			t.Error("Register should panic on duplicate name")
		}
	}()
	Register("dupgame", baseGame{})
}

func TestRegisterPanicsOnEmptyNameOrNilGame(t *testing.T) {
	defer func() { registry = map[string]Game{} }()

	func() {
		defer func() {
			if recover() == nil {
				t.Error("Register should panic on empty name")
			}
		}()
		Register("", baseGame{})
	}()
	func() {
		defer func() {
			if recover() == nil {
				t.Error("Register should panic on nil Game")
			}
		}()
		Register("nilgame", nil)
	}()
}
