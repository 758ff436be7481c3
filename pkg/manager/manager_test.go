package manager

import (
	"context"
	"encoding/binary"
	"testing"

	"tiersolve.dev/pkg/crf"
	"tiersolve.dev/pkg/database"
	"tiersolve.dev/pkg/gameapi"
	"tiersolve.dev/pkg/record"
)

// pileGame mirrors the worker package's single-pile countdown test game:
// tier t has one position, moves take 1 or 2 stones, tier 0 is primitive.
type pileGame struct{}

func (pileGame) Name() string                                    { return "pile" }
func (pileGame) TierSize(t record.Tier) (record.Position, error) { return 1, nil }
func (pileGame) TierName(t record.Tier) (string, bool)           { return "", false }

func (pileGame) ChildTiers(t record.Tier) ([]record.Tier, error) {
	switch {
	case t == 0:
		return nil, nil
	case t == 1:
		return []record.Tier{0}, nil
	default:
		return []record.Tier{t - 1, t - 2}, nil
	}
}

func (pileGame) IsLegal(tp record.TierPosition) (bool, error) { return tp.Position == 0, nil }

func (pileGame) Primitive(tp record.TierPosition) (record.Value, bool, error) {
	if tp.Tier == 0 {
		return record.Lose, true, nil
	}
	return record.Undecided, false, nil
}

func (pileGame) GenerateMoves(tp record.TierPosition) ([]record.Move, error) {
	if tp.Tier == 0 {
		return nil, nil
	}
	if tp.Tier == 1 {
		return []record.Move{1}, nil
	}
	return []record.Move{1, 2}, nil
}

func (pileGame) DoMove(tp record.TierPosition, m record.Move) (record.TierPosition, error) {
	return record.TierPosition{Tier: tp.Tier - record.Tier(m), Position: 0}, nil
}

func (pileGame) Canonicalize(tp record.TierPosition) (record.TierPosition, error) { return tp, nil }
func (pileGame) CanonicalTier(t record.Tier) (record.Tier, error)                 { return t, nil }

func (pileGame) CanonicalParents(child record.TierPosition, of record.Tier) ([]record.TierPosition, error) {
	if of >= 1 && of-1 == child.Tier {
		return []record.TierPosition{{Tier: of, Position: 0}}, nil
	}
	if of >= 2 && of-2 == child.Tier {
		return []record.TierPosition{{Tier: of, Position: 0}}, nil
	}
	return nil, nil
}

// cyclicGame declares tier 0's child as tier 1 and tier 1's child as tier 0,
// which discover must reject.
type cyclicGame struct{ pileGame }

func (cyclicGame) ChildTiers(t record.Tier) ([]record.Tier, error) {
	if t == 0 {
		return []record.Tier{1}, nil
	}
	return []record.Tier{0}, nil
}

func newTestManager(t *testing.T, g gameapi.Game) (*Manager, *database.Manager) {
	t.Helper()
	db, err := database.New(database.Config{
		DataRoot:  t.TempDir(),
		GameName:  "pile",
		VariantID: "default",
		DBName:    "db",
		BlockSize: 64,
	})
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	caps := gameapi.Build(g, gameapi.Options{PositionSymmetry: true, TierSymmetry: true})
	return New(caps, db), db
}

func loadRecords(t *testing.T, db *database.Manager, tier record.Tier) []record.Record {
	t.Helper()
	path, err := db.TierPath(database.DecimalTierName(tier))
	if err != nil {
		t.Fatalf("TierPath: %v", err)
	}
	h, err := crf.Open(path)
	if err != nil {
		t.Fatalf("crf.Open: %v", err)
	}
	defer h.Close()
	raw, err := h.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	out := make([]record.Record, len(raw)/2)
	for i := range out {
		out[i] = record.Record(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return out
}

func TestSolveDiscoversAndSolvesWholeDAG(t *testing.T) {
	m, db := newTestManager(t, pileGame{})

	statuses, err := m.Solve(context.Background(), 2, Options{Workers: 2})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if len(statuses) != 3 {
		t.Fatalf("got %d statuses, want 3 (tiers 0, 1, 2)", len(statuses))
	}
	byTier := map[record.Tier]Status{}
	for _, s := range statuses {
		byTier[s.Tier] = s
	}
	for _, tier := range []record.Tier{0, 1, 2} {
		st, ok := byTier[tier]
		if !ok {
			t.Fatalf("no status reported for tier %d", tier)
		}
		if !st.Solved || st.Err != nil || st.Skipped {
			t.Errorf("status for tier %d = %+v, want Solved=true", tier, st)
		}
	}

	tier0 := loadRecords(t, db, 0)
	if len(tier0) != 1 || tier0[0].Value() != record.Lose {
		t.Errorf("tier 0 = %v, want [Lose]", tier0)
	}
	tier1 := loadRecords(t, db, 1)
	if len(tier1) != 1 || tier1[0].Value() != record.Win || tier1[0].Remoteness() != 1 {
		t.Errorf("tier 1 = %v, want [Win(1)]", tier1)
	}
	tier2 := loadRecords(t, db, 2)
	if len(tier2) != 1 || tier2[0].Value() != record.Win || tier2[0].Remoteness() != 1 {
		t.Errorf("tier 2 = %v, want [Win(1)]", tier2)
	}
}

func TestSolveRejectsCyclicTierGraph(t *testing.T) {
	m, _ := newTestManager(t, cyclicGame{})
	if _, err := m.Solve(context.Background(), 0, Options{}); err == nil {
		t.Error("Solve should fail on a cyclic tier graph")
	}
}

func TestSolveIsIdempotentOnAlreadySolvedTiers(t *testing.T) {
	m, _ := newTestManager(t, pileGame{})
	if _, err := m.Solve(context.Background(), 1, Options{}); err != nil {
		t.Fatalf("Solve (first): %v", err)
	}
	statuses, err := m.Solve(context.Background(), 1, Options{})
	if err != nil {
		t.Fatalf("Solve (second): %v", err)
	}
	for _, s := range statuses {
		if !s.Solved {
			t.Errorf("status %+v should report Solved on a re-run against an already-solved tier", s)
		}
	}
}
