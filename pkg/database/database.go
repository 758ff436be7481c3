// Package database implements the §4.G database manager: a thin dispatcher
// gluing a tier's in-memory record array (while it's being solved) and its
// on-disk CRF (once solved) behind one interface, plus a tier-status cache.
//
// Grounded on pkg/blobserver/diskpacked.go's storage-root layout convention
// (one directory per logical store, contents named by a deterministic key)
// and on pkg/sorted's role as the pluggable index sitting next to blob
// storage — here, the status cache sitting next to the CRF tree.
package database

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"tiersolve.dev/pkg/crf"
	"tiersolve.dev/pkg/kvstore"
	_ "tiersolve.dev/pkg/kvstore/fskv"
	"tiersolve.dev/pkg/record"
	"tiersolve.dev/pkg/tierarray"
)

// Ext is the file extension CRFs are written with.
const Ext = ".adb.xz"

var tierNameRx = regexp.MustCompile(`^[A-Za-z0-9_.\-]{1,63}$`)

// Manager glues tier record arrays and CRFs behind solving_tier_*,
// get/set_value/remoteness, and probe ops for one (game, variant, db).
type Manager struct {
	dataRoot  string
	gameName  string
	variantID string
	dbName    string
	blockSize int

	status kvstore.Store

	mu      sync.Mutex
	solving *solvingTier
}

type solvingTier struct {
	tier   record.Tier
	name   string
	arr    *tierarray.Array
}

// Config configures a Manager.
type Config struct {
	DataRoot        string
	GameName        string
	VariantID       string
	DBName          string
	BlockSize       int
	StatusStore     string // kvstore backend name, "" => "fs"
	StatusStorePath string // "" => <db dir>/status.kv
}

// New constructs a Manager, opening (and creating if absent) its
// tier-status cache.
func New(cfg Config) (*Manager, error) {
	if cfg.StatusStore == "" {
		cfg.StatusStore = "fs"
	}
	m := &Manager{
		dataRoot:  cfg.DataRoot,
		gameName:  cfg.GameName,
		variantID: cfg.VariantID,
		dbName:    cfg.DBName,
		blockSize: cfg.BlockSize,
	}
	dir := m.dbDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, record.New(record.IOError, "database: create db dir", err)
	}
	statusPath := cfg.StatusStorePath
	if statusPath == "" {
		statusPath = filepath.Join(dir, "status.kv")
	}
	store, err := kvstore.Open(cfg.StatusStore, kvstore.Config{Path: statusPath})
	if err != nil {
		return nil, record.New(record.IOError, "database: open status store", err)
	}
	m.status = store
	return m, nil
}

func (m *Manager) dbDir() string {
	return filepath.Join(m.dataRoot, m.gameName, m.variantID, m.dbName)
}

// TierPath returns the CRF path for a named tier, applying §6's path
// convention.
func (m *Manager) TierPath(tierName string) (string, error) {
	if !tierNameRx.MatchString(tierName) {
		return "", record.New(record.ConfigError, fmt.Sprintf("database: invalid tier name %q", tierName), nil)
	}
	return filepath.Join(m.dbDir(), tierName+Ext), nil
}

// DecimalTierName returns the fallback tier name used when the Game API
// supplies none: the tier id in decimal, stable because it derives directly
// from the Game API's own deterministic tier enumeration (§9).
func DecimalTierName(t record.Tier) string {
	return fmt.Sprintf("%d", int64(t))
}

// Status reports a tier's on-disk solved/missing/corrupted state, through
// the status cache: a hit avoids re-parsing the CRF footer on every call.
func (m *Manager) Status(tierName string) (crf.State, error) {
	if v, err := m.status.Get(tierName); err == nil {
		return stateFromString(v), nil
	} else if err != kvstore.ErrNotFound {
		return crf.CheckError, err
	}
	path, err := m.TierPath(tierName)
	if err != nil {
		return crf.CheckError, err
	}
	st := crf.Status(path)
	m.status.Set(tierName, st.String())
	return st, nil
}

// InvalidateStatus clears the cached status for a tier, forcing the next
// Status call to re-check the file (used after a fresh Flush).
func (m *Manager) InvalidateStatus(tierName string) error {
	return m.status.Delete(tierName)
}

func stateFromString(s string) crf.State {
	switch s {
	case "solved":
		return crf.Solved
	case "corrupted":
		return crf.Corrupted
	case "check_error":
		return crf.CheckError
	default:
		return crf.Missing
	}
}

// SolvingTierCreate allocates the in-memory record array for a new
// solving tier, enforcing that at most one solving tier is resident in
// memory at a time (§4.G).
func (m *Manager) SolvingTierCreate(t record.Tier, name string, size record.Position) (*tierarray.Array, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.solving != nil {
		return nil, record.New(record.MemoryError, fmt.Sprintf("database: tier %s already solving, cannot also solve %s", m.solving.name, name), nil)
	}
	arr := tierarray.New(size)
	m.solving = &solvingTier{tier: t, name: name, arr: arr}
	return arr, nil
}

// SolvingTierFree discards the in-memory record array without flushing it,
// e.g. on abort.
func (m *Manager) SolvingTierFree() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.solving = nil
}

// SolvingTierFlush writes the solving tier's record array out as a CRF and
// releases the in-memory array, per the "build first, persist, then free"
// sequencing in §2.
func (m *Manager) SolvingTierFlush() error {
	m.mu.Lock()
	st := m.solving
	m.mu.Unlock()
	if st == nil {
		return record.New(record.ConfigError, "database: no solving tier to flush", nil)
	}
	path, err := m.TierPath(st.name)
	if err != nil {
		return err
	}
	blockSize := m.blockSize
	if blockSize <= 0 {
		blockSize = 1 << 20
	}
	if err := crf.Create(path, st.arr.Records(), blockSize); err != nil {
		return err
	}
	if err := m.InvalidateStatus(st.name); err != nil {
		return record.New(record.IOError, "database: invalidate status cache", err)
	}
	m.mu.Lock()
	m.solving = nil
	m.mu.Unlock()
	return nil
}

// SetValue and SetRemoteness update the solving tier's record array
// in place, used by workers that want field-granular mutation rather than
// going through tierarray.Array directly.
func (m *Manager) SetValue(p record.Position, v record.Value) error {
	arr, err := m.solvingArray()
	if err != nil {
		return err
	}
	cur := arr.Get(p)
	arr.Set(p, record.NewRecord(v, cur.Remoteness()))
	return nil
}

func (m *Manager) SetRemoteness(p record.Position, r record.Remoteness) error {
	arr, err := m.solvingArray()
	if err != nil {
		return err
	}
	cur := arr.Get(p)
	arr.Set(p, record.NewRecord(cur.Value(), r))
	return nil
}

func (m *Manager) GetValue(p record.Position) (record.Value, error) {
	arr, err := m.solvingArray()
	if err != nil {
		return record.Undecided, err
	}
	return arr.Get(p).Value(), nil
}

func (m *Manager) GetRemoteness(p record.Position) (record.Remoteness, error) {
	arr, err := m.solvingArray()
	if err != nil {
		return 0, err
	}
	return arr.Get(p).Remoteness(), nil
}

func (m *Manager) solvingArray() (*tierarray.Array, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.solving == nil {
		return nil, record.New(record.ConfigError, "database: no solving tier", nil)
	}
	return m.solving.arr, nil
}

// Close releases the status cache.
func (m *Manager) Close() error {
	return m.status.Close()
}
