// Package config provides the solver's configuration object: a small JSON
// map type with Required/Optional accessors and "unknown key" validation, in
// the style of the teacher's pkg/jsonconfig, plus a typed Options struct
// that FromObj builds from one.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Obj is a JSON configuration map, with the same accessor discipline as the
// teacher's jsonconfig.Obj: each accessor records which keys it consumed, so
// Validate can flag any left over as unknown.
type Obj map[string]interface{}

// ReadFile loads a JSON object from path.
func ReadFile(path string) (Obj, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return Obj(raw), nil
}

func (o Obj) noteKnownKey(key string) {
	kk, ok := o["_knownkeys"]
	if !ok {
		kk = map[string]bool{}
		o["_knownkeys"] = kk
	}
	kk.(map[string]bool)[key] = true
}

func (o Obj) appendError(err error) {
	ei, ok := o["_errors"]
	if ok {
		o["_errors"] = append(ei.([]error), err)
	} else {
		o["_errors"] = []error{err}
	}
}

func (o Obj) RequiredString(key string) string { return o.string(key, nil) }
func (o Obj) OptionalString(key, def string) string {
	return o.string(key, &def)
}

func (o Obj) string(key string, def *string) string {
	o.noteKnownKey(key)
	v, ok := o[key]
	if !ok {
		if def != nil {
			return *def
		}
		o.appendError(fmt.Errorf("missing required config key %q (string)", key))
		return ""
	}
	s, ok := v.(string)
	if !ok {
		o.appendError(fmt.Errorf("config key %q: expected string, got %T", key, v))
		return ""
	}
	return s
}

func (o Obj) RequiredBool(key string) bool          { return o.bool(key, nil) }
func (o Obj) OptionalBool(key string, def bool) bool { return o.bool(key, &def) }

func (o Obj) bool(key string, def *bool) bool {
	o.noteKnownKey(key)
	v, ok := o[key]
	if !ok {
		if def != nil {
			return *def
		}
		o.appendError(fmt.Errorf("missing required config key %q (bool)", key))
		return false
	}
	b, ok := v.(bool)
	if !ok {
		o.appendError(fmt.Errorf("config key %q: expected bool, got %T", key, v))
		return false
	}
	return b
}

func (o Obj) RequiredInt(key string) int          { return o.int(key, nil) }
func (o Obj) OptionalInt(key string, def int) int { return o.int(key, &def) }

func (o Obj) int(key string, def *int) int {
	o.noteKnownKey(key)
	v, ok := o[key]
	if !ok {
		if def != nil {
			return *def
		}
		o.appendError(fmt.Errorf("missing required config key %q (int)", key))
		return 0
	}
	f, ok := v.(float64)
	if !ok {
		o.appendError(fmt.Errorf("config key %q: expected number, got %T", key, v))
		return 0
	}
	return int(f)
}

func (o Obj) RequiredInt64(key string) int64          { return o.int64(key, nil) }
func (o Obj) OptionalInt64(key string, def int64) int64 { return o.int64(key, &def) }

func (o Obj) int64(key string, def *int64) int64 {
	o.noteKnownKey(key)
	v, ok := o[key]
	if !ok {
		if def != nil {
			return *def
		}
		o.appendError(fmt.Errorf("missing required config key %q (int64)", key))
		return 0
	}
	f, ok := v.(float64)
	if !ok {
		o.appendError(fmt.Errorf("config key %q: expected number, got %T", key, v))
		return 0
	}
	return int64(f)
}

// Validate reports unknown keys (any key not consumed by an accessor above
// and not prefixed with "_") plus any accumulated accessor errors.
func (o Obj) Validate() error {
	known, _ := o["_knownkeys"].(map[string]bool)
	for k := range o {
		if known[k] || strings.HasPrefix(k, "_") {
			continue
		}
		o.appendError(fmt.Errorf("unknown config key %q", k))
	}
	ei, ok := o["_errors"]
	if !ok {
		return nil
	}
	errs := ei.([]error)
	if len(errs) == 1 {
		return errs[0]
	}
	strs := make([]string, len(errs))
	for i, e := range errs {
		strs[i] = e.Error()
	}
	return fmt.Errorf("multiple config errors: %s", strings.Join(strs, "; "))
}

// Verbosity is the §6 `verbose: 0|1|2` logging level.
type Verbosity int

const (
	Quiet Verbosity = iota
	Normal
	Debug
)

// Options is the recognized set of options supplied at solver init (§6),
// plus the expansion's ambient fields (§6 "Expansion") needed to run a
// complete repository rather than just the algorithm core.
type Options struct {
	Force            bool
	Verbose          Verbosity
	MemLimit         int64 // bytes; 0 means "90% of physical RAM"
	PositionSymmetry bool
	TierSymmetry     bool
	UseRetrograde    bool

	DataRoot       string
	GameName       string
	VariantID      string
	DBName         string
	Concurrency    int
	Workers        int
	StatusStore    string
	CodecBlockSize int
}

// DefaultCodecBlockSize is the §3/§6 default uncompressed block size (1 MiB).
const DefaultCodecBlockSize = 1 << 20

// Default returns the zero-value-safe defaults named throughout the spec.
func Default() Options {
	return Options{
		PositionSymmetry: true,
		TierSymmetry:     true,
		UseRetrograde:    true,
		DBName:           "db",
		Concurrency:      0, // resolved to GOMAXPROCS by callers
		Workers:          1,
		StatusStore:      "fs",
		CodecBlockSize:   DefaultCodecBlockSize,
	}
}

// FromObj builds Options from a parsed Obj, applying Default() for most
// fields whose key is entirely absent so partial configs are legal. Two
// absent keys differ from Default(): verbose becomes Normal and variant_id
// becomes "default".
func FromObj(o Obj) (Options, error) {
	d := Default()
	opts := Options{
		Force:            o.OptionalBool("force", false),
		Verbose:          Verbosity(o.OptionalInt("verbose", int(Normal))),
		MemLimit:         o.OptionalInt64("memlimit", 0),
		PositionSymmetry: o.OptionalBool("position_symmetry", d.PositionSymmetry),
		TierSymmetry:     o.OptionalBool("tier_symmetry", d.TierSymmetry),
		UseRetrograde:    o.OptionalBool("use_retrograde", d.UseRetrograde),
		DataRoot:         o.RequiredString("data_root"),
		GameName:         o.RequiredString("game_name"),
		VariantID:        o.OptionalString("variant_id", "default"),
		DBName:           o.OptionalString("db_name", d.DBName),
		Concurrency:      o.OptionalInt("concurrency", d.Concurrency),
		Workers:          o.OptionalInt("workers", d.Workers),
		StatusStore:      o.OptionalString("status_store", d.StatusStore),
		CodecBlockSize:   o.OptionalInt("codec_block_size", d.CodecBlockSize),
	}
	if err := o.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}
