// Package analysis implements the §3.1 analysis sidecar: a small,
// JSON-encoded, per-tier summary written by the worker's Phase 3 finalize as
// a side effect of solving. Nothing in this module reads the sidecar back;
// it exists purely as output for the (out-of-scope) analysis collaborator.
//
// Grounded on the teacher's preference for a human-diffable sidecar format
// next to an opaque binary store (pkg/blobserver/blobpacked keeps a JSON
// manifest describing a pack file's contents rather than re-deriving it from
// the pack's own binary layout).
package analysis

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"tiersolve.dev/pkg/record"
)

// GzipThreshold is the encoded-size cutoff above which Save gzips the file.
const GzipThreshold = 4096

// Sidecar is the per-tier aggregate counters the worker accumulates while
// solving, per §3.1.
type Sidecar struct {
	Tier               record.Tier `json:"tier"`
	PositionsVisited   int64       `json:"positions_visited"`
	WinCount           int64       `json:"win_count"`
	LoseCount          int64       `json:"lose_count"`
	TieCount           int64       `json:"tie_count"`
	DrawCount          int64       `json:"draw_count"`
	PrimitiveCount     int64       `json:"primitive_count"`
	RemotenessHistogram []uint64   `json:"remoteness_histogram"`
}

// New returns a zeroed Sidecar for tier t, its histogram sized to cover
// record.MaxRemoteness+1 buckets.
func New(t record.Tier) *Sidecar {
	return &Sidecar{Tier: t, RemotenessHistogram: make([]uint64, record.MaxRemoteness+1)}
}

// Observe folds one position's final record into the sidecar's counters.
func (s *Sidecar) Observe(r record.Record) {
	s.PositionsVisited++
	switch r.Value() {
	case record.Win:
		s.WinCount++
	case record.Lose:
		s.LoseCount++
	case record.Tie:
		s.TieCount++
	case record.Draw:
		s.DrawCount++
	}
	if int(r.Remoteness()) < len(s.RemotenessHistogram) {
		s.RemotenessHistogram[r.Remoteness()]++
	}
}

// ObservePrimitive records a primitive (terminal) position in addition to
// whatever Observe already counted for its resolved value.
func (s *Sidecar) ObservePrimitive() {
	s.PrimitiveCount++
}

// Path returns the sidecar path for tierName per §3.1's path convention.
func Path(dataRoot, gameName, variantID, tierName string) string {
	return filepath.Join(dataRoot, gameName, variantID, "analysis", tierName+".json")
}

// Save JSON-encodes the sidecar to path, creating parent directories as
// needed and gzip-compressing the body when it exceeds GzipThreshold.
func (s *Sidecar) Save(path string) error {
	body, err := json.Marshal(s)
	if err != nil {
		return record.New(record.IOError, "analysis: marshal sidecar", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return record.New(record.IOError, "analysis: create analysis dir", err)
	}
	if len(body) > GzipThreshold {
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write(body); err != nil {
			return record.New(record.IOError, "analysis: gzip sidecar", err)
		}
		if err := gw.Close(); err != nil {
			return record.New(record.IOError, "analysis: gzip close", err)
		}
		body = buf.Bytes()
		path += ".gz"
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return record.New(record.IOError, "analysis: write sidecar", err)
	}
	return nil
}

// Load reads a sidecar from path (or path+".gz"), transparently
// decompressing if gzipped.
func Load(path string) (*Sidecar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if gzData, gzErr := os.ReadFile(path + ".gz"); gzErr == nil {
			data, err = gzData, nil
			path += ".gz"
		} else {
			return nil, err
		}
	}
	if filepath.Ext(path) == ".gz" {
		gr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, record.New(record.IOError, "analysis: gzip reader", err)
		}
		defer gr.Close()
		data, err = io.ReadAll(gr)
		if err != nil {
			return nil, record.New(record.IOError, "analysis: gzip read", err)
		}
	}
	var s Sidecar
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, record.New(record.IOError, "analysis: unmarshal sidecar", err)
	}
	return &s, nil
}
