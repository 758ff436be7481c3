// Package probe implements the §4.H probe: a cached, random-access reader
// over solved CRFs, applying the canonicalization protocol ahead of every
// lookup so a caller can query any position of any (possibly non-canonical)
// tier and get back the record stored for its canonical representative.
//
// Grounded on pkg/readerutil's cached-handle-plus-window-buffer shape
// (amortizing small reads against one larger sequential read), adapted here
// from a generic blob reader into a tier-position record reader.
package probe

import (
	"fmt"

	"tiersolve.dev/pkg/crf"
	"tiersolve.dev/pkg/gameapi"
	"tiersolve.dev/pkg/record"
)

// DefaultBlocksPerBuffer is kBlocksPerBuffer from §4.H: on a cache miss, the
// probe loads this many consecutive blocks to amortize sequential access.
const DefaultBlocksPerBuffer = 2

// PathFunc resolves a tier name to its CRF path, e.g. (*database.Manager).TierPath.
type PathFunc func(tierName string) (string, error)

// TierNameFunc resolves a tier to its on-disk name, e.g. a Game's TierName
// with the §9 decimal fallback already applied.
type TierNameFunc func(t record.Tier) string

// Probe is a single-threaded, cached reader over one game's solved tiers.
// Per §4.H, probes are assumed per-thread: a Probe value must not be shared
// across goroutines without external synchronization.
type Probe struct {
	caps         *gameapi.Capabilities
	pathOf       PathFunc
	tierNameOf   TierNameFunc
	blocksPerBuf int

	tier    record.Tier
	handle  *crf.Handle
	winBuf  []byte
	winOff  int64 // uncompressed byte offset of the start of winBuf
	winLen  int
	hasTier bool
}

// Config configures a Probe.
type Config struct {
	Capabilities     *gameapi.Capabilities
	PathOf           PathFunc
	TierNameOf       TierNameFunc
	BlocksPerBuffer  int // 0 => DefaultBlocksPerBuffer
}

// New constructs a Probe. No file is opened until the first lookup.
func New(cfg Config) *Probe {
	bpb := cfg.BlocksPerBuffer
	if bpb <= 0 {
		bpb = DefaultBlocksPerBuffer
	}
	return &Probe{
		caps:         cfg.Capabilities,
		pathOf:       cfg.PathOf,
		tierNameOf:   cfg.TierNameOf,
		blocksPerBuf: bpb,
	}
}

// canonicalize applies §4.H step 1: tier-canonical map, then
// position-in-symmetric-tier, then canonical-position map, in that order.
func (p *Probe) canonicalize(tp record.TierPosition) (record.TierPosition, error) {
	canonTier, err := p.caps.CanonicalTier(tp.Tier)
	if err != nil {
		return tp, record.NewAt(record.GameAPIError, tp.Tier, tp.Position, "probe: CanonicalTier", err)
	}
	sym, err := p.caps.PositionInSymmetricTier(tp, canonTier)
	if err != nil {
		return tp, record.NewAt(record.GameAPIError, tp.Tier, tp.Position, "probe: PositionInSymmetricTier", err)
	}
	sym.Tier = canonTier
	canon, err := p.caps.Canonicalize(sym)
	if err != nil {
		return tp, record.NewAt(record.GameAPIError, tp.Tier, tp.Position, "probe: Canonicalize", err)
	}
	return canon, nil
}

// recordAt loads (canonicalizing first) the record stored for tp.
func (p *Probe) recordAt(tp record.TierPosition) (record.Record, error) {
	canon, err := p.canonicalize(tp)
	if err != nil {
		return 0, err
	}
	if !p.hasTier || canon.Tier != p.tier {
		if err := p.switchTier(canon.Tier); err != nil {
			return 0, err
		}
	}
	off := int64(canon.Position) * 2
	if off < p.winOff || off+2 > p.winOff+int64(p.winLen) {
		if err := p.fillWindow(off); err != nil {
			return 0, err
		}
	}
	i := off - p.winOff
	lo, hi := p.winBuf[i], p.winBuf[i+1]
	return record.Record(uint16(lo) | uint16(hi)<<8), nil
}

// switchTier closes the previous file handle (if any) and opens the CRF for
// the new canonical tier, clearing the window cache.
func (p *Probe) switchTier(t record.Tier) error {
	if p.hasTier {
		p.handle.Close()
		p.handle = nil
	}
	name := p.tierNameOf(t)
	path, err := p.pathOf(name)
	if err != nil {
		return err
	}
	h, err := crf.Open(path)
	if err != nil {
		return record.NewAt(record.IOError, t, 0, fmt.Sprintf("probe: open tier %s", name), err)
	}
	p.handle = h
	p.tier = t
	p.hasTier = true
	p.winLen = 0
	p.winOff = 0
	return nil
}

// fillWindow loads blocksPerBuf consecutive blocks starting at the block
// containing byte offset off, per §4.H's cache-miss policy.
func (p *Probe) fillWindow(off int64) error {
	blockSize := int64(p.handle.BlockSize())
	if blockSize <= 0 {
		blockSize = 1 << 20
	}
	startBlock := (off / blockSize) * blockSize
	length := blockSize * int64(p.blocksPerBuf)
	tierBytes := p.handle.TierSize() * 2
	if startBlock+length > tierBytes {
		length = tierBytes - startBlock
	}
	buf := make([]byte, length)
	if err := p.handle.ReadRange(startBlock, int(length), buf); err != nil {
		return err
	}
	p.winBuf = buf
	p.winOff = startBlock
	p.winLen = len(buf)
	return nil
}

// Value implements probe_value(probe, tier_pos) -> Value.
func (p *Probe) Value(tp record.TierPosition) (record.Value, error) {
	r, err := p.recordAt(tp)
	if err != nil {
		return record.Undecided, err
	}
	return r.Value(), nil
}

// Remoteness implements probe_remoteness(probe, tier_pos) -> Remoteness.
func (p *Probe) Remoteness(tp record.TierPosition) (record.Remoteness, error) {
	r, err := p.recordAt(tp)
	if err != nil {
		return 0, err
	}
	return r.Remoteness(), nil
}

// Close releases the probe's open file handle, if any.
func (p *Probe) Close() error {
	if !p.hasTier {
		return nil
	}
	err := p.handle.Close()
	p.hasTier = false
	p.handle = nil
	return err
}
