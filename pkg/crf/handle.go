package crf

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sync/singleflight"

	"tiersolve.dev/pkg/record"
)

// Handle is an open CRF with its footer index memoized, so random access to
// any block is O(1) seeks plus one block decompression (§4.A).
type Handle struct {
	path   string
	f      *os.File
	footer *footer

	mu      sync.RWMutex // guards refCount only; os.File.ReadAt is itself concurrency-safe
	refCount int
}

// handleCache de-duplicates concurrent Open calls on the same path behind a
// single os.Open + footer parse, the way the teacher's
// pkg/readerutil.OpenSingle de-duplicates concurrent os.Open calls with a
// reference-counted wrapper (§4.A.2).
var (
	openGroup singleflight.Group
	cacheMu   sync.Mutex
	cache     = map[string]*Handle{}
)

// Open memoizes path's footer index behind a reference-counted Handle:
// concurrent Open calls on the same path share one *os.File and one parsed
// footer.
func Open(path string) (*Handle, error) {
	v, err, _ := openGroup.Do(path, func() (interface{}, error) {
		cacheMu.Lock()
		if h, ok := cache[path]; ok {
			h.mu.Lock()
			h.refCount++
			h.mu.Unlock()
			cacheMu.Unlock()
			return h, nil
		}
		cacheMu.Unlock()

		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, record.New(record.IOError, fmt.Sprintf("crf: open %s", path), err)
			}
			return nil, record.New(record.IOError, fmt.Sprintf("crf: open %s", path), err)
		}
		ft, err := readFooter(f)
		if err != nil {
			f.Close()
			return nil, record.New(record.CompressionError, fmt.Sprintf("crf: read footer of %s", path), err)
		}
		h := &Handle{path: path, f: f, footer: ft, refCount: 1}
		cacheMu.Lock()
		cache[path] = h
		cacheMu.Unlock()
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Handle), nil
}

// Close releases one reference; the underlying file is closed once the
// reference count reaches zero.
func (h *Handle) Close() error {
	h.mu.Lock()
	h.refCount--
	closeNow := h.refCount <= 0
	h.mu.Unlock()
	if !closeNow {
		return nil
	}
	cacheMu.Lock()
	if cache[h.path] == h {
		delete(cache, h.path)
	}
	cacheMu.Unlock()
	return h.f.Close()
}

// TierSize returns the number of records the CRF was created with.
func (h *Handle) TierSize() int64 { return h.footer.TierSize }

// BlockSize returns the file's uncompressed block size.
func (h *Handle) BlockSize() int { return int(h.footer.BlockSize) }

// blockContaining returns the index of the block covering uncompressed byte
// offset off, and that block's uncompressed start offset.
func (h *Handle) blockContaining(off int64) (index int, blockStart int64) {
	idx := off / int64(h.footer.BlockSize)
	return int(idx), idx * int64(h.footer.BlockSize)
}

// ReadRange copies length raw bytes of the uncompressed record stream
// starting at byte offset into out, decompressing each covered block at
// most once (§4.A). Spanning a block boundary is permitted.
func (h *Handle) ReadRange(offset int64, length int, out []byte) error {
	if len(out) < length {
		return fmt.Errorf("crf: out buffer too small: need %d, have %d", length, len(out))
	}
	remaining := length
	pos := offset
	written := 0
	for remaining > 0 {
		idx, blockStart := h.blockContaining(pos)
		if idx >= len(h.footer.Blocks) {
			return record.New(record.IOError, fmt.Sprintf("crf: offset %d beyond end of file", pos), nil)
		}
		be := h.footer.Blocks[idx]
		data, err := h.readBlock(idx, be)
		if err != nil {
			return err
		}
		withinBlock := int(pos - blockStart)
		avail := len(data) - withinBlock
		if avail <= 0 {
			return record.New(record.IOError, fmt.Sprintf("crf: short block %d", idx), nil)
		}
		n := avail
		if n > remaining {
			n = remaining
		}
		copy(out[written:written+n], data[withinBlock:withinBlock+n])
		written += n
		remaining -= n
		pos += int64(n)
	}
	return nil
}

// readBlock decompresses block idx; os.File.ReadAt is safe for concurrent
// use so no lock is needed around the read itself.
func (h *Handle) readBlock(idx int, be blockEntry) ([]byte, error) {
	compressed := make([]byte, be.CompressedLen)
	if _, err := h.f.ReadAt(compressed, int64(be.CompressedOffset)); err != nil {
		return nil, record.New(record.IOError, fmt.Sprintf("crf: read block %d", idx), err)
	}
	data, err := decompressBlock(compressed, int(be.UncompressedLen))
	if err != nil {
		return nil, record.New(record.CompressionError, fmt.Sprintf("crf: decompress block %d", idx), err)
	}
	return data, nil
}

// ReadAll decompresses and concatenates every block, returning the full
// uncompressed record stream. Used by tests (§8 invariant 7, CRF
// round-trip) and by the frontier-less strategy's tier scan.
func (h *Handle) ReadAll() ([]byte, error) {
	out := make([]byte, h.footer.TierSize*2)
	if len(out) == 0 {
		return out, nil
	}
	if err := h.ReadRange(0, len(out), out); err != nil {
		return nil, err
	}
	return out, nil
}
