// Package bitmap implements the §6 discovery bitmap file: one bit per
// position in a tier, little-endian bit order within each byte. The tier
// solver does not read this file itself; it exists so a colocated analysis
// pass can record which positions it has visited without colliding with the
// solver's own CRF and status-cache files in the same tier directory.
package bitmap

import (
	"fmt"
	"os"

	"tiersolve.dev/pkg/record"
)

// Bitmap is an in-memory bit vector sized for a tier; Load/Save move it to
// and from disk.
type Bitmap struct {
	bits []byte
	n    record.Position
}

// New allocates a zeroed Bitmap for n positions.
func New(n record.Position) *Bitmap {
	return &Bitmap{bits: make([]byte, byteLen(n)), n: n}
}

func byteLen(n record.Position) int {
	return int((int64(n) + 7) / 8)
}

// Len returns the number of positions the bitmap covers.
func (b *Bitmap) Len() record.Position { return b.n }

// Test reports whether bit p is set.
func (b *Bitmap) Test(p record.Position) bool {
	return b.bits[p/8]&(1<<uint(p%8)) != 0
}

// Set sets bit p.
func (b *Bitmap) Set(p record.Position) {
	b.bits[p/8] |= 1 << uint(p%8)
}

// Clear clears bit p.
func (b *Bitmap) Clear(p record.Position) {
	b.bits[p/8] &^= 1 << uint(p%8)
}

// Load reads a bitmap of n positions from path.
func Load(path string, n record.Position) (*Bitmap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	want := byteLen(n)
	if len(data) != want {
		return nil, fmt.Errorf("bitmap: %s has %d bytes, want %d for %d positions", path, len(data), want, n)
	}
	return &Bitmap{bits: data, n: n}, nil
}

// Save writes the bitmap to path, length ceil(n/8) bytes.
func (b *Bitmap) Save(path string) error {
	return os.WriteFile(path, b.bits, 0o644)
}
