// Package crf implements the §4.A compressed record file: a random-access,
// block-compressed store of a solved tier's packed Records.
//
// Grounded on pkg/blobserver/diskpacked.go's "many small records packed
// into one big append-only file, indexed so any one can be pulled back out
// with one seek" shape, and on pkg/blobserver/blobpacked.go's "index
// recoverable from the file's own footer" manifest. The LZMA-family codec is
// github.com/ulikunitz/xz, the pure-Go implementation paired with
// github.com/klauspost/compress throughout the retrieved pack (e.g. the
// dsnet-compress and KarpelesLab-squashfs module manifests); each
// uncompressed block is compressed as its own self-contained xz stream so a
// single block can be decompressed given only a byte offset and its
// uncompressed length, per §4.A's contract.
package crf

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/ulikunitz/xz"

	"tiersolve.dev/pkg/record"
)

// State is one of the four tier-status values from §3.
type State int

const (
	Missing State = iota
	Solved
	Corrupted
	CheckError
)

func (s State) String() string {
	switch s {
	case Missing:
		return "missing"
	case Solved:
		return "solved"
	case Corrupted:
		return "corrupted"
	case CheckError:
		return "check_error"
	default:
		return "unknown"
	}
}

const magic uint32 = 0x54524653 // "TRFS"

// blockEntry is one footer index row: where a compressed block starts, how
// many compressed bytes it occupies, and how many uncompressed bytes it
// expands to.
type blockEntry struct {
	CompressedOffset uint64
	CompressedLen    uint32
	UncompressedLen  uint32
}

// footer is the per-file index, recoverable from the file's own tail per
// §6: "footer contains the backward-size from which the index can be
// located and decoded."
type footer struct {
	BlockSize uint32
	TierSize  int64
	Blocks    []blockEntry
}

// Status checks path for existence and a parseable footer, without
// validating every block's checksum (a full scan is the caller's choice via
// Open + sequential read_range, not Status's job).
func Status(path string) State {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Missing
		}
		return CheckError
	}
	defer f.Close()
	if _, err := readFooter(f); err != nil {
		return Corrupted
	}
	return Solved
}

// Create writes a new CRF at path containing records, split into blocks of
// blockSize uncompressed bytes (the last block possibly short). blockSize
// must be a positive even number, since 2 must divide it for records never
// to straddle a block (§3).
func Create(path string, records []record.Record, blockSize int) error {
	if blockSize <= 0 || blockSize%2 != 0 {
		return record.New(record.ConfigError, fmt.Sprintf("crf: block size %d must be a positive multiple of 2", blockSize), nil)
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return record.New(record.IOError, "crf: create temp file", err)
	}
	ok := false
	defer func() {
		f.Close()
		if !ok {
			os.Remove(tmpPath)
		}
	}()

	raw := recordsToBytes(records)
	w := bufio.NewWriter(f)
	var blocks []blockEntry
	offset := uint64(0)
	for start := 0; start < len(raw); start += blockSize {
		end := start + blockSize
		if end > len(raw) {
			end = len(raw)
		}
		chunk := raw[start:end]
		compressed, err := compressBlock(chunk)
		if err != nil {
			return record.New(record.CompressionError, "crf: compress block", err)
		}
		n, err := w.Write(compressed)
		if err != nil {
			return record.New(record.IOError, "crf: write block", err)
		}
		blocks = append(blocks, blockEntry{
			CompressedOffset: offset,
			CompressedLen:    uint32(n),
			UncompressedLen:  uint32(len(chunk)),
		})
		offset += uint64(n)
	}
	if len(raw) == 0 {
		// A tier with zero records still gets a valid, empty CRF (§8
		// boundary: "tier with zero legal non-primitive positions").
	}
	if err := writeFooter(w, footer{BlockSize: uint32(blockSize), TierSize: int64(len(records)), Blocks: blocks}); err != nil {
		return record.New(record.IOError, "crf: write footer", err)
	}
	if err := w.Flush(); err != nil {
		return record.New(record.IOError, "crf: flush", err)
	}
	if err := f.Sync(); err != nil {
		return record.New(record.IOError, "crf: fsync", err)
	}
	if err := f.Close(); err != nil {
		return record.New(record.IOError, "crf: close", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return record.New(record.IOError, "crf: rename into place", err)
	}
	ok = true
	return nil
}

func compressBlock(chunk []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(chunk); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressBlock(compressed []byte, uncompressedLen int) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	out := make([]byte, uncompressedLen)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

func writeFooter(w io.Writer, f footer) error {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, magic)
	binary.Write(&buf, binary.LittleEndian, f.BlockSize)
	binary.Write(&buf, binary.LittleEndian, f.TierSize)
	binary.Write(&buf, binary.LittleEndian, uint32(len(f.Blocks)))
	for _, b := range f.Blocks {
		binary.Write(&buf, binary.LittleEndian, b.CompressedOffset)
		binary.Write(&buf, binary.LittleEndian, b.CompressedLen)
		binary.Write(&buf, binary.LittleEndian, b.UncompressedLen)
	}
	footerLen := uint32(buf.Len())
	binary.Write(&buf, binary.LittleEndian, footerLen)
	_, err := w.Write(buf.Bytes())
	return err
}

// footerFixedLen is the byte size of the footer's fixed preamble (magic,
// block size, tier size, block count) plus the trailing footer_len field.
const footerFixedLen = 4 + 4 + 8 + 4 + 4
const blockEntryLen = 8 + 4 + 4

func readFooter(f *os.File) (*footer, error) {
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	if size < 4 {
		return nil, fmt.Errorf("crf: file too short")
	}
	var lenBuf [4]byte
	if _, err := f.ReadAt(lenBuf[:], size-4); err != nil {
		return nil, err
	}
	footerLen := binary.LittleEndian.Uint32(lenBuf[:])
	if int64(footerLen)+4 > size {
		return nil, fmt.Errorf("crf: footer length %d exceeds file size %d", footerLen, size)
	}
	buf := make([]byte, footerLen)
	if _, err := f.ReadAt(buf, size-4-int64(footerLen)); err != nil {
		return nil, err
	}
	r := bytes.NewReader(buf)
	var m, blockSize, numBlocks uint32
	var tierSize int64
	if err := binary.Read(r, binary.LittleEndian, &m); err != nil || m != magic {
		return nil, fmt.Errorf("crf: bad magic")
	}
	if err := binary.Read(r, binary.LittleEndian, &blockSize); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &tierSize); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &numBlocks); err != nil {
		return nil, err
	}
	blocks := make([]blockEntry, numBlocks)
	for i := range blocks {
		if err := binary.Read(r, binary.LittleEndian, &blocks[i].CompressedOffset); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &blocks[i].CompressedLen); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &blocks[i].UncompressedLen); err != nil {
			return nil, err
		}
	}
	return &footer{BlockSize: blockSize, TierSize: tierSize, Blocks: blocks}, nil
}

func recordsToBytes(records []record.Record) []byte {
	out := make([]byte, len(records)*2)
	for i, r := range records {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(r))
	}
	return out
}
