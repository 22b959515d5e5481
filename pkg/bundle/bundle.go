// Package bundle serializes a mode's Persisted Bundle — the base graph plus
// its contraction hierarchy — to and from the cache file co-located with the
// source OSM extract (spec.md §6's `<extract>.<mode>.routing`). The spatial
// index and adjacency list are not stored: both are cheap, deterministic
// derivations of the base graph, rebuilt once at load time instead of
// carried as extra bytes on disk.
package bundle

import (
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"
	"unsafe"

	"github.com/pkg/errors"

	"routex/pkg/ch"
	"routex/pkg/graph"
)

const (
	magicBytes = "ROUTEX01"
	version    = uint32(1)

	maxNodes = 50_000_000
	maxEdges = 250_000_000
)

// ErrInvalidBundle is returned for a corrupt or incompatible cache file —
// magic mismatch, version mismatch, CRC32 mismatch, or bound violation.
// Per spec.md §7 this is a load failure, not a panic; callers fall back to
// rebuilding from the source extract.
var ErrInvalidBundle = errors.New("bundle: invalid or corrupt cache file")

type header struct {
	Magic    [8]byte
	Version  uint32
	NumNodes uint32
	NumEdges uint32

	// FirstOut arrays are normally NumNodes+1 long, but graph.Build and
	// ch.Contract both return a bare zero-value Graph/CHGraph (nil
	// FirstOut) for the empty-edge case rather than a length-1 slice — so
	// their lengths are recorded explicitly instead of derived.
	NumFirstOut    uint32
	NumFwdEdges    uint32
	NumFwdFirstOut uint32
	NumBwdEdges    uint32
	NumBwdFirstOut uint32
}

// Save atomically writes g and chg to path: written to a temp file first,
// then renamed into place, so a reader never observes a partial write.
func Save(path string, g *graph.Graph, chg *ch.CHGraph) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return errors.Wrap(err, "bundle: create temp file")
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	cw := &crc32Writer{w: f, hash: crc32.NewIEEE()}

	hdr := header{
		Version:        version,
		NumNodes:       g.NumNodes,
		NumEdges:       g.NumEdges,
		NumFirstOut:    uint32(len(g.FirstOut)),
		NumFwdEdges:    uint32(len(chg.FwdHead)),
		NumFwdFirstOut: uint32(len(chg.FwdFirstOut)),
		NumBwdEdges:    uint32(len(chg.BwdHead)),
		NumBwdFirstOut: uint32(len(chg.BwdFirstOut)),
	}
	copy(hdr.Magic[:], magicBytes)
	if err := binary.Write(cw, binary.LittleEndian, &hdr); err != nil {
		return errors.Wrap(err, "bundle: write header")
	}

	writers := []func() error{
		func() error { return writeFloat64Slice(cw, g.NodeLat) },
		func() error { return writeFloat64Slice(cw, g.NodeLon) },
		func() error { return writeUint32Slice(cw, g.FirstOut) },
		func() error { return writeUint32Slice(cw, g.Head) },
		func() error { return writeUint32Slice(cw, g.Weight) },
		func() error { return writeBoolSlice(cw, g.MainRoad) },
		func() error { return writeUint32Slice(cw, chg.Rank) },
		func() error { return writeUint32Slice(cw, chg.FwdFirstOut) },
		func() error { return writeUint32Slice(cw, chg.FwdHead) },
		func() error { return writeUint32Slice(cw, chg.FwdWeight) },
		func() error { return writeInt32Slice(cw, chg.FwdMiddle) },
		func() error { return writeUint32Slice(cw, chg.BwdFirstOut) },
		func() error { return writeUint32Slice(cw, chg.BwdHead) },
		func() error { return writeUint32Slice(cw, chg.BwdWeight) },
		func() error { return writeInt32Slice(cw, chg.BwdMiddle) },
	}
	for _, w := range writers {
		if err := w(); err != nil {
			return errors.Wrap(err, "bundle: write body")
		}
	}

	checksum := cw.hash.Sum32()
	if err := binary.Write(f, binary.LittleEndian, checksum); err != nil {
		return errors.Wrap(err, "bundle: write checksum")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "bundle: close temp file")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Wrap(err, "bundle: rename into place")
	}
	return nil
}

// Load reads a bundle previously written by Save, validating its magic,
// version, size bounds, and CRC32 trailer.
func Load(path string) (*graph.Graph, *ch.CHGraph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "bundle: open")
	}
	defer f.Close()

	cr := &crc32Reader{r: f, hash: crc32.NewIEEE()}

	var hdr header
	if err := binary.Read(cr, binary.LittleEndian, &hdr); err != nil {
		return nil, nil, errors.Wrap(err, "bundle: read header")
	}
	if string(hdr.Magic[:]) != magicBytes {
		return nil, nil, errors.Wrapf(ErrInvalidBundle, "bad magic %q", hdr.Magic)
	}
	if hdr.Version != version {
		return nil, nil, errors.Wrapf(ErrInvalidBundle, "unsupported version %d", hdr.Version)
	}
	if hdr.NumNodes > maxNodes {
		return nil, nil, errors.Wrapf(ErrInvalidBundle, "NumNodes %d exceeds limit", hdr.NumNodes)
	}
	if hdr.NumEdges > maxEdges || hdr.NumFwdEdges > maxEdges || hdr.NumBwdEdges > maxEdges {
		return nil, nil, errors.Wrapf(ErrInvalidBundle, "edge count exceeds limit")
	}

	g := &graph.Graph{NumNodes: hdr.NumNodes, NumEdges: hdr.NumEdges}
	chg := &ch.CHGraph{NumNodes: hdr.NumNodes}

	var readErr error
	read := func(fn func() error) {
		if readErr != nil {
			return
		}
		readErr = fn()
	}

	read(func() (err error) { g.NodeLat, err = readFloat64Slice(cr, int(hdr.NumNodes)); return })
	read(func() (err error) { g.NodeLon, err = readFloat64Slice(cr, int(hdr.NumNodes)); return })
	read(func() (err error) { g.FirstOut, err = readUint32Slice(cr, int(hdr.NumFirstOut)); return })
	read(func() (err error) { g.Head, err = readUint32Slice(cr, int(hdr.NumEdges)); return })
	read(func() (err error) { g.Weight, err = readUint32Slice(cr, int(hdr.NumEdges)); return })
	read(func() (err error) { g.MainRoad, err = readBoolSlice(cr, int(hdr.NumNodes)); return })
	read(func() (err error) { chg.Rank, err = readUint32Slice(cr, int(hdr.NumNodes)); return })
	read(func() (err error) { chg.FwdFirstOut, err = readUint32Slice(cr, int(hdr.NumFwdFirstOut)); return })
	read(func() (err error) { chg.FwdHead, err = readUint32Slice(cr, int(hdr.NumFwdEdges)); return })
	read(func() (err error) { chg.FwdWeight, err = readUint32Slice(cr, int(hdr.NumFwdEdges)); return })
	read(func() (err error) { chg.FwdMiddle, err = readInt32Slice(cr, int(hdr.NumFwdEdges)); return })
	read(func() (err error) { chg.BwdFirstOut, err = readUint32Slice(cr, int(hdr.NumBwdFirstOut)); return })
	read(func() (err error) { chg.BwdHead, err = readUint32Slice(cr, int(hdr.NumBwdEdges)); return })
	read(func() (err error) { chg.BwdWeight, err = readUint32Slice(cr, int(hdr.NumBwdEdges)); return })
	read(func() (err error) { chg.BwdMiddle, err = readInt32Slice(cr, int(hdr.NumBwdEdges)); return })
	if readErr != nil {
		return nil, nil, errors.Wrap(readErr, "bundle: read body")
	}

	expectedCRC := cr.hash.Sum32()
	var storedCRC uint32
	if err := binary.Read(f, binary.LittleEndian, &storedCRC); err != nil {
		return nil, nil, errors.Wrap(err, "bundle: read checksum")
	}
	if storedCRC != expectedCRC {
		return nil, nil, errors.Wrapf(ErrInvalidBundle, "CRC32 mismatch: stored=%08x computed=%08x", storedCRC, expectedCRC)
	}

	if err := validateCSR(g.FirstOut, g.Head, g.NumNodes); err != nil {
		return nil, nil, errors.Wrap(err, "bundle: base graph CSR invalid")
	}
	if err := validateCSR(chg.FwdFirstOut, chg.FwdHead, chg.NumNodes); err != nil {
		return nil, nil, errors.Wrap(err, "bundle: forward overlay CSR invalid")
	}
	if err := validateCSR(chg.BwdFirstOut, chg.BwdHead, chg.NumNodes); err != nil {
		return nil, nil, errors.Wrap(err, "bundle: backward overlay CSR invalid")
	}

	return g, chg, nil
}

func validateCSR(firstOut, head []uint32, numNodes uint32) error {
	if numNodes == 0 {
		if len(firstOut) != 0 || len(head) != 0 {
			return errors.Errorf("non-empty CSR arrays for a zero-node graph")
		}
		return nil
	}
	if uint32(len(firstOut)) != numNodes+1 {
		return errors.Errorf("FirstOut length %d != NumNodes+1 %d", len(firstOut), numNodes+1)
	}
	for i := uint32(1); i <= numNodes; i++ {
		if firstOut[i] < firstOut[i-1] {
			return errors.Errorf("FirstOut not monotonic at %d", i)
		}
	}
	for i, h := range head {
		if h >= numNodes {
			return errors.Errorf("Head[%d]=%d >= NumNodes=%d", i, h, numNodes)
		}
	}
	return nil
}

// Zero-copy slice I/O, matching the teacher's unsafe.Slice reinterpret-cast
// approach for fixed-width element types.

func writeUint32Slice(w io.Writer, s []uint32) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
	_, err := w.Write(b)
	return err
}

func writeInt32Slice(w io.Writer, s []int32) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
	_, err := w.Write(b)
	return err
}

func writeFloat64Slice(w io.Writer, s []float64) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*8)
	_, err := w.Write(b)
	return err
}

// writeBoolSlice packs one byte per bool — MainRoad is read-hot at build
// time, not query time, so bit-packing isn't worth the complexity.
func writeBoolSlice(w io.Writer, s []bool) error {
	if len(s) == 0 {
		return nil
	}
	buf := make([]byte, len(s))
	for i, v := range s {
		if v {
			buf[i] = 1
		}
	}
	_, err := w.Write(buf)
	return err
}

func readUint32Slice(r io.Reader, n int) ([]uint32, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]uint32, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*4)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

func readInt32Slice(r io.Reader, n int) ([]int32, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]int32, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*4)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

func readFloat64Slice(r io.Reader, n int) ([]float64, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]float64, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*8)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

func readBoolSlice(r io.Reader, n int) ([]bool, error) {
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	s := make([]bool, n)
	for i, b := range buf {
		s[i] = b != 0
	}
	return s, nil
}

type crc32Writer struct {
	w    io.Writer
	hash hashWriter
}

type hashWriter interface {
	io.Writer
	Sum32() uint32
}

func (c *crc32Writer) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	if n > 0 {
		c.hash.Write(p[:n])
	}
	return n, err
}

type crc32Reader struct {
	r    io.Reader
	hash hashWriter
}

func (c *crc32Reader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.hash.Write(p[:n])
	}
	return n, err
}
