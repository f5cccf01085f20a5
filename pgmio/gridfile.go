package pgmio

import (
	"fmt"
	"io"
	"math/rand"
	"os"

	"blainsmith.com/go/seahash"
	"github.com/grailbio/base/errors"
	"github.com/sarnelli/gol/partition"
)

// GridFile is a single shared PGM file accessed at per-band byte offsets.
// Each simulated rank reads or writes its own band through
// ReadBand/WriteBand at its own offset; rank 0 alone writes the header, via
// CreateGrid.
//
// Band offsets require random access within one file, which the generic
// grailbio/base/file storage abstraction (not used in this module) does not
// expose uniformly across local and remote backends; GridFile therefore
// talks to a local os.File directly for this one random-access path (see
// DESIGN.md).
type GridFile struct {
	f *os.File
	k int
}

// CreateGrid creates path, writes the PGM header for a k x k grid, and
// sizes the file to hold the full pixel payload.
func CreateGrid(path string, k int) (*GridFile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.E(err, "pgmio: create", path)
	}
	if _, err := f.Write(FormatHeader(k, k)); err != nil {
		f.Close()
		return nil, errors.E(err, "pgmio: writing header", path)
	}
	if err := f.Truncate(int64(HeaderSize) + int64(k)*int64(k)); err != nil {
		f.Close()
		return nil, errors.E(err, "pgmio: sizing", path)
	}
	return &GridFile{f: f, k: k}, nil
}

// OpenGrid opens an existing PGM file for per-band random access, returning
// its grid dimension.
func OpenGrid(path string) (*GridFile, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, errors.E(err, "pgmio: open", path)
	}
	hdr := make([]byte, HeaderSize)
	if _, err := io.ReadFull(f, hdr); err != nil {
		f.Close()
		return nil, 0, errors.E(err, "pgmio: reading header", path)
	}
	w, h, err := ParseHeader(hdr)
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	if w != h {
		f.Close()
		return nil, 0, errors.E(fmt.Errorf("pgmio: non-square grid %dx%d unsupported", w, h))
	}
	return &GridFile{f: f, k: w}, w, nil
}

// ReadBand reads the pixel bytes owned by band b.
func (g *GridFile) ReadBand(b partition.Band) ([]byte, error) {
	buf := make([]byte, b.ByteLen())
	if _, err := g.f.ReadAt(buf, b.FileOffset()); err != nil {
		return nil, errors.E(err, fmt.Sprintf("pgmio: reading band for rank %d", b.Rank))
	}
	return buf, nil
}

// WriteBand writes buf (one byte per cell, 0 or 1) at band b's offset.
func (g *GridFile) WriteBand(b partition.Band, buf []byte) error {
	if int64(len(buf)) != b.ByteLen() {
		return errors.E(fmt.Errorf("pgmio: band buffer has %d bytes, want %d", len(buf), b.ByteLen()))
	}
	if _, err := g.f.WriteAt(buf, b.FileOffset()); err != nil {
		return errors.E(err, fmt.Sprintf("pgmio: writing band for rank %d", b.Rank))
	}
	return nil
}

// Close closes the underlying file.
func (g *GridFile) Close() error {
	return g.f.Close()
}

// RandomBand fills a band-sized buffer with random 0/1 pixel values, used
// to seed a grid from scratch instead of reading one from disk. There is
// no random-grid-generation library in the example corpus to ground this
// on; math/rand is the standard-library choice for non-cryptographic
// synthetic test data (see DESIGN.md).
func RandomBand(rng *rand.Rand, b partition.Band) []byte {
	buf := make([]byte, b.ByteLen())
	for i := range buf {
		buf[i] = byte(rng.Intn(2))
	}
	return buf
}

// BandChecksum returns a fast non-cryptographic checksum of a band's pixel
// payload, used to detect truncated or corrupted grid files on a restart.
func BandChecksum(buf []byte) uint64 {
	return seahash.Sum64(buf)
}
