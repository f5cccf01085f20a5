// Package pgmio implements the binary PGM (P5) codec and the per-rank
// offset file layout used to store a grid on disk. It is kept separate
// from the evolution engines so their cell-encoding internals never leak
// into file format details.
package pgmio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
)

// HeaderSize is the fixed ASCII header length of "P5\n%8d %8d\n%d\n" with
// width/height padded to 8 characters and a single-digit maxval.
const HeaderSize = 23

// MaxVal is the only supported maxval: cells are binary.
const MaxVal = 1

// FormatHeader renders the fixed-width P5 header for a width x height grid.
func FormatHeader(width, height int) []byte {
	return []byte(fmt.Sprintf("P5\n%8d %8d\n%d\n", width, height, MaxVal))
}

// ParseHeader parses a HeaderSize-byte buffer produced by FormatHeader.
func ParseHeader(buf []byte) (width, height int, err error) {
	if len(buf) != HeaderSize {
		return 0, 0, errors.E(fmt.Errorf("pgmio: header must be exactly %d bytes, got %d", HeaderSize, len(buf)))
	}
	if string(buf[:3]) != "P5\n" {
		return 0, 0, errors.E(fmt.Errorf("pgmio: bad magic %q, want \"P5\\n\"", buf[:3]))
	}
	width, err = strconv.Atoi(strings.TrimSpace(string(buf[3:11])))
	if err != nil {
		return 0, 0, errors.E(err, "pgmio: parsing width")
	}
	if buf[11] != ' ' {
		return 0, 0, errors.E(fmt.Errorf("pgmio: expected space separator after width, got %q", buf[11]))
	}
	height, err = strconv.Atoi(strings.TrimSpace(string(buf[12:20])))
	if err != nil {
		return 0, 0, errors.E(err, "pgmio: parsing height")
	}
	if buf[20] != '\n' {
		return 0, 0, errors.E(fmt.Errorf("pgmio: expected newline after height, got %q", buf[20]))
	}
	maxval, err := strconv.Atoi(string(buf[21:22]))
	if err != nil {
		return 0, 0, errors.E(err, "pgmio: parsing maxval")
	}
	if maxval != MaxVal {
		return 0, 0, errors.E(fmt.Errorf("pgmio: unsupported maxval %d, want %d", maxval, MaxVal))
	}
	if buf[22] != '\n' {
		return 0, 0, errors.E(fmt.Errorf("pgmio: expected trailing newline"))
	}
	return width, height, nil
}

// SnapshotName returns the fixed-width snapshot filename
// "<basedir>/snapshot_%05d.pgm".
func SnapshotName(baseDir string, generation int) string {
	return fmt.Sprintf("%s/snapshot_%05d.pgm", baseDir, generation)
}
