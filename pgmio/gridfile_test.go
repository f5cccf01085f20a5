package pgmio

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sarnelli/gol/partition"
)

func TestCreateOpenReadWriteBandRoundTrip(t *testing.T) {
	const k = 12
	path := filepath.Join(t.TempDir(), "grid.pgm")

	g, err := CreateGrid(path, k)
	assert.NoError(t, err)

	band, err := partition.New(k, 1, 0)
	assert.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	want := RandomBand(rng, band)
	assert.NoError(t, g.WriteBand(band, want))
	assert.NoError(t, g.Close())

	g2, k2, err := OpenGrid(path)
	assert.NoError(t, err)
	defer g2.Close()
	assert.Equal(t, k, k2)

	got, err := g2.ReadBand(band)
	assert.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestWriteBandRejectsWrongLength(t *testing.T) {
	const k = 8
	path := filepath.Join(t.TempDir(), "grid.pgm")
	g, err := CreateGrid(path, k)
	assert.NoError(t, err)
	defer g.Close()

	band, err := partition.New(k, 1, 0)
	assert.NoError(t, err)
	assert.Error(t, g.WriteBand(band, make([]byte, 3)))
}

func TestOpenGridRejectsNonSquare(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.pgm")
	g, err := CreateGrid(path, 10)
	assert.NoError(t, err)
	assert.NoError(t, g.Close())

	// Hand-craft a rectangular header to exercise the square-grid guard.
	assert.NoError(t, os.WriteFile(path, append(FormatHeader(10, 20), make([]byte, 200)...), 0644))

	_, _, err = OpenGrid(path)
	assert.Error(t, err)
}

func TestBandChecksumDetectsChange(t *testing.T) {
	a := []byte{0, 1, 1, 0, 1}
	b := []byte{0, 1, 0, 0, 1}
	assert.NotEqual(t, BandChecksum(a), BandChecksum(b))
	assert.Equal(t, BandChecksum(a), BandChecksum(append([]byte(nil), a...)))
}
