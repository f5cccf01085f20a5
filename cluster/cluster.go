// Package cluster simulates a ring of MPI-style ranks as goroutines: each
// rank owns one partition.Band, one evolution engine, and one halo.Link to
// its ring neighbours. cluster.Run is the traverse.Each-based fan-out that
// replaces mpirun: every rank-level operation (engine construction, halo
// bootstrap, stepping, snapshotting) is dispatched across ranks the same
// way static and ordered dispatch work across a band's rows.
package cluster

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/klauspost/compress/gzip"

	"github.com/sarnelli/gol/halo"
	"github.com/sarnelli/gol/ordered"
	"github.com/sarnelli/gol/partition"
	"github.com/sarnelli/gol/pgmio"
	"github.com/sarnelli/gol/snapshot"
	"github.com/sarnelli/gol/static"
)

// Evolution selects the engine every rank runs.
type Evolution int

const (
	// Ordered selects the in-place line-independent engine.
	Ordered Evolution = 0
	// Static selects the double-buffered synchronous engine.
	Static Evolution = 1
)

// Config parameterizes a run: every field here was, in the source, either a
// CLI flag or a compile-time constant; cluster.Run takes them as an
// explicit struct instead of reading globals.
type Config struct {
	K              int
	Procs          int
	Evolution      Evolution
	Generations    int
	SnapshotPeriod int
	SnapshotDir    string // empty disables periodic/final snapshotting
	Stride         int    // ordered engine fragment stride; 0 = ordered.DefaultStride
	GzipSnapshots  bool   // gzip-compress snapshot files (".pgm.gz" instead of ".pgm")
}

// engine is the common surface both evolution engines satisfy; cluster
// only ever drives a band through this interface.
type engine interface {
	Band() partition.Band
	Step() error
	Live() []byte
	Close() error
}

// RunStats summarizes one cluster.Run invocation, mirroring the per-rank
// wall-clock timing the original command-line tool printed at exit.
type RunStats struct {
	Procs       int
	Generations int
	Elapsed     time.Duration
	RankElapsed []time.Duration
}

// GenerationsPerSec returns the aggregate generation throughput across all
// ranks (Generations / Elapsed), or 0 if Elapsed is 0.
func (s RunStats) GenerationsPerSec() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Generations) / s.Elapsed.Seconds()
}

// Run partitions grid's k x k image across cfg.Procs simulated ranks,
// steps every rank's engine cfg.Generations times, optionally writing
// periodic and final snapshots under cfg.SnapshotDir, and writes every
// rank's final band back to grid.
func Run(cfg Config, grid *pgmio.GridFile) (RunStats, error) {
	if cfg.Procs <= 0 {
		return RunStats{}, errors.E(fmt.Errorf("cluster: Procs must be positive"))
	}
	if cfg.Generations < 0 {
		return RunStats{}, errors.E(fmt.Errorf("cluster: Generations must be non-negative"))
	}

	bands := make([]partition.Band, cfg.Procs)
	for r := range bands {
		b, err := partition.New(cfg.K, cfg.Procs, r)
		if err != nil {
			return RunStats{}, err
		}
		bands[r] = b
	}
	if !partition.Complete(cfg.K, bands) {
		return RunStats{}, errors.E(fmt.Errorf("cluster: bands do not tile the %d x %d grid", cfg.K, cfg.K))
	}

	links := halo.NewRing(cfg.Procs)
	engines := make([]engine, cfg.Procs)
	if err := traverse.Each(cfg.Procs, func(r int) error {
		buf, err := grid.ReadBand(bands[r])
		if err != nil {
			return err
		}
		e, err := newEngine(cfg, bands[r], links[r], buf)
		if err != nil {
			return err
		}
		engines[r] = e
		return nil
	}); err != nil {
		return RunStats{}, err
	}
	defer func() {
		for _, e := range engines {
			if e != nil {
				e.Close()
			}
		}
	}()

	rankElapsed := make([]time.Duration, cfg.Procs)
	start := time.Now()
	for gen := 1; gen <= cfg.Generations; gen++ {
		if err := traverse.Each(cfg.Procs, func(r int) error {
			rankStart := time.Now()
			err := engines[r].Step()
			rankElapsed[r] += time.Since(rankStart)
			return err
		}); err != nil {
			return RunStats{}, err
		}
		if cfg.SnapshotDir != "" && snapshot.ShouldSnapshot(gen, cfg.SnapshotPeriod, cfg.Generations) {
			if err := writeSnapshot(cfg, engines, gen); err != nil {
				return RunStats{}, err
			}
		}
	}
	elapsed := time.Since(start)

	if err := traverse.Each(cfg.Procs, func(r int) error {
		return grid.WriteBand(bands[r], engines[r].Live())
	}); err != nil {
		return RunStats{}, err
	}

	log.Printf("cluster: %d generations across %d ranks in %s (%.1f gen/s)",
		cfg.Generations, cfg.Procs, elapsed, RunStats{Generations: cfg.Generations, Elapsed: elapsed}.GenerationsPerSec())

	return RunStats{
		Procs:       cfg.Procs,
		Generations: cfg.Generations,
		Elapsed:     elapsed,
		RankElapsed: rankElapsed,
	}, nil
}

func newEngine(cfg Config, band partition.Band, link halo.Link, initial []byte) (engine, error) {
	switch cfg.Evolution {
	case Static:
		return static.New(band, link, initial)
	case Ordered:
		return ordered.New(band, link, initial, cfg.Stride)
	default:
		return nil, errors.E(fmt.Errorf("cluster: unknown evolution type %d", cfg.Evolution))
	}
}

// writeSnapshot gathers every rank's current live-cell buffer, in rank
// order, into one PGM file under cfg.SnapshotDir. With cfg.GzipSnapshots,
// the whole file (header and pixels) is gzip-compressed as it is written,
// the same way encoding/bam's sharded writer gzips each BAM block as it
// streams out.
func writeSnapshot(cfg Config, engines []engine, gen int) error {
	path := pgmio.SnapshotName(cfg.SnapshotDir, gen)
	if cfg.GzipSnapshots {
		path += ".gz"
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.E(err, "cluster: creating snapshot", path)
	}

	var out io.Writer = f
	var gz *gzip.Writer
	if cfg.GzipSnapshots {
		gz = gzip.NewWriter(f)
		out = gz
	}

	if _, err := out.Write(pgmio.FormatHeader(cfg.K, cfg.K)); err != nil {
		f.Close()
		return errors.E(err, "cluster: writing snapshot header", path)
	}

	g := snapshot.NewGatherer(cfg.Procs, out)
	if err := traverse.Each(cfg.Procs, func(r int) error {
		return g.PutBand(r, engines[r].Live())
	}); err != nil {
		g.Close()
		f.Close()
		return err
	}
	if err := g.Close(); err != nil {
		f.Close()
		return errors.E(err, "cluster: gathering snapshot", path)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			f.Close()
			return errors.E(err, "cluster: closing gzip snapshot", path)
		}
	}
	if err := f.Close(); err != nil {
		return errors.E(err, "cluster: closing snapshot", path)
	}
	return nil
}
