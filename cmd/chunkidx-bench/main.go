// Command chunkidx-bench builds a synthetic inner table and probes it,
// reporting throughput. It exists to exercise jointable, rowenc, and
// shard end to end the way a join driver would, since the core itself
// ships no CLI or persistence surface (§6 of the core spec).
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/rowjoin/chunkidx/chunkid"
	"github.com/rowjoin/chunkidx/internal/errors"
	"github.com/rowjoin/chunkidx/rowenc"
	"github.com/rowjoin/chunkidx/shard"
)

func init() {
	// don't import go.uber.org/automaxprocs to disable the log output
	_, _ = maxprocs.Set()
}

type options struct {
	rows        int
	chunks      int
	probes      int
	dupFraction float64
	shards      int
	limit       int
	markMatches bool
	seed        int64
	cpuProfile  string
	memProfile  string
}

func main() {
	opts := options{}

	root := &cobra.Command{
		Use:   "chunkidx-bench",
		Short: "Build and probe a synthetic chunked hash-join index table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfiled(cmd.Context(), opts)
		},
	}

	flags := root.Flags()
	flags.IntVar(&opts.rows, "rows", 1_000_000, "total inner rows to build")
	flags.IntVar(&opts.chunks, "chunks", 8, "number of inner chunks to split rows across")
	flags.IntVar(&opts.probes, "probes", 1_000_000, "number of probe rows")
	flags.Float64Var(&opts.dupFraction, "dup-fraction", 0.0, "fraction of inner rows sharing a key with another row")
	flags.IntVar(&opts.shards, "shards", 4, "number of build/probe shards (see the shard package)")
	flags.IntVar(&opts.limit, "limit", 1<<30, "per-shard soft cap passed to ProbeParallel")
	flags.BoolVar(&opts.markMatches, "mark-matches", false, "mark matched keys and report unmatched afterwards")
	flags.Int64Var(&opts.seed, "seed", 1, "PRNG seed")
	flags.StringVar(&opts.cpuProfile, "cpu-profile", "", "write a CPU profile to this `dir`")
	flags.StringVar(&opts.memProfile, "mem-profile", "", "write a memory profile to this `dir`")

	if err := root.ExecuteContext(context.Background()); err != nil {
		if errors.IsFatal(err) {
			fmt.Fprintln(os.Stderr, "fatal:", err)
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

// runProfiled wraps run with optional CPU/memory profiling, mirroring
// the teacher's cmd/restic/global_debug.go: at most one profile kind is
// active per run, started before the benchmark and stopped once it
// returns.
func runProfiled(ctx context.Context, opts options) error {
	if opts.cpuProfile != "" && opts.memProfile != "" {
		return errors.Fatal("only one profile (cpu or mem) may be active at the same time")
	}

	var prof interface{ Stop() }
	switch {
	case opts.cpuProfile != "":
		prof = profile.Start(profile.Quiet, profile.NoShutdownHook, profile.CPUProfile, profile.ProfilePath(opts.cpuProfile))
	case opts.memProfile != "":
		prof = profile.Start(profile.Quiet, profile.NoShutdownHook, profile.MemProfile, profile.ProfilePath(opts.memProfile))
	}
	if prof != nil {
		defer prof.Stop()
	}

	return run(ctx, opts)
}

func run(ctx context.Context, opts options) error {
	rng := rand.New(rand.NewSource(opts.seed))

	keys := make([]string, opts.rows)
	distinct := opts.rows
	if opts.dupFraction > 0 {
		distinct = int(float64(opts.rows) * (1 - opts.dupFraction))
		if distinct < 1 {
			distinct = 1
		}
	}
	for i := range keys {
		keys[i] = fmt.Sprintf("k-%d", rng.Intn(distinct))
	}

	chunks := splitIntoChunks(keys, opts.chunks)

	pt := shard.New(opts.shards)
	buildStart := time.Now()
	if err := shard.BuildParallel(ctx, pt, chunks); err != nil {
		return err
	}
	buildElapsed := time.Since(buildStart)

	probeKeys := make([]string, opts.probes)
	for i := range probeKeys {
		probeKeys[i] = fmt.Sprintf("k-%d", rng.Intn(distinct))
	}
	hashes := make([]uint64, opts.probes)
	keyBytes := make([][]byte, opts.probes)
	for i, k := range probeKeys {
		h, kb := rowenc.EncodeRow(k)
		hashes[i] = h
		keyBytes[i] = kb
	}

	probeStart := time.Now()
	matches, _, matched, err := shard.ProbeParallel(ctx, pt, hashes, keyBytes, opts.markMatches, false, opts.limit)
	if err != nil {
		return err
	}
	probeElapsed := time.Since(probeStart)

	var unmatched []chunkid.ID
	if opts.markMatches {
		for i := 0; i < pt.NumShards(); i++ {
			var out []chunkid.ID
			pt.Shard(i).UnmarkedKeys(&out)
			unmatched = append(unmatched, out...)
		}
	}

	fmt.Printf("built   %10d rows in %8d chunks, %8d distinct keys over %d shards in %v\n",
		opts.rows, len(chunks), pt.NumKeys(), pt.NumShards(), buildElapsed)
	fmt.Printf("probed  %10d rows -> %10d pairs (%d matched) in %v\n",
		opts.probes, len(matches), matched, probeElapsed)
	if opts.markMatches {
		fmt.Printf("unmatched inner rows: %d\n", len(unmatched))
	}
	return nil
}

func splitIntoChunks(keys []string, numChunks int) []shard.Chunk {
	if numChunks < 1 {
		numChunks = 1
	}
	chunks := make([]shard.Chunk, 0, numChunks)
	perChunk := (len(keys) + numChunks - 1) / numChunks
	for start := 0; start < len(keys); start += perChunk {
		end := start + perChunk
		if end > len(keys) {
			end = len(keys)
		}
		slice := keys[start:end]
		hashes := make([]uint64, len(slice))
		keyBytes := make([][]byte, len(slice))
		for i, k := range slice {
			h, kb := rowenc.EncodeRow(k)
			hashes[i] = h
			keyBytes[i] = kb
		}
		chunks = append(chunks, shard.Chunk{Hashes: hashes, Keys: keyBytes})
	}
	return chunks
}
