// Package debug provides an environment-gated logger for the build
// paths (jointable.InsertKeyChunk and shard.BuildParallel). It is adapted from the teacher's internal/debug package:
// same CHUNKIDX_DEBUG/CHUNKIDX_DEBUG_LOG environment-variable gating,
// trimmed to the one entry point this repository's non-hot-path code
// needs. The probe loop itself never calls Log: at full concurrency
// that would violate the "no blocking, no allocation" guarantee the
// core gives its callers.
package debug

import (
	"fmt"
	"log"
	"os"
)

var opts struct {
	enabled bool
	logger  *log.Logger
}

func init() {
	debugfile := os.Getenv("CHUNKIDX_DEBUG_LOG")
	if debugfile == "" {
		opts.enabled = os.Getenv("CHUNKIDX_DEBUG") != ""
		if opts.enabled {
			opts.logger = log.New(os.Stderr, "chunkidx debug: ", log.LstdFlags)
		}
		return
	}

	f, err := os.OpenFile(debugfile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "chunkidx: unable to open debug log file: %v\n", err)
		return
	}

	opts.enabled = true
	opts.logger = log.New(f, "", log.LstdFlags)
}

// Log writes a formatted line when debugging is enabled via
// CHUNKIDX_DEBUG or CHUNKIDX_DEBUG_LOG. It is a no-op otherwise.
func Log(format string, args ...interface{}) {
	if !opts.enabled {
		return
	}
	opts.logger.Printf(format, args...)
}
