package workers

import (
	"os"
	"runtime"
	"strconv"
)

// Environment variables that override the computed counts
const (
	EncoderWorkersEnv = "ENCODER_WORKERS"
	IOWorkersEnv      = "IO_WORKERS"
)

// Count returns the number of workers for a task type.
// It respects container CPU limits via GOMAXPROCS.
//
// The multiplier adjusts for task characteristics:
//   - 1.0 for CPU-bound tasks such as ffmpeg encodes
//   - 2.0 for I/O-bound tasks such as downloads and uploads
//
// A positive integer in the envKey variable replaces the computed value.
// limit caps the result; use 0 for no limit.
func Count(envKey string, multiplier float64, limit int) int {
	if envKey != "" {
		if override := os.Getenv(envKey); override != "" {
			if count, err := strconv.Atoi(override); err == nil && count > 0 {
				if limit > 0 && count > limit {
					return limit
				}
				return count
			}
		}
	}

	available := runtime.GOMAXPROCS(0)

	workers := int(float64(available) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// ForCPU returns the encoder pool size (1 per CPU, ENCODER_WORKERS overrides)
func ForCPU(limit int) int {
	return Count(EncoderWorkersEnv, 1.0, limit)
}

// ForIO returns the worker count for I/O-bound stages (2 per CPU, IO_WORKERS overrides)
func ForIO(limit int) int {
	return Count(IOWorkersEnv, 2.0, limit)
}
