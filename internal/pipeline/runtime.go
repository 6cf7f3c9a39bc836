package pipeline

import (
	"os"
	"strconv"

	"irpfetl/internal/config"
)

// runtimeConfig is the resolved concurrency and batching configuration
// for one run. Values come from the pipeline spec with environment
// variable fallbacks (12-factor style).
type runtimeConfig struct {
	workers    int // extract workers per input
	shards     int // group-by shards
	batchSize  int
	bufferSize int
}

func newRuntime(spec config.Pipeline) runtimeConfig {
	return runtimeConfig{
		workers:    pickInt(spec.Runtime.ExtractWorkers, getenvInt("IRPF_ETL_WORKERS", 4)),
		shards:     pickInt(spec.Runtime.Shards, getenvInt("IRPF_ETL_SHARDS", 4)),
		batchSize:  pickInt(spec.Runtime.BatchSize, getenvInt("IRPF_ETL_BATCH_SIZE", 10000)),
		bufferSize: pickInt(spec.Runtime.ChannelBuffer, getenvInt("IRPF_ETL_CH_BUFFER", 4096)),
	}
}

// getenvInt reads an int from environment, returning def when unset or
// invalid.
func getenvInt(k string, def int) int {
	if s := os.Getenv(k); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

// pickInt chooses the first positive value a, otherwise b.
func pickInt(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}
