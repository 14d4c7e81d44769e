package perf

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ValentinKolb/mvKV/lib/mvcc"
	"github.com/ValentinKolb/mvKV/lib/mvcc/engines/vchain"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetKeys(t *testing.T) {
	perfKeySpread = 3

	getKey, iter := getKeys("unit")
	assert.Equal(t, "__test-unit-0", getKey(0))
	assert.Equal(t, "__test-unit-1", getKey(4))

	var keys []string
	iter(func(k string) {
		keys = append(keys, k)
	})
	assert.Equal(t, []string{"__test-unit-0", "__test-unit-1", "__test-unit-2"}, keys)
}

func TestShouldSkip(t *testing.T) {
	perfSkip = []string{"write", "gc"}
	defer func() { perfSkip = nil }()

	assert.True(t, shouldSkip("gc"))
	assert.False(t, shouldSkip("read"))
}

func TestSeed(t *testing.T) {
	perfKeySpread = 5
	engine := vchain.Default[string, []byte]()
	defer engine.Close()

	_, iter := getKeys("seed")
	seed(engine, iter)

	assert.Equal(t, 5, engine.KeyCount())
	assert.Equal(t, 0, engine.ActiveTransactionCount())
}

func TestWorkloads(t *testing.T) {
	perfKeySpread = 10
	perfNumThreads = 2
	perfOpsPerTxn = 3

	for _, w := range workloads {
		t.Run(w.name, func(t *testing.T) {
			engine := vchain.New[string, []byte](&mvcc.Options[[]byte]{MaxVersions: 2})
			defer engine.Close()

			timer := gometrics.NewTimer()
			res := testing.Benchmark(func(b *testing.B) {
				w.fn(b, engine, timer)
			})

			assert.Greater(t, res.N, 0)
			assert.Greater(t, timer.Count(), int64(0))
			assert.Equal(t, 0, engine.ActiveTransactionCount())
		})
	}
}

func TestRunWorkloadKeepsFinalRun(t *testing.T) {
	perfKeySpread = 10
	perfNumThreads = 2

	registry := gometrics.NewRegistry()
	opts := &mvcc.Options[[]byte]{MaxVersions: 2}

	// both workloads update the timer exactly once per iteration
	for _, name := range []string{"write", "gc"} {
		t.Run(name, func(t *testing.T) {
			var w workload
			for _, candidate := range workloads {
				if candidate.name == name {
					w = candidate
				}
			}
			require.NotNil(t, w.fn)

			res := runWorkload(w, opts, registry)

			require.Greater(t, res.bench.N, 1)
			assert.Equal(t, int64(res.bench.N), res.timer.Count())
			assert.Same(t, res.timer, registry.Get(name))
		})
	}
}

func TestRunWorkloadSkipped(t *testing.T) {
	perfSkip = []string{"gc"}
	defer func() { perfSkip = nil }()

	res := runWorkload(workloads[len(workloads)-1], &mvcc.Options[[]byte]{MaxVersions: 2}, gometrics.NewRegistry())
	assert.Equal(t, int64(0), res.timer.Count())
	assert.Equal(t, int64(0), res.bench.NsPerOp())
}

func TestWriteResultsToCSV(t *testing.T) {
	timer := gometrics.NewTimer()
	timer.Update(time.Millisecond)

	results := map[string]result{
		"write": {bench: testing.BenchmarkResult{N: 10, T: 10 * time.Microsecond}, timer: timer},
		"gc":    {bench: testing.BenchmarkResult{}, timer: gometrics.NewTimer()},
	}

	path := filepath.Join(t.TempDir(), "results.csv")
	require.NoError(t, writeResultsToCSV(path, results, &mvcc.Options[[]byte]{MaxVersions: 7}))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "Test", rows[0][0])
	assert.Equal(t, "write", rows[1][0])
	assert.Equal(t, "1000", rows[1][1])
	assert.Equal(t, "false", rows[1][6])
	assert.Equal(t, "7", rows[1][7])
	assert.Equal(t, "gc", rows[2][0])
	assert.Equal(t, "true", rows[2][6])
}
