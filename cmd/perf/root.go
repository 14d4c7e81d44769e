package perf

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/mvKV/cmd/util"
	"github.com/ValentinKolb/mvKV/lib/mvcc"
	"github.com/ValentinKolb/mvKV/lib/mvcc/engines/vchain"
	"github.com/lni/dragonboat/v4/logger"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	plog = logger.GetLogger("perf")

	PerfCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for the engine",
		Long:    "Run transactional workloads against a new in-memory engine and report throughput and latency per transaction.",
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix  = "__test"
	perfNumThreads = 10
	perfKeySpread  = 100
	perfOpsPerTxn  = 4
	perfSkip       = make([]string, 0)
)

// workloads lists the tests in the order they run
var workloads = []workload{
	{"write", benchWrite},
	{"read", benchRead},
	{"read-old", benchReadOld},
	{"mixed", benchMixed},
	{"abort", benchAbort},
	{"gc", benchGC},
}

type workload struct {
	name string
	fn   func(b *testing.B, engine *vchain.Engine[string, []byte], timer gometrics.Timer)
}

func init() {
	// add flags
	key := "skip"
	PerfCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. write,gc)"))
	key = "threads"
	PerfCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "keys"
	PerfCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "ops-per-txn"
	PerfCmd.Flags().Int(key, 4, util.WrapString("Number of reads and writes per transaction in the mixed test"))
	key = "csv"
	PerfCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(_ *cobra.Command, _ []string) error {
	// Read the configuration from the command line flags and environment variables
	perfKeySpread = viper.GetInt("keys")
	perfNumThreads = viper.GetInt("threads")
	perfOpsPerTxn = viper.GetInt("ops-per-txn")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	if perfKeySpread < 1 || perfNumThreads < 1 || perfOpsPerTxn < 1 {
		return fmt.Errorf("keys, threads and ops-per-txn must be at least 1")
	}
	return nil
}

// result is the outcome of one workload
type result struct {
	bench testing.BenchmarkResult
	timer gometrics.Timer
}

func run(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for mvKV")

	opts := util.GetEngineOptions()

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("Max versions: %d\n", opts.MaxVersions)
	fmt.Printf("GC interval: %s\n", opts.GCInterval)
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Printf("Keys: %d\n", perfKeySpread)
	fmt.Printf("Ops per txn: %d\n", perfOpsPerTxn)
	fmt.Println()

	fmt.Println("starting tests...")

	registry := gometrics.NewRegistry()
	results := make(map[string]result)

	for _, w := range workloads {
		results[w.name] = runWorkload(w, opts, registry)
		printResult(w.name, results[w.name])
	}

	// Write results to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, opts); err != nil {
			return fmt.Errorf("failed to export results to CSV: %w", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// runWorkload benchmarks w on a new engine. testing.Benchmark calls the
// closure once per b.N it tries, so the timer is replaced on every call and
// only holds the latencies of the final run.
func runWorkload(w workload, opts *mvcc.Options[[]byte], registry gometrics.Registry) result {
	var timer gometrics.Timer

	bench := testing.Benchmark(func(b *testing.B) {
		registry.Unregister(w.name)
		timer = gometrics.GetOrRegisterTimer(w.name, registry)

		if shouldSkip(w.name) {
			return
		}

		engine := vchain.New[string, []byte](opts)
		b.Cleanup(func() {
			engine.Close()
		})

		w.fn(b, engine, timer)
	})

	return result{bench: bench, timer: timer}
}

// --------------------------------------------------------------------------
// Workloads
// --------------------------------------------------------------------------

// one write per transaction
func benchWrite(b *testing.B, engine *vchain.Engine[string, []byte], timer gometrics.Timer) {
	getKey, _ := getKeys("write")
	value := []byte("test")

	b.SetParallelism(perfNumThreads)
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			start := time.Now()
			tx := engine.Begin()
			if err := engine.Write(tx, getKey(counter), value); err != nil {
				plog.Errorf("(write) - error writing key: %v", err)
			}
			if err := engine.Commit(tx); err != nil {
				plog.Errorf("(write) - error committing: %v", err)
			}
			timer.UpdateSince(start)
			counter++
		}
	})
}

// one read per transaction on committed keys
func benchRead(b *testing.B, engine *vchain.Engine[string, []byte], timer gometrics.Timer) {
	getKey, iter := getKeys("read")
	seed(engine, iter)

	b.SetParallelism(perfNumThreads)
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			start := time.Now()
			tx := engine.Begin()
			if _, _, err := engine.Read(tx, getKey(counter)); err != nil {
				plog.Errorf("(read) - error reading key: %v", err)
			}
			_ = engine.Commit(tx)
			timer.UpdateSince(start)
			counter++
		}
	})
}

// reads of a long-lived snapshot while writers add newer versions
func benchReadOld(b *testing.B, engine *vchain.Engine[string, []byte], timer gometrics.Timer) {
	getKey, iter := getKeys("read-old")
	seed(engine, iter)

	reader := engine.Begin()
	defer engine.Commit(reader)

	b.SetParallelism(perfNumThreads)
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			start := time.Now()
			if counter%2 == 0 {
				tx := engine.Begin()
				_ = engine.Write(tx, getKey(counter), []byte("newer"))
				_ = engine.Commit(tx)
			} else if _, _, err := engine.Read(reader, getKey(counter)); err != nil {
				plog.Errorf("(read-old) - error reading key: %v", err)
			}
			timer.UpdateSince(start)
			counter++
		}
	})
}

// transactions with perfOpsPerTxn random reads and writes
func benchMixed(b *testing.B, engine *vchain.Engine[string, []byte], timer gometrics.Timer) {
	getKey, iter := getKeys("mixed")
	seed(engine, iter)
	value := []byte("test")

	b.SetParallelism(perfNumThreads)
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			start := time.Now()
			tx := engine.Begin()
			for i := 0; i < perfOpsPerTxn; i++ {
				key := getKey(r.Intn(perfKeySpread))
				var err error
				switch r.Intn(4) {
				case 0, 1: // read
					_, _, err = engine.Read(tx, key)
				case 2: // write
					err = engine.Write(tx, key, value)
				case 3: // delete
					err = engine.Delete(tx, key)
				}
				if err != nil {
					plog.Errorf("(mixed) - error performing operation: %v", err)
				}
			}
			_ = engine.Commit(tx)
			timer.UpdateSince(start)
		}
	})
}

// one write per transaction, rolled back
func benchAbort(b *testing.B, engine *vchain.Engine[string, []byte], timer gometrics.Timer) {
	getKey, iter := getKeys("abort")
	seed(engine, iter)
	value := []byte("test")

	b.SetParallelism(perfNumThreads)
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			start := time.Now()
			tx := engine.Begin()
			_ = engine.Write(tx, getKey(counter), value)
			if err := engine.Abort(tx); err != nil {
				plog.Errorf("(abort) - error aborting: %v", err)
			}
			timer.UpdateSince(start)
			counter++
		}
	})
}

// a collection run after every key got more versions than the limit. ns/op
// includes writing the versions, the timer only covers GarbageCollect.
func benchGC(b *testing.B, engine *vchain.Engine[string, []byte], timer gometrics.Timer) {
	_, iter := getKeys("gc")
	value := []byte("test")

	for i := 0; i < b.N; i++ {
		tx := engine.Begin()
		iter(func(k string) {
			for v := 0; v <= engine.MaxVersions(); v++ {
				_ = engine.Write(tx, k, value)
			}
		})
		_ = engine.Commit(tx)

		start := time.Now()
		engine.GarbageCollect()
		timer.UpdateSince(start)
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// creates an array of test keys and functions to work with them
func getKeys(prefix string) (func(int) string, func(func(string))) {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}

	// Function to get a key by index (with wraparound)
	getKey := func(i int) string {
		return keys[i%perfKeySpread]
	}

	// Function to iterate over all keys and apply a function to each
	iterateKeys := func(fn func(string)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

// seed writes all keys in one committed transaction
func seed(engine mvcc.IEngine[string, []byte], iter func(func(string))) {
	tx := engine.Begin()
	iter(func(k string) {
		if err := engine.Write(tx, k, []byte("test")); err != nil {
			plog.Errorf("(seed) - error writing key: %v", err)
		}
	})
	_ = engine.Commit(tx)
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, r result) {
	if r.bench.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(r.bench.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)
	p := r.timer.Percentiles([]float64{0.5, 0.99})

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\tp50 %s\tp99 %s\n",
		test, nsPerOp, time.Duration(nsPerOp), opsPerSec, time.Duration(p[0]), time.Duration(p[1]))
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]result, opts *mvcc.Options[[]byte]) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "P50Ns", "P99Ns", "Skipped",
		"MaxVersions", "GCInterval", "Threads", "Keys Count", "OpsPerTxn",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	// Write test results in run order
	for _, w := range workloads {
		r, ok := results[w.name]
		if !ok {
			continue
		}
		if err := writer.Write(csvRow(w.name, r, opts)); err != nil {
			return fmt.Errorf("failed to write row for test %s: %w", w.name, err)
		}
	}

	return nil
}

func csvRow(test string, r result, opts *mvcc.Options[[]byte]) []string {
	var nsPerOp, opsPerSec float64
	skipped := "true"
	p := []float64{0, 0}

	if r.bench.NsPerOp() != 0 {
		skipped = "false"
		nsPerOp = math.Max(float64(r.bench.NsPerOp()), 1)
		opsPerSec = 1.0 / (nsPerOp / 1e9)
		p = r.timer.Percentiles([]float64{0.5, 0.99})
	}

	return []string{
		test,
		fmt.Sprintf("%.0f", nsPerOp),
		time.Duration(nsPerOp).String(),
		fmt.Sprintf("%.0f", opsPerSec),
		fmt.Sprintf("%.0f", p[0]),
		fmt.Sprintf("%.0f", p[1]),
		skipped,
		strconv.Itoa(opts.MaxVersions),
		opts.GCInterval.String(),
		strconv.Itoa(perfNumThreads),
		strconv.Itoa(perfKeySpread),
		strconv.Itoa(perfOpsPerTxn),
	}
}
