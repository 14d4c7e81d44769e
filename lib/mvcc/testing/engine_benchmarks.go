package testing

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/ValentinKolb/mvKV/lib/mvcc"
)

// RunEngineBenchmarks runs all benchmarks for an IEngine implementation
func RunEngineBenchmarks(b *testing.B, name string, factory EngineFactory) {
	b.Run(name, func(b *testing.B) {
		b.Run("BeginCommit", func(b *testing.B) {
			benchmarkBeginCommit(b, factory(nil))
		})

		b.Run("WriteCommit", func(b *testing.B) {
			benchmarkWriteCommit(b, factory(nil))
		})

		b.Run("WriteAbort", func(b *testing.B) {
			benchmarkWriteAbort(b, factory(nil))
		})

		b.Run("Read", func(b *testing.B) {
			benchmarkRead(b, factory(nil))
		})

		b.Run("ReadLongChain", func(b *testing.B) {
			benchmarkReadLongChain(b, factory(&mvcc.Options[string]{MaxVersions: 1 << 20}))
		})

		b.Run("MixedUsage", func(b *testing.B) {
			benchmarkMixedUsage(b, factory(&mvcc.Options[string]{MaxVersions: 10}))
		})

		b.Run("GarbageCollect", func(b *testing.B) {
			benchmarkGarbageCollect(b, factory(&mvcc.Options[string]{MaxVersions: 4}))
		})
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// Benchmark for an empty transaction
func benchmarkBeginCommit(b *testing.B, engine mvcc.IEngine[string, string]) {
	b.Cleanup(func() {
		engine.Close()
	})

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			tx := engine.Begin()
			_ = engine.Commit(tx)
		}
	})
}

// Benchmark for a transaction with a single write
func benchmarkWriteCommit(b *testing.B, engine mvcc.IEngine[string, string]) {
	b.Cleanup(func() {
		engine.Close()
	})

	requireFeature(b, engine, mvcc.FeatureWrite)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			tx := engine.Begin()
			_ = engine.Write(tx, fmt.Sprintf("test-key-%d", counter%1000), fmt.Sprintf("test-value-%d", counter))
			_ = engine.Commit(tx)
			counter++
		}
	})
}

// Benchmark for the rollback path
func benchmarkWriteAbort(b *testing.B, engine mvcc.IEngine[string, string]) {
	b.Cleanup(func() {
		engine.Close()
	})

	requireFeature(b, engine, mvcc.FeatureWrite)

	// Prepare data, abort filters every chain
	for i := 0; i < 1000; i++ {
		writeCommitted(b, engine, fmt.Sprintf("test-key-%d", i), "value")
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tx := engine.Begin()
		_ = engine.Write(tx, fmt.Sprintf("test-key-%d", i%1000), "aborted")
		_ = engine.Abort(tx)
	}
}

// Benchmark for Read of committed keys
func benchmarkRead(b *testing.B, engine mvcc.IEngine[string, string]) {
	b.Cleanup(func() {
		engine.Close()
	})

	requireFeature(b, engine, mvcc.FeatureRead)

	// Prepare data
	numKeys := 10000
	tx := engine.Begin()
	for i := 0; i < numKeys; i++ {
		_ = engine.Write(tx, fmt.Sprintf("test-key-%d", i), fmt.Sprintf("test-value-%d", i))
	}
	_ = engine.Commit(tx)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		reader := engine.Begin()
		counter := 0
		for pb.Next() {
			_, _, _ = engine.Read(reader, fmt.Sprintf("test-key-%d", counter%numKeys))
			counter++
		}
	})
}

// Benchmark for Read of an old snapshot behind many newer versions
func benchmarkReadLongChain(b *testing.B, engine mvcc.IEngine[string, string]) {
	b.Cleanup(func() {
		engine.Close()
	})

	requireFeature(b, engine, mvcc.FeatureRead)

	writeCommitted(b, engine, "hot", "initial")
	reader := engine.Begin()
	for i := 0; i < 1000; i++ {
		writeCommitted(b, engine, "hot", fmt.Sprintf("value-%d", i))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = engine.Read(reader, "hot")
	}
}

// Benchmark for mixed usage patterns
func benchmarkMixedUsage(b *testing.B, engine mvcc.IEngine[string, string]) {
	b.Cleanup(func() {
		engine.Close()
	})

	requireFeature(b, engine, mvcc.FeatureRead|mvcc.FeatureWrite|mvcc.FeatureDelete)

	numKeys := 1000

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			tx := engine.Begin()
			key := fmt.Sprintf("test-key-%d", r.Intn(numKeys))

			op := r.Intn(100)
			switch {
			case op < 60: // 60% reads
				_, _, _ = engine.Read(tx, key)
			case op < 85: // 25% writes
				_ = engine.Write(tx, key, "value")
			case op < 95: // 10% deletes
				_ = engine.Delete(tx, key)
			default: // 5% gc
				engine.GarbageCollect()
			}

			if op%10 == 0 {
				_ = engine.Abort(tx)
			} else {
				_ = engine.Commit(tx)
			}
		}
	})
}

// Benchmark for GarbageCollect on chains above the limit
func benchmarkGarbageCollect(b *testing.B, engine mvcc.IEngine[string, string]) {
	b.Cleanup(func() {
		engine.Close()
	})

	requireFeature(b, engine, mvcc.FeatureGarbageCollect)

	for i := 0; i < b.N; i++ {
		b.StopTimer()
		for j := 0; j < 8; j++ {
			writeCommitted(b, engine, fmt.Sprintf("test-key-%d", i%100), "value")
		}
		b.StartTimer()

		engine.GarbageCollect()
	}
}
