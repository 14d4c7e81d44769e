package vchain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/mvKV/lib/mvcc"
	"github.com/ValentinKolb/mvKV/lib/mvcc/engines/vchain/internal"
	"github.com/VictoriaMetrics/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commitWrite[V any](t *testing.T, e *Engine[string, V], key string, value V) {
	t.Helper()
	tx := e.Begin()
	require.NoError(t, e.Write(tx, key, value))
	require.NoError(t, e.Commit(tx))
}

func TestDefaultOptions(t *testing.T) {
	e := New[string, int](&mvcc.Options[int]{MaxVersions: 0})
	defer e.Close()

	assert.Equal(t, mvcc.DefaultMaxVersions, e.MaxVersions())
	assert.False(t, e.gcIsRunning.Load())

	d := Default[int, int]()
	defer d.Close()
	assert.Equal(t, mvcc.DefaultMaxVersions, d.MaxVersions())
}

func TestFirstIDs(t *testing.T) {
	e := Default[string, string]()
	defer e.Close()

	tx := e.Begin()
	assert.Equal(t, mvcc.TransactionID(1), tx)
	require.NoError(t, e.Write(tx, "key", "value"))
	assert.Equal(t, uint64(1), e.WriteIdx())
}

func TestChainOrderUnderConcurrentWrites(t *testing.T) {
	e := Default[string, int]()
	defer e.Close()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				tx := e.Begin()
				assert.NoError(t, e.Write(tx, "hot", i))
				assert.NoError(t, e.Commit(tx))
			}
		}()
	}
	wg.Wait()

	chain, ok := e.data.Get(internal.NewChain[string, int]("hot"))
	require.True(t, ok)
	require.Equal(t, 8*200, chain.Len())
	for i := 1; i < chain.Len(); i++ {
		assert.Less(t, chain.Entries[i-1].Version, chain.Entries[i].Version)
	}
}

func TestAbortDropsEmptyChains(t *testing.T) {
	e := Default[string, string]()
	defer e.Close()

	commitWrite(t, e, "kept", "value")

	tx := e.Begin()
	for i := 0; i < 10; i++ {
		require.NoError(t, e.Write(tx, fmt.Sprintf("key-%d", i), "value"))
	}
	require.NoError(t, e.Delete(tx, "kept"))
	assert.Equal(t, 11, e.KeyCount())

	require.NoError(t, e.Abort(tx))
	assert.Equal(t, 1, e.KeyCount())
	assert.Equal(t, 1, e.VersionCount())
}

func TestGCKeepsNewestBelowFloor(t *testing.T) {
	e := New[string, string](&mvcc.Options[string]{MaxVersions: 1})
	defer e.Close()

	for i := 0; i < 3; i++ {
		commitWrite(t, e, "key", fmt.Sprintf("v%d", i))
	}

	// floor 3: version 2 is the newest below the floor and is kept
	assert.Equal(t, 1, e.GarbageCollect())
	assert.Equal(t, 2, e.VersionCount())
	assert.Equal(t, 1, e.KeyCount())

	chain, ok := e.data.Get(internal.NewChain[string, string]("key"))
	require.True(t, ok)
	assert.Equal(t, uint64(2), chain.Entries[0].Version)
}

func TestCloneValues(t *testing.T) {
	e := New[string, []byte](&mvcc.Options[[]byte]{CloneValue: mvcc.CloneBytes})
	defer e.Close()

	buf := []byte("value")
	commitWrite(t, e, "key", buf)
	buf[0] = 'X'

	tx := e.Begin()
	got, ok, err := e.Read(tx, "key")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("value"), got)

	got[0] = 'Y'
	again, _, _ := e.Read(tx, "key")
	assert.Equal(t, []byte("value"), again)

	clone := e.Clone()
	defer clone.Close()
	fromClone, ok, err := clone.Read(tx, "key")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("value"), fromClone)
}

func TestCloneIndependence(t *testing.T) {
	e := Default[string, string]()
	defer e.Close()

	commitWrite(t, e, "a", "1")
	open := e.Begin()
	commitWrite(t, e, "b", "2")

	clone := e.Clone()
	defer clone.Close()

	assert.Equal(t, e.VersionCount(), clone.VersionCount())
	assert.Equal(t, e.KeyCount(), clone.KeyCount())
	assert.Equal(t, e.ActiveTransactionCount(), clone.ActiveTransactionCount())
	assert.Equal(t, e.gcFloor(), clone.gcFloor())

	// id allocation continues in both engines from the same point
	assert.Equal(t, e.Begin(), clone.Begin())

	require.NoError(t, clone.Abort(open))
	state, _ := e.TransactionState(open)
	assert.Equal(t, mvcc.TxActive, state)

	commitWrite(t, clone, "c", "3")
	assert.Equal(t, 3, clone.KeyCount())
	assert.Equal(t, 2, e.KeyCount())
}

func TestBackgroundGCTicker(t *testing.T) {
	e := New[string, string](&mvcc.Options[string]{
		MaxVersions: 2,
		GCInterval:  10 * time.Millisecond,
	})
	defer e.Close()

	require.True(t, e.gcIsRunning.Load())

	for i := 0; i < 10; i++ {
		commitWrite(t, e, "key", fmt.Sprintf("v%d", i))
	}

	// without active transactions the floor is the write index: versions 9 and 10 remain
	require.Eventually(t, func() bool {
		return e.VersionCount() == 2
	}, 2*time.Second, 5*time.Millisecond)

	tx := e.Begin()
	value, ok, err := e.Read(tx, "key")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v9", value)
}

func TestBackgroundGCPressure(t *testing.T) {
	e := New[string, string](&mvcc.Options[string]{
		MaxVersions: 2,
		GCInterval:  time.Hour, // only pressure events trigger a run
	})
	defer e.Close()

	for i := 0; i < 10; i++ {
		commitWrite(t, e, "key", fmt.Sprintf("v%d", i))
	}

	// the last run may have seen the writer of version 10 as active
	require.Eventually(t, func() bool {
		return e.VersionCount() <= 3
	}, 2*time.Second, 5*time.Millisecond)
}

func TestCloseStopsGC(t *testing.T) {
	e := New[string, string](&mvcc.Options[string]{
		MaxVersions: 1,
		GCInterval:  time.Millisecond,
	})

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	assert.False(t, e.gcIsRunning.Load())

	// writes after close do not block on the stopped collector
	for i := 0; i < 5; i++ {
		commitWrite(t, e, "key", "value")
	}
	assert.Equal(t, 5, e.VersionCount())
}

func TestScanCallbackMayUseEngine(t *testing.T) {
	e := Default[string, string]()
	defer e.Close()

	for _, key := range []string{"a", "b", "c"} {
		commitWrite(t, e, key, strings.ToUpper(key))
	}

	tx := e.Begin()
	var seen []string
	err := e.Scan(tx, "a", "z", func(key, value string) bool {
		// would deadlock if the callback ran under the index lock
		require.NoError(t, e.Write(tx, key+"-copy", value))
		seen = append(seen, key)
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, seen)
	assert.Equal(t, 6, e.KeyCount())
}

func TestMetrics(t *testing.T) {
	set := metrics.NewSet()
	e := New[string, string](&mvcc.Options[string]{MaxVersions: 1, Metrics: set})
	defer e.Close()

	commitWrite(t, e, "key", "v1")
	commitWrite(t, e, "key", "v2")
	tx := e.Begin()
	require.NoError(t, e.Delete(tx, "key"))
	_, _, _ = e.Read(tx, "key")
	require.NoError(t, e.Abort(tx))
	e.GarbageCollect()

	var buf bytes.Buffer
	set.WritePrometheus(&buf)
	out := buf.String()

	for _, line := range []string{
		"mvcc_txn_begin_total 3",
		"mvcc_txn_commit_total 2",
		"mvcc_txn_abort_total 1",
		"mvcc_write_total 2",
		"mvcc_delete_total 1",
		"mvcc_read_total 1",
		"mvcc_gc_runs_total 1",
		"mvcc_gc_removed_total 1",
		"mvcc_versions 1",
		"mvcc_active_transactions 0",
		"mvcc_write_index 3",
	} {
		assert.Contains(t, out, line)
	}

	// the engine writes the same set
	var own bytes.Buffer
	e.WritePrometheus(&own)
	assert.Contains(t, own.String(), "mvcc_txn_begin_total 3")
}

func TestGetInfo(t *testing.T) {
	e := New[string, string](&mvcc.Options[string]{MaxVersions: 7})
	defer e.Close()

	for i := 0; i < 3; i++ {
		commitWrite(t, e, "a", "value")
	}
	commitWrite(t, e, "b", "value")
	e.Begin()

	info := e.GetInfo()
	assert.Equal(t, mvcc.ImplVChain, info.EngineType)
	assert.Equal(t, uint64(4), info.WriteIndex)
	assert.Equal(t, 4, info.VersionCount)
	assert.Equal(t, 2, info.KeyCount)
	assert.Equal(t, 1, info.ActiveTransactions)
	assert.Equal(t, 5, info.TotalTransactions)
	assert.Equal(t, 7, info.MaxVersions)
	assert.Equal(t, float64(3), info.ChainLengths.Max)
	assert.Equal(t, float64(1), info.ChainLengths.Min)
	assert.Equal(t, 4, info.ChainLengthP99)
	assert.Len(t, info.SupportedFeatures, 7)
	require.NotNil(t, info.Metadata)

	meta, err := json.Marshal(info.Metadata)
	require.NoError(t, err)
	assert.Contains(t, string(meta), `"chain_samples":2`)
	assert.Contains(t, string(meta), `"average_chain_length":2`)
}

func TestSupportsFeature(t *testing.T) {
	e := Default[string, string]()
	defer e.Close()

	assert.True(t, e.SupportsFeature(mvcc.FeatureRead|mvcc.FeatureWrite|mvcc.FeatureDelete))
	assert.True(t, e.SupportsFeature(mvcc.FeatureSnapshot))
	assert.True(t, e.SupportsFeature(mvcc.FeatureBackgroundGC))
}
