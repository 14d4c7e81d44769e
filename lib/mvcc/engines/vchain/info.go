package vchain

import (
	"cmp"
	"io"

	"github.com/ValentinKolb/mvKV/lib/mvcc"
	"github.com/ValentinKolb/mvKV/lib/mvcc/engines/vchain/internal"
	"github.com/ValentinKolb/mvKV/lib/mvcc/util"
	"github.com/VictoriaMetrics/metrics"
)

// --------------------------------------------------------------------------
// Metrics
// --------------------------------------------------------------------------

// engineMetrics holds the metrics of one engine instance
type engineMetrics struct {
	set *metrics.Set

	begins     *metrics.Counter
	commits    *metrics.Counter
	aborts     *metrics.Counter
	writes     *metrics.Counter
	deletes    *metrics.Counter
	reads      *metrics.Counter
	gcRuns     *metrics.Counter
	gcRemoved  *metrics.Counter
	gcDuration *metrics.Histogram
}

// newEngineMetrics registers the engine metrics in set (a new set if nil)
func newEngineMetrics[K cmp.Ordered, V any](e *Engine[K, V], set *metrics.Set) *engineMetrics {
	if set == nil {
		set = metrics.NewSet()
	}

	m := &engineMetrics{
		set:        set,
		begins:     set.NewCounter("mvcc_txn_begin_total"),
		commits:    set.NewCounter("mvcc_txn_commit_total"),
		aborts:     set.NewCounter("mvcc_txn_abort_total"),
		writes:     set.NewCounter("mvcc_write_total"),
		deletes:    set.NewCounter("mvcc_delete_total"),
		reads:      set.NewCounter("mvcc_read_total"),
		gcRuns:     set.NewCounter("mvcc_gc_runs_total"),
		gcRemoved:  set.NewCounter("mvcc_gc_removed_total"),
		gcDuration: set.NewHistogram("mvcc_gc_duration_seconds"),
	}

	set.NewGauge("mvcc_versions", func() float64 {
		return float64(e.VersionCount())
	})
	set.NewGauge("mvcc_active_transactions", func() float64 {
		return float64(e.ActiveTransactionCount())
	})
	set.NewGauge("mvcc_write_index", func() float64 {
		return float64(e.WriteIdx())
	})

	return m
}

// WritePrometheus writes the engine metrics in Prometheus text format to w.
func (e *Engine[K, V]) WritePrometheus(w io.Writer) {
	e.metrics.set.WritePrometheus(w)
}

// --------------------------------------------------------------------------
// Features and Metadata
// --------------------------------------------------------------------------

const supportedFeatures = mvcc.FeatureRead |
	mvcc.FeatureWrite |
	mvcc.FeatureDelete |
	mvcc.FeatureScan |
	mvcc.FeatureGarbageCollect |
	mvcc.FeatureBackgroundGC |
	mvcc.FeatureSnapshot

// SupportsFeature checks if this implementation supports a specific engine feature
func (e *Engine[K, V]) SupportsFeature(feature mvcc.Feature) bool {
	return supportedFeatures&feature == feature
}

// GetInfo returns statistics about the engine
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (e *Engine[K, V]) GetInfo() mvcc.EngineInfo {
	histogram := util.NewHistogram()

	e.mu.RLock()
	chainLengths := make([]float64, 0, e.data.Len())
	e.data.Ascend(func(c *internal.Chain[K, V]) bool {
		chainLengths = append(chainLengths, float64(c.Len()))
		histogram.AddSample(c.Len())
		return true
	})
	versionCount := e.versionCount
	e.mu.RUnlock()

	totalTransactions := e.txns.Size()

	meta := &struct {
		GCRunning     bool   `json:"gc_running"`
		GCInterval    string `json:"gc_interval"`
		GCFloor       uint64 `json:"gc_floor"`
		LastTxID      uint64 `json:"last_tx_id"`
		ValuesCloned  bool   `json:"values_cloned"`
		AverageLength int    `json:"average_chain_length"`
		ChainSamples  int64  `json:"chain_samples"`
	}{
		GCRunning:     e.gcIsRunning.Load(),
		GCInterval:    e.opts.GCInterval.String(),
		GCFloor:       e.gcFloor(),
		LastTxID:      e.txIdx.Load(),
		ValuesCloned:  e.opts.CloneValue != nil,
		AverageLength: histogram.Average(),
		ChainSamples:  histogram.Count(),
	}

	features := []mvcc.Feature{
		mvcc.FeatureRead, mvcc.FeatureWrite, mvcc.FeatureDelete,
		mvcc.FeatureScan,
		mvcc.FeatureGarbageCollect, mvcc.FeatureBackgroundGC,
		mvcc.FeatureSnapshot,
	}

	return mvcc.EngineInfo{
		EngineType:         mvcc.ImplVChain,
		WriteIndex:         e.WriteIdx(),
		VersionCount:       versionCount,
		KeyCount:           len(chainLengths),
		ActiveTransactions: e.ActiveTransactionCount(),
		TotalTransactions:  totalTransactions,
		MaxVersions:        e.opts.MaxVersions,
		ChainLengths:       util.NewDistributionStats(chainLengths),
		ChainLengthP99:     histogram.Percentile(99),
		SupportedFeatures:  features,
		Metadata:           meta,
	}
}
