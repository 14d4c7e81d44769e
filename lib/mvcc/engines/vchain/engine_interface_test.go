package vchain

import (
	"testing"

	"github.com/ValentinKolb/mvKV/lib/mvcc"
	mvcctesting "github.com/ValentinKolb/mvKV/lib/mvcc/testing"
)

func Test(t *testing.T) {
	mvcctesting.RunEngineTests(t, "VChain", func(opts *mvcc.Options[string]) mvcc.IEngine[string, string] {
		return New[string, string](opts)
	})
}

func Benchmark(b *testing.B) {
	mvcctesting.RunEngineBenchmarks(b, "VChain", func(opts *mvcc.Options[string]) mvcc.IEngine[string, string] {
		return New[string, string](opts)
	})
}
