// Package testing provides standardised tests and benchmarks for
// engine implementations that satisfy the mvcc.IEngine interface.
//
// The package contains:
//   - testing: A conformance suite for the transaction lifecycle, the
//     visibility rule, rollback and garbage collection
//   - benchmark: Performance tests for common transaction patterns
//
// Every test gets a fresh engine from the factory. The factory receives the
// options the test needs (nil for the defaults) and must honour MaxVersions.
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func(opts *mvcc.Options[string]) mvcc.IEngine[string, string] {
//		return NewMyEngine[string, string](opts)
//	}
//
//	// Running the standard test suite
//	mvcctesting.RunEngineTests(t, "MyEngine", factory)
//
//	// Running performance benchmarks
//	mvcctesting.RunEngineBenchmarks(b, "MyEngine", factory)
package testing
