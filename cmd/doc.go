// Package cmd implements the command-line interface of mvKV. The engine runs
// inside the process, so every command works on its own in-memory engine.
//
// The package is organized into several subpackages:
//
//   - shell: Interactive shell to run transactions by hand (begin, read, write, commit, ...)
//   - perf: Performance testing tool that runs transactional workloads against the engine
//   - util: Shared utilities for command-line processing, configuration and logging (internal use)
//
// See mvkv -help for a list of all commands.
package cmd
