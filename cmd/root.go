package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/mvKV/cmd/perf"
	"github.com/ValentinKolb/mvKV/cmd/shell"
	"github.com/ValentinKolb/mvKV/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "mvkv",
		Short: "multi-version key-value engine",
		Long: fmt.Sprintf(`mvKV (v%s)

An in-process multi-version concurrency control (MVCC) key-value engine
written in Go. Readers see a consistent snapshot of the store while
writers append new versions without blocking them.

The configuration can be set via command line flags or environment
variables. The format of the environment variables is MVKV_<flag>
(e.g. MVKV_MAX_VERSIONS=10).`, Version),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return util.BindFlags(cmd)
		},
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of mvKV",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mvKV v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(shell.ShellCmd)
	RootCmd.AddCommand(perf.PerfCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	util.SetupEngineFlags(RootCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
