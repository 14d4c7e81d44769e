package shell

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ValentinKolb/mvKV/cmd/util"
	"github.com/ValentinKolb/mvKV/lib/mvcc/engines/vchain"
	"github.com/chzyer/readline"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	prompt = "mvkv> "
	splash = `mvKV shell
Type "help" for a list of commands and "exit" to quit.
`
)

var (
	plog = logger.GetLogger("shell")

	ShellCmd = &cobra.Command{
		Use:   "shell",
		Short: "Interactive shell for an in-memory engine",
		Long: `Start an interactive shell on a new in-memory engine. Transactions are
started with begin and referenced by their id in all other commands, so
several transactions can be interleaved by hand:

  mvkv> begin
  1
  mvkv> write 1 greeting hello
  OK
  mvkv> commit 1
  OK`,
		RunE: run,
	}
)

func init() {
	key := "history"
	ShellCmd.Flags().String(key, defaultHistoryPath(), util.WrapString("Path of the command history file (empty disables the history)"))
}

func run(_ *cobra.Command, _ []string) error {
	opts := util.GetEngineOptions()
	engine := vchain.New[string, []byte](opts)
	defer engine.Close()

	plog.Debugf("engine created (max versions %d, gc interval %s)", engine.MaxVersions(), opts.GCInterval)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     viper.GetString("history"),
		HistoryLimit:    10000,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("getting readline: %w", err)
	}
	defer rl.Close()

	fmt.Print(splash)

	return loop(rl, NewShell(engine, rl.Stdout()))
}

// loop reads lines until exit or EOF
func loop(rl *readline.Instance, shell *Shell) error {
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading line: %w", err)
		}

		err = shell.Execute(line)
		if errors.Is(err, errExit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(rl.Stderr(), "Error: %v\n", err)
		}
	}
}

// defaultHistoryPath returns ~/.mvkv_history or an empty path if the home
// directory is unknown
func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".mvkv_history")
}
