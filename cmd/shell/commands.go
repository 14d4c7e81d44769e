package shell

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/ValentinKolb/mvKV/lib/mvcc"
	"github.com/ValentinKolb/mvKV/lib/mvcc/engines/vchain"
	"github.com/jedib0t/go-pretty/table"
	"github.com/jedib0t/go-pretty/text"
)

// errExit is returned by Execute for the exit command
var errExit = errors.New("exit")

// command is a single shell command
type command struct {
	usage   string
	help    string
	minArgs int
	run     func(s *Shell, args []string) error
}

var commands = map[string]command{
	"begin": {
		usage: "begin",
		help:  "start a transaction and print its id",
		run: func(s *Shell, _ []string) error {
			id := s.engine.Begin()
			s.began = append(s.began, id)
			_, err := fmt.Fprintf(s.out, "%d\n", id)
			return err
		},
	},
	"read": {
		usage:   "read <tx> <key>",
		help:    "print the value of key visible to the transaction",
		minArgs: 2,
		run: func(s *Shell, args []string) error {
			id, err := parseTxID(args[0])
			if err != nil {
				return err
			}
			value, ok, err := s.engine.Read(id, args[1])
			if err != nil {
				return err
			}
			if !ok {
				_, err = fmt.Fprintln(s.out, "(not found)")
				return err
			}
			_, err = fmt.Fprintf(s.out, "%s\n", value)
			return err
		},
	},
	"write": {
		usage:   "write <tx> <key> <value>",
		help:    "write a new version of key (the value is the rest of the line)",
		minArgs: 3,
		run: func(s *Shell, args []string) error {
			id, err := parseTxID(args[0])
			if err != nil {
				return err
			}
			if err := s.engine.Write(id, args[1], []byte(strings.Join(args[2:], " "))); err != nil {
				return err
			}
			return s.ok()
		},
	},
	"delete": {
		usage:   "delete <tx> <key>",
		help:    "write a tombstone for key",
		minArgs: 2,
		run: func(s *Shell, args []string) error {
			id, err := parseTxID(args[0])
			if err != nil {
				return err
			}
			if err := s.engine.Delete(id, args[1]); err != nil {
				return err
			}
			return s.ok()
		},
	},
	"commit": {
		usage:   "commit <tx>",
		help:    "commit the transaction",
		minArgs: 1,
		run: func(s *Shell, args []string) error {
			id, err := parseTxID(args[0])
			if err != nil {
				return err
			}
			if err := s.engine.Commit(id); err != nil {
				return err
			}
			return s.ok()
		},
	},
	"abort": {
		usage:   "abort <tx>",
		help:    "abort the transaction and remove its versions",
		minArgs: 1,
		run: func(s *Shell, args []string) error {
			id, err := parseTxID(args[0])
			if err != nil {
				return err
			}
			if err := s.engine.Abort(id); err != nil {
				return err
			}
			return s.ok()
		},
	},
	"scan": {
		usage:   "scan <tx> <from> <to>",
		help:    "list the visible keys in [from, to)",
		minArgs: 3,
		run: func(s *Shell, args []string) error {
			id, err := parseTxID(args[0])
			if err != nil {
				return err
			}
			t := s.newTable()
			t.AppendHeader(table.Row{"key", "value"})
			err = s.engine.Scan(id, args[1], args[2], func(key string, value []byte) bool {
				t.AppendRow(table.Row{key, string(value)})
				return true
			})
			if err != nil {
				return err
			}
			t.Render()
			return nil
		},
	},
	"gc": {
		usage: "gc",
		help:  "run the garbage collector",
		run: func(s *Shell, _ []string) error {
			removed := s.engine.GarbageCollect()
			_, err := fmt.Fprintf(s.out, "removed %d versions\n", removed)
			return err
		},
	},
	"txns": {
		usage: "txns",
		help:  "list the transactions started in this shell",
		run: func(s *Shell, _ []string) error {
			t := s.newTable()
			t.AppendHeader(table.Row{"id", "state"})
			for _, id := range s.began {
				state, ok := s.engine.TransactionState(id)
				if !ok {
					continue
				}
				t.AppendRow(table.Row{id, state})
			}
			t.Render()
			return nil
		},
	},
	"info": {
		usage: "info",
		help:  "print engine statistics",
		run: func(s *Shell, _ []string) error {
			info := s.engine.GetInfo()
			t := s.newTable()
			t.AppendHeader(table.Row{"field", "value"})
			t.AppendRows([]table.Row{
				{"engine", info.EngineType},
				{"write index", info.WriteIndex},
				{"versions", info.VersionCount},
				{"keys", info.KeyCount},
				{"active transactions", info.ActiveTransactions},
				{"total transactions", info.TotalTransactions},
				{"max versions", info.MaxVersions},
				{"chain length (mean)", fmt.Sprintf("%.2f", info.ChainLengths.Mean)},
				{"chain length (max)", info.ChainLengths.Max},
				{"chain length (p99)", info.ChainLengthP99},
			})
			t.Render()
			return nil
		},
	},
	"stats": {
		usage: "stats",
		help:  "print the engine metrics in Prometheus text format",
		run: func(s *Shell, _ []string) error {
			s.engine.WritePrometheus(s.out)
			return nil
		},
	},
}

func init() {
	// help lists commands, so it is added after the map is initialized
	commands["help"] = command{
		usage: "help",
		help:  "print this help",
		run:   runHelp,
	}
}

func runHelp(s *Shell, _ []string) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	t := s.newTable()
	t.AppendHeader(table.Row{"command", "description"})
	for _, name := range names {
		t.AppendRow(table.Row{commands[name].usage, commands[name].help})
	}
	t.AppendRow(table.Row{"exit", "leave the shell"})
	t.Render()
	return nil
}

// --------------------------------------------------------------------------
// Shell
// --------------------------------------------------------------------------

// Shell interprets shell commands against an engine
type Shell struct {
	engine *vchain.Engine[string, []byte]
	out    io.Writer
	began  []mvcc.TransactionID
}

// NewShell creates a shell that writes its output to out
func NewShell(engine *vchain.Engine[string, []byte], out io.Writer) *Shell {
	return &Shell{
		engine: engine,
		out:    out,
	}
}

// Execute runs a single command line. Empty lines are ignored.
// Returns errExit if the line is the exit command.
func (s *Shell) Execute(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	name := strings.ToLower(fields[0])
	if name == "exit" || name == "quit" {
		return errExit
	}

	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q (see help)", fields[0])
	}

	args := fields[1:]
	if len(args) < cmd.minArgs {
		return fmt.Errorf("usage: %s", cmd.usage)
	}

	return cmd.run(s, args)
}

func (s *Shell) ok() error {
	_, err := fmt.Fprintln(s.out, "OK")
	return err
}

func (s *Shell) newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(s.out)

	// Don't uppercase the header values.
	t.Style().Format.Header = text.FormatDefault
	return t
}

func parseTxID(s string) (mvcc.TransactionID, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid transaction id %q", s)
	}
	return mvcc.TransactionID(id), nil
}
