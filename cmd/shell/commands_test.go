package shell

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ValentinKolb/mvKV/lib/mvcc"
	"github.com/ValentinKolb/mvKV/lib/mvcc/engines/vchain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestShell(t *testing.T) (*Shell, *bytes.Buffer) {
	engine := vchain.New[string, []byte](&mvcc.Options[[]byte]{MaxVersions: 1, CloneValue: mvcc.CloneBytes})
	t.Cleanup(func() {
		engine.Close()
	})

	out := &bytes.Buffer{}
	return NewShell(engine, out), out
}

// run executes the lines and returns the output of the last one
func execLines(t *testing.T, s *Shell, out *bytes.Buffer, lines ...string) string {
	t.Helper()
	for _, line := range lines {
		out.Reset()
		require.NoError(t, s.Execute(line), line)
	}
	return out.String()
}

func TestShellTransaction(t *testing.T) {
	s, out := newTestShell(t)

	assert.Equal(t, "1\n", execLines(t, s, out, "begin"))
	assert.Equal(t, "OK\n", execLines(t, s, out, "write 1 greeting hello world"))
	assert.Equal(t, "OK\n", execLines(t, s, out, "commit 1"))

	assert.Equal(t, "2\n", execLines(t, s, out, "begin"))
	assert.Equal(t, "hello world\n", execLines(t, s, out, "read 2 greeting"))
	assert.Equal(t, "(not found)\n", execLines(t, s, out, "read 2 missing"))
}

func TestShellInterleaved(t *testing.T) {
	s, out := newTestShell(t)

	execLines(t, s, out, "begin", "write 1 key v1", "commit 1")

	// 2 keeps its snapshot while 3 writes
	execLines(t, s, out, "begin", "begin", "write 3 key v2", "commit 3")
	assert.Equal(t, "v1\n", execLines(t, s, out, "read 2 key"))

	execLines(t, s, out, "begin", "delete 4 key", "abort 4")
	execLines(t, s, out, "begin")
	assert.Equal(t, "v2\n", execLines(t, s, out, "read 5 key"))

	txns := execLines(t, s, out, "txns")
	assert.Contains(t, txns, "Committed")
	assert.Contains(t, txns, "Aborted")
	assert.Contains(t, txns, "Active")
}

func TestShellScan(t *testing.T) {
	s, out := newTestShell(t)

	execLines(t, s, out, "begin", "write 1 a 1", "write 1 b 2", "write 1 c 3", "commit 1", "begin")

	scan := execLines(t, s, out, "scan 2 a c")
	assert.Contains(t, scan, " a ")
	assert.Contains(t, scan, " b ")
	assert.NotContains(t, scan, " c ")
	assert.NotContains(t, scan, " 3 ")
}

func TestShellGCAndStats(t *testing.T) {
	s, out := newTestShell(t)

	for i := 0; i < 3; i++ {
		execLines(t, s, out, "begin")
	}
	execLines(t, s, out, "write 1 key a", "write 2 key b", "write 3 key c", "commit 1", "commit 2", "commit 3")

	assert.Equal(t, "removed 1 versions\n", execLines(t, s, out, "gc"))

	info := execLines(t, s, out, "info")
	assert.Contains(t, info, "vchain")
	assert.Contains(t, info, "write index")

	stats := execLines(t, s, out, "stats")
	assert.Contains(t, stats, "mvcc_gc_runs_total 1")
	assert.Contains(t, stats, "mvcc_versions 2")
}

func TestShellErrors(t *testing.T) {
	s, _ := newTestShell(t)

	assert.NoError(t, s.Execute("   "))
	assert.ErrorIs(t, s.Execute("exit"), errExit)
	assert.ErrorIs(t, s.Execute("QUIT"), errExit)

	err := s.Execute("frobnicate")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unknown command"))

	err = s.Execute("write 1 key")
	require.Error(t, err)
	assert.Equal(t, "usage: write <tx> <key> <value>", err.Error())

	assert.Error(t, s.Execute("read abc key"))
	assert.ErrorIs(t, s.Execute("commit 42"), mvcc.ErrTxNotFound)

	require.NoError(t, s.Execute("begin"))
	require.NoError(t, s.Execute("commit 1"))
	assert.ErrorIs(t, s.Execute("commit 1"), mvcc.ErrTxNotActive)
}

func TestShellHelp(t *testing.T) {
	s, out := newTestShell(t)

	help := execLines(t, s, out, "help")
	for name, cmd := range commands {
		assert.Contains(t, help, cmd.usage, name)
	}
	assert.Contains(t, help, "exit")
}
