package util

import (
	"strings"
	"testing"
	"time"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapString(t *testing.T) {
	wrapped := WrapString(strings.Repeat("word ", 30))

	for _, line := range strings.Split(wrapped, "\n") {
		assert.LessOrEqual(t, len(line), Wrap)
	}
	assert.Equal(t, 30, len(strings.Fields(wrapped)))
	assert.Equal(t, "", WrapString("   "))
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]logger.LogLevel{
		"debug":   logger.DEBUG,
		"INFO":    logger.INFO,
		"warn":    logger.WARNING,
		"warning": logger.WARNING,
		"error":   logger.ERROR,
	} {
		got, err := ParseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLogLevel("verbose")
	assert.Error(t, err)
	assert.Error(t, InitLoggers("verbose"))
}

func TestEngineOptionsFromFlags(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	SetupEngineFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--max-versions", "12", "--gc-interval", "250ms", "--log-level", "warn"}))
	require.NoError(t, BindFlags(cmd))

	opts := GetEngineOptions()
	assert.Equal(t, 12, opts.MaxVersions)
	assert.Equal(t, 250*time.Millisecond, opts.GCInterval)
	require.NotNil(t, opts.CloneValue)
	assert.Equal(t, []byte("x"), opts.CloneValue([]byte("x")))
}

func TestEngineOptionsFromEnv(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	t.Setenv("MVKV_MAX_VERSIONS", "3")
	t.Setenv("MVKV_GC_INTERVAL", "2s")
	InitConfig()

	cmd := &cobra.Command{Use: "test"}
	SetupEngineFlags(cmd)
	require.NoError(t, cmd.ParseFlags(nil))
	require.NoError(t, BindFlags(cmd))

	opts := GetEngineOptions()
	assert.Equal(t, 3, opts.MaxVersions)
	assert.Equal(t, 2*time.Second, opts.GCInterval)
}

func TestDefaults(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	cmd := &cobra.Command{Use: "test"}
	SetupEngineFlags(cmd)
	require.NoError(t, cmd.ParseFlags(nil))
	require.NoError(t, BindFlags(cmd))

	opts := GetEngineOptions()
	assert.Equal(t, 100, opts.MaxVersions)
	assert.Equal(t, time.Duration(0), opts.GCInterval)
}
