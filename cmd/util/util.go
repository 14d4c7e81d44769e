package util

import (
	"strings"

	"github.com/ValentinKolb/mvKV/lib/mvcc"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables (e.g. MVKV_MAX_VERSIONS)
	EnvPrefix = "mvkv"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupEngineFlags adds the engine configuration flags to a command
func SetupEngineFlags(cmd *cobra.Command) {
	key := "max-versions"
	cmd.PersistentFlags().Int(key, mvcc.DefaultMaxVersions, WrapString("Number of versions per key above which the garbage collector prunes that key"))

	key = "gc-interval"
	cmd.PersistentFlags().Duration(key, 0, WrapString("Interval of the background garbage collector (e.g. 5s). 0 disables the background collector, gc then only runs on demand"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "info", WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindFlags binds the flags of cmd (including inherited ones) to viper and
// applies the configured log level
func BindFlags(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	return InitLoggers(viper.GetString("log-level"))
}

// GetEngineOptions reads the engine configuration from viper
func GetEngineOptions() *mvcc.Options[[]byte] {
	return &mvcc.Options[[]byte]{
		MaxVersions: viper.GetInt("max-versions"),
		GCInterval:  viper.GetDuration("gc-interval"),
		CloneValue:  mvcc.CloneBytes,
	}
}
