package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ValentinKolb/homekv/lib/db"
	"github.com/ValentinKolb/homekv/lib/db/engines/maple"
	"github.com/ValentinKolb/homekv/lib/store"
	"github.com/ValentinKolb/homekv/lib/store/bstore"
	"github.com/ValentinKolb/homekv/lib/store/lstore"
	"github.com/ValentinKolb/homekv/lib/store/sqlstore"
	"github.com/ValentinKolb/homekv/rpc/common"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables (HOMEKV_<flag>)
	EnvPrefix = "homekv"
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

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig loads the env files and initializes viper
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// InitLogging applies the configured log level to all loggers
func InitLogging() error {
	return common.InitLoggers(viper.GetString("log-level"))
}

// --------------------------------------------------------------------------
// Flags
// --------------------------------------------------------------------------

// SetupLogFlags adds the log level flag to a command
func SetupLogFlags(cmd *cobra.Command, defaultLevel string) {
	key := "log-level"
	cmd.PersistentFlags().String(key, defaultLevel, WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// SetupStoreFlags adds the backing store flags to a command
func SetupStoreFlags(cmd *cobra.Command) {
	key := "backend"
	cmd.PersistentFlags().String(key, "sqlite", WrapString("Backing store to use (sqlite, badger, memory). The memory backend keeps a snapshot file in the data directory"))

	key = "data-dir"
	cmd.PersistentFlags().String(key, "data", WrapString("DataDir is the directory used for the files of the backing store"))
}

// SetupClientFlags adds the connection flags of commands talking to a server
func SetupClientFlags(cmd *cobra.Command) {
	key := "endpoint"
	cmd.PersistentFlags().String(key, "localhost:8080", WrapString("The address of the homekv server (host:port or http(s)://, ws(s):// URL)"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of the client"))

	key = "retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times to retry connecting to the server"))
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	return &common.ClientConfig{
		Endpoint:      viper.GetString("endpoint"),
		TimeoutSecond: viper.GetInt("timeout"),
		RetryCount:    viper.GetInt("retries"),
	}
}

// --------------------------------------------------------------------------
// Backing Store
// --------------------------------------------------------------------------

// File names of the backends inside the data directory
const (
	sqliteFile   = "homekv.db"
	badgerDir    = "badger"
	snapshotFile = "homekv.snapshot"
)

// GetBackend reads the configured backend from viper
func GetBackend() (common.Backend, error) {
	return common.ParseBackend(viper.GetString("backend"))
}

// StoreFactory returns a factory opening the configured backing store below dataDir
func StoreFactory(backend common.Backend, dataDir string) store.Factory {
	return func() (store.IStore, error) {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}

		switch backend {
		case common.BackendSQLite:
			return sqlstore.Open(filepath.Join(dataDir, sqliteFile))
		case common.BackendBadger:
			return bstore.Open(bstore.DefaultConfig(filepath.Join(dataDir, badgerDir)))
		case common.BackendMemory:
			return lstore.NewPersistentLocalStore(
				func() db.KVDB { return maple.NewMapleDB(nil) },
				filepath.Join(dataDir, snapshotFile),
			)
		default:
			return nil, fmt.Errorf("invalid backend %s", backend)
		}
	}
}

// OpenStore opens the backing store configured by the backend and data-dir flags
func OpenStore() (store.IStore, error) {
	backend, err := GetBackend()
	if err != nil {
		return nil, err
	}
	return StoreFactory(backend, viper.GetString("data-dir"))()
}
