package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	"github.com/gamegineer/tablenet/src/common"
	"github.com/gamegineer/tablenet/src/crypto"
	"github.com/gamegineer/tablenet/src/net"
)

// Default filenames.
const (
	// DefaultBadgerFile is the default name of the folder containing the Badger
	// database of saved tables
	DefaultBadgerFile = "badger_db"

	// DefaultConfigFile is the base name of the configuration file read from
	// the data directory, without extension.
	DefaultConfigFile = "gametable"
)

// Default configuration values.
const (
	DefaultLogLevel       = "info"
	DefaultBindAddr       = "127.0.0.1:6150"
	DefaultServiceAddr    = "127.0.0.1:8150"
	DefaultTCPTimeout     = 1000 * time.Millisecond
	DefaultRequestTimeout = 0
	DefaultSendQueueSize  = net.DefaultSendQueueSize
	DefaultStore          = false
	DefaultWebSocket      = false
	DefaultNoService      = false
)

// Config contains all the configuration properties of a game table, whether
// it hosts the table or joins it.
type Config struct {
	// DataDir is the top-level directory containing the configuration file
	// and the saved tables
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, receives a JSON copy of every log line.
	LogFile string `mapstructure:"log-file"`

	// PlayerName is the name of the local player. It must be unique at the
	// table.
	PlayerName string `mapstructure:"name"`

	// Password protects the table. The host sets it and the players must
	// know it. An empty password makes the table open.
	Password string `mapstructure:"password"`

	// BindAddr is the local address:port where the host accepts players. In
	// some cases, there may be a routable address that cannot be bound. Use
	// AdvertiseAddr to advertise a different address.
	BindAddr string `mapstructure:"listen"`

	// AdvertiseAddr is the address given to players when BindAddr is not
	// routable.
	AdvertiseAddr string `mapstructure:"advertise"`

	// TableAddr is the address of the table to join.
	TableAddr string `mapstructure:"table"`

	// WebSocket carries the protocol over WebSocket instead of plain TCP.
	// Both ends must agree.
	WebSocket bool `mapstructure:"websocket"`

	// TCPTimeout bounds dialing and each write on a connection.
	TCPTimeout time.Duration `mapstructure:"timeout"`

	// RequestTimeout closes a connection whose peer leaves a request
	// unanswered for that long. Zero waits forever.
	RequestTimeout time.Duration `mapstructure:"request-timeout"`

	// SendQueueSize is the number of outbound messages buffered per
	// connection.
	SendQueueSize int `mapstructure:"send-queue"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP service.
	ServiceAddr string `mapstructure:"service-listen"`

	// Store saves the hosted table when it closes and loads the last saved
	// table when it opens.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:        DefaultDataDir(),
		LogLevel:       DefaultLogLevel,
		BindAddr:       DefaultBindAddr,
		ServiceAddr:    DefaultServiceAddr,
		TCPTimeout:     DefaultTCPTimeout,
		RequestTimeout: DefaultRequestTimeout,
		SendQueueSize:  DefaultSendQueueSize,
		Store:          DefaultStore,
		WebSocket:      DefaultWebSocket,
		NoService:      DefaultNoService,
		DatabaseDir:    DefaultDatabaseDir(),
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t)
	config.logger.Level = level
	return config
}

// SetDataDir sets the top-level directory, and updates the database
// directory if it is currently set to the default value. If the database
// directory is not currently the default, it means the user has explicitely set
// it to something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// SecurePassword returns the password as a SecureString. The caller owns it
// and should dispose it.
func (c *Config) SecurePassword() *crypto.SecureString {
	return crypto.NewSecureStringFromString(c.Password)
}

// Logger returns a formatted logrus Entry, with prefix set to "gametable".
func (c *Config) Logger() *logrus.Entry {
	return c.BaseLogger().WithField("prefix", "gametable")
}

// BaseLogger returns the logger behind Logger, creating it on first use.
func (c *Config) BaseLogger() *logrus.Logger {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogFile != "" {
			c.logger.AddHook(lfshook.NewHook(c.LogFile, &logrus.JSONFormatter{}))
		}
	}
	return c.logger
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for the top-level
// configuration based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".GameTable")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "GameTable")
		} else {
			return filepath.Join(home, ".gametable")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
