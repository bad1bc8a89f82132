package node

import (
	"testing"
	"time"

	"github.com/gamegineer/tablenet/src/common"
	"github.com/sirupsen/logrus"
)

// Config holds the settings of a local node.
type Config struct {
	// RequestTimeout closes a connection whose peer leaves a request
	// unanswered for that long. Zero waits forever.
	RequestTimeout time.Duration `mapstructure:"request-timeout"`
	Logger         *logrus.Logger
}

// NewConfig ...
func NewConfig(requestTimeout time.Duration, logger *logrus.Logger) *Config {
	return &Config{
		RequestTimeout: requestTimeout,
		Logger:         logger,
	}
}

// DefaultConfig ...
func DefaultConfig() *Config {
	logger := logrus.New()
	logger.Level = logrus.DebugLevel

	return &Config{
		RequestTimeout: 0,
		Logger:         logger,
	}
}

// TestConfig ...
func TestConfig(t testing.TB) *Config {
	config := DefaultConfig()
	config.Logger = common.NewTestLogger(t)
	return config
}
