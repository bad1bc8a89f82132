package commands

import (
	"github.com/gamegineer/tablenet/src/config"
)

//CLIConfig contains configuration for the host and join commands
type CLIConfig struct {
	Table     config.Config `mapstructure:",squash"`
	NoConsole bool          `mapstructure:"no-console"`
}

//NewDefaultCLIConfig creates a CLIConfig with default values
func NewDefaultCLIConfig() *CLIConfig {
	return &CLIConfig{
		Table:     *config.NewDefaultConfig(),
		NoConsole: false,
	}
}
