package commands

import (
	"github.com/spf13/cobra"
)

var (
	_config = NewDefaultCLIConfig()
)

//RootCmd is the root command for gametable
var RootCmd = &cobra.Command{
	Use:              "gametable",
	Short:            "share a game table over the network",
	TraverseChildren: true,
}
