package commands

import (
	"github.com/spf13/cobra"
)

var (
	_config = NewDefaultCLIConfig()
)

//RootCmd is the root command for overlay nodes
var RootCmd = &cobra.Command{
	Use:              "overlay",
	Short:            "FBA overlay node",
	TraverseChildren: true,
}
