package cmd

import (
	"github.com/spf13/cobra"
)

type BaseCmd struct {
	// cobra command
	cmd *cobra.Command
}

func (t *BaseCmd) GetCmd() *cobra.Command {
	return t.cmd
}
