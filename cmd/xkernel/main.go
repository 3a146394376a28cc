package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/xuperchain/xkernel/cmd/xkernel/cmd"
)

func main() {
	rootCmd, err := NewKernelCommand()
	if err != nil {
		log.Fatalf("init command failed.err:%v", err)
	}

	if err = rootCmd.Execute(); err != nil {
		log.Fatalf("run command failed.err:%v", err)
	}
}

func NewKernelCommand() (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use:           "xkernel <command> [arguments]",
		Short:         "Xkernel is a tool for exercising the execution kernel.",
		Long:          "Xkernel is a tool for exercising the execution kernel.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example:       "xkernel fuzz --scenario one-node --seeds 100000 --workers 8",
	}

	// cmd version
	rootCmd.AddCommand(cmd.GetVersionCmd().GetCmd())
	// cmd fuzz
	rootCmd.AddCommand(cmd.GetFuzzCmd().GetCmd())
	// cmd exec
	rootCmd.AddCommand(cmd.GetExecCmd().GetCmd())
	return rootCmd, nil
}
