package main

import (
	"os"

	"github.com/spf13/cobra"
)

// rootOptions holds the flags shared by all commands
type rootOptions struct {
	configFile string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "mirage",
		Short:         "Mirage - replicated entity state over the network",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "configfile", "", "set config file path")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "loglevel", "", "override the configured log level")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newConnectCommand(opts))
	cmd.AddCommand(newSchemaCommand(opts))
	cmd.AddCommand(newStatusCommand(opts))
	cmd.AddCommand(newStopCommand(opts))
	cmd.AddCommand(newFreezeCommand(opts))
	return cmd
}

func main() {
	registerDemoTypes()
	if err := newRootCommand().Execute(); err != nil {
		showMsgAndQuit("%v", err)
	}
	os.Exit(0)
}
