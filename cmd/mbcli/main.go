// Command mbcli talks to modbus slaves and serves a modbus slave over RTU,
// ASCII or TCP.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	flags := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:   "mbcli",
		Short: "Modbus master and slave tool",
		Long: `mbcli reads and writes modbus slaves, polls them periodically, and serves
a modbus slave with in-memory tables. The link is configured with a YAML or
TOML file (--config), --mode and --address override it.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.config, "config", "c", "", "config file (.yaml, .yml or .toml)")
	pf.StringVar(&flags.mode, "mode", "", "link mode: rtu, ascii or tcp")
	pf.StringVar(&flags.address, "address", "", "serial device or host:port")
	pf.BoolVar(&flags.debug, "debug", false, "log frames and retries")

	rootCmd.AddCommand(newReadCmd(flags))
	rootCmd.AddCommand(newWriteCmd(flags))
	rootCmd.AddCommand(newServeCmd(flags))
	rootCmd.AddCommand(newPollCmd(flags))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
