package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/obentoo/findupdate/internal/common/config"
	"github.com/obentoo/findupdate/internal/common/output"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the findupdate configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write the default configuration to the XDG config directory
(~/.config/findupdate/config.yaml), or to the file given with --config.
An existing file is never overwritten.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := opts.configFile
		if path == "" {
			var err error
			if path, err = config.DefaultConfigPath(); err != nil {
				return err
			}
		}
		if err := config.Init(path); err != nil {
			return err
		}
		output.Fprintf(cmd.OutOrStdout(), output.Success, "✓ Wrote %s\n", path)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file in use",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.FindConfigPath()
		if err != nil {
			return err
		}
		if path == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "(none, using defaults)")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}
