package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/obentoo/findupdate/internal/common/logger"
	"github.com/obentoo/findupdate/internal/common/output"
	"github.com/obentoo/findupdate/internal/common/version"
)

var (
	verbose bool
	quiet   bool
	noColor bool

	opts options
)

var rootCmd = &cobra.Command{
	Use:   "findupdate",
	Short: "Find newer upstream versions for abbs packages",
	Long: `Scan an abbs tree, look up the newest upstream release of every package and
update VER (dropping REL) in the spec files that are behind.

Examples:
  findupdate -d ~/aosc-os-abbs --dry-run           Report what would change
  findupdate -i '^extra-gnome/' -c                 Update GNOME packages in house style
  findupdate -f groups/plasma -l findupdate.log    Check a package group, log results
  findupdate -x -i 'app-utils/'                    Print the latest upstream versions`,
	Args:          cobra.NoArgs,
	Version:       version.Short(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Configure logging based on flags
		if verbose {
			logger.SetVerbose(true)
			if err := logger.Default().EnableFileLogging(); err != nil {
				logger.Warn("file logging disabled: %v", err)
			}
		}
		if quiet {
			logger.SetQuiet(true)
		}
		if noColor {
			output.NoColor()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		opts.quiet = quiet
		return run(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Info())
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-error output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Read configuration from this file")

	flags := rootCmd.Flags()
	flags.BoolVar(&opts.dryRun, "dry-run", false, "Do not modify any spec file")
	flags.StringVarP(&opts.logFile, "log", "l", "", "Append one result line per package to this file")
	flags.StringVarP(&opts.listFile, "file", "f", "", "Only check packages named in this list file")
	flags.StringVarP(&opts.include, "include", "i", "", "Only check packages whose path matches this regex")
	flags.StringVarP(&opts.dir, "dir", "d", "", "Root of the abbs tree (default from config, or the current directory)")
	flags.BoolVarP(&opts.comply, "comply", "c", false, "Rewrite upstream versions to the house style")
	flags.BoolVarP(&opts.versionOnly, "version-only", "x", false, "Print the latest upstream version of each package (implies --dry-run)")
	flags.IntVarP(&opts.jobs, "jobs", "j", 0, "Packages checked in parallel (default from config, 8)")
	flags.DurationVar(&opts.timeout, "timeout", 0, "Per-request timeout (default from config, 30s)")
	flags.StringVar(&opts.rules, "rules", "", "TOML file with house style rules for --comply")

	rootCmd.SetVersionTemplate("{{.Version}}\n")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	err := rootCmd.Execute()
	logger.Default().Close()
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}
