// Package commands provides the CLI commands for gmalt.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/l3aro/go-malt/internal/config"
	"github.com/l3aro/go-malt/internal/log"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "gmalt",
	Short: "gmalt - rewrite Python functions into functional form",
	Long: `gmalt rewrites the control flow of Python functions into calls to an
overloadable operator library (ag__), so loops, conditionals and other
constructs can be reinterpreted by a host framework.

Commands:
  rewrite     Rewrite the functions of a file or directory
  cfg         Show the control flow graph of a function
  analyze     Show dataflow facts and chosen state per construct
  run         Interpret a function, optionally comparing with its rewrite
  init        Create a configuration file interactively
  cache       Inspect or clear the rewrite cache
  doctor      Check configuration, cache and the rewrite pipeline

Use "gmalt [command] --help" for more information about a command.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadSettings(cmd)
	},
}

// settings is the configuration resolved for the running command.
var (
	settings *config.Config
	logger   log.Logger = log.Default()
)

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	pf := RootCmd.PersistentFlags()
	pf.String("config", "", "Config file path (default: ~/.gmalt and ./.gmalt)")
	pf.String("log-level", "", "Log level: debug, info, warn or error")
	pf.Bool("recursive", false, "Also rewrite user functions called by rewritten ones")
	pf.StringSlice("feature", nil, "Optional rewrite to enable (repeatable): ALL, LISTS, ASSERT_STATEMENTS, ...")
	pf.Bool("no-cache", false, "Do not read or write the rewrite cache")
}

// loadSettings resolves configuration: files and environment first, then
// explicit flags.
func loadSettings(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
	}
	if cmd.Flags().Changed("recursive") {
		cfg.Recursive, _ = cmd.Flags().GetBool("recursive")
	}
	if cmd.Flags().Changed("feature") {
		cfg.Features, _ = cmd.Flags().GetStringSlice("feature")
	}
	if noCache, _ := cmd.Flags().GetBool("no-cache"); noCache {
		cfg.CachePath = ""
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	settings = cfg
	logger = cfg.Logger()
	return nil
}
