package commands

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/l3aro/go-malt/internal/healthcheck"
)

// doctorCmd represents the doctor command
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, cache and the rewrite pipeline",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		if path == "" {
			path = healthcheck.EffectiveConfigPath()
		}
		result, err := healthcheck.Check(cmd.Context(), settings, "", path)
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
		} else {
			printHealth(cmd.OutOrStdout(), result)
		}
		if !result.Healthy() {
			return fmt.Errorf("health check found problems")
		}
		return nil
	},
}

func printHealth(w io.Writer, result *healthcheck.HealthCheckResult) {
	if result.SavedPath != "" {
		fmt.Fprintf(w, "\nConfig Scope: %s\n", result.SavedScope)
		fmt.Fprintf(w, "Config Path: %s\n", absPath(result.SavedPath))
	}
	if result.EffectivePath == "" {
		fmt.Fprintln(w, "Effective Config: defaults")
	} else if result.EffectivePath != result.SavedPath {
		fmt.Fprintf(w, "Effective Config: %s (%s)\n", absPath(result.EffectivePath), result.EffectiveScope)
	}

	ready := color.New(color.FgGreen)
	failed := color.New(color.FgRed)
	for _, c := range result.Components {
		fmt.Fprintf(w, "\n%s: ", c.Name)
		switch c.Status {
		case healthcheck.StatusReady:
			ready.Fprintln(w, c.Status)
		case healthcheck.StatusError:
			failed.Fprintln(w, c.Status)
		default:
			fmt.Fprintln(w, c.Status)
		}
		if c.Detail != "" {
			fmt.Fprintf(w, "  %s\n", c.Detail)
		}
		if c.Error != "" {
			fmt.Fprintf(w, "  Error: %s\n", c.Error)
		}
	}
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func init() {
	doctorCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	RootCmd.AddCommand(doctorCmd)
}
