package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/l3aro/go-malt/internal/config"
	"github.com/l3aro/go-malt/internal/healthcheck"
	"github.com/l3aro/go-malt/pkg/converters"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize gmalt configuration interactively",
	Long: `Guides you through setting up gmalt configuration step by step.
Creates a config file with conversion options, optional features and logging.`,
	// Configuration is being created, so a broken one must not stop us.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit(cmd)
	},
}

func runInit(cmd *cobra.Command) error {
	cfg := config.DefaultConfig()

	// === SECTION 1: Conversion ===
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Convert called functions").
				Description("Also rewrite functions that converted code calls?").
				Affirmative("Yes").
				Negative("No").
				Value(&cfg.Recursive),
			huh.NewConfirm().
				Title("Strict mode").
				Description("Fail on functions that cannot be converted instead of leaving them as they are?").
				Affirmative("Fail").
				Negative("Leave unconverted").
				Value(&cfg.UserRequested),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	// === SECTION 2: Features ===
	var options []huh.Option[string]
	for _, f := range converters.Features {
		name := string(f)
		options = append(options, huh.NewOption(strings.ToLower(name), name))
	}
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Optional features").
				Description("Select the optional conversions to enable").
				Options(options...).
				Value(&cfg.Features),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	// === SECTION 3: Logging ===
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Log level").
				Options(
					huh.NewOption("Debug", "debug"),
					huh.NewOption("Info", "info"),
					huh.NewOption("Warn", "warn"),
					huh.NewOption("Error", "error"),
				).
				Value(&cfg.LogLevel),
			huh.NewConfirm().
				Title("JSON logs").
				Description("Write log lines as JSON?").
				Value(&cfg.JSONLogs),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	// === SECTION 4: Config Location ===
	var saveLocationChoice string
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Save Configuration").
				Description("Where to save the configuration file?").
				Options(
					huh.NewOption("Global (~/.gmalt/config.yaml)", "global"),
					huh.NewOption("Project (./.gmalt/config.yaml)", "project"),
				).
				Value(&saveLocationChoice),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	configPath := config.ProjectConfigFilePath()
	if saveLocationChoice == "global" {
		configPath = config.GlobalConfigFilePath()
	}

	if _, err := os.Stat(configPath); err == nil {
		var overwrite bool
		form = huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Config file exists").
					Description(fmt.Sprintf("Overwrite existing config at %s?", configPath)).
					Affirmative("Overwrite").
					Negative("Cancel").
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
		if !overwrite {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
			return nil
		}
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved to %s\n", configPath)

	// Verify with the configuration that will actually be in effect.
	effective, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading saved config: %w", err)
	}
	result, err := healthcheck.Check(cmd.Context(), effective, configPath, healthcheck.EffectiveConfigPath())
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	printHealth(cmd.OutOrStdout(), result)
	return nil
}

func init() {
	RootCmd.AddCommand(initCmd)
}
