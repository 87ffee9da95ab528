package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/patchbay-dev/patchbay/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the patchbay configuration file.

Loads the configuration, applies defaults, and runs validation, reporting
any errors without starting the server.

Examples:
  # Validate default config
  patchbay config validate

  # Validate a specific file
  patchbay config validate --config /etc/patchbay/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	if err := config.Validate(cfg); err != nil {
		return err
	}

	fmt.Println("Configuration is valid.")
	return nil
}
