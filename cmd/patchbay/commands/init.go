package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/patchbay-dev/patchbay/internal/cli/prompt"
	"github.com/patchbay-dev/patchbay/pkg/config"
)

var (
	initForce       bool
	initInteractive bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample patchbay configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/patchbay/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  patchbay init

  # Answer prompts for database, image store, and ports
  patchbay init --interactive

  # Initialize with custom path
  patchbay init --config /etc/patchbay/config.yaml

  # Force overwrite existing config
  patchbay init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
	initCmd.Flags().BoolVarP(&initInteractive, "interactive", "i", false, "Prompt for configuration values instead of writing defaults")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetPath := GetConfigFile()
	if targetPath == "" {
		targetPath = config.GetDefaultConfigPath()
	}

	// When the file already exists, ask before clobbering it
	force := initForce
	if !force {
		if _, err := os.Stat(targetPath); err == nil {
			ok, err := prompt.Confirm(fmt.Sprintf("Config file %s already exists. Overwrite?", targetPath), false)
			if err != nil {
				if errors.Is(err, prompt.ErrAborted) {
					return fmt.Errorf("aborted")
				}
				return err
			}
			if !ok {
				fmt.Println("Keeping existing configuration.")
				return nil
			}
			force = true
		}
	}

	opts := config.DefaultInitOptions()
	if initInteractive {
		var err error
		opts, err = promptInitOptions(opts)
		if err != nil {
			if errors.Is(err, prompt.ErrAborted) {
				return fmt.Errorf("aborted")
			}
			return err
		}
	}

	if err := config.InitConfigWithOptions(targetPath, force, opts); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", targetPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Start the server with: patchbay start")
	fmt.Printf("  3. Or specify custom config: patchbay start --config %s\n", targetPath)

	return nil
}

// promptInitOptions collects the generated config's tunable values
// interactively, starting from the defaults.
func promptInitOptions(defaults config.InitOptions) (config.InitOptions, error) {
	opts := defaults

	dbType, err := prompt.Select("Database backend", []prompt.SelectOption{
		{Label: "SQLite (single node, no setup)", Value: "sqlite",
			Description: "Database file managed by the server; recommended default"},
		{Label: "PostgreSQL", Value: "postgres",
			Description: "Existing PostgreSQL server holding the block graph and cache index"},
	})
	if err != nil {
		return opts, err
	}
	opts.DatabaseType = dbType

	if dbType == "postgres" {
		if opts.PostgresHost, err = prompt.Input("PostgreSQL host", "localhost"); err != nil {
			return opts, err
		}
		if opts.PostgresPort, err = prompt.InputPort("PostgreSQL port", 5432); err != nil {
			return opts, err
		}
		if opts.PostgresDatabase, err = prompt.Input("PostgreSQL database", "patchbay"); err != nil {
			return opts, err
		}
		if opts.PostgresUser, err = prompt.Input("PostgreSQL user", "patchbay"); err != nil {
			return opts, err
		}
		if opts.PostgresPassword, err = prompt.Password("PostgreSQL password"); err != nil {
			return opts, err
		}
	} else {
		if opts.DatabasePath, err = prompt.Input("SQLite database path", defaults.DatabasePath); err != nil {
			return opts, err
		}
	}

	if opts.ImageStorePath, err = prompt.Input("Image store directory", defaults.ImageStorePath); err != nil {
		return opts, err
	}
	if opts.Thumbnailer, err = prompt.Input("Thumbnailer command", defaults.Thumbnailer); err != nil {
		return opts, err
	}
	if opts.APIPort, err = prompt.InputPort("API port", defaults.APIPort); err != nil {
		return opts, err
	}

	return opts, nil
}
