package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/patchbay-dev/patchbay/internal/cli/output"
	"github.com/patchbay-dev/patchbay/pkg/config"
	"github.com/patchbay-dev/patchbay/pkg/store"
)

var blocksOutput string

var blocksCmd = &cobra.Command{
	Use:   "blocks",
	Short: "List the block catalogue",
	Long: `List the block types available to pipelines.

Reads the catalogue directly from the configured database, so the server
does not need to be running.

Examples:
  # List blocks as a table
  patchbay blocks

  # List blocks as JSON
  patchbay blocks --output json`,
	RunE: runBlocks,
}

func init() {
	blocksCmd.Flags().StringVarP(&blocksOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

func runBlocks(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(blocksOutput)
	if err != nil {
		return err
	}

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	st, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() { _ = st.Close() }()

	types, err := st.ListBlockTypes(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list block catalogue: %w", err)
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, types)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, types)
	default:
		table := output.NewTableData("ID", "NAME", "COMMAND", "GUI FIELDS", "TERMINAL")
		for _, bt := range types {
			fields, err := bt.ParsedGUIFields()
			if err != nil {
				fields = []string{"<invalid>"}
			}
			terminal := ""
			if bt.IsTerminal() {
				terminal = "yes"
			}
			table.AddRow(
				strconv.FormatUint(uint64(bt.ID), 10),
				bt.Name,
				bt.Command,
				strings.Join(fields, ", "),
				terminal,
			)
		}
		return output.PrintTable(os.Stdout, table)
	}
}
