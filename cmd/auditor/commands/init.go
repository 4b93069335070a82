package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyluth/auditor/internal/scaffold"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter audit workspace",
	Long: `Create a starter audit workspace in the current directory.

Creates:
  • audit.yml                      - Provider, loop bounds and Redis settings
  • datasets/requirements.yml      - Example reference dataset
  • datasets/implementation.yml    - Example subject dataset

Use --force to overwrite existing files.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite existing files")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if !forceInit {
		if err := scaffold.CheckExisting("."); err != nil {
			return err
		}
	}

	created, err := scaffold.Initialize(".", forceInit)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	scaffold.PrintSuccess(cmd.OutOrStdout(), created)
	return nil
}
