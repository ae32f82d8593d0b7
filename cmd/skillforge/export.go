package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// ExportConfig holds configuration for the export command
type ExportConfig struct {
	OutputDir  string
	InstallDir string
}

// NewExportConfig creates a new ExportConfig with default values
func NewExportConfig() *ExportConfig {
	return &ExportConfig{
		OutputDir: ".",
	}
}

var exportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export a generated skill as a zip archive",
	Long: `Export a skill from history as <slug>.zip. An existing archive is never
overwritten; a numeric suffix is added instead. With --install-dir the skill is
also written as a directory into a skills directory.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		config := getExportConfigFromFlags(cmd)
		if config.OutputDir == "" {
			return errors.New("output directory cannot be empty")
		}

		ws, err := openWorkspace(ctx, false)
		if err != nil {
			return err
		}
		defer ws.Close(ctx)

		id, err := resolveID(ws.ctrl.History(), args[0])
		if err != nil {
			return err
		}
		generated, err := ws.ctrl.SelectFromHistory(id)
		if err != nil {
			return err
		}
		return deliver(ctx, generated, config.OutputDir, config.InstallDir)
	},
}

func init() {
	defaults := NewExportConfig()
	exportCmd.Flags().StringP("output", "o", defaults.OutputDir, "Directory the skill archive is written to")
	exportCmd.Flags().String("install-dir", defaults.InstallDir, "Also install the skill as a directory under this skills directory")
}

func getExportConfigFromFlags(cmd *cobra.Command) *ExportConfig {
	config := NewExportConfig()
	if output, err := cmd.Flags().GetString("output"); err == nil {
		config.OutputDir = output
	}
	if installDir, err := cmd.Flags().GetString("install-dir"); err == nil {
		config.InstallDir = installDir
	}
	return config
}
