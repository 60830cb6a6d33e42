package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/medportal/internal/app"
	"github.com/nikhilbhutani/medportal/internal/config"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:          "portalctl",
		Short:        "Maintenance commands for the medical document portal",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")

	cmd.AddCommand(
		newMigrateDocumentsCmd(cfg, &jsonOutput),
		newCleanupStorageCmd(cfg, &jsonOutput),
		newModelsCmd(cfg, &jsonOutput),
		newUsageCmd(cfg, &jsonOutput),
	)
	return cmd
}

func withApp(ctx context.Context, cfg *config.Config, fn func(*app.App) error) error {
	a, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
