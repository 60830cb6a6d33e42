package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/medportal/internal/account"
	"github.com/nikhilbhutani/medportal/internal/app"
	"github.com/nikhilbhutani/medportal/internal/config"
	"github.com/nikhilbhutani/medportal/internal/document"
)

func newMigrateDocumentsCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-documents",
		Short: "Backfill processing fields on documents written by older versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), cfg, func(a *app.App) error {
				stats, err := document.MigrateDocuments(cmd.Context(), a.Accounts)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(stats)
				}
				fmt.Printf("accounts: %d\ndocuments: %d\nmigrated: %d\nalready migrated: %d\n",
					stats.Accounts, stats.TotalDocuments, stats.MigratedDocuments, stats.AlreadyMigrated)
				return nil
			})
		},
	}
}

func newCleanupStorageCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		accountNumber string
		apply         bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup-storage",
		Short: "Find orphaned blobs and documents whose blob is missing",
		Long: "Compares the blobs stored under an account's prefix with the account's documents.\n" +
			"Without --apply nothing is changed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if accountNumber == "" {
				return errors.New("--account is required")
			}
			return withApp(cmd.Context(), cfg, func(a *app.App) error {
				rep, err := document.CleanupStorage(cmd.Context(), a.Accounts, a.Blobs, accountNumber, apply)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(rep)
				}
				writeCleanupReport(rep, accountNumber)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&accountNumber, "account", "", "account number to inspect")
	cmd.Flags().BoolVar(&apply, "apply", false, "delete orphans and clear broken references")
	return cmd
}

func writeCleanupReport(rep *document.CleanupReport, accountNumber string) {
	fmt.Printf("account %s: %d blobs, %d documents (%d with blobs)\n",
		account.Mask(accountNumber), rep.TotalBlobs, rep.TotalDocuments, rep.DocumentsWithBlobs)

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, b := range rep.OrphanedBlobs {
		fmt.Fprintf(tw, "orphan\t%s\t%d bytes\n", b.Name, b.Size)
	}
	for _, d := range rep.BrokenMetadata {
		fmt.Fprintf(tw, "broken\t%s\t%s\n", d.ID, d.Name)
	}
	tw.Flush()

	if !rep.Applied {
		if len(rep.OrphanedBlobs)+len(rep.BrokenMetadata) > 0 {
			fmt.Println("dry run; re-run with --apply to fix")
		}
		return
	}
	fmt.Printf("deleted %d orphans, fixed %d documents\n", rep.OrphanedBlobsDeleted, rep.BrokenMetadataFixed)
	for _, e := range rep.Errors {
		fmt.Fprintf(os.Stderr, "%s %s: %s\n", e.Type, e.URL, e.Error)
	}
}
