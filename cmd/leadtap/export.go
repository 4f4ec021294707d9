package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/contato-rede/leads/internal/export"
)

var (
	exportCampaign string
	exportOutput   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export leads to CSV",
	Example: `  leadtap export
  leadtap export --campaign default --output leads.csv`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openHeadless()
		if err != nil {
			return err
		}
		defer a.Close()

		leads, err := a.store.ListLeads(cmd.Context(), exportCampaign)
		if err != nil {
			return err
		}
		if len(leads) == 0 {
			return errors.New("no leads to export")
		}

		path := exportOutput
		if path == "" {
			path = fmt.Sprintf("leads_%s.csv", time.Now().Format("2006-01-02"))
		}
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating output: %w", err)
		}
		defer f.Close()

		if err := export.WriteCSV(f, leads); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Exported %d leads to %s\n", len(leads), path)
		return nil
	},
}

var backupOutput string

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a JSON backup of campaigns, leads and the last search",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openHeadless()
		if err != nil {
			return err
		}
		defer a.Close()

		path := backupOutput
		if path == "" {
			path = fmt.Sprintf("leadtap_backup_%s.json", time.Now().Format("2006-01-02"))
		}
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating backup: %w", err)
		}
		defer f.Close()

		b, err := a.store.ExportBackup(cmd.Context(), f)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Backed up %d campaigns and %d leads to %s\n", len(b.Campaigns), len(b.Leads), path)
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <backup.json>",
	Short: "Replace campaigns and leads with the content of a backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openHeadless()
		if err != nil {
			return err
		}
		defer a.Close()

		b, err := a.Restore(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Restored %d campaigns and %d leads exported at %s\n",
			len(b.Campaigns), len(b.Leads), b.ExportedAt.Local().Format(time.DateTime))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportCampaign, "campaign", "", "only this campaign (default all)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default leads_<date>.csv)")
	backupCmd.Flags().StringVarP(&backupOutput, "output", "o", "", "output file (default leadtap_backup_<date>.json)")
	rootCmd.AddCommand(exportCmd, backupCmd, restoreCmd)
}
