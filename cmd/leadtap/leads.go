package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/contato-rede/leads/internal/engine/dedup"
	"github.com/contato-rede/leads/internal/export"
)

var (
	leadsCampaign  string
	leadsLimit     int
	clearConfirmed bool
	dupeThreshold  float64
	historyLimit   int
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Inspect and manage stored leads",
}

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List leads, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openHeadless()
		if err != nil {
			return err
		}
		defer a.Close()

		leads, err := a.store.ListLeads(cmd.Context(), leadsCampaign)
		if err != nil {
			return err
		}
		shown := leads
		if leadsLimit > 0 && len(shown) > leadsLimit {
			shown = shown[:leadsLimit]
		}

		t := newTable()
		t.AppendHeader(table.Row{"ID", "Name", "City / UF", "Phone", "Rating", "Reviews", "Category"})
		for _, l := range shown {
			rating := ""
			if l.Rating > 0 {
				rating = fmt.Sprintf("%.1f", l.Rating)
			}
			t.AppendRow(table.Row{l.ID, l.Name, export.CityUF(l.Address), l.Phone, rating, l.Reviews, l.Category})
		}
		t.AppendFooter(table.Row{"", fmt.Sprintf("%d of %d", len(shown), len(leads))})
		t.Render()
		return nil
	},
}

var leadsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one lead",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openHeadless()
		if err != nil {
			return err
		}
		defer a.Close()

		ok, err := a.store.DeleteLead(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("lead %q not found", args[0])
		}
		fmt.Fprintf(os.Stderr, "Deleted %s\n", args[0])
		return nil
	},
}

var leadsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every lead",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !clearConfirmed {
			return errors.New("refusing to delete every lead without --yes")
		}
		a, err := openHeadless()
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.store.ClearLeads(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Deleted %d leads\n", n)
		return nil
	},
}

var dupesCmd = &cobra.Command{
	Use:   "dupes",
	Short: "Report lead names that are probably the same business",
	Long: "Runs deduplicate by exact name. This report lists names that differ " +
		"only slightly, such as \"Padaria São José\" and \"Padaria Sao Jose\".",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openHeadless()
		if err != nil {
			return err
		}
		defer a.Close()

		names, err := a.store.LeadNames(cmd.Context(), leadsCampaign)
		if err != nil {
			return err
		}
		pairs := dedup.NearDuplicates(names, dupeThreshold)
		if len(pairs) == 0 {
			fmt.Fprintln(os.Stderr, "No near duplicates")
			return nil
		}

		t := newTable()
		t.AppendHeader(table.Row{"Name", "Looks like", "Similarity"})
		for _, p := range pairs {
			t.AppendRow(table.Row{p.A, p.B, fmt.Sprintf("%.3f", p.Similarity)})
		}
		t.Render()
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent runs and today's spend",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openHeadless()
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.store.ListRuns(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		t := newTable()
		t.AppendHeader(table.Row{"Started", "Campaign", "State", "Found", "Pages", "Spend", "Reason"})
		var total float64
		for _, r := range runs {
			total += r.Spend
			t.AppendRow(table.Row{
				r.StartedAt.Format("2006-01-02 15:04"), r.CampaignID, r.State, r.Found, r.Pages,
				fmt.Sprintf("$%.3f", r.Spend), r.Reason,
			})
		}
		t.AppendFooter(table.Row{"", "", "", "", "", fmt.Sprintf("$%.3f", total)})
		t.Render()
		return nil
	},
}

func init() {
	leadsListCmd.Flags().StringVar(&leadsCampaign, "campaign", "", "only this campaign (default all)")
	leadsListCmd.Flags().IntVarP(&leadsLimit, "limit", "n", 50, "rows to show (0 = all)")
	leadsClearCmd.Flags().BoolVar(&clearConfirmed, "yes", false, "confirm deleting every lead")
	dupesCmd.Flags().StringVar(&leadsCampaign, "campaign", "", "only this campaign (default all)")
	dupesCmd.Flags().Float64Var(&dupeThreshold, "threshold", 0.93, "minimum Jaro-Winkler similarity")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "runs to show (0 = all)")

	leadsCmd.AddCommand(leadsListCmd, leadsDeleteCmd, leadsClearCmd, dupesCmd)
	rootCmd.AddCommand(leadsCmd, historyCmd)
}
