package main

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/contato-rede/leads/internal/model"
)

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

var campaignsCmd = &cobra.Command{
	Use:     "campaigns",
	Aliases: []string{"campaign"},
	Short:   "Manage campaigns",
}

var campaignsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List campaigns with their lead counts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openHeadless()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		campaigns, err := a.store.ListCampaigns(ctx)
		if err != nil {
			return err
		}

		t := newTable()
		t.AppendHeader(table.Row{"ID", "Name", "Search", "Goal", "Leads", "Updated"})
		for _, c := range campaigns {
			n, err := a.store.CountLeads(ctx, c.ID)
			if err != nil {
				return err
			}
			t.AppendRow(table.Row{c.ID, c.Name, c.Query(), c.Goal, n, c.UpdatedAt.Format("2006-01-02 15:04")})
		}
		t.Render()
		return nil
	},
}

type campaignFlags struct {
	id        string
	name      string
	niche     string
	locations []string
	goal      int
	minRating string
	phone     bool
	exclude   string
	budget    float64
}

var cf campaignFlags

var campaignsSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Create a campaign, or update it when --id exists",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openHeadless()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		var c model.Campaign
		if cf.id != "" {
			if existing, err := a.store.GetCampaign(ctx, cf.id); err == nil {
				c = existing
			}
		}
		if c.ID == "" {
			c.ID = cf.id
			if c.ID == "" {
				c.ID = uuid.NewString()
			}
		}

		changed := cmd.Flags().Changed
		if changed("name") {
			c.Name = strings.TrimSpace(cf.name)
		}
		if changed("niche") {
			c.Niche = strings.TrimSpace(cf.niche)
		}
		if changed("locations") {
			c.Locations = trimAll(cf.locations)
		}
		if changed("goal") {
			c.Goal = cf.goal
		}
		if changed("min-rating") {
			r := model.ParseRating(cf.minRating)
			if math.IsNaN(r) {
				return fmt.Errorf("--min-rating: %q is not a number", cf.minRating)
			}
			c.MinRating = r
		}
		if changed("phone") {
			c.OnlyWithPhone = cf.phone
		}
		if changed("exclude") {
			c.ExcludeKeywords = cf.exclude
		}
		if changed("budget") {
			c.Budget = cf.budget
		}
		if c.Name == "" {
			return fmt.Errorf("--name is required")
		}
		c.UpdatedAt = time.Time{}

		if err := a.store.SaveCampaign(ctx, c); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), c.ID)
		return nil
	},
}

var campaignsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a campaign; its leads are kept",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openHeadless()
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.store.DeleteCampaign(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Deleted campaign %s\n", args[0])
		return nil
	},
}

func init() {
	f := campaignsSaveCmd.Flags()
	f.StringVar(&cf.id, "id", "", "campaign id (generated when empty)")
	f.StringVar(&cf.name, "name", "", "display name")
	f.StringVar(&cf.niche, "niche", "", "business type")
	f.StringSliceVar(&cf.locations, "locations", nil, "comma separated locations")
	f.IntVar(&cf.goal, "goal", 0, "lead goal")
	f.StringVar(&cf.minRating, "min-rating", "", "minimum rating")
	f.BoolVar(&cf.phone, "phone", false, "only leads with a phone")
	f.StringVar(&cf.exclude, "exclude", "", "comma separated exclusion keywords")
	f.Float64Var(&cf.budget, "budget", 0, "spend ceiling in USD")

	campaignsCmd.AddCommand(campaignsListCmd, campaignsSaveCmd, campaignsDeleteCmd)
	rootCmd.AddCommand(campaignsCmd)
}
