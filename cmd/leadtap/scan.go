package main

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/contato-rede/leads/internal/engine/search"
	"github.com/contato-rede/leads/internal/model"
)

type scanFlags struct {
	campaign  string
	niche     string
	locations []string
	query     string
	goal      int
	minRating string
	phone     bool
	exclude   string
	budget    float64
	mode      string
	deep      bool
	biasLat   float64
	biasLng   float64
	radius    int
	resume    bool
	tui       bool
}

var sf scanFlags

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Search for leads",
	Example: `  leadtap scan --niche "retífica de motores" --locations Joinville,Blumenau --goal 50
  leadtap scan --query "padaria em Curitiba" --mode single
  leadtap scan --niche oficina --locations "Santa Catarina" --deep --budget 5
  leadtap scan --resume --tui`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		req, err := buildRequest(cmd, sf)
		if err != nil {
			return err
		}
		if sf.tui {
			return runInteractive(cmd.Context(), &req)
		}
		return runHeadless(cmd, req)
	},
}

func init() {
	f := scanCmd.Flags()
	f.StringVar(&sf.campaign, "campaign", "", "campaign id the leads belong to (default campaign when empty)")
	f.StringVar(&sf.niche, "niche", "", "business type to search for")
	f.StringSliceVar(&sf.locations, "locations", nil, "comma separated cities or regions")
	f.StringVar(&sf.query, "query", "", `free text "niche em location", used without --niche`)
	f.IntVar(&sf.goal, "goal", 20, "stop after this many new leads (0 = no goal)")
	f.StringVar(&sf.minRating, "min-rating", "", "minimum rating, e.g. 4 or 4,5")
	f.BoolVar(&sf.phone, "phone", false, "keep only leads with a phone number")
	f.StringVar(&sf.exclude, "exclude", "", "comma separated keywords that drop a lead")
	f.Float64Var(&sf.budget, "budget", 0, "spend ceiling in USD (0 = no ceiling)")
	f.StringVar(&sf.mode, "mode", "continuous", "single, continuous or until-stagnant")
	f.BoolVar(&sf.deep, "deep", false, "expand locations into hubs or a grid of anchors")
	f.Float64Var(&sf.biasLat, "bias-lat", 0, "latitude to center non-deep searches on")
	f.Float64Var(&sf.biasLng, "bias-lng", 0, "longitude to center non-deep searches on")
	f.IntVar(&sf.radius, "radius", 0, "radius in meters for biased searches")
	f.BoolVar(&sf.resume, "resume", false, "start from the last saved search; explicit flags still apply")
	f.BoolVar(&sf.tui, "tui", false, "show the interactive progress view")
	rootCmd.AddCommand(scanCmd)
}

func buildRequest(cmd *cobra.Command, f scanFlags) (model.SearchRequest, error) {
	var req model.SearchRequest

	if f.resume {
		last, err := lastSearch(cmd)
		if err != nil {
			return req, err
		}
		if last == nil {
			return req, errors.New("no saved search to resume")
		}
		req = requestFromConfig(*last)
	}

	changed := cmd.Flags().Changed
	if !f.resume || changed("campaign") {
		req.CampaignID = f.campaign
	}
	if !f.resume || changed("niche") {
		req.Niche = strings.TrimSpace(f.niche)
	}
	if !f.resume || changed("locations") {
		req.Locations = trimAll(f.locations)
	}
	if !f.resume || changed("goal") {
		req.Goal = f.goal
	}
	if !f.resume || changed("min-rating") {
		r := model.ParseRating(f.minRating)
		if math.IsNaN(r) {
			return req, fmt.Errorf("--min-rating: %q is not a number", f.minRating)
		}
		req.MinRating = r
	}
	if !f.resume || changed("phone") {
		req.OnlyWithPhone = f.phone
	}
	if !f.resume || changed("exclude") {
		req.ExcludeKeywords = model.SplitKeywords(f.exclude)
	}
	if !f.resume || changed("budget") {
		req.Budget = f.budget
	}
	if !f.resume || changed("mode") {
		mode, err := model.ParseRunMode(f.mode)
		if err != nil {
			return req, err
		}
		req.Mode = mode
	}
	if !f.resume || changed("deep") {
		req.DeepSearch = f.deep
	}
	req.LegacyQuery = strings.TrimSpace(f.query)
	req.RadiusMeters = f.radius
	if changed("bias-lat") || changed("bias-lng") {
		req.Bias = &model.AnchorPoint{Lat: f.biasLat, Lng: f.biasLng, RadiusMeters: f.radius}
	}

	if req.Niche == "" && req.LegacyQuery == "" {
		return req, errors.New("--niche or --query is required")
	}
	if req.Niche != "" && len(req.Locations) == 0 {
		return req, errors.New("--locations is required with --niche")
	}
	return req, nil
}

func lastSearch(cmd *cobra.Command) (*model.SearchConfig, error) {
	a, err := openHeadless()
	if err != nil {
		return nil, err
	}
	defer a.Close()
	return a.LastSearch(cmd.Context())
}

func requestFromConfig(c model.SearchConfig) model.SearchRequest {
	mode, err := model.ParseRunMode(c.Mode)
	if err != nil {
		mode = model.ModeContinuous
	}
	return model.SearchRequest{
		CampaignID:      c.CampaignID,
		Niche:           c.Niche,
		Locations:       c.Locations,
		Goal:            c.Goal,
		MinRating:       c.MinRating,
		OnlyWithPhone:   c.OnlyWithPhone,
		ExcludeKeywords: model.SplitKeywords(c.ExcludeKeywords),
		Budget:          c.Budget,
		Mode:            mode,
		DeepSearch:      c.DeepSearch,
	}
}

func runHeadless(cmd *cobra.Command, req model.SearchRequest) error {
	a, err := openHeadless()
	if err != nil {
		return err
	}
	defer a.Close()

	res := a.Scan(cmd.Context(), req, printProgress)
	printSummary(req, res)

	if res.State == search.StateFatalError {
		return res.Err
	}
	return nil
}

func printProgress(p search.Progress) {
	switch p.Kind {
	case search.EventBatch:
		fmt.Fprintf(os.Stderr, "[%d/%d] %s · %s page %d: +%d new, %d dup · %d/%s · $%.3f\n",
			p.LocationIndex, p.LocationCount, p.Location, p.Anchor, p.Page,
			p.BatchNew, p.BatchDuplicates, p.Found, goalText(p.Goal), p.Spend)
	case search.EventQuota, search.EventTransient:
		fmt.Fprintf(os.Stderr, "%s (waiting %s)\n", p.Message, p.Cooldown)
	case search.EventToken, search.EventFatal, search.EventInfo:
		if p.Message != "" {
			fmt.Fprintln(os.Stderr, p.Message)
		}
	}
}

func printSummary(req model.SearchRequest, res search.Result) {
	query := req.LegacyQuery
	if req.Niche != "" {
		query = req.Niche + " em " + strings.Join(req.Locations, ", ")
	}
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "══════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  leadtap %s\n", res.State)
	fmt.Fprintf(os.Stderr, "══════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Query:      %s\n", query)
	if res.Reason != "" {
		fmt.Fprintf(os.Stderr, "  Reason:     %s\n", res.Reason)
	}
	fmt.Fprintf(os.Stderr, "  New leads:  %d\n", res.Found())
	fmt.Fprintf(os.Stderr, "  Pages:      %d\n", res.Pages)
	fmt.Fprintf(os.Stderr, "  Calls:      %d search, %d details\n", res.SearchCalls, res.DetailCalls)
	fmt.Fprintf(os.Stderr, "  Spend:      $%.3f\n", res.Spend)
	fmt.Fprintf(os.Stderr, "  Duration:   %s\n", res.FinishedAt.Sub(res.StartedAt).Truncate(time.Second))
	fmt.Fprintf(os.Stderr, "  Database:   %s\n", cfg.Storage.DBPath)
	fmt.Fprintf(os.Stderr, "══════════════════════════════\n")
}

func goalText(goal int) string {
	if goal <= 0 {
		return "∞"
	}
	return fmt.Sprint(goal)
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func joinKeywords(k []string) string {
	return strings.Join(k, ", ")
}
