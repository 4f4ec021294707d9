package model

import "fmt"

// AnchorPoint is a coordinate a search is centered on.
type AnchorPoint struct {
	Lat          float64
	Lng          float64
	Label        string // hub name, empty for grid points
	RadiusMeters int
}

func (a AnchorPoint) String() string {
	if a.Label != "" {
		return a.Label
	}
	return fmt.Sprintf("%.4f,%.4f", a.Lat, a.Lng)
}

// RunMode selects when a run stops besides goal, budget and exhaustion.
type RunMode string

const (
	// ModeSingle runs one small batch and stops after the first page.
	ModeSingle RunMode = "single"
	// ModeContinuous runs until goal, budget, exhaustion or abort.
	ModeContinuous RunMode = "continuous"
	// ModeUntilStagnant stops as soon as a batch yields no new leads.
	ModeUntilStagnant RunMode = "until-stagnant"
)

// ParseRunMode accepts the CLI spelling of a run mode.
func ParseRunMode(s string) (RunMode, error) {
	switch RunMode(s) {
	case ModeSingle, ModeContinuous, ModeUntilStagnant:
		return RunMode(s), nil
	case "":
		return ModeContinuous, nil
	}
	return "", fmt.Errorf("unknown run mode %q (single, continuous, until-stagnant)", s)
}

// SearchRequest holds everything one orchestration run needs. It is read-only during the run.
type SearchRequest struct {
	CampaignID      string
	Niche           string
	Locations       []string
	Goal            int
	RadiusMeters    int // radius hint for non-grid searches, 0 = none
	MinRating       float64
	OnlyWithPhone   bool
	ExcludeKeywords []string
	Budget          float64 // ceiling, <= 0 disables the budget stop
	PriorSpend      float64 // spend already incurred against Budget
	Mode            RunMode
	DeepSearch      bool         // expand locations into hubs or a grid
	Bias            *AnchorPoint // optional center for non-grid searches
	KnownNames      []string     // names already stored, never counted again
	LegacyQuery     string       // free text "niche em location", used when Niche/Locations are empty
}
