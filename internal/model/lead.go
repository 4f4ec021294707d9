package model

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// DefaultCampaignID is the campaign leads fall back to when none is assigned.
const DefaultCampaignID = "default"

// Lead is a business discovered by a search run.
// Name is the deduplication key within a run; ID is opaque.
type Lead struct {
	ID          string    `json:"id"`
	CampaignID  string    `json:"campaignId"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone"`
	Address     string    `json:"address"`
	Website     string    `json:"website"`
	Rating      float64   `json:"rating"` // NaN when upstream sent a non-numeric value
	Reviews     int       `json:"reviews"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
	Facebook    string    `json:"facebook,omitempty"`
	Instagram   string    `json:"instagram,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Campaign is a named search with its own configuration; leads belong to one campaign.
type Campaign struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Niche           string    `json:"niche"`
	Locations       []string  `json:"locations"`
	Goal            int       `json:"targetGoal"`
	MinRating       float64   `json:"minRating"`
	OnlyWithPhone   bool      `json:"onlyWithPhone"`
	ExcludeKeywords string    `json:"excludeKeywords"`
	Budget          float64   `json:"budget"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Query returns the human readable query the campaign stands for.
func (c Campaign) Query() string {
	if c.Niche == "" {
		return ""
	}
	return c.Niche + " em " + strings.Join(c.Locations, ", ")
}

// SearchConfig is the last used scan configuration, kept so a scan can resume.
type SearchConfig struct {
	CampaignID      string    `json:"campaignId"`
	Niche           string    `json:"niche"`
	Locations       []string  `json:"locations"`
	Goal            int       `json:"targetGoal"`
	MinRating       float64   `json:"minRating"`
	OnlyWithPhone   bool      `json:"onlyWithPhone"`
	ExcludeKeywords string    `json:"excludeKeywords"`
	Budget          float64   `json:"budget"`
	DeepSearch      bool      `json:"deepSearch"`
	Mode            string    `json:"mode"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// RunRecord summarizes one finished orchestration run.
type RunRecord struct {
	ID         string    `json:"id"`
	CampaignID string    `json:"campaignId"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	State      string    `json:"state"`
	Reason     string    `json:"reason"`
	Found      int       `json:"found"`
	Pages      int       `json:"pages"`
	Spend      float64   `json:"spend"`
}

// ParseRating reads a rating the way upstream payloads and imports carry it.
// Empty input is 0, anything that is not a finite number is NaN.
func ParseRating(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return math.NaN()
	}
	return f
}

// SplitKeywords turns a comma separated exclusion list into lowercased, trimmed terms.
func SplitKeywords(s string) []string {
	var out []string
	for _, k := range strings.Split(s, ",") {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}
