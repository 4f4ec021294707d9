package search

import (
	"math"
	"strings"

	"github.com/contato-rede/leads/internal/model"
)

// Filter holds the lead filters of a run. The zero value keeps everything.
type Filter struct {
	MinRating       float64
	OnlyWithPhone   bool
	ExcludeKeywords []string // lowercased
}

func filterFromRequest(req model.SearchRequest) Filter {
	keywords := make([]string, 0, len(req.ExcludeKeywords))
	for _, k := range req.ExcludeKeywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keywords = append(keywords, k)
		}
	}
	return Filter{MinRating: req.MinRating, OnlyWithPhone: req.OnlyWithPhone, ExcludeKeywords: keywords}
}

// Keep reports whether l passes every filter. With a minimum rating set, a
// rating that is not a number fails it.
func (f Filter) Keep(l model.Lead) bool {
	if f.MinRating > 0 && (math.IsNaN(l.Rating) || l.Rating < f.MinRating) {
		return false
	}
	if f.OnlyWithPhone && strings.TrimSpace(l.Phone) == "" {
		return false
	}
	if len(f.ExcludeKeywords) > 0 {
		name := strings.ToLower(l.Name)
		for _, k := range f.ExcludeKeywords {
			if strings.Contains(name, k) {
				return false
			}
		}
	}
	return true
}

func filterLeads(leads []model.Lead, f Filter) []model.Lead {
	var kept []model.Lead
	for _, l := range leads {
		if f.Keep(l) {
			kept = append(kept, l)
		}
	}
	return kept
}
