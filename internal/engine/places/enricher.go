package places

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/contato-rede/leads/internal/model"
)

const (
	defaultCategory     = "Empresa"
	defaultEnrichWorker = 5
)

// DetailFetcher fetches one place details record.
type DetailFetcher interface {
	Details(ctx context.Context, placeID string) (*Details, error)
}

// Enricher turns search hits into leads with one details call per hit.
type Enricher struct {
	details DetailFetcher
	workers int
	logger  *slog.Logger
	now     func() time.Time
}

func NewEnricher(details DetailFetcher, workers int, logger *slog.Logger) *Enricher {
	if workers <= 0 {
		workers = defaultEnrichWorker
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{details: details, workers: workers, logger: logger, now: time.Now}
}

// Enrich fetches the details of hit. Failures are logged and reported as ok=false.
func (e *Enricher) Enrich(ctx context.Context, hit Hit) (model.Lead, bool) {
	if hit.PlaceID == "" {
		e.logger.Warn("DETAIL_FAILED", "name", hit.Name, "err", "hit has no place id")
		return model.Lead{}, false
	}

	d, err := e.details.Details(ctx, hit.PlaceID)
	if err != nil {
		e.logger.Warn("DETAIL_FAILED", "place_id", hit.PlaceID, "name", hit.Name, "err", err)
		return model.Lead{}, false
	}
	return e.toLead(hit, d), true
}

// EnrichAll enriches hits concurrently and waits for every call to settle.
// The result keeps hit order and omits failed items.
func (e *Enricher) EnrichAll(ctx context.Context, hits []Hit) []model.Lead {
	results := make([]*model.Lead, len(hits))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, h := range hits {
		g.Go(func() error {
			if lead, ok := e.Enrich(ctx, h); ok {
				results[i] = &lead
			}
			return nil
		})
	}
	_ = g.Wait()

	leads := make([]model.Lead, 0, len(hits))
	for _, l := range results {
		if l != nil {
			leads = append(leads, *l)
		}
	}
	return leads
}

func (e *Enricher) toLead(hit Hit, d *Details) model.Lead {
	category := defaultCategory
	if len(d.Types) > 0 && d.Types[0] != "" {
		category = strings.ReplaceAll(d.Types[0], "_", " ")
	}

	return model.Lead{
		ID:          "biz-" + hit.PlaceID,
		Name:        firstNonEmpty(d.Name, hit.Name),
		Phone:       d.FormattedPhoneNumber,
		Address:     firstNonEmpty(d.FormattedAddress, hit.FormattedAddress),
		Website:     d.Website,
		Rating:      float64(firstNonZero(d.Rating, hit.Rating)),
		Reviews:     count(firstNonZero(d.UserRatingsTotal, hit.UserRatingsTotal)),
		Category:    category,
		Description: fmt.Sprintf("Source: Google Places API (Place ID: %s)", hit.PlaceID),
		CreatedAt:   e.now(),
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func count(n Number) int {
	if math.IsNaN(float64(n)) {
		return 0
	}
	return int(n)
}

func firstNonZero(a, b Number) Number {
	if a != 0 {
		return a
	}
	return b
}
