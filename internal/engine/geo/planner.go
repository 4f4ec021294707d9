package geo

import (
	"context"
	"log/slog"

	"github.com/contato-rede/leads/internal/model"
)

// Grid sizing. A geocoded place gets a lattice reaching defaultRangeKm around
// its center; places whose viewport diagonal exceeds largeViewportKm get a
// wider lattice with the same point count, so call volume stays bounded.
const (
	defaultRangeKm      = 10.0
	defaultRadiusMeters = 3500
	largeViewportKm     = 50.0
	largeRangeKm        = 60.0
	largeRadiusMeters   = 15000
)

// PlanSource tells where a plan's anchors came from.
type PlanSource string

const (
	SourceHubs PlanSource = "hubs"
	SourceGrid PlanSource = "grid"
	SourceNone PlanSource = "none" // geocoding failed, caller searches by text only
)

// Plan is the set of anchors covering one location.
type Plan struct {
	Anchors      []model.AnchorPoint
	RadiusMeters int
	Source       PlanSource
}

// Planner resolves locations to search anchors.
type Planner struct {
	hubs     *HubStore
	geocoder Geocoder
	logger   *slog.Logger
}

func NewPlanner(hubs *HubStore, geocoder Geocoder, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{hubs: hubs, geocoder: geocoder, logger: logger}
}

// Resolve turns a location into anchors: curated hubs for known regions,
// otherwise a lattice around the geocoded center. Geocoding failures are
// logged and produce an empty plan, never an error.
func (p *Planner) Resolve(ctx context.Context, location string) Plan {
	if p.hubs != nil {
		if anchors := p.hubs.Anchors(location); len(anchors) > 0 {
			p.logger.Info("PLAN", "location", location, "source", SourceHubs, "anchors", len(anchors))
			return Plan{Anchors: anchors, RadiusMeters: HubRadiusMeters, Source: SourceHubs}
		}
	}

	if p.geocoder == nil {
		return Plan{Source: SourceNone}
	}

	loc, err := p.geocoder.Geocode(ctx, location)
	if err != nil {
		p.logger.Warn("GEOCODE_FAILED", "location", location, "err", err)
		return Plan{Source: SourceNone}
	}
	if loc == nil {
		p.logger.Warn("GEOCODE_NOT_FOUND", "location", location)
		return Plan{Source: SourceNone}
	}

	rangeKm, radius := defaultRangeKm, defaultRadiusMeters
	if loc.HasViewport && DiagonalKm(loc.Viewport) > largeViewportKm {
		rangeKm, radius = largeRangeKm, largeRadiusMeters
	}

	points := Lattice(loc.Center, rangeKm, rangeKm/2)
	anchors := make([]model.AnchorPoint, 0, len(points))
	for _, pt := range points {
		anchors = append(anchors, model.AnchorPoint{Lat: pt.Lat(), Lng: pt.Lon(), RadiusMeters: radius})
	}

	p.logger.Info("PLAN", "location", location, "source", SourceGrid, "anchors", len(anchors), "range_km", rangeKm, "radius_m", radius)
	return Plan{Anchors: anchors, RadiusMeters: radius, Source: SourceGrid}
}
