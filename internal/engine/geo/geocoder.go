package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/paulmach/orb"
)

// Location is a geocoded place: a center and, when the geocoder knows it, the
// viewport covering the place.
type Location struct {
	Center   orb.Point
	Viewport orb.Bound
	// HasViewport is false when the geocoder returned only a point.
	HasViewport bool
}

// Geocoder resolves free text to a Location. A nil Location with a nil error
// means the address was not found.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*Location, error)
}

const nominatimBaseURL = "https://nominatim.openstreetmap.org"

type nominatimResult struct {
	BoundingBox []string `json:"boundingbox"` // [minLat, maxLat, minLng, maxLng]
	Lat         string   `json:"lat"`
	Lon         string   `json:"lon"`
	DisplayName string   `json:"display_name"`
}

// Nominatim geocodes with the OSM Nominatim API. It needs no credential and is
// used when the Places geocoding endpoint is not wanted.
type Nominatim struct {
	http *resty.Client
}

var _ Geocoder = (*Nominatim)(nil)

func NewNominatim(baseURL string) *Nominatim {
	if baseURL == "" {
		baseURL = nominatimBaseURL
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetHeader("User-Agent", "leadtap/0.1 (lead search planner)")
	return &Nominatim{http: client}
}

func (n *Nominatim) Geocode(ctx context.Context, address string) (*Location, error) {
	resp, err := n.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":      address,
			"format": "json",
			"limit":  "1",
		}).
		Get("/search")
	if err != nil {
		return nil, fmt.Errorf("geocoding request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("geocoding returned status %d", resp.StatusCode())
	}

	var results []nominatimResult
	if err := json.Unmarshal(resp.Body(), &results); err != nil {
		return nil, fmt.Errorf("decoding geocoding response: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	r := results[0]
	lat, _ := strconv.ParseFloat(r.Lat, 64)
	lng, _ := strconv.ParseFloat(r.Lon, 64)
	loc := &Location{Center: orb.Point{lng, lat}}

	if bb := r.BoundingBox; len(bb) >= 4 {
		minLat, _ := strconv.ParseFloat(bb[0], 64)
		maxLat, _ := strconv.ParseFloat(bb[1], 64)
		minLng, _ := strconv.ParseFloat(bb[2], 64)
		maxLng, _ := strconv.ParseFloat(bb[3], 64)
		loc.Viewport = orb.Bound{Min: orb.Point{minLng, minLat}, Max: orb.Point{maxLng, maxLat}}
		loc.HasViewport = true
	}
	return loc, nil
}
