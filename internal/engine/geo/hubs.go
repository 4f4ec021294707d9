package geo

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/contato-rede/leads/internal/model"
)

//go:embed geodata/hubs.geojson
var hubsFS embed.FS

// HubRadiusMeters is the search radius used around curated hubs. Hubs are few
// and far apart, so each one covers a wide area.
const HubRadiusMeters = 10000

// Extra spellings users type for the built-in regions.
var regionAliases = map[string]string{
	"santa catarina":    "SC",
	"parana":            "PR",
	"paraná":            "PR",
	"rio grande do sul": "RS",
}

// Hub is a curated, named search anchor inside a region.
type Hub struct {
	Name   string
	Region string
	Point  orb.Point // [lng, lat]
}

// HubStore indexes hubs by region code and region aliases.
type HubStore struct {
	byRegion map[string][]Hub
	aliases  map[string]string // lowercase alias -> region code
}

// NewHubStore loads the embedded hub list.
func NewHubStore() (*HubStore, error) {
	data, err := hubsFS.ReadFile("geodata/hubs.geojson")
	if err != nil {
		return nil, fmt.Errorf("reading embedded hubs: %w", err)
	}
	return ParseHubs(data)
}

// LoadHubStore reads a hub FeatureCollection from disk, falling back to the embedded list when path is empty.
func LoadHubStore(path string) (*HubStore, error) {
	if path == "" {
		return NewHubStore()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading hubs file: %w", err)
	}
	return ParseHubs(data)
}

// ParseHubs builds a store from a GeoJSON FeatureCollection of Point features
// carrying "name", "region" and optionally "regionName" properties.
func ParseHubs(data []byte) (*HubStore, error) {
	fc := &geojson.FeatureCollection{}
	if err := json.Unmarshal(data, fc); err != nil {
		return nil, fmt.Errorf("parsing hubs geojson: %w", err)
	}

	store := &HubStore{
		byRegion: make(map[string][]Hub),
		aliases:  make(map[string]string),
	}
	for alias, code := range regionAliases {
		store.aliases[alias] = code
	}

	for _, f := range fc.Features {
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			return nil, fmt.Errorf("hub geometry must be a Point, got %T", f.Geometry)
		}
		name := f.Properties.MustString("name", "")
		region := strings.ToUpper(f.Properties.MustString("region", ""))
		if name == "" || region == "" {
			return nil, fmt.Errorf("hub feature missing name or region")
		}

		store.byRegion[region] = append(store.byRegion[region], Hub{Name: name, Region: region, Point: pt})
		store.aliases[strings.ToLower(region)] = region
		if rn := f.Properties.MustString("regionName", ""); rn != "" {
			store.aliases[strings.ToLower(rn)] = region
		}
	}

	return store, nil
}

// HubsFor returns the hubs of the region location names, or nil when the
// location is not a known region alias.
func (s *HubStore) HubsFor(location string) []Hub {
	code, ok := s.aliases[strings.ToLower(strings.TrimSpace(location))]
	if !ok {
		return nil
	}
	return s.byRegion[code]
}

// Anchors converts the hubs of a region into search anchors.
func (s *HubStore) Anchors(location string) []model.AnchorPoint {
	hubs := s.HubsFor(location)
	if len(hubs) == 0 {
		return nil
	}
	anchors := make([]model.AnchorPoint, 0, len(hubs))
	for _, h := range hubs {
		anchors = append(anchors, model.AnchorPoint{
			Lat:          h.Point.Lat(),
			Lng:          h.Point.Lon(),
			Label:        h.Name,
			RadiusMeters: HubRadiusMeters,
		})
	}
	return anchors
}

// Regions lists the known region codes sorted alphabetically.
func (s *HubStore) Regions() []string {
	out := make([]string, 0, len(s.byRegion))
	for code := range s.byRegion {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
