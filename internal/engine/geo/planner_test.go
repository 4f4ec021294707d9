package geo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
)

type fakeGeocoder struct {
	loc   *Location
	err   error
	calls int
}

func (f *fakeGeocoder) Geocode(_ context.Context, _ string) (*Location, error) {
	f.calls++
	return f.loc, f.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPlanner(t *testing.T, g Geocoder) *Planner {
	t.Helper()
	hubs, err := NewHubStore()
	require.NoError(t, err)
	return NewPlanner(hubs, g, quietLogger())
}

func TestResolveHubAliases(t *testing.T) {
	g := &fakeGeocoder{}
	p := newTestPlanner(t, g)

	for _, loc := range []string{"sc", "SC", " Santa Catarina ", "Paraná", "parana", "rs"} {
		plan := p.Resolve(context.Background(), loc)
		require.Equal(t, SourceHubs, plan.Source, loc)
		require.Equal(t, HubRadiusMeters, plan.RadiusMeters, loc)
		require.NotEmpty(t, plan.Anchors, loc)
		for _, a := range plan.Anchors {
			require.NotEmpty(t, a.Label)
			require.Equal(t, HubRadiusMeters, a.RadiusMeters)
		}
	}
	require.Zero(t, g.calls, "hub regions never hit the geocoder")

	sc := p.Resolve(context.Background(), "sc")
	require.Equal(t, "Joinville", sc.Anchors[0].Label)
	require.InDelta(t, -26.3045, sc.Anchors[0].Lat, 1e-9)
	require.InDelta(t, -48.8464, sc.Anchors[0].Lng, 1e-9)
}

func TestResolveSmallViewportGrid(t *testing.T) {
	center := orb.Point{-49.0661, -26.9194} // Blumenau
	g := &fakeGeocoder{loc: &Location{
		Center:      center,
		Viewport:    orb.Bound{Min: orb.Point{-49.2, -27.0}, Max: orb.Point{-48.95, -26.8}},
		HasViewport: true,
	}}
	p := newTestPlanner(t, g)

	plan := p.Resolve(context.Background(), "Blumenau, SC")
	require.Equal(t, SourceGrid, plan.Source)
	require.Equal(t, defaultRadiusMeters, plan.RadiusMeters)
	require.Len(t, plan.Anchors, 25)

	// Center is part of the lattice and corners sit one range away.
	var hasCenter bool
	maxLatOffset := 0.0
	for _, a := range plan.Anchors {
		require.Equal(t, defaultRadiusMeters, a.RadiusMeters)
		if math.Abs(a.Lat-center.Lat()) < 1e-9 && math.Abs(a.Lng-center.Lon()) < 1e-9 {
			hasCenter = true
		}
		maxLatOffset = math.Max(maxLatOffset, math.Abs(a.Lat-center.Lat()))
	}
	require.True(t, hasCenter)
	require.InDelta(t, defaultRangeKm/kmPerDegree, maxLatOffset, 1e-9)
}

func TestResolveLargeViewportWidensGrid(t *testing.T) {
	g := &fakeGeocoder{loc: &Location{
		Center:      orb.Point{-51.2177, -30.0346},
		Viewport:    orb.Bound{Min: orb.Point{-52.0, -30.8}, Max: orb.Point{-50.5, -29.3}},
		HasViewport: true,
	}}
	p := newTestPlanner(t, g)

	plan := p.Resolve(context.Background(), "Região Metropolitana de Porto Alegre")
	require.Equal(t, largeRadiusMeters, plan.RadiusMeters)
	require.Len(t, plan.Anchors, 25, "wider spacing keeps the point count bounded")
}

func TestResolveWithoutViewportUsesDefaults(t *testing.T) {
	g := &fakeGeocoder{loc: &Location{Center: orb.Point{-48.5, -27.6}}}
	p := newTestPlanner(t, g)

	plan := p.Resolve(context.Background(), "Florianópolis centro")
	require.Equal(t, defaultRadiusMeters, plan.RadiusMeters)
	require.Len(t, plan.Anchors, 25)
}

func TestResolveGeocodeFailureYieldsEmptyPlan(t *testing.T) {
	p := newTestPlanner(t, &fakeGeocoder{err: errors.New("boom")})
	plan := p.Resolve(context.Background(), "Lugar Nenhum")
	require.Equal(t, SourceNone, plan.Source)
	require.Empty(t, plan.Anchors)

	p = newTestPlanner(t, &fakeGeocoder{})
	plan = p.Resolve(context.Background(), "Lugar Nenhum")
	require.Equal(t, SourceNone, plan.Source)
	require.Empty(t, plan.Anchors)

	p = NewPlanner(nil, nil, nil)
	require.Empty(t, p.Resolve(context.Background(), "sc").Anchors)
}

func TestLattice(t *testing.T) {
	center := orb.Point{0, 0}
	require.Len(t, Lattice(center, 10, 5), 25)
	require.Len(t, Lattice(center, 10, 3), 81) // ceil(10/3) = 4 rings
	require.Equal(t, []orb.Point{center}, Lattice(center, 10, 0))
}

func TestDiagonalKm(t *testing.T) {
	b := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{0, 1}}
	require.InDelta(t, 111.2, DiagonalKm(b), 0.5)
}

func TestParseHubsRejectsBadFeatures(t *testing.T) {
	_, err := ParseHubs([]byte(`{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]},"properties":{"name":"x","region":"XX"}}]}`))
	require.Error(t, err)

	_, err = ParseHubs([]byte(`{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[0,0]},"properties":{"name":"x"}}]}`))
	require.Error(t, err)

	store, err := ParseHubs([]byte(`{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[-46.63,-23.55]},"properties":{"name":"São Paulo","region":"sp","regionName":"São Paulo (estado)"}}]}`))
	require.NoError(t, err)
	require.Equal(t, []string{"SP"}, store.Regions())
	require.Len(t, store.HubsFor("são paulo (estado)"), 1)
	require.Len(t, store.HubsFor("SP"), 1)
	require.Len(t, store.HubsFor("sc"), 0, "only aliases, no SC hubs in this file")
}

func TestNominatimGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		switch r.URL.Query().Get("q") {
		case "Blumenau":
			w.Write([]byte(`[{"lat":"-26.9194","lon":"-49.0661","display_name":"Blumenau","boundingbox":["-27.1","-26.7","-49.3","-48.9"]}]`))
		case "nowhere":
			w.Write([]byte(`[]`))
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	n := NewNominatim(srv.URL)

	loc, err := n.Geocode(context.Background(), "Blumenau")
	require.NoError(t, err)
	require.NotNil(t, loc)
	require.True(t, loc.HasViewport)
	require.InDelta(t, -26.9194, loc.Center.Lat(), 1e-9)
	require.InDelta(t, -49.0661, loc.Center.Lon(), 1e-9)
	require.InDelta(t, -27.1, loc.Viewport.Min.Lat(), 1e-9)
	require.InDelta(t, -48.9, loc.Viewport.Max.Lon(), 1e-9)

	loc, err = n.Geocode(context.Background(), "nowhere")
	require.NoError(t, err)
	require.Nil(t, loc)

	_, err = n.Geocode(context.Background(), "broken")
	require.Error(t, err)
}
