package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"

	"github.com/contato-rede/leads/internal/engine/cost"
	"github.com/contato-rede/leads/internal/engine/geo"
	"github.com/contato-rede/leads/internal/engine/places"
	"github.com/contato-rede/leads/internal/engine/storage"
	"github.com/contato-rede/leads/internal/model"
)

// fakeUpstream serves canned pages per query. Tokens encode "query|pageIndex".
type fakeUpstream struct {
	mu    sync.Mutex
	pages map[string][][]places.Hit
	errs  []error // returned in order before any page
	calls []places.SearchParams
}

func (f *fakeUpstream) TextSearch(_ context.Context, p places.SearchParams) (*places.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, p)

	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}

	q, idx := p.Query, 0
	if p.PageToken != "" {
		i := strings.LastIndex(p.PageToken, "|")
		q = p.PageToken[:i]
		idx, _ = strconv.Atoi(p.PageToken[i+1:])
	}
	pages := f.pages[q]
	if idx >= len(pages) {
		return &places.SearchResult{}, nil
	}
	res := &places.SearchResult{Hits: pages[idx]}
	if idx+1 < len(pages) {
		res.NextPageToken = fmt.Sprintf("%s|%d", q, idx+1)
	}
	return res, nil
}

func (f *fakeUpstream) queries() []string {
	var out []string
	for _, c := range f.calls {
		if c.PageToken == "" {
			out = append(out, c.Query)
		}
	}
	return out
}

// hitEnricher maps hits straight to leads; every lead gets a phone unless listed in noPhone.
type hitEnricher struct {
	noPhone map[string]bool
	calls   int
}

func (e *hitEnricher) EnrichAll(_ context.Context, hits []places.Hit) []model.Lead {
	out := make([]model.Lead, 0, len(hits))
	for _, h := range hits {
		e.calls++
		l := model.Lead{ID: "biz-" + h.PlaceID, Name: h.Name, Rating: float64(h.Rating), Phone: "(47) 99999-0000"}
		if e.noPhone[h.Name] {
			l.Phone = ""
		}
		out = append(out, l)
	}
	return out
}

type memStore struct {
	saved    []model.Lead
	failures int // first N calls fail
	calls    int
}

func (m *memStore) SaveLeads(_ context.Context, leads []model.Lead) (int, error) {
	m.calls++
	if m.calls <= m.failures {
		return 0, errors.New("disk full")
	}
	m.saved = append(m.saved, leads...)
	return len(leads), nil
}

func (m *memStore) names() []string {
	var out []string
	for _, l := range m.saved {
		out = append(out, l.Name)
	}
	return out
}

type fakePlanner struct {
	plans map[string]geo.Plan
}

func (p fakePlanner) Resolve(_ context.Context, location string) geo.Plan {
	return p.plans[location]
}

type harness struct {
	orch     *Orchestrator
	up       *fakeUpstream
	enricher *hitEnricher
	store    *memStore
	sleeps   []time.Duration
	events   []Progress
}

func newHarness(t *testing.T, up *fakeUpstream, opts Options) *harness {
	t.Helper()
	h := &harness{up: up, enricher: &hitEnricher{}, store: &memStore{}}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pager := places.NewPaginator(up, cost.DefaultTable(), logger)
	pager.Sleep = func(ctx context.Context, _ time.Duration) error { return nil }

	h.orch = New(Deps{
		Pages:    pager,
		Enricher: h.enricher,
		Store:    h.store,
		Pricing:  cost.DefaultTable(),
	}, opts, logger)
	h.orch.Sleep = func(ctx context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return ctx.Err()
	}
	return h
}

func (h *harness) run(ctx context.Context, req model.SearchRequest) Result {
	return h.orch.Run(ctx, req, func(p Progress) { h.events = append(h.events, p) })
}

func namedHits(prefix string, n int) []places.Hit {
	out := make([]places.Hit, 0, n)
	for i := range n {
		out = append(out, places.Hit{PlaceID: fmt.Sprintf("%s-%d", prefix, i), Name: fmt.Sprintf("%s %d", prefix, i), Rating: 4.5})
	}
	return out
}

func TestRunGoalReachedAcrossTwoPages(t *testing.T) {
	up := &fakeUpstream{pages: map[string][][]places.Hit{
		"oficina em Blumenau": {namedHits("A", 10), namedHits("B", 10), namedHits("C", 10)},
	}}
	h := newHarness(t, up, DefaultOptions())

	res := h.run(context.Background(), model.SearchRequest{
		Niche: "oficina", Locations: []string{"Blumenau"}, Goal: 20, Budget: 0,
	})

	require.Equal(t, StateGoalReached, res.State)
	require.Len(t, h.store.saved, 20)
	require.Equal(t, 2, res.Pages)
	require.Equal(t, 2, res.SearchCalls)
	require.Len(t, up.calls, 2)
	require.InDelta(t, 2*cost.DefaultSearchCall+20*cost.DefaultDetailCall, res.Spend, 1e-9)
	require.Equal(t, []time.Duration{3 * time.Second}, h.sleeps, "one batch cooldown between the two pages")

	last := h.events[len(h.events)-1]
	require.Equal(t, StateGoalReached, last.State)
	require.Equal(t, 20, last.Found)
}

func TestRunPermissionDeniedIsFatal(t *testing.T) {
	up := &fakeUpstream{errs: []error{&places.Error{Kind: places.KindFatalConfig, Status: "REQUEST_DENIED"}}}
	h := newHarness(t, up, DefaultOptions())

	res := h.run(context.Background(), model.SearchRequest{Niche: "oficina", Locations: []string{"Blumenau", "Joinville"}, Goal: 20})

	require.Equal(t, StateFatalError, res.State)
	require.Error(t, res.Err)
	require.Equal(t, places.KindFatalConfig, places.KindOf(res.Err))
	require.Empty(t, h.store.saved)
	require.Zero(t, res.Spend)
	require.Len(t, up.calls, 1, "fatal errors are not retried")
	require.Equal(t, EventFatal, h.events[len(h.events)-1].Kind)
}

func TestRunSkipsKnownNames(t *testing.T) {
	hits := namedHits("A", 10)
	up := &fakeUpstream{pages: map[string][][]places.Hit{"oficina em Blumenau": {hits}}}
	h := newHarness(t, up, DefaultOptions())

	res := h.run(context.Background(), model.SearchRequest{
		Niche: "oficina", Locations: []string{"Blumenau"}, Goal: 50,
		KnownNames: []string{hits[1].Name, hits[4].Name, hits[7].Name},
	})

	require.Equal(t, StateExhausted, res.State)
	require.Len(t, h.store.saved, 7)
	require.Equal(t, 7, res.Found())
	require.Equal(t, 7, h.enricher.calls, "known names are skipped before details are fetched")
	require.NotContains(t, h.store.names(), hits[4].Name)
}

func TestRunMinRatingParsesStrings(t *testing.T) {
	var hits []places.Hit
	require.NoError(t, json.Unmarshal([]byte(`[
		{"place_id":"1","name":"Baixa Nota","rating":"3.8"},
		{"place_id":"2","name":"Boa Nota","rating":4.5},
		{"place_id":"3","name":"Sem Nota","rating":"sem avaliação"},
		{"place_id":"4","name":"Nota Vírgula","rating":"4,2"}
	]`), &hits))
	up := &fakeUpstream{pages: map[string][][]places.Hit{"oficina": {hits}}}
	h := newHarness(t, up, DefaultOptions())

	res := h.run(context.Background(), model.SearchRequest{Niche: "oficina", Goal: 10, MinRating: 4.0})

	require.Equal(t, StateExhausted, res.State)
	require.Equal(t, []string{"Boa Nota", "Nota Vírgula"}, h.store.names())
}

func TestRunPhoneAndKeywordFilters(t *testing.T) {
	up := &fakeUpstream{pages: map[string][][]places.Hit{"oficina em Itajaí": {{
		{PlaceID: "1", Name: "Oficina Boa"},
		{PlaceID: "2", Name: "Sem Telefone"},
		{PlaceID: "3", Name: "AUTO PEÇAS Centro"},
		{PlaceID: "4", Name: "Posto Shell"},
	}}}}
	h := newHarness(t, up, DefaultOptions())
	h.enricher.noPhone = map[string]bool{"Sem Telefone": true}

	h.run(context.Background(), model.SearchRequest{
		Niche: "oficina", Locations: []string{"Itajaí"}, Goal: 10,
		OnlyWithPhone: true, ExcludeKeywords: []string{" auto peças", "POSTO", ""},
	})
	require.Equal(t, []string{"Oficina Boa"}, h.store.names())
}

func TestRunUntilStagnantStopsOnEmptyBatch(t *testing.T) {
	hits := namedHits("A", 5)
	up := &fakeUpstream{pages: map[string][][]places.Hit{
		"oficina em Blumenau": {hits, namedHits("B", 5)},
	}}
	h := newHarness(t, up, DefaultOptions())

	known := []string{}
	for _, x := range hits {
		known = append(known, x.Name)
	}
	res := h.run(context.Background(), model.SearchRequest{
		Niche: "oficina", Locations: []string{"Blumenau"}, Goal: 100,
		Mode: model.ModeUntilStagnant, KnownNames: known,
	})

	require.Equal(t, StateExhausted, res.State)
	require.Contains(t, res.Reason, "no new leads")
	require.Empty(t, h.store.saved)
	require.Zero(t, h.store.calls, "nothing is written")
	require.Len(t, up.calls, 1)
}

func TestRunSingleModeStopsAfterFirstBatch(t *testing.T) {
	up := &fakeUpstream{pages: map[string][][]places.Hit{
		"oficina em Blumenau": {namedHits("A", 4), namedHits("B", 4)},
	}}
	h := newHarness(t, up, DefaultOptions())

	res := h.run(context.Background(), model.SearchRequest{
		Niche: "oficina", Locations: []string{"Blumenau", "Joinville"}, Goal: 500, Mode: model.ModeSingle,
	})
	require.Equal(t, StateExhausted, res.State)
	require.Equal(t, "single batch finished", res.Reason)
	require.Len(t, h.store.saved, 4)
	require.Len(t, up.calls, 1)

	up = &fakeUpstream{pages: map[string][][]places.Hit{"oficina em Blumenau": {namedHits("A", 20)}}}
	h = newHarness(t, up, DefaultOptions())
	res = h.run(context.Background(), model.SearchRequest{
		Niche: "oficina", Locations: []string{"Blumenau"}, Goal: 500, Mode: model.ModeSingle,
	})
	require.Equal(t, StateGoalReached, res.State, "single mode uses its own small goal")
}

func TestRunBudgetStop(t *testing.T) {
	up := &fakeUpstream{pages: map[string][][]places.Hit{
		"oficina em Blumenau": {namedHits("A", 2), namedHits("B", 2), namedHits("C", 2)},
	}}
	h := newHarness(t, up, DefaultOptions())

	// Each page costs 0.032 + 2*0.017 = 0.066.
	res := h.run(context.Background(), model.SearchRequest{
		Niche: "oficina", Locations: []string{"Blumenau"}, Goal: 100, Budget: 0.1,
	})
	require.Equal(t, StateBudgetStopped, res.State)
	require.Equal(t, 2, res.Pages)
	require.Len(t, h.store.saved, 4)

	var prev float64
	for _, e := range h.events {
		require.GreaterOrEqual(t, e.Spend, prev, "spend never decreases")
		prev = e.Spend
	}
	require.Less(t, prev, 0.1+0.066+1e-9, "overshoot is at most one batch")
}

func TestRunPriorSpendCountsAgainstBudget(t *testing.T) {
	up := &fakeUpstream{pages: map[string][][]places.Hit{"oficina": {namedHits("A", 2)}}}
	h := newHarness(t, up, DefaultOptions())

	res := h.run(context.Background(), model.SearchRequest{Niche: "oficina", Goal: 10, Budget: 5, PriorSpend: 5})
	require.Equal(t, StateBudgetStopped, res.State)
	require.Empty(t, up.calls)
	require.Zero(t, res.Spend)
}

func TestRunDedupAcrossAnchors(t *testing.T) {
	shared := namedHits("Shared", 3)
	up := &fakeUpstream{pages: map[string][][]places.Hit{
		"retífica em Joinville, sc":     {append(namedHits("J", 2), shared...)},
		"retífica em Florianópolis, sc": {append(shared, namedHits("F", 2)...)},
	}}
	h := newHarness(t, up, DefaultOptions())
	h.orch.deps.Planner = fakePlanner{plans: map[string]geo.Plan{
		"sc": {Source: geo.SourceHubs, RadiusMeters: 10000, Anchors: []model.AnchorPoint{
			{Lat: -26.3, Lng: -48.8, Label: "Joinville", RadiusMeters: 10000},
			{Lat: -27.6, Lng: -48.5, Label: "Florianópolis", RadiusMeters: 10000},
		}},
	}}

	res := h.run(context.Background(), model.SearchRequest{
		Niche: "retífica", Locations: []string{"sc"}, Goal: 100, DeepSearch: true, CampaignID: "camp-1",
	})

	require.Equal(t, StateExhausted, res.State)
	require.Equal(t, []string{"retífica em Joinville, sc", "retífica em Florianópolis, sc"}, up.queries())
	require.Len(t, h.store.saved, 7)

	seen := map[string]bool{}
	for _, l := range h.store.saved {
		require.False(t, seen[l.Name], "duplicate %q", l.Name)
		seen[l.Name] = true
		require.Equal(t, "camp-1", l.CampaignID)
	}
	require.NotNil(t, up.calls[0].Anchor)
	require.Equal(t, 10000, up.calls[0].RadiusMeters)
}

func TestRunFallsBackToTextSearchWhenPlanIsEmpty(t *testing.T) {
	up := &fakeUpstream{pages: map[string][][]places.Hit{"oficina em Lugar Nenhum": {namedHits("A", 1)}}}
	h := newHarness(t, up, DefaultOptions())
	h.orch.deps.Planner = fakePlanner{}
	bias := &model.AnchorPoint{Lat: -27, Lng: -49}

	h.run(context.Background(), model.SearchRequest{
		Niche: "oficina", Locations: []string{"Lugar Nenhum"}, Goal: 5, DeepSearch: true, Bias: bias, RadiusMeters: 5000,
	})
	require.Len(t, up.calls, 1)
	require.Equal(t, bias, up.calls[0].Anchor)
	require.Equal(t, 5000, up.calls[0].RadiusMeters)
	require.Len(t, h.store.saved, 1)
}

func TestRunDuplicateNamesWithinOneBatch(t *testing.T) {
	up := &fakeUpstream{pages: map[string][][]places.Hit{"oficina": {{
		{PlaceID: "1", Name: "Mesma Oficina"},
		{PlaceID: "2", Name: "Mesma Oficina"},
		{PlaceID: "3", Name: "Outra"},
	}}}}
	h := newHarness(t, up, DefaultOptions())

	h.run(context.Background(), model.SearchRequest{Niche: "oficina", Goal: 10})
	require.Equal(t, []string{"Mesma Oficina", "Outra"}, h.store.names())
}

func TestRunQuotaCooldownEscalatesAndResets(t *testing.T) {
	quota := &places.Error{Kind: places.KindQuotaExceeded, Status: "OVER_QUERY_LIMIT"}
	up := &fakeUpstream{
		errs:  []error{quota, quota, quota},
		pages: map[string][][]places.Hit{"oficina": {namedHits("A", 2)}},
	}
	h := newHarness(t, up, DefaultOptions())

	res := h.run(context.Background(), model.SearchRequest{Niche: "oficina", Goal: 10})
	require.Equal(t, StateExhausted, res.State)
	require.Len(t, h.store.saved, 2)
	require.Equal(t, []time.Duration{30 * time.Second, time.Minute, 2 * time.Minute}, h.sleeps)

	var quotaEvents int
	for _, e := range h.events {
		if e.Kind == EventQuota {
			quotaEvents++
			require.Positive(t, e.Cooldown)
		}
	}
	require.Equal(t, 3, quotaEvents)
}

func TestQuotaCooldownIsCapped(t *testing.T) {
	o := New(Deps{}, DefaultOptions(), nil)
	var got []time.Duration
	for hits := 1; hits <= 7; hits++ {
		got = append(got, o.quotaCooldown(hits))
	}
	require.Equal(t, []time.Duration{
		30 * time.Second, time.Minute, 2 * time.Minute, 4 * time.Minute,
		5 * time.Minute, 5 * time.Minute, 5 * time.Minute,
	}, got)
}

func TestRunTransientRetriesThenAbandonsAnchor(t *testing.T) {
	netErr := errors.New("connection reset")
	up := &fakeUpstream{
		errs:  []error{netErr, netErr, netErr},
		pages: map[string][][]places.Hit{"oficina em Joinville": {namedHits("J", 2)}},
	}
	opts := DefaultOptions()
	opts.MaxTransientRetries = 2
	h := newHarness(t, up, opts)

	res := h.run(context.Background(), model.SearchRequest{
		Niche: "oficina", Locations: []string{"Blumenau", "Joinville"}, Goal: 10,
	})

	require.Equal(t, StateExhausted, res.State)
	require.Equal(t, []string{"J 0", "J 1"}, h.store.names(), "the run moves on to the next location")
	require.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second}, h.sleeps)
}

func TestRunTransientRecoveryKeepsState(t *testing.T) {
	up := &fakeUpstream{pages: map[string][][]places.Hit{
		"oficina": {namedHits("A", 3), namedHits("B", 3)},
	}}
	h := newHarness(t, up, DefaultOptions())

	// Fail the second page once.
	calls := 0
	orig := h.orch.deps.Pages
	h.orch.deps.Pages = pageFetcherFunc(func(ctx context.Context, st places.PageState, req places.PageRequest) (places.Page, places.PageState, error) {
		calls++
		if calls == 2 {
			return places.Page{}, st, &places.Error{Kind: places.KindTransient}
		}
		return orig.FetchPage(ctx, st, req)
	})

	res := h.run(context.Background(), model.SearchRequest{Niche: "oficina", Goal: 6})
	require.Equal(t, StateGoalReached, res.State)
	require.Len(t, h.store.saved, 6)
	require.Len(t, up.calls, 2, "the failed step reused the held token")
	require.Equal(t, "oficina|1", up.calls[1].PageToken)
}

type pageFetcherFunc func(context.Context, places.PageState, places.PageRequest) (places.Page, places.PageState, error)

func (f pageFetcherFunc) FetchPage(ctx context.Context, st places.PageState, req places.PageRequest) (places.Page, places.PageState, error) {
	return f(ctx, st, req)
}

func TestRunAbortKeepsPersistedLeads(t *testing.T) {
	up := &fakeUpstream{pages: map[string][][]places.Hit{
		"oficina": {namedHits("A", 3), namedHits("B", 3)},
	}}
	h := newHarness(t, up, DefaultOptions())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	res := h.orch.Run(ctx, model.SearchRequest{Niche: "oficina", Goal: 100}, func(p Progress) {
		if p.Kind == EventBatch {
			cancel()
		}
	})

	require.Equal(t, StateAborted, res.State)
	require.Len(t, h.store.saved, 3)
	require.Len(t, up.calls, 1)
}

func TestRunAbortBeforeStart(t *testing.T) {
	up := &fakeUpstream{}
	h := newHarness(t, up, DefaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := h.run(ctx, model.SearchRequest{Niche: "oficina", Locations: []string{"x"}, Goal: 1})
	require.Equal(t, StateAborted, res.State)
	require.Empty(t, up.calls)
}

func TestRunPersistRetries(t *testing.T) {
	up := &fakeUpstream{pages: map[string][][]places.Hit{"oficina": {namedHits("A", 2)}}}
	h := newHarness(t, up, DefaultOptions())
	h.store.failures = 2

	res := h.run(context.Background(), model.SearchRequest{Niche: "oficina", Goal: 10})
	require.Equal(t, StateExhausted, res.State)
	require.Len(t, h.store.saved, 2)
	require.Equal(t, 3, h.store.calls)

	up = &fakeUpstream{pages: map[string][][]places.Hit{"oficina": {namedHits("A", 2)}}}
	h = newHarness(t, up, DefaultOptions())
	h.store.failures = 100

	res = h.run(context.Background(), model.SearchRequest{Niche: "oficina", Goal: 10})
	require.Equal(t, StateFatalError, res.State)
	require.ErrorContains(t, res.Err, "disk full")
	require.Empty(t, res.Leads)
	require.Positive(t, res.Spend, "calls already made are still paid for")
}

func TestRunTokenExhaustionWarning(t *testing.T) {
	notReady := &places.Error{Kind: places.KindTokenNotReady}
	up := &fakeUpstream{pages: map[string][][]places.Hit{"oficina": {namedHits("A", 2), namedHits("B", 2)}}}
	opts := DefaultOptions()
	opts.WarnOnTokenExhaustion = true
	h := newHarness(t, up, opts)

	// After the first page every call reports a token that is not ready.
	inner := h.orch.deps.Pages.(*places.Paginator)
	first := true
	h.orch.deps.Pages = pageFetcherFunc(func(ctx context.Context, st places.PageState, req places.PageRequest) (places.Page, places.PageState, error) {
		if !first {
			up.mu.Lock()
			up.errs = []error{notReady, notReady, notReady, notReady}
			up.mu.Unlock()
		}
		first = false
		return inner.FetchPage(ctx, st, req)
	})

	res := h.run(context.Background(), model.SearchRequest{Niche: "oficina", Goal: 10})
	require.Equal(t, StateExhausted, res.State)
	require.Len(t, h.store.saved, 2)

	var warned bool
	for _, e := range h.events {
		if e.Kind == EventToken {
			warned = true
		}
	}
	require.True(t, warned)
}

func TestRunLegacyQuery(t *testing.T) {
	up := &fakeUpstream{pages: map[string][][]places.Hit{"retífica em Chapecó": {namedHits("A", 1)}}}
	h := newHarness(t, up, DefaultOptions())

	res := h.run(context.Background(), model.SearchRequest{LegacyQuery: "retífica de motores em Chapecó", Goal: 1})
	require.Equal(t, StateGoalReached, res.State)
	require.Equal(t, []string{"retífica em Chapecó"}, up.queries(), "the splitter keeps the niche before the first connector")

	res = h.run(context.Background(), model.SearchRequest{Goal: 1})
	require.Equal(t, StateFatalError, res.State)
}

func TestRunMovesLeadFoundByAnotherCampaign(t *testing.T) {
	st, err := storage.Open(t.TempDir() + "/leads.db")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	ctx := context.Background()

	hits := []places.Hit{{PlaceID: "p1", Name: "Retífica Norte", Rating: 4.5}}
	runFor := func(campaign string) Result {
		up := &fakeUpstream{pages: map[string][][]places.Hit{"retífica": {hits}}}
		h := newHarness(t, up, DefaultOptions())
		h.orch.deps.Store = st
		known, err := st.LeadNames(ctx, campaign)
		require.NoError(t, err)
		return h.run(ctx, model.SearchRequest{Niche: "retífica", Goal: 10, CampaignID: campaign, KnownNames: known})
	}

	require.Equal(t, 1, runFor("a").Found())
	require.Equal(t, 1, runFor("b").Found())

	inB, err := st.ListLeads(ctx, "b")
	require.NoError(t, err)
	require.Len(t, inB, 1)
	require.Equal(t, "biz-p1", inB[0].ID)

	inA, err := st.ListLeads(ctx, "a")
	require.NoError(t, err)
	require.Empty(t, inA)
}

// cancelEnricher aborts the run while a batch is being enriched.
type cancelEnricher struct {
	hitEnricher
	cancel context.CancelFunc
}

func (e *cancelEnricher) EnrichAll(ctx context.Context, hits []places.Hit) []model.Lead {
	e.cancel()
	return e.hitEnricher.EnrichAll(ctx, hits)
}

type ctxFiller struct {
	errs []error
}

func (f *ctxFiller) Fill(ctx context.Context, _ []model.Lead) {
	f.errs = append(f.errs, ctx.Err())
}

func TestRunAbortReachesWebsiteFetches(t *testing.T) {
	up := &fakeUpstream{pages: map[string][][]places.Hit{"oficina": {namedHits("A", 3), namedHits("B", 3)}}}
	h := newHarness(t, up, DefaultOptions())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	filler := &ctxFiller{}
	h.orch.deps.Enricher = &cancelEnricher{cancel: cancel}
	h.orch.deps.Social = filler

	res := h.run(ctx, model.SearchRequest{Niche: "oficina", Goal: 100})

	require.Equal(t, StateAborted, res.State)
	require.Equal(t, []error{context.Canceled}, filler.errs)
	require.Len(t, h.store.saved, 3, "the paid batch is still stored")
}

func TestRunReportsAnchorAndHitPositions(t *testing.T) {
	located := func(id string, lat, lng float64) places.Hit {
		return places.Hit{PlaceID: id, Name: "Oficina " + id, Geometry: places.Geometry{Location: &places.LatLng{Lat: lat, Lng: lng}}}
	}
	up := &fakeUpstream{pages: map[string][][]places.Hit{
		"oficina em Joinville, sc": {{located("1", -26.31, -48.84), {PlaceID: "2", Name: "Sem Posição"}}},
	}}
	h := newHarness(t, up, DefaultOptions())
	h.orch.deps.Planner = fakePlanner{plans: map[string]geo.Plan{
		"sc": {Source: geo.SourceHubs, Anchors: []model.AnchorPoint{{Lat: -26.3, Lng: -48.8, Label: "Joinville"}}},
	}}

	h.run(context.Background(), model.SearchRequest{Niche: "oficina", Locations: []string{"sc"}, Goal: 10, DeepSearch: true})

	var batch *Progress
	for i := range h.events {
		if h.events[i].Kind == EventBatch {
			batch = &h.events[i]
		}
	}
	require.NotNil(t, batch)
	require.NotNil(t, batch.AnchorAt)
	require.Equal(t, orb.Point{-48.8, -26.3}, *batch.AnchorAt)
	require.Equal(t, []orb.Point{{-48.84, -26.31}}, batch.HitPoints)
}
