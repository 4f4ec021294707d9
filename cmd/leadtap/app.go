package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/contato-rede/leads/internal/config"
	"github.com/contato-rede/leads/internal/engine/geo"
	"github.com/contato-rede/leads/internal/engine/places"
	"github.com/contato-rede/leads/internal/engine/search"
	"github.com/contato-rede/leads/internal/engine/social"
	"github.com/contato-rede/leads/internal/engine/storage"
	"github.com/contato-rede/leads/internal/model"
	"github.com/contato-rede/leads/internal/tui/views"
)

// app wires configuration, storage and the search engine together. It
// backs both the headless commands and the interactive interface.
type app struct {
	cfg    config.Config
	store  *storage.Store
	hubs   *geo.HubStore
	logger *slog.Logger
}

var _ views.Backend = (*app)(nil)

func newApp(cfg config.Config, logger *slog.Logger) (*app, error) {
	store, err := storage.Open(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	hubs, err := geo.LoadHubStore(cfg.Geo.HubsFile)
	if err != nil {
		store.Close()
		return nil, err
	}
	return &app{cfg: cfg, store: store, hubs: hubs, logger: logger}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func (a *app) orchestrator() (*search.Orchestrator, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := places.NewClient(places.Options{
		APIKey:        a.cfg.API.Key,
		BaseURL:       a.cfg.API.BaseURL,
		ProxyURL:      a.cfg.API.Proxy,
		PlainTLS:      a.cfg.API.PlainTLS,
		Language:      a.cfg.API.Language,
		SearchTimeout: a.cfg.API.SearchTimeout,
		DetailTimeout: a.cfg.API.DetailTimeout,
		Logger:        a.logger,
	})
	if err != nil {
		return nil, err
	}

	var geocoder geo.Geocoder = client
	if a.cfg.Geo.Geocoder == "nominatim" {
		geocoder = geo.NewNominatim(a.cfg.Geo.NominatimURL)
	}

	pager := places.NewPaginator(client, a.cfg.Pricing, a.logger)
	pager.TokenDelay = a.cfg.Search.TokenDelay
	pager.MaxTokenRetries = a.cfg.Search.MaxTokenRetries

	deps := search.Deps{
		Planner:  geo.NewPlanner(a.hubs, geocoder, a.logger),
		Pages:    pager,
		Enricher: places.NewEnricher(client, a.cfg.Search.Concurrency, a.logger),
		Store:    a.store,
		Pricing:  a.cfg.Pricing,
	}
	if a.cfg.Enrichment.Social {
		deps.Social = social.NewScraper(a.cfg.Enrichment.SocialTimeout, a.logger)
	}

	s := a.cfg.Search
	return search.New(deps, search.Options{
		Connector:             s.Connector,
		BatchCooldown:         s.BatchCooldown,
		TransientCooldown:     s.TransientCooldown,
		MaxTransientRetries:   s.MaxTransientRetries,
		QuotaBaseCooldown:     s.QuotaBaseCooldown,
		QuotaMaxCooldown:      s.QuotaMaxCooldown,
		SingleBatchGoal:       s.SingleBatchGoal,
		WarnOnTokenExhaustion: s.WarnOnTokenExhaustion,
	}, a.logger), nil
}

// Scan runs one search for req and records it. The campaign's stored names
// seed deduplication and the daily budget caps the run.
func (a *app) Scan(ctx context.Context, req model.SearchRequest, onProgress func(search.Progress)) search.Result {
	started := time.Now()
	if req.CampaignID == "" {
		req.CampaignID = model.DefaultCampaignID
	}
	if req.RadiusMeters == 0 {
		req.RadiusMeters = a.cfg.Search.RadiusMeters
	}

	fail := func(err error) search.Result {
		a.logger.Error("SCAN_SETUP", "err", err)
		return search.Result{State: search.StateFatalError, Reason: err.Error(), Err: err, StartedAt: started, FinishedAt: time.Now()}
	}

	orch, err := a.orchestrator()
	if err != nil {
		return fail(err)
	}

	known, err := a.store.LeadNames(ctx, req.CampaignID)
	if err != nil {
		return fail(err)
	}
	req.KnownNames = append(req.KnownNames, known...)

	if err := a.applyDailyBudget(ctx, &req, started); err != nil {
		return fail(err)
	}
	a.rememberSearch(ctx, req)

	a.logger.Info("SCAN_START", "campaign", req.CampaignID, "niche", req.Niche, "locations", req.Locations,
		"goal", req.Goal, "mode", req.Mode, "deep", req.DeepSearch, "budget", req.Budget, "prior_spend", req.PriorSpend,
		"known", len(req.KnownNames))

	res := orch.Run(ctx, req, onProgress)

	rec := model.RunRecord{
		ID:         uuid.NewString(),
		CampaignID: req.CampaignID,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		State:      string(res.State),
		Reason:     res.Reason,
		Found:      res.Found(),
		Pages:      res.Pages,
		Spend:      res.Spend,
	}
	// The run is over; record it even when the caller canceled.
	if err := a.store.SaveRun(context.WithoutCancel(ctx), rec); err != nil {
		a.logger.Error("RUN_RECORD", "err", err)
	}
	a.logger.Info("SCAN_DONE", "state", res.State, "reason", res.Reason, "found", res.Found(),
		"pages", res.Pages, "search_calls", res.SearchCalls, "detail_calls", res.DetailCalls, "spend", res.Spend)
	return res
}

// applyDailyBudget tightens req's budget when the daily ceiling leaves less
// room than the run's own budget.
func (a *app) applyDailyBudget(ctx context.Context, req *model.SearchRequest, now time.Time) error {
	daily := a.cfg.Budget.Daily
	if daily <= 0 {
		return nil
	}
	y, m, d := now.Date()
	spent, err := a.store.SpendSince(ctx, time.Date(y, m, d, 0, 0, 0, 0, now.Location()))
	if err != nil {
		return err
	}
	if req.Budget <= 0 || daily-spent < req.Budget-req.PriorSpend {
		req.Budget = daily
		req.PriorSpend = spent
	}
	return nil
}

// rememberSearch stores req as the last search and updates its campaign.
// Failures are logged, a scan does not depend on them.
func (a *app) rememberSearch(ctx context.Context, req model.SearchRequest) {
	sc := model.SearchConfig{
		CampaignID:      req.CampaignID,
		Niche:           req.Niche,
		Locations:       req.Locations,
		Goal:            req.Goal,
		MinRating:       req.MinRating,
		OnlyWithPhone:   req.OnlyWithPhone,
		ExcludeKeywords: joinKeywords(req.ExcludeKeywords),
		Budget:          req.Budget,
		DeepSearch:      req.DeepSearch,
		Mode:            string(req.Mode),
	}
	if err := a.store.SaveSearchConfig(ctx, sc); err != nil {
		a.logger.Warn("SEARCH_CONFIG", "err", err)
	}

	c, err := a.store.GetCampaign(ctx, req.CampaignID)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		a.logger.Warn("CAMPAIGN_UPDATE", "err", err)
		return
	}
	c.Niche, c.Locations, c.Goal = req.Niche, req.Locations, req.Goal
	c.MinRating, c.OnlyWithPhone, c.ExcludeKeywords = req.MinRating, req.OnlyWithPhone, sc.ExcludeKeywords
	c.UpdatedAt = time.Time{}
	if err := a.store.SaveCampaign(ctx, c); err != nil {
		a.logger.Warn("CAMPAIGN_UPDATE", "err", err)
	}
}

func (a *app) LastSearch(ctx context.Context) (*model.SearchConfig, error) {
	return a.store.LoadSearchConfig(ctx)
}

func (a *app) Leads(ctx context.Context, campaignID string) ([]model.Lead, error) {
	return a.store.ListLeads(ctx, campaignID)
}

func (a *app) DeleteLead(ctx context.Context, id string) (bool, error) {
	return a.store.DeleteLead(ctx, id)
}

func (a *app) Runs(ctx context.Context, limit int) ([]model.RunRecord, error) {
	return a.store.ListRuns(ctx, limit)
}

func (a *app) Restore(ctx context.Context, path string) (*storage.Backup, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return a.store.ImportBackup(ctx, f)
}

func (a *app) Regions() []string {
	return a.hubs.Regions()
}
