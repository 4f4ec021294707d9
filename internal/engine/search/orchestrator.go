// Package search runs lead searches: it walks locations, anchors and result
// pages, filters and deduplicates leads, persists them and stops on goal,
// budget, exhaustion, abort or a fatal upstream error.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/contato-rede/leads/internal/engine/cost"
	"github.com/contato-rede/leads/internal/engine/dedup"
	"github.com/contato-rede/leads/internal/engine/geo"
	"github.com/contato-rede/leads/internal/engine/places"
	"github.com/contato-rede/leads/internal/engine/query"
	"github.com/contato-rede/leads/internal/model"
)

var tracer = otel.Tracer("github.com/contato-rede/leads/internal/engine/search")

type Planner interface {
	Resolve(ctx context.Context, location string) geo.Plan
}

type PageFetcher interface {
	FetchPage(ctx context.Context, state places.PageState, req places.PageRequest) (places.Page, places.PageState, error)
}

type LeadEnricher interface {
	EnrichAll(ctx context.Context, hits []places.Hit) []model.Lead
}

// LeadStore persists new leads. Writes may repeat after a retry, so a lead
// already held by the same campaign must be left as is. A lead held by another
// campaign must be moved into the one being written.
type LeadStore interface {
	SaveLeads(ctx context.Context, leads []model.Lead) (int, error)
}

// LinkFiller adds social links to leads before they are stored.
type LinkFiller interface {
	Fill(ctx context.Context, leads []model.Lead)
}

// Deps are the collaborators of an Orchestrator. Social and Splitter are optional.
type Deps struct {
	Planner  Planner
	Pages    PageFetcher
	Enricher LeadEnricher
	Store    LeadStore
	Pricing  cost.Pricing
	Social   LinkFiller
	Splitter query.Splitter
}

type Options struct {
	// Connector joins niche and location in the upstream query.
	Connector           string
	BatchCooldown       time.Duration
	TransientCooldown   time.Duration
	MaxTransientRetries int
	QuotaBaseCooldown   time.Duration
	QuotaMaxCooldown    time.Duration
	// SingleBatchGoal replaces the request goal in single mode.
	SingleBatchGoal int
	// WarnOnTokenExhaustion reports anchors whose page token never became ready.
	WarnOnTokenExhaustion bool
}

func DefaultOptions() Options {
	return Options{
		Connector:           "em",
		BatchCooldown:       3 * time.Second,
		TransientCooldown:   10 * time.Second,
		MaxTransientRetries: 5,
		QuotaBaseCooldown:   30 * time.Second,
		QuotaMaxCooldown:    5 * time.Minute,
		SingleBatchGoal:     10,
	}
}

// Orchestrator runs searches. One Orchestrator runs one search at a time.
type Orchestrator struct {
	deps       Deps
	opts       Options
	accountant cost.Accountant
	logger     *slog.Logger

	// Sleep and Now are swapped in tests.
	Sleep places.SleepFunc
	Now   func() time.Time
}

func New(deps Deps, opts Options, logger *slog.Logger) *Orchestrator {
	def := DefaultOptions()
	if opts.Connector == "" {
		opts.Connector = def.Connector
	}
	if opts.MaxTransientRetries <= 0 {
		opts.MaxTransientRetries = def.MaxTransientRetries
	}
	if opts.QuotaBaseCooldown <= 0 {
		opts.QuotaBaseCooldown = def.QuotaBaseCooldown
	}
	if opts.QuotaMaxCooldown < opts.QuotaBaseCooldown {
		opts.QuotaMaxCooldown = max(def.QuotaMaxCooldown, opts.QuotaBaseCooldown)
	}
	if opts.SingleBatchGoal <= 0 {
		opts.SingleBatchGoal = def.SingleBatchGoal
	}
	if deps.Splitter == nil {
		deps.Splitter = query.SeparatorSplitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		deps:       deps,
		opts:       opts,
		accountant: cost.NewAccountant(deps.Pricing),
		logger:     logger,
		Sleep:      places.Sleep,
		Now:        time.Now,
	}
}

// session is the working state of one run.
type session struct {
	req       model.SearchRequest
	filter    Filter
	goal      int
	known     *dedup.Set
	spend     float64 // this run
	prior     float64
	quotaHits int

	locIdx, locCount       int
	location               string
	anchorIdx, anchorCount int
	anchor                 string
	anchorAt               *orb.Point
	page                   int
	lastBatchNew           int

	res      Result
	progress func(Progress)
}

func (s *session) totalSpend() float64 {
	return s.prior + s.spend
}

func (s *session) overBudget() bool {
	return s.req.Budget > 0 && s.totalSpend() >= s.req.Budget
}

func (s *session) goalReached() bool {
	return s.goal > 0 && len(s.res.Leads) >= s.goal
}

// target is one anchor of a location, with its query text.
type target struct {
	query  string
	anchor *model.AnchorPoint
	radius int
	label  string
}

// outcome ends a run when non-nil.
type outcome struct {
	state  State
	reason string
	err    error
}

// Run executes req until a terminal state. ctx cancellation is honored at
// checkpoints: before each location, anchor and page fetch and after each
// batch. Upstream calls already in flight finish normally.
func (o *Orchestrator) Run(ctx context.Context, req model.SearchRequest, onProgress func(Progress)) Result {
	ctx, span := tracer.Start(ctx, "search.Run")
	defer span.End()

	if onProgress == nil {
		onProgress = func(Progress) {}
	}

	s := &session{
		req:      req,
		filter:   filterFromRequest(req),
		goal:     req.Goal,
		known:    dedup.New(req.KnownNames...),
		prior:    req.PriorSpend,
		progress: onProgress,
	}
	if req.Mode == model.ModeSingle {
		s.goal = o.opts.SingleBatchGoal
	}
	s.res.StartedAt = o.Now()

	out := o.run(ctx, s)

	s.res.State = out.state
	s.res.Reason = out.reason
	s.res.Err = out.err
	s.res.Spend = s.spend
	s.res.FinishedAt = o.Now()

	span.SetAttributes(
		attribute.String("search.state", string(out.state)),
		attribute.Int("search.found", len(s.res.Leads)),
		attribute.Float64("search.spend", s.spend),
	)
	if out.err != nil {
		span.RecordError(out.err)
		span.SetStatus(codes.Error, out.reason)
	}

	kind := EventDone
	if out.state == StateFatalError {
		kind = EventFatal
	}
	o.emit(s, out.state, kind, out.reason, 0)
	o.logger.Info("RUN_END",
		"state", out.state, "reason", out.reason, "found", len(s.res.Leads),
		"pages", s.res.Pages, "spend", fmt.Sprintf("%.3f", s.spend), "err", out.err)
	return s.res
}

func (o *Orchestrator) run(ctx context.Context, s *session) outcome {
	niche, locations := o.resolveRequest(s.req)
	if niche == "" {
		return outcome{state: StateFatalError, reason: "search niche is empty", err: errors.New("search niche is empty")}
	}
	if len(locations) == 0 {
		locations = []string{""}
	}

	o.logger.Info("RUN_START", "niche", niche, "locations", len(locations), "goal", s.goal,
		"budget", s.req.Budget, "prior_spend", s.prior, "mode", s.req.Mode, "known", s.known.Len())
	s.locCount = len(locations)
	o.emit(s, StateRunning, EventInfo, "search started", 0)

	for li, location := range locations {
		if ctx.Err() != nil {
			return outcome{state: StateAborted, reason: "stopped by user"}
		}
		s.locIdx, s.location = li+1, location

		targets := o.targets(ctx, s, niche, location)
		s.anchorCount = len(targets)
		for ai, t := range targets {
			if ctx.Err() != nil {
				return outcome{state: StateAborted, reason: "stopped by user"}
			}
			s.anchorIdx, s.anchor, s.page = ai+1, t.label, 0
			s.anchorAt = nil
			if t.anchor != nil {
				s.anchorAt = &orb.Point{t.anchor.Lng, t.anchor.Lat}
			}

			if out := o.runTarget(ctx, s, t); out != nil {
				return *out
			}
		}
	}
	return outcome{state: StateExhausted, reason: "all locations searched"}
}

// resolveRequest returns the niche and locations, splitting the legacy free
// text query when the structured fields are empty.
func (o *Orchestrator) resolveRequest(req model.SearchRequest) (string, []string) {
	niche := strings.TrimSpace(req.Niche)
	var locations []string
	for _, l := range req.Locations {
		if l = strings.TrimSpace(l); l != "" {
			locations = append(locations, l)
		}
	}
	if niche == "" && len(locations) == 0 && strings.TrimSpace(req.LegacyQuery) != "" {
		n, loc := o.deps.Splitter.Split(req.LegacyQuery)
		niche = n
		if loc != "" {
			locations = []string{loc}
		}
	}
	return niche, locations
}

func (o *Orchestrator) targets(ctx context.Context, s *session, niche, location string) []target {
	queryFor := func(place string) string {
		if place == "" {
			return niche
		}
		return niche + " " + o.opts.Connector + " " + place
	}

	if s.req.DeepSearch && location != "" && o.deps.Planner != nil {
		plan := o.deps.Planner.Resolve(ctx, location)
		if len(plan.Anchors) > 0 {
			out := make([]target, 0, len(plan.Anchors))
			for _, a := range plan.Anchors {
				q := queryFor(location)
				if a.Label != "" {
					q = queryFor(a.Label + ", " + location)
				}
				out = append(out, target{query: q, anchor: &a, radius: a.RadiusMeters, label: a.String()})
			}
			return out
		}
		o.logger.Info("PLAN_FALLBACK", "location", location, "source", plan.Source)
	}

	label := location
	if label == "" {
		label = niche
	}
	return []target{{query: queryFor(location), anchor: s.req.Bias, radius: s.req.RadiusMeters, label: label}}
}

// runTarget pages through one anchor. It returns nil when the anchor is done
// and the run should move on.
func (o *Orchestrator) runTarget(ctx context.Context, s *session, t target) *outcome {
	var state places.PageState
	transientStreak := 0
	// In-flight calls are not cut by an abort, only not resumed.
	callCtx := context.WithoutCancel(ctx)

	for {
		if ctx.Err() != nil {
			return &outcome{state: StateAborted, reason: "stopped by user"}
		}
		if s.overBudget() {
			return &outcome{state: StateBudgetStopped, reason: fmt.Sprintf("budget of %.2f reached (spent %.2f)", s.req.Budget, s.totalSpend())}
		}

		page, next, err := o.deps.Pages.FetchPage(callCtx, state, places.PageRequest{
			Query:        t.query,
			Anchor:       t.anchor,
			RadiusMeters: t.radius,
			Known:        s.known,
		})
		if err != nil {
			switch places.KindOf(err) {
			case places.KindFatalConfig:
				o.logger.Error("FATAL", "query", t.query, "err", err)
				return &outcome{state: StateFatalError, reason: err.Error(), err: err}

			case places.KindQuotaExceeded:
				s.quotaHits++
				wait := o.quotaCooldown(s.quotaHits)
				o.logger.Warn("RATE_LIMIT", "query", t.query, "hits", s.quotaHits, "cooldown", wait)
				o.emit(s, StateRunning, EventQuota, fmt.Sprintf("quota exceeded, resuming in %s", wait), wait)
				if o.Sleep(ctx, wait) != nil {
					return &outcome{state: StateAborted, reason: "stopped by user"}
				}

			case places.KindTransient, places.KindTokenNotReady, places.KindPartialFailure:
				transientStreak++
				if transientStreak > o.opts.MaxTransientRetries {
					o.logger.Error("ANCHOR_ABANDONED", "query", t.query, "anchor", t.label, "err", err)
					o.emit(s, StateRunning, EventTransient, fmt.Sprintf("giving up on %s after %d failures", t.label, transientStreak-1), 0)
					return nil
				}
				wait := o.opts.TransientCooldown
				o.logger.Warn("ERROR", "query", t.query, "attempt", transientStreak, "cooldown", wait, "err", err)
				o.emit(s, StateRunning, EventTransient, fmt.Sprintf("network error, retrying in %s", wait), wait)
				if o.Sleep(ctx, wait) != nil {
					return &outcome{state: StateAborted, reason: "stopped by user"}
				}
			}
			continue
		}

		s.quotaHits = 0
		transientStreak = 0
		state = next
		s.page++
		s.res.Pages++

		if page.TokenExhausted && o.opts.WarnOnTokenExhaustion {
			o.emit(s, StateRunning, EventToken, fmt.Sprintf("next page for %s never became ready, moving on", t.label), 0)
		}

		if page.SearchCalls > 0 {
			if out := o.processBatch(ctx, callCtx, s, t, page); out != nil {
				return out
			}
		}

		if s.goalReached() {
			return &outcome{state: StateGoalReached, reason: fmt.Sprintf("goal of %d leads reached", s.goal)}
		}
		if ctx.Err() != nil {
			return &outcome{state: StateAborted, reason: "stopped by user"}
		}
		switch s.req.Mode {
		case model.ModeSingle:
			return &outcome{state: StateExhausted, reason: "single batch finished"}
		case model.ModeUntilStagnant:
			if page.SearchCalls > 0 && s.lastBatchNew == 0 {
				return &outcome{state: StateExhausted, reason: "last batch brought no new leads"}
			}
		}
		if page.IsLastPage {
			return nil
		}
		if o.Sleep(ctx, o.opts.BatchCooldown) != nil {
			return &outcome{state: StateAborted, reason: "stopped by user"}
		}
	}
}

// processBatch enriches, filters, deduplicates and persists the hits of one page.
// Paid calls and the write run on callCtx; website fetches stop with ctx.
func (o *Orchestrator) processBatch(ctx, callCtx context.Context, s *session, t target, page places.Page) *outcome {
	leads := o.deps.Enricher.EnrichAll(callCtx, page.Hits)

	batchCost := o.accountant.Estimate(page.SearchCalls, len(leads))
	s.spend += batchCost
	s.res.SearchCalls += page.SearchCalls
	s.res.DetailCalls += len(leads)

	kept := filterLeads(leads, s.filter)
	fresh := make([]model.Lead, 0, len(kept))
	inBatch := make(map[string]struct{}, len(kept))
	for _, l := range kept {
		if _, dup := inBatch[l.Name]; dup || !s.known.IsNew(l.Name) {
			continue
		}
		inBatch[l.Name] = struct{}{}
		l.CampaignID = s.req.CampaignID
		fresh = append(fresh, l)
	}

	if o.deps.Social != nil && len(fresh) > 0 {
		o.deps.Social.Fill(ctx, fresh)
	}

	if len(fresh) > 0 {
		if out := o.persist(callCtx, s, fresh); out != nil {
			return out
		}
	}
	for _, l := range fresh {
		s.known.Remember(l.Name)
	}
	s.res.Leads = append(s.res.Leads, fresh...)
	s.lastBatchNew = len(fresh)

	duplicates := page.Skipped + len(kept) - len(fresh)
	o.logger.Info("PAGE",
		"query", t.query, "anchor", t.label, "page", s.page,
		"hits", len(page.Hits), "enriched", len(leads), "kept", len(kept),
		"new", len(fresh), "duplicates", duplicates,
		"found", len(s.res.Leads), "spend", fmt.Sprintf("%.3f", s.totalSpend()))

	p := o.snapshot(s, StateRunning, EventBatch, fmt.Sprintf("%d new leads, %d duplicates", len(fresh), duplicates), 0)
	p.BatchNew, p.BatchDuplicates = len(fresh), duplicates
	for _, h := range page.Hits {
		if pt, ok := h.Point(); ok {
			p.HitPoints = append(p.HitPoints, pt)
		}
	}
	s.progress(p)
	return nil
}

// persist stores leads, retrying like a transient upstream failure.
func (o *Orchestrator) persist(ctx context.Context, s *session, leads []model.Lead) *outcome {
	for attempt := 1; ; attempt++ {
		n, err := o.deps.Store.SaveLeads(ctx, leads)
		if err == nil {
			o.logger.Debug("SAVED", "written", n, "batch", len(leads))
			return nil
		}
		if attempt > o.opts.MaxTransientRetries {
			err = fmt.Errorf("saving leads: %w", err)
			o.logger.Error("FATAL", "err", err)
			return &outcome{state: StateFatalError, reason: err.Error(), err: err}
		}
		o.logger.Warn("ERROR", "op", "save", "attempt", attempt, "err", err)
		o.emit(s, StateRunning, EventTransient, fmt.Sprintf("could not save leads, retrying in %s", o.opts.TransientCooldown), o.opts.TransientCooldown)
		// Already paid for; keep trying to save even if the user aborts.
		_ = o.Sleep(ctx, o.opts.TransientCooldown)
	}
}

// quotaCooldown doubles the base cooldown per consecutive quota hit, up to the max.
func (o *Orchestrator) quotaCooldown(hits int) time.Duration {
	wait := o.opts.QuotaBaseCooldown
	for i := 1; i < hits && wait < o.opts.QuotaMaxCooldown; i++ {
		wait *= 2
	}
	return min(wait, o.opts.QuotaMaxCooldown)
}

func (o *Orchestrator) snapshot(s *session, state State, kind EventKind, msg string, cooldown time.Duration) Progress {
	return Progress{
		State:         state,
		Kind:          kind,
		Message:       msg,
		Location:      s.location,
		LocationIndex: s.locIdx,
		LocationCount: s.locCount,
		Anchor:        s.anchor,
		AnchorIndex:   s.anchorIdx,
		AnchorCount:   s.anchorCount,
		Page:          s.page,
		AnchorAt:      s.anchorAt,
		Found:         len(s.res.Leads),
		Goal:          s.goal,
		Spend:         s.totalSpend(),
		Budget:        s.req.Budget,
		Cooldown:      cooldown,
	}
}

func (o *Orchestrator) emit(s *session, state State, kind EventKind, msg string, cooldown time.Duration) {
	s.progress(o.snapshot(s, state, kind, msg, cooldown))
}
