package places

import (
	"context"
	"log/slog"
	"time"

	"github.com/contato-rede/leads/internal/engine/cost"
	"github.com/contato-rede/leads/internal/model"
)

// Phase is the pagination phase of one query stream.
type Phase int

const (
	PhaseFresh Phase = iota
	PhasePaging
	PhaseExhausted
)

func (p Phase) String() string {
	switch p {
	case PhaseFresh:
		return "FRESH"
	case PhasePaging:
		return "PAGING"
	case PhaseExhausted:
		return "EXHAUSTED"
	}
	return "UNKNOWN"
}

// PageState is the continuation state of one query stream. The zero value is a
// fresh stream. It is owned by the caller and threaded through FetchPage.
type PageState struct {
	Query        string
	Token        string
	Phase        Phase
	TokenRetries int
}

// NameSet reports names that must not be enriched again.
type NameSet interface {
	Contains(name string) bool
}

type PageRequest struct {
	Query        string
	Anchor       *model.AnchorPoint
	RadiusMeters int
	Known        NameSet
}

// Page is the outcome of one FetchPage call.
type Page struct {
	Hits []Hit
	// Skipped counts hits dropped because their name was already known.
	Skipped     int
	SearchCalls int
	// Cost is the search call cost only; detail calls are priced by the caller.
	Cost       float64
	IsLastPage bool
	// TokenExhausted is set when the stream ended because the continuation
	// token never became ready.
	TokenExhausted bool
}

// Searcher runs a single text search call.
type Searcher interface {
	TextSearch(ctx context.Context, p SearchParams) (*SearchResult, error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

const (
	// Google needs a moment before a next_page_token becomes valid.
	defaultTokenDelay      = 3500 * time.Millisecond
	defaultMaxTokenRetries = 3
	tokenRetryBase         = 2 * time.Second
	tokenRetryStep         = 1 * time.Second
)

// Paginator walks the pages of text search queries.
type Paginator struct {
	search          Searcher
	pricing         cost.Pricing
	logger          *slog.Logger
	TokenDelay      time.Duration
	MaxTokenRetries int
	Sleep           SleepFunc
}

func NewPaginator(search Searcher, pricing cost.Pricing, logger *slog.Logger) *Paginator {
	if pricing == nil {
		pricing = cost.DefaultTable()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Paginator{
		search:          search,
		pricing:         pricing,
		logger:          logger,
		TokenDelay:      defaultTokenDelay,
		MaxTokenRetries: defaultMaxTokenRetries,
		Sleep:           Sleep,
	}
}

// FetchPage fetches the next page of req.Query. A query that differs from
// state.Query starts over from a fresh state. On error the returned state is
// the state the call started from, so the same step can be retried.
func (p *Paginator) FetchPage(ctx context.Context, state PageState, req PageRequest) (Page, PageState, error) {
	if state.Query != req.Query {
		state = PageState{Query: req.Query}
	}
	if state.Phase == PhaseExhausted {
		return Page{IsLastPage: true}, state, nil
	}
	start := state

	for {
		params := SearchParams{Query: req.Query, Anchor: req.Anchor, RadiusMeters: req.RadiusMeters}
		if state.Token != "" {
			params.PageToken = state.Token
			if err := p.Sleep(ctx, p.TokenDelay); err != nil {
				return Page{}, start, err
			}
		}

		res, err := p.search.TextSearch(ctx, params)
		if err != nil {
			if KindOf(err) != KindTokenNotReady || state.Token == "" {
				return Page{}, start, err
			}

			state.TokenRetries++
			if state.TokenRetries > p.MaxTokenRetries {
				p.logger.Warn("TOKEN_EXHAUSTED", "query", req.Query, "retries", p.MaxTokenRetries)
				state = PageState{Query: req.Query, Phase: PhaseExhausted}
				return Page{IsLastPage: true, TokenExhausted: true}, state, nil
			}

			wait := tokenRetryBase + time.Duration(state.TokenRetries)*tokenRetryStep
			p.logger.Info("TOKEN_NOT_READY", "query", req.Query, "retry", state.TokenRetries, "wait", wait)
			if err := p.Sleep(ctx, wait); err != nil {
				return Page{}, start, err
			}
			continue
		}

		state.TokenRetries = 0
		state.Token = res.NextPageToken
		if state.Token == "" {
			state.Phase = PhaseExhausted
		} else {
			state.Phase = PhasePaging
		}

		page := Page{
			SearchCalls: 1,
			Cost:        p.pricing.SearchCall(),
			IsLastPage:  state.Token == "",
		}
		for _, h := range res.Hits {
			if req.Known != nil && req.Known.Contains(h.Name) {
				page.Skipped++
				continue
			}
			page.Hits = append(page.Hits, h)
		}
		return page, state, nil
	}
}
