package places

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/paulmach/orb"

	"github.com/contato-rede/leads/internal/engine/geo"
	"github.com/contato-rede/leads/internal/model"
)

const (
	DefaultBaseURL = "https://maps.googleapis.com"

	textSearchPath = "/maps/api/place/textsearch/json"
	detailsPath    = "/maps/api/place/details/json"
	geocodePath    = "/maps/api/geocode/json"

	// DetailFields is the field mask sent with every details lookup.
	DetailFields = "name,formatted_phone_number,website,formatted_address,rating,user_ratings_total,types"

	defaultSearchTimeout = 15 * time.Second
	defaultDetailTimeout = 10 * time.Second
)

type Options struct {
	APIKey string
	// BaseURL points at Google or at a relay that injects the credential.
	BaseURL  string
	ProxyURL string
	// PlainTLS disables the Chrome TLS fingerprint.
	PlainTLS      bool
	Language      string
	SearchTimeout time.Duration
	DetailTimeout time.Duration
	Logger        *slog.Logger
}

// Client calls the Places text search, details and geocoding endpoints.
type Client struct {
	http          *resty.Client
	apiKey        string
	language      string
	searchTimeout time.Duration
	detailTimeout time.Duration
	logger        *slog.Logger
}

var _ geo.Geocoder = (*Client)(nil)

func NewClient(opts Options) (*Client, error) {
	transport, err := newTransport(opts.ProxyURL, opts.PlainTLS)
	if err != nil {
		return nil, fmt.Errorf("building transport: %w", err)
	}

	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = defaultSearchTimeout
	}
	if opts.DetailTimeout <= 0 {
		opts.DetailTimeout = defaultDetailTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	httpClient := resty.NewWithClient(&http.Client{Transport: transport}).
		SetBaseURL(opts.BaseURL).
		SetHeader("Accept", "application/json")
	instrument(httpClient)

	return &Client{
		http:          httpClient,
		apiKey:        opts.APIKey,
		language:      opts.Language,
		searchTimeout: opts.SearchTimeout,
		detailTimeout: opts.DetailTimeout,
		logger:        opts.Logger,
	}, nil
}

// SearchParams is one text search request. With a PageToken set the query and
// location are not sent, the token alone identifies the next page.
type SearchParams struct {
	Query        string
	Anchor       *model.AnchorPoint
	RadiusMeters int
	PageToken    string
}

type SearchResult struct {
	Hits          []Hit
	NextPageToken string
}

// TextSearch runs one text search call.
func (c *Client) TextSearch(ctx context.Context, p SearchParams) (*SearchResult, error) {
	params := map[string]string{}
	if p.PageToken != "" {
		params["pagetoken"] = p.PageToken
	} else {
		params["query"] = p.Query
		if p.Anchor != nil {
			params["location"] = fmt.Sprintf("%f,%f", p.Anchor.Lat, p.Anchor.Lng)
			if p.RadiusMeters > 0 {
				params["radius"] = strconv.Itoa(p.RadiusMeters)
			}
		}
		if c.language != "" {
			params["language"] = c.language
		}
	}

	var body searchResponse
	if err := c.get(ctx, c.searchTimeout, textSearchPath, params, p.PageToken != "", &body); err != nil {
		return nil, err
	}
	return &SearchResult{Hits: body.Results, NextPageToken: body.NextPageToken}, nil
}

// Details fetches the detail record of one place.
func (c *Client) Details(ctx context.Context, placeID string) (*Details, error) {
	params := map[string]string{
		"place_id": placeID,
		"fields":   DetailFields,
	}
	if c.language != "" {
		params["language"] = c.language
	}

	var body detailsResponse
	if err := c.get(ctx, c.detailTimeout, detailsPath, params, false, &body); err != nil {
		return nil, err
	}
	if body.Status != "OK" {
		return nil, &Error{Kind: KindPartialFailure, Status: body.Status, Message: "no details for " + placeID}
	}
	return &body.Result, nil
}

// Geocode resolves an address to a center and viewport. It returns nil
// without error when the address matched nothing.
func (c *Client) Geocode(ctx context.Context, address string) (*geo.Location, error) {
	var body geocodeResponse
	if err := c.get(ctx, c.searchTimeout, geocodePath, map[string]string{"address": address}, false, &body); err != nil {
		return nil, err
	}
	if len(body.Results) == 0 {
		return nil, nil
	}

	g := body.Results[0].Geometry
	loc := &geo.Location{Center: g.Location.Point()}
	if g.Viewport != nil {
		loc.Viewport = orb.Bound{Min: g.Viewport.Southwest.Point(), Max: g.Viewport.Northeast.Point()}
		loc.HasViewport = true
	}
	return loc, nil
}

// statusBody is decoded first so classification works for every endpoint.
type statusBody struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

func (c *Client) get(ctx context.Context, timeout time.Duration, path string, params map[string]string, withToken bool, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := c.http.R().SetContext(ctx).SetQueryParams(params)
	if c.apiKey != "" {
		req.SetQueryParam("key", c.apiKey)
	}

	resp, err := req.Get(path)
	if err != nil {
		return &Error{Kind: KindTransient, Message: "request to " + path + " failed", Err: redactError(err)}
	}

	var st statusBody
	if resp.IsSuccess() {
		if err := json.Unmarshal(resp.Body(), &st); err != nil {
			return &Error{Kind: KindTransient, HTTPStatus: resp.StatusCode(), Message: "decoding response", Err: err}
		}
	}
	if err := classify(resp.StatusCode(), st.Status, st.ErrorMessage, withToken); err != nil {
		c.logger.Debug("UPSTREAM_ERROR", "path", path, "http_status", resp.StatusCode(), "status", st.Status, "err", err)
		return err
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &Error{Kind: KindTransient, HTTPStatus: resp.StatusCode(), Message: "decoding response", Err: err}
	}
	return nil
}
