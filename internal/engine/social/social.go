// Package social finds a business's Facebook and Instagram pages by reading
// the links on its website.
package social

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/contato-rede/leads/internal/model"
)

// Links are the social profiles found on a page.
type Links struct {
	Facebook  string
	Instagram string
}

// Scraper fetches websites and extracts social profile links.
type Scraper struct {
	http   *resty.Client
	logger *slog.Logger
}

func NewScraper(timeout time.Duration, logger *slog.Logger) *Scraper {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5)).
		SetHeader("User-Agent", "Mozilla/5.0 (compatible; leadtap/0.1)")
	return &Scraper{http: client, logger: logger}
}

// Lookup fetches pageURL and returns the social links it references.
func (s *Scraper) Lookup(ctx context.Context, pageURL string) (Links, error) {
	res, err := s.http.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		return Links{}, fmt.Errorf("fetch website: %w", err)
	}
	if !res.IsSuccess() {
		return Links{}, fmt.Errorf("website returned %s", res.Status())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return Links{}, fmt.Errorf("parse website: %w", err)
	}
	return Extract(doc), nil
}

// Fill looks up the social links of every lead with a website and no links
// yet. Failures leave the lead untouched.
func (s *Scraper) Fill(ctx context.Context, leads []model.Lead) {
	for i := range leads {
		l := &leads[i]
		if l.Website == "" || (l.Facebook != "" && l.Instagram != "") {
			continue
		}
		if ctx.Err() != nil {
			return
		}

		links, err := s.Lookup(ctx, l.Website)
		if err != nil {
			s.logger.Debug("SOCIAL_FAILED", "name", l.Name, "website", l.Website, "err", err)
			continue
		}
		if l.Facebook == "" {
			l.Facebook = links.Facebook
		}
		if l.Instagram == "" {
			l.Instagram = links.Instagram
		}
	}
}

// Extract returns the first Facebook and Instagram profile links in doc.
// Share buttons and plugin links are ignored.
func Extract(doc *goquery.Document) Links {
	var links Links
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		u, err := url.Parse(strings.TrimSpace(href))
		if err != nil || u.Host == "" {
			return true
		}

		host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
		host = strings.TrimPrefix(host, "m.")
		path := strings.Trim(u.Path, "/")
		if path == "" {
			return true
		}

		switch host {
		case "facebook.com", "fb.com":
			if links.Facebook == "" && !isFacebookPlugin(path) {
				links.Facebook = "https://facebook.com/" + path
			}
		case "instagram.com":
			if links.Instagram == "" && !strings.HasPrefix(path, "p/") {
				links.Instagram = "https://instagram.com/" + path
			}
		}
		return links.Facebook == "" || links.Instagram == ""
	})
	return links
}

func isFacebookPlugin(path string) bool {
	for _, prefix := range []string{"sharer", "share", "plugins", "dialog", "tr"} {
		if path == prefix || strings.HasPrefix(path, prefix+"/") || strings.HasPrefix(path, prefix+".php") {
			return true
		}
	}
	return false
}
