package naver

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tcg-pricer/internal/config"
	"tcg-pricer/internal/metrics"
	"tcg-pricer/internal/pricing"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

const shopPath = "/v1/search/shop.json"

// Client queries the Naver shopping search API.
type Client struct {
	client       *resty.Client
	clientID     string
	clientSecret string
	display      int
	log          zerolog.Logger
	metrics      metrics.Recorder
}

type shopItem struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	LPrice   string `json:"lprice"`
	MallName string `json:"mallName"`
}

type shopResponse struct {
	Total int        `json:"total"`
	Items []shopItem `json:"items"`
}

// NewClient builds a client from cfg. rec may be nil.
func NewClient(cfg config.NaverConfig, log zerolog.Logger, rec metrics.Recorder) *Client {
	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	client.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	client.SetHeader("X-Naver-Client-Id", cfg.ClientID)
	client.SetHeader("X-Naver-Client-Secret", cfg.ClientSecret)

	if rec == nil {
		rec = metrics.Nop()
	}
	display := cfg.Display
	if display <= 0 {
		display = 20
	}
	c := &Client{
		client:       client,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		display:      display,
		log:          log.With().Str("component", "naver").Logger(),
		metrics:      rec,
	}
	if c.clientID == "" || c.clientSecret == "" {
		c.log.Warn().Msg("naver credentials are not configured, searches will return no listings")
	}
	return c
}

// Search returns up to the configured page size of new-item listings for
// keyword. Any failure yields an empty slice.
func (c *Client) Search(ctx context.Context, keyword string) []pricing.Listing {
	return c.SearchGame(ctx, "", keyword)
}

// SearchGame is Search with the game attached to metrics.
func (c *Client) SearchGame(ctx context.Context, game pricing.Game, keyword string) []pricing.Listing {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" || c.clientID == "" || c.clientSecret == "" {
		return nil
	}

	start := time.Now()
	var body shopResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"query":   keyword,
			"display": strconv.Itoa(c.display),
			"sort":    "sim",
			"exclude": "used:rental:cbshop",
		}).
		SetResult(&body).
		Get(shopPath)
	if err != nil {
		c.metrics.ObserveSearch(string(game), "error", time.Since(start))
		c.log.Warn().Err(err).Str("keyword", keyword).Msg("search request failed")
		return nil
	}
	if resp.StatusCode() != http.StatusOK {
		c.metrics.ObserveSearch(string(game), "status_"+strconv.Itoa(resp.StatusCode()), time.Since(start))
		c.log.Warn().Int("status", resp.StatusCode()).Str("keyword", keyword).Str("body", preview(resp.String())).Msg("search returned non-200")
		return nil
	}
	c.metrics.ObserveSearch(string(game), "ok", time.Since(start))

	listings := make([]pricing.Listing, 0, len(body.Items))
	for _, it := range body.Items {
		price, err := strconv.Atoi(strings.TrimSpace(it.LPrice))
		if err != nil || price <= 0 {
			continue
		}
		listings = append(listings, pricing.Listing{Title: it.Title, Price: price, Seller: it.MallName})
	}
	c.log.Debug().Str("keyword", keyword).Int("items", len(listings)).Msg("search finished")
	return listings
}

func preview(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
