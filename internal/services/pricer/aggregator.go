package pricer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tcg-pricer/internal/metrics"
	"tcg-pricer/internal/models"
	"tcg-pricer/internal/pricing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

// Searcher queries the shopping search API.
type Searcher interface {
	SearchGame(ctx context.Context, game pricing.Game, keyword string) []pricing.Listing
}

// Store is the catalog and price history storage the aggregator works on.
type Store interface {
	FindDailyPrice(ctx context.Context, cardVersionID uint, date time.Time) (*models.DailyPriceHistory, error)
	DeleteDailyPrices(ctx context.Context, cardVersionID uint, date time.Time) (int64, error)
	CreateDailyPrice(ctx context.Context, p *models.DailyPriceHistory) error
	LatestDailyPriceBefore(ctx context.Context, cardVersionID uint, date time.Time) (*models.DailyPriceHistory, error)
	ListCatalogItems(ctx context.Context, game pricing.Game, limit int) ([]pricing.CatalogItem, error)
	GetCatalogItem(ctx context.Context, id uint) (pricing.CatalogItem, error)
	CurrentSellPrice(ctx context.Context, cardVersionID uint) (*int, error)
}

// Options are the deployment-wide pricing constants.
type Options struct {
	// Adjustment is added to every computed lowest price.
	Adjustment int
	// MinPrice is the floor persisted prices are clamped up to.
	MinPrice int
	// Delay is slept after every search call.
	Delay time.Duration
}

// RunOptions control a single run.
type RunOptions struct {
	Force  bool
	DryRun bool
	// Limit caps the number of items in a batch when positive.
	Limit int
	// CardID restricts a batch to one card version.
	CardID uint
	// Progress is called after each item.
	Progress func(done, total int, r ItemResult)
}

// ItemResult reports what happened to one catalog item.
type ItemResult struct {
	CardVersionID  uint   `json:"card_version_id"`
	Name           string `json:"name"`
	Date           string `json:"date"`
	Success        bool   `json:"success"`
	Skipped        bool   `json:"skipped"`
	Created        bool   `json:"created"`
	DryRun         bool   `json:"dry_run"`
	Price          *int   `json:"price"`
	RawPrice       *int   `json:"raw_price,omitempty"`
	CurrentPrice   *int   `json:"current_price,omitempty"`
	Source         string `json:"source,omitempty"`
	Keyword        string `json:"keyword,omitempty"`
	Classification string `json:"classification,omitempty"`
	CardCode       string `json:"card_code,omitempty"`
	ListingCount   int    `json:"listing_count"`
	MatchedCount   int    `json:"matched_count"`
	Filter         string `json:"filter,omitempty"`
	Reason         string `json:"reason,omitempty"`
	Error          string `json:"error,omitempty"`

	err error
}

// Err returns the per-item failure, if any.
func (r ItemResult) Err() error { return r.err }

func (r *ItemResult) fail(err error) {
	r.Success = false
	r.err = err
	r.Reason = pricing.Reason(err)
	r.Error = err.Error()
}

func (r *ItemResult) clear() {
	r.err, r.Reason, r.Error = nil, "", ""
}

// Summary aggregates a batch run.
type Summary struct {
	RunID       string       `json:"run_id"`
	Game        pricing.Game `json:"game"`
	Date        string       `json:"date"`
	Total       int          `json:"total"`
	Success     int          `json:"success"`
	Created     int          `json:"created"`
	Skipped     int          `json:"skipped"`
	Failed      int          `json:"failed"`
	DryRun      bool         `json:"dry_run"`
	Force       bool         `json:"force"`
	Interrupted bool         `json:"interrupted"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
	Results     []ItemResult `json:"results"`
}

func (s *Summary) add(r ItemResult) {
	s.Results = append(s.Results, r)
	switch {
	case r.Success:
		s.Success++
		if r.Created {
			s.Created++
		}
		if r.Skipped {
			s.Skipped++
		}
	default:
		s.Failed++
	}
}

// Aggregator turns search results into the daily lowest price series.
// Items are processed one at a time.
type Aggregator struct {
	engine  *pricing.Engine
	search  Searcher
	store   Store
	opts    Options
	log     zerolog.Logger
	metrics metrics.Recorder
	sleep   func(ctx context.Context, d time.Duration)
}

// New builds an Aggregator. rec may be nil.
func New(engine *pricing.Engine, search Searcher, store Store, opts Options, log zerolog.Logger, rec metrics.Recorder) *Aggregator {
	if rec == nil {
		rec = metrics.Nop()
	}
	return &Aggregator{
		engine:  engine,
		search:  search,
		store:   store,
		opts:    opts,
		log:     log.With().Str("component", "pricer").Logger(),
		metrics: rec,
		sleep:   sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// FinalPrice applies the adjustment and the floor to a raw lowest price.
func (a *Aggregator) FinalPrice(raw int) int {
	p := raw + a.opts.Adjustment
	if p < a.opts.MinPrice {
		p = a.opts.MinPrice
	}
	return p
}

// UpdateItem prices one catalog item for date. The returned error is only
// set for storage failures that should stop a batch; per-item failures are
// reported in the result.
func (a *Aggregator) UpdateItem(ctx context.Context, item pricing.CatalogItem, date time.Time, ro RunOptions) (ItemResult, error) {
	return a.updateItem(ctx, "", item, date, ro)
}

func (a *Aggregator) updateItem(ctx context.Context, expect pricing.Game, item pricing.CatalogItem, date time.Time, ro RunOptions) (ItemResult, error) {
	res := ItemResult{CardVersionID: item.ID, Name: item.Name, Date: date.Format(dateLayout), DryRun: ro.DryRun}

	if expect != "" && item.Game != expect {
		res.fail(fmt.Errorf("card version %d is %q, not %q: %w", item.ID, item.Game, expect, pricing.ErrNotApplicable))
		return res, nil
	}

	var replace bool
	if !ro.DryRun {
		existing, err := a.store.FindDailyPrice(ctx, item.ID, date)
		if err != nil {
			return res, err
		}
		if existing != nil && !ro.Force {
			p := existing.OnlineLowestPrice
			res.Success, res.Skipped, res.Price, res.Source = true, true, &p, existing.Source
			return res, nil
		}
		replace = existing != nil
	}

	if !a.quote(ctx, item, &res) {
		if res.Filter != pricing.FilterSellerMissing {
			return res, nil
		}
		prev, err := a.store.LatestDailyPriceBefore(ctx, item.ID, date)
		if err != nil {
			return res, err
		}
		if prev == nil {
			return res, nil
		}
		price := prev.OnlineLowestPrice
		res.clear()
		res.Price, res.Source = &price, models.SourceCarried
	}

	if ro.DryRun {
		current, err := a.store.CurrentSellPrice(ctx, item.ID)
		if err != nil {
			a.log.Warn().Err(err).Uint("card_version_id", item.ID).Msg("could not read current price")
		}
		res.CurrentPrice = current
		res.Success = true
		return res, nil
	}

	// A forced run keeps the old point until a new price is in hand.
	if replace {
		if _, err := a.store.DeleteDailyPrices(ctx, item.ID, date); err != nil {
			return res, err
		}
	}
	err := a.store.CreateDailyPrice(ctx, &models.DailyPriceHistory{
		CardVersionID:     item.ID,
		Date:              date,
		OnlineLowestPrice: *res.Price,
		Source:            res.Source,
		Keyword:           res.Keyword,
		MatchedCount:      res.MatchedCount,
	})
	switch {
	case errors.Is(err, pricing.ErrDuplicatePoint):
		res.Success, res.Skipped = true, true
	case err != nil:
		res.fail(fmt.Errorf("%w: %v", pricing.ErrPersistFailure, err))
	default:
		res.Success, res.Created = true, true
	}
	return res, nil
}

// quote runs extraction, search and filtering for item and fills res. It
// reports whether a price was found.
func (a *Aggregator) quote(ctx context.Context, item pricing.CatalogItem, res *ItemResult) bool {
	q := a.engine.Extract(item)
	res.Keyword, res.Classification, res.CardCode = q.Keyword, string(q.Classification), q.CardCode
	switch {
	case q.Classification == pricing.ClassNotApplicable:
		res.fail(pricing.ErrNotApplicable)
		return false
	case q.Classification == pricing.ClassExcluded:
		res.fail(pricing.ErrExcluded)
		return false
	case !q.Searchable():
		res.fail(pricing.ErrNoKeyword)
		return false
	}

	listings := a.search.SearchGame(ctx, item.Game, q.Keyword)
	a.sleep(ctx, a.opts.Delay)
	if err := ctx.Err(); err != nil {
		res.fail(fmt.Errorf("%w: %v", pricing.ErrInterrupted, err))
		return false
	}
	res.ListingCount = len(listings)
	if len(listings) == 0 {
		res.fail(pricing.ErrNoSearchResults)
		return false
	}

	match := a.engine.Filter(item.Game, listings, q)
	res.MatchedCount, res.Filter = match.MatchedCount, match.Filter
	if match.MinPrice == nil {
		res.fail(pricing.ErrNoValidMatches)
		return false
	}
	raw := *match.MinPrice
	price := a.FinalPrice(raw)
	res.RawPrice, res.Price = &raw, &price
	res.Source = models.SourceSearch
	if match.Seller != "" {
		res.Source = models.SourceSeller
	}
	return true
}

// Quote prices item from a live search without reading or writing stored
// prices.
func (a *Aggregator) Quote(ctx context.Context, item pricing.CatalogItem) ItemResult {
	res := ItemResult{CardVersionID: item.ID, Name: item.Name, Date: time.Now().Format(dateLayout), DryRun: true}
	if a.quote(ctx, item, &res) {
		res.Success = true
	}
	return res
}

// safeUpdate turns a panic while pricing one item into a failed result.
func (a *Aggregator) safeUpdate(ctx context.Context, game pricing.Game, item pricing.CatalogItem, date time.Time, ro RunOptions) (res ItemResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = ItemResult{CardVersionID: item.ID, Name: item.Name, Date: date.Format(dateLayout), DryRun: ro.DryRun}
			res.fail(fmt.Errorf("panic: %v", r))
			res.Reason = "panic"
			err = nil
		}
	}()
	return a.updateItem(ctx, game, item, date, ro)
}

// UpdateGame prices every catalog item of game for date. A non-nil error
// means the batch was aborted; the summary still holds the items processed.
func (a *Aggregator) UpdateGame(ctx context.Context, game pricing.Game, date time.Time, ro RunOptions) (*Summary, error) {
	summary := &Summary{
		RunID:     uuid.NewString(),
		Game:      game,
		Date:      date.Format(dateLayout),
		DryRun:    ro.DryRun,
		Force:     ro.Force,
		StartedAt: time.Now(),
	}
	log := a.log.With().Str("run_id", summary.RunID).Str("game", string(game)).Str("date", summary.Date).Logger()

	var items []pricing.CatalogItem
	if ro.CardID != 0 {
		item, err := a.store.GetCatalogItem(ctx, ro.CardID)
		if err != nil {
			return summary, err
		}
		items = []pricing.CatalogItem{item}
	} else {
		var err error
		if items, err = a.store.ListCatalogItems(ctx, game, ro.Limit); err != nil {
			return summary, err
		}
	}
	summary.Total = len(items)
	log.Info().Int("items", len(items)).Bool("force", ro.Force).Bool("dry_run", ro.DryRun).Msg("price update started")

	for i, item := range items {
		if ctx.Err() != nil {
			summary.Interrupted = true
			log.Warn().Int("processed", i).Msg("price update interrupted")
			break
		}
		res, err := a.safeUpdate(ctx, game, item, date, ro)
		if err != nil {
			summary.FinishedAt = time.Now()
			log.Error().Err(err).Uint("card_version_id", item.ID).Msg("price update aborted")
			return summary, fmt.Errorf("card version %d: %w", item.ID, err)
		}
		if errors.Is(res.Err(), pricing.ErrInterrupted) {
			summary.Interrupted = true
			log.Warn().Int("processed", i).Uint("card_version_id", item.ID).Msg("price update interrupted")
			break
		}
		summary.add(res)
		a.record(log, game, i+1, len(items), res)
		if ro.Progress != nil {
			ro.Progress(i+1, len(items), res)
		}
	}

	summary.FinishedAt = time.Now()
	a.metrics.SetLastRun(string(game), summary.FinishedAt)
	log.Info().
		Int("total", summary.Total).
		Int("success", summary.Success).
		Int("created", summary.Created).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Dur("took", summary.FinishedAt.Sub(summary.StartedAt)).
		Msg("price update finished")
	return summary, nil
}

func (a *Aggregator) record(log zerolog.Logger, game pricing.Game, done, total int, r ItemResult) {
	outcome := "created"
	switch {
	case !r.Success:
		outcome = r.Reason
	case r.Skipped:
		outcome = "skipped"
	case r.DryRun:
		outcome = "dry_run"
	}
	a.metrics.IncItem(string(game), outcome)

	prefix := fmt.Sprintf("[%d/%d]", done, total)
	if !r.Success {
		log.Warn().Uint("card_version_id", r.CardVersionID).Str("keyword", r.Keyword).Str("reason", r.Reason).
			Msgf("%s ✗ %s: %s", prefix, r.Name, r.Error)
		return
	}
	ev := log.Info().Uint("card_version_id", r.CardVersionID).Str("keyword", r.Keyword).Str("outcome", outcome)
	if r.Price != nil {
		ev = ev.Int("price", *r.Price)
	}
	if r.CurrentPrice != nil {
		ev = ev.Int("current_price", *r.CurrentPrice)
	}
	ev.Msgf("%s ✓ %s", prefix, r.Name)
}
