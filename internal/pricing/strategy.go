package pricing

import (
	"strings"
)

// Strategy turns catalog items of one game into search queries and decides
// which listings match them.
type Strategy interface {
	Game() Game
	// Extract builds the search query. Items of another game get a
	// not-applicable query with an empty keyword.
	Extract(item CatalogItem) SearchQuery
	// Filter returns the lowest price among listings that match q.
	Filter(listings []Listing, q SearchQuery) MatchResult
}

// Engine dispatches to the strategy registered for an item's game.
type Engine struct {
	strategies map[Game]Strategy
	opts       Options
}

// NewEngine registers the Pokémon, One Piece and Digimon strategies.
func NewEngine(opts Options) *Engine {
	if opts.SuperParallelMinPrice <= 0 {
		opts.SuperParallelMinPrice = DefaultOptions().SuperParallelMinPrice
	}
	if opts.OnePieceSpecial == "" {
		opts.OnePieceSpecial = SpecialSearch
	}
	e := &Engine{strategies: make(map[Game]Strategy), opts: opts}
	e.Register(NewPokemonStrategy())
	e.Register(NewOnePieceStrategy(opts))
	e.Register(NewDigimonStrategy())
	return e
}

// Register adds or replaces the strategy for s.Game().
func (e *Engine) Register(s Strategy) {
	e.strategies[s.Game()] = s
}

// Strategy returns the strategy for g.
func (e *Engine) Strategy(g Game) (Strategy, bool) {
	s, ok := e.strategies[g]
	return s, ok
}

// Extract builds the search query for item.
func (e *Engine) Extract(item CatalogItem) SearchQuery {
	s, ok := e.strategies[item.Game]
	if !ok {
		return notApplicable()
	}
	return s.Extract(item)
}

// Filter picks the price for q from listings, applying the seller override
// configured for g when there is one.
func (e *Engine) Filter(g Game, listings []Listing, q SearchQuery) MatchResult {
	if o, ok := e.opts.SellerOverrides[g]; ok && o.Enabled() {
		return sellerPrice(listings, q, o)
	}
	s, ok := e.strategies[g]
	if !ok {
		return MatchResult{Filter: FilterNone}
	}
	return s.Filter(listings, q)
}

// SellerOverride returns the override configured for g.
func (e *Engine) SellerOverride(g Game) (SellerOverride, bool) {
	o, ok := e.opts.SellerOverrides[g]
	if !ok || !o.Enabled() {
		return SellerOverride{}, false
	}
	return o, true
}

// sellerPrice accepts the named seller's cheapest listing that carries the
// card code, minus the configured discount.
func sellerPrice(listings []Listing, q SearchQuery, o SellerOverride) MatchResult {
	res := collect(listings, func(l Listing, title string) bool {
		if l.Seller != o.Seller {
			return false
		}
		return q.CardCode == "" || strings.Contains(title, q.CardCode)
	}, FilterSeller)
	if res.MinPrice == nil {
		res.Filter = FilterSellerMissing
		return res
	}
	p := *res.MinPrice - o.Discount
	if p < 0 {
		p = 0
	}
	res.MinPrice = &p
	res.Seller = o.Seller
	return res
}

// DetectGame guesses the game of a free-text product name.
func DetectGame(name string) (Game, bool) {
	s := strings.TrimSpace(name)
	switch {
	case strings.HasPrefix(s, "디지몬"):
		return GameDigimon, true
	case strings.HasPrefix(s, "원피스"):
		return GameOnePiece, true
	case strings.HasPrefix(s, "포켓몬"):
		return GamePokemon, true
	case opCodeRe.MatchString(s):
		return GameOnePiece, true
	case digiCodeRe.MatchString(s):
		return GameDigimon, true
	}
	return "", false
}

// ProductItem builds a catalog item from a free-text product name.
func ProductItem(name string) (CatalogItem, bool) {
	g, ok := DetectGame(name)
	if !ok {
		return CatalogItem{}, false
	}
	return CatalogItem{Game: g, Name: name, Title: strings.TrimSpace(name)}, true
}
