package pricing

import (
	"errors"
	"strings"
)

// Game identifies the trading card game a catalog item belongs to.
type Game string

const (
	GamePokemon  Game = "pokemon"
	GameOnePiece Game = "onepiece"
	GameDigimon  Game = "digimon"
)

// Games lists every supported game in batch order.
var Games = []Game{GamePokemon, GameOnePiece, GameDigimon}

// KoreanName returns the name used when composing search keywords.
func (g Game) KoreanName() string {
	switch g {
	case GamePokemon:
		return "포켓몬"
	case GameOnePiece:
		return "원피스"
	case GameDigimon:
		return "디지몬"
	}
	return string(g)
}

// ParseGame accepts slugs ("onepiece", "one-piece") and Korean names ("원피스").
func ParseGame(s string) (Game, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.NewReplacer("-", "", "_", "", " ", "").Replace(v)
	switch v {
	case "pokemon", "포켓몬", "포켓몬카드":
		return GamePokemon, true
	case "onepiece", "원피스", "원피스카드":
		return GameOnePiece, true
	case "digimon", "디지몬", "디지몬카드":
		return GameDigimon, true
	}
	return "", false
}

// Classification is the variant category a search was built for.
type Classification string

const (
	ClassNormal        Classification = "normal"
	ClassParallel      Classification = "parallel"
	ClassRare          Classification = "rare"
	ClassPromo         Classification = "promo"
	ClassSpecial       Classification = "special"
	ClassSuperParallel Classification = "super-parallel"
	ClassFallback      Classification = "fallback"
	ClassExcluded      Classification = "excluded"
	ClassNotApplicable Classification = "not-applicable"
)

// CatalogItem is the read-only view of a card version the engine prices.
type CatalogItem struct {
	ID         uint   `json:"id"`
	Game       Game   `json:"game"`
	Name       string `json:"name"`
	RarityCode string `json:"rarity_code"`
	SetName    string `json:"set_name"`
	CardNumber string `json:"card_number"`
	// Title is a free-form display text. When set it replaces the text composed
	// from the other fields.
	Title string `json:"title,omitempty"`
}

// SearchQuery is what an extractor produces for one catalog item.
type SearchQuery struct {
	Keyword        string         `json:"keyword"`
	Classification Classification `json:"classification"`
	CardCode       string         `json:"card_code,omitempty"`

	// Pokémon only.
	Subject    string `json:"subject,omitempty"`
	Rarity     string `json:"rarity,omitempty"`
	SpecialDay bool   `json:"special_day,omitempty"`
}

// Searchable reports whether the query should be sent to the search API.
func (q SearchQuery) Searchable() bool {
	switch q.Classification {
	case ClassExcluded, ClassNotApplicable:
		return false
	}
	return strings.TrimSpace(q.Keyword) != ""
}

// Listing is one row returned by the shopping search API.
type Listing struct {
	Title  string `json:"title"`
	Price  int    `json:"price"`
	Seller string `json:"seller"`
}

// MatchResult is the outcome of filtering listings for one query.
type MatchResult struct {
	MinPrice     *int   `json:"min_price"`
	MatchedCount int    `json:"matched_count"`
	Filter       string `json:"filter"`
	// Seller is set when the price came from the seller override.
	Seller string `json:"seller,omitempty"`
}

// Filter tags describing which rule set produced a MatchResult.
const (
	FilterNormal        = "normal-search"
	FilterParallel      = "parallel-search"
	FilterRare          = "rare-search"
	FilterSpecial       = "special-search"
	FilterSuperParallel = "super-parallel-search"
	FilterPromo         = "promo-search"
	FilterFallback      = "fallback-search"
	FilterNameRarity    = "name+rarity"
	FilterNameOnly      = "name-only"
	FilterRarityOnly    = "rarity-only"
	FilterNone          = "no-filter"
	FilterSeller        = "seller-override"
	FilterSellerMissing = "seller-missing"
)

// Per-item failure reasons. Only ErrInterrupted stops a batch.
var (
	ErrNotApplicable   = errors.New("game not applicable")
	ErrExcluded        = errors.New("excluded from pricing")
	ErrNoKeyword       = errors.New("no search keyword")
	ErrNoSearchResults = errors.New("no search results")
	ErrNoValidMatches  = errors.New("no valid results after filtering")
	ErrPersistFailure  = errors.New("failed to persist price")
	ErrInterrupted     = errors.New("interrupted")

	// ErrDuplicatePoint is returned by stores when a daily point for the
	// same card version and date already exists.
	ErrDuplicatePoint = errors.New("daily price already recorded")
)

// Reason maps an item error to a stable reason string for reports.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotApplicable):
		return "not_applicable"
	case errors.Is(err, ErrExcluded):
		return "excluded"
	case errors.Is(err, ErrNoKeyword):
		return "no_keyword"
	case errors.Is(err, ErrNoSearchResults):
		return "no_search_results"
	case errors.Is(err, ErrNoValidMatches):
		return "no_valid_matches"
	case errors.Is(err, ErrPersistFailure):
		return "persist_failure"
	case errors.Is(err, ErrInterrupted):
		return "interrupted"
	}
	return "error"
}
