package pricing

import (
	"html"
	"regexp"
	"strings"
	"unicode"
)

// SellerMode selects how the final price is picked from filtered listings.
type SellerMode string

const (
	// SellerModeLowest takes the lowest price among valid listings.
	SellerModeLowest SellerMode = "lowest"
	// SellerModeSeller only accepts a listing from one named seller.
	SellerModeSeller SellerMode = "seller"
)

// SellerOverride prices an item from one named seller's listing minus a flat discount.
type SellerOverride struct {
	Mode     SellerMode `json:"mode"`
	Seller   string     `json:"seller"`
	Discount int        `json:"discount"`
}

// Enabled reports whether the override replaces lowest-price selection.
func (o SellerOverride) Enabled() bool {
	return o.Mode == SellerModeSeller && o.Seller != ""
}

// One Piece SP- rarity handling.
const (
	SpecialSearch  = "special"
	SpecialExclude = "exclude"
)

// Options tune rule behaviour that differs between deployments.
type Options struct {
	// SuperParallelMinPrice is the lowest price a super-parallel listing may have.
	SuperParallelMinPrice int
	// OnePieceSpecial is SpecialSearch or SpecialExclude.
	OnePieceSpecial string
	SellerOverrides map[Game]SellerOverride
}

// DefaultOptions returns the refined rule set.
func DefaultOptions() Options {
	return Options{
		SuperParallelMinPrice: 200000,
		OnePieceSpecial:       SpecialSearch,
	}
}

// Ruleset holds the vocabulary a game filters listings with.
type Ruleset struct {
	BlockedSellers []string
	RegionMarkers  []string
	Variants       map[Classification][]string
}

var defaultBlockedSellers = []string{"화성스토어-TCG-", "네이버", "쿠팡"}

var (
	japaneseMarkers        = []string{"일본", "일본판", "JP", "JPN", "일판"}
	pokemonJapaneseMarkers = []string{"일본", "일본판", "JP", "JPN"}
)

// admits applies the seller blocklist and region exclusion.
func (r Ruleset) admits(l Listing, title string) bool {
	for _, s := range r.BlockedSellers {
		if l.Seller == s {
			return false
		}
	}
	return !containsAny(title, r.RegionMarkers)
}

// WithRegionMarkers returns a copy of r with extra region markers appended.
func (r Ruleset) WithRegionMarkers(markers ...string) Ruleset {
	out := r
	out.RegionMarkers = append(append([]string{}, r.RegionMarkers...), markers...)
	return out
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

// CleanTitle strips search highlight markup and HTML entities from a title.
func CleanTitle(s string) string {
	return strings.TrimSpace(html.UnescapeString(tagRe.ReplaceAllString(s, "")))
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func removeSpaces(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// tokens splits s on anything that is not a letter, digit or underscore.
func tokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return !isWordRune(r) })
}

func hasToken(s, token string) bool {
	for _, t := range tokens(s) {
		if t == token {
			return true
		}
	}
	return false
}

// collect runs keep over every listing with a positive price and returns the
// lowest surviving price.
func collect(listings []Listing, keep func(l Listing, title string) bool, tag string) MatchResult {
	res := MatchResult{Filter: tag}
	for _, l := range listings {
		if l.Price <= 0 {
			continue
		}
		if !keep(l, CleanTitle(l.Title)) {
			continue
		}
		res.MatchedCount++
		if res.MinPrice == nil || l.Price < *res.MinPrice {
			p := l.Price
			res.MinPrice = &p
		}
	}
	return res
}

func notApplicable() SearchQuery {
	return SearchQuery{Classification: ClassNotApplicable}
}

// fallbackKeyword joins the game card label with the item's descriptive fields.
func fallbackKeyword(g Game, item CatalogItem) string {
	if item.Title != "" {
		return collapseSpaces(item.Title)
	}
	return collapseSpaces(strings.Join([]string{g.KoreanName() + "카드", item.Name, item.RarityCode, item.SetName}, " "))
}
