package pricing

import (
	"regexp"
	"strings"
)

var digiCodeRe = regexp.MustCompile(`(EX|BT|ST|RB|LM)\d{1,2}-\d{2,3}`)

var digimonRules = Ruleset{
	BlockedSellers: defaultBlockedSellers,
	RegionMarkers:  japaneseMarkers,
	Variants: map[Classification][]string{
		ClassRare:     {"희소"},
		ClassParallel: {"패러렐"},
	},
}

type digimonStrategy struct {
	rules Ruleset
}

// NewDigimonStrategy returns the Digimon strategy.
func NewDigimonStrategy() Strategy {
	return &digimonStrategy{rules: digimonRules}
}

func (s *digimonStrategy) Game() Game { return GameDigimon }

func (s *digimonStrategy) text(item CatalogItem) string {
	if item.Title != "" {
		return collapseSpaces(item.Title)
	}
	return collapseSpaces(strings.Join([]string{"디지몬카드", item.Name, item.RarityCode, item.CardNumber, item.SetName}, " "))
}

// Extract prefers the rare variant when both 희소 and 패러렐 appear.
func (s *digimonStrategy) Extract(item CatalogItem) SearchQuery {
	if item.Game != GameDigimon {
		return notApplicable()
	}
	text := s.text(item)
	source := item.CardNumber
	if source == "" {
		source = text
	}

	if m := promoRe.FindString(source); m != "" {
		return SearchQuery{Keyword: "디지몬 " + m, Classification: ClassPromo, CardCode: m}
	}

	code := digiCodeRe.FindString(source)
	if code == "" {
		code = digiCodeRe.FindString(text)
	}
	if code == "" {
		return SearchQuery{Keyword: fallbackKeyword(GameDigimon, item), Classification: ClassFallback}
	}

	term := code
	if strings.HasPrefix(code, "ST") {
		term = "디지몬 " + code
	}
	switch {
	case strings.Contains(text, "희소"):
		return SearchQuery{Keyword: "희소 " + term, Classification: ClassRare, CardCode: code}
	case strings.Contains(text, "패러렐"):
		return SearchQuery{Keyword: "패러렐 " + term, Classification: ClassParallel, CardCode: code}
	}
	return SearchQuery{Keyword: term, Classification: ClassNormal, CardCode: code}
}

func (s *digimonStrategy) Filter(listings []Listing, q SearchQuery) MatchResult {
	tag := FilterNormal
	var words []string
	switch q.Classification {
	case ClassRare:
		tag, words = FilterRare, s.rules.Variants[ClassRare]
	case ClassParallel:
		tag, words = FilterParallel, s.rules.Variants[ClassParallel]
	case ClassPromo:
		tag = FilterPromo
	case ClassFallback:
		tag = FilterFallback
	}
	return collect(listings, func(l Listing, title string) bool {
		if !s.rules.admits(l, title) {
			return false
		}
		if q.CardCode != "" && !strings.Contains(title, q.CardCode) {
			return false
		}
		return words == nil || containsAny(title, words)
	}, tag)
}
