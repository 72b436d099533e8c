package pricing

import (
	"regexp"
	"strings"
)

var (
	promoRe            = regexp.MustCompile(`P-\d{3}`)
	opCodeRe           = regexp.MustCompile(`(OP|EB|ST)\d{2}-\d{3}`)
	opSpecialRe        = regexp.MustCompile(`\bSP-(SP|SEC|R|SR|C|L|U|UC)\b`)
	opParallelRarityRe = regexp.MustCompile(`^P-(SEC|R|SR|C|L|U|UC)$`)
)

var onePieceRules = Ruleset{
	BlockedSellers: defaultBlockedSellers,
	RegionMarkers:  japaneseMarkers,
	Variants: map[Classification][]string{
		ClassParallel:      {"패러렐", "다른", "패레", "P시크릿레어", "페러럴", "패러럴", "페러렐", "페레"},
		ClassSpecial:       {"스페셜", "SP"},
		ClassSuperParallel: {"슈퍼 패러렐", "슈퍼패러렐", "슈퍼파라렐", "슈퍼 파라렐", "망가", "MANGA", "manga"},
	},
}

type onePieceStrategy struct {
	rules       Ruleset
	specialMode string
	superMin    int
}

// NewOnePieceStrategy returns the One Piece strategy.
func NewOnePieceStrategy(opts Options) Strategy {
	return &onePieceStrategy{rules: onePieceRules, specialMode: opts.OnePieceSpecial, superMin: opts.SuperParallelMinPrice}
}

func (s *onePieceStrategy) Game() Game { return GameOnePiece }

func (s *onePieceStrategy) text(item CatalogItem) string {
	if item.Title != "" {
		return collapseSpaces(item.Title)
	}
	return collapseSpaces(strings.Join([]string{"원피스카드", item.Name, item.RarityCode, item.CardNumber, item.SetName}, " "))
}

func (s *onePieceStrategy) Extract(item CatalogItem) SearchQuery {
	if item.Game != GameOnePiece {
		return notApplicable()
	}
	text := s.text(item)
	source := item.CardNumber
	if source == "" {
		source = text
	}

	if m := promoRe.FindString(source); m != "" {
		return SearchQuery{Keyword: "원피스 " + m, Classification: ClassPromo, CardCode: m}
	}

	rarity := strings.ToUpper(strings.TrimSpace(item.RarityCode))
	code := opCodeRe.FindString(source)
	if code == "" {
		code = opCodeRe.FindString(text)
	}

	special := opSpecialRe.MatchString(rarity) || opSpecialRe.MatchString(text)
	if special && s.specialMode == SpecialExclude {
		return SearchQuery{Classification: ClassExcluded, CardCode: code}
	}
	if code == "" {
		return SearchQuery{Keyword: fallbackKeyword(GameOnePiece, item), Classification: ClassFallback}
	}

	switch {
	case strings.Contains(text, "망가"):
		return SearchQuery{Keyword: "망가 " + code, Classification: ClassSuperParallel, CardCode: code}
	case special:
		return SearchQuery{Keyword: "SP " + code, Classification: ClassSpecial, CardCode: code}
	case s.parallel(rarity, text):
		return SearchQuery{Keyword: "패러렐 " + code, Classification: ClassParallel, CardCode: code}
	case strings.HasPrefix(code, "ST"):
		return SearchQuery{Keyword: "원피스 " + code, Classification: ClassNormal, CardCode: code}
	}
	return SearchQuery{Keyword: code, Classification: ClassNormal, CardCode: code}
}

func (s *onePieceStrategy) parallel(rarity, text string) bool {
	if opParallelRarityRe.MatchString(rarity) || strings.Contains(text, "패러렐") {
		return true
	}
	for _, f := range strings.Fields(text) {
		if opParallelRarityRe.MatchString(f) {
			return true
		}
	}
	return false
}

func (s *onePieceStrategy) Filter(listings []Listing, q SearchQuery) MatchResult {
	tag := FilterNormal
	var words []string
	switch q.Classification {
	case ClassSuperParallel:
		tag, words = FilterSuperParallel, s.rules.Variants[ClassSuperParallel]
	case ClassSpecial:
		tag, words = FilterSpecial, s.rules.Variants[ClassSpecial]
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
		if words != nil && !containsAny(title, words) {
			return false
		}
		return q.Classification != ClassSuperParallel || l.Price >= s.superMin
	}, tag)
}
