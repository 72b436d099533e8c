package pricing

import (
	"regexp"
	"strings"
)

var pokemonRarities = []string{
	"UR", "SSR", "SR", "RR", "RRR", "CHR", "CSR", "BWR", "AR", "SAR", "HR", "R", "U", "C",
	"몬스터볼", "마스터볼", "이로치",
}

var (
	vmaxRe  = regexp.MustCompile(`(?i)^(.+?)\s*VMAX(?:\s|$)`)
	vstarRe = regexp.MustCompile(`(?i)^(.+?)\s*VSTAR(?:\s|$)`)
	exRe    = regexp.MustCompile(`(?i)^(.+?ex)(?:\s|$)`)
	vRe     = regexp.MustCompile(`^(.+?)\s*V(?:\s|$)`)
)

var pokemonSuffixes = map[string]bool{"ex": true, "v": true, "vmax": true, "vstar": true}

var pokemonRules = Ruleset{
	BlockedSellers: defaultBlockedSellers,
	RegionMarkers:  pokemonJapaneseMarkers,
}

const specialDayMarker = "특일"

type pokemonStrategy struct {
	rules Ruleset
}

// NewPokemonStrategy returns the Pokémon strategy.
func NewPokemonStrategy() Strategy {
	return &pokemonStrategy{rules: pokemonRules}
}

func (s *pokemonStrategy) Game() Game { return GamePokemon }

// Extract keeps the whole display text as the keyword and records the
// subject name and rarity the filter narrows on.
func (s *pokemonStrategy) Extract(item CatalogItem) SearchQuery {
	if item.Game != GamePokemon {
		return notApplicable()
	}
	text, head := s.text(item)
	source := item.CardNumber
	if source == "" {
		source = text
	}
	if m := promoRe.FindString(source); m != "" {
		return SearchQuery{Keyword: "포켓몬 " + m, Classification: ClassPromo, CardCode: m}
	}

	rarity, at := findRarity(head)
	before := head
	if at >= 0 {
		before = head[:at]
	} else if isRarity(item.RarityCode) {
		rarity = item.RarityCode
	}

	q := SearchQuery{
		Keyword:        text,
		Classification: ClassNormal,
		Subject:        pokemonSubject(before),
		Rarity:         rarity,
		SpecialDay:     strings.Contains(text, specialDayMarker),
	}
	switch {
	case q.SpecialDay:
		q.Classification = ClassSpecial
	case q.Subject == "" && q.Rarity == "":
		q.Classification = ClassFallback
	}
	if q.Keyword == "" {
		q.Keyword = fallbackKeyword(GamePokemon, item)
	}
	return q
}

// text returns the keyword text and the part of it that precedes the set name.
func (s *pokemonStrategy) text(item CatalogItem) (string, string) {
	if item.Title != "" {
		t := collapseSpaces(item.Title)
		words := strings.Fields(t)
		if len(words) > 1 {
			return t, strings.Join(words[:len(words)-1], " ")
		}
		return t, t
	}
	head := collapseSpaces("포켓몬카드 " + item.Name)
	return collapseSpaces(head + " " + item.SetName), head
}

func isRarity(tok string) bool {
	for _, r := range pokemonRarities {
		if tok == r {
			return true
		}
	}
	return false
}

// findRarity returns the first whole token of s in the rarity vocabulary and
// its byte offset, or -1.
func findRarity(s string) (string, int) {
	start := -1
	for i, r := range s {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			if tok := s[start:i]; isRarity(tok) {
				return tok, start
			}
			start = -1
		}
	}
	if start >= 0 && isRarity(s[start:]) {
		return s[start:], start
	}
	return "", -1
}

// pokemonSubject strips the card label and the VMAX/VSTAR/V suffixes from the
// name. An ex suffix stays part of the name.
func pokemonSubject(s string) string {
	s = strings.TrimSpace(s)
	for _, p := range []string{"포켓몬카드", "포켓몬 카드", "포켓몬"} {
		if strings.HasPrefix(s, p) {
			s = strings.TrimSpace(strings.TrimPrefix(s, p))
			break
		}
	}
	if s == "" {
		return ""
	}
	for _, re := range []*regexp.Regexp{vmaxRe, vstarRe, exRe, vRe} {
		if m := re.FindStringSubmatch(s); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return s
}

func (s *pokemonStrategy) Filter(listings []Listing, q SearchQuery) MatchResult {
	tag := FilterNone
	switch {
	case q.Classification == ClassPromo:
		tag = FilterPromo
	case q.Subject != "" && q.Rarity != "":
		tag = FilterNameRarity
	case q.Subject != "":
		tag = FilterNameOnly
	case q.Rarity != "":
		tag = FilterRarityOnly
	}
	return collect(listings, func(l Listing, title string) bool {
		if !s.rules.admits(l, title) {
			return false
		}
		if q.CardCode != "" && !strings.Contains(title, q.CardCode) {
			return false
		}
		if q.SpecialDay && !strings.Contains(title, specialDayMarker) {
			return false
		}
		if !nameMatches(title, q.Subject) {
			return false
		}
		return q.Rarity == "" || hasToken(title, q.Rarity)
	}, tag)
}

// nameMatches compares with whitespace removed first, then requires every
// non-suffix word of the subject to appear in the title.
func nameMatches(title, subject string) bool {
	if subject == "" {
		return true
	}
	t := strings.ToLower(title)
	sub := strings.ToLower(subject)
	if strings.Contains(removeSpaces(t), removeSpaces(sub)) {
		return true
	}
	var words []string
	for _, w := range strings.Fields(sub) {
		if !pokemonSuffixes[w] {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		if !strings.Contains(t, w) {
			return false
		}
	}
	return true
}
