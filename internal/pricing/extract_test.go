package pricing

import (
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

func TestOnePieceExtract(t *testing.T) {
	convey.Convey("Given the One Piece strategy", t, func() {
		s := NewOnePieceStrategy(DefaultOptions())

		convey.Convey("When the rarity is a parallel rarity", func() {
			q := s.Extract(CatalogItem{Game: GameOnePiece, Name: "몽키 D. 루피", CardNumber: "OP07-001", RarityCode: "P-R", SetName: "500년 후의 미래"})

			convey.Convey("Then a parallel query on the card code is built", func() {
				convey.So(q.Classification, convey.ShouldEqual, ClassParallel)
				convey.So(q.CardCode, convey.ShouldEqual, "OP07-001")
				convey.So(q.Keyword, convey.ShouldEqual, "패러렐 OP07-001")
			})
		})

		convey.Convey("When the card is a plain print", func() {
			q := s.Extract(CatalogItem{Game: GameOnePiece, Name: "나미", CardNumber: "OP01-016", RarityCode: "R"})
			convey.So(q.Classification, convey.ShouldEqual, ClassNormal)
			convey.So(q.Keyword, convey.ShouldEqual, "OP01-016")
		})

		convey.Convey("When the card is from a starter deck", func() {
			q := s.Extract(CatalogItem{Game: GameOnePiece, Name: "조로", CardNumber: "ST01-013", RarityCode: "SR"})
			convey.So(q.Classification, convey.ShouldEqual, ClassNormal)
			convey.So(q.Keyword, convey.ShouldEqual, "원피스 ST01-013")
			convey.So(q.CardCode, convey.ShouldEqual, "ST01-013")
		})

		convey.Convey("When the card number is a promo code", func() {
			q := s.Extract(CatalogItem{Game: GameOnePiece, Name: "루피", CardNumber: "P-001", RarityCode: "P"})
			convey.So(q.Classification, convey.ShouldEqual, ClassPromo)
			convey.So(q.Keyword, convey.ShouldEqual, "원피스 P-001")
		})

		convey.Convey("When the name mentions 망가", func() {
			q := s.Extract(CatalogItem{Game: GameOnePiece, Name: "샹크스 망가", CardNumber: "OP09-004", RarityCode: "P-SEC"})

			convey.Convey("Then super-parallel wins over parallel", func() {
				convey.So(q.Classification, convey.ShouldEqual, ClassSuperParallel)
				convey.So(q.Keyword, convey.ShouldEqual, "망가 OP09-004")
			})
		})

		convey.Convey("When the rarity is an SP rarity", func() {
			item := CatalogItem{Game: GameOnePiece, Name: "에이스", CardNumber: "OP02-013", RarityCode: "SP-SR"}

			convey.Convey("Then the special search is used by default", func() {
				q := s.Extract(item)
				convey.So(q.Classification, convey.ShouldEqual, ClassSpecial)
				convey.So(q.Keyword, convey.ShouldEqual, "SP OP02-013")
			})

			convey.Convey("Then it is excluded when configured to skip SP prints", func() {
				opts := DefaultOptions()
				opts.OnePieceSpecial = SpecialExclude
				q := NewOnePieceStrategy(opts).Extract(item)
				convey.So(q.Classification, convey.ShouldEqual, ClassExcluded)
				convey.So(q.Searchable(), convey.ShouldBeFalse)
			})
		})

		convey.Convey("When no card code can be parsed", func() {
			q := s.Extract(CatalogItem{Game: GameOnePiece, Name: "돈키호테 도플라밍고", RarityCode: "SR", SetName: "부스터"})

			convey.Convey("Then the fallback keyword is used", func() {
				convey.So(q.Classification, convey.ShouldEqual, ClassFallback)
				convey.So(q.Keyword, convey.ShouldEqual, "원피스카드 돈키호테 도플라밍고 SR 부스터")
				convey.So(q.CardCode, convey.ShouldBeEmpty)
			})
		})
	})
}

func TestDigimonExtract(t *testing.T) {
	convey.Convey("Given the Digimon strategy", t, func() {
		s := NewDigimonStrategy()

		convey.Convey("When the name contains 희소", func() {
			q := s.Extract(CatalogItem{Game: GameDigimon, Name: "오메가몬 희소", CardNumber: "BT16-013"})
			convey.So(q.Classification, convey.ShouldEqual, ClassRare)
			convey.So(q.Keyword, convey.ShouldEqual, "희소 BT16-013")
			convey.So(q.CardCode, convey.ShouldEqual, "BT16-013")
		})

		convey.Convey("When the name contains both 희소 and 패러렐", func() {
			q := s.Extract(CatalogItem{Game: GameDigimon, Name: "아구몬 희소 패러렐", CardNumber: "BT1-010"})
			convey.So(q.Classification, convey.ShouldEqual, ClassRare)
		})

		convey.Convey("When the name contains 패러렐", func() {
			q := s.Extract(CatalogItem{Game: GameDigimon, Name: "가루몬 패러렐", CardNumber: "EX2-030"})
			convey.So(q.Classification, convey.ShouldEqual, ClassParallel)
			convey.So(q.Keyword, convey.ShouldEqual, "패러렐 EX2-030")
		})

		convey.Convey("When the card is from a starter deck", func() {
			q := s.Extract(CatalogItem{Game: GameDigimon, Name: "아구몬 희소", CardNumber: "ST1-03"})
			convey.So(q.Keyword, convey.ShouldEqual, "희소 디지몬 ST1-03")
			convey.So(q.CardCode, convey.ShouldEqual, "ST1-03")
		})

		convey.Convey("When the card is a promo", func() {
			q := s.Extract(CatalogItem{Game: GameDigimon, Name: "파닥몬", CardNumber: "P-077"})
			convey.So(q.Classification, convey.ShouldEqual, ClassPromo)
			convey.So(q.Keyword, convey.ShouldEqual, "디지몬 P-077")
		})

		convey.Convey("When the card number is unparseable", func() {
			q := s.Extract(CatalogItem{Game: GameDigimon, Name: "메탈가루루몬", RarityCode: "SR", SetName: "부스터"})
			convey.So(q.Classification, convey.ShouldEqual, ClassFallback)
			convey.So(q.Keyword, convey.ShouldEqual, "디지몬카드 메탈가루루몬 SR 부스터")
		})
	})
}

func TestPokemonExtract(t *testing.T) {
	convey.Convey("Given the Pokémon strategy", t, func() {
		s := NewPokemonStrategy()

		convey.Convey("When the name carries an ex suffix and a rarity", func() {
			q := s.Extract(CatalogItem{Game: GamePokemon, Name: "리자몽ex SAR", SetName: "151"})

			convey.Convey("Then the keyword is the full text and the subject keeps ex", func() {
				convey.So(q.Keyword, convey.ShouldEqual, "포켓몬카드 리자몽ex SAR 151")
				convey.So(q.Subject, convey.ShouldEqual, "리자몽ex")
				convey.So(q.Rarity, convey.ShouldEqual, "SAR")
				convey.So(q.Classification, convey.ShouldEqual, ClassNormal)
			})
		})

		convey.Convey("When the name carries a VMAX suffix", func() {
			q := s.Extract(CatalogItem{Game: GamePokemon, Name: "뮤 VMAX HR", SetName: "퓨전아츠"})
			convey.So(q.Subject, convey.ShouldEqual, "뮤")
			convey.So(q.Rarity, convey.ShouldEqual, "HR")
		})

		convey.Convey("When the name carries a V suffix", func() {
			q := s.Extract(CatalogItem{Game: GamePokemon, Name: "피카츄 V SR", SetName: "부스터"})
			convey.So(q.Subject, convey.ShouldEqual, "피카츄")
			convey.So(q.Rarity, convey.ShouldEqual, "SR")
		})

		convey.Convey("When the rarity is only stored as a code", func() {
			q := s.Extract(CatalogItem{Game: GamePokemon, Name: "이브이", RarityCode: "AR", SetName: "151"})
			convey.So(q.Subject, convey.ShouldEqual, "이브이")
			convey.So(q.Rarity, convey.ShouldEqual, "AR")
		})

		convey.Convey("When the text mentions 특일", func() {
			q := s.Extract(CatalogItem{Game: GamePokemon, Name: "피카츄 특일 SR", SetName: "부스터"})
			convey.So(q.SpecialDay, convey.ShouldBeTrue)
			convey.So(q.Classification, convey.ShouldEqual, ClassSpecial)
		})

		convey.Convey("When the card number is a promo", func() {
			q := s.Extract(CatalogItem{Game: GamePokemon, Name: "피카츄", CardNumber: "P-123"})
			convey.So(q.Classification, convey.ShouldEqual, ClassPromo)
			convey.So(q.Keyword, convey.ShouldEqual, "포켓몬 P-123")
		})

		convey.Convey("When only a free-text title is given", func() {
			q := s.Extract(CatalogItem{Game: GamePokemon, Title: "포켓몬카드  피카츄 SV2a"})

			convey.Convey("Then the trailing set word stays in the keyword but not the subject", func() {
				convey.So(q.Keyword, convey.ShouldEqual, "포켓몬카드 피카츄 SV2a")
				convey.So(q.Subject, convey.ShouldEqual, "피카츄")
				convey.So(q.Rarity, convey.ShouldBeEmpty)
				convey.So(q.Classification, convey.ShouldEqual, ClassNormal)
			})
		})

		convey.Convey("When a free-text title carries a rarity before the set word", func() {
			q := s.Extract(CatalogItem{Game: GamePokemon, Title: "포켓몬카드 리자몽ex SAR 151"})
			convey.So(q.Subject, convey.ShouldEqual, "리자몽ex")
			convey.So(q.Rarity, convey.ShouldEqual, "SAR")
		})

		convey.Convey("When a free-text title is a single word", func() {
			q := s.Extract(CatalogItem{Game: GamePokemon, Title: "피카츄"})
			convey.So(q.Keyword, convey.ShouldEqual, "피카츄")
			convey.So(q.Subject, convey.ShouldEqual, "피카츄")
		})
	})
}

func TestExtractNotApplicable(t *testing.T) {
	convey.Convey("Given items whose game does not match the strategy", t, func() {
		items := []CatalogItem{
			{Game: GameDigimon, Name: "아구몬", CardNumber: "BT1-010"},
			{Game: GamePokemon, Name: "피카츄 SR"},
			{Game: Game("yugioh"), Name: "블루아이즈"},
		}
		strategies := []Strategy{NewOnePieceStrategy(DefaultOptions()), NewDigimonStrategy(), NewPokemonStrategy()}

		convey.Convey("Then every mismatched pair is not applicable with empty outputs", func() {
			for _, s := range strategies {
				for _, item := range items {
					if item.Game == s.Game() {
						continue
					}
					q := s.Extract(item)
					convey.So(q.Classification, convey.ShouldEqual, ClassNotApplicable)
					convey.So(q.Keyword, convey.ShouldBeEmpty)
					convey.So(q.CardCode, convey.ShouldBeEmpty)
				}
			}
		})

		convey.Convey("Then the engine treats unknown games as not applicable", func() {
			q := NewEngine(DefaultOptions()).Extract(items[2])
			convey.So(q.Classification, convey.ShouldEqual, ClassNotApplicable)
			convey.So(q.Searchable(), convey.ShouldBeFalse)
		})
	})
}

func TestProductItem(t *testing.T) {
	convey.Convey("Given free-text product names", t, func() {
		convey.Convey("Then the game is detected from prefixes and codes", func() {
			g, ok := DetectGame("디지몬카드 오메가몬 희소 BT16-013")
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(g, convey.ShouldEqual, GameDigimon)

			g, _ = DetectGame("루피 패러렐 OP07-001")
			convey.So(g, convey.ShouldEqual, GameOnePiece)

			g, _ = DetectGame("포켓몬카드 리자몽ex SAR")
			convey.So(g, convey.ShouldEqual, GamePokemon)

			_, ok = DetectGame("카드 슬리브 100매")
			convey.So(ok, convey.ShouldBeFalse)
		})

		convey.Convey("Then a product item extracts through its title", func() {
			item, ok := ProductItem("원피스 루피 P-R OP07-001")
			convey.So(ok, convey.ShouldBeTrue)
			q := NewEngine(DefaultOptions()).Extract(item)
			convey.So(q.Classification, convey.ShouldEqual, ClassParallel)
			convey.So(q.Keyword, convey.ShouldEqual, "패러렐 OP07-001")
		})
	})
}

func TestParseGame(t *testing.T) {
	convey.Convey("Given game names in several spellings", t, func() {
		for in, want := range map[string]Game{"pokemon": GamePokemon, "One-Piece": GameOnePiece, "원피스": GameOnePiece, "디지몬": GameDigimon} {
			g, ok := ParseGame(in)
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(g, convey.ShouldEqual, want)
		}
		_, ok := ParseGame("mtg")
		convey.So(ok, convey.ShouldBeFalse)
	})
}
