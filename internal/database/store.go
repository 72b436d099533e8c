package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tcg-pricer/internal/models"
	"tcg-pricer/internal/pricing"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a card version does not exist.
var ErrNotFound = errors.New("card version not found")

// Store reads catalog items and reads/writes daily price points.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Day truncates t to midnight in the local zone, the form dates are stored in.
func Day(t time.Time) time.Time {
	y, m, d := t.In(time.Local).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

// FindDailyPrice returns the point for (cardVersionID, date), or nil.
func (s *Store) FindDailyPrice(ctx context.Context, cardVersionID uint, date time.Time) (*models.DailyPriceHistory, error) {
	var p models.DailyPriceHistory
	err := s.db.WithContext(ctx).
		Where("card_version_id = ? AND date = ?", cardVersionID, Day(date)).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find daily price: %w", err)
	}
	return &p, nil
}

// DeleteDailyPrices removes every point for (cardVersionID, date).
func (s *Store) DeleteDailyPrices(ctx context.Context, cardVersionID uint, date time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("card_version_id = ? AND date = ?", cardVersionID, Day(date)).
		Delete(&models.DailyPriceHistory{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete daily price: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// CreateDailyPrice inserts p. A unique index violation is reported as
// pricing.ErrDuplicatePoint.
func (s *Store) CreateDailyPrice(ctx context.Context, p *models.DailyPriceHistory) error {
	p.Date = Day(p.Date)
	err := s.db.WithContext(ctx).Create(p).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("card version %d on %s: %w", p.CardVersionID, p.Date.Format("2006-01-02"), pricing.ErrDuplicatePoint)
	}
	return err
}

// LatestDailyPriceBefore returns the most recent point strictly before date, or nil.
func (s *Store) LatestDailyPriceBefore(ctx context.Context, cardVersionID uint, date time.Time) (*models.DailyPriceHistory, error) {
	var p models.DailyPriceHistory
	err := s.db.WithContext(ctx).
		Where("card_version_id = ? AND date < ?", cardVersionID, Day(date)).
		Order("date DESC").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest daily price: %w", err)
	}
	return &p, nil
}

// PriceTrend returns the points for cardVersionID between from and to, oldest first.
func (s *Store) PriceTrend(ctx context.Context, cardVersionID uint, from, to time.Time) ([]models.DailyPriceHistory, error) {
	var points []models.DailyPriceHistory
	err := s.db.WithContext(ctx).
		Where("card_version_id = ? AND date >= ? AND date <= ?", cardVersionID, Day(from), Day(to)).
		Order("date ASC").
		Find(&points).Error
	if err != nil {
		return nil, fmt.Errorf("price trend: %w", err)
	}
	return points, nil
}

// CurrentSellPrice returns the shop sell price of a card version, or nil.
func (s *Store) CurrentSellPrice(ctx context.Context, cardVersionID uint) (*int, error) {
	var p models.Price
	err := s.db.WithContext(ctx).Where("card_version_id = ?", cardVersionID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("current sell price: %w", err)
	}
	return &p.SellPrice, nil
}

func (s *Store) versions(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Model(&models.CardVersion{}).
		Preload("Card.Game").
		Preload("Card.Set").
		Preload("Rarity")
}

// ListCatalogItems returns the card versions of game ordered by id. A
// positive limit caps the result.
func (s *Store) ListCatalogItems(ctx context.Context, game pricing.Game, limit int) ([]pricing.CatalogItem, error) {
	q := s.versions(ctx).
		Joins("JOIN cards ON cards.id = card_versions.card_id").
		Joins("JOIN tcg_games ON tcg_games.id = cards.game_id").
		Where("tcg_games.slug = ?", string(game)).
		Order("card_versions.id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var versions []models.CardVersion
	if err := q.Find(&versions).Error; err != nil {
		return nil, fmt.Errorf("list catalog items: %w", err)
	}
	items := make([]pricing.CatalogItem, 0, len(versions))
	for _, v := range versions {
		items = append(items, catalogItem(v))
	}
	return items, nil
}

// GetCatalogItem loads one card version.
func (s *Store) GetCatalogItem(ctx context.Context, id uint) (pricing.CatalogItem, error) {
	var v models.CardVersion
	err := s.versions(ctx).Where("card_versions.id = ?", id).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pricing.CatalogItem{}, fmt.Errorf("card version %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return pricing.CatalogItem{}, fmt.Errorf("get catalog item: %w", err)
	}
	return catalogItem(v), nil
}

func catalogItem(v models.CardVersion) pricing.CatalogItem {
	game, ok := pricing.ParseGame(v.Card.Game.Slug)
	if !ok {
		game = pricing.Game(v.Card.Game.Slug)
	}
	setName := v.Card.Set.NameKR
	if setName == "" {
		setName = v.Card.Set.Name
	}
	item := pricing.CatalogItem{
		ID:         v.ID,
		Game:       game,
		Name:       v.Card.DisplayName(),
		SetName:    setName,
		CardNumber: v.Card.CardNumber,
	}
	if v.Rarity != nil {
		item.RarityCode = v.Rarity.RarityCode
	}
	return item
}
