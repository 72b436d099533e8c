package models

import "time"

// Price sources recorded on a daily point.
const (
	SourceSearch  = "search"
	SourceSeller  = "seller"
	SourceCarried = "carried"
)

// DailyPriceHistory is one lowest online price observation for a card
// version on a calendar day. At most one row exists per (card version, date).
type DailyPriceHistory struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	CardVersionID     uint      `json:"card_version_id" gorm:"not null;uniqueIndex:idx_daily_price_card_date,priority:1"`
	Date              time.Time `json:"date" gorm:"type:date;not null;uniqueIndex:idx_daily_price_card_date,priority:2;index"`
	OnlineLowestPrice int       `json:"online_lowest_price"`
	Source            string    `json:"source" gorm:"size:20"`
	Keyword           string    `json:"keyword" gorm:"size:255"`
	MatchedCount      int       `json:"matched_count"`
	CreatedAt         time.Time `json:"created_at"`
}

func (DailyPriceHistory) TableName() string {
	return "daily_price_histories"
}
