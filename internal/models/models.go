package models

import (
	"time"
)

// TCGGame is a trading card game such as Pokémon or One Piece.
type TCGGame struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"size:100;not null"`
	NameKR    string    `json:"name_kr" gorm:"size:100"`
	Slug      string    `json:"slug" gorm:"size:50;uniqueIndex;not null"` // pokemon, onepiece, digimon
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CardSet is an expansion or deck within a game.
type CardSet struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	GameID      uint       `json:"game_id" gorm:"index;not null"`
	Game        TCGGame    `json:"-" gorm:"foreignKey:GameID"`
	SetCode     string     `json:"set_code" gorm:"size:50"`
	Name        string     `json:"name" gorm:"size:200"`
	NameKR      string     `json:"name_kr" gorm:"size:200"`
	ReleaseDate *time.Time `json:"release_date"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Rarity is a rarity code defined per game.
type Rarity struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	GameID     uint   `json:"game_id" gorm:"index;not null"`
	RarityCode string `json:"rarity_code" gorm:"size:20;not null"`
	RarityName string `json:"rarity_name" gorm:"size:100"`
}

// Card is a printed card identity within a set.
type Card struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	GameID     uint      `json:"game_id" gorm:"index;not null"`
	Game       TCGGame   `json:"-" gorm:"foreignKey:GameID"`
	SetID      uint      `json:"set_id" gorm:"index"`
	Set        CardSet   `json:"-" gorm:"foreignKey:SetID"`
	CardNumber string    `json:"card_number" gorm:"size:50;index"`
	Name       string    `json:"name" gorm:"size:200"`
	NameKR     string    `json:"name_kr" gorm:"size:200"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DisplayName prefers the Korean name.
func (c Card) DisplayName() string {
	if c.NameKR != "" {
		return c.NameKR
	}
	return c.Name
}

// CardVersion is one sellable version of a card (rarity/variant). It is the
// unit prices are tracked for.
type CardVersion struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	CardID      uint      `json:"card_id" gorm:"index;not null"`
	Card        Card      `json:"card" gorm:"foreignKey:CardID"`
	RarityID    *uint     `json:"rarity_id" gorm:"index"`
	Rarity      *Rarity   `json:"rarity,omitempty" gorm:"foreignKey:RarityID"`
	VersionCode string    `json:"version_code" gorm:"size:50"`
	CreatedAt   time.Time `json:"created_at"`
}

// Price is the current shop price of a card version.
type Price struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	CardVersionID uint      `json:"card_version_id" gorm:"uniqueIndex;not null"`
	SellPrice     int       `json:"sell_price"`
	BuyPrice      int       `json:"buy_price"`
	OnlinePrice   *int      `json:"online_price"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (TCGGame) TableName() string     { return "tcg_games" }
func (CardSet) TableName() string     { return "card_sets" }
func (Rarity) TableName() string      { return "rarities" }
func (Card) TableName() string        { return "cards" }
func (CardVersion) TableName() string { return "card_versions" }
func (Price) TableName() string       { return "prices" }
