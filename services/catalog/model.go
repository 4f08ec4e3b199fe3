package catalog

import "time"

type PricingModel string

const (
	PricingFree PricingModel = "free"
	PricingPaid PricingModel = "paid"
)

type Novel struct {
	ID           string       `gorm:"column:id;primaryKey"`
	AuthorID     string       `gorm:"column:author_id;index"`
	Title        string       `gorm:"column:title"`
	Slug         string       `gorm:"column:slug;uniqueIndex"`
	PricingModel PricingModel `gorm:"column:pricing_model;default:free"`
	CreatedAt    time.Time    `gorm:"column:created_at"`
	UpdatedAt    time.Time    `gorm:"column:updated_at"`
}

func (Novel) TableName() string { return "novels" }

func (n *Novel) IsPaid() bool {
	return n.PricingModel == PricingPaid
}

type Chapter struct {
	ID            string    `gorm:"column:id;primaryKey"`
	NovelID       string    `gorm:"column:novel_id;uniqueIndex:idx_chapters_novel_number,priority:1"`
	ChapterNumber int       `gorm:"column:chapter_number;uniqueIndex:idx_chapters_novel_number,priority:2"`
	Title         string    `gorm:"column:title"`
	CoinCost      *int64    `gorm:"column:coin_cost"`
	ViewCount     int64     `gorm:"column:view_count"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (Chapter) TableName() string { return "chapters" }

// ChapterMetadata is the read model the engines consume.
type ChapterMetadata struct {
	ChapterID     string
	NovelID       string
	AuthorID      string
	ChapterNumber int
	ViewCount     int64
	CoinCost      *int64
	PricingModel  PricingModel
}

func (m *ChapterMetadata) IsPaid() bool {
	return m.PricingModel == PricingPaid
}
