package earning

import (
	"time"

	"github.com/shopspring/decimal"
)

type EarningType string

const (
	EarningCoin         EarningType = "coin"
	EarningAd           EarningType = "ad"
	EarningInterstitial EarningType = "interstitial"
)

const AdTypeInterstitial = "interstitial"

// earningTypeForAd maps an ad format to the aggregate bucket it accrues to.
func earningTypeForAd(adType string) EarningType {
	if adType == AdTypeInterstitial {
		return EarningInterstitial
	}
	return EarningAd
}

// WriterEarningAggregate accumulates a writer's credited amount per
// (writer, novel, chapter, type). Amount and Count only grow; the remaining
// columns describe the latest event that contributed.
type WriterEarningAggregate struct {
	ID          string      `gorm:"column:id;primaryKey" json:"id"`
	WriterID    string      `gorm:"column:writer_id;uniqueIndex:idx_writer_earning_key,priority:1" json:"writerId"`
	NovelID     string      `gorm:"column:novel_id;uniqueIndex:idx_writer_earning_key,priority:2" json:"novelId"`
	ChapterID   string      `gorm:"column:chapter_id;uniqueIndex:idx_writer_earning_key,priority:3" json:"chapterId"`
	EarningType EarningType `gorm:"column:earning_type;uniqueIndex:idx_writer_earning_key,priority:4" json:"earningType"`

	// Amount is in paise.
	Amount int64 `gorm:"column:amount;not null;default:0" json:"amount"`
	Count  int64 `gorm:"column:count;not null;default:0" json:"count"`

	HasSubscription          bool            `gorm:"column:has_subscription" json:"hasSubscription"`
	PlatformFeePercentage    int             `gorm:"column:platform_fee_percentage" json:"platformFeePercentage"`
	WriterPercentageEarned   int             `gorm:"column:writer_percentage_earned" json:"writerPercentageEarned"`
	ViewsRequirementMet      bool            `gorm:"column:views_requirement_met" json:"viewsRequirementMet"`
	TotalViewsOnFreeChapters int64           `gorm:"column:total_views_on_free_chapters" json:"totalViewsOnFreeChapters"`
	CoinPrice                decimal.Decimal `gorm:"column:coin_price;type:decimal(12,2)" json:"coinPrice"`
	CoinsRequiredToUnlock    int64           `gorm:"column:coins_required_to_unlock" json:"coinsRequiredToUnlock"`
	ChapterNumber            int             `gorm:"column:chapter_number" json:"chapterNumber"`
	AdType                   string          `gorm:"column:ad_type" json:"adType,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

func (WriterEarningAggregate) TableName() string { return "writer_earning_aggregates" }

func Models() []any {
	return []any{&WriterEarningAggregate{}}
}
