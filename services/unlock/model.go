package unlock

import "time"

type Method string

const (
	MethodFree     Method = "free"
	MethodCoin     Method = "coin"
	MethodAd       Method = "ad"
	MethodPurchase Method = "purchase"
)

const DefaultAdType = "rewarded"

// UnlockHistoryEntry is append-only; one row per unlock event.
type UnlockHistoryEntry struct {
	ID           string    `gorm:"column:id;primaryKey" json:"id"`
	UserID       string    `gorm:"column:user_id;index" json:"userId"`
	ChapterID    string    `gorm:"column:chapter_id" json:"chapterId"`
	NovelID      string    `gorm:"column:novel_id" json:"novelId"`
	UnlockMethod Method    `gorm:"column:unlock_method" json:"unlockMethod"`
	CoinsSpent   int64     `gorm:"column:coins_spent" json:"coinsSpent"`
	UnlockedAt   time.Time `gorm:"column:unlocked_at" json:"unlockedAt"`
}

func (UnlockHistoryEntry) TableName() string { return "unlock_history" }

// AdUnlockLogEntry is append-only and only feeds the daily ad cap.
// ChapterID is empty for novel-level ad views.
type AdUnlockLogEntry struct {
	ID         string    `gorm:"column:id;primaryKey" json:"id"`
	UserID     string    `gorm:"column:user_id;index:idx_ad_log_user_novel_time,priority:1" json:"userId"`
	NovelID    string    `gorm:"column:novel_id;index:idx_ad_log_user_novel_time,priority:2" json:"novelId"`
	ChapterID  string    `gorm:"column:chapter_id" json:"chapterId,omitempty"`
	AdType     string    `gorm:"column:ad_type" json:"adType"`
	UnlockedAt time.Time `gorm:"column:unlocked_at;index:idx_ad_log_user_novel_time,priority:3" json:"unlockedAt"`
}

func (AdUnlockLogEntry) TableName() string { return "ad_unlock_logs" }

// Result describes a successful unlock.
type Result struct {
	ChapterID    string    `json:"chapterId"`
	NovelID      string    `json:"novelId"`
	Method       Method    `json:"method"`
	CoinsSpent   int64     `json:"coinsSpent"`
	BalanceAfter *int64    `json:"balanceAfter,omitempty"`
	AdStatus     *AdStatus `json:"adStatus,omitempty"`
}

type AdStatus struct {
	NovelID   string    `json:"novelId"`
	Used      int64     `json:"used"`
	Limit     int64     `json:"limit"`
	Remaining int64     `json:"remaining"`
	ResetsAt  time.Time `json:"resetsAt"`
}

type RecordAdParams struct {
	UserID    string
	NovelID   string
	ChapterID string
	AdType    string
}

func Models() []any {
	return []any{&UnlockHistoryEntry{}, &AdUnlockLogEntry{}}
}
