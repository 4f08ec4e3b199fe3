package access

import "time"

type AccessType string

const (
	AccessFree      AccessType = "free"
	AccessAd        AccessType = "ad"
	AccessCoin      AccessType = "coin"
	AccessPurchased AccessType = "purchased"
)

var accessRank = map[AccessType]int{
	AccessFree:      1,
	AccessAd:        2,
	AccessCoin:      3,
	AccessPurchased: 4,
}

func (a AccessType) Valid() bool {
	_, ok := accessRank[a]
	return ok
}

// Outranks reports whether a is a strictly higher tier than b.
func (a AccessType) Outranks(b AccessType) bool {
	return accessRank[a] > accessRank[b]
}

// Unlocks reports whether the grant opens a paid-tier chapter.
func (a AccessType) Unlocks() bool {
	return a == AccessAd || a == AccessCoin || a == AccessPurchased
}

// EntitlementGrant is the current access state of a (user, chapter) pair.
type EntitlementGrant struct {
	ID         string     `gorm:"column:id;primaryKey" json:"id"`
	UserID     string     `gorm:"column:user_id;uniqueIndex:idx_grants_user_chapter,priority:1" json:"user_id"`
	ChapterID  string     `gorm:"column:chapter_id;uniqueIndex:idx_grants_user_chapter,priority:2" json:"chapter_id"`
	NovelID    string     `gorm:"column:novel_id;index" json:"novel_id"`
	AccessType AccessType `gorm:"column:access_type" json:"access_type"`
	GrantedAt  time.Time  `gorm:"column:granted_at" json:"granted_at"`
}

func (EntitlementGrant) TableName() string { return "entitlement_grants" }

const (
	ReasonFreeNovel        = "FREE_NOVEL"
	ReasonFreeSample       = "FREE_SAMPLE_CHAPTER"
	ReasonUnlocked         = "UNLOCKED"
	ReasonPurchaseRequired = "PURCHASE_REQUIRED"
)

// Decision is the answer to an access check.
type Decision struct {
	CanAccess     bool       `json:"canAccess"`
	AccessType    AccessType `json:"accessType,omitempty"`
	Reason        string     `json:"reason"`
	NovelID       string     `json:"novelId"`
	ChapterNumber int        `json:"chapterNumber"`
	CoinCost      int64      `json:"coinCost"`
}

type GrantParams struct {
	UserID     string
	ChapterID  string
	NovelID    string
	AccessType AccessType
}
