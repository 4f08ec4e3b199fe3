package wallet

import (
	"time"

	"gorm.io/datatypes"
)

type TransactionType string

const (
	TransactionEarned TransactionType = "earned"
	TransactionSpent  TransactionType = "spent"
)

// CoinAccount is the source of truth for a reader's coin balance.
type CoinAccount struct {
	UserID    string    `gorm:"column:user_id;primaryKey"`
	Coins     int64     `gorm:"column:coins;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (CoinAccount) TableName() string { return "coin_accounts" }

// CoinTransaction is append-only. BalanceAfter is the account balance right
// after the change was applied.
type CoinTransaction struct {
	ID           string          `gorm:"column:id;primaryKey" json:"id"`
	UserID       string          `gorm:"column:user_id;index" json:"user_id"`
	Type         TransactionType `gorm:"column:type" json:"type"`
	Amount       int64           `gorm:"column:amount" json:"amount"`
	Reason       string          `gorm:"column:reason" json:"reason"`
	BalanceAfter int64           `gorm:"column:balance_after" json:"balance_after"`
	RelatedItem  string          `gorm:"column:related_item" json:"related_item,omitempty"`
	Metadata     datatypes.JSON  `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt    time.Time       `gorm:"column:created_at" json:"created_at"`
}

func (CoinTransaction) TableName() string { return "coin_transactions" }
