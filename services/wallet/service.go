package wallet

import (
	"context"
	"encoding/json"

	"serialfic-monetization/pkg/db/option"
	"serialfic-monetization/pkg/db/pagination"
	"serialfic-monetization/pkg/errutil"
	"serialfic-monetization/pkg/logger"
	"serialfic-monetization/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node

	accounts     repository.Repository[CoinAccount]
	transactions repository.Repository[CoinTransaction]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,

		accounts:     repository.ProvideStore[CoinAccount](p.DB),
		transactions: repository.ProvideStore[CoinTransaction](p.DB),
	}
}

// LockAccount takes a row lock on the reader's account for the rest of tx,
// serializing unlocks that charge the same reader. A reader without an
// account has nothing to spend.
func (s *Service) LockAccount(ctx context.Context, tx *gorm.DB, userID string) (*CoinAccount, error) {
	account, err := s.accounts.WithTrx(tx).FindOne(ctx, &CoinAccount{UserID: userID}, option.WithLockingUpdate())
	if err != nil {
		return nil, errutil.Internal("failed to lock coin account", err)
	}
	if account == nil {
		return nil, errutil.Conflict("insufficient coins", nil, errutil.WithReason(errutil.ReasonInsufficientCoins))
	}
	return account, nil
}

type SpendRequest struct {
	UserID      string
	Amount      int64
	Reason      string
	RelatedItem string
	Metadata    map[string]any
}

// Spend debits coins inside the caller's transaction. The balance check and
// the decrement are one conditional UPDATE, so two concurrent spends can
// never overdraw the account.
func (s *Service) Spend(ctx context.Context, tx *gorm.DB, req SpendRequest) (*CoinTransaction, error) {
	if req.Amount <= 0 {
		return nil, errutil.ValidationFailed("amount must be positive", nil)
	}

	res := tx.WithContext(ctx).
		Model(&CoinAccount{}).
		Where("user_id = ? AND coins >= ?", req.UserID, req.Amount).
		Update("coins", gorm.Expr("coins - ?", req.Amount))
	if res.Error != nil {
		return nil, errutil.Internal("failed to debit coins", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errutil.Conflict("insufficient coins", nil, errutil.WithReason(errutil.ReasonInsufficientCoins))
	}

	return s.appendTransaction(ctx, tx, req.UserID, TransactionSpent, req.Amount, req.Reason, req.RelatedItem, req.Metadata)
}

type CreditRequest struct {
	UserID      string
	Amount      int64
	Reason      string
	RelatedItem string
	Metadata    map[string]any
}

// Credit adds coins, opening the account on first use.
func (s *Service) Credit(ctx context.Context, req CreditRequest) (*CoinTransaction, error) {
	if req.Amount <= 0 {
		return nil, errutil.ValidationFailed("amount must be positive", nil)
	}

	var out *CoinTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"coins":      gorm.Expr("coin_accounts.coins + ?", req.Amount),
				"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
			}),
		}).Create(&CoinAccount{UserID: req.UserID, Coins: req.Amount}).Error
		if err != nil {
			return errutil.Internal("failed to credit coins", err)
		}

		out, err = s.appendTransaction(ctx, tx, req.UserID, TransactionEarned, req.Amount, req.Reason, req.RelatedItem, req.Metadata)
		return err
	})
	if err != nil {
		logger.FromContext(ctx).Error("credit failed", zap.String("user_id", req.UserID), zap.Error(err))
		return nil, err
	}
	return out, nil
}

func (s *Service) appendTransaction(ctx context.Context, tx *gorm.DB, userID string, typ TransactionType, amount int64, reason, related string, metadata map[string]any) (*CoinTransaction, error) {
	account, err := s.accounts.WithTrx(tx).FindOne(ctx, &CoinAccount{UserID: userID})
	if err != nil {
		return nil, errutil.Internal("failed to read balance", err)
	}
	if account == nil {
		return nil, errutil.Internal("coin account vanished", nil)
	}

	var meta datatypes.JSON
	if len(metadata) > 0 {
		b, err := json.Marshal(metadata)
		if err != nil {
			return nil, errutil.Internal("failed to encode metadata", err)
		}
		meta = b
	}

	entry := &CoinTransaction{
		ID:           s.node.Generate().String(),
		UserID:       userID,
		Type:         typ,
		Amount:       amount,
		Reason:       reason,
		BalanceAfter: account.Coins,
		RelatedItem:  related,
		Metadata:     meta,
	}
	if err := s.transactions.WithTrx(tx).Create(ctx, entry); err != nil {
		return nil, errutil.Internal("failed to record coin transaction", err)
	}
	return entry, nil
}

// Balance returns 0 for readers who never held coins.
func (s *Service) Balance(ctx context.Context, userID string) (int64, error) {
	account, err := s.accounts.FindOne(ctx, &CoinAccount{UserID: userID})
	if err != nil {
		return 0, errutil.Internal("failed to read balance", err)
	}
	if account == nil {
		return 0, nil
	}
	return account.Coins, nil
}

func (s *Service) Transactions(ctx context.Context, userID string, p pagination.Pagination) ([]*CoinTransaction, pagination.PageInfo, error) {
	p, err := pagination.Normalize(p)
	if err != nil {
		return nil, pagination.PageInfo{}, errutil.ValidationFailed("invalid cursor", err, errutil.WithDetails(errutil.Detail{
			Field:   "cursor",
			Message: "must be a next_cursor returned by a previous page",
		}))
	}

	rows, err := s.transactions.Find(ctx, &CoinTransaction{UserID: userID}, option.ApplyPagination(p))
	if err != nil {
		return nil, pagination.PageInfo{}, errutil.Internal("failed to list coin transactions", err)
	}

	rows, info := pagination.Trim(rows, p.Limit, func(t *CoinTransaction) string { return t.ID })
	return rows, info, nil
}

func Models() []any {
	return []any{&CoinAccount{}, &CoinTransaction{}}
}
