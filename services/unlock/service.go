package unlock

import (
	"context"
	"errors"
	"time"

	"serialfic-monetization/pkg/celengine"
	"serialfic-monetization/pkg/db/option"
	"serialfic-monetization/pkg/db/pagination"
	"serialfic-monetization/pkg/errutil"
	"serialfic-monetization/pkg/events"
	"serialfic-monetization/pkg/logger"
	"serialfic-monetization/pkg/rediskey"
	"serialfic-monetization/pkg/redislock"
	"serialfic-monetization/pkg/repository"
	"serialfic-monetization/services/access"
	"serialfic-monetization/services/catalog"
	"serialfic-monetization/services/earning"
	"serialfic-monetization/services/monetization"
	"serialfic-monetization/services/wallet"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	unlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chapter_unlocks_total",
		Help: "Successful chapter unlocks by method.",
	}, []string{"method"})
	unlocksRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chapter_unlocks_rejected_total",
		Help: "Unlock attempts refused by a precondition.",
	}, []string{"method", "reason"})
)

const lockTTL = 5 * time.Second

type Service struct {
	db         *gorm.DB
	node       *snowflake.Node
	catalog    catalog.Reader
	access     *access.Service
	wallet     *wallet.Service
	dispatcher earning.Dispatcher
	publisher  events.Publisher
	locker     redislock.Locker
	policy     monetization.Policy
	coinRule   *celengine.Rule
	now        func() time.Time

	history repository.Repository[UnlockHistoryEntry]
	adLogs  repository.Repository[AdUnlockLogEntry]
}

type ServiceParams struct {
	fx.In
	DB         *gorm.DB
	Node       *snowflake.Node
	Catalog    catalog.Reader
	Access     *access.Service
	Wallet     *wallet.Service
	Dispatcher earning.Dispatcher
	Publisher  events.Publisher `optional:"true"`
	Locker     redislock.Locker `optional:"true"`
	Policy     monetization.Policy
}

// coinRuleSample declares the variables the coin earning rule may use.
var coinRuleSample = map[string]any{
	"chapter_number":         int64(0),
	"view_count":             int64(0),
	"free_chapter_threshold": int64(0),
	"sample_view_threshold":  int64(0),
}

func NewService(p ServiceParams) (*Service, error) {
	rule, err := celengine.Compile(p.Policy.CoinEarningRule, coinRuleSample)
	if err != nil {
		return nil, err
	}

	s := &Service{
		db:         p.DB,
		node:       p.Node,
		catalog:    p.Catalog,
		access:     p.Access,
		wallet:     p.Wallet,
		dispatcher: p.Dispatcher,
		publisher:  p.Publisher,
		locker:     p.Locker,
		policy:     p.Policy,
		coinRule:   rule,
		now:        time.Now,

		history: repository.ProvideStore[UnlockHistoryEntry](p.DB),
		adLogs:  repository.ProvideStore[AdUnlockLogEntry](p.DB),
	}
	if s.publisher == nil {
		s.publisher = events.Noop{}
	}
	if s.locker == nil {
		s.locker = redislock.Noop{}
	}
	return s, nil
}

func reject(method Method, err error) error {
	reason := "error"
	if be, ok := errutil.As(err); ok && be.Reason != "" {
		reason = be.Reason
	}
	unlocksRejected.WithLabelValues(string(method), reason).Inc()
	return err
}

// lockedChapter loads a chapter that can only be read after an unlock.
func (s *Service) lockedChapter(ctx context.Context, chapterID string) (*catalog.ChapterMetadata, error) {
	meta, err := s.catalog.ChapterMetadata(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	if !meta.IsPaid() {
		return nil, errutil.Conflict("novel is free to read", nil, errutil.WithReason(errutil.ReasonNovelNotPaid))
	}
	if s.policy.IsFreeSample(meta.ChapterNumber) {
		return nil, errutil.Conflict("chapter is part of the free sample", nil, errutil.WithReason(errutil.ReasonChapterIsFree))
	}
	return meta, nil
}

// ensureNotUnlocked fails once any paid unlock exists for the chapter, so a
// reader is never charged twice for the same chapter.
func (s *Service) ensureNotUnlocked(ctx context.Context, tx *gorm.DB, userID, chapterID string) error {
	grant, err := s.access.FindGrant(ctx, tx, userID, chapterID)
	if err != nil {
		return err
	}
	if grant != nil && grant.AccessType.Unlocks() {
		return errutil.Conflict("chapter already unlocked", nil, errutil.WithReason(errutil.ReasonAlreadyUnlocked))
	}
	return nil
}

func (s *Service) appendHistory(ctx context.Context, tx *gorm.DB, userID string, meta *catalog.ChapterMetadata, method Method, coins int64) error {
	entry := &UnlockHistoryEntry{
		ID:           s.node.Generate().String(),
		UserID:       userID,
		ChapterID:    meta.ChapterID,
		NovelID:      meta.NovelID,
		UnlockMethod: method,
		CoinsSpent:   coins,
		UnlockedAt:   s.now(),
	}
	if err := s.history.WithTrx(tx).Create(ctx, entry); err != nil {
		return errutil.Internal("failed to append unlock history", err)
	}
	return nil
}

func (s *Service) unlocked(ctx context.Context, userID string, meta *catalog.ChapterMetadata, method Method, coins int64) {
	unlocksTotal.WithLabelValues(string(method)).Inc()

	if err := s.publisher.PublishChapterUnlocked(ctx, events.ChapterUnlocked{
		UserID:     userID,
		NovelID:    meta.NovelID,
		ChapterID:  meta.ChapterID,
		Method:     string(method),
		CoinsSpent: coins,
		OccurredAt: s.now(),
	}); err != nil {
		logger.FromContext(ctx).Warn("failed to publish unlock event", zap.String("chapter_id", meta.ChapterID), zap.Error(err))
	}
}

// PurchaseChapter records a chapter bought through the payment flow. Money
// movement happens outside this service, so no earning is attributed.
func (s *Service) PurchaseChapter(ctx context.Context, userID, chapterID string) (*Result, error) {
	meta, err := s.lockedChapter(ctx, chapterID)
	if err != nil {
		return nil, reject(MethodPurchase, err)
	}
	if err := s.ensureNotUnlocked(ctx, nil, userID, chapterID); err != nil {
		return nil, reject(MethodPurchase, err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureNotUnlocked(ctx, tx, userID, chapterID); err != nil {
			return err
		}
		if _, err := s.access.ClaimTx(ctx, tx, access.GrantParams{
			UserID:     userID,
			ChapterID:  meta.ChapterID,
			NovelID:    meta.NovelID,
			AccessType: access.AccessPurchased,
		}); err != nil {
			return err
		}
		return s.appendHistory(ctx, tx, userID, meta, MethodPurchase, 0)
	})
	if err != nil {
		return nil, reject(MethodPurchase, err)
	}

	s.unlocked(ctx, userID, meta, MethodPurchase, 0)
	return &Result{ChapterID: meta.ChapterID, NovelID: meta.NovelID, Method: MethodPurchase}, nil
}

// UnlockByCoins spends the chapter's coin cost. The debit, grant, history
// row and coin transaction commit together or not at all.
func (s *Service) UnlockByCoins(ctx context.Context, userID, chapterID string) (*Result, error) {
	log := logger.FromContext(ctx).With(zap.String("user_id", userID), zap.String("chapter_id", chapterID))

	meta, err := s.lockedChapter(ctx, chapterID)
	if err != nil {
		return nil, reject(MethodCoin, err)
	}
	if err := s.ensureNotUnlocked(ctx, nil, userID, chapterID); err != nil {
		return nil, reject(MethodCoin, err)
	}

	release, err := s.acquire(ctx, rediskey.BuildCoinUnlockLockKey(userID, chapterID))
	if err != nil {
		return nil, reject(MethodCoin, err)
	}
	defer release()

	cost := s.policy.CoinCost(meta.CoinCost)
	var balanceAfter int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.wallet.LockAccount(ctx, tx, userID); err != nil {
			return err
		}
		if err := s.ensureNotUnlocked(ctx, tx, userID, chapterID); err != nil {
			return err
		}

		spent, err := s.wallet.Spend(ctx, tx, wallet.SpendRequest{
			UserID:      userID,
			Amount:      cost,
			Reason:      "chapter_unlock",
			RelatedItem: meta.ChapterID,
			Metadata:    map[string]any{"novel_id": meta.NovelID, "chapter_number": meta.ChapterNumber},
		})
		if err != nil {
			return err
		}
		balanceAfter = spent.BalanceAfter

		if _, err := s.access.ClaimTx(ctx, tx, access.GrantParams{
			UserID:     userID,
			ChapterID:  meta.ChapterID,
			NovelID:    meta.NovelID,
			AccessType: access.AccessCoin,
		}); err != nil {
			return err
		}
		return s.appendHistory(ctx, tx, userID, meta, MethodCoin, cost)
	})
	if err != nil {
		if !errutil.HasReason(err, errutil.ReasonInsufficientCoins) {
			log.Error("coin unlock failed", zap.Error(err))
		}
		return nil, reject(MethodCoin, err)
	}

	s.unlocked(ctx, userID, meta, MethodCoin, cost)

	earns, err := s.coinRule.Eval(map[string]any{
		"chapter_number":         int64(meta.ChapterNumber),
		"view_count":             meta.ViewCount,
		"free_chapter_threshold": int64(s.policy.FreeChapterThreshold),
		"sample_view_threshold":  s.policy.SampleEarningViewThreshold,
	})
	if err != nil {
		log.Error("coin earning rule failed", zap.String("rule", s.coinRule.String()), zap.Error(err))
	}
	if earns {
		s.dispatcher.DispatchCoinEarning(ctx, earning.CoinEarning{
			NovelID:         meta.NovelID,
			WriterID:        meta.AuthorID,
			ChapterID:       meta.ChapterID,
			CoinPriceRupees: s.policy.CoinPriceRupees(cost),
		})
	}

	return &Result{
		ChapterID:    meta.ChapterID,
		NovelID:      meta.NovelID,
		Method:       MethodCoin,
		CoinsSpent:   cost,
		BalanceAfter: &balanceAfter,
	}, nil
}

// UnlockByAds unlocks a chapter for a watched ad, within the daily cap per
// (user, novel).
func (s *Service) UnlockByAds(ctx context.Context, userID, chapterID string) (*Result, error) {
	meta, err := s.lockedChapter(ctx, chapterID)
	if err != nil {
		return nil, reject(MethodAd, err)
	}
	if err := s.ensureNotUnlocked(ctx, nil, userID, chapterID); err != nil {
		return nil, reject(MethodAd, err)
	}

	release, err := s.acquire(ctx, rediskey.BuildAdUnlockLockKey(userID, meta.NovelID))
	if err != nil {
		return nil, reject(MethodAd, err)
	}
	defer release()

	var used int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureNotUnlocked(ctx, tx, userID, chapterID); err != nil {
			return err
		}
		n, err := s.logAdView(ctx, tx, RecordAdParams{
			UserID:    userID,
			NovelID:   meta.NovelID,
			ChapterID: meta.ChapterID,
			AdType:    DefaultAdType,
		})
		if err != nil {
			return err
		}
		used = n
		if _, err := s.access.ClaimTx(ctx, tx, access.GrantParams{
			UserID:     userID,
			ChapterID:  meta.ChapterID,
			NovelID:    meta.NovelID,
			AccessType: access.AccessAd,
		}); err != nil {
			return err
		}
		return s.appendHistory(ctx, tx, userID, meta, MethodAd, 0)
	})
	if err != nil {
		return nil, reject(MethodAd, err)
	}

	s.unlocked(ctx, userID, meta, MethodAd, 0)
	s.dispatcher.DispatchAdEarning(ctx, earning.AdEarning{
		NovelID:   meta.NovelID,
		WriterID:  meta.AuthorID,
		ChapterID: meta.ChapterID,
		AdType:    DefaultAdType,
	})

	return &Result{
		ChapterID: meta.ChapterID,
		NovelID:   meta.NovelID,
		Method:    MethodAd,
		AdStatus:  s.adStatus(meta.NovelID, used),
	}, nil
}

// RecordAdWatch logs an ad view that does not unlock anything. It shares the
// daily cap with ad unlocks and earns only for a paid-tier chapter.
func (s *Service) RecordAdWatch(ctx context.Context, p RecordAdParams) (*AdStatus, error) {
	novel, err := s.catalog.Novel(ctx, p.NovelID)
	if err != nil {
		return nil, err
	}
	if p.AdType == "" {
		p.AdType = DefaultAdType
	}

	var meta *catalog.ChapterMetadata
	if p.ChapterID != "" {
		meta, err = s.catalog.ChapterMetadata(ctx, p.ChapterID)
		if err != nil {
			return nil, err
		}
		if meta.NovelID != novel.ID {
			return nil, errutil.ValidationFailed("chapter does not belong to novel", nil, errutil.WithDetails(errutil.Detail{
				Field:   "chapterId",
				Message: "must be a chapter of the novel",
			}))
		}
	}

	release, err := s.acquire(ctx, rediskey.BuildAdUnlockLockKey(p.UserID, novel.ID))
	if err != nil {
		return nil, err
	}
	defer release()

	used, err := s.logAdView(ctx, s.db, p)
	if err != nil {
		return nil, err
	}

	if meta != nil && novel.IsPaid() && !s.policy.IsFreeSample(meta.ChapterNumber) {
		s.dispatcher.DispatchAdEarning(ctx, earning.AdEarning{
			NovelID:   novel.ID,
			WriterID:  novel.AuthorID,
			ChapterID: meta.ChapterID,
			AdType:    p.AdType,
		})
	}

	return s.adStatus(novel.ID, used), nil
}

// logAdView enforces the daily cap, appends the log row and returns the
// views used today including this one. Callers hold the (user, novel) lock.
func (s *Service) logAdView(ctx context.Context, tx *gorm.DB, p RecordAdParams) (int64, error) {
	used, err := s.adViewsToday(ctx, tx, p.UserID, p.NovelID)
	if err != nil {
		return 0, err
	}
	if used >= int64(s.policy.DailyAdUnlockLimit) {
		return 0, errutil.Conflict("daily ad limit reached", nil, errutil.WithReason(errutil.ReasonDailyAdLimitReached))
	}

	entry := &AdUnlockLogEntry{
		ID:         s.node.Generate().String(),
		UserID:     p.UserID,
		NovelID:    p.NovelID,
		ChapterID:  p.ChapterID,
		AdType:     p.AdType,
		UnlockedAt: s.now().UTC(),
	}
	if err := s.adLogs.WithTrx(tx).Create(ctx, entry); err != nil {
		return 0, errutil.Internal("failed to log ad view", err)
	}
	return used + 1, nil
}

func (s *Service) adViewsToday(ctx context.Context, tx *gorm.DB, userID, novelID string) (int64, error) {
	start, end := s.policy.DayWindow(s.now())
	n, err := s.adLogs.WithTrx(tx).Count(ctx, &AdUnlockLogEntry{UserID: userID, NovelID: novelID}, option.ApplyOperator(
		option.Condition{Field: "unlocked_at", Operator: option.GTE, Value: start.UTC()},
		option.Condition{Field: "unlocked_at", Operator: option.LT, Value: end.UTC()},
	))
	if err != nil {
		return 0, errutil.Internal("failed to count ad views", err)
	}
	return n, nil
}

func (s *Service) AdStatus(ctx context.Context, userID, novelID string) (*AdStatus, error) {
	used, err := s.adViewsToday(ctx, nil, userID, novelID)
	if err != nil {
		return nil, err
	}
	return s.adStatus(novelID, used), nil
}

func (s *Service) adStatus(novelID string, used int64) *AdStatus {
	limit := int64(s.policy.DailyAdUnlockLimit)
	_, resetsAt := s.policy.DayWindow(s.now())
	return &AdStatus{
		NovelID:   novelID,
		Used:      used,
		Limit:     limit,
		Remaining: max(limit-used, 0),
		ResetsAt:  resetsAt,
	}
}

func (s *Service) History(ctx context.Context, userID string, p pagination.Pagination) ([]*UnlockHistoryEntry, pagination.PageInfo, error) {
	p, err := pagination.Normalize(p)
	if err != nil {
		return nil, pagination.PageInfo{}, errutil.ValidationFailed("invalid cursor", err, errutil.WithDetails(errutil.Detail{
			Field:   "cursor",
			Message: "must be a next_cursor returned by a previous page",
		}))
	}

	rows, err := s.history.Find(ctx, &UnlockHistoryEntry{UserID: userID}, option.ApplyPagination(p))
	if err != nil {
		return nil, pagination.PageInfo{}, errutil.Internal("failed to list unlock history", err)
	}

	rows, info := pagination.Trim(rows, p.Limit, func(e *UnlockHistoryEntry) string { return e.ID })
	return rows, info, nil
}

func (s *Service) acquire(ctx context.Context, key string) (func(), error) {
	release, err := s.locker.Acquire(ctx, key, lockTTL)
	if err != nil {
		if errors.Is(err, redislock.ErrNotAcquired) {
			return nil, errutil.TooManyRequest("another unlock is in progress", err)
		}
		return nil, errutil.Internal("failed to acquire unlock lock", err)
	}
	return release, nil
}
