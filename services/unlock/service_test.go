package unlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"serialfic-monetization/pkg/db/pagination"
	"serialfic-monetization/pkg/errutil"
	"serialfic-monetization/pkg/events"
	"serialfic-monetization/pkg/redislock"
	"serialfic-monetization/services/access"
	"serialfic-monetization/services/catalog"
	"serialfic-monetization/services/earning"
	"serialfic-monetization/services/monetization"
	"serialfic-monetization/services/subscription"
	"serialfic-monetization/services/testutil"
	"serialfic-monetization/services/wallet"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type publisherMock struct {
	mu     sync.Mutex
	events []events.ChapterUnlocked
}

func (p *publisherMock) PublishChapterUnlocked(_ context.Context, ev events.ChapterUnlocked) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

type env struct {
	db        *gorm.DB
	svc       *Service
	wallet    *wallet.Service
	access    *access.Service
	publisher *publisherMock
}

func newEnv(t *testing.T) *env {
	t.Helper()

	var models []any
	for _, m := range [][]any{catalog.Models(), subscription.Models(), wallet.Models(), access.Models(), earning.Models(), Models()} {
		models = append(models, m...)
	}
	db := testutil.NewTestDB(t, models...)
	node := testutil.NewTestNode(t)
	policy := monetization.DefaultPolicy()
	reader := catalog.NewStore(catalog.Params{DB: db})
	subs := subscription.NewStore(db)

	e := &env{db: db, publisher: &publisherMock{}}
	e.access = access.NewService(access.ServiceParams{DB: db, Node: node, Catalog: reader, Policy: policy})
	e.wallet = wallet.NewService(wallet.ServiceParams{DB: db, Node: node})

	attribution := earning.NewAttribution(earning.AttributionParams{
		DB: db, Node: node, Catalog: reader, Subscriptions: subs, Policy: policy,
	})

	svc, err := NewService(ServiceParams{
		DB:         db,
		Node:       node,
		Catalog:    reader,
		Access:     e.access,
		Wallet:     e.wallet,
		Dispatcher: earning.NewDispatcherWithMode(earning.DispatchSync, attribution, nil, nil),
		Publisher:  e.publisher,
		Locker:     redislock.Noop{},
		Policy:     policy,
	})
	require.NoError(t, err)
	e.svc = svc
	return e
}

// seedNovel creates novel n1 by writer w1 with chapters n1-ch1..n1-chN. Each
// sample chapter gets sampleViews views.
func (e *env) seedNovel(t *testing.T, pricing catalog.PricingModel, chapters int, sampleViews int64) {
	t.Helper()
	require.NoError(t, e.db.Create(&catalog.Novel{ID: "n1", AuthorID: "w1", Title: "Night Market", Slug: "night-market", PricingModel: pricing}).Error)
	for n := 1; n <= chapters; n++ {
		ch := &catalog.Chapter{ID: fmt.Sprintf("n1-ch%d", n), NovelID: "n1", ChapterNumber: n}
		if n <= 5 {
			ch.ViewCount = sampleViews
		}
		require.NoError(t, e.db.Create(ch).Error)
	}
}

func (e *env) subscribe(t *testing.T) {
	t.Helper()
	require.NoError(t, e.db.Create(&subscription.WriterSubscription{
		ID: "s1", WriterID: "w1", PlanCode: "pro", Status: subscription.StatusActive,
		ExpiresAt: time.Now().Add(30 * 24 * time.Hour),
	}).Error)
}

func (e *env) fund(t *testing.T, user string, coins int64) {
	t.Helper()
	_, err := e.wallet.Credit(context.Background(), wallet.CreditRequest{UserID: user, Amount: coins, Reason: "top_up"})
	require.NoError(t, err)
}

func (e *env) balance(t *testing.T, user string) int64 {
	t.Helper()
	b, err := e.wallet.Balance(context.Background(), user)
	require.NoError(t, err)
	return b
}

func (e *env) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(model).Count(&n).Error)
	return n
}

func TestUnlockByCoinsSubscribedWriter(t *testing.T) {
	e := newEnv(t)
	e.seedNovel(t, catalog.PricingPaid, 6, 0)
	e.subscribe(t)
	e.fund(t, "u1", 10)
	ctx := context.Background()

	res, err := e.svc.UnlockByCoins(ctx, "u1", "n1-ch6")
	require.NoError(t, err)
	require.Equal(t, MethodCoin, res.Method)
	require.Equal(t, int64(4), res.CoinsSpent)
	require.Equal(t, int64(6), *res.BalanceAfter)
	require.Equal(t, int64(6), e.balance(t, "u1"))

	var agg earning.WriterEarningAggregate
	require.NoError(t, e.db.Where("writer_id = ? AND chapter_id = ? AND earning_type = ?", "w1", "n1-ch6", earning.EarningCoin).Take(&agg).Error)
	require.Equal(t, int64(1), agg.Count)
	// round(round(4/2*100) * 90/100)
	require.Equal(t, int64(180), agg.Amount)

	var spent wallet.CoinTransaction
	require.NoError(t, e.db.Where("type = ?", wallet.TransactionSpent).Take(&spent).Error)
	require.Equal(t, int64(4), spent.Amount)
	require.Equal(t, int64(6), spent.BalanceAfter)
	require.Equal(t, "n1-ch6", spent.RelatedItem)

	var hist UnlockHistoryEntry
	require.NoError(t, e.db.Take(&hist).Error)
	require.Equal(t, MethodCoin, hist.UnlockMethod)
	require.Equal(t, int64(4), hist.CoinsSpent)

	d, err := e.access.HasAccess(ctx, "u1", "n1-ch6")
	require.NoError(t, err)
	require.True(t, d.CanAccess)
	require.Equal(t, access.AccessCoin, d.AccessType)

	require.Len(t, e.publisher.events, 1)
	require.Equal(t, "coin", e.publisher.events[0].Method)
}

func TestUnlockTwiceConflicts(t *testing.T) {
	e := newEnv(t)
	e.seedNovel(t, catalog.PricingPaid, 6, 0)
	e.subscribe(t)
	e.fund(t, "u1", 20)
	ctx := context.Background()

	_, err := e.svc.UnlockByCoins(ctx, "u1", "n1-ch6")
	require.NoError(t, err)

	attempts := map[string]func() error{
		"coins":    func() error { _, err := e.svc.UnlockByCoins(ctx, "u1", "n1-ch6"); return err },
		"ads":      func() error { _, err := e.svc.UnlockByAds(ctx, "u1", "n1-ch6"); return err },
		"purchase": func() error { _, err := e.svc.PurchaseChapter(ctx, "u1", "n1-ch6"); return err },
	}
	for name, attempt := range attempts {
		t.Run(name, func(t *testing.T) {
			err := attempt()
			require.True(t, errutil.HasReason(err, errutil.ReasonAlreadyUnlocked), "got %v", err)
		})
	}

	require.Equal(t, int64(16), e.balance(t, "u1"))
	require.Equal(t, int64(1), e.count(t, &UnlockHistoryEntry{}))
	require.Equal(t, int64(0), e.count(t, &AdUnlockLogEntry{}))

	var agg earning.WriterEarningAggregate
	require.NoError(t, e.db.Take(&agg).Error)
	require.Equal(t, int64(1), agg.Count)
}

func TestUnlockByAdsThenCoinsConflicts(t *testing.T) {
	e := newEnv(t)
	e.seedNovel(t, catalog.PricingPaid, 6, 0)
	e.fund(t, "u1", 10)
	ctx := context.Background()

	_, err := e.svc.UnlockByAds(ctx, "u1", "n1-ch6")
	require.NoError(t, err)

	_, err = e.svc.UnlockByCoins(ctx, "u1", "n1-ch6")
	require.True(t, errutil.HasReason(err, errutil.ReasonAlreadyUnlocked))
	require.Equal(t, int64(10), e.balance(t, "u1"))
}

// competingGrant inserts a grant for (user, chapter) on the same connection
// right before the next grant insert, as a concurrent request that passed
// the same checks would.
func (e *env) competingGrant(t *testing.T, user, chapter string, accessType access.AccessType) {
	t.Helper()
	var once sync.Once
	err := e.db.Callback().Create().Before("gorm:create").Register("test:competing_grant", func(d *gorm.DB) {
		if d.Statement.Schema == nil || d.Statement.Schema.Table != "entitlement_grants" {
			return
		}
		once.Do(func() {
			d.AddError(d.Session(&gorm.Session{NewDB: true}).Exec(
				"INSERT INTO entitlement_grants (id, user_id, chapter_id, novel_id, access_type, granted_at) VALUES (?, ?, ?, ?, ?, ?)",
				"competing", user, chapter, "n1", accessType, time.Now(),
			).Error)
		})
	})
	require.NoError(t, err)
}

func TestConcurrentDuplicateUnlockRollsBack(t *testing.T) {
	cases := map[string]struct {
		competitor access.AccessType
		unlock     func(e *env) error
	}{
		"coins after coins": {access.AccessCoin, func(e *env) error {
			_, err := e.svc.UnlockByCoins(context.Background(), "u1", "n1-ch6")
			return err
		}},
		"coins after ads": {access.AccessAd, func(e *env) error {
			_, err := e.svc.UnlockByCoins(context.Background(), "u1", "n1-ch6")
			return err
		}},
		"ads after coins": {access.AccessCoin, func(e *env) error {
			_, err := e.svc.UnlockByAds(context.Background(), "u1", "n1-ch6")
			return err
		}},
		"purchase after ads": {access.AccessAd, func(e *env) error {
			_, err := e.svc.PurchaseChapter(context.Background(), "u1", "n1-ch6")
			return err
		}},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			e := newEnv(t)
			e.seedNovel(t, catalog.PricingPaid, 6, 0)
			e.subscribe(t)
			e.fund(t, "u1", 10)
			e.competingGrant(t, "u1", "n1-ch6", tc.competitor)

			err := tc.unlock(e)
			require.True(t, errutil.HasReason(err, errutil.ReasonAlreadyUnlocked), "got %v", err)

			require.Equal(t, int64(10), e.balance(t, "u1"))
			require.Zero(t, e.count(t, &UnlockHistoryEntry{}))
			require.Zero(t, e.count(t, &AdUnlockLogEntry{}))
			require.Zero(t, e.count(t, &earning.WriterEarningAggregate{}))

			var spent int64
			require.NoError(t, e.db.Model(&wallet.CoinTransaction{}).Where("type = ?", wallet.TransactionSpent).Count(&spent).Error)
			require.Zero(t, spent)
		})
	}
}

func TestUnlockUpgradesFreeGrant(t *testing.T) {
	e := newEnv(t)
	e.seedNovel(t, catalog.PricingPaid, 6, 0)
	e.fund(t, "u1", 10)
	e.competingGrant(t, "u1", "n1-ch6", access.AccessFree)

	res, err := e.svc.UnlockByCoins(context.Background(), "u1", "n1-ch6")
	require.NoError(t, err)
	require.Equal(t, int64(6), *res.BalanceAfter)

	grant, err := e.access.FindGrant(context.Background(), nil, "u1", "n1-ch6")
	require.NoError(t, err)
	require.Equal(t, access.AccessCoin, grant.AccessType)
	require.Equal(t, "competing", grant.ID)
}

func TestUnlockByAdsStatusComesFromTransaction(t *testing.T) {
	e := newEnv(t)
	e.seedNovel(t, catalog.PricingPaid, 7, 0)
	ctx := context.Background()

	// ad log reads outside a transaction fail from here on
	err := e.db.Callback().Query().Before("gorm:query").Register("test:ad_reads_down", func(d *gorm.DB) {
		if d.Statement.Schema == nil || d.Statement.Schema.Table != "ad_unlock_logs" {
			return
		}
		if _, inTx := d.Statement.ConnPool.(gorm.TxCommitter); !inTx {
			d.AddError(errors.New("ad log replica unavailable"))
		}
	})
	require.NoError(t, err)

	res, err := e.svc.UnlockByAds(ctx, "u1", "n1-ch6")
	require.NoError(t, err)
	require.NotNil(t, res.AdStatus)
	require.Equal(t, int64(1), res.AdStatus.Used)
	require.Equal(t, int64(4), res.AdStatus.Remaining)

	res, err = e.svc.UnlockByAds(ctx, "u1", "n1-ch7")
	require.NoError(t, err)
	require.Equal(t, int64(2), res.AdStatus.Used)

	_, err = e.svc.AdStatus(ctx, "u1", "n1")
	require.Error(t, err)
}

func TestUnlockByCoinsInsufficient(t *testing.T) {
	e := newEnv(t)
	e.seedNovel(t, catalog.PricingPaid, 6, 0)
	e.fund(t, "u1", 3)

	_, err := e.svc.UnlockByCoins(context.Background(), "u1", "n1-ch6")
	require.True(t, errutil.HasReason(err, errutil.ReasonInsufficientCoins))

	require.Equal(t, int64(3), e.balance(t, "u1"))
	require.Zero(t, e.count(t, &access.EntitlementGrant{}))
	require.Zero(t, e.count(t, &UnlockHistoryEntry{}))
	require.Zero(t, e.count(t, &earning.WriterEarningAggregate{}))
	require.Empty(t, e.publisher.events)
}

func TestUnlockByCoinsChapterCostOverride(t *testing.T) {
	e := newEnv(t)
	e.seedNovel(t, catalog.PricingPaid, 6, 0)
	require.NoError(t, e.db.Model(&catalog.Chapter{}).Where("id = ?", "n1-ch6").Update("coin_cost", 7).Error)
	e.fund(t, "u1", 10)

	res, err := e.svc.UnlockByCoins(context.Background(), "u1", "n1-ch6")
	require.NoError(t, err)
	require.Equal(t, int64(7), res.CoinsSpent)
	require.Equal(t, int64(3), e.balance(t, "u1"))
}

func TestUnlockByCoinsUnsubscribedBelowViews(t *testing.T) {
	e := newEnv(t)
	// 5 sample chapters with 160 views each is 800 in total
	e.seedNovel(t, catalog.PricingPaid, 6, 160)
	e.fund(t, "u1", 10)

	_, err := e.svc.UnlockByCoins(context.Background(), "u1", "n1-ch6")
	require.NoError(t, err)
	require.Equal(t, int64(6), e.balance(t, "u1"))
	require.Zero(t, e.count(t, &earning.WriterEarningAggregate{}))
}

func TestUnlockByCoinsUnsubscribedAboveViews(t *testing.T) {
	e := newEnv(t)
	e.seedNovel(t, catalog.PricingPaid, 6, 200)
	e.fund(t, "u1", 10)

	_, err := e.svc.UnlockByCoins(context.Background(), "u1", "n1-ch6")
	require.NoError(t, err)

	var agg earning.WriterEarningAggregate
	require.NoError(t, e.db.Take(&agg).Error)
	// 70% of 200 paise
	require.Equal(t, int64(140), agg.Amount)
	require.Equal(t, int64(1000), agg.TotalViewsOnFreeChapters)
}

func TestUnlockPreconditions(t *testing.T) {
	e := newEnv(t)
	e.seedNovel(t, catalog.PricingPaid, 6, 0)
	require.NoError(t, e.db.Create(&catalog.Novel{ID: "free", AuthorID: "w1", Slug: "free", PricingModel: catalog.PricingFree}).Error)
	require.NoError(t, e.db.Create(&catalog.Chapter{ID: "free-ch9", NovelID: "free", ChapterNumber: 9}).Error)
	e.fund(t, "u1", 10)
	ctx := context.Background()

	_, err := e.svc.UnlockByCoins(ctx, "u1", "n1-ch5")
	require.True(t, errutil.HasReason(err, errutil.ReasonChapterIsFree))

	_, err = e.svc.UnlockByAds(ctx, "u1", "free-ch9")
	require.True(t, errutil.HasReason(err, errutil.ReasonNovelNotPaid))

	_, err = e.svc.PurchaseChapter(ctx, "u1", "missing")
	require.True(t, errutil.Is(err, errutil.StatusNotFound))

	require.Equal(t, int64(10), e.balance(t, "u1"))
	require.Zero(t, e.count(t, &UnlockHistoryEntry{}))
}

func TestPurchaseChapter(t *testing.T) {
	e := newEnv(t)
	e.seedNovel(t, catalog.PricingPaid, 6, 0)
	e.subscribe(t)
	ctx := context.Background()

	res, err := e.svc.PurchaseChapter(ctx, "u1", "n1-ch6")
	require.NoError(t, err)
	require.Equal(t, MethodPurchase, res.Method)

	grant, err := e.access.FindGrant(ctx, nil, "u1", "n1-ch6")
	require.NoError(t, err)
	require.Equal(t, access.AccessPurchased, grant.AccessType)

	var hist UnlockHistoryEntry
	require.NoError(t, e.db.Take(&hist).Error)
	require.Equal(t, MethodPurchase, hist.UnlockMethod)
	require.Zero(t, hist.CoinsSpent)

	require.Zero(t, e.count(t, &earning.WriterEarningAggregate{}))
}

func TestUnlockByAdsDailyCap(t *testing.T) {
	e := newEnv(t)
	e.seedNovel(t, catalog.PricingPaid, 11, 0)
	e.subscribe(t)
	ctx := context.Background()

	for n := 6; n <= 10; n++ {
		res, err := e.svc.UnlockByAds(ctx, "u1", fmt.Sprintf("n1-ch%d", n))
		require.NoError(t, err)
		require.Equal(t, int64(10-n), res.AdStatus.Remaining)
	}

	_, err := e.svc.UnlockByAds(ctx, "u1", "n1-ch11")
	require.True(t, errutil.HasReason(err, errutil.ReasonDailyAdLimitReached))

	require.Equal(t, int64(5), e.count(t, &AdUnlockLogEntry{}))
	grant, err := e.access.FindGrant(ctx, nil, "u1", "n1-ch11")
	require.NoError(t, err)
	require.Nil(t, grant)

	var aggs []earning.WriterEarningAggregate
	require.NoError(t, e.db.Find(&aggs).Error)
	require.Len(t, aggs, 5)
	for _, agg := range aggs {
		require.Equal(t, earning.EarningAd, agg.EarningType)
		require.Equal(t, int64(4), agg.Amount)
	}

	// another reader has their own cap
	_, err = e.svc.UnlockByAds(ctx, "u2", "n1-ch11")
	require.NoError(t, err)
}

func TestAdCapResetsAtMidnight(t *testing.T) {
	e := newEnv(t)
	e.seedNovel(t, catalog.PricingPaid, 11, 0)
	ctx := context.Background()

	day := time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC)
	e.svc.now = func() time.Time { return day }

	for i := 0; i < 5; i++ {
		_, err := e.svc.RecordAdWatch(ctx, RecordAdParams{UserID: "u1", NovelID: "n1"})
		require.NoError(t, err)
	}

	status, err := e.svc.AdStatus(ctx, "u1", "n1")
	require.NoError(t, err)
	require.Equal(t, int64(5), status.Used)
	require.Zero(t, status.Remaining)
	require.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), status.ResetsAt)

	_, err = e.svc.UnlockByAds(ctx, "u1", "n1-ch6")
	require.True(t, errutil.HasReason(err, errutil.ReasonDailyAdLimitReached))

	e.svc.now = func() time.Time { return day.Add(2 * time.Hour) }
	_, err = e.svc.UnlockByAds(ctx, "u1", "n1-ch6")
	require.NoError(t, err)
}

func TestRecordAdWatch(t *testing.T) {
	e := newEnv(t)
	e.seedNovel(t, catalog.PricingPaid, 6, 0)
	e.subscribe(t)
	require.NoError(t, e.db.Create(&catalog.Novel{ID: "n2", AuthorID: "w1", Slug: "other", PricingModel: catalog.PricingPaid}).Error)
	require.NoError(t, e.db.Create(&catalog.Chapter{ID: "n2-ch7", NovelID: "n2", ChapterNumber: 7}).Error)
	ctx := context.Background()

	status, err := e.svc.RecordAdWatch(ctx, RecordAdParams{UserID: "u1", NovelID: "n1", ChapterID: "n1-ch6", AdType: earning.AdTypeInterstitial})
	require.NoError(t, err)
	require.Equal(t, int64(1), status.Used)

	// sample chapter and novel-level views earn nothing
	_, err = e.svc.RecordAdWatch(ctx, RecordAdParams{UserID: "u1", NovelID: "n1", ChapterID: "n1-ch2"})
	require.NoError(t, err)
	_, err = e.svc.RecordAdWatch(ctx, RecordAdParams{UserID: "u1", NovelID: "n1"})
	require.NoError(t, err)

	_, err = e.svc.RecordAdWatch(ctx, RecordAdParams{UserID: "u1", NovelID: "n1", ChapterID: "n2-ch7"})
	require.True(t, errutil.Is(err, errutil.StatusValidationFailed))

	var aggs []earning.WriterEarningAggregate
	require.NoError(t, e.db.Find(&aggs).Error)
	require.Len(t, aggs, 1)
	require.Equal(t, earning.EarningInterstitial, aggs[0].EarningType)

	require.Equal(t, int64(3), e.count(t, &AdUnlockLogEntry{}))
	require.Zero(t, e.count(t, &access.EntitlementGrant{}))
}

func TestCoinEarningRule(t *testing.T) {
	e := newEnv(t)

	ok, err := e.svc.coinRule.Eval(map[string]any{
		"chapter_number": int64(3), "view_count": int64(1001),
		"free_chapter_threshold": int64(5), "sample_view_threshold": int64(1000),
	})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = e.svc.coinRule.Eval(map[string]any{
		"chapter_number": int64(3), "view_count": int64(1000),
		"free_chapter_threshold": int64(5), "sample_view_threshold": int64(1000),
	})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNewServiceRejectsBadRule(t *testing.T) {
	policy := monetization.DefaultPolicy()
	policy.CoinEarningRule = "chapter_number + 1"

	_, err := NewService(ServiceParams{Policy: policy})
	require.Error(t, err)
}

func TestHistory(t *testing.T) {
	e := newEnv(t)
	e.seedNovel(t, catalog.PricingPaid, 9, 0)
	e.fund(t, "u1", 100)
	ctx := context.Background()

	for n := 6; n <= 9; n++ {
		_, err := e.svc.UnlockByCoins(ctx, "u1", fmt.Sprintf("n1-ch%d", n))
		require.NoError(t, err)
	}

	page, info, err := e.svc.History(ctx, "u1", pagination.Pagination{Limit: 3})
	require.NoError(t, err)
	require.Len(t, page, 3)
	require.True(t, info.HasMore)
	require.Equal(t, "n1-ch9", page[0].ChapterID)

	rest, info, err := e.svc.History(ctx, "u1", pagination.Pagination{Limit: 3, Cursor: info.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.False(t, info.HasMore)
	require.Equal(t, "n1-ch6", rest[0].ChapterID)

	_, _, err = e.svc.History(ctx, "u1", pagination.Pagination{Limit: 3, Cursor: "bm90LWpzb24"})
	require.True(t, errutil.Is(err, errutil.StatusValidationFailed))
}
