package earning

import (
	"context"
	"time"

	"serialfic-monetization/pkg/errutil"
	"serialfic-monetization/pkg/logger"
	"serialfic-monetization/services/catalog"
	"serialfic-monetization/services/eligibility"
	"serialfic-monetization/services/monetization"
	"serialfic-monetization/services/subscription"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	earningsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "earnings_recorded_total",
		Help: "Earning events credited to a writer aggregate.",
	}, []string{"type"})
	earningsAmount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "earnings_amount_paise_total",
		Help: "Writer share credited, in paise.",
	}, []string{"type"})
	earningsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "earnings_skipped_total",
		Help: "Earning events that produced no aggregate write.",
	}, []string{"reason"})
)

const (
	skipNovelNotPaid    = "novel_not_paid"
	skipViewsNotReached = "views_requirement_not_met"
)

type CoinEarning struct {
	NovelID         string          `json:"novel_id"`
	WriterID        string          `json:"writer_id"`
	ChapterID       string          `json:"chapter_id"`
	CoinPriceRupees decimal.Decimal `json:"coin_price_rupees"`
}

type AdEarning struct {
	NovelID   string `json:"novel_id"`
	WriterID  string `json:"writer_id"`
	ChapterID string `json:"chapter_id"`
	AdType    string `json:"ad_type,omitempty"`
}

// Recorder credits writers for unlock events.
type Recorder interface {
	RecordCoinEarning(ctx context.Context, e CoinEarning) error
	RecordAdEarning(ctx context.Context, e AdEarning) error
}

// Attribution is the only writer of WriterEarningAggregate rows.
type Attribution struct {
	db            *gorm.DB
	node          *snowflake.Node
	catalog       catalog.Reader
	subscriptions subscription.Provider
	policy        monetization.Policy
	now           func() time.Time
}

type AttributionParams struct {
	fx.In
	DB            *gorm.DB
	Node          *snowflake.Node
	Catalog       catalog.Reader
	Subscriptions subscription.Provider
	Policy        monetization.Policy
}

func NewAttribution(p AttributionParams) *Attribution {
	return &Attribution{
		db:            p.DB,
		node:          p.Node,
		catalog:       p.Catalog,
		subscriptions: p.Subscriptions,
		policy:        p.Policy,
		now:           time.Now,
	}
}

// terms is the writer's revenue position at the time of one event.
type terms struct {
	chapterNumber  int
	subscribed     bool
	platformFee    int
	writerPct      int
	viewsMet       bool
	totalFreeViews int64
}

func (a *Attribution) RecordCoinEarning(ctx context.Context, e CoinEarning) error {
	log := logger.FromContext(ctx).With(
		zap.String("earning_type", string(EarningCoin)),
		zap.String("novel_id", e.NovelID),
		zap.String("chapter_id", e.ChapterID),
		zap.String("writer_id", e.WriterID),
	)

	t, ok, err := a.evaluate(ctx, log, e.NovelID, e.WriterID, e.ChapterID)
	if err != nil || !ok {
		return err
	}

	amount := monetization.WriterShare(e.CoinPriceRupees, t.writerPct)
	return a.accumulate(ctx, log, &WriterEarningAggregate{
		WriterID:              e.WriterID,
		NovelID:               e.NovelID,
		ChapterID:             e.ChapterID,
		EarningType:           EarningCoin,
		Amount:                amount,
		CoinPrice:             e.CoinPriceRupees,
		CoinsRequiredToUnlock: a.policy.CoinsRequired(e.CoinPriceRupees),
	}, t)
}

func (a *Attribution) RecordAdEarning(ctx context.Context, e AdEarning) error {
	typ := earningTypeForAd(e.AdType)
	log := logger.FromContext(ctx).With(
		zap.String("earning_type", string(typ)),
		zap.String("novel_id", e.NovelID),
		zap.String("chapter_id", e.ChapterID),
		zap.String("writer_id", e.WriterID),
	)

	t, ok, err := a.evaluate(ctx, log, e.NovelID, e.WriterID, e.ChapterID)
	if err != nil || !ok {
		return err
	}

	amount := monetization.WriterShare(a.policy.AdPerUnlockRupees(0), t.writerPct)
	return a.accumulate(ctx, log, &WriterEarningAggregate{
		WriterID:    e.WriterID,
		NovelID:     e.NovelID,
		ChapterID:   e.ChapterID,
		EarningType: typ,
		Amount:      amount,
		CoinPrice:   decimal.Zero,
		AdType:      e.AdType,
	}, t)
}

// evaluate reports false when the event earns nothing for the writer.
func (a *Attribution) evaluate(ctx context.Context, log *zap.Logger, novelID, writerID, chapterID string) (terms, bool, error) {
	pricing, err := a.catalog.PricingModel(ctx, novelID)
	if err != nil {
		return terms{}, false, err
	}
	if pricing != catalog.PricingPaid {
		earningsSkipped.WithLabelValues(skipNovelNotPaid).Inc()
		log.Debug("novel is not paid, no earning recorded")
		return terms{}, false, nil
	}

	meta, err := a.catalog.ChapterMetadata(ctx, chapterID)
	if err != nil {
		return terms{}, false, err
	}

	status, err := a.subscriptions.CurrentStatus(ctx, writerID)
	if err != nil {
		return terms{}, false, err
	}

	views, err := a.catalog.FreeChapterViews(ctx, novelID, a.policy.FreeChapterThreshold)
	if err != nil {
		return terms{}, false, err
	}

	t := terms{
		chapterNumber: meta.ChapterNumber,
		subscribed:    status.Active(a.now()),
	}
	t.platformFee = a.policy.PlatformFee(t.subscribed, status.PlatformFeePercentage)
	t.writerPct = monetization.WriterPercentage(t.platformFee)

	gate := eligibility.FreeSampleViewsGateSatisfied(eligibility.GateInput{
		Subscribed:           t.subscribed,
		ChapterNumber:        meta.ChapterNumber,
		FreeChapterThreshold: a.policy.FreeChapterThreshold,
		FreeViewsRequirement: a.policy.FreeViewsRequirement,
		SampleViews:          views,
	}, eligibility.SumGate)
	t.viewsMet = gate.Satisfied
	t.totalFreeViews = gate.TotalFreeViews

	if !t.viewsMet {
		earningsSkipped.WithLabelValues(skipViewsNotReached).Inc()
		log.Info("views requirement not met, no earning recorded",
			zap.Bool("has_subscription", t.subscribed),
			zap.Int("chapter_number", t.chapterNumber),
			zap.Int64("total_free_views", t.totalFreeViews),
		)
		return t, false, nil
	}
	return t, true, nil
}

// accumulate increments the aggregate and overwrites its snapshot in one
// INSERT .. ON CONFLICT statement.
func (a *Attribution) accumulate(ctx context.Context, log *zap.Logger, agg *WriterEarningAggregate, t terms) error {
	now := a.now()
	agg.ID = a.node.Generate().String()
	agg.Count = 1
	agg.HasSubscription = t.subscribed
	agg.PlatformFeePercentage = t.platformFee
	agg.WriterPercentageEarned = t.writerPct
	agg.ViewsRequirementMet = t.viewsMet
	agg.TotalViewsOnFreeChapters = t.totalFreeViews
	agg.ChapterNumber = t.chapterNumber
	agg.CreatedAt = now
	agg.UpdatedAt = now

	err := a.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "writer_id"},
			{Name: "novel_id"},
			{Name: "chapter_id"},
			{Name: "earning_type"},
		},
		DoUpdates: clause.Assignments(map[string]any{
			"amount":                       gorm.Expr("writer_earning_aggregates.amount + ?", agg.Amount),
			"count":                        gorm.Expr("writer_earning_aggregates.count + 1"),
			"has_subscription":             agg.HasSubscription,
			"platform_fee_percentage":      agg.PlatformFeePercentage,
			"writer_percentage_earned":     agg.WriterPercentageEarned,
			"views_requirement_met":        agg.ViewsRequirementMet,
			"total_views_on_free_chapters": agg.TotalViewsOnFreeChapters,
			"coin_price":                   agg.CoinPrice,
			"coins_required_to_unlock":     agg.CoinsRequiredToUnlock,
			"chapter_number":               agg.ChapterNumber,
			"ad_type":                      agg.AdType,
			"updated_at":                   now,
		}),
	}).Create(agg).Error
	if err != nil {
		log.Error("failed to accumulate earning", zap.Error(err))
		return errutil.Internal("failed to record earning", err)
	}

	earningsRecorded.WithLabelValues(string(agg.EarningType)).Inc()
	earningsAmount.WithLabelValues(string(agg.EarningType)).Add(float64(agg.Amount))
	log.Info("earning recorded",
		zap.Int64("amount", agg.Amount),
		zap.Int("writer_percentage", t.writerPct),
		zap.Bool("has_subscription", t.subscribed),
	)
	return nil
}
