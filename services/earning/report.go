package earning

import (
	"context"
	"sort"
	"time"

	"serialfic-monetization/pkg/errutil"
	"serialfic-monetization/pkg/repository"
	"serialfic-monetization/services/catalog"
	"serialfic-monetization/services/monetization"
	"serialfic-monetization/services/subscription"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Totals sums aggregates by type. Amounts are paise.
type Totals struct {
	CoinAmount         int64  `json:"coinAmount"`
	CoinUnlocks        int64  `json:"coinUnlocks"`
	AdAmount           int64  `json:"adAmount"`
	AdUnlocks          int64  `json:"adUnlocks"`
	InterstitialAmount int64  `json:"interstitialAmount"`
	InterstitialViews  int64  `json:"interstitialViews"`
	TotalAmount        int64  `json:"totalAmount"`
	TotalRupees        string `json:"totalRupees"`
	// EstimatedAdAmount re-prices every ad and interstitial event at the
	// requested eCPM.
	EstimatedAdAmount int64 `json:"estimatedAdAmount"`
}

func (t *Totals) add(agg *WriterEarningAggregate, perUnlock decimal.Decimal) {
	switch agg.EarningType {
	case EarningCoin:
		t.CoinAmount += agg.Amount
		t.CoinUnlocks += agg.Count
	case EarningAd:
		t.AdAmount += agg.Amount
		t.AdUnlocks += agg.Count
	case EarningInterstitial:
		t.InterstitialAmount += agg.Amount
		t.InterstitialViews += agg.Count
	}
	if agg.EarningType != EarningCoin {
		t.EstimatedAdAmount += agg.Count * monetization.WriterShare(perUnlock, agg.WriterPercentageEarned)
	}
	t.TotalAmount += agg.Amount
	t.TotalRupees = decimal.New(t.TotalAmount, -2).StringFixed(2)
}

func newTotals() Totals {
	return Totals{TotalRupees: "0.00"}
}

type NovelSummary struct {
	NovelID string `json:"novelId"`
	Title   string `json:"title"`
	Totals  Totals `json:"totals"`
}

type WriterReport struct {
	WriterID        string         `json:"writerId"`
	EcpmRate        float64        `json:"ecpmRate"`
	HasSubscription bool           `json:"hasSubscription"`
	Novels          []NovelSummary `json:"novels"`
	Totals          Totals         `json:"totals"`
}

type ChapterSummary struct {
	ChapterID     string `json:"chapterId"`
	ChapterNumber int    `json:"chapterNumber"`
	Title         string `json:"title"`
	Totals        Totals `json:"totals"`
}

type NovelReport struct {
	NovelID         string           `json:"novelId"`
	Title           string           `json:"title"`
	EcpmRate        float64          `json:"ecpmRate"`
	HasSubscription bool             `json:"hasSubscription"`
	Chapters        []ChapterSummary `json:"chapters"`
	Totals          Totals           `json:"totals"`
}

type ChapterReport struct {
	NovelID       string                    `json:"novelId"`
	ChapterID     string                    `json:"chapterId"`
	ChapterNumber int                       `json:"chapterNumber"`
	EcpmRate      float64                   `json:"ecpmRate"`
	Aggregates    []*WriterEarningAggregate `json:"aggregates"`
	Totals        Totals                    `json:"totals"`
}

type ReportService struct {
	catalog       catalog.Reader
	subscriptions subscription.Provider
	policy        monetization.Policy
	now           func() time.Time

	aggregates repository.Repository[WriterEarningAggregate]
}

type ReportParams struct {
	fx.In
	DB            *gorm.DB
	Catalog       catalog.Reader
	Subscriptions subscription.Provider
	Policy        monetization.Policy
}

func NewReportService(p ReportParams) *ReportService {
	return &ReportService{
		catalog:       p.Catalog,
		subscriptions: p.Subscriptions,
		policy:        p.Policy,
		now:           time.Now,

		aggregates: repository.ProvideStore[WriterEarningAggregate](p.DB),
	}
}

func (s *ReportService) ecpm(rate float64) float64 {
	if rate > 0 {
		return rate
	}
	return s.policy.ECPM
}

// WriterEarnings covers every novel written by writerID.
func (s *ReportService) WriterEarnings(ctx context.Context, writerID string, ecpmRate float64) (*WriterReport, error) {
	rate := s.ecpm(ecpmRate)
	perUnlock := s.policy.AdPerUnlockRupees(rate)

	var (
		novels []*catalog.Novel
		aggs   []*WriterEarningAggregate
		status subscription.Status
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		novels, err = s.catalog.NovelsByAuthor(gctx, writerID)
		return err
	})
	g.Go(func() (err error) {
		aggs, err = s.aggregates.Find(gctx, &WriterEarningAggregate{WriterID: writerID})
		if err != nil {
			return errutil.Internal("failed to load earnings", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		status, err = s.subscriptions.CurrentStatus(gctx, writerID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &WriterReport{
		WriterID:        writerID,
		EcpmRate:        rate,
		HasSubscription: status.Active(s.now()),
		Novels:          make([]NovelSummary, 0, len(novels)),
		Totals:          newTotals(),
	}

	byNovel := make(map[string]*NovelSummary, len(novels))
	for _, n := range novels {
		report.Novels = append(report.Novels, NovelSummary{NovelID: n.ID, Title: n.Title, Totals: newTotals()})
	}
	for i := range report.Novels {
		byNovel[report.Novels[i].NovelID] = &report.Novels[i]
	}

	for _, agg := range aggs {
		report.Totals.add(agg, perUnlock)
		if ns, ok := byNovel[agg.NovelID]; ok {
			ns.Totals.add(agg, perUnlock)
		}
	}
	return report, nil
}

func (s *ReportService) NovelEarnings(ctx context.Context, novel *catalog.Novel, ecpmRate float64) (*NovelReport, error) {
	rate := s.ecpm(ecpmRate)
	perUnlock := s.policy.AdPerUnlockRupees(rate)

	var (
		chapters []*catalog.Chapter
		aggs     []*WriterEarningAggregate
		status   subscription.Status
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		chapters, err = s.catalog.ChaptersByNovel(gctx, novel.ID)
		return err
	})
	g.Go(func() (err error) {
		aggs, err = s.aggregates.Find(gctx, &WriterEarningAggregate{WriterID: novel.AuthorID, NovelID: novel.ID})
		if err != nil {
			return errutil.Internal("failed to load earnings", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		status, err = s.subscriptions.CurrentStatus(gctx, novel.AuthorID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &NovelReport{
		NovelID:         novel.ID,
		Title:           novel.Title,
		EcpmRate:        rate,
		HasSubscription: status.Active(s.now()),
		Chapters:        []ChapterSummary{},
		Totals:          newTotals(),
	}

	byChapter := make(map[string]*ChapterSummary)
	for _, agg := range aggs {
		report.Totals.add(agg, perUnlock)

		cs, ok := byChapter[agg.ChapterID]
		if !ok {
			cs = &ChapterSummary{ChapterID: agg.ChapterID, ChapterNumber: agg.ChapterNumber, Totals: newTotals()}
			byChapter[agg.ChapterID] = cs
		}
		cs.Totals.add(agg, perUnlock)
	}

	for _, ch := range chapters {
		if cs, ok := byChapter[ch.ID]; ok {
			cs.ChapterNumber = ch.ChapterNumber
			cs.Title = ch.Title
		}
	}
	for _, cs := range byChapter {
		report.Chapters = append(report.Chapters, *cs)
	}
	sort.Slice(report.Chapters, func(i, j int) bool {
		return report.Chapters[i].ChapterNumber < report.Chapters[j].ChapterNumber
	})

	return report, nil
}

func (s *ReportService) ChapterEarnings(ctx context.Context, novel *catalog.Novel, chapterID string, ecpmRate float64) (*ChapterReport, error) {
	meta, err := s.catalog.ChapterMetadata(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	if meta.NovelID != novel.ID {
		return nil, errutil.NotFound("chapter not found in novel", nil)
	}

	aggs, err := s.aggregates.Find(ctx, &WriterEarningAggregate{
		WriterID:  novel.AuthorID,
		NovelID:   novel.ID,
		ChapterID: chapterID,
	})
	if err != nil {
		return nil, errutil.Internal("failed to load earnings", err)
	}

	rate := s.ecpm(ecpmRate)
	perUnlock := s.policy.AdPerUnlockRupees(rate)
	report := &ChapterReport{
		NovelID:       novel.ID,
		ChapterID:     chapterID,
		ChapterNumber: meta.ChapterNumber,
		EcpmRate:      rate,
		Aggregates:    aggs,
		Totals:        newTotals(),
	}
	if report.Aggregates == nil {
		report.Aggregates = []*WriterEarningAggregate{}
	}
	for _, agg := range aggs {
		report.Totals.add(agg, perUnlock)
	}
	return report, nil
}
