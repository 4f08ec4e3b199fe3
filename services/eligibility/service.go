package eligibility

import (
	"context"
	"time"

	"serialfic-monetization/services/catalog"
	"serialfic-monetization/services/monetization"
	"serialfic-monetization/services/subscription"

	"go.uber.org/fx"
)

type Service struct {
	catalog       catalog.Reader
	subscriptions subscription.Provider
	policy        monetization.Policy
	now           func() time.Time
}

type ServiceParams struct {
	fx.In
	Catalog       catalog.Reader
	Subscriptions subscription.Provider
	Policy        monetization.Policy
}

func NewService(p ServiceParams) *Service {
	return &Service{
		catalog:       p.Catalog,
		subscriptions: p.Subscriptions,
		policy:        p.Policy,
		now:           time.Now,
	}
}

type ChapterViews struct {
	ChapterNumber    int   `json:"chapterNumber"`
	ViewCount        int64 `json:"viewCount"`
	MeetsRequirement bool  `json:"meetsRequirement"`
}

type Report struct {
	NovelID               string               `json:"novelId"`
	PricingModel          catalog.PricingModel `json:"pricingModel"`
	HasSubscription       bool                 `json:"hasSubscription"`
	PlatformFeePercentage int                  `json:"platformFeePercentage"`
	WriterPercentage      int                  `json:"writerPercentage"`
	FreeViewsRequirement  int64                `json:"freeViewsRequirement"`
	FreeChapterViews      []ChapterViews       `json:"freeChapterViews"`
	MissingChapters       []int                `json:"missingChapters"`
	TotalFreeViews        int64                `json:"totalFreeViews"`
	IsMonetized           bool                 `json:"isMonetized"`
	// EcpmRate and EstimatedAdEarningPerUnlock (writer share in paise of one
	// ad unlock at that eCPM) are filled by WithAdEstimate.
	EcpmRate                    float64 `json:"ecpmRate"`
	EstimatedAdEarningPerUnlock int64   `json:"estimatedAdEarningPerUnlock"`
}

// WithAdEstimate fills the ad-estimate display for r. ecpmRate <= 0 uses
// the policy eCPM.
func (s *Service) WithAdEstimate(r *Report, ecpmRate float64) *Report {
	if ecpmRate <= 0 {
		ecpmRate = s.policy.ECPM
	}
	r.EcpmRate = ecpmRate
	r.EstimatedAdEarningPerUnlock = monetization.WriterShare(s.policy.AdPerUnlockRupees(ecpmRate), r.WriterPercentage)
	return r
}

// IsMonetized reports whether a novel currently earns for its writer.
func (s *Service) IsMonetized(ctx context.Context, novelID string) (bool, error) {
	r, err := s.CheckEligibility(ctx, novelID)
	if err != nil {
		return false, err
	}
	return r.IsMonetized, nil
}

func (s *Service) CheckEligibility(ctx context.Context, novelID string) (*Report, error) {
	novel, err := s.catalog.Novel(ctx, novelID)
	if err != nil {
		return nil, err
	}

	report := &Report{
		NovelID:              novel.ID,
		PricingModel:         novel.PricingModel,
		FreeViewsRequirement: s.policy.FreeViewsRequirement,
		FreeChapterViews:     []ChapterViews{},
		MissingChapters:      []int{},
	}

	status, err := s.subscriptions.CurrentStatus(ctx, novel.AuthorID)
	if err != nil {
		return nil, err
	}
	report.HasSubscription = status.Active(s.now())
	report.PlatformFeePercentage = s.policy.PlatformFee(report.HasSubscription, status.PlatformFeePercentage)
	report.WriterPercentage = monetization.WriterPercentage(report.PlatformFeePercentage)

	views, err := s.catalog.FreeChapterViews(ctx, novel.ID, s.policy.FreeChapterThreshold)
	if err != nil {
		return nil, err
	}
	for n := 1; n <= s.policy.FreeChapterThreshold; n++ {
		if v, ok := views[n]; ok {
			report.FreeChapterViews = append(report.FreeChapterViews, ChapterViews{
				ChapterNumber:    n,
				ViewCount:        v,
				MeetsRequirement: v >= s.policy.FreeViewsRequirement,
			})
		}
	}

	gate := FreeSampleViewsGateSatisfied(GateInput{
		Subscribed:           report.HasSubscription,
		FreeChapterThreshold: s.policy.FreeChapterThreshold,
		FreeViewsRequirement: s.policy.FreeViewsRequirement,
		SampleViews:          views,
	}, MinGate)
	report.TotalFreeViews = gate.TotalFreeViews
	report.MissingChapters = append(report.MissingChapters, gate.MissingChapters...)
	report.IsMonetized = novel.IsPaid() && gate.Satisfied

	return report, nil
}
