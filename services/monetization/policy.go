package monetization

import (
	"fmt"
	"time"

	"serialfic-monetization/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("monetization.policy",
	fx.Provide(NewPolicy),
)

const (
	DefaultFreeChapterThreshold             = 5
	DefaultDailyAdUnlockLimit               = 5
	DefaultCoinCost                   int64 = 4
	DefaultECPM                             = 40.0
	DefaultCoinsPerRupee                    = 2.0
	DefaultNonSubscriberFeePercentage       = 30
	DefaultSubscriberFeePercentage          = 10
	DefaultFreeViewsRequirement       int64 = 1000
	DefaultSampleEarningViewThreshold int64 = 1000
	// DefaultCoinEarningRule suppresses earnings on free sample chapters
	// unless they have proven popular.
	DefaultCoinEarningRule = "chapter_number > free_chapter_threshold || view_count > sample_view_threshold"
)

// Policy carries every tunable of the access and earnings engines.
type Policy struct {
	FreeChapterThreshold           int
	DailyAdUnlockLimit             int
	DefaultCoinCost                int64
	ECPM                           float64
	CoinsPerRupee                  float64
	NonSubscriberFeePercentage     int
	DefaultSubscriberFeePercentage int
	FreeViewsRequirement           int64
	SampleEarningViewThreshold     int64
	CoinEarningRule                string
	Location                       *time.Location
}

func DefaultPolicy() Policy {
	return Policy{
		FreeChapterThreshold:           DefaultFreeChapterThreshold,
		DailyAdUnlockLimit:             DefaultDailyAdUnlockLimit,
		DefaultCoinCost:                DefaultCoinCost,
		ECPM:                           DefaultECPM,
		CoinsPerRupee:                  DefaultCoinsPerRupee,
		NonSubscriberFeePercentage:     DefaultNonSubscriberFeePercentage,
		DefaultSubscriberFeePercentage: DefaultSubscriberFeePercentage,
		FreeViewsRequirement:           DefaultFreeViewsRequirement,
		SampleEarningViewThreshold:     DefaultSampleEarningViewThreshold,
		CoinEarningRule:                DefaultCoinEarningRule,
		Location:                       time.UTC,
	}
}

// NewPolicy overlays configured values on the defaults. Zero values keep the
// default.
func NewPolicy(cfg *config.Config) (Policy, error) {
	p := DefaultPolicy()
	m := cfg.Monetization

	if m.FreeChapterThreshold > 0 {
		p.FreeChapterThreshold = m.FreeChapterThreshold
	}
	if m.DailyAdUnlockLimit > 0 {
		p.DailyAdUnlockLimit = m.DailyAdUnlockLimit
	}
	if m.DefaultCoinCost > 0 {
		p.DefaultCoinCost = m.DefaultCoinCost
	}
	if m.ECPM > 0 {
		p.ECPM = m.ECPM
	}
	if m.CoinsPerRupee > 0 {
		p.CoinsPerRupee = m.CoinsPerRupee
	}
	if m.NonSubscriberFeePercentage > 0 {
		p.NonSubscriberFeePercentage = m.NonSubscriberFeePercentage
	}
	if m.DefaultSubscriberFeePercentage > 0 {
		p.DefaultSubscriberFeePercentage = m.DefaultSubscriberFeePercentage
	}
	if m.FreeViewsRequirement > 0 {
		p.FreeViewsRequirement = m.FreeViewsRequirement
	}
	if m.SampleEarningViewThreshold > 0 {
		p.SampleEarningViewThreshold = m.SampleEarningViewThreshold
	}
	if m.CoinEarningRule != "" {
		p.CoinEarningRule = m.CoinEarningRule
	}
	if m.Timezone != "" {
		loc, err := time.LoadLocation(m.Timezone)
		if err != nil {
			return Policy{}, fmt.Errorf("monetization timezone %q: %w", m.Timezone, err)
		}
		p.Location = loc
	}

	zap.L().Info("monetization policy loaded",
		zap.Int("free_chapter_threshold", p.FreeChapterThreshold),
		zap.Int("daily_ad_unlock_limit", p.DailyAdUnlockLimit),
		zap.Int64("default_coin_cost", p.DefaultCoinCost),
		zap.Float64("ecpm", p.ECPM),
		zap.String("timezone", p.Location.String()),
	)
	return p, nil
}

// IsFreeSample reports whether chapterNumber falls inside the free sample.
func (p Policy) IsFreeSample(chapterNumber int) bool {
	return chapterNumber <= p.FreeChapterThreshold
}

// CoinCost resolves a chapter's price, falling back to the default.
func (p Policy) CoinCost(override *int64) int64 {
	if override != nil && *override > 0 {
		return *override
	}
	return p.DefaultCoinCost
}

// DayWindow returns [midnight today, midnight tomorrow) around now in the
// policy timezone.
func (p Policy) DayWindow(now time.Time) (time.Time, time.Time) {
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
