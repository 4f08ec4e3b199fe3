package featureflags

import (
	"context"

	"serialfic-monetization/pkg/config"

	"github.com/Flagsmith/flagsmith-go-client/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("featureflags", fx.Provide(ProvideFeatureFlag))

const (
	// EarningsQueue routes earning attribution through asynq when on.
	EarningsQueue = "earnings_queue"
)

type FeatureFlag interface {
	// Enabled evaluates flag for identifier and returns fallback when the
	// flag service is not configured or unreachable.
	Enabled(ctx context.Context, identifier, flag string, fallback bool) bool
}

type featureflag struct {
	client *flagsmith.Client
}

type FeatureParams struct {
	fx.In
	Config *config.Config
}

func ProvideFeatureFlag(p FeatureParams) FeatureFlag {
	if p.Config.Flagsmith.ApiKey == "" {
		return Static{}
	}

	opts := []flagsmith.Option{
		flagsmith.WithAnalytics(),
	}
	if p.Config.Flagsmith.Addr != "" {
		opts = append(opts, flagsmith.WithBaseURL(p.Config.Flagsmith.Addr))
	}

	return &featureflag{
		client: flagsmith.NewClient(p.Config.Flagsmith.ApiKey, opts...),
	}
}

func (s *featureflag) Enabled(ctx context.Context, identifier, flag string, fallback bool) bool {
	var (
		flags flagsmith.Flags
		err   error
	)
	if identifier != "" {
		flags, err = s.client.GetIdentityFlags(identifier, nil)
	} else {
		flags, err = s.client.GetEnvironmentFlags()
	}
	if err != nil {
		zap.L().Warn("flagsmith lookup failed", zap.String("flag", flag), zap.Error(err))
		return fallback
	}

	enabled, err := flags.IsFeatureEnabled(flag)
	if err != nil {
		return fallback
	}
	return enabled
}

// Static answers every flag with its fallback.
type Static struct{}

func (Static) Enabled(_ context.Context, _, _ string, fallback bool) bool {
	return fallback
}
