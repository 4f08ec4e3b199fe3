package subscription

import (
	"context"

	"serialfic-monetization/pkg/errutil"
	"serialfic-monetization/pkg/repository"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

//go:generate mockgen -source=provider.go -destination=mock/provider.go -package=mock

// Provider answers the current subscription of a writer. Writers without a
// subscription get a zero Status.
type Provider interface {
	CurrentStatus(ctx context.Context, writerID string) (Status, error)
}

var Module = fx.Module("subscription.provider",
	fx.Provide(
		NewStore,
		func(s *Store) Provider { return s },
	),
)

type Store struct {
	repo repository.Repository[WriterSubscription]
}

func NewStore(db *gorm.DB) *Store {
	return &Store{repo: repository.ProvideStore[WriterSubscription](db)}
}

func (s *Store) CurrentStatus(ctx context.Context, writerID string) (Status, error) {
	sub, err := s.repo.FindOne(ctx, &WriterSubscription{WriterID: writerID})
	if err != nil {
		return Status{}, errutil.Internal("failed to load subscription", err)
	}
	if sub == nil {
		return Status{}, nil
	}

	return Status{
		Status:                sub.Status,
		ExpiresAt:             sub.ExpiresAt,
		PlatformFeePercentage: sub.PlatformFeePercentage,
	}, nil
}

func Models() []any {
	return []any{&WriterSubscription{}}
}
