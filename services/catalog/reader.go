package catalog

import (
	"context"
	"time"

	"serialfic-monetization/pkg/db/option"
	"serialfic-monetization/pkg/errutil"
	"serialfic-monetization/pkg/repository"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

//go:generate mockgen -source=reader.go -destination=mock/reader.go -package=mock

// Reader exposes the novel and chapter facts owned by the catalog service.
type Reader interface {
	ChapterMetadata(ctx context.Context, chapterID string) (*ChapterMetadata, error)
	Novel(ctx context.Context, novelID string) (*Novel, error)
	PricingModel(ctx context.Context, novelID string) (PricingModel, error)
	// FreeChapterViews returns viewCount keyed by chapter number for
	// chapters 1..upTo that exist.
	FreeChapterViews(ctx context.Context, novelID string, upTo int) (map[int]int64, error)
	ChaptersByNovel(ctx context.Context, novelID string) ([]*Chapter, error)
	NovelsByAuthor(ctx context.Context, authorID string) ([]*Novel, error)
}

type Store struct {
	novels   repository.Repository[Novel]
	chapters repository.Repository[Chapter]
	cache    *NovelCache
}

type Params struct {
	fx.In
	DB *gorm.DB
}

func NewStore(p Params) *Store {
	return &Store{
		novels:   repository.ProvideStore[Novel](p.DB),
		chapters: repository.ProvideStore[Chapter](p.DB),
		cache:    NewNovelCache(30 * time.Second),
	}
}

func (s *Store) Novel(ctx context.Context, novelID string) (*Novel, error) {
	return s.cache.GetOrLoad(novelID, func() (*Novel, error) {
		n, err := s.novels.FindOne(ctx, &Novel{ID: novelID})
		if err != nil {
			return nil, errutil.Internal("failed to load novel", err)
		}
		if n == nil {
			return nil, errutil.NotFound("novel not found", nil)
		}
		return n, nil
	})
}

func (s *Store) PricingModel(ctx context.Context, novelID string) (PricingModel, error) {
	n, err := s.Novel(ctx, novelID)
	if err != nil {
		return "", err
	}
	return n.PricingModel, nil
}

func (s *Store) ChapterMetadata(ctx context.Context, chapterID string) (*ChapterMetadata, error) {
	ch, err := s.chapters.FindOne(ctx, &Chapter{ID: chapterID})
	if err != nil {
		return nil, errutil.Internal("failed to load chapter", err)
	}
	if ch == nil {
		return nil, errutil.NotFound("chapter not found", nil)
	}

	n, err := s.Novel(ctx, ch.NovelID)
	if err != nil {
		return nil, err
	}

	return &ChapterMetadata{
		ChapterID:     ch.ID,
		NovelID:       ch.NovelID,
		AuthorID:      n.AuthorID,
		ChapterNumber: ch.ChapterNumber,
		ViewCount:     ch.ViewCount,
		CoinCost:      ch.CoinCost,
		PricingModel:  n.PricingModel,
	}, nil
}

func (s *Store) FreeChapterViews(ctx context.Context, novelID string, upTo int) (map[int]int64, error) {
	rows, err := s.chapters.Find(ctx, &Chapter{NovelID: novelID}, option.ApplyOperator(
		option.Condition{Field: "chapter_number", Operator: option.GTE, Value: 1},
		option.Condition{Field: "chapter_number", Operator: option.LTE, Value: upTo},
	))
	if err != nil {
		return nil, errutil.Internal("failed to load free chapters", err)
	}

	views := make(map[int]int64, len(rows))
	for _, ch := range rows {
		views[ch.ChapterNumber] = ch.ViewCount
	}
	return views, nil
}

func (s *Store) ChaptersByNovel(ctx context.Context, novelID string) ([]*Chapter, error) {
	rows, err := s.chapters.Find(ctx, &Chapter{NovelID: novelID}, option.WithSortBy(option.QuerySortBy{
		SortBy:  "chapter_number",
		OrderBy: "asc",
		Allow:   map[string]bool{"chapter_number": true},
	}))
	if err != nil {
		return nil, errutil.Internal("failed to load chapters", err)
	}
	return rows, nil
}

func (s *Store) NovelsByAuthor(ctx context.Context, authorID string) ([]*Novel, error) {
	rows, err := s.novels.Find(ctx, &Novel{AuthorID: authorID}, option.WithSortBy(option.QuerySortBy{OrderBy: "asc"}))
	if err != nil {
		return nil, errutil.Internal("failed to load novels", err)
	}
	return rows, nil
}
