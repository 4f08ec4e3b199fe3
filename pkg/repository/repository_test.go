package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"serialfic-monetization/pkg/db/option"
	"serialfic-monetization/pkg/db/pagination"
	"serialfic-monetization/services/testutil"
)

type sample struct {
	ID        string `gorm:"column:id;primaryKey"`
	Owner     string `gorm:"column:owner"`
	Score     int64  `gorm:"column:score"`
	CreatedAt time.Time
}

func TestStoreCRUD(t *testing.T) {
	db := testutil.NewTestDB(t, &sample{})
	repo := ProvideStore[sample](db)
	ctx := context.Background()

	require.NoError(t, repo.BatchCreate(ctx, []*sample{
		{ID: "1", Owner: "a", Score: 5},
		{ID: "2", Owner: "a", Score: 15},
		{ID: "3", Owner: "b", Score: 25},
	}))

	got, err := repo.FindOne(ctx, &sample{ID: "404"})
	require.NoError(t, err)
	require.Nil(t, got)

	rows, err := repo.Find(ctx, &sample{Owner: "a"}, option.ApplyOperator(option.Condition{
		Field: "score", Operator: option.GT, Value: 10,
	}))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "2", rows[0].ID)

	updates := map[string]any{"score": 99}
	require.NoError(t, repo.Update(ctx, "1", &updates))

	one, err := repo.FindOne(ctx, &sample{ID: "1"})
	require.NoError(t, err)
	require.Equal(t, int64(99), one.Score)

	total, err := repo.Count(ctx, &sample{}, option.ApplyOperator(option.Condition{
		Field: "score", Operator: option.GTE, Value: 25,
	}))
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
}

func TestStorePagination(t *testing.T) {
	db := testutil.NewTestDB(t, &sample{})
	repo := ProvideStore[sample](db)
	ctx := context.Background()

	for _, id := range []string{"101", "102", "103", "104", "105"} {
		require.NoError(t, repo.Create(ctx, &sample{ID: id, Owner: "a"}))
	}

	rows, err := repo.Find(ctx, &sample{Owner: "a"}, option.ApplyPagination(pagination.Pagination{Limit: 2}))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	page, info := pagination.Trim(rows, 2, func(s *sample) string { return s.ID })
	require.Len(t, page, 2)
	require.True(t, info.HasMore)
	require.Equal(t, "105", page[0].ID)

	rows, err = repo.Find(ctx, &sample{Owner: "a"}, option.ApplyPagination(pagination.Pagination{Limit: 2, Cursor: info.NextCursor}))
	require.NoError(t, err)
	require.Equal(t, "103", rows[0].ID)
}
