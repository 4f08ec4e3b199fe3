package earning

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"serialfic-monetization/pkg/featureflags"
	"serialfic-monetization/pkg/taskname"
)

type recorderMock struct {
	mu     sync.Mutex
	coins  []CoinEarning
	ads    []AdEarning
	coinFn func(ctx context.Context, e CoinEarning) error
}

func (m *recorderMock) RecordCoinEarning(ctx context.Context, e CoinEarning) error {
	m.mu.Lock()
	m.coins = append(m.coins, e)
	m.mu.Unlock()
	if m.coinFn != nil {
		return m.coinFn(ctx, e)
	}
	return nil
}

func (m *recorderMock) RecordAdEarning(_ context.Context, e AdEarning) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ads = append(m.ads, e)
	return nil
}

type enqueuerMock struct {
	enqueueFn func(ctx context.Context, t *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	tasks     []*asynq.Task
}

func (m *enqueuerMock) Enqueue(ctx context.Context, t *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	m.tasks = append(m.tasks, t)
	if m.enqueueFn != nil {
		return m.enqueueFn(ctx, t, opts...)
	}
	return &asynq.TaskInfo{ID: "task-1"}, nil
}

type flagMock struct {
	enabled bool
}

func (f flagMock) Enabled(context.Context, string, string, bool) bool { return f.enabled }

func TestDispatchSync(t *testing.T) {
	rec := &recorderMock{coinFn: func(context.Context, CoinEarning) error { return errors.New("boom") }}
	d := NewDispatcherWithMode(DispatchSync, rec, nil, nil)

	// failures are swallowed
	d.DispatchCoinEarning(context.Background(), CoinEarning{WriterID: "w1"})
	d.DispatchAdEarning(context.Background(), AdEarning{WriterID: "w1", AdType: AdTypeInterstitial})

	require.Len(t, rec.coins, 1)
	require.Len(t, rec.ads, 1)
}

func TestDispatchInline(t *testing.T) {
	rec := &recorderMock{}
	d := NewDispatcherWithMode(DispatchInline, rec, &enqueuerMock{}, featureflags.Static{})

	ctx, cancel := context.WithCancel(context.Background())
	d.DispatchCoinEarning(ctx, CoinEarning{WriterID: "w1", CoinPriceRupees: decimal.NewFromInt(2)})
	// the request ending must not abort the recording
	cancel()

	waitCtx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()
	require.NoError(t, d.Wait(waitCtx))
	require.Len(t, rec.coins, 1)
}

func TestDispatchQueue(t *testing.T) {
	rec := &recorderMock{}
	enq := &enqueuerMock{}
	d := NewDispatcherWithMode(DispatchQueue, rec, enq, featureflags.Static{})

	d.DispatchCoinEarning(context.Background(), CoinEarning{NovelID: "n1", WriterID: "w1", ChapterID: "c1", CoinPriceRupees: decimal.NewFromInt(2)})
	require.NoError(t, d.Wait(context.Background()))

	require.Empty(t, rec.coins)
	require.Len(t, enq.tasks, 1)
	require.Equal(t, taskname.EarningRecord, enq.tasks[0].Type())
}

func TestDispatchQueueFallsBackInline(t *testing.T) {
	rec := &recorderMock{}
	enq := &enqueuerMock{enqueueFn: func(context.Context, *asynq.Task, ...asynq.Option) (*asynq.TaskInfo, error) {
		return nil, errors.New("redis down")
	}}
	d := NewDispatcherWithMode(DispatchQueue, rec, enq, featureflags.Static{})

	d.DispatchAdEarning(context.Background(), AdEarning{WriterID: "w1"})
	require.NoError(t, d.Wait(context.Background()))

	require.Len(t, enq.tasks, 1)
	require.Len(t, rec.ads, 1)
}

func TestDispatchFlagOverridesMode(t *testing.T) {
	rec := &recorderMock{}
	enq := &enqueuerMock{}

	d := NewDispatcherWithMode(DispatchInline, rec, enq, flagMock{enabled: true})
	d.DispatchAdEarning(context.Background(), AdEarning{WriterID: "w1"})
	require.NoError(t, d.Wait(context.Background()))
	require.Len(t, enq.tasks, 1)
	require.Empty(t, rec.ads)

	d = NewDispatcherWithMode(DispatchQueue, rec, enq, flagMock{enabled: false})
	d.DispatchAdEarning(context.Background(), AdEarning{WriterID: "w1"})
	require.NoError(t, d.Wait(context.Background()))
	require.Len(t, enq.tasks, 1)
	require.Len(t, rec.ads, 1)
}

func TestHandleRecordEarningTask(t *testing.T) {
	rec := &recorderMock{}
	h := NewTaskHandler(rec)

	task, err := NewRecordEarningTask(RecordEarningPayload{
		Type: EarningCoin,
		Coin: &CoinEarning{NovelID: "n1", WriterID: "w1", ChapterID: "c1", CoinPriceRupees: decimal.RequireFromString("2.5")},
	})
	require.NoError(t, err)
	require.NoError(t, h.HandleRecordEarningTask(context.Background(), task))
	require.Len(t, rec.coins, 1)
	require.Equal(t, "2.5", rec.coins[0].CoinPriceRupees.String())

	err = h.HandleRecordEarningTask(context.Background(), asynq.NewTask(taskname.EarningRecord, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
