package earning

import (
	"context"
	"sync"
	"time"

	"serialfic-monetization/pkg/config"
	"serialfic-monetization/pkg/featureflags"
	"serialfic-monetization/pkg/logger"
	"serialfic-monetization/pkg/task"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	DispatchQueue  = "queue"
	DispatchInline = "inline"
	// DispatchSync records in the caller's goroutine. Used by tests and the
	// seed command.
	DispatchSync = "sync"
)

const inlineTimeout = 10 * time.Second

// Dispatcher hands earning events off without blocking or failing the
// unlock that produced them.
type Dispatcher interface {
	DispatchCoinEarning(ctx context.Context, e CoinEarning)
	DispatchAdEarning(ctx context.Context, e AdEarning)
}

type EarningDispatcher struct {
	recorder Recorder
	enqueuer task.Enqueuer
	flags    featureflags.FeatureFlag
	mode     string
	timeout  time.Duration
	wg       sync.WaitGroup
}

type DispatcherParams struct {
	fx.In
	Lifecycle fx.Lifecycle `optional:"true"`
	Config    *config.Config
	Recorder  Recorder
	Enqueuer  task.Enqueuer            `optional:"true"`
	Flags     featureflags.FeatureFlag `optional:"true"`
}

func NewDispatcher(p DispatcherParams) *EarningDispatcher {
	d := NewDispatcherWithMode(p.Config.Monetization.EarningsDispatch, p.Recorder, p.Enqueuer, p.Flags)
	if p.Lifecycle != nil {
		p.Lifecycle.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return d.Wait(ctx)
			},
		})
	}
	return d
}

func NewDispatcherWithMode(mode string, recorder Recorder, enqueuer task.Enqueuer, flags featureflags.FeatureFlag) *EarningDispatcher {
	if flags == nil {
		flags = featureflags.Static{}
	}
	switch mode {
	case DispatchQueue, DispatchInline, DispatchSync:
	default:
		mode = DispatchInline
	}
	return &EarningDispatcher{
		recorder: recorder,
		enqueuer: enqueuer,
		flags:    flags,
		mode:     mode,
		timeout:  inlineTimeout,
	}
}

func (d *EarningDispatcher) DispatchCoinEarning(ctx context.Context, e CoinEarning) {
	d.dispatch(ctx, RecordEarningPayload{Type: EarningCoin, Coin: &e}, e.WriterID)
}

func (d *EarningDispatcher) DispatchAdEarning(ctx context.Context, e AdEarning) {
	d.dispatch(ctx, RecordEarningPayload{Type: earningTypeForAd(e.AdType), Ad: &e}, e.WriterID)
}

func (d *EarningDispatcher) dispatch(ctx context.Context, p RecordEarningPayload, writerID string) {
	log := logger.FromContext(ctx).With(zap.String("earning_type", string(p.Type)), zap.String("writer_id", writerID))

	if d.mode == DispatchSync {
		if err := record(ctx, d.recorder, p); err != nil {
			log.Error("earning attribution failed", zap.Error(err))
		}
		return
	}

	if d.enqueuer != nil && d.flags.Enabled(ctx, writerID, featureflags.EarningsQueue, d.mode == DispatchQueue) {
		err := d.enqueue(ctx, p)
		if err == nil {
			return
		}
		log.Warn("enqueue earning failed, recording inline", zap.Error(err))
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		if err := record(ctx, d.recorder, p); err != nil {
			log.Error("earning attribution failed", zap.Error(err))
		}
	}()
}

func (d *EarningDispatcher) enqueue(ctx context.Context, p RecordEarningPayload) error {
	t, err := NewRecordEarningTask(p)
	if err != nil {
		return err
	}

	info, err := d.enqueuer.Enqueue(ctx, t,
		asynq.Queue(task.QueueEarnings),
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		return err
	}

	logger.FromContext(ctx).Debug("earning enqueued", zap.String("task_id", info.ID))
	return nil
}

// Wait blocks until in-flight inline recordings finish or ctx ends.
func (d *EarningDispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
