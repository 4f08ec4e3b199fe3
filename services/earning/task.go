package earning

import (
	"context"
	"encoding/json"
	"fmt"

	"serialfic-monetization/pkg/errutil"
	"serialfic-monetization/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type RecordEarningPayload struct {
	Type EarningType  `json:"type"`
	Coin *CoinEarning `json:"coin,omitempty"`
	Ad   *AdEarning   `json:"ad,omitempty"`
}

func NewRecordEarningTask(p RecordEarningPayload) (*asynq.Task, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal earning payload: %w", err)
	}
	return asynq.NewTask(taskname.EarningRecord, b), nil
}

func record(ctx context.Context, r Recorder, p RecordEarningPayload) error {
	switch {
	case p.Type == EarningCoin && p.Coin != nil:
		return r.RecordCoinEarning(ctx, *p.Coin)
	case (p.Type == EarningAd || p.Type == EarningInterstitial) && p.Ad != nil:
		return r.RecordAdEarning(ctx, *p.Ad)
	default:
		return fmt.Errorf("malformed earning payload of type %q", p.Type)
	}
}

type TaskHandler struct {
	recorder Recorder
}

func NewTaskHandler(recorder Recorder) *TaskHandler {
	return &TaskHandler{recorder: recorder}
}

func (h *TaskHandler) HandleRecordEarningTask(ctx context.Context, t *asynq.Task) error {
	var p RecordEarningPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}

	zapLog := zap.L().With(zap.String("task_type", t.Type()), zap.String("earning_type", string(p.Type)))

	if err := record(ctx, h.recorder, p); err != nil {
		// a missing novel or chapter will not appear on retry
		if errutil.Is(err, errutil.StatusNotFound) {
			zapLog.Warn("dropping earning for unknown catalog entry", zap.Error(err))
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		zapLog.Error("failed to record earning", zap.Error(err))
		return err
	}
	return nil
}

func (h *TaskHandler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(taskname.EarningRecord, h.HandleRecordEarningTask)
}
