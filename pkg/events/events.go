package events

import (
	"context"
	"encoding/json"
	"time"

	"serialfic-monetization/pkg/config"

	"github.com/segmentio/kafka-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("events", fx.Provide(NewPublisher))

const TypeChapterUnlocked = "chapter.unlocked"

type ChapterUnlocked struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	NovelID    string    `json:"novel_id"`
	ChapterID  string    `json:"chapter_id"`
	Method     string    `json:"method"`
	CoinsSpent int64     `json:"coins_spent"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Publisher interface {
	PublishChapterUnlocked(ctx context.Context, ev ChapterUnlocked) error
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewPublisher(lc fx.Lifecycle, cfg *config.Config) Publisher {
	if len(cfg.Kafka.Brokers) == 0 {
		return Noop{}
	}

	p := &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Kafka.Brokers...),
			Topic:                  cfg.Kafka.Topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			Async:                  true,
			AllowAutoTopicCreation: true,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					zap.L().Error("[Kafka] failed to deliver events", zap.Int("count", len(messages)), zap.Error(err))
				}
			},
		},
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return p.writer.Close()
		},
	})

	zap.L().Info("[Kafka] publisher ready", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	return p
}

// PublishChapterUnlocked keys by user so a reader's unlocks stay ordered.
func (k *KafkaPublisher) PublishChapterUnlocked(ctx context.Context, ev ChapterUnlocked) error {
	ev.Type = TypeChapterUnlocked
	v, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.UserID),
		Value: v,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(ev.Type)},
		},
	})
}

type Noop struct{}

func (Noop) PublishChapterUnlocked(context.Context, ChapterUnlocked) error { return nil }
