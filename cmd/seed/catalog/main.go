package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"serialfic-monetization/pkg/config"
	"serialfic-monetization/pkg/db"
	"serialfic-monetization/pkg/gen"
	"serialfic-monetization/pkg/logger"
	"serialfic-monetization/pkg/repository"
	"serialfic-monetization/services/catalog"
	"serialfic-monetization/services/subscription"
	"serialfic-monetization/services/wallet"
)

const (
	demoWriterID = "writer-demo"
	demoReaderID = "reader-demo"
	demoChapters = 12
	demoCoins    = 40
)

var demoTitles = []string{"The Lantern Courier", "Salt and Static"}

// Seeds a paid and a free demo novel, a subscribed writer and a funded
// reader for local development.
func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		gen.Module,
		fx.Provide(func(conn *gorm.DB, node *snowflake.Node) *wallet.Service {
			return wallet.NewService(wallet.ServiceParams{DB: conn, Node: node})
		}),
		fx.Invoke(run),
		fx.WithLogger(func() fxevent.Logger { return fxevent.NopLogger }),
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)
	if err := app.Err(); err != nil {
		log.Fatalf("seed failed: %v", err)
	}
}

func run(cfg *config.Config, conn *gorm.DB, node *snowflake.Node, wallets *wallet.Service) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var models []any
	models = append(models, catalog.Models()...)
	models = append(models, subscription.Models()...)
	models = append(models, wallet.Models()...)
	if err := conn.AutoMigrate(models...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	for i, title := range demoTitles {
		pricing := catalog.PricingPaid
		if i > 0 {
			pricing = catalog.PricingFree
		}
		if err := seedNovel(ctx, conn, node, title, pricing); err != nil {
			return err
		}
	}

	sub := &subscription.WriterSubscription{
		ID:        node.Generate().String(),
		WriterID:  demoWriterID,
		PlanCode:  "writer-pro",
		Status:    subscription.StatusActive,
		ExpiresAt: time.Now().AddDate(1, 0, 0),
	}
	if err := conn.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(sub).Error; err != nil {
		return fmt.Errorf("seed subscription: %w", err)
	}

	balance, err := wallets.Balance(ctx, demoReaderID)
	if err != nil {
		return err
	}
	if balance < demoCoins {
		if _, err := wallets.Credit(ctx, wallet.CreditRequest{
			UserID: demoReaderID,
			Amount: demoCoins - balance,
			Reason: "seed",
		}); err != nil {
			return err
		}
	}

	zap.L().Info("seed completed",
		zap.String("env", cfg.AppEnv),
		zap.String("writer_id", demoWriterID),
		zap.String("reader_id", demoReaderID),
	)
	return nil
}

func seedNovel(ctx context.Context, conn *gorm.DB, node *snowflake.Node, title string, pricing catalog.PricingModel) error {
	s := slug.Make(title)

	var novel catalog.Novel
	err := conn.WithContext(ctx).Where("slug = ?", s).Take(&novel).Error
	switch {
	case err == nil:
		zap.L().Info("novel already seeded", zap.String("slug", s))
		return nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("lookup novel %s: %w", s, err)
	}

	return conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		novel = catalog.Novel{
			ID:           node.Generate().String(),
			AuthorID:     demoWriterID,
			Title:        title,
			Slug:         s,
			PricingModel: pricing,
		}
		if err := tx.Create(&novel).Error; err != nil {
			return fmt.Errorf("create novel %s: %w", s, err)
		}

		chapters := make([]*catalog.Chapter, 0, demoChapters)
		for n := 1; n <= demoChapters; n++ {
			chapters = append(chapters, &catalog.Chapter{
				ID:            node.Generate().String(),
				NovelID:       novel.ID,
				ChapterNumber: n,
				Title:         fmt.Sprintf("Chapter %d", n),
				ViewCount:     int64(300 - n*10),
			})
		}
		if err := repository.ProvideStore[catalog.Chapter](tx).BatchCreate(ctx, chapters); err != nil {
			return fmt.Errorf("create chapters for %s: %w", s, err)
		}

		zap.L().Info("novel seeded", zap.String("slug", s), zap.String("pricing", string(pricing)))
		return nil
	})
}
