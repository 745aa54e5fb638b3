// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, клиент платформы, репозитории,
// движок транзакций, обработчики и собирает консьюмер с планировщиком.
//
// Здесь же создаётся ЕДИНСТВЕННЫЙ мьютекс коммитов: он принадлежит app
// и передаётся по ссылке движку и задаче очистки — никаких глобальных
// синглтонов.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"github.com/marketmm2/rep-bot/internal/bot"
	"github.com/marketmm2/rep-bot/internal/bot/filters"
	"github.com/marketmm2/rep-bot/internal/botcfg"
	"github.com/marketmm2/rep-bot/internal/common"
	"github.com/marketmm2/rep-bot/internal/config"
	"github.com/marketmm2/rep-bot/internal/db/postgres"
	"github.com/marketmm2/rep-bot/internal/features/flair"
	"github.com/marketmm2/rep-bot/internal/features/rep"
	"github.com/marketmm2/rep-bot/internal/jobs"
	"github.com/marketmm2/rep-bot/internal/notify"
	"github.com/marketmm2/rep-bot/internal/reddit"
)

// App содержит все компоненты приложения.
type App struct {
	Consumer  *bot.Consumer
	Scheduler *jobs.Scheduler
	DB        *pgxpool.Pool
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Клиент платформы ===
	client := reddit.NewClient(reddit.Credentials{
		ClientID:     cfg.RedditClientID,
		ClientSecret: cfg.RedditClientSecret,
		Username:     cfg.RedditUsername,
		Password:     cfg.RedditPassword,
		UserAgent:    cfg.RedditUserAgent,
	}, cfg.Subreddit)
	log.Infof("Работаем от имени u/%s в r/%s", client.Me(), cfg.Subreddit)

	// === 3. Внешние коллабораторы ===
	notifier := notify.NewDiscord(cfg.DiscordErrorWebhook, cfg.DiscordUpdatesWebhook)
	cfgStore := botcfg.NewStore(client, cfg.WikiConfigPage)
	loc := common.LoadLocation(cfg.AppTimezone)

	// === 4. Хранилища ===
	ledger := rep.NewRepository(pool)
	counters := flair.NewStore(client, cfg.RepFlairTemplateID)

	// === 5. Движок транзакций ===
	// общая критическая секция реестра: движок + задача очистки
	commitMu := &sync.Mutex{}
	pipeline := rep.NewPipeline(ledger, cfgStore, loc)
	responder := rep.NewResponder(cfgStore, client)
	engine := rep.NewEngine(commitMu, ledger, pipeline, counters, responder, notifier)
	handler := rep.NewHandler(client, responder, ledger, client.Me(), cfg.TradeEndedFlairTemplateID)

	// === 6. Консьюмер ===
	filter := filters.NewCommentFilter(filters.AutoModerator, client.Me())
	dispatcher := bot.New(client, rep.NewClassifier(), engine, handler, filter)
	newStream := func() bot.Stream {
		return reddit.NewCommentStream(client, cfg.PollInterval)
	}
	consumer := bot.NewConsumer(newStream, dispatcher, notifier, cfg.BackoffBase)

	// === 7. Планировщик задач ===
	sweeper := jobs.NewSweeper(
		commitMu, ledger, client, notifier,
		"u_"+cfg.RedditUsername,
		time.Duration(cfg.RetentionDays)*24*time.Hour,
		time.Duration(cfg.ExportWindowHours)*time.Hour,
	)
	scheduler := jobs.NewScheduler(sweeper, notifier, loc)

	return &App{
		Consumer:  consumer,
		Scheduler: scheduler,
		DB:        pool,
	}, nil
}

// runMigrations выполняет все SQL-миграции.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if err := postgres.EnsureMigrationsTable(ctx, pool); err != nil {
		return err
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration001RepTransactions},
	}

	for _, m := range migrations {
		if err := postgres.ExecMigrationSQL(ctx, pool, m.version, m.sql); err != nil {
			return fmt.Errorf("миграция %d: %w", m.version, err)
		}
		log.Infof("Миграция %d применена", m.version)
	}
	return nil
}

// SQL-миграции встроены в код для упрощения деплоя.

var migration001RepTransactions = `
CREATE TABLE IF NOT EXISTS rep_transactions (
    comment_id TEXT NOT NULL,
    comment_created_utc BIGINT NOT NULL,
    awarder TEXT NOT NULL,
    awarder_rep INT NOT NULL,
    awardee TEXT NOT NULL,
    awardee_rep INT NOT NULL,
    delta_awardee_rep INT NOT NULL CHECK (delta_awardee_rep IN (-1, 1)),
    submission_id TEXT NOT NULL,
    submission_created_utc BIGINT NOT NULL,
    permalink TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS comment_id_index ON rep_transactions (comment_id);
CREATE INDEX IF NOT EXISTS idx_rep_awarder_time ON rep_transactions (awarder, comment_created_utc);
CREATE INDEX IF NOT EXISTS idx_rep_pair_time ON rep_transactions (awarder, awardee, comment_created_utc);
CREATE INDEX IF NOT EXISTS idx_rep_awardee_submission ON rep_transactions (awardee, submission_id);
`
