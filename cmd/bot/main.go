// Package main — точка входа бота.
// Загружает конфигурацию, инициализирует приложение и запускает
// консьюмер событий с планировщиком. Поддерживает graceful shutdown
// по SIGINT/SIGTERM: начатая транзакция всегда довершается.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/marketmm2/rep-bot/internal/app"
	"github.com/marketmm2/rep-bot/internal/config"
)

func main() {
	setupLogging()

	log.Info("=== Реп-бот запускается ===")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Не удалось загрузить конфигурацию")
	}

	if level, err := log.ParseLevel(cfg.AppLogLevel); err == nil {
		log.SetLevel(level)
	}

	// Контекст с отменой для graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Не удалось инициализировать приложение")
	}
	defer application.DB.Close()

	// Планировщик задач (ежедневная очистка + выгрузка)
	application.Scheduler.Start(ctx)
	defer application.Scheduler.Stop()

	// Сигналы остановки (Ctrl+C, docker stop)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Консьюмер событий в отдельной горутине
	done := make(chan struct{})
	go func() {
		application.Consumer.Run(ctx)
		close(done)
	}()

	log.Info("=== Реп-бот готов к работе ===")

	sig := <-quit
	log.Infof("Получен сигнал %s, останавливаемся...", sig)

	cancel()
	// ждём, пока консьюмер довершит текущее событие
	<-done

	log.Info("=== Реп-бот остановлен ===")
}

// setupLogging настраивает формат логов.
func setupLogging() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.DebugLevel)
}
