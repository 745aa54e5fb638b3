// Package jobs — scheduler.go настраивает расписание фоновых задач:
// очистка реестра раз в сутки в полночь по часовому поясу бота.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron    *cron.Cron
	sweeper *Sweeper
	alerter interface {
		Alert(ctx context.Context, msg string)
	}
}

// NewScheduler создаёт планировщик в часовом поясе loc.
func NewScheduler(sweeper *Sweeper, notifier Notifier, loc *time.Location) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		sweeper: sweeper,
		alerter: notifier,
	}
}

// Start запускает расписание. ctx пробрасывается в задачи:
// после отмены запущенная задача довершается, новые не стартуют.
func (s *Scheduler) Start(ctx context.Context) {
	// ежедневная очистка и выгрузка в 00:00
	s.cron.AddFunc("0 0 * * *", func() {
		if ctx.Err() != nil {
			return
		}
		log.Info("[CRON] Очистка реестра и суточная выгрузка")
		if err := s.sweeper.Run(ctx); err != nil {
			log.WithError(err).Error("[CRON] Ошибка очистки")
			s.alerter.Alert(ctx, fmt.Sprintf("задача очистки упала: %v", err))
		}
	})

	s.cron.Start()
	log.Info("Планировщик задач запущен")
}

// Stop останавливает планировщик, дождавшись активных задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}
