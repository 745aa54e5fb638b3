// Package bot — consumer.go реализует цикл потребления событий.
// Консьюмер тянет комментарии из потока по одному и отдаёт диспетчеру.
// Результат каждого шага — явный вариант: продолжить, пересоздать поток
// или остановиться; никакого управления потоком через panic/исключения.
//
// Все временные ошибки платформы гасятся ограниченным бэкоффом:
// задержка = база × число подряд идущих неудач, счётчик сбрасывается
// в 1 после первого успеха.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/marketmm2/rep-bot/internal/common"
	"github.com/marketmm2/rep-bot/internal/reddit"
)

// StepResult — исход одного шага консьюмера.
type StepResult int

const (
	// StepContinue — продолжать с тем же потоком
	StepContinue StepResult = iota
	// StepReinitialize — поток исчерпан/сломан, пересоздать его
	StepReinitialize
	// StepFatal — остановить цикл (отмена контекста)
	StepFatal
)

// Stream — источник комментариев (реализуется reddit.CommentStream).
type Stream interface {
	Next(ctx context.Context) (*reddit.Comment, error)
}

// Processor — обработчик одного комментария (реализуется *Bot).
type Processor interface {
	Process(ctx context.Context, c *reddit.Comment) error
}

// Alerter — канал сообщений оператору.
type Alerter interface {
	Alert(ctx context.Context, msg string)
}

// Consumer — последовательный цикл обработки событий.
type Consumer struct {
	newStream func() Stream
	proc      Processor
	operator  Alerter

	backoffBase time.Duration
	// число подряд идущих неудач; 1 — «всё хорошо»
	failures int
}

// NewConsumer создаёт консьюмер. newStream вызывается при старте
// и при каждом пересоздании потока.
func NewConsumer(newStream func() Stream, proc Processor, operator Alerter, backoffBase time.Duration) *Consumer {
	return &Consumer{
		newStream:   newStream,
		proc:        proc,
		operator:    operator,
		backoffBase: backoffBase,
		failures:    1,
	}
}

// Run крутит цикл до отмены контекста. Начатая обработка события
// всегда довершается: флаг остановки проверяется между итерациями,
// транзакция не прерывается на середине коммита.
func (c *Consumer) Run(ctx context.Context) {
	stream := c.newStream()
	log.Info("Консьюмер событий запущен")

	for ctx.Err() == nil {
		switch c.step(ctx, stream) {
		case StepContinue:
		case StepReinitialize:
			log.Warn("Пересоздаём поток комментариев")
			stream = c.newStream()
		case StepFatal:
			log.Info("Консьюмер событий остановлен")
			return
		}
	}
	log.Info("Консьюмер событий остановлен")
}

// step выполняет один шаг: взять событие, обработать, классифицировать исход.
func (c *Consumer) step(ctx context.Context, stream Stream) StepResult {
	comment, err := stream.Next(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return StepFatal
		}
		if errors.Is(err, common.ErrStreamEnd) {
			return StepReinitialize
		}
		c.operator.Alert(ctx, fmt.Sprintf("ошибка потока комментариев: %v", err))
		if reddit.IsTransient(err) {
			c.backoff(ctx)
		}
		return StepContinue
	}

	if err := c.proc.Process(ctx, comment); err != nil {
		c.operator.Alert(ctx, fmt.Sprintf("ошибка обработки %s: %v", comment.ID, err))
		if reddit.IsTransient(err) {
			c.backoff(ctx)
		}
		return StepContinue
	}

	// успех: счётчик неудач обнуляется
	c.failures = 1
	return StepContinue
}

// backoff ждёт base × failures и наращивает счётчик.
func (c *Consumer) backoff(ctx context.Context) {
	delay := c.backoffBase * time.Duration(c.failures)
	log.WithField("delay", delay.String()).Warn("Пауза после ошибки платформы")
	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
	c.failures++
}
