// Package rep — service.go содержит движок транзакций.
// Движок связывает пайплайн, реестр и счётчики: допуск → снимки счётчиков →
// запись в реестр → изменение флаира → ответ пользователю.
//
// Вся секция коммита выполняется под общим мьютексом: он сериализует
// записи в реестр между консьюмером и задачей очистки, чтобы подсчёты
// лимитов и выгрузки не видели полузаписанное состояние.
package rep

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/marketmm2/rep-bot/internal/common"
)

// Ledger — полный набор операций реестра, нужный движку.
type Ledger interface {
	LedgerCounter
	Append(ctx context.Context, t *Transaction) error
}

// Counter — счётчик репутации (реализуется flair.Store).
// Движок сериализует вызовы Adjust общим мьютексом.
type Counter interface {
	GetOrInit(ctx context.Context, user string) (int, error)
	Adjust(ctx context.Context, user string, delta int) (int, error)
}

// Operator — канал для сообщений оператору о сбоях.
type Operator interface {
	Alert(ctx context.Context, msg string)
}

// Engine — движок транзакций репутации.
type Engine struct {
	// общий с задачей очистки мьютекс; движок его не создаёт, а получает
	mu       *sync.Mutex
	ledger   Ledger
	pipeline *Pipeline
	counters Counter
	resp     *Responder
	operator Operator
}

// NewEngine создаёт движок. mu — общая критическая секция реестра.
func NewEngine(mu *sync.Mutex, ledger Ledger, pipeline *Pipeline, counters Counter, resp *Responder, operator Operator) *Engine {
	return &Engine{
		mu:       mu,
		ledger:   ledger,
		pipeline: pipeline,
		counters: counters,
		resp:     resp,
		operator: operator,
	}
}

// HandleIncrement обрабатывает команду +REP.
// Обычный пользователь проходит пайплайн допуска; модератор минует
// проверки, но не защиту от дубликатов.
func (e *Engine) HandleIncrement(ctx context.Context, evt *Event, isModerator bool) error {
	if !isModerator {
		status, err := e.pipeline.Evaluate(ctx, evt)
		if err != nil {
			// отказ инфраструктуры — это НЕ «проверки пройдены»
			e.operator.Alert(ctx, fmt.Sprintf("пайплайн допуска упал на %s: %v", evt.Comment.ID, err))
			return err
		}
		if status != StatusChecksPassed {
			log.WithFields(log.Fields{
				"comment": evt.Comment.ID,
				"status":  status.String(),
			}).Info("Выдача репутации отклонена")
			return e.resp.Respond(ctx, evt, templateForStatus(status), nil)
		}
	}
	return e.commit(ctx, evt, +1)
}

// HandleDecrement обрабатывает команду -REP.
// Доступна только модераторам; от остальных молча игнорируется.
func (e *Engine) HandleDecrement(ctx context.Context, evt *Event, isModerator bool) error {
	if !isModerator {
		log.WithField("comment", evt.Comment.ID).Debug("-REP не от модератора, пропускаем")
		return nil
	}
	return e.commit(ctx, evt, -1)
}

// commit — критическая секция: снимки счётчиков, запись в реестр,
// изменение счётчика получателя, ответ.
//
// Реестр авторитетен: строка пишется раньше флаира. Если флаир не
// записался — строка остаётся, оператор получает сигнал, счётчик
// позже выравнивается по реестру.
func (e *Engine) commit(ctx context.Context, evt *Event, delta int) error {
	awarder, awardee := evt.Comment.Author, evt.ParentAuthor
	if awarder == "" || awardee == "" {
		log.WithField("comment", evt.Comment.ID).Debug("Нет автора или адресата, пропускаем")
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	awarderRep, err := e.counters.GetOrInit(ctx, awarder)
	if err != nil {
		e.operator.Alert(ctx, fmt.Sprintf("не прочитан счётчик %s: %v", awarder, err))
		return err
	}
	awardeeRep, err := e.counters.GetOrInit(ctx, awardee)
	if err != nil {
		e.operator.Alert(ctx, fmt.Sprintf("не прочитан счётчик %s: %v", awardee, err))
		return err
	}

	t := &Transaction{
		CommentID:            evt.Comment.ID,
		CommentCreatedUTC:    evt.Comment.CreatedUTC,
		Awarder:              awarder,
		AwarderRep:           awarderRep,
		Awardee:              awardee,
		AwardeeRep:           awardeeRep,
		Delta:                delta,
		SubmissionID:         evt.Submission.ID,
		SubmissionCreatedUTC: evt.Submission.CreatedUTC,
		Permalink:            evt.Comment.Permalink,
	}

	err = e.ledger.Append(ctx, t)
	if errors.Is(err, common.ErrDuplicateKey) {
		// событие уже обработано ранее — тихий успех, повторного ответа нет
		log.WithField("comment", evt.Comment.ID).Debug("Дубликат события, пропускаем")
		return nil
	}
	if err != nil {
		// недоступность хранилища в момент коммита — сигнал оператору,
		// обработка текущего события останавливается
		e.operator.Alert(ctx, fmt.Sprintf("реестр недоступен на %s: %v", evt.Comment.ID, err))
		return err
	}

	if _, err := e.counters.Adjust(ctx, awardee, delta); err != nil {
		// строка реестра уже есть; счётчик разъехался — чиним по реестру
		e.operator.Alert(ctx, fmt.Sprintf(
			"счётчик %s не обновлён после транзакции %s: %v", awardee, evt.Comment.ID, err))
	}

	log.WithFields(log.Fields{
		"awarder": awarder,
		"awardee": awardee,
		"delta":   delta,
		"comment": evt.Comment.ID,
	}).Info("Транзакция репутации записана")

	tmpl := "reward_rep_successful"
	if delta < 0 {
		tmpl = "subtract_rep_successful"
	}
	return e.resp.Respond(ctx, evt, tmpl, nil)
}

// templateForStatus сопоставляет статус отказа с именем шаблона ответа.
func templateForStatus(s Status) string {
	switch s {
	case StatusIncorrectSubmissionType:
		return "incorrect_submission_type"
	case StatusCannotRewardYourself:
		return "cannot_reward_yourself"
	case StatusDeletedOrRemoved:
		return "removed_or_deleted"
	case StatusRepAwardingLimitReached:
		return "reward_limit_reached"
	case StatusCoolDownTimer:
		return "cooldown_timer_reached"
	case StatusGiveawayLimit:
		return "giveaway_limit_reached"
	default:
		return "reward_rep_successful"
	}
}
