// Package rep — rules.go реализует пайплайн допуска выдачи репутации.
// Проверки идут строго по порядку и обрываются на первой неуспешной;
// каждая неуспешная даёт свой терминальный статус. Лимиты читаются
// из горячего конфига при каждом вызове — правка wiki действует сразу.
package rep

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/marketmm2/rep-bot/internal/botcfg"
	"github.com/marketmm2/rep-bot/internal/common"
)

// LedgerCounter — запросы к реестру, нужные пайплайну.
type LedgerCounter interface {
	CountSince(ctx context.Context, awarder string, since int64) (int, error)
	CountPair(ctx context.Context, awarder, awardee string, since int64) (int, error)
	CountByAwardeeOnSubmission(ctx context.Context, awardee, submissionID string) (int, error)
}

// LimitSource — источник горячих лимитов (реализуется botcfg.Store).
type LimitSource interface {
	Limits(ctx context.Context) (botcfg.Limits, error)
}

// Pipeline — упорядоченная цепочка проверок допуска.
type Pipeline struct {
	ledger LedgerCounter
	limits LimitSource
	loc    *time.Location
	now    func() time.Time
}

// NewPipeline создаёт пайплайн. loc задаёт, где начинается «сегодня»
// для суточного лимита.
func NewPipeline(ledger LedgerCounter, limits LimitSource, loc *time.Location) *Pipeline {
	return &Pipeline{ledger: ledger, limits: limits, loc: loc, now: time.Now}
}

// Evaluate прогоняет событие через проверки.
// Ненулевая ошибка означает отказ инфраструктуры (БД, конфиг) —
// статус в этом случае не имеет смысла и событие не считается допущенным.
func (p *Pipeline) Evaluate(ctx context.Context, evt *Event) (Status, error) {
	// 1. Категория поста
	if !IsTradableCategory(evt.Submission.CategoryFlair) {
		return StatusIncorrectSubmissionType, nil
	}

	// 2. Самонаграждение
	if evt.Comment.Author == evt.ParentAuthor {
		return StatusCannotRewardYourself, nil
	}

	// 3. Существование: комментарий, родитель и пост живы
	if evt.Comment.Author == "" || evt.Comment.Removed ||
		evt.ParentAuthor == "" || evt.ParentRemoved ||
		evt.Submission.Author == "" || evt.Submission.Removed {
		return StatusDeletedOrRemoved, nil
	}

	// Лимиты нужны только дальше; отсутствие записи в конфиге —
	// отказ пайплайна, а не молчаливый дефолт.
	limits, err := p.limits.Limits(ctx)
	if err != nil {
		return 0, fmt.Errorf("лимиты пайплайна: %w", err)
	}

	now := p.now()
	awarder, awardee := evt.Comment.Author, evt.ParentAuthor

	// 4. Суточный объём выдачи
	midnight := common.LocalMidnight(now, p.loc).Unix()
	given, err := p.ledger.CountSince(ctx, awarder, midnight)
	if err != nil {
		return 0, fmt.Errorf("подсчёт суточного объёма: %w", err)
	}
	if given >= limits.RepLimitPerDay {
		return StatusRepAwardingLimitReached, nil
	}

	// 5. Кулдаун пары
	cooldownStart := now.Add(-time.Duration(limits.RepCooldownMinutes) * time.Minute).Unix()
	pair, err := p.ledger.CountPair(ctx, awarder, awardee, cooldownStart)
	if err != nil {
		return 0, fmt.Errorf("проверка кулдауна: %w", err)
	}
	if pair > 0 {
		return StatusCoolDownTimer, nil
	}

	// 6. Giveaway-лимит на пост
	if evt.Submission.CategoryFlair == CategoryGiveawayEntry {
		received, err := p.ledger.CountByAwardeeOnSubmission(ctx, awardee, evt.Submission.ID)
		if err != nil {
			return 0, fmt.Errorf("проверка giveaway-лимита: %w", err)
		}
		if received >= limits.GiveawayRepLimitPerPost {
			return StatusGiveawayLimit, nil
		}
	}

	log.WithFields(log.Fields{
		"awarder": awarder,
		"awardee": awardee,
		"comment": evt.Comment.ID,
	}).Debug("Все проверки допуска пройдены")
	return StatusChecksPassed, nil
}
