// Package bot содержит консьюмер событий и диспетчер команд.
// bot.go — диспетчер: фильтр → классификация → сборка контекста события →
// маршрутизация в движок транзакций или обработчик команд.
package bot

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/marketmm2/rep-bot/internal/bot/filters"
	"github.com/marketmm2/rep-bot/internal/bot/middleware"
	"github.com/marketmm2/rep-bot/internal/features/rep"
	"github.com/marketmm2/rep-bot/internal/reddit"
)

// Platform — операции чтения платформы, нужные диспетчеру
// (реализуется reddit.Client).
type Platform interface {
	Comment(ctx context.Context, id string) (*reddit.Comment, error)
	Submission(ctx context.Context, id string) (*reddit.Submission, error)
	Moderators(ctx context.Context) ([]string, error)
}

// Bot маршрутизирует комментарии-команды к обработчикам.
type Bot struct {
	platform   Platform
	classifier *rep.Classifier
	engine     *rep.Engine
	handler    *rep.Handler
	filter     *filters.CommentFilter
}

// New создаёт диспетчер.
func New(platform Platform, classifier *rep.Classifier, engine *rep.Engine, handler *rep.Handler, filter *filters.CommentFilter) *Bot {
	return &Bot{
		platform:   platform,
		classifier: classifier,
		engine:     engine,
		handler:    handler,
		filter:     filter,
	}
}

// Process обрабатывает один комментарий. Вызывается консьюмером
// строго последовательно, по одному событию за раз.
func (b *Bot) Process(ctx context.Context, c *reddit.Comment) error {
	defer middleware.RecoverFromPanic()

	if !b.filter.Allow(c) {
		return nil
	}
	middleware.LogComment(c)

	cmd, logArgs := b.classifier.Classify(c.Body)
	if cmd == rep.CommandNoOp {
		return nil
	}

	log.WithFields(log.Fields{
		"comment": c.ID,
		"author":  c.Author,
		"command": cmd.String(),
	}).Info("Распознана команда")

	evt, err := b.assemble(ctx, c)
	if err != nil {
		return fmt.Errorf("сборка события %s: %w", c.ID, err)
	}

	switch cmd {
	case rep.CommandIncrement:
		isMod, err := b.isModerator(ctx, c.Author)
		if err != nil {
			return err
		}
		return b.engine.HandleIncrement(ctx, evt, isMod)

	case rep.CommandDecrement:
		isMod, err := b.isModerator(ctx, c.Author)
		if err != nil {
			return err
		}
		return b.engine.HandleDecrement(ctx, evt, isMod)

	case rep.CommandClose:
		isMod, err := b.isModerator(ctx, c.Author)
		if err != nil {
			return err
		}
		return b.handler.HandleClose(ctx, evt, isMod)

	case rep.CommandModRequest:
		roster, err := b.platform.Moderators(ctx)
		if err != nil {
			return err
		}
		return b.handler.HandleModRequest(ctx, evt, roster)

	case rep.CommandLogQuery:
		return b.handler.HandleLogQuery(ctx, evt, logArgs)
	}
	return nil
}

// assemble собирает контекст события: пост и автора родителя.
// Родитель — либо другой комментарий (t1_*), либо сам пост (t3_*).
func (b *Bot) assemble(ctx context.Context, c *reddit.Comment) (*rep.Event, error) {
	sub, err := b.platform.Submission(ctx, c.SubmissionID)
	if err != nil {
		return nil, err
	}

	evt := &rep.Event{Comment: *c, Submission: *sub}

	if id, ok := strings.CutPrefix(c.ParentID, "t1_"); ok {
		parent, err := b.platform.Comment(ctx, id)
		if err != nil {
			return nil, err
		}
		evt.ParentAuthor = parent.Author
		evt.ParentRemoved = parent.Removed
	} else {
		evt.ParentAuthor = sub.Author
		evt.ParentRemoved = sub.Removed
	}
	return evt, nil
}

// isModerator проверяет пользователя по актуальному списку модераторов.
func (b *Bot) isModerator(ctx context.Context, user string) (bool, error) {
	if user == "" {
		return false, nil
	}
	roster, err := b.platform.Moderators(ctx)
	if err != nil {
		return false, fmt.Errorf("проверка модератора: %w", err)
	}
	for _, m := range roster {
		if strings.EqualFold(m, user) {
			return true, nil
		}
	}
	return false, nil
}
