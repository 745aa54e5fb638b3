// Package rep — handlers.go обрабатывает команды помимо выдачи репутации:
// закрытие поста, вызов модераторов, запрос статистики. Здесь же живёт
// Responder — единая точка ответов по шаблонам из wiki-конфига.
package rep

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/marketmm2/rep-bot/internal/botcfg"
)

// подпись под каждым ответом бота
const replyFooter = "\n\n^(This action was performed by a bot, please contact the mods for any questions.)"

// TemplateSource — источник шаблонов ответов (реализуется botcfg.Store).
type TemplateSource interface {
	Template(ctx context.Context, name string) (string, error)
}

// ReplyAPI — отправка ответа на комментарий (реализуется reddit.Client).
type ReplyAPI interface {
	Reply(ctx context.Context, parentFullname, text string) error
}

// Responder отвечает на комментарий-команду шаблоном из горячего конфига.
type Responder struct {
	templates TemplateSource
	api       ReplyAPI
}

// NewResponder создаёт Responder.
func NewResponder(templates TemplateSource, api ReplyAPI) *Responder {
	return &Responder{templates: templates, api: api}
}

// Respond подставляет стандартные токены ({{author}}, {{parent-author}})
// плюс extra и отвечает на комментарий события.
func (r *Responder) Respond(ctx context.Context, evt *Event, name string, extra map[string]string) error {
	tmpl, err := r.templates.Template(ctx, name)
	if err != nil {
		return fmt.Errorf("ответ %q: %w", name, err)
	}

	tokens := map[string]string{
		"author":        evt.Comment.Author,
		"parent-author": evt.ParentAuthor,
	}
	for k, v := range extra {
		tokens[k] = v
	}

	body := botcfg.Render(tmpl, tokens) + replyFooter
	return r.api.Reply(ctx, evt.Comment.Fullname(), body)
}

// ClosingAPI — операции платформы для закрытия поста.
type ClosingAPI interface {
	SetSubmissionFlair(ctx context.Context, submissionID, templateID string) error
	LockSubmission(ctx context.Context, submissionID string) error
}

// ReceivedCounter — запрос полученной репутации для команды !REPS.
type ReceivedCounter interface {
	CountReceivedSince(ctx context.Context, awardee string, since int64) (int, error)
}

// Handler обрабатывает команды Close, ModRequest и LogQuery.
type Handler struct {
	api    ClosingAPI
	resp   *Responder
	ledger ReceivedCounter
	// имя аккаунта бота: исключается из списка при вызове модераторов
	botUser string
	// ID флаира «Trade Ended»
	tradeEndedFlairID string
	now               func() time.Time
}

// NewHandler создаёт обработчик команд.
func NewHandler(api ClosingAPI, resp *Responder, ledger ReceivedCounter, botUser, tradeEndedFlairID string) *Handler {
	return &Handler{
		api:               api,
		resp:              resp,
		ledger:            ledger,
		botUser:           botUser,
		tradeEndedFlairID: tradeEndedFlairID,
		now:               time.Now,
	}
}

// HandleClose обрабатывает команду закрытия поста.
// Закрыть может автор поста или модератор; закрывается только торговый
// пост. Повторное закрытие — no-op с доброжелательным ответом.
func (h *Handler) HandleClose(ctx context.Context, evt *Event, requesterIsMod bool) error {
	authorized := evt.Comment.Author != "" &&
		(evt.Comment.Author == evt.Submission.Author || requesterIsMod)
	if !authorized {
		return h.resp.Respond(ctx, evt, "submission_closed_failed_not_op_or_mod", nil)
	}

	// Закрытие меняет категорию на «Trade Ended», поэтому проверка
	// «уже закрыт» идёт раньше проверки категории: иначе повторное
	// закрытие всегда выглядело бы как неторговый пост.
	if evt.Submission.Locked || evt.Submission.CategoryFlair == CategoryTradeEnded {
		return h.resp.Respond(ctx, evt, "submission_already_closed", nil)
	}

	if !IsTradableCategory(evt.Submission.CategoryFlair) {
		return h.resp.Respond(ctx, evt, "submission_closed_not_trading_post", nil)
	}

	if err := h.api.SetSubmissionFlair(ctx, evt.Submission.ID, h.tradeEndedFlairID); err != nil {
		return fmt.Errorf("закрытие поста %s: %w", evt.Submission.ID, err)
	}
	if err := h.api.LockSubmission(ctx, evt.Submission.ID); err != nil {
		return fmt.Errorf("блокировка поста %s: %w", evt.Submission.ID, err)
	}

	log.WithFields(log.Fields{
		"submission": evt.Submission.ID,
		"by":         evt.Comment.Author,
	}).Info("Пост закрыт")
	return h.resp.Respond(ctx, evt, "submission_closed_successfully", nil)
}

// HandleModRequest обрабатывает вызов модераторов.
// Работает только на торговых постах, иначе молча игнорируется.
// roster — актуальный список модераторов на момент события.
func (h *Handler) HandleModRequest(ctx context.Context, evt *Event, roster []string) error {
	if !IsTradableCategory(evt.Submission.CategoryFlair) {
		return nil
	}

	names := make([]string, 0, len(roster))
	for _, m := range roster {
		if strings.EqualFold(m, h.botUser) {
			continue
		}
		names = append(names, "u/"+m)
	}

	return h.resp.Respond(ctx, evt, "mods_requested", map[string]string{
		"mods": strings.Join(names, ", "),
	})
}

// HandleLogQuery отвечает на !REPS: сколько репутации получил subject
// за последние args.Days дней.
func (h *Handler) HandleLogQuery(ctx context.Context, evt *Event, args *LogQueryArgs) error {
	since := h.now().Add(-time.Duration(args.Days) * 24 * time.Hour).Unix()
	count, err := h.ledger.CountReceivedSince(ctx, args.Subject, since)
	if err != nil {
		return fmt.Errorf("статистика %s: %w", args.Subject, err)
	}

	return h.resp.Respond(ctx, evt, "rep_log_query", map[string]string{
		"subject": args.Subject,
		"count":   strconv.Itoa(count),
		"days":    strconv.Itoa(args.Days),
	})
}
