// Package rep реализует систему торговой репутации.
// models.go описывает транзакцию, команды и статусы пайплайна допуска.
package rep

import "github.com/marketmm2/rep-bot/internal/reddit"

// Категории постов, на которых можно торговать репутацией,
// и категория, которую получает закрытый пост.
const (
	CategoryTradeOffer    = "Trade Offer"
	CategoryGiveawayEntry = "Giveaway Entry"
	CategoryTradeEnded    = "Trade Ended"
)

// IsTradableCategory сообщает, допускает ли категория поста реп-команды.
func IsTradableCategory(category string) bool {
	return category == CategoryTradeOffer || category == CategoryGiveawayEntry
}

// Transaction — неизменяемая запись о выдаче репутации.
// Ровно одна запись на comment_id; Delta всегда +1 или −1.
type Transaction struct {
	CommentID            string `db:"comment_id"`
	CommentCreatedUTC    int64  `db:"comment_created_utc"`
	Awarder              string `db:"awarder"`
	AwarderRep           int    `db:"awarder_rep"`
	Awardee              string `db:"awardee"`
	AwardeeRep           int    `db:"awardee_rep"`
	Delta                int    `db:"delta_awardee_rep"`
	SubmissionID         string `db:"submission_id"`
	SubmissionCreatedUTC int64  `db:"submission_created_utc"`
	Permalink            string `db:"permalink"`
}

// Command — вариант команды, распознанный в тексте комментария.
type Command int

const (
	// CommandNoOp — текст не распознан, событие молча пропускается
	CommandNoOp Command = iota
	// CommandIncrement — выдать +1 репутации автору родителя
	CommandIncrement
	// CommandDecrement — снять 1 репутации (только модераторы)
	CommandDecrement
	// CommandClose — закрыть пост
	CommandClose
	// CommandModRequest — позвать модераторов
	CommandModRequest
	// CommandLogQuery — запросить статистику репутации пользователя
	CommandLogQuery
)

func (c Command) String() string {
	switch c {
	case CommandIncrement:
		return "increment"
	case CommandDecrement:
		return "decrement"
	case CommandClose:
		return "close"
	case CommandModRequest:
		return "mod_request"
	case CommandLogQuery:
		return "log_query"
	default:
		return "noop"
	}
}

// Status — терминальный результат пайплайна допуска.
type Status int

const (
	StatusChecksPassed Status = iota
	StatusIncorrectSubmissionType
	StatusCannotRewardYourself
	StatusDeletedOrRemoved
	StatusRepAwardingLimitReached
	StatusCoolDownTimer
	StatusGiveawayLimit
)

func (s Status) String() string {
	switch s {
	case StatusChecksPassed:
		return "CHECKS_PASSED"
	case StatusIncorrectSubmissionType:
		return "INCORRECT_SUBMISSION_TYPE"
	case StatusCannotRewardYourself:
		return "CANNOT_REWARD_YOURSELF"
	case StatusDeletedOrRemoved:
		return "DELETED_OR_REMOVED"
	case StatusRepAwardingLimitReached:
		return "REP_AWARDING_LIMIT_REACHED"
	case StatusCoolDownTimer:
		return "COOL_DOWN_TIMER"
	case StatusGiveawayLimit:
		return "GIVEAWAY_LIMIT"
	default:
		return "UNKNOWN"
	}
}

// Event — собранный контекст одного комментария-команды:
// сам комментарий, автор его родителя и пост, под которым всё происходит.
type Event struct {
	Comment reddit.Comment
	// ParentAuthor пустой, если автор родителя удалён
	ParentAuthor  string
	ParentRemoved bool
	Submission    reddit.Submission
}
