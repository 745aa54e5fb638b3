// Package filters отсекает комментарии, которые бот не должен видеть:
// сообщения автомодератора, собственные ответы бота и пустые тела.
// Фильтр срабатывает ДО классификации — такие события не доходят
// даже до разбора текста.
package filters

import (
	"strings"

	"github.com/marketmm2/rep-bot/internal/reddit"
)

// AutoModerator — служебный аккаунт модерации платформы.
const AutoModerator = "AutoModerator"

// CommentFilter пропускает только комментарии, подлежащие обработке.
type CommentFilter struct {
	ignored map[string]struct{}
}

// NewCommentFilter создаёт фильтр. ignored — авторы, чьи комментарии
// всегда пропускаются (автомодератор, сам бот).
func NewCommentFilter(ignored ...string) *CommentFilter {
	m := make(map[string]struct{}, len(ignored))
	for _, name := range ignored {
		m[strings.ToLower(name)] = struct{}{}
	}
	return &CommentFilter{ignored: m}
}

// Allow возвращает true, если комментарий надо обрабатывать.
func (f *CommentFilter) Allow(c *reddit.Comment) bool {
	if c.Body == "" {
		return false
	}
	_, skip := f.ignored[strings.ToLower(c.Author)]
	return !skip
}
