// Package reddit — stream.go реализует поток новых комментариев.
// Лента опрашивается периодически; уже виденные ID отбрасываются,
// первый опрос только заполняет кэш (skip_existing — исторические
// комментарии не обрабатываем).
package reddit

import (
	"context"
	"sort"
	"time"

	"github.com/marketmm2/rep-bot/internal/common"
)

const (
	streamFetchLimit = 100
	// сколько ID держим в кэше дедупликации
	seenCacheSize = 1000
	// после скольких подряд неудачных опросов поток считается сломанным
	// и требует пересоздания
	maxPollFailures = 5
)

// Lister — источник свежих комментариев (реализуется *Client).
type Lister interface {
	NewComments(ctx context.Context, limit int) ([]Comment, error)
}

// CommentStream выдаёт новые комментарии сабреддита по одному.
type CommentStream struct {
	lister   Lister
	interval time.Duration

	queue    []Comment
	seen     map[string]struct{}
	seenList []string
	primed   bool
	failures int
}

// NewCommentStream создаёт поток с заданным интервалом опроса.
func NewCommentStream(lister Lister, interval time.Duration) *CommentStream {
	return &CommentStream{
		lister:   lister,
		interval: interval,
		seen:     make(map[string]struct{}, seenCacheSize),
	}
}

// Next блокируется до появления следующего нового комментария.
// Возвращает common.ErrStreamEnd, если поток сломался и его нужно
// пересоздать, либо ошибку платформы/контекста.
func (s *CommentStream) Next(ctx context.Context) (*Comment, error) {
	for {
		if len(s.queue) > 0 {
			c := s.queue[0]
			s.queue = s.queue[1:]
			return &c, nil
		}

		if err := s.poll(ctx); err != nil {
			s.failures++
			if s.failures >= maxPollFailures {
				return nil, common.ErrStreamEnd
			}
			return nil, err
		}
		s.failures = 0

		if len(s.queue) > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.interval):
		}
	}
}

// poll читает ленту и складывает невиденные комментарии в очередь
// в порядке возрастания времени создания.
func (s *CommentStream) poll(ctx context.Context) error {
	comments, err := s.lister.NewComments(ctx, streamFetchLimit)
	if err != nil {
		return err
	}

	// первый опрос — только запоминаем существующее
	if !s.primed {
		for i := range comments {
			s.remember(comments[i].ID)
		}
		s.primed = true
		return nil
	}

	fresh := make([]Comment, 0, len(comments))
	for i := range comments {
		if _, ok := s.seen[comments[i].ID]; ok {
			continue
		}
		s.remember(comments[i].ID)
		fresh = append(fresh, comments[i])
	}
	sort.Slice(fresh, func(i, j int) bool {
		return fresh[i].CreatedUTC < fresh[j].CreatedUTC
	})
	s.queue = append(s.queue, fresh...)
	return nil
}

func (s *CommentStream) remember(id string) {
	if _, ok := s.seen[id]; ok {
		return
	}
	s.seen[id] = struct{}{}
	s.seenList = append(s.seenList, id)
	if len(s.seenList) > seenCacheSize {
		delete(s.seen, s.seenList[0])
		s.seenList = s.seenList[1:]
	}
}
