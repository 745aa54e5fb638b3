// Package reddit — граница с платформой.
// types.go описывает снимки сущностей Reddit, с которыми работает бот.
// Всё остальное приложение видит только эти структуры: JSON платформы
// и механика HTTP не выходят за пределы пакета.
package reddit

// Comment — снимок комментария на момент чтения.
type Comment struct {
	ID              string
	Body            string
	// Author пустой, если аккаунт автора удалён
	Author          string
	AuthorFlairText string
	CreatedUTC      int64
	Permalink       string
	// ParentID — fullname родителя: "t1_..." (комментарий) или "t3_..." (пост)
	ParentID     string
	SubmissionID string
	// Removed — комментарий снят модерацией или удалён автором
	Removed bool
}

// Fullname возвращает полное имя комментария в формате Reddit API.
func (c *Comment) Fullname() string { return "t1_" + c.ID }

// Submission — снимок поста.
type Submission struct {
	ID     string
	Author string
	Title  string
	// CategoryFlair — флаир поста, он же категория ("Trade Offer", ...)
	CategoryFlair string
	CreatedUTC    int64
	Permalink     string
	Locked        bool
	Removed       bool
}

// Fullname возвращает полное имя поста в формате Reddit API.
func (s *Submission) Fullname() string { return "t3_" + s.ID }

// Эти маркеры платформа подставляет вместо автора/тела удалённого контента.
const (
	deletedAuthor = "[deleted]"
	removedBody   = "[removed]"
)
