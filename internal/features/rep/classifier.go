// Package rep — classifier.go распознаёт команды в тексте комментария.
// Приоритет — это явный порядок списка паттернов: проверяются сверху вниз,
// выигрывает первый совпавший. Регистр не важен.
package rep

import (
	"regexp"
	"strconv"
	"strings"
)

// LogQueryArgs — параметры команды запроса статистики.
type LogQueryArgs struct {
	Subject string
	Days    int
}

// паттерны команд; маркеры терпимы к повторам символов (+++REP, REP++)
var (
	incrementPattern  = regexp.MustCompile(`(?i)^(\++rep|rep\++)`)
	closePattern      = regexp.MustCompile(`(?i)^(!close|close!)`)
	decrementPattern  = regexp.MustCompile(`(?i)^(-+rep|rep-+)`)
	modRequestPattern = regexp.MustCompile(`(?i)^(!mods|mods!)`)
	// !REPS u/username 30 — статистика пользователя за N дней
	logQueryPattern = regexp.MustCompile(`(?i)^(?:!reps|reps!)\s+(?:u/)?([\w-]+)\s+(\d+)`)
)

type patternRule struct {
	re  *regexp.Regexp
	cmd Command
}

// Classifier сопоставляет текст комментария с вариантом команды.
type Classifier struct {
	rules []patternRule
}

// NewClassifier создаёт классификатор с фиксированным порядком паттернов.
func NewClassifier() *Classifier {
	return &Classifier{
		rules: []patternRule{
			{incrementPattern, CommandIncrement},
			{closePattern, CommandClose},
			{decrementPattern, CommandDecrement},
			{modRequestPattern, CommandModRequest},
			{logQueryPattern, CommandLogQuery},
		},
	}
}

// Deescape убирает экранирование из fancy-pants редактора:
// он превращает "+REP" в "\+REP", и без зачистки паттерны не совпадут.
func Deescape(body string) string {
	return strings.ReplaceAll(body, `\`, "")
}

// Classify возвращает команду для текста комментария.
// Для CommandLogQuery вторым значением идут разобранные параметры.
// Нераспознанный текст — CommandNoOp.
func (c *Classifier) Classify(body string) (Command, *LogQueryArgs) {
	cleaned := Deescape(body)
	for _, r := range c.rules {
		m := r.re.FindStringSubmatch(cleaned)
		if m == nil {
			continue
		}
		if r.cmd == CommandLogQuery {
			days, err := strconv.Atoi(m[2])
			if err != nil || days <= 0 {
				return CommandNoOp, nil
			}
			return CommandLogQuery, &LogQueryArgs{Subject: m[1], Days: days}
		}
		return r.cmd, nil
	}
	return CommandNoOp, nil
}
