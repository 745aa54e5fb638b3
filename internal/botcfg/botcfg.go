// Package botcfg читает горячий конфиг бота из wiki-страницы сабреддита.
// Страница — multi-document YAML: документы с type/comment задают шаблоны
// ответов, документ type: limits — числовые лимиты пайплайна.
//
// Конфиг НЕ кэшируется на старте: каждое обращение читает страницу заново,
// поэтому модераторы правят шаблоны и лимиты без перезапуска бота.
// Отсутствующая запись — это ошибка (common.ErrConfigEntryMissing),
// а не молчаливый дефолт.
package botcfg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/marketmm2/rep-bot/internal/common"
)

// Source — источник содержимого wiki-страницы (реализуется reddit.Client).
type Source interface {
	WikiPage(ctx context.Context, page string) (string, error)
}

// Limits — числовые пороги пайплайна допуска.
type Limits struct {
	// Сколько раз в сутки пользователь может выдать репутацию
	RepLimitPerDay int
	// Минимальный интервал (в минутах) между повторной выдачей той же паре
	RepCooldownMinutes int
	// Сколько репутации может получить один пользователь на giveaway-посте
	GiveawayRepLimitPerPost int
}

// Store предоставляет доступ к шаблонам ответов и лимитам.
type Store struct {
	src  Source
	page string
}

// NewStore создаёт хранилище горячего конфига.
func NewStore(src Source, page string) *Store {
	return &Store{src: src, page: page}
}

// Template возвращает шаблон ответа по символьному имени.
func (s *Store) Template(ctx context.Context, name string) (string, error) {
	docs, err := s.load(ctx)
	if err != nil {
		return "", err
	}
	for _, d := range docs {
		if d.Type == name {
			return d.Comment, nil
		}
	}
	return "", fmt.Errorf("шаблон %q: %w", name, common.ErrConfigEntryMissing)
}

// Limits возвращает числовые лимиты пайплайна.
// Каждый из трёх лимитов обязателен.
func (s *Store) Limits(ctx context.Context) (Limits, error) {
	docs, err := s.load(ctx)
	if err != nil {
		return Limits{}, err
	}
	for _, d := range docs {
		if d.Type != "limits" {
			continue
		}
		if d.RepLimitPerDay == nil {
			return Limits{}, fmt.Errorf("rep_limit_per_day: %w", common.ErrConfigEntryMissing)
		}
		if d.RepCooldown == nil {
			return Limits{}, fmt.Errorf("rep_cooldown: %w", common.ErrConfigEntryMissing)
		}
		if d.GiveawayRepLimitPerPost == nil {
			return Limits{}, fmt.Errorf("giveaway_rep_limit_per_post: %w", common.ErrConfigEntryMissing)
		}
		return Limits{
			RepLimitPerDay:          *d.RepLimitPerDay,
			RepCooldownMinutes:      *d.RepCooldown,
			GiveawayRepLimitPerPost: *d.GiveawayRepLimitPerPost,
		}, nil
	}
	return Limits{}, fmt.Errorf("документ limits: %w", common.ErrConfigEntryMissing)
}

// document — один YAML-документ wiki-страницы.
type document struct {
	Type    string `yaml:"type"`
	Comment string `yaml:"comment"`

	// поля документа limits; указатели различают «нет записи» и «0»
	RepLimitPerDay          *int `yaml:"rep_limit_per_day"`
	RepCooldown             *int `yaml:"rep_cooldown"`
	GiveawayRepLimitPerPost *int `yaml:"giveaway_rep_limit_per_post"`
}

func (s *Store) load(ctx context.Context) ([]document, error) {
	content, err := s.src.WikiPage(ctx, s.page)
	if err != nil {
		return nil, fmt.Errorf("чтение wiki-конфига: %w", err)
	}

	var docs []document
	dec := yaml.NewDecoder(strings.NewReader(content))
	for {
		var d document
		if err := dec.Decode(&d); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("разбор wiki-конфига: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, nil
}

// Render подставляет токены вида {{name}} в шаблон.
func Render(tmpl string, tokens map[string]string) string {
	out := tmpl
	for name, value := range tokens {
		out = strings.ReplaceAll(out, "{{"+name+"}}", value)
	}
	return out
}
