// Package flair реализует счётчик репутации поверх пользовательских
// флаиров Reddit. Снаружи счётчик — обычный int; текстовое представление
// «Trade Rep: N» существует только внутри этого пакета (граница платформы).
//
// Пакет сам ничего не блокирует: сериализацию конкурентных Adjust
// обеспечивает вызывающий (движок транзакций держит общий мьютекс).
package flair

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// defaultPrefix — текст флаира, который получает пользователь без флаира.
const defaultPrefix = "Trade Rep:"

// API — операции платформы над пользовательскими флаирами
// (реализуется reddit.Client).
type API interface {
	UserFlair(ctx context.Context, user string) (string, error)
	SetUserFlair(ctx context.Context, user, text, templateID string) error
}

// Store — хранилище счётчиков репутации.
type Store struct {
	api        API
	templateID string
}

// NewStore создаёт хранилище. templateID — шаблон реп-флаира сабреддита.
func NewStore(api API, templateID string) *Store {
	return &Store{api: api, templateID: templateID}
}

// GetOrInit возвращает текущее значение счётчика пользователя.
// При первом контакте (флаира нет) счётчик инициализируется нулём.
// Флаир с ненулевым текстом без числового хвоста не трогаем — считаем 0.
func (s *Store) GetOrInit(ctx context.Context, user string) (int, error) {
	text, err := s.api.UserFlair(ctx, user)
	if err != nil {
		return 0, err
	}
	if text == "" {
		if err := s.api.SetUserFlair(ctx, user, formatRep(defaultPrefix, 0), s.templateID); err != nil {
			return 0, fmt.Errorf("инициализация флаира %s: %w", user, err)
		}
		log.WithField("user", user).Debug("Флаир репутации инициализирован")
		return 0, nil
	}

	_, value, ok := parseRep(text)
	if !ok {
		log.WithFields(log.Fields{"user": user, "flair": text}).
			Warn("Флаир без числового значения, считаем репутацию нулевой")
		return 0, nil
	}
	return value, nil
}

// Adjust прибавляет delta (±1) к счётчику и записывает новое значение.
// Пользовательский текст перед числом сохраняется: числовым считается
// только последний токен флаира.
func (s *Store) Adjust(ctx context.Context, user string, delta int) (int, error) {
	text, err := s.api.UserFlair(ctx, user)
	if err != nil {
		return 0, err
	}

	prefix, value, ok := parseRep(text)
	if !ok {
		prefix, value = defaultPrefix, 0
	}

	next := value + delta
	if err := s.api.SetUserFlair(ctx, user, formatRep(prefix, next), s.templateID); err != nil {
		return 0, fmt.Errorf("обновление флаира %s: %w", user, err)
	}
	return next, nil
}

// parseRep разбирает текст флаира на префикс и числовой хвост.
func parseRep(text string) (prefix string, value int, ok bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil {
		return "", 0, false
	}
	return strings.Join(fields[:len(fields)-1], " "), n, true
}

// formatRep собирает текст флаира обратно.
func formatRep(prefix string, value int) string {
	if prefix == "" {
		return strconv.Itoa(value)
	}
	return fmt.Sprintf("%s %d", prefix, value)
}
