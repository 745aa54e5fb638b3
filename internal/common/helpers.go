// Package common содержит общие утилиты, используемые во всём проекте.
// helpers.go — работа со временем: локальная полночь и unix-метки.
package common

import "time"

// LocalMidnight возвращает последнюю локальную полночь для момента t
// в часовом поясе loc. Используется для суточного лимита выдачи репутации:
// «за сегодня» = с последней полуночи по времени бота.
func LocalMidnight(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// LoadLocation загружает часовой пояс по имени.
// Если загрузить не удалось — используем UTC, а не падаем:
// неверная таймзона не должна останавливать бота.
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
