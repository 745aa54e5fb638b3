// Package common — errors.go определяет пользовательские ошибки,
// которые используются во всех модулях бота.
// Эти ошибки позволяют вызывающему коду различать типы проблем
// без привязки к конкретной реализации хранилища или платформы.
package common

import "errors"

// Ошибки реестра репутации
var (
	// ErrDuplicateKey — транзакция с таким comment_id уже записана.
	// Для вызывающего это «тихий успех»: событие уже было обработано,
	// повторного ответа пользователю отправлять нельзя.
	ErrDuplicateKey = errors.New("транзакция с таким comment_id уже существует")
)

// Ошибки конфигурации (wiki-документ)
var (
	// ErrConfigEntryMissing — в wiki-конфиге нет запрошенной записи.
	// Молчаливых дефолтов нет: отсутствующий лимит или шаблон —
	// это сигнал оператору, а не «0».
	ErrConfigEntryMissing = errors.New("запись не найдена в wiki-конфиге")
)

// Ошибки потока событий
var (
	// ErrStreamEnd — поток комментариев исчерпан, его нужно пересоздать.
	ErrStreamEnd = errors.New("поток комментариев завершился")
)
