// Package middleware — сквозные обёртки обработки событий.
// recovery.go ловит паники при обработке одного комментария:
// кривое событие не должно ронять весь консьюмер.
package middleware

import (
	"runtime/debug"

	log "github.com/sirupsen/logrus"
)

// RecoverFromPanic восстанавливается после паники в обработчике.
// Использовать через defer в начале обработки события.
func RecoverFromPanic() {
	if r := recover(); r != nil {
		log.WithFields(log.Fields{
			"panic": r,
			"stack": string(debug.Stack()),
		}).Error("Паника при обработке события")
	}
}
