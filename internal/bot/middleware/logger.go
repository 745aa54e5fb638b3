// Package middleware — logger.go логирует входящие комментарии.
package middleware

import (
	log "github.com/sirupsen/logrus"

	"github.com/marketmm2/rep-bot/internal/reddit"
)

// LogComment пишет входящий комментарий в debug-лог.
// Тело обрезается: в ленте бывают простыни.
func LogComment(c *reddit.Comment) {
	body := c.Body
	if len(body) > 80 {
		body = body[:80] + "..."
	}
	log.WithFields(log.Fields{
		"id":     c.ID,
		"author": c.Author,
		"body":   body,
	}).Debug("Входящий комментарий")
}
