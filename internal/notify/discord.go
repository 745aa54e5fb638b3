// Package notify доставляет сообщения оператору через Discord-вебхуки.
// Два канала: ошибки (сигналы о сбоях коммитов, конфига, потока)
// и обновления (ссылки на суточные выгрузки).
//
// Доставка best-effort: если вебхук недоступен, сообщение уходит в лог —
// терять основной поток обработки из-за нотификаций нельзя.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	log "github.com/sirupsen/logrus"
)

const webhookUsername = "Rep Bot"

// Discord шлёт сообщения в каналы через вебхуки.
type Discord struct {
	http       *retryablehttp.Client
	errorURL   string
	updatesURL string
}

// NewDiscord создаёт нотификатор.
func NewDiscord(errorURL, updatesURL string) *Discord {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 1 * time.Second
	rc.RetryWaitMax = 5 * time.Second
	rc.Logger = nil
	return &Discord{http: rc, errorURL: errorURL, updatesURL: updatesURL}
}

// Alert отправляет сообщение в канал ошибок (канал оператора).
func (d *Discord) Alert(ctx context.Context, msg string) {
	log.WithField("msg", msg).Error("Сигнал оператору")
	d.post(ctx, d.errorURL, msg)
}

// Updates отправляет сообщение в канал обновлений.
func (d *Discord) Updates(ctx context.Context, msg string) {
	d.post(ctx, d.updatesURL, msg)
}

func (d *Discord) post(ctx context.Context, webhook, msg string) {
	if webhook == "" {
		return
	}

	payload, err := json.Marshal(map[string]string{
		"content":  msg,
		"username": webhookUsername,
	})
	if err != nil {
		return
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, webhook, bytes.NewReader(payload))
	if err != nil {
		log.WithError(err).Warn("Не удалось собрать запрос к вебхуку")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		log.WithError(err).Warn("Вебхук Discord недоступен")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.WithField("status", resp.StatusCode).Warn("Вебхук Discord ответил ошибкой")
	}
}
