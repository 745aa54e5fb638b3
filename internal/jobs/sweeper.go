// Package jobs управляет фоновыми задачами (cron).
// sweeper.go — задача очистки реестра: раз в сутки удаляет транзакции
// старше горизонта хранения и выгружает последнее окно в CSV.
//
// Задача берёт тот же мьютекс, что и движок транзакций: очистка никогда
// не идёт посреди коммита, а выгрузка видит согласованный снимок.
package jobs

import (
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/marketmm2/rep-bot/internal/features/rep"
)

// Ledger — операции реестра, нужные задаче очистки.
type Ledger interface {
	Purge(ctx context.Context, cutoff int64) ([]rep.Transaction, error)
	RecentWindow(ctx context.Context, since int64) ([]rep.Transaction, error)
}

// Publisher — публикация выгрузки (реализуется reddit.Client).
type Publisher interface {
	SubmitSelfPost(ctx context.Context, subreddit, title, text string) (string, error)
}

// Notifier — доставка ссылки на выгрузку и сигналов об ошибках.
type Notifier interface {
	Updates(ctx context.Context, msg string)
	Alert(ctx context.Context, msg string)
}

// Sweeper выполняет очистку и суточный экспорт.
type Sweeper struct {
	// общий с движком транзакций мьютекс
	mu        *sync.Mutex
	ledger    Ledger
	publisher Publisher
	notifier  Notifier

	// профильный сабреддит бота, куда уходит выгрузка
	exportSubreddit string
	retention       time.Duration
	exportWindow    time.Duration
	now             func() time.Time
}

// NewSweeper создаёт задачу очистки.
func NewSweeper(mu *sync.Mutex, ledger Ledger, publisher Publisher, notifier Notifier,
	exportSubreddit string, retention, exportWindow time.Duration) *Sweeper {
	return &Sweeper{
		mu:              mu,
		ledger:          ledger,
		publisher:       publisher,
		notifier:        notifier,
		exportSubreddit: exportSubreddit,
		retention:       retention,
		exportWindow:    exportWindow,
		now:             time.Now,
	}
}

// Run выполняет один проход: очистка по горизонту + экспорт окна.
func (s *Sweeper) Run(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	purged, err := s.ledger.Purge(ctx, now.Add(-s.retention).Unix())
	if err != nil {
		return fmt.Errorf("очистка реестра: %w", err)
	}
	if len(purged) > 0 {
		log.WithField("rows", len(purged)).Info("Старые транзакции удалены из реестра")
	}

	window, err := s.ledger.RecentWindow(ctx, now.Add(-s.exportWindow).Unix())
	if err != nil {
		return fmt.Errorf("окно экспорта: %w", err)
	}

	body, err := RenderCSV(window)
	if err != nil {
		return fmt.Errorf("сборка CSV: %w", err)
	}

	title := "Rep Logs " + now.Format(time.RFC3339)
	link, err := s.publisher.SubmitSelfPost(ctx, s.exportSubreddit, title, body)
	if err != nil {
		return fmt.Errorf("публикация выгрузки: %w", err)
	}

	s.notifier.Updates(ctx, "Rep logs for the day "+link)
	log.WithFields(log.Fields{"rows": len(window), "link": link}).Info("Суточная выгрузка опубликована")
	return nil
}

// заголовок выгрузки; порядок колонок фиксирован контрактом экспорта
var csvHeader = []string{
	"comment_id", "comment_created_utc", "awarder", "awarder_rep",
	"awardee", "awardee_rep", "delta_awardee_rep",
	"submission_id", "submission_created_utc", "permalink",
}

// RenderCSV превращает набор транзакций в CSV-текст с заголовком.
func RenderCSV(rows []rep.Transaction) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	if err := w.Write(csvHeader); err != nil {
		return "", err
	}
	for i := range rows {
		t := &rows[i]
		record := []string{
			t.CommentID,
			strconv.FormatInt(t.CommentCreatedUTC, 10),
			t.Awarder,
			strconv.Itoa(t.AwarderRep),
			t.Awardee,
			strconv.Itoa(t.AwardeeRep),
			strconv.Itoa(t.Delta),
			t.SubmissionID,
			strconv.FormatInt(t.SubmissionCreatedUTC, 10),
			t.Permalink,
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}
	w.Flush()
	return sb.String(), w.Error()
}
