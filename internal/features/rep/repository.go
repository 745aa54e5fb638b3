// Package rep — repository.go выполняет операции с таблицей rep_transactions.
// Реестр append-only: записи не обновляются никогда, удаляет их только
// задача очистки по горизонту хранения.
package rep

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marketmm2/rep-bot/internal/common"
)

// Repository работает с таблицей rep_transactions.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий реестра репутации.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const transactionColumns = `comment_id, comment_created_utc, awarder, awarder_rep,
	awardee, awardee_rep, delta_awardee_rep, submission_id, submission_created_utc, permalink`

// Append записывает транзакцию. Если comment_id уже есть в реестре —
// возвращает common.ErrDuplicateKey, ничего не меняя: так повторно
// доставленное событие не создаёт вторую запись.
func (r *Repository) Append(ctx context.Context, t *Transaction) error {
	query := `
		INSERT INTO rep_transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (comment_id) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query,
		t.CommentID, t.CommentCreatedUTC, t.Awarder, t.AwarderRep,
		t.Awardee, t.AwardeeRep, t.Delta, t.SubmissionID,
		t.SubmissionCreatedUTC, t.Permalink,
	)
	if err != nil {
		return fmt.Errorf("запись транзакции %s: %w", t.CommentID, err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrDuplicateKey
	}
	return nil
}

// CountSince возвращает, сколько транзакций выдал awarder начиная с since.
func (r *Repository) CountSince(ctx context.Context, awarder string, since int64) (int, error) {
	query := `SELECT COUNT(*) FROM rep_transactions WHERE awarder = $1 AND comment_created_utc >= $2`
	var count int
	err := r.db.QueryRow(ctx, query, awarder, since).Scan(&count)
	return count, err
}

// CountPair возвращает число транзакций между парой (awarder, awardee)
// начиная с since. Используется для кулдауна.
func (r *Repository) CountPair(ctx context.Context, awarder, awardee string, since int64) (int, error) {
	query := `
		SELECT COUNT(*) FROM rep_transactions
		WHERE awarder = $1 AND awardee = $2 AND comment_created_utc >= $3
	`
	var count int
	err := r.db.QueryRow(ctx, query, awarder, awardee, since).Scan(&count)
	return count, err
}

// CountByAwardeeOnSubmission возвращает, сколько репутации awardee
// получил на конкретном посте. Используется для giveaway-лимита.
func (r *Repository) CountByAwardeeOnSubmission(ctx context.Context, awardee, submissionID string) (int, error) {
	query := `
		SELECT COUNT(*) FROM rep_transactions
		WHERE awardee = $1 AND submission_id = $2 AND delta_awardee_rep > 0
	`
	var count int
	err := r.db.QueryRow(ctx, query, awardee, submissionID).Scan(&count)
	return count, err
}

// CountReceivedSince возвращает, сколько репутации awardee получил
// начиная с since (для команды !REPS). Модераторские снятия (-1)
// полученной репутацией не считаются.
func (r *Repository) CountReceivedSince(ctx context.Context, awardee string, since int64) (int, error) {
	query := `
		SELECT COUNT(*) FROM rep_transactions
		WHERE awardee = $1 AND comment_created_utc >= $2 AND delta_awardee_rep > 0
	`
	var count int
	err := r.db.QueryRow(ctx, query, awardee, since).Scan(&count)
	return count, err
}

// Purge удаляет записи с comment_created_utc не позже cutoff
// и возвращает удалённые строки для аудита.
func (r *Repository) Purge(ctx context.Context, cutoff int64) ([]Transaction, error) {
	query := `
		DELETE FROM rep_transactions
		WHERE comment_created_utc <= $1
		RETURNING ` + transactionColumns
	rows, err := r.db.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("очистка реестра: %w", err)
	}
	return scanTransactions(rows)
}

// RecentWindow возвращает записи с comment_created_utc не раньше since,
// от старых к новым. Используется для суточной выгрузки.
func (r *Repository) RecentWindow(ctx context.Context, since int64) ([]Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM rep_transactions
		WHERE comment_created_utc >= $1
		ORDER BY comment_created_utc
	`
	rows, err := r.db.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("выборка окна экспорта: %w", err)
	}
	return scanTransactions(rows)
}

func scanTransactions(rows pgx.Rows) ([]Transaction, error) {
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		var t Transaction
		err := rows.Scan(
			&t.CommentID, &t.CommentCreatedUTC, &t.Awarder, &t.AwarderRep,
			&t.Awardee, &t.AwardeeRep, &t.Delta, &t.SubmissionID,
			&t.SubmissionCreatedUTC, &t.Permalink,
		)
		if err != nil {
			return nil, fmt.Errorf("чтение строки реестра: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
