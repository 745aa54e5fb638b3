package jobs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketmm2/rep-bot/internal/features/rep"
)

var sweepNow = time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC)

// fakeSweepLedger — реестр с фиксированными ответами и записью cutoff'ов.
type fakeSweepLedger struct {
	purged      []rep.Transaction
	window      []rep.Transaction
	purgeErr    error
	windowErr   error
	purgeCutoff int64
	windowSince int64
}

func (f *fakeSweepLedger) Purge(_ context.Context, cutoff int64) ([]rep.Transaction, error) {
	f.purgeCutoff = cutoff
	return f.purged, f.purgeErr
}

func (f *fakeSweepLedger) RecentWindow(_ context.Context, since int64) ([]rep.Transaction, error) {
	f.windowSince = since
	return f.window, f.windowErr
}

type fakePublisher struct {
	subreddit string
	title     string
	text      string
	link      string
	err       error
}

func (f *fakePublisher) SubmitSelfPost(_ context.Context, subreddit, title, text string) (string, error) {
	f.subreddit, f.title, f.text = subreddit, title, text
	return f.link, f.err
}

type fakeNotifier struct {
	updates []string
	alerts  []string
}

func (f *fakeNotifier) Updates(_ context.Context, msg string) { f.updates = append(f.updates, msg) }
func (f *fakeNotifier) Alert(_ context.Context, msg string)   { f.alerts = append(f.alerts, msg) }

func sampleTransaction(id string) rep.Transaction {
	return rep.Transaction{
		CommentID:            id,
		CommentCreatedUTC:    sweepNow.Add(-2 * time.Hour).Unix(),
		Awarder:              "buyer",
		AwarderRep:           3,
		Awardee:              "seller",
		AwardeeRep:           10,
		Delta:                1,
		SubmissionID:         "s1",
		SubmissionCreatedUTC: sweepNow.Add(-5 * time.Hour).Unix(),
		Permalink:            "/r/MarketMM2/comments/s1/_/" + id,
	}
}

func newSweeperFixture(ledger *fakeSweepLedger, pub *fakePublisher, n *fakeNotifier) *Sweeper {
	s := NewSweeper(&sync.Mutex{}, ledger, pub, n,
		"u_RepBot", 180*24*time.Hour, 24*time.Hour)
	s.now = func() time.Time { return sweepNow }
	return s
}

func TestSweeperRun(t *testing.T) {
	ledger := &fakeSweepLedger{
		purged: []rep.Transaction{sampleTransaction("old1")},
		window: []rep.Transaction{sampleTransaction("c1"), sampleTransaction("c2")},
	}
	pub := &fakePublisher{link: "https://reddit.com/r/u_RepBot/comments/xyz"}
	notifier := &fakeNotifier{}
	s := newSweeperFixture(ledger, pub, notifier)

	require.NoError(t, s.Run(context.Background()))

	// границы: горизонт хранения и окно экспорта отсчитываются от now
	assert.Equal(t, sweepNow.Add(-180*24*time.Hour).Unix(), ledger.purgeCutoff)
	assert.Equal(t, sweepNow.Add(-24*time.Hour).Unix(), ledger.windowSince)

	assert.Equal(t, "u_RepBot", pub.subreddit)
	assert.Equal(t, "Rep Logs "+sweepNow.Format(time.RFC3339), pub.title)

	lines := strings.Split(strings.TrimRight(pub.text, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(csvHeader, ","), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "c1,"))
	assert.True(t, strings.HasPrefix(lines[2], "c2,"))

	require.Len(t, notifier.updates, 1)
	assert.Equal(t, "Rep logs for the day "+pub.link, notifier.updates[0])
}

func TestSweeperEmptyWindowStillPublishes(t *testing.T) {
	ledger := &fakeSweepLedger{}
	pub := &fakePublisher{link: "https://reddit.com/x"}
	notifier := &fakeNotifier{}
	s := newSweeperFixture(ledger, pub, notifier)

	require.NoError(t, s.Run(context.Background()))

	// пустое окно — выгрузка из одного заголовка
	assert.Equal(t, strings.Join(csvHeader, ",")+"\n", pub.text)
	assert.Len(t, notifier.updates, 1)
}

func TestSweeperPurgeFailureStopsRun(t *testing.T) {
	purgeErr := errors.New("база недоступна")
	ledger := &fakeSweepLedger{purgeErr: purgeErr}
	pub := &fakePublisher{}
	s := newSweeperFixture(ledger, pub, &fakeNotifier{})

	err := s.Run(context.Background())
	require.ErrorIs(t, err, purgeErr)
	// выгрузка не публикуется при провале очистки
	assert.Empty(t, pub.title)
}

func TestSweeperPublishFailure(t *testing.T) {
	ledger := &fakeSweepLedger{window: []rep.Transaction{sampleTransaction("c1")}}
	pub := &fakePublisher{err: errors.New("reddit 503")}
	notifier := &fakeNotifier{}
	s := newSweeperFixture(ledger, pub, notifier)

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.Empty(t, notifier.updates)
}

// purgingLedger — реестр в памяти с той же границей, что у SQL:
// Purge удаляет строки с comment_created_utc <= cutoff, RecentWindow
// отдаёт строки с comment_created_utc >= since.
type purgingLedger struct {
	rows []rep.Transaction
}

func (p *purgingLedger) Purge(_ context.Context, cutoff int64) ([]rep.Transaction, error) {
	var purged, kept []rep.Transaction
	for _, r := range p.rows {
		if r.CommentCreatedUTC <= cutoff {
			purged = append(purged, r)
		} else {
			kept = append(kept, r)
		}
	}
	p.rows = kept
	return purged, nil
}

func (p *purgingLedger) RecentWindow(_ context.Context, since int64) ([]rep.Transaction, error) {
	var out []rep.Transaction
	for _, r := range p.rows {
		if r.CommentCreatedUTC >= since {
			out = append(out, r)
		}
	}
	return out, nil
}

func TestSweeperPurgeBoundaryInclusive(t *testing.T) {
	cutoff := sweepNow.Add(-180 * 24 * time.Hour).Unix()

	older := sampleTransaction("older")
	older.CommentCreatedUTC = cutoff - 1
	atCutoff := sampleTransaction("at_cutoff")
	atCutoff.CommentCreatedUTC = cutoff
	newer := sampleTransaction("newer")
	newer.CommentCreatedUTC = cutoff + 1
	fresh := sampleTransaction("fresh")
	fresh.CommentCreatedUTC = sweepNow.Add(-time.Hour).Unix()

	ledger := &purgingLedger{rows: []rep.Transaction{older, atCutoff, newer, fresh}}
	pub := &fakePublisher{link: "https://reddit.com/x"}
	s := NewSweeper(&sync.Mutex{}, ledger, pub, &fakeNotifier{},
		"u_RepBot", 180*24*time.Hour, 24*time.Hour)
	s.now = func() time.Time { return sweepNow }

	require.NoError(t, s.Run(context.Background()))

	// граница включительная: строка ровно на cutoff удалена, на секунду новее — нет
	kept := make([]string, 0, len(ledger.rows))
	for _, r := range ledger.rows {
		kept = append(kept, r.CommentID)
	}
	assert.Equal(t, []string{"newer", "fresh"}, kept)

	// в суточную выгрузку попадает только строка внутри окна экспорта
	assert.Contains(t, pub.text, "fresh,")
	assert.NotContains(t, pub.text, "newer,")
}

func TestRenderCSVRow(t *testing.T) {
	tx := sampleTransaction("c9")
	out, err := RenderCSV([]rep.Transaction{tx})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 2)

	fields := strings.Split(lines[1], ",")
	require.Len(t, fields, len(csvHeader))
	assert.Equal(t, "c9", fields[0])
	assert.Equal(t, "buyer", fields[2])
	assert.Equal(t, "3", fields[3])
	assert.Equal(t, "seller", fields[4])
	assert.Equal(t, "10", fields[5])
	assert.Equal(t, "1", fields[6])
	assert.Equal(t, "s1", fields[7])
}
