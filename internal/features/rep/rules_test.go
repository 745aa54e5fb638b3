package rep

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketmm2/rep-bot/internal/botcfg"
	"github.com/marketmm2/rep-bot/internal/reddit"
)

// fakeCounts — счётчики реестра с заранее заданными ответами.
type fakeCounts struct {
	since, pair, onSub int
	err                error
}

func (f *fakeCounts) CountSince(context.Context, string, int64) (int, error) {
	return f.since, f.err
}
func (f *fakeCounts) CountPair(context.Context, string, string, int64) (int, error) {
	return f.pair, f.err
}
func (f *fakeCounts) CountByAwardeeOnSubmission(context.Context, string, string) (int, error) {
	return f.onSub, f.err
}

type fakeLimits struct {
	limits botcfg.Limits
	err    error
}

func (f *fakeLimits) Limits(context.Context) (botcfg.Limits, error) {
	return f.limits, f.err
}

var testLimits = botcfg.Limits{
	RepLimitPerDay:          5,
	RepCooldownMinutes:      60,
	GiveawayRepLimitPerPost: 2,
}

func testPipeline(ledger LedgerCounter, limits LimitSource) *Pipeline {
	p := NewPipeline(ledger, limits, time.UTC)
	p.now = func() time.Time {
		return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	}
	return p
}

func tradeEvent() *Event {
	return &Event{
		Comment: reddit.Comment{
			ID:         "abc",
			Author:     "buyer",
			CreatedUTC: time.Date(2024, 3, 15, 11, 59, 0, 0, time.UTC).Unix(),
		},
		ParentAuthor: "seller",
		Submission: reddit.Submission{
			ID:            "post1",
			Author:        "seller",
			CategoryFlair: CategoryTradeOffer,
		},
	}
}

func TestPipelinePasses(t *testing.T) {
	p := testPipeline(&fakeCounts{}, &fakeLimits{limits: testLimits})

	status, err := p.Evaluate(context.Background(), tradeEvent())
	require.NoError(t, err)
	assert.Equal(t, StatusChecksPassed, status)
}

func TestPipelineIncorrectSubmissionType(t *testing.T) {
	p := testPipeline(&fakeCounts{}, &fakeLimits{limits: testLimits})

	evt := tradeEvent()
	evt.Submission.CategoryFlair = "Discussion"

	status, err := p.Evaluate(context.Background(), evt)
	require.NoError(t, err)
	assert.Equal(t, StatusIncorrectSubmissionType, status)
}

func TestPipelineSelfReward(t *testing.T) {
	p := testPipeline(&fakeCounts{}, &fakeLimits{limits: testLimits})

	evt := tradeEvent()
	evt.ParentAuthor = evt.Comment.Author

	status, err := p.Evaluate(context.Background(), evt)
	require.NoError(t, err)
	assert.Equal(t, StatusCannotRewardYourself, status)
}

func TestPipelineDeletedOrRemoved(t *testing.T) {
	p := testPipeline(&fakeCounts{}, &fakeLimits{limits: testLimits})

	for _, mutate := range []func(*Event){
		func(e *Event) { e.Comment.Author = "" },
		func(e *Event) { e.Comment.Removed = true },
		func(e *Event) { e.ParentAuthor = "" },
		func(e *Event) { e.ParentRemoved = true },
		func(e *Event) { e.Submission.Author = "" },
		func(e *Event) { e.Submission.Removed = true },
	} {
		evt := tradeEvent()
		mutate(evt)
		status, err := p.Evaluate(context.Background(), evt)
		require.NoError(t, err)
		assert.Equal(t, StatusDeletedOrRemoved, status)
	}
}

func TestPipelineDailyLimit(t *testing.T) {
	p := testPipeline(&fakeCounts{since: 5}, &fakeLimits{limits: testLimits})

	status, err := p.Evaluate(context.Background(), tradeEvent())
	require.NoError(t, err)
	assert.Equal(t, StatusRepAwardingLimitReached, status)
}

func TestPipelineCooldown(t *testing.T) {
	p := testPipeline(&fakeCounts{pair: 1}, &fakeLimits{limits: testLimits})

	status, err := p.Evaluate(context.Background(), tradeEvent())
	require.NoError(t, err)
	assert.Equal(t, StatusCoolDownTimer, status)
}

func TestPipelineGiveawayLimit(t *testing.T) {
	p := testPipeline(&fakeCounts{onSub: 2}, &fakeLimits{limits: testLimits})

	evt := tradeEvent()
	evt.Submission.CategoryFlair = CategoryGiveawayEntry

	status, err := p.Evaluate(context.Background(), evt)
	require.NoError(t, err)
	assert.Equal(t, StatusGiveawayLimit, status)
}

func TestPipelineGiveawayCapNotAppliedToTradeOffer(t *testing.T) {
	// лимит giveaway не действует на обычных торговых постах
	p := testPipeline(&fakeCounts{onSub: 99}, &fakeLimits{limits: testLimits})

	status, err := p.Evaluate(context.Background(), tradeEvent())
	require.NoError(t, err)
	assert.Equal(t, StatusChecksPassed, status)
}

func TestPipelineShortCircuitOrder(t *testing.T) {
	// категория проверяется раньше самонаграждения
	p := testPipeline(&fakeCounts{}, &fakeLimits{limits: testLimits})

	evt := tradeEvent()
	evt.Submission.CategoryFlair = "Discussion"
	evt.ParentAuthor = evt.Comment.Author

	status, err := p.Evaluate(context.Background(), evt)
	require.NoError(t, err)
	assert.Equal(t, StatusIncorrectSubmissionType, status)
}

func TestPipelineMissingLimitsIsError(t *testing.T) {
	// отсутствующий лимит — отказ пайплайна, а не молчаливый дефолт
	cfgErr := errors.New("rep_limit_per_day: запись не найдена")
	p := testPipeline(&fakeCounts{}, &fakeLimits{err: cfgErr})

	_, err := p.Evaluate(context.Background(), tradeEvent())
	assert.ErrorIs(t, err, cfgErr)
}

func TestPipelineLedgerFailureIsError(t *testing.T) {
	dbErr := errors.New("база недоступна")
	p := testPipeline(&fakeCounts{err: dbErr}, &fakeLimits{limits: testLimits})

	_, err := p.Evaluate(context.Background(), tradeEvent())
	assert.ErrorIs(t, err, dbErr)
}
