package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketmm2/rep-bot/internal/common"
	"github.com/marketmm2/rep-bot/internal/reddit"
)

// scriptedStream отдаёт заранее заданную последовательность исходов.
type scriptedStream struct {
	comments []*reddit.Comment
	errs     []error
	pos      int
}

func (s *scriptedStream) Next(context.Context) (*reddit.Comment, error) {
	if s.pos >= len(s.comments) {
		return nil, common.ErrStreamEnd
	}
	c, err := s.comments[s.pos], s.errs[s.pos]
	s.pos++
	return c, err
}

type recordingProcessor struct {
	ids []string
	err error
}

func (p *recordingProcessor) Process(_ context.Context, c *reddit.Comment) error {
	p.ids = append(p.ids, c.ID)
	return p.err
}

type recordingAlerter struct {
	msgs []string
}

func (a *recordingAlerter) Alert(_ context.Context, msg string) { a.msgs = append(a.msgs, msg) }

func TestStepProcessesComment(t *testing.T) {
	stream := &scriptedStream{
		comments: []*reddit.Comment{{ID: "c1"}},
		errs:     []error{nil},
	}
	proc := &recordingProcessor{}
	c := NewConsumer(func() Stream { return stream }, proc, &recordingAlerter{}, time.Millisecond)

	assert.Equal(t, StepContinue, c.step(context.Background(), stream))
	assert.Equal(t, []string{"c1"}, proc.ids)
	assert.Equal(t, 1, c.failures)
}

func TestStepStreamEndReinitializes(t *testing.T) {
	stream := &scriptedStream{}
	c := NewConsumer(func() Stream { return stream }, &recordingProcessor{}, &recordingAlerter{}, time.Millisecond)

	assert.Equal(t, StepReinitialize, c.step(context.Background(), stream))
}

func TestStepContextCancelIsFatal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stream := &scriptedStream{
		comments: []*reddit.Comment{nil},
		errs:     []error{context.Canceled},
	}
	c := NewConsumer(func() Stream { return stream }, &recordingProcessor{}, &recordingAlerter{}, time.Millisecond)

	assert.Equal(t, StepFatal, c.step(ctx, stream))
}

func TestStepTransientStreamErrorBacksOff(t *testing.T) {
	transient := &reddit.APIError{StatusCode: 503, Body: "unavailable"}
	stream := &scriptedStream{
		comments: []*reddit.Comment{nil},
		errs:     []error{transient},
	}
	alerter := &recordingAlerter{}
	c := NewConsumer(func() Stream { return stream }, &recordingProcessor{}, alerter, time.Millisecond)

	assert.Equal(t, StepContinue, c.step(context.Background(), stream))
	require.Len(t, alerter.msgs, 1)
	// после паузы счётчик неудач вырос
	assert.Equal(t, 2, c.failures)
}

func TestStepPermanentErrorAlertsWithoutBackoff(t *testing.T) {
	stream := &scriptedStream{
		comments: []*reddit.Comment{nil},
		errs:     []error{errors.New("повреждённый ответ")},
	}
	alerter := &recordingAlerter{}
	c := NewConsumer(func() Stream { return stream }, &recordingProcessor{}, alerter, time.Millisecond)

	assert.Equal(t, StepContinue, c.step(context.Background(), stream))
	assert.Len(t, alerter.msgs, 1)
	assert.Equal(t, 1, c.failures)
}

func TestStepProcessFailureAlerts(t *testing.T) {
	stream := &scriptedStream{
		comments: []*reddit.Comment{{ID: "c7"}},
		errs:     []error{nil},
	}
	alerter := &recordingAlerter{}
	proc := &recordingProcessor{err: &reddit.APIError{StatusCode: 429, Body: "rate limited"}}
	c := NewConsumer(func() Stream { return stream }, proc, alerter, time.Millisecond)

	assert.Equal(t, StepContinue, c.step(context.Background(), stream))
	require.Len(t, alerter.msgs, 1)
	assert.Contains(t, alerter.msgs[0], "c7")
	assert.Equal(t, 2, c.failures)
}

func TestBackoffGrowsAndSuccessResets(t *testing.T) {
	transient := &reddit.APIError{StatusCode: 502, Body: "bad gateway"}
	stream := &scriptedStream{
		comments: []*reddit.Comment{nil, nil, {ID: "ok"}},
		errs:     []error{transient, transient, nil},
	}
	c := NewConsumer(func() Stream { return stream }, &recordingProcessor{}, &recordingAlerter{}, time.Millisecond)

	ctx := context.Background()
	c.step(ctx, stream)
	assert.Equal(t, 2, c.failures)
	c.step(ctx, stream)
	assert.Equal(t, 3, c.failures)

	// успех сбрасывает счётчик
	c.step(ctx, stream)
	assert.Equal(t, 1, c.failures)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	stream := &scriptedStream{
		comments: []*reddit.Comment{{ID: "c1"}},
		errs:     []error{nil},
	}
	proc := &recordingProcessor{}
	c := NewConsumer(func() Stream {
		// после исчерпания скрипта поток отдаёт ErrStreamEnd,
		// Run пересоздаёт его и в конце концов видит отмену
		return stream
	}, proc, &recordingAlerter{}, time.Millisecond)

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run не остановился после отмены контекста")
	}
	assert.Equal(t, []string{"c1"}, proc.ids)
}
