package bot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketmm2/rep-bot/internal/bot/filters"
	"github.com/marketmm2/rep-bot/internal/features/rep"
	"github.com/marketmm2/rep-bot/internal/reddit"
)

// fakePlatform — данные платформы в памяти; t.Fatal, если диспетчер
// трогает платформу там, где не должен.
type fakePlatform struct {
	t           *testing.T
	allowCalls  bool
	comments    map[string]*reddit.Comment
	submissions map[string]*reddit.Submission
	mods        []string
	modsErr     error
}

func (p *fakePlatform) Comment(_ context.Context, id string) (*reddit.Comment, error) {
	p.guard()
	c, ok := p.comments[id]
	if !ok {
		return nil, errors.New("комментарий не найден: " + id)
	}
	return c, nil
}

func (p *fakePlatform) Submission(_ context.Context, id string) (*reddit.Submission, error) {
	p.guard()
	s, ok := p.submissions[id]
	if !ok {
		return nil, errors.New("пост не найден: " + id)
	}
	return s, nil
}

func (p *fakePlatform) Moderators(context.Context) ([]string, error) {
	p.guard()
	return p.mods, p.modsErr
}

func (p *fakePlatform) guard() {
	if !p.allowCalls {
		p.t.Fatal("диспетчер обратился к платформе для отфильтрованного комментария")
	}
}

func newDispatcher(p *fakePlatform) *Bot {
	return New(p, rep.NewClassifier(), nil, nil,
		filters.NewCommentFilter(filters.AutoModerator, "RepBot"))
}

func TestProcessSkipsFilteredAuthors(t *testing.T) {
	p := &fakePlatform{t: t}
	b := newDispatcher(p)

	cases := []*reddit.Comment{
		{ID: "c1", Author: "AutoModerator", Body: "+REP"},
		{ID: "c2", Author: "RepBot", Body: "+REP"},
		{ID: "c3", Author: "trader", Body: ""},
	}
	for _, c := range cases {
		assert.NoErrorf(t, b.Process(context.Background(), c), "comment=%s", c.ID)
	}
}

func TestProcessSkipsPlainComments(t *testing.T) {
	p := &fakePlatform{t: t}
	b := newDispatcher(p)

	c := &reddit.Comment{ID: "c1", Author: "trader", Body: "отличная сделка, рекомендую"}
	assert.NoError(t, b.Process(context.Background(), c))
}

func TestAssembleParentComment(t *testing.T) {
	p := &fakePlatform{
		t:          t,
		allowCalls: true,
		comments: map[string]*reddit.Comment{
			"p1": {ID: "p1", Author: "seller", Removed: false},
		},
		submissions: map[string]*reddit.Submission{
			"s1": {ID: "s1", Author: "op", CategoryFlair: rep.CategoryTradeOffer},
		},
	}
	b := newDispatcher(p)

	c := &reddit.Comment{ID: "c1", Author: "buyer", Body: "+REP", ParentID: "t1_p1", SubmissionID: "s1"}
	evt, err := b.assemble(context.Background(), c)
	require.NoError(t, err)

	assert.Equal(t, "seller", evt.ParentAuthor)
	assert.False(t, evt.ParentRemoved)
	assert.Equal(t, "s1", evt.Submission.ID)
}

func TestAssembleTopLevelCommentUsesSubmissionAuthor(t *testing.T) {
	p := &fakePlatform{
		t:          t,
		allowCalls: true,
		submissions: map[string]*reddit.Submission{
			"s1": {ID: "s1", Author: "op", Removed: true},
		},
	}
	b := newDispatcher(p)

	c := &reddit.Comment{ID: "c1", Author: "buyer", Body: "+REP", ParentID: "t3_s1", SubmissionID: "s1"}
	evt, err := b.assemble(context.Background(), c)
	require.NoError(t, err)

	assert.Equal(t, "op", evt.ParentAuthor)
	assert.True(t, evt.ParentRemoved)
}

func TestAssembleMissingParentFails(t *testing.T) {
	p := &fakePlatform{
		t:          t,
		allowCalls: true,
		submissions: map[string]*reddit.Submission{
			"s1": {ID: "s1", Author: "op"},
		},
	}
	b := newDispatcher(p)

	c := &reddit.Comment{ID: "c1", Author: "buyer", Body: "+REP", ParentID: "t1_gone", SubmissionID: "s1"}
	_, err := b.assemble(context.Background(), c)
	assert.Error(t, err)
}

func TestIsModeratorCaseInsensitive(t *testing.T) {
	p := &fakePlatform{t: t, allowCalls: true, mods: []string{"Mod_One", "mod_two"}}
	b := newDispatcher(p)

	ctx := context.Background()
	for user, want := range map[string]bool{
		"mod_one": true,
		"MOD_TWO": true,
		"trader":  false,
		"":        false,
	} {
		got, err := b.isModerator(ctx, user)
		require.NoError(t, err)
		assert.Equalf(t, want, got, "user=%q", user)
	}
}

func TestIsModeratorRosterFailure(t *testing.T) {
	p := &fakePlatform{t: t, allowCalls: true, modsErr: errors.New("reddit 503")}
	b := newDispatcher(p)

	_, err := b.isModerator(context.Background(), "trader")
	assert.Error(t, err)
}
