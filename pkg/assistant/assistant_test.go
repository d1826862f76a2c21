package assistant_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gearshop/pkg/assistant"
	"gearshop/pkg/catalog"
	"gearshop/pkg/domain"
	"gearshop/pkg/metrics"
	"gearshop/pkg/models"
	"gearshop/pkg/prompting"
	"gearshop/pkg/session"
)

// sliceStream replays fixed fragments. When block is set it waits for the
// context to end before finishing, like a slow upstream.
type sliceStream struct {
	ctx     context.Context
	parts   []string
	block   bool
	onDrain func()
	i       int
	text    string
	err     error
	closed  bool
}

func (s *sliceStream) Next() bool {
	if s.i < len(s.parts) {
		s.text = s.parts[s.i]
		s.i++
		return true
	}
	if s.onDrain != nil {
		s.onDrain()
		s.onDrain = nil
	}
	if s.block {
		<-s.ctx.Done()
		s.err = context.Cause(s.ctx)
	}
	return false
}

func (s *sliceStream) Text() string { return s.text }
func (s *sliceStream) Err() error   { return s.err }
func (s *sliceStream) Close() error { s.closed = true; return nil }

type fakeCompleter struct {
	mu       sync.Mutex
	parts    []string
	block    bool
	err      error
	requests []models.CompletionRequest
	started  chan struct{}
	// onDrain runs once, inside the first stream, after its last fragment.
	onDrain func()
}

func (f *fakeCompleter) Complete(ctx context.Context, req models.CompletionRequest) (models.TextStream, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	onDrain := f.onDrain
	f.onDrain = nil
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &sliceStream{ctx: ctx, parts: f.parts, block: f.block, onDrain: onDrain}, nil
}

func (f *fakeCompleter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]models.Product{
		{ID: "tent-tall", Name: "Tall Tent"},
		{ID: "sleeping-bag-winter", Name: "Winter Bag"},
	})
	require.NoError(t, err)
	return c
}

func TestRecommendResolvesProducts(t *testing.T) {
	reg := metrics.NewRegistry()
	fc := &fakeCompleter{parts: []string{"Try the [tent-tall] ", "and [sleeping-bag-winter], ", "not [made-up]."}}
	svc := assistant.New(testCatalog(t), fc, prompting.ModeStrict, nil, reg)

	answer, err := svc.Recommend(context.Background(), "", "  winter camping  ")
	require.NoError(t, err)
	require.Equal(t, "Try the [tent-tall] and [sleeping-bag-winter], not [made-up].", answer.Reply)
	require.Len(t, answer.Products, 2)
	require.Equal(t, "tent-tall", answer.Products[0].ID)
	require.Equal(t, "sleeping-bag-winter", answer.Products[1].ID)
	require.Equal(t, []string{"made-up"}, answer.Unresolved)

	require.Len(t, fc.requests, 1)
	req := fc.requests[0]
	require.Equal(t, "winter camping", req.Query)
	require.Contains(t, req.System, "[tent-tall]")
	require.Contains(t, req.System, "clearly match")
	require.Equal(t, prompting.ModeStrict.Temperature(), req.Temperature)

	require.EqualValues(t, 1, reg.Value(metrics.AssistantQueries, metrics.Labels{"mode": "strict", "outcome": "ok"}))
	require.EqualValues(t, 2, reg.Value(metrics.AssistantTokens, metrics.Labels{"resolved": "true"}))
	require.EqualValues(t, 1, reg.Value(metrics.AssistantTokens, metrics.Labels{"resolved": "false"}))
}

func TestEmptyQueryIsRejectedWithoutCall(t *testing.T) {
	fc := &fakeCompleter{}
	svc := assistant.New(testCatalog(t), fc, prompting.ModePermissive, nil, nil)

	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := svc.Recommend(context.Background(), "", q)
		require.Error(t, err)
		require.True(t, domain.IsType(err, domain.ErrorTypeValidation))
	}
	require.Zero(t, fc.calls())
}

func TestCompleterErrorIsReturned(t *testing.T) {
	fc := &fakeCompleter{err: domain.ConfigError("OPENAI_API_KEY is not set", nil)}
	sessions := session.NewRegistry(time.Minute, nil)
	svc := assistant.New(testCatalog(t), fc, prompting.ModePermissive, sessions, nil)

	_, err := svc.Ask(context.Background(), "s1", "tent")
	require.True(t, domain.IsType(err, domain.ErrorTypeConfig))
	require.Zero(t, sessions.Len())
}

func TestNewerQuerySupersedesOlder(t *testing.T) {
	fc := &fakeCompleter{parts: []string{"[tent-tall]"}, block: true, started: make(chan struct{}, 2)}
	sessions := session.NewRegistry(time.Minute, nil)
	svc := assistant.New(testCatalog(t), fc, prompting.ModePermissive, sessions, nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := svc.Recommend(context.Background(), "shopper", "first question")
		errCh <- err
	}()
	<-fc.started

	newer, err := svc.Ask(context.Background(), "shopper", "second question")
	require.NoError(t, err)
	<-fc.started

	select {
	case err := <-errCh:
		require.Error(t, err)
		require.True(t, domain.IsType(err, domain.ErrorTypeSuperseded))
	case <-time.After(time.Second):
		t.Fatal("older query was not cancelled")
	}

	require.True(t, newer.Next())
	require.Equal(t, "[tent-tall]", newer.Text())
	require.NoError(t, newer.Close())
	require.Zero(t, sessions.Len())
}

func TestSupersededAfterCleanDrainIsCounted(t *testing.T) {
	reg := metrics.NewRegistry()
	sessions := session.NewRegistry(time.Minute, nil)
	fc := &fakeCompleter{parts: []string{"[tent-tall]"}}
	svc := assistant.New(testCatalog(t), fc, prompting.ModePermissive, sessions, reg)

	var newer models.TextStream
	fc.onDrain = func() {
		var err error
		newer, err = svc.Ask(context.Background(), "shopper", "second question")
		require.NoError(t, err)
	}

	_, err := svc.Recommend(context.Background(), "shopper", "first question")
	require.True(t, domain.IsType(err, domain.ErrorTypeSuperseded))

	superseded := metrics.Labels{"mode": "permissive", "outcome": "superseded"}
	ok := metrics.Labels{"mode": "permissive", "outcome": "ok"}
	require.EqualValues(t, 1, reg.Value(metrics.AssistantQueries, superseded))
	require.Zero(t, reg.Value(metrics.AssistantQueries, ok))

	require.NotNil(t, newer)
	require.NoError(t, newer.Close())
	require.EqualValues(t, 1, reg.Value(metrics.AssistantQueries, ok))
	require.Zero(t, sessions.Len())
}

func TestExpiredCallIsUpstreamError(t *testing.T) {
	reg := metrics.NewRegistry()
	sessions := session.NewRegistry(20*time.Millisecond, nil)
	fc := &fakeCompleter{parts: []string{"Let me think"}, block: true}
	svc := assistant.New(testCatalog(t), fc, prompting.ModeStrict, sessions, reg)

	_, err := svc.Recommend(context.Background(), "slow", "a long answer please")
	require.Error(t, err)
	require.True(t, domain.IsType(err, domain.ErrorTypeUpstream))
	require.ErrorIs(t, err, session.ErrExpired)
	require.EqualValues(t, 1, reg.Value(metrics.AssistantQueries, metrics.Labels{"mode": "strict", "outcome": "upstream"}))
	require.Zero(t, sessions.Len())
}

func TestResolveEmptyReply(t *testing.T) {
	svc := assistant.New(testCatalog(t), &fakeCompleter{}, prompting.ModePermissive, nil, nil)

	answer := svc.Resolve(context.Background(), "")
	require.Empty(t, answer.Products)
	require.Empty(t, answer.Unresolved)
}
