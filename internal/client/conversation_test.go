package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"book-companion/internal/domain"
)

type sendResult struct {
	reply Reply
	err   error
}

// scriptedRelay answers calls in order and records what it was sent.
type scriptedRelay struct {
	mu      sync.Mutex
	results []sendResult
	sent    [][]domain.Turn
}

func (s *scriptedRelay) Send(_ context.Context, turns []domain.Turn) (Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, turns)
	r := s.results[0]
	if len(s.results) > 1 {
		s.results = s.results[1:]
	}
	return r.reply, r.err
}

// blockingRelay holds every call until release is closed.
type blockingRelay struct {
	started chan []domain.Turn
	release chan struct{}
	reply   Reply
}

func (b *blockingRelay) Send(ctx context.Context, turns []domain.Turn) (Reply, error) {
	b.started <- turns
	select {
	case <-b.release:
		return b.reply, nil
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
}

func newTestConversation(t *testing.T, relay Relay, opts ...Option) *Conversation {
	t.Helper()
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	c, err := New(relay, opts...)
	require.NoError(t, err)
	return c
}

func user(s string) domain.Turn      { return domain.Turn{Role: domain.RoleUser, Content: s} }
func assistant(s string) domain.Turn { return domain.Turn{Role: domain.RoleAssistant, Content: s} }

func TestNew_NilRelay(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestSubmit_Success(t *testing.T) {
	relay := &scriptedRelay{results: []sendResult{{reply: Reply{Message: "Theme A, Theme B"}}}}
	c := newTestConversation(t, relay)

	require.True(t, c.Submit(context.Background(), "What are the main themes?"))
	require.Equal(t, []domain.Turn{
		user("What are the main themes?"),
		assistant("Theme A, Theme B"),
	}, c.Turns())
	require.Equal(t, StateIdle, c.State())
	require.Equal(t, [][]domain.Turn{{user("What are the main themes?")}}, relay.sent)
}

func TestSubmit_MessageKeptExactly(t *testing.T) {
	msg := "  Leading space,\n\ttabs and *markdown*  "
	relay := &scriptedRelay{results: []sendResult{{reply: Reply{Message: msg}}}}
	c := newTestConversation(t, relay)

	require.True(t, c.Submit(context.Background(), "q"))
	require.Equal(t, msg, c.Turns()[1].Content)
}

func TestSubmit_RelayReportedError(t *testing.T) {
	relay := &scriptedRelay{results: []sendResult{{reply: Reply{Error: "Failed to get response from AI service"}}}}
	c := newTestConversation(t, relay)

	require.True(t, c.Submit(context.Background(), "hello"))
	require.Equal(t, assistant("Error: Failed to get response from AI service"), c.Turns()[1])
	require.Equal(t, StateIdle, c.State())
}

func TestSubmit_ErrorWinsOverMessage(t *testing.T) {
	relay := &scriptedRelay{results: []sendResult{{reply: Reply{Message: "ignored", Error: "Internal server error"}}}}
	c := newTestConversation(t, relay)

	require.True(t, c.Submit(context.Background(), "hello"))
	require.Equal(t, "Error: Internal server error", c.Turns()[1].Content)
}

func TestSubmit_TransportFailure(t *testing.T) {
	relay := &scriptedRelay{results: []sendResult{{err: errors.New("connection refused")}}}
	c := newTestConversation(t, relay)

	require.True(t, c.Submit(context.Background(), "hello"))
	require.Equal(t, []domain.Turn{user("hello"), assistant(FallbackReply)}, c.Turns())
	require.Equal(t, "Sorry, I encountered an error processing your question.", FallbackReply)
	require.Equal(t, StateIdle, c.State())
}

func TestSubmit_BlankIsNoOp(t *testing.T) {
	relay := &scriptedRelay{results: []sendResult{{reply: Reply{Message: "unused"}}}}
	c := newTestConversation(t, relay)
	c.SetDraft("   ")

	for _, text := range []string{"", "   ", "\n\t"} {
		require.False(t, c.Submit(context.Background(), text))
	}
	require.Empty(t, c.Turns())
	require.Empty(t, relay.sent)
	require.Equal(t, "   ", c.Draft())
}

func TestSubmit_SameTextTwiceProducesTwoPairs(t *testing.T) {
	relay := &scriptedRelay{results: []sendResult{
		{reply: Reply{Message: "first answer"}},
		{reply: Reply{Message: "second answer"}},
	}}
	c := newTestConversation(t, relay)

	require.True(t, c.Submit(context.Background(), "Same question"))
	require.True(t, c.Submit(context.Background(), "Same question"))

	require.Equal(t, []domain.Turn{
		user("Same question"),
		assistant("first answer"),
		user("Same question"),
		assistant("second answer"),
	}, c.Turns())

	require.Len(t, relay.sent, 2)
	require.Len(t, relay.sent[1], 3, "the second call carries the full history")
}

func TestSubmit_UserTurnAppendedBeforeReplyAndReentrancyDropped(t *testing.T) {
	relay := &blockingRelay{
		started: make(chan []domain.Turn, 1),
		release: make(chan struct{}),
		reply:   Reply{Message: "answer"},
	}
	c := newTestConversation(t, relay)

	done := make(chan bool)
	go func() { done <- c.Submit(context.Background(), "first") }()

	sent := <-relay.started
	require.Equal(t, []domain.Turn{user("first")}, sent)

	// Reply still pending.
	require.Equal(t, StateAwaiting, c.State())
	require.Equal(t, []domain.Turn{user("first")}, c.Turns())

	c.SetDraft("second")
	require.False(t, c.Submit(context.Background(), "second"))
	require.False(t, c.SubmitDraft(context.Background()))
	require.Equal(t, StateAwaiting, c.State())
	require.Equal(t, []domain.Turn{user("first")}, c.Turns())
	require.Equal(t, "second", c.Draft())

	close(relay.release)
	require.True(t, <-done)
	require.Equal(t, []domain.Turn{user("first"), assistant("answer")}, c.Turns())
	require.Equal(t, StateIdle, c.State())
}

func TestSubmit_CancelledContextFallsBack(t *testing.T) {
	relay := &blockingRelay{started: make(chan []domain.Turn, 1), release: make(chan struct{})}
	c := newTestConversation(t, relay)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.True(t, c.Submit(ctx, "hello"))
	require.Equal(t, assistant(FallbackReply), c.Turns()[1])
	require.Equal(t, StateIdle, c.State())
}

func TestSubmitDraft_ClearsDraft(t *testing.T) {
	relay := &scriptedRelay{results: []sendResult{{reply: Reply{Message: "ok"}}}}
	c := newTestConversation(t, relay)

	c.SetDraft("What is the significance of the title?")
	require.True(t, c.SubmitDraft(context.Background()))
	require.Empty(t, c.Draft())
	require.Equal(t, user("What is the significance of the title?"), c.Turns()[0])
}

func TestObserver_SeesEveryTransition(t *testing.T) {
	relay := &scriptedRelay{results: []sendResult{{reply: Reply{Message: "ok"}}}}
	var snaps []Snapshot
	c := newTestConversation(t, relay, WithObserver(func(s Snapshot) { snaps = append(snaps, s) }))

	c.SetDraft("hi")
	require.True(t, c.SubmitDraft(context.Background()))

	require.Len(t, snaps, 3)
	require.Equal(t, Snapshot{Draft: "hi", State: StateIdle}, snaps[0])
	require.Equal(t, StateAwaiting, snaps[1].State)
	require.Equal(t, []domain.Turn{user("hi")}, snaps[1].Turns)
	require.Empty(t, snaps[1].Draft)
	require.Equal(t, StateIdle, snaps[2].State)
	require.Len(t, snaps[2].Turns, 2)
}

func TestTurns_ReturnsCopy(t *testing.T) {
	relay := &scriptedRelay{results: []sendResult{{reply: Reply{Message: "ok"}}}}
	c := newTestConversation(t, relay)
	require.True(t, c.Submit(context.Background(), "hi"))

	turns := c.Turns()
	turns[0].Content = "mutated"
	require.Equal(t, "hi", c.Turns()[0].Content)
}

func TestState_Transitions(t *testing.T) {
	next, ok := StateIdle.begin()
	require.True(t, ok)
	require.Equal(t, StateAwaiting, next)

	next, ok = StateAwaiting.begin()
	require.False(t, ok)
	require.Equal(t, StateAwaiting, next)

	require.Equal(t, StateIdle, StateAwaiting.settle())
	require.Equal(t, StateIdle, StateIdle.settle())

	require.Equal(t, "idle", StateIdle.String())
	require.Equal(t, "awaiting", StateAwaiting.String())
	require.Equal(t, "unknown", State(9).String())
}

func TestExampleQuestions(t *testing.T) {
	require.Len(t, ExampleQuestions, 4)
	require.Contains(t, ExampleQuestions, "What are the main themes in Amity Profess?")
}
