package client

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"book-companion/internal/domain"
)

// FallbackReply is shown when the relay cannot be reached or answers garbage.
const FallbackReply = "Sorry, I encountered an error processing your question."

// ExampleQuestions are offered while the conversation is empty.
var ExampleQuestions = []string{
	"What are the main themes in Amity Profess?",
	"Explain the key concepts in chapter 3",
	"How does the protagonist develop throughout the story?",
	"What is the significance of the title?",
}

// Snapshot is the state a renderer consumes.
type Snapshot struct {
	Turns []domain.Turn
	State State
	Draft string
}

type Observer func(Snapshot)

// Conversation owns one session's turns. Turns are only ever appended and live
// in memory for the lifetime of the value.
type Conversation struct {
	relay     Relay
	logger    *slog.Logger
	observers []Observer

	mu    sync.Mutex
	turns []domain.Turn
	state State
	draft string
}

type Option func(*Conversation)

// WithObserver registers fn to receive a snapshot after every change.
func WithObserver(fn Observer) Option {
	return func(c *Conversation) {
		if fn != nil {
			c.observers = append(c.observers, fn)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Conversation) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func New(relay Relay, opts ...Option) (*Conversation, error) {
	if relay == nil {
		return nil, errors.New("client: relay must not be nil")
	}
	c := &Conversation{relay: relay, logger: slog.Default(), state: StateIdle}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Conversation) SetDraft(text string) {
	c.mu.Lock()
	c.draft = text
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
}

func (c *Conversation) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

func (c *Conversation) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Turns returns a copy of the conversation so far.
func (c *Conversation) Turns() []domain.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.turns)
}

func (c *Conversation) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// SubmitDraft submits the current draft input.
func (c *Conversation) SubmitDraft(ctx context.Context) bool {
	return c.Submit(ctx, c.Draft())
}

// Submit appends a user turn, calls the relay with the whole conversation and
// appends the assistant turn it produces. It blocks until the call settles and
// reports whether the submission was accepted: blank text, or text submitted
// while another call is in flight, is dropped without touching any state.
func (c *Conversation) Submit(ctx context.Context, text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	c.mu.Lock()
	next, ok := c.state.begin()
	if !ok {
		c.mu.Unlock()
		c.logger.Debug("submission dropped while awaiting reply")
		return false
	}
	c.state = next
	c.turns = append(c.turns, domain.Turn{Role: domain.RoleUser, Content: text})
	c.draft = ""
	history := slices.Clone(c.turns)
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)

	answer := c.ask(ctx, history)

	c.mu.Lock()
	c.turns = append(c.turns, answer)
	c.state = c.state.settle()
	snap = c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
	return true
}

func (c *Conversation) ask(ctx context.Context, history []domain.Turn) domain.Turn {
	reply, err := c.relay.Send(ctx, history)
	switch {
	case err != nil:
		c.logger.Error("chat relay call failed", "err", err)
		return domain.Turn{Role: domain.RoleAssistant, Content: FallbackReply}
	case reply.Error != "":
		return domain.Turn{Role: domain.RoleAssistant, Content: "Error: " + reply.Error}
	default:
		return domain.Turn{Role: domain.RoleAssistant, Content: reply.Message}
	}
}

func (c *Conversation) snapshotLocked() Snapshot {
	return Snapshot{Turns: slices.Clone(c.turns), State: c.state, Draft: c.draft}
}

func (c *Conversation) notify(snap Snapshot) {
	for _, fn := range c.observers {
		fn(snap)
	}
}
