package dialogue

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"notechat/internal/domain"
)

// Client performs the remote dialogue call. History carries sender+content
// pairs for the turns before the one being sent.
type Client interface {
	GetReply(ctx context.Context, topicID, message string, history []domain.ChatMessage, title, description string) (domain.Reply, error)
}

// Saver persists a conversation snapshot. *repository.Adapter satisfies
// this interface.
type Saver interface {
	Save(topicID string, conv *domain.Conversation) error
}

// Session orchestrates sending a message: optimistic insert, remote call,
// reconciliation, persistence, error recovery. It also tracks which topic
// is currently viewed.
type Session struct {
	store   *Store
	client  Client
	durable Saver
	reveal  *Scheduler

	inFlight atomic.Bool
	now      func() time.Time

	mu      sync.Mutex
	current *domain.Topic
}

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithRevealScheduler attaches a scheduler whose animations are cancelled
// when the session switches topics.
func WithRevealScheduler(sched *Scheduler) SessionOption {
	return func(s *Session) {
		s.reveal = sched
	}
}

// WithSessionClock overrides the time source, for tests.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		s.now = now
	}
}

// NewSession creates a Session over the given collaborators.
func NewSession(store *Store, client Client, durable Saver, opts ...SessionOption) (*Session, error) {
	if store == nil {
		return nil, errors.New("dialogue: store must not be nil")
	}
	if client == nil {
		return nil, errors.New("dialogue: client must not be nil")
	}
	if durable == nil {
		return nil, errors.New("dialogue: durable saver must not be nil")
	}
	s := &Session{store: store, client: client, durable: durable, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SendMessage appends the user's message optimistically, awaits the remote
// reply, and reconciles. On success the turn is persisted and the new
// snapshot returned. On remote failure the user message is marked failed,
// nothing is persisted, and a *RemoteError is returned so the caller can
// restore the draft. A *repository.StorageExhaustedError is returned
// together with the retained snapshot when only the durable write failed.
//
// Reconciliation is keyed by the topic id captured here, never by the
// current-topic pointer, so a reply arriving after a topic switch still
// lands in the right conversation.
func (s *Session) SendMessage(ctx context.Context, topic domain.Topic, text string) (*domain.Conversation, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, ErrSendInFlight
	}
	defer s.inFlight.Store(false)

	topicID := topic.ID

	// History excludes the message being sent.
	prior := s.store.Get(topicID)
	history := domain.History(prior.Messages)

	userMsg := domain.Message{
		ID:        newMessageID(),
		Sender:    domain.SenderUser,
		Content:   text,
		Timestamp: s.now(),
		Status:    domain.StatusPending,
	}
	s.store.Append(topicID, userMsg)

	reply, err := s.client.GetReply(ctx, topicID, text, history, topic.Title, topic.Description)
	if err != nil {
		s.store.UpdateStatus(topicID, userMsg.ID, domain.StatusFailed)
		var re *RemoteError
		if errors.As(err, &re) {
			return nil, err
		}
		return nil, &RemoteError{Reason: "dialogue request failed", Err: err}
	}

	ts := reply.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	assistant := domain.Message{
		ID:        newMessageID(),
		Sender:    domain.SenderAssistant,
		Content:   reply.Message,
		Timestamp: ts,
	}
	conv := s.store.CompleteTurn(topicID, userMsg.ID, assistant)

	if err := s.durable.Save(topicID, conv); err != nil {
		// Durability is lost for this turn but the session stays usable.
		return conv, err
	}
	return conv, nil
}

// SwitchTopic makes the topic current, hydrates its conversation if needed,
// and cancels any running reveal animations for the departed view.
func (s *Session) SwitchTopic(topic domain.Topic) *domain.Conversation {
	s.mu.Lock()
	t := topic
	s.current = &t
	s.mu.Unlock()

	if s.reveal != nil {
		s.reveal.CancelAll()
	}
	return s.store.Get(topic.ID)
}

// CurrentTopic returns the currently viewed topic, if one was switched to.
func (s *Session) CurrentTopic() (domain.Topic, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return domain.Topic{}, false
	}
	return *s.current, true
}

var newMessageID = func() string {
	return "msg-" + uuid.NewString()
}
