package dialogue

import (
	"sync"
	"time"

	"notechat/internal/domain"
)

// Hydrator loads a previously persisted conversation for a topic.
// *repository.Adapter satisfies this interface.
type Hydrator interface {
	Load(topicID string) (*domain.Conversation, bool, error)
}

// WatchFunc receives a snapshot after every store mutation.
type WatchFunc func(topicID string, conv *domain.Conversation)

// Store is the single authoritative in-memory map of topic id to
// conversation. It hydrates lazily from durable storage and is the only
// place a conversation's message sequence is mutated.
type Store struct {
	mu       sync.Mutex
	hydrator Hydrator
	convs    map[string]*domain.Conversation
	watchers []WatchFunc
	now      func() time.Time
}

// StoreOption customizes a Store.
type StoreOption func(*Store)

// WithStoreClock overrides the time source, for tests.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a Store. hydrator may be nil, in which case every topic
// starts with an empty conversation.
func NewStore(hydrator Hydrator, opts ...StoreOption) *Store {
	s := &Store{
		hydrator: hydrator,
		convs:    map[string]*domain.Conversation{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Watch registers an observer for store mutations. Observers are invoked
// synchronously, outside the store lock, with defensive snapshots.
func (s *Store) Watch(fn WatchFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, fn)
}

// Get returns the conversation for a topic, hydrating from durable storage
// on first access and creating an empty conversation when nothing is stored.
// Never returns nil. The returned value is a snapshot.
func (s *Store) Get(topicID string) *domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(topicID).Clone()
}

func (s *Store) getOrCreateLocked(topicID string) *domain.Conversation {
	if conv, ok := s.convs[topicID]; ok {
		return conv
	}
	if s.hydrator != nil {
		// Hydration failures degrade to an empty conversation; the adapter
		// already treats corrupt records as absent.
		if conv, ok, err := s.hydrator.Load(topicID); err == nil && ok {
			s.convs[topicID] = conv
			return conv
		}
	}
	now := s.now()
	conv := &domain.Conversation{
		TopicID:   topicID,
		Messages:  []domain.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.convs[topicID] = conv
	return conv
}

// Append inserts the message at the end of the topic's conversation and
// returns the new snapshot. Persistence is the caller's responsibility.
func (s *Store) Append(topicID string, msg domain.Message) *domain.Conversation {
	s.mu.Lock()
	conv := s.getOrCreateLocked(topicID)
	conv.Messages = append(conv.Messages, msg)
	conv.UpdatedAt = s.now()
	snapshot := conv.Clone()
	s.mu.Unlock()

	s.notify(topicID, snapshot)
	return snapshot
}

// UpdateStatus replaces the delivery status of the identified message.
// No-op when the topic or message is absent.
func (s *Store) UpdateStatus(topicID, messageID string, status domain.DeliveryStatus) {
	s.mu.Lock()
	conv, ok := s.convs[topicID]
	if !ok {
		s.mu.Unlock()
		return
	}
	i := conv.FindMessage(messageID)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	conv.Messages[i].Status = status
	snapshot := conv.Clone()
	s.mu.Unlock()

	s.notify(topicID, snapshot)
}

// CompleteTurn confirms the user message and appends the assistant reply as
// one atomic transition: observers never see a confirmed user message
// without its reply.
func (s *Store) CompleteTurn(topicID, userMessageID string, assistant domain.Message) *domain.Conversation {
	s.mu.Lock()
	conv := s.getOrCreateLocked(topicID)
	if i := conv.FindMessage(userMessageID); i >= 0 {
		conv.Messages[i].Status = domain.StatusConfirmed
	}
	conv.Messages = append(conv.Messages, assistant)
	conv.UpdatedAt = s.now()
	snapshot := conv.Clone()
	s.mu.Unlock()

	s.notify(topicID, snapshot)
	return snapshot
}

// Reset discards every in-memory conversation. Durable records are not
// touched.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs = map[string]*domain.Conversation{}
}

func (s *Store) notify(topicID string, snapshot *domain.Conversation) {
	s.mu.Lock()
	watchers := make([]WatchFunc, len(s.watchers))
	copy(watchers, s.watchers)
	s.mu.Unlock()

	for _, fn := range watchers {
		fn(topicID, snapshot.Clone())
	}
}
