package dialogue

import (
	"sync"
	"time"

	"notechat/internal/domain"
)

// RevealPhase is the state of a message's reveal animation.
type RevealPhase int

const (
	PhaseIdle RevealPhase = iota
	PhaseRevealing
	PhaseComplete
)

func (p RevealPhase) String() string {
	switch p {
	case PhaseRevealing:
		return "revealing"
	case PhaseComplete:
		return "complete"
	default:
		return "idle"
	}
}

const (
	defaultRevealInterval = 20 * time.Millisecond
	defaultRecencyWindow  = 5 * time.Second
)

// TickFunc receives each newly revealed position together with the visible
// prefix of the content.
type TickFunc func(position int, visible string)

type revealEntry struct {
	gen        uint64
	runes      []rune
	pos        int
	timer      *time.Timer
	onTick     TickFunc
	onComplete func()
}

// Scheduler paces the character-by-character reveal of freshly produced
// assistant messages. Timer tokens live in an arena keyed by message id, so
// cancellation makes late-firing callbacks provably inert. Messages
// hydrated from durable storage are never animated.
type Scheduler struct {
	mu         sync.Mutex
	startDelay time.Duration
	interval   time.Duration
	recency    time.Duration
	entries    map[string]*revealEntry
	completed  map[string]struct{}
	gen        uint64
	now        func() time.Time
}

// SchedulerOption customizes a Scheduler.
type SchedulerOption func(*Scheduler)

// WithStartDelay sets the delay before the first character appears.
func WithStartDelay(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.startDelay = d
	}
}

// WithCharInterval sets the per-character reveal interval.
func WithCharInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.interval = d
	}
}

// WithRecencyWindow sets how recent a message's timestamp must be for it to
// count as freshly produced.
func WithRecencyWindow(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.recency = d
	}
}

// WithSchedulerClock overrides the time source, for tests.
func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		s.now = now
	}
}

// NewScheduler creates a Scheduler with the given options.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		interval:  defaultRevealInterval,
		recency:   defaultRecencyWindow,
		entries:   map[string]*revealEntry{},
		completed: map[string]struct{}{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Observe classifies the message and, when it is freshly produced, begins
// revealing it: one additional rune per interval after the start delay,
// then onComplete. A stale or user-authored message is reported complete
// immediately with no animation and no callback. A message already revealed
// once stays complete on re-observation.
//
// Observing a message that is currently revealing with different content
// resets the animation for the new content.
func (s *Scheduler) Observe(msg domain.Message, onTick TickFunc, onComplete func()) RevealPhase {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, done := s.completed[msg.ID]; done {
		return PhaseComplete
	}
	if msg.Sender != domain.SenderAssistant || s.now().Sub(msg.Timestamp) > s.recency {
		s.completed[msg.ID] = struct{}{}
		return PhaseComplete
	}
	if msg.Content == "" {
		s.completed[msg.ID] = struct{}{}
		return PhaseComplete
	}

	if e, ok := s.entries[msg.ID]; ok {
		if string(e.runes) == msg.Content {
			return PhaseRevealing
		}
		// Different content in the same slot: discard the partial reveal.
		e.timer.Stop()
		delete(s.entries, msg.ID)
	}

	s.gen++
	e := &revealEntry{
		gen:        s.gen,
		runes:      []rune(msg.Content),
		onTick:     onTick,
		onComplete: onComplete,
	}
	s.entries[msg.ID] = e

	id, gen := msg.ID, e.gen
	first := s.interval
	if s.startDelay > 0 {
		first = s.startDelay
	}
	e.timer = time.AfterFunc(first, func() {
		s.step(id, gen)
	})
	return PhaseRevealing
}

func (s *Scheduler) step(id string, gen uint64) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok || e.gen != gen {
		// Cancelled or superseded; this fire is inert.
		s.mu.Unlock()
		return
	}

	e.pos++
	pos := e.pos
	visible := string(e.runes[:pos])
	done := pos >= len(e.runes)
	onTick, onComplete := e.onTick, e.onComplete
	if done {
		delete(s.entries, id)
		s.completed[id] = struct{}{}
	} else {
		e.timer = time.AfterFunc(s.interval, func() {
			s.step(id, gen)
		})
	}
	s.mu.Unlock()

	if onTick != nil {
		onTick(pos, visible)
	}
	if done && onComplete != nil {
		onComplete()
	}
}

// Cancel stops a running reveal, discarding the partial position. The
// completion callback will not fire. The message is not marked complete, so
// re-observing it while still recent starts the animation over.
func (s *Scheduler) Cancel(messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[messageID]; ok {
		e.timer.Stop()
		delete(s.entries, messageID)
	}
}

// CancelAll stops every running reveal, as on topic switch or teardown.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		e.timer.Stop()
		delete(s.entries, id)
	}
}

// Phase reports the reveal state of a message.
func (s *Scheduler) Phase(messageID string) RevealPhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.completed[messageID]; ok {
		return PhaseComplete
	}
	if _, ok := s.entries[messageID]; ok {
		return PhaseRevealing
	}
	return PhaseIdle
}

// Position reports how many characters of a revealing message are visible.
func (s *Scheduler) Position(messageID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[messageID]; ok {
		return e.pos
	}
	return 0
}
