package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"notechat/internal/domain"
)

const (
	dialogueKeyPrefix = "dialogue_"
	versionKey        = "cache_version"

	// CacheVersion gates one-shot legacy purges. Bump it to force another
	// destructive scan on the next start.
	CacheVersion = "v2"
)

// ErrQuotaExceeded is returned by a KV medium when a write is rejected for
// capacity reasons.
var ErrQuotaExceeded = errors.New("repository: storage quota exceeded")

// StorageExhaustedError is the adapter's own capacity failure, distinct from
// the medium's error. The in-memory conversation is left untouched when it is
// returned.
type StorageExhaustedError struct {
	Key string
	Err error
}

func (e *StorageExhaustedError) Error() string {
	return fmt.Sprintf("repository: durable write for %q rejected, storage exhausted: %v", e.Key, e.Err)
}

func (e *StorageExhaustedError) Unwrap() error {
	return e.Err
}

// KV is the byte-valued key-value medium conversations are persisted to.
// Set returns ErrQuotaExceeded (possibly wrapped) when capacity is exceeded.
type KV interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
	List(prefix string) ([]string, error)
}

// Adapter persists one conversation record per topic under a namespaced key.
type Adapter struct {
	kv  KV
	log *slog.Logger
}

// NewAdapter creates an Adapter over the given medium.
func NewAdapter(kv KV, log *slog.Logger) (*Adapter, error) {
	if kv == nil {
		return nil, errors.New("repository: kv medium must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{kv: kv, log: log}, nil
}

func dialogueKey(topicID string) string {
	return dialogueKeyPrefix + topicID
}

// Save serializes the conversation and writes it under its topic key. A
// capacity failure from the medium is converted to *StorageExhaustedError.
func (a *Adapter) Save(topicID string, conv *domain.Conversation) error {
	if strings.TrimSpace(topicID) == "" {
		return errors.New("repository: Save: topic id must not be empty")
	}
	if conv == nil {
		return errors.New("repository: Save: conversation must not be nil")
	}

	key := dialogueKey(topicID)
	data, err := json.Marshal(toRecord(conv))
	if err != nil {
		return fmt.Errorf("repository: Save marshal %q: %w", key, err)
	}
	if err := a.kv.Set(key, data); err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			return &StorageExhaustedError{Key: key, Err: err}
		}
		return fmt.Errorf("repository: Save write %q: %w", key, err)
	}
	return nil
}

// Load reads and decodes the conversation for a topic. A corrupt or
// unparsable payload is treated as absent, never as a fatal error.
func (a *Adapter) Load(topicID string) (*domain.Conversation, bool, error) {
	key := dialogueKey(topicID)
	data, ok, err := a.kv.Get(key)
	if err != nil {
		return nil, false, fmt.Errorf("repository: Load read %q: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	var rec conversationRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		a.log.Warn("discarding corrupt conversation record", "key", key, "err", err)
		return nil, false, nil
	}
	conv, err := rec.toConversation()
	if err != nil {
		a.log.Warn("discarding undecodable conversation record", "key", key, "err", err)
		return nil, false, nil
	}
	return conv, true, nil
}

// PurgeAll deletes every persisted conversation record. Idempotent; invoked
// once by the application shell before first interactive render.
func (a *Adapter) PurgeAll() error {
	keys, err := a.kv.List(dialogueKeyPrefix)
	if err != nil {
		return fmt.Errorf("repository: PurgeAll list: %w", err)
	}
	for _, key := range keys {
		if err := a.kv.Delete(key); err != nil {
			return fmt.Errorf("repository: PurgeAll delete %q: %w", key, err)
		}
	}
	return nil
}

// PurgeLegacy removes conversation records for known legacy topic ids. The
// scan runs only once per CacheVersion: once the stored marker matches, later
// calls are no-ops.
func (a *Adapter) PurgeLegacy(legacyTopicIDs []string) error {
	current, ok, err := a.kv.Get(versionKey)
	if err != nil {
		return fmt.Errorf("repository: PurgeLegacy read marker: %w", err)
	}
	if ok && string(current) == CacheVersion {
		return nil
	}

	for _, id := range legacyTopicIDs {
		if err := a.kv.Delete(dialogueKey(id)); err != nil {
			return fmt.Errorf("repository: PurgeLegacy delete %q: %w", id, err)
		}
	}
	if err := a.kv.Set(versionKey, []byte(CacheVersion)); err != nil {
		return fmt.Errorf("repository: PurgeLegacy write marker: %w", err)
	}
	return nil
}
