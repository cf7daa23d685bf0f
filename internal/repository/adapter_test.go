package repository

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"notechat/internal/domain"
)

type memoryKV struct {
	data    map[string][]byte
	setErr  error
	getErr  error
	deleted []string
}

func newMemoryKV() *memoryKV {
	return &memoryKV{data: map[string][]byte{}}
}

func (m *memoryKV) Get(key string) ([]byte, bool, error) {
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memoryKV) Set(key string, value []byte) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func (m *memoryKV) Delete(key string) error {
	delete(m.data, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *memoryKV) List(prefix string) ([]string, error) {
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func sampleConversation(topicID string) *domain.Conversation {
	base := time.Date(2026, 2, 11, 15, 4, 5, 123456789, time.UTC)
	return &domain.Conversation{
		TopicID: topicID,
		Messages: []domain.Message{
			{
				ID:        "m1",
				Sender:    domain.SenderUser,
				Content:   "what is a goroutine?",
				Timestamp: base,
				Status:    domain.StatusConfirmed,
			},
			{
				ID:        "m2",
				Sender:    domain.SenderAssistant,
				Content:   "a lightweight thread managed by the runtime",
				Timestamp: base.Add(2 * time.Second),
			},
		},
		CreatedAt: base,
		UpdatedAt: base.Add(2 * time.Second),
	}
}

func newTestAdapter(t *testing.T, kv KV) *Adapter {
	t.Helper()
	a, err := NewAdapter(kv, nil)
	require.NoError(t, err)
	return a
}

func TestNewAdapter_RequiresMedium(t *testing.T) {
	_, err := NewAdapter(nil, nil)
	require.Error(t, err)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	kv := newMemoryKV()
	a := newTestAdapter(t, kv)
	conv := sampleConversation("t1")

	require.NoError(t, a.Save("t1", conv))

	got, ok, err := a.Load("t1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, conv, got)
}

func TestSave_ValidatesArguments(t *testing.T) {
	a := newTestAdapter(t, newMemoryKV())

	require.Error(t, a.Save("  ", sampleConversation("t1")))
	require.Error(t, a.Save("t1", nil))
}

func TestSave_QuotaFailureBecomesStorageExhausted(t *testing.T) {
	kv := newMemoryKV()
	kv.setErr = ErrQuotaExceeded
	a := newTestAdapter(t, kv)

	err := a.Save("t1", sampleConversation("t1"))

	var se *StorageExhaustedError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "dialogue_t1", se.Key)
	require.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestSave_OtherWriteErrorsPassThrough(t *testing.T) {
	kv := newMemoryKV()
	kv.setErr = errors.New("disk detached")
	a := newTestAdapter(t, kv)

	err := a.Save("t1", sampleConversation("t1"))

	var se *StorageExhaustedError
	require.False(t, errors.As(err, &se))
	require.ErrorContains(t, err, "disk detached")
}

func TestLoad_AbsentTopic(t *testing.T) {
	a := newTestAdapter(t, newMemoryKV())

	got, ok, err := a.Load("missing")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, got)
}

func TestLoad_CorruptRecordIsTreatedAsAbsent(t *testing.T) {
	kv := newMemoryKV()
	kv.data["dialogue_t1"] = []byte("{not json")
	a := newTestAdapter(t, kv)

	got, ok, err := a.Load("t1")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, got)
}

func TestLoad_UndecodableTimestampIsTreatedAsAbsent(t *testing.T) {
	kv := newMemoryKV()
	kv.data["dialogue_t1"] = []byte(`{"topicId":"t1","messages":[],"createdAt":"yesterday","updatedAt":"today"}`)
	a := newTestAdapter(t, kv)

	_, ok, err := a.Load("t1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLoad_ReadErrorIsFatal(t *testing.T) {
	kv := newMemoryKV()
	kv.getErr = errors.New("io timeout")
	a := newTestAdapter(t, kv)

	_, _, err := a.Load("t1")
	require.ErrorContains(t, err, "io timeout")
}

func TestPurgeAll_DeletesOnlyDialogueRecords(t *testing.T) {
	kv := newMemoryKV()
	a := newTestAdapter(t, kv)
	require.NoError(t, a.Save("t1", sampleConversation("t1")))
	require.NoError(t, a.Save("t2", sampleConversation("t2")))
	kv.data["unrelated"] = []byte("keep me")

	require.NoError(t, a.PurgeAll())

	_, ok, err := a.Load("t1")
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = a.Load("t2")
	require.NoError(t, err)
	require.False(t, ok)
	require.Contains(t, kv.data, "unrelated")

	// Idempotent on an already-empty store.
	require.NoError(t, a.PurgeAll())
}

func TestPurgeLegacy_RunsOncePerCacheVersion(t *testing.T) {
	kv := newMemoryKV()
	a := newTestAdapter(t, kv)
	legacy := []string{"kp-001", "kp-002"}
	require.NoError(t, a.Save("kp-001", sampleConversation("kp-001")))

	require.NoError(t, a.PurgeLegacy(legacy))

	_, ok, err := a.Load("kp-001")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, CacheVersion, string(kv.data["cache_version"]))

	// Marker matches now, so a record saved later survives the next call.
	require.NoError(t, a.Save("kp-001", sampleConversation("kp-001")))
	require.NoError(t, a.PurgeLegacy(legacy))
	_, ok, err = a.Load("kp-001")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestPurgeLegacy_StaleMarkerTriggersAnotherScan(t *testing.T) {
	kv := newMemoryKV()
	kv.data["cache_version"] = []byte("v1")
	a := newTestAdapter(t, kv)
	require.NoError(t, a.Save("kp-001", sampleConversation("kp-001")))

	require.NoError(t, a.PurgeLegacy([]string{"kp-001"}))

	_, ok, err := a.Load("kp-001")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, CacheVersion, string(kv.data["cache_version"]))
}
