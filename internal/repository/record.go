package repository

import (
	"fmt"
	"time"

	"notechat/internal/domain"
)

// conversationRecord is the persisted shape of a conversation. All temporal
// fields are RFC 3339 text so records stay readable and portable across
// runtimes.
type conversationRecord struct {
	TopicID   string          `json:"topicId"`
	Messages  []messageRecord `json:"messages"`
	CreatedAt string          `json:"createdAt"`
	UpdatedAt string          `json:"updatedAt"`
}

type messageRecord struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Status    string `json:"status,omitempty"`
}

func toRecord(conv *domain.Conversation) conversationRecord {
	rec := conversationRecord{
		TopicID:   conv.TopicID,
		Messages:  make([]messageRecord, 0, len(conv.Messages)),
		CreatedAt: conv.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: conv.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	for _, m := range conv.Messages {
		rec.Messages = append(rec.Messages, messageRecord{
			ID:        m.ID,
			Sender:    string(m.Sender),
			Content:   m.Content,
			Timestamp: m.Timestamp.UTC().Format(time.RFC3339Nano),
			Status:    string(m.Status),
		})
	}
	return rec
}

func (r conversationRecord) toConversation() (*domain.Conversation, error) {
	createdAt, err := parseTimestamp(r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("createdAt: %w", err)
	}
	updatedAt, err := parseTimestamp(r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("updatedAt: %w", err)
	}

	conv := &domain.Conversation{
		TopicID:   r.TopicID,
		Messages:  make([]domain.Message, 0, len(r.Messages)),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
	for i, m := range r.Messages {
		ts, err := parseTimestamp(m.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("message %d timestamp: %w", i, err)
		}
		conv.Messages = append(conv.Messages, domain.Message{
			ID:        m.ID,
			Sender:    domain.Sender(m.Sender),
			Content:   m.Content,
			Timestamp: ts,
			Status:    domain.DeliveryStatus(m.Status),
		})
	}
	return conv, nil
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}
