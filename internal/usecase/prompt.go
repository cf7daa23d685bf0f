package usecase

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"notechat/internal/domain"
	"notechat/internal/integrations/openai"
)

// buildTutorPrompt is the system prompt for per-topic dialogue, customized
// with the knowledge point under discussion.
func buildTutorPrompt(title, description string) string {
	return fmt.Sprintf(`You are a professional tutoring assistant who excels at answering student questions.

The knowledge point currently under discussion: %s
Knowledge point description: %s

Follow these principles:
1) Explain concepts in clear, accessible language.
2) Provide concrete examples to aid understanding.
3) Break complex concepts into steps.
4) Encourage the student to ask follow-up questions.
5) Stay friendly and patient.
6) Be accurate and professional without becoming overly academic.
7) If a question falls outside the current knowledge point, say so briefly and steer back to the topic.

Now answer the student's question.`, strings.TrimSpace(title), strings.TrimSpace(description))
}

// historyToMessages maps prior conversation turns to chat roles.
func historyToMessages(history []domain.ChatMessage) []openai.Message {
	msgs := make([]openai.Message, 0, len(history))
	for _, m := range history {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		role := "user"
		if m.Sender == domain.SenderAssistant {
			role = "assistant"
		}
		msgs = append(msgs, openai.TextMessage(role, content))
	}
	return msgs
}

// buildAnalysisSystemPrompt instructs the model to extract structured
// knowledge points from an image.
func buildAnalysisSystemPrompt() string {
	return strings.Join([]string{
		"You are a professional educational content analyst. Your task is to analyze the knowledge contained in an image and extract structured information.",
		"",
		"Requirements:",
		"1) Identify the main knowledge points in the image (1-3 core points).",
		"2) Produce exactly 5 prerequisite knowledge points (what must be learned first).",
		"3) Produce exactly 5 postrequisite knowledge points (what can be learned next).",
		"4) All ids must be unique: kp-001, kp-002 for key points, kp-p001 for prerequisites, kp-n001 for postrequisites.",
		"5) Confidence is a number in [0,1] expressing recognition accuracy.",
		"",
		"Rules:",
		"- Return strict JSON only, no surrounding prose.",
		"- Prerequisites and postrequisites must each contain exactly 5 entries.",
		"- Categories must be accurate (mathematics, physics, chemistry, programming, AI, ...).",
		"- Descriptions must be clear, accurate and concise.",
	}, "\n")
}

// buildAnalysisUserPrompt describes the expected JSON payload.
func buildAnalysisUserPrompt() string {
	return strings.Join([]string{
		"Analyze the knowledge content of this image.",
		"",
		"Provide:",
		"1) detailedExplanation: a complete explanation of the image's main content.",
		"2) keyPoints: 2-5 key knowledge points in the image.",
		"3) funExamples: one illustrative example per key point.",
		"4) prerequisites: 5 prerequisite knowledge points.",
		"5) postrequisites: 5 postrequisite knowledge points.",
		"6) conclusion: a closing summary.",
		"",
		"Return a single JSON object with exactly these keys:",
		`{"detailedExplanation":string,"prerequisites":[...],"keyPoints":[...],"funExamples":[...],"postrequisites":[...],"conclusion":string}`,
		`where knowledge points are {"id","title","description","category","confidence"} and fun examples are {"knowledgePointId","title","content"}.`,
	}, "\n")
}

// parseAnalysisPayload decodes the model's JSON answer, tolerating a fenced
// code block but rejecting trailing data.
func parseAnalysisPayload(raw string) (domain.KnowledgeAnalysis, error) {
	raw = stripJSONFence(raw)

	var out domain.KnowledgeAnalysis
	dec := json.NewDecoder(bytes.NewBufferString(raw))
	if err := dec.Decode(&out); err != nil {
		return domain.KnowledgeAnalysis{}, fmt.Errorf("usecase: decode analysis payload: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return domain.KnowledgeAnalysis{}, errors.New("usecase: decode analysis payload: multiple JSON values")
		}
		return domain.KnowledgeAnalysis{}, fmt.Errorf("usecase: decode analysis payload trailing data: %w", err)
	}
	if strings.TrimSpace(out.DetailedExplanation) == "" && len(out.KeyPoints) == 0 {
		return domain.KnowledgeAnalysis{}, errors.New("usecase: analysis payload has no content")
	}
	return out, nil
}

func stripJSONFence(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
	return strings.TrimSpace(raw)
}
