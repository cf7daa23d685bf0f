package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"notechat/internal/domain"
	"notechat/internal/integrations/openai"
)

const defaultMaxMessageLen = 2000

type ParamGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

type LLMClient interface {
	Chat(ctx context.Context, model string, messages []openai.Message) (string, error)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// DialogueService generates assistant replies for knowledge-point
// conversations on the service side.
type DialogueService struct {
	llm           LLMClient
	params        ParamGetter
	paramPrefix   string
	maxMessageLen int
	now           func() time.Time
}

// DialogueInput is one dialogue request: the topic context, the user's
// message, and the prior turns.
type DialogueInput struct {
	TopicID          string
	TopicTitle       string
	TopicDescription string
	Message          string
	History          []domain.ChatMessage
}

// DialogueOutput is the reply and its server-side timestamp.
type DialogueOutput struct {
	Message   string
	Timestamp time.Time
}

// NewDialogueService creates a DialogueService.
func NewDialogueService(llm LLMClient, params ParamGetter, paramPrefix string, maxMessageLen int) (*DialogueService, error) {
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if params == nil {
		return nil, errors.New("usecase: param getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("usecase: parameter prefix must not be empty")
	}
	if maxMessageLen <= 0 {
		maxMessageLen = defaultMaxMessageLen
	}
	return &DialogueService{
		llm:           llm,
		params:        params,
		paramPrefix:   paramPrefix,
		maxMessageLen: maxMessageLen,
		now:           time.Now,
	}, nil
}

// GenerateReply builds the tutoring prompt from the topic context and prior
// turns, calls the LLM, and returns the reply.
func (s *DialogueService) GenerateReply(ctx context.Context, in DialogueInput) (DialogueOutput, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return DialogueOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if len(message) > s.maxMessageLen {
		return DialogueOutput{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}

	model, err := s.params.GetParameter(ctx, s.paramPrefix+"/config/openai_model")
	if err != nil {
		return DialogueOutput{}, newError(ErrorInternal, "model_config_error", err)
	}

	messages := []openai.Message{
		openai.TextMessage("system", buildTutorPrompt(in.TopicTitle, in.TopicDescription)),
	}
	messages = append(messages, historyToMessages(in.History)...)
	messages = append(messages, openai.TextMessage("user", message))

	answer, err := s.llm.Chat(ctx, model, messages)
	if err != nil {
		if status, ok := upstreamStatusCode(err); ok && status == 429 {
			return DialogueOutput{}, newError(ErrorRateLimited, "llm_rate_limited", err)
		}
		return DialogueOutput{}, newError(ErrorUpstream, "llm_error", err)
	}
	if strings.TrimSpace(answer) == "" {
		return DialogueOutput{}, newError(ErrorUpstream, "llm_empty_reply", nil)
	}

	return DialogueOutput{
		Message:   answer,
		Timestamp: s.now().UTC(),
	}, nil
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
