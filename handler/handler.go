// Package handler adapts API Gateway proxy events to the service-side use
// cases. Every response uses the unified {code, message, data} envelope;
// application errors are reported through the code field.
package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"notechat/internal/domain"
	"notechat/internal/usecase"
)

// Application codes carried in the response envelope.
const (
	codeSuccess       = 0
	codeInternalError = 10001
	codeInvalidParams = 10002
	codeAIService     = 20001
)

type DialogueUseCase interface {
	GenerateReply(ctx context.Context, in usecase.DialogueInput) (usecase.DialogueOutput, error)
}

type AnalyzeUseCase interface {
	Analyze(ctx context.Context, in usecase.AnalyzeInput) (domain.KnowledgeAnalysis, error)
}

// envelope is the unified response body.
type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// dialogueRequest is the POST body of the dialogue endpoint.
type dialogueRequest struct {
	Message             string               `json:"message"`
	ConversationHistory []domain.ChatMessage `json:"conversationHistory,omitempty"`
	KnowledgePointTitle string               `json:"knowledgePointTitle,omitempty"`
	KnowledgePointDesc  string               `json:"knowledgePointDesc,omitempty"`
}

// dialogueResponse is the data payload of a successful dialogue call.
type dialogueResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// analyzeRequest is the POST body of the analyze endpoint: image bytes as
// base64 plus the media type.
type analyzeRequest struct {
	Image     string `json:"image"`
	MediaType string `json:"mediaType,omitempty"`
}

// Handler routes proxy events to the dialogue and analyze use cases.
type Handler struct {
	dialogue DialogueUseCase
	analyze  AnalyzeUseCase
}

// NewHandler creates a Handler.
func NewHandler(dialogue DialogueUseCase, analyze AnalyzeUseCase) (*Handler, error) {
	if dialogue == nil {
		return nil, errors.New("handler: dialogue use case must not be nil")
	}
	if analyze == nil {
		return nil, errors.New("handler: analyze use case must not be nil")
	}
	return &Handler{dialogue: dialogue, analyze: analyze}, nil
}

// Handle dispatches one API Gateway proxy event.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if req.HTTPMethod != http.MethodPost {
		return respond(http.StatusMethodNotAllowed, envelope{Code: codeInvalidParams, Message: "method not allowed"}), nil
	}

	if topicID, ok := dialogueTopicID(req.Path); ok {
		return h.handleDialogue(ctx, topicID, req.Body), nil
	}
	if strings.HasSuffix(strings.TrimRight(req.Path, "/"), "/analyze/image") {
		return h.handleAnalyze(ctx, req.Body), nil
	}
	return respond(http.StatusNotFound, envelope{Code: codeInvalidParams, Message: "route not found"}), nil
}

// dialogueTopicID extracts the topic id from paths shaped like
// .../knowledge-points/{id}/dialogue.
func dialogueTopicID(path string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, p := range parts {
		if p == "knowledge-points" && i+2 < len(parts) && parts[i+2] == "dialogue" {
			id := strings.TrimSpace(parts[i+1])
			return id, id != ""
		}
	}
	return "", false
}

func (h *Handler) handleDialogue(ctx context.Context, topicID, body string) events.APIGatewayProxyResponse {
	var req dialogueRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return respond(http.StatusOK, envelope{Code: codeInvalidParams, Message: "invalid parameters: " + err.Error()})
	}

	out, err := h.dialogue.GenerateReply(ctx, usecase.DialogueInput{
		TopicID:          topicID,
		TopicTitle:       req.KnowledgePointTitle,
		TopicDescription: req.KnowledgePointDesc,
		Message:          req.Message,
		History:          req.ConversationHistory,
	})
	if err != nil {
		return respondError(err)
	}

	return respond(http.StatusOK, envelope{
		Code:    codeSuccess,
		Message: "success",
		Data: dialogueResponse{
			Message:   out.Message,
			Timestamp: out.Timestamp.Format(time.RFC3339),
		},
	})
}

func (h *Handler) handleAnalyze(ctx context.Context, body string) events.APIGatewayProxyResponse {
	var req analyzeRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return respond(http.StatusOK, envelope{Code: codeInvalidParams, Message: "invalid parameters: " + err.Error()})
	}
	imageData, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		return respond(http.StatusOK, envelope{Code: codeInvalidParams, Message: "invalid image encoding: " + err.Error()})
	}

	analysis, err := h.analyze.Analyze(ctx, usecase.AnalyzeInput{
		ImageData: imageData,
		MediaType: req.MediaType,
	})
	if err != nil {
		return respondError(err)
	}

	return respond(http.StatusOK, envelope{Code: codeSuccess, Message: "success", Data: analysis})
}

// respondError maps use case error codes onto envelope codes. The HTTP
// status stays 200; clients dispatch on the envelope.
func respondError(err error) events.APIGatewayProxyResponse {
	var ucErr *usecase.Error
	if errors.As(err, &ucErr) {
		switch ucErr.Code {
		case usecase.ErrorInvalidInput:
			return respond(http.StatusOK, envelope{Code: codeInvalidParams, Message: "invalid parameters: " + ucErr.Reason})
		case usecase.ErrorUpstream, usecase.ErrorRateLimited:
			return respond(http.StatusOK, envelope{Code: codeAIService, Message: "AI service error: " + ucErr.Reason})
		}
	}
	return respond(http.StatusOK, envelope{Code: codeInternalError, Message: "internal server error"})
}

func respond(status int, env envelope) events.APIGatewayProxyResponse {
	body, err := json.Marshal(env)
	if err != nil {
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusInternalServerError,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       `{"code":10001,"message":"internal server error"}`,
		}
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}
