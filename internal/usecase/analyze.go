package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"notechat/internal/domain"
	"notechat/internal/integrations/openai"
)

const maxImageBytes = 20 * 1024 * 1024

// AnalysisStore caches analysis results by image content hash.
type AnalysisStore interface {
	GetAnalysis(ctx context.Context, imageHash string) ([]byte, bool, error)
	PutAnalysis(ctx context.Context, imageHash string, payload []byte) error
}

// AnalyzeService extracts knowledge points from uploaded images via a
// vision-capable LLM, with a content-hash cache in front of the model call.
type AnalyzeService struct {
	llm         LLMClient
	params      ParamGetter
	cache       AnalysisStore
	paramPrefix string
}

// AnalyzeInput is one image to analyze.
type AnalyzeInput struct {
	ImageData []byte
	MediaType string
}

// NewAnalyzeService creates an AnalyzeService. cache may be nil to disable
// caching.
func NewAnalyzeService(llm LLMClient, params ParamGetter, cache AnalysisStore, paramPrefix string) (*AnalyzeService, error) {
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
	return &AnalyzeService{
		llm:         llm,
		params:      params,
		cache:       cache,
		paramPrefix: paramPrefix,
	}, nil
}

// Analyze returns the structured knowledge analysis for the image, serving
// from cache when the same image content was analyzed before.
func (s *AnalyzeService) Analyze(ctx context.Context, in AnalyzeInput) (domain.KnowledgeAnalysis, error) {
	if len(in.ImageData) == 0 {
		return domain.KnowledgeAnalysis{}, newError(ErrorInvalidInput, "empty_image", nil)
	}
	if len(in.ImageData) > maxImageBytes {
		return domain.KnowledgeAnalysis{}, newError(ErrorInvalidInput, "image_too_large", nil)
	}

	sum := sha256.Sum256(in.ImageData)
	imageHash := hex.EncodeToString(sum[:])

	if s.cache != nil {
		if payload, ok, err := s.cache.GetAnalysis(ctx, imageHash); err == nil && ok {
			var cached domain.KnowledgeAnalysis
			if jsonErr := json.Unmarshal(payload, &cached); jsonErr == nil {
				return cached, nil
			}
			// Unreadable cache entries fall through to a fresh analysis.
		}
	}

	model, err := s.params.GetParameter(ctx, s.paramPrefix+"/config/vision_model")
	if err != nil {
		return domain.KnowledgeAnalysis{}, newError(ErrorInternal, "model_config_error", err)
	}

	mediaType := strings.TrimSpace(in.MediaType)
	if mediaType == "" {
		mediaType = "image/jpeg"
	}
	imageURL := fmt.Sprintf("data:%s;base64,%s", mediaType, base64.StdEncoding.EncodeToString(in.ImageData))

	messages := []openai.Message{
		openai.TextMessage("system", buildAnalysisSystemPrompt()),
		openai.VisionMessage("user", buildAnalysisUserPrompt(), imageURL),
	}

	raw, err := s.llm.Chat(ctx, model, messages)
	if err != nil {
		if status, ok := upstreamStatusCode(err); ok && status == 429 {
			return domain.KnowledgeAnalysis{}, newError(ErrorRateLimited, "llm_rate_limited", err)
		}
		return domain.KnowledgeAnalysis{}, newError(ErrorUpstream, "llm_error", err)
	}

	analysis, err := parseAnalysisPayload(raw)
	if err != nil {
		return domain.KnowledgeAnalysis{}, newError(ErrorUpstream, "llm_malformed_analysis", err)
	}

	if s.cache != nil {
		if payload, jsonErr := json.Marshal(analysis); jsonErr == nil {
			// Best effort; a cache write failure must not fail the analysis.
			_ = s.cache.PutAnalysis(ctx, imageHash, payload)
		}
	}
	return analysis, nil
}
