package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"notechat/handler"
	"notechat/internal/integrations/openai"
	"notechat/internal/integrations/paramstore"
	"notechat/internal/repository"
	"notechat/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cacheTable := mustEnv("ANALYSIS_CACHE_TABLE")
	paramPrefix := mustEnv("PARAM_PREFIX")
	maxMessageLen := envInt("MAX_MESSAGE_LENGTH", 2000)

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	params, err := paramstore.NewCached(ssmClient)
	if err != nil {
		slog.Error("failed to create parameter cache", "err", err)
		os.Exit(1)
	}
	analysisCache, err := repository.NewAnalysisCache(awsdynamodb.NewFromConfig(cfg), cacheTable)
	if err != nil {
		slog.Error("failed to create analysis cache", "err", err)
		os.Exit(1)
	}

	llmOpts := []openai.Option{}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		llmOpts = append(llmOpts, openai.WithBaseURL(baseURL))
	}
	llmClient, err := openai.NewClient(params, paramPrefix, llmOpts...)
	if err != nil {
		slog.Error("failed to create OpenAI client", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	dialogueService, err := usecase.NewDialogueService(llmClient, params, paramPrefix, maxMessageLen)
	if err != nil {
		slog.Error("failed to create dialogue service", "err", err)
		os.Exit(1)
	}
	analyzeService, err := usecase.NewAnalyzeService(llmClient, params, analysisCache, paramPrefix)
	if err != nil {
		slog.Error("failed to create analyze service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(dialogueService, analyzeService)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
