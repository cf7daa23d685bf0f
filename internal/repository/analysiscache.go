package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	skAnalysis       = "ANALYSIS#v1"
	analysisCacheTTL = 7 * 24 * time.Hour
)

// dynamodbAPI is the minimal DynamoDB interface required by AnalysisCache.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// AnalysisCache stores image analysis results keyed by image content hash,
// so re-uploading the same image skips the vision call. Conversations are
// never stored here.
type AnalysisCache struct {
	api       dynamodbAPI
	tableName string
}

// NewAnalysisCache creates a cache over the given table.
func NewAnalysisCache(api dynamodbAPI, tableName string) (*AnalysisCache, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &AnalysisCache{api: api, tableName: tableName}, nil
}

// imagePK returns the partition key for an image content hash.
func imagePK(imageHash string) string {
	return "IMG#" + imageHash
}

// analysisTTLValue returns a Unix timestamp one cache lifetime in the future.
func analysisTTLValue() int64 {
	return time.Now().Add(analysisCacheTTL).Unix()
}

// GetAnalysis returns the cached analysis payload for an image hash, if any.
func (c *AnalysisCache) GetAnalysis(ctx context.Context, imageHash string) ([]byte, bool, error) {
	if strings.TrimSpace(imageHash) == "" {
		return nil, false, errors.New("repository: GetAnalysis: image hash must not be empty")
	}

	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: imagePK(imageHash)},
			"SK": &types.AttributeValueMemberS{Value: skAnalysis},
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("repository: GetAnalysis get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, false, nil
	}

	payload, err := strAttr(out.Item, "payload")
	if err != nil {
		return nil, false, fmt.Errorf("repository: GetAnalysis decode: %w", err)
	}
	return []byte(payload), true, nil
}

// PutAnalysis stores an analysis payload for an image hash with a TTL.
func (c *AnalysisCache) PutAnalysis(ctx context.Context, imageHash string, payload []byte) error {
	if strings.TrimSpace(imageHash) == "" {
		return errors.New("repository: PutAnalysis: image hash must not be empty")
	}
	if len(payload) == 0 {
		return errors.New("repository: PutAnalysis: payload must not be empty")
	}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]types.AttributeValue{
			"PK":        &types.AttributeValueMemberS{Value: imagePK(imageHash)},
			"SK":        &types.AttributeValueMemberS{Value: skAnalysis},
			"payload":   &types.AttributeValueMemberS{Value: string(payload)},
			"createdAt": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
			"ttl":       &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", analysisTTLValue())},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: PutAnalysis: %w", err)
	}
	return nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}
