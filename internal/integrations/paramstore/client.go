package paramstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ssmAPI is the minimal AWS SSM interface required by Client.
// *ssm.Client from aws-sdk-go-v2 satisfies this interface.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Getter is the interface that wraps GetParameter.
// Consumers (the OpenAI client, the use cases) should depend on this
// interface rather than the concrete *Client so they remain testable
// without real AWS calls.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Client wraps an AWS SSM API for parameter retrieval.
type Client struct {
	api ssmAPI
}

// New creates a Client with the given SSM API implementation.
func New(api ssmAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	return &Client{api: api}, nil
}

func (c *Client) GetParameter(ctx context.Context, name string) (string, error) {
	if c.api == nil {
		return "", errors.New("paramstore: client not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}

	withDecryption := true
	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: &withDecryption,
	})
	if err != nil {
		return "", fmt.Errorf("paramstore: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", errors.New("paramstore: parameter missing value")
	}
	return *out.Parameter.Value, nil
}

// Cached wraps a Getter and memoizes successful lookups for the lifetime of
// the process. Parameters used on every request (model name, prompt
// fragments) change rarely enough that re-reading SSM per invocation is
// wasted latency.
type Cached struct {
	inner Getter

	mu   sync.Mutex
	vals map[string]string
}

// NewCached wraps the given Getter with memoization.
func NewCached(inner Getter) (*Cached, error) {
	if inner == nil {
		return nil, errors.New("paramstore: inner getter must not be nil")
	}
	return &Cached{inner: inner, vals: map[string]string{}}, nil
}

func (c *Cached) GetParameter(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	if v, ok := c.vals[name]; ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	v, err := c.inner.GetParameter(ctx, name)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.vals[name] = v
	c.mu.Unlock()
	return v, nil
}

var (
	_ Getter = (*Client)(nil)
	_ Getter = (*Cached)(nil)
)
