package standardize

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ModelClient submits raw name text to a local text-generation service and
// returns its suggested canonical form for the requested kind.
type ModelClient interface {
	Suggest(ctx context.Context, raw string, kind Kind) (string, error)
}

// RestyModel talks to the local model-hosting service over HTTP. The service
// exposes a single standardize endpoint prompted with the canonical lists;
// its reply carries one suggestion per field.
type RestyModel struct {
	client *resty.Client
	logger *zap.Logger
}

type modelRequest struct {
	Program string `json:"program"`
}

type modelResponse struct {
	StandardizedProgram    string `json:"standardized_program"`
	StandardizedUniversity string `json:"standardized_university"`
}

// NewRestyModel builds a client against the service at baseURL.
func NewRestyModel(baseURL string, timeout time.Duration, logger *zap.Logger) *RestyModel {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(0) // retries are the caller's concern; a slow model should fall through
	return &RestyModel{client: client, logger: logger}
}

// Suggest asks the model for a standardized form of raw.
func (m *RestyModel) Suggest(ctx context.Context, raw string, kind Kind) (string, error) {
	var out modelResponse
	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(modelRequest{Program: raw}).
		SetResult(&out).
		Post("/standardize")
	if err != nil {
		return "", fmt.Errorf("model request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("model request: status %d", resp.StatusCode())
	}
	if kind == KindProgram {
		return out.StandardizedProgram, nil
	}
	return out.StandardizedUniversity, nil
}

// modelStrategy is the first resolution tier. The model's output is accepted
// only when it exactly matches a canonical-list entry; anything else,
// including transport errors, falls through to the next tier.
type modelStrategy struct {
	client ModelClient
	canon  *Canon
	logger *zap.Logger
}

func (s *modelStrategy) Resolve(ctx context.Context, raw string, kind Kind) (string, bool) {
	suggestion, err := s.client.Suggest(ctx, raw, kind)
	if err != nil {
		s.logger.Debug("model tier unavailable; falling through",
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return "", false
	}
	if canonical, ok := s.canon.Lookup(suggestion, kind); ok {
		return canonical, true
	}
	return "", false
}
