// Package discovery lists the models a configured endpoint serves, speaking
// whichever listing dialect the endpoint's protocol uses.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/hollowaylabs/patchbay/pkg/header"
	"github.com/hollowaylabs/patchbay/pkg/llm"
	"github.com/hollowaylabs/patchbay/pkg/llm/adapter"
	"github.com/hollowaylabs/patchbay/pkg/retry"
)

// maxPages bounds paginated listings so a misbehaving endpoint cannot spin
// the client forever.
const maxPages = 10

// Model is one discovered model. ContextLimit is zero when the listing
// dialect does not report one.
type Model struct {
	ID           string `json:"id"`
	DisplayName  string `json:"display_name,omitempty"`
	ContextLimit int    `json:"context_limit,omitempty"`
}

// List fetches the models available at the endpoint cfg points at. The
// listing request carries the same auth headers as a chat request and
// honors the model's retry config.
func List(ctx context.Context, httpClient *http.Client, logger *zap.Logger, cfg llm.ModelConfig) ([]Model, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		return nil, &llm.ConfigError{Reason: "base URL is required"}
	}

	a, err := adapter.New(cfg.Protocol)
	if err != nil {
		return nil, err
	}
	headers, err := a.Headers(cfg)
	if err != nil {
		return nil, err
	}

	f := &fetcher{http: httpClient, logger: logger, cfg: cfg, headers: headers}

	switch cfg.Protocol {
	case llm.ProtocolGemini:
		return f.listGemini(ctx)
	case llm.ProtocolOllama:
		return f.listOllama(ctx)
	default:
		return f.listOpenAIStyle(ctx)
	}
}

type fetcher struct {
	http    *http.Client
	logger  *zap.Logger
	cfg     llm.ModelConfig
	headers map[string]string
}

// get performs one listing GET with retry.
func (f *fetcher) get(ctx context.Context, endpoint string, out any) error {
	_, err := retry.Do(ctx, f.cfg.Retry, f.logger, func(ctx context.Context) (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return struct{}{}, &llm.TransportError{URL: endpoint, Err: err}
		}
		computed := make(map[string]string, len(f.headers))
		for k, v := range f.headers {
			if k == "Content-Type" {
				continue
			}
			computed[k] = v
		}
		header.Apply(req, computed, f.cfg.Headers)

		resp, err := f.http.Do(req)
		if err != nil {
			return struct{}{}, &llm.TransportError{URL: endpoint, Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			detail, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
			return struct{}{}, &llm.HTTPStatusError{
				StatusCode: resp.StatusCode,
				URL:        endpoint,
				Body:       string(detail),
			}
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return struct{}{}, fmt.Errorf("decoding model list from %s: %w", endpoint, err)
		}
		return struct{}{}, nil
	})
	return err
}

// listOpenAIStyle handles the shared GET /v1/models shape used by OpenAI,
// Responses, and Anthropic endpoints.
func (f *fetcher) listOpenAIStyle(ctx context.Context) ([]Model, error) {
	base := strings.TrimSuffix(f.cfg.BaseURL, "/")
	endpoint := base + "/v1/models"
	if strings.HasSuffix(base, "/v1") {
		endpoint = base + "/models"
	}

	var payload struct {
		Data []struct {
			ID          string `json:"id"`
			DisplayName string `json:"display_name"`
		} `json:"data"`
	}
	if err := f.get(ctx, endpoint, &payload); err != nil {
		return nil, err
	}

	models := make([]Model, 0, len(payload.Data))
	for _, m := range payload.Data {
		models = append(models, Model{ID: m.ID, DisplayName: m.DisplayName})
	}
	return models, nil
}

// listGemini pages through GET /v1beta/models. Model names come back
// prefixed with "models/"; the prefix is stripped so the result is usable
// directly as a model name in config.
func (f *fetcher) listGemini(ctx context.Context) ([]Model, error) {
	base := strings.TrimSuffix(f.cfg.BaseURL, "/")
	var collection string
	switch {
	case strings.HasSuffix(base, "/models"):
		collection = base
	case strings.HasSuffix(base, "/v1beta"), strings.HasSuffix(base, "/v1"):
		collection = base + "/models"
	default:
		collection = base + "/v1beta/models"
	}

	var models []Model
	pageToken := ""
	for page := 0; page < maxPages; page++ {
		endpoint := collection
		if pageToken != "" {
			endpoint += "?pageToken=" + url.QueryEscape(pageToken)
		}

		var payload struct {
			Models []struct {
				Name            string `json:"name"`
				DisplayName     string `json:"displayName"`
				InputTokenLimit int    `json:"inputTokenLimit"`
			} `json:"models"`
			NextPageToken string `json:"nextPageToken"`
		}
		if err := f.get(ctx, endpoint, &payload); err != nil {
			return nil, err
		}

		for _, m := range payload.Models {
			models = append(models, Model{
				ID:           strings.TrimPrefix(m.Name, "models/"),
				DisplayName:  m.DisplayName,
				ContextLimit: m.InputTokenLimit,
			})
		}

		pageToken = payload.NextPageToken
		if pageToken == "" {
			break
		}
	}
	return models, nil
}

// listOllama handles GET /api/tags.
func (f *fetcher) listOllama(ctx context.Context) ([]Model, error) {
	base := strings.TrimSuffix(f.cfg.BaseURL, "/")
	endpoint := base + "/api/tags"
	if strings.HasSuffix(base, "/api") {
		endpoint = base + "/tags"
	}

	var payload struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := f.get(ctx, endpoint, &payload); err != nil {
		return nil, err
	}

	models := make([]Model, 0, len(payload.Models))
	for _, m := range payload.Models {
		models = append(models, Model{ID: m.Name})
	}
	return models, nil
}
