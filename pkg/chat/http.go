package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/teslashibe/go-agrivoice/internal/httpc"
)

// httpTransport is the retrying JSON POST shared by the HTTP retrievers.
type httpTransport struct {
	config   *Config
	client   *http.Client
	logger   *slog.Logger
	provider string
}

// post sends payload to url and returns a 200 response.
// Non-200 answers are converted into *APIError.
func (t *httpTransport) post(ctx context.Context, url string, payload any) (*http.Response, error) {
	req, body, err := httpc.NewJSONRequest(ctx, url, payload)
	if err != nil {
		return nil, WrapError(t.provider, err)
	}
	if t.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.config.APIKey)
	}

	var lastErr error
	for attempt := 0; attempt <= t.config.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := httpc.Backoff(ctx, attempt, t.config.RetryDelay); err != nil {
				return nil, WrapError(t.provider, err)
			}
			req.Body = io.NopCloser(bytes.NewReader(body))
		}

		resp, err := t.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, WrapError(t.provider, ctx.Err())
			}
			lastErr = WrapError(t.provider, err)
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}

		apiErr := t.parseError(resp)
		resp.Body.Close()
		if !apiErr.IsRetryable() {
			return nil, apiErr
		}
		lastErr = apiErr
		t.logger.Warn("retrying request",
			"attempt", attempt+1,
			"status", resp.StatusCode,
		)
	}

	return nil, lastErr
}

// parseError understands both {"error": "..."} and {"error": {"message": "..."}}.
func (t *httpTransport) parseError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	message := strings.TrimSpace(string(body))
	code := ""

	var flat struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	var nested struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}

	switch {
	case json.Unmarshal(body, &nested) == nil && nested.Error.Message != "":
		message, code = nested.Error.Message, nested.Error.Code
	case json.Unmarshal(body, &flat) == nil && (flat.Error != "" || flat.Message != ""):
		message = flat.Error
		if flat.Message != "" {
			message = flat.Message
		}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Code:       code,
		Provider:   t.provider,
	}
}
