package tts

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/teslashibe/go-agrivoice/internal/httpc"
)

// doWithRetry performs req, replaying body on retryable failures.
// parse turns a non-2xx response into an error.
func doWithRetry(ctx context.Context, cfg *Config, client *http.Client, logger *slog.Logger, provider string,
	req *http.Request, body []byte, parse func(*http.Response) error) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := httpc.Backoff(ctx, attempt, cfg.RetryDelay); err != nil {
				return nil, err
			}
			if body != nil {
				req.Body = io.NopCloser(bytes.NewReader(body))
			}
		}

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = WrapError(provider, err)
			continue
		}

		if httpc.Retryable(resp.StatusCode) {
			lastErr = parse(resp)
			resp.Body.Close()
			logger.Warn("retrying request",
				"attempt", attempt+1,
				"status", resp.StatusCode,
			)
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}

// readBody returns up to 64 KiB of a response body.
func readBody(resp *http.Response) []byte {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return b
}
