// Package executor is the HTTP client of the external code-execution service.
//
// The service accepts POST /execute with {code, language, stdin} and answers
// {output, executionTimeMs}. Errors come back as {"error": "..."} with a 4xx
// status for bad programs or requests and 5xx when the sandbox failed.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lnrs/assessment-portal/internal/engine"
)

// maxResponseBytes caps how much of an executor response is read.
const maxResponseBytes = 1 << 20

// Client calls the code-execution service.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// New creates a Client for baseURL. timeout bounds each request.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "executor").Logger(),
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// Execute runs one program against one stdin.
func (c *Client) Execute(ctx context.Context, req engine.ExecRequest) (engine.ExecResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return engine.ExecResult{}, fmt.Errorf("%w: encode request: %v", engine.ErrValidation, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return engine.ExecResult{}, fmt.Errorf("%w: build request: %v", engine.ErrServer, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return engine.ExecResult{}, ctx.Err()
		}
		return engine.ExecResult{}, fmt.Errorf("%w: %v", engine.ErrNetwork, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return engine.ExecResult{}, fmt.Errorf("%w: read response: %v", engine.ErrNetwork, err)
	}

	c.log.Debug().
		Str("language", req.Language).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("Executor call")

	switch {
	case resp.StatusCode >= 500:
		return engine.ExecResult{}, fmt.Errorf("%w: executor returned %d: %s", engine.ErrServer, resp.StatusCode, message(raw))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return engine.ExecResult{}, fmt.Errorf("%w: executor returned %d", engine.ErrPermissionDenied, resp.StatusCode)
	case resp.StatusCode >= 400:
		return engine.ExecResult{}, fmt.Errorf("%w: %s", engine.ErrValidation, message(raw))
	}

	var res engine.ExecResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return engine.ExecResult{}, fmt.Errorf("%w: decode response: %v", engine.ErrServer, err)
	}
	return res, nil
}

// message extracts the error text of a failed response.
func message(raw []byte) string {
	var e errorBody
	if err := json.Unmarshal(raw, &e); err == nil && e.Error != "" {
		return e.Error
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200]
	}
	if s == "" {
		return "empty response"
	}
	return s
}
