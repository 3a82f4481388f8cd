package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrUnsupportedLanguage is returned for languages without a runner.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrUnavailable is returned when the gateway could not be reached or
	// answered with a server error. No code ran.
	ErrUnavailable = errors.New("execution backend unavailable")

	// ErrTimeout is returned when the run exceeded its deadline.
	ErrTimeout = errors.New("execution timed out")
)

// runners maps a language to its gateway function name.
var runners = map[string]string{
	"python":     "python-runner",
	"javascript": "node-runner",
	"java":       "java-runner",
	"c":          "c-runner",
	"cpp":        "cpp-runner",
}

// Languages returns the supported language identifiers.
func Languages() []string {
	return []string{"python", "javascript", "java", "c", "cpp"}
}

// IsSupported reports whether language has a runner.
func IsSupported(language string) bool {
	_, ok := runners[strings.ToLower(language)]
	return ok
}

// Request is one run of user code.
type Request struct {
	RequestID string
	Language  string
	Code      string
	Input     string
}

// Response is the gateway's answer. A non-empty Error is a failed run.
type Response struct {
	Output string
	Error  string
}

// Failed reports whether the run produced an error.
func (r *Response) Failed() bool {
	return r.Error != ""
}

// Runner executes code remotely.
type Runner interface {
	Run(ctx context.Context, req Request) (*Response, error)
}

// Client communicates with the OpenFaaS-style execution gateway.
type Client struct {
	baseURL    string
	httpClient *http.Client
	signer     *Signer
	limiter    *rate.Limiter
	userAgent  string
	logger     *slog.Logger
}

// ClientConfig holds configuration for the executor client.
type ClientConfig struct {
	BaseURL   string
	Secret    string
	Timeout   time.Duration
	RPS       float64
	Burst     int
	UserAgent string
	Logger    *slog.Logger
}

// NewClient creates a new executor client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		signer:    NewSigner(cfg.Secret),
		limiter:   rate.NewLimiter(limit, burst),
		userAgent: cfg.UserAgent,
		logger:    logger.With("component", "executor"),
	}
}

type runRequest struct {
	Code      string `json:"code"`
	Inputs    string `json:"inputs"`
	RequestID string `json:"requestId"`
}

type runResponse struct {
	Result string `json:"result"`
	Error  string `json:"error"`
}

// Run posts the code to the language runner and waits for the result.
func (c *Client) Run(ctx context.Context, req Request) (*Response, error) {
	runner, ok := runners[strings.ToLower(req.Language)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, req.Language)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, c.contextError(ctx, err)
	}

	startTime := time.Now()

	body, err := json.Marshal(runRequest{Code: req.Code, Inputs: req.Input, RequestID: req.RequestID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/function/"+runner, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	sig := c.signer.Sign(req.RequestID, body)
	httpReq.Header.Set(HeaderSignature, sig.Signature)
	httpReq.Header.Set(HeaderTimestamp, sig.Timestamp)
	httpReq.Header.Set(HeaderRequestID, sig.RequestID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("executor request failed",
			"request_id", req.RequestID,
			"language", req.Language,
			"error", err,
			"duration_ms", time.Since(startTime).Milliseconds(),
		)
		return nil, c.contextError(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.contextError(ctx, fmt.Errorf("failed to read response: %w", err))
	}

	durationMs := time.Since(startTime).Milliseconds()

	if resp.StatusCode >= http.StatusInternalServerError {
		c.logger.Error("executor service error",
			"request_id", req.RequestID,
			"language", req.Language,
			"status_code", resp.StatusCode,
			"duration_ms", durationMs,
		)
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var out runResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		// Non-JSON 4xx bodies from the gateway are runtime rejections.
		if resp.StatusCode != http.StatusOK {
			return &Response{Error: strings.TrimSpace(string(respBody))}, nil
		}
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && out.Error == "" {
		out.Error = fmt.Sprintf("runner returned status %d", resp.StatusCode)
	}

	c.logger.Debug("executor request completed",
		"request_id", req.RequestID,
		"language", req.Language,
		"failed", out.Error != "",
		"duration_ms", durationMs,
	)

	return &Response{Output: out.Result, Error: out.Error}, nil
}

// contextError maps deadline failures to ErrTimeout and everything else to ErrUnavailable.
func (c *Client) contextError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
