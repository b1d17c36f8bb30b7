package adrive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Retry and backoff constants.
const (
	maxRetries     = 5
	baseBackoff    = 1 * time.Second
	maxBackoff     = 60 * time.Second
	backoffFactor  = 2.0
	jitterFraction = 0.25
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://api.alipan.com"

const (
	defaultUserAgent = "alidrive-go/0.1"
	webReferer       = "https://www.alipan.com/"
)

// TokenSource provides bearer access tokens.
type TokenSource interface {
	Token() (string, error)
}

// invalidator is implemented by token sources that can drop a cached access
// token after the server rejects it, forcing the next Token call to refresh.
type invalidator interface {
	Invalidate()
}

// Account identifies the signed-in user. Share listing defaults Creator to
// UserID; drive-scoped requests default DriveID to DefaultDriveID.
type Account struct {
	UserID         string
	DefaultDriveID string
}

// Client is an HTTP client for the alipan API.
// It handles request construction, authentication, rate limiting, retry with
// exponential backoff, and error classification.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenSource
	logger     *slog.Logger
	userAgent  string
	limits     *limiter
	device     *DeviceSession

	account   atomic.Pointer[Account]
	resolveMu sync.Mutex

	// sleepFunc is called to wait between retries. Defaults to timeSleep.
	// Tests override this to avoid real delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithAccount seeds the account identity so the client does not need to
// look it up on first use.
func WithAccount(a Account) Option {
	return func(c *Client) {
		c.account.Store(&a)
	}
}

// WithDeviceSession signs every request with the given device key.
func WithDeviceSession(d *DeviceSession) Option {
	return func(c *Client) {
		c.device = d
	}
}

// WithRateLimits replaces the default per-class request budgets.
func WithRateLimits(rl RateLimits) Option {
	return func(c *Client) {
		c.limits = newLimiter(rl)
	}
}

// NewClient creates an API client.
// baseURL is typically DefaultBaseURL.
func NewClient(baseURL string, token TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		token:      token,
		logger:     slog.Default(),
		userAgent:  defaultUserAgent,
		limits:     newLimiter(DefaultRateLimits()),
		sleepFunc:  timeSleep,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.account.Load() == nil {
		c.account.Store(&Account{})
	}

	return c
}

// Do executes an HTTP request against the API.
// The path is appended to the client's base URL.
// The caller is responsible for closing the response body on success.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	return c.DoWithHeaders(ctx, method, path, body, nil)
}

// DoWithHeaders is Do with extra request headers (for example x-share-token).
// A body that implements io.Seeker is rewound before each retry; other
// bodies are not retried after the first attempt consumed them.
func (c *Client) DoWithHeaders(
	ctx context.Context, method, path string, body io.Reader, headers http.Header,
) (*http.Response, error) {
	url := c.baseURL + path
	class := classify(path)

	var (
		attempt     int
		sent        bool
		reauthed    bool
		resessioned bool
	)

	for {
		if sent {
			if err := rewindBody(body); err != nil {
				return nil, fmt.Errorf("adrive: %s %s: %w", method, path, err)
			}
		}

		if err := c.limits.wait(ctx, class); err != nil {
			return nil, fmt.Errorf("adrive: waiting for %s rate limit: %w", class, err)
		}

		// Token source failures are not network errors: a revoked refresh
		// token stays revoked, so fail without backoff.
		tok, err := c.token.Token()
		if err != nil {
			return nil, fmt.Errorf("adrive: %s %s: obtaining token: %w", method, path, err)
		}

		sent = true

		resp, err := c.doOnce(ctx, method, url, tok, body, headers)
		if err != nil {
			// Context cancellation is not retryable.
			if ctx.Err() != nil {
				return nil, fmt.Errorf("adrive: request canceled: %w", ctx.Err())
			}

			// Network errors are retryable.
			if attempt < maxRetries {
				backoff := c.calcBackoff(attempt)
				c.logger.Warn("retrying after network error",
					slog.String("method", method),
					slog.String("path", path),
					slog.Int("attempt", attempt+1),
					slog.Duration("backoff", backoff),
					slog.String("error", err.Error()),
				)

				if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
					return nil, fmt.Errorf("adrive: request canceled: %w", sleepErr)
				}

				attempt++

				continue
			}

			return nil, fmt.Errorf("adrive: %s %s failed after %d retries: %w", method, path, maxRetries, err)
		}

		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			c.logger.Debug("request succeeded",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", resp.StatusCode),
			)

			return resp, nil
		}

		errBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if readErr != nil {
			errBody = []byte("(failed to read response body)")
		}

		apiErr := newAPIError(resp.StatusCode, resp.Header, errBody)

		if isTokenRejected(apiErr) && !reauthed {
			if inv, ok := c.token.(invalidator); ok {
				c.logger.Info("access token rejected, refreshing",
					slog.String("path", path),
					slog.String("code", apiErr.Code),
				)

				inv.Invalidate()
				reauthed = true

				continue
			}
		}

		if isDeviceRejected(apiErr) && !resessioned && c.device != nil && path != deviceSessionPath {
			c.logger.Info("device session rejected, re-creating",
				slog.String("path", path),
				slog.String("code", apiErr.Code),
			)

			if err := c.CreateDeviceSession(ctx); err != nil {
				return nil, fmt.Errorf("adrive: re-creating device session: %w", err)
			}

			resessioned = true

			continue
		}

		if isRetryable(resp.StatusCode) && attempt < maxRetries && rewindable(body) {
			backoff := c.retryBackoff(resp, attempt)
			c.logger.Warn("retrying after HTTP error",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", resp.StatusCode),
				slog.String("code", apiErr.Code),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
			)

			if err := c.sleepFunc(ctx, backoff); err != nil {
				return nil, fmt.Errorf("adrive: request canceled: %w", err)
			}

			attempt++

			continue
		}

		if attempt > 0 {
			c.logger.Error("request failed after retries",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempts", attempt+1),
			)
		}

		return nil, apiErr
	}
}

// doOnce executes a single HTTP request (no retry).
func (c *Client) doOnce(
	ctx context.Context, method, url, tok string, body io.Reader, headers http.Header,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Referer", webReferer)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.device != nil {
		if uid := c.account.Load().UserID; uid != "" {
			sig, sigErr := c.device.Signature(uid)
			if sigErr != nil {
				return nil, fmt.Errorf("signing request: %w", sigErr)
			}

			req.Header.Set("X-Device-Id", c.device.DeviceID())
			req.Header.Set("X-Signature", sig)
		}
	}

	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	return c.httpClient.Do(req)
}

// postJSON marshals in, posts it to path, and decodes the response into out.
// A non-empty shareToken is sent as x-share-token. out may be nil.
func (c *Client) postJSON(ctx context.Context, path string, in any, shareToken string, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("adrive: encoding %s request: %w", path, err)
	}

	var headers http.Header
	if shareToken != "" {
		headers = http.Header{}
		headers.Set("X-Share-Token", shareToken)
	}

	resp, err := c.DoWithHeaders(ctx, http.MethodPost, path, bytes.NewReader(data), headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)

		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}

		return fmt.Errorf("adrive: decoding %s response: %w", path, err)
	}

	return nil
}

// rewindBody seeks a replayable body back to its start.
func rewindBody(body io.Reader) error {
	if body == nil {
		return nil
	}

	s, ok := body.(io.Seeker)
	if !ok {
		return errors.New("request body cannot be replayed")
	}

	if _, err := s.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding request body: %w", err)
	}

	return nil
}

func rewindable(body io.Reader) bool {
	if body == nil {
		return true
	}

	_, ok := body.(io.Seeker)

	return ok
}

// retryBackoff returns the backoff duration for a retryable response.
// For 429 responses with a Retry-After header, that value is used.
func (c *Client) retryBackoff(resp *http.Response, attempt int) time.Duration {
	if resp.StatusCode == http.StatusTooManyRequests {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
				return time.Duration(seconds) * time.Second
			}
		}
	}

	return c.calcBackoff(attempt)
}

// calcBackoff computes exponential backoff with ±25% jitter.
func (c *Client) calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need crypto rand
	backoff += jitter

	return time.Duration(backoff)
}

// timeSleep waits for the given duration or until the context is canceled.
// It is the default sleepFunc for Client.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
