package adrive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/tonimelisma/alidrive-go/internal/tokenfile"
)

// DefaultAuthURL is the refresh-token exchange endpoint.
const DefaultAuthURL = "https://auth.alipan.com/v2/account/token"

// ErrRefreshTokenInvalid is returned when the auth server refuses the
// refresh token. The user has to log in again.
var ErrRefreshTokenInvalid = errors.New("adrive: refresh token invalid")

// AuthConfig controls how tokens are exchanged. Zero fields fall back to
// DefaultAuthURL, http.DefaultClient and slog.Default.
type AuthConfig struct {
	AuthURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func (a AuthConfig) withDefaults() AuthConfig {
	if a.AuthURL == "" {
		a.AuthURL = DefaultAuthURL
	}

	if a.HTTPClient == nil {
		a.HTTPClient = http.DefaultClient
	}

	if a.Logger == nil {
		a.Logger = slog.Default()
	}

	return a
}

type refreshRequest struct {
	GrantType    string `json:"grant_type"`
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken    string `json:"access_token"`
	RefreshToken   string `json:"refresh_token"`
	ExpiresIn      int64  `json:"expires_in"`
	TokenType      string `json:"token_type"`
	UserID         string `json:"user_id"`
	UserName       string `json:"user_name"`
	NickName       string `json:"nick_name"`
	DefaultDriveID string `json:"default_drive_id"`
}

// exchange trades a refresh token for a new access token. The response
// carries a rotated refresh token that replaces the one sent.
func exchange(ctx context.Context, cfg AuthConfig, refreshToken string) (*oauth2.Token, *refreshResponse, error) {
	data, err := json.Marshal(refreshRequest{GrantType: "refresh_token", RefreshToken: refreshToken})
	if err != nil {
		return nil, nil, fmt.Errorf("adrive: encoding refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.AuthURL, bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("adrive: creating refresh request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Referer", webReferer)

	resp, err := cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("adrive: refreshing token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("adrive: reading refresh response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := newAPIError(resp.StatusCode, resp.Header, body)
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
			return nil, nil, fmt.Errorf("%w: %w", ErrRefreshTokenInvalid, apiErr)
		}

		return nil, nil, apiErr
	}

	var rr refreshResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return nil, nil, fmt.Errorf("adrive: decoding refresh response: %w", err)
	}

	if rr.AccessToken == "" {
		return nil, nil, fmt.Errorf("%w: empty access token in response", ErrRefreshTokenInvalid)
	}

	tok := &oauth2.Token{
		AccessToken:  rr.AccessToken,
		RefreshToken: rr.RefreshToken,
		TokenType:    rr.TokenType,
	}

	if tok.RefreshToken == "" {
		tok.RefreshToken = refreshToken
	}

	if rr.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(rr.ExpiresIn) * time.Second)
	}

	return tok, &rr, nil
}

// Login exchanges refreshToken for an access token, registers a new device
// identity, and saves both to tokenPath.
//
// The returned TokenSource binds ctx to token refresh, so ctx must outlive it.
func Login(ctx context.Context, tokenPath, refreshToken string, cfg AuthConfig) (TokenSource, error) {
	cfg = cfg.withDefaults()

	if refreshToken == "" {
		return nil, fmt.Errorf("%w: refresh_token", ErrMissingField)
	}

	cfg.Logger.Info("logging in with refresh token", slog.String("path", tokenPath))

	tok, rr, err := exchange(ctx, cfg, refreshToken)
	if err != nil {
		return nil, err
	}

	keyHex, err := GenerateDeviceKey()
	if err != nil {
		return nil, err
	}

	acct := &tokenfile.Account{
		UserID:         rr.UserID,
		UserName:       rr.UserName,
		NickName:       rr.NickName,
		DefaultDriveID: rr.DefaultDriveID,
		DeviceID:       NewDeviceID(),
		DeviceKey:      keyHex,
	}

	if err := tokenfile.Save(tokenPath, tok, acct); err != nil {
		return nil, err
	}

	cfg.Logger.Info("login successful",
		slog.String("user_id", acct.UserID),
		slog.String("device_id", acct.DeviceID),
	)

	return newTokenBridge(ctx, cfg, tokenPath, tok, acct), nil
}

// TokenSourceFromPath loads a saved token and returns a TokenSource that
// refreshes it silently, persisting every rotated refresh token.
// Returns ErrNotLoggedIn if no token file exists at the path.
//
// The caller is responsible for computing tokenPath (via config.TokenPath).
func TokenSourceFromPath(ctx context.Context, tokenPath string, cfg AuthConfig) (TokenSource, error) {
	cfg = cfg.withDefaults()

	tok, acct, err := tokenfile.Load(tokenPath)
	if err != nil {
		return nil, err
	}

	if tok == nil {
		return nil, ErrNotLoggedIn
	}

	expired := !tok.Expiry.IsZero() && tok.Expiry.Before(time.Now())
	cfg.Logger.Info("loaded saved token",
		slog.String("path", tokenPath),
		slog.Time("expiry", tok.Expiry),
		slog.Bool("expired", expired),
	)

	return newTokenBridge(ctx, cfg, tokenPath, tok, acct), nil
}

// Logout removes the saved token file at the given path.
// Returns nil if the token file does not exist (already logged out).
func Logout(tokenPath string, logger *slog.Logger) error {
	err := os.Remove(tokenPath)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("logout: no token file to remove (already logged out)",
			slog.String("path", tokenPath),
		)

		return nil
	}

	if err != nil {
		return err
	}

	logger.Info("logout: removed token file", slog.String("path", tokenPath))

	return nil
}

// LoadAccount reads the cached account identity from a token file.
// Returns nil (not an error) if the file does not exist.
func LoadAccount(tokenPath string) (*tokenfile.Account, error) {
	return tokenfile.ReadAccount(tokenPath)
}

// DeviceSessionFromAccount builds the request signer stored with an account.
// Returns nil when the account predates device registration.
func DeviceSessionFromAccount(acct *tokenfile.Account) (*DeviceSession, error) {
	if acct == nil || acct.DeviceID == "" || acct.DeviceKey == "" {
		return nil, nil //nolint:nilnil // no device registered
	}

	return NewDeviceSession(acct.DeviceID, acct.DeviceKey)
}

// refresher is the oauth2.TokenSource that performs the actual exchange.
// It keeps the latest rotated refresh token and saves each new token.
type refresher struct {
	ctx       context.Context
	cfg       AuthConfig
	tokenPath string

	mu           sync.Mutex
	refreshToken string
	acct         *tokenfile.Account
}

func (r *refresher) Token() (*oauth2.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tok, rr, err := exchange(r.ctx, r.cfg, r.refreshToken)
	if err != nil {
		return nil, err
	}

	r.refreshToken = tok.RefreshToken

	if r.acct == nil {
		r.acct = &tokenfile.Account{}
	}

	if rr.UserID != "" {
		r.acct.UserID = rr.UserID
	}

	if rr.DefaultDriveID != "" {
		r.acct.DefaultDriveID = rr.DefaultDriveID
	}

	r.cfg.Logger.Info("token refreshed",
		slog.String("path", r.tokenPath),
		slog.Time("new_expiry", tok.Expiry),
	)

	if err := tokenfile.Save(r.tokenPath, tok, r.acct); err != nil {
		// The new token is still usable for this process.
		r.cfg.Logger.Warn("failed to persist refreshed token",
			slog.String("path", r.tokenPath),
			slog.String("error", err.Error()),
		)
	}

	return tok, nil
}

func (r *refresher) current() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.refreshToken
}

// tokenBridge adapts an oauth2.TokenSource to adrive.TokenSource and lets
// the client discard a token the server rejected before its expiry.
type tokenBridge struct {
	base   *refresher
	logger *slog.Logger

	mu  sync.Mutex
	src oauth2.TokenSource
}

func newTokenBridge(
	ctx context.Context, cfg AuthConfig, tokenPath string, tok *oauth2.Token, acct *tokenfile.Account,
) *tokenBridge {
	base := &refresher{
		ctx:          ctx,
		cfg:          cfg,
		tokenPath:    tokenPath,
		refreshToken: tok.RefreshToken,
		acct:         acct,
	}

	return &tokenBridge{
		base:   base,
		logger: cfg.Logger,
		src:    oauth2.ReuseTokenSource(tok, base),
	}
}

func (b *tokenBridge) Token() (string, error) {
	b.mu.Lock()
	src := b.src
	b.mu.Unlock()

	t, err := src.Token()
	if err != nil {
		b.logger.Warn("token acquisition failed", slog.String("error", err.Error()))
		return "", fmt.Errorf("adrive: obtaining token: %w", err)
	}

	b.logger.Debug("token acquired",
		slog.Time("expiry", t.Expiry),
		slog.Bool("valid", t.Valid()),
	)

	return t.AccessToken, nil
}

// Invalidate drops the cached access token so the next Token call refreshes.
func (b *tokenBridge) Invalidate() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.src = oauth2.ReuseTokenSource(nil, b.base)
}

// RefreshToken returns the current refresh token.
func (b *tokenBridge) RefreshToken() string {
	return b.base.current()
}
