package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/tonimelisma/alidrive-go/internal/adrive"
	"github.com/tonimelisma/alidrive-go/internal/tokenfile"
)

// Session holds authenticated clients for the resolved account. Metadata
// calls and transfers use separate clients because their timeouts differ.
type Session struct {
	Client   *adrive.Client // metadata ops (data_timeout)
	Transfer *adrive.Client // uploads/downloads (header timeout only)
	Token    adrive.TokenSource
	Account  *tokenfile.Account
}

// newSession loads the saved token of the resolved account and builds both
// clients. The account identity and device key cached in the token file
// seed the clients so no user lookup is needed before the first call.
func newSession(ctx context.Context, cc *CLIContext) (*Session, error) {
	tokenPath := cc.Cfg.TokenPath()

	ts, err := adrive.TokenSourceFromPath(ctx, tokenPath, cc.authConfig())
	if err != nil {
		if errors.Is(err, adrive.ErrNotLoggedIn) {
			return nil, fmt.Errorf("account %q: %w", cc.Cfg.Account, err)
		}

		return nil, err
	}

	acct, err := adrive.LoadAccount(tokenPath)
	if err != nil {
		return nil, err
	}

	s := &Session{Token: ts, Account: acct}

	s.Client, err = cc.newClient(ts, acct, true)
	if err != nil {
		return nil, err
	}

	s.Transfer, err = cc.newClient(ts, acct, false)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// newClient builds an API client for ts. acct may be nil, in which case the
// identity is looked up on first use.
func (cc *CLIContext) newClient(ts adrive.TokenSource, acct *tokenfile.Account, metadata bool) (*adrive.Client, error) {
	opts := []adrive.Option{
		adrive.WithHTTPClient(cc.httpClient(metadata)),
		adrive.WithLogger(cc.Logger),
		adrive.WithUserAgent(cc.Cfg.Network.UserAgent),
	}

	if acct != nil {
		opts = append(opts, adrive.WithAccount(adrive.Account{
			UserID:         acct.UserID,
			DefaultDriveID: acct.DefaultDriveID,
		}))

		device, err := adrive.DeviceSessionFromAccount(acct)
		if err != nil {
			return nil, fmt.Errorf("loading device key: %w", err)
		}

		if device != nil {
			opts = append(opts, adrive.WithDeviceSession(device))
		}
	}

	return adrive.NewClient(cc.Cfg.Network.APIURL, ts, opts...), nil
}

// driveID is the default drive of the session's account, or "" to let the
// client resolve it.
func (s *Session) driveID() string {
	if s.Account == nil {
		return ""
	}

	return s.Account.DefaultDriveID
}
