package adrive

import (
	"context"
	"fmt"
	"log/slog"
)

const userGetPath = "/v2/user/get"

// GetUser returns the signed-in account.
func (c *Client) GetUser(ctx context.Context) (*User, error) {
	c.logger.Info("getting user")

	var u User
	if err := c.postJSON(ctx, userGetPath, struct{}{}, "", &u); err != nil {
		return nil, err
	}

	return &u, nil
}

// Account returns the account identity, looking it up with GetUser the first
// time it is needed when the client was not seeded with WithAccount.
func (c *Client) Account(ctx context.Context) (Account, error) {
	if a := c.account.Load(); a.UserID != "" && a.DefaultDriveID != "" {
		return *a, nil
	}

	c.resolveMu.Lock()
	defer c.resolveMu.Unlock()

	// Another goroutine may have resolved it while we waited.
	if a := c.account.Load(); a.UserID != "" && a.DefaultDriveID != "" {
		return *a, nil
	}

	u, err := c.GetUser(ctx)
	if err != nil {
		return Account{}, fmt.Errorf("adrive: resolving account: %w", err)
	}

	a := Account{UserID: u.UserID, DefaultDriveID: u.DefaultDriveID}
	c.account.Store(&a)

	c.logger.Debug("resolved account",
		slog.String("user_id", a.UserID),
		slog.String("default_drive_id", a.DefaultDriveID),
	)

	return a, nil
}

// defaultDriveID returns id when set, otherwise the account's default drive.
func (c *Client) defaultDriveID(ctx context.Context, id string) (string, error) {
	if id != "" {
		return id, nil
	}

	a, err := c.Account(ctx)
	if err != nil {
		return "", err
	}

	return a.DefaultDriveID, nil
}
