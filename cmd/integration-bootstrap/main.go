// Seeds the integration test credential directory from a refresh token,
// so live tests can run without touching the CLI data directory.
//
// Usage: go run ./cmd/integration-bootstrap --account ci
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tonimelisma/alidrive-go/internal/adrive"
	"github.com/tonimelisma/alidrive-go/testutil"
)

func main() {
	account := flag.String("account", "ci", "account name for token storage")
	flag.Parse()

	root := testutil.FindModuleRoot(".")
	testutil.LoadDotEnv(filepath.Join(root, ".env"))

	refreshToken := os.Getenv("ALIDRIVE_REFRESH_TOKEN")
	if refreshToken == "" {
		fmt.Fprintln(os.Stderr, "ALIDRIVE_REFRESH_TOKEN not set")
		os.Exit(1)
	}

	credDir := filepath.Join(root, ".testdata")
	if err := os.MkdirAll(credDir, 0o700); err != nil {
		fmt.Fprintf(os.Stderr, "creating %s: %v\n", credDir, err)
		os.Exit(1)
	}

	ctx := context.Background()
	logger := slog.Default()
	tokenPath := testutil.TokenPath(credDir, *account)

	ts, err := adrive.Login(ctx, tokenPath, refreshToken, adrive.AuthConfig{Logger: logger})
	if err != nil {
		fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
		os.Exit(1)
	}

	acct, err := adrive.LoadAccount(tokenPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading account: %v\n", err)
		os.Exit(1)
	}

	device, err := adrive.DeviceSessionFromAccount(acct)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading device key: %v\n", err)
		os.Exit(1)
	}

	client := adrive.NewClient(adrive.DefaultBaseURL, ts,
		adrive.WithLogger(logger),
		adrive.WithAccount(adrive.Account{UserID: acct.UserID, DefaultDriveID: acct.DefaultDriveID}),
		adrive.WithDeviceSession(device),
	)

	if err := client.CreateDeviceSession(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "registering device: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Login successful. Token saved to %s.\n", tokenPath)
}
