package main

import (
	"bufio"
	"cmp"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/alidrive-go/internal/adrive"
	"github.com/tonimelisma/alidrive-go/internal/logging"
	"github.com/tonimelisma/alidrive-go/internal/tokenfile"
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with a refresh token",
		Long: `Exchange a refresh token for an access token and register this device.

The refresh token is taken from --refresh-token, then ALIDRIVE_REFRESH_TOKEN,
and is prompted for otherwise. It is rotated on every refresh and the current
one is kept in the account's token file.`,
		Args: cobra.NoArgs,
		RunE: runLogin,
	}

	cmd.Flags().String("refresh-token", "", "refresh token to sign in with")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved token of the account",
		Args:  cobra.NoArgs,
		RunE:  runLogout,
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Display the signed-in user",
		Args:  cobra.NoArgs,
		RunE:  runWhoami,
	}
}

var errNoRefreshToken = errors.New("no refresh token given")

func runLogin(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd)
	ctx := cmd.Context()

	refreshToken, _ := cmd.Flags().GetString("refresh-token")
	refreshToken = cmp.Or(refreshToken, cc.Cfg.RefreshToken)

	if refreshToken == "" {
		var err error

		refreshToken, err = promptRefreshToken(cmd.InOrStdin(), cc.Err)
		if err != nil {
			return err
		}
	}

	tokenPath := cc.Cfg.TokenPath()

	cc.Logger.Info("login started",
		slog.String("account", cc.Cfg.Account),
		slog.String("refresh_token", logging.SanitizeToken(refreshToken)),
	)

	ts, err := adrive.Login(ctx, tokenPath, refreshToken, cc.authConfig())
	if err != nil {
		return err
	}

	acct, err := adrive.LoadAccount(tokenPath)
	if err != nil {
		return err
	}

	client, err := cc.newClient(ts, acct, true)
	if err != nil {
		return err
	}

	if err := client.CreateDeviceSession(ctx); err != nil {
		return fmt.Errorf("registering device: %w", err)
	}

	name := acct.UserID
	if acct.NickName != "" {
		name = acct.NickName
	}

	cc.Logger.Info("login successful", slog.String("account", cc.Cfg.Account))
	cc.Statusf("Logged in as %s (account %q).\n", name, cc.Cfg.Account)

	return nil
}

// promptRefreshToken reads one line from in. The prompt goes to errOut so
// stdout stays clean for scripts.
func promptRefreshToken(in io.Reader, errOut io.Writer) (string, error) {
	fmt.Fprint(errOut, "Refresh token: ")

	sc := bufio.NewScanner(in)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", fmt.Errorf("reading refresh token: %w", err)
		}

		return "", errNoRefreshToken
	}

	token := strings.TrimSpace(sc.Text())
	if token == "" {
		return "", errNoRefreshToken
	}

	return token, nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd)

	if err := adrive.Logout(cc.Cfg.TokenPath(), cc.Logger); err != nil {
		return err
	}

	cc.Statusf("Logged out of account %q.\n", cc.Cfg.Account)

	return nil
}

// whoamiOutput is the JSON schema for `whoami --json`.
type whoamiOutput struct {
	Account        string `json:"account"`
	UserID         string `json:"user_id"`
	UserName       string `json:"user_name,omitempty"`
	NickName       string `json:"nick_name,omitempty"`
	DefaultDriveID string `json:"default_drive_id"`
	BackupDriveID  string `json:"backup_drive_id,omitempty"`
	ResourceDrive  string `json:"resource_drive_id,omitempty"`
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd)
	ctx := cmd.Context()

	s, err := newSession(ctx, cc)
	if err != nil {
		return err
	}

	user, err := s.Client.GetUser(ctx)
	if err != nil {
		return fmt.Errorf("fetching user: %w", err)
	}

	// Keep the identity cached in the token file current; the next
	// session seeds its client from it.
	if err := tokenfile.UpdateAccount(cc.Cfg.TokenPath(), func(a *tokenfile.Account) {
		a.UserID = cmp.Or(user.UserID, a.UserID)
		a.UserName = cmp.Or(user.UserName, a.UserName)
		a.NickName = cmp.Or(user.NickName, a.NickName)
		a.DefaultDriveID = cmp.Or(user.DefaultDriveID, a.DefaultDriveID)
	}); err != nil {
		cc.Logger.Warn("could not refresh cached account", slog.String("error", err.Error()))
	}

	out := whoamiOutput{
		Account:        cc.Cfg.Account,
		UserID:         user.UserID,
		UserName:       user.UserName,
		NickName:       user.NickName,
		DefaultDriveID: user.DefaultDriveID,
		BackupDriveID:  user.BackupDriveID,
		ResourceDrive:  user.ResourceDriveID,
	}

	if cc.Flags.JSON {
		return printJSON(cc.Out, out)
	}

	printWhoamiText(cc.Out, out)

	return nil
}

func printWhoamiText(w io.Writer, out whoamiOutput) {
	fmt.Fprintf(w, "Account:  %s\n", out.Account)
	fmt.Fprintf(w, "User:     %s (%s)\n", cmp.Or(out.NickName, out.UserName), out.UserID)
	fmt.Fprintf(w, "Drive:    %s\n", out.DefaultDriveID)

	if out.BackupDriveID != "" {
		fmt.Fprintf(w, "Backup:   %s\n", out.BackupDriveID)
	}

	if out.ResourceDrive != "" {
		fmt.Fprintf(w, "Resource: %s\n", out.ResourceDrive)
	}
}
