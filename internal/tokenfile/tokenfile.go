// Package tokenfile handles reading and writing token files. Token files store
// an OAuth2 token alongside the account identity and device key needed to
// talk to the API. This is a leaf package imported by both config/ and
// adrive/ so neither has to import the other.
package tokenfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
)

// FilePerms restricts token files to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the tokens directory.
const DirPerms = 0o700

// Account is the identity cached next to the token. DeviceKey is the hex
// private key of the registered device; it is as sensitive as the token.
type Account struct {
	UserID         string `json:"user_id"`
	UserName       string `json:"user_name,omitempty"`
	NickName       string `json:"nick_name,omitempty"`
	DefaultDriveID string `json:"default_drive_id"`
	DeviceID       string `json:"device_id,omitempty"`
	DeviceKey      string `json:"device_key,omitempty"`
}

// File is the on-disk format for token files.
type File struct {
	Token   *oauth2.Token `json:"token"`
	Account *Account      `json:"account,omitempty"`
}

// Load reads a saved token file from disk. Returns (nil, nil, nil) if the
// file does not exist.
func Load(path string) (*oauth2.Token, *Account, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, nil //nolint:nilnil // sentinel for "not found"
	}

	if err != nil {
		return nil, nil, fmt.Errorf("tokenfile: reading %s: %w", path, err)
	}

	var tf File
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, nil, fmt.Errorf("tokenfile: decoding %s: %w", path, err)
	}

	if tf.Token == nil {
		return nil, nil, fmt.Errorf("tokenfile: %s missing token field (re-login required)", path)
	}

	if tf.Token.AccessToken == "" && tf.Token.RefreshToken == "" {
		return nil, nil, fmt.Errorf("tokenfile: %s has empty credentials (re-login required)", path)
	}

	return tf.Token, tf.Account, nil
}

// ReadAccount reads just the account from a token file. Returns (nil, nil)
// if the file does not exist.
func ReadAccount(path string) (*Account, error) {
	_, acct, err := Load(path)
	if err != nil {
		return nil, err
	}

	return acct, nil
}

// Save writes a token file to disk atomically (write-to-temp + rename)
// with 0600 permissions. Never logs token values.
func Save(path string, tok *oauth2.Token, acct *Account) error {
	if tok == nil {
		return errors.New("tokenfile: refusing to save nil token")
	}

	tf := File{Token: tok, Account: acct}

	data, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return fmt.Errorf("tokenfile: encoding: %w", err)
	}

	dir := filepath.Dir(path)
	if mkErr := os.MkdirAll(dir, DirPerms); mkErr != nil {
		return fmt.Errorf("tokenfile: creating directory %s: %w", dir, mkErr)
	}

	// Same directory guarantees same filesystem for rename(2).
	tmp, err := os.CreateTemp(dir, ".token-*.tmp")
	if err != nil {
		return fmt.Errorf("tokenfile: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: writing: %w", err)
	}

	// Flush before rename so a power loss cannot leave an empty token file
	// at the final path.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("tokenfile: closing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("tokenfile: renaming: %w", err)
	}

	success = true

	return nil
}

// UpdateAccount loads the token file, applies fn to its account (creating
// an empty one if absent), and saves the result. Returns an error if the
// file does not exist.
func UpdateAccount(path string, fn func(*Account)) error {
	tok, acct, err := Load(path)
	if err != nil {
		return fmt.Errorf("reading token for account update: %w", err)
	}

	if tok == nil {
		return fmt.Errorf("no token file at %s", path)
	}

	if acct == nil {
		acct = &Account{}
	}

	fn(acct)

	return Save(path, tok, acct)
}
