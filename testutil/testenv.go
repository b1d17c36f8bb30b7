// Package testutil provides shared test environment helpers for integration
// tests that talk to the live service. It depends only on stdlib so any test
// package can use it without pulling in internal/.
package testutil

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AccountEnvVar names the account whose token integration tests use.
const AccountEnvVar = "ALIDRIVE_TEST_ACCOUNT"

// AllowlistEnvVar lists the accounts integration tests may touch.
const AllowlistEnvVar = "ALIDRIVE_ALLOWED_TEST_ACCOUNTS"

// LoadDotEnv reads KEY=VALUE pairs from a .env file at the given path.
// Missing file is not an error (CI sets env vars directly).
// Existing env vars take precedence over .env values.
func LoadDotEnv(envPath string) {
	f, err := os.Open(envPath)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = strings.Trim(value, "\"'")

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

// ValidateAllowlist crashes the process unless the account named by
// AccountEnvVar appears in AllowlistEnvVar. Returns the account name.
func ValidateAllowlist() string {
	allowlist := os.Getenv(AllowlistEnvVar)
	if allowlist == "" {
		fmt.Fprintf(os.Stderr, "FATAL: %s not set\n", AllowlistEnvVar)
		fmt.Fprintln(os.Stderr, "Set it in .env or as an environment variable.")
		fmt.Fprintf(os.Stderr, "Example: %s=default,ci\n", AllowlistEnvVar)
		os.Exit(1)
	}

	account := os.Getenv(AccountEnvVar)
	if account == "" {
		fmt.Fprintf(os.Stderr, "FATAL: %s not set\n", AccountEnvVar)
		os.Exit(1)
	}

	for _, a := range strings.Split(allowlist, ",") {
		if strings.TrimSpace(a) == account {
			return account
		}
	}

	fmt.Fprintf(os.Stderr, "FATAL: %s=%q is not in %s=%q\n",
		AccountEnvVar, account, AllowlistEnvVar, allowlist)
	os.Exit(1)

	return ""
}

// FindModuleRoot walks up from the current directory to find go.mod.
// Returns the fallback if the root is not found.
func FindModuleRoot(fallback string) string {
	dir, err := os.Getwd()
	if err != nil {
		return fallback
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return fallback
		}

		dir = parent
	}
}

// FindTestCredentialDir locates .testdata/ relative to the module root.
// Crashes if the directory does not exist.
func FindTestCredentialDir(moduleRoot string) string {
	dir := filepath.Join(moduleRoot, ".testdata")

	if _, err := os.Stat(dir); err != nil {
		fmt.Fprintln(os.Stderr, "FATAL: .testdata/ directory not found at "+dir)
		fmt.Fprintln(os.Stderr, "Run `alidrive login --account <name>` with ALIDRIVE_DATA_DIR pointing at it.")
		os.Exit(1)
	}

	return dir
}

// TokenPath returns the token file for account inside a credential dir,
// using the same tokens/<account>.json layout as the CLI data directory.
// Refresh tokens rotate on every use, so tests must write back to this
// file rather than a copy.
func TokenPath(credDir, account string) string {
	return filepath.Join(credDir, "tokens", account+".json")
}
