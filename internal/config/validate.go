package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Validation range constants.
const (
	minParallelTransfers = 1
	maxParallelTransfers = 16
	minPartBytes         = 100 * 1024              // 100 KiB
	maxPartBytes         = 5 * 1024 * 1024 * 1024  // 5 GiB
	minLogRetention      = 1
	minConnectTimeout    = 1 * time.Second
	minDataTimeout       = 5 * time.Second
)

// accountNamePattern keeps account names usable as file names.
var accountNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateNetwork(&cfg.Network)...)
	errs = append(errs, validateTransfers(&cfg.Transfers)...)
	errs = append(errs, validateShare(&cfg.Share)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	return errors.Join(errs...)
}

// ValidateResolved checks the result of the override chain. Unlike
// Validate(), which checks raw config file values, this runs after env and
// CLI values have been applied.
func ValidateResolved(r *Resolved) error {
	var errs []error

	if !accountNamePattern.MatchString(r.Account) {
		errs = append(errs, fmt.Errorf(
			"account: %q must start with a letter or digit and contain only letters, digits, '.', '_' or '-'",
			r.Account))
	}

	errs = append(errs, validateLogLevel(r.Logging.LogLevel)...)

	return errors.Join(errs...)
}

func validateNetwork(n *NetworkConfig) []error {
	var errs []error

	errs = append(errs, validateURL("api_url", n.APIURL)...)
	errs = append(errs, validateURL("auth_url", n.AuthURL)...)
	errs = append(errs, validateDurationMin("connect_timeout", n.ConnectTimeout, minConnectTimeout)...)
	errs = append(errs, validateDurationMin("data_timeout", n.DataTimeout, minDataTimeout)...)

	return errs
}

func validateURL(field, value string) []error {
	u, err := url.Parse(value)
	if err != nil {
		return []error{fmt.Errorf("%s: %w", field, err)}
	}

	if u.Scheme != "https" && u.Scheme != "http" {
		return []error{fmt.Errorf("%s: must be an http or https URL, got %q", field, value)}
	}

	if u.Host == "" {
		return []error{fmt.Errorf("%s: missing host in %q", field, value)}
	}

	return nil
}

func validateTransfers(t *TransfersConfig) []error {
	var errs []error

	if t.ParallelTransfers < minParallelTransfers || t.ParallelTransfers > maxParallelTransfers {
		errs = append(errs, fmt.Errorf("parallel_transfers: must be between %d and %d, got %d",
			minParallelTransfers, maxParallelTransfers, t.ParallelTransfers))
	}

	errs = append(errs, validatePartSize(t.PartSize)...)
	errs = append(errs, validateEnum("check_name_mode", t.CheckNameMode, validCheckNameModes)...)

	return errs
}

func validatePartSize(s string) []error {
	bytes, err := ParseSize(s)
	if err != nil {
		return []error{fmt.Errorf("part_size: %w", err)}
	}

	if bytes < minPartBytes || bytes > maxPartBytes {
		return []error{fmt.Errorf("part_size: must be between 100KiB and 5GiB, got %s", s)}
	}

	return nil
}

var validCheckNameModes = []string{"auto_rename", "refuse", "ignore"}

func validateShare(s *ShareConfig) []error {
	var errs []error

	errs = append(errs, validateDurationNonNeg("default_expiration", s.DefaultExpiration)...)
	errs = append(errs, validateEnum("order_by", s.OrderBy, validShareOrderBy)...)
	errs = append(errs, validateEnum("order_direction", s.OrderDirection, validOrderDirections)...)

	return errs
}

var (
	validShareOrderBy    = []string{"created_at", "updated_at", "share_name", "description"}
	validOrderDirections = []string{"ASC", "DESC"}
)

// ShareExpiration returns default_expiration as a duration; zero means no
// expiry. Validate has already rejected malformed values.
func (s *ShareConfig) ShareExpiration() time.Duration {
	d, err := time.ParseDuration(s.DefaultExpiration)
	if err != nil {
		return 0
	}

	return d
}

// validateDuration checks that a duration string is valid and meets a minimum.
func validateDuration(field, value string, minimum time.Duration) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", field, value, err)
	}

	if d < minimum {
		return fmt.Errorf("%s: must be >= %s, got %s", field, minimum, d)
	}

	return nil
}

func validateDurationMin(field, value string, minimum time.Duration) []error {
	if err := validateDuration(field, value, minimum); err != nil {
		return []error{err}
	}

	return nil
}

func validateDurationNonNeg(field, value string) []error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}

	if d < 0 {
		return []error{fmt.Errorf("%s: must be >= 0, got %s", field, d)}
	}

	return nil
}

func validateEnum(field, value string, allowed []string) []error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}

	return []error{fmt.Errorf("%s: must be one of %s; got %q", field, strings.Join(allowed, ", "), value)}
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	errs = append(errs, validateLogLevel(l.LogLevel)...)
	errs = append(errs, validateEnum("log_format", l.LogFormat, validLogFormats)...)

	if l.LogRetentionDays < minLogRetention {
		errs = append(errs, fmt.Errorf("log_retention_days: must be >= %d, got %d",
			minLogRetention, l.LogRetentionDays))
	}

	return errs
}

var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"auto", "text", "json"}
)

func validateLogLevel(level string) []error {
	return validateEnum("log_level", level, validLogLevels)
}
