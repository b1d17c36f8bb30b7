package config

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// knownSectionKeys lists the valid keys of each config section.
var knownSectionKeys = map[string][]string{
	"network": {
		"api_url", "auth_url", "connect_timeout", "data_timeout", "user_agent", "force_http_11",
	},
	"transfers": {"parallel_transfers", "part_size", "check_name_mode"},
	"share":     {"default_expiration", "order_by", "order_direction"},
	"logging":   {"log_level", "log_file", "log_format", "log_retention_days"},
}

// knownSectionsList is the sorted list of section names. Sorted for
// deterministic suggestions when two candidates have the same edit distance.
var knownSectionsList = func() []string {
	keys := make([]string, 0, len(knownSectionKeys))
	for k := range knownSectionKeys {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}()

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns
// an error with "did you mean?" suggestions for each unknown key.
// An unknown table is reported once, not once per key inside it.
func checkUnknownKeys(md *toml.MetaData) error {
	var errs []error

	reported := make(map[string]bool)

	for _, key := range md.Undecoded() {
		top := key[0]
		if _, known := knownSectionKeys[top]; !known {
			if reported[top] {
				continue
			}

			reported[top] = true
			key = key[:1]
		}

		errs = append(errs, buildKeyError(key))
	}

	return errors.Join(errs...)
}

// buildKeyError describes one undecoded key, suggesting the closest known
// section or key.
func buildKeyError(key toml.Key) error {
	if len(key) == 1 {
		if _, ok := knownSectionKeys[key[0]]; !ok {
			if section := sectionOf(key[0]); section != "" {
				return fmt.Errorf("unknown config key %q: did you mean %q under [%s]?", key[0], key[0], section)
			}

			if suggestion := closestMatch(key[0], knownSectionsList); suggestion != "" {
				return fmt.Errorf("unknown config key %q: did you mean [%s]?", key[0], suggestion)
			}
		}

		return fmt.Errorf("unknown config key %q", key[0])
	}

	section, field := key[0], key[1]
	fields := knownSectionKeys[section]

	if suggestion := closestMatch(field, fields); suggestion != "" {
		return fmt.Errorf("unknown config key %q in [%s]: did you mean %q?", field, section, suggestion)
	}

	return fmt.Errorf("unknown config key %q in [%s]", field, section)
}

// sectionOf returns the section that defines field, or "" if none does.
// Top-level keys that belong to a section usually mean a missing header.
func sectionOf(field string) string {
	for _, section := range knownSectionsList {
		if slices.Contains(knownSectionKeys[section], field) {
			return section
		}
	}

	return ""
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		d := levenshtein(unknown, k)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}

	if bestDist <= maxLevenshteinDistance {
		return best
	}

	return ""
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	// Use single-row optimization to avoid allocating a full matrix.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = minOf(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}

// minOf returns the minimum of three integers.
func minOf(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}

	if c < m {
		m = c
	}

	return m
}
