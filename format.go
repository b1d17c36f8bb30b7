package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/maruel/natural"

	"github.com/tonimelisma/alidrive-go/internal/adrive"
)

// Statusf prints a status message to stderr unless quiet mode is set.
func (cc *CLIContext) Statusf(format string, args ...any) {
	if !cc.Flags.Quiet {
		fmt.Fprintf(cc.Err, format, args...)
	}
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	return nil
}

// formatSize returns a human-readable size string (e.g. "1.2 MiB").
func formatSize(bytes int64) string {
	if bytes < 0 {
		return "-"
	}

	return humanize.IBytes(uint64(bytes))
}

// formatTime returns a compact timestamp for display. Zero times print as
// "-" because the API omits timestamps on some entries.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	t = t.Local()

	if t.Year() == time.Now().Year() {
		return t.Format("Jan _2 15:04")
	}

	return t.Format("Jan _2  2006")
}

// formatExpiry describes a share expiration.
func formatExpiry(t adrive.Time) string {
	if t.IsZero() {
		return "never"
	}

	return humanize.Time(t.Time)
}

// sortFiles orders folders first, then names in natural order, so
// "part2" sorts before "part10".
func sortFiles(files []adrive.File) {
	slices.SortStableFunc(files, func(a, b adrive.File) int {
		return compareEntries(a.IsFolder(), a.Name, b.IsFolder(), b.Name)
	})
}

// sortShareFiles is sortFiles for entries inside a share.
func sortShareFiles(files []adrive.ShareFile) {
	slices.SortStableFunc(files, func(a, b adrive.ShareFile) int {
		return compareEntries(a.IsFolder(), a.Name, b.IsFolder(), b.Name)
	})
}

func compareEntries(aDir bool, aName string, bDir bool, bName string) int {
	switch {
	case aDir && !bDir:
		return -1
	case !aDir && bDir:
		return 1
	case natural.Less(aName, bName):
		return -1
	case natural.Less(bName, aName):
		return 1
	default:
		return 0
	}
}

// displayName appends "/" to folder names.
func displayName(name string, folder bool) string {
	if folder {
		return name + "/"
	}

	return name
}

// printTable writes aligned columns to the given writer.
// headers and each row must have the same length.
func printTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}

	printRow(w, headers, widths)

	for _, row := range rows {
		printRow(w, row, widths)
	}
}

// printRow writes a single padded row. The last column is not padded.
func printRow(w io.Writer, cells []string, widths []int) {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		if i == len(cells)-1 {
			parts[i] = cell
			continue
		}

		parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
	}

	fmt.Fprintln(w, strings.Join(parts, "  "))
}
