package config

import (
	"fmt"
	"io"
)

// RenderEffective writes the resolved configuration as a human-readable
// annotated summary to w. This powers the "config show" command, giving
// users visibility into the effective values after all four override layers
// (defaults -> file -> env -> CLI) have been applied.
func RenderEffective(r *Resolved, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration for account %q\n", r.Account)
	ew.printf("# config file: %s\n", r.Path)
	ew.printf("# token file:  %s\n\n", r.TokenPath())

	renderNetworkSection(ew, &r.Network)
	renderTransfersSection(ew, &r.Transfers)
	renderShareSection(ew, &r.Share)
	renderLoggingSection(ew, &r.Logging)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops, so callers can chain
// printf calls without checking each one individually.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func renderNetworkSection(ew *errWriter, n *NetworkConfig) {
	ew.printf("[network]\n")
	ew.printf("  api_url         = %q\n", n.APIURL)
	ew.printf("  auth_url        = %q\n", n.AuthURL)
	ew.printf("  connect_timeout = %q\n", n.ConnectTimeout)
	ew.printf("  data_timeout    = %q\n", n.DataTimeout)

	if n.UserAgent != "" {
		ew.printf("  user_agent      = %q\n", n.UserAgent)
	}

	ew.printf("  force_http_11   = %t\n", n.ForceHTTP11)
	ew.printf("\n")
}

func renderTransfersSection(ew *errWriter, t *TransfersConfig) {
	ew.printf("[transfers]\n")
	ew.printf("  parallel_transfers = %d\n", t.ParallelTransfers)
	ew.printf("  part_size          = %q\n", t.PartSize)
	ew.printf("  check_name_mode    = %q\n", t.CheckNameMode)
	ew.printf("\n")
}

func renderShareSection(ew *errWriter, s *ShareConfig) {
	ew.printf("[share]\n")
	ew.printf("  default_expiration = %q\n", s.DefaultExpiration)
	ew.printf("  order_by           = %q\n", s.OrderBy)
	ew.printf("  order_direction    = %q\n", s.OrderDirection)
	ew.printf("\n")
}

func renderLoggingSection(ew *errWriter, l *LoggingConfig) {
	ew.printf("[logging]\n")
	ew.printf("  log_level          = %q\n", l.LogLevel)

	if l.LogFile != "" {
		ew.printf("  log_file           = %q\n", l.LogFile)
	}

	ew.printf("  log_format         = %q\n", l.LogFormat)
	ew.printf("  log_retention_days = %d\n", l.LogRetentionDays)
}
