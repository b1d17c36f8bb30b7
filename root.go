package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/alidrive-go/internal/adrive"
	"github.com/tonimelisma/alidrive-go/internal/config"
	"github.com/tonimelisma/alidrive-go/internal/logging"
)

// version is set at build time via ldflags.
var version = "dev"

// CLIFlags holds the global persistent flags.
type CLIFlags struct {
	ConfigPath string
	Account    string
	LogLevel   string
	JSON       bool
	Verbose    bool
	Quiet      bool
}

// CLIContext is everything a subcommand needs: resolved config, logger and
// output streams. It is built once per invocation by the root pre-run hook.
type CLIContext struct {
	Flags  CLIFlags
	Cfg    *config.Resolved
	Logger *slog.Logger
	Out    io.Writer
	Err    io.Writer

	logCloser io.Closer
	stop      context.CancelFunc
}

type cliContextKey struct{}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	var flags CLIFlags

	cmd := &cobra.Command{
		Use:     "alidrive",
		Short:   "Aliyun Drive share and file client",
		Long:    "A command line client for Aliyun Drive (alipan): share links, files, uploads and downloads.",
		Version: version,
		// We print errors ourselves in main.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := newCLIContext(flags, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ctx, stop := shutdownContext(cmd.Context(), cc.Logger)
			cc.stop = stop
			cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cc))

			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if cc := cliContextFrom(cmd.Context()); cc != nil {
				return cc.Close()
			}

			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.ConfigPath, "config", "", "config file path")
	pf.StringVar(&flags.Account, "account", "", "account name (selects the token file)")
	pf.StringVar(&flags.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&flags.JSON, "json", false, "output in JSON format")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVarP(&flags.Quiet, "quiet", "q", false, "suppress informational output")

	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newWhoamiCmd())
	cmd.AddCommand(newLsCmd())
	cmd.AddCommand(newStatCmd())
	cmd.AddCommand(newMkdirCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newPutCmd())
	cmd.AddCommand(newURLCmd())
	cmd.AddCommand(newShareCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// newCLIContext resolves config through the four-layer override chain and
// builds the logger from it.
func newCLIContext(flags CLIFlags, out, errOut io.Writer) (*CLIContext, error) {
	resolved, err := config.Resolve(config.ReadEnvOverrides(), config.CLIOverrides{
		ConfigPath: flags.ConfigPath,
		Account:    flags.Account,
		LogLevel:   flags.LogLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger, closer, err := logging.New(logging.Options{
		Level:         resolved.Logging.LogLevel,
		Format:        resolved.Logging.LogFormat,
		File:          resolved.Logging.LogFile,
		RetentionDays: resolved.Logging.LogRetentionDays,
		Verbose:       flags.Verbose,
		Quiet:         flags.Quiet,
		Stderr:        errOut,
	})
	if err != nil {
		return nil, err
	}

	return &CLIContext{
		Flags:     flags,
		Cfg:       resolved,
		Logger:    logger,
		Out:       out,
		Err:       errOut,
		logCloser: closer,
	}, nil
}

// cliContextFrom returns the CLIContext stored by the root pre-run hook.
func cliContextFrom(ctx context.Context) *CLIContext {
	cc, _ := ctx.Value(cliContextKey{}).(*CLIContext)
	return cc
}

// mustCLIContext is cliContextFrom for RunE functions, which only run after
// the pre-run hook succeeded.
func mustCLIContext(cmd *cobra.Command) *CLIContext {
	cc := cliContextFrom(cmd.Context())
	if cc == nil {
		panic("alidrive: command run without CLI context")
	}

	return cc
}

// Close releases the signal handler and closes the log file, if any.
func (cc *CLIContext) Close() error {
	if cc.stop != nil {
		cc.stop()
	}

	if cc.logCloser == nil {
		return nil
	}

	return cc.logCloser.Close()
}

// authConfig is the token exchange configuration for this invocation.
func (cc *CLIContext) authConfig() adrive.AuthConfig {
	return adrive.AuthConfig{
		AuthURL:    cc.Cfg.Network.AuthURL,
		HTTPClient: cc.httpClient(true),
		Logger:     cc.Logger,
	}
}

// httpClient builds an HTTP client from the [network] section. Metadata
// clients get data_timeout as an overall deadline; transfer clients only
// bound the wait for response headers, since a large part or download
// legitimately takes longer.
func (cc *CLIContext) httpClient(metadata bool) *http.Client {
	netCfg := cc.Cfg.Network

	connect := parseDurationOr(netCfg.ConnectTimeout, 10*time.Second)
	data := parseDurationOr(netCfg.DataTimeout, 60*time.Second)

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: connect, KeepAlive: 30 * time.Second}).DialContext
	transport.TLSHandshakeTimeout = connect

	if netCfg.ForceHTTP11 {
		transport.ForceAttemptHTTP2 = false
		// A non-nil empty map disables the HTTP/2 upgrade.
		transport.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
	}

	if metadata {
		return &http.Client{Transport: transport, Timeout: data}
	}

	transport.ResponseHeaderTimeout = data

	return &http.Client{Transport: transport}
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}

	return d
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintln(os.Stderr, errorMessage(err))
	os.Exit(1)
}

// errorMessage turns auth failures into a hint to sign in again.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, adrive.ErrNotLoggedIn):
		return "Error: not logged in, run 'alidrive login' first"
	case errors.Is(err, adrive.ErrRefreshTokenInvalid):
		return fmt.Sprintf("Error: %v\nThe saved session is no longer valid, run 'alidrive login' again", err)
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}
