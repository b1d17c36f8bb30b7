package transfer

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/alidrive-go/internal/adrive"
)

// DefaultParallel is the worker count when ManagerOptions.Parallel is zero.
const DefaultParallel = 4

// DownloadJob names one remote file and its local destination.
type DownloadJob struct {
	DriveID string
	FileID  string
	Target  string
}

// UploadOutcome is the result of one upload job. Err is set when the job
// failed without stopping the batch.
type UploadOutcome struct {
	Request UploadRequest
	Result  *UploadResult
	Err     error
}

// DownloadOutcome is the result of one download job.
type DownloadOutcome struct {
	Job    DownloadJob
	Result *DownloadResult
	Err    error
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	Parallel int
	Logger   *slog.Logger
}

// Manager runs batches of transfers through a bounded worker pool.
type Manager struct {
	uploader   *Uploader
	downloader *Downloader
	parallel   int
	logger     *slog.Logger
}

// NewManager returns a Manager. Either transfer side may be nil if the
// caller never runs batches of that kind.
func NewManager(up *Uploader, down *Downloader, opts ManagerOptions) *Manager {
	if opts.Parallel <= 0 {
		opts.Parallel = DefaultParallel
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Manager{uploader: up, downloader: down, parallel: opts.Parallel, logger: opts.Logger}
}

// UploadAll uploads every request. Outcomes are in request order. Per-file
// failures are recorded in their outcome; an authentication failure or
// cancellation stops the batch and is returned.
func (m *Manager) UploadAll(ctx context.Context, reqs []UploadRequest) ([]UploadOutcome, error) {
	if m.uploader == nil {
		return nil, errors.New("transfer: manager has no uploader")
	}

	out := make([]UploadOutcome, len(reqs))

	err := m.dispatch(ctx, len(reqs), func(ctx context.Context, i int) error {
		res, err := m.uploader.Upload(ctx, reqs[i])
		out[i] = UploadOutcome{Request: reqs[i], Result: res, Err: err}

		return m.triage(err, reqs[i].LocalPath)
	})

	return out, err
}

// DownloadAll downloads every job. It behaves like UploadAll.
func (m *Manager) DownloadAll(ctx context.Context, jobs []DownloadJob) ([]DownloadOutcome, error) {
	if m.downloader == nil {
		return nil, errors.New("transfer: manager has no downloader")
	}

	out := make([]DownloadOutcome, len(jobs))

	err := m.dispatch(ctx, len(jobs), func(ctx context.Context, i int) error {
		res, err := m.downloader.DownloadToFile(ctx, jobs[i].DriveID, jobs[i].FileID, jobs[i].Target)
		out[i] = DownloadOutcome{Job: jobs[i], Result: res, Err: err}

		return m.triage(err, jobs[i].Target)
	})

	return out, err
}

// dispatch runs fn for 0..n-1 through a bounded errgroup. Each index is
// written by exactly one goroutine, so outcome slices need no lock.
func (m *Manager) dispatch(ctx context.Context, n int, fn func(context.Context, int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.parallel)

	for i := range n {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			return fn(gctx, i)
		})
	}

	return g.Wait()
}

// triage returns err if it should stop the batch, nil if it only fails
// the one job.
func (m *Manager) triage(err error, path string) error {
	if err == nil {
		return nil
	}

	if isFatal(err) {
		return err
	}

	m.logger.Warn("transfer failed, continuing with others",
		slog.String("path", path),
		slog.String("error", err.Error()),
	)

	return nil
}

// isFatal reports errors that would fail every remaining job the same way.
func isFatal(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, adrive.ErrUnauthorized) ||
		errors.Is(err, adrive.ErrNotLoggedIn) ||
		errors.Is(err, adrive.ErrRefreshTokenInvalid)
}
