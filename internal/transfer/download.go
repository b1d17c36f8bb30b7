package transfer

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tonimelisma/alidrive-go/internal/adrive"
	"github.com/tonimelisma/alidrive-go/pkg/proofcode"
)

// ErrIsFolder is returned when asked to download a folder.
var ErrIsFolder = errors.New("transfer: remote entry is a folder")

const (
	partialSuffix = ".partial"

	// defaultMaxHashRetries is how many times a download is repeated after
	// a content hash mismatch before the result is accepted anyway.
	defaultMaxHashRetries = 2

	// maxSaneRetries caps a misconfigured retry count.
	maxSaneRetries = 100

	downloadDirPerms  = 0o700
	downloadFilePerms = 0o600
)

// DownloaderOptions configures a Downloader.
type DownloaderOptions struct {
	MaxHashRetries int // 0 = default
	Logger         *slog.Logger
}

// Downloader writes drive files to disk atomically.
type Downloader struct {
	api            DownloadAPI
	maxHashRetries int
	logger         *slog.Logger
}

// NewDownloader returns a Downloader.
func NewDownloader(api DownloadAPI, opts DownloaderOptions) *Downloader {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	retries := opts.MaxHashRetries
	switch {
	case retries <= 0:
		retries = defaultMaxHashRetries
	case retries > maxSaneRetries:
		retries = maxSaneRetries
	}

	return &Downloader{api: api, maxHashRetries: retries, logger: opts.Logger}
}

// DownloadResult reports a finished download.
type DownloadResult struct {
	File         *adrive.File
	Path         string
	Size         int64
	LocalHash    string
	HashVerified bool // false when the remote hash was absent or never matched
}

// DownloadToFile downloads fileID to target. Content goes to
// target+".partial" first and is renamed into place only once complete.
func (d *Downloader) DownloadToFile(ctx context.Context, driveID, fileID, target string) (*DownloadResult, error) {
	if target == "" {
		return nil, errors.New("transfer: target path must not be empty")
	}

	if fileID == "" {
		return nil, errors.New("transfer: file id must not be empty")
	}

	file, err := d.api.GetFile(ctx, driveID, fileID)
	if err != nil {
		return nil, fmt.Errorf("transfer: looking up %s: %w", fileID, err)
	}

	if file.IsFolder() {
		return nil, fmt.Errorf("%w: %s", ErrIsFolder, file.Name)
	}

	if err := os.MkdirAll(filepath.Dir(target), downloadDirPerms); err != nil {
		return nil, fmt.Errorf("transfer: creating parent dir for %s: %w", target, err)
	}

	// Only SHA-1 hashes can be checked locally.
	remoteHash := ""
	if strings.EqualFold(file.ContentHashName, proofcode.HashName) {
		remoteHash = file.ContentHash
	}

	partial := target + partialSuffix
	verified := remoteHash != ""

	var (
		localHash string
		size      int64
	)

	for attempt := range d.maxHashRetries + 1 {
		localHash, size, err = d.downloadToPartial(ctx, cmp.Or(file.DriveID, driveID), file.FileID, partial)
		if err != nil {
			return nil, err
		}

		if remoteHash == "" || strings.EqualFold(localHash, remoteHash) {
			break
		}

		if attempt < d.maxHashRetries {
			os.Remove(partial)
			d.logger.Warn("download hash mismatch, retrying",
				slog.String("target", target),
				slog.Int("attempt", attempt+1),
				slog.String("local_hash", localHash),
				slog.String("remote_hash", remoteHash),
			)

			continue
		}

		d.logger.Warn("download hash mismatch after all retries, accepting download",
			slog.String("target", target),
			slog.String("local_hash", localHash),
			slog.String("remote_hash", remoteHash),
		)

		verified = false
	}

	if file.Size > 0 && size != file.Size {
		d.logger.Warn("download size mismatch",
			slog.String("target", target),
			slog.Int64("local_size", size),
			slog.Int64("remote_size", file.Size),
		)
	}

	if !file.UpdatedAt.IsZero() {
		mtime := file.UpdatedAt.Time
		if err := os.Chtimes(partial, mtime, mtime); err != nil {
			d.logger.Warn("failed to set mtime on partial",
				slog.String("target", target),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := os.Rename(partial, target); err != nil {
		return nil, fmt.Errorf("transfer: renaming partial to %s: %w", target, err)
	}

	d.logger.Info("download complete",
		slog.String("target", target),
		slog.String("file_id", file.FileID),
		slog.Int64("size", size),
	)

	return &DownloadResult{
		File:         file,
		Path:         target,
		Size:         size,
		LocalHash:    localHash,
		HashVerified: verified,
	}, nil
}

// downloadToPartial streams the file into path while hashing it.
func (d *Downloader) downloadToPartial(ctx context.Context, driveID, fileID, path string) (string, int64, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, downloadFilePerms)
	if err != nil {
		return "", 0, fmt.Errorf("transfer: creating partial file %s: %w", path, err)
	}

	h := proofcode.New()

	n, err := d.api.Download(ctx, driveID, fileID, io.MultiWriter(f, h))
	if err != nil {
		f.Close()
		os.Remove(path)

		return "", 0, fmt.Errorf("transfer: downloading to %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("transfer: closing partial file %s: %w", path, err)
	}

	return proofcode.Sum(h), n, nil
}
