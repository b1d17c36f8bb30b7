package adrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// ErrNoDownloadURL is returned when the API answers a link request without a
// usable URL, as it does for folders.
var ErrNoDownloadURL = errors.New("adrive: file has no download URL")

// Download streams the content of a drive file to w. It first resolves a
// short-lived download link, then streams from that link directly.
// Returns the number of bytes written.
func (c *Client) Download(ctx context.Context, driveID, fileID string, w io.Writer) (int64, error) {
	c.logger.Info("downloading file",
		slog.String("drive_id", driveID),
		slog.String("file_id", fileID),
	)

	link, err := c.GetDownloadURLWith(ctx, &GetDownloadURLRequest{DriveID: driveID, FileID: fileID})
	if err != nil {
		return 0, fmt.Errorf("adrive: getting download url: %w", err)
	}

	if link.URL == "" {
		return 0, ErrNoDownloadURL
	}

	n, err := c.DownloadFromURL(ctx, link.URL, w)
	if err != nil {
		return n, err
	}

	c.logger.Debug("download complete",
		slog.String("file_id", fileID),
		slog.Int64("bytes_written", n),
	)

	return n, nil
}

// DownloadFromURL streams content from a download link (drive or share) to
// w. Links carry their own authorization; only the Referer the CDN checks is
// sent. The link itself is never logged because it embeds a signature.
// Only the request/response cycle is retried; a failure mid-stream is
// returned to the caller along with the bytes already written.
func (c *Client) DownloadFromURL(ctx context.Context, downloadURL string, w io.Writer) (int64, error) {
	if downloadURL == "" {
		return 0, ErrNoDownloadURL
	}

	resp, err := c.doPreAuthRetry(ctx, "download", func() (*http.Request, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, http.NoBody)
		if reqErr != nil {
			return nil, fmt.Errorf("adrive: creating download request: %w", reqErr)
		}

		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Referer", webReferer)

		return req, nil
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, copyErr := io.Copy(w, resp.Body)
	if copyErr != nil {
		c.logger.Error("streaming download content failed",
			slog.String("error", copyErr.Error()),
			slog.Int64("bytes_before_error", n),
		)

		return n, fmt.Errorf("adrive: streaming download content: %w", copyErr)
	}

	return n, nil
}

// doPreAuthRetry runs a request against a pre-signed URL with the same
// backoff policy as DoWithHeaders. build is called once per attempt so the
// body can be rebuilt. No Authorization header is added.
func (c *Client) doPreAuthRetry(
	ctx context.Context, desc string, build func() (*http.Request, error),
) (*http.Response, error) {
	var attempt int

	for {
		req, err := build()
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("adrive: %s canceled: %w", desc, ctx.Err())
			}

			if attempt < maxRetries {
				backoff := c.calcBackoff(attempt)
				c.logger.Warn("retrying pre-signed request after network error",
					slog.String("op", desc),
					slog.Int("attempt", attempt+1),
					slog.Duration("backoff", backoff),
					slog.String("error", err.Error()),
				)

				if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
					return nil, fmt.Errorf("adrive: %s canceled: %w", desc, sleepErr)
				}

				attempt++

				continue
			}

			return nil, fmt.Errorf("adrive: %s failed after %d retries: %w", desc, maxRetries, err)
		}

		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			return resp, nil
		}

		errBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if readErr != nil {
			errBody = []byte("(failed to read response body)")
		}

		if isRetryable(resp.StatusCode) && attempt < maxRetries {
			backoff := c.retryBackoff(resp, attempt)
			c.logger.Warn("retrying pre-signed request after HTTP error",
				slog.String("op", desc),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
			)

			if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
				return nil, fmt.Errorf("adrive: %s canceled: %w", desc, sleepErr)
			}

			attempt++

			continue
		}

		return nil, newAPIError(resp.StatusCode, resp.Header, errBody)
	}
}
