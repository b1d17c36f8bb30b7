package transfer

import (
	"context"
	"io"

	"github.com/tonimelisma/alidrive-go/internal/adrive"
)

// UploadAPI is the part of *adrive.Client the uploader drives.
type UploadAPI interface {
	CreateFile(ctx context.Context, req *adrive.CreateFileRequest) (*adrive.CreateFileResponse, error)
	GetUploadURL(ctx context.Context, req *adrive.GetUploadURLRequest) (*adrive.GetUploadURLResponse, error)
	UploadPart(ctx context.Context, uploadURL string, part io.ReadSeeker, size int64) error
	CompleteFileWith(ctx context.Context, req *adrive.CompleteFileRequest) (*adrive.File, error)
}

// DownloadAPI is the part of *adrive.Client the downloader drives.
type DownloadAPI interface {
	GetFile(ctx context.Context, driveID, fileID string) (*adrive.File, error)
	Download(ctx context.Context, driveID, fileID string, w io.Writer) (int64, error)
}
