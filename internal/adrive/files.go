package adrive

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
)

const (
	fileGetPath         = "/v2/file/get"
	fileGetByPathPath   = "/adrive/v1/file/get_by_path"
	fileListPath        = "/adrive/v3/file/list"
	fileDownloadURLPath = "/v2/file/get_download_url"
)

const (
	defaultFileListOrder   = "updated_at"
	defaultDownloadExpires = 14400
)

type getFileRequest struct {
	DriveID string `json:"drive_id"`
	FileID  string `json:"file_id"`
}

// GetFile returns one entry of a drive. An empty driveID means the default
// drive.
func (c *Client) GetFile(ctx context.Context, driveID, fileID string) (*File, error) {
	if fileID == "" {
		return nil, fmt.Errorf("%w: file_id", ErrMissingField)
	}

	driveID, err := c.defaultDriveID(ctx, driveID)
	if err != nil {
		return nil, err
	}

	c.logger.Info("getting file",
		slog.String("drive_id", driveID),
		slog.String("file_id", fileID),
	)

	var f File
	if err := c.postJSON(ctx, fileGetPath, getFileRequest{DriveID: driveID, FileID: fileID}, "", &f); err != nil {
		return nil, err
	}

	return &f, nil
}

type getFileByPathRequest struct {
	DriveID  string `json:"drive_id"`
	FilePath string `json:"file_path"`
}

// GetFileByPath resolves a slash-separated path such as "/docs/a.txt".
func (c *Client) GetFileByPath(ctx context.Context, driveID, filePath string) (*File, error) {
	if filePath == "" {
		return nil, fmt.Errorf("%w: file_path", ErrMissingField)
	}

	driveID, err := c.defaultDriveID(ctx, driveID)
	if err != nil {
		return nil, err
	}

	c.logger.Info("getting file by path",
		slog.String("drive_id", driveID),
		slog.String("path", filePath),
	)

	var f File
	if err := c.postJSON(ctx, fileGetByPathPath, getFileByPathRequest{DriveID: driveID, FilePath: filePath}, "", &f); err != nil {
		return nil, fmt.Errorf("adrive: resolving %q: %w", filePath, err)
	}

	return &f, nil
}

// ListFilesRequest is the body of a drive folder listing.
type ListFilesRequest struct {
	DriveID               string `json:"drive_id"`
	ParentFileID          string `json:"parent_file_id"`
	Limit                 int    `json:"limit,omitempty"`
	Marker                string `json:"marker,omitempty"`
	OrderBy               string `json:"order_by,omitempty"`
	OrderDirection        string `json:"order_direction,omitempty"`
	Fields                string `json:"fields,omitempty"`
	URLExpireSec          int    `json:"url_expire_sec,omitempty"`
	ImageThumbnailProcess string `json:"image_thumbnail_process,omitempty"`
	VideoThumbnailProcess string `json:"video_thumbnail_process,omitempty"`
}

// NewListFilesRequest lists parentFileID ("" for root) in the default drive,
// most recently updated first.
func NewListFilesRequest(parentFileID string) *ListFilesRequest {
	r := &ListFilesRequest{ParentFileID: parentFileID}
	r.applyDefaults()

	return r
}

func (r *ListFilesRequest) applyDefaults() {
	if r.ParentFileID == "" {
		r.ParentFileID = RootFileID
	}

	if r.Limit == 0 {
		r.Limit = defaultListLimit
	}

	if r.OrderBy == "" {
		r.OrderBy = defaultFileListOrder
	}

	if r.OrderDirection == "" {
		r.OrderDirection = OrderDESC
	}

	if r.Fields == "" {
		r.Fields = "*"
	}
}

// ListFiles returns every child of parentFileID.
func (c *Client) ListFiles(
	ctx context.Context, parentFileID string, optFns ...func(*ListFilesRequest),
) ([]File, error) {
	req := NewListFilesRequest(parentFileID)
	for _, fn := range optFns {
		fn(req)
	}

	files, err := collect(c.Files(ctx, req))
	if err != nil {
		return nil, err
	}

	c.logger.Info("listed files",
		slog.String("parent_file_id", req.ParentFileID),
		slog.Int("total", len(files)),
	)

	return files, nil
}

// Files iterates a drive folder page by page.
func (c *Client) Files(ctx context.Context, req *ListFilesRequest) iter.Seq2[File, error] {
	if req == nil {
		return errSeq[File](ErrNilRequest)
	}

	body := *req
	body.applyDefaults()

	return paginate(ctx, body.Marker, func(ctx context.Context, marker string) (*page[File], error) {
		driveID, err := c.defaultDriveID(ctx, body.DriveID)
		if err != nil {
			return nil, err
		}

		body.DriveID = driveID
		body.Marker = marker

		c.logger.Debug("fetching file page",
			slog.String("drive_id", body.DriveID),
			slog.String("parent_file_id", body.ParentFileID),
		)

		var p page[File]
		if err := c.postJSON(ctx, fileListPath, &body, "", &p); err != nil {
			return nil, err
		}

		return &p, nil
	})
}

// GetDownloadURLRequest is the body of a drive download link request.
// ExpireSec defaults to 14400.
type GetDownloadURLRequest struct {
	DriveID   string `json:"drive_id"`
	FileID    string `json:"file_id"`
	ExpireSec int    `json:"expire_sec,omitempty"`
	FileName  string `json:"file_name,omitempty"`
}

// NewGetDownloadURLRequest asks for a link to fileID in the default drive.
func NewGetDownloadURLRequest(fileID string) *GetDownloadURLRequest {
	r := &GetDownloadURLRequest{FileID: fileID}
	r.applyDefaults()

	return r
}

func (r *GetDownloadURLRequest) applyDefaults() {
	if r.ExpireSec == 0 {
		r.ExpireSec = defaultDownloadExpires
	}
}

// GetDownloadURL returns a short-lived download link for a drive file.
func (c *Client) GetDownloadURL(
	ctx context.Context, fileID string, optFns ...func(*GetDownloadURLRequest),
) (*DownloadURL, error) {
	req := NewGetDownloadURLRequest(fileID)
	for _, fn := range optFns {
		fn(req)
	}

	return c.GetDownloadURLWith(ctx, req)
}

// GetDownloadURLWith is GetDownloadURL with a pre-built request.
func (c *Client) GetDownloadURLWith(ctx context.Context, req *GetDownloadURLRequest) (*DownloadURL, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	if req.FileID == "" {
		return nil, fmt.Errorf("%w: file_id", ErrMissingField)
	}

	body := *req
	body.applyDefaults()

	driveID, err := c.defaultDriveID(ctx, body.DriveID)
	if err != nil {
		return nil, err
	}

	body.DriveID = driveID

	c.logger.Info("getting download url",
		slog.String("drive_id", body.DriveID),
		slog.String("file_id", body.FileID),
	)

	var u DownloadURL
	if err := c.postJSON(ctx, fileDownloadURLPath, &body, "", &u); err != nil {
		return nil, err
	}

	return &u, nil
}
