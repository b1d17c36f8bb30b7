package adrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

const (
	fileCreatePath       = "/adrive/v2/file/createWithFolders"
	fileUploadURLPath    = "/v2/file/get_upload_url"
	fileCompletePath     = "/v2/file/complete"
	contentHashNameSHA1  = "sha1"
	proofVersionV1       = "v1"
	defaultCheckNameMode = CheckNameAutoRename
)

// ErrUploadURLExpired is returned by UploadPart when the pre-signed part URL
// is no longer accepted. Refresh it with GetUploadURL and retry the part.
var ErrUploadURLExpired = errors.New("adrive: upload url expired")

// CreateFileRequest is the body of a file or folder creation call. For
// files, set ContentHash and ProofCode for a rapid upload attempt, or only
// PreHash to check for a possible match first.
type CreateFileRequest struct {
	DriveID         string           `json:"drive_id"`
	ParentFileID    string           `json:"parent_file_id"`
	Name            string           `json:"name"`
	Type            string           `json:"type"`
	CheckNameMode   string           `json:"check_name_mode,omitempty"`
	Size            int64            `json:"size,omitempty"`
	PartInfoList    []UploadPartInfo `json:"part_info_list,omitempty"`
	ContentHashName string           `json:"content_hash_name,omitempty"`
	ContentHash     string           `json:"content_hash,omitempty"`
	ProofVersion    string           `json:"proof_version,omitempty"`
	ProofCode       string           `json:"proof_code,omitempty"`
	PreHash         string           `json:"pre_hash,omitempty"`
}

func (r *CreateFileRequest) applyDefaults() {
	if r.ParentFileID == "" {
		r.ParentFileID = RootFileID
	}

	if r.Type == "" {
		r.Type = TypeFile
	}

	if r.CheckNameMode == "" {
		r.CheckNameMode = defaultCheckNameMode
	}

	if r.ContentHash != "" && r.ContentHashName == "" {
		r.ContentHashName = contentHashNameSHA1
	}

	if r.ProofCode != "" && r.ProofVersion == "" {
		r.ProofVersion = proofVersionV1
	}
}

// CreateFileResponse reports the created entry. When RapidUpload is true
// the content already exists server-side and no parts need uploading.
type CreateFileResponse struct {
	DriveID      string           `json:"drive_id"`
	DomainID     string           `json:"domain_id,omitempty"`
	FileID       string           `json:"file_id"`
	ParentFileID string           `json:"parent_file_id"`
	FileName     string           `json:"file_name"`
	Type         string           `json:"type"`
	UploadID     string           `json:"upload_id,omitempty"`
	RapidUpload  bool             `json:"rapid_upload"`
	Exist        bool             `json:"exist,omitempty"`
	Location     string           `json:"location,omitempty"`
	PartInfoList []UploadPartInfo `json:"part_info_list,omitempty"`
}

// CreateFile creates a file (starting an upload) or folder.
func (c *Client) CreateFile(ctx context.Context, req *CreateFileRequest) (*CreateFileResponse, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	if req.Name == "" {
		return nil, fmt.Errorf("%w: name", ErrMissingField)
	}

	body := *req
	body.applyDefaults()

	driveID, err := c.defaultDriveID(ctx, body.DriveID)
	if err != nil {
		return nil, err
	}

	body.DriveID = driveID

	c.logger.Info("creating file",
		slog.String("drive_id", body.DriveID),
		slog.String("parent_file_id", body.ParentFileID),
		slog.String("name", body.Name),
		slog.String("type", body.Type),
		slog.Int64("size", body.Size),
		slog.Int("parts", len(body.PartInfoList)),
	)

	var out CreateFileResponse
	if err := c.postJSON(ctx, fileCreatePath, &body, "", &out); err != nil {
		return nil, err
	}

	c.logger.Debug("created file",
		slog.String("file_id", out.FileID),
		slog.Bool("rapid_upload", out.RapidUpload),
	)

	return &out, nil
}

// CreateFolder creates name under parentFileID in the default drive. An
// existing folder of the same name is returned instead of a duplicate.
func (c *Client) CreateFolder(ctx context.Context, parentFileID, name string) (*CreateFileResponse, error) {
	return c.CreateFile(ctx, &CreateFileRequest{
		ParentFileID:  parentFileID,
		Name:          name,
		Type:          TypeFolder,
		CheckNameMode: CheckNameRefuse,
	})
}

// GetUploadURLRequest asks for fresh pre-signed URLs for the listed parts.
type GetUploadURLRequest struct {
	DriveID      string           `json:"drive_id"`
	FileID       string           `json:"file_id"`
	UploadID     string           `json:"upload_id"`
	PartInfoList []UploadPartInfo `json:"part_info_list"`
}

// GetUploadURLResponse carries the refreshed part URLs.
type GetUploadURLResponse struct {
	DomainID     string           `json:"domain_id,omitempty"`
	DriveID      string           `json:"drive_id"`
	FileID       string           `json:"file_id"`
	UploadID     string           `json:"upload_id"`
	PartInfoList []UploadPartInfo `json:"part_info_list"`
	CreateAt     Time             `json:"create_at,omitzero"`
}

// GetUploadURL refreshes expired part URLs of an in-progress upload.
func (c *Client) GetUploadURL(ctx context.Context, req *GetUploadURLRequest) (*GetUploadURLResponse, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	if req.FileID == "" || req.UploadID == "" {
		return nil, fmt.Errorf("%w: file_id and upload_id", ErrMissingField)
	}

	body := *req

	driveID, err := c.defaultDriveID(ctx, body.DriveID)
	if err != nil {
		return nil, err
	}

	body.DriveID = driveID

	c.logger.Info("refreshing upload urls",
		slog.String("file_id", body.FileID),
		slog.Int("parts", len(body.PartInfoList)),
	)

	var out GetUploadURLResponse
	if err := c.postJSON(ctx, fileUploadURLPath, &body, "", &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// CompleteFileRequest finishes an upload. Only FileID is required; DriveID
// defaults to the default drive.
type CompleteFileRequest struct {
	DriveID      string           `json:"drive_id"`
	FileID       string           `json:"file_id"`
	UploadID     string           `json:"upload_id,omitempty"`
	PartInfoList []UploadPartInfo `json:"part_info_list,omitempty"`
}

// NewCompleteFileRequest completes the upload of fileID.
func NewCompleteFileRequest(fileID, uploadID string) *CompleteFileRequest {
	return &CompleteFileRequest{FileID: fileID, UploadID: uploadID}
}

// CompleteFile marks the upload of fileID as finished.
func (c *Client) CompleteFile(
	ctx context.Context, fileID, uploadID string, optFns ...func(*CompleteFileRequest),
) (*File, error) {
	req := NewCompleteFileRequest(fileID, uploadID)
	for _, fn := range optFns {
		fn(req)
	}

	return c.CompleteFileWith(ctx, req)
}

// CompleteFileWith is CompleteFile with a pre-built request.
func (c *Client) CompleteFileWith(ctx context.Context, req *CompleteFileRequest) (*File, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	if req.FileID == "" {
		return nil, fmt.Errorf("%w: file_id", ErrMissingField)
	}

	body := *req

	driveID, err := c.defaultDriveID(ctx, body.DriveID)
	if err != nil {
		return nil, err
	}

	body.DriveID = driveID

	c.logger.Info("completing upload",
		slog.String("drive_id", body.DriveID),
		slog.String("file_id", body.FileID),
	)

	var f File
	if err := c.postJSON(ctx, fileCompletePath, &body, "", &f); err != nil {
		return nil, err
	}

	return &f, nil
}

// UploadPart PUTs one part to its pre-signed URL. The URL carries its own
// authorization, so no bearer token is sent, and it is never logged. The
// service rejects any Content-Type on part uploads.
func (c *Client) UploadPart(ctx context.Context, uploadURL string, part io.ReadSeeker, size int64) error {
	resp, err := c.doPreAuthRetry(ctx, "upload part", func() (*http.Request, error) {
		if _, err := part.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("adrive: rewinding part: %w", err)
		}

		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, io.NopCloser(part))
		if reqErr != nil {
			return nil, fmt.Errorf("adrive: creating upload request: %w", reqErr)
		}

		req.ContentLength = size
		if size == 0 {
			req.Body = http.NoBody
		}

		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Referer", webReferer)

		return req, nil
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusForbidden {
			return fmt.Errorf("%w: %w", ErrUploadURLExpired, err)
		}

		return err
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}
