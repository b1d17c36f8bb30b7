package adrive

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
)

const (
	shareInfoPath        = "/adrive/v3/share_link/get_share_by_anonymous"
	shareTokenPath       = "/v2/share_link/get_share_token"
	shareFileListPath    = "/adrive/v2/file/list_by_share"
	shareFileGetPath     = "/adrive/v2/file/get_by_share"
	shareDownloadURLPath = "/v2/file/get_share_link_download_url"
	fileCopyPath         = "/v2/file/copy"

	// Sub-request URL inside a batch call.
	batchFileCopyURL = "/file/copy"
)

const (
	defaultShareFileOrder   = "name"
	defaultShareURLExpireIn = 600
)

type shareIDRequest struct {
	ShareID string `json:"share_id"`
}

// GetShareInfo returns the public summary of a share. No share token is
// needed.
func (c *Client) GetShareInfo(ctx context.Context, shareID string) (*ShareInfo, error) {
	if shareID == "" {
		return nil, fmt.Errorf("%w: share_id", ErrMissingField)
	}

	c.logger.Info("getting share info", slog.String("share_id", shareID))

	var info ShareInfo
	if err := c.postJSON(ctx, shareInfoPath, shareIDRequest{ShareID: shareID}, "", &info); err != nil {
		return nil, err
	}

	return &info, nil
}

// getShareTokenRequest always carries share_pwd, empty for open shares.
type getShareTokenRequest struct {
	ShareID  string `json:"share_id"`
	SharePwd string `json:"share_pwd"`
}

// GetShareToken exchanges a share id and password ("" when the share has
// none) for a share token.
func (c *Client) GetShareToken(ctx context.Context, shareID, sharePwd string) (*ShareToken, error) {
	if shareID == "" {
		return nil, fmt.Errorf("%w: share_id", ErrMissingField)
	}

	c.logger.Info("getting share token",
		slog.String("share_id", shareID),
		slog.Bool("password", sharePwd != ""),
	)

	var tok ShareToken
	if err := c.postJSON(ctx, shareTokenPath, getShareTokenRequest{ShareID: shareID, SharePwd: sharePwd}, "", &tok); err != nil {
		return nil, err
	}

	return &tok, nil
}

// ListShareFilesRequest is the body of a share directory listing.
type ListShareFilesRequest struct {
	ShareID               string `json:"share_id"`
	ParentFileID          string `json:"parent_file_id"`
	Limit                 int    `json:"limit,omitempty"`
	Marker                string `json:"marker,omitempty"`
	OrderBy               string `json:"order_by,omitempty"`
	OrderDirection        string `json:"order_direction,omitempty"`
	ImageThumbnailProcess string `json:"image_thumbnail_process,omitempty"`
	ImageURLProcess       string `json:"image_url_process,omitempty"`
	VideoThumbnailProcess string `json:"video_thumbnail_process,omitempty"`
}

// NewListShareFilesRequest lists the top level of shareID by name.
func NewListShareFilesRequest(shareID string) *ListShareFilesRequest {
	r := &ListShareFilesRequest{ShareID: shareID}
	r.applyDefaults()

	return r
}

func (r *ListShareFilesRequest) applyDefaults() {
	if r.ParentFileID == "" {
		r.ParentFileID = RootFileID
	}

	if r.Limit == 0 {
		r.Limit = defaultListLimit
	}

	if r.OrderBy == "" {
		r.OrderBy = defaultShareFileOrder
	}

	if r.OrderDirection == "" {
		r.OrderDirection = OrderASC
	}
}

// ListShareFiles returns every entry of one folder inside a share.
func (c *Client) ListShareFiles(
	ctx context.Context, shareID, shareToken string, optFns ...func(*ListShareFilesRequest),
) ([]ShareFile, error) {
	req := NewListShareFilesRequest(shareID)
	for _, fn := range optFns {
		fn(req)
	}

	return c.ListShareFilesWith(ctx, req, shareToken)
}

// ListShareFilesWith is ListShareFiles with a pre-built request.
func (c *Client) ListShareFilesWith(
	ctx context.Context, req *ListShareFilesRequest, shareToken string,
) ([]ShareFile, error) {
	files, err := collect(c.ShareFiles(ctx, req, shareToken))
	if err != nil {
		return nil, err
	}

	c.logger.Info("listed share files",
		slog.String("share_id", req.ShareID),
		slog.String("parent_file_id", req.ParentFileID),
		slog.Int("total", len(files)),
	)

	return files, nil
}

// ShareFiles iterates one folder inside a share page by page.
func (c *Client) ShareFiles(
	ctx context.Context, req *ListShareFilesRequest, shareToken string,
) iter.Seq2[ShareFile, error] {
	if req == nil {
		return errSeq[ShareFile](ErrNilRequest)
	}

	if err := checkShareRequest(req.ShareID, shareToken); err != nil {
		return errSeq[ShareFile](err)
	}

	body := *req
	body.applyDefaults()

	return paginate(ctx, body.Marker, func(ctx context.Context, marker string) (*page[ShareFile], error) {
		body.Marker = marker

		c.logger.Debug("fetching share file page",
			slog.String("share_id", body.ShareID),
			slog.String("parent_file_id", body.ParentFileID),
		)

		var p page[ShareFile]
		if err := c.postJSON(ctx, shareFileListPath, &body, shareToken, &p); err != nil {
			return nil, err
		}

		return &p, nil
	})
}

// GetShareFileRequest is the body of a single share entry lookup.
type GetShareFileRequest struct {
	ShareID               string `json:"share_id"`
	FileID                string `json:"file_id"`
	Fields                string `json:"fields,omitempty"`
	ImageThumbnailProcess string `json:"image_thumbnail_process,omitempty"`
	ImageURLProcess       string `json:"image_url_process,omitempty"`
	VideoThumbnailProcess string `json:"video_thumbnail_process,omitempty"`
}

// NewGetShareFileRequest looks up fileID inside shareID.
func NewGetShareFileRequest(shareID, fileID string) *GetShareFileRequest {
	return &GetShareFileRequest{ShareID: shareID, FileID: fileID}
}

// GetShareFile returns one entry of a share.
func (c *Client) GetShareFile(
	ctx context.Context, shareID, fileID, shareToken string, optFns ...func(*GetShareFileRequest),
) (*ShareFile, error) {
	req := NewGetShareFileRequest(shareID, fileID)
	for _, fn := range optFns {
		fn(req)
	}

	return c.GetShareFileWith(ctx, req, shareToken)
}

// GetShareFileWith is GetShareFile with a pre-built request.
func (c *Client) GetShareFileWith(ctx context.Context, req *GetShareFileRequest, shareToken string) (*ShareFile, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	if err := checkShareRequest(req.ShareID, shareToken); err != nil {
		return nil, err
	}

	if req.FileID == "" {
		return nil, fmt.Errorf("%w: file_id", ErrMissingField)
	}

	c.logger.Info("getting share file",
		slog.String("share_id", req.ShareID),
		slog.String("file_id", req.FileID),
	)

	var f ShareFile
	if err := c.postJSON(ctx, shareFileGetPath, req, shareToken, &f); err != nil {
		return nil, err
	}

	return &f, nil
}

// GetShareDownloadURLRequest is the body of a share download link request.
// ExpireSec defaults to 600.
type GetShareDownloadURLRequest struct {
	ShareID   string `json:"share_id"`
	FileID    string `json:"file_id"`
	ExpireSec int    `json:"expire_sec,omitempty"`
}

// NewGetShareDownloadURLRequest asks for a 10 minute link to fileID.
func NewGetShareDownloadURLRequest(shareID, fileID string) *GetShareDownloadURLRequest {
	r := &GetShareDownloadURLRequest{ShareID: shareID, FileID: fileID}
	r.applyDefaults()

	return r
}

func (r *GetShareDownloadURLRequest) applyDefaults() {
	if r.ExpireSec == 0 {
		r.ExpireSec = defaultShareURLExpireIn
	}
}

// GetShareDownloadURL returns a short-lived download link for a file inside
// a share. The link is never logged.
func (c *Client) GetShareDownloadURL(
	ctx context.Context, shareID, fileID, shareToken string, optFns ...func(*GetShareDownloadURLRequest),
) (*ShareDownloadURL, error) {
	req := NewGetShareDownloadURLRequest(shareID, fileID)
	for _, fn := range optFns {
		fn(req)
	}

	return c.GetShareDownloadURLWith(ctx, req, shareToken)
}

// GetShareDownloadURLWith is GetShareDownloadURL with a pre-built request.
func (c *Client) GetShareDownloadURLWith(
	ctx context.Context, req *GetShareDownloadURLRequest, shareToken string,
) (*ShareDownloadURL, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	if err := checkShareRequest(req.ShareID, shareToken); err != nil {
		return nil, err
	}

	if req.FileID == "" {
		return nil, fmt.Errorf("%w: file_id", ErrMissingField)
	}

	body := *req
	body.applyDefaults()

	c.logger.Info("getting share download url",
		slog.String("share_id", body.ShareID),
		slog.String("file_id", body.FileID),
		slog.Int("expire_sec", body.ExpireSec),
	)

	var u ShareDownloadURL
	if err := c.postJSON(ctx, shareDownloadURLPath, &body, shareToken, &u); err != nil {
		return nil, err
	}

	return &u, nil
}

// SaveShareFileRequest copies one share entry into the user's drive.
// ToParentFileID defaults to the drive root, ToDriveID to the default drive
// and AutoRename to true.
type SaveShareFileRequest struct {
	ShareID        string `json:"share_id"`
	FileID         string `json:"file_id"`
	ToParentFileID string `json:"to_parent_file_id"`
	ToDriveID      string `json:"to_drive_id"`
	NewName        string `json:"new_name,omitempty"`
	AutoRename     *bool  `json:"auto_rename,omitempty"`
}

// NewSaveShareFileRequest saves fileID from shareID to the drive root.
func NewSaveShareFileRequest(shareID, fileID string) *SaveShareFileRequest {
	r := &SaveShareFileRequest{ShareID: shareID, FileID: fileID}
	r.applyDefaults()

	return r
}

func (r *SaveShareFileRequest) applyDefaults() {
	if r.ToParentFileID == "" {
		r.ToParentFileID = RootFileID
	}

	if r.AutoRename == nil {
		r.AutoRename = Bool(true)
	}
}

// SaveShareFile copies a share entry into the user's drive.
func (c *Client) SaveShareFile(
	ctx context.Context, shareID, fileID, shareToken string, optFns ...func(*SaveShareFileRequest),
) (*SaveShareFileResponse, error) {
	req := NewSaveShareFileRequest(shareID, fileID)
	for _, fn := range optFns {
		fn(req)
	}

	return c.SaveShareFileWith(ctx, req, shareToken)
}

// SaveShareFileWith is SaveShareFile with a pre-built request.
func (c *Client) SaveShareFileWith(
	ctx context.Context, req *SaveShareFileRequest, shareToken string,
) (*SaveShareFileResponse, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	if err := checkShareRequest(req.ShareID, shareToken); err != nil {
		return nil, err
	}

	if req.FileID == "" {
		return nil, fmt.Errorf("%w: file_id", ErrMissingField)
	}

	body := *req
	body.applyDefaults()

	driveID, err := c.defaultDriveID(ctx, body.ToDriveID)
	if err != nil {
		return nil, err
	}

	body.ToDriveID = driveID

	c.logger.Info("saving share file",
		slog.String("share_id", body.ShareID),
		slog.String("file_id", body.FileID),
		slog.String("to_drive_id", body.ToDriveID),
		slog.String("to_parent_file_id", body.ToParentFileID),
	)

	var out SaveShareFileResponse
	if err := c.postJSON(ctx, fileCopyPath, &body, shareToken, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// BatchSaveShareFilesRequest copies several entries of one share into the
// same destination folder.
type BatchSaveShareFilesRequest struct {
	ShareID        string
	FileIDList     []string
	ToParentFileID string
	ToDriveID      string
	AutoRename     *bool
}

// NewBatchSaveShareFilesRequest saves fileIDs from shareID to the drive root.
func NewBatchSaveShareFilesRequest(shareID string, fileIDs ...string) *BatchSaveShareFilesRequest {
	r := &BatchSaveShareFilesRequest{ShareID: shareID, FileIDList: fileIDs}
	r.applyDefaults()

	return r
}

func (r *BatchSaveShareFilesRequest) applyDefaults() {
	if r.ToParentFileID == "" {
		r.ToParentFileID = RootFileID
	}

	if r.AutoRename == nil {
		r.AutoRename = Bool(true)
	}
}

// BatchSaveShareFiles copies several share entries through the batch
// endpoint. Results line up with fileIDs; decode each into a
// SaveShareFileResponse.
func (c *Client) BatchSaveShareFiles(
	ctx context.Context, shareID string, fileIDs []string, shareToken string,
	optFns ...func(*BatchSaveShareFilesRequest),
) ([]BatchResult, error) {
	req := NewBatchSaveShareFilesRequest(shareID, fileIDs...)
	for _, fn := range optFns {
		fn(req)
	}

	return c.BatchSaveShareFilesWith(ctx, req, shareToken)
}

// BatchSaveShareFilesWith is BatchSaveShareFiles with a pre-built request.
func (c *Client) BatchSaveShareFilesWith(
	ctx context.Context, req *BatchSaveShareFilesRequest, shareToken string,
) ([]BatchResult, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	if err := checkShareRequest(req.ShareID, shareToken); err != nil {
		return nil, err
	}

	if len(req.FileIDList) == 0 {
		return nil, fmt.Errorf("%w: file_id_list", ErrMissingField)
	}

	body := *req
	body.applyDefaults()

	driveID, err := c.defaultDriveID(ctx, body.ToDriveID)
	if err != nil {
		return nil, err
	}

	c.logger.Info("batch saving share files",
		slog.String("share_id", body.ShareID),
		slog.Int("count", len(body.FileIDList)),
		slog.String("to_drive_id", driveID),
	)

	ops := make([]batchOp, len(body.FileIDList))
	for i, id := range body.FileIDList {
		ops[i] = batchOp{id: id, body: SaveShareFileRequest{
			ShareID:        body.ShareID,
			FileID:         id,
			ToParentFileID: body.ToParentFileID,
			ToDriveID:      driveID,
			AutoRename:     body.AutoRename,
		}}
	}

	return c.batch(ctx, batchFileCopyURL, ops, shareToken)
}

// checkShareRequest rejects a missing share id or share token.
func checkShareRequest(shareID, shareToken string) error {
	if shareID == "" {
		return fmt.Errorf("%w: share_id", ErrMissingField)
	}

	if shareToken == "" {
		return fmt.Errorf("%w: share_token", ErrMissingField)
	}

	return nil
}
