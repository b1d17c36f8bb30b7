package adrive

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
)

const (
	shareCreatePath = "/adrive/v2/share_link/create"
	shareUpdatePath = "/adrive/v2/share_link/update"
	shareCancelPath = "/adrive/v2/share_link/cancel"
	shareListPath   = "/adrive/v3/share_link/list"

	// Sub-request URL inside a batch call.
	batchShareCancelURL = "/share_link/cancel"
)

const (
	defaultListLimit      = 100
	defaultShareListOrder = "created_at"
)

// String returns a pointer to v, for optional string fields where the empty
// string is a meaningful value.
func String(v string) *string {
	return &v
}

// CreateShareLinkRequest is the body of a share creation call.
// A zero Expiration creates a share that never expires; an empty SharePwd
// creates a share without a password.
type CreateShareLinkRequest struct {
	DriveID     string   `json:"drive_id"`
	FileIDList  []string `json:"file_id_list"`
	ShareName   string   `json:"share_name,omitempty"`
	SharePwd    string   `json:"share_pwd,omitempty"`
	Description string   `json:"description,omitempty"`
	Expiration  Time     `json:"expiration,omitzero"`
}

// NewCreateShareLinkRequest returns a request sharing fileIDs from the
// default drive.
func NewCreateShareLinkRequest(fileIDs ...string) *CreateShareLinkRequest {
	return &CreateShareLinkRequest{FileIDList: fileIDs}
}

// CreateShareLink shares fileIDs. optFns adjust the request before it is sent.
func (c *Client) CreateShareLink(
	ctx context.Context, fileIDs []string, optFns ...func(*CreateShareLinkRequest),
) (*ShareLink, error) {
	req := NewCreateShareLinkRequest(fileIDs...)
	for _, fn := range optFns {
		fn(req)
	}

	return c.CreateShareLinkWith(ctx, req)
}

// CreateShareLinkWith sends a pre-built creation request. The caller's
// request is not modified.
func (c *Client) CreateShareLinkWith(ctx context.Context, req *CreateShareLinkRequest) (*ShareLink, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	if len(req.FileIDList) == 0 {
		return nil, fmt.Errorf("%w: file_id_list", ErrMissingField)
	}

	body := *req

	driveID, err := c.defaultDriveID(ctx, body.DriveID)
	if err != nil {
		return nil, err
	}

	body.DriveID = driveID

	c.logger.Info("creating share link",
		slog.String("drive_id", body.DriveID),
		slog.Int("files", len(body.FileIDList)),
		slog.Bool("password", body.SharePwd != ""),
	)

	var link ShareLink
	if err := c.postJSON(ctx, shareCreatePath, &body, "", &link); err != nil {
		return nil, err
	}

	c.logger.Debug("created share link", slog.String("share_id", link.ShareID))

	return &link, nil
}

// UpdateShareLinkRequest is the body of a share update call. Nil or zero
// fields are left unchanged; SharePwd set to String("") removes the password.
type UpdateShareLinkRequest struct {
	ShareID     string  `json:"share_id"`
	SharePwd    *string `json:"share_pwd,omitempty"`
	ShareName   string  `json:"share_name,omitempty"`
	Description string  `json:"description,omitempty"`
	Expiration  Time    `json:"expiration,omitzero"`
}

// NewUpdateShareLinkRequest returns an update request for shareID that
// changes nothing until fields are set.
func NewUpdateShareLinkRequest(shareID string) *UpdateShareLinkRequest {
	return &UpdateShareLinkRequest{ShareID: shareID}
}

// UpdateShareLink changes the settings of one of the user's shares.
func (c *Client) UpdateShareLink(
	ctx context.Context, shareID string, optFns ...func(*UpdateShareLinkRequest),
) (*ShareLink, error) {
	req := NewUpdateShareLinkRequest(shareID)
	for _, fn := range optFns {
		fn(req)
	}

	return c.UpdateShareLinkWith(ctx, req)
}

// UpdateShareLinkWith sends a pre-built update request.
func (c *Client) UpdateShareLinkWith(ctx context.Context, req *UpdateShareLinkRequest) (*ShareLink, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	if req.ShareID == "" {
		return nil, fmt.Errorf("%w: share_id", ErrMissingField)
	}

	c.logger.Info("updating share link", slog.String("share_id", req.ShareID))

	var link ShareLink
	if err := c.postJSON(ctx, shareUpdatePath, req, "", &link); err != nil {
		return nil, err
	}

	return &link, nil
}

type cancelShareLinkRequest struct {
	ShareID string `json:"share_id"`
}

// CancelShareLink revokes one of the user's shares.
func (c *Client) CancelShareLink(ctx context.Context, shareID string) error {
	if shareID == "" {
		return fmt.Errorf("%w: share_id", ErrMissingField)
	}

	c.logger.Info("canceling share link", slog.String("share_id", shareID))

	return c.postJSON(ctx, shareCancelPath, cancelShareLinkRequest{ShareID: shareID}, "", nil)
}

// BatchCancelShareLinks revokes several shares through the batch endpoint.
// The returned results line up with shareIDs; inspect each with Err.
func (c *Client) BatchCancelShareLinks(ctx context.Context, shareIDs []string) ([]BatchResult, error) {
	if len(shareIDs) == 0 {
		return nil, fmt.Errorf("%w: share_id_list", ErrMissingField)
	}

	c.logger.Info("batch canceling share links", slog.Int("count", len(shareIDs)))

	ops := make([]batchOp, len(shareIDs))
	for i, id := range shareIDs {
		ops[i] = batchOp{id: id, body: cancelShareLinkRequest{ShareID: id}}
	}

	return c.batch(ctx, batchShareCancelURL, ops, "")
}

// ListShareLinksRequest is the body of a share listing call. Creator
// defaults to the signed-in user. IncludeCanceled is always sent.
type ListShareLinksRequest struct {
	Creator         string `json:"creator"`
	IncludeCanceled bool   `json:"include_canceled"`
	Limit           int    `json:"limit,omitempty"`
	OrderBy         string `json:"order_by,omitempty"`
	OrderDirection  string `json:"order_direction,omitempty"`
	Marker          string `json:"marker,omitempty"`
}

// NewListShareLinksRequest returns a request for the user's shares, newest
// first, 100 per page.
func NewListShareLinksRequest() *ListShareLinksRequest {
	r := &ListShareLinksRequest{}
	r.applyDefaults()

	return r
}

func (r *ListShareLinksRequest) applyDefaults() {
	if r.Limit == 0 {
		r.Limit = defaultListLimit
	}

	if r.OrderBy == "" {
		r.OrderBy = defaultShareListOrder
	}

	if r.OrderDirection == "" {
		r.OrderDirection = OrderDESC
	}
}

// ListShareLinks returns every share of the user, walking all pages.
func (c *Client) ListShareLinks(ctx context.Context, optFns ...func(*ListShareLinksRequest)) ([]ShareLink, error) {
	req := NewListShareLinksRequest()
	for _, fn := range optFns {
		fn(req)
	}

	return c.ListShareLinksWith(ctx, req)
}

// ListShareLinksWith is ListShareLinks with a pre-built request.
func (c *Client) ListShareLinksWith(ctx context.Context, req *ListShareLinksRequest) ([]ShareLink, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	links, err := collect(c.ShareLinks(ctx, req))
	if err != nil {
		return nil, err
	}

	c.logger.Info("listed share links", slog.Int("total", len(links)))

	return links, nil
}

// ShareLinks iterates the user's shares page by page. Listing starts at
// req.Marker, so a saved marker resumes an earlier walk.
func (c *Client) ShareLinks(ctx context.Context, req *ListShareLinksRequest) iter.Seq2[ShareLink, error] {
	if req == nil {
		return errSeq[ShareLink](ErrNilRequest)
	}

	body := *req
	body.applyDefaults()

	return paginate(ctx, body.Marker, func(ctx context.Context, marker string) (*page[ShareLink], error) {
		if body.Creator == "" {
			a, err := c.Account(ctx)
			if err != nil {
				return nil, err
			}

			body.Creator = a.UserID
		}

		body.Marker = marker

		c.logger.Debug("fetching share link page", slog.Bool("first", marker == ""))

		var p page[ShareLink]
		if err := c.postJSON(ctx, shareListPath, &body, "", &p); err != nil {
			return nil, err
		}

		return &p, nil
	})
}

// errSeq yields a single error.
func errSeq[T any](err error) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		yield(zero, err)
	}
}
