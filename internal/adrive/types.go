package adrive

// File types as reported in the "type" field.
const (
	TypeFile   = "file"
	TypeFolder = "folder"
)

// RootFileID is the parent ID of top-level entries in a drive or share.
const RootFileID = "root"

// Check-name modes for create requests.
const (
	CheckNameAutoRename = "auto_rename"
	CheckNameRefuse     = "refuse"
	CheckNameIgnore     = "ignore"
)

// Order directions for list requests.
const (
	OrderASC  = "ASC"
	OrderDESC = "DESC"
)

// Bool returns a pointer to v, for optional boolean request fields.
func Bool(v bool) *bool {
	return &v
}

// File is an entry in one of the user's drives.
type File struct {
	DriveID         string `json:"drive_id"`
	DomainID        string `json:"domain_id,omitempty"`
	FileID          string `json:"file_id"`
	ParentFileID    string `json:"parent_file_id"`
	Name            string `json:"name"`
	Type            string `json:"type"`
	Size            int64  `json:"size,omitempty"`
	ContentType     string `json:"content_type,omitempty"`
	MimeType        string `json:"mime_type,omitempty"`
	FileExtension   string `json:"file_extension,omitempty"`
	Category        string `json:"category,omitempty"`
	ContentHash     string `json:"content_hash,omitempty"`
	ContentHashName string `json:"content_hash_name,omitempty"`
	Crc64Hash       string `json:"crc64_hash,omitempty"`
	Hidden          bool   `json:"hidden,omitempty"`
	Starred         bool   `json:"starred,omitempty"`
	Status          string `json:"status,omitempty"`
	UploadID        string `json:"upload_id,omitempty"`
	EncryptMode     string `json:"encrypt_mode,omitempty"`
	PunishFlag      int    `json:"punish_flag,omitempty"`
	Thumbnail       string `json:"thumbnail,omitempty"`
	URL             string `json:"url,omitempty"`
	DownloadURL     string `json:"download_url,omitempty"`
	CreatedAt       Time   `json:"created_at,omitzero"`
	UpdatedAt       Time   `json:"updated_at,omitzero"`
}

// IsFolder reports whether the entry is a folder.
func (f *File) IsFolder() bool {
	return f.Type == TypeFolder
}

// ShareLink is a share created by the signed-in user.
type ShareLink struct {
	ShareID       string     `json:"share_id"`
	ShareName     string     `json:"share_name,omitempty"`
	ShareURL      string     `json:"share_url,omitempty"`
	SharePwd      string     `json:"share_pwd,omitempty"`
	ShareMsg      string     `json:"share_msg,omitempty"`
	SharePolicy   string     `json:"share_policy,omitempty"`
	Description   string     `json:"description,omitempty"`
	DriveID       string     `json:"drive_id,omitempty"`
	FileID        string     `json:"file_id,omitempty"`
	FileIDList    []string   `json:"file_id_list,omitempty"`
	Creator       string     `json:"creator,omitempty"`
	Status        string     `json:"status,omitempty"`
	Expired       bool       `json:"expired,omitempty"`
	Expiration    Time       `json:"expiration,omitzero"`
	CreatedAt     Time       `json:"created_at,omitzero"`
	UpdatedAt     Time       `json:"updated_at,omitzero"`
	DownloadCount int        `json:"download_count,omitempty"`
	PreviewCount  int        `json:"preview_count,omitempty"`
	SaveCount     int        `json:"save_count,omitempty"`
	FirstFile     *ShareFile `json:"first_file,omitempty"`
}

// ShareInfo is the anonymous summary of someone else's share.
type ShareInfo struct {
	ShareName    string          `json:"share_name"`
	ShareTitle   string          `json:"share_title,omitempty"`
	CreatorID    string          `json:"creator_id,omitempty"`
	CreatorName  string          `json:"creator_name,omitempty"`
	CreatorPhone string          `json:"creator_phone,omitempty"`
	DisplayName  string          `json:"display_name,omitempty"`
	Avatar       string          `json:"avatar,omitempty"`
	FileCount    int             `json:"file_count"`
	FileInfos    []ShareFileInfo `json:"file_infos,omitempty"`
	HasPwd       bool            `json:"has_pwd,omitempty"`
	Vip          string          `json:"vip,omitempty"`
	Expiration   Time            `json:"expiration,omitzero"`
	UpdatedAt    Time            `json:"updated_at,omitzero"`
}

// ShareFileInfo is a top-level entry listed in ShareInfo.
type ShareFileInfo struct {
	Type     string `json:"type"`
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
}

// ShareToken authorizes read access to one share. It is sent as the
// x-share-token header on share file requests.
type ShareToken struct {
	ShareToken string `json:"share_token"`
	ExpiresIn  int    `json:"expires_in"`
	ExpireTime Time   `json:"expire_time,omitzero"`
}

// ShareFile is an entry inside a share.
type ShareFile struct {
	ShareID       string `json:"share_id"`
	DriveID       string `json:"drive_id,omitempty"`
	DomainID      string `json:"domain_id,omitempty"`
	FileID        string `json:"file_id"`
	ParentFileID  string `json:"parent_file_id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	Size          int64  `json:"size,omitempty"`
	Category      string `json:"category,omitempty"`
	FileExtension string `json:"file_extension,omitempty"`
	MimeType      string `json:"mime_type,omitempty"`
	Creator       string `json:"creator,omitempty"`
	Description   string `json:"description,omitempty"`
	PunishFlag    int    `json:"punish_flag,omitempty"`
	Thumbnail     string `json:"thumbnail,omitempty"`
	URL           string `json:"url,omitempty"`
	CreatedAt     Time   `json:"created_at,omitzero"`
	UpdatedAt     Time   `json:"updated_at,omitzero"`
}

// IsFolder reports whether the entry is a folder.
func (f *ShareFile) IsFolder() bool {
	return f.Type == TypeFolder
}

// ShareDownloadURL is a short-lived link to a file inside a share.
type ShareDownloadURL struct {
	DownloadURL string `json:"download_url"`
	URL         string `json:"url,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	Expiration  Time   `json:"expiration,omitzero"`
}

// SaveShareFileResponse describes the copy created by saving a share entry.
// Folder copies run asynchronously and carry an AsyncTaskID.
type SaveShareFileResponse struct {
	DomainID    string `json:"domain_id,omitempty"`
	DriveID     string `json:"drive_id"`
	FileID      string `json:"file_id"`
	AsyncTaskID string `json:"async_task_id,omitempty"`
}

// DownloadURL is a short-lived link to a file in one of the user's drives.
type DownloadURL struct {
	URL         string `json:"url"`
	InternalURL string `json:"internal_url,omitempty"`
	CDNURL      string `json:"cdn_url,omitempty"`
	Method      string `json:"method,omitempty"`
	Size        int64  `json:"size"`
	Expiration  Time   `json:"expiration,omitzero"`
}

// User is the signed-in account.
type User struct {
	DomainID        string `json:"domain_id,omitempty"`
	UserID          string `json:"user_id"`
	UserName        string `json:"user_name,omitempty"`
	NickName        string `json:"nick_name,omitempty"`
	Avatar          string `json:"avatar,omitempty"`
	Email           string `json:"email,omitempty"`
	Phone           string `json:"phone,omitempty"`
	Role            string `json:"role,omitempty"`
	Status          string `json:"status,omitempty"`
	DefaultDriveID  string `json:"default_drive_id"`
	ResourceDriveID string `json:"resource_drive_id,omitempty"`
	BackupDriveID   string `json:"backup_drive_id,omitempty"`
	CreatedAt       int64  `json:"created_at,omitempty"`
	UpdatedAt       int64  `json:"updated_at,omitempty"`
}

// UploadPartInfo describes one part of a multipart upload.
type UploadPartInfo struct {
	PartNumber        int    `json:"part_number"`
	PartSize          int64  `json:"part_size,omitempty"`
	UploadURL         string `json:"upload_url,omitempty"`
	InternalUploadURL string `json:"internal_upload_url,omitempty"`
	ContentType       string `json:"content_type,omitempty"`
	ETag              string `json:"etag,omitempty"`
}
