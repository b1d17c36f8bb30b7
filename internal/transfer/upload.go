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
	"slices"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/tonimelisma/alidrive-go/internal/adrive"
	"github.com/tonimelisma/alidrive-go/pkg/proofcode"
)

// MaxParts is the most parts the service accepts for one file. Larger files
// get a bigger part size than configured.
const MaxParts = 10000

// DefaultPartSize is used when UploaderOptions.PartSize is zero.
const DefaultPartSize = 10 * 1024 * 1024

// preHashMinSize is the size from which a pre-hash check is sent before the
// full content hash. Below it, hashing everything costs less than a round trip.
const preHashMinSize = 1024 * 1024

var (
	// ErrRemoteExists is returned when check_name_mode is refuse and the
	// target name is taken.
	ErrRemoteExists = errors.New("transfer: remote file already exists")

	// ErrIsDirectory is returned when asked to upload a directory.
	ErrIsDirectory = errors.New("transfer: path is a directory")
)

// UploaderOptions configures an Uploader. Zero fields take defaults.
type UploaderOptions struct {
	PartSize      int64
	CheckNameMode string
	Store         *SessionStore // nil disables resume
	Logger        *slog.Logger
}

// Uploader uploads local files with rapid-upload detection and resumable
// multipart transfer.
type Uploader struct {
	api           UploadAPI
	token         adrive.TokenSource
	partSize      int64
	checkNameMode string
	store         *SessionStore
	logger        *slog.Logger
}

// NewUploader returns an Uploader. token supplies the access token the
// proof code is derived from; pass the same source the client uses.
func NewUploader(api UploadAPI, token adrive.TokenSource, opts UploaderOptions) *Uploader {
	if opts.PartSize <= 0 {
		opts.PartSize = DefaultPartSize
	}

	if opts.CheckNameMode == "" {
		opts.CheckNameMode = adrive.CheckNameAutoRename
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Uploader{
		api:           api,
		token:         token,
		partSize:      opts.PartSize,
		checkNameMode: opts.CheckNameMode,
		store:         opts.Store,
		logger:        opts.Logger,
	}
}

// UploadRequest names a local file and where it goes.
type UploadRequest struct {
	LocalPath    string
	DriveID      string // empty = default drive
	ParentFileID string // empty = root
	Name         string // empty = base name of LocalPath
}

// UploadResult reports a finished upload.
type UploadResult struct {
	File        *adrive.File
	Size        int64
	ContentHash string // empty unless the full hash was computed
	Rapid       bool   // content already existed server-side
	Resumed     bool
	Parts       int // parts uploaded by this call
}

// uploadState is the per-file working set shared by the upload steps.
type uploadState struct {
	key       SessionKey
	content   io.ReaderAt
	size      int64
	mtime     time.Time
	partSize  int64
	partCount int
	uploaded  int
}

// Upload uploads req.LocalPath. With a session store, an earlier
// interrupted upload of the same file to the same place is resumed.
func (u *Uploader) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if req.LocalPath == "" {
		return nil, errors.New("transfer: local path must not be empty")
	}

	info, err := os.Stat(req.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("transfer: stat %s: %w", req.LocalPath, err)
	}

	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrIsDirectory, req.LocalPath)
	}

	name := req.Name
	if name == "" {
		name = filepath.Base(req.LocalPath)
	}

	// Names from macOS filesystems arrive decomposed; the service stores NFC.
	name = norm.NFC.String(name)

	parent := req.ParentFileID
	if parent == "" {
		parent = adrive.RootFileID
	}

	f, err := os.Open(req.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("transfer: opening %s: %w", req.LocalPath, err)
	}
	defer f.Close()

	size := info.Size()
	partSize := u.effectivePartSize(size)

	st := &uploadState{
		key: SessionKey{
			DriveID:      req.DriveID,
			ParentFileID: parent,
			Name:         name,
			LocalPath:    req.LocalPath,
		},
		content:   f,
		size:      size,
		mtime:     info.ModTime(),
		partSize:  partSize,
		partCount: partCount(size, partSize),
	}

	u.logger.Info("uploading file",
		slog.String("path", req.LocalPath),
		slog.String("parent_file_id", parent),
		slog.String("name", name),
		slog.Int64("size", size),
		slog.Int("parts", st.partCount),
	)

	res, resumed, err := u.resume(ctx, st)
	if err != nil {
		return nil, err
	}

	if resumed {
		return res, nil
	}

	return u.fresh(ctx, st)
}

func (u *Uploader) effectivePartSize(size int64) int64 {
	ps := u.partSize
	if size > ps*MaxParts {
		ps = (size + MaxParts - 1) / MaxParts
	}

	return ps
}

// partCount is the number of parts for size; an empty file still has one.
func partCount(size, partSize int64) int {
	if size <= 0 {
		return 1
	}

	return int((size + partSize - 1) / partSize)
}

// partList numbers parts from..to inclusive.
func partList(from, to int) []adrive.UploadPartInfo {
	if from > to {
		return nil
	}

	parts := make([]adrive.UploadPartInfo, 0, to-from+1)
	for n := from; n <= to; n++ {
		parts = append(parts, adrive.UploadPartInfo{PartNumber: n})
	}

	return parts
}

// resume continues a recorded upload. It reports false when there is
// nothing usable to resume, in which case the caller starts over.
func (u *Uploader) resume(ctx context.Context, st *uploadState) (*UploadResult, bool, error) {
	if u.store == nil {
		return nil, false, nil
	}

	rec, err := u.store.Load(ctx, st.key)
	if err != nil {
		u.logger.Warn("failed to load upload session",
			slog.String("path", st.key.LocalPath),
			slog.String("error", err.Error()),
		)

		return nil, false, nil
	}

	if rec == nil {
		return nil, false, nil
	}

	if !rec.Matches(st.size, st.mtime) || rec.PartSize != st.partSize {
		u.logger.Info("local file changed since upload started, starting over",
			slog.String("path", st.key.LocalPath),
		)
		u.deleteSession(ctx, st.key)

		return nil, false, nil
	}

	u.logger.Info("resuming upload",
		slog.String("path", st.key.LocalPath),
		slog.String("file_id", rec.FileID),
		slog.Int("next_part", rec.NextPart),
	)

	remaining := partList(rec.NextPart, st.partCount)

	if len(remaining) > 0 {
		refreshed, refreshErr := u.refreshURLs(ctx, st.key.DriveID, rec.FileID, rec.UploadID, remaining)
		if refreshErr != nil {
			// The upload id is gone server-side; a new upload is the only way on.
			u.logger.Info("upload session no longer valid, starting over",
				slog.String("path", st.key.LocalPath),
				slog.String("error", refreshErr.Error()),
			)
			u.deleteSession(ctx, st.key)

			return nil, false, nil
		}

		if err := u.uploadParts(ctx, st, st.key.DriveID, rec.FileID, rec.UploadID, refreshed); err != nil {
			return nil, false, err
		}
	}

	file, err := u.complete(ctx, st, st.key.DriveID, rec.FileID, rec.UploadID)
	if err != nil {
		return nil, false, err
	}

	return &UploadResult{File: file, Size: st.size, Resumed: true, Parts: st.uploaded}, true, nil
}

// fresh starts a new upload, trying rapid upload first.
func (u *Uploader) fresh(ctx context.Context, st *uploadState) (*UploadResult, error) {
	req := &adrive.CreateFileRequest{
		DriveID:       st.key.DriveID,
		ParentFileID:  st.key.ParentFileID,
		Name:          st.key.Name,
		Type:          adrive.TypeFile,
		CheckNameMode: u.checkNameMode,
		Size:          st.size,
		PartInfoList:  partList(1, st.partCount),
	}

	resp, contentHash, err := u.create(ctx, st, req)
	if err != nil {
		return nil, fmt.Errorf("transfer: creating %s: %w", st.key.Name, err)
	}

	if resp.Exist && u.checkNameMode == adrive.CheckNameRefuse {
		return nil, fmt.Errorf("%w: %s", ErrRemoteExists, st.key.Name)
	}

	if resp.RapidUpload {
		u.logger.Info("rapid upload: content already on server",
			slog.String("name", st.key.Name),
			slog.String("file_id", resp.FileID),
		)

		return &UploadResult{
			File:        fileFromCreate(resp, st),
			Size:        st.size,
			ContentHash: contentHash,
			Rapid:       true,
		}, nil
	}

	driveID := cmp.Or(resp.DriveID, st.key.DriveID)

	u.saveSession(ctx, st, resp)

	if err := u.uploadParts(ctx, st, driveID, resp.FileID, resp.UploadID, resp.PartInfoList); err != nil {
		return nil, err
	}

	file, err := u.complete(ctx, st, driveID, resp.FileID, resp.UploadID)
	if err != nil {
		return nil, err
	}

	if contentHash != "" && file.ContentHash != "" && !strings.EqualFold(contentHash, file.ContentHash) {
		u.logger.Warn("upload hash mismatch",
			slog.String("path", st.key.LocalPath),
			slog.String("local_hash", contentHash),
			slog.String("remote_hash", file.ContentHash),
		)
	}

	return &UploadResult{File: file, Size: st.size, ContentHash: contentHash, Parts: st.uploaded}, nil
}

// create sends the create request. Large files first send only the
// pre-hash; the full fingerprint follows only when the server reports a
// candidate match. Returns the content hash when it was computed.
func (u *Uploader) create(
	ctx context.Context, st *uploadState, req *adrive.CreateFileRequest,
) (*adrive.CreateFileResponse, string, error) {
	if st.size >= preHashMinSize {
		pre, err := proofcode.PreHash(io.NewSectionReader(st.content, 0, st.size))
		if err != nil {
			return nil, "", err
		}

		req.PreHash = pre

		resp, err := u.api.CreateFile(ctx, req)
		if !adrive.IsPreHashMatched(err) {
			return resp, "", err
		}

		u.logger.Debug("pre-hash matched, sending full fingerprint", slog.String("name", st.key.Name))

		req.PreHash = ""
	}

	contentHash, err := u.fingerprint(st, req)
	if err != nil {
		return nil, "", err
	}

	resp, err := u.api.CreateFile(ctx, req)

	return resp, contentHash, err
}

// fingerprint fills the content hash and proof code of req.
func (u *Uploader) fingerprint(st *uploadState, req *adrive.CreateFileRequest) (string, error) {
	contentHash, _, err := proofcode.ContentHash(io.NewSectionReader(st.content, 0, st.size))
	if err != nil {
		return "", err
	}

	token, err := u.token.Token()
	if err != nil {
		return "", fmt.Errorf("transfer: obtaining token for proof code: %w", err)
	}

	proof, err := proofcode.ProofCode(token, st.content, st.size)
	if err != nil {
		return "", err
	}

	req.ContentHash = contentHash
	req.ContentHashName = proofcode.HashName
	req.ProofCode = proof

	return contentHash, nil
}

// uploadParts uploads parts in part-number order. The service assembles
// parts in the order received, so they are never sent concurrently.
func (u *Uploader) uploadParts(
	ctx context.Context, st *uploadState, driveID, fileID, uploadID string, parts []adrive.UploadPartInfo,
) error {
	parts = slices.Clone(parts)
	slices.SortFunc(parts, func(a, b adrive.UploadPartInfo) int {
		return cmp.Compare(a.PartNumber, b.PartNumber)
	})

	for i := range parts {
		p := parts[i]

		offset := int64(p.PartNumber-1) * st.partSize
		length := max(0, min(st.partSize, st.size-offset))
		section := io.NewSectionReader(st.content, offset, length)

		err := u.api.UploadPart(ctx, p.UploadURL, section, length)
		if errors.Is(err, adrive.ErrUploadURLExpired) {
			u.logger.Debug("part url expired, refreshing", slog.Int("part", p.PartNumber))

			refreshed, refreshErr := u.refreshURLs(ctx, driveID, fileID, uploadID, parts[i:])
			if refreshErr != nil {
				return fmt.Errorf("transfer: refreshing part urls of %s: %w", st.key.Name, refreshErr)
			}

			copy(parts[i:], refreshed)
			err = u.api.UploadPart(ctx, parts[i].UploadURL, section, length)
		}

		// The part landed before an earlier interruption.
		if errors.Is(err, adrive.ErrConflict) {
			u.logger.Debug("part already uploaded", slog.Int("part", p.PartNumber))
			err = nil
		}

		if err != nil {
			return fmt.Errorf("transfer: uploading part %d of %s: %w", p.PartNumber, st.key.Name, err)
		}

		st.uploaded++

		u.logger.Debug("uploaded part",
			slog.String("name", st.key.Name),
			slog.Int("part", p.PartNumber),
			slog.Int64("bytes", length),
		)

		if u.store != nil {
			if advErr := u.store.Advance(ctx, st.key, p.PartNumber+1); advErr != nil {
				u.logger.Warn("failed to record upload progress",
					slog.String("path", st.key.LocalPath),
					slog.String("error", advErr.Error()),
				)
			}
		}
	}

	return nil
}

func (u *Uploader) refreshURLs(
	ctx context.Context, driveID, fileID, uploadID string, parts []adrive.UploadPartInfo,
) ([]adrive.UploadPartInfo, error) {
	numbers := make([]adrive.UploadPartInfo, len(parts))
	for i, p := range parts {
		numbers[i] = adrive.UploadPartInfo{PartNumber: p.PartNumber}
	}

	resp, err := u.api.GetUploadURL(ctx, &adrive.GetUploadURLRequest{
		DriveID:      driveID,
		FileID:       fileID,
		UploadID:     uploadID,
		PartInfoList: numbers,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.PartInfoList) != len(parts) {
		return nil, fmt.Errorf("transfer: asked for %d part urls, got %d", len(parts), len(resp.PartInfoList))
	}

	return resp.PartInfoList, nil
}

func (u *Uploader) complete(ctx context.Context, st *uploadState, driveID, fileID, uploadID string) (*adrive.File, error) {
	file, err := u.api.CompleteFileWith(ctx, &adrive.CompleteFileRequest{
		DriveID:  driveID,
		FileID:   fileID,
		UploadID: uploadID,
	})
	if err != nil {
		return nil, fmt.Errorf("transfer: completing %s: %w", st.key.Name, err)
	}

	u.deleteSession(ctx, st.key)

	u.logger.Info("upload complete",
		slog.String("path", st.key.LocalPath),
		slog.String("file_id", file.FileID),
		slog.Int64("size", st.size),
	)

	return file, nil
}

func (u *Uploader) saveSession(ctx context.Context, st *uploadState, resp *adrive.CreateFileResponse) {
	if u.store == nil {
		return
	}

	err := u.store.Save(ctx, &SessionRecord{
		SessionKey: st.key,
		FileSize:   st.size,
		LocalMtime: st.mtime,
		FileID:     resp.FileID,
		UploadID:   resp.UploadID,
		PartSize:   st.partSize,
		NextPart:   1,
	})
	if err != nil {
		u.logger.Warn("failed to save upload session, an interrupted upload will restart",
			slog.String("path", st.key.LocalPath),
			slog.String("error", err.Error()),
		)
	}
}

// deleteSession removes a session record, logging on failure. A leftover
// record only costs one failed resume attempt later.
func (u *Uploader) deleteSession(ctx context.Context, key SessionKey) {
	if u.store == nil {
		return
	}

	if err := u.store.Delete(ctx, key); err != nil {
		u.logger.Warn("failed to delete upload session",
			slog.String("path", key.LocalPath),
			slog.String("error", err.Error()),
		)
	}
}

func fileFromCreate(resp *adrive.CreateFileResponse, st *uploadState) *adrive.File {
	return &adrive.File{
		DriveID:      resp.DriveID,
		FileID:       resp.FileID,
		ParentFileID: cmp.Or(resp.ParentFileID, st.key.ParentFileID),
		Name:         cmp.Or(resp.FileName, st.key.Name),
		Type:         adrive.TypeFile,
		Size:         st.size,
	}
}
