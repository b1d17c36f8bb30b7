package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/alidrive-go/internal/adrive"
	"github.com/tonimelisma/alidrive-go/pkg/proofcode"
)

const testToken = "test-access-token"

type staticToken string

func (s staticToken) Token() (string, error) { return string(s), nil }

type fakeUpload struct {
	fileID string
	name   string
	parts  map[int][]byte
}

type partRef struct {
	uploadID string
	number   int
}

// fakeAPI is an in-memory drive implementing UploadAPI and DownloadAPI.
type fakeAPI struct {
	mu sync.Mutex

	// Upload behavior.
	preHashMatch bool
	rapid        bool
	existing     bool
	createErr    error
	refreshErr   error
	failPartOnce int            // part number whose next upload fails
	expireOnce   map[int]bool   // part numbers whose current URL is expired once
	uploads      map[string]*fakeUpload
	urls         map[string]partRef
	creates      []adrive.CreateFileRequest
	refreshCalls int
	partOrder    []int
	completes    int
	seq          int

	// Download behavior.
	files        map[string]*adrive.File
	contents     map[string][]byte
	corruptTimes int
	downloadErr  error
	downloads    int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		expireOnce: map[int]bool{},
		uploads:    map[string]*fakeUpload{},
		urls:       map[string]partRef{},
		files:      map[string]*adrive.File{},
		contents:   map[string][]byte{},
	}
}

func (f *fakeAPI) partURLs(uploadID string, parts []adrive.UploadPartInfo) []adrive.UploadPartInfo {
	out := make([]adrive.UploadPartInfo, len(parts))
	for i, p := range parts {
		f.seq++
		url := fmt.Sprintf("https://oss.test/%s/%d?gen=%d", uploadID, p.PartNumber, f.seq)
		f.urls[url] = partRef{uploadID: uploadID, number: p.PartNumber}
		out[i] = adrive.UploadPartInfo{PartNumber: p.PartNumber, UploadURL: url}
	}

	return out
}

func (f *fakeAPI) CreateFile(_ context.Context, req *adrive.CreateFileRequest) (*adrive.CreateFileResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.creates = append(f.creates, *req)

	if f.createErr != nil {
		return nil, f.createErr
	}

	if req.PreHash != "" && f.preHashMatch {
		return nil, &adrive.APIError{StatusCode: 409, Code: "PreHashMatched", Err: adrive.ErrConflict}
	}

	if req.ContentHash != "" && f.rapid {
		return &adrive.CreateFileResponse{FileID: "rapid-file", FileName: req.Name, RapidUpload: true}, nil
	}

	if f.existing {
		return &adrive.CreateFileResponse{FileID: "existing-file", FileName: req.Name, Exist: true}, nil
	}

	f.seq++
	uploadID := fmt.Sprintf("upload-%d", f.seq)
	fileID := fmt.Sprintf("file-%d", f.seq)
	f.uploads[uploadID] = &fakeUpload{fileID: fileID, name: req.Name, parts: map[int][]byte{}}

	return &adrive.CreateFileResponse{
		DriveID:      "drive-1",
		FileID:       fileID,
		FileName:     req.Name,
		UploadID:     uploadID,
		PartInfoList: f.partURLs(uploadID, req.PartInfoList),
	}, nil
}

func (f *fakeAPI) GetUploadURL(_ context.Context, req *adrive.GetUploadURLRequest) (*adrive.GetUploadURLResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.refreshCalls++

	if f.refreshErr != nil {
		return nil, f.refreshErr
	}

	if _, ok := f.uploads[req.UploadID]; !ok {
		return nil, adrive.ErrNotFound
	}

	return &adrive.GetUploadURLResponse{
		FileID:       req.FileID,
		UploadID:     req.UploadID,
		PartInfoList: f.partURLs(req.UploadID, req.PartInfoList),
	}, nil
}

func (f *fakeAPI) UploadPart(_ context.Context, url string, part io.ReadSeeker, size int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	ref, ok := f.urls[url]
	if !ok {
		return fmt.Errorf("unknown upload url %q", url)
	}

	if f.expireOnce[ref.number] {
		delete(f.expireOnce, ref.number)
		delete(f.urls, url)

		return fmt.Errorf("%w: %w", adrive.ErrUploadURLExpired, adrive.ErrForbidden)
	}

	if f.failPartOnce == ref.number {
		f.failPartOnce = 0
		return errors.New("connection reset")
	}

	data, err := io.ReadAll(part)
	if err != nil {
		return err
	}

	if int64(len(data)) != size {
		return fmt.Errorf("part %d: read %d bytes, declared %d", ref.number, len(data), size)
	}

	f.uploads[ref.uploadID].parts[ref.number] = data
	f.partOrder = append(f.partOrder, ref.number)

	return nil
}

func (f *fakeAPI) CompleteFileWith(_ context.Context, req *adrive.CompleteFileRequest) (*adrive.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	up, ok := f.uploads[req.UploadID]
	if !ok || up.fileID != req.FileID {
		return nil, adrive.ErrNotFound
	}

	f.completes++

	content := up.assemble()
	sum, _, err := proofcode.ContentHash(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	file := &adrive.File{
		DriveID:         "drive-1",
		FileID:          up.fileID,
		Name:            up.name,
		Type:            adrive.TypeFile,
		Size:            int64(len(content)),
		ContentHash:     sum,
		ContentHashName: proofcode.HashName,
	}
	f.files[up.fileID] = file
	f.contents[up.fileID] = content

	return file, nil
}

func (up *fakeUpload) assemble() []byte {
	numbers := make([]int, 0, len(up.parts))
	for n := range up.parts {
		numbers = append(numbers, n)
	}

	slices.Sort(numbers)

	var buf bytes.Buffer
	for _, n := range numbers {
		buf.Write(up.parts[n])
	}

	return buf.Bytes()
}

// content returns what the server holds for fileID.
func (f *fakeAPI) content(fileID string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.contents[fileID]
}

// addFile seeds a downloadable file with a correct SHA-1 content hash.
func (f *fakeAPI) addFile(t *testing.T, file *adrive.File, content []byte) {
	t.Helper()

	sum, _, err := proofcode.ContentHash(bytes.NewReader(content))
	require.NoError(t, err)

	file.Type = adrive.TypeFile
	file.Size = int64(len(content))

	if file.ContentHashName == "" {
		file.ContentHashName = proofcode.HashName
		file.ContentHash = sum
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.files[file.FileID] = file
	f.contents[file.FileID] = content
}

func (f *fakeAPI) GetFile(_ context.Context, _, fileID string) (*adrive.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, ok := f.files[fileID]
	if !ok {
		return nil, adrive.ErrNotFound
	}

	out := *file

	return &out, nil
}

func (f *fakeAPI) Download(_ context.Context, _, fileID string, w io.Writer) (int64, error) {
	f.mu.Lock()
	content := f.contents[fileID]
	f.downloads++
	corrupt := f.corruptTimes > 0
	if corrupt {
		f.corruptTimes--
	}
	dlErr := f.downloadErr
	f.mu.Unlock()

	if dlErr != nil {
		n, _ := w.Write(content[:len(content)/2])
		return int64(n), dlErr
	}

	if corrupt {
		content = bytes.ToUpper(content)
	}

	n, err := w.Write(content)

	return int64(n), err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeLocal(t *testing.T, name string, content []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	return path
}

func openTestStore(t *testing.T) *SessionStore {
	t.Helper()

	store, err := OpenSessionStore(context.Background(), filepath.Join(t.TempDir(), "transfers.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func sha1Hex(t *testing.T, content []byte) string {
	t.Helper()

	sum, _, err := proofcode.ContentHash(bytes.NewReader(content))
	require.NoError(t, err)

	return sum
}
