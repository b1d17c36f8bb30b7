package adrive

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFile_Defaults(t *testing.T) {
	client, rec := newRecordingClient(t)
	rec.respond(fileCreatePath, map[string]any{
		"file_id":   "f1",
		"upload_id": "u1",
		"part_info_list": []map[string]any{
			{"part_number": 1, "upload_url": "https://oss.example/1"},
		},
	})

	out, err := client.CreateFile(context.Background(), &CreateFileRequest{
		Name:         "a.bin",
		Size:         5,
		PartInfoList: []UploadPartInfo{{PartNumber: 1}},
		ContentHash:  "HASH",
		ProofCode:    "PROOF",
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", out.UploadID)
	require.Len(t, out.PartInfoList, 1)
	assert.Equal(t, "https://oss.example/1", out.PartInfoList[0].UploadURL)

	assert.Equal(t, map[string]any{
		"drive_id":          testDriveID,
		"parent_file_id":    "root",
		"name":              "a.bin",
		"type":              "file",
		"check_name_mode":   "auto_rename",
		"size":              float64(5),
		"part_info_list":    []any{map[string]any{"part_number": float64(1)}},
		"content_hash_name": "sha1",
		"content_hash":      "HASH",
		"proof_version":     "v1",
		"proof_code":        "PROOF",
	}, rec.calls(fileCreatePath)[0])
}

func TestCreateFile_Validation(t *testing.T) {
	client, _ := newRecordingClient(t)

	_, err := client.CreateFile(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilRequest)

	_, err = client.CreateFile(context.Background(), &CreateFileRequest{})
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestCreateFile_PreHashMatched(t *testing.T) {
	client, rec := newRecordingClient(t)
	rec.on(fileCreatePath, func(map[string]any) (int, any) {
		return http.StatusConflict, map[string]string{"code": "PreHashMatched", "message": "pre hash matched"}
	})

	_, err := client.CreateFile(context.Background(), &CreateFileRequest{Name: "a", PreHash: "PRE"})
	require.Error(t, err)
	assert.True(t, IsPreHashMatched(err))
	assert.Equal(t, "PRE", rec.calls(fileCreatePath)[0]["pre_hash"])
}

func TestCreateFolder(t *testing.T) {
	client, rec := newRecordingClient(t)
	rec.respond(fileCreatePath, map[string]any{"file_id": "dir1", "type": "folder"})

	out, err := client.CreateFolder(context.Background(), "", "photos")
	require.NoError(t, err)
	assert.Equal(t, "dir1", out.FileID)

	assert.Equal(t, map[string]any{
		"drive_id":        testDriveID,
		"parent_file_id":  "root",
		"name":            "photos",
		"type":            "folder",
		"check_name_mode": "refuse",
	}, rec.calls(fileCreatePath)[0])
}

func TestGetUploadURL(t *testing.T) {
	client, rec := newRecordingClient(t)
	rec.respond(fileUploadURLPath, map[string]any{
		"upload_id":      "u1",
		"part_info_list": []map[string]any{{"part_number": 2, "upload_url": "https://oss.example/2"}},
	})

	out, err := client.GetUploadURL(context.Background(), &GetUploadURLRequest{
		FileID:       "f1",
		UploadID:     "u1",
		PartInfoList: []UploadPartInfo{{PartNumber: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://oss.example/2", out.PartInfoList[0].UploadURL)
	assert.Equal(t, testDriveID, rec.calls(fileUploadURLPath)[0]["drive_id"])

	_, err = client.GetUploadURL(context.Background(), &GetUploadURLRequest{FileID: "f1"})
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = client.GetUploadURL(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilRequest)
}

func TestCompleteFile(t *testing.T) {
	client, rec := newRecordingClient(t)
	rec.respond(fileCompletePath, map[string]any{"file_id": "f1", "name": "a.bin", "content_hash": "HASH"})

	f, err := client.CompleteFile(context.Background(), "f1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "HASH", f.ContentHash)

	_, err = client.CompleteFileWith(context.Background(), NewCompleteFileRequest("f1", "u1"))
	require.NoError(t, err)

	calls := rec.calls(fileCompletePath)
	require.Len(t, calls, 2)
	assert.Equal(t, map[string]any{"drive_id": testDriveID, "file_id": "f1", "upload_id": "u1"}, calls[0])
	assert.Equal(t, calls[0], calls[1])

	_, err = client.CompleteFile(context.Background(), "", "u1")
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestUploadPart(t *testing.T) {
	data := []byte("part-bytes")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get("Content-Type"))
		assert.Equal(t, int64(len(data)), r.ContentLength)

		got, _ := io.ReadAll(r.Body)
		assert.Equal(t, data, got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	require.NoError(t, client.UploadPart(context.Background(), srv.URL+"/part1", bytes.NewReader(data), int64(len(data))))
}

func TestUploadPart_RetryReplaysContent(t *testing.T) {
	data := []byte("replay me")

	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ := io.ReadAll(r.Body)
		assert.Equal(t, data, got)

		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	require.NoError(t, client.UploadPart(context.Background(), srv.URL+"/p", bytes.NewReader(data), int64(len(data))))
	assert.Equal(t, int32(2), calls.Load())
}

func TestUploadPart_Expired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`<Error><Code>AccessDenied</Code></Error>`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	err := client.UploadPart(context.Background(), srv.URL+"/p", bytes.NewReader([]byte("x")), 1)
	assert.ErrorIs(t, err, ErrUploadURLExpired)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUploadPart_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, int64(0), r.ContentLength)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	require.NoError(t, client.UploadPart(context.Background(), srv.URL+"/p", bytes.NewReader(nil), 0))
}

func TestUploadPart_SeekFailure(t *testing.T) {
	client := newTestClient(t, "http://unused")

	err := client.UploadPart(context.Background(), "http://unused/p", &failingSeeker{}, 1)
	assert.ErrorContains(t, err, "rewinding part")
}
