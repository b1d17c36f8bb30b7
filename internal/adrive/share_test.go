package adrive

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder captures request bodies and headers per path and answers with
// the response registered for that path.
type recorder struct {
	mu      sync.Mutex
	bodies  map[string][]map[string]any
	headers map[string][]http.Header
	reply   map[string]func(body map[string]any) (int, any)
}

func newRecorder() *recorder {
	return &recorder{
		bodies:  map[string][]map[string]any{},
		headers: map[string][]http.Header{},
		reply:   map[string]func(map[string]any) (int, any){},
	}
}

func (rec *recorder) on(path string, fn func(body map[string]any) (int, any)) {
	rec.reply[path] = fn
}

func (rec *recorder) respond(path string, v any) {
	rec.on(path, func(map[string]any) (int, any) { return http.StatusOK, v })
}

func (rec *recorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	rec.mu.Lock()
	rec.bodies[r.URL.Path] = append(rec.bodies[r.URL.Path], body)
	rec.headers[r.URL.Path] = append(rec.headers[r.URL.Path], r.Header.Clone())
	fn := rec.reply[r.URL.Path]
	rec.mu.Unlock()

	if fn == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"code": "NotFound", "message": r.URL.Path})
		return
	}

	status, v := fn(body)
	writeJSON(w, status, v)
}

func (rec *recorder) calls(path string) []map[string]any {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	return rec.bodies[path]
}

func (rec *recorder) header(path string, i int) http.Header {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	return rec.headers[path][i]
}

func newRecordingClient(t *testing.T, opts ...Option) (*Client, *recorder) {
	t.Helper()

	rec := newRecorder()
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)

	return newTestClient(t, srv.URL, opts...), rec
}

func TestCreateShareLink_DefaultBody(t *testing.T) {
	client, rec := newRecordingClient(t)
	rec.respond(shareCreatePath, map[string]any{"share_id": "s1", "share_url": "https://www.alipan.com/s/s1"})

	link, err := client.CreateShareLink(context.Background(), []string{"f1", "f2"})
	require.NoError(t, err)
	assert.Equal(t, "s1", link.ShareID)
	assert.Equal(t, "https://www.alipan.com/s/s1", link.ShareURL)

	calls := rec.calls(shareCreatePath)
	require.Len(t, calls, 1)
	assert.Equal(t, map[string]any{
		"drive_id":     testDriveID,
		"file_id_list": []any{"f1", "f2"},
	}, calls[0])
}

func TestCreateShareLink_DiscreteAndRequestFormMatch(t *testing.T) {
	client, rec := newRecordingClient(t)
	rec.respond(shareCreatePath, map[string]any{"share_id": "s1"})

	exp := NewTime(time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC))

	_, err := client.CreateShareLink(context.Background(), []string{"f1"}, func(r *CreateShareLinkRequest) {
		r.SharePwd = "ab12"
		r.ShareName = "docs"
		r.Expiration = exp
	})
	require.NoError(t, err)

	req := &CreateShareLinkRequest{FileIDList: []string{"f1"}, SharePwd: "ab12", ShareName: "docs", Expiration: exp}
	_, err = client.CreateShareLinkWith(context.Background(), req)
	require.NoError(t, err)

	calls := rec.calls(shareCreatePath)
	require.Len(t, calls, 2)
	assert.Equal(t, calls[0], calls[1])
	assert.Equal(t, "2030-01-02T03:04:05.000Z", calls[0]["expiration"])
	assert.Equal(t, "ab12", calls[0]["share_pwd"])

	// The caller's request keeps its zero DriveID.
	assert.Empty(t, req.DriveID)
}

func TestCreateShareLink_Validation(t *testing.T) {
	client, rec := newRecordingClient(t)

	_, err := client.CreateShareLinkWith(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilRequest)

	_, err = client.CreateShareLink(context.Background(), nil)
	assert.ErrorIs(t, err, ErrMissingField)

	assert.Empty(t, rec.calls(shareCreatePath))
}

func TestCreateShareLink_ExplicitDrive(t *testing.T) {
	client, rec := newRecordingClient(t)
	rec.respond(shareCreatePath, map[string]any{"share_id": "s1"})

	_, err := client.CreateShareLinkWith(context.Background(), &CreateShareLinkRequest{
		DriveID:    "other-drive",
		FileIDList: []string{"f1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "other-drive", rec.calls(shareCreatePath)[0]["drive_id"])
}

func TestUpdateShareLink(t *testing.T) {
	client, rec := newRecordingClient(t)
	rec.respond(shareUpdatePath, map[string]any{"share_id": "s1", "share_name": "new"})

	link, err := client.UpdateShareLink(context.Background(), "s1", func(r *UpdateShareLinkRequest) {
		r.ShareName = "new"
		r.SharePwd = String("")
	})
	require.NoError(t, err)
	assert.Equal(t, "new", link.ShareName)

	_, err = client.UpdateShareLink(context.Background(), "s1", func(r *UpdateShareLinkRequest) {
		r.Description = "d"
	})
	require.NoError(t, err)

	calls := rec.calls(shareUpdatePath)
	require.Len(t, calls, 2)
	assert.Equal(t, map[string]any{"share_id": "s1", "share_name": "new", "share_pwd": ""}, calls[0])
	assert.Equal(t, map[string]any{"share_id": "s1", "description": "d"}, calls[1])
}

func TestUpdateShareLink_Validation(t *testing.T) {
	client, _ := newRecordingClient(t)

	_, err := client.UpdateShareLinkWith(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilRequest)

	_, err = client.UpdateShareLink(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestCancelShareLink(t *testing.T) {
	client, rec := newRecordingClient(t)
	rec.respond(shareCancelPath, map[string]any{})

	require.NoError(t, client.CancelShareLink(context.Background(), "s1"))
	assert.Equal(t, []map[string]any{{"share_id": "s1"}}, rec.calls(shareCancelPath))

	assert.ErrorIs(t, client.CancelShareLink(context.Background(), ""), ErrMissingField)
}

func TestCancelShareLink_Expired(t *testing.T) {
	client, rec := newRecordingClient(t)
	rec.on(shareCancelPath, func(map[string]any) (int, any) {
		return http.StatusBadRequest, map[string]string{"code": "ShareLink.Cancelled", "message": "already canceled"}
	})

	err := client.CancelShareLink(context.Background(), "s1")
	assert.ErrorIs(t, err, ErrShareExpired)
}

func TestBatchCancelShareLinks(t *testing.T) {
	client, rec := newRecordingClient(t)
	rec.respond(batchPath, map[string]any{"responses": []map[string]any{
		{"id": "s2", "status": 404, "body": map[string]string{"code": "NotFound.ShareLink", "message": "x"}},
		{"id": "s1", "status": 200, "body": map[string]any{}},
	}})

	results, err := client.BatchCancelShareLinks(context.Background(), []string{"s1", "s2"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "s1", results[0].ID)
	assert.NoError(t, results[0].Err())
	assert.Equal(t, "s2", results[1].ID)
	assert.ErrorIs(t, results[1].Err(), ErrNotFound)

	body := rec.calls(batchPath)[0]
	assert.Equal(t, "file", body["resource"])

	reqs, ok := body["requests"].([]any)
	require.True(t, ok)
	require.Len(t, reqs, 2)
	assert.Equal(t, map[string]any{
		"body":    map[string]any{"share_id": "s1"},
		"headers": map[string]any{"Content-Type": "application/json"},
		"id":      "s1",
		"method":  "POST",
		"url":     batchShareCancelURL,
	}, reqs[0])

	_, err = client.BatchCancelShareLinks(context.Background(), nil)
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestListShareLinks_DefaultsAndPagination(t *testing.T) {
	client, rec := newRecordingClient(t)
	rec.on(shareListPath, func(body map[string]any) (int, any) {
		if body["marker"] == nil {
			return http.StatusOK, map[string]any{
				"items":       []map[string]any{{"share_id": "s1"}, {"share_id": "s2"}},
				"next_marker": "m1",
			}
		}

		return http.StatusOK, map[string]any{"items": []map[string]any{{"share_id": "s3"}}, "next_marker": ""}
	})

	links, err := client.ListShareLinks(context.Background())
	require.NoError(t, err)
	require.Len(t, links, 3)
	assert.Equal(t, "s3", links[2].ShareID)

	calls := rec.calls(shareListPath)
	require.Len(t, calls, 2)
	assert.Equal(t, map[string]any{
		"creator":          testUserID,
		"include_canceled": false,
		"limit":            float64(100),
		"order_by":         "created_at",
		"order_direction":  "DESC",
	}, calls[0])
	assert.Equal(t, "m1", calls[1]["marker"])
}

func TestListShareLinks_DiscreteAndRequestFormMatch(t *testing.T) {
	client, rec := newRecordingClient(t)
	rec.respond(shareListPath, map[string]any{"items": []any{}})

	_, err := client.ListShareLinks(context.Background(), func(r *ListShareLinksRequest) {
		r.IncludeCanceled = true
		r.Limit = 20
	})
	require.NoError(t, err)

	_, err = client.ListShareLinksWith(context.Background(), &ListShareLinksRequest{IncludeCanceled: true, Limit: 20})
	require.NoError(t, err)

	calls := rec.calls(shareListPath)
	require.Len(t, calls, 2)
	assert.Equal(t, calls[0], calls[1])
	assert.Equal(t, true, calls[0]["include_canceled"])
}

func TestListShareLinks_ResolvesCreator(t *testing.T) {
	rec := newRecorder()
	rec.respond(userGetPath, map[string]any{"user_id": "u-7", "default_drive_id": "d-7"})
	rec.respond(shareListPath, map[string]any{"items": []any{}})

	srv := httptest.NewServer(rec)
	defer srv.Close()

	client := NewClient(srv.URL, staticToken("t"), WithRateLimits(RateLimits{}))
	client.sleepFunc = noopSleep

	_, err := client.ListShareLinks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u-7", rec.calls(shareListPath)[0]["creator"])
}

func TestShareLinks_ResumeFromMarker(t *testing.T) {
	client, rec := newRecordingClient(t)
	rec.respond(shareListPath, map[string]any{"items": []map[string]any{{"share_id": "s9"}}})

	var ids []string

	for link, err := range client.ShareLinks(context.Background(), &ListShareLinksRequest{Marker: "saved"}) {
		require.NoError(t, err)
		ids = append(ids, link.ShareID)
	}

	assert.Equal(t, []string{"s9"}, ids)
	assert.Equal(t, "saved", rec.calls(shareListPath)[0]["marker"])
}

func TestListShareLinks_NilRequest(t *testing.T) {
	client, _ := newRecordingClient(t)

	_, err := client.ListShareLinksWith(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilRequest)

	for _, err := range client.ShareLinks(context.Background(), nil) {
		assert.ErrorIs(t, err, ErrNilRequest)
	}
}
