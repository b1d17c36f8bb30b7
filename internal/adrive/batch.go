package adrive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

const batchPath = "/adrive/v2/batch"

// maxBatchSize is the most sub-requests the batch endpoint accepts per call.
const maxBatchSize = 100

// ErrBatchResponseMissing is reported by BatchResult.Err when the server did
// not answer a sub-request.
var ErrBatchResponseMissing = errors.New("adrive: batch response missing for sub-request")

type batchRequest struct {
	Requests []batchSubRequest `json:"requests"`
	Resource string            `json:"resource"`
}

type batchSubRequest struct {
	Body    any               `json:"body"`
	Headers map[string]string `json:"headers"`
	ID      string            `json:"id"`
	Method  string            `json:"method"`
	URL     string            `json:"url"`
}

type batchResponse struct {
	Responses []BatchResult `json:"responses"`
}

// BatchResult is the outcome of one sub-request of a batch call.
type BatchResult struct {
	ID     string          `json:"id"`
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body,omitempty"`
}

// OK reports whether the sub-request succeeded.
func (r *BatchResult) OK() bool {
	return r.Status >= http.StatusOK && r.Status < http.StatusMultipleChoices
}

// Err returns nil on success, otherwise an *APIError built from the
// sub-response body.
func (r *BatchResult) Err() error {
	if r.Status == 0 {
		return fmt.Errorf("%w: %s", ErrBatchResponseMissing, r.ID)
	}

	if r.OK() {
		return nil
	}

	return newAPIError(r.Status, http.Header{}, r.Body)
}

// Decode unmarshals a successful sub-response body into v.
func (r *BatchResult) Decode(v any) error {
	if err := r.Err(); err != nil {
		return err
	}

	if len(r.Body) == 0 {
		return nil
	}

	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("adrive: decoding batch result %s: %w", r.ID, err)
	}

	return nil
}

// batchOp is one sub-request: the id the server echoes back and its body.
type batchOp struct {
	id   string
	body any
}

// batch posts ops against subURL in chunks of maxBatchSize and returns one
// result per op, in input order. A transport failure on any chunk aborts the
// call; per-item failures are reported through BatchResult.Err.
func (c *Client) batch(ctx context.Context, subURL string, ops []batchOp, shareToken string) ([]BatchResult, error) {
	results := make([]BatchResult, 0, len(ops))

	for start := 0; start < len(ops); start += maxBatchSize {
		end := min(start+maxBatchSize, len(ops))
		chunk := ops[start:end]

		c.logger.Debug("sending batch chunk",
			slog.String("url", subURL),
			slog.Int("offset", start),
			slog.Int("count", len(chunk)),
		)

		got, err := c.batchChunk(ctx, subURL, chunk, shareToken)
		if err != nil {
			return nil, err
		}

		results = append(results, got...)
	}

	return results, nil
}

func (c *Client) batchChunk(ctx context.Context, subURL string, ops []batchOp, shareToken string) ([]BatchResult, error) {
	req := batchRequest{
		Requests: make([]batchSubRequest, len(ops)),
		Resource: "file",
	}

	for i, op := range ops {
		req.Requests[i] = batchSubRequest{
			Body:    op.body,
			Headers: map[string]string{"Content-Type": "application/json"},
			ID:      op.id,
			Method:  http.MethodPost,
			URL:     subURL,
		}
	}

	var resp batchResponse
	if err := c.postJSON(ctx, batchPath, req, shareToken, &resp); err != nil {
		return nil, err
	}

	// Match by id; repeated ids are matched in order of appearance.
	byID := make(map[string][]BatchResult, len(resp.Responses))
	for _, r := range resp.Responses {
		byID[r.ID] = append(byID[r.ID], r)
	}

	out := make([]BatchResult, len(ops))

	for i, op := range ops {
		queue := byID[op.id]
		if len(queue) == 0 {
			out[i] = BatchResult{ID: op.id}

			continue
		}

		out[i] = queue[0]
		byID[op.id] = queue[1:]
	}

	return out, nil
}
