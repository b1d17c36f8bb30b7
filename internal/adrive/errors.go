// Package adrive provides an HTTP client for the Aliyun Drive (alipan) REST
// API with automatic retry, per-endpoint rate limiting, token refresh, device
// session signing, and error classification.
package adrive

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for HTTP status and API error code classification.
// Use errors.Is(err, adrive.ErrNotFound) to check.
var (
	ErrBadRequest   = errors.New("adrive: bad request")
	ErrUnauthorized = errors.New("adrive: unauthorized")
	ErrForbidden    = errors.New("adrive: forbidden")
	ErrNotFound     = errors.New("adrive: not found")
	ErrConflict     = errors.New("adrive: conflict")
	ErrThrottled    = errors.New("adrive: throttled")
	ErrServerError  = errors.New("adrive: server error")

	ErrShareExpired         = errors.New("adrive: share link expired or canceled")
	ErrSharePasswordInvalid = errors.New("adrive: share password invalid")
	ErrShareTokenInvalid    = errors.New("adrive: share token invalid")
)

// Client-side errors returned before any request is sent.
var (
	ErrNilRequest     = errors.New("adrive: nil request")
	ErrMissingField   = errors.New("adrive: missing required field")
	ErrPaginationLoop = errors.New("adrive: pagination marker did not advance")
	ErrNotLoggedIn    = errors.New("adrive: not logged in")
)

// API error codes that change client behavior.
const (
	codeAccessTokenInvalid     = "AccessTokenInvalid"
	codeAccessTokenExpired     = "AccessTokenExpired"
	codeDeviceSignatureInvalid = "DeviceSessionSignatureInvalid"
	codeDeviceOffline          = "UserDeviceOffline"
	codePreHashMatched         = "PreHashMatched"
)

// APIError wraps a sentinel error with the HTTP status, request ID, and the
// error code and message from the API response body.
type APIError struct {
	StatusCode int
	RequestID  string
	Code       string
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	code := e.Code
	if code == "" {
		code = http.StatusText(e.StatusCode)
	}

	if e.RequestID != "" {
		return fmt.Sprintf("adrive: HTTP %d %s (request-id: %s): %s", e.StatusCode, code, e.RequestID, e.Message)
	}

	return fmt.Sprintf("adrive: HTTP %d %s: %s", e.StatusCode, code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsPreHashMatched reports whether err is the 409 the service returns when a
// pre-hash matches an existing blob and the full proof must be sent.
func IsPreHashMatched(err error) bool {
	var apiErr *APIError

	return errors.As(err, &apiErr) && apiErr.Code == codePreHashMatched
}

// errorBody is the JSON shape of an API error response.
type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId"`
}

// newAPIError builds an APIError from a non-2xx response. Bodies that are
// not JSON are kept verbatim in Message.
func newAPIError(status int, header http.Header, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: status,
		RequestID:  header.Get("X-Ca-Request-Id"),
		Message:    string(body),
	}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Code != "" {
		apiErr.Code = eb.Code
		apiErr.Message = eb.Message

		if eb.RequestID != "" {
			apiErr.RequestID = eb.RequestID
		}
	}

	apiErr.Err = classifyCode(apiErr.Code)
	if apiErr.Err == nil {
		apiErr.Err = classifyStatus(status)
	}

	return apiErr
}

// classifyCode maps share-specific API error codes to sentinels. Returns nil
// when the code carries no meaning beyond its HTTP status.
func classifyCode(code string) error {
	switch code {
	case "ShareLink.Expired", "ShareLink.Cancelled", "ShareLink.Forbidden":
		return ErrShareExpired
	case "InvalidResource.SharePwd", "ShareLink.PasswordError":
		return ErrSharePasswordInvalid
	case "ShareLinkTokenInvalid", "InvalidParameter.ShareToken":
		return ErrShareTokenInvalid
	default:
		return nil
	}
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for 2xx success codes.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}

// isRetryable reports whether the given HTTP status code should be retried.
func isRetryable(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// isTokenRejected reports whether the API refused the access token itself,
// as opposed to refusing the operation.
func isTokenRejected(e *APIError) bool {
	return e.Code == codeAccessTokenInvalid || e.Code == codeAccessTokenExpired
}

// isDeviceRejected reports whether the API refused the device signature.
func isDeviceRejected(e *APIError) bool {
	return e.Code == codeDeviceSignatureInvalid || e.Code == codeDeviceOffline
}
