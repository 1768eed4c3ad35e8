package services

import (
	"encoding/json"
	"fmt"

	"github.com/desertthunder/spotsync/internal/shared"
)

const maxErrorBody = 512

// APIError is returned for any non-2xx response.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("spotify API error: %s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("spotify API error: %s %s: status %d", e.Method, e.URL, e.StatusCode)
}

// Is matches [shared.ErrAPIRequest].
func (e *APIError) Is(target error) bool {
	return target == shared.ErrAPIRequest
}

func newAPIError(method, url string, status int, body []byte) *APIError {
	apiErr := &APIError{Method: method, URL: url, StatusCode: status}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	apiErr.Body = string(body)

	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil {
		apiErr.Message = envelope.Error.Message
	}
	return apiErr
}

// PartialPushError reports a replace that committed its first chunk but failed
// while appending a later one. The remote playlist then holds only the first
// Committed URIs and is not rolled back.
type PartialPushError struct {
	Committed int
	Total     int
	Err       error
}

func (e *PartialPushError) Error() string {
	return fmt.Sprintf("%v: %d of %d tracks committed: %v", shared.ErrPartialPush, e.Committed, e.Total, e.Err)
}

func (e *PartialPushError) Is(target error) bool {
	return target == shared.ErrPartialPush
}

func (e *PartialPushError) Unwrap() error {
	return e.Err
}
