package errors

import (
	"encoding/json"
	"net/http"
	"strings"
)

// APIError is the error body returned by the backend:
//
//	{"code": 400, "message": "Failed to create record.", "data": {"title": {"code": "validation_required", "message": "Missing required value."}}}
type APIError struct {
	Code    int                        `json:"code"`
	Message string                     `json:"message"`
	Data    map[string]APIFieldProblem `json:"data,omitempty"`
}

// APIFieldProblem describes why the backend rejected one field.
type APIFieldProblem struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ParseAPIError decodes body as an APIError. ok is false when the body is
// not an error envelope (no code).
func ParseAPIError(body []byte) (APIError, bool) {
	var apiErr APIError
	if len(body) == 0 || json.Unmarshal(body, &apiErr) != nil {
		return APIError{}, false
	}
	return apiErr, apiErr.Code != 0
}

// FromAPI builds an AppError from an HTTP status and response body. The
// envelope's code wins over the HTTP status when both are present.
func FromAPI(status int, body []byte) *AppError {
	apiErr, ok := ParseAPIError(body)
	if ok {
		status = apiErr.Code
	}

	msg := strings.TrimSpace(apiErr.Message)
	if msg == "" {
		msg = http.StatusText(status)
	}
	if msg == "" {
		msg = "request failed"
	}

	appErr := New(codeForStatus(status), msg, status)
	if len(apiErr.Data) > 0 {
		fields := make(map[string]any, len(apiErr.Data))
		for name, p := range apiErr.Data {
			fields[name] = p.Message
		}
		appErr.WithDetail("fields", fields)
	}
	return appErr
}

func codeForStatus(status int) ErrorCode {
	switch {
	case status == http.StatusUnauthorized:
		return ErrCodeUnauthorized
	case status == http.StatusForbidden:
		return ErrCodeForbidden
	case status == http.StatusNotFound:
		return ErrCodeNotFound
	case status == http.StatusTooManyRequests:
		return ErrCodeRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return ErrCodeTimeout
	case status >= 500:
		return ErrCodeServiceUnavailable
	default:
		return ErrCodeBadRequest
	}
}
