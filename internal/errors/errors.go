package errors

import (
	"errors"
	"net/http"
)

var (
	// ErrPostNotFound is returned when no post exists for an id.
	ErrPostNotFound = errors.New("post not found")
	// ErrWrongPassword is returned when a submitted password does not match the stored hash.
	ErrWrongPassword = errors.New("password does not match")
	// ErrAttachmentNotFound is returned when a post has no attachment or its file is missing on disk.
	ErrAttachmentNotFound = errors.New("attachment not found")
	// ErrAttachmentUnreadable is returned when a recorded attachment exists but cannot be opened.
	ErrAttachmentUnreadable = errors.New("attachment unreadable")
)

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors.
func MapErrorToHTTP(err error) *HTTPError {
	switch {
	case errors.Is(err, ErrPostNotFound):
		return NewHTTPError(http.StatusNotFound, ErrPostNotFound.Error(), "POST_NOT_FOUND")
	case errors.Is(err, ErrWrongPassword):
		return NewHTTPError(http.StatusForbidden, ErrWrongPassword.Error(), "WRONG_PASSWORD")
	case errors.Is(err, ErrAttachmentNotFound):
		return NewHTTPError(http.StatusNotFound, ErrAttachmentNotFound.Error(), "ATTACHMENT_NOT_FOUND")
	case errors.Is(err, ErrAttachmentUnreadable):
		return NewHTTPError(http.StatusInternalServerError, ErrAttachmentUnreadable.Error(), "ATTACHMENT_UNREADABLE")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
