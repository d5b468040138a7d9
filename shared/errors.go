package shared

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the error shape the HTTP layer knows how to render. Services
// return them for every failure that has a meaningful status code; anything
// else surfaces as a 500.
type AppError struct {
	StatusCode int
	Code       string
	Message    string
	Data       interface{}
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(statusCode int, code, message string, err error) *AppError {
	return &AppError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		Err:        err,
	}
}

// GetAppError unwraps err down to an AppError if one is in the chain.
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func NewBadRequestError(err error, message string) *AppError {
	return NewAppError(http.StatusBadRequest, "BAD_REQUEST", message, err)
}

func NewUnauthorizedError(err error, message string) *AppError {
	return NewAppError(http.StatusUnauthorized, "UNAUTHORIZED", message, err)
}

func NewForbiddenError(err error, message string) *AppError {
	return NewAppError(http.StatusForbidden, "FORBIDDEN", message, err)
}

func NewNotFoundError(err error, message string) *AppError {
	return NewAppError(http.StatusNotFound, "NOT_FOUND", message, err)
}

func NewConflictError(err error, message string) *AppError {
	return NewAppError(http.StatusConflict, "CONFLICT", message, err)
}

func NewTooManyRequestsError(err error, message string) *AppError {
	return NewAppError(http.StatusTooManyRequests, "RATE_LIMITED", message, err)
}

func NewInternalError(err error, message string) *AppError {
	return NewAppError(http.StatusInternalServerError, "INTERNAL_ERROR", message, err)
}

func NewServiceUnavailableError(err error, message string) *AppError {
	return NewAppError(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", message, err)
}

// Domain errors the progress flows hand back by name.

func NewLessonNotFoundError(lessonID string) *AppError {
	return NewAppError(http.StatusNotFound, "LESSON_NOT_FOUND",
		fmt.Sprintf("Lesson %s not found", lessonID), nil)
}

func NewSubjectNotFoundError(subjectID string) *AppError {
	return NewAppError(http.StatusNotFound, "SUBJECT_NOT_FOUND",
		fmt.Sprintf("Subject %s not found", subjectID), nil)
}

// NewCacheUnavailableError marks a write that could not reach the cache.
// Completion writes must never pretend to succeed; callers get a retryable
// 503.
func NewCacheUnavailableError(err error) *AppError {
	return NewAppError(http.StatusServiceUnavailable, "CACHE_UNAVAILABLE",
		"Progress store temporarily unavailable, retry shortly", err)
}

func IsCacheUnavailable(err error) bool {
	appErr, ok := GetAppError(err)
	return ok && appErr.Code == "CACHE_UNAVAILABLE"
}
