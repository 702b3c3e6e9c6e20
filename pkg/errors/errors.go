// Package errors defines the failure taxonomy shared by the job pipeline,
// the stores, and the HTTP layer. Every job failure maps to exactly one
// sentinel, and every sentinel has a stable machine-readable kind string
// recorded on the job.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAccountNotFound means the fetch collaborator could not resolve the
	// account. Terminal; not retried.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInsufficientData means the fetched corpus is below the minimum size
	// for a meaningful estimate. Terminal.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrFetchFailed is a transient external fetch failure, eligible for
	// bounded retries.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrModelUnavailable means the lemmatization capability is not ready.
	ErrModelUnavailable = errors.New("lemmatizer model unavailable")
	// ErrScoring means the scorer was invoked on an empty or malformed token
	// sequence.
	ErrScoring = errors.New("scoring error")
	// ErrTimeout means a job or request exceeded its execution budget.
	ErrTimeout = errors.New("operation timed out")

	// ErrScoreNotFound means no score record exists for the requested key.
	ErrScoreNotFound = errors.New("score not found")
	// ErrJobNotFound means no job, running or retained, exists for the account.
	ErrJobNotFound = errors.New("job not found")
	// ErrQueueFull means the pending job channel is saturated.
	ErrQueueFull = errors.New("queue full")
	// ErrInvalidInput covers malformed handles and request parameters.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInternal is the fallback for unclassified failures.
	ErrInternal = errors.New("internal error")
)

// Job error kinds, stored verbatim on job records and returned to clients.
const (
	KindAccountNotFound  = "ACCOUNT_NOT_FOUND"
	KindInsufficientData = "INSUFFICIENT_DATA"
	KindFetchError       = "FETCH_ERROR"
	KindModelUnavailable = "MODEL_UNAVAILABLE"
	KindScoringError     = "SCORING_ERROR"
	KindTimeout          = "TIMEOUT"
	KindInternal         = "INTERNAL"
)

// AppError pairs a sentinel with human-readable detail and an HTTP status.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New wraps a sentinel in an AppError.
func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Newf wraps a sentinel in an AppError with a formatted message.
func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Kind returns the stable error-kind string for a classified pipeline error.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrAccountNotFound):
		return KindAccountNotFound
	case errors.Is(err, ErrInsufficientData):
		return KindInsufficientData
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrModelUnavailable):
		return KindModelUnavailable
	case errors.Is(err, ErrScoring):
		return KindScoringError
	case errors.Is(err, ErrFetchFailed):
		return KindFetchError
	default:
		return KindInternal
	}
}

// HTTPStatusCode maps an error to the status code the HTTP layer should
// return for it.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrScoreNotFound),
		errors.Is(err, ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrInsufficientData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrQueueFull), errors.Is(err, ErrModelUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
