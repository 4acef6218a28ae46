package state

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chamada/internal/clients"
)

var (
	ErrClosed       = errors.New("controller_closed")
	ErrFileTooLarge = errors.New("file_too_large")
)

// ValidationError lists the input fields that failed local checks. No
// request is sent when it is returned.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid " + strings.Join(e.Fields, ", ")
}

// Rejection is a file refused before upload.
type Rejection struct {
	Name string
	Size int64
	Err  error
}

func (r Rejection) Message() string {
	return Message(r.Err)
}

func tooLarge(name string, size, limit int64) error {
	return fmt.Errorf("%s is %s, above the %s limit: %w", name, humanSize(size), humanSize(limit), ErrFileTooLarge)
}

// Message renders err for people.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var (
		validationErr *ValidationError
		apiErr        *clients.APIError
		decodeErr     *clients.DecodeError
	)
	switch {
	case errors.Is(err, clients.ErrSessionExpired):
		return "session expired, log in again"
	case errors.As(err, &validationErr):
		return validationErr.Error()
	case errors.As(err, &apiErr):
		return apiErr.Error()
	case errors.As(err, &decodeErr):
		return "unexpected response from server"
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	}
	return err.Error()
}

func humanSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
