// Package sfs provides the sectorfs protocol glue: mapping filesystem
// errors onto wire status codes, and request/response logging helpers.
package sfs

import (
	"errors"
	"fmt"
	"log"

	"github.com/example/sectorfs/pkg/api"
	"github.com/example/sectorfs/pkg/fs"
)

// MapErrorToStatus converts a Go error to a protocol status code.
func MapErrorToStatus(err error) api.Status {
	if err == nil {
		return api.Status_OK
	}

	if errors.Is(err, fs.ErrNotExist) {
		return api.Status_ERR_NOENT
	} else if errors.Is(err, fs.ErrExist) {
		return api.Status_ERR_EXIST
	} else if errors.Is(err, fs.ErrNameTooLong) {
		return api.Status_ERR_NAMETOOLONG
	} else if errors.Is(err, fs.ErrNotDir) {
		return api.Status_ERR_NOTDIR
	} else if errors.Is(err, fs.ErrIsDir) {
		return api.Status_ERR_ISDIR
	} else if errors.Is(err, fs.ErrNotEmpty) {
		return api.Status_ERR_NOTEMPTY
	} else if errors.Is(err, fs.ErrNoSpace) {
		return api.Status_ERR_NOSPC
	} else if errors.Is(err, fs.ErrOutOfRange) {
		return api.Status_ERR_INVAL
	} else if errors.Is(err, fs.ErrWriteDenied) {
		return api.Status_ERR_ACCES
	} else if errors.Is(err, fs.ErrRemoved) {
		return api.Status_ERR_STALE
	} else if errors.Is(err, fs.ErrInvalidHandle) {
		return api.Status_ERR_BADHANDLE
	} else if errors.Is(err, fs.ErrIO) {
		return api.Status_ERR_IO
	}

	LogUnknownError(err)
	return api.Status_ERR_IO
}

// StatusToError converts a wire status back into the matching filesystem
// error, for client callers that want errors.Is to keep working across
// the RPC boundary.
func StatusToError(s api.Status) error {
	switch s {
	case api.Status_OK:
		return nil
	case api.Status_ERR_NOENT:
		return fs.ErrNotExist
	case api.Status_ERR_EXIST:
		return fs.ErrExist
	case api.Status_ERR_NAMETOOLONG:
		return fs.ErrNameTooLong
	case api.Status_ERR_NOTDIR:
		return fs.ErrNotDir
	case api.Status_ERR_ISDIR:
		return fs.ErrIsDir
	case api.Status_ERR_NOTEMPTY:
		return fs.ErrNotEmpty
	case api.Status_ERR_NOSPC:
		return fs.ErrNoSpace
	case api.Status_ERR_INVAL:
		return fs.ErrOutOfRange
	case api.Status_ERR_ACCES:
		return fs.ErrWriteDenied
	case api.Status_ERR_STALE:
		return fs.ErrRemoved
	case api.Status_ERR_BADHANDLE:
		return fs.ErrInvalidHandle
	default:
		return fs.ErrIO
	}
}

// LogUnknownError logs detailed information about unrecognized errors.
func LogUnknownError(err error) {
	log.Printf("Unknown error type: %T, message: %v", err, err)
}

// LogRequest logs information about a received request.
func LogRequest(op string, reqID string, clientAddr string) {
	log.Printf("sectorfs request: %s, ID: %s, Client: %s", op, reqID, clientAddr)
}

// LogResponse logs information about a response.
func LogResponse(op string, reqID string, status api.Status, duration string) {
	log.Printf("sectorfs response: %s, ID: %s, Status: %s, Duration: %s",
		op, reqID, status.String(), duration)
}

// LogError logs an error with its context.
func LogError(op string, reqID string, err error) {
	log.Printf("sectorfs error: %s, ID: %s, Error: %v", op, reqID, err)
}

// ProtoError represents an error with a protocol status code.
type ProtoError struct {
	Status  api.Status
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ProtoError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (underlying: %v)", e.Status.String(), e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Status.String(), e.Message)
}

// Unwrap returns the underlying error.
func (e *ProtoError) Unwrap() error {
	return e.Cause
}

// NewProtoError creates a new ProtoError.
func NewProtoError(status api.Status, message string, cause error) *ProtoError {
	return &ProtoError{
		Status:  status,
		Message: message,
		Cause:   cause,
	}
}
