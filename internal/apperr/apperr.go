// Package apperr holds the error taxonomy shared by the orchestrators and the
// HTTP layer.
package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrNotDownloadable      = errors.New("folder is not downloadable")
	ErrNotSplit             = errors.New("file is not split")
	ErrCorrupt              = errors.New("file chunks are not contiguous")
	ErrTransportUnavailable = errors.New("transport unavailable")
	ErrPartialFailure       = errors.New("operation partially failed")
	ErrTooDeep              = errors.New("folder nesting limit reached")
	ErrInvalidName          = errors.New("invalid name")
	// ErrNameTaken is a folder path segment already used by a file.
	ErrNameTaken = errors.New("name is taken by a file")
)

// HTTPStatus maps an orchestrator error to the status code returned to the
// browser. Unknown errors are server errors.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNotDownloadable),
		errors.Is(err, ErrNotSplit),
		errors.Is(err, ErrTooDeep),
		errors.Is(err, ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, ErrNameTaken):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
