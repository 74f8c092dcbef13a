// Package handlers exposes the orchestrators over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/maneesh/discloud/internal/apperr"
	"github.com/maneesh/discloud/internal/logging"
	"github.com/maneesh/discloud/internal/naming"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("discloud-handlers")

var validate = validator.New()

// errMissingField marks a request that failed struct validation.
var errMissingField = errors.New("missing required field")

// writeError answers with the status mapped from err. Server errors are
// logged; client errors are not.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if errors.Is(err, errMissingField) {
		status = http.StatusBadRequest
	}
	if status >= http.StatusInternalServerError {
		logging.Error("Request failed", err, "method", r.Method, "path", r.URL.Path)
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warnw("Failed to encode response", "error", err)
	}
}

// decodeJSON reads a JSON body into v and runs its validate tags.
func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(errMissingField, err)
	}
	if err := validate.Struct(v); err != nil {
		return errors.Join(errMissingField, err)
	}
	return nil
}

// routePath reads the optional folderName/parentFolderName route variables.
func routePath(r *http.Request) naming.Path {
	vars := mux.Vars(r)
	return naming.NewPath(vars["folderName"], vars["parentFolderName"])
}
