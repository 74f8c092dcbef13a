package handlers

import (
	"net/http"

	"github.com/maneesh/discloud/internal/naming"
	"github.com/maneesh/discloud/internal/service"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DeleteRequest is the JSON body of POST /delete.
type DeleteRequest struct {
	FileName         string `json:"fileName" validate:"required"`
	FolderName       string `json:"folderName"`
	ParentFolderName string `json:"parentFolderName"`
}

type DeleteHandler struct {
	deleter *service.Deleter
}

func NewDeleteHandler(deleter *service.Deleter) *DeleteHandler {
	return &DeleteHandler{deleter: deleter}
}

// ServeHTTP handles POST /delete
func (dh *DeleteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "delete_request",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	var body DeleteRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	span.SetAttributes(attribute.String("name", body.FileName))

	result, err := dh.deleter.Delete(ctx, service.DeleteRequest{
		Name: body.FileName,
		Path: naming.NewPath(body.FolderName, body.ParentFolderName),
	})
	if err != nil {
		span.RecordError(err)
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
