package handlers

import (
	"net/http"

	"github.com/maneesh/discloud/internal/naming"
	"github.com/maneesh/discloud/internal/service"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CreateFolderRequest is the JSON body of POST /create-folder. The new
// folder goes inside ParentFolderName, itself inside GrandparentFolderName.
type CreateFolderRequest struct {
	FolderName            string `json:"folderName" validate:"required"`
	ParentFolderName      string `json:"parentFolderName"`
	GrandparentFolderName string `json:"grandparentFolderName"`
}

// FolderHandler creates folders and renders their contents.
type FolderHandler struct {
	folders *service.Folders
}

func NewFolderHandler(folders *service.Folders) *FolderHandler {
	return &FolderHandler{folders: folders}
}

// Create handles POST /create-folder
func (fh *FolderHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "create_folder_request",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	var body CreateFolderRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	span.SetAttributes(attribute.String("folder_name", body.FolderName))

	parent := naming.NewPath(body.ParentFolderName, body.GrandparentFolderName)
	entry, err := fh.folders.Create(ctx, body.FolderName, parent)
	if err != nil {
		span.RecordError(err)
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// List handles GET /folders/{folderName}[/{parentFolderName}] and returns
// the folder's item list fragment.
func (fh *FolderHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "list_folder_request",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	path := routePath(r)
	span.SetAttributes(attribute.String("path", path.String()))

	items, err := fh.folders.List(ctx, path)
	if err != nil {
		span.RecordError(err)
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderItems(w, path, items); err != nil {
		span.RecordError(err)
		writeError(w, r, err)
	}
}
