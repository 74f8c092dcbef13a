package handlers

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/maneesh/discloud/internal/logging"
	"github.com/maneesh/discloud/internal/service"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DownloadHandler handles file download requests
type DownloadHandler struct {
	downloader *service.Downloader
	merged     bool
}

// NewDownloadHandler serves /download/{messageId}. Merged handlers serve
// /download-merged/{messageId} and refuse unsplit files.
func NewDownloadHandler(downloader *service.Downloader, merged bool) *DownloadHandler {
	return &DownloadHandler{downloader: downloader, merged: merged}
}

// ServeHTTP handles GET /download/{messageId}[/{folderName}[/{parentFolderName}]]
func (dh *DownloadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "download_request",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	messageID := mux.Vars(r)["messageId"]
	if messageID == "" {
		http.Error(w, "missing messageId in path", http.StatusBadRequest)
		return
	}
	path := routePath(r)
	span.SetAttributes(
		attribute.String("message_id", messageID),
		attribute.String("path", path.String()),
		attribute.Bool("merged", dh.merged),
	)

	var payload *service.Payload
	var err error
	if dh.merged {
		payload, err = dh.downloader.DownloadMerged(ctx, messageID, path)
	} else {
		payload, err = dh.downloader.Download(ctx, messageID, path)
	}
	if err != nil {
		span.RecordError(err)
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", payload.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": payload.Name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(payload.Data)))
	w.Header().Set("X-Content-SHA256", payload.SHA256)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(payload.Data); err != nil {
		logging.Warnw("Download interrupted", "message_id", messageID, "error", err)
		return
	}

	logging.Infof("File download completed: %s (%d bytes)", payload.Name, len(payload.Data))
}
