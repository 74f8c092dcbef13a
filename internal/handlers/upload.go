package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-contrib/sse"
	"github.com/maneesh/discloud/internal/logging"
	"github.com/maneesh/discloud/internal/naming"
	"github.com/maneesh/discloud/internal/service"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const maxMemory = 32 << 20

// UploadHandler handles file upload requests
type UploadHandler struct {
	uploader *service.Uploader
}

func NewUploadHandler(uploader *service.Uploader) *UploadHandler {
	return &UploadHandler{uploader: uploader}
}

// ServeHTTP handles POST /upload (multipart: file, folderName, parentFolderName).
// Clients that accept text/event-stream get progress events; others get the
// result as JSON once the upload finishes.
func (uh *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "upload_request",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		http.Error(w, fmt.Sprintf("invalid upload form: %v", err), http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing 'file' form field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		span.RecordError(err)
		http.Error(w, fmt.Sprintf("failed to read upload: %v", err), http.StatusBadRequest)
		return
	}

	req := service.UploadRequest{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
		Path:        naming.NewPath(r.FormValue("folderName"), r.FormValue("parentFolderName")),
	}
	span.SetAttributes(
		attribute.String("file_name", req.Name),
		attribute.Int("file_size", len(data)),
	)

	if !wantsEventStream(r) {
		result, err := uh.uploader.Upload(ctx, req, nil)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	stream := newEventStream(w)
	result, err := uh.uploader.Upload(ctx, req, func(percent float64) {
		stream.send("progress", fmt.Sprintf("%.2f", percent))
	})
	if err != nil {
		if !stream.started {
			writeError(w, r, err)
			return
		}
		logging.Error("Upload failed after streaming started", err, "name", req.Name)
		stream.send("error", err.Error())
		return
	}
	stream.send("complete", "100")
	logging.Infow("File upload completed", "name", result.Name, "chunks", result.ChunkCount, "size", result.Size)
}

func wantsEventStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

// eventStream writes server-sent events, committing the response headers
// with the first one. Frames carry no space after the field colon, e.g.
// "event:progress\ndata:33.33\n\n". SSE parsers strip that optional space,
// so EventSource clients see the same event as "event: progress"; clients
// matching raw bytes must not expect it.
type eventStream struct {
	w       http.ResponseWriter
	started bool
}

func newEventStream(w http.ResponseWriter) *eventStream {
	return &eventStream{w: w}
}

func (s *eventStream) send(event, data string) {
	if !s.started {
		h := s.w.Header()
		h.Set("Content-Type", sse.ContentType)
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}
	if err := sse.Encode(s.w, sse.Event{Event: event, Data: data}); err != nil {
		logging.Warnw("Failed to write event", "event", event, "error", err)
		return
	}
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
}
