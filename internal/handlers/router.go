package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/maneesh/discloud/internal/catalog"
	"github.com/maneesh/discloud/internal/logging"
	"github.com/maneesh/discloud/internal/metrics"
	"github.com/maneesh/discloud/internal/service"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Services are the orchestrators the routes delegate to.
type Services struct {
	Reconciler *catalog.Reconciler
	Uploader   *service.Uploader
	Downloader *service.Downloader
	Deleter    *service.Deleter
	Folders    *service.Folders
	// IndexMaxAge bounds how long GET / reuses the cached root view.
	IndexMaxAge time.Duration
	// Metrics, if set, is served at /metrics.
	Metrics *metrics.Metrics
}

// NewRouter registers every route. Download and folder routes accept their
// folder segments as optional trailing path elements.
func NewRouter(s Services) *mux.Router {
	router := mux.NewRouter()
	router.Use(RequestLogger)

	// Health check endpoint (no tracing needed)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)
	if s.Metrics != nil {
		router.Handle("/metrics", s.Metrics.Handler()).Methods(http.MethodGet)
	}

	folders := NewFolderHandler(s.Folders)
	download := NewDownloadHandler(s.Downloader, false)
	merged := NewDownloadHandler(s.Downloader, true)

	router.Handle("/", traced(NewIndexHandler(s.Reconciler, s.IndexMaxAge), "GET /")).Methods(http.MethodGet)
	router.Handle("/reset", traced(NewResetHandler(s.Reconciler), "GET /reset")).Methods(http.MethodGet)
	router.Handle("/upload", traced(NewUploadHandler(s.Uploader), "POST /upload")).Methods(http.MethodPost)
	router.Handle("/delete", traced(NewDeleteHandler(s.Deleter), "POST /delete")).Methods(http.MethodPost)
	router.Handle("/create-folder", traced(http.HandlerFunc(folders.Create), "POST /create-folder")).Methods(http.MethodPost)

	for _, suffix := range []string{"", "/{folderName}", "/{folderName}/{parentFolderName}"} {
		router.Handle("/download/{messageId}"+suffix, traced(download, "GET /download")).Methods(http.MethodGet)
		router.Handle("/download-merged/{messageId}"+suffix, traced(merged, "GET /download-merged")).Methods(http.MethodGet)
	}
	for _, suffix := range []string{"/{folderName}", "/{folderName}/{parentFolderName}"} {
		router.Handle("/folders"+suffix, traced(http.HandlerFunc(folders.List), "GET /folders")).Methods(http.MethodGet)
	}
	return router
}

func traced(h http.Handler, operation string) http.Handler {
	return otelhttp.NewHandler(h, operation)
}

// RequestLogger logs one line per request with its status and latency.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.Infow("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"latency", time.Since(start),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Flush keeps event streams working through the recorder.
func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
