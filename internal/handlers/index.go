package handlers

import (
	"net/http"
	"time"

	"github.com/maneesh/discloud/internal/catalog"
	"github.com/maneesh/discloud/internal/models"
	"github.com/maneesh/discloud/internal/naming"
)

// IndexHandler renders the root page from the cached root view, rebuilding
// it once stale or older than maxAge. With Fragment set it always rebuilds
// and renders only the item list, which is what /reset returns.
type IndexHandler struct {
	reconciler *catalog.Reconciler
	maxAge     time.Duration
	Fragment   bool
}

func NewIndexHandler(reconciler *catalog.Reconciler, maxAge time.Duration) *IndexHandler {
	return &IndexHandler{reconciler: reconciler, maxAge: maxAge}
}

// NewResetHandler serves GET /reset.
func NewResetHandler(reconciler *catalog.Reconciler) *IndexHandler {
	return &IndexHandler{reconciler: reconciler, Fragment: true}
}

// ServeHTTP handles GET / and GET /reset
func (ih *IndexHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "render_index")
	defer span.End()

	var items []models.Item
	var err error
	if ih.Fragment {
		items, err = ih.reconciler.Rebuild(ctx)
	} else {
		items, err = ih.reconciler.Current(ctx, ih.maxAge)
	}
	if err != nil {
		span.RecordError(err)
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if ih.Fragment {
		err = renderItems(w, naming.Path{}, items)
	} else {
		err = renderIndex(w, items)
	}
	if err != nil {
		span.RecordError(err)
		writeError(w, r, err)
	}
}
