// Package service holds the orchestrators that combine the catalog store, the
// attachment transport and the naming rules into user-level operations.
package service

import (
	"github.com/maneesh/discloud/internal/catalog"
	"github.com/maneesh/discloud/internal/metrics"
	"github.com/maneesh/discloud/internal/naming"
	"github.com/maneesh/discloud/internal/storage"
	"github.com/maneesh/discloud/internal/transport"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("discloud-service")

// Deps are the collaborators shared by every orchestrator.
type Deps struct {
	Store      storage.Store
	Transport  transport.Transport
	Fetcher    transport.Fetcher
	Reconciler *catalog.Reconciler
	Metrics    *metrics.Metrics
	// ChannelID is where new attachment messages are posted.
	ChannelID string
}

func (d Deps) resolver() *naming.Resolver {
	return naming.NewResolver(d.Store)
}

// invalidate marks the root view stale after a mutation; the next read of
// GET / rebuilds it.
func (d Deps) invalidate() {
	if d.Reconciler == nil {
		return
	}
	d.Reconciler.Index().Invalidate()
}
