package api

import (
	"net/http"

	"github.com/veriflowhq/veriflow/internal/batch"
	"github.com/veriflowhq/veriflow/internal/queue"
	"github.com/veriflowhq/veriflow/internal/workload"
	"github.com/veriflowhq/veriflow/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	runtime *Runtime,
) {
	routes.Register(
		mux,
		domain.Tasks.Handler().Routes(),
		queue.NewHandler(domain.Queue, runtime.Logger).Routes(),
		batch.NewHandler(domain.Batch, runtime.Logger).Routes(),
		workload.NewHandler(domain.Workload, runtime.Logger).Routes(),
	)
}
