package workload

import (
	"log/slog"
	"net/http"

	"github.com/veriflowhq/veriflow/internal/tasks"
	"github.com/veriflowhq/veriflow/pkg/handlers"
	"github.com/veriflowhq/veriflow/pkg/routes"
)

// Handler provides the team workload endpoint.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler creates a Handler for the workload service.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		logger: logger.With("handler", "workload"),
	}
}

// Routes returns the route group definition for workload endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/team",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/workload", Handler: h.Report},
		},
	}
}

// Report returns the team workload snapshot.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Report(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, tasks.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, report)
}
