package queue

import (
	"log/slog"
	"net/http"

	"github.com/veriflowhq/veriflow/internal/scoring"
	"github.com/veriflowhq/veriflow/internal/tasks"
	"github.com/veriflowhq/veriflow/pkg/handlers"
	"github.com/veriflowhq/veriflow/pkg/routes"
)

// Handler provides HTTP endpoints for queue views.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler creates a Handler for the queue service.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		logger: logger.With("handler", "queue"),
	}
}

// Routes returns the route group definition for queue endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/queue",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/pending", Handler: h.Pending},
			{Method: "GET", Pattern: "/stats", Handler: h.Stats},
		},
	}
}

// Pending returns the claimable tasks in dispatch order.
func (h *Handler) Pending(w http.ResponseWriter, r *http.Request) {
	filters := pendingFiltersFromQuery(r)

	pending, err := h.svc.Pending(r.Context(), filters)
	if err != nil {
		handlers.RespondError(w, h.logger, tasks.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, pending)
}

// Stats returns the queue statistics snapshot. The reviewer query parameter
// populates the caller's own in-progress count.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context(), r.URL.Query().Get("reviewer"))
	if err != nil {
		handlers.RespondError(w, h.logger, tasks.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, stats)
}

func pendingFiltersFromQuery(r *http.Request) PendingFilters {
	var f PendingFilters
	values := r.URL.Query()

	if s := values.Get("status"); s != "" {
		status := tasks.Status(s)
		f.Status = &status
	}

	if p := values.Get("priority"); p != "" {
		priority := tasks.Priority(p)
		f.Priority = &priority
	}

	if sev := values.Get("severity"); sev != "" {
		severity := scoring.Severity(sev)
		f.Severity = &severity
	}

	return f
}
