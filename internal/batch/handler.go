package batch

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/veriflowhq/veriflow/internal/tasks"
	"github.com/veriflowhq/veriflow/pkg/handlers"
	"github.com/veriflowhq/veriflow/pkg/routes"
)

// Handler provides HTTP endpoints for batch processing.
type Handler struct {
	coord  *Coordinator
	logger *slog.Logger
}

// processRequest selects the tasks and run options for one batch.
type processRequest struct {
	TaskIDs []uuid.UUID `json:"task_ids"`
	Options
}

// NewHandler creates a Handler for the batch coordinator.
func NewHandler(coord *Coordinator, logger *slog.Logger) *Handler {
	return &Handler{
		coord:  coord,
		logger: logger.With("handler", "batch"),
	}
}

// Routes returns the route group definition for batch endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/batch",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/process", Handler: h.Process},
			{Method: "GET", Pattern: "/progress", Handler: h.Active},
			{Method: "GET", Pattern: "/{id}/progress", Handler: h.Progress},
		},
	}
}

// Process runs a batch over the requested tasks and responds with the final
// result once every dispatched task has finished.
func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, tasks.ErrValidation)
		return
	}

	result, err := h.coord.Run(r.Context(), req.TaskIDs, req.Options)
	if err != nil {
		handlers.RespondError(w, h.logger, tasks.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Active reports the incremental state of every running batch.
func (h *Handler) Active(w http.ResponseWriter, r *http.Request) {
	handlers.RespondJSON(w, http.StatusOK, h.coord.Active())
}

// Progress reports the incremental state of a running batch.
func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: malformed batch id", tasks.ErrValidation))
		return
	}

	progress, err := h.coord.Progress(id)
	if err != nil {
		handlers.RespondError(w, h.logger, tasks.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, progress)
}
