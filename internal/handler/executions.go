package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/coderunner/internal/apperror"
	"github.com/sakif/coderunner/internal/service"
)

// ExecutionHandler serves execution history.
type ExecutionHandler struct {
	svc    *service.ExecutionService
	logger *slog.Logger
}

// NewExecutionHandler creates an ExecutionHandler.
func NewExecutionHandler(svc *service.ExecutionService, logger *slog.Logger) *ExecutionHandler {
	return &ExecutionHandler{svc: svc, logger: logger}
}

// HandleList returns history newest first.
//
// HTTP: GET /api/executions?limit=20&offset=0
func (h *ExecutionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, err)
		return
	}

	executions, err := h.svc.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, executions)
}

// HandleGetByID returns one history entry.
//
// HTTP: GET /api/executions/{id}
func (h *ExecutionHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	// chi.URLParam extracts {id} from the route pattern
	id := chi.URLParam(r, "id")

	execution, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, execution)
}

// queryInt reads an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperror.ValidationFailed(name, name+" must be a non-negative integer")
	}
	return n, nil
}
