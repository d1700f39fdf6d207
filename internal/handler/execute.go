package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/coderunner/internal/apperror"
	"github.com/sakif/coderunner/internal/auth"
	"github.com/sakif/coderunner/internal/executor"
	"github.com/sakif/coderunner/internal/service"
)

// bodyOverhead is room for the JSON framing and escaping around the source.
const bodyOverhead = 64 << 10

// ExecuteResponse is the boundary shape of an execution: Output on success,
// Error and Status otherwise. Truncated is set when captured output hit the
// size cap.
type ExecuteResponse struct {
	Output    *string `json:"output,omitempty"`
	Error     string  `json:"error,omitempty"`
	Status    string  `json:"status,omitempty"`
	Truncated bool    `json:"truncated,omitempty"`
}

// ExecuteHandler handles code execution requests.
type ExecuteHandler struct {
	svc     *service.ExecutionService
	maxBody int64
	logger  *slog.Logger
}

// NewExecuteHandler creates an ExecuteHandler. maxSource is the service's
// source limit; the body limit is derived from it.
func NewExecuteHandler(svc *service.ExecutionService, maxSource int, logger *slog.Logger) *ExecuteHandler {
	if maxSource <= 0 {
		maxSource = service.DefaultMaxSourceBytes
	}
	return &ExecuteHandler{
		svc:     svc,
		maxBody: int64(maxSource)*2 + bodyOverhead,
		logger:  logger,
	}
}

// HandleExecute runs one program.
//
// HTTP: POST /api/execute
//
//	{"code":"print('hi')","language":"python"} → 200 {"output":"hi\n"}
//	{"code":"int main(","language":"c"}        → 200 {"error":"...","status":"compile_error"}
//
// Output cut at the capture limit adds "truncated":true.
func (h *ExecuteHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)

	var req executor.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid execution request body", slog.String("error", err.Error()))
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ExecuteResponse{Error: "request body too large", Status: "validation_error"})
			return
		}
		writeJSON(w, http.StatusBadRequest, ExecuteResponse{Error: "invalid request body", Status: "validation_error"})
		return
	}

	client, _ := auth.ClientFromContext(r.Context())
	res, err := h.svc.Execute(r.Context(), req, client)
	if err != nil {
		status, errorType := errorStatus(err)
		msg := "An internal error occurred"
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			msg = appErr.Message
		}
		writeJSON(w, status, ExecuteResponse{Error: msg, Status: errorType})
		return
	}

	if res.ID != "" {
		w.Header().Set("X-Execution-ID", res.ID)
	}
	if res.OK() {
		writeJSON(w, http.StatusOK, ExecuteResponse{Output: &res.Stdout, Truncated: res.Truncated})
		return
	}
	writeJSON(w, StatusCode(res.Status), ExecuteResponse{Error: res.Message, Status: string(res.Status), Truncated: res.Truncated})
}

// StatusCode maps an execution status to the HTTP status it is served with.
// Failures of the submitted program are still successful requests.
func StatusCode(s executor.Status) int {
	switch s {
	case executor.StatusSuccess, executor.StatusCompileError, executor.StatusRuntimeError, executor.StatusTimeout:
		return http.StatusOK
	case executor.StatusNotSupported:
		return http.StatusBadRequest
	case executor.StatusToolchainMissing:
		return http.StatusServiceUnavailable
	case executor.StatusCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
