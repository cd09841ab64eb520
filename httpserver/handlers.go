package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/isdmx/coderoom/logger"
	"github.com/isdmx/coderoom/pipeline"
)

// PingMessage is the body of GET /api/ping
const PingMessage = "✅ Pong! Server is alive."

type errorResponse struct {
	Error  string   `json:"error"`
	Issues []string `json:"issues,omitempty"`
	Stdout *string  `json:"stdout,omitempty"`
	Stderr *string  `json:"stderr,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) handleExec(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	var req pipeline.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	req.ID = middleware.GetReqID(r.Context())

	resp, err := s.runner.Run(r.Context(), req)
	if err != nil {
		s.writePipelineError(w, req.ID, err)
		return
	}

	if resp.Preview != nil {
		writeJSON(w, http.StatusOK, resp.Preview)
		return
	}
	writeJSON(w, http.StatusOK, resp.Execution)
}

func (s *Server) writePipelineError(w http.ResponseWriter, requestID string, err error) {
	var pErr *pipeline.Error
	if !errors.As(err, &pErr) {
		s.logger.Error("unclassified pipeline error", zap.String(logger.KeyRequestID, requestID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, pipeline.MsgExecutionFailed)
		return
	}

	switch {
	case pErr.Kind.RequestShape():
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: pErr.Error(), Issues: pErr.Issues})
	case pErr.Kind == pipeline.KindBackend:
		body := errorResponse{Error: pErr.Error()}
		if pErr.Partial != nil {
			body.Stdout = &pErr.Partial.Stdout
			body.Stderr = &pErr.Partial.Stderr
		}
		writeJSON(w, http.StatusInternalServerError, body)
	default:
		writeError(w, http.StatusInternalServerError, pipeline.MsgExecutionFailed)
	}
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": PingMessage})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
