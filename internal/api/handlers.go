// Package api exposes the progress engine over HTTP for the
// exercise-presentation layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/lumen-edu/progress-engine/internal/feed"
	"github.com/lumen-edu/progress-engine/internal/progress"
	"github.com/lumen-edu/progress-engine/internal/report"
)

// Handler holds the dependencies for all HTTP endpoints.
type Handler struct {
	Engine   *progress.Engine
	Exporter *report.Exporter
	Feed     *feed.Hub

	// ReadyCheck reports whether downstream dependencies are reachable.
	// Nil means always ready.
	ReadyCheck func(ctx context.Context) error
}

// Routes builds the service router.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/users/{userID}/modules/{moduleID}/answers", h.handleSubmitAnswer)
	mux.HandleFunc("POST /v1/users/{userID}/modules/{moduleID}/init", h.handleInitModule)
	mux.HandleFunc("POST /v1/users/{userID}/modules/{moduleID}/complete", h.handleMarkCompleted)
	mux.HandleFunc("GET /v1/users/{userID}/modules/{moduleID}", h.handleGetModule)
	mux.HandleFunc("GET /v1/users/{userID}/modules/{moduleID}/parts/{partID}", h.handleGetPart)
	mux.HandleFunc("GET /v1/users/{userID}/modules/{moduleID}/parts/{partID}/exercises/{exerciseID}", h.handleGetExercise)
	mux.HandleFunc("GET /v1/users/{userID}/progress", h.handleGetAllModules)
	mux.HandleFunc("GET /v1/users/{userID}/progress.xlsx", h.handleExportXLSX)
	mux.HandleFunc("GET /v1/users/{userID}/feed", h.handleFeed)

	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", h.handleReadyz)

	return mux
}

type submitAnswerBody struct {
	PartID         string `json:"partId"`
	ExerciseID     string `json:"exerciseId"`
	UserAnswer     string `json:"userAnswer"`
	IsCorrect      bool   `json:"isCorrect"`
	TotalExercises int    `json:"totalExercises,omitempty"`
}

func (h *Handler) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var body submitAnswerBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	rec, err := h.Engine.SubmitAnswer(r.Context(), progress.SubmitAnswerRequest{
		UserID:         r.PathValue("userID"),
		ModuleID:       r.PathValue("moduleID"),
		PartID:         body.PartID,
		ExerciseID:     body.ExerciseID,
		UserAnswer:     body.UserAnswer,
		IsCorrect:      body.IsCorrect,
		TotalExercises: body.TotalExercises,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type initModuleBody struct {
	TotalExercises int `json:"totalExercises,omitempty"`
}

func (h *Handler) handleInitModule(w http.ResponseWriter, r *http.Request) {
	var body initModuleBody
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
	}

	err := h.Engine.InitializeModuleProgress(r.Context(), r.PathValue("userID"), r.PathValue("moduleID"), body.TotalExercises)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type markCompletedBody struct {
	FinalScore *int `json:"finalScore,omitempty"`
}

func (h *Handler) handleMarkCompleted(w http.ResponseWriter, r *http.Request) {
	var body markCompletedBody
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
	}

	err := h.Engine.MarkCompleted(r.Context(), r.PathValue("userID"), r.PathValue("moduleID"), body.FinalScore)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) handleGetModule(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Engine.GetModuleProgress(r.Context(), r.PathValue("userID"), r.PathValue("moduleID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "no progress recorded")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleGetPart(w http.ResponseWriter, r *http.Request) {
	answers, err := h.Engine.GetPartAnswers(r.Context(),
		r.PathValue("userID"), r.PathValue("moduleID"), r.PathValue("partID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if answers == nil {
		writeError(w, http.StatusNotFound, "no answers recorded")
		return
	}
	writeJSON(w, http.StatusOK, answers)
}

func (h *Handler) handleGetExercise(w http.ResponseWriter, r *http.Request) {
	answer, err := h.Engine.GetExerciseAnswer(r.Context(),
		r.PathValue("userID"), r.PathValue("moduleID"), r.PathValue("partID"), r.PathValue("exerciseID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if answer == nil {
		writeError(w, http.StatusNotFound, "no answer recorded")
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (h *Handler) handleGetAllModules(w http.ResponseWriter, r *http.Request) {
	records, err := h.Engine.GetAllModulesProgress(r.Context(), r.PathValue("userID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	if h.Exporter == nil {
		writeError(w, http.StatusNotFound, "export not configured")
		return
	}
	userID := r.PathValue("userID")

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "progress-"+userID+".xlsx"))
	if err := h.Exporter.WriteXLSX(r.Context(), userID, w); err != nil {
		slog.Error("xlsx export failed", "user_id", userID, "error", err)
	}
}

func (h *Handler) handleFeed(w http.ResponseWriter, r *http.Request) {
	if h.Feed == nil {
		writeError(w, http.StatusNotFound, "feed not configured")
		return
	}
	h.Feed.ServeWS(w, r, r.PathValue("userID"))
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (h *Handler) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if h.ReadyCheck != nil {
		if err := h.ReadyCheck(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps the engine's error taxonomy to HTTP statuses. The
// presentation layer treats any error status as "progress not saved, please
// retry" and keeps the learner's local answer on screen.
func writeEngineError(w http.ResponseWriter, err error) {
	var malformed *progress.MalformedRecordError
	switch {
	case errors.Is(err, progress.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, progress.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, progress.ErrStorageUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &malformed):
		// Surface the raw document rather than discarding a learner's data.
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error": err.Error(),
			"raw":   string(malformed.Raw),
		})
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
