package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"quizpool-service/internal/app"
	"quizpool-service/internal/domain"
)

// SettlementHandler exposes the participant snapshot and the settlement
// engine over plain JSON endpoints for organizer tooling.
type SettlementHandler struct {
	engine     *app.SettlementEngine
	aggregator *app.Aggregator
	quizzes    app.QuizRepository
}

func NewSettlementHandler(engine *app.SettlementEngine, aggregator *app.Aggregator, quizzes app.QuizRepository) *SettlementHandler {
	return &SettlementHandler{engine: engine, aggregator: aggregator, quizzes: quizzes}
}

// ServeParticipants returns the current aggregator snapshot for a quiz:
// every submitted result tagged with participant identity.
func (h *SettlementHandler) ServeParticipants(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}
	snapshot, err := h.aggregator.Snapshot(r.Context(), quizID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"quizId": quizID, "participants": snapshot})
}

// ServeSettle runs one settlement pass and returns the resulting state.
// A distribution failure still returns the persisted state: the quiz is
// distribution-pending, not eligible again.
func (h *SettlementHandler) ServeSettle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	quizID := r.URL.Query().Get("quizId")
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}

	quiz, err := h.quizzes.GetQuiz(r.Context(), quizID)
	if err != nil {
		writeError(w, err)
		return
	}

	state, err := h.engine.Settle(r.Context(), quiz)
	if err != nil && !errors.Is(err, domain.ErrDistributionFailed) {
		writeError(w, err)
		return
	}
	payload := map[string]any{"state": state}
	if err != nil {
		payload["error"] = err.Error()
	}
	writeJSON(w, payload)
}

// ServeRetryDistribution replays a pending distribution.
func (h *SettlementHandler) ServeRetryDistribution(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	quizID := r.URL.Query().Get("quizId")
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}
	state, err := h.engine.RetryDistribution(r.Context(), quizID)
	if err != nil && !errors.Is(err, domain.ErrDistributionFailed) {
		writeError(w, err)
		return
	}
	payload := map[string]any{"state": state}
	if err != nil {
		payload["error"] = err.Error()
	}
	writeJSON(w, payload)
}

// ServeState returns the last persisted settlement state without
// recomputing anything.
func (h *SettlementHandler) ServeState(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}
	state, ok, err := h.engine.State(r.Context(), quizID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		http.Error(w, "no settlement state", http.StatusNotFound)
		return
	}
	writeJSON(w, state)
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write json response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrQuizNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrDataUnavailable):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, domain.ErrDistributionNotPending), errors.Is(err, domain.ErrInvalidTierConfig):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
