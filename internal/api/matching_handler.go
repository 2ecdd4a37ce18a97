package api

import (
	"net/http"

	"github.com/easybewerbung/bewerbung-api/internal/api/shared"
	"github.com/easybewerbung/bewerbung-api/internal/service"
)

// MatchingHandler handles matching score requests.
type MatchingHandler struct {
	matchingService service.MatchingService
}

// NewMatchingHandler creates a new MatchingHandler.
func NewMatchingHandler(matchingService service.MatchingService) *MatchingHandler {
	return &MatchingHandler{matchingService: matchingService}
}

// CalculateScore handles POST /applications/{id}/matching-score/calculate.
// A current score is returned with 200 unless recalculate=true; otherwise the
// accepted or still running task is returned with 202.
func (h *MatchingHandler) CalculateScore(w http.ResponseWriter, r *http.Request) {
	userID, ids, ok := handleUserAndPathUUIDs(w, r, "id")
	if !ok {
		return
	}
	recalculate, err := queryBool(r, "recalculate")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	start, err := h.matchingService.StartMatchingScore(r.Context(), userID, ids[0], recalculate)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to start matching score")
		return
	}

	if start.Status == service.StartAlreadyCalculated {
		shared.RespondWithJSON(w, r, http.StatusOK, MatchingStartResponse{
			Status:        string(service.StartAlreadyCalculated),
			MatchingScore: scoreToResponse(start.Score),
		})
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, MatchingStartResponse{
		TaskID: start.Task.ID.String(),
		Status: string(start.Task.Status),
	})
}

// GetScoreStatus handles GET /applications/{id}/matching-score/status/{task_id}.
func (h *MatchingHandler) GetScoreStatus(w http.ResponseWriter, r *http.Request) {
	userID, ids, ok := handleUserAndPathUUIDs(w, r, "id", "task_id")
	if !ok {
		return
	}

	st, err := h.matchingService.GetMatchingStatus(r.Context(), userID, ids[0], ids[1])
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get matching status")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, MatchingStatusResponse{
		TaskID:        st.Task.ID.String(),
		Status:        string(st.Task.Status),
		Error:         st.Task.ErrorMessage,
		MatchingScore: scoreToResponse(st.Score),
	})
}

// GetCurrentScore handles GET /applications/{id}/matching-score.
func (h *MatchingHandler) GetCurrentScore(w http.ResponseWriter, r *http.Request) {
	userID, ids, ok := handleUserAndPathUUIDs(w, r, "id")
	if !ok {
		return
	}

	score, err := h.matchingService.GetCurrentScore(r.Context(), userID, ids[0])
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get matching score")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, scoreToResponse(score))
}
