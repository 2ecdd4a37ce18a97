package api

import (
	"net/http"

	"github.com/easybewerbung/bewerbung-api/internal/api/shared"
	"github.com/easybewerbung/bewerbung-api/internal/service"
)

// GenerationHandler handles document generation requests.
type GenerationHandler struct {
	generationService service.GenerationService
}

// NewGenerationHandler creates a new GenerationHandler.
func NewGenerationHandler(generationService service.GenerationService) *GenerationHandler {
	return &GenerationHandler{generationService: generationService}
}

// StartGeneration handles POST /applications/{id}/generate. The body is the
// ordered list of document types to produce.
func (h *GenerationHandler) StartGeneration(w http.ResponseWriter, r *http.Request) {
	userID, ids, ok := handleUserAndPathUUIDs(w, r, "id")
	if !ok {
		return
	}

	var docTypes []string
	if err := shared.DecodeJSON(w, r, &docTypes); err != nil {
		HandleValidationError(w, r, err)
		return
	}

	gt, err := h.generationService.StartGeneration(r.Context(), userID, ids[0], docTypes)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to start generation")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, TaskAcceptedResponse{
		TaskID: gt.ID.String(),
		Status: string(gt.Status),
	})
}

// GetGenerationStatus handles GET /applications/{id}/generation-status/{task_id}.
func (h *GenerationHandler) GetGenerationStatus(w http.ResponseWriter, r *http.Request) {
	userID, ids, ok := handleUserAndPathUUIDs(w, r, "id", "task_id")
	if !ok {
		return
	}

	gt, err := h.generationService.GetGenerationStatus(r.Context(), userID, ids[0], ids[1])
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get generation status")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, generationStatusToResponse(gt))
}

// ListDocuments handles GET /applications/{id}/documents.
func (h *GenerationHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	userID, ids, ok := handleUserAndPathUUIDs(w, r, "id")
	if !ok {
		return
	}

	docs, err := h.generationService.ListDocuments(r.Context(), userID, ids[0])
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list documents")
		return
	}

	resp := make([]GeneratedDocumentResponse, 0, len(docs))
	for _, d := range docs {
		resp = append(resp, documentToResponse(d))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}
