package api

import (
	"context"
	"net/http"

	"github.com/easybewerbung/bewerbung-api/internal/api/shared"
	"github.com/easybewerbung/bewerbung-api/internal/catalog"
	"github.com/easybewerbung/bewerbung-api/internal/domain"
	"github.com/go-chi/chi/v5"
)

// TemplateAdmin is the administrative side of the template catalog.
type TemplateAdmin interface {
	List(ctx context.Context) ([]*domain.Template, error)
	Get(ctx context.Context, docType string) (*domain.Template, error)
	Create(ctx context.Context, tpl *domain.Template) error
	Update(ctx context.Context, docType string, patch catalog.Patch) (*domain.Template, error)
	Delete(ctx context.Context, docType string) error
	Seed(ctx context.Context, force bool) (catalog.SeedResult, error)
}

// TemplateHandler handles the admin template endpoints. Routes are expected
// to sit behind the admin role check.
type TemplateHandler struct {
	templates TemplateAdmin
}

// NewTemplateHandler creates a new TemplateHandler.
func NewTemplateHandler(templates TemplateAdmin) *TemplateHandler {
	return &TemplateHandler{templates: templates}
}

// ListTemplates handles GET /admin/templates.
func (h *TemplateHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	tpls, err := h.templates.List(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list templates")
		return
	}
	if tpls == nil {
		tpls = []*domain.Template{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, tpls)
}

// GetTemplate handles GET /admin/templates/{doc_type}.
func (h *TemplateHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := h.templates.Get(r.Context(), chi.URLParam(r, "doc_type"))
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get template")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, tpl)
}

// CreateTemplate handles POST /admin/templates.
func (h *TemplateHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req CreateTemplateRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		HandleValidationError(w, r, err)
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		HandleValidationError(w, r, err)
		return
	}

	tpl := req.ToTemplate()
	if err := h.templates.Create(r.Context(), tpl); err != nil {
		HandleAPIError(w, r, err, "Failed to create template")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, tpl)
}

// UpdateTemplate handles PUT /admin/templates/{doc_type}.
func (h *TemplateHandler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var req UpdateTemplateRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		HandleValidationError(w, r, err)
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		HandleValidationError(w, r, err)
		return
	}

	tpl, err := h.templates.Update(r.Context(), chi.URLParam(r, "doc_type"), req.ToPatch())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update template")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, tpl)
}

// DeleteTemplate handles DELETE /admin/templates/{doc_type}.
func (h *TemplateHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.templates.Delete(r.Context(), chi.URLParam(r, "doc_type")); err != nil {
		HandleAPIError(w, r, err, "Failed to delete template")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SeedTemplates handles POST /admin/templates/seed?force=bool.
func (h *TemplateHandler) SeedTemplates(w http.ResponseWriter, r *http.Request) {
	force, err := queryBool(r, "force")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	res, err := h.templates.Seed(r.Context(), force)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to seed templates")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, res)
}
