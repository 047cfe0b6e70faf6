package site

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-staff-records/internal/web"
)

type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateInput
	if err := web.Decode(r, &req, false); err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	if err := web.Validate(req); err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	site, err := h.svc.Create(r.Context(), req)
	if err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	h.logger.Infow("site created", "site_id", site.ID, "shifts", len(site.Shifts))
	web.OK(w, http.StatusCreated, "site created", site)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := web.ParseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	site, err := h.svc.Get(r.Context(), id)
	if err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	web.OK(w, http.StatusOK, "", site)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	sites, err := h.svc.List(r.Context())
	if err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	web.OK(w, http.StatusOK, "", sites)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := web.ParseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	h.logger.Infow("site deleted", "site_id", id)
	web.OK(w, http.StatusOK, "site deleted", nil)
}

func (h *Handler) Shifts(w http.ResponseWriter, r *http.Request) {
	shifts, err := h.svc.Shifts(r.Context())
	if err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	web.OK(w, http.StatusOK, "", shifts)
}
