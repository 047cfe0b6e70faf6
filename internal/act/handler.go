package act

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
	a, err := h.svc.Create(r.Context(), req)
	if err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	h.logger.Infow("act created", "act_id", a.ID, "name", a.Name)
	web.OK(w, http.StatusCreated, "act created", a)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	id, err := web.ParseID(r.URL.Query().Get("institutionId"), "institutionId")
	if err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	acts, err := h.svc.List(r.Context(), id)
	if err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	web.OK(w, http.StatusOK, "", acts)
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
	h.logger.Infow("act deleted", "act_id", id)
	web.OK(w, http.StatusOK, "act deleted", nil)
}
