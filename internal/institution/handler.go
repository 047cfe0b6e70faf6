package institution

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

func (h *Handler) CreateRectorComplete(w http.ResponseWriter, r *http.Request) {
	var req RectorCompleteInput
	if err := web.Decode(r, &req, false); err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	if err := web.Validate(req); err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	out, err := h.svc.CreateRectorComplete(r.Context(), req)
	if err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	h.logger.Infow("rector registered",
		"institution_id", out.Institution.ID,
		"principal_id", out.Principal.ID,
		"sites_created", out.Summary.SitesCreated,
		"sites_attached", out.Summary.SitesAttached,
	)
	web.OK(w, http.StatusCreated, "institution created", out)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := web.ParseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	out, err := h.svc.Get(r.Context(), id)
	if err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	web.OK(w, http.StatusOK, "", out)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.List(r.Context())
	if err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	web.OK(w, http.StatusOK, "", out)
}
