package staff

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-staff-records/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/auth"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/staff/entity"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/web"
)

type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) CreateWithSite(w http.ResponseWriter, r *http.Request) {
	var req CreateWithSiteInput
	if err := web.Decode(r, &req, false); err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	if err := web.Validate(req); err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	if id, ok := auth.IdentityFrom(r.Context()); ok {
		req.AuthorID = id.ID
	}
	out, err := h.svc.CreateWithSite(r.Context(), req)
	if err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	h.logger.Infow("employee created", "employee_id", out.Employee.ID, "site_id", out.Site.ID, "author_id", req.AuthorID)
	web.OK(w, http.StatusCreated, "employee created", out)
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
	q := r.URL.Query()
	f := entity.EmployeeFilter{
		Role:   entity.Role(q.Get("role")),
		Status: entity.Status(q.Get("status")),
	}
	if f.Role != "" && !f.Role.Valid() {
		web.Error(w, r, h.logger, apperr.Validation(map[string]string{"role": "must be teacher or principal"}))
		return
	}
	if raw := q.Get("siteId"); raw != "" {
		id, err := web.ParseID(raw, "siteId")
		if err != nil {
			web.Error(w, r, h.logger, err)
			return
		}
		f.SiteID = id
	}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.Offset, _ = strconv.Atoi(q.Get("offset"))

	out, err := h.svc.List(r.Context(), f)
	if err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	web.OK(w, http.StatusOK, "", out)
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	id, err := web.ParseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	var req TransferInput
	if err := web.Decode(r, &req, false); err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	if err := web.Validate(req); err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	out, err := h.svc.Transfer(r.Context(), id, req)
	if err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	h.logger.Infow("employee transferred", "employee_id", id, "from_site", out.Previous.SiteID, "to_site", out.Current.SiteID)
	web.OK(w, http.StatusOK, "employee transferred", out)
}

type finalizeRequest struct {
	Date *time.Time `json:"date,omitempty"`
}

func (h *Handler) FinalizeAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := web.ParseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	var req finalizeRequest
	if err := web.Decode(r, &req, true); err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	out, err := h.svc.FinalizeAssignment(r.Context(), id, req.Date)
	if err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	web.OK(w, http.StatusOK, "assignment finalized", out)
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := web.ParseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	out, err := h.svc.Deactivate(r.Context(), id)
	if err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	h.logger.Infow("employee deactivated", "employee_id", id)
	web.OK(w, http.StatusOK, "employee deactivated", out)
}

func (h *Handler) Reactivate(w http.ResponseWriter, r *http.Request) {
	id, err := web.ParseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	out, err := h.svc.Reactivate(r.Context(), id)
	if err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	h.logger.Infow("employee reactivated", "employee_id", id)
	web.OK(w, http.StatusOK, "employee reactivated", out)
}
