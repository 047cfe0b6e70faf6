package auth

import (
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
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

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254)),
		validation.Field(&r.Password, validation.Required, validation.Length(1, 128)),
	)
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (r RefreshRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

type LogoutRequest struct {
	RefreshToken string `json:"refreshToken,omitempty"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := web.Decode(r, &req, false); err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	if err := web.Validate(req); err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	h.logger.Infow("login", "user_id", res.User.ID, "role", res.User.Role)
	web.OK(w, http.StatusOK, "login successful", res)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := web.Decode(r, &req, false); err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	if err := web.Validate(req); err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	pair, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	web.OK(w, http.StatusOK, "token refreshed", pair)
}

// Logout always answers 200 once a bearer token is present, whether or not
// that token is still valid.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	raw, ok := ExtractBearer(r.Header.Get("Authorization"))
	if !ok {
		web.Fail(w, http.StatusBadRequest, "missing bearer token")
		return
	}
	var req LogoutRequest
	if err := web.Decode(r, &req, true); err != nil {
		h.logger.Debugw("logout body ignored", "err", err)
	}
	res, err := h.svc.Logout(r.Context(), raw, req.RefreshToken)
	if err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	if res.Partial {
		web.OK(w, http.StatusOK, "logged out; some tokens could not be revoked", nil)
		return
	}
	web.OK(w, http.StatusOK, "logged out", nil)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		web.Error(w, r, h.logger, ErrMissingToken)
		return
	}
	u, err := h.svc.Me(r.Context(), id.ID)
	if err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	web.OK(w, http.StatusOK, "", u)
}
