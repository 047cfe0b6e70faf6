package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-staff-records/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/web"
)

var ErrForbidden = apperr.New(apperr.KindForbidden, "forbidden")

type identityKey struct{}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the caller attached by Authenticate.
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}

// Authenticate rejects requests without a valid, non-blacklisted bearer
// access token and attaches the caller's identity otherwise.
func Authenticate(tokens *TokenService, logger *zap.SugaredLogger, m *metrics.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := ExtractBearer(r.Header.Get("Authorization"))
			if !ok {
				m.AuthRejected(rejectReason(ErrMissingToken))
				web.Error(w, r, logger, ErrMissingToken)
				return
			}
			id, err := tokens.VerifyAccessToken(r.Context(), raw)
			if err != nil {
				m.AuthRejected(rejectReason(err))
				web.Error(w, r, logger, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireRoles lets through only callers holding one of roles. It must run
// after Authenticate.
func RequireRoles(logger *zap.SugaredLogger, roles ...entity.Role) func(http.Handler) http.Handler {
	allowed := make(map[entity.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				web.Error(w, r, logger, ErrMissingToken)
				return
			}
			if !allowed[id.Role] {
				web.Error(w, r, logger, apperr.Hidden(apperr.KindForbidden, ErrForbidden.Msg, "role "+string(id.Role)+" not permitted"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rejectReason(err error) string {
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Detail != "" {
		return strings.ReplaceAll(ae.Detail, " ", "_")
	}
	return "unknown"
}
