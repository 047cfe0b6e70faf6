package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-staff-records/internal/act"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/auth"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/institution"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/site"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/staff"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/user"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/web"
	"github.com/ovaphlow/pitchfork/service-staff-records/pkg/utilities"
)

const requestIDHeader = "X-Request-ID"

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// RequestIDMiddleware reuses an incoming X-Request-ID or mints a KSUID.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = utilities.NewKSUID()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoggingMiddleware logs every request; 5xx at error level, the rest at debug.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			fields := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(time.Since(start).Microseconds()) / 1000.0,
				"size", lrw.size,
				"request_id", middleware.GetReqID(r.Context()),
			}
			if status >= http.StatusInternalServerError {
				logger.Errorw("http request", fields...)
				return
			}
			logger.Debugw("http request", fields...)
		})
	}
}

// RecoverMiddleware turns a handler panic into a 500 envelope.
func RecoverMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if p := recover(); p != nil {
					if p == http.ErrAbortHandler {
						panic(p)
					}
					logger.Errorw("handler panic", "panic", p, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()))
					web.Fail(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeadersMiddleware sets conservative security headers on every
// response.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer")
			w.Header().Set("Cache-Control", "no-store")
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			}
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps is everything the router mounts.
type Deps struct {
	Logger  *zap.SugaredLogger
	Metrics *metrics.Registry
	DB      Pinger
	Tokens  *auth.TokenService

	Auth         *auth.Handler
	Users        *user.Handler
	Employees    *staff.Handler
	Institutions *institution.Handler
	Acts         *act.Handler
	Sites        *site.Handler
}

// New builds the chi router with every route of the service.
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		RequestIDMiddleware,
		middleware.RealIP,
		LoggingMiddleware(d.Logger),
		RecoverMiddleware(d.Logger),
		SecurityHeadersMiddleware(),
		d.Metrics.Middleware,
	)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if d.DB != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := d.DB.PingContext(ctx); err != nil {
				d.Logger.Warnw("health check failed", "err", err)
				web.Fail(w, http.StatusServiceUnavailable, "database unavailable")
				return
			}
		}
		web.OK(w, http.StatusOK, "ok", nil)
	})
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}

	authn := auth.Authenticate(d.Tokens, d.Logger, d.Metrics)
	roles := func(rs ...entity.Role) func(http.Handler) http.Handler {
		return auth.RequireRoles(d.Logger, rs...)
	}
	all := roles(entity.RoleSuperAdmin, entity.RoleAdmin, entity.RoleGestor)
	admins := roles(entity.RoleSuperAdmin, entity.RoleAdmin)
	superAdmin := roles(entity.RoleSuperAdmin)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", d.Auth.Login)
		r.Post("/refresh", d.Auth.Refresh)
		r.Post("/logout", d.Auth.Logout)
		r.With(authn).Get("/me", d.Auth.Me)
	})

	r.Group(func(r chi.Router) {
		r.Use(authn)

		r.Route("/users", func(r chi.Router) {
			r.With(superAdmin).Post("/", d.Users.Create)
			r.With(admins).Get("/", d.Users.List)
		})

		r.Route("/employees", func(r chi.Router) {
			r.Use(all)
			r.Get("/", d.Employees.List)
			r.Post("/with-site", d.Employees.CreateWithSite)
			r.Get("/{id}", d.Employees.Get)
			r.Post("/{id}/transfer", d.Employees.Transfer)
			r.Post("/{id}/finalize-assignment", d.Employees.FinalizeAssignment)
			r.With(admins).Delete("/{id}", d.Employees.Deactivate)
			r.With(superAdmin).Post("/{id}/reactivate", d.Employees.Reactivate)
		})

		r.Route("/institutions", func(r chi.Router) {
			r.With(all).Get("/", d.Institutions.List)
			r.With(all).Get("/{id}", d.Institutions.Get)
			r.With(admins).Post("/rector-complete", d.Institutions.CreateRectorComplete)
		})

		r.Route("/acts", func(r chi.Router) {
			r.Use(all)
			r.Get("/", d.Acts.List)
			r.Post("/", d.Acts.Create)
			r.With(admins).Delete("/{id}", d.Acts.Delete)
		})

		r.Route("/sites", func(r chi.Router) {
			r.Use(all)
			r.Get("/", d.Sites.List)
			r.Post("/", d.Sites.Create)
			r.Get("/{id}", d.Sites.Get)
			r.With(admins).Delete("/{id}", d.Sites.Delete)
		})
		r.With(all).Get("/shifts", d.Sites.Shifts)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		web.Fail(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		web.Fail(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}
