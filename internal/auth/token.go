package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-staff-records/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-staff-records/pkg/utilities"
)

// Token failures all render as a bare "unauthorized"; the detail is kept
// for the logs.
var (
	ErrMissingToken     = apperr.Hidden(apperr.KindUnauthorized, "unauthorized", "missing token")
	ErrTokenMalformed   = apperr.Hidden(apperr.KindUnauthorized, "unauthorized", "token malformed")
	ErrTokenExpired     = apperr.Hidden(apperr.KindUnauthorized, "unauthorized", "token expired")
	ErrTokenBlacklisted = apperr.Hidden(apperr.KindUnauthorized, "unauthorized", "token blacklisted")

	ErrMissingSecret = errors.New("auth: access and refresh secrets are required")
)

// Identity is the authenticated caller attached to a request.
type Identity struct {
	ID    int64       `json:"id"`
	Email string      `json:"email"`
	Role  entity.Role `json:"role"`
}

// RefreshIdentity is what a refresh token proves. It carries no role; the
// role is read from the store on renewal.
type RefreshIdentity struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

type AccessClaims struct {
	UserID int64       `json:"id"`
	Email  string      `json:"email"`
	Role   entity.Role `json:"role"`
	jwt.RegisteredClaims
}

type RefreshClaims struct {
	UserID int64  `json:"id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

type TokenConfig struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
}

// TokenService signs and verifies HS256 tokens and mediates invalidation.
type TokenService struct {
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	blacklist  Blacklist
	logger     *zap.SugaredLogger
	metrics    *metrics.Registry
	now        func() time.Time
}

func NewTokenService(cfg TokenConfig, bl Blacklist, logger *zap.SugaredLogger, m *metrics.Registry) (*TokenService, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, ErrMissingSecret
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 24 * time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	return &TokenService{
		accessKey:  []byte(cfg.AccessSecret),
		refreshKey: []byte(cfg.RefreshSecret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		blacklist:  bl,
		logger:     logger,
		metrics:    m,
		now:        time.Now,
	}, nil
}

func (s *TokenService) registered(id int64, ttl time.Duration) jwt.RegisteredClaims {
	now := s.now()
	return jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(id, 10),
		ID:        utilities.NewKSUID(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (s *TokenService) IssueAccessToken(id Identity) (string, error) {
	claims := AccessClaims{UserID: id.ID, Email: id.Email, Role: id.Role, RegisteredClaims: s.registered(id.ID, s.accessTTL)}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.accessKey)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

func (s *TokenService) IssueRefreshToken(id Identity) (string, error) {
	claims := RefreshClaims{UserID: id.ID, Email: id.Email, RegisteredClaims: s.registered(id.ID, s.refreshTTL)}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.refreshKey)
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, nil
}

// VerifyAccessToken checks the blacklist first, then signature and expiry.
func (s *TokenService) VerifyAccessToken(ctx context.Context, raw string) (*Identity, error) {
	if s.isBlacklisted(ctx, raw) {
		return nil, ErrTokenBlacklisted
	}
	var c AccessClaims
	if err := s.parse(raw, s.accessKey, &c); err != nil {
		return nil, err
	}
	if c.UserID == 0 || !c.Role.Valid() {
		return nil, ErrTokenMalformed
	}
	return &Identity{ID: c.UserID, Email: c.Email, Role: c.Role}, nil
}

func (s *TokenService) VerifyRefreshToken(ctx context.Context, raw string) (*RefreshIdentity, error) {
	if s.isBlacklisted(ctx, raw) {
		return nil, ErrTokenBlacklisted
	}
	var c RefreshClaims
	if err := s.parse(raw, s.refreshKey, &c); err != nil {
		return nil, err
	}
	if c.UserID == 0 {
		return nil, ErrTokenMalformed
	}
	return &RefreshIdentity{ID: c.UserID, Email: c.Email}, nil
}

func (s *TokenService) parse(raw string, key []byte, claims jwt.Claims) error {
	if raw == "" {
		return ErrMissingToken
	}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	default:
		return ErrTokenMalformed
	}
}

// isBlacklisted fails open: a store error is logged and the token is
// treated as not blacklisted.
func (s *TokenService) isBlacklisted(ctx context.Context, raw string) bool {
	if raw == "" {
		return false
	}
	ok, err := s.blacklist.IsBlacklisted(ctx, raw)
	if err != nil {
		s.metrics.BlacklistError("lookup")
		s.logger.Warnw("blacklist lookup failed", "err", err)
		return false
	}
	return ok
}

// Invalidate blacklists a token until its natural expiry. Only tokens
// signed with one of the service keys and not yet expired are recorded;
// anything else could never verify, so it is accepted without a write.
func (s *TokenService) Invalidate(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}
	expiresAt, ok := s.revocableUntil(raw)
	if !ok {
		return nil
	}
	if err := s.blacklist.Add(ctx, raw, &expiresAt); err != nil {
		s.metrics.BlacklistError("add")
		return fmt.Errorf("blacklist token: %w", err)
	}
	return nil
}

// revocableUntil returns the expiry of a token that still verifies under
// the access or refresh key, capped at now plus that key's TTL.
func (s *TokenService) revocableUntil(raw string) (time.Time, bool) {
	now := s.now()
	for _, k := range []struct {
		key []byte
		ttl time.Duration
	}{{s.accessKey, s.accessTTL}, {s.refreshKey, s.refreshTTL}} {
		var c jwt.RegisteredClaims
		_, err := jwt.ParseWithClaims(raw, &c,
			func(*jwt.Token) (any, error) { return k.key, nil },
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		)
		if err != nil {
			continue
		}
		if c.ExpiresAt == nil || !c.ExpiresAt.After(now) {
			return time.Time{}, false
		}
		exp := c.ExpiresAt.Time
		if limit := now.Add(k.ttl); exp.After(limit) {
			exp = limit
		}
		return exp, true
	}
	return time.Time{}, false
}

// ExtractBearer returns the token of an "Authorization: Bearer <token>"
// header value. Any other shape yields false.
func ExtractBearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}
