package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-staff-records/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/user"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/user/entity"
)

// Accounts is the part of *user.UserService used by the login protocols.
type Accounts interface {
	Authenticate(ctx context.Context, email, password string) (*entity.User, error)
	Get(ctx context.Context, id int64) (*entity.User, error)
}

var (
	// ErrInvalidCredentials covers unknown email, inactive account and
	// wrong password alike.
	ErrInvalidCredentials = user.ErrBadCredentials
	ErrAccountUnavailable = apperr.Hidden(apperr.KindUnauthorized, "unauthorized", "account missing or inactive")
)

type TokenPair struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

type LoginResult struct {
	User *entity.User `json:"usuario"`
	TokenPair
}

type LogoutResult struct {
	Partial bool
}

// Service implements login, refresh and logout on top of TokenService.
type Service struct {
	tokens   *TokenService
	accounts Accounts
	logger   *zap.SugaredLogger
}

func NewService(tokens *TokenService, accounts Accounts, logger *zap.SugaredLogger) *Service {
	return &Service{tokens: tokens, accounts: accounts, logger: logger}
}

func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	u, err := s.accounts.Authenticate(ctx, email, password)
	if err != nil {
		if errors.Is(err, user.ErrBadCredentials) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	pair, err := s.issue(u)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: u, TokenPair: *pair}, nil
}

// Refresh trades a valid refresh token for a new pair. The account is
// re-read so a changed role or deactivation takes effect, and the presented
// refresh token is revoked.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	rid, err := s.tokens.VerifyRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	u, err := s.accounts.Get(ctx, rid.ID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, ErrAccountUnavailable
		}
		return nil, err
	}
	if !u.Active() {
		return nil, ErrAccountUnavailable
	}
	pair, err := s.issue(u)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Invalidate(ctx, refreshToken); err != nil {
		s.logger.Warnw("revoke rotated refresh token failed", "user_id", u.ID, "err", err)
	}
	return pair, nil
}

// Logout invalidates the access token and, when given, the refresh token.
// Invalidation failures are logged and reported as Partial, never returned.
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken string) (LogoutResult, error) {
	if accessToken == "" {
		return LogoutResult{}, ErrMissingToken
	}
	var res LogoutResult
	if err := s.tokens.Invalidate(ctx, accessToken); err != nil {
		s.logger.Warnw("invalidate access token failed", "err", err)
		res.Partial = true
	}
	if refreshToken != "" {
		if err := s.tokens.Invalidate(ctx, refreshToken); err != nil {
			s.logger.Warnw("invalidate refresh token failed", "err", err)
			res.Partial = true
		}
	}
	return res, nil
}

func (s *Service) Me(ctx context.Context, id int64) (*entity.User, error) {
	return s.accounts.Get(ctx, id)
}

func (s *Service) issue(u *entity.User) (*TokenPair, error) {
	id := Identity{ID: u.ID, Email: u.Email, Role: u.Role}
	access, err := s.tokens.IssueAccessToken(id)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}
	refresh, err := s.tokens.IssueRefreshToken(id)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}
	return &TokenPair{Token: access, RefreshToken: refresh}, nil
}
