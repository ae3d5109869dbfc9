package auth

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/narck25/gestion-visitas-promotores/internal/authz"
	"github.com/narck25/gestion-visitas-promotores/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo    Repository
	tokens  *TokenIssuer
	refresh *RefreshStore
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens *TokenIssuer, refresh *RefreshStore) *Service {
	return &Service{repo: repo, tokens: tokens, refresh: refresh}
}

// Login validates email/password credentials and issues a token pair.
// Deactivated accounts fail exactly like wrong credentials so the response
// does not reveal account state.
func (s *Service) Login(ctx context.Context, email, password string) (*User, TokenPair, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, TokenPair{}, shared.ErrInvalidCredentials
	}
	if !user.Active {
		return nil, TokenPair{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, TokenPair{}, shared.ErrInvalidCredentials
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, TokenPair{}, err
	}
	if err := s.repo.TouchLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		return nil, TokenPair{}, err
	}
	return user, pair, nil
}

// Refresh rotates a refresh token into a fresh pair. The presented token is
// consumed; replaying it fails.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	userID, tokenID, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, ErrInvalidToken
	}
	live, err := s.refresh.Consume(ctx, tokenID)
	if err != nil {
		return TokenPair{}, err
	}
	if !live {
		return TokenPair{}, ErrInvalidToken
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return TokenPair{}, ErrInvalidToken
	}
	if !user.Active {
		return TokenPair{}, ErrInvalidToken
	}
	return s.issuePair(ctx, user)
}

// Logout revokes the presented refresh token. Revoking an already-consumed
// token is a no-op.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	_, tokenID, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil
	}
	_, err = s.refresh.Consume(ctx, tokenID)
	return err
}

// ResolvePrincipal turns a bearer access token into the authenticated
// principal. The account is re-loaded so a deactivation takes effect
// immediately, not at token expiry.
func (s *Service) ResolvePrincipal(ctx context.Context, accessToken string) (authz.Principal, *User, error) {
	userID, err := s.tokens.ParseAccess(accessToken)
	if err != nil {
		return authz.Principal{}, nil, ErrInvalidToken
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return authz.Principal{}, nil, ErrInvalidToken
	}
	if !user.Active {
		return authz.Principal{}, nil, ErrInvalidToken
	}
	return user.Principal(), user, nil
}

func (s *Service) issuePair(ctx context.Context, user *User) (TokenPair, error) {
	access, err := s.tokens.IssueAccess(user.ID)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, tokenID, err := s.tokens.IssueRefresh(user.ID)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.refresh.Put(ctx, tokenID, user.ID, s.tokens.RefreshTTL()); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
