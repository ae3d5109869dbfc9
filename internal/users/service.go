package users

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/narck25/gestion-visitas-promotores/internal/authz"
	"github.com/narck25/gestion-visitas-promotores/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	ListUsers(ctx context.Context, params ListParams) ([]User, int, error)
	ListPromoterRoster(ctx context.Context, supervisorID uuid.UUID) ([]PromoterSummary, error)
	CreateUser(ctx context.Context, user *User, passwordHash string) error
	UpdateRoleGuarded(ctx context.Context, targetID uuid.UUID, newRole authz.Role,
		guard func(target authz.User, otherActiveAdmins int64) error) (*User, error)
	SetActiveGuarded(ctx context.Context, targetID uuid.UUID, active bool,
		guard func(target authz.User, otherActiveAdmins int64) error) (*User, error)
	SetSupervisor(ctx context.Context, promoterID uuid.UUID, supervisorID *uuid.UUID) (*User, error)
}

// Auditor records ownership and role transitions.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles user management business logic. Everything privileged goes
// through the assignment validator; the guarded repository mutations keep the
// last-administrator count and the write in one transaction.
type Service struct {
	logger    *slog.Logger
	repo      RepositoryPort
	validator *authz.AssignmentValidator
	audit     Auditor
}

// NewService builds Service instance.
func NewService(logger *slog.Logger, repo RepositoryPort, validator *authz.AssignmentValidator, audit Auditor) *Service {
	return &Service{logger: logger, repo: repo, validator: validator, audit: audit}
}

// GetUser loads one account, Administrator only.
func (s *Service) GetUser(ctx context.Context, p authz.Principal, id uuid.UUID) (*User, error) {
	if !p.Administrator() {
		return nil, authz.Denied(authz.ReasonRoleNotPermitted)
	}
	return s.repo.FindByID(ctx, id)
}

// ListUsers returns a filtered page of accounts, Administrator only.
func (s *Service) ListUsers(ctx context.Context, p authz.Principal, params ListParams) ([]User, shared.Pagination, error) {
	if !p.Administrator() {
		return nil, shared.Pagination{}, authz.Denied(authz.ReasonRoleNotPermitted)
	}
	users, total, err := s.repo.ListUsers(ctx, params)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return users, shared.NewPagination(params.Page, params.Limit, total), nil
}

// CreateUser registers a new account, Administrator only. The password is
// hashed here so the raw value never reaches the repository.
func (s *Service) CreateUser(ctx context.Context, p authz.Principal, user *User, password string) (*User, error) {
	if !p.Administrator() {
		return nil, authz.Denied(authz.ReasonRoleNotPermitted)
	}
	if !user.Role.Valid() {
		return nil, &authz.ValidationError{Msg: "unknown role " + string(user.Role)}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if err := s.repo.CreateUser(ctx, user, string(hash)); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, p, "user.create", user.ID, map[string]any{"role": user.Role})
	return user, nil
}

// ChangeRole updates the target's role under the last-administrator guard.
func (s *Service) ChangeRole(ctx context.Context, p authz.Principal, targetID uuid.UUID, newRole authz.Role) (*User, error) {
	updated, err := s.repo.UpdateRoleGuarded(ctx, targetID, newRole,
		func(target authz.User, otherActiveAdmins int64) error {
			return s.validator.ValidateRoleChange(p, target, newRole, otherActiveAdmins)
		})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, p, "user.change_role", targetID, map[string]any{"role": newRole})
	return updated, nil
}

// SetActive flips the target's active flag under the last-administrator guard.
func (s *Service) SetActive(ctx context.Context, p authz.Principal, targetID uuid.UUID, active bool) (*User, error) {
	updated, err := s.repo.SetActiveGuarded(ctx, targetID, active,
		func(target authz.User, otherActiveAdmins int64) error {
			return s.validator.ValidateActivation(p, target, active, otherActiveAdmins)
		})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, p, "user.set_active", targetID, map[string]any{"active": active})
	return updated, nil
}

// PromoterRoster lists the promoters the caller supervises. Administrators
// may ask for any supervisor's roster via supervisorID.
func (s *Service) PromoterRoster(ctx context.Context, p authz.Principal, supervisorID *uuid.UUID) ([]PromoterSummary, error) {
	target := p.ID
	if supervisorID != nil && *supervisorID != p.ID {
		if !p.Administrator() {
			return nil, authz.Denied(authz.ReasonNotSupervisorOf)
		}
		target = *supervisorID
	}
	switch p.Role.Tier() {
	case authz.TierAdministrator, authz.TierSupervisor, authz.TierViewer:
		return s.repo.ListPromoterRoster(ctx, target)
	default:
		return nil, authz.Denied(authz.ReasonRoleNotPermitted)
	}
}

// TransferPromoter re-parents a promoter onto a supervisor, or unassigns when
// newSupervisorID is nil.
func (s *Service) TransferPromoter(ctx context.Context, p authz.Principal, promoterID uuid.UUID, newSupervisorID *uuid.UUID) (*User, error) {
	if err := s.validator.ValidatePromoterTransfer(ctx, p, promoterID, newSupervisorID); err != nil {
		return nil, err
	}
	updated, err := s.repo.SetSupervisor(ctx, promoterID, newSupervisorID)
	if err != nil {
		return nil, err
	}
	meta := map[string]any{}
	if newSupervisorID != nil {
		meta["supervisorId"] = newSupervisorID.String()
	}
	s.recordAudit(ctx, p, "user.transfer_promoter", promoterID, meta)
	return updated, nil
}

func (s *Service) recordAudit(ctx context.Context, p authz.Principal, action string, entityID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  p.ID,
		Action:   action,
		Entity:   "user",
		EntityID: entityID.String(),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
