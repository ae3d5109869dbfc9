package clients

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/narck25/gestion-visitas-promotores/internal/authz"
	"github.com/narck25/gestion-visitas-promotores/internal/shared"
)

// RepositoryPort defines data access methods for clients.
type RepositoryPort interface {
	Get(ctx context.Context, id uuid.UUID) (*Client, error)
	List(ctx context.Context, params ListParams) ([]Client, int, error)
	Create(ctx context.Context, client *Client) error
	Update(ctx context.Context, client *Client) error
	Reassign(ctx context.Context, id uuid.UUID, promoterID *uuid.UUID) (*Client, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
	Restore(ctx context.Context, id uuid.UUID) (*Client, error)
	HardDelete(ctx context.Context, id uuid.UUID) error
}

// Auditor records ownership transitions.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Query refines a scoped client listing.
type Query struct {
	Search         string
	Active         *bool
	PromoterID     *uuid.UUID
	IncludeDeleted bool
	Page           int
	Limit          int
}

// UpdateInput carries the mutable client fields.
type UpdateInput struct {
	Name         string
	BusinessType string
	Phone        string
	Email        string
	Address      string
	Notes        string
	Active       bool
}

// Service handles client business logic. Listings are bounded by the scope
// resolver; single-resource operations re-check the loaded row through the
// decision engine, so a guessed ID behaves exactly like a filtered query.
type Service struct {
	logger    *slog.Logger
	repo      RepositoryPort
	resolver  *authz.Resolver
	engine    *authz.Engine
	validator *authz.AssignmentValidator
	audit     Auditor
}

// NewService builds Service instance.
func NewService(logger *slog.Logger, repo RepositoryPort, resolver *authz.Resolver, engine *authz.Engine, validator *authz.AssignmentValidator, audit Auditor) *Service {
	return &Service{logger: logger, repo: repo, resolver: resolver, engine: engine, validator: validator, audit: audit}
}

// List returns the clients visible to the principal, refined by the query.
func (s *Service) List(ctx context.Context, p authz.Principal, query Query) ([]Client, shared.Pagination, error) {
	scope, err := s.resolver.ResolveScope(ctx, p, authz.ResourceClient, query.PromoterID)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	if query.IncludeDeleted && !p.Administrator() {
		query.IncludeDeleted = false
	}
	list, total, err := s.repo.List(ctx, ListParams{
		Scope:          scope,
		Search:         query.Search,
		Active:         query.Active,
		IncludeDeleted: query.IncludeDeleted,
		Page:           query.Page,
		Limit:          query.Limit,
	})
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(query.Page, query.Limit, total), nil
}

// Get loads one client the principal may read.
func (s *Service) Get(ctx context.Context, p authz.Principal, id uuid.UUID) (*Client, error) {
	client, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	decision, err := s.engine.Decide(ctx, p, authz.ActionRead, authz.ClientResource(client.PromoterID))
	if err != nil {
		return nil, err
	}
	if err := decision.Err(); err != nil {
		return nil, err
	}
	// Soft deleted rows stay visible to administrators for restore.
	if client.Deleted() && !p.Administrator() {
		return nil, shared.ErrNotFound
	}
	return client, nil
}

// Create registers a new client. A promoter always owns what they create;
// higher tiers may assign an owner explicitly or leave the client in the
// unassigned pool (Administrators only).
func (s *Service) Create(ctx context.Context, p authz.Principal, client *Client) (*Client, error) {
	if client.PromoterID == nil && p.Role.Tier() == authz.TierPromoter {
		client.PromoterID = &p.ID
	}
	decision, err := s.engine.Decide(ctx, p, authz.ActionCreate, authz.ClientResource(client.PromoterID))
	if err != nil {
		return nil, err
	}
	if err := decision.Err(); err != nil {
		return nil, err
	}
	if client.PromoterID != nil && *client.PromoterID != p.ID {
		if err := s.validator.ValidateClientReassignment(ctx, p, *client.PromoterID); err != nil {
			return nil, err
		}
	}
	if client.ID == uuid.Nil {
		client.ID = uuid.New()
	}
	if err := s.repo.Create(ctx, client); err != nil {
		return nil, err
	}
	return client, nil
}

// Update writes the mutable fields of a client within the principal's scope.
func (s *Service) Update(ctx context.Context, p authz.Principal, id uuid.UUID, input UpdateInput) (*Client, error) {
	client, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	decision, err := s.engine.Decide(ctx, p, authz.ActionUpdate, authz.ClientResource(client.PromoterID))
	if err != nil {
		return nil, err
	}
	if err := decision.Err(); err != nil {
		return nil, err
	}
	if client.Deleted() {
		return nil, shared.ErrNotFound
	}

	client.Name = input.Name
	client.BusinessType = input.BusinessType
	client.Phone = input.Phone
	client.Email = input.Email
	client.Address = input.Address
	client.Notes = input.Notes
	client.Active = input.Active
	if err := s.repo.Update(ctx, client); err != nil {
		return nil, err
	}
	return client, nil
}

// Reassign hands the client to a new promoter, or back to the unassigned
// pool when newPromoterID is nil. Reassigning to the current owner is a
// successful no-op.
func (s *Service) Reassign(ctx context.Context, p authz.Principal, id uuid.UUID, newPromoterID *uuid.UUID) (*Client, error) {
	client, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	decision, err := s.engine.Decide(ctx, p, authz.ActionReassign, authz.ClientResource(client.PromoterID))
	if err != nil {
		return nil, err
	}
	if err := decision.Err(); err != nil {
		return nil, err
	}
	if client.Deleted() {
		return nil, shared.ErrNotFound
	}

	if sameOwner(client.PromoterID, newPromoterID) {
		return client, nil
	}
	if newPromoterID != nil {
		if err := s.validator.ValidateClientReassignment(ctx, p, *newPromoterID); err != nil {
			return nil, err
		}
	}

	updated, err := s.repo.Reassign(ctx, id, newPromoterID)
	if err != nil {
		return nil, err
	}
	meta := map[string]any{}
	if newPromoterID != nil {
		meta["promoterId"] = newPromoterID.String()
	}
	s.recordAudit(ctx, p, "client.reassign", id, meta)
	return updated, nil
}

// Delete soft deletes the client.
func (s *Service) Delete(ctx context.Context, p authz.Principal, id uuid.UUID) error {
	client, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	decision, err := s.engine.Decide(ctx, p, authz.ActionDelete, authz.ClientResource(client.PromoterID))
	if err != nil {
		return err
	}
	if err := decision.Err(); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, p, "client.delete", id, nil)
	return nil
}

// Restore undoes a soft delete, Administrator only.
func (s *Service) Restore(ctx context.Context, p authz.Principal, id uuid.UUID) (*Client, error) {
	if !p.Administrator() {
		return nil, authz.Denied(authz.ReasonRoleNotPermitted)
	}
	restored, err := s.repo.Restore(ctx, id)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, p, "client.restore", id, nil)
	return restored, nil
}

// HardDelete removes the client permanently, Administrator only.
func (s *Service) HardDelete(ctx context.Context, p authz.Principal, id uuid.UUID) error {
	if !p.Administrator() {
		return authz.Denied(authz.ReasonRoleNotPermitted)
	}
	if err := s.repo.HardDelete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, p, "client.hard_delete", id, nil)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, p authz.Principal, action string, entityID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  p.ID,
		Action:   action,
		Entity:   "client",
		EntityID: entityID.String(),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}

func sameOwner(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
