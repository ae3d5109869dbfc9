package visits

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/narck25/gestion-visitas-promotores/internal/authz"
	"github.com/narck25/gestion-visitas-promotores/internal/shared"
)

// RepositoryPort defines data access methods for visits.
type RepositoryPort interface {
	Get(ctx context.Context, id uuid.UUID) (*Visit, error)
	List(ctx context.Context, params ListParams) ([]Visit, int, error)
	Create(ctx context.Context, visit *Visit) error
	Update(ctx context.Context, visit *Visit) error
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context, scope authz.Filter) (*Stats, error)
}

// ClientSource answers ownership questions about clients. Soft deleted
// clients do not accept new visits.
type ClientSource interface {
	ClientOwner(ctx context.Context, clientID uuid.UUID) (promoterID *uuid.UUID, deleted bool, err error)
}

// StatsCache is an optional warm cache for the unrestricted stats view.
type StatsCache interface {
	GetStats(ctx context.Context, key string) (*Stats, bool, error)
	PutStats(ctx context.Context, key string, stats *Stats, ttl time.Duration) error
}

// GlobalStatsKey caches the administrator-wide stats aggregate.
const GlobalStatsKey = "stats:visits:global"

// CreateInput carries the fields for a new visit.
type CreateInput struct {
	ClientID   uuid.UUID
	PromoterID *uuid.UUID
	Date       time.Time
	Latitude   *float64
	Longitude  *float64
	Address    string
	Notes      string
	Photos     []string
	Signature  string
	Status     Status
	Purpose    Purpose
}

// UpdateInput carries the mutable visit fields. Ownership and client are
// fixed at creation.
type UpdateInput struct {
	Notes     string
	Photos    []string
	Signature string
	Status    Status
}

// Query refines a scoped visit listing.
type Query struct {
	PromoterID *uuid.UUID
	ClientID   *uuid.UUID
	Status     *Status
	From       *time.Time
	To         *time.Time
	Page       int
	Limit      int
}

// Service handles visit business logic.
type Service struct {
	logger     *slog.Logger
	repo       RepositoryPort
	clientsSrc ClientSource
	dir        authz.Directory
	resolver   *authz.Resolver
	engine     *authz.Engine
	cache      StatsCache
}

// NewService builds Service instance. cache may be nil.
func NewService(logger *slog.Logger, repo RepositoryPort, clientsSrc ClientSource, dir authz.Directory, resolver *authz.Resolver, engine *authz.Engine, cache StatsCache) *Service {
	return &Service{
		logger:     logger,
		repo:       repo,
		clientsSrc: clientsSrc,
		dir:        dir,
		resolver:   resolver,
		engine:     engine,
		cache:      cache,
	}
}

// Create records a visit after the client-ownership gate. The visit's owner
// is the authenticated promoter; for higher tiers it is the client's owner,
// and an Administrator may name any promoter explicitly.
func (s *Service) Create(ctx context.Context, p authz.Principal, input CreateInput) (*Visit, error) {
	if input.Status == "" {
		input.Status = StatusScheduled
	}
	if !input.Status.Valid() {
		return nil, &authz.ValidationError{Msg: "unknown status " + string(input.Status)}
	}
	if input.Purpose == "" {
		input.Purpose = PurposeOther
	}
	if !input.Purpose.Valid() {
		return nil, &authz.ValidationError{Msg: "unknown purpose " + string(input.Purpose)}
	}
	if err := ValidateCoordinates(input.Latitude, input.Longitude); err != nil {
		return nil, err
	}

	owner, deleted, err := s.clientsSrc.ClientOwner(ctx, input.ClientID)
	if err != nil {
		return nil, err
	}
	if deleted {
		return nil, shared.ErrNotFound
	}
	decision, err := s.engine.CanCreateVisit(ctx, p, authz.ClientResource(owner))
	if err != nil {
		return nil, err
	}
	if err := decision.Err(); err != nil {
		return nil, err
	}

	promoterID, err := s.resolveVisitOwner(ctx, p, owner, input.PromoterID)
	if err != nil {
		return nil, err
	}

	visit := &Visit{
		ID:         uuid.New(),
		PromoterID: promoterID,
		ClientID:   input.ClientID,
		Date:       input.Date,
		Latitude:   input.Latitude,
		Longitude:  input.Longitude,
		Address:    input.Address,
		Notes:      input.Notes,
		Photos:     input.Photos,
		Signature:  input.Signature,
		Status:     input.Status,
		Purpose:    input.Purpose,
	}
	if visit.Date.IsZero() {
		visit.Date = time.Now().UTC()
	}
	if err := s.repo.Create(ctx, visit); err != nil {
		return nil, err
	}
	return visit, nil
}

func (s *Service) resolveVisitOwner(ctx context.Context, p authz.Principal, clientOwner, requested *uuid.UUID) (uuid.UUID, error) {
	if p.Role.Tier() == authz.TierPromoter {
		// A promoter records their own visits; naming someone else is not an
		// override path.
		if requested != nil && *requested != p.ID {
			return uuid.Nil, authz.Denied(authz.ReasonNotOwner)
		}
		return p.ID, nil
	}

	if requested != nil {
		if !p.Administrator() {
			return uuid.Nil, authz.Denied(authz.ReasonRoleNotPermitted)
		}
		target, err := s.dir.FindUser(ctx, *requested)
		if err != nil {
			if errors.Is(err, authz.ErrUserNotFound) {
				return uuid.Nil, &authz.ValidationError{
					Reason: authz.ReasonInvalidPromoter,
					Msg:    "promoter " + requested.String() + " not found",
				}
			}
			return uuid.Nil, err
		}
		if target.Role != authz.RolePromoter {
			return uuid.Nil, &authz.ValidationError{
				Reason: authz.ReasonInvalidPromoter,
				Msg:    "user " + requested.String() + " does not hold role PROMOTER",
			}
		}
		return *requested, nil
	}

	if clientOwner == nil {
		return uuid.Nil, &authz.ValidationError{
			Reason: authz.ReasonVisitRequiresAssignedClient,
			Msg:    "visit on an unassigned client requires an explicit promoter",
		}
	}
	return *clientOwner, nil
}

// Get loads one visit the principal may read.
func (s *Service) Get(ctx context.Context, p authz.Principal, id uuid.UUID) (*Visit, error) {
	visit, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	decision, err := s.engine.Decide(ctx, p, authz.ActionRead, authz.VisitResource(visit.PromoterID))
	if err != nil {
		return nil, err
	}
	if err := decision.Err(); err != nil {
		return nil, err
	}
	return visit, nil
}

// List returns the visits visible to the principal, refined by the query.
func (s *Service) List(ctx context.Context, p authz.Principal, query Query) ([]Visit, shared.Pagination, error) {
	scope, err := s.resolver.ResolveScope(ctx, p, authz.ResourceVisit, query.PromoterID)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	list, total, err := s.repo.List(ctx, ListParams{
		Scope:    scope,
		ClientID: query.ClientID,
		Status:   query.Status,
		From:     query.From,
		To:       query.To,
		Page:     query.Page,
		Limit:    query.Limit,
	})
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(query.Page, query.Limit, total), nil
}

// Update writes the mutable visit fields within the principal's scope.
func (s *Service) Update(ctx context.Context, p authz.Principal, id uuid.UUID, input UpdateInput) (*Visit, error) {
	if !input.Status.Valid() {
		return nil, &authz.ValidationError{Msg: "unknown status " + string(input.Status)}
	}
	visit, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	decision, err := s.engine.Decide(ctx, p, authz.ActionUpdate, authz.VisitResource(visit.PromoterID))
	if err != nil {
		return nil, err
	}
	if err := decision.Err(); err != nil {
		return nil, err
	}

	visit.Notes = input.Notes
	visit.Photos = input.Photos
	visit.Signature = input.Signature
	visit.Status = input.Status
	if err := s.repo.Update(ctx, visit); err != nil {
		return nil, err
	}
	return visit, nil
}

// Delete removes the visit permanently. Only the owning promoter or an
// Administrator may delete; supervision grants no delete right over visits.
func (s *Service) Delete(ctx context.Context, p authz.Principal, id uuid.UUID) error {
	visit, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !p.Administrator() && visit.PromoterID != p.ID {
		if p.Role.Tier() == authz.TierPromoter {
			return authz.Denied(authz.ReasonNotOwner)
		}
		return authz.Denied(authz.ReasonRoleNotPermitted)
	}
	decision, err := s.engine.Decide(ctx, p, authz.ActionDelete, authz.VisitResource(visit.PromoterID))
	if err != nil {
		return err
	}
	if err := decision.Err(); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// Stats aggregates visit counts within the principal's scope. The
// administrator-wide view is served from the warm cache when fresh.
func (s *Service) Stats(ctx context.Context, p authz.Principal) (*Stats, error) {
	scope, err := s.resolver.ResolveScope(ctx, p, authz.ResourceVisit, nil)
	if err != nil {
		return nil, err
	}
	if _, unrestricted := scope.(authz.Unrestricted); unrestricted && s.cache != nil {
		if cached, ok, err := s.cache.GetStats(ctx, GlobalStatsKey); err == nil && ok {
			return cached, nil
		} else if err != nil {
			s.logger.Warn("stats cache read", slog.Any("error", err))
		}
	}
	return s.repo.Stats(ctx, scope)
}
