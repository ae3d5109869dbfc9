package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/narck25/gestion-visitas-promotores/internal/authz"
	"github.com/narck25/gestion-visitas-promotores/internal/shared"
)

// ListParams bound a client listing. Scope is the resolved visibility filter
// and is applied verbatim; the remaining fields are caller refinements inside
// that scope.
type ListParams struct {
	Scope          authz.Filter
	Search         string
	Active         *bool
	IncludeDeleted bool
	Page           int
	Limit          int
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const clientColumns = `id, name, business_type, phone, email, address, notes, promoter_id, is_active, created_at, updated_at, deleted_at`

// Get loads a client by ID, soft deleted rows included. Visibility is the
// service's concern; the repository only answers existence.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Client, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id = $1`, id)
	return scanClient(row)
}

// List returns the page of clients matching the scope and refinements, plus
// the total match count.
func (r *Repository) List(ctx context.Context, params ListParams) ([]Client, int, error) {
	var conditions []string
	var args []any
	argPos := 1

	scopeClause, scopeArgs := authz.SQL(params.Scope, argPos)
	conditions = append(conditions, scopeClause)
	args = append(args, scopeArgs...)
	argPos += len(scopeArgs)

	if !params.IncludeDeleted {
		conditions = append(conditions, "deleted_at IS NULL")
	}
	if params.Active != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", argPos))
		args = append(args, *params.Active)
		argPos++
	}
	if params.Search != "" {
		folded := shared.FoldSearchTerm(params.Search)
		conditions = append(conditions,
			fmt.Sprintf("(unaccent(lower(name)) LIKE $%d OR unaccent(lower(address)) LIKE $%d)", argPos, argPos))
		args = append(args, "%"+folded+"%")
		argPos++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM clients WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := shared.NewPagination(params.Page, params.Limit, total)
	query := fmt.Sprintf(`SELECT `+clientColumns+` FROM clients WHERE `+where+
		` ORDER BY name, id LIMIT $%d OFFSET $%d`, argPos, argPos+1)
	args = append(args, page.Limit, page.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var clients []Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, 0, err
		}
		clients = append(clients, *client)
	}
	return clients, total, rows.Err()
}

// Create inserts a new client.
func (r *Repository) Create(ctx context.Context, client *Client) error {
	now := time.Now().UTC()
	client.CreatedAt = now
	client.UpdatedAt = now
	_, err := r.pool.Exec(ctx,
		`INSERT INTO clients (id, name, business_type, phone, email, address, notes, promoter_id, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		client.ID, client.Name, client.BusinessType, client.Phone, client.Email,
		client.Address, client.Notes, client.PromoterID, client.Active,
		client.CreatedAt, client.UpdatedAt)
	return err
}

// Update writes the mutable fields of a client.
func (r *Repository) Update(ctx context.Context, client *Client) error {
	row := r.pool.QueryRow(ctx,
		`UPDATE clients
		 SET name = $2, business_type = $3, phone = $4, email = $5, address = $6,
		     notes = $7, is_active = $8, updated_at = now()
		 WHERE id = $1
		 RETURNING updated_at`,
		client.ID, client.Name, client.BusinessType, client.Phone, client.Email,
		client.Address, client.Notes, client.Active)
	if err := row.Scan(&client.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.ErrNotFound
		}
		return err
	}
	return nil
}

// Reassign moves the client to a new owner. A nil promoterID unassigns.
func (r *Repository) Reassign(ctx context.Context, id uuid.UUID, promoterID *uuid.UUID) (*Client, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE clients SET promoter_id = $2, updated_at = now() WHERE id = $1 RETURNING `+clientColumns,
		id, promoterID)
	return scanClient(row)
}

// SoftDelete marks the client deleted.
func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE clients SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Restore clears the soft delete mark.
func (r *Repository) Restore(ctx context.Context, id uuid.UUID) (*Client, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE clients SET deleted_at = NULL, updated_at = now() WHERE id = $1 RETURNING `+clientColumns, id)
	return scanClient(row)
}

// HardDelete removes the row permanently. Visits referencing the client are
// removed by the cascading foreign key.
func (r *Repository) HardDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ClientOwner answers the visit module's ownership gate without loading the
// full row.
func (r *Repository) ClientOwner(ctx context.Context, id uuid.UUID) (*uuid.UUID, bool, error) {
	var (
		promoterID *uuid.UUID
		deletedAt  *time.Time
	)
	err := r.pool.QueryRow(ctx,
		`SELECT promoter_id, deleted_at FROM clients WHERE id = $1`, id).Scan(&promoterID, &deletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, shared.ErrNotFound
		}
		return nil, false, err
	}
	return promoterID, deletedAt != nil, nil
}

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.Name, &c.BusinessType, &c.Phone, &c.Email, &c.Address,
		&c.Notes, &c.PromoterID, &c.Active, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}
