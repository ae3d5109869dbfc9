package visits

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/narck25/gestion-visitas-promotores/internal/authz"
	"github.com/narck25/gestion-visitas-promotores/internal/shared"
)

// ListParams bound a visit listing. Scope is the resolved visibility filter.
type ListParams struct {
	Scope    authz.Filter
	ClientID *uuid.UUID
	Status   *Status
	From     *time.Time
	To       *time.Time
	Page     int
	Limit    int
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const visitColumns = `id, promoter_id, client_id, visit_date, latitude, longitude, address, notes, photos, signature, status, purpose, created_at, updated_at`

// Get loads a visit by ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Visit, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+visitColumns+` FROM visits WHERE id = $1`, id)
	return scanVisit(row)
}

// List returns the page of visits matching the scope and refinements, plus
// the total match count.
func (r *Repository) List(ctx context.Context, params ListParams) ([]Visit, int, error) {
	where, args, argPos := listConditions(params)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM visits WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := shared.NewPagination(params.Page, params.Limit, total)
	query := fmt.Sprintf(`SELECT `+visitColumns+` FROM visits WHERE `+where+
		` ORDER BY visit_date DESC, id LIMIT $%d OFFSET $%d`, argPos, argPos+1)
	args = append(args, page.Limit, page.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var visits []Visit
	for rows.Next() {
		visit, err := scanVisit(rows)
		if err != nil {
			return nil, 0, err
		}
		visits = append(visits, *visit)
	}
	return visits, total, rows.Err()
}

// Create inserts a new visit.
func (r *Repository) Create(ctx context.Context, visit *Visit) error {
	now := time.Now().UTC()
	visit.CreatedAt = now
	visit.UpdatedAt = now
	_, err := r.pool.Exec(ctx,
		`INSERT INTO visits (id, promoter_id, client_id, visit_date, latitude, longitude, address, notes, photos, signature, status, purpose, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		visit.ID, visit.PromoterID, visit.ClientID, visit.Date, visit.Latitude, visit.Longitude,
		visit.Address, visit.Notes, visit.Photos, visit.Signature,
		string(visit.Status), string(visit.Purpose), visit.CreatedAt, visit.UpdatedAt)
	return err
}

// Update writes the mutable fields. The owning promoter and client never
// change after creation, so they are absent from the statement entirely.
func (r *Repository) Update(ctx context.Context, visit *Visit) error {
	row := r.pool.QueryRow(ctx,
		`UPDATE visits
		 SET notes = $2, photos = $3, signature = $4, status = $5, updated_at = now()
		 WHERE id = $1
		 RETURNING updated_at`,
		visit.ID, visit.Notes, visit.Photos, visit.Signature, string(visit.Status))
	if err := row.Scan(&visit.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.ErrNotFound
		}
		return err
	}
	return nil
}

// Delete removes the visit.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM visits WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Stats aggregates visit counts by status and purpose within the scope. The
// three aggregates run concurrently on the pool.
func (r *Repository) Stats(ctx context.Context, scope authz.Filter) (*Stats, error) {
	clause, args := authz.SQL(scope, 1)
	stats := &Stats{
		ByStatus:  map[Status]int64{},
		ByPurpose: map[Purpose]int64{},
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM visits WHERE `+clause, args...).Scan(&stats.Total)
	})
	g.Go(func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT status, COUNT(*) FROM visits WHERE `+clause+` GROUP BY status`, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				status string
				count  int64
			)
			if err := rows.Scan(&status, &count); err != nil {
				return err
			}
			stats.ByStatus[Status(status)] = count
		}
		return rows.Err()
	})
	g.Go(func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT purpose, COUNT(*) FROM visits WHERE `+clause+` GROUP BY purpose`, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				purpose string
				count   int64
			)
			if err := rows.Scan(&purpose, &count); err != nil {
				return err
			}
			stats.ByPurpose[Purpose(purpose)] = count
		}
		return rows.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

func listConditions(params ListParams) (string, []any, int) {
	var conditions []string
	var args []any
	argPos := 1

	scopeClause, scopeArgs := authz.SQL(params.Scope, argPos)
	conditions = append(conditions, scopeClause)
	args = append(args, scopeArgs...)
	argPos += len(scopeArgs)

	if params.ClientID != nil {
		conditions = append(conditions, fmt.Sprintf("client_id = $%d", argPos))
		args = append(args, *params.ClientID)
		argPos++
	}
	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, string(*params.Status))
		argPos++
	}
	if params.From != nil {
		conditions = append(conditions, fmt.Sprintf("visit_date >= $%d", argPos))
		args = append(args, *params.From)
		argPos++
	}
	if params.To != nil {
		conditions = append(conditions, fmt.Sprintf("visit_date <= $%d", argPos))
		args = append(args, *params.To)
		argPos++
	}

	return strings.Join(conditions, " AND "), args, argPos
}

func scanVisit(row pgx.Row) (*Visit, error) {
	var (
		v       Visit
		status  string
		purpose string
	)
	err := row.Scan(&v.ID, &v.PromoterID, &v.ClientID, &v.Date, &v.Latitude, &v.Longitude,
		&v.Address, &v.Notes, &v.Photos, &v.Signature, &status, &purpose,
		&v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	v.Status = Status(status)
	v.Purpose = Purpose(purpose)
	return &v, nil
}
