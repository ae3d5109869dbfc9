package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/narck25/gestion-visitas-promotores/internal/authz"
	"github.com/narck25/gestion-visitas-promotores/internal/platform/db"
	"github.com/narck25/gestion-visitas-promotores/internal/platform/httpx"
	"github.com/narck25/gestion-visitas-promotores/internal/shared"
)

// ListParams bound a user listing.
type ListParams struct {
	Search string
	Role   *authz.Role
	Active *bool
	Page   int
	Limit  int
}

// PromoterSummary is a roster row: the promoter plus workload counts.
type PromoterSummary struct {
	User
	ClientCount int64 `json:"clientCount"`
	VisitCount  int64 `json:"visitCount"`
}

// Repository provides PostgreSQL backed persistence. It doubles as the
// authz.Directory implementation, so the engine and the handlers share one
// view of the ownership tree.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, name, phone, role, supervisor_id, is_active, last_login_at, created_at, updated_at`

// FindUser implements authz.Directory.
func (r *Repository) FindUser(ctx context.Context, id uuid.UUID) (authz.User, error) {
	user, err := r.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return authz.User{}, authz.ErrUserNotFound
		}
		return authz.User{}, err
	}
	return user.DirectoryView(), nil
}

// PromotersOf implements authz.Directory.
func (r *Repository) PromotersOf(ctx context.Context, supervisorID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM users WHERE supervisor_id = $1 AND role = $2`,
		supervisorID, string(authz.RolePromoter))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FindByID loads a single account.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// ListUsers returns a filtered, paginated page of accounts plus the total
// match count. Search folds case and diacritics on both sides.
func (r *Repository) ListUsers(ctx context.Context, params ListParams) ([]User, int, error) {
	where := "TRUE"
	args := []any{}
	idx := 1

	if params.Search != "" {
		folded := shared.FoldSearchTerm(params.Search)
		where += fmt.Sprintf(" AND (unaccent(lower(name)) LIKE $%d OR unaccent(lower(email)) LIKE $%d)", idx, idx)
		args = append(args, "%"+folded+"%")
		idx++
	}
	if params.Role != nil {
		where += fmt.Sprintf(" AND role = $%d", idx)
		args = append(args, string(*params.Role))
		idx++
	}
	if params.Active != nil {
		where += fmt.Sprintf(" AND is_active = $%d", idx)
		args = append(args, *params.Active)
		idx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := shared.NewPagination(params.Page, params.Limit, total)
	query := fmt.Sprintf(`SELECT `+userColumns+` FROM users WHERE `+where+
		` ORDER BY name, id LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, page.Limit, page.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *user)
	}
	return users, total, rows.Err()
}

// ListPromoterRoster returns the promoters supervised by supervisorID with
// their active client and visit counts.
func (r *Repository) ListPromoterRoster(ctx context.Context, supervisorID uuid.UUID) ([]PromoterSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT u.id, u.email, u.name, u.phone, u.role, u.supervisor_id, u.is_active,
		        u.last_login_at, u.created_at, u.updated_at,
		        COUNT(DISTINCT c.id) FILTER (WHERE c.deleted_at IS NULL),
		        COUNT(DISTINCT v.id)
		 FROM users u
		 LEFT JOIN clients c ON c.promoter_id = u.id
		 LEFT JOIN visits v ON v.promoter_id = u.id
		 WHERE u.supervisor_id = $1 AND u.role = $2
		 GROUP BY u.id
		 ORDER BY u.name`,
		supervisorID, string(authz.RolePromoter))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roster []PromoterSummary
	for rows.Next() {
		var (
			s    PromoterSummary
			role string
		)
		if err := rows.Scan(&s.ID, &s.Email, &s.Name, &s.Phone, &role, &s.SupervisorID,
			&s.Active, &s.LastLoginAt, &s.CreatedAt, &s.UpdatedAt,
			&s.ClientCount, &s.VisitCount); err != nil {
			return nil, err
		}
		s.Role = authz.Role(role)
		roster = append(roster, s)
	}
	return roster, rows.Err()
}

// CreateUser inserts a new account. Duplicate emails map to ErrDuplicate.
func (r *Repository) CreateUser(ctx context.Context, user *User, passwordHash string) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, email, name, phone, password_hash, role, supervisor_id, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		user.ID, user.Email, user.Name, user.Phone, passwordHash,
		string(user.Role), user.SupervisorID, user.Active, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return httpx.ErrDuplicate
		}
		return err
	}
	return nil
}

// UpdateRoleGuarded changes the target's role under Serializable isolation.
// The target row is locked, the count of OTHER active administrators is read
// inside the same transaction, and guard rules on both before the write. This
// makes the last-administrator check atomic with the write it protects.
func (r *Repository) UpdateRoleGuarded(ctx context.Context, targetID uuid.UUID, newRole authz.Role,
	guard func(target authz.User, otherActiveAdmins int64) error) (*User, error) {

	var updated *User
	err := db.WithSerializableTx(ctx, r.pool, func(tx pgx.Tx) error {
		target, otherAdmins, err := lockAndCount(ctx, tx, targetID)
		if err != nil {
			return err
		}
		if err := guard(target, otherAdmins); err != nil {
			return err
		}
		row := tx.QueryRow(ctx,
			`UPDATE users SET role = $2, updated_at = now() WHERE id = $1 RETURNING `+userColumns,
			targetID, string(newRole))
		updated, err = scanUser(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SetActiveGuarded flips the target's active flag with the same guarded
// transaction shape as UpdateRoleGuarded.
func (r *Repository) SetActiveGuarded(ctx context.Context, targetID uuid.UUID, active bool,
	guard func(target authz.User, otherActiveAdmins int64) error) (*User, error) {

	var updated *User
	err := db.WithSerializableTx(ctx, r.pool, func(tx pgx.Tx) error {
		target, otherAdmins, err := lockAndCount(ctx, tx, targetID)
		if err != nil {
			return err
		}
		if err := guard(target, otherAdmins); err != nil {
			return err
		}
		row := tx.QueryRow(ctx,
			`UPDATE users SET is_active = $2, updated_at = now() WHERE id = $1 RETURNING `+userColumns,
			targetID, active)
		updated, err = scanUser(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SetSupervisor re-parents a promoter. A nil supervisorID unassigns.
func (r *Repository) SetSupervisor(ctx context.Context, promoterID uuid.UUID, supervisorID *uuid.UUID) (*User, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE users SET supervisor_id = $2, updated_at = now() WHERE id = $1 RETURNING `+userColumns,
		promoterID, supervisorID)
	return scanUser(row)
}

func lockAndCount(ctx context.Context, tx pgx.Tx, targetID uuid.UUID) (authz.User, int64, error) {
	var (
		target authz.User
		role   string
	)
	err := tx.QueryRow(ctx,
		`SELECT id, role, supervisor_id, is_active FROM users WHERE id = $1 FOR UPDATE`,
		targetID).Scan(&target.ID, &role, &target.SupervisorID, &target.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authz.User{}, 0, shared.ErrNotFound
		}
		return authz.User{}, 0, err
	}
	target.Role = authz.Role(role)

	var otherAdmins int64
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM users
		 WHERE role IN ($1, $2) AND is_active AND id <> $3`,
		string(authz.RoleSuperAdmin), string(authz.RoleAdmin), targetID).Scan(&otherAdmins)
	if err != nil {
		return authz.User{}, 0, err
	}
	return target, otherAdmins, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		u    User
		role string
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Phone, &role, &u.SupervisorID,
		&u.Active, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	u.Role = authz.Role(role)
	return &u, nil
}
