package members

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lehine87/educanvas/internal/platform/db"
	"github.com/lehine87/educanvas/internal/rbac"
)

const membershipColumns = `m.id, m.user_id, m.tenant_id, m.role, m.status, m.custom_permissions,
	m.approved_by, m.approved_at, COALESCE(u.email, ''), COALESCE(u.name, ''), m.created_at, m.updated_at`

// Repository provides PostgreSQL backed persistence for tenant_memberships.
type Repository struct {
	pool db.Querier
}

// NewRepository constructs a repository.
func NewRepository(pool db.Querier) *Repository {
	return &Repository{pool: pool}
}

// FindByUserAndTenant returns the membership row for the pair.
func (r *Repository) FindByUserAndTenant(ctx context.Context, userID, tenantID uuid.UUID) (Membership, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+membershipColumns+`
		FROM tenant_memberships m LEFT JOIN users u ON u.id = m.user_id
		WHERE m.user_id = $1 AND m.tenant_id = $2`, userID, tenantID)
	return scanMembership(row)
}

// Get fetches a membership by ID within a tenant.
func (r *Repository) Get(ctx context.Context, tenantID, id uuid.UUID) (Membership, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+membershipColumns+`
		FROM tenant_memberships m LEFT JOIN users u ON u.id = m.user_id
		WHERE m.tenant_id = $1 AND m.id = $2`, tenantID, id)
	return scanMembership(row)
}

// ListByTenant returns memberships of a tenant ordered by creation.
func (r *Repository) ListByTenant(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]Membership, error) {
	query := `SELECT ` + membershipColumns + `
		FROM tenant_memberships m LEFT JOIN users u ON u.id = m.user_id
		WHERE m.tenant_id = $1`
	args := []any{tenantID}
	if filter.Status != "" {
		query += ` AND m.status = $2`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY m.created_at`
	return r.list(ctx, query, args...)
}

// ListByUser returns every membership held by a user.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Membership, error) {
	return r.list(ctx, `SELECT `+membershipColumns+`
		FROM tenant_memberships m LEFT JOIN users u ON u.id = m.user_id
		WHERE m.user_id = $1 ORDER BY m.created_at`, userID)
}

// Create inserts a membership. Duplicate (user, tenant) pairs yield ErrAlreadyMember.
func (r *Repository) Create(ctx context.Context, m Membership) (Membership, error) {
	custom, err := encodeCustom(m.CustomPermissions)
	if err != nil {
		return Membership{}, err
	}
	err = r.pool.QueryRow(ctx, `INSERT INTO tenant_memberships (user_id, tenant_id, role, status, custom_permissions)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at, updated_at`,
		m.UserID, m.TenantID, string(m.Role), string(m.Status), custom,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Membership{}, ErrAlreadyMember
		}
		return Membership{}, fmt.Errorf("members: create: %w", err)
	}
	return m, nil
}

// UpdateRole sets the role of a membership.
func (r *Repository) UpdateRole(ctx context.Context, tenantID, id uuid.UUID, role rbac.Role) error {
	return r.exec(ctx, `UPDATE tenant_memberships SET role = $3, updated_at = NOW() WHERE tenant_id = $1 AND id = $2`,
		tenantID, id, string(role))
}

// UpdateStatus sets the status and, when approvedBy is set, the approval stamp.
func (r *Repository) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status Status, approvedBy *uuid.UUID) error {
	if approvedBy != nil {
		return r.exec(ctx, `UPDATE tenant_memberships SET status = $3, approved_by = $4, approved_at = NOW(), updated_at = NOW()
			WHERE tenant_id = $1 AND id = $2`, tenantID, id, string(status), *approvedBy)
	}
	return r.exec(ctx, `UPDATE tenant_memberships SET status = $3, updated_at = NOW() WHERE tenant_id = $1 AND id = $2`,
		tenantID, id, string(status))
}

// SetCustomPermissions replaces the override map; nil clears it.
func (r *Repository) SetCustomPermissions(ctx context.Context, tenantID, id uuid.UUID, custom rbac.CustomPermissions) error {
	encoded, err := encodeCustom(custom)
	if err != nil {
		return err
	}
	return r.exec(ctx, `UPDATE tenant_memberships SET custom_permissions = $3, updated_at = NOW() WHERE tenant_id = $1 AND id = $2`,
		tenantID, id, encoded)
}

// ExpirePending inactivates pending requests created before cutoff and
// returns the affected pairs so callers can drop cached entries.
func (r *Repository) ExpirePending(ctx context.Context, cutoff time.Time) ([]Membership, error) {
	rows, err := r.pool.Query(ctx, `UPDATE tenant_memberships SET status = 'inactive', updated_at = NOW()
		WHERE status = 'pending' AND created_at < $1 RETURNING id, user_id, tenant_id`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("members: expire pending: %w", err)
	}
	defer rows.Close()
	var expired []Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.ID, &m.UserID, &m.TenantID); err != nil {
			return nil, err
		}
		m.Status = StatusInactive
		expired = append(expired, m)
	}
	return expired, rows.Err()
}

func (r *Repository) exec(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("members: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]Membership, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("members: list: %w", err)
	}
	defer rows.Close()
	var out []Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMembership(row pgx.Row) (Membership, error) {
	var (
		m      Membership
		role   string
		status string
		custom []byte
	)
	err := row.Scan(&m.ID, &m.UserID, &m.TenantID, &role, &status, &custom,
		&m.ApprovedBy, &m.ApprovedAt, &m.Email, &m.Name, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Membership{}, ErrNotFound
		}
		return Membership{}, fmt.Errorf("members: scan: %w", err)
	}
	m.Role = rbac.Role(role)
	m.Status = Status(status)
	if len(custom) > 0 && string(custom) != "null" {
		var raw map[string][]string
		if err := json.Unmarshal(custom, &raw); err != nil {
			return Membership{}, fmt.Errorf("members: decode custom permissions: %w", err)
		}
		parsed, err := rbac.ParseCustomPermissions(raw)
		if err != nil {
			return Membership{}, fmt.Errorf("members: custom permissions: %w", err)
		}
		m.CustomPermissions = parsed
	}
	return m, nil
}

func encodeCustom(custom rbac.CustomPermissions) ([]byte, error) {
	if custom == nil {
		return nil, nil
	}
	data, err := json.Marshal(custom.Raw())
	if err != nil {
		return nil, fmt.Errorf("members: encode custom permissions: %w", err)
	}
	return data, nil
}
