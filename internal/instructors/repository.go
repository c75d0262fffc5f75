package instructors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lehine87/educanvas/internal/platform/db"
)

var instructorColumns = []string{
	"id", "tenant_id", "user_id", "name", "email", "phone", "specialization",
	"hired_on", "status", "notes", "created_at", "updated_at",
}

// Repository persists instructor profiles in PostgreSQL.
type Repository struct {
	pool    db.Querier
	builder squirrel.StatementBuilderType
}

// NewRepository constructs a repository.
func NewRepository(pool db.Querier) *Repository {
	return &Repository{
		pool:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Get fetches one profile of a tenant.
func (r *Repository) Get(ctx context.Context, tenantID, id uuid.UUID) (Instructor, error) {
	stmt, args, err := r.builder.Select(instructorColumns...).
		From("instructors").
		Where(squirrel.Eq{"tenant_id": tenantID, "id": id}).
		ToSql()
	if err != nil {
		return Instructor{}, fmt.Errorf("instructors: build get sql: %w", err)
	}
	return scanInstructor(r.pool.QueryRow(ctx, stmt, args...))
}

// List returns a page of profiles and the total match count.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]Instructor, int, error) {
	where := squirrel.And{squirrel.Eq{"tenant_id": tenantID}}
	if filter.Status != "" {
		where = append(where, squirrel.Eq{"status": string(filter.Status)})
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		where = append(where, squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.ILike{"email": pattern},
			squirrel.ILike{"specialization": pattern},
		})
	}

	countSQL, countArgs, err := r.builder.Select("COUNT(*)").From("instructors").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("instructors: build count sql: %w", err)
	}
	var total int
	if err := r.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("instructors: count: %w", err)
	}

	query := r.builder.Select(instructorColumns...).From("instructors").Where(where).OrderBy("name", "id")
	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		query = query.Offset(uint64(filter.Offset))
	}
	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("instructors: build list sql: %w", err)
	}
	rows, err := r.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("instructors: list: %w", err)
	}
	defer rows.Close()

	out := make([]Instructor, 0)
	for rows.Next() {
		in, err := scanInstructor(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, in)
	}
	return out, total, rows.Err()
}

// Create inserts a profile. A second profile for the same user yields
// ErrDuplicate.
func (r *Repository) Create(ctx context.Context, in Instructor) (Instructor, error) {
	stmt, args, err := r.builder.Insert("instructors").
		Columns("tenant_id", "user_id", "name", "email", "phone", "specialization", "hired_on", "status", "notes").
		Values(in.TenantID, in.UserID, in.Name, in.Email, in.Phone, in.Specialization, in.HiredOn, string(in.Status), in.Notes).
		Suffix("RETURNING " + strings.Join(instructorColumns, ", ")).
		ToSql()
	if err != nil {
		return Instructor{}, fmt.Errorf("instructors: build insert sql: %w", err)
	}
	created, err := scanInstructor(r.pool.QueryRow(ctx, stmt, args...))
	if err != nil && db.IsUniqueViolation(err) {
		return Instructor{}, ErrDuplicate
	}
	return created, err
}

// Update applies the non-nil fields of in.
func (r *Repository) Update(ctx context.Context, tenantID, id uuid.UUID, in UpdateInput) (Instructor, error) {
	set := map[string]any{"updated_at": squirrel.Expr("NOW()")}
	if in.Name != nil {
		set["name"] = *in.Name
	}
	if in.Email != nil {
		set["email"] = *in.Email
	}
	if in.Phone != nil {
		set["phone"] = *in.Phone
	}
	if in.Specialization != nil {
		set["specialization"] = *in.Specialization
	}
	if in.HiredOn != nil {
		set["hired_on"] = *in.HiredOn
	}
	if in.Status != nil {
		set["status"] = string(*in.Status)
	}
	if in.Notes != nil {
		set["notes"] = *in.Notes
	}
	stmt, args, err := r.builder.Update("instructors").
		SetMap(set).
		Where(squirrel.Eq{"tenant_id": tenantID, "id": id}).
		Suffix("RETURNING " + strings.Join(instructorColumns, ", ")).
		ToSql()
	if err != nil {
		return Instructor{}, fmt.Errorf("instructors: build update sql: %w", err)
	}
	return scanInstructor(r.pool.QueryRow(ctx, stmt, args...))
}

// Delete removes a profile.
func (r *Repository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	stmt, args, err := r.builder.Delete("instructors").
		Where(squirrel.Eq{"tenant_id": tenantID, "id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("instructors: build delete sql: %w", err)
	}
	tag, err := r.pool.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("instructors: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanInstructor(row pgx.Row) (Instructor, error) {
	var (
		in     Instructor
		status string
	)
	err := row.Scan(&in.ID, &in.TenantID, &in.UserID, &in.Name, &in.Email, &in.Phone, &in.Specialization,
		&in.HiredOn, &status, &in.Notes, &in.CreatedAt, &in.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Instructor{}, ErrNotFound
		}
		return Instructor{}, fmt.Errorf("instructors: scan: %w", err)
	}
	in.Status = Status(status)
	return in, nil
}
