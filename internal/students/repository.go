package students

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

var studentColumns = []string{
	"id", "tenant_id", "name", "email", "phone", "parent_name", "parent_phone",
	"grade", "birth_date", "status", "notes", "created_by", "created_at", "updated_at",
}

// Repository provides PostgreSQL backed persistence for students.
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

// Get fetches a student of a tenant.
func (r *Repository) Get(ctx context.Context, tenantID, id uuid.UUID) (Student, error) {
	stmt, args, err := r.builder.Select(studentColumns...).
		From("students").
		Where(squirrel.Eq{"tenant_id": tenantID, "id": id}).
		ToSql()
	if err != nil {
		return Student{}, fmt.Errorf("students: build get sql: %w", err)
	}
	return scanStudent(r.pool.QueryRow(ctx, stmt, args...))
}

// List returns a page of students and the total match count.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]Student, int, error) {
	where := squirrel.And{squirrel.Eq{"tenant_id": tenantID}}
	if filter.Status != "" {
		where = append(where, squirrel.Eq{"status": string(filter.Status)})
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		where = append(where, squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.ILike{"email": pattern},
			squirrel.ILike{"parent_name": pattern},
		})
	}

	countSQL, countArgs, err := r.builder.Select("COUNT(*)").From("students").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("students: build count sql: %w", err)
	}
	var total int
	if err := r.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("students: count: %w", err)
	}

	query := r.builder.Select(studentColumns...).From("students").Where(where).OrderBy("name", "id")
	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		query = query.Offset(uint64(filter.Offset))
	}
	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("students: build list sql: %w", err)
	}
	rows, err := r.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("students: list: %w", err)
	}
	defer rows.Close()

	out := make([]Student, 0)
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

// Create inserts a student and returns the stored row.
func (r *Repository) Create(ctx context.Context, s Student) (Student, error) {
	stmt, args, err := r.builder.Insert("students").
		Columns("tenant_id", "name", "email", "phone", "parent_name", "parent_phone",
			"grade", "birth_date", "status", "notes", "created_by").
		Values(s.TenantID, s.Name, s.Email, s.Phone, s.ParentName, s.ParentPhone,
			s.Grade, s.BirthDate, string(s.Status), s.Notes, s.CreatedBy).
		Suffix("RETURNING " + joinColumns()).
		ToSql()
	if err != nil {
		return Student{}, fmt.Errorf("students: build insert sql: %w", err)
	}
	created, err := scanStudent(r.pool.QueryRow(ctx, stmt, args...))
	if err != nil && db.IsUniqueViolation(err) {
		return Student{}, ErrDuplicate
	}
	return created, err
}

// Update applies the non-nil fields of in.
func (r *Repository) Update(ctx context.Context, tenantID, id uuid.UUID, in UpdateInput) (Student, error) {
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
	if in.ParentName != nil {
		set["parent_name"] = *in.ParentName
	}
	if in.ParentPhone != nil {
		set["parent_phone"] = *in.ParentPhone
	}
	if in.Grade != nil {
		set["grade"] = *in.Grade
	}
	if in.BirthDate != nil {
		set["birth_date"] = *in.BirthDate
	}
	if in.Status != nil {
		set["status"] = string(*in.Status)
	}
	if in.Notes != nil {
		set["notes"] = *in.Notes
	}
	stmt, args, err := r.builder.Update("students").
		SetMap(set).
		Where(squirrel.Eq{"tenant_id": tenantID, "id": id}).
		Suffix("RETURNING " + joinColumns()).
		ToSql()
	if err != nil {
		return Student{}, fmt.Errorf("students: build update sql: %w", err)
	}
	updated, err := scanStudent(r.pool.QueryRow(ctx, stmt, args...))
	if err != nil && db.IsUniqueViolation(err) {
		return Student{}, ErrDuplicate
	}
	return updated, err
}

// Delete removes a student. Students with enrollments yield ErrInUse.
func (r *Repository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	stmt, args, err := r.builder.Delete("students").
		Where(squirrel.Eq{"tenant_id": tenantID, "id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("students: build delete sql: %w", err)
	}
	tag, err := r.pool.Exec(ctx, stmt, args...)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrInUse
		}
		return fmt.Errorf("students: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func joinColumns() string {
	return strings.Join(studentColumns, ", ")
}

func scanStudent(row pgx.Row) (Student, error) {
	var (
		s      Student
		status string
	)
	err := row.Scan(&s.ID, &s.TenantID, &s.Name, &s.Email, &s.Phone, &s.ParentName, &s.ParentPhone,
		&s.Grade, &s.BirthDate, &status, &s.Notes, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Student{}, ErrNotFound
		}
		return Student{}, fmt.Errorf("students: scan: %w", err)
	}
	s.Status = Status(status)
	return s, nil
}
