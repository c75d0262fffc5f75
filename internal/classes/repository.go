package classes

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lehine87/educanvas/internal/platform/db"
)

const enrolledCount = "(SELECT COUNT(*) FROM enrollments e WHERE e.class_id = c.id) AS enrolled"

var classColumns = []string{
	"c.id", "c.tenant_id", "c.name", "c.subject", "c.instructor_id", "c.room", "c.schedule",
	"c.capacity", enrolledCount, "c.status", "c.starts_on", "c.ends_on", "c.created_at", "c.updated_at",
}

// Repository provides PostgreSQL backed persistence for classes and enrollments.
type Repository struct {
	pool    db.Pool
	builder squirrel.StatementBuilderType
}

// NewRepository constructs a repository.
func NewRepository(pool db.Pool) *Repository {
	return &Repository{
		pool:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Get fetches a class of a tenant with its enrollment count.
func (r *Repository) Get(ctx context.Context, tenantID, id uuid.UUID) (Class, error) {
	stmt, args, err := r.builder.Select(classColumns...).
		From("classes c").
		Where(squirrel.Eq{"c.tenant_id": tenantID, "c.id": id}).
		ToSql()
	if err != nil {
		return Class{}, fmt.Errorf("classes: build get sql: %w", err)
	}
	return scanClass(r.pool.QueryRow(ctx, stmt, args...))
}

// List returns a page of classes and the total match count.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]Class, int, error) {
	where := squirrel.And{squirrel.Eq{"c.tenant_id": tenantID}}
	if filter.Status != "" {
		where = append(where, squirrel.Eq{"c.status": string(filter.Status)})
	}
	if filter.InstructorID != nil {
		where = append(where, squirrel.Eq{"c.instructor_id": *filter.InstructorID})
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		where = append(where, squirrel.Or{
			squirrel.ILike{"c.name": pattern},
			squirrel.ILike{"c.subject": pattern},
		})
	}

	countSQL, countArgs, err := r.builder.Select("COUNT(*)").From("classes c").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("classes: build count sql: %w", err)
	}
	var total int
	if err := r.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("classes: count: %w", err)
	}

	query := r.builder.Select(classColumns...).From("classes c").Where(where).OrderBy("c.name", "c.id")
	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		query = query.Offset(uint64(filter.Offset))
	}
	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("classes: build list sql: %w", err)
	}
	rows, err := r.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("classes: list: %w", err)
	}
	defer rows.Close()

	out := make([]Class, 0)
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// Create inserts a class.
func (r *Repository) Create(ctx context.Context, c Class) (Class, error) {
	stmt, args, err := r.builder.Insert("classes").
		Columns("tenant_id", "name", "subject", "instructor_id", "room", "schedule", "capacity", "status", "starts_on", "ends_on").
		Values(c.TenantID, c.Name, c.Subject, c.InstructorID, c.Room, c.Schedule, c.Capacity, string(c.Status), c.StartsOn, c.EndsOn).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return Class{}, fmt.Errorf("classes: build insert sql: %w", err)
	}
	if err := r.pool.QueryRow(ctx, stmt, args...).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return Class{}, fmt.Errorf("classes: create: %w", err)
	}
	return c, nil
}

// Update applies the non-nil fields of in. A capacity below the current
// enrollment count is rejected inside the same transaction.
func (r *Repository) Update(ctx context.Context, tenantID, id uuid.UUID, in UpdateInput) (Class, error) {
	set := map[string]any{"updated_at": squirrel.Expr("NOW()")}
	if in.Name != nil {
		set["name"] = *in.Name
	}
	if in.Subject != nil {
		set["subject"] = *in.Subject
	}
	if in.InstructorID != nil {
		set["instructor_id"] = *in.InstructorID
	}
	if in.Room != nil {
		set["room"] = *in.Room
	}
	if in.Schedule != nil {
		set["schedule"] = *in.Schedule
	}
	if in.Capacity != nil {
		set["capacity"] = *in.Capacity
	}
	if in.Status != nil {
		set["status"] = string(*in.Status)
	}
	if in.StartsOn != nil {
		set["starts_on"] = *in.StartsOn
	}
	if in.EndsOn != nil {
		set["ends_on"] = *in.EndsOn
	}
	stmt, args, err := r.builder.Update("classes").
		SetMap(set).
		Where(squirrel.Eq{"tenant_id": tenantID, "id": id}).
		ToSql()
	if err != nil {
		return Class{}, fmt.Errorf("classes: build update sql: %w", err)
	}

	err = db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		locked, err := r.lockClass(ctx, tx, tenantID, id)
		if err != nil {
			return err
		}
		if in.Capacity != nil && *in.Capacity > 0 && *in.Capacity < locked.enrolled {
			return ErrCapacityTooLow
		}
		if _, err := tx.Exec(ctx, stmt, args...); err != nil {
			return fmt.Errorf("classes: update: %w", err)
		}
		return nil
	})
	if err != nil {
		return Class{}, err
	}
	return r.Get(ctx, tenantID, id)
}

// Delete removes a class; its enrollments cascade.
func (r *Repository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	stmt, args, err := r.builder.Delete("classes").Where(squirrel.Eq{"tenant_id": tenantID, "id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("classes: build delete sql: %w", err)
	}
	tag, err := r.pool.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("classes: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListEnrollments returns the enrollments of a class.
func (r *Repository) ListEnrollments(ctx context.Context, tenantID, classID uuid.UUID) ([]Enrollment, error) {
	stmt, args, err := r.builder.Select("id", "tenant_id", "class_id", "student_id", "enrolled_by", "enrolled_at").
		From("enrollments").
		Where(squirrel.Eq{"tenant_id": tenantID, "class_id": classID}).
		OrderBy("enrolled_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("classes: build enrollments sql: %w", err)
	}
	rows, err := r.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("classes: list enrollments: %w", err)
	}
	defer rows.Close()
	out := make([]Enrollment, 0)
	for rows.Next() {
		var e Enrollment
		if err := rows.Scan(&e.ID, &e.TenantID, &e.ClassID, &e.StudentID, &e.EnrolledBy, &e.EnrolledAt); err != nil {
			return nil, fmt.Errorf("classes: scan enrollment: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Enroll adds a student to a class. The class row is locked so concurrent
// enrollments cannot overshoot capacity.
func (r *Repository) Enroll(ctx context.Context, e Enrollment) (Enrollment, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		locked, err := r.lockClass(ctx, tx, e.TenantID, e.ClassID)
		if err != nil {
			return err
		}
		if locked.status == StatusArchived {
			return ErrClassArchived
		}
		if locked.capacity > 0 && locked.enrolled >= locked.capacity {
			return ErrClassFull
		}

		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM students WHERE tenant_id = $1 AND id = $2)`,
			e.TenantID, e.StudentID).Scan(&exists); err != nil {
			return fmt.Errorf("classes: check student: %w", err)
		}
		if !exists {
			return ErrStudentNotFound
		}

		stmt, args, err := r.builder.Insert("enrollments").
			Columns("tenant_id", "class_id", "student_id", "enrolled_by").
			Values(e.TenantID, e.ClassID, e.StudentID, e.EnrolledBy).
			Suffix("RETURNING id, enrolled_at").
			ToSql()
		if err != nil {
			return fmt.Errorf("classes: build enroll sql: %w", err)
		}
		if err := tx.QueryRow(ctx, stmt, args...).Scan(&e.ID, &e.EnrolledAt); err != nil {
			if db.IsUniqueViolation(err) {
				return ErrAlreadyEnrolled
			}
			return fmt.Errorf("classes: enroll: %w", err)
		}
		return nil
	})
	if err != nil {
		return Enrollment{}, err
	}
	return e, nil
}

// Unenroll removes a student from a class.
func (r *Repository) Unenroll(ctx context.Context, tenantID, classID, studentID uuid.UUID) error {
	stmt, args, err := r.builder.Delete("enrollments").
		Where(squirrel.Eq{"tenant_id": tenantID, "class_id": classID, "student_id": studentID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("classes: build unenroll sql: %w", err)
	}
	tag, err := r.pool.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("classes: unenroll: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEnrollmentMissing
	}
	return nil
}

type lockedClass struct {
	capacity int
	enrolled int
	status   Status
}

func (r *Repository) lockClass(ctx context.Context, tx pgx.Tx, tenantID, id uuid.UUID) (lockedClass, error) {
	var (
		out    lockedClass
		status string
	)
	err := tx.QueryRow(ctx, `SELECT capacity, status FROM classes WHERE tenant_id = $1 AND id = $2 FOR UPDATE`,
		tenantID, id).Scan(&out.capacity, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return lockedClass{}, ErrNotFound
		}
		return lockedClass{}, fmt.Errorf("classes: lock class: %w", err)
	}
	out.status = Status(status)
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM enrollments WHERE class_id = $1`, id).Scan(&out.enrolled); err != nil {
		return lockedClass{}, fmt.Errorf("classes: count enrollments: %w", err)
	}
	return out, nil
}

func scanClass(row pgx.Row) (Class, error) {
	var (
		c      Class
		status string
	)
	err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.Subject, &c.InstructorID, &c.Room, &c.Schedule,
		&c.Capacity, &c.Enrolled, &status, &c.StartsOn, &c.EndsOn, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Class{}, ErrNotFound
		}
		return Class{}, fmt.Errorf("classes: scan: %w", err)
	}
	c.Status = Status(status)
	return c, nil
}
