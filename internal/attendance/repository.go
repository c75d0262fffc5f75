package attendance

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

var recordColumns = []string{
	"id", "tenant_id", "class_id", "student_id", "session_date", "status", "note", "recorded_by", "recorded_at",
}

const upsertSuffix = "ON CONFLICT (class_id, student_id, session_date) DO UPDATE SET " +
	"status = EXCLUDED.status, note = EXCLUDED.note, recorded_by = EXCLUDED.recorded_by, recorded_at = NOW() " +
	"RETURNING "

// Repository persists attendance in PostgreSQL.
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

// Record upserts every mark of the sheet in one transaction. The class row
// is share-locked so it cannot be archived mid roll call, and every student
// must be enrolled in the class.
func (r *Repository) Record(ctx context.Context, sheet Sheet) ([]Record, error) {
	var out []Record
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx, `SELECT status FROM classes WHERE tenant_id = $1 AND id = $2 FOR SHARE`,
			sheet.TenantID, sheet.ClassID).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrClassNotFound
			}
			return fmt.Errorf("attendance: lock class: %w", err)
		}
		if status == "archived" {
			return ErrClassArchived
		}

		ids := sheet.StudentIDs()
		countSQL, countArgs, err := r.builder.Select("COUNT(*)").
			From("enrollments").
			Where(squirrel.Eq{"tenant_id": sheet.TenantID, "class_id": sheet.ClassID, "student_id": ids}).
			ToSql()
		if err != nil {
			return fmt.Errorf("attendance: build enrollment sql: %w", err)
		}
		var enrolled int
		if err := tx.QueryRow(ctx, countSQL, countArgs...).Scan(&enrolled); err != nil {
			return fmt.Errorf("attendance: check enrollment: %w", err)
		}
		if enrolled != len(ids) {
			return ErrNotEnrolled
		}

		insert := r.builder.Insert("attendance").
			Columns("tenant_id", "class_id", "student_id", "session_date", "status", "note", "recorded_by")
		for _, m := range sheet.Marks {
			insert = insert.Values(sheet.TenantID, sheet.ClassID, m.StudentID, sheet.SessionDate, string(m.Status), m.Note, sheet.RecordedBy)
		}
		stmt, args, err := insert.Suffix(upsertSuffix + strings.Join(recordColumns, ", ")).ToSql()
		if err != nil {
			return fmt.Errorf("attendance: build upsert sql: %w", err)
		}
		rows, err := tx.Query(ctx, stmt, args...)
		if err != nil {
			return fmt.Errorf("attendance: upsert: %w", err)
		}
		defer rows.Close()

		out = make([]Record, 0, len(sheet.Marks))
		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// List returns a page of records, newest session first.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]Record, int, error) {
	where := squirrel.And{squirrel.Eq{"tenant_id": tenantID}}
	if filter.ClassID != nil {
		where = append(where, squirrel.Eq{"class_id": *filter.ClassID})
	}
	if filter.StudentID != nil {
		where = append(where, squirrel.Eq{"student_id": *filter.StudentID})
	}
	if filter.From != nil {
		where = append(where, squirrel.GtOrEq{"session_date": *filter.From})
	}
	if filter.To != nil {
		where = append(where, squirrel.LtOrEq{"session_date": *filter.To})
	}

	countSQL, countArgs, err := r.builder.Select("COUNT(*)").From("attendance").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("attendance: build count sql: %w", err)
	}
	var total int
	if err := r.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("attendance: count: %w", err)
	}

	query := r.builder.Select(recordColumns...).From("attendance").Where(where).OrderBy("session_date DESC", "student_id")
	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		query = query.Offset(uint64(filter.Offset))
	}
	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("attendance: build list sql: %w", err)
	}
	rows, err := r.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("attendance: list: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	return out, total, rows.Err()
}

// Delete removes one record.
func (r *Repository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	stmt, args, err := r.builder.Delete("attendance").Where(squirrel.Eq{"tenant_id": tenantID, "id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("attendance: build delete sql: %w", err)
	}
	tag, err := r.pool.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("attendance: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec    Record
		status string
	)
	err := row.Scan(&rec.ID, &rec.TenantID, &rec.ClassID, &rec.StudentID, &rec.SessionDate, &status,
		&rec.Note, &rec.RecordedBy, &rec.RecordedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("attendance: scan: %w", err)
	}
	rec.Status = Status(status)
	return rec, nil
}
