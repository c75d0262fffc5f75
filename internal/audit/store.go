package audit

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/lehine87/educanvas/internal/platform/db"
)

var recordColumns = []string{
	"id", "tenant_id", "user_id", "role", "method", "route", "action", "table_name",
	"risk_level", "is_anomalous", "created_at",
}

// Store persists audit records in PostgreSQL.
type Store struct {
	pool    db.Querier
	builder squirrel.StatementBuilderType
}

// NewStore constructs a Store.
func NewStore(pool db.Querier) *Store {
	return &Store{pool: pool, builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)}
}

// Insert writes one record.
func (s *Store) Insert(ctx context.Context, rec Record) error {
	stmt, args, err := s.builder.Insert("audit_logs").
		Columns("tenant_id", "user_id", "role", "method", "route", "action", "table_name", "risk_level", "is_anomalous", "created_at").
		Values(rec.TenantID, rec.UserID, rec.Role, rec.Method, rec.Route, rec.Action, rec.Resource, string(rec.Risk), rec.Anomalous, rec.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("audit: build insert sql: %w", err)
	}
	if _, err := s.pool.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

// List returns records newest first plus the total match count.
func (s *Store) List(ctx context.Context, f TimelineFilters) ([]Record, int, error) {
	where := squirrel.And{squirrel.Eq{"tenant_id": f.TenantID}}
	if f.Actor != nil {
		where = append(where, squirrel.Eq{"user_id": *f.Actor})
	}
	if f.Resource != "" {
		where = append(where, squirrel.Eq{"table_name": f.Resource})
	}
	if f.Risk != "" {
		where = append(where, squirrel.Eq{"risk_level": string(f.Risk)})
	}
	if !f.From.IsZero() {
		where = append(where, squirrel.GtOrEq{"created_at": f.From})
	}
	if !f.To.IsZero() {
		where = append(where, squirrel.Lt{"created_at": f.To})
	}

	countSQL, countArgs, err := s.builder.Select("COUNT(*)").From("audit_logs").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("audit: build count sql: %w", err)
	}
	var total int
	if err := s.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("audit: count: %w", err)
	}

	query := s.builder.Select(recordColumns...).From("audit_logs").Where(where).OrderBy("created_at DESC", "id DESC")
	if f.Limit > 0 {
		query = query.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		query = query.Offset(uint64(f.Offset))
	}
	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("audit: build list sql: %w", err)
	}
	rows, err := s.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("audit: list: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0)
	for rows.Next() {
		var (
			rec  Record
			risk string
		)
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.UserID, &rec.Role, &rec.Method, &rec.Route,
			&rec.Action, &rec.Resource, &risk, &rec.Anomalous, &rec.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("audit: scan: %w", err)
		}
		rec.Risk = Risk(risk)
		out = append(out, rec)
	}
	return out, total, rows.Err()
}

// Prune deletes records created before cutoff and returns how many went.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	stmt, args, err := s.builder.Delete("audit_logs").Where(squirrel.Lt{"created_at": cutoff}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("audit: build prune sql: %w", err)
	}
	tag, err := s.pool.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("audit: prune: %w", err)
	}
	return tag.RowsAffected(), nil
}
