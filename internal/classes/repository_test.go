package classes

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expectLock(mock pgxmock.PgxPoolIface, capacity int, status string, enrolled int) {
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	mock.ExpectQuery(`SELECT capacity, status FROM classes WHERE tenant_id = \$1 AND id = \$2 FOR UPDATE`).
		WillReturnRows(pgxmock.NewRows([]string{"capacity", "status"}).AddRow(capacity, status))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM enrollments`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(enrolled))
}

func TestRepositoryEnrollInserts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	e := Enrollment{TenantID: uuid.New(), ClassID: uuid.New(), StudentID: uuid.New(), EnrolledBy: uuid.New()}
	expectLock(mock, 10, "active", 3)
	mock.ExpectQuery(`SELECT EXISTS`).WithArgs(e.TenantID, e.StudentID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`INSERT INTO enrollments \(tenant_id,class_id,student_id,enrolled_by\) VALUES \(\$1,\$2,\$3,\$4\) RETURNING id, enrolled_at`).
		WithArgs(e.TenantID, e.ClassID, e.StudentID, e.EnrolledBy).
		WillReturnRows(pgxmock.NewRows([]string{"id", "enrolled_at"}).AddRow(uuid.New(), time.Now().UTC()))
	mock.ExpectCommit()

	got, err := NewRepository(mock).Enroll(context.Background(), e)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryEnrollFullClass(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectLock(mock, 2, "active", 2)
	mock.ExpectRollback()

	_, err = NewRepository(mock).Enroll(context.Background(), Enrollment{TenantID: uuid.New(), ClassID: uuid.New(), StudentID: uuid.New()})
	assert.ErrorIs(t, err, ErrClassFull)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryEnrollArchivedClass(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectLock(mock, 0, "archived", 0)
	mock.ExpectRollback()

	_, err = NewRepository(mock).Enroll(context.Background(), Enrollment{TenantID: uuid.New(), ClassID: uuid.New(), StudentID: uuid.New()})
	assert.ErrorIs(t, err, ErrClassArchived)
}

func TestRepositoryEnrollDuplicate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectLock(mock, 0, "active", 1)
	mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`INSERT INTO enrollments`).WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	_, err = NewRepository(mock).Enroll(context.Background(), Enrollment{TenantID: uuid.New(), ClassID: uuid.New(), StudentID: uuid.New()})
	assert.ErrorIs(t, err, ErrAlreadyEnrolled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryEnrollMissingClass(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	mock.ExpectQuery(`FOR UPDATE`).WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err = NewRepository(mock).Enroll(context.Background(), Enrollment{TenantID: uuid.New(), ClassID: uuid.New(), StudentID: uuid.New()})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepositoryUnenrollMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM enrollments WHERE`).WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err = NewRepository(mock).Unenroll(context.Background(), uuid.New(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrEnrollmentMissing)
}

func TestRepositoryListCountsEnrollments(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tenantID := uuid.New()
	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM classes c WHERE \(c.tenant_id = \$1 AND c.status = \$2\)`).
		WithArgs(pgxmock.AnyArg(), "active").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT c.id, .*\(SELECT COUNT\(\*\) FROM enrollments e WHERE e.class_id = c.id\) AS enrolled.* FROM classes c WHERE .* ORDER BY c.name, c.id LIMIT 20`).
		WithArgs(pgxmock.AnyArg(), "active").
		WillReturnRows(pgxmock.NewRows([]string{"id", "tenant_id", "name", "subject", "instructor_id", "room", "schedule", "capacity", "enrolled", "status", "starts_on", "ends_on", "created_at", "updated_at"}).
			AddRow(uuid.New(), tenantID, "Algebra", (*string)(nil), (*uuid.UUID)(nil), (*string)(nil), (*string)(nil), 12, 7, "active", (*time.Time)(nil), (*time.Time)(nil), now, now))

	items, total, err := NewRepository(mock).List(context.Background(), tenantID, ListFilter{Status: StatusActive, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, 7, items[0].Enrolled)
	assert.NoError(t, mock.ExpectationsWereMet())
}
