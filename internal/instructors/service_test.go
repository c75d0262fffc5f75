package instructors

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehine87/educanvas/internal/members"
	"github.com/lehine87/educanvas/internal/rbac"
	"github.com/lehine87/educanvas/internal/shared"
)

type memRepo struct {
	rows map[uuid.UUID]Instructor
}

func newMemRepo(rows ...Instructor) *memRepo {
	repo := &memRepo{rows: make(map[uuid.UUID]Instructor)}
	for _, in := range rows {
		repo.rows[in.ID] = in
	}
	return repo
}

func (r *memRepo) Get(ctx context.Context, tenantID, id uuid.UUID) (Instructor, error) {
	in, ok := r.rows[id]
	if !ok || in.TenantID != tenantID {
		return Instructor{}, ErrNotFound
	}
	return in, nil
}

func (r *memRepo) List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]Instructor, int, error) {
	out := make([]Instructor, 0)
	for _, in := range r.rows {
		if in.TenantID != tenantID {
			continue
		}
		if filter.Status != "" && in.Status != filter.Status {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(in.Name), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, in)
	}
	return out, len(out), nil
}

func (r *memRepo) Create(ctx context.Context, in Instructor) (Instructor, error) {
	for _, existing := range r.rows {
		if existing.TenantID == in.TenantID && existing.UserID == in.UserID {
			return Instructor{}, ErrDuplicate
		}
	}
	in.ID = uuid.New()
	r.rows[in.ID] = in
	return in, nil
}

func (r *memRepo) Update(ctx context.Context, tenantID, id uuid.UUID, in UpdateInput) (Instructor, error) {
	cur, err := r.Get(ctx, tenantID, id)
	if err != nil {
		return Instructor{}, err
	}
	if in.Name != nil {
		cur.Name = *in.Name
	}
	if in.Email != nil {
		cur.Email = in.Email
	}
	if in.Status != nil {
		cur.Status = *in.Status
	}
	r.rows[id] = cur
	return cur, nil
}

func (r *memRepo) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	if _, err := r.Get(ctx, tenantID, id); err != nil {
		return err
	}
	delete(r.rows, id)
	return nil
}

type staffTable map[[2]uuid.UUID]members.Membership

func (s staffTable) FindByUserAndTenant(ctx context.Context, userID, tenantID uuid.UUID) (members.Membership, error) {
	m, ok := s[[2]uuid.UUID{userID, tenantID}]
	if !ok {
		return members.Membership{}, members.ErrNotFound
	}
	return m, nil
}

func (s staffTable) add(tenantID uuid.UUID, role rbac.Role, status members.Status) uuid.UUID {
	userID := uuid.New()
	s[[2]uuid.UUID{userID, tenantID}] = members.Membership{
		ID: uuid.New(), UserID: userID, TenantID: tenantID, Role: role, Status: status,
	}
	return userID
}

func actor(tenantID uuid.UUID, role rbac.Role) rbac.Identity {
	return rbac.NewIdentity(uuid.New(), tenantID, role, nil)
}

func strPtr(s string) *string { return &s }

func TestCreateRequiresTeachingMember(t *testing.T) {
	tenantID, otherTenant := uuid.New(), uuid.New()
	staff := staffTable{}
	teacher := staff.add(tenantID, rbac.RoleInstructor, members.StatusActive)
	clerk := staff.add(tenantID, rbac.RoleStaff, members.StatusActive)
	pending := staff.add(tenantID, rbac.RoleInstructor, members.StatusPending)
	foreign := staff.add(otherTenant, rbac.RoleInstructor, members.StatusActive)

	svc := NewService(newMemRepo(), staff)
	a := actor(tenantID, rbac.RoleAdmin)

	created, err := svc.Create(context.Background(), a, CreateInput{
		UserID: teacher, Name: "  Jiwoo Han ", Email: strPtr(" Jiwoo@Academy.TEST "),
	})
	require.NoError(t, err)
	assert.Equal(t, "Jiwoo Han", created.Name)
	assert.Equal(t, "jiwoo@academy.test", *created.Email)
	assert.Equal(t, StatusActive, created.Status)
	assert.Equal(t, tenantID, created.TenantID)

	for name, userID := range map[string]uuid.UUID{
		"staff role":     clerk,
		"pending":        pending,
		"foreign tenant": foreign,
		"stranger":       uuid.New(),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), a, CreateInput{UserID: userID, Name: "X"})
			assert.ErrorIs(t, err, ErrNotTeaching)
		})
	}

	_, err = svc.Create(context.Background(), a, CreateInput{UserID: teacher, Name: "Again"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestInstructorsAreTenantScoped(t *testing.T) {
	tenantA, tenantB := uuid.New(), uuid.New()
	other := Instructor{ID: uuid.New(), TenantID: tenantB, UserID: uuid.New(), Name: "Other", Status: StatusActive}
	svc := NewService(newMemRepo(other), staffTable{})
	a := actor(tenantA, rbac.RoleAdmin)

	_, err := svc.Get(context.Background(), a, other.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Delete(context.Background(), a, other.ID), ErrNotFound)

	items, page, err := svc.List(context.Background(), a, "", "", shared.PageRequest{Page: 1, PerPage: 20})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, 0, page.Total)
}

func TestUpdateRejectsEmptyAndBadStatus(t *testing.T) {
	tenantID := uuid.New()
	in := Instructor{ID: uuid.New(), TenantID: tenantID, UserID: uuid.New(), Name: "Bora", Status: StatusActive}
	svc := NewService(newMemRepo(in), staffTable{})
	a := actor(tenantID, rbac.RoleAdmin)

	_, err := svc.Update(context.Background(), a, in.ID, UpdateInput{})
	assert.ErrorIs(t, err, ErrEmptyUpdate)

	bad := Status("retired")
	_, err = svc.Update(context.Background(), a, in.ID, UpdateInput{Status: &bad})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	inactive := StatusInactive
	updated, err := svc.Update(context.Background(), a, in.ID, UpdateInput{Status: &inactive, Name: strPtr(" Bora Choi ")})
	require.NoError(t, err)
	assert.Equal(t, StatusInactive, updated.Status)
	assert.Equal(t, "Bora Choi", updated.Name)

	_, _, err = svc.List(context.Background(), a, "", Status("retired"), shared.PageRequest{Page: 1, PerPage: 20})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}
