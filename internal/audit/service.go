package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lehine87/educanvas/internal/platform/httpx"
	"github.com/lehine87/educanvas/internal/shared"
)

// maxExportRows bounds a single CSV export.
const maxExportRows = 5000

// ErrInvalidRisk reports an unknown risk filter.
var ErrInvalidRisk = fmt.Errorf("audit: %w: unknown risk level", httpx.ErrValidation)

// Repository is the storage the service reads from.
type Repository interface {
	List(ctx context.Context, f TimelineFilters) ([]Record, int, error)
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// Result bundles one page of records.
type Result struct {
	Rows   []Record
	Paging shared.Pagination
}

// Service reads and maintains the audit trail.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds an audit service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Timeline returns one page of records for the filter's tenant.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters, page shared.PageRequest) (Result, error) {
	if s.repo == nil {
		return Result{}, errors.New("audit: repository not configured")
	}
	if filters.Risk != "" && !filters.Risk.Valid() {
		return Result{}, ErrInvalidRisk
	}
	filters.Limit = page.PerPage
	filters.Offset = page.Offset()
	rows, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return Result{}, err
	}
	return Result{Rows: rows, Paging: shared.NewPagination(page.Page, page.PerPage, total)}, nil
}

// Export returns up to maxExportRows records without paging.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]Record, error) {
	if s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	if filters.Risk != "" && !filters.Risk.Valid() {
		return nil, ErrInvalidRisk
	}
	filters.Limit = maxExportRows
	filters.Offset = 0
	rows, _, err := s.repo.List(ctx, filters)
	return rows, err
}

// Prune removes records older than retention.
func (s *Service) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	return s.repo.Prune(ctx, s.now().UTC().Add(-retention))
}
