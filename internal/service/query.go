package service

import (
	"context"

	"catalogsync-api/internal/model"
	"catalogsync-api/internal/repository"
)

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// QueryService serves read-only views of the local catalog and the audit trail.
type QueryService struct {
	products repository.ProductRepository
	audits   repository.AuditRepository
}

// NewQueryService creates a query service. audits may be nil when the audit
// store cannot be read back.
func NewQueryService(products repository.ProductRepository, audits repository.AuditRepository) *QueryService {
	return &QueryService{products: products, audits: audits}
}

// normalizePage clamps perPage to [1, MaxPerPage] and page to >= 1.
// Zero values fall back to the defaults.
func normalizePage(perPage, page int) (int, int) {
	if perPage == 0 {
		perPage = DefaultPerPage
	}
	if perPage < 1 {
		perPage = 1
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	if page < 1 {
		page = 1
	}
	return perPage, page
}

// AllProducts returns one page of local products, newest first.
func (s *QueryService) AllProducts(ctx context.Context, perPage, page int) (*model.ProductPage, error) {
	perPage, page = normalizePage(perPage, page)
	result, err := s.products.ListPage(ctx, perPage, page)
	if err != nil {
		return nil, model.NewOperationError(err, "Error while listing products")
	}
	return result, nil
}

// Product returns the local product with id.
func (s *QueryService) Product(ctx context.Context, id string) (*model.ProductRecord, error) {
	rec, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, model.NewOperationError(err, "Error while loading product %s", id)
	}
	if rec == nil {
		return nil, model.NewOperationError(model.ErrNotFound, "Product not found")
	}
	return rec, nil
}

// AuditLogs returns one page of the audit trail, newest first.
func (s *QueryService) AuditLogs(ctx context.Context, perPage, page int) (*model.AuditLogPage, error) {
	perPage, page = normalizePage(perPage, page)
	if s.audits == nil {
		return &model.AuditLogPage{Items: []model.AuditEvent{}, CurrentPage: page, TotalPages: 1, PerPage: perPage}, nil
	}
	result, err := s.audits.ListAuditEvents(ctx, perPage, page)
	if err != nil {
		return nil, model.NewOperationError(err, "Error while listing audit logs")
	}
	return result, nil
}
