package service

import (
	"context"
	"fmt"
	"log/slog"

	"catalogsync-api/internal/model"
	"catalogsync-api/internal/obs"
	"catalogsync-api/internal/repository"

	"github.com/shopspring/decimal"
)

const (
	msgCreated = "Product successfully created"
	msgUpdated = "Product successfully updated"
	msgDeleted = "Product successfully deleted"
)

// ProductService creates, updates and deletes products in both catalogs.
// The remote catalog is always written first and the local one mirrors it.
type ProductService struct {
	remote   RemoteCatalog
	products repository.ProductRepository
	sync     *SyncService
	audit    AuditSink
	log      *slog.Logger
}

// NewProductService creates a product service on top of sync.
func NewProductService(remote RemoteCatalog, products repository.ProductRepository, sync *SyncService, sink AuditSink) *ProductService {
	return &ProductService{
		remote:   remote,
		products: products,
		sync:     sync,
		audit:    sinkOrDiscard(sink),
		log:      obs.Logger.With("component", "product"),
	}
}

// CreateInput holds the fields of a new product.
type CreateInput struct {
	Title       string
	Price       decimal.Decimal
	Description string
	Quantity    int
}

// UpdateInput holds the editable fields of an existing product.
type UpdateInput struct {
	Title       string
	Description string
	Price       decimal.Decimal
}

// Create validates in, creates the product remotely and mirrors it locally.
func (s *ProductService) Create(ctx context.Context, in CreateInput) (*model.LifecycleResult, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	rec, err := s.create(ctx, in)
	if err != nil {
		s.log.Error("create failed", "op", "create", "title", in.Title, "error", err)
		target := ""
		if rec != nil {
			target = rec.ID
		}
		s.audit.Record(failedEvent(model.ActionCreate, target, map[string]interface{}{
			"message": "Error while creating product",
			"title":   in.Title,
			"error":   err.Error(),
		}))
		return nil, model.NewOperationError(err, "Error while creating product %s", in.Title)
	}

	s.audit.Record(model.NewProductEvent(model.ActionCreate, rec.ID, payload(map[string]interface{}{
		"message": msgCreated,
		"title":   rec.Title,
	})))
	return &model.LifecycleResult{Message: msgCreated, Product: rec}, nil
}

// create runs the remote-then-local sequence. It returns the remote record
// alongside an error once the remote product exists.
func (s *ProductService) create(ctx context.Context, in CreateInput) (*model.ProductRecord, error) {
	rec, err := s.remote.Create(ctx, in.Title, in.Price, in.Description, in.Quantity)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errNoCreatedProduct
	}
	out, err := s.sync.SyncOne(ctx, rec.ID)
	if err != nil {
		return rec, err
	}
	if out.SyncedCount == 0 {
		return rec, fmt.Errorf("created product %s is not visible remotely", rec.ID)
	}
	return rec, nil
}

// Update changes a product remotely and re-syncs it locally. A product missing
// remotely is reported in the result, and is checked before the input is validated.
func (s *ProductService) Update(ctx context.Context, id string, in UpdateInput) (*model.LifecycleResult, error) {
	log := s.log.With("op", "update", "product_id", id)

	current, err := s.remote.FetchByID(ctx, id)
	if err != nil {
		log.Error("remote lookup failed", "error", err)
		return nil, model.NewOperationError(err, "Error while updating product %s", id)
	}
	if current == nil {
		return &model.LifecycleResult{Message: msgNotRemote}, nil
	}

	if err := validateUpdate(in); err != nil {
		return nil, err
	}

	fail := func(err error) (*model.LifecycleResult, error) {
		log.Error("update failed", "error", err)
		s.audit.Record(failedEvent(model.ActionUpdate, id, map[string]interface{}{
			"message": "Error while updating product",
			"error":   err.Error(),
		}))
		return nil, model.NewOperationError(err, "Error while updating product %s", id)
	}

	updated, err := s.remote.Update(ctx, id, in.Title, in.Description, in.Price)
	if err != nil {
		return fail(err)
	}
	if updated == nil {
		return &model.LifecycleResult{Message: msgNotRemote}, nil
	}
	if _, err := s.sync.SyncOne(ctx, id); err != nil {
		return fail(err)
	}

	s.audit.Record(model.NewProductEvent(model.ActionUpdate, id, payload(map[string]interface{}{
		"message": msgUpdated,
		"title":   updated.Title,
		"price":   updated.Price.String(),
	})))
	return &model.LifecycleResult{Message: msgUpdated, Product: updated}, nil
}

// DeleteEverywhere deletes the product remotely, when present, and then locally.
// It returns false when the remote platform rejects the deletion; the local
// row is left untouched in that case.
func (s *ProductService) DeleteEverywhere(ctx context.Context, id string) (bool, error) {
	log := s.log.With("op", "delete", "product_id", id)

	fail := func(err error) (bool, error) {
		log.Error("delete failed", "error", err)
		s.audit.Record(failedEvent(model.ActionDelete, id, map[string]interface{}{
			"message": "Error while deleting product",
			"error":   err.Error(),
		}))
		return false, model.NewOperationError(err, "Error while deleting product %s", id)
	}

	remote, err := s.remote.FetchByID(ctx, id)
	if err != nil {
		return fail(err)
	}
	if remote != nil {
		ok, err := s.remote.Delete(ctx, id)
		if err != nil {
			return fail(err)
		}
		if !ok {
			log.Warn("remote rejected deletion, local row kept")
			return false, nil
		}
	}

	exists, err := s.products.Exists(ctx, id)
	if err != nil {
		return fail(err)
	}
	if exists {
		if err := s.products.DeleteByID(ctx, id); err != nil {
			return fail(err)
		}
	}

	s.audit.Record(model.NewProductEvent(model.ActionDelete, id, payload(map[string]interface{}{
		"message": msgDeleted,
		"remote":  remote != nil,
		"local":   exists,
	})))
	return true, nil
}

// DeleteLocalOnly removes the local row and leaves the remote product alone.
// It returns false when there is no local row.
func (s *ProductService) DeleteLocalOnly(ctx context.Context, id string) (bool, error) {
	exists, err := s.products.Exists(ctx, id)
	if err != nil {
		s.log.Error("local lookup failed", "op", "delete_local", "product_id", id, "error", err)
		return false, model.NewOperationError(err, "Error while deleting product %s", id)
	}
	if !exists {
		return false, nil
	}
	if err := s.products.DeleteByID(ctx, id); err != nil {
		s.log.Error("local delete failed", "op", "delete_local", "product_id", id, "error", err)
		return false, model.NewOperationError(err, "Error while deleting product %s", id)
	}

	s.audit.Record(model.NewProductEvent(model.ActionDelete, id, payload(map[string]interface{}{
		"message": msgDeleted,
		"local":   true,
	})))
	return true, nil
}
