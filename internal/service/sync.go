package service

import (
	"context"
	"fmt"
	"log/slog"

	"catalogsync-api/internal/metrics"
	"catalogsync-api/internal/model"
	"catalogsync-api/internal/obs"
	"catalogsync-api/internal/repository"
)

const (
	// BulkSyncLimit is the maximum number of ids one bulk sync processes.
	BulkSyncLimit = 10
	// SyncAllPageSize is the page size used to walk the remote catalog.
	SyncAllPageSize = 50
)

const (
	msgNotRemote      = "Product does not exist remotely"
	msgSynced         = "Product successfully synced"
	msgBulkAllOK      = "All products synced successfully."
	msgBulkSomeFailed = "Sync completed with some errors."
	msgCatalogEmpty   = "Product list is empty"
	msgOrphansFound   = "Sync completed: Local database has items not present on Shopify."
	msgInSync         = "Database is perfectly in sync with Shopify."
)

// SyncService keeps the local catalog consistent with the remote one.
// The remote catalog is authoritative; local writes always follow remote reads.
type SyncService struct {
	remote   RemoteCatalog
	products repository.ProductRepository
	audit    AuditSink
	log      *slog.Logger
}

// NewSyncService creates a sync service. A nil sink discards audit events.
func NewSyncService(remote RemoteCatalog, products repository.ProductRepository, sink AuditSink) *SyncService {
	return &SyncService{
		remote:   remote,
		products: products,
		audit:    sinkOrDiscard(sink),
		log:      obs.Logger.With("component", "sync"),
	}
}

// SyncOne copies the remote product with id into the local catalog.
// A product missing remotely is reported in the outcome, not as an error.
func (s *SyncService) SyncOne(ctx context.Context, id string) (*model.SyncOutcome, error) {
	rec, err := s.remote.FetchByID(ctx, id)
	if err != nil {
		s.log.Error("sync one: remote fetch failed", "op", "sync_one", "product_id", id, "error", err)
		return nil, model.NewOperationError(err, "Error while syncing product %s", id)
	}
	if rec == nil {
		return &model.SyncOutcome{Message: msgNotRemote, FailedIdentifiers: []string{}}, nil
	}

	if err := s.products.Upsert(ctx, *rec); err != nil {
		s.log.Error("sync one: local upsert failed", "op", "sync_one", "product_id", id, "error", err)
		metrics.RecordSyncItem("sync_one", false)
		return nil, model.NewOperationError(err, "Error while syncing product %s", id)
	}
	metrics.RecordSyncItem("sync_one", true)

	s.audit.Record(model.NewProductEvent(model.ActionSync, rec.ID, payload(map[string]interface{}{
		"message":      msgSynced,
		"synced_count": 1,
	})))

	return &model.SyncOutcome{Message: msgSynced, SyncedCount: 1, FailedIdentifiers: []string{}}, nil
}

// SyncLocalToRemote pushes a local product to the remote catalog, creating it
// there when missing, then replaces the local row with the remote version.
// Remote calls finish before the local transaction starts. A remote product
// created here is not removed if the local transaction fails; SyncAll picks
// it up on its next run.
func (s *SyncService) SyncLocalToRemote(ctx context.Context, id string) (*model.LifecycleResult, error) {
	log := s.log.With("op", "sync_local_to_remote", "product_id", id)

	local, err := s.products.FindByID(ctx, id)
	if err != nil {
		log.Error("local lookup failed", "error", err)
		return nil, model.NewOperationError(err, "Error while syncing product %s", id)
	}
	if local == nil {
		return nil, model.NewOperationError(model.ErrNotFound, "Product not found")
	}

	remote, err := s.remote.FetchByID(ctx, id)
	if err != nil {
		log.Error("remote lookup failed", "error", err)
		return nil, model.NewOperationError(err, "Error while syncing product %s", id)
	}

	remoteID := id
	if remote == nil {
		created, err := s.remote.Create(ctx, local.Title, local.Price, local.Description, local.InventoryQuantity)
		if err == nil && created == nil {
			err = errNoCreatedProduct
		}
		if err != nil {
			log.Error("remote create failed", "error", err)
			return nil, model.NewOperationError(err, "Error while syncing product %s", id)
		}
		remoteID = created.ID
		log.Info("created missing remote product", "remote_id", remoteID)
	}

	fetched, err := s.remote.FetchByID(ctx, remoteID)
	if err == nil && fetched == nil {
		err = fmt.Errorf("remote product %s vanished after sync", remoteID)
	}
	if err != nil {
		log.Error("remote re-fetch failed", "remote_id", remoteID, "error", err)
		return nil, model.NewOperationError(err, "Error while syncing product %s", id)
	}

	err = s.products.WithinTx(ctx, func(tx repository.ProductRepository) error {
		if err := tx.DeleteByID(ctx, id); err != nil {
			return err
		}
		return tx.Upsert(ctx, *fetched)
	})
	if err != nil {
		log.Error("local replace failed", "remote_id", remoteID, "error", err)
		metrics.RecordSyncItem("sync_local_to_remote", false)
		return nil, model.NewOperationError(err, "Error while syncing product %s", id)
	}
	metrics.RecordSyncItem("sync_local_to_remote", true)

	s.audit.Record(model.NewProductEvent(model.ActionSync, fetched.ID, payload(map[string]interface{}{
		"message":     msgSynced,
		"previous_id": id,
	})))

	return &model.LifecycleResult{Message: msgSynced, Product: fetched}, nil
}

// BulkSync runs SyncLocalToRemote for the first BulkSyncLimit ids, in order.
// A failing id is recorded and the batch continues.
func (s *SyncService) BulkSync(ctx context.Context, ids []string) *model.SyncOutcome {
	if len(ids) > BulkSyncLimit {
		s.log.Warn("bulk sync truncated", "requested", len(ids), "limit", BulkSyncLimit)
		ids = ids[:BulkSyncLimit]
	}

	out := &model.SyncOutcome{FailedIdentifiers: []string{}}
	for _, id := range ids {
		if _, err := s.SyncLocalToRemote(ctx, id); err != nil {
			s.log.Error("bulk sync item failed", "op", "bulk_sync", "product_id", id, "error", err)
			out.FailedIdentifiers = append(out.FailedIdentifiers, id)
			continue
		}
		out.SyncedCount++
	}

	out.Message = msgBulkAllOK
	if len(out.FailedIdentifiers) > 0 {
		out.Message = msgBulkSomeFailed
	}
	return out
}

// SyncAll walks the whole remote catalog, upserting every product, and reports
// local products the remote catalog does not have. Orphans are never deleted.
func (s *SyncService) SyncAll(ctx context.Context) (*model.SyncOutcome, error) {
	log := s.log.With("op", "sync_all")

	out := &model.SyncOutcome{FailedIdentifiers: []string{}}
	var remoteIDs []string
	cursor := ""

	for {
		page, err := s.remote.List(ctx, SyncAllPageSize, cursor)
		if err != nil {
			log.Error("remote listing failed", "cursor", cursor, "error", err)
			return nil, model.NewOperationError(err, "Error while syncing products from Shopify")
		}
		if len(page.Items) == 0 {
			break
		}

		for _, rec := range page.Items {
			remoteIDs = append(remoteIDs, rec.ID)
			if err := s.products.Upsert(ctx, rec); err != nil {
				log.Error("local upsert failed", "product_id", rec.ID, "error", err)
				metrics.RecordSyncItem("sync_all", false)
				out.FailedIdentifiers = append(out.FailedIdentifiers, rec.ID)
				continue
			}
			metrics.RecordSyncItem("sync_all", true)
			out.SyncedCount++
		}

		if !page.HasNextPage {
			break
		}
		if page.Cursor == "" || page.Cursor == cursor {
			log.Warn("remote cursor did not advance, stopping", "cursor", page.Cursor)
			break
		}
		cursor = page.Cursor
	}

	if len(remoteIDs) == 0 {
		out.Message = msgCatalogEmpty
		return out, nil
	}

	orphans, err := s.products.FindAllExcluding(ctx, remoteIDs)
	if err != nil {
		log.Error("orphan lookup failed", "error", err)
		return nil, model.NewOperationError(err, "Error while syncing products from Shopify")
	}
	out.OrphanedLocalRecords = orphans

	switch {
	case len(out.FailedIdentifiers) > 0:
		out.Message = msgBulkSomeFailed
	case len(orphans) > 0:
		out.Message = msgOrphansFound
	default:
		out.Message = msgInSync
	}

	s.audit.Record(model.NewSystemEvent(model.ActionSync, payload(map[string]interface{}{
		"message":      fmt.Sprintf("%d products synced successfully", out.SyncedCount),
		"synced_count": out.SyncedCount,
		"failed_count": len(out.FailedIdentifiers),
		"orphan_count": len(orphans),
	})))

	log.Info("sync all finished", "synced", out.SyncedCount, "failed", len(out.FailedIdentifiers), "orphans", len(orphans))
	return out, nil
}
