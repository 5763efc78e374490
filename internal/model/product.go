package model

import "github.com/shopspring/decimal"

// ProductRecord is the canonical product representation shared by the local
// store, the remote client and callers. ID is the remote platform identifier
// and is the only key used locally.
type ProductRecord struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	Description       string          `json:"description"`
	Price             decimal.Decimal `json:"price"`
	InventoryQuantity int             `json:"inventory_quantity"`
	VariantID         *string         `json:"variant_id,omitempty"`
	InventoryItemID   *string         `json:"inventory_item_id,omitempty"`
}

// RemotePage is one page of the remote catalog listing.
type RemotePage struct {
	Items       []ProductRecord
	HasNextPage bool
	Cursor      string
}

// ProductPage is a page of the local catalog.
type ProductPage struct {
	Products        []ProductRecord `json:"products"`
	CurrentPage     int             `json:"current_page"`
	TotalPages      int             `json:"total_pages"`
	PerPage         int             `json:"per_page"`
	Total           int64           `json:"total"`
	HasNextPage     bool            `json:"has_next_page"`
	HasPreviousPage bool            `json:"has_previous_page"`
}

// SyncOutcome is the result of a sync operation. FailedIdentifiers lists ids
// that failed during the operation; OrphanedLocalRecords is only filled by a
// full reconciliation and holds local records the remote catalog does not have.
type SyncOutcome struct {
	Message              string          `json:"message"`
	SyncedCount          int             `json:"synced_count"`
	FailedIdentifiers    []string        `json:"failed_identifiers"`
	OrphanedLocalRecords []ProductRecord `json:"orphaned_local_records,omitempty"`
}

// LifecycleResult is returned by create, update and local-to-remote sync.
type LifecycleResult struct {
	Message string         `json:"message"`
	Product *ProductRecord `json:"product"`
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// TotalPages computes the page count for total items at perPage, never below 1.
func TotalPages(total int64, perPage int) int {
	if perPage <= 0 || total <= 0 {
		return 1
	}
	pages := int((total + int64(perPage) - 1) / int64(perPage))
	if pages < 1 {
		return 1
	}
	return pages
}
