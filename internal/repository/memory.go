package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"catalogsync-api/internal/model"
)

type memoryRow struct {
	rec model.ProductRecord
	seq uint64
}

type memoryState struct {
	rows map[string]memoryRow
	next uint64
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{rows: make(map[string]memoryRow, len(s.rows)), next: s.next}
	for k, v := range s.rows {
		c.rows[k] = v
	}
	return c
}

// MemoryProductRepository is a map-backed ProductRepository for development
// and tests. Transactions work on a copy that replaces the live state on commit.
type MemoryProductRepository struct {
	// wmu serializes writers, including whole transactions.
	wmu   sync.Mutex
	mu    sync.RWMutex
	state *memoryState
	inTx  bool
}

// NewMemoryProductRepository creates an empty in-memory catalog.
func NewMemoryProductRepository() *MemoryProductRepository {
	return &MemoryProductRepository{state: &memoryState{rows: make(map[string]memoryRow)}}
}

func (r *MemoryProductRepository) write(fn func(s *memoryState)) {
	r.wmu.Lock()
	defer r.wmu.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.state)
}

func (r *MemoryProductRepository) Upsert(ctx context.Context, rec model.ProductRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("failed to upsert product: empty id")
	}
	r.write(func(s *memoryState) {
		row, ok := s.rows[rec.ID]
		if !ok {
			s.next++
			row.seq = s.next
		}
		row.rec = rec
		s.rows[rec.ID] = row
	})
	return nil
}

func (r *MemoryProductRepository) Exists(ctx context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.state.rows[id]
	return ok, nil
}

func (r *MemoryProductRepository) DeleteByID(ctx context.Context, id string) error {
	r.write(func(s *memoryState) {
		delete(s.rows, id)
	})
	return nil
}

func (r *MemoryProductRepository) FindByID(ctx context.Context, id string) (*model.ProductRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.state.rows[id]
	if !ok {
		return nil, nil
	}
	rec := row.rec
	return &rec, nil
}

// sorted returns rows oldest first.
func (r *MemoryProductRepository) sorted() []memoryRow {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rows := make([]memoryRow, 0, len(r.state.rows))
	for _, row := range r.state.rows {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	return rows
}

func (r *MemoryProductRepository) FindAllExcluding(ctx context.Context, ids []string) ([]model.ProductRecord, error) {
	exclude := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		exclude[id] = struct{}{}
	}
	missing := []model.ProductRecord{}
	for _, row := range r.sorted() {
		if _, ok := exclude[row.rec.ID]; !ok {
			missing = append(missing, row.rec)
		}
	}
	return missing, nil
}

func (r *MemoryProductRepository) ListPage(ctx context.Context, perPage, page int) (*model.ProductPage, error) {
	rows := r.sorted()
	total := int64(len(rows))

	products := []model.ProductRecord{}
	start := (page - 1) * perPage
	for i := len(rows) - 1 - start; i >= 0 && len(products) < perPage; i-- {
		products = append(products, rows[i].rec)
	}

	totalPages := model.TotalPages(total, perPage)
	return &model.ProductPage{
		Products:        products,
		CurrentPage:     page,
		TotalPages:      totalPages,
		PerPage:         perPage,
		Total:           total,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}, nil
}

func (r *MemoryProductRepository) WithinTx(ctx context.Context, fn func(tx ProductRepository) error) error {
	if r.inTx {
		return fn(r)
	}

	r.wmu.Lock()
	defer r.wmu.Unlock()

	r.mu.RLock()
	working := r.state.clone()
	r.mu.RUnlock()

	if err := fn(&MemoryProductRepository{state: working, inTx: true}); err != nil {
		return err
	}

	r.mu.Lock()
	r.state = working
	r.mu.Unlock()
	return nil
}

func (r *MemoryProductRepository) GetStats(ctx context.Context) (map[string]interface{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return map[string]interface{}{
		"dialect":        "memory",
		"total_products": int64(len(r.state.rows)),
	}, nil
}

// Ensure MemoryProductRepository implements ProductRepository
var _ ProductRepository = (*MemoryProductRepository)(nil)

// MemoryAuditRepository keeps the audit trail in a slice.
type MemoryAuditRepository struct {
	mu     sync.RWMutex
	events []model.AuditEvent
}

// NewMemoryAuditRepository creates an empty in-memory audit trail.
func NewMemoryAuditRepository() *MemoryAuditRepository {
	return &MemoryAuditRepository{}
}

func (r *MemoryAuditRepository) InsertAuditEvent(ctx context.Context, ev *model.AuditEvent) error {
	auditOccurredAt(ev)
	r.mu.Lock()
	defer r.mu.Unlock()
	ev.ID = int64(len(r.events) + 1)
	r.events = append(r.events, *ev)
	return nil
}

func (r *MemoryAuditRepository) InsertAuditEvents(ctx context.Context, events []model.AuditEvent) error {
	for i := range events {
		if err := r.InsertAuditEvent(ctx, &events[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *MemoryAuditRepository) ListAuditEvents(ctx context.Context, perPage, page int) (*model.AuditLogPage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := int64(len(r.events))
	items := []model.AuditEvent{}
	start := (page - 1) * perPage
	for i := len(r.events) - 1 - start; i >= 0 && len(items) < perPage; i-- {
		items = append(items, r.events[i])
	}

	totalPages := model.TotalPages(total, perPage)
	return &model.AuditLogPage{
		Items:           items,
		CurrentPage:     page,
		TotalPages:      totalPages,
		PerPage:         perPage,
		Total:           total,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}, nil
}

// Events returns a copy of every stored event, oldest first.
func (r *MemoryAuditRepository) Events() []model.AuditEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.AuditEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Ensure MemoryAuditRepository implements AuditRepository
var _ AuditRepository = (*MemoryAuditRepository)(nil)
