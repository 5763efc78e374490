// Package remotetest provides an in-memory remote catalog for tests.
package remotetest

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"catalogsync-api/internal/model"

	"github.com/shopspring/decimal"
)

// Operation names accepted by FailOn and Calls.
const (
	OpFetch  = "fetch"
	OpList   = "list"
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Catalog is a fake remote catalog. Listing returns products in insertion
// order and uses the index of the next item as the cursor.
type Catalog struct {
	mu       sync.Mutex
	products map[string]model.ProductRecord
	order    []string
	nextID   int

	calls     map[string]int
	failures  map[string]error
	failIDs   map[string]error
	rejectDel map[string]bool
	stuck     string
}

// New creates an empty fake catalog.
func New() *Catalog {
	return &Catalog{
		products:  make(map[string]model.ProductRecord),
		calls:     make(map[string]int),
		failures:  make(map[string]error),
		failIDs:   make(map[string]error),
		rejectDel: make(map[string]bool),
		nextID:    1000,
	}
}

// Put adds or replaces recs.
func (c *Catalog) Put(recs ...model.ProductRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rec := range recs {
		if _, ok := c.products[rec.ID]; !ok {
			c.order = append(c.order, rec.ID)
		}
		c.products[rec.ID] = rec
	}
}

// Get returns the stored product with id.
func (c *Catalog) Get(id string) (model.ProductRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.products[id]
	return rec, ok
}

// Len returns the number of stored products.
func (c *Catalog) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.products)
}

// FailOn makes every call of op return err. A nil err clears the failure.
func (c *Catalog) FailOn(op string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.failures, op)
		return
	}
	c.failures[op] = err
}

// FailID makes fetch, update and delete calls for id return err.
func (c *Catalog) FailID(id string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failIDs[id] = err
}

// RejectDelete makes Delete of id report platform userErrors.
func (c *Catalog) RejectDelete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rejectDel[id] = true
}

// StickCursor makes List always report more pages and return cursor, as a
// misbehaving platform would.
func (c *Catalog) StickCursor(cursor string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stuck = cursor
}

// Calls returns how many times op was invoked.
func (c *Catalog) Calls(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op]
}

// TotalCalls returns the number of calls across all operations.
func (c *Catalog) TotalCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.calls {
		n += v
	}
	return n
}

func (c *Catalog) enter(op, id string) error {
	c.calls[op]++
	if err := c.failures[op]; err != nil {
		return err
	}
	if id != "" && op != OpCreate && op != OpList {
		if err := c.failIDs[id]; err != nil {
			return err
		}
	}
	return nil
}

func (c *Catalog) FetchByID(ctx context.Context, id string) (*model.ProductRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter(OpFetch, id); err != nil {
		return nil, err
	}
	rec, ok := c.products[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (c *Catalog) List(ctx context.Context, pageSize int, cursor string) (*model.RemotePage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter(OpList, ""); err != nil {
		return nil, err
	}

	start := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil && c.stuck == "" {
			return nil, fmt.Errorf("bad cursor %q", cursor)
		}
		start = n
	}

	page := &model.RemotePage{Items: []model.ProductRecord{}}
	i := start
	for ; i < len(c.order) && len(page.Items) < pageSize; i++ {
		page.Items = append(page.Items, c.products[c.order[i]])
	}
	page.HasNextPage = i < len(c.order)
	page.Cursor = strconv.Itoa(i)
	if c.stuck != "" {
		page.HasNextPage = true
		page.Cursor = c.stuck
	}
	return page, nil
}

func (c *Catalog) Create(ctx context.Context, title string, price decimal.Decimal, description string, quantity int) (*model.ProductRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter(OpCreate, ""); err != nil {
		return nil, err
	}
	c.nextID++
	id := fmt.Sprintf("gid://shopify/Product/%d", c.nextID)
	rec := model.ProductRecord{
		ID:                id,
		Title:             title,
		Description:       description,
		Price:             price,
		InventoryQuantity: quantity,
		VariantID:         model.StringPtr(fmt.Sprintf("gid://shopify/ProductVariant/%d", c.nextID)),
		InventoryItemID:   model.StringPtr(fmt.Sprintf("gid://shopify/InventoryItem/%d", c.nextID)),
	}
	c.products[id] = rec
	c.order = append(c.order, id)
	return &rec, nil
}

func (c *Catalog) Update(ctx context.Context, id, title, description string, price decimal.Decimal) (*model.ProductRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter(OpUpdate, id); err != nil {
		return nil, err
	}
	rec, ok := c.products[id]
	if !ok {
		return nil, nil
	}
	if title != "" {
		rec.Title = title
	}
	rec.Description = description
	rec.Price = price
	c.products[id] = rec
	return &rec, nil
}

func (c *Catalog) Delete(ctx context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter(OpDelete, id); err != nil {
		return false, err
	}
	if c.rejectDel[id] {
		return false, nil
	}
	delete(c.products, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true, nil
}

// IDs returns the stored ids in sorted order.
func (c *Catalog) IDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.products))
	for id := range c.products {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
