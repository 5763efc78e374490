package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"catalogsync-api/internal/model"
	"catalogsync-api/internal/remote/remotetest"
	"catalogsync-api/internal/repository"

	"github.com/shopspring/decimal"
)

type recordingSink struct {
	mu     sync.Mutex
	events []model.AuditEvent
}

func (s *recordingSink) Record(ev model.AuditEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return true
}

func (s *recordingSink) byAction(action model.AuditAction) []model.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.AuditEvent
	for _, ev := range s.events {
		if ev.Action == action {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	remote   *remotetest.Catalog
	products *repository.MemoryProductRepository
	sink     *recordingSink
	sync     *SyncService
	product  *ProductService
}

func newFixture() *fixture {
	f := &fixture{
		remote:   remotetest.New(),
		products: repository.NewMemoryProductRepository(),
		sink:     &recordingSink{},
	}
	f.sync = NewSyncService(f.remote, f.products, f.sink)
	f.product = NewProductService(f.remote, f.products, f.sync, f.sink)
	return f
}

func product(id, title string) model.ProductRecord {
	return model.ProductRecord{
		ID:                id,
		Title:             title,
		Description:       "about " + title,
		Price:             decimal.RequireFromString("9.99"),
		InventoryQuantity: 5,
		VariantID:         model.StringPtr(id + "/variant"),
	}
}

func localIDs(t *testing.T, repo repository.ProductRepository) []string {
	t.Helper()
	recs, err := repo.FindAllExcluding(context.Background(), nil)
	if err != nil {
		t.Fatalf("list local: %v", err)
	}
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	return ids
}

func TestSyncOneIsIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.remote.Put(product("gid://shopify/Product/1", "Mug"))

	for i := 0; i < 2; i++ {
		out, err := f.sync.SyncOne(ctx, "gid://shopify/Product/1")
		if err != nil {
			t.Fatalf("sync one: %v", err)
		}
		if out.SyncedCount != 1 {
			t.Fatalf("run %d: synced %d", i, out.SyncedCount)
		}
	}
	got, _ := f.products.FindByID(ctx, "gid://shopify/Product/1")
	if got == nil || got.Title != "Mug" {
		t.Fatalf("unexpected local record: %+v", got)
	}
	if ids := localIDs(t, f.products); len(ids) != 1 {
		t.Fatalf("expected one local row, got %v", ids)
	}
	events := f.sink.byAction(model.ActionSync)
	if len(events) != 2 || events[0].SubjectType != model.SubjectProduct {
		t.Fatalf("expected two product sync events, got %+v", events)
	}
}

func TestSyncOneMissingRemote(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_ = f.products.Upsert(ctx, product("gone", "Old"))

	out, err := f.sync.SyncOne(ctx, "gone")
	if err != nil {
		t.Fatalf("sync one: %v", err)
	}
	if out.SyncedCount != 0 || !strings.Contains(out.Message, "does not exist remotely") {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if ok, _ := f.products.Exists(ctx, "gone"); !ok {
		t.Fatalf("local row must be left untouched")
	}
	if len(f.sink.events) != 0 {
		t.Fatalf("no audit event expected")
	}
}

func TestSyncOneRemoteFailureIsCoarse(t *testing.T) {
	f := newFixture()
	f.remote.FailOn(remotetest.OpFetch, errors.New("connection reset by peer"))

	_, err := f.sync.SyncOne(context.Background(), "p1")
	var opErr *model.OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got %v", err)
	}
	if strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("cause leaked into message: %s", err)
	}
}

func TestSyncLocalToRemoteCreatesMissingRemote(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_ = f.products.Upsert(ctx, product("local-1", "Lamp"))

	res, err := f.sync.SyncLocalToRemote(ctx, "local-1")
	if err != nil {
		t.Fatalf("sync local to remote: %v", err)
	}
	if res.Product == nil || res.Product.ID == "local-1" {
		t.Fatalf("expected a new remote id, got %+v", res.Product)
	}
	ids := localIDs(t, f.products)
	if len(ids) != 1 || ids[0] != res.Product.ID {
		t.Fatalf("local row should be re-keyed to %s, got %v", res.Product.ID, ids)
	}
	if f.remote.Calls(remotetest.OpCreate) != 1 {
		t.Fatalf("expected one remote create")
	}
	events := f.sink.byAction(model.ActionSync)
	if len(events) != 1 || *events[0].Target != res.Product.ID {
		t.Fatalf("unexpected sync events: %+v", events)
	}
}

func TestSyncLocalToRemoteExistingRemote(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	remote := product("gid://shopify/Product/7", "Remote Title")
	f.remote.Put(remote)
	stale := product("gid://shopify/Product/7", "Stale Title")
	_ = f.products.Upsert(ctx, stale)

	res, err := f.sync.SyncLocalToRemote(ctx, "gid://shopify/Product/7")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if res.Product.Title != "Remote Title" || f.remote.Calls(remotetest.OpCreate) != 0 {
		t.Fatalf("expected remote version without create, got %+v", res.Product)
	}
	got, _ := f.products.FindByID(ctx, "gid://shopify/Product/7")
	if got.Title != "Remote Title" {
		t.Fatalf("local not refreshed: %+v", got)
	}
}

func TestSyncLocalToRemoteNotFound(t *testing.T) {
	f := newFixture()
	_, err := f.sync.SyncLocalToRemote(context.Background(), "missing")
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if f.remote.TotalCalls() != 0 {
		t.Fatalf("remote must not be called for a missing local row")
	}
}

type failingUpsertRepo struct {
	repository.ProductRepository
	failID string
}

func (r failingUpsertRepo) Upsert(ctx context.Context, rec model.ProductRecord) error {
	if rec.ID == r.failID {
		return errors.New("disk full")
	}
	return r.ProductRepository.Upsert(ctx, rec)
}

func (r failingUpsertRepo) WithinTx(ctx context.Context, fn func(tx repository.ProductRepository) error) error {
	return r.ProductRepository.WithinTx(ctx, func(tx repository.ProductRepository) error {
		return fn(failingUpsertRepo{ProductRepository: tx, failID: r.failID})
	})
}

func TestSyncLocalToRemoteRollsBackLocalChanges(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.remote.Put(product("p1", "Remote"))
	_ = f.products.Upsert(ctx, product("p1", "Local"))

	repo := failingUpsertRepo{ProductRepository: f.products, failID: "p1"}
	svc := NewSyncService(f.remote, repo, f.sink)
	if _, err := svc.SyncLocalToRemote(ctx, "p1"); err == nil {
		t.Fatalf("expected error")
	}
	got, _ := f.products.FindByID(ctx, "p1")
	if got == nil || got.Title != "Local" {
		t.Fatalf("delete should have been rolled back, got %+v", got)
	}
}

func TestBulkSyncCapsAtTen(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	var ids []string
	for i := 0; i < 15; i++ {
		id := fmt.Sprintf("gid://shopify/Product/%d", i)
		ids = append(ids, id)
		f.remote.Put(product(id, id))
		_ = f.products.Upsert(ctx, product(id, id))
	}
	// Reverse so the cap is applied to input order, not id order.
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}

	out := f.sync.BulkSync(ctx, ids)
	if out.SyncedCount != 10 || len(out.FailedIdentifiers) != 0 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if out.Message != "All products synced successfully." {
		t.Fatalf("unexpected message %q", out.Message)
	}
	events := f.sink.byAction(model.ActionSync)
	if len(events) != 10 {
		t.Fatalf("expected 10 sync events, got %d", len(events))
	}
	for i, ev := range events {
		if *ev.Target != ids[i] {
			t.Fatalf("event %d targets %s, want %s", i, *ev.Target, ids[i])
		}
	}
}

func TestBulkSyncIsolatesFailures(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	ids := []string{"id1", "id2", "id3", "id4", "id5"}
	for _, id := range ids {
		f.remote.Put(product(id, id))
		_ = f.products.Upsert(ctx, product(id, id))
	}
	f.remote.FailID("id3", errors.New("timeout"))

	out := f.sync.BulkSync(ctx, ids)
	if out.SyncedCount != 4 {
		t.Fatalf("expected 4 synced, got %d", out.SyncedCount)
	}
	if len(out.FailedIdentifiers) != 1 || out.FailedIdentifiers[0] != "id3" {
		t.Fatalf("unexpected failures: %v", out.FailedIdentifiers)
	}
	if !strings.Contains(out.Message, "some errors") {
		t.Fatalf("unexpected message %q", out.Message)
	}
}

func TestSyncAllEmptyRemote(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_ = f.products.Upsert(ctx, product("local-only", "x"))

	out, err := f.sync.SyncAll(ctx)
	if err != nil {
		t.Fatalf("sync all: %v", err)
	}
	if out.SyncedCount != 0 || out.Message != "Product list is empty" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if out.OrphanedLocalRecords != nil {
		t.Fatalf("orphans must not be computed for an empty remote catalog")
	}
	if len(f.sink.events) != 0 {
		t.Fatalf("no audit event expected for an empty run")
	}
}

func TestSyncAllReportsOrphans(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	for _, id := range []string{"A", "B", "C"} {
		_ = f.products.Upsert(ctx, product(id, id))
	}
	f.remote.Put(product("A", "A2"), product("B", "B2"))

	out, err := f.sync.SyncAll(ctx)
	if err != nil {
		t.Fatalf("sync all: %v", err)
	}
	if out.SyncedCount != 2 {
		t.Fatalf("expected 2 synced, got %d", out.SyncedCount)
	}
	if len(out.OrphanedLocalRecords) != 1 || out.OrphanedLocalRecords[0].ID != "C" {
		t.Fatalf("expected exactly C as orphan, got %+v", out.OrphanedLocalRecords)
	}
	if ok, _ := f.products.Exists(ctx, "C"); !ok {
		t.Fatalf("orphans must not be deleted")
	}
	a, _ := f.products.FindByID(ctx, "A")
	if a.Title != "A2" {
		t.Fatalf("A should be refreshed, got %+v", a)
	}
	events := f.sink.byAction(model.ActionSync)
	if len(events) != 1 || events[0].SubjectType != model.SubjectSystem || events[0].Target != nil {
		t.Fatalf("expected one system sync event, got %+v", events)
	}
}

func TestSyncAllPaginates(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	for i := 0; i < 120; i++ {
		f.remote.Put(product(fmt.Sprintf("p%03d", i), "x"))
	}
	out, err := f.sync.SyncAll(ctx)
	if err != nil {
		t.Fatalf("sync all: %v", err)
	}
	if out.SyncedCount != 120 || out.Message != "Database is perfectly in sync with Shopify." {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if n := f.remote.Calls(remotetest.OpList); n != 3 {
		t.Fatalf("expected 3 list calls, got %d", n)
	}
}

func TestSyncAllStopsOnStuckCursor(t *testing.T) {
	f := newFixture()
	f.remote.Put(product("p1", "x"))
	f.remote.StickCursor("same")

	out, err := f.sync.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("sync all: %v", err)
	}
	if n := f.remote.Calls(remotetest.OpList); n != 2 {
		t.Fatalf("expected the loop to stop after the cursor repeated, got %d calls", n)
	}
	if len(out.OrphanedLocalRecords) != 0 {
		t.Fatalf("unexpected orphans: %+v", out.OrphanedLocalRecords)
	}
}

func TestSyncAllIsolatesUpsertFailures(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.remote.Put(product("ok", "x"), product("bad", "y"))
	svc := NewSyncService(f.remote, failingUpsertRepo{ProductRepository: f.products, failID: "bad"}, f.sink)

	out, err := svc.SyncAll(ctx)
	if err != nil {
		t.Fatalf("sync all: %v", err)
	}
	if out.SyncedCount != 1 || len(out.FailedIdentifiers) != 1 || out.FailedIdentifiers[0] != "bad" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if len(out.OrphanedLocalRecords) != 0 {
		t.Fatalf("failed items are remote ids and must not be reported as orphans")
	}
}

func TestCreateValidatesBeforeRemote(t *testing.T) {
	cases := []CreateInput{
		{Title: "", Price: decimal.RequireFromString("1")},
		{Title: "   ", Price: decimal.RequireFromString("1")},
		{Title: "Widget", Price: decimal.RequireFromString("-0.01")},
		{Title: "Widget", Price: decimal.Zero, Quantity: -1},
	}
	for _, in := range cases {
		f := newFixture()
		_, err := f.product.Create(context.Background(), in)
		var vErr *model.ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("input %+v: expected ValidationError, got %v", in, err)
		}
		if f.remote.TotalCalls() != 0 {
			t.Fatalf("input %+v: remote called %d times", in, f.remote.TotalCalls())
		}
	}
}

func TestCreateFailureIsAudited(t *testing.T) {
	f := newFixture()
	f.remote.FailOn(remotetest.OpCreate, errors.New("userErrors: title taken"))

	_, err := f.product.Create(context.Background(), CreateInput{Title: "Widget", Price: decimal.RequireFromString("1")})
	if err == nil || err.Error() != "Error while creating product Widget" {
		t.Fatalf("unexpected error: %v", err)
	}
	events := f.sink.byAction(model.ActionCreate)
	if len(events) != 1 || events[0].Succeeded || !strings.Contains(events[0].Payload, "title taken") {
		t.Fatalf("expected one failed create event with detail, got %+v", events)
	}
}

// emptyCreateRemote accepts creates but reports no product.
type emptyCreateRemote struct {
	*remotetest.Catalog
}

func (emptyCreateRemote) Create(context.Context, string, decimal.Decimal, string, int) (*model.ProductRecord, error) {
	return nil, nil
}

func TestCreateWithEmptyRemoteResult(t *testing.T) {
	f := newFixture()
	remote := emptyCreateRemote{f.remote}
	svc := NewProductService(remote, f.products, NewSyncService(remote, f.products, f.sink), f.sink)

	res, err := svc.Create(context.Background(), CreateInput{Title: "Widget", Price: decimal.RequireFromString("1")})
	if err == nil || err.Error() != "Error while creating product Widget" || res != nil {
		t.Fatalf("expected coarse create error, got %+v, %v", res, err)
	}
	events := f.sink.byAction(model.ActionCreate)
	if len(events) != 1 || events[0].Succeeded || events[0].Target != nil {
		t.Fatalf("expected one failed create event without target, got %+v", events)
	}
	if len(localIDs(t, f.products)) != 0 {
		t.Fatal("nothing should be stored locally")
	}
}

func TestSyncLocalToRemoteWithEmptyRemoteResult(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_ = f.products.Upsert(ctx, product("local-1", "Lamp"))
	svc := NewSyncService(emptyCreateRemote{f.remote}, f.products, f.sink)

	res, err := svc.SyncLocalToRemote(ctx, "local-1")
	if err == nil || err.Error() != "Error while syncing product local-1" || res != nil {
		t.Fatalf("expected coarse sync error, got %+v, %v", res, err)
	}
	ids := localIDs(t, f.products)
	if len(ids) != 1 || ids[0] != "local-1" {
		t.Fatalf("local row should be untouched, got %v", ids)
	}
	if len(f.sink.byAction(model.ActionSync)) != 0 {
		t.Fatal("no sync event expected")
	}
}

func TestUpdateMissingRemote(t *testing.T) {
	f := newFixture()
	res, err := f.product.Update(context.Background(), "nope", UpdateInput{Title: "", Price: decimal.RequireFromString("-1")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if res.Product != nil || !strings.Contains(res.Message, "does not exist remotely") {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestUpdateValidatesAfterExistence(t *testing.T) {
	f := newFixture()
	f.remote.Put(product("p1", "Mug"))
	_, err := f.product.Update(context.Background(), "p1", UpdateInput{Title: "", Price: decimal.RequireFromString("1")})
	var vErr *model.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "title" {
		t.Fatalf("expected title ValidationError, got %v", err)
	}
	if f.remote.Calls(remotetest.OpUpdate) != 0 {
		t.Fatalf("remote update must not run on invalid input")
	}
}

func TestUpdateSyncsLocal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.remote.Put(product("p1", "Mug"))

	res, err := f.product.Update(ctx, "p1", UpdateInput{Title: "Cup", Description: "new", Price: decimal.RequireFromString("3.50")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if res.Message != "Product successfully updated" || res.Product.Title != "Cup" {
		t.Fatalf("unexpected result: %+v", res)
	}
	got, _ := f.products.FindByID(ctx, "p1")
	if got == nil || got.Title != "Cup" || !got.Price.Equal(decimal.RequireFromString("3.5")) {
		t.Fatalf("local not updated: %+v", got)
	}
	if len(f.sink.byAction(model.ActionUpdate)) != 1 {
		t.Fatalf("expected one update event")
	}
}

func TestDeleteEverywhereRemoteRejects(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.remote.Put(product("p1", "Mug"))
	_ = f.products.Upsert(ctx, product("p1", "Mug"))
	f.remote.RejectDelete("p1")

	ok, err := f.product.DeleteEverywhere(ctx, "p1")
	if err != nil || ok {
		t.Fatalf("expected false, nil; got %v, %v", ok, err)
	}
	if exists, _ := f.products.Exists(ctx, "p1"); !exists {
		t.Fatalf("local row must be left untouched")
	}
	if len(f.sink.byAction(model.ActionDelete)) != 0 {
		t.Fatalf("no delete event expected")
	}
}

func TestDeleteEverywhereLocalOnlyRow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_ = f.products.Upsert(ctx, product("orphan", "x"))

	ok, err := f.product.DeleteEverywhere(ctx, "orphan")
	if err != nil || !ok {
		t.Fatalf("expected true, nil; got %v, %v", ok, err)
	}
	if f.remote.Calls(remotetest.OpDelete) != 0 {
		t.Fatalf("remote delete must be skipped when the product is not remote")
	}
	if exists, _ := f.products.Exists(ctx, "orphan"); exists {
		t.Fatalf("local row should be deleted")
	}
}

func TestDeleteLocalOnly(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.remote.Put(product("p1", "Mug"))
	_ = f.products.Upsert(ctx, product("p1", "Mug"))

	ok, err := f.product.DeleteLocalOnly(ctx, "p1")
	if err != nil || !ok {
		t.Fatalf("expected true, nil; got %v, %v", ok, err)
	}
	if _, still := f.remote.Get("p1"); !still {
		t.Fatalf("remote product must survive a local delete")
	}
	ok, err = f.product.DeleteLocalOnly(ctx, "p1")
	if err != nil || ok {
		t.Fatalf("second delete: expected false, nil; got %v, %v", ok, err)
	}
	if len(f.sink.byAction(model.ActionDelete)) != 1 {
		t.Fatalf("expected exactly one delete event")
	}
}

func TestCreateThenDeleteEverywhere(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	res, err := f.product.Create(ctx, CreateInput{
		Title:       "Widget",
		Price:       decimal.RequireFromString("9.99"),
		Description: "d",
		Quantity:    5,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := res.Product.ID
	if res.Message != "Product successfully created" {
		t.Fatalf("unexpected message %q", res.Message)
	}
	ids := localIDs(t, f.products)
	if len(ids) != 1 || ids[0] != id {
		t.Fatalf("expected one local row %s, got %v", id, ids)
	}
	local, _ := f.products.FindByID(ctx, id)
	if local.Title != "Widget" {
		t.Fatalf("unexpected local title %q", local.Title)
	}

	ok, err := f.product.DeleteEverywhere(ctx, id)
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if len(localIDs(t, f.products)) != 0 {
		t.Fatalf("local store should be empty")
	}
	if _, found := f.remote.Get(id); found {
		t.Fatalf("remote should not have %s", id)
	}
	if len(f.sink.byAction(model.ActionCreate)) != 1 || len(f.sink.byAction(model.ActionDelete)) != 1 {
		t.Fatalf("expected create and delete events")
	}
}

func TestQueries(t *testing.T) {
	products := repository.NewMemoryProductRepository()
	audits := repository.NewMemoryAuditRepository()
	q := NewQueryService(products, audits)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_ = products.Upsert(ctx, product(fmt.Sprintf("p%d", i), "x"))
	}
	ev := model.NewSystemEvent(model.ActionSync, "{}")
	_ = audits.InsertAuditEvent(ctx, &ev)

	page, err := q.AllProducts(ctx, 0, 0)
	if err != nil {
		t.Fatalf("all products: %v", err)
	}
	if page.PerPage != DefaultPerPage || page.CurrentPage != 1 || len(page.Products) != 3 {
		t.Fatalf("unexpected page: %+v", page)
	}
	page, _ = q.AllProducts(ctx, 1000, 1)
	if page.PerPage != MaxPerPage {
		t.Fatalf("perPage should be clamped, got %d", page.PerPage)
	}

	if _, err := q.Product(ctx, "nope"); !errors.Is(err, model.ErrNotFound) || err.Error() != "Product not found" {
		t.Fatalf("expected not found, got %v", err)
	}
	if rec, err := q.Product(ctx, "p1"); err != nil || rec.ID != "p1" {
		t.Fatalf("product: %v %v", rec, err)
	}

	logs, err := q.AuditLogs(ctx, 10, 1)
	if err != nil || logs.Total != 1 {
		t.Fatalf("audit logs: %+v %v", logs, err)
	}
}
