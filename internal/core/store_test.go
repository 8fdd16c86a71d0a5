package core

import (
	"context"
	"errors"
	"testing"

	"custodycore/internal/infra/persistence/memory"
	"custodycore/pkg/domain"
)

func TestNewStoreSeedsDefaultCatalogAndPersists(t *testing.T) {
	backend := memory.NewStore()
	store := NewStore(context.Background(), backend)

	doc := store.Document()
	if len(doc.Inventory) != len(DefaultCatalog()) {
		t.Fatalf("expected default catalog, got %d items", len(doc.Inventory))
	}
	if len(doc.Employees) != 0 || len(doc.Transactions) != 0 || len(doc.Links) != 0 || len(doc.Movements) != 0 {
		t.Fatalf("expected empty collections, got %+v", doc)
	}
	if backend.Saves() != 1 {
		t.Fatalf("expected defaults persisted once, got %d saves", backend.Saves())
	}
	if store.Driver() != domain.StorageMemory {
		t.Fatalf("unexpected driver %s", store.Driver())
	}
}

func TestNewStoreNilBackendUsesMemory(t *testing.T) {
	store := NewStore(context.Background(), nil)
	if store.Driver() != domain.StorageMemory {
		t.Fatalf("expected memory driver, got %s", store.Driver())
	}
}

func TestNewStoreCorruptPayloadFallsBackToDefaults(t *testing.T) {
	backend := memory.NewStore()
	backend.SetRaw([]byte("{not json"))
	logger := &recordingLogger{}

	store := NewStore(context.Background(), backend, WithLogger(logger))

	if got := len(store.Document().Inventory); got != len(DefaultCatalog()) {
		t.Fatalf("expected default catalog after corrupt load, got %d items", got)
	}
	if logger.count("warn", "custody document unreadable, ignoring it") != 1 {
		t.Fatalf("expected corrupt payload warning")
	}
}

func TestNewStoreLoadsExistingDocument(t *testing.T) {
	backend := memory.NewStore()
	backend.SetRaw([]byte(`{"employees":[{"id":"EMP004","name":"Ana","active":true}],"inventory":[{"id":"1","name":"Polo","price":15,"sizes":{"M":3}}]}`))

	store := NewStore(context.Background(), backend)
	doc := store.Document()
	if len(doc.Employees) != 1 || doc.Employees[0].ID != "EMP004" {
		t.Fatalf("unexpected employees %+v", doc.Employees)
	}
	if doc.Movements == nil || doc.Links == nil {
		t.Fatalf("expected missing collections normalised to empty")
	}
	if backend.Saves() != 0 {
		t.Fatalf("loading must not rewrite the document")
	}
}

func TestSaveFailureKeepsInMemoryState(t *testing.T) {
	backend := memory.NewStore()
	logger := &recordingLogger{}
	store := NewStore(context.Background(), backend, WithLogger(logger))
	svc := NewService(store)

	backend.FailSavesWith(func() error { return errors.New("quota exceeded") })
	emp, err := svc.AddEmployee(context.Background(), EmployeeInput{Name: "Ana"})
	if err != nil {
		t.Fatalf("persistence failure must not surface: %v", err)
	}
	if _, ok := svc.GetEmployee(emp.ID); !ok {
		t.Fatalf("expected employee kept in memory")
	}
	if store.PersistFailures() != 1 {
		t.Fatalf("expected one persist failure, got %d", store.PersistFailures())
	}
	if logger.count("error", "persist custody document failed") != 1 {
		t.Fatalf("expected persistence error log")
	}

	backend.FailSavesWith(nil)
	if _, err := svc.AddEmployee(context.Background(), EmployeeInput{Name: "Bo"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	reopened := NewStore(context.Background(), backend)
	if got := len(reopened.Document().Employees); got != 2 {
		t.Fatalf("expected both employees after recovery, got %d", got)
	}
}

func TestSignAfterFailedSaveKeepsSessionState(t *testing.T) {
	backend := memory.NewStore()
	store := NewStore(context.Background(), backend)
	svc := NewService(store)
	ctx := context.Background()
	before := stockOf(t, svc, "Polo", "M")

	backend.FailSavesWith(func() error { return errors.New("disk full") })
	tx, err := svc.CreateTransaction(ctx, domain.TransactionAttribution, "EMP001",
		[]LineItem{{Name: "Polo", Size: "M", Quantity: 3}}, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if store.Reload(ctx) {
		t.Fatalf("reload must not discard unsaved commits")
	}

	signed, ok, err := svc.SignTransaction(ctx, *tx.LinkToken, Signature{Data: "data:image/png;base64,AAA"})
	if err != nil || !ok || !signed.Signed {
		t.Fatalf("expected unsaved transaction to be signable, ok=%v err=%v", ok, err)
	}
	if got := len(svc.Document().Transactions); got != 1 {
		t.Fatalf("expected transaction kept, got %d", got)
	}
	if got := stockOf(t, svc, "Polo", "M"); got != before-3 {
		t.Fatalf("expected stock effect kept, got %d want %d", got, before-3)
	}

	backend.FailSavesWith(nil)
	addEmployee(t, svc, "Ana")
	reopened := NewStore(ctx, backend)
	doc := reopened.Document()
	if len(doc.Transactions) != 1 || !doc.Transactions[0].Signed {
		t.Fatalf("expected signed transaction persisted once saves recover, got %+v", doc.Transactions)
	}
	if !store.Reload(ctx) {
		t.Fatalf("reload should work again after a successful save")
	}
}

func TestReloadIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	emp := addEmployee(t, svc, "Ana")
	if _, err := svc.CreateTransaction(ctx, domain.TransactionAttribution, emp.ID,
		[]LineItem{{Name: "Polo", Size: "M", Quantity: 2}}, ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	before := svc.Document()
	for i := 0; i < 2; i++ {
		if !svc.Store().Reload(ctx) {
			t.Fatalf("reload %d found nothing", i)
		}
	}
	after := svc.Document()
	if len(after.Transactions) != len(before.Transactions) || len(after.Links) != len(before.Links) {
		t.Fatalf("reload changed collections: before %+v after %+v", before, after)
	}
	if stockOf(t, svc, "Polo", "M") != 78 {
		t.Fatalf("reload changed stock")
	}
}

func TestRunInTransactionErrorDiscardsClone(t *testing.T) {
	backend := memory.NewStore()
	store := NewStore(context.Background(), backend)
	saves := backend.Saves()

	boom := errors.New("boom")
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Tx) error {
		if _, err := tx.AppendEmployee(Employee{ID: "EMP001", Name: "Ana"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if len(store.Document().Employees) != 0 {
		t.Fatalf("expected clone discarded")
	}
	if backend.Saves() != saves {
		t.Fatalf("expected no save")
	}
}

func TestRunInTransactionWithoutChangesSkipsPersist(t *testing.T) {
	backend := memory.NewStore()
	store := NewStore(context.Background(), backend)
	saves := backend.Saves()
	if _, err := store.RunInTransaction(context.Background(), func(domain.Tx) error { return nil }); err != nil {
		t.Fatalf("run: %v", err)
	}
	if backend.Saves() != saves {
		t.Fatalf("expected no save for empty transaction")
	}
}

func TestRunInTransactionHonoursCancelledContext(t *testing.T) {
	store := NewStore(context.Background(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	_, err := store.RunInTransaction(ctx, func(domain.Tx) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) || called {
		t.Fatalf("expected cancellation before fn, got err=%v called=%v", err, called)
	}
}

func TestTransactionDuplicatesConflict(t *testing.T) {
	store := NewStore(context.Background(), nil)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Tx) error {
		if _, err := tx.AppendEmployee(Employee{ID: "EMP001"}); err != nil {
			return err
		}
		_, err := tx.AppendEmployee(Employee{ID: "EMP001"})
		return err
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	_, err = store.RunInTransaction(context.Background(), func(tx domain.Tx) error {
		_, err := tx.AppendItem(InventoryItem{Name: "Polo"})
		return err
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected item conflict, got %v", err)
	}
}

func TestAdjustStockFloorsAtZeroAndSkipsUnknown(t *testing.T) {
	store := NewStore(context.Background(), nil)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Tx) error {
		before, after, ok := tx.AdjustStock("Tuque", "Unique", -1000)
		if !ok || before != 60 || after != 0 {
			t.Fatalf("unexpected adjust result %d -> %d (%v)", before, after, ok)
		}
		if _, _, ok := tx.AdjustStock("Tuque", "XL", 1); ok {
			t.Fatalf("expected unknown size skipped")
		}
		if _, _, ok := tx.AdjustStock("Kilt", "M", 1); ok {
			t.Fatalf("expected unknown item skipped")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	inv := store.Document().Inventory
	for _, item := range inv {
		if item.Name == "Tuque" && item.Sizes["Unique"] != 0 {
			t.Fatalf("expected floored stock, got %d", item.Sizes["Unique"])
		}
	}
}

func TestUpdateMissingRecordsReportNotFound(t *testing.T) {
	store := NewStore(context.Background(), nil)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Tx) error {
		if _, ok, _ := tx.UpdateEmployee("EMP404", func(*Employee) error { return nil }); ok {
			t.Fatalf("expected missing employee")
		}
		if _, ok, _ := tx.UpdateTransaction("nope", func(*Transaction) error { return nil }); ok {
			t.Fatalf("expected missing transaction")
		}
		if _, ok, _ := tx.UpdateLink("nope", func(*SignatureLink) error { return nil }); ok {
			t.Fatalf("expected missing link")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestViewReturnsCopies(t *testing.T) {
	store := NewStore(context.Background(), nil)
	_ = store.View(context.Background(), func(v domain.TxView) error {
		items := v.ListInventory()
		items[0].Sizes["S"] = -5
		return nil
	})
	if store.Document().Inventory[0].Sizes["S"] == -5 {
		t.Fatalf("view leaked a mutable reference")
	}
}
