package core

import (
	"context"
	"errors"
	"sync"
	"testing"

	"custodycore/internal/infra/persistence/snapshot"
	"custodycore/internal/reporting"
	"custodycore/pkg/domain"

	"github.com/shopspring/decimal"
)

func TestEmployeeIDsAreMonotonic(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	for i, want := range []string{"EMP001", "EMP002", "EMP003"} {
		e := addEmployee(t, svc, "Employee "+want)
		if e.ID != want {
			t.Fatalf("employee %d: expected %s, got %s", i, want, e.ID)
		}
		if !e.Active || e.CreatedAt.IsZero() {
			t.Fatalf("expected active employee with creation time, got %+v", e)
		}
	}
	inactive := false
	if err := svc.UpdateEmployee(ctx, "EMP003", EmployeeUpdate{Active: &inactive}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if e := addEmployee(t, svc, "Next"); e.ID != "EMP004" {
		t.Fatalf("deactivated ids must not be reused, got %s", e.ID)
	}
	if got := len(svc.ListEmployees(false)); got != 3 {
		t.Fatalf("expected 3 active employees, got %d", got)
	}
	if got := len(svc.ListEmployees(true)); got != 4 {
		t.Fatalf("expected 4 employees overall, got %d", got)
	}
}

func TestAddEmployeeNormalisesPhone(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	cases := []struct {
		raw, want string
	}{
		{"514 872 0311", "+15148720311"},
		{"+33 1 42 68 53 00", "+33142685300"},
		{"  poste 12 ", "poste 12"},
		{"", ""},
	}
	for _, tc := range cases {
		e, err := svc.AddEmployee(ctx, EmployeeInput{Name: "Ana", Phone: tc.raw})
		if err != nil {
			t.Fatalf("add %q: %v", tc.raw, err)
		}
		if e.Phone != tc.want {
			t.Fatalf("phone %q: expected %q, got %q", tc.raw, tc.want, e.Phone)
		}
	}
}

func TestAddEmployeeValidation(t *testing.T) {
	svc, backend := newTestService(t)
	ctx := context.Background()
	saves := backend.Saves()
	for _, in := range []EmployeeInput{
		{Name: "   "},
		{Name: "Ana", Email: "not-an-email"},
	} {
		if _, err := svc.AddEmployee(ctx, in); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("expected invalid input for %+v, got %v", in, err)
		}
	}
	if backend.Saves() != saves || len(svc.ListEmployees(true)) != 0 {
		t.Fatalf("rejected input must have no effect")
	}
}

func TestUpdateEmployee(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	e := addEmployee(t, svc, "Ana")

	name, phone, notes := "Ana Lopez", "514 872 0311", "night shift"
	if err := svc.UpdateEmployee(ctx, e.ID, EmployeeUpdate{Name: &name, Phone: &phone, Notes: &notes}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := svc.GetEmployee(e.ID)
	if got.Name != name || got.Phone != "+15148720311" || got.Notes != notes || !got.Active {
		t.Fatalf("unexpected employee after update %+v", got)
	}
	if err := svc.UpdateEmployee(ctx, "EMP999", EmployeeUpdate{Name: &name}); err != nil {
		t.Fatalf("unknown id must be a silent no-op, got %v", err)
	}
	empty := " "
	if err := svc.UpdateEmployee(ctx, e.ID, EmployeeUpdate{Name: &empty}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty name, got %v", err)
	}
}

func TestSearchEmployees(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	ana, _ := svc.AddEmployee(ctx, EmployeeInput{Name: "Ana Lopez", Phone: "514 872 0311"})
	bo, _ := svc.AddEmployee(ctx, EmployeeInput{Name: "Bo Chen"})
	gone, _ := svc.AddEmployee(ctx, EmployeeInput{Name: "Ana Gone"})
	inactive := false
	_ = svc.UpdateEmployee(ctx, gone.ID, EmployeeUpdate{Active: &inactive})

	cases := []struct {
		query string
		want  []string
	}{
		{"", []string{ana.ID, bo.ID}},
		{"ana", []string{ana.ID}},
		{"emp002", []string{bo.ID}},
		{"872-0311", []string{ana.ID}},
		{"+1514", []string{ana.ID}},
		{"zzz", nil},
	}
	for _, tc := range cases {
		got := svc.SearchEmployees(tc.query)
		if len(got) != len(tc.want) {
			t.Fatalf("query %q: expected %v, got %+v", tc.query, tc.want, got)
		}
		for i := range got {
			if got[i].ID != tc.want[i] {
				t.Fatalf("query %q: expected %v, got %+v", tc.query, tc.want, got)
			}
		}
	}
}

func TestCreateAttributionAdjustsStockAndCreatesLink(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	emp := addEmployee(t, svc, "Ana")

	tx, err := svc.CreateTransaction(ctx, domain.TransactionAttribution, emp.ID,
		[]LineItem{{Name: "Chemise ML", Size: "M", Quantity: 3}}, "first issue")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if tx.LinkToken == nil || *tx.LinkToken == "" {
		t.Fatalf("expected link token")
	}
	if !tx.Items[0].Price.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("expected catalog price filled in, got %s", tx.Items[0].Price)
	}
	if tx.CreatedBy != domain.DefaultActor || tx.Signed {
		t.Fatalf("unexpected transaction %+v", tx)
	}
	if got := stockOf(t, svc, "Chemise ML", "M"); got != 97 {
		t.Fatalf("expected stock 97, got %d", got)
	}

	doc := svc.Document()
	if len(doc.Links) != 1 {
		t.Fatalf("expected one link, got %d", len(doc.Links))
	}
	link := doc.Links[0]
	if link.Token != *tx.LinkToken || link.TransactionID != tx.ID || link.Used {
		t.Fatalf("unexpected link %+v", link)
	}
	if want := tx.CreatedAt.Add(DefaultLinkTTL); !link.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, link.ExpiresAt)
	}
}

func TestRetourRestocksWithoutLink(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	emp := addEmployee(t, svc, "Ana")
	tx, err := svc.CreateTransaction(ctx, domain.TransactionRetour, emp.ID,
		[]LineItem{{Name: "Polo", Size: "L", Quantity: 4}}, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if tx.LinkToken != nil {
		t.Fatalf("retour must not carry a link")
	}
	if len(svc.Document().Links) != 0 {
		t.Fatalf("retour must not create a link")
	}
	if got := stockOf(t, svc, "Polo", "L"); got != 64 {
		t.Fatalf("expected stock 64, got %d", got)
	}
}

func TestStockNeverGoesNegative(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	emp := addEmployee(t, svc, "Ana")
	if _, err := svc.CreateTransaction(ctx, domain.TransactionAttribution, emp.ID,
		[]LineItem{{Name: "Casque-chantier", Size: "Unique", Quantity: 500}}, ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := stockOf(t, svc, "Casque-chantier", "Unique"); got != 0 {
		t.Fatalf("expected floor at zero, got %d", got)
	}
}

func TestUnknownLineItemsAreRecordedButSkipStock(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	emp := addEmployee(t, svc, "Ana")
	before := svc.ListInventory()
	tx, err := svc.CreateTransaction(ctx, domain.TransactionAjout, emp.ID, []LineItem{
		{Name: "Kilt", Size: "M", Quantity: 1},
		{Name: "Polo", Size: "5XL", Quantity: 1},
	}, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(tx.Items) != 2 {
		t.Fatalf("expected both lines recorded")
	}
	after := svc.ListInventory()
	for i := range before {
		for size, qty := range before[i].Sizes {
			if after[i].Sizes[size] != qty {
				t.Fatalf("stock of %s %s changed", before[i].Name, size)
			}
		}
	}
	if got := svc.GetEmployeeBalance(emp.ID); len(got) != 2 {
		t.Fatalf("unknown lines still count towards balance, got %+v", got)
	}
}

func TestCreateTransactionRejectsInvalidInput(t *testing.T) {
	svc, backend := newTestService(t)
	ctx := context.Background()
	emp := addEmployee(t, svc, "Ana")
	saves := backend.Saves()

	cases := []struct {
		name  string
		typ   TransactionType
		items []LineItem
	}{
		{"unknown type", "loan", []LineItem{{Name: "Polo", Size: "M", Quantity: 1}}},
		{"no items", domain.TransactionAttribution, nil},
		{"zero quantity", domain.TransactionAttribution, []LineItem{{Name: "Polo", Size: "M", Quantity: 0}}},
		{"negative quantity", domain.TransactionRetour, []LineItem{{Name: "Polo", Size: "M", Quantity: -2}}},
		{"missing size", domain.TransactionAjout, []LineItem{{Name: "Polo", Quantity: 1}}},
		{"negative price", domain.TransactionAjout, []LineItem{{Name: "Polo", Size: "M", Quantity: 1, Price: decimal.NewFromInt(-1)}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.CreateTransaction(ctx, tc.typ, emp.ID, tc.items, ""); !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}
	if backend.Saves() != saves || len(svc.Document().Transactions) != 0 {
		t.Fatalf("rejected transactions must have no effect")
	}
}

func TestBalanceDerivation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	emp := addEmployee(t, svc, "Ana")
	other := addEmployee(t, svc, "Bo")

	mustCreate := func(typ TransactionType, employeeID string, qty int) {
		t.Helper()
		if _, err := svc.CreateTransaction(ctx, typ, employeeID,
			[]LineItem{{Name: "Chemise ML", Size: "M", Quantity: qty}}, ""); err != nil {
			t.Fatalf("create %s: %v", typ, err)
		}
	}
	mustCreate(domain.TransactionAttribution, emp.ID, 3)
	mustCreate(domain.TransactionAttribution, other.ID, 5)
	mustCreate(domain.TransactionRetour, emp.ID, 1)

	balance := svc.GetEmployeeBalance(emp.ID)
	if len(balance) != 1 || balance[0].Quantity != 2 {
		t.Fatalf("expected 2 shirts held, got %+v", balance)
	}
	if !balance[0].Value().Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected value 60, got %s", balance[0].Value())
	}

	mustCreate(domain.TransactionRetour, emp.ID, 2)
	if balance := svc.GetEmployeeBalance(emp.ID); len(balance) != 0 {
		t.Fatalf("expected empty balance, got %+v", balance)
	}
	if balance := svc.GetEmployeeBalance(other.ID); len(balance) != 1 || balance[0].Quantity != 5 {
		t.Fatalf("other employee balance affected: %+v", balance)
	}
	if got := svc.GetEmployeeTransactions(emp.ID); len(got) != 3 || got[0].Type != domain.TransactionRetour {
		t.Fatalf("expected 3 transactions newest first, got %+v", got)
	}
}

func TestSignTransactionIsSingleUse(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	emp := addEmployee(t, svc, "Ana")
	tx, _ := svc.CreateTransaction(ctx, domain.TransactionAttribution, emp.ID,
		[]LineItem{{Name: "Polo", Size: "M", Quantity: 1}}, "")

	if resolved, ok := svc.ResolveSignatureLink(*tx.LinkToken); !ok || resolved.ID != tx.ID {
		t.Fatalf("expected pending link to resolve")
	}
	if got := svc.PendingSignatures(); len(got) != 1 || got[0].Employee == nil || got[0].Employee.ID != emp.ID {
		t.Fatalf("expected one pending signature, got %+v", got)
	}

	signed, ok, err := svc.SignTransaction(ctx, *tx.LinkToken, Signature{Data: "data:image/png;base64,AAA"})
	if err != nil || !ok {
		t.Fatalf("sign: ok=%v err=%v", ok, err)
	}
	if !signed.Signed || signed.Signature == nil || signed.SignedAt == nil || signed.Signature.Timestamp.IsZero() {
		t.Fatalf("expected signature stamped, got %+v", signed)
	}
	if _, ok, _ := svc.SignTransaction(ctx, *tx.LinkToken, Signature{Data: "again"}); ok {
		t.Fatalf("token must be single use")
	}
	if _, ok := svc.ResolveSignatureLink(*tx.LinkToken); ok {
		t.Fatalf("used link must not resolve")
	}
	if len(svc.PendingSignatures()) != 0 {
		t.Fatalf("expected no pending signatures")
	}
	for _, bad := range []string{"", "unknown"} {
		if _, ok, err := svc.SignTransaction(ctx, bad, Signature{}); ok || err != nil {
			t.Fatalf("token %q: expected ok=false without error, got ok=%v err=%v", bad, ok, err)
		}
	}
}

func TestConcurrentSignersSucceedOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	emp := addEmployee(t, svc, "Ana")
	tx, _ := svc.CreateTransaction(ctx, domain.TransactionAjout, emp.ID,
		[]LineItem{{Name: "Tuque", Size: "Unique", Quantity: 1}}, "")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := svc.SignTransaction(ctx, *tx.LinkToken, Signature{Data: "sig"})
			if err != nil {
				t.Errorf("sign: %v", err)
				return
			}
			if ok {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if successes != 1 {
		t.Fatalf("expected exactly one successful signature, got %d", successes)
	}
}

func TestSignReloadsPersistedStateFirst(t *testing.T) {
	svc, backend := newTestService(t)
	ctx := context.Background()
	emp := addEmployee(t, svc, "Ana")
	tx, _ := svc.CreateTransaction(ctx, domain.TransactionAttribution, emp.ID,
		[]LineItem{{Name: "Polo", Size: "M", Quantity: 1}}, "")

	// Another session consumes the link and persists.
	doc, err := snapshot.Unmarshal(backend.Raw())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	doc.Links[0].Used = true
	data, _ := snapshot.Marshal(doc)
	backend.SetRaw(data)

	if _, ok, err := svc.SignTransaction(ctx, *tx.LinkToken, Signature{Data: "late"}); ok || err != nil {
		t.Fatalf("expected stale in-memory link refused, got ok=%v err=%v", ok, err)
	}
	if !svc.Document().Links[0].Used {
		t.Fatalf("expected reloaded state in memory")
	}
}

func TestRemoveSignatureCancelsPendingLink(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	emp := addEmployee(t, svc, "Ana")
	first, _ := svc.CreateTransaction(ctx, domain.TransactionAttribution, emp.ID,
		[]LineItem{{Name: "Polo", Size: "M", Quantity: 1}}, "")
	second, _ := svc.CreateTransaction(ctx, domain.TransactionAjout, emp.ID,
		[]LineItem{{Name: "Polo", Size: "S", Quantity: 1}}, "")

	if err := svc.RemoveSignature(ctx, *first.LinkToken); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok, _ := svc.SignTransaction(ctx, *first.LinkToken, Signature{Data: "x"}); ok {
		t.Fatalf("cancelled link must not sign")
	}
	doc := svc.Document()
	if len(doc.Links) != 1 || doc.Links[0].Token != *second.LinkToken {
		t.Fatalf("expected only the second link left, got %+v", doc.Links)
	}
	if len(doc.Transactions) != 2 || doc.Transactions[0].Signed {
		t.Fatalf("cancelled transaction must stay in history unsigned")
	}

	if err := svc.RemoveAllSignatures(ctx); err != nil {
		t.Fatalf("remove all: %v", err)
	}
	if len(svc.Document().Links) != 0 {
		t.Fatalf("expected links cleared")
	}
}

func TestMovementsLedger(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	cost := decimal.RequireFromString("12.50")

	purchase, err := svc.RecordPurchase(ctx, PurchaseInput{Item: "Polo", Size: "M", Quantity: 20, Cost: &cost, Supplier: "Uniformes QC"})
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if purchase.Type != domain.MovementPurchase || purchase.CreatedBy != domain.DefaultActor || !purchase.Cost.Equal(cost) {
		t.Fatalf("unexpected purchase %+v", purchase)
	}
	if got := stockOf(t, svc, "Polo", "M"); got != 100 {
		t.Fatalf("expected 100 after purchase, got %d", got)
	}

	adj, err := svc.RecordAdjustment(ctx, AdjustmentInput{Item: "Polo", Size: "M", Quantity: -250, Reason: "inventaire", CreatedBy: "Luc"})
	if err != nil {
		t.Fatalf("adjustment: %v", err)
	}
	if adj.Quantity != -250 || adj.CreatedBy != "Luc" {
		t.Fatalf("movement must keep the requested delta, got %+v", adj)
	}
	if got := stockOf(t, svc, "Polo", "M"); got != 0 {
		t.Fatalf("expected floor at zero, got %d", got)
	}
	if _, err := svc.RecordAdjustment(ctx, AdjustmentInput{Item: "Tuque", Size: "Unique", Quantity: 5}); err != nil {
		t.Fatalf("adjustment: %v", err)
	}

	all := svc.GetInventoryMovements(0)
	if len(all) != 3 || all[0].Item != "Tuque" || all[2].ID != purchase.ID {
		t.Fatalf("expected newest first, got %+v", all)
	}
	if got := svc.GetInventoryMovements(1); len(got) != 1 {
		t.Fatalf("expected limit honoured, got %d", len(got))
	}
	if got := svc.GetItemHistory("Polo", ""); len(got) != 2 || got[0].ID != adj.ID {
		t.Fatalf("unexpected history %+v", got)
	}
	if got := svc.GetItemHistory("Polo", "S"); len(got) != 0 {
		t.Fatalf("expected no history for size S, got %+v", got)
	}
}

func TestMovementValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	neg := decimal.NewFromInt(-3)
	if _, err := svc.RecordPurchase(ctx, PurchaseInput{Item: "Polo", Size: "M", Quantity: 0}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid quantity, got %v", err)
	}
	if _, err := svc.RecordPurchase(ctx, PurchaseInput{Item: "Polo", Size: "M", Quantity: 1, Cost: &neg}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid cost, got %v", err)
	}
	if _, err := svc.RecordAdjustment(ctx, AdjustmentInput{Item: "Polo", Size: "M"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected zero delta rejected, got %v", err)
	}
	if len(svc.GetInventoryMovements(0)) != 0 {
		t.Fatalf("rejected movements must not be recorded")
	}
}

func TestLowStockBoundary(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	adjust := func(delta int) {
		t.Helper()
		if _, err := svc.RecordAdjustment(ctx, AdjustmentInput{Item: "Tuque", Size: "Unique", Quantity: delta}); err != nil {
			t.Fatalf("adjust: %v", err)
		}
	}
	contains := func(lines []reporting.StockLine, item, size string) bool {
		for _, l := range lines {
			if l.Item == item && l.Size == size {
				return true
			}
		}
		return false
	}

	adjust(-50)
	if contains(svc.GetLowStockItems(10), "Tuque", "Unique") {
		t.Fatalf("quantity equal to threshold must not be low")
	}
	adjust(-1)
	if !contains(svc.GetLowStockItems(0), "Tuque", "Unique") {
		t.Fatalf("quantity 9 must be low with the default threshold")
	}
	if contains(svc.GetOutOfStockItems(), "Tuque", "Unique") {
		t.Fatalf("quantity 9 is not out of stock")
	}
	adjust(-9)
	if !contains(svc.GetLowStockItems(10), "Tuque", "Unique") || !contains(svc.GetOutOfStockItems(), "Tuque", "Unique") {
		t.Fatalf("zero stock must be both low and out")
	}
}

func TestAddInventoryItem(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	item, err := svc.AddInventoryItem(ctx, InventoryItemInput{
		Name: "Gilet", Category: "Sécurité", Price: decimal.NewFromInt(35), Sizes: map[string]int{"M": 4, "L": 2},
	})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if item.ID != "14" {
		t.Fatalf("expected next numeric id 14, got %s", item.ID)
	}
	if got, ok := svc.GetInventoryItem("Gilet"); !ok || got.Sizes["L"] != 2 {
		t.Fatalf("expected item retrievable, got %+v", got)
	}
	if _, err := svc.AddInventoryItem(ctx, InventoryItemInput{Name: "Polo"}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict for duplicate name, got %v", err)
	}
	if _, err := svc.AddInventoryItem(ctx, InventoryItemInput{Name: "Bad", Sizes: map[string]int{"M": -1}}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected negative size rejected, got %v", err)
	}
	if _, err := svc.AddInventoryItem(ctx, InventoryItemInput{Name: "Bad", Price: decimal.NewFromInt(-1)}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected negative price rejected, got %v", err)
	}
	if got := len(svc.ListInventory()); got != len(DefaultCatalog())+1 {
		t.Fatalf("expected catalog grown by one, got %d", got)
	}
}

func TestSeedIfEmpty(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	seeded, err := svc.SeedIfEmpty(ctx)
	if err != nil || !seeded {
		t.Fatalf("expected seeding, got seeded=%v err=%v", seeded, err)
	}
	got := svc.ListEmployees(true)
	if len(got) != 3 || got[0].ID != "EMP001" || got[2].ID != "EMP003" || got[0].Name != "Frank Etoa" {
		t.Fatalf("unexpected sample employees %+v", got)
	}
	seeded, err = svc.SeedIfEmpty(ctx)
	if err != nil || seeded {
		t.Fatalf("expected second seeding skipped, got seeded=%v err=%v", seeded, err)
	}
}
