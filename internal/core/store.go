package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"custodycore/internal/infra/persistence/memory"
	"custodycore/pkg/domain"
)

const (
	// DefaultMovementLimit is the page size used when a caller asks for zero movements.
	DefaultMovementLimit = 50
	// DefaultLinkTTL is the stored (not enforced) validity of a signature link.
	DefaultLinkTTL = 24 * time.Hour
)

// Store holds the custody document in memory and writes it through to a
// domain.DocumentStore after every committed transaction. The in-memory copy
// stays authoritative for the session even when a write fails.
type Store struct {
	mu              sync.RWMutex
	doc             domain.Document
	backend         domain.DocumentStore
	engine          *RulesEngine
	clock           Clock
	logger          Logger
	metrics         MetricsRecorder
	persistFailures atomic.Int64
	// dirty is set while the in-memory document holds commits the backend
	// has not accepted; reloads are skipped until a save succeeds.
	dirty bool
}

// NewStore loads the persisted document from backend. When nothing is stored
// or the payload cannot be decoded it starts from an empty document holding
// the default catalog and writes that back. A nil backend means memory.
func NewStore(ctx context.Context, backend domain.DocumentStore, opts ...Option) *Store {
	o := buildOptions(opts)
	if backend == nil {
		backend = memory.NewStore()
	}
	engine := o.engine
	if engine == nil {
		engine = NewDefaultRulesEngine(o.lowStockThreshold)
	}
	s := &Store{
		backend: backend,
		engine:  engine,
		clock:   o.clock,
		logger:  o.logger,
		metrics: o.metrics,
	}
	if s.clock == nil {
		s.clock = ClockFunc(func() time.Time { return time.Now().UTC() })
	}
	if s.logger == nil {
		s.logger = noopLogger{}
	}
	if doc, ok := s.loadDocument(ctx); ok {
		s.doc = *doc
		s.logger.Info("custody document loaded", "driver", backend.Driver(),
			"employees", len(doc.Employees), "transactions", len(doc.Transactions))
		return s
	}
	s.doc = DefaultDocument()
	s.persistDocument(ctx, s.doc)
	return s
}

// DefaultDocument returns a fresh document with no records and the default catalog.
func DefaultDocument() domain.Document {
	doc := domain.Document{Inventory: DefaultCatalog()}
	doc.Normalize()
	return doc
}

// loadDocument never fails: an absent document and an unreadable one both
// report false, the latter with a warning.
func (s *Store) loadDocument(ctx context.Context) (*domain.Document, bool) {
	doc, err := s.backend.Load(ctx)
	switch {
	case err == nil:
		doc.Normalize()
		return &doc, true
	case errors.Is(err, domain.ErrNoDocument):
		return nil, false
	default:
		s.logger.Warn("custody document unreadable, ignoring it", "driver", s.backend.Driver(), "error", err)
		return nil, false
	}
}

// persistDocument writes the whole document. Failures are logged and counted,
// never returned.
func (s *Store) persistDocument(ctx context.Context, doc domain.Document) bool {
	start := time.Now()
	err := s.backend.Save(ctx, doc)
	s.metrics.Observe(ctx, "persist_document", err == nil, time.Since(start))
	if err != nil {
		s.dirty = true
		total := s.persistFailures.Add(1)
		s.logger.Error("persist custody document failed", "driver", s.backend.Driver(), "error", err, "failures", total)
		return false
	}
	s.dirty = false
	return true
}

// RunInTransaction executes fn against a cloned document. When fn succeeds and
// the rules engine reports no blocking violation the clone replaces the
// current document and is persisted.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Tx) error) (Result, error) {
	return s.run(ctx, false, fn)
}

// RunInFreshTransaction behaves like RunInTransaction but first replaces the
// in-memory document with the persisted one, so that check-then-act logic
// sees writes made by other sessions. While earlier commits are still
// unsaved the in-memory document is kept instead.
func (s *Store) RunInFreshTransaction(ctx context.Context, fn func(tx domain.Tx) error) (Result, error) {
	return s.run(ctx, true, fn)
}

func (s *Store) run(ctx context.Context, reload bool, fn func(tx domain.Tx) error) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if reload && !s.dirty {
		if doc, ok := s.loadDocument(ctx); ok {
			s.doc = *doc
		}
	}
	tx := &transaction{doc: s.doc.Clone(), now: s.clock.Now()}
	if err := fn(tx); err != nil {
		return Result{}, err
	}
	if len(tx.changes) == 0 {
		return Result{}, nil
	}

	var result Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, tx.Snapshot(), tx.changes)
		if err != nil {
			return Result{}, fmt.Errorf("evaluate rules: %w", err)
		}
		if res.HasBlocking() {
			return res, RuleViolationError{Result: res}
		}
		result = res
		for _, v := range res.Violations {
			s.logger.Warn("rule violation", "rule", v.Rule, "severity", v.Severity,
				"entity", v.Entity, "entity_id", v.EntityID, "message", v.Message)
		}
	}

	s.doc = tx.doc
	s.persistDocument(ctx, s.doc)
	return result, nil
}

// View executes fn against the current document without copying it; the
// view hands out copies of every record.
func (s *Store) View(_ context.Context, fn func(domain.TxView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(documentView{doc: &s.doc})
}

// Reload replaces the in-memory document with the persisted one. It reports
// false and keeps the current state when nothing readable is stored or when
// the current state holds unsaved commits.
func (s *Store) Reload(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dirty {
		return false
	}
	doc, ok := s.loadDocument(ctx)
	if ok {
		s.doc = *doc
	}
	return ok
}

// Document returns a deep copy of the current document.
func (s *Store) Document() domain.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

// PersistFailures reports how many writes failed since the store was opened.
func (s *Store) PersistFailures() int64 { return s.persistFailures.Load() }

// Driver reports the backend driver.
func (s *Store) Driver() domain.StorageDriver { return s.backend.Driver() }

// RulesEngine returns the engine evaluated on every commit.
func (s *Store) RulesEngine() *RulesEngine { return s.engine }

// Close closes the backend.
func (s *Store) Close() error { return s.backend.Close() }

type transaction struct {
	doc     domain.Document
	changes []Change
	now     time.Time
}

var _ domain.Tx = (*transaction)(nil)

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

func (tx *transaction) Snapshot() domain.TxView { return documentView{doc: &tx.doc} }

func (tx *transaction) AppendEmployee(e Employee) (Employee, error) {
	if e.ID == "" {
		return Employee{}, errors.New("employee id required")
	}
	if slices.ContainsFunc(tx.doc.Employees, func(x Employee) bool { return x.ID == e.ID }) {
		return Employee{}, fmt.Errorf("employee %q: %w", e.ID, domain.ErrConflict)
	}
	tx.doc.Employees = append(tx.doc.Employees, e)
	tx.recordChange(Change{Entity: EntityEmployee, Action: ActionCreate, After: e})
	return e, nil
}

func (tx *transaction) UpdateEmployee(id string, mutator func(*Employee) error) (Employee, bool, error) {
	idx := slices.IndexFunc(tx.doc.Employees, func(x Employee) bool { return x.ID == id })
	if idx < 0 {
		return Employee{}, false, nil
	}
	before := tx.doc.Employees[idx]
	current := before
	if err := mutator(&current); err != nil {
		return Employee{}, true, err
	}
	current.ID = id
	tx.doc.Employees[idx] = current
	tx.recordChange(Change{Entity: EntityEmployee, Action: ActionUpdate, Before: before, After: current})
	return current, true, nil
}

func (tx *transaction) AppendTransaction(t Transaction) (Transaction, error) {
	if t.ID == "" {
		return Transaction{}, errors.New("transaction id required")
	}
	if slices.ContainsFunc(tx.doc.Transactions, func(x Transaction) bool { return x.ID == t.ID }) {
		return Transaction{}, fmt.Errorf("transaction %q: %w", t.ID, domain.ErrConflict)
	}
	if t.Items == nil {
		t.Items = []LineItem{}
	}
	tx.doc.Transactions = append(tx.doc.Transactions, domain.CloneTransaction(t))
	tx.recordChange(Change{Entity: EntityTransaction, Action: ActionCreate, After: domain.CloneTransaction(t)})
	return domain.CloneTransaction(t), nil
}

func (tx *transaction) UpdateTransaction(id string, mutator func(*Transaction) error) (Transaction, bool, error) {
	idx := slices.IndexFunc(tx.doc.Transactions, func(x Transaction) bool { return x.ID == id })
	if idx < 0 {
		return Transaction{}, false, nil
	}
	before := domain.CloneTransaction(tx.doc.Transactions[idx])
	current := domain.CloneTransaction(before)
	if err := mutator(&current); err != nil {
		return Transaction{}, true, err
	}
	current.ID = id
	tx.doc.Transactions[idx] = domain.CloneTransaction(current)
	tx.recordChange(Change{Entity: EntityTransaction, Action: ActionUpdate, Before: before, After: domain.CloneTransaction(current)})
	return current, true, nil
}

func (tx *transaction) AppendLink(l SignatureLink) (SignatureLink, error) {
	if l.Token == "" {
		return SignatureLink{}, errors.New("link token required")
	}
	if slices.ContainsFunc(tx.doc.Links, func(x SignatureLink) bool { return x.Token == l.Token }) {
		return SignatureLink{}, fmt.Errorf("link token: %w", domain.ErrConflict)
	}
	tx.doc.Links = append(tx.doc.Links, l)
	tx.recordChange(Change{Entity: EntityLink, Action: ActionCreate, After: l})
	return l, nil
}

func (tx *transaction) UpdateLink(token string, mutator func(*SignatureLink) error) (SignatureLink, bool, error) {
	idx := slices.IndexFunc(tx.doc.Links, func(x SignatureLink) bool { return x.Token == token })
	if idx < 0 {
		return SignatureLink{}, false, nil
	}
	before := tx.doc.Links[idx]
	current := before
	if err := mutator(&current); err != nil {
		return SignatureLink{}, true, err
	}
	current.Token = token
	tx.doc.Links[idx] = current
	tx.recordChange(Change{Entity: EntityLink, Action: ActionUpdate, Before: before, After: current})
	return current, true, nil
}

func (tx *transaction) RemoveLinks(match func(SignatureLink) bool) int {
	kept := tx.doc.Links[:0:0]
	removed := 0
	for _, l := range tx.doc.Links {
		if match(l) {
			removed++
			tx.recordChange(Change{Entity: EntityLink, Action: ActionDelete, Before: l})
			continue
		}
		kept = append(kept, l)
	}
	tx.doc.Links = kept
	return removed
}

func (tx *transaction) AppendItem(item InventoryItem) (InventoryItem, error) {
	if item.Name == "" {
		return InventoryItem{}, errors.New("item name required")
	}
	if slices.ContainsFunc(tx.doc.Inventory, func(x InventoryItem) bool { return x.Name == item.Name }) {
		return InventoryItem{}, fmt.Errorf("item %q: %w", item.Name, domain.ErrConflict)
	}
	item = domain.CloneItem(item)
	tx.doc.Inventory = append(tx.doc.Inventory, item)
	tx.recordChange(Change{Entity: EntityItem, Action: ActionCreate, After: domain.CloneItem(item)})
	return domain.CloneItem(item), nil
}

// AdjustStock applies delta to the first catalog item named item, flooring
// the result at zero. Unknown items or sizes are left alone.
func (tx *transaction) AdjustStock(item, size string, delta int) (before, after int, applied bool) {
	idx := slices.IndexFunc(tx.doc.Inventory, func(x InventoryItem) bool { return x.Name == item })
	if idx < 0 {
		return 0, 0, false
	}
	inv := &tx.doc.Inventory[idx]
	before, ok := inv.Sizes[size]
	if !ok {
		return 0, 0, false
	}
	after = max(0, before+delta)
	inv.Sizes[size] = after
	tx.recordChange(Change{
		Entity: EntityItem,
		Action: ActionUpdate,
		After:  domain.StockAdjustment{Item: item, Size: size, Delta: delta, Before: before, After: after},
	})
	return before, after, true
}

func (tx *transaction) AppendMovement(m InventoryMovement) (InventoryMovement, error) {
	if m.ID == "" {
		return InventoryMovement{}, errors.New("movement id required")
	}
	if slices.ContainsFunc(tx.doc.Movements, func(x InventoryMovement) bool { return x.ID == m.ID }) {
		return InventoryMovement{}, fmt.Errorf("movement %q: %w", m.ID, domain.ErrConflict)
	}
	tx.doc.Movements = append(tx.doc.Movements, domain.CloneMovement(m))
	tx.recordChange(Change{Entity: EntityMovement, Action: ActionCreate, After: domain.CloneMovement(m)})
	return domain.CloneMovement(m), nil
}

// documentView exposes a read-only view over a document; every accessor
// returns copies.
type documentView struct {
	doc *domain.Document
}

var _ domain.TxView = documentView{}

func (v documentView) ListEmployees() []Employee {
	return append([]Employee{}, v.doc.Employees...)
}

func (v documentView) ListTransactions() []Transaction {
	out := make([]Transaction, 0, len(v.doc.Transactions))
	for _, t := range v.doc.Transactions {
		out = append(out, domain.CloneTransaction(t))
	}
	return out
}

func (v documentView) ListInventory() []InventoryItem {
	out := make([]InventoryItem, 0, len(v.doc.Inventory))
	for _, item := range v.doc.Inventory {
		out = append(out, domain.CloneItem(item))
	}
	return out
}

func (v documentView) ListLinks() []SignatureLink {
	return append([]SignatureLink{}, v.doc.Links...)
}

func (v documentView) ListMovements() []InventoryMovement {
	out := make([]InventoryMovement, 0, len(v.doc.Movements))
	for _, m := range v.doc.Movements {
		out = append(out, domain.CloneMovement(m))
	}
	return out
}

func (v documentView) FindEmployee(id string) (Employee, bool) {
	for _, e := range v.doc.Employees {
		if e.ID == id {
			return e, true
		}
	}
	return Employee{}, false
}

func (v documentView) FindTransaction(id string) (Transaction, bool) {
	for _, t := range v.doc.Transactions {
		if t.ID == id {
			return domain.CloneTransaction(t), true
		}
	}
	return Transaction{}, false
}

// FindItem returns the first item with the given name.
func (v documentView) FindItem(name string) (InventoryItem, bool) {
	for _, item := range v.doc.Inventory {
		if item.Name == name {
			return domain.CloneItem(item), true
		}
	}
	return InventoryItem{}, false
}

func (v documentView) FindLink(token string) (SignatureLink, bool) {
	for _, l := range v.doc.Links {
		if l.Token == token {
			return l, true
		}
	}
	return SignatureLink{}, false
}
