package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"custodycore/internal/ident"
	"custodycore/internal/reporting"
	"custodycore/pkg/domain"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"
)

// Service exposes the custody operations on top of a Store. Mutations run in
// store transactions and are traced, measured and audited; queries read the
// current document.
type Service struct {
	store         *Store
	clock         Clock
	logger        Logger
	audit         AuditRecorder
	metrics       MetricsRecorder
	tracer        Tracer
	locker        Locker
	validate      *validator.Validate
	phoneRegion   string
	lowStock      int
	movementLimit int
	linkTTL       time.Duration
}

// NewService constructs a service backed by the supplied store. Clock and
// logger default to the store's.
func NewService(store *Store, opts ...Option) *Service {
	o := buildOptions(opts)
	svc := &Service{
		store:         store,
		clock:         o.clock,
		logger:        o.logger,
		audit:         o.audit,
		metrics:       o.metrics,
		tracer:        o.tracer,
		locker:        o.locker,
		validate:      validator.New(),
		phoneRegion:   o.phoneRegion,
		lowStock:      o.lowStockThreshold,
		movementLimit: o.movementLimit,
		linkTTL:       o.linkTTL,
	}
	if svc.clock == nil {
		svc.clock = store.clock
	}
	if svc.logger == nil {
		svc.logger = store.logger
	}
	return svc
}

// Store returns the underlying store.
func (s *Service) Store() *Store { return s.store }

func (s *Service) now() time.Time { return s.clock.Now() }

type operationMetadata struct {
	entity EntityType
	action Action
}

var auditedOperations = map[string]operationMetadata{
	"add_employee":          {EntityEmployee, ActionCreate},
	"update_employee":       {EntityEmployee, ActionUpdate},
	"create_transaction":    {EntityTransaction, ActionCreate},
	"sign_transaction":      {EntityTransaction, ActionUpdate},
	"record_purchase":       {EntityMovement, ActionCreate},
	"record_adjustment":     {EntityMovement, ActionCreate},
	"remove_signature":      {EntityLink, ActionDelete},
	"remove_all_signatures": {EntityLink, ActionDelete},
	"add_inventory_item":    {EntityItem, ActionCreate},
	"seed_employees":        {EntityEmployee, ActionCreate},
	"write_backup":          {EntityBackup, ActionCreate},
	"delete_backup":         {EntityBackup, ActionDelete},
}

// mutate runs fn as the named operation. fn returns the id of the record it
// touched for the audit trail.
func (s *Service) mutate(ctx context.Context, op string, fn func(ctx context.Context) (string, error)) error {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, op)
	entityID, err := fn(ctx)
	duration := time.Since(start)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)
	if err != nil {
		s.recordAuditError(ctx, op, entityID, duration, err)
		s.logger.Warn("custody operation failed", "operation", op, "entity_id", entityID, "error", err)
		return err
	}
	s.recordAuditSuccess(ctx, op, entityID, duration)
	s.logger.Debug("custody operation", "operation", op, "entity_id", entityID, "duration", duration)
	return nil
}

func (s *Service) recordAuditSuccess(ctx context.Context, op, entityID string, duration time.Duration) {
	s.recordAudit(ctx, op, entityID, duration, AuditStatusSuccess, "")
}

func (s *Service) recordAuditError(ctx context.Context, op, entityID string, duration time.Duration, err error) {
	s.recordAudit(ctx, op, entityID, duration, AuditStatusError, err.Error())
}

func (s *Service) recordAudit(ctx context.Context, op, entityID string, duration time.Duration, status AuditStatus, msg string) {
	meta, ok := auditedOperations[op]
	if !ok {
		return
	}
	s.audit.Record(ctx, AuditEntry{
		Operation: op,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  entityID,
		Status:    status,
		Error:     msg,
		Duration:  duration,
		Timestamp: s.now(),
	})
}

func (s *Service) validateInput(in any) error {
	if err := s.validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

// NormalizePhone returns the E.164 form of raw when it parses as a valid
// number in region, and raw trimmed otherwise.
func NormalizePhone(raw, region string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	num, err := libphonenumber.Parse(raw, region)
	if err != nil || !libphonenumber.IsValidNumber(num) {
		return raw
	}
	return libphonenumber.Format(num, libphonenumber.E164)
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// EmployeeInput carries the fields of a new employee.
type EmployeeInput struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
	Notes string `json:"notes,omitempty"`
}

// EmployeeUpdate carries a partial employee update; nil fields are left alone.
type EmployeeUpdate struct {
	Name   *string `json:"name,omitempty"`
	Phone  *string `json:"phone,omitempty"`
	Email  *string `json:"email,omitempty" validate:"omitempty,email"`
	Notes  *string `json:"notes,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

// AddEmployee registers an active employee under the next EMP### code.
func (s *Service) AddEmployee(ctx context.Context, in EmployeeInput) (Employee, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validateInput(in); err != nil {
		return Employee{}, err
	}
	var created Employee
	err := s.mutate(ctx, "add_employee", func(ctx context.Context) (string, error) {
		_, err := s.store.RunInTransaction(ctx, func(tx domain.Tx) error {
			var err error
			created, err = tx.AppendEmployee(s.newEmployee(tx.Snapshot(), in))
			return err
		})
		return created.ID, err
	})
	return created, err
}

func (s *Service) newEmployee(view domain.TxView, in EmployeeInput) Employee {
	existing := view.ListEmployees()
	ids := make([]string, 0, len(existing))
	for _, e := range existing {
		ids = append(ids, e.ID)
	}
	return Employee{
		ID:        ident.NextEmployeeCode(ids),
		Name:      in.Name,
		Phone:     NormalizePhone(in.Phone, s.phoneRegion),
		Email:     strings.TrimSpace(in.Email),
		Notes:     in.Notes,
		Active:    true,
		CreatedAt: s.now(),
	}
}

// UpdateEmployee merges the non-nil fields of upd into the employee. Unknown
// ids are ignored.
func (s *Service) UpdateEmployee(ctx context.Context, id string, upd EmployeeUpdate) error {
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return fmt.Errorf("%w: name must not be empty", domain.ErrInvalidInput)
	}
	if err := s.validateInput(upd); err != nil {
		return err
	}
	return s.mutate(ctx, "update_employee", func(ctx context.Context) (string, error) {
		_, err := s.store.RunInTransaction(ctx, func(tx domain.Tx) error {
			_, ok, err := tx.UpdateEmployee(id, func(e *Employee) error {
				if upd.Name != nil {
					e.Name = strings.TrimSpace(*upd.Name)
				}
				if upd.Phone != nil {
					e.Phone = NormalizePhone(*upd.Phone, s.phoneRegion)
				}
				if upd.Email != nil {
					e.Email = strings.TrimSpace(*upd.Email)
				}
				if upd.Notes != nil {
					e.Notes = *upd.Notes
				}
				if upd.Active != nil {
					e.Active = *upd.Active
				}
				return nil
			})
			if !ok {
				s.logger.Debug("update of unknown employee ignored", "employee_id", id)
			}
			return err
		})
		return id, err
	})
}

// GetEmployee returns the employee with the given id.
func (s *Service) GetEmployee(id string) (Employee, bool) {
	var (
		e  Employee
		ok bool
	)
	_ = s.store.View(context.Background(), func(v domain.TxView) error {
		e, ok = v.FindEmployee(id)
		return nil
	})
	return e, ok
}

// ListEmployees returns employees in insertion order, optionally including
// deactivated ones.
func (s *Service) ListEmployees(includeInactive bool) []Employee {
	out := []Employee{}
	_ = s.store.View(context.Background(), func(v domain.TxView) error {
		for _, e := range v.ListEmployees() {
			if e.Active || includeInactive {
				out = append(out, e)
			}
		}
		return nil
	})
	return out
}

// SearchEmployees matches query case-insensitively against name, id and
// phone of active employees. Digits in the query are also matched against the
// digits of the phone so formatting differences do not matter.
func (s *Service) SearchEmployees(query string) []Employee {
	q := strings.ToLower(strings.TrimSpace(query))
	qDigits := digitsOnly(q)
	out := []Employee{}
	for _, e := range s.ListEmployees(false) {
		if q == "" ||
			strings.Contains(strings.ToLower(e.Name), q) ||
			strings.Contains(strings.ToLower(e.ID), q) ||
			strings.Contains(strings.ToLower(e.Phone), q) ||
			(qDigits != "" && strings.Contains(digitsOnly(e.Phone), qDigits)) {
			out = append(out, e)
		}
	}
	return out
}

// CreateTransaction records an attribution, ajout or retour and applies its
// stock effects in the same commit. Attribution and ajout also get a
// signature link. Lines naming an item or size missing from the catalog are
// kept on the transaction but leave stock untouched.
func (s *Service) CreateTransaction(ctx context.Context, typ TransactionType, employeeID string, items []LineItem, notes string) (Transaction, error) {
	if err := s.validateTransaction(typ, items); err != nil {
		return Transaction{}, err
	}
	var created Transaction
	err := s.mutate(ctx, "create_transaction", func(ctx context.Context) (string, error) {
		_, err := s.store.RunInTransaction(ctx, func(tx domain.Tx) error {
			now := s.now()
			view := tx.Snapshot()
			t := Transaction{
				ID:         ident.NewRecordID(),
				Type:       typ,
				EmployeeID: employeeID,
				Items:      make([]LineItem, 0, len(items)),
				Notes:      notes,
				CreatedAt:  now,
				CreatedBy:  domain.DefaultActor,
			}
			for _, line := range items {
				if line.Price.IsZero() {
					if item, ok := view.FindItem(line.Name); ok {
						line.Price = item.Price
					}
				}
				t.Items = append(t.Items, line)
			}
			var link *SignatureLink
			if typ.RequiresSignature() {
				token := ident.NewToken()
				t.LinkToken = &token
				link = &SignatureLink{Token: token, TransactionID: t.ID, ExpiresAt: now.Add(s.linkTTL)}
			}
			var err error
			if created, err = tx.AppendTransaction(t); err != nil {
				return err
			}
			if link != nil {
				if _, err := tx.AppendLink(*link); err != nil {
					return err
				}
			}
			sign := 1
			if typ.Issues() {
				sign = -1
			}
			for _, line := range t.Items {
				if _, _, applied := tx.AdjustStock(line.Name, line.Size, sign*line.Quantity); !applied {
					s.logger.Debug("line item not in catalog, stock unchanged",
						"transaction_id", t.ID, "item", line.Name, "size", line.Size)
				}
			}
			return nil
		})
		return created.ID, err
	})
	if err != nil {
		return Transaction{}, err
	}
	return created, nil
}

func (s *Service) validateTransaction(typ TransactionType, items []LineItem) error {
	if !typ.Valid() {
		return fmt.Errorf("%w: unknown transaction type %q", domain.ErrInvalidInput, typ)
	}
	if len(items) == 0 {
		return fmt.Errorf("%w: transaction needs at least one item", domain.ErrInvalidInput)
	}
	for i, line := range items {
		if err := s.validateInput(line); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
		if line.Price.IsNegative() {
			return fmt.Errorf("%w: item %d has a negative price", domain.ErrInvalidInput, i)
		}
	}
	return nil
}

// SignTransaction consumes the link for token and attaches sig to its
// transaction. It holds the locker for the token and rereads the persisted
// document before checking the link, so a token signed by another session is
// refused. ok is false for unknown, used or dangling tokens.
func (s *Service) SignTransaction(ctx context.Context, token string, sig Signature) (Transaction, bool, error) {
	if token == "" {
		return Transaction{}, false, nil
	}
	var (
		signed Transaction
		ok     bool
	)
	err := s.mutate(ctx, "sign_transaction", func(ctx context.Context) (string, error) {
		release, err := s.locker.Acquire(ctx, "sign:"+token)
		if err != nil {
			return "", fmt.Errorf("acquire sign lock: %w", err)
		}
		defer release()
		_, err = s.store.RunInFreshTransaction(ctx, func(tx domain.Tx) error {
			view := tx.Snapshot()
			link, found := view.FindLink(token)
			if !found || link.Used {
				return nil
			}
			if _, exists := view.FindTransaction(link.TransactionID); !exists {
				s.logger.Warn("signature link points at a missing transaction", "transaction_id", link.TransactionID)
				return nil
			}
			now := s.now()
			if sig.Timestamp.IsZero() {
				sig.Timestamp = now
			}
			if _, _, err := tx.UpdateLink(token, func(l *SignatureLink) error {
				l.Used = true
				return nil
			}); err != nil {
				return err
			}
			t, _, err := tx.UpdateTransaction(link.TransactionID, func(t *Transaction) error {
				stamped := sig
				t.Signature = &stamped
				t.Signed = true
				t.SignedAt = &now
				return nil
			})
			if err != nil {
				return err
			}
			signed, ok = t, true
			return nil
		})
		return signed.ID, err
	})
	if err != nil || !ok {
		return Transaction{}, false, err
	}
	return signed, true, nil
}

// ResolveSignatureLink returns the transaction an unused token would sign.
func (s *Service) ResolveSignatureLink(token string) (Transaction, bool) {
	var (
		t  Transaction
		ok bool
	)
	_ = s.store.View(context.Background(), func(v domain.TxView) error {
		link, found := v.FindLink(token)
		if !found || link.Used {
			return nil
		}
		t, ok = v.FindTransaction(link.TransactionID)
		return nil
	})
	return t, ok
}

// PendingSignature joins an unused link with its transaction and employee.
type PendingSignature struct {
	Link        SignatureLink `json:"link"`
	Transaction Transaction   `json:"transaction"`
	Employee    *Employee     `json:"employee,omitempty"`
}

// PendingSignatures lists unused links whose transaction still exists, in
// link order.
func (s *Service) PendingSignatures() []PendingSignature {
	out := []PendingSignature{}
	_ = s.store.View(context.Background(), func(v domain.TxView) error {
		for _, l := range v.ListLinks() {
			if l.Used {
				continue
			}
			t, ok := v.FindTransaction(l.TransactionID)
			if !ok {
				continue
			}
			p := PendingSignature{Link: l, Transaction: t}
			if e, ok := v.FindEmployee(t.EmployeeID); ok {
				p.Employee = &e
			}
			out = append(out, p)
		}
		return nil
	})
	return out
}

// RemoveSignature deletes the link for token. The transaction stays unsigned.
func (s *Service) RemoveSignature(ctx context.Context, token string) error {
	return s.mutate(ctx, "remove_signature", func(ctx context.Context) (string, error) {
		_, err := s.store.RunInTransaction(ctx, func(tx domain.Tx) error {
			tx.RemoveLinks(func(l SignatureLink) bool { return l.Token == token })
			return nil
		})
		return token, err
	})
}

// RemoveAllSignatures deletes every link.
func (s *Service) RemoveAllSignatures(ctx context.Context) error {
	return s.mutate(ctx, "remove_all_signatures", func(ctx context.Context) (string, error) {
		_, err := s.store.RunInTransaction(ctx, func(tx domain.Tx) error {
			n := tx.RemoveLinks(func(SignatureLink) bool { return true })
			s.logger.Info("signature links cleared", "count", n)
			return nil
		})
		return "", err
	})
}

// GetEmployeeTransactions returns the employee's transactions, newest first.
func (s *Service) GetEmployeeTransactions(employeeID string) []Transaction {
	var out []Transaction
	_ = s.store.View(context.Background(), func(v domain.TxView) error {
		out = reporting.TransactionsNewestFirst(v.ListTransactions(), employeeID)
		return nil
	})
	return out
}

// GetEmployeeBalance derives what the employee currently holds.
func (s *Service) GetEmployeeBalance(employeeID string) []reporting.BalanceLine {
	var out []reporting.BalanceLine
	_ = s.store.View(context.Background(), func(v domain.TxView) error {
		out = reporting.Balance(v.ListTransactions(), employeeID)
		return nil
	})
	return out
}

// PurchaseInput records stock received from a supplier.
type PurchaseInput struct {
	Item      string           `json:"item" validate:"required"`
	Size      string           `json:"size" validate:"required"`
	Quantity  int              `json:"quantity" validate:"gt=0"`
	Cost      *decimal.Decimal `json:"cost,omitempty"`
	Supplier  string           `json:"supplier,omitempty"`
	Notes     string           `json:"notes,omitempty"`
	CreatedBy string           `json:"createdBy,omitempty"`
}

// AdjustmentInput records a manual correction; Quantity is a signed delta.
type AdjustmentInput struct {
	Item      string `json:"item" validate:"required"`
	Size      string `json:"size" validate:"required"`
	Quantity  int    `json:"quantity" validate:"ne=0"`
	Reason    string `json:"reason,omitempty"`
	Notes     string `json:"notes,omitempty"`
	CreatedBy string `json:"createdBy,omitempty"`
}

// RecordPurchase adds stock and appends a purchase movement.
func (s *Service) RecordPurchase(ctx context.Context, in PurchaseInput) (InventoryMovement, error) {
	if err := s.validateInput(in); err != nil {
		return InventoryMovement{}, err
	}
	if in.Cost != nil && in.Cost.IsNegative() {
		return InventoryMovement{}, fmt.Errorf("%w: cost must not be negative", domain.ErrInvalidInput)
	}
	var cost *decimal.Decimal
	if in.Cost != nil {
		c := *in.Cost
		cost = &c
	}
	return s.createMovement(ctx, "record_purchase", InventoryMovement{
		Type:      domain.MovementPurchase,
		Item:      in.Item,
		Size:      in.Size,
		Quantity:  in.Quantity,
		CreatedBy: in.CreatedBy,
		Cost:      cost,
		Supplier:  in.Supplier,
		Notes:     in.Notes,
	})
}

// RecordAdjustment applies a signed correction and appends an adjustment movement.
func (s *Service) RecordAdjustment(ctx context.Context, in AdjustmentInput) (InventoryMovement, error) {
	if err := s.validateInput(in); err != nil {
		return InventoryMovement{}, err
	}
	return s.createMovement(ctx, "record_adjustment", InventoryMovement{
		Type:      domain.MovementAdjustment,
		Item:      in.Item,
		Size:      in.Size,
		Quantity:  in.Quantity,
		CreatedBy: in.CreatedBy,
		Reason:    in.Reason,
		Notes:     in.Notes,
	})
}

// createMovement applies the movement to stock (floored at zero) and appends
// it to the ledger in one commit. The movement keeps the requested delta even
// when the floor clipped it or the item is not in the catalog.
func (s *Service) createMovement(ctx context.Context, op string, m InventoryMovement) (InventoryMovement, error) {
	var created InventoryMovement
	err := s.mutate(ctx, op, func(ctx context.Context) (string, error) {
		_, err := s.store.RunInTransaction(ctx, func(tx domain.Tx) error {
			m.ID = ident.NewRecordID()
			m.Date = s.now()
			if m.CreatedBy == "" {
				m.CreatedBy = domain.DefaultActor
			}
			if _, _, applied := tx.AdjustStock(m.Item, m.Size, m.Quantity); !applied {
				s.logger.Debug("movement for item not in catalog, stock unchanged", "item", m.Item, "size", m.Size)
			}
			var err error
			created, err = tx.AppendMovement(m)
			return err
		})
		return created.ID, err
	})
	if err != nil {
		return InventoryMovement{}, err
	}
	return created, nil
}

// GetInventoryMovements returns the newest movements first. A non-positive
// limit uses the configured default.
func (s *Service) GetInventoryMovements(limit int) []InventoryMovement {
	if limit <= 0 {
		limit = s.movementLimit
	}
	var out []InventoryMovement
	_ = s.store.View(context.Background(), func(v domain.TxView) error {
		out = reporting.MovementsNewestFirst(v.ListMovements(), limit)
		return nil
	})
	return out
}

// GetItemHistory returns the movements of one item, optionally one size,
// newest first.
func (s *Service) GetItemHistory(item, size string) []InventoryMovement {
	var out []InventoryMovement
	_ = s.store.View(context.Background(), func(v domain.TxView) error {
		out = reporting.ItemHistory(v.ListMovements(), item, size)
		return nil
	})
	return out
}

// GetLowStockItems lists item/size pairs strictly below threshold. A
// non-positive threshold uses the configured default.
func (s *Service) GetLowStockItems(threshold int) []reporting.StockLine {
	if threshold <= 0 {
		threshold = s.lowStock
	}
	return reporting.LowStock(s.ListInventory(), threshold)
}

// GetOutOfStockItems lists item/size pairs with nothing left.
func (s *Service) GetOutOfStockItems() []reporting.StockLine {
	return reporting.OutOfStock(s.ListInventory())
}

// LowStockThreshold reports the configured default threshold.
func (s *Service) LowStockThreshold() int { return s.lowStock }

// InventoryItemInput describes a new catalog entry.
type InventoryItemInput struct {
	Name     string          `json:"name" validate:"required"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
	Sizes    map[string]int  `json:"sizes" validate:"dive,gte=0"`
}

// AddInventoryItem appends a catalog entry. Names are unique.
func (s *Service) AddInventoryItem(ctx context.Context, in InventoryItemInput) (InventoryItem, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validateInput(in); err != nil {
		return InventoryItem{}, err
	}
	if in.Price.IsNegative() {
		return InventoryItem{}, fmt.Errorf("%w: price must not be negative", domain.ErrInvalidInput)
	}
	var created InventoryItem
	err := s.mutate(ctx, "add_inventory_item", func(ctx context.Context) (string, error) {
		_, err := s.store.RunInTransaction(ctx, func(tx domain.Tx) error {
			item := InventoryItem{
				ID:       nextItemID(tx.Snapshot().ListInventory()),
				Name:     in.Name,
				Category: in.Category,
				Price:    in.Price,
				Sizes:    in.Sizes,
			}
			var err error
			created, err = tx.AppendItem(item)
			return err
		})
		return in.Name, err
	})
	if err != nil {
		return InventoryItem{}, err
	}
	return created, nil
}

func nextItemID(items []InventoryItem) string {
	highest := 0
	for _, item := range items {
		if n, err := strconv.Atoi(item.ID); err == nil && n > highest {
			highest = n
		}
	}
	return strconv.Itoa(highest + 1)
}

// ListInventory returns the catalog in document order.
func (s *Service) ListInventory() []InventoryItem {
	var out []InventoryItem
	_ = s.store.View(context.Background(), func(v domain.TxView) error {
		out = v.ListInventory()
		return nil
	})
	return out
}

// GetInventoryItem returns the first catalog entry with the given name.
func (s *Service) GetInventoryItem(name string) (InventoryItem, bool) {
	var (
		item InventoryItem
		ok   bool
	)
	_ = s.store.View(context.Background(), func(v domain.TxView) error {
		item, ok = v.FindItem(name)
		return nil
	})
	return item, ok
}

// Document returns a deep copy of the whole document.
func (s *Service) Document() domain.Document { return s.store.Document() }

var sampleEmployees = []EmployeeInput{
	{Name: "Frank Etoa", Phone: "+1 514 123 4567"},
	{Name: "Marie Dubois", Phone: "+1 514 234 5678"},
	{Name: "Jean Martin", Phone: "+1 514 345 6789"},
}

// SeedIfEmpty adds the sample employees when the document has none. It
// reports whether anything was added.
func (s *Service) SeedIfEmpty(ctx context.Context) (bool, error) {
	seeded := false
	err := s.mutate(ctx, "seed_employees", func(ctx context.Context) (string, error) {
		_, err := s.store.RunInTransaction(ctx, func(tx domain.Tx) error {
			if len(tx.Snapshot().ListEmployees()) > 0 {
				return nil
			}
			for _, in := range sampleEmployees {
				if _, err := tx.AppendEmployee(s.newEmployee(tx.Snapshot(), in)); err != nil {
					return err
				}
			}
			seeded = true
			return nil
		})
		return "", err
	})
	return seeded, err
}
