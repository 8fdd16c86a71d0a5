// Package domain defines the persisted custody entities, the document that
// holds them, and the rule evaluation primitives used by custodycore.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntityType identifies the type of record stored in the custody document.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	EntityEmployee    EntityType = "employee"
	EntityItem        EntityType = "inventory_item"
	EntityTransaction EntityType = "transaction"
	EntityLink        EntityType = "signature_link"
	EntityMovement    EntityType = "movement"
	// EntityBackup marks audit entries about blob backups, which live
	// outside the document.
	EntityBackup EntityType = "backup"
)

// TransactionType enumerates custody transaction kinds.
type TransactionType string

// Custody transaction kinds. Attribution and ajout issue stock and require a
// signature; retour returns stock and never carries a link.
const (
	TransactionAttribution TransactionType = "attribution"
	TransactionAjout       TransactionType = "ajout"
	TransactionRetour      TransactionType = "retour"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionAttribution, TransactionAjout, TransactionRetour:
		return true
	}
	return false
}

// Issues reports whether the transaction hands stock to the employee.
func (t TransactionType) Issues() bool {
	return t == TransactionAttribution || t == TransactionAjout
}

// RequiresSignature reports whether a signature link is created for the type.
func (t TransactionType) RequiresSignature() bool { return t.Issues() }

// MovementType enumerates inventory ledger entry kinds.
type MovementType string

const (
	MovementPurchase   MovementType = "purchase"
	MovementAdjustment MovementType = "adjustment"
)

// DefaultActor is recorded as createdBy when the caller does not supply one.
const DefaultActor = "Réceptionniste"

// Employee is a person who can hold uniform items.
type Employee struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// InventoryItem is a catalog entry. Name is the business key used by every
// lookup; ID is informational.
type InventoryItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
	Sizes    map[string]int  `json:"sizes"`
}

// HasSize reports whether the catalog tracks stock for the size label.
func (i InventoryItem) HasSize(size string) bool {
	_, ok := i.Sizes[size]
	return ok
}

// LineItem is one requested item/size/quantity inside a transaction.
type LineItem struct {
	Name     string          `json:"name" validate:"required"`
	Size     string          `json:"size" validate:"required"`
	Quantity int             `json:"quantity" validate:"gt=0"`
	Price    decimal.Decimal `json:"price"`
}

// Signature is the opaque capture produced by the signing collaborator.
type Signature struct {
	Data      string    `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Transaction records an attribution, ajout or retour for one employee.
type Transaction struct {
	ID         string          `json:"id"`
	Type       TransactionType `json:"type"`
	EmployeeID string          `json:"employeeId"`
	Items      []LineItem      `json:"items"`
	Notes      string          `json:"notes"`
	CreatedAt  time.Time       `json:"createdAt"`
	CreatedBy  string          `json:"createdBy,omitempty"`
	Signature  *Signature      `json:"signature"`
	Signed     bool            `json:"signed"`
	SignedAt   *time.Time      `json:"signedAt,omitempty"`
	LinkToken  *string         `json:"linkToken"`
}

// SignatureLink is a single-use capability allowing one transaction to be signed.
type SignatureLink struct {
	Token         string    `json:"token"`
	TransactionID string    `json:"transactionId"`
	Used          bool      `json:"used"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// InventoryMovement is an append-only ledger entry for purchases and manual
// adjustments. Quantity is a signed delta.
type InventoryMovement struct {
	ID        string           `json:"id"`
	Type      MovementType     `json:"type"`
	Item      string           `json:"item"`
	Size      string           `json:"size"`
	Quantity  int              `json:"quantity"`
	Date      time.Time        `json:"date"`
	CreatedBy string           `json:"createdBy"`
	Cost      *decimal.Decimal `json:"cost,omitempty"`
	Supplier  string           `json:"supplier,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	Notes     string           `json:"notes,omitempty"`
}

// Action indicates the type of change recorded in a transaction.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Change describes a mutation applied to the document inside one store transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// StockAdjustment is the Change payload recorded when a size count moves.
// Delta is the requested change; After is floored at zero.
type StockAdjustment struct {
	Item   string
	Size   string
	Delta  int
	Before int
	After  int
}

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Violation reports a rule breach.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates rule violations.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true when any violation blocks commit.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return "transaction blocked by rules: " + v.Rule + ": " + v.Message
		}
	}
	return "transaction blocked by rules"
}
