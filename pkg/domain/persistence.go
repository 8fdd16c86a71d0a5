package domain

import (
	"context"
	"errors"
)

// StorageDriver identifies a concrete document storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageMySQL    StorageDriver = "mysql"    // MySQL / MariaDB server
	StorageRedis    StorageDriver = "redis"    // single redis key
	StorageBlob     StorageDriver = "blob"     // object in the configured blob store
)

var (
	// ErrNoDocument is returned by DocumentStore.Load when nothing has been saved yet.
	ErrNoDocument = errors.New("custody: no persisted document")
	// ErrInvalidInput wraps validation failures on operation inputs.
	ErrInvalidInput = errors.New("custody: invalid input")
	// ErrConflict is returned when a business key is already taken.
	ErrConflict = errors.New("custody: conflict")
)

// DocumentStore loads and saves the whole custody document. Save overwrites
// the previous document in a single write from the caller's point of view.
type DocumentStore interface {
	Load(ctx context.Context) (Document, error)
	Save(ctx context.Context, doc Document) error
	Driver() StorageDriver
	Close() error
}

// Tx exposes the document mutations available within an atomic store scope.
type Tx interface {
	Snapshot() TxView
	AppendEmployee(Employee) (Employee, error)
	UpdateEmployee(id string, mutator func(*Employee) error) (Employee, bool, error)
	AppendTransaction(Transaction) (Transaction, error)
	UpdateTransaction(id string, mutator func(*Transaction) error) (Transaction, bool, error)
	AppendLink(SignatureLink) (SignatureLink, error)
	UpdateLink(token string, mutator func(*SignatureLink) error) (SignatureLink, bool, error)
	RemoveLinks(match func(SignatureLink) bool) int
	AppendItem(InventoryItem) (InventoryItem, error)
	AdjustStock(item, size string, delta int) (before, after int, applied bool)
	AppendMovement(InventoryMovement) (InventoryMovement, error)
}

// TxView provides read-only access to document data for rules and queries.
type TxView interface {
	ListEmployees() []Employee
	ListTransactions() []Transaction
	ListInventory() []InventoryItem
	ListLinks() []SignatureLink
	ListMovements() []InventoryMovement
	FindEmployee(id string) (Employee, bool)
	FindTransaction(id string) (Transaction, bool)
	FindItem(name string) (InventoryItem, bool)
	FindLink(token string) (SignatureLink, bool)
}
