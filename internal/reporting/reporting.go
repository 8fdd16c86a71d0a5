// Package reporting derives custody balances and stock views from document
// data. Every function is pure: results are recomputed on each call and never
// written back to the document.
package reporting

import (
	"sort"

	"custodycore/pkg/domain"

	"github.com/shopspring/decimal"
)

// DefaultLowStockThreshold is used when callers pass a non-positive threshold.
const DefaultLowStockThreshold = 10

// BalanceLine is the net quantity of one item/size held by an employee.
type BalanceLine struct {
	Name     string          `json:"name"`
	Size     string          `json:"size"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// Value returns quantity × price.
func (b BalanceLine) Value() decimal.Decimal {
	return b.Price.Mul(decimal.NewFromInt(int64(b.Quantity)))
}

// StockLine is one catalog item/size pair with its current count.
type StockLine struct {
	Item     string          `json:"item"`
	Category string          `json:"category,omitempty"`
	Size     string          `json:"size"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// StockStatus classifies a stock count.
type StockStatus string

const (
	StockOut StockStatus = "out"
	StockLow StockStatus = "low"
	StockOK  StockStatus = "ok"
)

// ClassifyStock maps a count to out (zero), low (below threshold) or ok.
func ClassifyStock(quantity, threshold int) StockStatus {
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	switch {
	case quantity <= 0:
		return StockOut
	case quantity < threshold:
		return StockLow
	default:
		return StockOK
	}
}

type balanceKey struct{ name, size string }

// Balance replays an employee's transactions newest first, adding issued
// quantities and subtracting returns per (name, size), and keeps strictly
// positive results. A line takes its price from the most recent transaction
// that mentions it, and lines are ordered by that transaction.
func Balance(txs []domain.Transaction, employeeID string) []BalanceLine {
	acc := make(map[balanceKey]*BalanceLine)
	var order []balanceKey
	for _, t := range TransactionsNewestFirst(txs, employeeID) {
		sign := 0
		switch {
		case t.Type.Issues():
			sign = 1
		case t.Type == domain.TransactionRetour:
			sign = -1
		}
		for _, item := range t.Items {
			key := balanceKey{item.Name, item.Size}
			line, ok := acc[key]
			if !ok {
				line = &BalanceLine{Name: item.Name, Size: item.Size, Price: item.Price}
				acc[key] = line
				order = append(order, key)
			}
			line.Quantity += sign * item.Quantity
		}
	}
	out := make([]BalanceLine, 0, len(order))
	for _, key := range order {
		if line := acc[key]; line.Quantity > 0 {
			out = append(out, *line)
		}
	}
	return out
}

// BalanceValue sums quantity × price over balance lines.
func BalanceValue(lines []BalanceLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Value())
	}
	return total
}

// TransactionTotal sums quantity × price over a transaction's lines, including
// lines that did not affect stock.
func TransactionTotal(t domain.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, item := range t.Items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// StockLines flattens the catalog into item/size pairs with sizes sorted per
// item so results are deterministic.
func StockLines(items []domain.InventoryItem) []StockLine {
	var out []StockLine
	for _, item := range items {
		for _, size := range SortedSizes(item.Sizes) {
			out = append(out, StockLine{
				Item:     item.Name,
				Category: item.Category,
				Size:     size,
				Quantity: item.Sizes[size],
				Price:    item.Price,
			})
		}
	}
	return out
}

// LowStock returns every item/size whose count is strictly below threshold.
func LowStock(items []domain.InventoryItem, threshold int) []StockLine {
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	out := []StockLine{}
	for _, line := range StockLines(items) {
		if line.Quantity < threshold {
			out = append(out, line)
		}
	}
	return out
}

// OutOfStock returns every item/size with a zero count.
func OutOfStock(items []domain.InventoryItem) []StockLine {
	out := []StockLine{}
	for _, line := range StockLines(items) {
		if line.Quantity <= 0 {
			out = append(out, line)
		}
	}
	return out
}

// InventoryValue sums count × price across the catalog.
func InventoryValue(items []domain.InventoryItem) decimal.Decimal {
	total := decimal.Zero
	for _, line := range StockLines(items) {
		total = total.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total
}

var standardSizeOrder = map[string]int{
	"XS": 1, "S": 2, "M": 3, "L": 4, "XL": 5, "XXL": 6, "3XL": 7, "4XL": 8, "Unique": 9,
}

// SortedSizes orders size labels with standard apparel sizes first, then
// custom labels alphabetically.
func SortedSizes(sizes map[string]int) []string {
	out := make([]string, 0, len(sizes))
	for s := range sizes {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, iok := standardSizeOrder[out[i]]
		rj, jok := standardSizeOrder[out[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return out[i] < out[j]
		}
	})
	return out
}

// TransactionsNewestFirst filters by employee and sorts by creation time descending.
func TransactionsNewestFirst(txs []domain.Transaction, employeeID string) []domain.Transaction {
	out := []domain.Transaction{}
	for _, t := range txs {
		if t.EmployeeID == employeeID {
			out = append(out, domain.CloneTransaction(t))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// MovementsNewestFirst sorts movements by date descending and truncates to
// limit when limit is positive.
func MovementsNewestFirst(movements []domain.InventoryMovement, limit int) []domain.InventoryMovement {
	out := make([]domain.InventoryMovement, 0, len(movements))
	for _, m := range movements {
		out = append(out, domain.CloneMovement(m))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ItemHistory returns movements for item (and size when non-empty), newest first.
func ItemHistory(movements []domain.InventoryMovement, item, size string) []domain.InventoryMovement {
	var matched []domain.InventoryMovement
	for _, m := range movements {
		if m.Item == item && (size == "" || m.Size == size) {
			matched = append(matched, m)
		}
	}
	return MovementsNewestFirst(matched, 0)
}
