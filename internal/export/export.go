// Package export renders custody reports as CSV or XLSX. Reports are built
// from a document copy and never touch the store.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"custodycore/internal/reporting"
	"custodycore/pkg/domain"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Format selects the output encoding of a report.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Table is one report: a sheet name, a header row and typed cells.
type Table struct {
	Name   string
	Header []string
	Rows   [][]any
}

// Report names accepted by Build.
const (
	ReportEmployees = "employees"
	ReportInventory = "inventory"
	ReportMovements = "movements"
)

// Build returns the named report for doc. threshold drives the inventory
// status column.
func Build(name string, doc domain.Document, threshold int) (Table, error) {
	switch name {
	case ReportEmployees:
		return EmployeesTable(doc), nil
	case ReportInventory:
		return InventoryTable(doc, threshold), nil
	case ReportMovements:
		return MovementsTable(doc), nil
	default:
		return Table{}, fmt.Errorf("unknown report %q", name)
	}
}

// EmployeesTable lists every employee with the items held and their value.
func EmployeesTable(doc domain.Document) Table {
	t := Table{
		Name:   "Employés",
		Header: []string{"ID", "Nom", "Téléphone", "Email", "Actif", "Articles détenus", "Valeur ($)"},
	}
	for _, e := range doc.Employees {
		balance := reporting.Balance(doc.Transactions, e.ID)
		held := 0
		for _, line := range balance {
			held += line.Quantity
		}
		t.Rows = append(t.Rows, []any{
			e.ID, e.Name, e.Phone, e.Email, yesNo(e.Active), held, reporting.BalanceValue(balance),
		})
	}
	return t
}

// InventoryTable lists every item/size with its value and stock status.
func InventoryTable(doc domain.Document, threshold int) Table {
	t := Table{
		Name:   "Inventaire",
		Header: []string{"Article", "Catégorie", "Taille", "Quantité", "Prix ($)", "Valeur ($)", "Statut"},
	}
	for _, line := range reporting.StockLines(doc.Inventory) {
		t.Rows = append(t.Rows, []any{
			line.Item, line.Category, line.Size, line.Quantity, line.Price,
			line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))),
			statusLabel(reporting.ClassifyStock(line.Quantity, threshold)),
		})
	}
	return t
}

// MovementsTable lists the stock ledger, newest first.
func MovementsTable(doc domain.Document) Table {
	t := Table{
		Name:   "Mouvements",
		Header: []string{"Date", "Type", "Article", "Taille", "Quantité", "Coût ($)", "Fournisseur", "Raison", "Par", "Notes"},
	}
	for _, m := range reporting.MovementsNewestFirst(doc.Movements, 0) {
		var cost any = ""
		if m.Cost != nil {
			cost = *m.Cost
		}
		t.Rows = append(t.Rows, []any{
			m.Date, movementLabel(m.Type), m.Item, m.Size, m.Quantity, cost, m.Supplier, m.Reason, m.CreatedBy, m.Notes,
		})
	}
	return t
}

func yesNo(b bool) string {
	if b {
		return "Oui"
	}
	return "Non"
}

func statusLabel(s reporting.StockStatus) string {
	switch s {
	case reporting.StockOut:
		return "Rupture"
	case reporting.StockLow:
		return "Faible"
	default:
		return "OK"
	}
}

func movementLabel(t domain.MovementType) string {
	if t == domain.MovementPurchase {
		return "Achat"
	}
	return "Ajustement"
}

// Write encodes t in format f.
func Write(w io.Writer, f Format, t Table) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, t)
	case FormatXLSX:
		return WriteXLSX(w, t)
	default:
		return fmt.Errorf("unknown export format %q", f)
	}
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteCSV writes t as CSV prefixed with a UTF-8 byte order mark so that
// spreadsheet tools detect the encoding of accented headers.
func WriteCSV(w io.Writer, t Table) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	record := make([]string, len(t.Header))
	for _, row := range t.Rows {
		record = record[:0]
		for _, cell := range row {
			record = append(record, csvCell(cell))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvCell(v any) string {
	switch x := v.(type) {
	case decimal.Decimal:
		return x.StringFixed(2)
	case time.Time:
		return x.Format("2006-01-02 15:04")
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// WriteXLSX writes the tables as sheets of one workbook, headers in bold.
func WriteXLSX(w io.Writer, tables ...Table) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	for i, t := range tables {
		sheet := t.Name
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return err
		}
		if err := writeSheet(f, sheet, t, bold); err != nil {
			return fmt.Errorf("sheet %s: %w", sheet, err)
		}
	}
	return f.Write(w)
}

func writeSheet(f *excelize.File, sheet string, t Table, headerStyle int) error {
	header := make([]any, len(t.Header))
	for i, h := range t.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(max(len(t.Header), 1), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return err
	}
	for r, row := range t.Rows {
		cells := make([]any, len(row))
		for i, v := range row {
			cells[i] = xlsxCell(v)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return err
		}
	}
	return nil
}

func xlsxCell(v any) any {
	switch x := v.(type) {
	case decimal.Decimal:
		return x.InexactFloat64()
	case time.Time:
		return x.Format("2006-01-02 15:04")
	default:
		return x
	}
}
