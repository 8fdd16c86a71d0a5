package domain

import "maps"

// Document is the single persisted unit holding every collection. Collections
// keep insertion order; queries that promise document order rely on it.
type Document struct {
	Employees    []Employee          `json:"employees"`
	Transactions []Transaction       `json:"transactions"`
	Inventory    []InventoryItem     `json:"inventory"`
	Links        []SignatureLink     `json:"links"`
	Movements    []InventoryMovement `json:"movements"`
}

// Normalize replaces nil collections with empty ones so that documents written
// by older sessions (which may lack movements) round-trip as empty arrays.
func (d *Document) Normalize() {
	if d.Employees == nil {
		d.Employees = []Employee{}
	}
	if d.Transactions == nil {
		d.Transactions = []Transaction{}
	}
	if d.Inventory == nil {
		d.Inventory = []InventoryItem{}
	}
	if d.Links == nil {
		d.Links = []SignatureLink{}
	}
	if d.Movements == nil {
		d.Movements = []InventoryMovement{}
	}
	for i := range d.Inventory {
		if d.Inventory[i].Sizes == nil {
			d.Inventory[i].Sizes = map[string]int{}
		}
	}
	for i := range d.Transactions {
		if d.Transactions[i].Items == nil {
			d.Transactions[i].Items = []LineItem{}
		}
	}
}

// Clone returns a deep copy safe to mutate independently.
func (d Document) Clone() Document {
	out := Document{
		Employees:    append([]Employee(nil), d.Employees...),
		Transactions: make([]Transaction, len(d.Transactions)),
		Inventory:    make([]InventoryItem, len(d.Inventory)),
		Links:        append([]SignatureLink(nil), d.Links...),
		Movements:    make([]InventoryMovement, len(d.Movements)),
	}
	for i, t := range d.Transactions {
		out.Transactions[i] = CloneTransaction(t)
	}
	for i, item := range d.Inventory {
		out.Inventory[i] = CloneItem(item)
	}
	for i, m := range d.Movements {
		out.Movements[i] = CloneMovement(m)
	}
	out.Normalize()
	return out
}

// CloneItem deep-copies an inventory item including its size map.
func CloneItem(i InventoryItem) InventoryItem {
	cp := i
	cp.Sizes = maps.Clone(i.Sizes)
	if cp.Sizes == nil {
		cp.Sizes = map[string]int{}
	}
	return cp
}

// CloneTransaction deep-copies a transaction and its pointer fields.
func CloneTransaction(t Transaction) Transaction {
	cp := t
	cp.Items = append([]LineItem(nil), t.Items...)
	if t.Signature != nil {
		sig := *t.Signature
		cp.Signature = &sig
	}
	if t.SignedAt != nil {
		at := *t.SignedAt
		cp.SignedAt = &at
	}
	if t.LinkToken != nil {
		tok := *t.LinkToken
		cp.LinkToken = &tok
	}
	return cp
}

// CloneMovement deep-copies a movement.
func CloneMovement(m InventoryMovement) InventoryMovement {
	cp := m
	if m.Cost != nil {
		c := *m.Cost
		cp.Cost = &c
	}
	return cp
}
