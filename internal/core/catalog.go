package core

import (
	"maps"
	"strconv"

	"github.com/shopspring/decimal"
)

type catalogEntry struct {
	name     string
	category string
	price    int64
	sizes    map[string]int
}

var defaultCatalog = []catalogEntry{
	{"Chemise ML", "Hauts", 30, map[string]int{"S": 50, "M": 100, "L": 75, "XL": 40, "XXL": 20, "3XL": 10}},
	{"Chemise MC", "Hauts", 30, map[string]int{"S": 60, "M": 120, "L": 80, "XL": 45, "XXL": 25, "3XL": 10}},
	{"Col rond", "Hauts", 20, map[string]int{"S": 40, "M": 80, "L": 60, "XL": 30, "XXL": 15}},
	{"Polo", "Hauts", 15, map[string]int{"S": 40, "M": 80, "L": 60, "XL": 30, "XXL": 15}},
	{"Tuque", "Accessoires", 8, map[string]int{"Unique": 60}},
	{"Casquette", "Accessoires", 8, map[string]int{"Unique": 80}},
	{"Ceinture", "Accessoires", 10, map[string]int{"Unique": 100}},
	{"Pantalon", "Bas", 27, map[string]int{"S": 30, "M": 70, "L": 50, "XL": 25, "XXL": 10, "3XL": 5}},
	{"Coupe-vent", "Manteaux", 50, map[string]int{"S": 25, "M": 50, "L": 40, "XL": 20, "XXL": 15}},
	{"Manteau 3 en 1", "Manteaux", 150, map[string]int{"S": 20, "M": 40, "L": 30, "XL": 15, "XXL": 10}},
	{"Dossard", "Accessoires", 15, map[string]int{"M": 50, "L": 50, "XL": 50}},
	{"Casque-chantier", "Sécurité", 25, map[string]int{"Unique": 40}},
	{"Épaulettes", "Accessoires", 5, map[string]int{"Unique": 100}},
}

// DefaultCatalog returns the uniform catalog a new document starts with. Ids
// are the 1-based catalog positions.
func DefaultCatalog() []InventoryItem {
	out := make([]InventoryItem, 0, len(defaultCatalog))
	for i, e := range defaultCatalog {
		out = append(out, InventoryItem{
			ID:       strconv.Itoa(i + 1),
			Name:     e.name,
			Category: e.category,
			Price:    decimal.NewFromInt(e.price),
			Sizes:    maps.Clone(e.sizes),
		})
	}
	return out
}
