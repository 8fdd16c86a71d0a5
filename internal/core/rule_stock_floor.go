package core

import (
	"context"
	"fmt"

	"custodycore/internal/reporting"
	"custodycore/pkg/domain"
)

// NewStockFloorRule returns the rule blocking any commit that leaves a size
// count it touched below zero. Counts the commit did not touch are not
// checked, so old data never blocks unrelated mutations.
func NewStockFloorRule() domain.Rule {
	return stockFloorRule{}
}

type stockFloorRule struct{}

func (stockFloorRule) Name() string { return "stock_floor" }

func (stockFloorRule) Evaluate(_ context.Context, view domain.TxView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	touched := map[string][]string{}
	var names []string
	touch := func(item string, sizes ...string) {
		if _, seen := touched[item]; !seen {
			names = append(names, item)
		}
		touched[item] = append(touched[item], sizes...)
	}
	for _, change := range changes {
		switch after := change.After.(type) {
		case domain.StockAdjustment:
			touch(after.Item, after.Size)
		case domain.InventoryItem:
			touch(after.Name, reporting.SortedSizes(after.Sizes)...)
		}
	}
	for _, name := range names {
		item, ok := view.FindItem(name)
		if !ok {
			continue
		}
		for _, size := range touched[name] {
			count := item.Sizes[size]
			if count >= 0 {
				continue
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "stock_floor",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("%s %s has negative stock %d", item.Name, size, count),
				Entity:   domain.EntityItem,
				EntityID: item.Name,
			})
		}
	}
	return res, nil
}
