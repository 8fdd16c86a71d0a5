package core

import (
	"context"
	"fmt"

	"custodycore/internal/reporting"
	"custodycore/pkg/domain"
)

// NewLowStockRule warns when a stock adjustment in the transaction moves a
// count from at or above threshold to below it, or down to zero.
func NewLowStockRule(threshold int) domain.Rule {
	return lowStockRule{threshold: threshold}
}

type lowStockRule struct {
	threshold int
}

func (lowStockRule) Name() string { return "low_stock" }

func (r lowStockRule) Evaluate(_ context.Context, _ domain.TxView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		adj, ok := change.After.(domain.StockAdjustment)
		if !ok {
			continue
		}
		was := reporting.ClassifyStock(adj.Before, r.threshold)
		now := reporting.ClassifyStock(adj.After, r.threshold)
		if now == was || now == reporting.StockOK {
			continue
		}
		msg := fmt.Sprintf("%s %s low on stock: %d left", adj.Item, adj.Size, adj.After)
		if now == reporting.StockOut {
			msg = fmt.Sprintf("%s %s out of stock", adj.Item, adj.Size)
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "low_stock",
			Severity: domain.SeverityWarn,
			Message:  msg,
			Entity:   domain.EntityItem,
			EntityID: adj.Item,
		})
	}
	return res, nil
}
