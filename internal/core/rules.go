package core

import "custodycore/internal/reporting"

// NewDefaultRulesEngine builds a rules engine with the built-in custody
// invariants. threshold drives the low-stock warning; non-positive values fall
// back to reporting.DefaultLowStockThreshold.
func NewDefaultRulesEngine(threshold int) *RulesEngine {
	if threshold <= 0 {
		threshold = reporting.DefaultLowStockThreshold
	}
	engine := NewRulesEngine()
	engine.Register(NewStockFloorRule())
	engine.Register(NewLinkPairingRule())
	engine.Register(NewLowStockRule(threshold))
	return engine
}
