package domain

import (
	"context"
	"fmt"
)

// Rule checks the staged document after a custody mutation and before it is
// committed.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view TxView, changes []Change) (Result, error)
}

// RulesEngine runs rules in registration order.
type RulesEngine struct {
	rules []Rule
}

func NewRulesEngine(rules ...Rule) *RulesEngine {
	return &RulesEngine{rules: append([]Rule(nil), rules...)}
}

func (e *RulesEngine) Register(rule Rule) { e.rules = append(e.rules, rule) }

// Rules lists rule names in evaluation order.
func (e *RulesEngine) Rules() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name()
	}
	return names
}

// Evaluate collects the violations of every rule. Violations a rule leaves
// unnamed are attributed to it; the first rule error aborts evaluation.
func (e *RulesEngine) Evaluate(ctx context.Context, view TxView, changes []Change) (Result, error) {
	var all Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, fmt.Errorf("rule %s: %w", rule.Name(), err)
		}
		for i := range res.Violations {
			if res.Violations[i].Rule == "" {
				res.Violations[i].Rule = rule.Name()
			}
		}
		all.Merge(res)
	}
	return all, nil
}
