package core

import "custodycore/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	Employee           = domain.Employee
	InventoryItem      = domain.InventoryItem
	LineItem           = domain.LineItem
	Signature          = domain.Signature
	Transaction        = domain.Transaction
	TransactionType    = domain.TransactionType
	SignatureLink      = domain.SignatureLink
	InventoryMovement  = domain.InventoryMovement
	Document           = domain.Document
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RuleViolationError = domain.RuleViolationError
	RulesEngine        = domain.RulesEngine
	Rule               = domain.Rule
)

const (
	EntityEmployee    = domain.EntityEmployee
	EntityItem        = domain.EntityItem
	EntityTransaction = domain.EntityTransaction
	EntityLink        = domain.EntityLink
	EntityMovement    = domain.EntityMovement
	EntityBackup      = domain.EntityBackup
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)

// NewRulesEngine constructs an empty rules engine.
func NewRulesEngine() *RulesEngine { return domain.NewRulesEngine() }
