// Package core hosts the heredity service: transactional family and person
// management, inference runs, report export, and the observability hooks
// wrapped around them.
package core

import "heredity/pkg/domain"

type (
	// Family aliases domain.Family.
	Family = domain.Family
	// Person aliases domain.Person.
	Person = domain.Person
	// Report aliases domain.Report.
	Report = domain.Report
	// Result aliases domain.Result.
	Result = domain.Result
	// Change aliases domain.Change.
	Change = domain.Change
	// Violation aliases domain.Violation.
	Violation = domain.Violation
	// Rule aliases domain.Rule.
	Rule = domain.Rule
	// RuleView aliases domain.RuleView.
	RuleView = domain.RuleView
	// RulesEngine aliases domain.RulesEngine.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView.
	TransactionView = domain.TransactionView
	// PersistentStore aliases domain.PersistentStore.
	PersistentStore = domain.PersistentStore
)

// Entity types recorded in changes and audit entries.
const (
	EntityFamily = domain.EntityFamily
	EntityPerson = domain.EntityPerson
	EntityReport = domain.EntityReport
)

// NewRulesEngine constructs an empty rules engine.
func NewRulesEngine() *RulesEngine { return domain.NewRulesEngine() }

// Rule severities.
const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)
