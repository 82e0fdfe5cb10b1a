package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateFamily(Family) (Family, error)
	UpdateFamily(id string, mutator func(*Family) error) (Family, error)
	DeleteFamily(id string) error
	CreatePerson(Person) (Person, error)
	UpdatePerson(id string, mutator func(*Person) error) (Person, error)
	DeletePerson(id string) error
	SaveReport(Report) (Report, error)
	DeleteReport(id string) error
	FindFamily(id string) (Family, bool)
	FindPerson(id string) (Person, bool)
}

// TransactionView provides read-only access to snapshot data for rules and
// queries.
type TransactionView interface {
	RuleView
	ListReports() []Report
	FindReport(id string) (Report, bool)
	// Pedigree returns the people of a family keyed by id.
	Pedigree(familyID string) (Pedigree, bool)
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetFamily(id string) (Family, bool)
	ListFamilies() []Family
	GetPerson(id string) (Person, bool)
	ListPeople() []Person
	GetReport(id string) (Report, bool)
	ListReports() []Report
}
