// Package domain defines the persistent entities, value types, and rule
// evaluation primitives used by heredity.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityFamily identifies a family record grouping related people.
	EntityFamily EntityType = "family"
	// EntityPerson identifies an individual family member.
	EntityPerson EntityType = "person"
	// EntityReport identifies a persisted inference report.
	EntityReport EntityType = "report"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Family groups the people whose pedigree is evaluated together.
type Family struct {
	Base
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

// Person is a family member. ParentIDs is either empty (a founder) or holds
// exactly two ids of people in the same family.
type Person struct {
	Base
	Name      string        `json:"name"`
	FamilyID  string        `json:"family_id"`
	ParentIDs []string      `json:"parent_ids"`
	Trait     ObservedTrait `json:"trait"`
}

// IsFounder reports whether the person has no recorded parents.
func (p Person) IsFounder() bool { return len(p.ParentIDs) == 0 }

// ObservedTrait records trait evidence for a person.
type ObservedTrait int

// Observed trait values. The zero value means no evidence.
const (
	TraitUnknown ObservedTrait = iota
	TraitAbsent
	TraitPresent
)

// ObservedTraitOf converts a known trait value into evidence.
func ObservedTraitOf(present bool) ObservedTrait {
	if present {
		return TraitPresent
	}
	return TraitAbsent
}

// Known reports whether the trait was observed.
func (t ObservedTrait) Known() bool { return t == TraitAbsent || t == TraitPresent }

// Value returns the observed trait and whether it is known.
func (t ObservedTrait) Value() (present bool, ok bool) {
	switch t {
	case TraitPresent:
		return true, true
	case TraitAbsent:
		return false, true
	default:
		return false, false
	}
}

func (t ObservedTrait) String() string {
	switch t {
	case TraitPresent:
		return "present"
	case TraitAbsent:
		return "absent"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes evidence as true, false, or null.
func (t ObservedTrait) MarshalJSON() ([]byte, error) {
	present, ok := t.Value()
	if !ok {
		return []byte("null"), nil
	}
	return json.Marshal(present)
}

// UnmarshalJSON accepts true, false, or null.
func (t *ObservedTrait) UnmarshalJSON(data []byte) error {
	var present *bool
	if err := json.Unmarshal(data, &present); err != nil {
		return fmt.Errorf("decode observed trait: %w", err)
	}
	if present == nil {
		*t = TraitUnknown
		return nil
	}
	*t = ObservedTraitOf(*present)
	return nil
}

// Report is a persisted inference result for a family.
type Report struct {
	Base
	FamilyID      string           `json:"family_id"`
	Tables        PopulationTables `json:"tables"`
	Distributions Distributions    `json:"distributions"`
	Worlds        int64            `json:"worlds"`
	Evidence      int              `json:"evidence"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
