package domain

import "fmt"

// InvalidAssignmentError reports an assignment that is not total over the
// pedigree or carries an out-of-domain value. It is a caller contract
// violation and is never retried.
type InvalidAssignmentError struct {
	PersonID string
	Reason   string
}

func (e InvalidAssignmentError) Error() string {
	return fmt.Sprintf("invalid assignment for %s: %s", e.PersonID, e.Reason)
}

// DegenerateDistributionError reports an axis whose accumulated weights are
// all zero, which means contradictory evidence or an incomplete enumeration.
type DegenerateDistributionError struct {
	PersonID string
	Axis     Axis
}

func (e DegenerateDistributionError) Error() string {
	return fmt.Sprintf("degenerate %s distribution for %s: all weights are zero", e.Axis, e.PersonID)
}

// InvalidPedigreeError reports a family structure inference cannot model.
type InvalidPedigreeError struct {
	PersonID string
	Reason   string
}

func (e InvalidPedigreeError) Error() string {
	return fmt.Sprintf("invalid pedigree: %s %s", e.PersonID, e.Reason)
}

// ErrNotFound is returned when a referenced record does not exist.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}
