package core

import (
	"context"
	"fmt"

	"heredity/pkg/domain"
)

const familyReferenceRuleName = "family_reference"

type familyReferenceRule struct{}

// NewFamilyReferenceRule blocks people whose family does not exist.
func NewFamilyReferenceRule() Rule {
	return familyReferenceRule{}
}

func (familyReferenceRule) Name() string { return familyReferenceRuleName }

func (familyReferenceRule) Evaluate(_ context.Context, view RuleView, changes []Change) (Result, error) {
	var res Result
	for _, p := range changedPeople(changes) {
		if _, ok := view.FindFamily(p.FamilyID); ok {
			continue
		}
		res.Violations = append(res.Violations, Violation{
			Rule:     familyReferenceRuleName,
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("person %s references unknown family %q", p.ID, p.FamilyID),
			Entity:   EntityPerson,
			EntityID: p.ID,
		})
	}
	return res, nil
}
