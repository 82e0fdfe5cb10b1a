package core

import (
	"context"
	"errors"
	"sort"

	"heredity/pkg/domain"
)

const pedigreeIntegrityRuleName = "pedigree_integrity"

type pedigreeIntegrityRule struct{}

// NewPedigreeIntegrityRule blocks changes that leave a touched family with a
// structure inference cannot model: one parent, a parent outside the family,
// or a parent cycle.
func NewPedigreeIntegrityRule() Rule {
	return pedigreeIntegrityRule{}
}

func (pedigreeIntegrityRule) Name() string { return pedigreeIntegrityRuleName }

func (pedigreeIntegrityRule) Evaluate(_ context.Context, view RuleView, changes []Change) (Result, error) {
	touched := make(map[string]struct{})
	for _, p := range changedPeople(changes) {
		touched[p.FamilyID] = struct{}{}
	}
	if len(touched) == 0 {
		return Result{}, nil
	}
	families := make([]string, 0, len(touched))
	for id := range touched {
		families = append(families, id)
	}
	sort.Strings(families)

	members := make(map[string][]Person, len(families))
	for _, p := range view.ListPeople() {
		if _, ok := touched[p.FamilyID]; ok {
			members[p.FamilyID] = append(members[p.FamilyID], p)
		}
	}

	var res Result
	for _, familyID := range families {
		err := domain.NewPedigree(members[familyID]).Validate()
		if err == nil {
			continue
		}
		v := Violation{
			Rule:     pedigreeIntegrityRuleName,
			Severity: domain.SeverityBlock,
			Message:  err.Error(),
			Entity:   EntityFamily,
			EntityID: familyID,
		}
		var invalid domain.InvalidPedigreeError
		if errors.As(err, &invalid) {
			v.Entity = EntityPerson
			v.EntityID = invalid.PersonID
		}
		res.Violations = append(res.Violations, v)
	}
	return res, nil
}
