// Package evidence provides advisory rules about whether a family is worth
// running inference on.
package evidence

import (
	"context"
	"fmt"
	"sort"

	"heredity/internal/core"
)

const (
	noEvidenceRule = "evidence_missing"
	tooLargeRule   = "family_too_large"
)

// Plugin warns about families whose posteriors would only restate the
// priors, and about families too large to enumerate.
type Plugin struct {
	maxPeople int
}

// New constructs the plugin. maxPeople is the enumeration limit; zero or
// less disables the size warning.
func New(maxPeople int) Plugin {
	return Plugin{maxPeople: maxPeople}
}

// Name returns the plugin identifier.
func (Plugin) Name() string { return "evidence" }

// Version returns the plugin semantic version.
func (Plugin) Version() string { return "0.1.0" }

// Register wires the advisory rules.
func (p Plugin) Register(registry *core.PluginRegistry) error {
	registry.RegisterRule(missingEvidenceRule{})
	if p.maxPeople > 0 {
		registry.RegisterRule(sizeRule{max: p.maxPeople})
	}
	return nil
}

// touchedFamilies returns the sorted families of people created or updated
// by changes, with their current members.
func touchedFamilies(view core.RuleView, changes []core.Change) ([]string, map[string][]core.Person) {
	touched := make(map[string]struct{})
	for _, change := range changes {
		if change.Entity != core.EntityPerson {
			continue
		}
		if p, ok := change.After.(core.Person); ok {
			touched[p.FamilyID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	members := make(map[string][]core.Person, len(ids))
	for _, p := range view.ListPeople() {
		if _, ok := touched[p.FamilyID]; ok {
			members[p.FamilyID] = append(members[p.FamilyID], p)
		}
	}
	return ids, members
}

type missingEvidenceRule struct{}

func (missingEvidenceRule) Name() string { return noEvidenceRule }

func (missingEvidenceRule) Evaluate(_ context.Context, view core.RuleView, changes []core.Change) (core.Result, error) {
	var res core.Result
	ids, members := touchedFamilies(view, changes)
	for _, familyID := range ids {
		observed := 0
		for _, p := range members[familyID] {
			if p.Trait.Known() {
				observed++
			}
		}
		if observed > 0 || len(members[familyID]) == 0 {
			continue
		}
		res.Violations = append(res.Violations, core.Violation{
			Rule:     noEvidenceRule,
			Severity: core.SeverityWarn,
			Message:  "no trait observations; inference will return the population priors",
			Entity:   core.EntityFamily,
			EntityID: familyID,
		})
	}
	return res, nil
}

type sizeRule struct {
	max int
}

func (sizeRule) Name() string { return tooLargeRule }

func (r sizeRule) Evaluate(_ context.Context, view core.RuleView, changes []core.Change) (core.Result, error) {
	var res core.Result
	ids, members := touchedFamilies(view, changes)
	for _, familyID := range ids {
		n := len(members[familyID])
		if n <= r.max {
			continue
		}
		res.Violations = append(res.Violations, core.Violation{
			Rule:     tooLargeRule,
			Severity: core.SeverityWarn,
			Message:  fmt.Sprintf("%d people exceed the enumeration limit of %d", n, r.max),
			Entity:   core.EntityFamily,
			EntityID: familyID,
		})
	}
	return res, nil
}
