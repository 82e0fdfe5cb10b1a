// Package inference implements exact inference over the two-level
// inheritance network: scoring one complete world, folding scored worlds
// into per-person weights, and normalizing those weights.
package inference

import (
	"fmt"

	"heredity/pkg/domain"
)

// JointProbability returns the probability of the exact world described by
// a. The assignment must cover every member of p and nobody else.
//
// The result is the product over people of P(gene | parents) and
// P(trait | gene). Each factor reads only from a, so evaluation order has no
// effect on the result.
func JointProbability(p domain.Pedigree, tables domain.PopulationTables, a domain.Assignment) (float64, error) {
	if err := checkAssignment(p, a); err != nil {
		return 0, err
	}
	joint := 1.0
	for id, person := range p {
		state := a[id]
		joint *= geneFactor(person, state.Genes, tables, a)
		joint *= tables.Trait[state.Genes].Probability(state.Trait)
	}
	return joint, nil
}

func checkAssignment(p domain.Pedigree, a domain.Assignment) error {
	for id := range p {
		state, ok := a[id]
		if !ok {
			return domain.InvalidAssignmentError{PersonID: id, Reason: "missing from assignment"}
		}
		if !state.Genes.Valid() {
			return domain.InvalidAssignmentError{PersonID: id, Reason: fmt.Sprintf("gene count %d out of range", state.Genes)}
		}
	}
	for id, person := range p {
		if person.IsFounder() {
			continue
		}
		if len(person.ParentIDs) != 2 {
			return domain.InvalidAssignmentError{PersonID: id, Reason: fmt.Sprintf("has %d parents, want 0 or 2", len(person.ParentIDs))}
		}
		for _, parent := range person.ParentIDs {
			if _, ok := p[parent]; !ok {
				return domain.InvalidAssignmentError{PersonID: id, Reason: fmt.Sprintf("parent %s is not a member of the family", parent)}
			}
		}
	}
	if len(a) != len(p) {
		for id := range a {
			if _, ok := p[id]; !ok {
				return domain.InvalidAssignmentError{PersonID: id, Reason: "not a member of the family"}
			}
		}
	}
	return nil
}

// geneFactor is the prior for founders and the inheritance probability for
// children.
func geneFactor(person domain.Person, genes domain.GeneCount, tables domain.PopulationTables, a domain.Assignment) float64 {
	if person.IsFounder() {
		return tables.Gene[genes]
	}
	mother := transmitProbability(a[person.ParentIDs[0]].Genes, tables.Mutation)
	father := transmitProbability(a[person.ParentIDs[1]].Genes, tables.Mutation)
	return inheritProbability(genes, mother, father)
}

// transmitProbability is the chance a parent with the given gene count passes
// on a mutated copy.
func transmitProbability(parent domain.GeneCount, mutation float64) float64 {
	switch parent {
	case 0:
		return mutation
	case 1:
		return 0.5
	default:
		return 1 - mutation
	}
}

// inheritProbability sums the outcomes of the two independent transmissions
// whose mutated copy count equals genes.
func inheritProbability(genes domain.GeneCount, mother, father float64) float64 {
	switch genes {
	case 0:
		return (1 - mother) * (1 - father)
	case 1:
		return mother*(1-father) + (1-mother)*father
	default:
		return mother * father
	}
}
