package domain

import "sort"

// Pedigree is the family structure consumed by inference, keyed by person id.
type Pedigree map[string]Person

// NewPedigree indexes people by id.
func NewPedigree(people []Person) Pedigree {
	p := make(Pedigree, len(people))
	for _, person := range people {
		p[person.ID] = person
	}
	return p
}

// IDs returns the person ids in sorted order.
func (p Pedigree) IDs() []string {
	ids := make([]string, 0, len(p))
	for id := range p {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Evidence counts people with an observed trait.
func (p Pedigree) Evidence() int {
	n := 0
	for _, person := range p {
		if person.Trait.Known() {
			n++
		}
	}
	return n
}

// Validate checks the structural invariants: zero or two distinct parents,
// parents present in the pedigree, and an acyclic parent graph.
func (p Pedigree) Validate() error {
	for _, id := range p.IDs() {
		person := p[id]
		if person.ID != id {
			return InvalidPedigreeError{PersonID: id, Reason: "keyed under a different id than " + person.ID}
		}
		switch len(person.ParentIDs) {
		case 0:
			continue
		case 2:
		default:
			return InvalidPedigreeError{PersonID: id, Reason: "must have zero or two parents"}
		}
		a, b := person.ParentIDs[0], person.ParentIDs[1]
		if a == b {
			return InvalidPedigreeError{PersonID: id, Reason: "lists parent " + a + " twice"}
		}
		for _, parentID := range person.ParentIDs {
			if parentID == id {
				return InvalidPedigreeError{PersonID: id, Reason: "references itself as a parent"}
			}
			if _, ok := p[parentID]; !ok {
				return InvalidPedigreeError{PersonID: id, Reason: "references missing parent " + parentID}
			}
		}
	}
	if _, err := p.Order(); err != nil {
		return err
	}
	return nil
}

// Order returns person ids with every parent before its children. Ties are
// broken by id so the order is deterministic. Parents missing from the
// pedigree are ignored; a cycle yields InvalidPedigreeError.
func (p Pedigree) Order() ([]string, error) {
	pending := make(map[string]int, len(p))
	children := make(map[string][]string, len(p))
	for id, person := range p {
		for _, parentID := range person.ParentIDs {
			if _, ok := p[parentID]; !ok {
				continue
			}
			pending[id]++
			children[parentID] = append(children[parentID], id)
		}
	}

	var ready []string
	for id := range p {
		if pending[id] == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(p))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		next := children[id]
		sort.Strings(next)
		for _, child := range next {
			pending[child]--
			if pending[child] == 0 {
				ready = insertSorted(ready, child)
			}
		}
	}
	if len(order) != len(p) {
		for _, id := range p.IDs() {
			if pending[id] > 0 {
				return nil, InvalidPedigreeError{PersonID: id, Reason: "is part of a parent cycle"}
			}
		}
	}
	return order, nil
}

func insertSorted(ids []string, id string) []string {
	i := sort.SearchStrings(ids, id)
	ids = append(ids, "")
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}
