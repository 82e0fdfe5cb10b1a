package inference

import "heredity/pkg/domain"

// Accumulate adds weight to every person's gene and trait slot selected by
// a. It is called once per enumerated world with that world's joint
// probability; it neither validates nor normalizes. Callers serialize calls
// on a given Distributions value.
func Accumulate(d domain.Distributions, a domain.Assignment, weight float64) {
	for id, state := range a {
		dist := d[id]
		if dist == nil {
			dist = &domain.Distribution{}
			d[id] = dist
		}
		dist.Gene[state.Genes] += weight
		if state.Trait {
			dist.Trait.Present += weight
		} else {
			dist.Trait.Absent += weight
		}
	}
}
