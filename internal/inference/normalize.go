package inference

import (
	"gonum.org/v1/gonum/floats"

	"heredity/pkg/domain"
)

// Normalize rescales each person's gene axis and trait axis so that each sums
// to one. Ratios within an axis are preserved. An axis with zero total weight
// yields a DegenerateDistributionError naming the first such person in id
// order, and d is left untouched. A nil entry carries no weight and is
// degenerate on the gene axis.
func Normalize(d domain.Distributions) error {
	ids := d.IDs()
	for _, id := range ids {
		dist := d[id]
		if dist == nil || floats.Sum(dist.Gene[:]) == 0 {
			return domain.DegenerateDistributionError{PersonID: id, Axis: domain.AxisGene}
		}
		if dist.Trait.Present+dist.Trait.Absent == 0 {
			return domain.DegenerateDistributionError{PersonID: id, Axis: domain.AxisTrait}
		}
	}
	for _, id := range ids {
		dist := d[id]
		floats.Scale(1/floats.Sum(dist.Gene[:]), dist.Gene[:])

		trait := []float64{dist.Trait.Present, dist.Trait.Absent}
		floats.Scale(1/floats.Sum(trait), trait)
		dist.Trait.Present, dist.Trait.Absent = trait[0], trait[1]
	}
	return nil
}
