package domain

import (
	"fmt"
	"math"
	"sort"
)

// GeneCount is the number of copies of the variant of interest a person carries.
type GeneCount int

// NumGeneCounts is the size of the gene count domain {0, 1, 2}.
const NumGeneCounts = 3

// Valid reports whether g is 0, 1 or 2.
func (g GeneCount) Valid() bool { return g >= 0 && g < NumGeneCounts }

// GeneCounts lists the gene count domain in ascending order.
func GeneCounts() []GeneCount { return []GeneCount{0, 1, 2} }

// PersonState is one person's value in a complete world: gene count and trait.
type PersonState struct {
	Genes GeneCount `json:"genes"`
	Trait bool      `json:"trait"`
}

// Assignment maps every family member to a PersonState.
type Assignment map[string]PersonState

// TraitTable is P(trait | gene) for a single gene count.
type TraitTable struct {
	Present float64 `json:"present" toml:"present"`
	Absent  float64 `json:"absent" toml:"absent"`
}

// Probability returns the entry for the given trait value.
func (t TraitTable) Probability(present bool) float64 {
	if present {
		return t.Present
	}
	return t.Absent
}

// PopulationTables holds the fixed constants of the inheritance model.
type PopulationTables struct {
	// Gene is the unconditional gene count distribution used for founders.
	Gene [NumGeneCounts]float64 `json:"gene"`
	// Trait is P(trait | gene), indexed by gene count.
	Trait [NumGeneCounts]TraitTable `json:"trait"`
	// Mutation is the probability a transmitted copy flips.
	Mutation float64 `json:"mutation"`
}

// DefaultPopulationTables returns the reference population constants.
func DefaultPopulationTables() PopulationTables {
	return PopulationTables{
		Gene: [NumGeneCounts]float64{0.96, 0.03, 0.01},
		Trait: [NumGeneCounts]TraitTable{
			{Present: 0.01, Absent: 0.99},
			{Present: 0.56, Absent: 0.44},
			{Present: 0.65, Absent: 0.35},
		},
		Mutation: 0.01,
	}
}

const tableTolerance = 1e-9

// Validate checks every distribution sums to one and μ lies in [0, 1].
func (t PopulationTables) Validate() error {
	var sum float64
	for g, p := range t.Gene {
		if p < 0 || math.IsNaN(p) {
			return fmt.Errorf("gene prior for %d copies is %v", g, p)
		}
		sum += p
	}
	if math.Abs(sum-1) > tableTolerance {
		return fmt.Errorf("gene prior sums to %v", sum)
	}
	for g, row := range t.Trait {
		if row.Present < 0 || row.Absent < 0 || math.IsNaN(row.Present) || math.IsNaN(row.Absent) {
			return fmt.Errorf("trait table for %d copies has negative entry", g)
		}
		if s := row.Present + row.Absent; math.Abs(s-1) > tableTolerance {
			return fmt.Errorf("trait table for %d copies sums to %v", g, s)
		}
	}
	if t.Mutation < 0 || t.Mutation > 1 || math.IsNaN(t.Mutation) {
		return fmt.Errorf("mutation probability %v outside [0,1]", t.Mutation)
	}
	return nil
}

// Axis names one of the two per-person distributions.
type Axis string

// Distribution axes.
const (
	AxisGene  Axis = "gene"
	AxisTrait Axis = "trait"
)

// TraitWeights holds the trait axis of a Distribution.
type TraitWeights struct {
	Present float64 `json:"present"`
	Absent  float64 `json:"absent"`
}

// Distribution is one person's gene and trait weights. Weights are
// unnormalized while accumulating.
type Distribution struct {
	Gene  [NumGeneCounts]float64 `json:"gene"`
	Trait TraitWeights           `json:"trait"`
}

// TraitWeight returns the weight recorded for the given trait value.
func (d *Distribution) TraitWeight(present bool) float64 {
	if present {
		return d.Trait.Present
	}
	return d.Trait.Absent
}

// Distributions holds one Distribution per person for a single query.
type Distributions map[string]*Distribution

// NewDistributions returns zeroed distributions for every person in p.
func NewDistributions(p Pedigree) Distributions {
	out := make(Distributions, len(p))
	for id := range p {
		out[id] = &Distribution{}
	}
	return out
}

// Merge adds other's weights into d, axis by axis. Nil entries in other are
// skipped; a nil entry in d is replaced.
func (d Distributions) Merge(other Distributions) {
	for id, src := range other {
		if src == nil {
			continue
		}
		dst := d[id]
		if dst == nil {
			dst = &Distribution{}
			d[id] = dst
		}
		for g := range dst.Gene {
			dst.Gene[g] += src.Gene[g]
		}
		dst.Trait.Present += src.Trait.Present
		dst.Trait.Absent += src.Trait.Absent
	}
}

// IDs returns the person ids in sorted order.
func (d Distributions) IDs() []string {
	ids := make([]string, 0, len(d))
	for id := range d {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
