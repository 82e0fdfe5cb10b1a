// Package enumerate generates every world consistent with observed trait
// evidence and drives exact inference over them.
package enumerate

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"heredity/internal/inference"
	"heredity/pkg/domain"
)

// DefaultMaxPeople bounds the pedigree size accepted by Infer. The number of
// worlds grows as 3^n * 2^u.
const DefaultMaxPeople = 12

// MaxPeopleLimit is the largest pedigree whose world count, at most 6^n,
// fits in an int64. Options.MaxPeople above it is clamped.
const MaxPeopleLimit = 24

const cancelCheckInterval = 4096

// ErrPedigreeTooLarge is returned when a pedigree exceeds Options.MaxPeople.
var ErrPedigreeTooLarge = errors.New("pedigree too large for exact enumeration")

// Options tunes Infer.
type Options struct {
	// Workers partitions the gene assignment space. Values below one mean one.
	Workers int
	// MaxPeople caps the pedigree size. Zero means DefaultMaxPeople. Values
	// above MaxPeopleLimit mean MaxPeopleLimit.
	MaxPeople int
}

// Result is the outcome of an inference query.
type Result struct {
	Distributions domain.Distributions
	// Worlds counts the assignments that were scored.
	Worlds int64
}

// Assignments calls visit once for every assignment consistent with the
// evidence in p: all gene counts for everyone, and both trait values for
// people whose trait is unknown. Observed traits are pinned. The visit order
// is deterministic. The assignment is reused between calls, so visit must
// not retain it. Pedigrees above MaxPeopleLimit yield ErrPedigreeTooLarge.
func Assignments(ctx context.Context, p domain.Pedigree, visit func(domain.Assignment) error) error {
	if len(p) > MaxPeopleLimit {
		return fmt.Errorf("%w: %d people, limit %d", ErrPedigreeTooLarge, len(p), MaxPeopleLimit)
	}
	return newSpace(p).walk(ctx, 0, 1, visit)
}

// Count returns the number of assignments Assignments visits for p,
// saturating at math.MaxInt64.
func Count(p domain.Pedigree) int64 {
	worlds := int64(1)
	for _, person := range p {
		factor := int64(domain.NumGeneCounts)
		if !person.Trait.Known() {
			factor *= 2
		}
		if worlds > math.MaxInt64/factor {
			return math.MaxInt64
		}
		worlds *= factor
	}
	return worlds
}

// Infer scores every consistent world, accumulates per-person weights and
// normalizes them.
func Infer(ctx context.Context, p domain.Pedigree, tables domain.PopulationTables, opts Options) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	if err := tables.Validate(); err != nil {
		return Result{}, fmt.Errorf("population tables: %w", err)
	}
	limit := opts.MaxPeople
	if limit <= 0 {
		limit = DefaultMaxPeople
	}
	limit = min(limit, MaxPeopleLimit)
	if len(p) > limit {
		return Result{}, fmt.Errorf("%w: %d people, limit %d", ErrPedigreeTooLarge, len(p), limit)
	}

	space := newSpace(p)
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	if int64(workers) > space.geneWorlds {
		workers = int(space.geneWorlds)
	}

	partials := make([]domain.Distributions, workers)
	worlds := make([]int64, workers)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			acc := domain.NewDistributions(p)
			err := space.walk(gctx, int64(w), int64(workers), func(a domain.Assignment) error {
				prob, err := inference.JointProbability(p, tables, a)
				if err != nil {
					return err
				}
				inference.Accumulate(acc, a, prob)
				worlds[w]++
				return nil
			})
			partials[w] = acc
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	total := domain.NewDistributions(p)
	var scored int64
	for w := range partials {
		total.Merge(partials[w])
		scored += worlds[w]
	}
	if err := inference.Normalize(total); err != nil {
		return Result{}, err
	}
	return Result{Distributions: total, Worlds: scored}, nil
}

// space describes the assignment space of a pedigree: a base-3 gene index
// over every person and a bitmask over people with unknown traits.
type space struct {
	ids         []string
	observed    []domain.ObservedTrait
	unknown     []int
	geneWorlds  int64
	traitWorlds int64
}

func newSpace(p domain.Pedigree) space {
	s := space{ids: p.IDs(), geneWorlds: 1, traitWorlds: 1}
	s.observed = make([]domain.ObservedTrait, len(s.ids))
	for i, id := range s.ids {
		s.observed[i] = p[id].Trait
		s.geneWorlds *= domain.NumGeneCounts
		if !p[id].Trait.Known() {
			s.unknown = append(s.unknown, i)
			s.traitWorlds *= 2
		}
	}
	return s
}

// walk visits the gene indexes start, start+step, ... combined with every
// trait mask.
func (s space) walk(ctx context.Context, start, step int64, visit func(domain.Assignment) error) error {
	a := make(domain.Assignment, len(s.ids))
	for i, id := range s.ids {
		present, _ := s.observed[i].Value()
		a[id] = domain.PersonState{Trait: present}
	}

	var visited int64
	for gi := start; gi < s.geneWorlds; gi += step {
		idx := gi
		for _, id := range s.ids {
			state := a[id]
			state.Genes = domain.GeneCount(idx % domain.NumGeneCounts)
			a[id] = state
			idx /= domain.NumGeneCounts
		}
		for mask := int64(0); mask < s.traitWorlds; mask++ {
			for bit, i := range s.unknown {
				id := s.ids[i]
				state := a[id]
				state.Trait = mask&(1<<bit) != 0
				a[id] = state
			}
			if visited%cancelCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			visited++
			if err := visit(a); err != nil {
				return err
			}
		}
	}
	return nil
}
