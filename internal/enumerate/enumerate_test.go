package enumerate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"heredity/pkg/domain"
)

func member(id string, trait domain.ObservedTrait, parents ...string) domain.Person {
	return domain.Person{Base: domain.Base{ID: id}, Name: id, Trait: trait, ParentIDs: parents}
}

// family0 mirrors the classic three-person example: James shows the trait,
// Lily does not, and Harry is unobserved.
func family0() domain.Pedigree {
	return domain.NewPedigree([]domain.Person{
		member("Harry", domain.TraitUnknown, "Lily", "James"),
		member("James", domain.TraitPresent),
		member("Lily", domain.TraitAbsent),
	})
}

func TestAssignmentsRespectEvidence(t *testing.T) {
	p := family0()
	seen := make(map[string]struct{})
	err := Assignments(context.Background(), p, func(a domain.Assignment) error {
		if len(a) != len(p) {
			t.Fatalf("assignment not total: %v", a)
		}
		if !a["James"].Trait || a["Lily"].Trait {
			t.Fatalf("observed traits not pinned: %v", a)
		}
		seen[fmt.Sprint(a["Harry"], a["James"], a["Lily"])] = struct{}{}
		return nil
	})
	if err != nil {
		t.Fatalf("assignments: %v", err)
	}
	if want := Count(p); int64(len(seen)) != want || want != 27*2 {
		t.Fatalf("expected %d distinct assignments, saw %d", want, len(seen))
	}
}

func TestAssignmentsStopsOnVisitError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Assignments(context.Background(), family0(), func(domain.Assignment) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("expected to stop after first error, got %v after %d calls", err, calls)
	}
}

func TestAssignmentsHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Assignments(ctx, family0(), func(domain.Assignment) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestInferFamily0(t *testing.T) {
	res, err := Infer(context.Background(), family0(), domain.DefaultPopulationTables(), Options{})
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	if res.Worlds != 54 {
		t.Fatalf("expected 54 worlds, got %d", res.Worlds)
	}
	want := map[string]struct {
		gene    [domain.NumGeneCounts]float64
		present float64
	}{
		"Harry": {gene: [domain.NumGeneCounts]float64{0.5351, 0.4557, 0.0092}, present: 0.2665},
		"James": {gene: [domain.NumGeneCounts]float64{0.2918, 0.5106, 0.1976}, present: 1},
		"Lily":  {gene: [domain.NumGeneCounts]float64{0.9827, 0.0136, 0.0036}, present: 0},
	}
	for id, exp := range want {
		dist := res.Distributions[id]
		for g := range exp.gene {
			if math.Abs(dist.Gene[g]-exp.gene[g]) > 1e-4 {
				t.Fatalf("%s gene %d: expected %.4f, got %.6f", id, g, exp.gene[g], dist.Gene[g])
			}
		}
		if math.Abs(dist.Trait.Present-exp.present) > 1e-4 {
			t.Fatalf("%s trait: expected %.4f, got %.6f", id, exp.present, dist.Trait.Present)
		}
	}
}

func TestInferParallelMatchesSequential(t *testing.T) {
	p := domain.NewPedigree([]domain.Person{
		member("a", domain.TraitPresent),
		member("b", domain.TraitUnknown),
		member("c", domain.TraitUnknown, "a", "b"),
		member("d", domain.TraitAbsent),
		member("e", domain.TraitUnknown, "c", "d"),
	})
	tables := domain.DefaultPopulationTables()
	seq, err := Infer(context.Background(), p, tables, Options{Workers: 1})
	if err != nil {
		t.Fatalf("sequential: %v", err)
	}
	par, err := Infer(context.Background(), p, tables, Options{Workers: 4})
	if err != nil {
		t.Fatalf("parallel: %v", err)
	}
	if seq.Worlds != par.Worlds || seq.Worlds != Count(p) {
		t.Fatalf("world counts differ: %d vs %d (want %d)", seq.Worlds, par.Worlds, Count(p))
	}
	for id, s := range seq.Distributions {
		q := par.Distributions[id]
		for g := range s.Gene {
			if math.Abs(s.Gene[g]-q.Gene[g]) > 1e-12 {
				t.Fatalf("%s gene %d differs: %v vs %v", id, g, s.Gene[g], q.Gene[g])
			}
		}
		if math.Abs(s.Trait.Present-q.Trait.Present) > 1e-12 {
			t.Fatalf("%s trait differs: %v vs %v", id, s.Trait.Present, q.Trait.Present)
		}
	}
}

func TestInferRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	tables := domain.DefaultPopulationTables()

	oneParent := domain.NewPedigree([]domain.Person{member("m", domain.TraitUnknown), member("c", domain.TraitUnknown, "m")})
	var pedErr domain.InvalidPedigreeError
	if _, err := Infer(ctx, oneParent, tables, Options{}); !errors.As(err, &pedErr) {
		t.Fatalf("expected InvalidPedigreeError, got %v", err)
	}

	broken := tables
	broken.Gene[0] = 0
	if _, err := Infer(ctx, family0(), broken, Options{}); err == nil {
		t.Fatalf("expected table validation error")
	}

	if _, err := Infer(ctx, family0(), tables, Options{MaxPeople: 2}); !errors.Is(err, ErrPedigreeTooLarge) {
		t.Fatalf("expected ErrPedigreeTooLarge, got %v", err)
	}
}

func TestInferDegenerateEvidence(t *testing.T) {
	tables := domain.DefaultPopulationTables()
	// Nobody can ever express the trait, yet James is observed with it.
	for g := range tables.Trait {
		tables.Trait[g] = domain.TraitTable{Present: 0, Absent: 1}
	}
	_, err := Infer(context.Background(), family0(), tables, Options{})
	var degenerate domain.DegenerateDistributionError
	if !errors.As(err, &degenerate) {
		t.Fatalf("expected DegenerateDistributionError, got %v", err)
	}
}

func founders(n int, trait domain.ObservedTrait) domain.Pedigree {
	people := make([]domain.Person, n)
	for i := range people {
		people[i] = member(fmt.Sprintf("p%02d", i), trait)
	}
	return domain.NewPedigree(people)
}

func TestInferClampsMaxPeople(t *testing.T) {
	p := founders(MaxPeopleLimit+1, domain.TraitUnknown)
	_, err := Infer(context.Background(), p, domain.DefaultPopulationTables(), Options{MaxPeople: 100})
	if !errors.Is(err, ErrPedigreeTooLarge) {
		t.Fatalf("expected ErrPedigreeTooLarge, got %v", err)
	}
}

func TestAssignmentsRejectsOversizedPedigree(t *testing.T) {
	called := false
	err := Assignments(context.Background(), founders(40, domain.TraitAbsent), func(domain.Assignment) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrPedigreeTooLarge) {
		t.Fatalf("expected ErrPedigreeTooLarge, got %v", err)
	}
	if called {
		t.Fatalf("visit must not run for an oversized pedigree")
	}
}

func TestCountSaturates(t *testing.T) {
	if got := Count(founders(MaxPeopleLimit, domain.TraitUnknown)); got != int64(math.Pow(6, MaxPeopleLimit)) {
		t.Fatalf("unexpected count at the limit: %d", got)
	}
	if got := Count(founders(40, domain.TraitUnknown)); got != math.MaxInt64 {
		t.Fatalf("expected saturated count, got %d", got)
	}
	if got := Count(founders(30, domain.TraitPresent)); got != int64(math.Pow(3, 30)) {
		t.Fatalf("unexpected count for observed founders: %d", got)
	}
}
