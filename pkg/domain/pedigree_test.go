package domain

import (
	"errors"
	"reflect"
	"testing"
)

func person(id string, parents ...string) Person {
	return Person{Base: Base{ID: id}, Name: id, ParentIDs: parents}
}

func TestPedigreeValidate(t *testing.T) {
	cases := []struct {
		name    string
		people  []Person
		wantErr string
	}{
		{name: "founders only", people: []Person{person("a"), person("b")}},
		{name: "two generations", people: []Person{person("m"), person("f"), person("c", "m", "f")}},
		{name: "single parent", people: []Person{person("m"), person("c", "m")}, wantErr: "c"},
		{name: "three parents", people: []Person{person("a"), person("b"), person("d"), person("c", "a", "b", "d")}, wantErr: "c"},
		{name: "duplicate parent", people: []Person{person("m"), person("c", "m", "m")}, wantErr: "c"},
		{name: "missing parent", people: []Person{person("m"), person("c", "m", "ghost")}, wantErr: "c"},
		{name: "self parent", people: []Person{person("m"), person("c", "m", "c")}, wantErr: "c"},
		{name: "cycle", people: []Person{person("x"), person("a", "b", "x"), person("b", "a", "x")}, wantErr: "a"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := NewPedigree(tc.people).Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var pedErr InvalidPedigreeError
			if !errors.As(err, &pedErr) {
				t.Fatalf("expected InvalidPedigreeError, got %v", err)
			}
			if pedErr.PersonID != tc.wantErr {
				t.Fatalf("expected error for %s, got %s (%v)", tc.wantErr, pedErr.PersonID, err)
			}
		})
	}
}

func TestPedigreeValidateRejectsMismatchedKey(t *testing.T) {
	p := Pedigree{"a": person("b")}
	if err := p.Validate(); err == nil {
		t.Fatalf("expected mismatched key to be rejected")
	}
}

func TestPedigreeOrderPlacesParentsFirst(t *testing.T) {
	p := NewPedigree([]Person{
		person("harry", "james", "lily"),
		person("james"),
		person("lily"),
		person("albus", "harry", "ginny"),
		person("ginny"),
	})
	order, err := p.Order()
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	want := []string{"ginny", "james", "lily", "harry", "albus"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("unexpected order %v, want %v", order, want)
	}
}

func TestPedigreeEvidence(t *testing.T) {
	p := NewPedigree([]Person{
		{Base: Base{ID: "a"}, Trait: TraitPresent},
		{Base: Base{ID: "b"}, Trait: TraitAbsent},
		{Base: Base{ID: "c"}},
	})
	if got := p.Evidence(); got != 2 {
		t.Fatalf("expected 2 observed traits, got %d", got)
	}
	if got := p.IDs(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("unexpected ids %v", got)
	}
}
