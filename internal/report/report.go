// Package report renders inference results for people: the plain text layout
// printed by the CLI and the JSON document written by report export.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"heredity/pkg/domain"
)

// Gene holds the gene-count posterior keyed by copies.
type Gene struct {
	Two  float64 `json:"2"`
	One  float64 `json:"1"`
	Zero float64 `json:"0"`
}

// Trait holds the trait posterior.
type Trait struct {
	True  float64 `json:"true"`
	False float64 `json:"false"`
}

// Person is one rendered row.
type Person struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Gene  Gene   `json:"gene"`
	Trait Trait  `json:"trait"`
}

// Document is the exported form of a report.
type Document struct {
	ReportID  string                  `json:"report_id,omitempty"`
	FamilyID  string                  `json:"family_id,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
	Worlds    int64                   `json:"worlds"`
	Evidence  int                     `json:"evidence"`
	Tables    domain.PopulationTables `json:"tables"`
	People    []Person                `json:"people"`
}

// New builds a Document from a report, labelling people with their names
// from p. People absent from p are labelled by id. Rows are ordered by name.
func New(r domain.Report, p domain.Pedigree) Document {
	doc := Document{
		ReportID:  r.ID,
		FamilyID:  r.FamilyID,
		CreatedAt: r.CreatedAt,
		Worlds:    r.Worlds,
		Evidence:  r.Evidence,
		Tables:    r.Tables,
		People:    make([]Person, 0, len(r.Distributions)),
	}
	for _, id := range r.Distributions.IDs() {
		d := r.Distributions[id]
		if d == nil {
			continue
		}
		name := id
		if person, ok := p[id]; ok && person.Name != "" {
			name = person.Name
		}
		doc.People = append(doc.People, Person{
			ID:    id,
			Name:  name,
			Gene:  Gene{Two: d.Gene[2], One: d.Gene[1], Zero: d.Gene[0]},
			Trait: Trait{True: d.Trait.Present, False: d.Trait.Absent},
		})
	}
	sort.SliceStable(doc.People, func(i, j int) bool {
		if doc.People[i].Name == doc.People[j].Name {
			return doc.People[i].ID < doc.People[j].ID
		}
		return doc.People[i].Name < doc.People[j].Name
	})
	return doc
}

// WriteText prints each person as
//
//	Harry:
//	  Gene:
//	    2: 0.0092
//	    1: 0.4557
//	    0: 0.5351
//	  Trait:
//	    True: 0.2665
//	    False: 0.7335
func WriteText(w io.Writer, doc Document) error {
	for _, p := range doc.People {
		_, err := fmt.Fprintf(w,
			"%s:\n  Gene:\n    2: %.4f\n    1: %.4f\n    0: %.4f\n  Trait:\n    True: %.4f\n    False: %.4f\n",
			p.Name, p.Gene.Two, p.Gene.One, p.Gene.Zero, p.Trait.True, p.Trait.False)
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteJSON encodes doc as indented JSON.
func WriteJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
