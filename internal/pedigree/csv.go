// Package pedigree loads family data files into domain people.
package pedigree

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"heredity/pkg/domain"
)

var requiredColumns = []string{"name", "mother", "father", "trait"}

// RowError reports a malformed data row. Line is 1-based and counts the header.
type RowError struct {
	Line   int
	Reason string
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// LoadFile reads a CSV pedigree from path.
func LoadFile(path string) ([]domain.Person, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pedigree: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses a CSV pedigree with the columns name, mother, father and trait
// in any order. Each person's id is their name and ParentIDs lists mother
// then father. Both parents are blank for founders. Trait is "1", "0" or
// blank when unobserved. Rows keep their file order.
func Read(r io.Reader) ([]domain.Person, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, RowError{Line: 1, Reason: "missing header"}
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, column := range header {
		index[strings.ToLower(strings.TrimSpace(column))] = i
	}
	for _, column := range requiredColumns {
		if _, ok := index[column]; !ok {
			return nil, RowError{Line: 1, Reason: "missing column " + column}
		}
	}

	var people []domain.Person
	seen := make(map[string]int)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read pedigree: %w", err)
		}
		field := func(column string) string {
			return strings.TrimSpace(record[index[column]])
		}

		name := field("name")
		if name == "" {
			return nil, RowError{Line: line, Reason: "empty name"}
		}
		if first, dup := seen[name]; dup {
			return nil, RowError{Line: line, Reason: fmt.Sprintf("%s already defined on line %d", name, first)}
		}
		seen[name] = line

		person := domain.Person{Base: domain.Base{ID: name}, Name: name}
		mother, father := field("mother"), field("father")
		switch {
		case mother == "" && father == "":
		case mother == "" || father == "":
			return nil, RowError{Line: line, Reason: name + " must list both parents or neither"}
		default:
			person.ParentIDs = []string{mother, father}
		}

		switch field("trait") {
		case "":
			person.Trait = domain.TraitUnknown
		case "1":
			person.Trait = domain.TraitPresent
		case "0":
			person.Trait = domain.TraitAbsent
		default:
			return nil, RowError{Line: line, Reason: fmt.Sprintf("trait %q is not 1, 0 or blank", field("trait"))}
		}
		people = append(people, person)
	}
	return people, nil
}
