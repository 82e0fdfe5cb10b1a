package config

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"heredity/pkg/domain"
)

// tablesFile mirrors the TOML layout:
//
//	mutation = 0.01
//	gene = [0.96, 0.03, 0.01]
//
//	[trait.1]
//	present = 0.56
//	absent = 0.44
//
// Keys left out keep their default values.
type tablesFile struct {
	Gene     []float64                    `toml:"gene"`
	Mutation *float64                     `toml:"mutation"`
	Trait    map[string]domain.TraitTable `toml:"trait"`
}

// LoadTables reads population tables from path. An empty path yields the
// default tables.
func LoadTables(path string) (domain.PopulationTables, error) {
	if path == "" {
		return domain.DefaultPopulationTables(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return domain.PopulationTables{}, fmt.Errorf("open tables: %w", err)
	}
	defer func() { _ = f.Close() }()
	tables, err := DecodeTables(f)
	if err != nil {
		return domain.PopulationTables{}, fmt.Errorf("%s: %w", path, err)
	}
	return tables, nil
}

// DecodeTables overlays the TOML document in r onto the default tables and
// validates the result.
func DecodeTables(r io.Reader) (domain.PopulationTables, error) {
	var file tablesFile
	meta, err := toml.NewDecoder(r).Decode(&file)
	if err != nil {
		return domain.PopulationTables{}, fmt.Errorf("decode tables: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return domain.PopulationTables{}, fmt.Errorf("unknown keys in tables: %s", strings.Join(keys, ", "))
	}

	tables := domain.DefaultPopulationTables()
	if file.Gene != nil {
		if len(file.Gene) != domain.NumGeneCounts {
			return domain.PopulationTables{}, fmt.Errorf("gene prior needs %d entries, got %d", domain.NumGeneCounts, len(file.Gene))
		}
		copy(tables.Gene[:], file.Gene)
	}
	if file.Mutation != nil {
		tables.Mutation = *file.Mutation
	}
	for key, row := range file.Trait {
		g, err := strconv.Atoi(key)
		if err != nil || !domain.GeneCount(g).Valid() {
			return domain.PopulationTables{}, fmt.Errorf("trait table key %q is not a gene count", key)
		}
		tables.Trait[g] = row
	}
	if err := tables.Validate(); err != nil {
		return domain.PopulationTables{}, fmt.Errorf("invalid tables: %w", err)
	}
	return tables, nil
}
