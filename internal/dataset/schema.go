package dataset

import (
	"os"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/silver-economy/internal/region"
)

// Field is a logical dataset column.
type Field string

const (
	FieldName                 Field = "name"
	FieldRegionCode           Field = "region_code"
	FieldAgingIndex           Field = "aging_index"
	FieldIncome60Plus         Field = "income_60plus"
	FieldChildlessCoupleRatio Field = "childless_couple_ratio"
	FieldLatitude             Field = "latitude"
	FieldLongitude            Field = "longitude"
)

// RequiredFields must resolve to a header column or the load fails.
var RequiredFields = []Field{
	FieldName,
	FieldRegionCode,
	FieldAgingIndex,
	FieldIncome60Plus,
	FieldChildlessCoupleRatio,
}

var knownFields = append(slices.Clone(RequiredFields), FieldLatitude, FieldLongitude)

// Schema maps each field to the header names accepted for it. Matching
// ignores surrounding whitespace, case and accents.
type Schema struct {
	Aliases map[Field][]string `yaml:"aliases"`
}

// DefaultSchema covers the census export variants seen so far.
func DefaultSchema() *Schema {
	return &Schema{Aliases: map[Field][]string{
		FieldName:                 {"Município", "municipio", "nome", "nome_municipio"},
		FieldRegionCode:           {"UF", "cod_uf", "codigo_uf", "uf_codigo"},
		FieldAgingIndex:           {"Índice de envelhecimento", "indice_envelhecimento", "ie"},
		FieldIncome60Plus:         {"Renda média 60+", "renda_media_60", "renda_60"},
		FieldChildlessCoupleRatio: {"Proporção de casais sem filhos", "casais sem filhos", "prop_casais_sem_filhos"},
		FieldLatitude:             {"latitude", "lat"},
		FieldLongitude:            {"longitude", "lon", "lng"},
	}}
}

// LoadSchema reads extra aliases from a YAML file and merges them over the
// default schema. The file has a top-level "aliases" mapping of field to
// header names.
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read schema %s", path)
	}

	var extra Schema
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return nil, eris.Wrap(err, "dataset: parse schema")
	}

	s := DefaultSchema()
	for field, names := range extra.Aliases {
		if !slices.Contains(knownFields, field) {
			return nil, eris.Errorf("dataset: schema names unknown field %q", field)
		}
		s.Aliases[field] = append(names, s.Aliases[field]...)
	}
	return s, nil
}

// Mapping holds the header index of each resolved field.
type Mapping map[Field]int

// Has reports whether the field resolved to a column.
func (m Mapping) Has(f Field) bool {
	_, ok := m[f]
	return ok
}

// Resolve matches header cells to fields. The first alias that matches wins.
// Missing required fields are reported together.
func (s *Schema) Resolve(header []string) (Mapping, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := headerKey(h)
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	m := make(Mapping, len(knownFields))
	for _, field := range knownFields {
		for _, alias := range s.Aliases[field] {
			if i, ok := index[headerKey(alias)]; ok {
				m[field] = i
				break
			}
		}
	}

	var missing []string
	for _, field := range RequiredFields {
		if !m.Has(field) {
			missing = append(missing, string(field))
		}
	}
	if len(missing) > 0 {
		return nil, eris.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return m, nil
}

func headerKey(h string) string {
	return region.FoldName(h)
}
