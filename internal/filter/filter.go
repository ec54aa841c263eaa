// Package filter applies the region and minimum-income predicates to a normalized dataset.
package filter

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/silver-economy/internal/model"
	"github.com/sells-group/silver-economy/internal/region"
)

// AllRegions disables the region predicate.
const AllRegions = "ALL"

// ErrEmptyResult is returned when no record survives the filters.
// Callers must stop the request cycle and show a "no results" state.
var ErrEmptyResult = eris.New("filter: no municipality matches the selected filters")

// ErrInvalidSpec wraps every Validate failure.
var ErrInvalidSpec = eris.New("filter: invalid spec")

// Spec is the user-selected filter state.
type Spec struct {
	Region    string  `json:"region" mapstructure:"region"`
	MinIncome float64 `json:"min_income" mapstructure:"min_income"`
}

// Defaults returns the reset state: every region, no income floor.
func Defaults() Spec {
	return Spec{Region: AllRegions, MinIncome: 0}
}

// IsAllRegions reports whether s selects every region.
func (s Spec) IsAllRegions() bool {
	r := strings.TrimSpace(s.Region)
	return r == "" || strings.EqualFold(r, AllRegions)
}

// Normalized returns s with its region upper-cased, or AllRegions.
func (s Spec) Normalized() Spec {
	if s.IsAllRegions() {
		s.Region = AllRegions
		return s
	}
	s.Region = strings.ToUpper(strings.TrimSpace(s.Region))
	return s
}

// Validate checks the region label and income floor.
func (s Spec) Validate() error {
	if s.MinIncome < 0 {
		return eris.Wrapf(ErrInvalidSpec, "min_income must be >= 0 (got %g)", s.MinIncome)
	}
	if !s.IsAllRegions() && !region.IsLabel(s.Region) {
		return eris.Wrapf(ErrInvalidSpec, "unknown region %q", s.Region)
	}
	return nil
}

// Predicate reports whether a record belongs to the filtered view.
type Predicate func(model.MunicipalRecord) bool

// ByRegion keeps records labeled with the given UF. AllRegions keeps everything.
func ByRegion(label string) Predicate {
	spec := Spec{Region: label}.Normalized()
	if spec.Region == AllRegions {
		return func(model.MunicipalRecord) bool { return true }
	}
	return func(r model.MunicipalRecord) bool {
		return r.RegionLabel == spec.Region
	}
}

// ByMinIncome keeps records whose 60+ income is at least floor (inclusive).
// Records with a missing income only pass when floor is zero or below.
func ByMinIncome(floor float64) Predicate {
	return func(r model.MunicipalRecord) bool {
		if r.Income60Plus == nil {
			return floor <= 0
		}
		return *r.Income60Plus >= floor
	}
}

// Predicates returns the predicate chain for a spec.
func (s Spec) Predicates() []Predicate {
	return []Predicate{ByRegion(s.Region), ByMinIncome(s.MinIncome)}
}

// Chain returns the records matching every predicate, in input order.
// The predicates are independent, so their order does not affect the result.
// The input slice is never modified.
func Chain(records []model.MunicipalRecord, preds ...Predicate) ([]model.MunicipalRecord, error) {
	out := make([]model.MunicipalRecord, 0, len(records))
	for _, rec := range records {
		keep := true
		for _, p := range preds {
			if !p(rec) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, rec)
		}
	}
	if len(out) == 0 {
		return nil, ErrEmptyResult
	}
	return out, nil
}

// Apply validates spec and filters records with it.
func Apply(records []model.MunicipalRecord, spec Spec) ([]model.MunicipalRecord, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return Chain(records, spec.Predicates()...)
}

// IncomeBound returns the largest observed 60+ income, used as the upper
// bound of the income selector. It returns 0 when no income is present.
func IncomeBound(records []model.MunicipalRecord) float64 {
	var bound float64
	for _, r := range records {
		if r.Income60Plus != nil && *r.Income60Plus > bound {
			bound = *r.Income60Plus
		}
	}
	return bound
}
