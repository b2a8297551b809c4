// backend-go/internal/extract/extract.go
package extract

import (
	"sort"

	"github.com/andresuchdata/autoplan/backend-go/internal/domain"
)

// Variables builds the numeric variable set for one item from its merged policy.
//
// Parameters sourced from inventory or forecast read the live record value when the
// record has one and fall back to the merged value otherwise. Values that cannot be
// coerced to a number are left out and reported as warnings; a missing required
// variable surfaces later, when an expression references it.
func Variables(record domain.ItemRecord, merged domain.MergedPolicy) (domain.VariableSet, []domain.ExtractionWarning) {
	names := make([]string, 0, len(merged.EffectiveParams))
	for name := range merged.EffectiveParams {
		if name == domain.KeyCustomTrigger || name == domain.KeyCustomAction {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	vars := make(domain.VariableSet, len(names))
	var warnings []domain.ExtractionWarning
	for _, name := range names {
		spec := merged.Specs[name]
		raw := liveValue(record, spec.Source, merged.EffectiveParams[name])

		f, ok := domain.ToFloat(raw)
		if !ok && isText(spec.Default) {
			continue
		}
		if !ok {
			warnings = append(warnings, domain.ExtractionWarning{
				Parameter: name,
				Value:     raw,
				Required:  spec.Required,
			})
			continue
		}
		vars[name] = f
	}
	return vars, warnings
}

// isText reports a parameter declared with a non-numeric string default, such as a
// model name. Those never become variables and are not worth a warning.
func isText(def any) bool {
	s, ok := def.(string)
	if !ok {
		return false
	}
	_, numeric := domain.ToFloat(s)
	return !numeric
}

func liveValue(record domain.ItemRecord, src domain.Source, merged any) any {
	switch src {
	case domain.SourceInventory:
		if record.InventoryQty != nil {
			return *record.InventoryQty
		}
	case domain.SourceForecast:
		if record.ForecastQty != nil {
			return *record.ForecastQty
		}
	}
	return merged
}
