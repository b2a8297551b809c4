// backend-go/internal/policy/merge.go
package policy

import (
	"sort"
	"strings"

	"github.com/andresuchdata/autoplan/backend-go/internal/domain"
)

const (
	// DefaultHorizonCeiling caps methods that declare no max_horizon.
	DefaultHorizonCeiling = 60
	// fallbackHorizon is used when nothing in the hierarchy requests a horizon.
	fallbackHorizon = 3

	forecastPeriodsParam = "forecast_periods"
)

// Options tunes Merge. The zero value is usable.
type Options struct {
	HorizonCeiling int
}

func (o Options) ceiling() int {
	if o.HorizonCeiling > 0 {
		return o.HorizonCeiling
	}
	return DefaultHorizonCeiling
}

// ResolveMethod picks the method an item runs: product policy, then segment policy,
// then the blueprint default.
func ResolveMethod(bp *domain.Blueprint, segment, product *domain.Policy) string {
	if product != nil && strings.TrimSpace(product.Method) != "" {
		return strings.TrimSpace(product.Method)
	}
	if segment != nil && strings.TrimSpace(segment.Method) != "" {
		return strings.TrimSpace(segment.Method)
	}
	if bp == nil {
		return ""
	}
	if m, ok := bp.Default(); ok {
		return m.Name
	}
	return ""
}

// Merge resolves the three configuration tiers for one method. For every declared
// parameter the blueprint default is replaced by the segment value and then by the
// product value, but only when the parameter is overridable. Keys the method does not
// declare are ignored. segment and product may be nil.
func Merge(methodName string, bp *domain.Blueprint, segment, product *domain.Policy, opts Options) (domain.MergedPolicy, error) {
	method, ok := bp.Method(methodName)
	if !ok {
		return domain.MergedPolicy{}, &domain.MethodNotFoundError{Method: methodName}
	}

	names := make([]string, 0, len(method.Parameters))
	for name := range method.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)

	params := make(map[string]any, len(names))
	specs := make(map[string]domain.ParameterSpec, len(names))
	for _, name := range names {
		spec := method.Parameters[name]
		specs[name] = spec

		value := spec.Default
		if spec.Overridable {
			if v, ok := segment.Param(name); ok && v != nil {
				value = v
			}
			if v, ok := product.Param(name); ok && v != nil {
				value = v
			}
		}
		params[name] = value
	}

	merged := domain.MergedPolicy{
		MethodName:       method.Name,
		Kind:             method.Kind,
		EffectiveParams:  params,
		EffectiveHorizon: resolveHorizon(method, segment, product, opts),
		TriggerCondition: method.TriggerCondition,
		ActionExpression: method.ActionExpression,
		Specs:            specs,
	}
	if merged.Kind == "" {
		merged.Kind = bp.AgentType
	}

	if method.AllowsCustom(domain.FieldTriggerCondition) {
		merged.TriggerCondition = override(merged.TriggerCondition, CustomTrigger(segment), CustomTrigger(product))
	}
	if method.AllowsCustom(domain.FieldActionLogic) {
		merged.ActionExpression = override(merged.ActionExpression, CustomAction(segment), CustomAction(product))
	}
	return merged, nil
}

func resolveHorizon(method *domain.MethodSpec, segment, product *domain.Policy, opts Options) int {
	requested := 0
	switch {
	case product != nil && product.ForecastHorizon > 0:
		requested = product.ForecastHorizon
	case segment != nil && segment.ForecastHorizon > 0:
		requested = segment.ForecastHorizon
	case method.DefaultHorizon > 0:
		requested = method.DefaultHorizon
	default:
		if spec, ok := method.Parameters[forecastPeriodsParam]; ok {
			if n, ok := domain.ToInt(spec.Default); ok && n > 0 {
				requested = n
			}
		}
	}
	if requested <= 0 {
		requested = fallbackHorizon
	}

	limit := opts.ceiling()
	if method.MaxHorizon != nil && *method.MaxHorizon > 0 {
		limit = *method.MaxHorizon
	}
	if requested > limit {
		return limit
	}
	return requested
}

func override(base string, layers ...string) string {
	out := base
	for _, l := range layers {
		if strings.TrimSpace(l) != "" {
			out = strings.TrimSpace(l)
		}
	}
	return out
}

// CustomTrigger reads the typed field first and the reserved params key second, so
// policies stored as a flat JSON map keep working.
func CustomTrigger(p *domain.Policy) string {
	if p == nil {
		return ""
	}
	if p.CustomTrigger != "" {
		return p.CustomTrigger
	}
	if v, ok := p.Param(domain.KeyCustomTrigger); ok {
		s, _ := v.(string)
		return s
	}
	return ""
}

// CustomAction is CustomTrigger for the action expression.
func CustomAction(p *domain.Policy) string {
	if p == nil {
		return ""
	}
	if p.CustomAction != "" {
		return p.CustomAction
	}
	if v, ok := p.Param(domain.KeyCustomAction); ok {
		s, _ := v.(string)
		return s
	}
	return ""
}
