// backend-go/internal/domain/policy.go
package domain

// Reserved policy keys that override a method's trigger and action rather than a parameter
const (
	KeyCustomTrigger = "custom_trigger"
	KeyCustomAction  = "custom_action"
)

// Policy is a segment-level or product-level configuration layer.
// ForecastHorizon <= 0 means unset.
type Policy struct {
	Method          string         `json:"method,omitempty" db:"method"`
	Params          map[string]any `json:"params,omitempty"`
	ForecastHorizon int            `json:"forecast_horizon,omitempty"`
	CustomTrigger   string         `json:"custom_trigger,omitempty"`
	CustomAction    string         `json:"custom_action,omitempty"`
}

// Param returns the raw value set for name, if any.
func (p *Policy) Param(name string) (any, bool) {
	if p == nil || p.Params == nil {
		return nil, false
	}
	v, ok := p.Params[name]
	return v, ok
}

// MergedPolicy is the effective configuration of one method for one item.
// Every key of EffectiveParams is a parameter of the method and EffectiveHorizon never
// exceeds the method's cap.
type MergedPolicy struct {
	MethodName       string
	Kind             Kind
	EffectiveParams  map[string]any
	EffectiveHorizon int
	TriggerCondition string
	ActionExpression string
	Specs            map[string]ParameterSpec
}

// Param returns an effective parameter value.
func (m MergedPolicy) Param(name string) (any, bool) {
	v, ok := m.EffectiveParams[name]
	return v, ok
}

// VariableSet holds the numeric bindings visible to the expression evaluator for one item.
type VariableSet map[string]float64

// Clone returns an independent copy.
func (v VariableSet) Clone() VariableSet {
	out := make(VariableSet, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}
