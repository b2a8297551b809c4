// backend-go/internal/domain/blueprint.go
package domain

import (
	"strings"
	"unicode"
)

// Kind identifies which planning agent a blueprint or method belongs to
type Kind string

const (
	KindForecast      Kind = "forecast"
	KindReplenishment Kind = "replenishment"
)

// ParseKind accepts the agent type labels used by stored blueprints ("Replenishment", "forecasting").
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "forecast", "forecasting", "demand":
		return KindForecast, true
	case "replenishment", "replenish":
		return KindReplenishment, true
	}
	return "", false
}

// Source tells the extractor where a parameter's live value comes from
type Source string

const (
	SourceInventory Source = "inventory"
	SourceForecast  Source = "forecast"
	SourcePolicy    Source = "policy"
	SourceUsage     Source = "usage"
	SourceFinance   Source = "finance"
	SourceNone      Source = "none"
)

var sourceAliases = map[string]Source{
	"":               SourceNone,
	"none":           SourceNone,
	"inventory":      SourceInventory,
	"forecast":       SourceForecast,
	"policy":         SourcePolicy,
	"usage":          SourceUsage,
	"usage_data":     SourceUsage,
	"demand_history": SourceUsage,
	"finance":        SourceFinance,
}

// ParseSource normalizes a blueprint source tag. Unknown tags report false.
func ParseSource(s string) (Source, bool) {
	src, ok := sourceAliases[strings.ToLower(strings.TrimSpace(s))]
	return src, ok
}

// ParameterSpec describes one method parameter in the blueprint.
// Default is usually numeric but some methods carry text parameters (model, logic).
type ParameterSpec struct {
	Default     any    `json:"default" yaml:"default"`
	Overridable bool   `json:"overridable" yaml:"overridable"`
	Source      Source `json:"source" yaml:"source"`
	Required    bool   `json:"required" yaml:"required"`
}

// Customizable field names a method may expose to policies
const (
	FieldTriggerCondition = "trigger_condition"
	FieldActionLogic      = "action_logic"
	FieldParameters       = "parameters"
)

// MethodSpec is a single computation method of a blueprint. Immutable once loaded.
type MethodSpec struct {
	Name             string                   `json:"method_name"`
	Kind             Kind                     `json:"kind"`
	Description      string                   `json:"description,omitempty"`
	Tags             []string                 `json:"tags,omitempty"`
	Aliases          []string                 `json:"aliases,omitempty"`
	Parameters       map[string]ParameterSpec `json:"parameters"`
	TriggerCondition string                   `json:"trigger_condition,omitempty"`
	ActionExpression string                   `json:"action_logic,omitempty"`
	MaxHorizon       *int                     `json:"max_horizon,omitempty"`
	DefaultHorizon   int                      `json:"default_horizon,omitempty"`
	IsDefault        bool                     `json:"default"`
	Customizable     []string                 `json:"customizable_fields,omitempty"`
}

// AllowsCustom reports whether policies may replace the given field.
// Methods that list no customizable fields allow everything.
func (m *MethodSpec) AllowsCustom(field string) bool {
	if len(m.Customizable) == 0 {
		return true
	}
	for _, f := range m.Customizable {
		if f == field {
			return true
		}
	}
	return false
}

// Blueprint is the method catalog for one agent type. Loaded once per run and read-only afterwards.
type Blueprint struct {
	AgentType     Kind         `json:"agent_type"`
	DefaultMethod string       `json:"default_method"`
	Methods       []MethodSpec `json:"methods"`
}

// Method looks a method up by exact name, then by normalized name, then by alias.
func (b *Blueprint) Method(name string) (*MethodSpec, bool) {
	if b == nil {
		return nil, false
	}
	for i := range b.Methods {
		if b.Methods[i].Name == name {
			return &b.Methods[i], true
		}
	}

	key := NormalizeMethodName(name)
	if key == "" {
		return nil, false
	}
	for i := range b.Methods {
		m := &b.Methods[i]
		if NormalizeMethodName(m.Name) == key {
			return m, true
		}
		for _, alias := range m.Aliases {
			if NormalizeMethodName(alias) == key {
				return m, true
			}
		}
	}
	return nil, false
}

// Default returns the method named by DefaultMethod, else the first method flagged default.
func (b *Blueprint) Default() (*MethodSpec, bool) {
	if b == nil {
		return nil, false
	}
	if b.DefaultMethod != "" {
		if m, ok := b.Method(b.DefaultMethod); ok {
			return m, true
		}
	}
	for i := range b.Methods {
		if b.Methods[i].IsDefault {
			return &b.Methods[i], true
		}
	}
	return nil, false
}

// NormalizeMethodName lowercases a method name and drops everything that is not a letter or digit,
// so "Consumption-Based", "consumption_based" and "ConsumptionBased" compare equal.
func NormalizeMethodName(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
