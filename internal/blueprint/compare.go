// backend-go/internal/blueprint/compare.go
package blueprint

import (
	"sort"
	"strings"

	"github.com/andresuchdata/autoplan/backend-go/internal/domain"
)

// Deviation statuses reported by Compare
const (
	StatusMissingDefault = "missing, using default"
	StatusDeviation      = "deviation"
)

// AgentConfig is a user-authored agent configuration to be checked against a blueprint.
type AgentConfig struct {
	MethodName     string         `json:"method_name"`
	Customizations map[string]any `json:"customizations"`
}

// Deviation describes one parameter that differs from the blueprint.
type Deviation struct {
	Parameter       string `json:"parameter"`
	Status          string `json:"status"`
	DefaultUsed     any    `json:"default_used,omitempty"`
	UserValue       any    `json:"user_value,omitempty"`
	ExpectedDefault any    `json:"expected_default,omitempty"`
}

// Comparison is the deviation report of an agent config.
type Comparison struct {
	Method      string         `json:"method"`
	UsedDefault bool           `json:"used_default_method"`
	Deviations  []Deviation    `json:"deviations"`
	Merged      map[string]any `json:"merged_config"`
	Unknown     []string       `json:"unknown_parameters,omitempty"`
}

// Compare matches cfg.MethodName against bp (case-insensitive, falling back to the
// blueprint's default method) and reports every parameter that is missing or
// differs from its default. Deviations are sorted by parameter name.
func Compare(bp *domain.Blueprint, cfg AgentConfig) (*Comparison, error) {
	var method *domain.MethodSpec
	for i := range bp.Methods {
		if strings.EqualFold(bp.Methods[i].Name, strings.TrimSpace(cfg.MethodName)) {
			method = &bp.Methods[i]
			break
		}
	}

	usedDefault := false
	if method == nil {
		m, ok := bp.Default()
		if !ok {
			return nil, &domain.MethodNotFoundError{Method: cfg.MethodName}
		}
		method, usedDefault = m, true
	}

	names := make([]string, 0, len(method.Parameters))
	for name := range method.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)

	out := &Comparison{
		Method:      method.Name,
		UsedDefault: usedDefault,
		Deviations:  []Deviation{},
		Merged:      make(map[string]any, len(names)),
	}
	for _, name := range names {
		spec := method.Parameters[name]
		userValue, ok := cfg.Customizations[name]
		if !ok || userValue == nil {
			if spec.Required {
				out.Deviations = append(out.Deviations, Deviation{
					Parameter:   name,
					Status:      StatusMissingDefault,
					DefaultUsed: spec.Default,
				})
			}
			out.Merged[name] = spec.Default
			continue
		}

		if spec.Default != nil && !domain.SameValue(userValue, spec.Default) {
			out.Deviations = append(out.Deviations, Deviation{
				Parameter:       name,
				Status:          StatusDeviation,
				UserValue:       userValue,
				ExpectedDefault: spec.Default,
			})
		}
		out.Merged[name] = userValue
	}

	for name := range cfg.Customizations {
		if _, ok := method.Parameters[name]; !ok {
			out.Unknown = append(out.Unknown, name)
		}
	}
	sort.Strings(out.Unknown)
	return out, nil
}
