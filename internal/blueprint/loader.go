// backend-go/internal/blueprint/loader.go
package blueprint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/andresuchdata/autoplan/backend-go/internal/domain"
	"github.com/andresuchdata/autoplan/backend-go/internal/expr"
)

// Format is the serialization of a blueprint document
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from a file extension; anything unknown is JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// document mirrors the on-disk layout. Stored blueprints were written by several tools,
// so both method_name/name and action_logic/action_expression are accepted.
type document struct {
	AgentType     string      `json:"agent_type" yaml:"agent_type" validate:"required"`
	DefaultMethod string      `json:"default_method,omitempty" yaml:"default_method,omitempty"`
	Methods       []methodDoc `json:"methods" yaml:"methods" validate:"required,min=1,dive"`
}

type methodDoc struct {
	MethodName       string              `json:"method_name" yaml:"method_name"`
	Name             string              `json:"name,omitempty" yaml:"name,omitempty"`
	Description      string              `json:"description,omitempty" yaml:"description,omitempty"`
	Tags             []string            `json:"tags,omitempty" yaml:"tags,omitempty"`
	Aliases          []string            `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Parameters       map[string]paramDoc `json:"parameters" yaml:"parameters" validate:"dive"`
	TriggerCondition string              `json:"trigger_condition,omitempty" yaml:"trigger_condition,omitempty"`
	ActionLogic      string              `json:"action_logic,omitempty" yaml:"action_logic,omitempty"`
	ActionExpression string              `json:"action_expression,omitempty" yaml:"action_expression,omitempty"`
	MaxHorizon       *int                `json:"max_horizon,omitempty" yaml:"max_horizon,omitempty" validate:"omitempty,min=1"`
	DefaultHorizon   int                 `json:"default_horizon,omitempty" yaml:"default_horizon,omitempty" validate:"min=0"`
	Default          bool                `json:"default" yaml:"default"`
	Customizable     []string            `json:"customizable_fields,omitempty" yaml:"customizable_fields,omitempty" validate:"dive,oneof=trigger_condition action_logic parameters"`
}

type paramDoc struct {
	Default     any    `json:"default" yaml:"default"`
	Overridable bool   `json:"overridable" yaml:"overridable"`
	Source      string `json:"source" yaml:"source"`
	Required    bool   `json:"required" yaml:"required"`
}

var validate = validator.New()

// Parse decodes and validates a blueprint document. Every trigger and action is compiled
// once here so a malformed expression is reported at load time with its method name.
func Parse(data []byte, format Format) (*domain.Blueprint, error) {
	var doc document
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, &domain.ConfigError{Msg: fmt.Sprintf("decode yaml blueprint: %v", err)}
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, &domain.ConfigError{Msg: fmt.Sprintf("decode json blueprint: %v", err)}
		}
	}

	if err := validate.Struct(doc); err != nil {
		return nil, &domain.ConfigError{Msg: fmt.Sprintf("invalid blueprint: %v", err)}
	}
	return doc.toDomain()
}

func (d document) toDomain() (*domain.Blueprint, error) {
	kind, ok := domain.ParseKind(d.AgentType)
	if !ok {
		return nil, &domain.ConfigError{Msg: fmt.Sprintf("unknown agent_type %q", d.AgentType)}
	}

	bp := &domain.Blueprint{AgentType: kind, DefaultMethod: d.DefaultMethod}
	seen := make(map[string]bool, len(d.Methods))
	for i, md := range d.Methods {
		m, err := md.toDomain(kind)
		if err != nil {
			return nil, fmt.Errorf("method %d: %w", i, err)
		}
		key := domain.NormalizeMethodName(m.Name)
		if seen[key] {
			return nil, &domain.ConfigError{Msg: fmt.Sprintf("duplicate method %q", m.Name)}
		}
		seen[key] = true
		bp.Methods = append(bp.Methods, m)
	}

	if bp.DefaultMethod != "" {
		if _, ok := bp.Method(bp.DefaultMethod); !ok {
			return nil, &domain.ConfigError{Msg: fmt.Sprintf("default_method %q is not defined", bp.DefaultMethod)}
		}
	} else if m, ok := bp.Default(); ok {
		bp.DefaultMethod = m.Name
	} else {
		bp.DefaultMethod = bp.Methods[0].Name
	}
	return bp, nil
}

func (md methodDoc) toDomain(kind domain.Kind) (domain.MethodSpec, error) {
	name := strings.TrimSpace(md.MethodName)
	if name == "" {
		name = strings.TrimSpace(md.Name)
	}
	if name == "" {
		return domain.MethodSpec{}, &domain.ConfigError{Msg: "method has neither method_name nor name"}
	}

	action := md.ActionLogic
	if action == "" {
		action = md.ActionExpression
	}

	m := domain.MethodSpec{
		Name:             name,
		Kind:             kind,
		Description:      md.Description,
		Tags:             md.Tags,
		Aliases:          md.Aliases,
		Parameters:       make(map[string]domain.ParameterSpec, len(md.Parameters)),
		TriggerCondition: strings.TrimSpace(md.TriggerCondition),
		ActionExpression: strings.TrimSpace(action),
		MaxHorizon:       md.MaxHorizon,
		DefaultHorizon:   md.DefaultHorizon,
		IsDefault:        md.Default,
		Customizable:     md.Customizable,
	}

	for pname, pd := range md.Parameters {
		src, ok := domain.ParseSource(pd.Source)
		if !ok {
			return domain.MethodSpec{}, &domain.ConfigError{
				Msg: fmt.Sprintf("method %q parameter %q: unknown source %q", name, pname, pd.Source),
			}
		}
		m.Parameters[pname] = domain.ParameterSpec{
			Default:     pd.Default,
			Overridable: pd.Overridable,
			Source:      src,
			Required:    pd.Required,
		}
	}

	for _, f := range [2][2]string{
		{domain.FieldTriggerCondition, m.TriggerCondition},
		{domain.FieldActionLogic, m.ActionExpression},
	} {
		if f[1] == "" {
			continue
		}
		if _, err := expr.Compile(f[1]); err != nil {
			return domain.MethodSpec{}, &domain.ConfigError{
				Msg: fmt.Sprintf("method %q %s: %v", name, f[0], err),
			}
		}
	}
	return m, nil
}

// LoadFile reads one blueprint document from disk.
func LoadFile(path string) (*domain.Blueprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read blueprint %s: %w", path, err)
	}
	bp, err := Parse(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("load blueprint %s: %w", path, err)
	}
	return bp, nil
}

// LoadDir loads every *.json, *.yaml and *.yml file in dir, keyed by agent type.
// Files are read in name order; two files for the same agent type are an error.
func LoadDir(dir string) (map[domain.Kind]*domain.Blueprint, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read blueprint dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !IsBlueprintFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	out := make(map[domain.Kind]*domain.Blueprint, len(names))
	for _, name := range names {
		bp, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if _, dup := out[bp.AgentType]; dup {
			return nil, &domain.ConfigError{Msg: fmt.Sprintf("%s: a %s blueprint was already loaded", name, bp.AgentType)}
		}
		out[bp.AgentType] = bp
	}
	return out, nil
}

// IsBlueprintFile reports whether name has a JSON or YAML extension.
func IsBlueprintFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// Marshal renders a blueprint in the canonical document layout.
func Marshal(bp *domain.Blueprint, format Format) ([]byte, error) {
	doc := fromDomain(bp)
	if format == FormatYAML {
		return yaml.Marshal(doc)
	}
	return json.MarshalIndent(doc, "", "  ")
}

func fromDomain(bp *domain.Blueprint) document {
	doc := document{AgentType: string(bp.AgentType), DefaultMethod: bp.DefaultMethod}
	for _, m := range bp.Methods {
		md := methodDoc{
			MethodName:       m.Name,
			Description:      m.Description,
			Tags:             m.Tags,
			Aliases:          m.Aliases,
			Parameters:       make(map[string]paramDoc, len(m.Parameters)),
			TriggerCondition: m.TriggerCondition,
			ActionLogic:      m.ActionExpression,
			MaxHorizon:       m.MaxHorizon,
			DefaultHorizon:   m.DefaultHorizon,
			Default:          m.IsDefault,
			Customizable:     m.Customizable,
		}
		for name, p := range m.Parameters {
			md.Parameters[name] = paramDoc{
				Default:     p.Default,
				Overridable: p.Overridable,
				Source:      string(p.Source),
				Required:    p.Required,
			}
		}
		doc.Methods = append(doc.Methods, md)
	}
	return doc
}
