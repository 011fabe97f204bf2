package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	apperrors "mt5-bridge/internal/errors"
)

// JSON Schema type names used by tool inputs.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
)

// Property describes one tool parameter.
type Property struct {
	Type        string      `json:"type"`
	Description string      `json:"description,omitempty"`
	Default     interface{} `json:"default,omitempty"`
}

// Schema is the JSON Schema of a tool input object.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Param declares a parameter for NewSchema.
type Param struct {
	Name     string
	Property Property
	Required bool
}

func str(name, desc string) Param {
	return Param{Name: name, Property: Property{Type: TypeString, Description: desc}}
}

func num(name, desc string) Param {
	return Param{Name: name, Property: Property{Type: TypeNumber, Description: desc}}
}

func integer(name, desc string) Param {
	return Param{Name: name, Property: Property{Type: TypeInteger, Description: desc}}
}

func (p Param) required() Param {
	p.Required = true
	return p
}

func (p Param) def(v interface{}) Param {
	p.Property.Default = v
	return p
}

// names lists accepted names in the description. Names match in any case,
// so they are not published as a JSON Schema enum.
func (p Param) names(values ...string) Param {
	p.Property.Description += " Accepted names, in any case: " + strings.Join(values, ", ") + "."
	return p
}

// NewSchema builds an object schema from params.
func NewSchema(params ...Param) Schema {
	s := Schema{Type: "object", Properties: make(map[string]Property, len(params))}
	for _, p := range params {
		s.Properties[p.Name] = p.Property
		if p.Required {
			s.Required = append(s.Required, p.Name)
		}
	}
	return s
}

// ParseSchema decodes the input schema of t.
func ParseSchema(t Tool) (Schema, error) {
	var s Schema
	if err := json.Unmarshal(t.InputSchema(), &s); err != nil {
		return Schema{}, fmt.Errorf("decoding %s input schema: %w", t.Name(), err)
	}
	if s.Properties == nil {
		s.Properties = map[string]Property{}
	}
	return s, nil
}

// Check rejects missing required parameters and values of the wrong type.
// Numbers may arrive as strings from query strings and CLI flags.
func (s Schema) Check(params map[string]interface{}) error {
	for _, name := range s.Required {
		if missing(params[name]) {
			return apperrors.NewValidationError(name, nil, "parameter is required")
		}
	}
	for name, value := range params {
		prop, ok := s.Properties[name]
		if !ok || missing(value) {
			continue
		}
		var err error
		switch prop.Type {
		case TypeNumber:
			_, err = toFloat(name, value)
		case TypeInteger:
			_, err = toInt(name, value)
		case TypeBoolean:
			_, err = toBool(name, value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
