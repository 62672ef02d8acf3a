// Package validation checks and sanitizes mutation payloads against declarative schemas.
//
// Schemas are plain values describing field rules. Compile turns a schema into a
// Validator once at startup; validation itself is a pure function over the raw JSON
// payload and never mutates shared state.
package validation

import (
	"errors"
	"fmt"
)

// DefaultMaxLength bounds string fields when a rule leaves MaxLength unset.
const DefaultMaxLength = 100

var scriptMarkers = []string{"<script>", "</script>"}

// FieldRule describes one accepted string field.
type FieldRule struct {
	Name string
	// MinLength and MaxLength count runes. Zero MinLength selects 1, zero MaxLength selects DefaultMaxLength.
	MinLength int
	MaxLength int
	// DisallowScript rejects values containing an opening or closing script tag.
	DisallowScript bool
}

// Schema describes an object payload.
type Schema struct {
	Fields []FieldRule
	// Required lists field names that must be present.
	Required []string
	// MinProperties is the minimum number of recognized fields that must be present.
	MinProperties int
}

// Validator evaluates a compiled schema.
type Validator struct {
	fields        map[string]FieldRule
	required      []string
	minProperties int
}

// Compile checks the schema for consistency and returns a reusable Validator.
func Compile(schema Schema) (*Validator, error) {
	if len(schema.Fields) == 0 {
		return nil, errors.New("validation: schema declares no fields")
	}

	v := &Validator{
		fields:        make(map[string]FieldRule, len(schema.Fields)),
		minProperties: schema.MinProperties,
	}
	for _, rule := range schema.Fields {
		if rule.Name == "" {
			return nil, errors.New("validation: field rule without name")
		}
		if _, dup := v.fields[rule.Name]; dup {
			return nil, fmt.Errorf("validation: duplicate field rule %q", rule.Name)
		}
		if rule.MinLength <= 0 {
			rule.MinLength = 1
		}
		if rule.MaxLength <= 0 {
			rule.MaxLength = DefaultMaxLength
		}
		if rule.MinLength > rule.MaxLength {
			return nil, fmt.Errorf("validation: field %q min length %d exceeds max length %d", rule.Name, rule.MinLength, rule.MaxLength)
		}
		v.fields[rule.Name] = rule
	}
	for _, name := range schema.Required {
		if _, ok := v.fields[name]; !ok {
			return nil, fmt.Errorf("validation: required field %q has no rule", name)
		}
		v.required = append(v.required, name)
	}
	if schema.MinProperties < 0 || schema.MinProperties > len(schema.Fields) {
		return nil, fmt.Errorf("validation: min properties %d out of range", schema.MinProperties)
	}

	return v, nil
}

// MustCompile is Compile for schemas declared at package level.
func MustCompile(schema Schema) *Validator {
	v, err := Compile(schema)
	if err != nil {
		panic(err)
	}
	return v
}
