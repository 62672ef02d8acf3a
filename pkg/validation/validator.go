package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// Messages reported for each violated rule.
const (
	MsgNotObject       = "must be object"
	MsgUnknownField    = "must NOT have additional properties"
	MsgNotString       = "must be string"
	MsgTooShort        = "must NOT have fewer than %d characters"
	MsgTooLong         = "must NOT have more than %d characters"
	MsgScriptTag       = "must NOT contain script tags"
	MsgRequired        = "must have required property '%s'"
	MsgAtLeastOneField = "at least one field must be provided"
)

// FieldError is one client-facing violation. Path is a JSON pointer to the offending
// field, or empty for object-level violations.
type FieldError struct {
	Message string `json:"message"`
	Path    string `json:"path"`
}

// Result is the outcome of validating one payload.
type Result struct {
	OK     bool
	Errors []FieldError
}

// Validate checks raw against the compiled schema. Errors are ordered for
// deterministic reporting: object-level violations, then fields in document
// order, then missing required fields in schema order.
func (v *Validator) Validate(raw []byte) Result {
	if !gjson.ValidBytes(raw) {
		return failed(FieldError{Message: MsgNotObject})
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return failed(FieldError{Message: MsgNotObject})
	}

	var errs []FieldError
	present := make(map[string]bool, len(v.fields))

	doc.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		rule, known := v.fields[name]
		if !known {
			errs = append(errs, FieldError{Message: MsgUnknownField, Path: pointer(name)})
			return true
		}
		present[name] = true
		errs = append(errs, checkField(rule, value)...)
		return true
	})

	var missing []FieldError
	for _, name := range v.required {
		if !present[name] {
			missing = append(missing, FieldError{Message: fmt.Sprintf(MsgRequired, name), Path: ""})
		}
	}

	var objectLevel []FieldError
	if len(present) < v.minProperties {
		objectLevel = append(objectLevel, FieldError{Message: MsgAtLeastOneField})
	}

	all := append(append(objectLevel, errs...), missing...)
	if len(all) > 0 {
		return Result{Errors: all}
	}
	return Result{OK: true}
}

func checkField(rule FieldRule, value gjson.Result) []FieldError {
	path := pointer(rule.Name)
	if value.Type != gjson.String {
		return []FieldError{{Message: MsgNotString, Path: path}}
	}

	s := value.String()
	var errs []FieldError
	n := utf8.RuneCountInString(s)
	if n < rule.MinLength {
		errs = append(errs, FieldError{Message: fmt.Sprintf(MsgTooShort, rule.MinLength), Path: path})
	}
	if n > rule.MaxLength {
		errs = append(errs, FieldError{Message: fmt.Sprintf(MsgTooLong, rule.MaxLength), Path: path})
	}
	if rule.DisallowScript && containsScript(s) {
		errs = append(errs, FieldError{Message: MsgScriptTag, Path: path})
	}
	return errs
}

func containsScript(s string) bool {
	for _, marker := range scriptMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// pointer renders a top-level field name as a JSON pointer.
func pointer(name string) string {
	name = strings.ReplaceAll(name, "~", "~0")
	return "/" + strings.ReplaceAll(name, "/", "~1")
}

func failed(errs ...FieldError) Result {
	return Result{Errors: errs}
}
