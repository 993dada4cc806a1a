package snippet

import (
	"strconv"
	"time"

	"github.com/asaskevich/govalidator"

	"github.com/reedcms/reed/reederr"
)

// FieldError is a single per-field validation failure.
type FieldError struct {
	Field string
	Code  string // "required" | "invalid_type" | "min_length" | "max_length" | "pattern" | "min" | "max" | "enum" | "invalid_format" | "potential_<firewall rule name>" | ...
	err   *reederr.Error
}

// ValidationResult accumulates per-field errors across a payload. Structural
// failure (missing required field, wrong type) stops validation for that
// field; constraint failures (length, pattern, range, enum) accumulate.
type ValidationResult struct {
	Errors []FieldError
}

// OK reports whether the payload passed every field's checks.
func (r ValidationResult) OK() bool { return len(r.Errors) == 0 }

// FirstError returns a *reederr.Error describing the first recorded
// failure, for callers that only need one error to surface.
func (r ValidationResult) FirstError() *reederr.Error {
	if len(r.Errors) == 0 {
		return nil
	}
	return r.Errors[0].err
}

func (r *ValidationResult) add(field, code string, err *reederr.Error) {
	r.Errors = append(r.Errors, FieldError{Field: field, Code: code, err: err})
}

// ValidateFields runs the full per-field pipeline (structural, constraints,
// format, content firewall) over payload against schema. Sanitisation is a
// separate, explicit step (Sanitize) since not every caller wants payload
// values rewritten.
func ValidateFields(schema SchemaDef, payload map[string]interface{}) ValidationResult {
	var result ValidationResult

	for _, field := range schema.Fields {
		value, present := payload[field.Name]

		if !present || value == nil {
			if field.Required {
				result.add(field.Name, "required", reederr.SchemaViolation("field %q is required", field.Name))
			}
			continue
		}

		if !validateType(field.Type, value) {
			result.add(field.Name, "invalid_type", reederr.SchemaViolation("field %q must be of type %s", field.Name, field.Type))
			continue
		}

		validateConstraints(&result, field, value)
		validateFormat(&result, field, value)
		validateFirewall(&result, field, value)
	}

	return result
}

func validateType(t FieldType, value interface{}) bool {
	switch t {
	case FieldString, FieldText, FieldEmail, FieldURL, FieldPhone, FieldSlug, FieldDate:
		_, ok := value.(string)
		return ok
	case FieldNumber:
		switch value.(type) {
		case float64, int:
			return true
		}
		return false
	case FieldBool:
		_, ok := value.(bool)
		return ok
	default:
		// Unknown field type: accept, since the registry is CSV-driven and
		// a typo'd type column should not make every payload unvalidatable.
		return true
	}
}

func validateConstraints(result *ValidationResult, field FieldDef, value interface{}) {
	if s, ok := value.(string); ok {
		if field.MinLength != nil && len(s) < *field.MinLength {
			result.add(field.Name, "min_length", reederr.SchemaViolation("field %q shorter than %d", field.Name, *field.MinLength))
		}
		if field.MaxLength != nil && len(s) > *field.MaxLength {
			result.add(field.Name, "max_length", reederr.SchemaViolation("field %q longer than %d", field.Name, *field.MaxLength))
		}
		if field.Pattern != "" && !govalidator.Matches(s, field.Pattern) {
			result.add(field.Name, "pattern", reederr.SchemaViolation("field %q does not match pattern", field.Name))
		}
		if len(field.Enum) > 0 && !contains(field.Enum, s) {
			result.add(field.Name, "enum", reederr.SchemaViolation("field %q not in allowed values", field.Name))
		}
	}

	n, isNumber := toFloat(value)
	if isNumber {
		if field.Min != nil && n < *field.Min {
			result.add(field.Name, "min", reederr.SchemaViolation("field %q below minimum %v", field.Name, *field.Min))
		}
		if field.Max != nil && n > *field.Max {
			result.add(field.Name, "max", reederr.SchemaViolation("field %q above maximum %v", field.Name, *field.Max))
		}
	}
}

func validateFormat(result *ValidationResult, field FieldDef, value interface{}) {
	s, ok := value.(string)
	if !ok {
		return
	}

	var valid bool
	switch field.Type {
	case FieldEmail:
		valid = govalidator.IsEmail(s)
	case FieldURL:
		valid = govalidator.IsURL(s)
	case FieldPhone:
		valid = isPhone(s)
	case FieldSlug:
		valid = isSlug(s)
	case FieldDate:
		valid = isDate(s)
	default:
		return
	}
	if !valid {
		result.add(field.Name, "invalid_format", reederr.SchemaViolation("field %q is not a valid %s", field.Name, field.Type))
	}
}

func isPhone(s string) bool {
	return govalidator.Matches(s, `^\+?[0-9][0-9\-\s()]{5,20}$`)
}

func isSlug(s string) bool {
	return govalidator.Matches(s, `^[a-z0-9]+(-[a-z0-9]+)*$`)
}

func isDate(s string) bool {
	if _, err := time.Parse(time.RFC3339, s); err == nil {
		return true
	}
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
