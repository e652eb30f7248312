package store

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// VariableType distinguishes variables bound to a field from variables
// whose conditions are boolean expressions over several fields.
type VariableType string

const (
	VariableSimple  VariableType = "simple"
	VariableComplex VariableType = "complex"
)

// ValidVariableTypes is the set of valid variable type values.
var ValidVariableTypes = map[VariableType]bool{
	VariableSimple:  true,
	VariableComplex: true,
}

// Field is a named, per-target value table. Each value is keyed by the
// target's email address.
type Field struct {
	ID           int64        `json:"id"`
	UserID       int64        `json:"-"`
	Name         string       `json:"name"`
	ModifiedDate time.Time    `json:"modified_date"`
	Values       []FieldValue `json:"values"`
}

// FieldValue is one email -> value row of a field.
type FieldValue struct {
	Email string `json:"email"`
	Value string `json:"value"`
}

// FieldSummaries is the overview of every field owned by a user.
type FieldSummaries struct {
	Total  int64          `json:"total"`
	Fields []FieldSummary `json:"fields"`
}

// FieldSummary lists the value count instead of the values themselves.
type FieldSummary struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	ModifiedDate time.Time `json:"modified_date"`
	NumValues    int64     `json:"num_values"`
}

// Variable maps conditions to values. A simple variable matches each
// condition against the target's value of Field; a complex variable
// evaluates each condition as a boolean expression.
type Variable struct {
	ID           int64        `json:"id"`
	UserID       int64        `json:"-"`
	Name         string       `json:"name"`
	Type         VariableType `json:"type"`
	Field        string       `json:"field"`
	ModifiedDate time.Time    `json:"modified_date"`
	Conditions   []Condition  `json:"conditions"`
}

// Condition is one condition -> value row of a variable.
type Condition struct {
	Condition string `json:"condition"`
	Value     string `json:"value"`
}

// VariableSummaries is the overview of every variable owned by a user.
type VariableSummaries struct {
	Total     int64             `json:"total"`
	Variables []VariableSummary `json:"variables"`
}

// VariableSummary lists the condition count instead of the conditions.
type VariableSummary struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Field         string    `json:"field"`
	ModifiedDate  time.Time `json:"modified_date"`
	NumConditions int64     `json:"num_conditions"`
}

// Sentinel validation errors. Their messages are shown to users verbatim.
var (
	ErrFieldNameNotSpecified    = validationError("Field name not specified")
	ErrNoValuesSpecified        = validationError("No values specified")
	ErrVariableNameNotSpecified = validationError("Variable name not specified")
	ErrNoConditionsSpecified    = validationError("No conditions specified")
	ErrInvalidVariableType      = validationError("Variable type must be simple or complex")
	ErrVariableFieldRequired    = validationError("Simple variables need a target field")
	ErrTargetFieldNotFound      = validationError("Target Field doesn't exist")
)

// Lower normalizes names and emails for comparison and storage.
func Lower(s string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(s))
}

// Validate checks a field and normalizes its name and emails. Duplicate
// emails collapse into the first slot with the last value.
func (f *Field) Validate() error {
	f.Name = Lower(f.Name)
	switch {
	case f.Name == "":
		return ErrFieldNameNotSpecified
	case len(f.Values) == 0:
		return ErrNoValuesSpecified
	}
	index := make(map[string]int, len(f.Values))
	values := make([]FieldValue, 0, len(f.Values))
	for _, v := range f.Values {
		v.Email = Lower(v.Email)
		if v.Email == "" {
			return validationError("Value without email")
		}
		if i, ok := index[v.Email]; ok {
			values[i].Value = v.Value
			continue
		}
		index[v.Email] = len(values)
		values = append(values, v)
	}
	f.Values = values
	return nil
}

// Validate checks a variable and normalizes its name, type and field
// reference. Whether the referenced field exists is checked by the store.
func (v *Variable) Validate() error {
	v.Name = Lower(v.Name)
	v.Field = Lower(v.Field)
	if v.Type == "" {
		v.Type = VariableComplex
		if v.Field != "" {
			v.Type = VariableSimple
		}
	}
	switch {
	case v.Name == "":
		return ErrVariableNameNotSpecified
	case !ValidVariableTypes[v.Type]:
		return ErrInvalidVariableType
	case len(v.Conditions) == 0:
		return ErrNoConditionsSpecified
	}
	if v.Type == VariableComplex {
		v.Field = ""
	} else if v.Field == "" {
		return ErrVariableFieldRequired
	}
	index := make(map[string]int, len(v.Conditions))
	conds := make([]Condition, 0, len(v.Conditions))
	for _, c := range v.Conditions {
		if strings.TrimSpace(c.Condition) == "" {
			return validationError("Condition without text")
		}
		if i, ok := index[c.Condition]; ok {
			conds[i].Value = c.Value
			continue
		}
		index[c.Condition] = len(conds)
		conds = append(conds, c)
	}
	v.Conditions = conds
	return nil
}

// typeForField derives the variable type from a stored field reference.
func typeForField(field string) VariableType {
	if field == "" {
		return VariableComplex
	}
	return VariableSimple
}

// ValidationError is returned for user input that fails validation.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Is reports whether target is ErrValidation so callers can match the
// whole class with errors.Is.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func validationError(msg string) error {
	return &ValidationError{Message: msg}
}

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
