package store

import (
	"errors"
	"testing"
)

func TestFieldValidate(t *testing.T) {
	tests := []struct {
		name    string
		field   Field
		wantErr error
	}{
		{"missing name", Field{Values: []FieldValue{{Email: "a@example.com"}}}, ErrFieldNameNotSpecified},
		{"blank name", Field{Name: "  ", Values: []FieldValue{{Email: "a@example.com"}}}, ErrFieldNameNotSpecified},
		{"no values", Field{Name: "dept"}, ErrNoValuesSpecified},
		{"value without email", Field{Name: "dept", Values: []FieldValue{{Value: "x"}}}, ErrValidation},
		{"valid", Field{Name: "Dept", Values: []FieldValue{{Email: "A@Example.com", Value: "x"}}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.field.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				if tt.field.Name != "dept" || tt.field.Values[0].Email != "a@example.com" {
					t.Errorf("not normalized: %+v", tt.field)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("%v should match ErrValidation", err)
			}
		})
	}
}

func TestVariableValidate(t *testing.T) {
	conds := []Condition{{Condition: "a", Value: "b"}}
	tests := []struct {
		name     string
		variable Variable
		wantErr  error
		wantType VariableType
	}{
		{"missing name", Variable{Conditions: conds}, ErrVariableNameNotSpecified, ""},
		{"no conditions", Variable{Name: "v", Field: "f"}, ErrNoConditionsSpecified, ""},
		{"bad type", Variable{Name: "v", Type: "weird", Conditions: conds}, ErrInvalidVariableType, ""},
		{"simple without field", Variable{Name: "v", Type: VariableSimple, Conditions: conds}, ErrVariableFieldRequired, ""},
		{"inferred simple", Variable{Name: "v", Field: "F", Conditions: conds}, nil, VariableSimple},
		{"inferred complex", Variable{Name: "v", Conditions: conds}, nil, VariableComplex},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.variable.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && tt.variable.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", tt.variable.Type, tt.wantType)
			}
		})
	}
}

func TestVariableValidateCollapsesConditions(t *testing.T) {
	v := Variable{Name: "v", Type: VariableComplex, Field: "dropped", Conditions: []Condition{
		{Condition: "x", Value: "1"},
		{Condition: "y", Value: "2"},
		{Condition: "x", Value: "3"},
	}}
	if err := v.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if v.Field != "" {
		t.Errorf("complex variable kept field %q", v.Field)
	}
	if len(v.Conditions) != 2 || v.Conditions[0].Value != "3" || v.Conditions[1].Condition != "y" {
		t.Errorf("Conditions = %+v", v.Conditions)
	}
}
