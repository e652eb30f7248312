package client

import (
	"fmt"
	"time"
)

// Field is a named table of per-target values keyed by email.
type Field struct {
	ID           int64        `json:"id,omitempty"`
	Name         string       `json:"name"`
	ModifiedDate time.Time    `json:"modified_date"`
	Values       []FieldValue `json:"values"`
}

// FieldValue is one email -> value row.
type FieldValue struct {
	Email string `json:"email"`
	Value string `json:"value"`
}

// FieldSummaries is returned by GET /api/fields/summary.
type FieldSummaries struct {
	Total  int64          `json:"total"`
	Fields []FieldSummary `json:"fields"`
}

// FieldSummary describes one field without its values.
type FieldSummary struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	ModifiedDate time.Time `json:"modified_date"`
	NumValues    int64     `json:"num_values"`
}

// Variable types.
const (
	TypeSimple  = "simple"
	TypeComplex = "complex"
)

// Variable maps conditions to values.
type Variable struct {
	ID           int64       `json:"id,omitempty"`
	Name         string      `json:"name"`
	Type         string      `json:"type"`
	Field        string      `json:"field"`
	ModifiedDate time.Time   `json:"modified_date"`
	Conditions   []Condition `json:"conditions"`
}

// Condition is one condition -> value row.
type Condition struct {
	Condition string `json:"condition"`
	Value     string `json:"value"`
}

// VariableSummaries is returned by GET /api/variables/summary.
type VariableSummaries struct {
	Total     int64             `json:"total"`
	Variables []VariableSummary `json:"variables"`
}

// VariableSummary describes one variable without its conditions.
type VariableSummary struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Field         string    `json:"field"`
	ModifiedDate  time.Time `json:"modified_date"`
	NumConditions int64     `json:"num_conditions"`
}

// Response is the server's {success, message} body.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// APIError is returned for any response with status >= 400. Message holds
// the server's message when the body carried one.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("phishvars: status %d", e.StatusCode)
	}
	return e.Message
}
