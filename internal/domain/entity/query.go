package entity

import (
	"encoding/json"
	"fmt"
)

// Operator is a condition comparison operator
type Operator string

// OperatorEqual is the only operator the record services need today
const OperatorEqual Operator = "eq"

// Condition compares one attribute against a value
type Condition struct {
	Attribute string      `json:"attribute"`
	Operator  Operator    `json:"operator"`
	Value     interface{} `json:"value"`
}

// Equal builds an equality condition
func Equal(attribute string, value interface{}) Condition {
	return Condition{Attribute: attribute, Operator: OperatorEqual, Value: value}
}

// Query selects records of one entity whose attributes satisfy every condition
type Query struct {
	EntityName string      `json:"entity_name"`
	Columns    ColumnSet   `json:"columns"`
	Conditions []Condition `json:"conditions"`
}

// NewQuery creates a conjunctive equality query
func NewQuery(entityName string, columns ColumnSet, conditions ...Condition) *Query {
	return &Query{
		EntityName: entityName,
		Columns:    columns,
		Conditions: conditions,
	}
}

// Validate checks the query is well formed
func (q *Query) Validate() error {
	if q.EntityName == "" {
		return fmt.Errorf("query entity name is required")
	}
	for i, c := range q.Conditions {
		if c.Attribute == "" {
			return fmt.Errorf("condition %d: attribute is required", i)
		}
		if c.Operator != OperatorEqual {
			return fmt.Errorf("condition %d: unsupported operator %q", i, c.Operator)
		}
	}
	return nil
}

// Matches evaluates the conditions against an in-memory record
func (q *Query) Matches(r *Record) bool {
	if r == nil || r.LogicalName != q.EntityName {
		return false
	}
	for _, c := range q.Conditions {
		if !c.matches(r) {
			return false
		}
	}
	return true
}

func (c Condition) matches(r *Record) bool {
	switch want := c.Value.(type) {
	case Reference:
		ref, ok := r.GetReference(c.Attribute)
		return ok && ref.ID == want.ID
	case string:
		if ref, ok := r.GetReference(c.Attribute); ok {
			return ref.ID == want
		}
		return r.GetString(c.Attribute) == want
	case float64, float32, int, int32, int64, json.Number:
		got, ok := numeric(r.Attributes[c.Attribute])
		return ok && got == toFloat(want)
	case bool:
		return r.Contains(c.Attribute) && r.GetBool(c.Attribute) == want
	case nil:
		v, ok := r.Attributes[c.Attribute]
		return !ok || v == nil
	}
	return false
}

func toFloat(v interface{}) float64 {
	f, _ := numeric(v)
	return f
}

// numeric reports the value of a JSON or Go number
func numeric(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
