package entity

import (
	"encoding/json"
	"strconv"
)

// Record is a platform record: a logical type, an identity and a bag of attribute values.
// Attribute values are JSON-compatible (string, float64, int, bool, Reference, nil).
type Record struct {
	LogicalName string                 `json:"logical_name"`
	ID          string                 `json:"id"`
	Attributes  map[string]interface{} `json:"attributes"`
}

// NewRecord creates an empty record of the given logical type
func NewRecord(logicalName, id string) *Record {
	return &Record{
		LogicalName: logicalName,
		ID:          id,
		Attributes:  make(map[string]interface{}),
	}
}

// Reference returns the identity-only form of the record
func (r *Record) Reference() Reference {
	return Reference{LogicalName: r.LogicalName, ID: r.ID}
}

// Contains reports whether the attribute is present (even with a nil value)
func (r *Record) Contains(key string) bool {
	if r.Attributes == nil {
		return false
	}
	_, ok := r.Attributes[key]
	return ok
}

// Set assigns an attribute value, allocating the attribute map if needed
func (r *Record) Set(key string, value interface{}) {
	if r.Attributes == nil {
		r.Attributes = make(map[string]interface{})
	}
	r.Attributes[key] = value
}

// GetString retrieves a string attribute
func (r *Record) GetString(key string) string {
	if val, ok := r.Attributes[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetInt retrieves an int64 attribute
func (r *Record) GetInt(key string) int64 {
	if val, ok := r.Attributes[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		case json.Number:
			n, _ := v.Int64()
			return n
		}
	}
	return 0
}

// GetFloat retrieves a float64 attribute
func (r *Record) GetFloat(key string) float64 {
	if val, ok := r.Attributes[key]; ok {
		switch v := val.(type) {
		case float64:
			return v
		case float32:
			return float64(v)
		case int64:
			return float64(v)
		case int:
			return float64(v)
		case json.Number:
			f, _ := v.Float64()
			return f
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err == nil {
				return f
			}
		}
	}
	return 0.0
}

// GetBool retrieves a bool attribute
func (r *Record) GetBool(key string) bool {
	if val, ok := r.Attributes[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return false
}

// GetReference retrieves a lookup attribute. Values decoded from JSON arrive as
// maps and are converted on the fly.
func (r *Record) GetReference(key string) (Reference, bool) {
	val, ok := r.Attributes[key]
	if !ok {
		return Reference{}, false
	}
	switch v := val.(type) {
	case Reference:
		return v, true
	case *Reference:
		if v == nil {
			return Reference{}, false
		}
		return *v, true
	case map[string]interface{}:
		id, _ := v["id"].(string)
		if id == "" {
			return Reference{}, false
		}
		name, _ := v["logical_name"].(string)
		return Reference{LogicalName: name, ID: id}, true
	}
	return Reference{}, false
}

// Clone returns a shallow copy with its own attribute map
func (r *Record) Clone() *Record {
	c := &Record{
		LogicalName: r.LogicalName,
		ID:          r.ID,
		Attributes:  make(map[string]interface{}, len(r.Attributes)),
	}
	for k, v := range r.Attributes {
		c.Attributes[k] = v
	}
	return c
}

// Project returns a copy restricted to the columns of the set
func (r *Record) Project(columns ColumnSet) *Record {
	if columns.AllColumns {
		return r.Clone()
	}
	c := NewRecord(r.LogicalName, r.ID)
	for _, col := range columns.Columns {
		if v, ok := r.Attributes[col]; ok {
			c.Attributes[col] = v
		}
	}
	return c
}

// Reference identifies a record without carrying its attributes
type Reference struct {
	LogicalName string `json:"logical_name"`
	ID          string `json:"id"`
}

// IsZero reports whether the reference points nowhere
func (r Reference) IsZero() bool {
	return r.ID == ""
}

// ColumnSet selects which attributes a retrieve returns
type ColumnSet struct {
	AllColumns bool     `json:"all_columns"`
	Columns    []string `json:"columns,omitempty"`
}

// AllColumns selects every attribute
func AllColumns() ColumnSet {
	return ColumnSet{AllColumns: true}
}

// Columns selects the named attributes
func Columns(names ...string) ColumnSet {
	return ColumnSet{Columns: names}
}

// RecordSet is the ordered result of a query
type RecordSet struct {
	EntityName string    `json:"entity_name"`
	Records    []*Record `json:"records"`
}

// Len returns the number of records in the set
func (s *RecordSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}
