package event

import (
	"github.com/garyjia/record-pipeline/internal/domain/entity"
)

// ExecutionContext describes one platform invocation. It is supplied by the
// platform and treated as read-only by extensions.
type ExecutionContext struct {
	Stage             Stage               `json:"stage"`
	MessageName       string              `json:"message_name"`
	PrimaryEntityName string              `json:"primary_entity_name"`
	Depth             int                 `json:"depth"`
	CorrelationID     string              `json:"correlation_id"`
	InitiatingUserID  string              `json:"initiating_user_id"`
	UserID            string              `json:"user_id"`
	InputParameters   ParameterCollection `json:"input_parameters"`
	PreEntityImages   ImageCollection     `json:"pre_entity_images"`
	PostEntityImages  ImageCollection     `json:"post_entity_images"`
}

// ParameterCollection maps input parameter names to values
type ParameterCollection map[string]interface{}

// Contains reports whether the named parameter is present
func (p ParameterCollection) Contains(name string) bool {
	_, ok := p[name]
	return ok
}

// Image is one named snapshot of a record
type Image struct {
	Name   string         `json:"name"`
	Record *entity.Record `json:"record"`
}

// ImageCollection keeps snapshots in the order the platform registered them
type ImageCollection []Image

// Any reports whether at least one image is present
func (c ImageCollection) Any() bool {
	return len(c) > 0
}

// First returns the first registered image, or nil when there is none
func (c ImageCollection) First() *entity.Record {
	if len(c) == 0 {
		return nil
	}
	return c[0].Record
}

// Get returns the image registered under name
func (c ImageCollection) Get(name string) (*entity.Record, bool) {
	for _, img := range c {
		if img.Name == name {
			return img.Record, true
		}
	}
	return nil, false
}

// Add appends a named image, replacing an earlier image of the same name in place
func (c ImageCollection) Add(name string, record *entity.Record) ImageCollection {
	for i, img := range c {
		if img.Name == name {
			c[i].Record = record
			return c
		}
	}
	return append(c, Image{Name: name, Record: record})
}
