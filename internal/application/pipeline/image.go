package pipeline

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"

	"github.com/garyjia/record-pipeline/internal/domain/entity"
)

// ErrNilRecord is returned when there is no record to project
var ErrNilRecord = errors.New("cannot project a nil record")

// PreImageAs projects the first registered pre image into T.
// ok is false when the platform supplied no pre image.
func PreImageAs[T any](c *Context) (value T, ok bool, err error) {
	return projectImage[T](c.PreImage())
}

// PostImageAs projects the first registered post image into T.
// ok is false when the platform supplied no post image.
func PostImageAs[T any](c *Context) (value T, ok bool, err error) {
	return projectImage[T](c.PostImage())
}

// Project decodes a record's attributes into T using mapstructure tags.
// Records requested as entity.Record or *entity.Record are returned as is.
func Project[T any](record *entity.Record) (T, error) {
	var zero T
	if record == nil {
		return zero, ErrNilRecord
	}
	switch any(zero).(type) {
	case *entity.Record:
		return any(record).(T), nil
	case entity.Record:
		return any(*record).(T), nil
	}

	var out T
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.DecodeHookFuncType(referenceHook),
	})
	if err != nil {
		return zero, fmt.Errorf("create decoder: %w", err)
	}
	if err := decoder.Decode(record.Attributes); err != nil {
		return zero, fmt.Errorf("project %s %s: %w", record.LogicalName, record.ID, err)
	}
	return out, nil
}

func projectImage[T any](record *entity.Record) (T, bool, error) {
	var zero T
	if record == nil {
		return zero, false, nil
	}
	v, err := Project[T](record)
	if err != nil {
		return zero, true, err
	}
	return v, true, nil
}

// referenceHook lets lookup attributes decode into string fields as their id
func referenceHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to.Kind() != reflect.String {
		return data, nil
	}
	switch v := data.(type) {
	case entity.Reference:
		return v.ID, nil
	case *entity.Reference:
		if v == nil {
			return "", nil
		}
		return v.ID, nil
	case map[string]interface{}:
		if id, ok := v["id"].(string); ok {
			return id, nil
		}
	}
	return data, nil
}
