// Package host plays the platform's role for local development: it turns an
// invocation document into an execution context and calls every hosted extension.
package host

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/garyjia/record-pipeline/internal/domain/entity"
	"github.com/garyjia/record-pipeline/internal/domain/event"
)

// ErrInvalidInvocation is returned for invocation documents that cannot be executed
var ErrInvalidInvocation = errors.New("invalid invocation")

// Image is a named snapshot in an invocation document
type Image struct {
	Name   string         `json:"name"`
	Record *entity.Record `json:"record"`
}

// Invocation is the JSON form of one platform call
type Invocation struct {
	// Stage is the numeric platform value or the stage name
	Stage            json.RawMessage        `json:"stage"`
	MessageName      string                 `json:"message"`
	EntityName       string                 `json:"entity"`
	Depth            int                    `json:"depth"`
	CorrelationID    string                 `json:"correlation_id"`
	InitiatingUserID string                 `json:"initiating_user_id"`
	UserID           string                 `json:"user_id"`
	Target           *entity.Record         `json:"target,omitempty"`
	TargetReference  *entity.Reference      `json:"target_reference,omitempty"`
	Parameters       map[string]interface{} `json:"parameters,omitempty"`
	PreImages        []Image                `json:"pre_images,omitempty"`
	PostImages       []Image                `json:"post_images,omitempty"`
}

// ParseInvocation decodes an invocation document
func ParseInvocation(data []byte) (*Invocation, error) {
	var inv Invocation
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInvocation, err)
	}
	return &inv, nil
}

// Execution builds the execution context. A missing correlation id is generated
// and written back to the invocation. The target record is handed over as is,
// so edits made by handlers are visible on inv.Target afterwards.
func (inv *Invocation) Execution() (*event.ExecutionContext, error) {
	stage, err := event.ParseStage(strings.Trim(strings.TrimSpace(string(inv.Stage)), `"`))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInvocation, err)
	}
	if strings.TrimSpace(inv.MessageName) == "" {
		return nil, fmt.Errorf("%w: message is required", ErrInvalidInvocation)
	}
	if strings.TrimSpace(inv.EntityName) == "" {
		return nil, fmt.Errorf("%w: entity is required", ErrInvalidInvocation)
	}
	if inv.Target != nil && inv.TargetReference != nil {
		return nil, fmt.Errorf("%w: target and target_reference are exclusive", ErrInvalidInvocation)
	}

	if inv.CorrelationID == "" {
		inv.CorrelationID = uuid.NewString()
	}
	depth := inv.Depth
	if depth <= 0 {
		depth = 1
	}

	params := make(event.ParameterCollection, len(inv.Parameters)+1)
	for k, v := range inv.Parameters {
		params[k] = v
	}
	switch {
	case inv.Target != nil:
		if inv.Target.Attributes == nil {
			inv.Target.Attributes = make(map[string]interface{})
		}
		if inv.Target.LogicalName == "" {
			inv.Target.LogicalName = inv.EntityName
		}
		params[event.ParamTarget] = inv.Target
	case inv.TargetReference != nil:
		if inv.TargetReference.LogicalName == "" {
			inv.TargetReference.LogicalName = inv.EntityName
		}
		params[event.ParamTarget] = inv.TargetReference
	}

	pre, err := images(inv.PreImages)
	if err != nil {
		return nil, err
	}
	post, err := images(inv.PostImages)
	if err != nil {
		return nil, err
	}

	return &event.ExecutionContext{
		Stage:             stage,
		MessageName:       inv.MessageName,
		PrimaryEntityName: inv.EntityName,
		Depth:             depth,
		CorrelationID:     inv.CorrelationID,
		InitiatingUserID:  inv.InitiatingUserID,
		UserID:            inv.UserID,
		InputParameters:   params,
		PreEntityImages:   pre,
		PostEntityImages:  post,
	}, nil
}

func images(in []Image) (event.ImageCollection, error) {
	var out event.ImageCollection
	for i, img := range in {
		if img.Record == nil {
			return nil, fmt.Errorf("%w: image %d has no record", ErrInvalidInvocation, i)
		}
		name := img.Name
		if name == "" {
			name = fmt.Sprintf("Image%d", i)
		}
		out = out.Add(name, img.Record)
	}
	return out, nil
}
