package event

import "fmt"

// Stage identifies a fixed point in the platform's processing pipeline
type Stage int

const (
	StagePreValidation Stage = 10
	StagePreOperation  Stage = 20
	StagePostOperation Stage = 40
)

// String returns the stage name
func (s Stage) String() string {
	switch s {
	case StagePreValidation:
		return "PreValidation"
	case StagePreOperation:
		return "PreOperation"
	case StagePostOperation:
		return "PostOperation"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// IsValid checks if the stage is one of the defined constants
func (s Stage) IsValid() bool {
	switch s {
	case StagePreValidation,
		StagePreOperation,
		StagePostOperation:
		return true
	default:
		return false
	}
}

// ParseStage accepts either the numeric platform value or the stage name
func ParseStage(v string) (Stage, error) {
	switch v {
	case "10", "PreValidation", "prevalidation":
		return StagePreValidation, nil
	case "20", "PreOperation", "preoperation":
		return StagePreOperation, nil
	case "40", "PostOperation", "postoperation":
		return StagePostOperation, nil
	}
	return 0, fmt.Errorf("unknown stage %q", v)
}
