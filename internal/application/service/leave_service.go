package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/garyjia/record-pipeline/internal/application/pipeline"
	"github.com/garyjia/record-pipeline/internal/application/port"
	"github.com/garyjia/record-pipeline/internal/domain/entity"
)

var (
	// ErrBalanceNotFound is returned in strict mode when no balance matches the request
	ErrBalanceNotFound = errors.New("leave balance not found")

	// ErrBalanceAmbiguous is returned in strict mode when several balances match the request
	ErrBalanceAmbiguous = errors.New("leave balance is ambiguous")

	// ErrInvalidTarget is returned when the target carries no record id
	ErrInvalidTarget = errors.New("leave request target has no id")
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Outcome reports what the balance rule did with a leave request
type Outcome string

const (
	OutcomeAdjusted         Outcome = "ADJUSTED"
	OutcomeNotApproved      Outcome = "NOT_APPROVED"
	OutcomeBalanceNotFound  Outcome = "BALANCE_NOT_FOUND"
	OutcomeBalanceAmbiguous Outcome = "BALANCE_AMBIGUOUS"
)

// LeaveRequest is the projection of a leave request record the rule reads
type LeaveRequest struct {
	Status      string  `mapstructure:"new_leavestatus"`
	LeaveType   string  `mapstructure:"new_leavetype"`
	Days        float64 `mapstructure:"new_numberofdays"`
	RequesterID string  `mapstructure:"createdby"`
}

// LeaveResult describes the outcome of one rule run
type LeaveResult struct {
	Outcome   Outcome
	RequestID string
	BalanceID string
	Matches   int
	Previous  float64
	Remaining float64
}

// LeaveOptions tunes the balance rule
type LeaveOptions struct {
	// StrictBalanceLookup turns a missing or duplicated balance into an error
	StrictBalanceLookup bool
}

// LeaveService applies approved leave requests to the requester's balance
type LeaveService interface {
	UpdateApprovedLeave(ctx context.Context, target *entity.Record) (*LeaveResult, error)
}

type leaveServiceImpl struct {
	records port.RecordService
	opts    LeaveOptions
	logger  Logger
}

// NewLeaveService creates a new LeaveService
func NewLeaveService(records port.RecordService, opts LeaveOptions, logger Logger) LeaveService {
	return &leaveServiceImpl{
		records: records,
		opts:    opts,
		logger:  logger,
	}
}

// UpdateApprovedLeave decrements the matching balance when the request is approved.
// The target of an update carries only changed attributes, so the full request is
// retrieved first.
func (s *leaveServiceImpl) UpdateApprovedLeave(ctx context.Context, target *entity.Record) (*LeaveResult, error) {
	if target == nil || target.ID == "" {
		return nil, ErrInvalidTarget
	}

	full, err := s.records.Retrieve(ctx, entity.LeaveRequestEntity, target.ID, entity.AllColumns())
	if err != nil {
		return nil, err
	}

	request, err := pipeline.Project[LeaveRequest](full)
	if err != nil {
		return nil, err
	}

	result := &LeaveResult{RequestID: target.ID}
	if request.Status != entity.LeaveStatusApproved {
		result.Outcome = OutcomeNotApproved
		s.logger.Info("Leave request not approved, balance untouched",
			"request_id", target.ID,
			"status", request.Status,
		)
		return result, nil
	}

	// leave types are often numeric codes; query with the stored value, not its string form
	var leaveType interface{} = request.LeaveType
	if raw, ok := full.Attributes[entity.AttrLeaveType]; ok && raw != nil {
		leaveType = raw
	}
	query := entity.NewQuery(entity.LeaveBalanceEntity, entity.Columns(entity.AttrLeaveBalance),
		entity.Equal(entity.AttrEmployeeID, request.RequesterID),
		entity.Equal(entity.AttrLeaveType, leaveType),
	)
	balances, err := s.records.RetrieveMultiple(ctx, query)
	if err != nil {
		return nil, err
	}

	result.Matches = balances.Len()
	switch result.Matches {
	case 1:
	case 0:
		result.Outcome = OutcomeBalanceNotFound
		return s.unresolved(result, request, ErrBalanceNotFound)
	default:
		result.Outcome = OutcomeBalanceAmbiguous
		return s.unresolved(result, request, ErrBalanceAmbiguous)
	}

	balance := balances.Records[0]
	result.BalanceID = balance.ID
	result.Previous = balance.GetFloat(entity.AttrLeaveBalance)
	result.Remaining = result.Previous - request.Days

	update := entity.NewRecord(entity.LeaveBalanceEntity, balance.ID)
	update.Set(entity.AttrLeaveBalance, result.Remaining)
	if err := s.records.Update(ctx, update); err != nil {
		return nil, err
	}

	result.Outcome = OutcomeAdjusted
	s.logger.Info("Leave balance adjusted",
		"request_id", target.ID,
		"balance_id", balance.ID,
		"previous", result.Previous,
		"remaining", result.Remaining,
	)
	return result, nil
}

// unresolved reports a lookup that did not yield exactly one balance
func (s *leaveServiceImpl) unresolved(result *LeaveResult, request LeaveRequest, strictErr error) (*LeaveResult, error) {
	s.logger.Error("Leave balance lookup did not resolve to a single record",
		"request_id", result.RequestID,
		"employee_id", request.RequesterID,
		"leave_type", request.LeaveType,
		"matches", result.Matches,
		"strict", s.opts.StrictBalanceLookup,
	)
	if s.opts.StrictBalanceLookup {
		return result, fmt.Errorf("%w: employee %s, leave type %s, %d matches",
			strictErr, request.RequesterID, request.LeaveType, result.Matches)
	}
	return result, nil
}
