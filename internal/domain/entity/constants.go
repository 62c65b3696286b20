package entity

// Logical names of the records the leave rule works with
const (
	LeaveRequestEntity = "new_leaverequests"
	LeaveBalanceEntity = "new_leavebalance"
	SystemUserEntity   = "systemuser"
)

// Leave request attributes
const (
	AttrLeaveStatus  = "new_leavestatus"
	AttrLeaveType    = "new_leavetype"
	AttrNumberOfDays = "new_numberofdays"
	AttrCreatedBy    = "createdby"
	AttrModifiedBy   = "modifiedby"
)

// Leave balance attributes
const (
	AttrEmployeeID   = "new_employeeid"
	AttrLeaveBalance = "new_leavebalance"
)

// Leave status values
const (
	LeaveStatusDraft    = "Draft"
	LeaveStatusPending  = "Pending"
	LeaveStatusApproved = "Approved"
	LeaveStatusRejected = "Rejected"
)
