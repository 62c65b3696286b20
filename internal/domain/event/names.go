package event

// Message names the extensions in this repository register against.
// The platform defines many more; only names in use are listed.
const (
	MessageCreate           = "Create"
	MessageUpdate           = "Update"
	MessageDelete           = "Delete"
	MessageRetrieve         = "Retrieve"
	MessageRetrieveMultiple = "RetrieveMultiple"
	MessageAssign           = "Assign"
	MessageSetState         = "SetState"
	MessageAssociate        = "Associate"
	MessageDisassociate     = "Disassociate"
)

// Well-known input parameter names
const (
	ParamTarget     = "Target"
	ParamColumnSet  = "ColumnSet"
	ParamQuery      = "Query"
	ParamRelatedIDs = "RelatedEntities"
)
