package engine

// state is one node of the orchestration state machine. The machine walks
// route -> dispatch/approval -> validate -> route until the pending queue
// drains, then merge -> done.
type state int

const (
	stateRoute state = iota
	stateDispatch
	stateApproval
	stateValidate
	stateMerge
	stateDone
)

func (s state) String() string {
	switch s {
	case stateRoute:
		return "route"
	case stateDispatch:
		return "dispatch"
	case stateApproval:
		return "approval"
	case stateValidate:
		return "validate"
	case stateMerge:
		return "merge"
	case stateDone:
		return "done"
	default:
		return "unknown"
	}
}
