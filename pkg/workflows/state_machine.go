package workflows

// Project statuses.
const (
	StatusPending     = "pending"
	StatusUnderReview = "under_review"
	StatusApproved    = "approved"
	StatusRejected    = "rejected"
	StatusVerified    = "verified"
)

// StateMachine enforces project status transitions. The workflow is
// deliberately permissive: any status may move to any other status, except
// that "verified" is terminal and has no outgoing transitions.
type StateMachine struct {
	statuses map[string]bool
}

// NewStateMachine creates a new state machine over the known statuses
func NewStateMachine() *StateMachine {
	return &StateMachine{
		statuses: map[string]bool{
			StatusPending:     true,
			StatusUnderReview: true,
			StatusApproved:    true,
			StatusRejected:    true,
			StatusVerified:    true,
		},
	}
}

// IsValidStatus reports whether s is one of the enumerated statuses.
func (sm *StateMachine) IsValidStatus(s string) bool {
	return sm.statuses[s]
}

// CanTransition checks if a status transition is allowed
func (sm *StateMachine) CanTransition(from, to string) bool {
	if !sm.statuses[from] || !sm.statuses[to] {
		return false
	}
	return from != StatusVerified
}

// IsTerminal reports whether a status has no outgoing transitions.
func (sm *StateMachine) IsTerminal(s string) bool {
	return s == StatusVerified
}

// GetAllowedTransitions returns the allowed next statuses for a given status
func (sm *StateMachine) GetAllowedTransitions(from string) []string {
	if !sm.statuses[from] || from == StatusVerified {
		return []string{}
	}
	out := make([]string, 0, len(sm.statuses)-1)
	for _, s := range []string{StatusPending, StatusUnderReview, StatusApproved, StatusRejected, StatusVerified} {
		if s != from {
			out = append(out, s)
		}
	}
	return out
}
