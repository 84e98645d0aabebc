package models

// CalculationState is the lifecycle state of a calculation job.
type CalculationState string

const (
	StatePending    CalculationState = "Pending"
	StateInProgress CalculationState = "InProgress"
	StateCancelled  CalculationState = "Cancelled"
	StateFailed     CalculationState = "Failed"
	StateSuccess    CalculationState = "Success"
)

var transitions = map[CalculationState][]CalculationState{
	StatePending:    {StateInProgress, StateCancelled},
	StateInProgress: {StateCancelled, StateFailed, StateSuccess},
}

// IsValidTransition reports whether a calculation in state s may move to next.
func (s CalculationState) IsValidTransition(next CalculationState) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s CalculationState) IsTerminal() bool {
	switch s {
	case StateCancelled, StateFailed, StateSuccess:
		return true
	}
	return false
}

// IsValid reports whether s is one of the known states.
func (s CalculationState) IsValid() bool {
	switch s {
	case StatePending, StateInProgress, StateCancelled, StateFailed, StateSuccess:
		return true
	}
	return false
}

// ParseState converts user input into a state; the comparison is exact.
func ParseState(value string) (CalculationState, bool) {
	s := CalculationState(value)
	return s, s.IsValid()
}
