package events

// State is the enumerated processing state of an event.
type State int

// Event states as reported by WSI. StateUnknown is used for any
// unrecognized string and never satisfies a state-based filter.
const (
	StateUnknown State = iota
	StateUnprocessed
	StateUnprocessedWithTimer
	StateReadyToBeReset
	StateReadyToBeResetWithTimer
	StateWaitingOPCompletion
	StateReadyToBeClosed
	StateAcked
	StateClosed
)

var stateNames = map[string]State{
	"Unprocessed":             StateUnprocessed,
	"UnprocessedWithTimer":    StateUnprocessedWithTimer,
	"ReadyToBeReset":          StateReadyToBeReset,
	"ReadyToBeResetWithTimer": StateReadyToBeResetWithTimer,
	"WaitingOPCompletion":     StateWaitingOPCompletion,
	"ReadyToBeClosed":         StateReadyToBeClosed,
	"Acked":                   StateAcked,
	"Closed":                  StateClosed,
}

// statePriority orders states for automatic treatment and sorting; lower
// is more urgent.
var statePriority = map[State]int{
	StateUnprocessed:             1,
	StateUnprocessedWithTimer:    2,
	StateReadyToBeReset:          3,
	StateReadyToBeResetWithTimer: 4,
	StateWaitingOPCompletion:     5,
	StateAcked:                   6,
	StateReadyToBeClosed:         7,
	StateClosed:                  8,
}

// UnknownPriority is the priority of states missing from the table.
const UnknownPriority = 99

// ParseState resolves a state string. Unrecognized strings yield StateUnknown.
func ParseState(s string) State {
	return stateNames[s]
}

// Priority returns the state's priority, lower being more urgent.
func (s State) Priority() int {
	if p, ok := statePriority[s]; ok {
		return p
	}
	return UnknownPriority
}

// String returns the wire name of the state.
func (s State) String() string {
	for name, st := range stateNames {
		if st == s {
			return name
		}
	}
	return "Unknown"
}

// SrcState is the state of the event source itself.
type SrcState int

// Source states.
const (
	SrcStateUnknown SrcState = iota
	SrcStateActive
	SrcStateQuiet
)

// ParseSrcState resolves a source state string.
func ParseSrcState(s string) SrcState {
	switch s {
	case "Active":
		return SrcStateActive
	case "Quiet":
		return SrcStateQuiet
	}
	return SrcStateUnknown
}

// String returns the wire name of the source state.
func (s SrcState) String() string {
	switch s {
	case SrcStateActive:
		return "Active"
	case SrcStateQuiet:
		return "Quiet"
	}
	return "Unknown"
}

// SuggestedAction is the next operator action the server proposes.
type SuggestedAction int

// Suggested actions.
const (
	ActionUnknown SuggestedAction = iota
	ActionNone
	ActionAcknowledge
	ActionReset
	ActionSilence
	ActionSuspend
	ActionClose
	ActionWaitForCondition
	ActionCompleteOperation
)

var actionNames = map[string]SuggestedAction{
	"NotSupported":      ActionNone,
	"None":              ActionNone,
	"Acknowledge":       ActionAcknowledge,
	"Reset":             ActionReset,
	"Silence":           ActionSilence,
	"Suspend":           ActionSuspend,
	"Close":             ActionClose,
	"WaitforCondition":  ActionWaitForCondition,
	"CompleteOperation": ActionCompleteOperation,
}

// ParseSuggestedAction resolves a suggested action string.
func ParseSuggestedAction(s string) SuggestedAction {
	return actionNames[s]
}
