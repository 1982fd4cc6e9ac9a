package model

// State is the lifecycle state of a model object.
type State int

// Lifecycle states.
const (
	StateNew State = iota
	StateBuilt
	StateActive
	StateStale
	StateDeleted
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "New"
	case StateBuilt:
		return "Built"
	case StateActive:
		return "Active"
	case StateStale:
		return "Stale"
	case StateDeleted:
		return "Deleted"
	default:
		return "Unknown"
	}
}

// Live reports whether an object in this state still holds its references.
func (s State) Live() bool {
	return s != StateStale && s != StateDeleted
}
