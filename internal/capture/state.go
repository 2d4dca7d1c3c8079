package capture

import "fmt"

// State is where a capture cycle is
type State int

const (
	StateIdle State = iota
	StateCapturing
	StateEnriching
	StatePersisting
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateCapturing:
		return "Capturing"
	case StateEnriching:
		return "Enriching"
	case StatePersisting:
		return "Persisting"
	case StateAborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

var transitions = map[State][]State{
	StateIdle:       {StateCapturing},
	StateCapturing:  {StateEnriching, StateAborted},
	StateEnriching:  {StatePersisting},
	StatePersisting: {StateIdle},
	StateAborted:    {StateIdle},
}

// CanTransition reports whether a cycle may move from one state to another
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type cycle struct {
	engine *Engine
	id     string
	state  State
}

func (c *cycle) advance(to State) error {
	if !CanTransition(c.state, to) {
		return fmt.Errorf("invalid transition %s -> %s", c.state, to)
	}
	c.state = to
	c.engine.notifyState(c.id, to)
	return nil
}

// mustAdvance is for transitions the engine itself sequences
func (c *cycle) mustAdvance(to State) {
	if err := c.advance(to); err != nil {
		panic(err)
	}
}
