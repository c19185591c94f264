package proxy

import "fmt"

// State is a session's position in the SOCKS5 exchange.
type State int

const (
	StateInitialize State = iota
	StateAuthed
	StateRefused
	StateTimeout
	StateConnectedRemote
)

var stateNames = [...]string{
	StateInitialize:      "initialize",
	StateAuthed:          "authed",
	StateRefused:         "refused",
	StateTimeout:         "timeout",
	StateConnectedRemote: "connected-remote",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// transitions lists the states reachable from each state. Refused and
// Timeout are terminal.
var transitions = map[State][]State{
	StateInitialize:      {StateAuthed, StateRefused, StateTimeout},
	StateAuthed:          {StateConnectedRemote, StateRefused, StateTimeout},
	StateConnectedRemote: {StateTimeout},
}

// CanTransition reports whether a session may move from s to to.
func (s State) CanTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}
