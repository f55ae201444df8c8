package persona

// State is the engagement posture the persona presents. States only
// move forward over the life of a session.
type State string

const (
	StateInitial    State = "initial"
	StateEscalating State = "escalating"
	StateProbing    State = "probing"
	StateExtracting State = "extracting"
)

var stateOrder = []State{StateInitial, StateEscalating, StateProbing, StateExtracting}

func stateIndex(s State) int {
	for i, st := range stateOrder {
		if st == s {
			return i
		}
	}
	return 0
}

// Advance returns the state a persona should hold at the given turn.
// Movement is monotonic and only happens while the fraud probability
// stays at or above the engagement threshold.
func Advance(p Profile, current State, turnCount int, probability, threshold float64) State {
	if current == "" {
		current = StateInitial
	}
	if probability < threshold {
		return current
	}
	idx := stateIndex(current)
	for idx < len(stateOrder)-1 {
		next := stateOrder[idx+1]
		if turnCount < p.StateTurns[next] {
			break
		}
		idx++
	}
	return stateOrder[idx]
}
