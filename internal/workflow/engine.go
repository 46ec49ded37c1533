package workflow

// Engine evaluates lifecycle transitions. It is pure: applying an event never
// touches storage and has no side effects on the tables.
type Engine struct {
	tables map[Kind]*TransitionTable
}

// NewEngine constructs an engine over the given lifecycles.
func NewEngine(tables map[Kind]*TransitionTable) *Engine {
	return &Engine{tables: tables}
}

// Table returns the lifecycle for kind, or false for an unknown kind.
func (e *Engine) Table(kind Kind) (*TransitionTable, bool) {
	t, ok := e.tables[kind]
	return t, ok
}

// Resolve maps a stored status code to a lifecycle state. Codes that are not
// part of the lifecycle resolve to the initial state, so legacy or hand-edited
// rows re-enter the lifecycle at the start instead of wedging.
func (e *Engine) Resolve(kind Kind, code string) (State, bool) {
	table, ok := e.tables[kind]
	if !ok {
		return "", false
	}
	state := State(code)
	if table.isKnownState(state) {
		return state, true
	}
	return table.initial, true
}

// Apply returns the state after event. When no transition is defined for the
// pair the input state comes back unchanged; callers compare to detect
// rejection.
func (e *Engine) Apply(kind Kind, state State, event Event) State {
	table, ok := e.tables[kind]
	if !ok {
		return state
	}
	if next, ok := table.Next(state, event); ok {
		return next
	}
	return state
}

func (t *TransitionTable) isKnownState(s State) bool {
	if s == t.initial {
		return true
	}
	for key, to := range t.edges {
		if key.from == s || to == s {
			return true
		}
	}
	return false
}
