package graph

// Machine is a complete state-machine definition: a start state and the
// states it is built from. Map iterators and Parallel branches are nested
// machines with their own state namespace.
type Machine struct {
	Comment        string `json:"Comment,omitempty"`
	StartAt        string `json:"StartAt"`
	States         States `json:"States"`
	TimeoutSeconds int    `json:"TimeoutSeconds,omitempty"`
}

// Clone returns a deep copy of the machine.
func (m Machine) Clone() Machine {
	c := m
	if m.States != nil {
		c.States = make(States, len(m.States))
		for name, st := range m.States {
			c.States[name] = Clone(st)
		}
	}
	return c
}
