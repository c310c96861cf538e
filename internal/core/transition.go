package core

import "fmt"

// transitionTable is the allowed-transitions map of a status machine.
type transitionTable[S ~string] struct {
	edges    map[S]map[S]struct{}
	terminal map[S]struct{}
}

func newTransitionTable[S ~string](edges map[S][]S, terminal ...S) transitionTable[S] {
	t := transitionTable[S]{
		edges:    make(map[S]map[S]struct{}, len(edges)),
		terminal: make(map[S]struct{}, len(terminal)),
	}
	for _, s := range terminal {
		if len(edges[s]) > 0 {
			panic(fmt.Sprintf("terminal status %q has outgoing transitions", s))
		}
		t.terminal[s] = struct{}{}
	}
	for from, tos := range edges {
		set := make(map[S]struct{}, len(tos))
		for _, to := range tos {
			set[to] = struct{}{}
		}
		t.edges[from] = set
	}
	return t
}

func (t transitionTable[S]) allows(from, to S) bool {
	_, ok := t.edges[from][to]
	return ok
}

func (t transitionTable[S]) isTerminal(s S) bool {
	_, ok := t.terminal[s]
	return ok
}

func (t transitionTable[S]) known(s S) bool {
	if _, ok := t.edges[s]; ok {
		return true
	}
	return t.isTerminal(s)
}
