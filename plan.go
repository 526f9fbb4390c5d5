package dispatch

// planNode is one compiled task: its runnable, its cached AccessSet, and
// its position in the dependency graph (predecessor/successor indices
// into Plan.nodes).
type planNode struct {
	runnable
	access     AccessSet
	depIdx     []int
	successors []int
}

// Plan is the compiled, acyclic task graph a Builder produces: nodes plus
// a valid topological order. SeqDispatcher walks the order directly; the
// parallel scheduler uses depIdx/successors to track readiness as tasks
// complete.
type Plan struct {
	nodes []*planNode
	order []int
}

func newPlan(entries []entry) (*Plan, error) {
	nodes := make([]*planNode, len(entries))
	nameIdx := make(map[string]int, len(entries))
	for i, e := range entries {
		nameIdx[e.name] = i
	}

	for i, e := range entries {
		depIdx := make([]int, 0, len(e.deps))
		for _, d := range e.deps {
			idx, ok := nameIdx[d]
			if !ok {
				// Unreachable through the public API (With already
				// checked this), kept as a defensive guard.
				return nil, &unknownDependencyError{name: d, referencedBy: e.name}
			}
			depIdx = append(depIdx, idx)
		}
		nodes[i] = &planNode{
			runnable: e.task,
			access:   e.task.accessSet(),
			depIdx:   depIdx,
		}
	}

	for i, n := range nodes {
		for _, d := range n.depIdx {
			nodes[d].successors = append(nodes[d].successors, i)
		}
	}

	order, err := topoSort(nodes)
	if err != nil {
		return nil, err
	}

	for _, n := range nodes {
		if !n.access.disjoint() {
			// Composition-law violation (§4.3): caught here rather than
			// waiting for the first Fetch, since the access set is
			// already known at build time.
			return nil, &compositionError{task: n.name()}
		}
	}

	return &Plan{nodes: nodes, order: order}, nil
}

// topoSort returns a valid topological order over nodes, or
// ErrCyclicPlan if none exists.
func topoSort(nodes []*planNode) ([]int, error) {
	const (
		white = iota
		gray
		black
	)
	color := make([]int, len(nodes))
	order := make([]int, 0, len(nodes))

	var visit func(i int) error
	visit = func(i int) error {
		switch color[i] {
		case black:
			return nil
		case gray:
			return ErrCyclicPlan
		}
		color[i] = gray
		for _, d := range nodes[i].depIdx {
			if err := visit(d); err != nil {
				return err
			}
		}
		color[i] = black
		order = append(order, i)
		return nil
	}

	for i := range nodes {
		if err := visit(i); err != nil {
			return nil, err
		}
	}
	return order, nil
}

type unknownDependencyError struct {
	name         string
	referencedBy string
}

func (e *unknownDependencyError) Error() string {
	return ErrUnknownDependency.Error() + ": " + e.name + " (referenced by " + e.referencedBy + ")"
}

func (e *unknownDependencyError) Unwrap() error { return ErrUnknownDependency }

type compositionError struct {
	task string
}

func (e *compositionError) Error() string {
	return "dispatch: task " + e.task + " declares overlapping reads and writes"
}
