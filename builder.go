package dispatch

import (
	"fmt"
)

// entry is one registered parallel task together with its declared
// dependency names, as recorded by With before Build resolves names to
// indices.
type entry struct {
	name  string
	deps  []string
	task  runnable
}

// Builder collects tasks and their dependency edges, then compiles them
// into a Dispatcher. Builder methods are chainable and never panic; usage
// errors (duplicate names, dependencies on tasks that don't exist yet) are
// recorded internally and surfaced from Build, matching spec §7's class 1
// error handling.
type Builder struct {
	entries     []entry
	names       map[string]int
	threadLocal []runnable
	cfg         Config
	err         error
}

// NewBuilder returns an empty Builder using cfg (zero-value Config is
// valid and fully defaulted).
func NewBuilder(cfg Config) *Builder {
	return &Builder{names: make(map[string]int), cfg: cfg.withDefaults()}
}

// With registers a parallelizable task under name, depending on every
// task named in deps. Every name in deps must already have been
// registered by an earlier With call on the same Builder — forward
// references are rejected, which is also what makes the resulting graph
// acyclic by construction (see ErrCyclicPlan's doc comment).
func With[B any, PB BundlePtr[B]](b *Builder, task Task[B], name string, deps ...string) *Builder {
	if b.err != nil {
		return b
	}
	if _, exists := b.names[name]; exists {
		b.err = fmt.Errorf("%w: %q", ErrDuplicateName, name)
		return b
	}
	for _, d := range deps {
		if _, ok := b.names[d]; !ok {
			b.err = fmt.Errorf("%w: %q (referenced by %q)", ErrUnknownDependency, d, name)
			return b
		}
	}
	node := &taskNode[B, PB]{nm: name, task: task}
	b.names[name] = len(b.entries)
	b.entries = append(b.entries, entry{name: name, deps: append([]string(nil), deps...), task: node})
	return b
}

// WithThreadLocal registers a task that must run on the calling thread,
// after every parallel task has completed, in insertion order relative to
// other thread-local tasks. Thread-local tasks carry no dependency list:
// they are always ordered after the entire parallel stage.
func WithThreadLocal[B any, PB BundlePtr[B]](b *Builder, task Task[B], name string) *Builder {
	if b.err != nil {
		return b
	}
	node := &taskNode[B, PB]{nm: name, task: task}
	b.threadLocal = append(b.threadLocal, node)
	return b
}

// Build validates the accumulated registrations and compiles a Plan. It
// returns the first usage error recorded by With, if any, a defensive
// ErrCyclicPlan if the resulting graph is somehow not acyclic despite the
// forward-reference restriction above, or a composition error if a
// parallel task's bundle declares overlapping Reads and Writes.
func (b *Builder) Build() (*Dispatcher, error) {
	if b.err != nil {
		return nil, b.err
	}

	plan, err := newPlan(b.entries)
	if err != nil {
		return nil, err
	}

	return &Dispatcher{
		plan:        plan,
		threadLocal: b.threadLocal,
		cfg:         b.cfg,
	}, nil
}
