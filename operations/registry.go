package operations

import (
	"errors"
	"fmt"
	"iter"
	"slices"
)

// Registry is a store of operations kept in registration order.
type Registry struct {
	ops   []*Operation
	index map[string]int
}

// NewRegistry creates a Registry holding ops, in the given order.
func NewRegistry(ops ...*Operation) (*Registry, error) {
	r := &Registry{index: make(map[string]int, len(ops))}
	for _, op := range ops {
		if err := r.Register(op); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Register appends op to the registry. It returns an error wrapping ErrDuplicateName when an
// operation with the same ID is already present.
func (r *Registry) Register(op *Operation) error {
	if op == nil {
		return errors.New("cannot register a nil operation")
	}
	if op.ID() == "" {
		return errors.New("cannot register an operation without an ID")
	}
	if _, ok := r.index[op.ID()]; ok {
		return fmt.Errorf("register %s: %w", op.ID(), ErrDuplicateName)
	}
	if r.index == nil {
		r.index = map[string]int{}
	}
	r.index[op.ID()] = len(r.ops)
	r.ops = append(r.ops, op)

	return nil
}

// All yields every registered operation in registration order. The sequence may be iterated
// any number of times.
func (r *Registry) All() iter.Seq[*Operation] {
	return func(yield func(*Operation) bool) {
		for _, op := range r.ops {
			if !yield(op) {
				return
			}
		}
	}
}

// Len returns the number of registered operations.
func (r *Registry) Len() int {
	return len(r.ops)
}

// Lookup returns the operation registered under id.
func (r *Registry) Lookup(id string) (*Operation, bool) {
	i, ok := r.index[id]
	if !ok {
		return nil, false
	}

	return r.ops[i], true
}

// Select returns the registered operations named by include (all of them when include is
// empty) minus those named by exclude, in registration order.
func (r *Registry) Select(include, exclude []string) ([]*Operation, error) {
	for _, id := range slices.Concat(include, exclude) {
		if _, ok := r.index[id]; !ok {
			return nil, fmt.Errorf("select %q: %w", id, ErrUnknownOperation)
		}
	}

	selected := make([]*Operation, 0, len(r.ops))
	for op := range r.All() {
		if len(include) > 0 && !slices.Contains(include, op.ID()) {
			continue
		}
		if slices.Contains(exclude, op.ID()) {
			continue
		}
		selected = append(selected, op)
	}

	return selected, nil
}
