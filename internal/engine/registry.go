package engine

import (
	"fmt"
	"sort"
)

// Registry indexes calculators by id for the transports.
type Registry struct {
	byID map[string]Calculator
	ids  []string
}

func NewRegistry(calcs ...Calculator) (*Registry, error) {
	r := &Registry{byID: make(map[string]Calculator, len(calcs))}
	for _, c := range calcs {
		id := c.ID()
		if _, dup := r.byID[id]; dup {
			return nil, fmt.Errorf("calculator %q registered twice", id)
		}
		r.byID[id] = c
		r.ids = append(r.ids, id)
	}
	sort.Strings(r.ids)
	return r, nil
}

func (r *Registry) Get(id string) (Calculator, error) {
	c, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCalculator, id)
	}
	return c, nil
}

// List returns the calculators sorted by id.
func (r *Registry) List() []Calculator {
	out := make([]Calculator, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.byID[id])
	}
	return out
}
