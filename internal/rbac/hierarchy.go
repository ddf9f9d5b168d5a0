package rbac

import "fmt"

// Hierarchy is a total order over roles, highest rank first. Subordinate
// sets are computed once at construction.
type Hierarchy struct {
	order        []Role
	rank         map[Role]int
	subordinates map[Role][]Role
}

// DefaultHierarchy is OWNER > ADMIN > VIEWER.
func DefaultHierarchy() *Hierarchy {
	h, err := NewHierarchy(Roles()...)
	if err != nil {
		panic(err)
	}
	return h
}

// NewHierarchy builds a hierarchy from roles ordered highest rank first.
// The list must name every known role exactly once.
func NewHierarchy(order ...Role) (*Hierarchy, error) {
	known := Roles()
	if len(order) != len(known) {
		return nil, fmt.Errorf("%w: expected %d roles, got %d", ErrInvalidHierarchy, len(known), len(order))
	}
	h := &Hierarchy{
		order:        make([]Role, len(order)),
		rank:         make(map[Role]int, len(order)),
		subordinates: make(map[Role][]Role, len(order)),
	}
	copy(h.order, order)
	for i, r := range h.order {
		if !r.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownRole, r)
		}
		if _, dup := h.rank[r]; dup {
			return nil, fmt.Errorf("%w: duplicate role %s", ErrInvalidHierarchy, r)
		}
		h.rank[r] = i
	}
	for i, r := range h.order {
		subs := make([]Role, len(h.order)-i-1)
		copy(subs, h.order[i+1:])
		h.subordinates[r] = subs
	}
	return h, nil
}

// ParseHierarchy is NewHierarchy over role names, as found in config files.
func ParseHierarchy(names []string) (*Hierarchy, error) {
	roles := make([]Role, 0, len(names))
	for _, n := range names {
		r, err := ParseRole(n)
		if err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return NewHierarchy(roles...)
}

// Order returns the roles highest rank first.
func (h *Hierarchy) Order() []Role {
	out := make([]Role, len(h.order))
	copy(out, h.order)
	return out
}

// Subordinates returns the roles strictly below r, highest first.
// Unknown roles have no subordinates.
func (h *Hierarchy) Subordinates(r Role) []Role {
	subs := h.subordinates[r]
	out := make([]Role, len(subs))
	copy(out, subs)
	return out
}

// Outranks reports whether a is strictly above b.
func (h *Hierarchy) Outranks(a, b Role) bool {
	ra, okA := h.rank[a]
	rb, okB := h.rank[b]
	if !okA || !okB {
		return false
	}
	return ra < rb
}

// Contains reports whether r takes part in the hierarchy.
func (h *Hierarchy) Contains(r Role) bool {
	_, ok := h.rank[r]
	return ok
}
