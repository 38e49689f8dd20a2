package permission

import (
	"errors"
	"slices"
	"sort"
)

// Wildcard grants every permission, registered or not.
const Wildcard = "*"

// DefaultRoles is the role table used when none is configured.
func DefaultRoles() map[string][]string {
	return map[string][]string{
		"admin":     {Wildcard},
		"moderator": {"read", "write", "moderate"},
		"user":      {"read"},
		"guest":     {},
	}
}

// Resolver answers whether a role holds a permission. It is built once and
// read-only afterwards, so it needs no locking.
type Resolver struct {
	registry *Registry
	roles    map[string]Mask64
}

// NewResolver registers every permission named in roles and builds one mask
// per role.
func NewResolver(roles map[string][]string) (*Resolver, error) {
	if len(roles) == 0 {
		return nil, errors.New("at least one role is required")
	}

	registry := NewRegistry()

	// Stable bit assignment regardless of map order.
	names := make([]string, 0, len(roles))
	for role := range roles {
		names = append(names, role)
	}
	sort.Strings(names)

	masks := make(map[string]Mask64, len(roles))
	for _, role := range names {
		if role == "" {
			return nil, errors.New("role name empty")
		}
		var mask Mask64
		for _, perm := range roles[role] {
			if perm == Wildcard {
				mask.Set(registry.RootBit())
				continue
			}
			bit, err := registry.Register(perm)
			if err != nil {
				return nil, errors.New("role " + role + ": " + err.Error())
			}
			mask.Set(bit)
		}
		masks[role] = mask
	}
	registry.Freeze()

	return &Resolver{registry: registry, roles: masks}, nil
}

// Allows reports whether role holds permission. Unknown roles and unknown
// permissions are denied unless the role holds the wildcard.
func (r *Resolver) Allows(role, permission string) bool {
	mask, ok := r.roles[role]
	if !ok {
		return false
	}
	if mask.IsRoot() {
		return true
	}
	bit, ok := r.registry.Bit(permission)
	if !ok {
		return false
	}
	return mask.Has(bit)
}

// HasRole reports whether role is configured.
func (r *Resolver) HasRole(role string) bool {
	_, ok := r.roles[role]
	return ok
}

// Permissions lists the permission names of role, sorted. A wildcard role
// yields ["*"]. Unknown roles yield nil.
func (r *Resolver) Permissions(role string) []string {
	mask, ok := r.roles[role]
	if !ok {
		return nil
	}
	if mask.IsRoot() {
		return []string{Wildcard}
	}
	out := []string{}
	for bit := 0; bit < r.registry.RootBit(); bit++ {
		if mask&(1<<bit) == 0 {
			continue
		}
		if name, ok := r.registry.Name(bit); ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Roles lists configured role names, sorted.
func (r *Resolver) Roles() []string {
	out := make([]string, 0, len(r.roles))
	for role := range r.roles {
		out = append(out, role)
	}
	slices.Sort(out)
	return out
}
