package model

import (
	"sort"

	"github.com/rotisserie/eris"
)

// Role identifies the semantic meaning of a worksheet column.
type Role string

const (
	RoleDesignation Role = "designation"
	RoleUnit        Role = "unit"
	RoleQuantity    Role = "quantity"
	RoleUnitPrice   Role = "unit_price"
	RoleTotalPrice  Role = "total_price"
)

// AllRoles returns every column role in canonical order.
func AllRoles() []Role {
	return []Role{RoleDesignation, RoleUnit, RoleQuantity, RoleUnitPrice, RoleTotalPrice}
}

// IsEssential reports whether the role counts double in mapping confidence.
func (r Role) IsEssential() bool {
	return r == RoleDesignation || r == RoleUnitPrice
}

// Valid reports whether r is one of the five known roles.
func (r Role) Valid() bool {
	for _, known := range AllRoles() {
		if r == known {
			return true
		}
	}
	return false
}

// Confidence is the coarse quality rating attached to a column mapping.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	ConfidenceManual Confidence = "manual"
)

// rank orders confidence levels for comparisons; manual ranks with high.
func (c Confidence) rank() int {
	switch c {
	case ConfidenceHigh, ConfidenceManual:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether c is as good as or better than other.
func (c Confidence) AtLeast(other Confidence) bool {
	return c.rank() >= other.rank()
}

// RoleMap maps column roles to zero-based column indices. A role absent from
// the map is unmapped.
type RoleMap map[Role]int

// Get returns the column index for role and whether it is mapped.
func (m RoleMap) Get(role Role) (int, bool) {
	if m == nil {
		return 0, false
	}
	idx, ok := m[role]
	return idx, ok
}

// Has reports whether role is mapped.
func (m RoleMap) Has(role Role) bool {
	_, ok := m.Get(role)
	return ok
}

// ColumnTaken reports whether any role already uses column idx.
func (m RoleMap) ColumnTaken(idx int) bool {
	for _, c := range m {
		if c == idx {
			return true
		}
	}
	return false
}

// Clone returns a copy of the map.
func (m RoleMap) Clone() RoleMap {
	out := make(RoleMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Mapped returns the mapped roles in canonical order.
func (m RoleMap) Mapped() []Role {
	var out []Role
	for _, r := range AllRoles() {
		if m.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

// Validate checks that designation is mapped, all indices are within
// [0, width) and no two roles share a column.
func (m RoleMap) Validate(width int) error {
	if !m.Has(RoleDesignation) {
		return eris.New("model: role map has no designation column")
	}
	seen := make(map[int]Role, len(m))
	roles := make([]string, 0, len(m))
	for r := range m {
		roles = append(roles, string(r))
	}
	sort.Strings(roles)
	for _, name := range roles {
		r := Role(name)
		if !r.Valid() {
			return eris.Errorf("model: unknown role %q", name)
		}
		idx := m[r]
		if idx < 0 || (width > 0 && idx >= width) {
			return eris.Errorf("model: role %s column %d out of bounds (width %d)", r, idx, width)
		}
		if other, dup := seen[idx]; dup {
			return eris.Errorf("model: roles %s and %s share column %d", other, r, idx)
		}
		seen[idx] = r
	}
	return nil
}
