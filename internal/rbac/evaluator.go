package rbac

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidResource indicates an empty resource name in an override.
var ErrInvalidResource = errors.New("rbac: invalid resource")

// CustomPermissions overrides role defaults per resource. An entry fully
// replaces the default action list for that resource; it never extends it.
type CustomPermissions map[Resource][]Action

// ParseCustomPermissions validates raw overrides as stored on a membership.
// A nil map yields nil.
func ParseCustomPermissions(raw map[string][]string) (CustomPermissions, error) {
	if raw == nil {
		return nil, nil
	}
	out := make(CustomPermissions, len(raw))
	for name, actions := range raw {
		res := Resource(strings.ToLower(strings.TrimSpace(name)))
		if res == "" {
			return nil, ErrInvalidResource
		}
		parsed := make([]Action, 0, len(actions))
		for _, a := range actions {
			action, err := ParseAction(a)
			if err != nil {
				return nil, fmt.Errorf("%w: %q on %s", err, a, res)
			}
			if !containsAction(parsed, action) {
				parsed = append(parsed, action)
			}
		}
		out[res] = parsed
	}
	return out, nil
}

// Raw converts overrides back into their storage representation.
func (c CustomPermissions) Raw() map[string][]string {
	if c == nil {
		return nil
	}
	out := make(map[string][]string, len(c))
	for res, actions := range c {
		list := make([]string, len(actions))
		for i, a := range actions {
			list[i] = string(a)
		}
		out[string(res)] = list
	}
	return out
}

// Grant is the input of every permission decision: a role plus optional
// per-resource overrides. Membership status is not part of a grant; inactive
// members never reach the evaluator.
type Grant struct {
	Role              Role
	CustomPermissions CustomPermissions
}

// HasPermission decides whether the grant allows action on resource.
// Precedence: owner bypass, then custom override, then role default.
func HasPermission(g Grant, resource Resource, action Action) bool {
	if g.Role == RoleOwner {
		return true
	}
	if override, ok := g.CustomPermissions[resource]; ok {
		return containsAction(override, action)
	}
	return containsAction(defaultMatrix[g.Role][resource], action)
}

// MissingPermissions returns every requirement the grant does not satisfy,
// preserving input order.
func MissingPermissions(g Grant, required []Requirement) []Requirement {
	var missing []Requirement
	for _, req := range required {
		if !HasPermission(g, req.Resource, req.Action) {
			missing = append(missing, req)
		}
	}
	return missing
}

// IsOwner reports whether the grant belongs to a tenant owner.
func IsOwner(g Grant) bool { return g.Role == RoleOwner }

// IsAdmin is true for admins and anything above.
func IsAdmin(g Grant) bool { return IsAtLeast(g.Role, RoleAdmin) }

// IsInstructor is true for instructors and anything above.
func IsInstructor(g Grant) bool { return IsAtLeast(g.Role, RoleInstructor) }

// IsStaff is true for staff and anything above.
func IsStaff(g Grant) bool { return IsAtLeast(g.Role, RoleStaff) }

// IsViewer is true for every valid role.
func IsViewer(g Grant) bool { return IsAtLeast(g.Role, RoleViewer) }

// Requirement is a single resource/action pair a route demands.
type Requirement struct {
	Resource Resource `json:"resource"`
	Action   Action   `json:"action"`
}

// Need builds a Requirement.
func Need(resource Resource, action Action) Requirement {
	return Requirement{Resource: resource, Action: action}
}

// String renders the requirement as resource:action.
func (r Requirement) String() string {
	return string(r.Resource) + ":" + string(r.Action)
}
