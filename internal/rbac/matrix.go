package rbac

import (
	"errors"
	"strings"
)

// ErrUnknownAction indicates an action string outside the fixed set.
var ErrUnknownAction = errors.New("rbac: unknown action")

// Action is an operation performed against a resource.
type Action string

// Supported actions.
const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
	ActionAdmin  Action = "admin"
)

// Actions lists every action in display order.
func Actions() []Action {
	return []Action{ActionRead, ActionWrite, ActionDelete, ActionAdmin}
}

// ParseAction converts raw input into an Action.
func ParseAction(raw string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(raw))); a {
	case ActionRead, ActionWrite, ActionDelete, ActionAdmin:
		return a, nil
	default:
		return "", ErrUnknownAction
	}
}

// Resource names a category of domain objects.
type Resource string

// Known resources.
const (
	ResourceStudents    Resource = "students"
	ResourceClasses     Resource = "classes"
	ResourceInstructors Resource = "instructors"
	ResourceEnrollments Resource = "enrollments"
	ResourceAttendance  Resource = "attendance"
	ResourceVideos      Resource = "videos"
	ResourcePayments    Resource = "payments"
	ResourceSettings    Resource = "settings"
	ResourceUsers       Resource = "users"
	ResourceReports     Resource = "reports"
	ResourceAnalytics   Resource = "analytics"
)

// Resources lists the resources covered by the default matrix.
func Resources() []Resource {
	return []Resource{
		ResourceStudents,
		ResourceClasses,
		ResourceInstructors,
		ResourceEnrollments,
		ResourceAttendance,
		ResourceVideos,
		ResourcePayments,
		ResourceSettings,
		ResourceUsers,
		ResourceReports,
		ResourceAnalytics,
	}
}

var (
	fullAccess = []Action{ActionRead, ActionWrite, ActionDelete, ActionAdmin}
	readWrite  = []Action{ActionRead, ActionWrite}
	readOnly   = []Action{ActionRead}
)

// defaultMatrix holds role defaults. Owners bypass the matrix entirely and
// have no entry. A missing resource means no permission.
var defaultMatrix = map[Role]map[Resource][]Action{
	RoleAdmin: {
		ResourceStudents:    fullAccess,
		ResourceClasses:     fullAccess,
		ResourceInstructors: fullAccess,
		ResourceEnrollments: fullAccess,
		ResourceAttendance:  fullAccess,
		ResourceVideos:      fullAccess,
		ResourcePayments:    fullAccess,
		ResourceSettings:    readWrite,
		ResourceUsers:       fullAccess,
		ResourceReports:     readWrite,
		ResourceAnalytics:   readOnly,
	},
	RoleInstructor: {
		ResourceStudents:    readWrite,
		ResourceClasses:     readWrite,
		ResourceInstructors: readOnly,
		ResourceEnrollments: readWrite,
		ResourceAttendance:  readWrite,
		ResourceVideos:      readWrite,
		ResourceReports:     readOnly,
	},
	RoleStaff: {
		ResourceStudents:    readWrite,
		ResourceClasses:     readOnly,
		ResourceInstructors: readOnly,
		ResourceEnrollments: readWrite,
		ResourceAttendance:  readWrite,
		ResourceVideos:      readOnly,
		ResourcePayments:    readWrite,
		ResourceReports:     readOnly,
	},
	RoleViewer: {
		ResourceStudents:    readOnly,
		ResourceClasses:     readOnly,
		ResourceInstructors: readOnly,
		ResourceEnrollments: readOnly,
		ResourceAttendance:  readOnly,
		ResourceVideos:      readOnly,
	},
}

// DefaultActions returns a copy of the role's default actions on a resource.
// The result is empty when the pair is not listed.
func DefaultActions(role Role, resource Resource) []Action {
	actions := defaultMatrix[role][resource]
	out := make([]Action, len(actions))
	copy(out, actions)
	return out
}

func containsAction(actions []Action, target Action) bool {
	for _, a := range actions {
		if a == target {
			return true
		}
	}
	return false
}
