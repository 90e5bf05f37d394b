package auth

import (
	"fmt"
	"strings"
)

// Role is the role claim of an analyser token.
type Role string

const (
	// RoleViewer reads run reports.
	RoleViewer Role = "viewer"
	// RoleScheduler submits trigger windows and advances the simulated clock.
	RoleScheduler Role = "scheduler"
	RoleAdmin     Role = "admin"
)

// Permission is an action the HTTP policy guards.
type Permission string

const (
	PermReadReports    Permission = "reports:read"
	PermTriggerWindows Permission = "windows:trigger"
	PermAdvanceClock   Permission = "simulator:tick"
	PermManage         Permission = "manage"
)

var grants = map[Role][]Permission{
	RoleViewer:    {PermReadReports},
	RoleScheduler: {PermReadReports, PermTriggerWindows, PermAdvanceClock},
	RoleAdmin:     {PermReadReports, PermTriggerWindows, PermAdvanceClock, PermManage},
}

// Roles lists the known roles from least to most privileged.
func Roles() []Role {
	return []Role{RoleViewer, RoleScheduler, RoleAdmin}
}

// ParseRole validates a role claim; matching ignores case and surrounding space.
func ParseRole(value string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := grants[role]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, value)
	}
	return role, nil
}

// Can reports whether the role is granted permission.
func (r Role) Can(permission Permission) bool {
	for _, granted := range grants[r] {
		if granted == permission {
			return true
		}
	}
	return false
}
