package enums

import (
	"fmt"
	"strings"
)

// AgentRole is the back-office role of a staff user.
type AgentRole string

const (
	AgentRoleAdmin   AgentRole = "admin"
	AgentRoleManager AgentRole = "manager"
	AgentRoleAgent   AgentRole = "agent"
	AgentRoleViewer  AgentRole = "viewer"
)

var validAgentRoles = []AgentRole{
	AgentRoleAdmin,
	AgentRoleManager,
	AgentRoleAgent,
	AgentRoleViewer,
}

// String implements fmt.Stringer.
func (r AgentRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known AgentRole.
func (r AgentRole) IsValid() bool {
	for _, candidate := range validAgentRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseAgentRole converts raw input into an AgentRole.
func ParseAgentRole(value string) (AgentRole, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validAgentRoles {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid agent role %q", value)
}

// ParseAgentRoles parses a list of roles, failing on the first unknown value.
func ParseAgentRoles(values []string) ([]AgentRole, error) {
	roles := make([]AgentRole, 0, len(values))
	for _, value := range values {
		role, err := ParseAgentRole(value)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, nil
}
