package enums

import "fmt"

// AgentStatus tracks whether a staff account may work orders.
type AgentStatus string

const (
	AgentStatusActive  AgentStatus = "active"
	AgentStatusBlocked AgentStatus = "blocked"
)

var validAgentStatuses = []AgentStatus{
	AgentStatusActive,
	AgentStatusBlocked,
}

// String implements fmt.Stringer.
func (s AgentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known AgentStatus.
func (s AgentStatus) IsValid() bool {
	for _, candidate := range validAgentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseAgentStatus converts raw input into an AgentStatus.
func ParseAgentStatus(value string) (AgentStatus, error) {
	for _, candidate := range validAgentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid agent status %q", value)
}
