package enums

import "fmt"

// LeadStatus is the sales stage of a lead.
type LeadStatus string

const (
	LeadStatusNew        LeadStatus = "new"
	LeadStatusContacted  LeadStatus = "contacted"
	LeadStatusInProgress LeadStatus = "inprogress"
	LeadStatusLost       LeadStatus = "lost"
	LeadStatusWon        LeadStatus = "won"
)

var validLeadStatuses = []LeadStatus{
	LeadStatusNew,
	LeadStatusContacted,
	LeadStatusInProgress,
	LeadStatusLost,
	LeadStatusWon,
}

func (s LeadStatus) String() string {
	return string(s)
}

func (s LeadStatus) IsValid() bool {
	for _, candidate := range validLeadStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func ParseLeadStatus(value string) (LeadStatus, error) {
	for _, candidate := range validLeadStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid lead status %q", value)
}

// LeadPriority ranks how urgently a lead should be worked.
type LeadPriority string

const (
	LeadPriorityLow    LeadPriority = "low"
	LeadPriorityMedium LeadPriority = "medium"
	LeadPriorityHigh   LeadPriority = "high"
)

var validLeadPriorities = []LeadPriority{
	LeadPriorityLow,
	LeadPriorityMedium,
	LeadPriorityHigh,
}

func (p LeadPriority) String() string {
	return string(p)
}

func (p LeadPriority) IsValid() bool {
	for _, candidate := range validLeadPriorities {
		if candidate == p {
			return true
		}
	}
	return false
}

func ParseLeadPriority(value string) (LeadPriority, error) {
	for _, candidate := range validLeadPriorities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid lead priority %q", value)
}
