package model

import "time"

type RequirementStatus string

const (
	RequirementPending RequirementStatus = "pending"
	RequirementDone    RequirementStatus = "done"
)

func (s RequirementStatus) Valid() bool {
	return s == RequirementPending || s == RequirementDone
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Requirement is a planning task.  LinkedExpense optionally points at an
// expense category of the same owner.
type Requirement struct {
	ID            string            `json:"id"`
	UserID        string            `json:"userId"`
	Item          string            `json:"item"`
	Status        RequirementStatus `json:"status"`
	Priority      Priority          `json:"priority"`
	DueDate       *time.Time        `json:"dueDate"`
	Description   string            `json:"description"`
	Category      string            `json:"category"`
	LinkedExpense *string           `json:"linkedExpense"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}
