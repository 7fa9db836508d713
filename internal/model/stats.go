package model

// Aggregates returned by the /stats endpoints.  They are computed on read
// and every field is zero when the caller owns no records.

type GuestStats struct {
	Total          int `json:"total"`
	Confirmed      int `json:"confirmed"`
	Pending        int `json:"pending"`
	Declined       int `json:"declined"`
	InvitationSent int `json:"invitationSent"`
	TotalMembers   int `json:"totalMembers"` // sum of extraMembersCount
	TotalPeople    int `json:"totalPeople"`  // Total + TotalMembers
}

type ExpenseStats struct {
	TotalCategories int     `json:"totalCategories"`
	TotalBudget     float64 `json:"totalBudget"`
	TotalSpent      float64 `json:"totalSpent"`
	TotalItems      int     `json:"totalItems"`
	PaidCount       int     `json:"paidCount"`
	DueCount        int     `json:"dueCount"`
	UnsetCount      int     `json:"unsetCount"`
	PaidBudget      float64 `json:"paidBudget"`
	DueBudget       float64 `json:"dueBudget"`
	UnsetBudget     float64 `json:"unsetBudget"`
	PaidSpent       float64 `json:"paidSpent"`
	DueSpent        float64 `json:"dueSpent"`
	UnsetSpent      float64 `json:"unsetSpent"`
}

type RequirementStats struct {
	Total          int `json:"total"`
	Pending        int `json:"pending"`
	Done           int `json:"done"`
	HighPriority   int `json:"highPriority"`
	MediumPriority int `json:"mediumPriority"`
	LowPriority    int `json:"lowPriority"`
	Overdue        int `json:"overdue"` // pending with a due date in the past
}
