package model

import "time"

// ExpenseStatus is the payment state of an expense category.  A category
// may also have no status at all (nil on Expense).
type ExpenseStatus string

const (
	ExpensePaid ExpenseStatus = "paid"
	ExpenseDue  ExpenseStatus = "due"
)

func (s ExpenseStatus) Valid() bool {
	return s == ExpensePaid || s == ExpenseDue
}

// Expense is a budget category (e.g. "Catering") holding the individual
// line items spent against it and any uploaded payment documents.
//
// Total is derived: it always equals the sum of Items[].Cost and is
// never accepted from clients.  Version increases on every mutation of
// the category or its children.
type Expense struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	Category  string         `json:"category"`
	Status    *ExpenseStatus `json:"status"`
	Notes     string         `json:"notes"`
	Budget    float64        `json:"budget"`
	Total     float64        `json:"total"`
	Version   int64          `json:"version"`
	Items     []Item         `json:"items"`
	Documents []Document     `json:"documents"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Item is one line item of an expense category.
type Item struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Cost        float64   `json:"cost"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
}

// Document is metadata for an uploaded file attached to an expense.  Path
// is relative to the server (/uploads/documents/<Filename>).
type Document struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	MimeType     string    `json:"mimeType"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

// ChartPoint is one bar of the budget-vs-spent chart.
type ChartPoint struct {
	ID       string  `json:"id"`
	Category string  `json:"category"`
	Budget   float64 `json:"budget"`
	Total    float64 `json:"total"`
}
