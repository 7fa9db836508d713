package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/wedding-planner/internal/model"
)

// RequirementRepo provides owner-scoped access to planning tasks.
type RequirementRepo struct{ db *sql.DB }

func NewRequirementRepo(db *sql.DB) *RequirementRepo { return &RequirementRepo{db: db} }

// RequirementInput is the body of requirement create and update requests.
// Empty dueDate or linkedExpense clears the field.
type RequirementInput struct {
	Item          *string                  `json:"item"`
	Status        *model.RequirementStatus `json:"status"`
	Priority      *model.Priority          `json:"priority"`
	DueDate       *string                  `json:"dueDate"`
	Description   *string                  `json:"description"`
	Category      *string                  `json:"category"`
	LinkedExpense *string                  `json:"linkedExpense"`
}

func (in RequirementInput) apply(q *model.Requirement) error {
	if in.Item != nil {
		q.Item = strings.TrimSpace(*in.Item)
	}
	if in.Status != nil {
		q.Status = *in.Status
	}
	if in.Priority != nil {
		q.Priority = *in.Priority
	}
	if in.DueDate != nil {
		d, err := parseDate("dueDate", *in.DueDate)
		if err != nil {
			return err
		}
		q.DueDate = d
	}
	if in.Description != nil {
		q.Description = *in.Description
	}
	if in.Category != nil {
		q.Category = strings.TrimSpace(*in.Category)
		if q.Category == "" {
			q.Category = "general"
		}
	}
	if in.LinkedExpense != nil {
		if id := strings.TrimSpace(*in.LinkedExpense); id == "" {
			q.LinkedExpense = nil
		} else {
			q.LinkedExpense = &id
		}
	}

	switch {
	case q.Item == "":
		return invalid("item", "is required")
	case !q.Status.Valid():
		return invalid("status", "must be one of pending, done")
	case !q.Priority.Valid():
		return invalid("priority", "must be one of low, medium, high")
	}
	return checkLengths(
		lengthRule{"item", q.Item, maxShortLen},
		lengthRule{"category", q.Category, maxShortLen},
		lengthRule{"description", q.Description, maxTextLen},
	)
}

// checkLinkedExpense rejects links to expenses the caller does not own.
func (r *RequirementRepo) checkLinkedExpense(ctx context.Context, userID string, id *string) error {
	if id == nil {
		return nil
	}
	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM expenses WHERE id=? AND user_id=?", *id, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return invalid("linkedExpense", "must reference one of your expenses")
	}
	if err != nil {
		return fmt.Errorf("check linked expense: %w", err)
	}
	return nil
}

const requirementColumns = `id, user_id, item, status, priority, due_date, description, category,
	linked_expense_id, created_at, updated_at`

func scanRequirement(s rowScanner) (model.Requirement, error) {
	var (
		q      model.Requirement
		due    sql.NullTime
		linked sql.NullString
	)
	err := s.Scan(&q.ID, &q.UserID, &q.Item, &q.Status, &q.Priority, &due, &q.Description, &q.Category,
		&linked, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return model.Requirement{}, err
	}
	q.DueDate = timePtr(due)
	q.LinkedExpense = stringPtr(linked)
	q.CreatedAt = q.CreatedAt.UTC()
	q.UpdatedAt = q.UpdatedAt.UTC()
	return q, nil
}

func (r *RequirementRepo) query(ctx context.Context, where, order string, args ...any) ([]model.Requirement, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+requirementColumns+" FROM requirements WHERE "+where+" ORDER BY "+order, args...)
	if err != nil {
		return nil, fmt.Errorf("list requirements: %w", err)
	}
	defer rows.Close()

	out := []model.Requirement{}
	for rows.Next() {
		q, err := scanRequirement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan requirement: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// List returns the caller's requirements, newest first.
func (r *RequirementRepo) List(ctx context.Context, userID string) ([]model.Requirement, error) {
	return r.query(ctx, "user_id=?", "created_at DESC, id DESC", userID)
}

// ListByStatus returns the caller's requirements with the given status,
// high priority first, then by due date with undated ones last.
func (r *RequirementRepo) ListByStatus(ctx context.Context, userID string, status model.RequirementStatus) ([]model.Requirement, error) {
	if !status.Valid() {
		return nil, invalid("status", "must be one of pending, done")
	}
	return r.query(ctx, "user_id=? AND status=?",
		`CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END,
		 CASE WHEN due_date IS NULL THEN 1 ELSE 0 END, due_date ASC, created_at DESC`,
		userID, status)
}

// Get returns one requirement of the caller or ErrNotFound.
func (r *RequirementRepo) Get(ctx context.Context, userID, id string) (model.Requirement, error) {
	q, err := scanRequirement(r.db.QueryRowContext(ctx,
		"SELECT "+requirementColumns+" FROM requirements WHERE id=? AND user_id=? LIMIT 1", id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Requirement{}, ErrNotFound
	}
	if err != nil {
		return model.Requirement{}, fmt.Errorf("get requirement: %w", err)
	}
	return q, nil
}

// Create validates in, applies defaults and stores a requirement owned by
// userID.
func (r *RequirementRepo) Create(ctx context.Context, userID string, in RequirementInput) (model.Requirement, error) {
	q := model.Requirement{
		ID:       newID(),
		UserID:   userID,
		Status:   model.RequirementPending,
		Priority: model.PriorityMedium,
		Category: "general",
	}
	if err := in.apply(&q); err != nil {
		return model.Requirement{}, err
	}
	if err := r.checkLinkedExpense(ctx, userID, q.LinkedExpense); err != nil {
		return model.Requirement{}, err
	}
	now := nowFunc()
	q.CreatedAt, q.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO requirements ("+requirementColumns+") VALUES (?,?,?,?,?,?,?,?,?,?,?)",
		q.ID, q.UserID, q.Item, q.Status, q.Priority, nullTime(q.DueDate), q.Description, q.Category,
		nullString(q.LinkedExpense), q.CreatedAt, q.UpdatedAt)
	if err != nil {
		return model.Requirement{}, fmt.Errorf("insert requirement: %w", err)
	}
	return q, nil
}

// Update resolves the requirement under the owner filter, merges the
// present fields of in and stores the result.
func (r *RequirementRepo) Update(ctx context.Context, userID, id string, in RequirementInput) (model.Requirement, error) {
	q, err := r.Get(ctx, userID, id)
	if err != nil {
		return model.Requirement{}, err
	}
	if err := in.apply(&q); err != nil {
		return model.Requirement{}, err
	}
	if in.LinkedExpense != nil {
		if err := r.checkLinkedExpense(ctx, userID, q.LinkedExpense); err != nil {
			return model.Requirement{}, err
		}
	}
	q.UpdatedAt = nowFunc()

	res, err := r.db.ExecContext(ctx,
		`UPDATE requirements SET item=?, status=?, priority=?, due_date=?, description=?, category=?,
			linked_expense_id=?, updated_at=?
		 WHERE id=? AND user_id=?`,
		q.Item, q.Status, q.Priority, nullTime(q.DueDate), q.Description, q.Category,
		nullString(q.LinkedExpense), q.UpdatedAt, id, userID)
	if err != nil {
		return model.Requirement{}, fmt.Errorf("update requirement: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Requirement{}, ErrNotFound
	}
	return q, nil
}

// Delete removes one requirement of the caller.
func (r *RequirementRepo) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM requirements WHERE id=? AND user_id=?", id, userID)
	if err != nil {
		return fmt.Errorf("delete requirement: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ToggleStatus flips pending and done in a single statement and returns
// the updated requirement.
func (r *RequirementRepo) ToggleStatus(ctx context.Context, userID, id string) (model.Requirement, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE requirements SET status = CASE WHEN status='pending' THEN 'done' ELSE 'pending' END, updated_at=?
		 WHERE id=? AND user_id=?`,
		nowFunc(), id, userID)
	if err != nil {
		return model.Requirement{}, fmt.Errorf("toggle status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Requirement{}, ErrNotFound
	}
	return r.Get(ctx, userID, id)
}

// BulkSetStatus sets the status of every listed requirement owned by
// userID whose status differs, and returns the number changed.
func (r *RequirementRepo) BulkSetStatus(ctx context.Context, userID string, ids []string, status model.RequirementStatus) (int64, error) {
	if !status.Valid() {
		return 0, invalid("status", "must be one of pending, done")
	}
	placeholders, args, err := inClause("requirementIds", ids)
	if err != nil {
		return 0, err
	}
	q := `UPDATE requirements SET status=?, updated_at=?
		  WHERE user_id=? AND status <> ? AND id IN (` + placeholders + `)`
	res, err := r.db.ExecContext(ctx, q, append([]any{status, nowFunc(), userID, status}, args...)...)
	if err != nil {
		return 0, fmt.Errorf("bulk update status: %w", err)
	}
	return res.RowsAffected()
}

// Stats aggregates the caller's requirements in one query.  Overdue counts
// pending requirements whose due date has passed.
func (r *RequirementRepo) Stats(ctx context.Context, userID string) (model.RequirementStats, error) {
	var s model.RequirementStats
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status='pending' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status='done' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN priority='high' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN priority='medium' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN priority='low' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status='pending' AND due_date IS NOT NULL AND due_date < ? THEN 1 ELSE 0 END), 0)
		FROM requirements WHERE user_id=?`, nowFunc(), userID).
		Scan(&s.Total, &s.Pending, &s.Done, &s.HighPriority, &s.MediumPriority, &s.LowPriority, &s.Overdue)
	if err != nil {
		return model.RequirementStats{}, fmt.Errorf("requirement stats: %w", err)
	}
	return s, nil
}
