package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/wedding-planner/internal/model"
)

// ExpenseRepo provides owner-scoped access to expense categories and their
// line items and documents.
//
// Every mutation of a category or its children runs in one transaction
// that first bumps expenses.version under the owner filter.  That UPDATE
// takes the row lock (MySQL) or the write lock (SQLite), so concurrent
// item edits on the same expense are serialized, and total is always
// re-derived from the item rows inside the same transaction.
type ExpenseRepo struct{ db *sql.DB }

func NewExpenseRepo(db *sql.DB) *ExpenseRepo { return &ExpenseRepo{db: db} }

// NewExpenseID returns an id for an expense that is about to be created.
// Uploaded documents are named after it before the row exists.
func NewExpenseID() string { return newID() }

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// errNoChange rolls back a transaction whose mutation turned out to be a
// no-op.
var errNoChange = errors.New("no change")

// ExpenseInput is the body of expense create and update requests.  Status
// "" clears the status.  Total is derived from the items and any value
// sent by the client is ignored.
type ExpenseInput struct {
	Category *string  `json:"category"`
	Status   *string  `json:"status"`
	Notes    *string  `json:"notes"`
	Budget   *float64 `json:"budget"`
	Total    *float64 `json:"total"`
}

// Check validates the fields present in the input.  With create set, the
// required fields must be present too.
func (in ExpenseInput) Check(create bool) error {
	if in.Category != nil && strings.TrimSpace(*in.Category) == "" || create && in.Category == nil {
		return invalid("category", "is required")
	}
	if in.Status != nil && *in.Status != "" && !model.ExpenseStatus(*in.Status).Valid() {
		return invalid("status", "must be one of paid, due")
	}
	if in.Budget != nil && *in.Budget < 0 {
		return invalid("budget", "must be zero or greater")
	}
	var rules []lengthRule
	if in.Category != nil {
		rules = append(rules, lengthRule{"category", strings.TrimSpace(*in.Category), maxShortLen})
	}
	if in.Notes != nil {
		rules = append(rules, lengthRule{"notes", *in.Notes, maxTextLen})
	}
	return checkLengths(rules...)
}

func (in ExpenseInput) apply(e *model.Expense) {
	if in.Category != nil {
		e.Category = strings.TrimSpace(*in.Category)
	}
	if in.Status != nil {
		if *in.Status == "" {
			e.Status = nil
		} else {
			s := model.ExpenseStatus(*in.Status)
			e.Status = &s
		}
	}
	if in.Notes != nil {
		e.Notes = *in.Notes
	}
	if in.Budget != nil {
		e.Budget = *in.Budget
	}
}

// ItemInput is the body of item add and update requests.  Date defaults to
// now when adding.
type ItemInput struct {
	Name        *string  `json:"name"`
	Cost        *float64 `json:"cost"`
	Description *string  `json:"description"`
	Date        *string  `json:"date"`
}

func (in ItemInput) apply(it *model.Item, create bool) error {
	if create && in.Name == nil {
		return invalid("name", "is required")
	}
	if create && in.Cost == nil {
		return invalid("cost", "is required")
	}
	if in.Name != nil {
		it.Name = strings.TrimSpace(*in.Name)
		if it.Name == "" {
			return invalid("name", "is required")
		}
	}
	if in.Cost != nil {
		if *in.Cost < 0 {
			return invalid("cost", "must be zero or greater")
		}
		it.Cost = *in.Cost
	}
	if in.Description != nil {
		it.Description = *in.Description
	}
	if in.Date != nil {
		d, err := parseDate("date", *in.Date)
		if err != nil {
			return err
		}
		if d != nil {
			it.Date = *d
		}
	}
	return checkLengths(
		lengthRule{"name", it.Name, maxShortLen},
		lengthRule{"description", it.Description, maxTextLen},
	)
}

const expenseColumns = "id, user_id, category, status, notes, budget, total, version, created_at, updated_at"

func scanExpense(s rowScanner) (model.Expense, error) {
	var (
		e      model.Expense
		status sql.NullString
	)
	err := s.Scan(&e.ID, &e.UserID, &e.Category, &status, &e.Notes, &e.Budget, &e.Total, &e.Version, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return model.Expense{}, err
	}
	if status.Valid && status.String != "" {
		st := model.ExpenseStatus(status.String)
		e.Status = &st
	}
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	e.Items = []model.Item{}
	e.Documents = []model.Document{}
	return e, nil
}

func statusArg(s *model.ExpenseStatus) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*s), Valid: true}
}

// loadChildren fills Items and Documents of the given expenses.
func loadChildren(ctx context.Context, q querier, exps []model.Expense) error {
	if len(exps) == 0 {
		return nil
	}
	ids := make([]string, len(exps))
	index := make(map[string]int, len(exps))
	for i, e := range exps {
		ids[i] = e.ID
		index[e.ID] = i
	}
	placeholders, args := inClause(ids)

	rows, err := q.QueryContext(ctx,
		"SELECT expense_id, id, name, cost, description, date FROM expense_items WHERE expense_id IN ("+placeholders+") ORDER BY id",
		args...)
	if err != nil {
		return fmt.Errorf("load items: %w", err)
	}
	for rows.Next() {
		var (
			expenseID string
			it        model.Item
		)
		if err := rows.Scan(&expenseID, &it.ID, &it.Name, &it.Cost, &it.Description, &it.Date); err != nil {
			rows.Close()
			return fmt.Errorf("scan item: %w", err)
		}
		it.Date = it.Date.UTC()
		e := &exps[index[expenseID]]
		e.Items = append(e.Items, it)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	rows, err = q.QueryContext(ctx,
		`SELECT expense_id, id, filename, original_name, path, size, mime_type, uploaded_at
		 FROM expense_documents WHERE expense_id IN (`+placeholders+`) ORDER BY uploaded_at, id`,
		args...)
	if err != nil {
		return fmt.Errorf("load documents: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			expenseID string
			d         model.Document
		)
		if err := rows.Scan(&expenseID, &d.ID, &d.Filename, &d.OriginalName, &d.Path, &d.Size, &d.MimeType, &d.UploadedAt); err != nil {
			return fmt.Errorf("scan document: %w", err)
		}
		d.UploadedAt = d.UploadedAt.UTC()
		e := &exps[index[expenseID]]
		e.Documents = append(e.Documents, d)
	}
	return rows.Err()
}

func getExpense(ctx context.Context, q querier, userID, id string) (model.Expense, error) {
	e, err := scanExpense(q.QueryRowContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE id=? AND user_id=? LIMIT 1", id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Expense{}, ErrNotFound
	}
	if err != nil {
		return model.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	exps := []model.Expense{e}
	if err := loadChildren(ctx, q, exps); err != nil {
		return model.Expense{}, err
	}
	return exps[0], nil
}

// bump increments the expense version under the owner filter, locking the
// row for the rest of the transaction.
func bump(ctx context.Context, tx *sql.Tx, userID, id string) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE expenses SET version = version + 1, updated_at=? WHERE id=? AND user_id=?",
		nowFunc(), id, userID)
	if err != nil {
		return fmt.Errorf("lock expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// rederiveTotal sets total to the sum of the expense's item costs.
func rederiveTotal(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE expenses SET total = (SELECT COALESCE(SUM(cost), 0) FROM expense_items WHERE expense_id=?) WHERE id=?",
		id, id)
	if err != nil {
		return fmt.Errorf("derive total: %w", err)
	}
	return nil
}

func insertDocuments(ctx context.Context, tx *sql.Tx, expenseID string, docs []model.Document) error {
	for _, d := range docs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO expense_documents (id, expense_id, filename, original_name, path, size, mime_type, uploaded_at)
			 VALUES (?,?,?,?,?,?,?,?)`,
			d.ID, expenseID, d.Filename, d.OriginalName, d.Path, d.Size, d.MimeType, d.UploadedAt)
		if err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
	}
	return nil
}

// List returns the caller's expenses with items and documents, newest
// first.
func (r *ExpenseRepo) List(ctx context.Context, userID string) ([]model.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE user_id=? ORDER BY created_at DESC, id DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	out := []model.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if err := loadChildren(ctx, r.db, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns one expense of the caller or ErrNotFound.
func (r *ExpenseRepo) Get(ctx context.Context, userID, id string) (model.Expense, error) {
	return getExpense(ctx, r.db, userID, id)
}

// Create stores a new expense with the given id (see NewExpenseID) and
// attaches docs, whose files must already be on disk.
func (r *ExpenseRepo) Create(ctx context.Context, userID, id string, in ExpenseInput, docs []model.Document) (model.Expense, error) {
	if err := in.Check(true); err != nil {
		return model.Expense{}, err
	}
	if id == "" {
		id = newID()
	}
	now := nowFunc()
	e := model.Expense{ID: id, UserID: userID, Version: 1, CreatedAt: now, UpdatedAt: now}
	in.apply(&e)

	var out model.Expense
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO expenses ("+expenseColumns+") VALUES (?,?,?,?,?,?,?,?,?,?)",
			e.ID, e.UserID, e.Category, statusArg(e.Status), e.Notes, e.Budget, 0, e.Version, e.CreatedAt, e.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert expense: %w", err)
		}
		if err := insertDocuments(ctx, tx, e.ID, docs); err != nil {
			return err
		}
		out, err = getExpense(ctx, tx, userID, e.ID)
		return err
	})
	return out, err
}

// Update merges the present fields of in into the caller's expense and
// appends docs.  statusChanged reports whether the payment status moved.
func (r *ExpenseRepo) Update(ctx context.Context, userID, id string, in ExpenseInput, docs []model.Document) (out model.Expense, statusChanged bool, err error) {
	if err := in.Check(false); err != nil {
		return model.Expense{}, false, err
	}
	err = withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := bump(ctx, tx, userID, id); err != nil {
			return err
		}
		cur, err := scanExpense(tx.QueryRowContext(ctx,
			"SELECT "+expenseColumns+" FROM expenses WHERE id=? AND user_id=?", id, userID))
		if err != nil {
			return fmt.Errorf("read expense: %w", err)
		}
		before := statusArg(cur.Status)
		in.apply(&cur)
		statusChanged = before != statusArg(cur.Status)

		if _, err := tx.ExecContext(ctx,
			"UPDATE expenses SET category=?, status=?, notes=?, budget=? WHERE id=? AND user_id=?",
			cur.Category, statusArg(cur.Status), cur.Notes, cur.Budget, id, userID); err != nil {
			return fmt.Errorf("update expense: %w", err)
		}
		if err := insertDocuments(ctx, tx, id, docs); err != nil {
			return err
		}
		out, err = getExpense(ctx, tx, userID, id)
		return err
	})
	if err != nil {
		return model.Expense{}, false, err
	}
	return out, statusChanged, nil
}

// Delete removes the caller's expense with its items and documents and
// returns the stored filenames of the removed documents.
func (r *ExpenseRepo) Delete(ctx context.Context, userID, id string) ([]string, error) {
	var files []string
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := bump(ctx, tx, userID, id); err != nil {
			return err
		}
		rows, err := tx.QueryContext(ctx, "SELECT filename FROM expense_documents WHERE expense_id=?", id)
		if err != nil {
			return fmt.Errorf("list documents: %w", err)
		}
		for rows.Next() {
			var f string
			if err := rows.Scan(&f); err != nil {
				rows.Close()
				return err
			}
			files = append(files, f)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		if _, err := tx.ExecContext(ctx, "DELETE FROM expenses WHERE id=? AND user_id=?", id, userID); err != nil {
			return fmt.Errorf("delete expense: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// AddItem appends an item and returns the whole updated expense.
func (r *ExpenseRepo) AddItem(ctx context.Context, userID, expenseID string, in ItemInput) (model.Expense, error) {
	it := model.Item{ID: newID(), Date: nowFunc()}
	if err := in.apply(&it, true); err != nil {
		return model.Expense{}, err
	}
	var out model.Expense
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := bump(ctx, tx, userID, expenseID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO expense_items (id, expense_id, name, cost, description, date) VALUES (?,?,?,?,?,?)",
			it.ID, expenseID, it.Name, it.Cost, it.Description, it.Date); err != nil {
			return fmt.Errorf("insert item: %w", err)
		}
		if err := rederiveTotal(ctx, tx, expenseID); err != nil {
			return err
		}
		var err error
		out, err = getExpense(ctx, tx, userID, expenseID)
		return err
	})
	return out, err
}

// UpdateItem changes the present fields of one item.  A missing expense
// yields ErrNotFound and a missing item ErrItemNotFound.
func (r *ExpenseRepo) UpdateItem(ctx context.Context, userID, expenseID, itemID string, in ItemInput) (model.Expense, error) {
	var out model.Expense
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := bump(ctx, tx, userID, expenseID); err != nil {
			return err
		}
		var it model.Item
		err := tx.QueryRowContext(ctx,
			"SELECT id, name, cost, description, date FROM expense_items WHERE id=? AND expense_id=?",
			itemID, expenseID).Scan(&it.ID, &it.Name, &it.Cost, &it.Description, &it.Date)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrItemNotFound
		}
		if err != nil {
			return fmt.Errorf("read item: %w", err)
		}
		if err := in.apply(&it, false); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE expense_items SET name=?, cost=?, description=?, date=? WHERE id=? AND expense_id=?",
			it.Name, it.Cost, it.Description, it.Date.UTC(), itemID, expenseID); err != nil {
			return fmt.Errorf("update item: %w", err)
		}
		if err := rederiveTotal(ctx, tx, expenseID); err != nil {
			return err
		}
		out, err = getExpense(ctx, tx, userID, expenseID)
		return err
	})
	return out, err
}

// RemoveItem deletes one item.  Removing an item that is not there is a
// no-op that returns the unchanged expense.
func (r *ExpenseRepo) RemoveItem(ctx context.Context, userID, expenseID, itemID string) (model.Expense, error) {
	var out model.Expense
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := bump(ctx, tx, userID, expenseID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM expense_items WHERE id=? AND expense_id=?", itemID, expenseID)
		if err != nil {
			return fmt.Errorf("delete item: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errNoChange
		}
		if err := rederiveTotal(ctx, tx, expenseID); err != nil {
			return err
		}
		out, err = getExpense(ctx, tx, userID, expenseID)
		return err
	})
	if errors.Is(err, errNoChange) {
		return r.Get(ctx, userID, expenseID)
	}
	return out, err
}

// AttachDocuments appends documents to the caller's expense.
func (r *ExpenseRepo) AttachDocuments(ctx context.Context, userID, expenseID string, docs []model.Document) (model.Expense, error) {
	var out model.Expense
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := bump(ctx, tx, userID, expenseID); err != nil {
			return err
		}
		if err := insertDocuments(ctx, tx, expenseID, docs); err != nil {
			return err
		}
		var err error
		out, err = getExpense(ctx, tx, userID, expenseID)
		return err
	})
	return out, err
}

// GetDocument returns one document of the caller's expense.  A missing
// expense yields ErrNotFound and a missing document ErrDocumentNotFound.
func (r *ExpenseRepo) GetDocument(ctx context.Context, userID, expenseID, docID string) (model.Document, error) {
	var d model.Document
	err := r.db.QueryRowContext(ctx,
		`SELECT d.id, d.filename, d.original_name, d.path, d.size, d.mime_type, d.uploaded_at
		 FROM expense_documents d JOIN expenses e ON e.id = d.expense_id
		 WHERE d.id=? AND e.id=? AND e.user_id=?`,
		docID, expenseID, userID).
		Scan(&d.ID, &d.Filename, &d.OriginalName, &d.Path, &d.Size, &d.MimeType, &d.UploadedAt)
	if err == nil {
		d.UploadedAt = d.UploadedAt.UTC()
		return d, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return model.Document{}, fmt.Errorf("get document: %w", err)
	}

	var one int
	err = r.db.QueryRowContext(ctx, "SELECT 1 FROM expenses WHERE id=? AND user_id=?", expenseID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Document{}, ErrNotFound
	}
	if err != nil {
		return model.Document{}, fmt.Errorf("get expense: %w", err)
	}
	return model.Document{}, ErrDocumentNotFound
}

// RemoveDocument deletes the metadata of one document and returns it so
// the caller can remove the file.
func (r *ExpenseRepo) RemoveDocument(ctx context.Context, userID, expenseID, docID string) (model.Expense, model.Document, error) {
	var (
		out     model.Expense
		removed model.Document
	)
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := bump(ctx, tx, userID, expenseID); err != nil {
			return err
		}
		err := tx.QueryRowContext(ctx,
			`SELECT id, filename, original_name, path, size, mime_type, uploaded_at
			 FROM expense_documents WHERE id=? AND expense_id=?`, docID, expenseID).
			Scan(&removed.ID, &removed.Filename, &removed.OriginalName, &removed.Path, &removed.Size, &removed.MimeType, &removed.UploadedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrDocumentNotFound
		}
		if err != nil {
			return fmt.Errorf("read document: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM expense_documents WHERE id=? AND expense_id=?", docID, expenseID); err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
		out, err = getExpense(ctx, tx, userID, expenseID)
		return err
	})
	if err != nil {
		return model.Expense{}, model.Document{}, err
	}
	removed.UploadedAt = removed.UploadedAt.UTC()
	return out, removed, nil
}

// Stats aggregates the caller's expenses in one query.  Expenses without
// a status are counted in the unset bucket.
func (r *ExpenseRepo) Stats(ctx context.Context, userID string) (model.ExpenseStats, error) {
	var s model.ExpenseStats
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(e.budget), 0),
		       COALESCE(SUM(e.total), 0),
		       COALESCE(SUM(ic.n), 0),
		       COALESCE(SUM(CASE WHEN e.status='paid' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN e.status='due' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN e.status IS NULL THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN e.status='paid' THEN e.budget ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN e.status='due' THEN e.budget ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN e.status IS NULL THEN e.budget ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN e.status='paid' THEN e.total ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN e.status='due' THEN e.total ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN e.status IS NULL THEN e.total ELSE 0 END), 0)
		FROM expenses e
		LEFT JOIN (
		    SELECT i.expense_id, COUNT(*) AS n
		    FROM expense_items i JOIN expenses x ON x.id = i.expense_id
		    WHERE x.user_id=?
		    GROUP BY i.expense_id
		) ic ON ic.expense_id = e.id
		WHERE e.user_id=?`, userID, userID).
		Scan(&s.TotalCategories, &s.TotalBudget, &s.TotalSpent, &s.TotalItems,
			&s.PaidCount, &s.DueCount, &s.UnsetCount,
			&s.PaidBudget, &s.DueBudget, &s.UnsetBudget,
			&s.PaidSpent, &s.DueSpent, &s.UnsetSpent)
	if err != nil {
		return model.ExpenseStats{}, fmt.Errorf("expense stats: %w", err)
	}
	return s, nil
}

// ChartData projects the caller's expenses to category, budget and total,
// highest total first.
func (r *ExpenseRepo) ChartData(ctx context.Context, userID string) ([]model.ChartPoint, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, category, budget, total FROM expenses WHERE user_id=? ORDER BY total DESC, created_at DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("chart data: %w", err)
	}
	defer rows.Close()

	out := []model.ChartPoint{}
	for rows.Next() {
		var p model.ChartPoint
		if err := rows.Scan(&p.ID, &p.Category, &p.Budget, &p.Total); err != nil {
			return nil, fmt.Errorf("scan chart point: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
