package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/wedding-planner/internal/model"
)

// GuestRepo provides owner-scoped access to the guests table.
type GuestRepo struct{ db *sql.DB }

func NewGuestRepo(db *sql.DB) *GuestRepo { return &GuestRepo{db: db} }

// GuestInput is the body of guest create and update requests.  On update
// only non-nil fields change.
type GuestInput struct {
	Name              *string            `json:"name"`
	Contact           *string            `json:"contact"`
	Email             *string            `json:"email"`
	Address           *string            `json:"address"`
	Members           *[]string          `json:"members"`
	ExtraMembersCount *int               `json:"extraMembersCount"`
	InvitationSent    *bool              `json:"invitationSent"`
	Status            *model.GuestStatus `json:"status"`
	PlusOne           *bool              `json:"plusOne"`
	Notes             *string            `json:"notes"`
	Tags              *[]string          `json:"tags"`
}

// apply merges the present fields of in into g and validates the result.
func (in GuestInput) apply(g *model.Guest) error {
	if in.Name != nil {
		g.Name = strings.TrimSpace(*in.Name)
	}
	if in.Contact != nil {
		g.Contact = strings.TrimSpace(*in.Contact)
	}
	if in.Email != nil {
		g.Email = normalizeEmail(*in.Email)
	}
	if in.Address != nil {
		g.Address = strings.TrimSpace(*in.Address)
	}
	if in.Members != nil {
		g.Members = cleanList(*in.Members)
	}
	if in.ExtraMembersCount != nil {
		g.ExtraMembersCount = *in.ExtraMembersCount
	}
	if in.InvitationSent != nil {
		g.InvitationSent = *in.InvitationSent
	}
	if in.Status != nil {
		g.Status = *in.Status
	}
	if in.PlusOne != nil {
		g.PlusOne = *in.PlusOne
	}
	if in.Notes != nil {
		g.Notes = *in.Notes
	}
	if in.Tags != nil {
		g.Tags = cleanTags(*in.Tags)
	}

	switch {
	case g.Name == "":
		return invalid("name", "is required")
	case g.Email != "" && !validEmail(g.Email):
		return invalid("email", "is not a valid email address")
	case g.ExtraMembersCount < 0:
		return invalid("extraMembersCount", "must be zero or greater")
	case !g.Status.Valid():
		return invalid("status", "must be one of pending, confirmed, declined")
	}
	if err := checkLengths(
		lengthRule{"name", g.Name, maxShortLen},
		lengthRule{"contact", g.Contact, maxShortLen},
		lengthRule{"email", g.Email, maxShortLen},
		lengthRule{"address", g.Address, maxAddressLen},
		lengthRule{"notes", g.Notes, maxTextLen},
	); err != nil {
		return err
	}
	if err := checkList("members", g.Members); err != nil {
		return err
	}
	return checkList("tags", g.Tags)
}

const guestColumns = `id, user_id, name, contact, email, address, members, extra_members_count,
	invitation_sent, status, plus_one, notes, tags, created_at, updated_at`

func scanGuest(s rowScanner) (model.Guest, error) {
	var (
		g             model.Guest
		members, tags string
	)
	err := s.Scan(&g.ID, &g.UserID, &g.Name, &g.Contact, &g.Email, &g.Address, &members, &g.ExtraMembersCount,
		&g.InvitationSent, &g.Status, &g.PlusOne, &g.Notes, &tags, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return model.Guest{}, err
	}
	if g.Members, err = decodeList(members); err != nil {
		return model.Guest{}, err
	}
	if g.Tags, err = decodeList(tags); err != nil {
		return model.Guest{}, err
	}
	g.CreatedAt = g.CreatedAt.UTC()
	g.UpdatedAt = g.UpdatedAt.UTC()
	return g, nil
}

// List returns the caller's guests, newest first.
func (r *GuestRepo) List(ctx context.Context, userID string) ([]model.Guest, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+guestColumns+" FROM guests WHERE user_id=? ORDER BY created_at DESC, id DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("list guests: %w", err)
	}
	defer rows.Close()

	out := []model.Guest{}
	for rows.Next() {
		g, err := scanGuest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan guest: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Get returns one guest of the caller or ErrNotFound.
func (r *GuestRepo) Get(ctx context.Context, userID, id string) (model.Guest, error) {
	g, err := scanGuest(r.db.QueryRowContext(ctx,
		"SELECT "+guestColumns+" FROM guests WHERE id=? AND user_id=? LIMIT 1", id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Guest{}, ErrNotFound
	}
	if err != nil {
		return model.Guest{}, fmt.Errorf("get guest: %w", err)
	}
	return g, nil
}

// Create validates in, applies defaults and stores a guest owned by userID.
func (r *GuestRepo) Create(ctx context.Context, userID string, in GuestInput) (model.Guest, error) {
	g := model.Guest{
		ID:      newID(),
		UserID:  userID,
		Members: []string{},
		Status:  model.GuestPending,
		Tags:    []string{},
	}
	if err := in.apply(&g); err != nil {
		return model.Guest{}, err
	}
	now := nowFunc()
	g.CreatedAt, g.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO guests ("+guestColumns+") VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)",
		g.ID, g.UserID, g.Name, g.Contact, g.Email, g.Address, encodeList(g.Members), g.ExtraMembersCount,
		g.InvitationSent, g.Status, g.PlusOne, g.Notes, encodeList(g.Tags), g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return model.Guest{}, fmt.Errorf("insert guest: %w", err)
	}
	return g, nil
}

// Update resolves the guest under the owner filter, merges the present
// fields of in and stores the result.
func (r *GuestRepo) Update(ctx context.Context, userID, id string, in GuestInput) (model.Guest, error) {
	g, err := r.Get(ctx, userID, id)
	if err != nil {
		return model.Guest{}, err
	}
	if err := in.apply(&g); err != nil {
		return model.Guest{}, err
	}
	g.UpdatedAt = nowFunc()

	res, err := r.db.ExecContext(ctx,
		`UPDATE guests SET name=?, contact=?, email=?, address=?, members=?, extra_members_count=?,
			invitation_sent=?, status=?, plus_one=?, notes=?, tags=?, updated_at=?
		 WHERE id=? AND user_id=?`,
		g.Name, g.Contact, g.Email, g.Address, encodeList(g.Members), g.ExtraMembersCount,
		g.InvitationSent, g.Status, g.PlusOne, g.Notes, encodeList(g.Tags), g.UpdatedAt,
		id, userID)
	if err != nil {
		return model.Guest{}, fmt.Errorf("update guest: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Guest{}, ErrNotFound
	}
	return g, nil
}

// Delete removes one guest of the caller.
func (r *GuestRepo) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM guests WHERE id=? AND user_id=?", id, userID)
	if err != nil {
		return fmt.Errorf("delete guest: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ToggleInvitation flips invitation_sent in a single statement and returns
// the updated guest.
func (r *GuestRepo) ToggleInvitation(ctx context.Context, userID, id string) (model.Guest, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE guests SET invitation_sent = CASE WHEN invitation_sent = 1 THEN 0 ELSE 1 END, updated_at=?
		 WHERE id=? AND user_id=?`,
		nowFunc(), id, userID)
	if err != nil {
		return model.Guest{}, fmt.Errorf("toggle invitation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Guest{}, ErrNotFound
	}
	return r.Get(ctx, userID, id)
}

// BulkSetInvitation sets invitation_sent on every listed guest owned by
// userID whose value differs, and returns the number of guests changed.
// Ids of other users' guests are skipped silently.
func (r *GuestRepo) BulkSetInvitation(ctx context.Context, userID string, ids []string, sent bool) (int64, error) {
	placeholders, args, err := inClause("guestIds", ids)
	if err != nil {
		return 0, err
	}
	q := `UPDATE guests SET invitation_sent=?, updated_at=?
		  WHERE user_id=? AND invitation_sent <> ? AND id IN (` + placeholders + `)`
	res, err := r.db.ExecContext(ctx, q, append([]any{sent, nowFunc(), userID, sent}, args...)...)
	if err != nil {
		return 0, fmt.Errorf("bulk update invitations: %w", err)
	}
	return res.RowsAffected()
}

// Stats aggregates the caller's guests in one query.  Every field is zero
// when the caller has no guests.
func (r *GuestRepo) Stats(ctx context.Context, userID string) (model.GuestStats, error) {
	var s model.GuestStats
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status='confirmed' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status='pending' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status='declined' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN invitation_sent = 1 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(extra_members_count), 0)
		FROM guests WHERE user_id=?`, userID).
		Scan(&s.Total, &s.Confirmed, &s.Pending, &s.Declined, &s.InvitationSent, &s.TotalMembers)
	if err != nil {
		return model.GuestStats{}, fmt.Errorf("guest stats: %w", err)
	}
	s.TotalPeople = s.Total + s.TotalMembers
	return s, nil
}
