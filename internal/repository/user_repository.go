package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/wedding-planner/internal/model"
	"github.com/iliyamo/wedding-planner/internal/utils"
)

// bcrypt ignores input beyond 72 bytes; longer passwords are refused.
const (
	minPasswordLen = 6
	maxPasswordLen = 72
)

type UserRepo struct{ db *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

// RegisterInput is the body of POST /api/users/register.
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in *RegisterInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if in.Name == "" {
		return invalid("name", "is required")
	}
	if in.Email == "" {
		return invalid("email", "is required")
	}
	if !validEmail(in.Email) {
		return invalid("email", "is not a valid email address")
	}
	if err := checkLengths(
		lengthRule{"name", in.Name, maxShortLen},
		lengthRule{"email", in.Email, maxShortLen},
	); err != nil {
		return err
	}
	return validatePassword("password", in.Password)
}

func validatePassword(field, p string) error {
	if len(p) < minPasswordLen {
		return invalid(field, "must be at least %d characters", minPasswordLen)
	}
	if len(p) > maxPasswordLen {
		return invalid(field, "must be at most %d bytes", maxPasswordLen)
	}
	return nil
}

// ProfilePatch is the body of PUT /api/users/profile.  Nil fields are left
// unchanged; an empty weddingDate clears it.
type ProfilePatch struct {
	Name        *string `json:"name"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
	WeddingDate *string `json:"weddingDate"`
	PartnerName *string `json:"partnerName"`
	Venue       *string `json:"venue"`
}

func (p ProfilePatch) apply(u *model.User) error {
	if p.Name != nil {
		u.Name = strings.TrimSpace(*p.Name)
		if u.Name == "" {
			return invalid("name", "is required")
		}
	}
	if p.Email != nil {
		u.Email = normalizeEmail(*p.Email)
		if !validEmail(u.Email) {
			return invalid("email", "is not a valid email address")
		}
	}
	if p.Phone != nil {
		u.Phone = strings.TrimSpace(*p.Phone)
	}
	if p.WeddingDate != nil {
		d, err := parseDate("weddingDate", *p.WeddingDate)
		if err != nil {
			return err
		}
		u.WeddingDate = d
	}
	if p.PartnerName != nil {
		u.PartnerName = strings.TrimSpace(*p.PartnerName)
	}
	if p.Venue != nil {
		u.Venue = strings.TrimSpace(*p.Venue)
	}
	return checkLengths(
		lengthRule{"name", u.Name, maxShortLen},
		lengthRule{"email", u.Email, maxShortLen},
		lengthRule{"phone", u.Phone, maxPhoneLen},
		lengthRule{"partnerName", u.PartnerName, maxShortLen},
		lengthRule{"venue", u.Venue, maxShortLen},
	)
}

const userColumns = "id, name, email, password_hash, phone, wedding_date, partner_name, venue, created_at, updated_at"

func scanUser(s rowScanner) (model.User, error) {
	var (
		u  model.User
		wd sql.NullTime
	)
	err := s.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Phone, &wd, &u.PartnerName, &u.Venue, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	u.WeddingDate = timePtr(wd)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}

// Create validates in, hashes the password and inserts the user.
func (r *UserRepo) Create(ctx context.Context, in RegisterInput, cost int) (model.User, error) {
	if err := in.Validate(); err != nil {
		return model.User{}, err
	}
	hash, err := utils.HashPassword(in.Password, cost)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}
	now := nowFunc()
	u := model.User{
		ID:           newID(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err = r.db.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES (?,?,?,?,?,?,?,?,?,?)",
		u.ID, u.Name, u.Email, u.PasswordHash, u.Phone, nullTime(u.WeddingDate), u.PartnerName, u.Venue, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return model.User{}, ErrEmailExists
		}
		return model.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", normalizeEmail(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// Exists reports whether a user with the given id is present.  It backs
// the authorization guard, which rejects tokens of deleted accounts.
func (r *UserRepo) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id=? LIMIT 1", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return true, nil
}

// Authenticate returns the user for a matching email and password.  An
// unknown email and a wrong password both yield ErrInvalidCredentials.
func (r *UserRepo) Authenticate(ctx context.Context, email, password string) (model.User, error) {
	u, err := r.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		utils.VerifyNothing(password)
		return model.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return model.User{}, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return model.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// UpdateProfile applies p to the user's profile.
func (r *UserRepo) UpdateProfile(ctx context.Context, id string, p ProfilePatch) (model.User, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	if err := p.apply(&u); err != nil {
		return model.User{}, err
	}
	u.UpdatedAt = nowFunc()
	_, err = r.db.ExecContext(ctx,
		`UPDATE users SET name=?, email=?, phone=?, wedding_date=?, partner_name=?, venue=?, updated_at=?
		 WHERE id=?`,
		u.Name, u.Email, u.Phone, nullTime(u.WeddingDate), u.PartnerName, u.Venue, u.UpdatedAt, u.ID)
	if err != nil {
		if isDuplicateKey(err) {
			return model.User{}, ErrEmailExists
		}
		return model.User{}, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

// ChangePasswordInput is the body of PUT /api/users/change-password.
type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword replaces the password after verifying the current one.
func (r *UserRepo) ChangePassword(ctx context.Context, id string, in ChangePasswordInput, cost int) error {
	if in.CurrentPassword == "" {
		return invalid("currentPassword", "is required")
	}
	if err := validatePassword("newPassword", in.NewPassword); err != nil {
		return err
	}
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !utils.VerifyPassword(u.PasswordHash, in.CurrentPassword) {
		return invalid("currentPassword", "is incorrect")
	}
	hash, err := utils.HashPassword(in.NewPassword, cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, "UPDATE users SET password_hash=?, updated_at=? WHERE id=?", hash, nowFunc(), id); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// Delete removes the account.  Guests, expenses (with their items and
// documents), requirements and refresh tokens go with it through ON DELETE
// CASCADE.  The stored filenames of the removed documents are returned so
// the caller can delete the files.
func (r *UserRepo) Delete(ctx context.Context, id string) ([]string, error) {
	var files []string
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT d.filename FROM expense_documents d
			 JOIN expenses e ON e.id = d.expense_id
			 WHERE e.user_id=?`, id)
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

		res, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
