package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/canteen-ordering/internal/model"
	"github.com/iliyamo/canteen-ordering/internal/utils"
)

// NewUser carries the fields needed to register an account.
type NewUser struct {
	Name     string
	Phone    string
	Roll     string
	Password string
	Role     string
}

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// ErrIdentityExists is returned when the phone or roll is already taken.
var ErrIdentityExists = errors.New("phone or roll already registered")

const userColumns = "id,name,phone,roll,password_hash,role,balance_cents,is_active,created_at,updated_at"

// Create hashes the password and inserts the user, returning its ID.
func (r *UserRepo) Create(ctx context.Context, u NewUser, cost int) (uint64, error) {
	hash, err := utils.HashPassword(u.Password, cost)
	if err != nil {
		return 0, err
	}
	role := strings.ToUpper(strings.TrimSpace(u.Role))
	if role != model.RoleAdmin {
		role = model.RoleStudent
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (name, phone, roll, password_hash, role) VALUES (?,?,?,?,?)",
		strings.TrimSpace(u.Name), nullable(u.Phone), nullable(normalizeRoll(u.Roll)), hash, role)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrIdentityExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// Upsert creates the user or, when the phone already exists, refreshes name,
// roll, role and password.  Used by the seed tool.
func (r *UserRepo) Upsert(ctx context.Context, u NewUser, cost int) error {
	hash, err := utils.HashPassword(u.Password, cost)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO users (name, phone, roll, password_hash, role) VALUES (?,?,?,?,?)
		ON DUPLICATE KEY UPDATE name=VALUES(name), roll=VALUES(roll),
			password_hash=VALUES(password_hash), role=VALUES(role)`,
		strings.TrimSpace(u.Name), nullable(u.Phone), nullable(normalizeRoll(u.Roll)), hash, u.Role)
	return err
}

// GetByPhoneOrRoll fetches a user matching either identifier.  Blank
// identifiers never match.
func (r *UserRepo) GetByPhoneOrRoll(ctx context.Context, phone, roll string) (model.User, error) {
	phone = strings.TrimSpace(phone)
	roll = normalizeRoll(roll)
	if phone == "" && roll == "" {
		return model.User{}, sql.ErrNoRows
	}
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE (phone=? AND ?<>'') OR (roll=? AND ?<>'') LIMIT 1",
		phone, phone, roll, roll)
	return scanUser(row)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	row := r.DB.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	return scanUser(row)
}

// AdjustBalanceTx adds delta (negative for pay-later charges) to the user's
// balance inside tx.  A zero delta is a no-op: MySQL reports changed rows,
// so the update would look like a missing user.
func (r *UserRepo) AdjustBalanceTx(ctx context.Context, tx *sql.Tx, userID uint64, delta int64) error {
	if delta == 0 {
		return nil
	}
	res, err := tx.ExecContext(ctx, "UPDATE users SET balance_cents = balance_cents + ? WHERE id=?", delta, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetBalanceTx sets the user's balance back to zero inside tx.
func (r *UserRepo) ResetBalanceTx(ctx context.Context, tx *sql.Tx, userID uint64) error {
	_, err := tx.ExecContext(ctx, "UPDATE users SET balance_cents = 0 WHERE id=?", userID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (model.User, error) {
	var (
		u     model.User
		phone sql.NullString
		roll  sql.NullString
	)
	err := row.Scan(&u.ID, &u.Name, &phone, &roll, &u.PasswordHash, &u.Role,
		&u.BalanceCents, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	u.Phone = phone.String
	u.Roll = roll.String
	return u, err
}

func normalizeRoll(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

// nullable maps "" to SQL NULL so unique keys on optional columns allow
// many accounts without that identifier.
func nullable(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}
