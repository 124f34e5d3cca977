package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-quiz/internal/db"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRole        = errors.New("invalid role")
	ErrCannotDeleteSelf   = errors.New("cannot delete your own account")
)

type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	CreatedAt int64  `json:"created_at"`
}

// UserStore keeps accounts with bcrypt password hashes.
type UserStore struct {
	db   *sql.DB
	cost int
}

// NewUserStore uses bcrypt cost 12 when cost is 0.
func NewUserStore(dbh *sql.DB, cost int) *UserStore {
	if cost == 0 {
		cost = 12
	}
	return &UserStore{db: dbh, cost: cost}
}

func (s *UserStore) Create(ctx context.Context, username, password, role string) (User, error) {
	username = strings.TrimSpace(username)
	if role == "" {
		role = rbac.RoleStudent
	}
	if !rbac.ValidRole(role) {
		return User{}, fmt.Errorf("%w: %s", ErrInvalidRole, role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return User{}, err
	}
	return s.insert(ctx, username, string(hash), role)
}

func (s *UserStore) insert(ctx context.Context, username, hash, role string) (User, error) {
	u := User{Username: username, Role: role, CreatedAt: time.Now().Unix()}
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE username=$1`, username).Scan(&one)
		if err == nil {
			return ErrUsernameTaken
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return tx.QueryRowContext(ctx,
			`INSERT INTO users (username, password_hash, role, created_at) VALUES ($1,$2,$3,$4) RETURNING id`,
			username, hash, role, u.CreatedAt).Scan(&u.ID)
	})
	if db.IsUniqueViolation(err) {
		return User{}, ErrUsernameTaken
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// Authenticate returns the user if password matches. Unknown users and bad
// passwords look the same to the caller.
func (s *UserStore) Authenticate(ctx context.Context, username, password string) (User, error) {
	var u User
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, role, created_at, password_hash FROM users WHERE username=$1`,
		strings.TrimSpace(username)).Scan(&u.ID, &u.Username, &u.Role, &u.CreatedAt, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (s *UserStore) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE id=$1`, userID).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(oldPassword)) != nil {
		return ErrInvalidCredentials
	}
	next, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cost)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE users SET password_hash=$1 WHERE id=$2`, string(next), userID)
	return err
}

// Update renames a user and sets the role. An empty password keeps the
// current one.
func (s *UserStore) Update(ctx context.Context, id int64, username, password, role string) (User, error) {
	username = strings.TrimSpace(username)
	if !rbac.ValidRole(role) {
		return User{}, fmt.Errorf("%w: %s", ErrInvalidRole, role)
	}
	var (
		res sql.Result
		err error
	)
	if password == "" {
		res, err = s.db.ExecContext(ctx, `UPDATE users SET username=$1, role=$2 WHERE id=$3`, username, role, id)
	} else {
		hash, herr := bcrypt.GenerateFromPassword([]byte(password), s.cost)
		if herr != nil {
			return User{}, herr
		}
		res, err = s.db.ExecContext(ctx, `UPDATE users SET username=$1, password_hash=$2, role=$3 WHERE id=$4`,
			username, string(hash), role, id)
	}
	if db.IsUniqueViolation(err) {
		return User{}, ErrUsernameTaken
	}
	if err != nil {
		return User{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return User{}, ErrUserNotFound
	}
	return s.Get(ctx, id)
}

// Delete removes a user with their practice history and exams. Nobody can
// delete the account they are signed in with.
func (s *UserStore) Delete(ctx context.Context, id, actingUserID int64) error {
	if id == actingUserID {
		return ErrCannotDeleteSelf
	}
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrUserNotFound
		}
		for _, q := range []string{
			`DELETE FROM submissions WHERE user_id=$1`,
			`DELETE FROM chapter_progress WHERE user_id=$1`,
			`DELETE FROM exams WHERE user_id=$1`,
		} {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *UserStore) Get(ctx context.Context, id int64) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, `SELECT id, username, role, created_at FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Username, &u.Role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return u, err
}

// Role is the stored role of a user.
func (s *UserStore) Role(ctx context.Context, userID int64) (string, error) {
	var role string
	err := s.db.QueryRowContext(ctx, `SELECT role FROM users WHERE id=$1`, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrUserNotFound
	}
	return role, err
}

// List returns users ordered by username, optionally filtered by role.
func (s *UserStore) List(ctx context.Context, role string) ([]User, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if role == "" {
		rows, err = s.db.QueryContext(ctx, `SELECT id, username, role, created_at FROM users ORDER BY username`)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT id, username, role, created_at FROM users WHERE role=$1 ORDER BY username`, role)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []User{}
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// EnsureAdmin creates the admin account from an existing bcrypt hash unless
// the username is already present. It reports whether it created one.
func (s *UserStore) EnsureAdmin(ctx context.Context, username, passwordHash string) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" || passwordHash == "" {
		return false, nil
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return false, fmt.Errorf("admin password hash: %w", err)
	}
	_, err := s.insert(ctx, username, passwordHash, rbac.RoleAdmin)
	if errors.Is(err, ErrUsernameTaken) {
		return false, nil
	}
	return err == nil, err
}
