package repository

import (
	"database/sql"
	"strings"

	"github.com/bruss-it/overtime-manager/backend/internal/domain"
)

const userColumns = `
	id, username, password_hash, full_name, email, array_to_string(roles, ','),
	department, monthly_quota_hours, is_active, created_at, version
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	user := &domain.User{}
	var roles string
	var quota sql.NullFloat64

	dst := []any{
		&user.ID, &user.Username, &user.PasswordHash, &user.FullName, &user.Email, &roles,
		&user.Department, &quota, &user.IsActive, &user.CreatedAt, &user.Version,
	}
	if err := row.Scan(dst...); err != nil {
		return nil, err
	}

	user.Roles = parseRoles(roles)
	if quota.Valid {
		user.MonthlyQuotaHours = &quota.Float64
	}

	return user, nil
}

func parseRoles(s string) []domain.Role {
	roles := make([]domain.Role, 0)
	for _, part := range strings.Split(s, ",") {
		if role, ok := domain.ParseRole(strings.TrimSpace(part)); ok {
			roles = append(roles, role)
		}
	}
	return roles
}

func joinRoles(roles []domain.Role) string {
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}

func (r *Repository) GetUserByID(id int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	ctx, cancel := r.queryContext()
	defer cancel()

	return scanUser(r.dbpool.QueryRowContext(ctx, query, id))
}

func (r *Repository) GetUserByUsername(username string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	ctx, cancel := r.queryContext()
	defer cancel()

	return scanUser(r.dbpool.QueryRowContext(ctx, query, username))
}

func (r *Repository) UpdateUser(user *domain.User) error {
	query := `
		UPDATE users
		SET
			password_hash = $1,
			email = $2,
			roles = string_to_array($3, ','),
			department = $4,
			monthly_quota_hours = $5,
			is_active = $6,
			version = version + 1
		WHERE id = $7 AND version = $8
		RETURNING username, full_name, created_at, version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	args := []any{
		user.PasswordHash, user.Email, joinRoles(user.Roles), user.Department,
		user.MonthlyQuotaHours, user.IsActive, user.ID, user.Version,
	}
	dst := []any{&user.Username, &user.FullName, &user.CreatedAt, &user.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(dst...); err != nil {
		return err
	}

	return nil
}

// GetAllUsers 返回员工目录，search 按姓名或用户名模糊匹配
func (r *Repository) GetAllUsers(search, department string) ([]*domain.User, error) {
	query := `
		SELECT ` + userColumns + ` FROM users
		WHERE ($1 = '' OR full_name ILIKE '%' || $1 || '%' OR username ILIKE '%' || $1 || '%')
		AND ($2 = '' OR department = $2)
		ORDER BY full_name
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, search, department)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]*domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return users, nil
}

func (r *Repository) CreateUser(user *domain.User) error {
	ctx, cancel := r.queryContext()
	defer cancel()

	query := `
		INSERT INTO users (username, password_hash, full_name, email, roles, department, monthly_quota_hours)
		VALUES ($1, $2, $3, $4, string_to_array($5, ','), $6, $7)
		RETURNING id, is_active, created_at, version
	`

	args := []any{
		user.Username, user.PasswordHash, user.FullName, user.Email,
		joinRoles(user.Roles), user.Department, user.MonthlyQuotaHours,
	}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&user.ID, &user.IsActive, &user.CreatedAt, &user.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) CheckEmailIfExists(email string) (bool, error) {
	isExists := false

	ctx, cancel := r.queryContext()
	defer cancel()

	query := `
		SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)
	`
	if err := r.dbpool.QueryRowContext(ctx, query, email).Scan(&isExists); err != nil {
		return false, err
	}

	return isExists, nil
}
