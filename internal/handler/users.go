package handler

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bruss-it/overtime-manager/backend/internal/apperror"
	"github.com/bruss-it/overtime-manager/backend/internal/domain"
	"github.com/bruss-it/overtime-manager/backend/internal/utils"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

var (
	errUsernameTaken = apperror.New(apperror.KindConflict, "username_taken", "username already exists")
	errEmailTaken    = apperror.New(apperror.KindConflict, "email_taken", "email already exists")
)

// userConstraintError 把唯一约束冲突转换成业务错误，其余错误视为上游故障
func userConstraintError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.ConstraintName {
		case "users_username_key":
			return errUsernameTaken
		case "users_email_key":
			return errEmailTaken
		}
	}
	return apperror.Upstream(err)
}

func toRoles(values []string) []domain.Role {
	roles := make([]domain.Role, 0, len(values))
	for _, v := range values {
		if role, ok := domain.ParseRole(v); ok {
			roles = append(roles, role)
		}
	}
	return roles
}

func (h *Handler) GetAllUserInfo(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	users, err := h.users.GetAllUsers(strings.TrimSpace(query.Get("q")), query.Get("department"))
	if err != nil {
		h.serviceUnavailable(w, r, err)
		return
	}

	h.successResponse(w, r, "ok", users)
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username          string   `json:"username" validate:"required,max=64"`
		FullName          string   `json:"fullName" validate:"required"`
		Email             string   `json:"email" validate:"required,email"`
		Department        string   `json:"department"`
		Roles             []string `json:"roles" validate:"required,min=1,dive,oneof=employee group-leader team-manager production-manager quality-manager logistics-manager plant-manager hr admin"`
		MonthlyQuotaHours *float64 `json:"monthlyQuotaHours" validate:"omitempty,gte=0"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 生成随机密码
	password := utils.GenerateRandomPassword(h.config.NewUser.PasswordLength)

	// 对密码进行哈希
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	user := &domain.User{
		Username:          req.Username,
		PasswordHash:      string(hashedPassword),
		FullName:          req.FullName,
		Email:             req.Email,
		Department:        req.Department,
		Roles:             toRoles(req.Roles),
		MonthlyQuotaHours: req.MonthlyQuotaHours,
	}

	if err := h.users.CreateUser(user); err != nil {
		h.appError(w, r, userConstraintError(err))
		return
	}

	// 账号信息通过邮件发送给新用户
	if err := h.mailer.Publish(domain.MailMessage{
		Type: domain.MailCreateUser,
		To:   user.Email,
		Lang: user.Language(),
		Data: domain.CreateUserMailData{
			FullName: user.FullName,
			Username: user.Username,
			Password: password,
		},
	}); err != nil {
		// 用户已经写入数据库，邮件失败只记录日志
		slog.Warn("无法发送账号邮件", "user", user.ID, "email", user.Email, "error", err)
		h.successResponse(w, r, "user created, but the account mail could not be sent", user)
		return
	}

	h.successResponse(w, r, "user created", user)
}

func (h *Handler) GetUserInfo(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(UserInfoCtx).(*domain.User)
	h.successResponse(w, r, "ok", user)
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email             *string  `json:"email" validate:"omitempty,email"`
		Department        *string  `json:"department"`
		Roles             []string `json:"roles" validate:"omitempty,min=1,dive,oneof=employee group-leader team-manager production-manager quality-manager logistics-manager plant-manager hr admin"`
		MonthlyQuotaHours *float64 `json:"monthlyQuotaHours" validate:"omitempty,gte=0"`
		ResetQuota        bool     `json:"resetQuota"`
		IsActive          *bool    `json:"isActive"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	user := r.Context().Value(UserInfoCtx).(*domain.User)

	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Department != nil {
		user.Department = *req.Department
	}
	if req.Roles != nil {
		user.Roles = toRoles(req.Roles)
	}
	if req.ResetQuota {
		user.MonthlyQuotaHours = nil
	}
	if req.MonthlyQuotaHours != nil {
		user.MonthlyQuotaHours = req.MonthlyQuotaHours
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := h.users.UpdateUser(user); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.appError(w, r, apperror.ErrConflict)
		default:
			h.appError(w, r, userConstraintError(err))
		}
		return
	}

	h.successResponse(w, r, "user updated", user)
}

func (h *Handler) UpdateUserPassword(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(UserInfoCtx).(*domain.User)

	var req struct {
		Password string `json:"password" validate:"required,min=8"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 对密码进行哈希
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	user.PasswordHash = string(hashedPassword)
	if err := h.users.UpdateUser(user); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.appError(w, r, apperror.ErrConflict)
		default:
			h.serviceUnavailable(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "password updated", nil)
}
