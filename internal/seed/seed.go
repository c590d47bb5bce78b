package seed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/bruss-it/overtime-manager/backend/internal/domain"
	"github.com/bruss-it/overtime-manager/backend/internal/utils"
	"github.com/bruss-it/overtime-manager/backend/internal/workflow"
)

// UserStore 由 *repository.Repository 实现
type UserStore interface {
	CheckEmailIfExists(email string) (bool, error)
	CreateUser(user *domain.User) error
}

var csvHeader = []string{"full_name", "email", "department", "roles"}

// ImportUsers 从人事导出的 CSV 中导入员工，表头为 full_name,email,department,roles，
// 多个角色用分号分隔。邮箱已存在的行会被跳过，返回实际插入的数量
func ImportUsers(store UserStore, r io.Reader, passwordHash string) (int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	// 读取表头
	headers, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("读取表头失败: %w", err)
	}

	index := make(map[string]int, len(headers))
	for i, h := range headers {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, h := range csvHeader {
		if _, ok := index[h]; !ok {
			return 0, fmt.Errorf("没有找到列 %s", h)
		}
	}

	created := 0
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return created, fmt.Errorf("读取第 %d 行失败: %w", line, err)
		}

		user, err := userFromRow(row, index, passwordHash)
		if err != nil {
			slog.Error("跳过非法的行", "line", line, "error", err)
			continue
		}

		exists, err := store.CheckEmailIfExists(user.Email)
		if err != nil {
			return created, err
		}
		if exists {
			slog.Info("用户已存在，跳过", "email", user.Email)
			continue
		}

		if err := store.CreateUser(user); err != nil {
			slog.Error("插入用户失败", "line", line, "error", err)
			continue
		}
		created++
	}

	return created, nil
}

func userFromRow(row []string, index map[string]int, passwordHash string) (*domain.User, error) {
	field := func(name string) string {
		return strings.TrimSpace(row[index[name]])
	}

	fullName := field("full_name")
	email := field("email")
	if fullName == "" || email == "" {
		return nil, errors.New("姓名和邮箱不能为空")
	}

	roles := make([]domain.Role, 0)
	for _, s := range strings.Split(field("roles"), ";") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		role, ok := domain.ParseRole(s)
		if !ok {
			return nil, fmt.Errorf("未知角色 %q", s)
		}
		roles = append(roles, role)
	}
	if len(roles) == 0 {
		roles = append(roles, domain.RoleEmployee)
	}

	return &domain.User{
		Username:     utils.LoginFromName(fullName),
		PasswordHash: passwordHash,
		FullName:     fullName,
		Email:        email,
		Department:   field("department"),
		Roles:        roles,
		IsActive:     true,
	}, nil
}

// RandomOvertime 生成一条合法的加班申请，付费与调休二选一
func RandomOvertime(supervisorID int64, now time.Time) workflow.CreateInput {
	workDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, rand.Intn(28)-14)
	start := workDate.Add(time.Duration(14+rand.Intn(6)) * time.Hour)
	hours := float64(rand.Intn(8)+1) / 2
	end := start.Add(time.Duration(hours * float64(time.Hour)))

	in := workflow.CreateInput{
		Kind:          domain.KindOrder,
		Hours:         hours,
		Payment:       rand.Intn(3) > 0,
		SupervisorID:  supervisorID,
		Reason:        "Zaległe zamówienie klienta",
		WorkDate:      workDate,
		WorkStartTime: &start,
		WorkEndTime:   &end,
	}
	if rand.Intn(2) == 0 {
		in.Kind = domain.KindSubmission
	}
	if !in.Payment {
		dayOff := workDate.AddDate(0, 0, 7)
		in.ScheduledDayOff = &dayOff
	}

	return in
}

// Passthrough 在没有 redis 的环境下直接读取数据库，供种子数据脚本使用
type Passthrough struct {
	Store interface {
		ListOvertimeRequests(filter domain.OvertimeFilter) ([]*domain.OvertimeRequest, error)
	}
}

func (p Passthrough) ListOvertimeRequests(filter domain.OvertimeFilter) ([]*domain.OvertimeRequest, error) {
	return p.Store.ListOvertimeRequests(filter)
}

func (p Passthrough) Invalidate() error { return nil }

// Silent 丢弃所有通知，避免种子数据触发真实邮件
type Silent struct{}

func (Silent) Notify(kind domain.MailKind, recipient *domain.User, data any) {}
