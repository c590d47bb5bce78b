package domain

import (
	"time"
)

type Role string

const (
	RoleEmployee          Role = "employee"
	RoleGroupLeader       Role = "group-leader"
	RoleTeamManager       Role = "team-manager"
	RoleProductionManager Role = "production-manager"
	RoleQualityManager    Role = "quality-manager"
	RoleLogisticsManager  Role = "logistics-manager"
	RolePlantManager      Role = "plant-manager"
	RoleHR                Role = "hr"
	RoleAdmin             Role = "admin"
)

// AllRoles 是系统中唯一合法的角色集合
var AllRoles = []Role{
	RoleEmployee,
	RoleGroupLeader,
	RoleTeamManager,
	RoleProductionManager,
	RoleQualityManager,
	RoleLogisticsManager,
	RolePlantManager,
	RoleHR,
	RoleAdmin,
}

func ParseRole(s string) (Role, bool) {
	for _, r := range AllRoles {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

type User struct {
	ID                int64     `json:"id"`
	Username          string    `json:"username"`
	PasswordHash      string    `json:"-"`
	FullName          string    `json:"fullName"`
	Email             string    `json:"email"`
	Roles             []Role    `json:"roles"`
	Department        string    `json:"department"`
	MonthlyQuotaHours *float64  `json:"monthlyQuotaHours"` // 为空时使用全局默认额度
	IsActive          bool      `json:"isActive"`
	CreatedAt         time.Time `json:"createdAt"`
	Version           int32     `json:"-"`
}

func (u *User) Can(c Capability) bool {
	return Capabilities(u.Roles).Has(c)
}

// QuotaBound 表示审批付费加班时需要受每月额度限制
func (u *User) QuotaBound() bool {
	caps := Capabilities(u.Roles)
	return caps.Has(CapApproveWithinQuota) && !caps.Has(CapApproveUnlimited)
}

func (u *User) Language() Language {
	for _, r := range u.Roles {
		if r != RoleEmployee {
			return LanguageEnglish
		}
	}
	return LanguagePolish
}
