// 已用额度每次都从数据库重新计算，不做缓存。两个并发的审批可能同时通过检查，这是可以接受的
package quota

import (
	"math"
	"time"

	"github.com/bruss-it/overtime-manager/backend/internal/domain"
)

type UsageStore interface {
	SumApprovedPaymentHours(supervisorID int64, from, to time.Time) (float64, error)
}

type Accountant struct {
	store        UsageStore
	defaultLimit float64
	location     *time.Location
	now          func() time.Time
}

func NewAccountant(store UsageStore, defaultLimit float64, location *time.Location) *Accountant {
	if location == nil {
		location = time.UTC
	}
	return &Accountant{
		store:        store,
		defaultLimit: defaultLimit,
		location:     location,
		now:          time.Now,
	}
}

// WithClock 替换时间来源，只在测试中使用
func (a *Accountant) WithClock(now func() time.Time) *Accountant {
	a.now = now
	return a
}

func (a *Accountant) Limit(supervisor *domain.User) float64 {
	if supervisor.MonthlyQuotaHours != nil {
		return *supervisor.MonthlyQuotaHours
	}
	return a.defaultLimit
}

// MonthWindow 返回当前自然月的起止时间 [from, to)
func (a *Accountant) MonthWindow() (time.Time, time.Time) {
	now := a.now().In(a.location)
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, a.location)
	return from, from.AddDate(0, 1, 0)
}

func (a *Accountant) UsedHours(supervisorID int64) (float64, error) {
	from, to := a.MonthWindow()
	return a.store.SumApprovedPaymentHours(supervisorID, from, to)
}

func (a *Accountant) Usage(supervisor *domain.User) (domain.QuotaUsage, error) {
	usage := domain.QuotaUsage{QuotaBound: supervisor.QuotaBound()}
	if !usage.QuotaBound {
		return usage, nil
	}

	used, err := a.UsedHours(supervisor.ID)
	if err != nil {
		return domain.QuotaUsage{}, err
	}

	usage.Limit = a.Limit(supervisor)
	usage.Used = used
	usage.Remaining = math.Max(0, usage.Limit-used)
	return usage, nil
}

// CanApprove 判断在已用额度基础上再批准 hours 小时是否仍不超过上限。
// 非额度受限的角色（厂长、管理员）总是返回 true。
func (a *Accountant) CanApprove(supervisor *domain.User, hours float64) (bool, domain.QuotaUsage, error) {
	usage, err := a.Usage(supervisor)
	if err != nil {
		return false, domain.QuotaUsage{}, err
	}
	if !usage.QuotaBound {
		return true, usage, nil
	}
	return usage.Used+hours <= usage.Limit, usage, nil
}
