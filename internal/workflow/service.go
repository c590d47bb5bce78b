// 状态变更都以条件更新写入，没有匹配到记录时重新读取以区分不存在与并发修改。
// 写入提交之后才使缓存失效并发送通知
package workflow

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bruss-it/overtime-manager/backend/internal/apperror"
	"github.com/bruss-it/overtime-manager/backend/internal/domain"
	"github.com/bruss-it/overtime-manager/backend/internal/utils"
	"github.com/google/uuid"
)

type Store interface {
	GetUserByID(id int64) (*domain.User, error)
	NextSequence(name string, year int) (int64, error)
	CreateOvertimeRequest(o *domain.OvertimeRequest) error
	GetOvertimeRequestByID(id uuid.UUID) (*domain.OvertimeRequest, error)
	TransitionOvertimeRequest(o *domain.OvertimeRequest, from domain.Status) error
	UpdateOvertimeRequestFields(o *domain.OvertimeRequest) error
}

// ListCache 提供带缓存的列表查询，写入成功后通过 Invalidate 使所有列表缓存失效
type ListCache interface {
	ListOvertimeRequests(filter domain.OvertimeFilter) ([]*domain.OvertimeRequest, error)
	Invalidate() error
}

type QuotaChecker interface {
	Usage(supervisor *domain.User) (domain.QuotaUsage, error)
	CanApprove(supervisor *domain.User, hours float64) (bool, domain.QuotaUsage, error)
}

type Notifier interface {
	Notify(kind domain.MailKind, recipient *domain.User, data any)
}

type Options struct {
	AppURL   string
	Location *time.Location
	Logger   *slog.Logger
}

type Service struct {
	store    Store
	lists    ListCache
	quota    QuotaChecker
	notifier Notifier
	appURL   string
	location *time.Location
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(store Store, lists ListCache, quota QuotaChecker, notifier Notifier, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		store:    store,
		lists:    lists,
		quota:    quota,
		notifier: notifier,
		appURL:   strings.TrimRight(opts.AppURL, "/"),
		location: opts.Location,
		logger:   opts.Logger,
		now:      time.Now,
	}
}

// WithClock 替换时间来源，只在测试中使用
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type CreateInput struct {
	Kind            domain.Kind
	Hours           float64
	Payment         bool
	SupervisorID    int64
	Reason          string
	WorkDate        time.Time
	ScheduledDayOff *time.Time
	WorkStartTime   *time.Time
	WorkEndTime     *time.Time
	// Draft 为 true 时保存为草稿，否则直接提交审批
	Draft bool
}

func (s *Service) Create(actor *domain.User, in CreateInput) (*domain.OvertimeRequest, error) {
	if !actor.Can(domain.CapCreateRequest) {
		return nil, apperror.ErrForbidden
	}
	if in.Kind != domain.KindOrder && in.Kind != domain.KindSubmission {
		return nil, apperror.InvalidInput("unknown request kind")
	}

	supervisor, err := s.loadSupervisor(in.SupervisorID)
	if err != nil {
		return nil, err
	}

	o := &domain.OvertimeRequest{
		ID:              uuid.New(),
		Kind:            in.Kind,
		Status:          domain.StatusPending,
		Hours:           in.Hours,
		Payment:         in.Payment,
		SupervisorID:    in.SupervisorID,
		RequestedBy:     actor.ID,
		Department:      actor.Department,
		Reason:          in.Reason,
		WorkDate:        in.WorkDate,
		ScheduledDayOff: in.ScheduledDayOff,
		WorkStartTime:   in.WorkStartTime,
		WorkEndTime:     in.WorkEndTime,
	}
	if in.Draft {
		o.Status = domain.StatusDraft
	}
	if err := utils.ValidateOvertimeSchedule(o); err != nil {
		return nil, apperror.InvalidInput(err.Error())
	}

	year := s.now().In(s.location).Year()
	seq, err := s.store.NextSequence(in.Kind.SequenceName(), year)
	if err != nil {
		s.logger.Error("无法获取序号", "kind", in.Kind, "error", err)
		return nil, apperror.Upstream(err)
	}
	o.InternalID = domain.FormatInternalID(seq, year)

	if err := s.store.CreateOvertimeRequest(o); err != nil {
		s.logger.Error("无法创建加班单", "internal_id", o.InternalID, "error", err)
		return nil, apperror.Upstream(err)
	}

	s.logger.Info("加班单已创建", "id", o.ID, "internal_id", o.InternalID, "status", o.Status, "actor", actor.ID)
	s.invalidate()

	if o.Status == domain.StatusPending {
		s.notify(domain.MailOvertimePending, supervisor, o, actor, "")
	}

	return o, nil
}

func (s *Service) Get(actor *domain.User, id uuid.UUID) (*domain.OvertimeRequest, error) {
	o, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if !CanView(actor, o) {
		return nil, apperror.ErrForbidden
	}
	return o, nil
}

// List 按角色限定可见范围：没有 view_all 能力的用户只能看到自己提交或负责审批的记录
func (s *Service) List(actor *domain.User, filter domain.OvertimeFilter) ([]*domain.OvertimeRequest, error) {
	if !actor.Can(domain.CapViewAll) {
		filter.ScopeUserID = &actor.ID
	}

	requests, err := s.lists.ListOvertimeRequests(filter)
	if err != nil {
		s.logger.Error("无法获取加班单列表", "error", err)
		return nil, apperror.Upstream(err)
	}
	return requests, nil
}

func (s *Service) Submit(actor *domain.User, id uuid.UUID) (*domain.OvertimeRequest, error) {
	o, err := s.prepare(actor, id, ActionSubmit)
	if err != nil {
		return nil, err
	}

	// 草稿可能在保存后被改过，提交前重新检查
	if err := utils.ValidateOvertimeSchedule(o); err != nil {
		return nil, apperror.InvalidInput(err.Error())
	}
	supervisor, err := s.loadSupervisor(o.SupervisorID)
	if err != nil {
		return nil, err
	}

	if err := s.transition(o, ActionSubmit); err != nil {
		return nil, err
	}

	s.notify(domain.MailOvertimePending, supervisor, o, actor, "")
	return o, nil
}

func (s *Service) Approve(actor *domain.User, id uuid.UUID) (*domain.OvertimeRequest, error) {
	o, err := s.prepare(actor, id, ActionApprove)
	if err != nil {
		return nil, err
	}

	// 额度在决策时从存储重新计算，不信任任何客户端传入的数据
	if o.Payment && actor.QuotaBound() {
		ok, usage, err := s.quota.CanApprove(actor, o.Hours)
		if err != nil {
			s.logger.Error("无法计算审批额度", "supervisor", actor.ID, "error", err)
			return nil, apperror.Upstream(err)
		}
		if !ok {
			s.logger.Info("审批超出月度额度", "id", o.ID, "supervisor", actor.ID, "used", usage.Used, "hours", o.Hours)
			return nil, quotaExceeded(usage)
		}
	}

	now := s.now()
	o.ApprovedAt = &now
	o.ApprovedBy = &actor.ID

	if err := s.transition(o, ActionApprove); err != nil {
		return nil, err
	}

	s.notifyRequester(domain.MailOvertimeApproved, o, actor, "")
	return o, nil
}

func (s *Service) Reject(actor *domain.User, id uuid.UUID, reason string) (*domain.OvertimeRequest, error) {
	o, err := s.prepare(actor, id, ActionReject)
	if err != nil {
		return nil, err
	}

	now := s.now()
	o.RejectedAt = &now
	o.RejectedBy = &actor.ID
	o.RejectionReason = optional(reason)

	if err := s.transition(o, ActionReject); err != nil {
		return nil, err
	}

	s.notifyRequester(domain.MailOvertimeRejected, o, actor, reason)
	return o, nil
}

func (s *Service) Cancel(actor *domain.User, id uuid.UUID, reason string) (*domain.OvertimeRequest, error) {
	o, err := s.prepare(actor, id, ActionCancel)
	if err != nil {
		return nil, err
	}

	now := s.now()
	o.CancelledAt = &now
	o.CancelledBy = &actor.ID
	o.CancellationReason = optional(reason)

	if err := s.transition(o, ActionCancel); err != nil {
		return nil, err
	}

	if !o.IsAuthor(actor.ID) {
		s.notifyRequester(domain.MailOvertimeCancelled, o, actor, reason)
	}
	return o, nil
}

// Correct 修改记录字段但不改变状态
func (s *Service) Correct(actor *domain.User, id uuid.UUID, patch domain.OvertimePatch) (*domain.OvertimeRequest, error) {
	o, err := s.prepare(actor, id, ActionCorrect)
	if err != nil {
		return nil, err
	}

	previousSupervisor := o.SupervisorID
	patch.Apply(o)

	if err := utils.ValidateOvertimeSchedule(o); err != nil {
		return nil, apperror.InvalidInput(err.Error())
	}
	if o.SupervisorID != previousSupervisor {
		if _, err := s.loadSupervisor(o.SupervisorID); err != nil {
			return nil, err
		}
	}

	now := s.now()
	o.EditedAt = &now
	o.EditedBy = &actor.ID

	if err := s.store.UpdateOvertimeRequestFields(o); err != nil {
		return nil, s.resolveMiss(o.ID, err)
	}

	s.logger.Info("加班单已更正", "id", o.ID, "internal_id", o.InternalID, "actor", actor.ID)
	s.invalidate()

	if !o.IsAuthor(actor.ID) {
		s.notifyRequester(domain.MailOvertimeCorrected, o, actor, "")
	}
	return o, nil
}

func (s *Service) Account(actor *domain.User, id uuid.UUID) (*domain.OvertimeRequest, error) {
	o, err := s.prepare(actor, id, ActionAccount)
	if err != nil {
		return nil, err
	}

	now := s.now()
	o.AccountedAt = &now
	o.AccountedBy = &actor.ID

	if err := s.transition(o, ActionAccount); err != nil {
		return nil, err
	}

	return o, nil
}

func (s *Service) Quota(actor *domain.User) (domain.QuotaUsage, error) {
	usage, err := s.quota.Usage(actor)
	if err != nil {
		s.logger.Error("无法计算审批额度", "supervisor", actor.ID, "error", err)
		return domain.QuotaUsage{}, apperror.Upstream(err)
	}
	return usage, nil
}

func (s *Service) load(id uuid.UUID) (*domain.OvertimeRequest, error) {
	o, err := s.store.GetOvertimeRequestByID(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrRequestNotFound
		}
		s.logger.Error("无法获取加班单", "id", id, "error", err)
		return nil, apperror.Upstream(err)
	}
	return o, nil
}

func (s *Service) prepare(actor *domain.User, id uuid.UUID, action Action) (*domain.OvertimeRequest, error) {
	o, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, o, action); err != nil {
		s.logger.Info("拒绝状态变更", "id", o.ID, "action", action, "status", o.Status, "actor", actor.ID, "reason", err.Error())
		return nil, err
	}
	return o, nil
}

func (s *Service) loadSupervisor(id int64) (*domain.User, error) {
	supervisor, err := s.store.GetUserByID(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.InvalidInput("supervisor not found")
		}
		return nil, apperror.Upstream(err)
	}
	if err := utils.ValidateSupervisor(supervisor); err != nil {
		return nil, apperror.InvalidInput(err.Error())
	}
	return supervisor, nil
}

func (s *Service) transition(o *domain.OvertimeRequest, action Action) error {
	from := o.Status
	o.Status = targetStatus[action]

	if err := s.store.TransitionOvertimeRequest(o, from); err != nil {
		o.Status = from
		return s.resolveMiss(o.ID, err)
	}

	s.logger.Info("加班单状态已变更", "id", o.ID, "internal_id", o.InternalID, "from", from, "to", o.Status)
	s.invalidate()
	return nil
}

// resolveMiss 在条件更新没有匹配到记录时区分记录不存在与被并发修改
func (s *Service) resolveMiss(id uuid.UUID, err error) error {
	if !errors.Is(err, sql.ErrNoRows) {
		s.logger.Error("无法更新加班单", "id", id, "error", err)
		return apperror.Upstream(err)
	}

	if _, err := s.store.GetOvertimeRequestByID(id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.ErrRequestNotFound
		}
		return apperror.Upstream(err)
	}

	s.logger.Info("加班单已被其他人修改", "id", id)
	return apperror.ErrConflict
}

func (s *Service) invalidate() {
	if s.lists == nil {
		return
	}
	if err := s.lists.Invalidate(); err != nil {
		s.logger.Warn("无法使列表缓存失效", "error", err)
	}
}

func (s *Service) notifyRequester(kind domain.MailKind, o *domain.OvertimeRequest, actor *domain.User, reason string) {
	requester, err := s.store.GetUserByID(o.RequestedBy)
	if err != nil {
		s.logger.Error("无法获取申请人，跳过通知", "id", o.ID, "requested_by", o.RequestedBy, "error", err)
		return
	}
	s.notify(kind, requester, o, actor, reason)
}

func (s *Service) notify(kind domain.MailKind, recipient *domain.User, o *domain.OvertimeRequest, actor *domain.User, reason string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(kind, recipient, domain.OvertimeMailData{
		RecipientName: recipient.FullName,
		InternalID:    o.InternalID,
		Hours:         o.Hours,
		WorkDate:      o.WorkDate.Format(time.DateOnly),
		ActorName:     actor.FullName,
		Reason:        reason,
		Link:          fmt.Sprintf("%s/overtime/%s", s.appURL, o.ID),
	})
}

func quotaExceeded(usage domain.QuotaUsage) error {
	return &apperror.Error{
		Kind:    apperror.ErrQuotaExceeded.Kind,
		Reason:  apperror.ErrQuotaExceeded.Reason,
		Message: fmt.Sprintf("monthly overtime quota exceeded, %.1f of %.1f hours remaining", usage.Remaining, usage.Limit),
	}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
