package workflow

import (
	"slices"

	"github.com/bruss-it/overtime-manager/backend/internal/apperror"
	"github.com/bruss-it/overtime-manager/backend/internal/domain"
)

type Action string

const (
	ActionSubmit  Action = "submit"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionCancel  Action = "cancel"
	ActionCorrect Action = "correct"
	ActionAccount Action = "account"
)

// 除更正以外，每个操作对应的目标状态
var targetStatus = map[Action]domain.Status{
	ActionSubmit:  domain.StatusPending,
	ActionApprove: domain.StatusApproved,
	ActionReject:  domain.StatusRejected,
	ActionCancel:  domain.StatusCancelled,
	ActionAccount: domain.StatusAccounted,
}

var allButAccounted = []domain.Status{
	domain.StatusDraft,
	domain.StatusPending,
	domain.StatusApproved,
	domain.StatusRejected,
	domain.StatusCancelled,
}

// allowedFrom 返回 actor 对记录执行 action 时允许的起始状态。
// actor 不具备执行该操作的身份时返回 Unauthorized 类错误。
func allowedFrom(actor *domain.User, o *domain.OvertimeRequest, action Action) ([]domain.Status, error) {
	caps := domain.Capabilities(actor.Roles)
	author := o.IsAuthor(actor.ID)
	admin := caps.Has(domain.CapAdminister)

	switch action {
	case ActionSubmit:
		if !author {
			return nil, apperror.ErrNotAuthor
		}
		return []domain.Status{domain.StatusDraft}, nil

	case ActionApprove, ActionReject:
		if !caps.CanApprove() {
			return nil, apperror.ErrForbidden
		}
		// 受额度限制的审批人只能处理自己负责的记录
		if !caps.Has(domain.CapApproveUnlimited) && o.SupervisorID != actor.ID {
			return nil, apperror.ErrNotSupervisor
		}
		return []domain.Status{domain.StatusPending}, nil

	case ActionCancel:
		if admin {
			return []domain.Status{domain.StatusDraft, domain.StatusPending, domain.StatusApproved, domain.StatusRejected}, nil
		}
		if !author {
			return nil, apperror.ErrNotAuthor
		}
		return []domain.Status{domain.StatusPending}, nil

	case ActionCorrect:
		if admin {
			return allButAccounted, nil
		}
		from := []domain.Status{}
		if author {
			from = append(from, domain.StatusDraft, domain.StatusPending)
		}
		if caps.Has(domain.CapCorrectOpen) {
			from = append(from, domain.StatusPending, domain.StatusApproved)
		}
		if len(from) == 0 {
			return nil, apperror.ErrForbidden
		}
		return from, nil

	case ActionAccount:
		if !admin {
			return nil, apperror.ErrForbidden
		}
		return []domain.Status{domain.StatusApproved}, nil
	}

	return nil, apperror.ErrInvalidTransition
}

var resolved = []domain.Status{domain.StatusApproved, domain.StatusRejected, domain.StatusCancelled}

// Authorize 判断 actor 能否在记录当前状态下执行 action。
// 已结算的记录对任何人、任何操作都不可变。
func Authorize(actor *domain.User, o *domain.OvertimeRequest, action Action) error {
	from, err := allowedFrom(actor, o, action)
	if err != nil {
		return err
	}
	if o.Status == domain.StatusAccounted {
		return apperror.ErrAccounted
	}
	// 审批人看到的记录已被他人处理，按并发冲突返回
	if (action == ActionApprove || action == ActionReject) && slices.Contains(resolved, o.Status) {
		return apperror.ErrConflict
	}
	if !slices.Contains(from, o.Status) {
		return apperror.ErrInvalidTransition
	}
	return nil
}

// CanView 判断 actor 是否可以查看该记录
func CanView(actor *domain.User, o *domain.OvertimeRequest) bool {
	if actor.Can(domain.CapViewAll) {
		return true
	}
	return o.IsAuthor(actor.ID) || o.SupervisorID == actor.ID
}
