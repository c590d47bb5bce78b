package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
	StatusAccounted Status = "accounted"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusApproved, StatusRejected, StatusCancelled, StatusAccounted:
		return true
	}
	return false
}

// Kind 区分个人加班单（由主管下达）与员工提交的加班记录
type Kind string

const (
	KindOrder      Kind = "order"
	KindSubmission Kind = "submission"
)

func (k Kind) SequenceName() string {
	return "overtime_" + string(k)
}

type OvertimeRequest struct {
	ID                 uuid.UUID  `json:"id"`
	InternalID         string     `json:"internalId"`
	Kind               Kind       `json:"kind"`
	Status             Status     `json:"status"`
	Hours              float64    `json:"hours"`
	Payment            bool       `json:"payment"`
	SupervisorID       int64      `json:"supervisorId"`
	RequestedBy        int64      `json:"requestedBy"`
	Department         string     `json:"department"`
	Reason             string     `json:"reason"`
	WorkDate           time.Time  `json:"workDate"`
	ScheduledDayOff    *time.Time `json:"scheduledDayOff"`
	WorkStartTime      *time.Time `json:"workStartTime"`
	WorkEndTime        *time.Time `json:"workEndTime"`
	SubmittedAt        time.Time  `json:"submittedAt"`
	EditedAt           *time.Time `json:"editedAt"`
	EditedBy           *int64     `json:"editedBy"`
	ApprovedAt         *time.Time `json:"approvedAt"`
	ApprovedBy         *int64     `json:"approvedBy"`
	RejectedAt         *time.Time `json:"rejectedAt"`
	RejectedBy         *int64     `json:"rejectedBy"`
	RejectionReason    *string    `json:"rejectionReason"`
	CancelledAt        *time.Time `json:"cancelledAt"`
	CancelledBy        *int64     `json:"cancelledBy"`
	CancellationReason *string    `json:"cancellationReason"`
	AccountedAt        *time.Time `json:"accountedAt"`
	AccountedBy        *int64     `json:"accountedBy"`
	Version            int32      `json:"-"`

	// 仅在列表查询时由连表填充
	RequesterName  string `json:"requesterName,omitempty"`
	SupervisorName string `json:"supervisorName,omitempty"`
}

func (o *OvertimeRequest) IsAuthor(userID int64) bool {
	return o.RequestedBy == userID
}

func FormatInternalID(seq int64, year int) string {
	return fmt.Sprintf("%d/%02d", seq, year%100)
}

// OvertimeFilter 对应列表与导出接口的查询参数
type OvertimeFilter struct {
	Statuses     []Status
	Kind         Kind
	From         *time.Time
	To           *time.Time
	RequestedBy  *int64
	SupervisorID *int64
	Department   string
	// ScopeUserID 不为空时只返回该用户提交或负责审批的记录
	ScopeUserID *int64
}

// OvertimePatch 是更正操作可修改的字段，nil 表示不修改
type OvertimePatch struct {
	Hours           *float64
	Payment         *bool
	SupervisorID    *int64
	Reason          *string
	WorkDate        *time.Time
	ScheduledDayOff *time.Time
	ClearDayOff     bool
	WorkStartTime   *time.Time
	WorkEndTime     *time.Time
}

func (p *OvertimePatch) Apply(o *OvertimeRequest) {
	if p.Hours != nil {
		o.Hours = *p.Hours
	}
	if p.Payment != nil {
		o.Payment = *p.Payment
	}
	if p.SupervisorID != nil {
		o.SupervisorID = *p.SupervisorID
	}
	if p.Reason != nil {
		o.Reason = *p.Reason
	}
	if p.WorkDate != nil {
		o.WorkDate = *p.WorkDate
	}
	if p.ClearDayOff {
		o.ScheduledDayOff = nil
	}
	if p.ScheduledDayOff != nil {
		o.ScheduledDayOff = p.ScheduledDayOff
	}
	if p.WorkStartTime != nil {
		o.WorkStartTime = p.WorkStartTime
	}
	if p.WorkEndTime != nil {
		o.WorkEndTime = p.WorkEndTime
	}
}

type QuotaUsage struct {
	QuotaBound bool    `json:"quotaBound"`
	Limit      float64 `json:"limit"`
	Used       float64 `json:"used"`
	Remaining  float64 `json:"remaining"`
}
