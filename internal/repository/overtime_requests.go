package repository

import (
	"fmt"
	"strings"
	"time"

	"github.com/bruss-it/overtime-manager/backend/internal/domain"
	"github.com/google/uuid"
)

const overtimeColumns = `
	o.id, o.internal_id, o.kind, o.status, o.hours, o.payment, o.supervisor_id, o.requested_by,
	o.department, o.reason, o.work_date, o.scheduled_day_off, o.work_start_time, o.work_end_time,
	o.submitted_at, o.edited_at, o.edited_by, o.approved_at, o.approved_by,
	o.rejected_at, o.rejected_by, o.rejection_reason, o.cancelled_at, o.cancelled_by, o.cancellation_reason,
	o.accounted_at, o.accounted_by, o.version
`

func overtimeDst(o *domain.OvertimeRequest) []any {
	return []any{
		&o.ID, &o.InternalID, &o.Kind, &o.Status, &o.Hours, &o.Payment, &o.SupervisorID, &o.RequestedBy,
		&o.Department, &o.Reason, &o.WorkDate, &o.ScheduledDayOff, &o.WorkStartTime, &o.WorkEndTime,
		&o.SubmittedAt, &o.EditedAt, &o.EditedBy, &o.ApprovedAt, &o.ApprovedBy,
		&o.RejectedAt, &o.RejectedBy, &o.RejectionReason, &o.CancelledAt, &o.CancelledBy, &o.CancellationReason,
		&o.AccountedAt, &o.AccountedBy, &o.Version,
	}
}

func (r *Repository) CreateOvertimeRequest(o *domain.OvertimeRequest) error {
	query := `
		INSERT INTO overtime_requests (
			id, internal_id, kind, status, hours, payment, supervisor_id, requested_by,
			department, reason, work_date, scheduled_day_off, work_start_time, work_end_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING submitted_at, version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	args := []any{
		o.ID, o.InternalID, o.Kind, o.Status, o.Hours, o.Payment, o.SupervisorID, o.RequestedBy,
		o.Department, o.Reason, o.WorkDate, o.ScheduledDayOff, o.WorkStartTime, o.WorkEndTime,
	}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&o.SubmittedAt, &o.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetOvertimeRequestByID(id uuid.UUID) (*domain.OvertimeRequest, error) {
	query := `SELECT ` + overtimeColumns + ` FROM overtime_requests o WHERE o.id = $1`

	ctx, cancel := r.queryContext()
	defer cancel()

	o := &domain.OvertimeRequest{}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(overtimeDst(o)...); err != nil {
		return nil, err
	}

	return o, nil
}

// buildOvertimeFilter 根据过滤条件拼接 WHERE 子句，参数全部走占位符
func buildOvertimeFilter(f domain.OvertimeFilter) (string, []any) {
	conditions := []string{}
	args := []any{}

	add := func(cond string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if len(f.Statuses) > 0 {
		placeholders := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			args = append(args, s)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, "o.status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if f.Kind != "" {
		add("o.kind = $%d", f.Kind)
	}
	if f.From != nil {
		add("o.work_date >= $%d", *f.From)
	}
	if f.To != nil {
		add("o.work_date <= $%d", *f.To)
	}
	if f.RequestedBy != nil {
		add("o.requested_by = $%d", *f.RequestedBy)
	}
	if f.SupervisorID != nil {
		add("o.supervisor_id = $%d", *f.SupervisorID)
	}
	if f.Department != "" {
		add("o.department = $%d", f.Department)
	}
	if f.ScopeUserID != nil {
		args = append(args, *f.ScopeUserID)
		conditions = append(conditions, fmt.Sprintf("(o.requested_by = $%d OR o.supervisor_id = $%d)", len(args), len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

func (r *Repository) ListOvertimeRequests(filter domain.OvertimeFilter) ([]*domain.OvertimeRequest, error) {
	where, args := buildOvertimeFilter(filter)
	query := `
		SELECT ` + overtimeColumns + `, requester.full_name, supervisor.full_name
		FROM overtime_requests o
		JOIN users requester ON requester.id = o.requested_by
		JOIN users supervisor ON supervisor.id = o.supervisor_id
		` + where + `
		ORDER BY o.work_date DESC, o.submitted_at DESC
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := make([]*domain.OvertimeRequest, 0)
	for rows.Next() {
		o := &domain.OvertimeRequest{}
		dst := append(overtimeDst(o), &o.RequesterName, &o.SupervisorName)
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		requests = append(requests, o)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return requests, nil
}

// TransitionOvertimeRequest 仅当记录仍处于 from 状态时才写入新的状态，
// 没有匹配到记录时返回 sql.ErrNoRows，由调用方判断是不存在还是被并发修改
func (r *Repository) TransitionOvertimeRequest(o *domain.OvertimeRequest, from domain.Status) error {
	query := `
		UPDATE overtime_requests
		SET
			status = $1,
			approved_at = $2,
			approved_by = $3,
			rejected_at = $4,
			rejected_by = $5,
			rejection_reason = $6,
			cancelled_at = $7,
			cancelled_by = $8,
			cancellation_reason = $9,
			accounted_at = $10,
			accounted_by = $11,
			version = version + 1
		WHERE id = $12 AND status = $13
		RETURNING version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	args := []any{
		o.Status,
		o.ApprovedAt, o.ApprovedBy,
		o.RejectedAt, o.RejectedBy, o.RejectionReason,
		o.CancelledAt, o.CancelledBy, o.CancellationReason,
		o.AccountedAt, o.AccountedBy,
		o.ID, from,
	}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&o.Version); err != nil {
		return err
	}

	return nil
}

// UpdateOvertimeRequestFields 写入更正后的字段，状态不变；
// 已结算的记录、状态已变化或版本号不一致时都不会匹配
func (r *Repository) UpdateOvertimeRequestFields(o *domain.OvertimeRequest) error {
	query := `
		UPDATE overtime_requests
		SET
			hours = $1,
			payment = $2,
			supervisor_id = $3,
			reason = $4,
			work_date = $5,
			scheduled_day_off = $6,
			work_start_time = $7,
			work_end_time = $8,
			edited_at = $9,
			edited_by = $10,
			version = version + 1
		WHERE id = $11 AND version = $12 AND status = $13 AND status <> 'accounted'
		RETURNING version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	args := []any{
		o.Hours, o.Payment, o.SupervisorID, o.Reason, o.WorkDate,
		o.ScheduledDayOff, o.WorkStartTime, o.WorkEndTime, o.EditedAt, o.EditedBy,
		o.ID, o.Version, o.Status,
	}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&o.Version); err != nil {
		return err
	}

	return nil
}

// SumApprovedPaymentHours 汇总某主管在 [from, to) 内已批准（含已结算）的付费加班小时数，两种记录类型都计入
func (r *Repository) SumApprovedPaymentHours(supervisorID int64, from, to time.Time) (float64, error) {
	query := `
		SELECT COALESCE(SUM(hours), 0)
		FROM overtime_requests
		WHERE supervisor_id = $1
		AND payment
		AND status IN ('approved', 'accounted')
		AND approved_at >= $2 AND approved_at < $3
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	var used float64
	if err := r.dbpool.QueryRowContext(ctx, query, supervisorID, from, to).Scan(&used); err != nil {
		return 0, err
	}

	return used, nil
}
