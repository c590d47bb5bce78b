package utils

import (
	"errors"
	"fmt"

	"github.com/bruss-it/overtime-manager/backend/internal/domain"
)

// ValidateOvertimeSchedule 检查加班时长以及付费/调休与排期字段之间的约束
func ValidateOvertimeSchedule(o *domain.OvertimeRequest) error {
	if o.Hours == 0 {
		return errors.New("hours must not be zero")
	}

	// 付费加班不需要安排调休，调休加班必须给出调休日期
	if o.Payment && o.ScheduledDayOff != nil {
		return errors.New("a paid overtime request cannot have a scheduled day off")
	}
	if !o.Payment && o.ScheduledDayOff == nil {
		return errors.New("a scheduled day off is required when the overtime is not paid")
	}

	if (o.WorkStartTime == nil) != (o.WorkEndTime == nil) {
		return errors.New("work start and end time must be given together")
	}
	if o.WorkStartTime != nil && !o.WorkEndTime.After(*o.WorkStartTime) {
		return errors.New("work end time must be after the start time")
	}

	if o.WorkDate.IsZero() {
		return errors.New("work date is required")
	}

	return nil
}

// ValidateSupervisor 检查被指定的主管是否可以审批加班
func ValidateSupervisor(supervisor *domain.User) error {
	if !supervisor.IsActive {
		return fmt.Errorf("supervisor %s is not active", supervisor.FullName)
	}
	if !domain.Capabilities(supervisor.Roles).CanApprove() {
		return fmt.Errorf("%s cannot approve overtime requests", supervisor.FullName)
	}
	return nil
}
