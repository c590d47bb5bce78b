package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bruss-it/overtime-manager/backend/internal/domain"
	"github.com/bruss-it/overtime-manager/backend/internal/export"
	"github.com/bruss-it/overtime-manager/backend/internal/workflow"
)

func parseDate(s string) (time.Time, error) {
	return time.Parse(time.DateOnly, s)
}

func parseOptionalDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := parseDate(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// parseOvertimeFilter 解析列表与导出接口共用的查询参数
func parseOvertimeFilter(r *http.Request) (domain.OvertimeFilter, error) {
	query := r.URL.Query()
	filter := domain.OvertimeFilter{
		Kind:       domain.Kind(query.Get("kind")),
		Department: query.Get("department"),
	}

	for _, value := range query["status"] {
		for _, s := range strings.Split(value, ",") {
			status := domain.Status(strings.TrimSpace(s))
			if status == "" {
				continue
			}
			if !status.Valid() {
				return filter, fmt.Errorf("unknown status %q", s)
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}

	if filter.Kind != "" && filter.Kind != domain.KindOrder && filter.Kind != domain.KindSubmission {
		return filter, fmt.Errorf("unknown kind %q", filter.Kind)
	}

	for name, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		if v := query.Get(name); v != "" {
			t, err := parseDate(v)
			if err != nil {
				return filter, fmt.Errorf("%s must be a date in the form YYYY-MM-DD", name)
			}
			*dst = &t
		}
	}

	for name, dst := range map[string]**int64{"requestedBy": &filter.RequestedBy, "supervisor": &filter.SupervisorID} {
		if v := query.Get(name); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return filter, fmt.Errorf("%s must be a user id", name)
			}
			*dst = &id
		}
	}

	return filter, nil
}

func (h *Handler) ListOvertimeRequests(w http.ResponseWriter, r *http.Request) {
	filter, err := parseOvertimeFilter(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	requests, err := h.overtime.List(actorFrom(r), filter)
	if err != nil {
		h.appError(w, r, err)
		return
	}

	h.successResponse(w, r, "ok", requests)
}

func (h *Handler) CreateOvertimeRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind            string     `json:"kind" validate:"required,oneof=order submission"`
		Hours           float64    `json:"hours" validate:"required"`
		Payment         bool       `json:"payment"`
		SupervisorID    int64      `json:"supervisorId" validate:"required"`
		Reason          string     `json:"reason" validate:"max=2000"`
		WorkDate        string     `json:"workDate" validate:"required,datetime=2006-01-02"`
		ScheduledDayOff *string    `json:"scheduledDayOff" validate:"omitempty,datetime=2006-01-02"`
		WorkStartTime   *time.Time `json:"workStartTime"`
		WorkEndTime     *time.Time `json:"workEndTime"`
		Draft           bool       `json:"draft"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 格式已经由 validator 检查过
	workDate, _ := parseDate(req.WorkDate)
	dayOff, _ := parseOptionalDate(req.ScheduledDayOff)

	o, err := h.overtime.Create(actorFrom(r), workflow.CreateInput{
		Kind:            domain.Kind(req.Kind),
		Hours:           req.Hours,
		Payment:         req.Payment,
		SupervisorID:    req.SupervisorID,
		Reason:          req.Reason,
		WorkDate:        workDate,
		ScheduledDayOff: dayOff,
		WorkStartTime:   req.WorkStartTime,
		WorkEndTime:     req.WorkEndTime,
		Draft:           req.Draft,
	})
	if err != nil {
		h.appError(w, r, err)
		return
	}

	h.successResponse(w, r, "overtime request created", o)
}

func (h *Handler) GetOvertimeRequest(w http.ResponseWriter, r *http.Request) {
	o, err := h.overtime.Get(actorFrom(r), overtimeIDFrom(r))
	if err != nil {
		h.appError(w, r, err)
		return
	}

	h.successResponse(w, r, "ok", o)
}

func (h *Handler) CorrectOvertimeRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Hours        *float64 `json:"hours" validate:"omitempty,ne=0"`
		Payment      *bool    `json:"payment"`
		SupervisorID *int64   `json:"supervisorId" validate:"omitempty,gt=0"`
		Reason       *string  `json:"reason" validate:"omitempty,max=2000"`
		WorkDate     *string  `json:"workDate" validate:"omitempty,datetime=2006-01-02"`
		// 空字符串表示取消已安排的调休日期
		ScheduledDayOff *string    `json:"scheduledDayOff" validate:"omitempty,datetime=2006-01-02"`
		WorkStartTime   *time.Time `json:"workStartTime"`
		WorkEndTime     *time.Time `json:"workEndTime"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	patch := domain.OvertimePatch{
		Hours:         req.Hours,
		Payment:       req.Payment,
		SupervisorID:  req.SupervisorID,
		Reason:        req.Reason,
		WorkStartTime: req.WorkStartTime,
		WorkEndTime:   req.WorkEndTime,
	}
	patch.WorkDate, _ = parseOptionalDate(req.WorkDate)
	if req.ScheduledDayOff != nil && *req.ScheduledDayOff == "" {
		patch.ClearDayOff = true
	} else {
		patch.ScheduledDayOff, _ = parseOptionalDate(req.ScheduledDayOff)
	}

	o, err := h.overtime.Correct(actorFrom(r), overtimeIDFrom(r), patch)
	if err != nil {
		h.appError(w, r, err)
		return
	}

	h.successResponse(w, r, "overtime request corrected", o)
}

func (h *Handler) SubmitOvertimeRequest(w http.ResponseWriter, r *http.Request) {
	o, err := h.overtime.Submit(actorFrom(r), overtimeIDFrom(r))
	if err != nil {
		h.appError(w, r, err)
		return
	}

	h.successResponse(w, r, "overtime request submitted", o)
}

func (h *Handler) ApproveOvertimeRequest(w http.ResponseWriter, r *http.Request) {
	o, err := h.overtime.Approve(actorFrom(r), overtimeIDFrom(r))
	if err != nil {
		h.appError(w, r, err)
		return
	}

	h.successResponse(w, r, "overtime request approved", o)
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"max=2000"`
}

func (h *Handler) readReason(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req reasonRequest

	if err := h.readOptionalJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return "", false
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return "", false
	}

	return req.Reason, true
}

func (h *Handler) RejectOvertimeRequest(w http.ResponseWriter, r *http.Request) {
	reason, ok := h.readReason(w, r)
	if !ok {
		return
	}

	o, err := h.overtime.Reject(actorFrom(r), overtimeIDFrom(r), reason)
	if err != nil {
		h.appError(w, r, err)
		return
	}

	h.successResponse(w, r, "overtime request rejected", o)
}

func (h *Handler) CancelOvertimeRequest(w http.ResponseWriter, r *http.Request) {
	reason, ok := h.readReason(w, r)
	if !ok {
		return
	}

	o, err := h.overtime.Cancel(actorFrom(r), overtimeIDFrom(r), reason)
	if err != nil {
		h.appError(w, r, err)
		return
	}

	h.successResponse(w, r, "overtime request cancelled", o)
}

func (h *Handler) AccountOvertimeRequest(w http.ResponseWriter, r *http.Request) {
	o, err := h.overtime.Account(actorFrom(r), overtimeIDFrom(r))
	if err != nil {
		h.appError(w, r, err)
		return
	}

	h.successResponse(w, r, "overtime request accounted", o)
}

func (h *Handler) exportRequests(w http.ResponseWriter, r *http.Request) ([]*domain.OvertimeRequest, bool) {
	filter, err := parseOvertimeFilter(r)
	if err != nil {
		h.badRequest(w, r, err)
		return nil, false
	}

	requests, err := h.overtime.List(actorFrom(r), filter)
	if err != nil {
		h.appError(w, r, err)
		return nil, false
	}

	return requests, true
}

func exportFilename(ext string) string {
	return fmt.Sprintf("attachment; filename=\"overtime-%s.%s\"", time.Now().Format(time.DateOnly), ext)
}

func (h *Handler) ExportOvertimeCSV(w http.ResponseWriter, r *http.Request) {
	requests, ok := h.exportRequests(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", exportFilename("csv"))
	w.WriteHeader(http.StatusOK)

	// 响应头已经写出，这里只能记录错误
	if err := export.WriteCSV(w, requests, h.location); err != nil {
		h.logInternalServerError(r, err)
	}
}

func (h *Handler) ExportOvertimeXLSX(w http.ResponseWriter, r *http.Request) {
	requests, ok := h.exportRequests(w, r)
	if !ok {
		return
	}

	buf, err := export.XLSX(requests, h.location)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", exportFilename("xlsx"))
	w.WriteHeader(http.StatusOK)

	if _, err := buf.WriteTo(w); err != nil {
		h.logInternalServerError(r, err)
	}
}
