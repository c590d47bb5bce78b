package export

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/bruss-it/overtime-manager/backend/internal/domain"
	"github.com/xuri/excelize/v2"
)

// Header 是导出文件的固定列顺序，调整顺序会影响下游的工资核算表格
var Header = []string{
	"internal_id",
	"kind",
	"status",
	"requester",
	"supervisor",
	"department",
	"work_date",
	"hours",
	"payment",
	"scheduled_day_off",
	"work_start_time",
	"work_end_time",
	"reason",
	"submitted_at",
	"approved_at",
	"accounted_at",
}

const SheetName = "overtime"

func Row(o *domain.OvertimeRequest, loc *time.Location) []string {
	return []string{
		o.InternalID,
		string(o.Kind),
		string(o.Status),
		o.RequesterName,
		o.SupervisorName,
		o.Department,
		o.WorkDate.Format(time.DateOnly),
		strconv.FormatFloat(o.Hours, 'f', -1, 64),
		strconv.FormatBool(o.Payment),
		formatDate(o.ScheduledDayOff),
		formatTime(o.WorkStartTime, loc),
		formatTime(o.WorkEndTime, loc),
		o.Reason,
		o.SubmittedAt.In(loc).Format(time.DateTime),
		formatTime(o.ApprovedAt, loc),
		formatTime(o.AccountedAt, loc),
	}
}

// WriteCSV 按 RFC 4180 写出：含逗号、引号或换行的字段用双引号包裹，内部引号加倍
func WriteCSV(w io.Writer, requests []*domain.OvertimeRequest, loc *time.Location) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(Header); err != nil {
		return err
	}
	for _, o := range requests {
		if err := writer.Write(Row(o, loc)); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// XLSX 生成与 CSV 列相同的 Excel 文件，以 bytes.Buffer 返回
func XLSX(requests []*domain.OvertimeRequest, loc *time.Location) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(SheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, err
	}

	for i, title := range Header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, title); err != nil {
			return nil, err
		}
	}
	lastCol, _ := excelize.ColumnNumberToName(len(Header))
	if err := f.SetCellStyle(SheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(SheetName, "A", lastCol, 16); err != nil {
		return nil, err
	}

	for r, o := range requests {
		for c, value := range Row(o, loc) {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			var v any = value
			// 小时数写成数字，方便在表格里直接求和
			if Header[c] == "hours" {
				v = o.Hours
			}
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return nil, err
			}
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}

func formatTime(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	return t.In(loc).Format(time.DateTime)
}
