package services

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/OsGift/safawinet-api/internal/models"
	"github.com/OsGift/safawinet-api/internal/rbac"
)

// ErrUnsupportedFormat is returned for export formats other than csv and xlsx
var ErrUnsupportedFormat = errors.New("unsupported export format")

const exportTimeLayout = "2006-01-02 15:04:05"

// ExportFile is a generated download
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders users and audit logs as CSV or XLSX
type ExportService struct {
	now func() time.Time
}

// NewExportService creates a new ExportService
func NewExportService() *ExportService {
	return &ExportService{now: time.Now}
}

// ParseExportFormat defaults to csv when empty
func ParseExportFormat(s string) (models.ExportFormat, error) {
	switch models.ExportFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", models.ExportCSV:
		return models.ExportCSV, nil
	case models.ExportXLSX:
		return models.ExportXLSX, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, s)
}

var userExportHeader = []string{
	"ID", "First Name", "Last Name", "Email", "Phone", "Role", "Admin", "Active",
	"Two-Factor", "Permissions", "Last Login", "Created At",
}

// ExportUsers renders users in the given format
func (s *ExportService) ExportUsers(format models.ExportFormat, users []models.User) (*ExportFile, error) {
	rows := make([][]string, 0, len(users))
	for _, u := range users {
		rows = append(rows, []string{
			u.ID.Hex(),
			u.FirstName,
			u.LastName,
			u.Email,
			u.Phone,
			u.RoleName,
			yesNo(u.IsAdmin),
			yesNo(u.IsActive),
			yesNo(u.TwoFactorEnabled),
			formatPermissions(u.Permissions),
			formatTimePtr(u.LastLoginAt),
			u.CreatedAt.Format(exportTimeLayout),
		})
	}
	return s.render(format, "users", "Users", userExportHeader, rows)
}

var auditExportHeader = []string{
	"ID", "Timestamp", "Action", "Status", "User ID", "User Email", "Target Type", "Target ID",
	"IP Address", "User Agent", "Request ID", "Details",
}

// ExportAuditLogs renders audit entries in the given format
func (s *ExportService) ExportAuditLogs(format models.ExportFormat, logs []models.AuditLog) (*ExportFile, error) {
	rows := make([][]string, 0, len(logs))
	for _, l := range logs {
		userID := ""
		if l.UserID != nil {
			userID = l.UserID.Hex()
		}
		rows = append(rows, []string{
			l.ID.Hex(),
			l.CreatedAt.Format(exportTimeLayout),
			string(l.Action),
			string(l.Status),
			userID,
			l.UserEmail,
			l.TargetType,
			l.TargetID,
			l.IPAddress,
			l.UserAgent,
			l.RequestID,
			formatDetails(l.Details),
		})
	}
	return s.render(format, "audit-logs", "Audit Logs", auditExportHeader, rows)
}

func (s *ExportService) render(format models.ExportFormat, base, sheet string, header []string, rows [][]string) (*ExportFile, error) {
	stamp := s.now().UTC().Format("20060102-150405")
	switch format {
	case models.ExportCSV:
		data, err := exportCSV(header, rows)
		if err != nil {
			return nil, err
		}
		return &ExportFile{Filename: fmt.Sprintf("%s-%s.csv", base, stamp), ContentType: "text/csv; charset=utf-8", Data: data}, nil
	case models.ExportXLSX:
		data, err := exportXLSX(sheet, header, rows)
		if err != nil {
			return nil, err
		}
		return &ExportFile{
			Filename:    fmt.Sprintf("%s-%s.xlsx", base, stamp),
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:        data,
		}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}

func exportCSV(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

func exportXLSX(sheetName string, header []string, rows [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, h := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheetName, name, name, 20); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for r, row := range rows {
		for c, value := range row {
			if value == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return nil, fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	return buf.Bytes(), nil
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(exportTimeLayout)
}

// formatPermissions renders "users:view,edit; audit-logs:view"
func formatPermissions(perms []rbac.Permission) string {
	parts := make([]string, 0, len(perms))
	for _, p := range perms {
		actions := make([]string, len(p.Actions))
		for i, a := range p.Actions {
			actions[i] = string(a)
		}
		parts = append(parts, string(p.Page)+":"+strings.Join(actions, ","))
	}
	return strings.Join(parts, "; ")
}

func formatDetails(details map[string]interface{}) string {
	if len(details) == 0 {
		return ""
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+formatValue(details[k]))
	}
	return strings.Join(parts, " ")
}

func formatValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
