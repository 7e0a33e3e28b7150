package reports

import (
	"bytes"
	"fmt"
	"sort"

	"smrms-be/services"

	"github.com/xuri/excelize/v2"
)

const (
	SheetDashboard = "Dashboard"
	SheetMonthly   = "Monthly"

	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// StatsWorkbook renders the dashboard snapshot and the monthly series as an
// xlsx file.
func StatsWorkbook(d *services.Dashboard, series []services.MonthlyCount) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetDashboard); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetMonthly); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	w := &sheetWriter{f: f, header: header}
	w.dashboard(d)
	w.monthly(series)
	if w.err != nil {
		return nil, w.err
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// sheetWriter keeps the first error so row writes read top to bottom.
type sheetWriter struct {
	f      *excelize.File
	header int
	err    error
}

func (w *sheetWriter) row(sheet string, row int, styled bool, values ...any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		w.err = err
		return
	}
	if err := w.f.SetSheetRow(sheet, cell, &values); err != nil {
		w.err = fmt.Errorf("%s row %d: %w", sheet, row, err)
		return
	}
	if styled {
		end, _ := excelize.CoordinatesToCellName(len(values), row)
		if err := w.f.SetCellStyle(sheet, cell, end, w.header); err != nil {
			w.err = fmt.Errorf("%s style row %d: %w", sheet, row, err)
		}
	}
}

func (w *sheetWriter) dashboard(d *services.Dashboard) {
	r := 1
	w.row(SheetDashboard, r, true, "Metric", "Value")
	r++
	w.row(SheetDashboard, r, false, "Total issues", d.TotalAllTime)
	r++
	w.row(SheetDashboard, r, false, "Issues this month", d.TotalThisMonth)
	r++
	w.row(SheetDashboard, r, false, "Generated at", d.GeneratedAt.Format("2006-01-02 15:04:05"))
	r += 2

	w.row(SheetDashboard, r, true, "Status", "Count")
	for _, k := range sortedKeys(d.StatusSummary) {
		r++
		w.row(SheetDashboard, r, false, k, d.StatusSummary[k])
	}
	r += 2

	w.row(SheetDashboard, r, true, "Priority", "Count")
	for _, k := range sortedKeys(d.PrioritySummary) {
		r++
		w.row(SheetDashboard, r, false, k, d.PrioritySummary[k])
	}
	r += 2

	w.row(SheetDashboard, r, true, "Building code", "Building", "Total", "Active", "Resolved")
	for _, b := range d.IssuesByBuilding {
		r++
		w.row(SheetDashboard, r, false, b.BuildingCode, b.BuildingName, b.Total, b.Active, b.Resolved)
	}
	if w.err == nil {
		w.err = w.f.SetColWidth(SheetDashboard, "A", "B", 24)
	}
}

func (w *sheetWriter) monthly(series []services.MonthlyCount) {
	w.row(SheetMonthly, 1, true, "Month", "Issues")
	for i, m := range series {
		w.row(SheetMonthly, i+2, false, m.Month, m.Count)
	}
	if w.err == nil {
		w.err = w.f.SetPanes(SheetMonthly, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		})
	}
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
