// Package export renders appointments into Excel workbooks.
package export

import (
	"fmt"
	"io"
	"sort"

	"salonbook/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	appointmentsSheet = "Appointments"
	occupancySheet    = "Occupancy"
)

var appointmentHeaders = []string{"ID", "Name", "Phone", "Service", "Date", "Time", "Created"}

// Fill colours for occupancy cells.
const (
	colorFree    = "#FFFFFF"
	colorPartial = "#FFEB9C"
	colorFull    = "#FFC7CE"
	colorHeader  = "#DDEBF7"
)

// Period is the inclusive date range shown in the workbook title.
// Empty bounds are rendered as open-ended.
type Period struct {
	From string
	To   string
}

func (p Period) String() string {
	from, to := p.From, p.To
	if from == "" {
		from = "…"
	}
	if to == "" {
		to = "…"
	}
	return fmt.Sprintf("Period: %s - %s", from, to)
}

// WriteAppointments writes a workbook with an appointment list and a
// date by time occupancy grid. capacity colours full slots.
func WriteAppointments(w io.Writer, period Period, appts []models.Appointment, capacity int) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(appointmentsSheet)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	if err := writeAppointmentList(f, period, appts); err != nil {
		return err
	}

	if _, err := f.NewSheet(occupancySheet); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	if err := writeOccupancy(f, appts, capacity); err != nil {
		return err
	}

	_ = f.DeleteSheet("Sheet1")

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

// FileName is the suggested attachment name for a period.
func FileName(period Period) string {
	if period.From == "" && period.To == "" {
		return "appointments.xlsx"
	}
	return fmt.Sprintf("appointments_%s_to_%s.xlsx", orAll(period.From), orAll(period.To))
}

func orAll(s string) string {
	if s == "" {
		return "all"
	}
	return s
}

func writeAppointmentList(f *excelize.File, period Period, appts []models.Appointment) error {
	_ = f.SetCellValue(appointmentsSheet, "A1", period.String())
	lastCol, _ := excelize.ColumnNumberToName(len(appointmentHeaders))
	_ = f.MergeCell(appointmentsSheet, "A1", lastCol+"1")

	title, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(appointmentsSheet, "A1", "A1", title)

	header, err := headerStyle(f)
	if err != nil {
		return err
	}
	for i, h := range appointmentHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(appointmentsSheet, cell, h)
		_ = f.SetCellStyle(appointmentsSheet, cell, cell, header)
	}

	for i, a := range appts {
		row := i + 3
		values := []any{a.ID, a.Name, a.Phone, a.Service, a.Date, a.Time, a.CreatedAt.Format("2006-01-02 15:04")}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(appointmentsSheet, cell, &values); err != nil {
			return fmt.Errorf("error writing row %d: %w", row, err)
		}
	}

	_ = f.SetColWidth(appointmentsSheet, "A", "A", 38)
	_ = f.SetColWidth(appointmentsSheet, "B", "D", 20)
	_ = f.SetColWidth(appointmentsSheet, "E", "F", 12)
	_ = f.SetColWidth(appointmentsSheet, "G", "G", 18)
	return nil
}

func writeOccupancy(f *excelize.File, appts []models.Appointment, capacity int) error {
	counts := make(map[string]map[string]int)
	timeSet := make(map[string]bool)
	for _, a := range appts {
		if counts[a.Date] == nil {
			counts[a.Date] = make(map[string]int)
		}
		counts[a.Date][a.Time]++
		timeSet[a.Time] = true
	}

	dates := make([]string, 0, len(counts))
	for d := range counts {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	times := make([]string, 0, len(timeSet))
	for t := range timeSet {
		times = append(times, t)
	}
	sort.Strings(times)

	header, err := headerStyle(f)
	if err != nil {
		return err
	}
	_ = f.SetCellValue(occupancySheet, "A1", "Date")
	_ = f.SetCellStyle(occupancySheet, "A1", "A1", header)
	for i, t := range times {
		cell, _ := excelize.CoordinatesToCellName(i+2, 1)
		_ = f.SetCellValue(occupancySheet, cell, t)
		_ = f.SetCellStyle(occupancySheet, cell, cell, header)
	}

	styles := make(map[string]int)
	for _, color := range []string{colorFree, colorPartial, colorFull} {
		id, err := f.NewStyle(&excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "center"},
		})
		if err != nil {
			return fmt.Errorf("error creating style: %w", err)
		}
		styles[color] = id
	}

	for r, d := range dates {
		row := r + 2
		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetCellValue(occupancySheet, cell, d)
		for c, t := range times {
			cell, _ := excelize.CoordinatesToCellName(c+2, row)
			n := counts[d][t]
			_ = f.SetCellValue(occupancySheet, cell, fmt.Sprintf("%d/%d", n, capacity))
			_ = f.SetCellStyle(occupancySheet, cell, cell, styles[cellColor(n, capacity)])
		}
	}

	_ = f.SetColWidth(occupancySheet, "A", "A", 14)
	return nil
}

func cellColor(booked, capacity int) string {
	switch {
	case booked == 0:
		return colorFree
	case booked >= capacity:
		return colorFull
	default:
		return colorPartial
	}
}

func headerStyle(f *excelize.File) (int, error) {
	id, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{colorHeader}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return 0, fmt.Errorf("error creating header style: %w", err)
	}
	return id, nil
}
