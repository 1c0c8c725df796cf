package api

import (
	"bytes"
	"fmt"

	"namelis/internal/models"

	"github.com/xuri/excelize/v2"
)

const exportSheetName = "Rezervacijos"

// bookingsWorkbook renders the booking list as a single-sheet XLSX file:
// a styled header row, one row per booking, newest first as listed.
func bookingsWorkbook(bookings []*models.Booking) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheetName)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headers := []string{"ID", "Namelis", "Data", "Laikas", "Klientas", "El. paštas", "Būsena", "Sukurta"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(exportSheetName, cell, header)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err == nil {
		firstCell, _ := excelize.CoordinatesToCellName(1, 1)
		lastCell, _ := excelize.CoordinatesToCellName(len(headers), 1)
		_ = f.SetCellStyle(exportSheetName, firstCell, lastCell, headerStyle)
	}

	for i, booking := range bookings {
		row := i + 2
		_ = f.SetCellValue(exportSheetName, fmt.Sprintf("A%d", row), booking.ID)
		_ = f.SetCellValue(exportSheetName, fmt.Sprintf("B%d", row), booking.CabinName)
		_ = f.SetCellValue(exportSheetName, fmt.Sprintf("C%d", row), booking.Date)
		_ = f.SetCellValue(exportSheetName, fmt.Sprintf("D%d", row), booking.Time)
		_ = f.SetCellValue(exportSheetName, fmt.Sprintf("E%d", row), booking.FullName)
		_ = f.SetCellValue(exportSheetName, fmt.Sprintf("F%d", row), booking.UserEmail)
		_ = f.SetCellValue(exportSheetName, fmt.Sprintf("G%d", row), booking.Status)
		_ = f.SetCellValue(exportSheetName, fmt.Sprintf("H%d", row), booking.CreatedAt.Format("2006-01-02 15:04"))
	}

	_ = f.SetColWidth(exportSheetName, "A", "A", 8)
	_ = f.SetColWidth(exportSheetName, "B", "B", 22)
	_ = f.SetColWidth(exportSheetName, "C", "D", 12)
	_ = f.SetColWidth(exportSheetName, "E", "F", 28)
	_ = f.SetColWidth(exportSheetName, "G", "H", 16)

	_ = f.DeleteSheet("Sheet1")

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf, nil
}
