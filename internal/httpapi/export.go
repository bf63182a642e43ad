package httpapi

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"

	"gatelog/internal/gatelog/store"
	"gatelog/internal/gatelog/types"
)

// exportHeader is the interchange column layout; the CSV download is
// byte-compatible with the ledger file itself.
var exportHeader = []string{"Vehicle_No", "Visitor_Name", "Phone", "Purpose", "In_Time", "Out_Time", "Image_Path"}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	records, err := s.reports.Records(r.Context())
	if err != nil {
		s.writeServiceError(w, "export xlsx", err)
		return
	}

	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Entries"
	f.SetSheetName("Sheet1", sheet)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})

	for i, col := range exportHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, col)
	}
	endHeader, _ := excelize.CoordinatesToCellName(len(exportHeader), 1)
	f.SetCellStyle(sheet, "A1", endHeader, headerStyle)

	for rowIdx, rec := range records {
		for colIdx, val := range exportRow(rec) {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(sheet, cell, val)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		s.logger.Printf("export xlsx write: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to generate Excel file")
		return
	}

	filename := fmt.Sprintf("gatelog_entries_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	records, err := s.reports.Records(r.Context())
	if err != nil {
		s.writeServiceError(w, "export csv", err)
		return
	}

	filename := fmt.Sprintf("gatelog_entries_%s.csv", time.Now().UTC().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	cw := csv.NewWriter(w)
	_ = cw.Write(exportHeader)
	for _, rec := range records {
		_ = cw.Write(exportRow(rec))
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		s.logger.Printf("export csv write: %v", err)
	}
}

func exportRow(rec store.EntryRecord) []string {
	outTime := ""
	if rec.OutTime != nil {
		outTime = rec.OutTime.Format(types.TimeLayout)
	}
	return []string{
		rec.VehicleNo,
		rec.VisitorName,
		rec.Phone,
		rec.Purpose,
		rec.InTime.Format(types.TimeLayout),
		outTime,
		rec.ImagePath,
	}
}
