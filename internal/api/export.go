package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/border"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/xuri/excelize/v2"

	"scanhub/internal/domain"
	"scanhub/pkg/apperror"
	"scanhub/pkg/middleware"
)

var (
	reportHeaderColor = &props.Color{Red: 44, Green: 62, Blue: 80}
	reportDangerColor = &props.Color{Red: 231, Green: 76, Blue: 60}
	reportMutedColor  = &props.Color{Red: 127, Green: 140, Blue: 141}

	reportTitleStyle = props.Text{Size: 20, Style: fontstyle.Bold, Align: align.Center, Color: reportHeaderColor}
	reportH2Style    = props.Text{Size: 13, Style: fontstyle.Bold, Color: reportHeaderColor, Top: 4}
	reportLabelStyle = props.Text{Size: 10, Style: fontstyle.Bold}
	reportValueStyle = props.Text{Size: 10}
	reportSmallStyle = props.Text{Size: 8, Color: reportMutedColor}

	reportTableHeaderCell = &props.Cell{BackgroundColor: reportHeaderColor}
	reportTableHeaderText = props.Text{Size: 9, Style: fontstyle.Bold, Color: &props.Color{Red: 255, Green: 255, Blue: 255}, Align: align.Center}
	reportTableCell       = &props.Cell{BorderType: border.Bottom}
	reportTableCellText   = props.Text{Size: 9, Align: align.Center}
)

// getScanReportPDF отдаёт отчёт завершённого скана как PDF-документ со
// сводкой серьёзности (§6).
func (h *Handler) getScanReportPDF(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	scan, err := h.hub.Engine.GetScan(r.Context(), id)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if scan.GVMStatus != "Done" {
		middleware.WriteError(w, apperror.New(apperror.CodeConflict, "report is only available once the scan has completed"))
		return
	}

	body, err := buildScanReportPDF(scan)
	if err != nil {
		middleware.WriteError(w, apperror.Wrap(err, apperror.CodeInternal, "failed to render report"))
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="scan-%s.pdf"`, scan.ScanID))
	_, _ = w.Write(body)
}

func buildScanReportPDF(scan *domain.Scan) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber().
		WithLeftMargin(15).
		WithTopMargin(15).
		WithRightMargin(15).
		Build()

	m := maroto.New(cfg)

	m.AddRow(14, text.NewCol(12, "Scan Report", reportTitleStyle))
	m.AddRow(5, line.NewCol(12))
	m.AddRow(6,
		text.NewCol(6, fmt.Sprintf("Scan ID: %s", scan.ScanID), reportSmallStyle),
		text.NewCol(6, fmt.Sprintf("Generated: %s", time.Now().Format(time.RFC3339)), props.Text{Size: 8, Color: reportMutedColor, Align: align.Right}),
	)
	m.AddRow(8)

	m.AddRow(8, text.NewCol(12, "Target", reportH2Style))
	addKV(m, "Host", scan.Target)
	addKV(m, "Scan Type", string(scan.ScanType))
	addKV(m, "Probe", scan.ProbeName)
	addKV(m, "Status", scan.GVMStatus)
	if scan.CompletedAt != nil {
		addKV(m, "Completed", scan.CompletedAt.Format(time.RFC3339))
	}

	if scan.Summary != nil {
		m.AddRow(8)
		m.AddRow(8, text.NewCol(12, "Severity Summary", reportH2Style))
		m.AddRow(8,
			text.NewCol(3, "High", reportTableHeaderText).WithStyle(reportTableHeaderCell),
			text.NewCol(3, "Medium", reportTableHeaderText).WithStyle(reportTableHeaderCell),
			text.NewCol(3, "Low", reportTableHeaderText).WithStyle(reportTableHeaderCell),
			text.NewCol(3, "Log", reportTableHeaderText).WithStyle(reportTableHeaderCell),
		)
		sevStyle := reportTableCellText
		sevStyle.Color = reportDangerColor
		m.AddRow(7,
			text.NewCol(3, fmt.Sprintf("%d", scan.Summary.VulnsHigh), sevStyle).WithStyle(reportTableCell),
			text.NewCol(3, fmt.Sprintf("%d", scan.Summary.VulnsMedium), reportTableCellText).WithStyle(reportTableCell),
			text.NewCol(3, fmt.Sprintf("%d", scan.Summary.VulnsLow), reportTableCellText).WithStyle(reportTableCell),
			text.NewCol(3, fmt.Sprintf("%d", scan.Summary.VulnsLog), reportTableCellText).WithStyle(reportTableCell),
		)
	}

	if scan.Error != "" {
		m.AddRow(8)
		m.AddRow(8, text.NewCol(12, "Error", reportH2Style))
		m.AddRow(6, text.NewCol(12, scan.Error, reportValueStyle))
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}

func addKV(m core.Maroto, label, value string) {
	if value == "" {
		return
	}
	m.AddRow(6,
		text.NewCol(3, label, reportLabelStyle),
		text.NewCol(9, value, reportValueStyle),
	)
}

// exportTargetsXLSX отдаёт каталог целей как книгу XLSX.
func (h *Handler) exportTargetsXLSX(w http.ResponseWriter, r *http.Request) {
	targets, err := h.hub.Store.ListTargets(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Targets"
	f.SetSheetName("Sheet1", sheet)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"2C3E50"}, Pattern: 1},
	})

	headers := []string{"External ID", "Host", "Scan Type", "Criticality", "Frequency (h)", "Enabled", "Last Scan At", "Next Scan At", "Last Scan ID"}
	for i, name := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, name)
	}
	if last, err := excelize.CoordinatesToCellName(len(headers), 1); err == nil {
		_ = f.SetCellStyle(sheet, "A1", last, headerStyle)
	}

	for i, t := range targets {
		row := i + 2
		values := []any{t.ExternalID, t.Host, string(t.ScanType), string(t.Criticality), t.ScanFrequencyHours, t.Enabled}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(sheet, cell, v)
		}
		if t.LastScanAt != nil {
			cell, _ := excelize.CoordinatesToCellName(7, row)
			f.SetCellValue(sheet, cell, t.LastScanAt.Format(time.RFC3339))
		}
		if t.NextScanAt != nil {
			cell, _ := excelize.CoordinatesToCellName(8, row)
			f.SetCellValue(sheet, cell, t.NextScanAt.Format(time.RFC3339))
		}
		cell, _ := excelize.CoordinatesToCellName(9, row)
		f.SetCellValue(sheet, cell, t.LastScanID)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		middleware.WriteError(w, apperror.Wrap(err, apperror.CodeInternal, "failed to render workbook"))
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="targets.xlsx"`)
	_, _ = w.Write(buf.Bytes())
}
