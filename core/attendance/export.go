package attendance

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

const summarySheet = "Rekap"

// ExportSummary writes the monthly recap of a class as an XLSX workbook:
// one row per student, one column per day (H/S/I/A or blank), then the totals.
func (svc *service) ExportSummary(ctx context.Context, w io.Writer, classID int64, month, year int) error {
	summary, err := svc.Summary(ctx, classID, month, year)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err = f.SetSheetName("Sheet1", summarySheet); err != nil {
		return errors.Wrap(err, "naming sheet")
	}

	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	days := first.AddDate(0, 1, -1).Day()

	header := make([]interface{}, 0, days+7)
	header = append(header, "No", "NISN", "Nama")
	for d := 1; d <= days; d++ {
		header = append(header, d)
	}
	for _, st := range Statuses {
		header = append(header, st.Abbrev())
	}
	if err = f.SetSheetRow(summarySheet, "A1", &header); err != nil {
		return errors.Wrap(err, "writing header")
	}

	for i, ss := range summary {
		row := make([]interface{}, 0, len(header))
		row = append(row, i+1, ss.NISN, ss.StudentName)
		for d := 1; d <= days; d++ {
			key := first.AddDate(0, 0, d-1).Format("2006-01-02")
			row = append(row, ss.Records[key].Abbrev())
		}
		for _, st := range Statuses {
			row = append(row, ss.Totals[st])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err = f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return errors.Wrapf(err, "writing row %d", i+2)
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	style, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return errors.Wrap(err, "creating header style")
	}
	if err = f.SetCellStyle(summarySheet, "A1", fmt.Sprintf("%s1", lastCol), style); err != nil {
		return errors.Wrap(err, "styling header")
	}
	if err = f.SetColWidth(summarySheet, "C", "C", 30); err != nil {
		return errors.Wrap(err, "sizing columns")
	}

	return errors.Wrap(f.Write(w), "writing workbook")
}
