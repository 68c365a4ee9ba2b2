package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/xuri/excelize/v2"
)

const reportSheet = "Results"

var reportHeaders = []string{
	"Job",
	"Template",
	"Request ID",
	"Result",
	"Disposition",
	"Seconds",
	"URLs",
	"Error",
}

// BuildReport renders batch results as a workbook with one row per job.
func BuildReport(results []BatchResult) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), reportSheet); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(reportSheet)
	f.SetActiveSheet(activeIndex)

	for i, h := range reportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(reportSheet, cell, h)
	}

	for i, r := range results {
		row := i + 2
		values := []any{
			r.Name,
			r.TemplateID,
			r.RequestID,
			r.Result,
			r.Disposition,
			r.Elapsed.Seconds(),
			strings.Join(r.URLs, "\n"),
			r.Error,
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, row)
			_ = f.SetCellValue(reportSheet, cell, v)
		}
	}

	_ = f.SetColWidth(reportSheet, "A", "B", 24)
	_ = f.SetColWidth(reportSheet, "C", "C", 38)
	_ = f.SetColWidth(reportSheet, "D", "F", 12)
	_ = f.SetColWidth(reportSheet, "G", "G", 60)
	_ = f.SetColWidth(reportSheet, "H", "H", 80)
	return f, nil
}

// WriteReport saves batch results to an XLSX file.
func WriteReport(path string, results []BatchResult) error {
	f, err := BuildReport(results)
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

func printSummary(w io.Writer, results []BatchResult) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "JOB\tRESULT\tREQUEST ID\tDETAIL")
	for _, r := range results {
		detail := strings.Join(r.URLs, " ")
		if r.Error != "" {
			detail = r.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Name, r.Result, r.RequestID, detail)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\n%d completed, %d pending, %d failed\n",
		countResult(results, ResultCompleted), countResult(results, ResultPending), countResult(results, ResultFailed))
}
