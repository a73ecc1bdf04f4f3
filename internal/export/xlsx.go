// Package export renders ledger entries as spreadsheet files.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"kakeibo/internal/core"
)

// ContentTypeXLSX is the MIME type of the files WriteWeek produces.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const sheetName = "Entries"

var header = []string{"Date", "Type", "Amount", "Category", "Account", "Description"}

// FileName is the download name for the week starting on p.From.
func FileName(p core.Period) string {
	return fmt.Sprintf("kakeibo_%s.xlsx", p.From.Format("20060102"))
}

// WriteWeek writes entries as one row each, followed by income, expense and
// balance totals. Expenses are negative in the Amount column.
func WriteWeek(w io.Writer, p core.Period, entries []core.Entry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	amountFmt := "#,##0.00"
	money, err := f.NewStyle(&excelize.Style{CustomNumFmt: &amountFmt})
	if err != nil {
		return fmt.Errorf("amount style: %w", err)
	}

	for i, h := range header {
		if err := f.SetCellValue(sheetName, cell(i+1, 1), h); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(sheetName, "A1", cell(len(header), 1), bold); err != nil {
		return err
	}

	row := 2
	for _, e := range entries {
		values := []any{
			e.Date.String(),
			string(e.Type),
			e.Signed().Decimal().InexactFloat64(),
			e.Category.Name,
			e.Account.Name,
			e.DescriptionText(),
		}
		for i, v := range values {
			if err := f.SetCellValue(sheetName, cell(i+1, row), v); err != nil {
				return err
			}
		}
		row++
	}

	s := core.Summarize(p, entries)
	row++
	totals := []struct {
		label string
		value core.Money
	}{
		{"Income", s.Income},
		{"Expense", s.Expense},
		{"Balance", s.Balance()},
	}
	for _, t := range totals {
		if err := f.SetCellValue(sheetName, cell(2, row), t.label); err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell(3, row), t.value.Decimal().InexactFloat64()); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetName, cell(2, row), cell(2, row), bold); err != nil {
			return err
		}
		row++
	}
	if err := f.SetCellStyle(sheetName, "C2", cell(3, row), money); err != nil {
		return err
	}

	widths := map[string]float64{"A": 12, "B": 10, "C": 12, "D": 16, "E": 14, "F": 40}
	for col, width := range widths {
		if err := f.SetColWidth(sheetName, col, col, width); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
