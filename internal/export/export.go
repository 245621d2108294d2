// Package export renders a closed period's report as CSV or XLSX.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"cafecogs/backend/internal/domain"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"

	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type summaryRow struct {
	section string
	key     string
	value   any
}

func summary(period domain.COGSPeriod, report domain.COGSReport) []summaryRow {
	closedAt := ""
	if period.ClosedAt != nil {
		closedAt = period.ClosedAt.UTC().Format(time.RFC3339)
	}
	rows := []summaryRow{
		{"period", "id", period.ID},
		{"period", "period_type", period.PeriodType},
		{"period", "start_at", period.StartAt.UTC().Format(time.RFC3339)},
		{"period", "end_at", period.EndAt.UTC().Format(time.RFC3339)},
		{"period", "status", period.Status},
		{"period", "closed_at", closedAt},
		{"period", "closed_by", report.ClosedBy},
		{"periodic", "begin_inventory_value", report.Periodic.BeginInventoryValue},
		{"periodic", "purchases_value", report.Periodic.PurchasesValue},
		{"periodic", "end_inventory_value", report.Periodic.EndInventoryValue},
		{"periodic", "periodic_cogs_value", report.Periodic.PeriodicCogsValue},
		{"periodic", "begin_source", report.Periodic.BeginSource},
		{"periodic", "end_source", report.Periodic.EndSource},
	}
	if th := report.Theoretical; th != nil {
		cov := th.Coverage
		rows = append(rows,
			summaryRow{"theoretical", "theoretical_cogs_value", th.TheoreticalCogsValue},
			summaryRow{"theoretical", "waste_cost_value", th.WasteCostValue},
			summaryRow{"theoretical", "variance_value", th.VarianceValue},
			summaryRow{"coverage", "sales_lines", cov.SalesLines},
			summaryRow{"coverage", "mapped_sales_lines", cov.MappedSalesLines},
			summaryRow{"coverage", "sales_lines_with_recipe", cov.SalesLinesWithRecipe},
			summaryRow{"coverage", "missing_cost_lines", cov.MissingCostLines},
			summaryRow{"coverage", "missing_inventory_items", cov.MissingInventoryItem},
			summaryRow{"coverage", "unit_conversion_issues", cov.UnitConversionIssues},
			summaryRow{"coverage", "modifiers_seen", cov.ModifiersSeen},
			summaryRow{"coverage", "mapped_modifiers", cov.MappedModifiers},
			summaryRow{"coverage", "modifiers_with_recipe", cov.ModifiersWithRecipe},
		)
	}
	return rows
}

func usage(report domain.COGSReport) []domain.TheoreticalUsageLine {
	if report.Theoretical == nil {
		return nil
	}
	return report.Theoretical.Lines
}

func text(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case decimal.Decimal:
		return t.StringFixed(2)
	default:
		return fmt.Sprint(t)
	}
}

func Filename(period domain.COGSPeriod, format string) string {
	return fmt.Sprintf("cogs-%s-%s.%s", period.PeriodType, period.StartAt.UTC().Format("2006-01-02"), format)
}

// CSV writes one flat table: summary rows carry section, key and value;
// usage rows add the unit and consumed quantity per inventory item.
func CSV(w io.Writer, period domain.COGSPeriod, report domain.COGSReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"section", "key", "value", "unit", "quantity"}); err != nil {
		return err
	}
	for _, row := range summary(period, report) {
		if err := cw.Write([]string{row.section, row.key, text(row.value), "", ""}); err != nil {
			return err
		}
	}
	for _, line := range usage(report) {
		record := []string{
			"usage",
			line.Name,
			line.CostValue.StringFixed(2),
			line.Unit,
			strconv.FormatFloat(line.Quantity, 'f', 4, 64),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func XLSX(w io.Writer, period domain.COGSPeriod, report domain.COGSReport) error {
	f := excelize.NewFile()
	defer f.Close()

	const summarySheet, usageSheet = "Summary", "Usage"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(usageSheet); err != nil {
		return err
	}

	if err := setRow(f, summarySheet, 1, "Section", "Key", "Value"); err != nil {
		return err
	}
	for i, row := range summary(period, report) {
		value := row.value
		if d, ok := value.(decimal.Decimal); ok {
			value = d.InexactFloat64()
		}
		if err := setRow(f, summarySheet, i+2, row.section, row.key, value); err != nil {
			return err
		}
	}

	if err := setRow(f, usageSheet, 1, "Inventory item", "Name", "Unit", "Quantity", "Cost"); err != nil {
		return err
	}
	for i, line := range usage(report) {
		if err := setRow(f, usageSheet, i+2, line.InventoryItemID, line.Name, line.Unit, line.Quantity, line.CostValue.InexactFloat64()); err != nil {
			return err
		}
	}

	return f.Write(w)
}

func setRow(f *excelize.File, sheet string, row int, values ...any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}
