// FilePath: internal/reports/reports.go
package reports

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/fabwatch/factoryhub/internal/models"
)

var header = []string{
	"date", "active_time_h", "stop_time_h", "energy_kwh", "energy_counter_kwh",
}

// WriteCSV streams a machine's ledger history as CSV, oldest day first,
// with a trailing totals row.
func WriteCSV(w io.Writer, machineID string, rows []*models.DailyLedger) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(header); err != nil {
		return err
	}

	var totalActive, totalStop, totalEnergy float64
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		record := []string{
			row.Date,
			formatHours(row.ActiveTime),
			formatHours(row.StopTime),
			formatEnergy(row.TotalEnergyConsumed),
			formatEnergy(row.CurrentEnergyCounter),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
		totalActive += row.ActiveTime
		totalStop += row.StopTime
		totalEnergy += row.TotalEnergyConsumed
	}

	total := []string{
		"total", formatHours(totalActive), formatHours(totalStop), formatEnergy(totalEnergy), "",
	}
	if err := cw.Write(total); err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

// WriteXLSX renders the same history as a spreadsheet with one sheet per
// machine report.
func WriteXLSX(w io.Writer, machineID string, rows []*models.DailyLedger) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Daily Report"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	if err := f.SetSheetRow(sheet, "A1", &[]interface{}{
		fmt.Sprintf("Machine %s", machineID),
	}); err != nil {
		return err
	}

	headerRow := make([]interface{}, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(sheet, "A2", &headerRow); err != nil {
		return err
	}

	var totalActive, totalStop, totalEnergy float64
	line := 3
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		cell := fmt.Sprintf("A%d", line)
		if err := f.SetSheetRow(sheet, cell, &[]interface{}{
			row.Date, row.ActiveTime, row.StopTime,
			row.TotalEnergyConsumed, row.CurrentEnergyCounter,
		}); err != nil {
			return err
		}
		totalActive += row.ActiveTime
		totalStop += row.StopTime
		totalEnergy += row.TotalEnergyConsumed
		line++
	}

	cell := fmt.Sprintf("A%d", line)
	if err := f.SetSheetRow(sheet, cell, &[]interface{}{
		"total", totalActive, totalStop, totalEnergy,
	}); err != nil {
		return err
	}

	return f.Write(w)
}

func formatHours(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func formatEnergy(v float64) string {
	return fmt.Sprintf("%.3f", v)
}
