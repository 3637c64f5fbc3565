package store

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/grez-lucas/transfer-harvester/internal/scraper/bank"
)

// Workbook column order matches what the billing side consumes.
var exportHeaders = []string{
	"op", "fecha_detec", "fecha", "rs", "rut", "monto",
	"facturación", "empresa", "hash", "cuenta",
}

// ExportXLSX writes records to an xlsx workbook at path, one row per
// transfer plus a header row. Failures wrap bank.ErrExport.
func ExportXLSX(path string, records []bank.Transfer) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Transferencias"
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("%w: create sheet: %v", bank.ErrExport, err)
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	for col, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("%w: write header: %v", bank.ErrExport, err)
		}
	}

	for i, t := range records {
		values := []any{
			t.OperationID, t.DetectedAt, t.ValueDate, t.PayerName,
			t.PayerTaxID, t.Amount, string(t.BillingClass),
			t.CompanyLabel, t.ContentHash, t.DestinationAccount,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("%w: write row %d: %v", bank.ErrExport, i+1, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("%w: save %s: %v", bank.ErrExport, path, err)
	}
	return nil
}
