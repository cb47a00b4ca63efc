// Package receipt renders a printable sale receipt: pharmacy and
// prescription header, itemized medicine and general-item tables, and
// the discounted, taxed totals.
package receipt

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"medistock/m/domain"
	"medistock/m/internal/cart"
)

// Receipt carries everything needed to render one receipt.
type Receipt struct {
	Number       string            `json:"number"`
	PharmacyName string            `json:"pharmacy_name"`
	DoctorName   string            `json:"doctor_name"`
	PatientName  string            `json:"patient_name"`
	GSTNo        string            `json:"gst_no"`
	Date         time.Time         `json:"date"`
	TaxRate      float64           `json:"tax_rate"`
	Lines        []domain.CartLine `json:"lines"`
}

// New fills in the generated fields: receipt number and date.
func New(pharmacyName string, lines []domain.CartLine, taxRate float64) Receipt {
	return Receipt{
		Number:       uuid.NewString(),
		PharmacyName: pharmacyName,
		Date:         time.Now(),
		TaxRate:      taxRate,
		Lines:        lines,
	}
}

const separator = "----------------------------------------"

// Render produces the receipt as PDF bytes, suitable for saving to a
// file, sending to a printer, or sharing.
func Render(rec Receipt) ([]byte, error) {
	if rec.Number == "" {
		rec.Number = uuid.NewString()
	}
	if rec.Date.IsZero() {
		rec.Date = time.Now()
	}
	totals := cart.ComputeTotals(rec.Lines, rec.TaxRate)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 12)

	y := 10.0
	line := func(x float64, text string) {
		pdf.Text(x, y, text)
	}
	next := func() { y += 10 }

	line(10, "Pharmacy Name: "+rec.PharmacyName)
	next()
	line(10, "Receipt No: "+rec.Number)
	next()
	line(10, "Dr. Name: "+rec.DoctorName)
	next()
	line(10, "Patient Name: "+rec.PatientName)
	next()
	line(10, "Date: "+rec.Date.Format("02/01/2006"))
	next()
	line(10, "GST No: "+rec.GSTNo)
	next()
	line(10, separator)
	next()

	pdf.SetFont("Helvetica", "", 10)

	medicines := lo.Filter(rec.Lines, func(l domain.CartLine, _ int) bool { return l.Type == domain.KindMedicines })
	general := lo.Filter(rec.Lines, func(l domain.CartLine, _ int) bool { return l.Type == domain.KindGeneralItems })

	line(10, "Medicines")
	next()
	line(10, "S.No")
	line(30, "Name")
	line(80, "Quantity")
	line(110, "Batch No")
	line(140, "Price")
	line(170, "Discount")
	next()
	for i, item := range medicines {
		line(10, fmt.Sprintf("%d", i+1))
		line(30, item.Name)
		line(80, fmt.Sprintf("%d", item.Quantity))
		line(110, item.BatchNo)
		line(140, fmt.Sprintf("%.2f Rs", item.Price))
		line(170, fmt.Sprintf("%g%%", item.Discount))
		next()
	}
	line(10, separator)
	next()
	line(10, fmt.Sprintf("Total: %.2f Rs", totals.MedicinesSubtotal))
	next()

	y += 10
	line(10, "General Items")
	next()
	line(10, "S.No")
	line(30, "Name")
	line(80, "Quantity")
	line(110, "Price")
	line(140, "Discount")
	next()
	for i, item := range general {
		line(10, fmt.Sprintf("%d", i+1))
		line(30, item.Name)
		line(80, fmt.Sprintf("%d", item.Quantity))
		line(110, fmt.Sprintf("%.2f Rs", item.Price))
		line(140, fmt.Sprintf("%g%%", item.Discount))
		next()
	}
	line(10, separator)
	next()
	line(10, fmt.Sprintf("Total: %.2f Rs", totals.GeneralItemsSubtotal))
	next()
	line(10, fmt.Sprintf("GST: %g %%", rec.TaxRate))
	next()
	line(10, fmt.Sprintf("Tax: %.2f Rs", totals.Tax))
	next()
	line(10, fmt.Sprintf("Grand Total: %.2f Rs", totals.GrandTotal))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendering receipt: %w", err)
	}
	return buf.Bytes(), nil
}

// Save renders the receipt and writes it to path.
func Save(rec Receipt, path string) error {
	data, err := Render(rec)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
