package billing

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"github.com/mamadbah2/mandi/internal/domain/models"
	"github.com/mamadbah2/mandi/internal/domain/settlement"
)

var billingColumns = []string{
	"Date", "Lot", "Farmer", "Crop", "Unit", "Total", "Sold", "Awaiting",
	"Avg Rate", "Base Amount", "Commission Rate", "Commission", "Final Amount", "Status",
}

var chargeColumns = []string{
	"Date", "Lot", "Split", "Trader", "Crop", "Unit", "Quantity", "Rate",
	"Base Amount", "Commission Rate", "Commission", "Total Payable", "Payment",
}

func invoiceRow(inv settlement.Invoice) []string {
	return []string{
		inv.Date.Format(dateLayout),
		inv.LotID,
		inv.FarmerName,
		inv.Crop,
		string(inv.Unit),
		FormatQuantity(inv.TotalQuantity),
		FormatQuantity(inv.SoldQuantity),
		FormatQuantity(inv.AwaitingQuantity),
		fmt.Sprintf("%.1f", inv.AverageRate),
		FormatMoney(inv.BaseAmount),
		formatRate(inv.CommissionRate),
		FormatMoney(inv.Commission),
		FormatMoney(inv.FinalAmount),
		inv.Status,
	}
}

// LocalizeInvoice returns a copy of inv with its sale and split dates in loc,
// so rendered rows carry the market day a sale belongs to.
func LocalizeInvoice(inv settlement.Invoice, loc *time.Location) settlement.Invoice {
	if loc == nil {
		return inv
	}
	inv.Date = inv.Date.In(loc)
	splits := make([]models.Split, len(inv.Splits))
	copy(splits, inv.Splits)
	for i := range splits {
		splits[i].Date = splits[i].Date.In(loc)
	}
	inv.Splits = splits
	return inv
}

func formatRate(rate float64) string {
	return money(rate * 100).String() + "%"
}

func paymentLabel(pending bool) string {
	if pending {
		return "Pending"
	}
	return "Paid"
}

// WriteReportCSV writes one row per invoice.
func WriteReportCSV(w io.Writer, report Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(billingColumns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, inv := range report.Invoices {
		if err := cw.Write(invoiceRow(inv)); err != nil {
			return fmt.Errorf("write csv row %s: %w", inv.LotID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// SheetRows converts the report invoices to spreadsheet rows, without a header.
func SheetRows(report Report) [][]interface{} {
	rows := make([][]interface{}, 0, len(report.Invoices))
	for _, inv := range report.Invoices {
		cells := invoiceRow(inv)
		row := make([]interface{}, len(cells))
		for i, c := range cells {
			row[i] = c
		}
		rows = append(rows, row)
	}
	return rows
}

// BuildReportXLSX renders the report as a workbook with summary, invoices
// and trader charges sheets.
func BuildReportXLSX(report Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "summary"
	invoicesSheet := "invoices"
	chargesSheet := "traders"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(invoicesSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(chargesSheet); err != nil {
		return nil, err
	}

	t := report.Totals
	summary := [][2]interface{}{
		{"Billing Report", ""},
		{"From", report.From.Format(dateLayout)},
		{"To", report.To.Format(dateLayout)},
		{"Lots", t.Lots},
		{"Base Amount", t.BaseAmount},
		{"Farmer Commission", t.FarmerCommission},
		{"Net Payable", t.NetPayable},
		{"Farmer Outstanding", t.FarmerOutstanding},
		{"Trader Gross", t.TraderGross},
		{"Trader Commission", t.TraderCommission},
		{"Trader Payable", t.TraderPayable},
		{"Trader Outstanding", t.TraderOutstanding},
		{"Committee Income", t.CommitteeIncome},
	}
	for i, kv := range summary {
		row := i + 1
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), kv[0])
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), kv[1])
	}

	if err := writeHeader(f, invoicesSheet, billingColumns); err != nil {
		return nil, err
	}
	for i, inv := range report.Invoices {
		values := []interface{}{
			inv.Date.Format(dateLayout), inv.LotID, inv.FarmerName, inv.Crop, string(inv.Unit),
			inv.TotalQuantity, inv.SoldQuantity, inv.AwaitingQuantity, inv.AverageRate,
			inv.BaseAmount, inv.CommissionRate, inv.Commission, inv.FinalAmount, inv.Status,
		}
		if err := writeRow(f, invoicesSheet, i+2, values); err != nil {
			return nil, err
		}
	}

	if err := writeHeader(f, chargesSheet, chargeColumns); err != nil {
		return nil, err
	}
	for i, c := range report.Charges {
		values := []interface{}{
			c.Date.Format(dateLayout), c.LotID, c.SplitID, c.TraderName, c.Crop, string(c.Unit),
			c.Quantity, c.Rate, c.BaseAmount, c.CommissionRate, c.Commission, c.TotalPayable,
			paymentLabel(c.PaymentPending),
		}
		if err := writeRow(f, chargesSheet, i+2, values); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeHeader(f *excelize.File, sheet string, columns []string) error {
	values := make([]interface{}, len(columns))
	for i, c := range columns {
		values[i] = c
	}
	return writeRow(f, sheet, 1, values)
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

// BuildInvoicePDF renders a single farmer invoice with dates in loc.
func BuildInvoicePDF(inv settlement.Invoice, loc *time.Location) ([]byte, error) {
	inv = LocalizeInvoice(inv, loc)
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Invoice %s", inv.LotID), false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 8, "Mandi Sale Invoice")
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 10)
	header := []string{
		fmt.Sprintf("Lot: %s", inv.LotID),
		fmt.Sprintf("Farmer: %s", inv.FarmerName),
		fmt.Sprintf("Crop: %s", inv.Crop),
		fmt.Sprintf("Date: %s", inv.Date.Format(dateLayout)),
		fmt.Sprintf("Status: %s", inv.Status),
		fmt.Sprintf("Quantity: %s %s total, %s sold, %s awaiting",
			FormatQuantity(inv.TotalQuantity), inv.Unit, FormatQuantity(inv.SoldQuantity), FormatQuantity(inv.AwaitingQuantity)),
	}
	for _, line := range header {
		pdf.Cell(0, 6, line)
		pdf.Ln(5)
	}
	pdf.Ln(4)

	widths := []float64{30, 30, 25, 30, 70}
	pdf.SetFont("Arial", "B", 10)
	for i, title := range []string{"Date", "Quantity", "Rate", "Amount", "Trader"} {
		pdf.CellFormat(widths[i], 6, title, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, split := range inv.Splits {
		cells := []string{
			split.Date.Format(dateLayout),
			FormatQuantity(split.Size(inv.Unit)),
			FormatMoney(split.Rate),
			FormatMoney(split.Amount),
			split.TraderName,
		}
		for i, c := range cells {
			align := "R"
			if i == 0 || i == 4 {
				align = "L"
			}
			pdf.CellFormat(widths[i], 6, c, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(4)

	summary := [][2]string{
		{"Average rate", fmt.Sprintf("%.1f / %s", inv.AverageRate, inv.Unit)},
		{"Base amount", "Rs " + FormatMoney(inv.BaseAmount)},
		{fmt.Sprintf("Commission (%s)", formatRate(inv.CommissionRate)), "- Rs " + FormatMoney(inv.Commission)},
		{"Net payable", "Rs " + FormatMoney(inv.FinalAmount)},
	}
	for i, kv := range summary {
		if i == len(summary)-1 {
			pdf.SetFont("Arial", "B", 11)
		}
		pdf.CellFormat(85, 6, kv[0], "", 0, "L", false, 0, "")
		pdf.CellFormat(50, 6, kv[1], "", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
