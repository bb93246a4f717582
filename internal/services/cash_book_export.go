package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"lab-backend/internal/models"
	"lab-backend/internal/timeutil"

	"github.com/jung-kurt/gofpdf/v2"
	"github.com/shopspring/decimal"
)

// Archiver stores rendered exports, e.g. in an S3-compatible bucket
type Archiver interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// ArchiveKey is where an export of a tenant, range and mode filter is archived
func ArchiveKey(tenantID int, book *models.CashBook) string {
	mode := book.PaymentMode
	if mode == "" {
		mode = ModeFilterAll
	}
	return fmt.Sprintf("cashbook/%d/%s_%s_%s.pdf", tenantID,
		timeutil.FormatIST(book.From, timeutil.DateLayout), timeutil.FormatIST(book.To, timeutil.DateLayout), mode)
}

// Export aggregates the cash book and renders it as a PDF. When an archiver is configured a
// complete book is also archived; partial books and archive failures are only logged.
func (s *CashBookService) Export(ctx context.Context, tenantID int, from, to time.Time, modeFilter string) ([]byte, *models.CashBook, error) {
	book, err := s.Aggregate(ctx, tenantID, from, to, modeFilter)
	if err != nil {
		return nil, nil, err
	}
	pdf, err := RenderCashBookPDF(book)
	if err != nil {
		return nil, nil, err
	}

	if s.Archive != nil {
		key := ArchiveKey(tenantID, book)
		if book.Partial {
			s.log.Warn().Str("key", key).Strs("failed_streams", book.FailedStreams).Msg("partial cash book export not archived")
		} else if err := s.Archive.Put(ctx, key, pdf, "application/pdf"); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("failed to archive cash book export")
		} else {
			s.log.Info().Str("key", key).Int("bytes", len(pdf)).Msg("cash book export archived")
		}
	}
	return pdf, book, nil
}

func fmtAmount(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return d.StringFixed(2)
}

// RenderCashBookPDF lays the cash book out as a landscape A4 table
func RenderCashBookPDF(book *models.CashBook) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(277, 10, "Cash Book", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	period := fmt.Sprintf("%s to %s", timeutil.FormatIST(book.From, timeutil.DisplayLayout), timeutil.FormatIST(book.To, timeutil.DisplayLayout))
	if book.PaymentMode != "" {
		period += " (" + book.PaymentMode + ")"
	}
	pdf.CellFormat(277, 6, period, "", 1, "C", false, 0, "")
	pdf.CellFormat(277, 6, fmt.Sprintf("Generated: %s", timeutil.Now().Format(timeutil.DisplayLayout)), "", 1, "C", false, 0, "")
	if book.Partial {
		pdf.SetTextColor(200, 0, 0)
		pdf.CellFormat(277, 6, fmt.Sprintf("INCOMPLETE: missing %v", book.FailedStreams), "", 1, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	}
	pdf.Ln(3)

	widths := []float64{30, 28, 62, 24, 22, 22, 22, 22, 22, 23}
	headers := []string{"Date", "Reference", "Particulars", "Mode", "Cash In", "Bank In", "Cash Out", "Bank Out", "Cash Bal", "Bank Bal"}

	header := func() {
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(200, 200, 200)
		for i, h := range headers {
			pdf.CellFormat(widths[i], 7, h, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 8)
	}
	header()

	for _, r := range book.Rows {
		if pdf.GetY() > 190 {
			pdf.AddPage()
			header()
		}
		cells := []string{
			timeutil.FormatIST(r.Timestamp, "02-Jan-06 15:04"),
			r.Reference,
			r.Particulars,
			string(r.PaymentMode),
			fmtAmount(r.CashIn),
			fmtAmount(r.BankIn),
			fmtAmount(r.CashOut),
			fmtAmount(r.BankOut),
			r.RunningCash.StringFixed(2),
			r.RunningBank.StringFixed(2),
		}
		for i, c := range cells {
			align := "R"
			if i < 4 {
				align = "L"
			}
			pdf.CellFormat(widths[i], 6, c, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	sum := book.Summary
	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(240, 240, 240)
	pdf.CellFormat(widths[0]+widths[1]+widths[2]+widths[3], 7, fmt.Sprintf("Totals (%d rows)", sum.RowCount), "1", 0, "L", true, 0, "")
	for i, v := range []decimal.Decimal{sum.TotalCashIn, sum.TotalBankIn, sum.TotalCashOut, sum.TotalBankOut, sum.ClosingCash, sum.ClosingBank} {
		pdf.CellFormat(widths[4+i], 7, v.StringFixed(2), "1", 0, "R", true, 0, "")
	}
	pdf.Ln(-1)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render cash book pdf: %w", err)
	}
	return buf.Bytes(), nil
}
