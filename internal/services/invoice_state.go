package services

import (
	"lab-backend/internal/models"
	"lab-backend/internal/money"

	"github.com/shopspring/decimal"
)

// DeriveStatus maps the monetary fields of an invoice onto its payment status
func DeriveStatus(net, paid, refund decimal.Decimal) models.PaymentStatus {
	switch {
	case refund.IsPositive() && refund.GreaterThanOrEqual(net):
		return models.PaymentStatusRefunded
	case !paid.IsPositive():
		return models.PaymentStatusPending
	case paid.GreaterThanOrEqual(net.Sub(refund)):
		return models.PaymentStatusPaid
	default:
		return models.PaymentStatusPartial
	}
}

// Balance is net - refund - paid
func Balance(net, paid, refund decimal.Decimal) decimal.Decimal {
	return net.Sub(refund).Sub(paid)
}

// settle recomputes balance and status from net, paid and refund
func settle(inv *models.Invoice) {
	inv.BalanceAmount = Balance(inv.NetAmount, inv.PaidAmount, inv.RefundAmount)
	inv.PaymentStatus = DeriveStatus(inv.NetAmount, inv.PaidAmount, inv.RefundAmount)
}

// Totals is the priced result of a set of line items and a discount
type Totals struct {
	Total    decimal.Decimal
	Tax      decimal.Decimal
	Discount decimal.Decimal
	Net      decimal.Decimal
	Items    []models.InvoiceItem
}

// PriceItems prices the requested tests from the catalog. Unknown and duplicate tests are rejected.
func PriceItems(lines []models.LineItemInput, catalog map[int]models.LabTest, discount decimal.Decimal) (Totals, error) {
	if len(lines) == 0 {
		return Totals{}, &ValidationError{Field: "line_items", Message: "at least one test is required"}
	}
	if discount.IsNegative() {
		return Totals{}, invalidAmount("discount", "must be >= 0, got %s", discount.StringFixed(2))
	}

	t := Totals{Total: decimal.Zero, Tax: decimal.Zero, Items: make([]models.InvoiceItem, 0, len(lines))}
	seen := make(map[int]bool, len(lines))
	for _, line := range lines {
		if seen[line.TestID] {
			return Totals{}, &ValidationError{Field: "line_items", Message: "test listed more than once"}
		}
		seen[line.TestID] = true

		test, ok := catalog[line.TestID]
		if !ok {
			return Totals{}, &NotFoundError{Entity: "test", ID: line.TestID}
		}
		tax := money.Round(money.Percent(test.Price, test.GSTPercentage))
		t.Items = append(t.Items, models.InvoiceItem{
			TestID:        test.ID,
			TestName:      test.Name,
			Price:         test.Price,
			GSTPercentage: test.GSTPercentage,
			TaxAmount:     tax,
		})
		t.Total = t.Total.Add(test.Price)
		t.Tax = t.Tax.Add(tax)
	}

	gross := t.Total.Add(t.Tax)
	if discount.GreaterThan(gross) {
		return Totals{}, invalidAmount("discount", "must be <= %s, got %s", gross.StringFixed(2), discount.StringFixed(2))
	}
	t.Total = money.Round(t.Total)
	t.Tax = money.Round(t.Tax)
	t.Discount = money.Round(discount)
	t.Net = t.Total.Add(t.Tax).Sub(t.Discount)
	return t, nil
}

// requireCents rejects amounts that would be rounded when stored
func requireCents(field string, d decimal.Decimal) error {
	if !money.IsCents(d) {
		return invalidAmount(field, "must have at most %d decimal places, got %s", money.Places, d.String())
	}
	return nil
}

// validatePaid checks 0 <= paid <= net and refund <= paid
func validatePaid(paid, net, refund decimal.Decimal) error {
	if err := requireCents("paid_amount", paid); err != nil {
		return err
	}
	if paid.IsNegative() {
		return invalidAmount("paid_amount", "must be >= 0, got %s", paid.StringFixed(2))
	}
	if paid.GreaterThan(net) {
		return invalidAmount("paid_amount", "must be <= net amount %s, got %s", net.StringFixed(2), paid.StringFixed(2))
	}
	if refund.GreaterThan(paid) {
		return invalidAmount("paid_amount", "must be >= refunded amount %s, got %s", refund.StringFixed(2), paid.StringFixed(2))
	}
	return nil
}

// applyPayment adds an incremental payment bounded by the current balance
func applyPayment(inv *models.Invoice, amount decimal.Decimal) error {
	if inv.PaymentStatus == models.PaymentStatusRefunded {
		return &ValidationError{Field: "amount", Message: "invoice is fully refunded"}
	}
	if err := requireCents("amount", amount); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return invalidAmount("amount", "must be > 0, got %s", amount.StringFixed(2))
	}
	balance := Balance(inv.NetAmount, inv.PaidAmount, inv.RefundAmount)
	if amount.GreaterThan(balance) {
		return invalidAmount("amount", "must be <= balance %s, got %s", balance.StringFixed(2), amount.StringFixed(2))
	}
	inv.PaidAmount = inv.PaidAmount.Add(amount)
	settle(inv)
	return nil
}

// applyRefund adds to the cumulative refund, bounded by what has been collected and not yet refunded
func applyRefund(inv *models.Invoice, amount decimal.Decimal) error {
	if err := requireCents("amount", amount); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return invalidAmount("amount", "must be > 0, got %s", amount.StringFixed(2))
	}
	refundable := inv.PaidAmount.Sub(inv.RefundAmount)
	if amount.GreaterThan(refundable) {
		return invalidAmount("amount", "must be <= refundable %s, got %s", refundable.StringFixed(2), amount.StringFixed(2))
	}
	inv.RefundAmount = inv.RefundAmount.Add(amount)
	settle(inv)
	return nil
}
