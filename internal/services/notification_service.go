package services

import (
	"context"
	"errors"
	"fmt"

	"lab-backend/internal/models"
	"lab-backend/internal/sms"
)

// NotificationService tells patients about their invoices over SMS
type NotificationService struct {
	Provider sms.SMSProvider
	LabName  string
}

func NewNotificationService(provider sms.SMSProvider, labName string) *NotificationService {
	if labName == "" {
		labName = "Diagnostics"
	}
	return &NotificationService{Provider: provider, LabName: labName}
}

// NotifyInvoiceCreated sends the invoice number, net amount and balance to the patient
func (s *NotificationService) NotifyInvoiceCreated(ctx context.Context, patient *models.Patient, inv *models.Invoice) error {
	if patient == nil || patient.Phone == "" {
		return errors.New("patient has no phone number")
	}
	msg := fmt.Sprintf("Dear %s, your %s invoice %s is Rs. %s (paid Rs. %s, due Rs. %s). Thank you.",
		patient.Name, s.LabName, inv.InvoiceNumber,
		inv.NetAmount.StringFixed(2), inv.PaidAmount.StringFixed(2), inv.BalanceAmount.StringFixed(2))
	return s.Provider.SendSMS(ctx, sms.FormatPhone(patient.Phone), msg)
}
