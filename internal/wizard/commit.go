package wizard

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xKrishnaSaxena/WhatsBill/internal/models"
)

// commit runs the invoice creation sequence against the billing backend.
// The calls are sequential with no rollback: a failure partway leaves the
// backend partially updated and the caller reports a generic failure.
func (w *Wizard) commit(ctx context.Context, identity string, data models.InvoiceDraft) ([]byte, error) {
	invoiceID, err := w.gateway.CreateInvoice(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	slog.Info("Wizard.commit: invoice created", "identity", identity, "invoiceID", invoiceID)

	if err := w.gateway.AttachCompany(ctx, invoiceID, data.CompanyID, identity); err != nil {
		return nil, fmt.Errorf("attach company: %w", err)
	}
	for _, service := range data.SelectedServices {
		if err := w.gateway.AttachService(ctx, invoiceID, service.ServiceID, service.Quantity, identity); err != nil {
			return nil, fmt.Errorf("attach service %s: %w", service.ServiceID, err)
		}
	}

	var billingAddr, shippingAddr models.Address
	if data.BillingAddress != nil {
		billingAddr = *data.BillingAddress
	}
	if data.ShippingAddress != nil {
		shippingAddr = *data.ShippingAddress
	}
	if err := w.gateway.UpdateAddresses(ctx, invoiceID, billingAddr, shippingAddr, identity); err != nil {
		return nil, fmt.Errorf("update addresses: %w", err)
	}
	if err := w.gateway.AttachAdvertisement(ctx, invoiceID, data.AdvertisementID, identity); err != nil {
		return nil, fmt.Errorf("attach advertisement: %w", err)
	}
	if err := w.gateway.AttachTax(ctx, invoiceID, "CGST", CGSTPercentage, identity); err != nil {
		return nil, fmt.Errorf("attach CGST: %w", err)
	}
	if err := w.gateway.AttachTax(ctx, invoiceID, "SGST", SGSTPercentage, identity); err != nil {
		return nil, fmt.Errorf("attach SGST: %w", err)
	}
	if err := w.gateway.UpdateState(ctx, invoiceID, identity); err != nil {
		return nil, fmt.Errorf("update state: %w", err)
	}

	pdf, err := w.gateway.InvoicePDF(ctx, invoiceID, identity)
	if err != nil {
		return nil, fmt.Errorf("fetch PDF: %w", err)
	}
	if len(pdf) == 0 {
		return nil, fmt.Errorf("invoice %s produced an empty PDF", invoiceID)
	}
	slog.Info("Wizard.commit: invoice committed", "identity", identity, "invoiceID", invoiceID, "pdfBytes", len(pdf))
	return pdf, nil
}
