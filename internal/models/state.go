// Package models defines conversation and wizard state structures for WhatsBill.
package models

import "time"

// WizardStep names a state of the invoice-creation wizard.
type WizardStep string

// Wizard step constants, in flow order.
const (
	StepStart                 WizardStep = "start"
	StepCompanySelectionAwait WizardStep = "company_selection_await"
	StepSelectCompany         WizardStep = "select_company"
	StepSelectService         WizardStep = "select_service"
	StepCollectQuantity       WizardStep = "collect_quantity"
	StepAddMoreServices       WizardStep = "add_more_services"
	StepSelectAdvertisement   WizardStep = "select_advertisement"
	StepSelectClient          WizardStep = "select_client"
	StepSelectShippingAddress WizardStep = "select_shipping_address"
	StepSelectBillingAddress  WizardStep = "select_billing_address"
	StepConfirmCreation       WizardStep = "confirm_creation"
)

// SelectedService is one accumulated invoice line item.
type SelectedService struct {
	ServiceID  string  `json:"service_id"`
	Name       string  `json:"service_name"`
	Price      float64 `json:"price"`
	Quantity   int     `json:"quantity"`
	TotalPrice float64 `json:"total_price"`
}

// InvoiceDraft accumulates everything the wizard collects before the commit
// sequence. The Available* catalogs are ephemeral: they map the 1-based
// stringified index most recently shown to the user onto the full entity
// record, and an index is only valid against the catalog presented for that
// selection type.
type InvoiceDraft struct {
	CompanyID      string  `json:"company_id,omitempty"`
	CompanyName    string  `json:"company_name,omitempty"`
	CompanyAddress Address `json:"company_address,omitempty"`

	SelectedServices []SelectedService `json:"selected_services,omitempty"`
	CurrentService   *SelectedService  `json:"current_service,omitempty"`

	AdvertisementID    string `json:"advertisement_id,omitempty"`
	AdvertisementImage string `json:"advertisement_image,omitempty"`

	ClientID        string    `json:"client_id,omitempty"`
	ClientName      string    `json:"client_name,omitempty"`
	ClientAddresses []Address `json:"client_addresses,omitempty"`

	ShippingAddress *Address `json:"shipping_address,omitempty"`
	BillingAddress  *Address `json:"billing_address,omitempty"`

	TotalServiceAmount float64 `json:"total_service_amount,omitempty"`
	TotalAmount        float64 `json:"total_amount,omitempty"`

	AvailableCompanies      map[string]Company       `json:"available_companies,omitempty"`
	AvailableServices       map[string]Service       `json:"available_services,omitempty"`
	AvailableAdvertisements map[string]Advertisement `json:"available_advertisements,omitempty"`
	AvailableClients        map[string]ClientRecord  `json:"available_clients,omitempty"`
}

// InvoiceState is the active wizard instance inside a conversation.
type InvoiceState struct {
	Step WizardStep   `json:"step"`
	Data InvoiceDraft `json:"data"`
}

// ConversationState holds at most one active wizard instance per session.
// A nil InvoiceCreation means the session is not in the wizard.
type ConversationState struct {
	InvoiceCreation *InvoiceState `json:"invoice_creation,omitempty"`
}

// InWizard reports whether an invoice-creation wizard is active.
func (c ConversationState) InWizard() bool {
	return c.InvoiceCreation != nil
}

// Session is the per-identity conversation record: an append-only transcript
// plus the mutable conversation state.
type Session struct {
	Identity  string            `json:"identity"`
	Messages  []Message         `json:"messages"`
	State     ConversationState `json:"state"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// TimerInfo describes an active reminder timer.
type TimerInfo struct {
	ID          string    `json:"id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Remaining   string    `json:"remaining"`
	Description string    `json:"description"`
}
