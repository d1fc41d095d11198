// Package wizard implements the multi-step invoice creation conversation.
//
// The wizard is a state machine advanced one user message at a time. Each
// step validates the input against the catalog presented on the previous
// turn, mutates the draft, and produces the next prompt. Invalid input
// re-prompts the same step without touching the draft. Empty catalogs are
// dead ends that end the wizard, except the company await state which keeps
// the wizard alive until the user has created a company externally.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/xKrishnaSaxena/WhatsBill/internal/billing"
	"github.com/xKrishnaSaxena/WhatsBill/internal/models"
)

// Tax percentages applied to every invoice.
const (
	CGSTPercentage = 9
	SGSTPercentage = 9
)

// ErrCommitFailed indicates the invoice commit sequence did not complete.
// The backend may be left partially updated; the wizard state is cleared
// and the user has to start over.
var ErrCommitFailed = errors.New("invoice commit failed")

// StepResult is the outcome of advancing the wizard by one user message.
// Either Reply or PDF is set. ClearState tells the caller to drop the
// wizard state from the session.
type StepResult struct {
	Reply      string
	PDF        []byte
	ClearState bool
}

// Wizard drives the invoice creation flow against a billing gateway.
type Wizard struct {
	gateway billing.Gateway
}

// New creates a wizard backed by the given billing gateway.
func New(gateway billing.Gateway) *Wizard {
	return &Wizard{gateway: gateway}
}

// Start initializes a fresh wizard state positioned at the first step.
func Start() *models.InvoiceState {
	return &models.InvoiceState{Step: models.StepStart, Data: models.InvoiceDraft{}}
}

// Advance processes one user message for the identity's active wizard.
// The state is mutated in place; the result says what to send back and
// whether the wizard is finished.
func (w *Wizard) Advance(ctx context.Context, identity string, state *models.InvoiceState, input string) (StepResult, error) {
	slog.Info("Wizard.Advance: handling step", "identity", identity, "step", state.Step)

	switch state.Step {
	case models.StepStart, models.StepCompanySelectionAwait:
		return w.stepStart(ctx, identity, state)
	case models.StepSelectCompany:
		return w.stepSelectCompany(ctx, identity, state, input)
	case models.StepSelectService:
		return w.stepSelectService(state, input)
	case models.StepCollectQuantity:
		return w.stepCollectQuantity(state, input)
	case models.StepAddMoreServices:
		return w.stepAddMoreServices(ctx, identity, state, input)
	case models.StepSelectAdvertisement:
		return w.stepSelectAdvertisement(ctx, identity, state, input)
	case models.StepSelectClient:
		return w.stepSelectClient(state, input)
	case models.StepSelectShippingAddress:
		return w.stepSelectShippingAddress(state, input)
	case models.StepSelectBillingAddress:
		return w.stepSelectBillingAddress(state, input)
	case models.StepConfirmCreation:
		return w.stepConfirmCreation(ctx, identity, state, input)
	default:
		return StepResult{}, fmt.Errorf("unknown wizard step %q", state.Step)
	}
}

func (w *Wizard) stepStart(ctx context.Context, identity string, state *models.InvoiceState) (StepResult, error) {
	companies, err := w.gateway.Companies(ctx, identity)
	if err != nil {
		return StepResult{}, fmt.Errorf("failed to fetch companies: %w", err)
	}
	if len(companies) == 0 {
		state.Step = models.StepCompanySelectionAwait
		return StepResult{
			Reply: "No existing companies found. Please visit fnBill website to create a company, then come back and select it from the list.",
		}, nil
	}

	// The first company is the account's default; picking it means the
	// invoice is issued without a distinct company.
	companies[0].Name = "Do not choose a company"
	catalog := make(map[string]models.Company, len(companies))
	for i, company := range companies {
		catalog[strconv.Itoa(i+1)] = company
	}
	state.Data.AvailableCompanies = catalog
	state.Step = models.StepSelectCompany

	var lines []string
	for _, key := range sortedKeys(catalog) {
		lines = append(lines, fmt.Sprintf("%s. %s", key, catalog[key].Name))
	}
	return StepResult{
		Reply: "Please select a company by entering the corresponding number:\n" + strings.Join(lines, "\n"),
	}, nil
}

func (w *Wizard) stepSelectCompany(ctx context.Context, identity string, state *models.InvoiceState, input string) (StepResult, error) {
	key := strings.TrimSpace(input)
	company, ok := state.Data.AvailableCompanies[key]
	if !ok {
		return StepResult{Reply: "Invalid company ID. Try again."}, nil
	}

	state.Data.CompanyID = company.ID
	state.Data.CompanyName = company.Name
	state.Data.CompanyAddress = company.MainAddress
	state.Data.SelectedServices = []models.SelectedService{}

	services, err := w.gateway.ServicesForCompany(ctx, company.ID, identity)
	if err != nil {
		return StepResult{}, fmt.Errorf("failed to fetch services: %w", err)
	}
	if len(services) == 0 {
		return StepResult{Reply: "No services available for this company.", ClearState: true}, nil
	}

	catalog := make(map[string]models.Service, len(services))
	for i, service := range services {
		catalog[strconv.Itoa(i+1)] = service
	}
	state.Data.AvailableServices = catalog
	state.Step = models.StepSelectService

	return StepResult{
		Reply: "Select a service by entering the corresponding number:\n" + serviceList(catalog),
	}, nil
}

func (w *Wizard) stepSelectService(state *models.InvoiceState, input string) (StepResult, error) {
	key := strings.TrimSpace(input)
	service, ok := state.Data.AvailableServices[key]
	if !ok {
		return StepResult{Reply: "Invalid service ID. Try again."}, nil
	}
	state.Data.CurrentService = &models.SelectedService{
		ServiceID: service.ID,
		Name:      service.Name,
		Price:     service.Price,
	}
	state.Step = models.StepCollectQuantity
	return StepResult{Reply: "Enter the quantity of this service:"}, nil
}

func (w *Wizard) stepCollectQuantity(state *models.InvoiceState, input string) (StepResult, error) {
	quantity, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return StepResult{Reply: "Please enter a valid quantity."}, nil
	}
	current := state.Data.CurrentService
	state.Data.CurrentService = nil
	current.Quantity = quantity
	current.TotalPrice = float64(quantity) * current.Price
	state.Data.SelectedServices = append(state.Data.SelectedServices, *current)
	state.Step = models.StepAddMoreServices
	return StepResult{Reply: "Do you want to add more services? (yes/no)"}, nil
}

func (w *Wizard) stepAddMoreServices(ctx context.Context, identity string, state *models.InvoiceState, input string) (StepResult, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "yes":
		state.Step = models.StepSelectService
		return StepResult{
			Reply: "Select another service by entering the corresponding number:\n" + serviceList(state.Data.AvailableServices),
		}, nil
	case "no":
		var totalServiceAmount float64
		for _, service := range state.Data.SelectedServices {
			totalServiceAmount += service.TotalPrice
		}
		state.Data.TotalServiceAmount = totalServiceAmount
		state.Data.TotalAmount = totalServiceAmount * (1 + float64(CGSTPercentage+SGSTPercentage)/100)

		ads, err := w.gateway.Advertisements(ctx, identity)
		if err != nil {
			return StepResult{}, fmt.Errorf("failed to fetch advertisements: %w", err)
		}
		if len(ads) == 0 {
			return StepResult{Reply: "No advertisements available.", ClearState: true}, nil
		}
		catalog := make(map[string]models.Advertisement, len(ads))
		for i, ad := range ads {
			catalog[strconv.Itoa(i+1)] = ad
		}
		state.Data.AvailableAdvertisements = catalog
		state.Step = models.StepSelectAdvertisement

		var lines []string
		for _, key := range sortedKeys(catalog) {
			lines = append(lines, fmt.Sprintf("%s. %s", key, catalog[key].Name))
		}
		return StepResult{
			Reply: "Select an advertisement by entering the corresponding number:\n" + strings.Join(lines, "\n"),
		}, nil
	default:
		return StepResult{Reply: "Please answer 'yes' or 'no'."}, nil
	}
}

func (w *Wizard) stepSelectAdvertisement(ctx context.Context, identity string, state *models.InvoiceState, input string) (StepResult, error) {
	key := strings.TrimSpace(input)
	ad, ok := state.Data.AvailableAdvertisements[key]
	if !ok {
		return StepResult{Reply: "Invalid advertisement ID. Try again."}, nil
	}
	state.Data.AdvertisementID = ad.ID
	state.Data.AdvertisementImage = w.gateway.FileURL(ad.File)

	clients, err := w.gateway.Clients(ctx, identity)
	if err != nil {
		return StepResult{}, fmt.Errorf("failed to fetch clients: %w", err)
	}
	if len(clients) == 0 {
		return StepResult{Reply: "No clients available.", ClearState: true}, nil
	}
	catalog := make(map[string]models.ClientRecord, len(clients))
	for i, client := range clients {
		catalog[strconv.Itoa(i+1)] = client
	}
	state.Data.AvailableClients = catalog
	state.Step = models.StepSelectClient

	var lines []string
	for _, key := range sortedKeys(catalog) {
		lines = append(lines, fmt.Sprintf("%s. %s", key, catalog[key].Name))
	}
	return StepResult{
		Reply: "Select a client by entering the corresponding number:\n" + strings.Join(lines, "\n"),
	}, nil
}

func (w *Wizard) stepSelectClient(state *models.InvoiceState, input string) (StepResult, error) {
	key := strings.TrimSpace(input)
	client, ok := state.Data.AvailableClients[key]
	if !ok {
		return StepResult{Reply: "Invalid client ID. Try again."}, nil
	}
	state.Data.ClientID = client.ID
	state.Data.ClientName = client.Name
	state.Data.ClientAddresses = client.AddressList

	if len(client.AddressList) == 0 {
		return StepResult{Reply: "No addresses available for the selected client.", ClearState: true}, nil
	}
	state.Step = models.StepSelectShippingAddress
	return StepResult{
		Reply: "Select a shipping address by entering the corresponding number:\n" + addressList(client.AddressList),
	}, nil
}

func (w *Wizard) stepSelectShippingAddress(state *models.InvoiceState, input string) (StepResult, error) {
	address, ok := pickAddress(state.Data.ClientAddresses, input)
	if !ok {
		return StepResult{Reply: "Invalid selection. Try again."}, nil
	}
	state.Data.ShippingAddress = &address
	state.Step = models.StepSelectBillingAddress
	return StepResult{
		Reply: "Select a billing address by entering the corresponding number:\n" + addressList(state.Data.ClientAddresses),
	}, nil
}

func (w *Wizard) stepSelectBillingAddress(state *models.InvoiceState, input string) (StepResult, error) {
	address, ok := pickAddress(state.Data.ClientAddresses, input)
	if !ok {
		return StepResult{Reply: "Invalid selection. Try again."}, nil
	}
	state.Data.BillingAddress = &address
	state.Step = models.StepConfirmCreation
	return StepResult{
		Reply: fmt.Sprintf("The total amount is ₹%.2f. Confirm the invoice by typing 'confirm' or 'cancel' to abort.", state.Data.TotalAmount),
	}, nil
}

func (w *Wizard) stepConfirmCreation(ctx context.Context, identity string, state *models.InvoiceState, input string) (StepResult, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "confirm":
		pdf, err := w.commit(ctx, identity, state.Data)
		if err != nil {
			slog.Error("Wizard.stepConfirmCreation: commit failed", "identity", identity, "error", err)
			return StepResult{ClearState: true}, fmt.Errorf("%w: %v", ErrCommitFailed, err)
		}
		return StepResult{PDF: pdf, ClearState: true}, nil
	case "cancel":
		return StepResult{Reply: "Invoice creation canceled.", ClearState: true}, nil
	default:
		return StepResult{Reply: "Please type 'confirm' or 'cancel'."}, nil
	}
}

func pickAddress(addresses []models.Address, input string) (models.Address, bool) {
	index, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || index < 1 || index > len(addresses) {
		return models.Address{}, false
	}
	return addresses[index-1], true
}

func serviceList(catalog map[string]models.Service) string {
	var lines []string
	for _, key := range sortedKeys(catalog) {
		service := catalog[key]
		lines = append(lines, fmt.Sprintf("%s. %s - ₹%s", key, service.Name, formatAmount(service.Price)))
	}
	return strings.Join(lines, "\n")
}

func addressList(addresses []models.Address) string {
	var lines []string
	for i, address := range addresses {
		lines = append(lines, fmt.Sprintf("%d. %s, %s, %s - %s",
			i+1, address.StreetAddress, address.City, address.State, address.Zip))
	}
	return strings.Join(lines, "\n")
}

// formatAmount renders a price without a forced decimal tail, so whole
// rupee amounts read "100" rather than "100.00".
func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}

// sortedKeys returns catalog keys in numeric order. Keys are stringified
// 1-based indexes, so a plain string sort would put "10" before "2".
func sortedKeys[V any](catalog map[string]V) []string {
	keys := make([]string, 0, len(catalog))
	for key := range catalog {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, _ := strconv.Atoi(keys[i])
		b, _ := strconv.Atoi(keys[j])
		return a < b
	})
	return keys
}
