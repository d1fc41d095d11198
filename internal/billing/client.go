// Package billing wraps the fnbill invoicing REST API used by WhatsBill.
//
// Every request carries the caller's phone number in the "phone-number"
// header, and every response body is wrapped in a {"content": ...} envelope.
// Read operations degrade to empty results on failure so the invoice wizard
// can present "no data" dead ends instead of crashing a conversation. Write
// operations surface errors to the caller.
package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/xKrishnaSaxena/WhatsBill/internal/models"
)

// DefaultTimeout is the default HTTP timeout for billing API calls.
const DefaultTimeout = 30 * time.Second

// phoneNumberHeader identifies the WhatsApp user to the billing backend.
const phoneNumberHeader = "phone-number"

// Gateway defines the billing operations the invoice wizard depends on.
// Implementations must be safe for concurrent use.
type Gateway interface {
	Companies(ctx context.Context, phoneNumber string) ([]models.Company, error)
	Clients(ctx context.Context, phoneNumber string) ([]models.ClientRecord, error)
	Advertisements(ctx context.Context, phoneNumber string) ([]models.Advertisement, error)
	ServicesForCompany(ctx context.Context, companyID, phoneNumber string) ([]models.Service, error)
	CreateInvoice(ctx context.Context, phoneNumber string) (string, error)
	AttachCompany(ctx context.Context, invoiceID, companyID, phoneNumber string) error
	AttachService(ctx context.Context, invoiceID, serviceID string, quantity int, phoneNumber string) error
	AttachAdvertisement(ctx context.Context, invoiceID, advertisementID, phoneNumber string) error
	UpdateAddresses(ctx context.Context, invoiceID string, billing, shipping models.Address, phoneNumber string) error
	UpdateState(ctx context.Context, invoiceID, phoneNumber string) error
	AttachTax(ctx context.Context, invoiceID, name string, percentage float64, phoneNumber string) error
	InvoicePDF(ctx context.Context, invoiceID, phoneNumber string) ([]byte, error)
	FileURL(file string) string
}

// Opts holds configuration options for the billing client.
type Opts struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Option defines a configuration option for the billing client.
type Option func(*Opts)

// WithBaseURL sets the billing API base URL, e.g. "http://localhost:8001/v1/api".
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithTimeout overrides the default HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// WithHTTPClient injects a custom HTTP client, used by tests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client is the HTTP implementation of Gateway.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a billing client based on the provided options.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("billing base URL must be provided")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	slog.Debug("Billing client created", "baseURL", cfg.BaseURL, "timeout", cfg.Timeout)
	return &Client{baseURL: cfg.BaseURL, http: httpClient}, nil
}

// contentEnvelope wraps every billing API response body.
type contentEnvelope struct {
	Content json.RawMessage `json:"content"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, phoneNumber string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set(phoneNumberHeader, phoneNumber)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("billing API %s %s returned status %d", method, path, resp.StatusCode)
	}
	return data, nil
}

// getContent performs a GET and unmarshals the content envelope into out.
// Failures are logged, not returned, so catalogs degrade to empty.
func (c *Client) getContent(ctx context.Context, path, phoneNumber string, out any) {
	data, err := c.do(ctx, http.MethodGet, path, nil, phoneNumber)
	if err != nil {
		slog.Error("Billing fetch failed", "path", path, "error", err)
		return
	}
	var envelope contentEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		slog.Error("Billing fetch returned malformed envelope", "path", path, "error", err)
		return
	}
	if len(envelope.Content) == 0 {
		return
	}
	if err := json.Unmarshal(envelope.Content, out); err != nil {
		slog.Error("Billing fetch returned malformed content", "path", path, "error", err)
	}
}

// Companies returns the caller's companies, empty on any failure.
func (c *Client) Companies(ctx context.Context, phoneNumber string) ([]models.Company, error) {
	var companies []models.Company
	c.getContent(ctx, "/companies", phoneNumber, &companies)
	slog.Debug("Billing Companies fetched", "count", len(companies))
	return companies, nil
}

// Clients returns the caller's clients, empty on any failure.
func (c *Client) Clients(ctx context.Context, phoneNumber string) ([]models.ClientRecord, error) {
	var clients []models.ClientRecord
	c.getContent(ctx, "/clients", phoneNumber, &clients)
	slog.Debug("Billing Clients fetched", "count", len(clients))
	return clients, nil
}

// Advertisements returns the caller's advertisements, empty on any failure.
func (c *Client) Advertisements(ctx context.Context, phoneNumber string) ([]models.Advertisement, error) {
	var ads []models.Advertisement
	c.getContent(ctx, "/advertisements", phoneNumber, &ads)
	slog.Debug("Billing Advertisements fetched", "count", len(ads))
	return ads, nil
}

// ServicesForCompany returns services for the chosen company merged with the
// default company's services. The default company is the first company in the
// caller's catalog; its service names get a " (default)" suffix. When the
// chosen company is the default one, only the suffixed default services are
// returned. No companies means no way to determine a default, so no services.
func (c *Client) ServicesForCompany(ctx context.Context, companyID, phoneNumber string) ([]models.Service, error) {
	companies, _ := c.Companies(ctx, phoneNumber)
	if len(companies) == 0 {
		slog.Warn("Billing ServicesForCompany: no companies, cannot determine default")
		return nil, nil
	}
	defaultID := companies[0].ID

	var defaults []models.Service
	c.getContent(ctx, "/services/company/"+defaultID, phoneNumber, &defaults)
	for i := range defaults {
		defaults[i].Name += " (default)"
	}
	if companyID == defaultID {
		slog.Debug("Billing ServicesForCompany fetched default services", "count", len(defaults))
		return defaults, nil
	}

	var own []models.Service
	c.getContent(ctx, "/services/company/"+companyID, phoneNumber, &own)
	all := append(own, defaults...)
	slog.Debug("Billing ServicesForCompany fetched", "company", companyID, "count", len(all))
	return all, nil
}

// CreateInvoice creates a draft invoice and returns its ID.
func (c *Client) CreateInvoice(ctx context.Context, phoneNumber string) (string, error) {
	data, err := c.do(ctx, http.MethodPost, "/invoices", nil, phoneNumber)
	if err != nil {
		return "", fmt.Errorf("failed to create invoice: %w", err)
	}
	var envelope struct {
		Content struct {
			InvoiceID string `json:"invoice_id"`
			ID        string `json:"id"`
		} `json:"content"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return "", fmt.Errorf("malformed invoice creation response: %w", err)
	}
	id := envelope.Content.InvoiceID
	if id == "" {
		id = envelope.Content.ID
	}
	if id == "" {
		return "", fmt.Errorf("invoice creation response missing invoice id")
	}
	slog.Info("Billing invoice created", "invoiceID", id)
	return id, nil
}

// AttachCompany links a company to a draft invoice.
func (c *Client) AttachCompany(ctx context.Context, invoiceID, companyID, phoneNumber string) error {
	path := fmt.Sprintf("/invoices/%s/company/%s", invoiceID, companyID)
	if _, err := c.do(ctx, http.MethodPatch, path, nil, phoneNumber); err != nil {
		return fmt.Errorf("failed to attach company %s to invoice %s: %w", companyID, invoiceID, err)
	}
	return nil
}

// AttachService adds a service line with a quantity to a draft invoice.
func (c *Client) AttachService(ctx context.Context, invoiceID, serviceID string, quantity int, phoneNumber string) error {
	path := fmt.Sprintf("/invoices/%s/service/%s", invoiceID, serviceID)
	body := map[string]any{"content": map[string]any{"quantity": quantity}}
	if _, err := c.do(ctx, http.MethodPatch, path, body, phoneNumber); err != nil {
		return fmt.Errorf("failed to attach service %s to invoice %s: %w", serviceID, invoiceID, err)
	}
	return nil
}

// AttachAdvertisement links an advertisement to a draft invoice.
func (c *Client) AttachAdvertisement(ctx context.Context, invoiceID, advertisementID, phoneNumber string) error {
	path := fmt.Sprintf("/invoices/%s/advertisement/%s", invoiceID, advertisementID)
	if _, err := c.do(ctx, http.MethodPatch, path, nil, phoneNumber); err != nil {
		return fmt.Errorf("failed to attach advertisement %s to invoice %s: %w", advertisementID, invoiceID, err)
	}
	return nil
}

// UpdateAddresses sets the billing and shipping addresses and resets the
// invoice state to draft.
func (c *Client) UpdateAddresses(ctx context.Context, invoiceID string, billing, shipping models.Address, phoneNumber string) error {
	body := map[string]any{
		"content": map[string]any{
			"billing_address":  billing,
			"shipping_address": shipping,
		},
		"state": 0,
	}
	if _, err := c.do(ctx, http.MethodPatch, "/invoices/"+invoiceID, body, phoneNumber); err != nil {
		return fmt.Errorf("failed to update addresses on invoice %s: %w", invoiceID, err)
	}
	return nil
}

// UpdateState marks the invoice as finalized in the backend.
func (c *Client) UpdateState(ctx context.Context, invoiceID, phoneNumber string) error {
	body := map[string]any{"content": map[string]any{"state": 0}}
	if _, err := c.do(ctx, http.MethodPatch, "/invoices/"+invoiceID, body, phoneNumber); err != nil {
		return fmt.Errorf("failed to update state on invoice %s: %w", invoiceID, err)
	}
	return nil
}

// AttachTax adds a named percentage tax to a draft invoice.
func (c *Client) AttachTax(ctx context.Context, invoiceID, name string, percentage float64, phoneNumber string) error {
	body := map[string]any{"content": map[string]any{"name": name, "percentage": percentage}}
	if _, err := c.do(ctx, http.MethodPatch, "/invoices/"+invoiceID+"/taxes", body, phoneNumber); err != nil {
		return fmt.Errorf("failed to attach tax %s to invoice %s: %w", name, invoiceID, err)
	}
	return nil
}

// InvoicePDF renders the finished invoice and returns the PDF bytes.
func (c *Client) InvoicePDF(ctx context.Context, invoiceID, phoneNumber string) ([]byte, error) {
	path := fmt.Sprintf("/invoices/%s/generate-invoice/informal", invoiceID)
	data, err := c.do(ctx, http.MethodGet, path, nil, phoneNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch PDF for invoice %s: %w", invoiceID, err)
	}
	slog.Debug("Billing invoice PDF fetched", "invoiceID", invoiceID, "bytes", len(data))
	return data, nil
}

// FileURL returns the download URL for a file served by the billing API,
// such as an advertisement image.
func (c *Client) FileURL(file string) string {
	return fmt.Sprintf("%s/files/%s", c.baseURL, file)
}
