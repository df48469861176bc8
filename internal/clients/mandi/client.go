package mandi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mamadbah2/mandi/internal/domain/models"
	"github.com/mamadbah2/mandi/internal/domain/settlement"
)

// APIError is a non-2xx response from the mandi API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mandi api error: status=%d, message=%s", e.StatusCode, e.Message)
}

type errorBody struct {
	Error string `json:"error"`
}

// RecordQuery filters GET /api/records.
type RecordQuery struct {
	FarmerID string
	TraderID string
	From     string
	To       string
}

// Client talks to the records and invoice endpoints of the mandi API.
type Client struct {
	httpClient *resty.Client
}

// NewClient builds a client for baseURL authenticating with a bearer token.
func NewClient(baseURL, token string) *Client {
	restyClient := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetHeader("Accept", "application/json").
		SetTimeout(15 * time.Second)
	if token != "" {
		restyClient.SetAuthToken(token)
	}
	return &Client{httpClient: restyClient}
}

// ListRecords fetches the lots visible to the caller.
func (c *Client) ListRecords(ctx context.Context, q RecordQuery) ([]models.Lot, error) {
	var result struct {
		Records []models.Lot `json:"records"`
	}
	req := c.httpClient.R().SetContext(ctx).SetResult(&result).SetError(&errorBody{})
	for key, value := range map[string]string{"farmer_id": q.FarmerID, "trader_id": q.TraderID, "from": q.From, "to": q.To} {
		if value != "" {
			req.SetQueryParam(key, value)
		}
	}
	resp, err := req.Get("/api/records")
	if err := check(resp, err, "list records"); err != nil {
		return nil, err
	}
	return result.Records, nil
}

// GetRecord fetches one lot.
func (c *Client) GetRecord(ctx context.Context, id string) (models.Lot, error) {
	var lot models.Lot
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&lot).
		SetError(&errorBody{}).
		Get("/api/records/{id}")
	if err := check(resp, err, "get record"); err != nil {
		return models.Lot{}, err
	}
	return lot, nil
}

// Invoice fetches the reconciled invoice of one lot.
func (c *Client) Invoice(ctx context.Context, id string) (settlement.Invoice, error) {
	var inv settlement.Invoice
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&inv).
		SetError(&errorBody{}).
		Get("/api/records/{id}/invoice")
	if err := check(resp, err, "get invoice"); err != nil {
		return settlement.Invoice{}, err
	}
	return inv, nil
}

// InvoicePDF downloads the rendered invoice.
func (c *Client) InvoicePDF(ctx context.Context, id string) ([]byte, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetHeader("Accept", "application/pdf").
		SetError(&errorBody{}).
		Get("/api/records/{id}/invoice.pdf")
	if err := check(resp, err, "download invoice"); err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

func check(resp *resty.Response, err error, op string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if resp.StatusCode() < http.StatusBadRequest {
		return nil
	}
	apiErr := &APIError{StatusCode: resp.StatusCode()}
	if body, ok := resp.Error().(*errorBody); ok && body != nil {
		apiErr.Message = body.Error
	}
	return fmt.Errorf("%s: %w", op, apiErr)
}
