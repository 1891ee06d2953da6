package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	PayPalSandboxBaseURL = "https://api-m.sandbox.paypal.com"
	PayPalLiveBaseURL    = "https://api-m.paypal.com"

	paypalCaptureCompleted = "COMPLETED"
	maxPayPalResponseSize  = 1 << 20
)

// PayPalClient captures approved PayPal orders. There is no inbound signature
// on this path: the server initiates the capture itself with a freshly issued
// OAuth token, and the capture response is the event.
type PayPalClient struct {
	baseURL     string
	tokenConfig clientcredentials.Config
	httpClient  *http.Client
}

type CaptureResult struct {
	Event       Event
	StatusCode  int
	RawResponse []byte
}

func NewPayPalClient(baseURL string, clientID string, clientSecret string, httpClient *http.Client) *PayPalClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	baseURL = strings.TrimRight(baseURL, "/")

	return &PayPalClient{
		baseURL: baseURL,
		tokenConfig: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     baseURL + "/v1/oauth2/token",
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		httpClient: httpClient,
	}
}

func (c *PayPalClient) Capture(ctx context.Context, orderID string) (CaptureResult, error) {
	if orderID == "" {
		return CaptureResult{}, NewMalformedPayloadError("Order ID is required", nil)
	}

	token, err := c.tokenConfig.Token(context.WithValue(ctx, oauth2.HTTPClient, c.httpClient))
	if err != nil {
		return CaptureResult{}, NewProviderUnreachableError("Failed to obtain PayPal access token", err)
	}

	captureURL := fmt.Sprintf("%s/v2/checkout/orders/%s/capture", c.baseURL, url.PathEscape(orderID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, captureURL, nil)
	if err != nil {
		return CaptureResult{}, NewProviderUnreachableError("Failed to build capture request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	// Makes a retried capture of the same order idempotent on PayPal's side.
	req.Header.Set("PayPal-Request-Id", "capture-"+orderID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return CaptureResult{}, NewProviderUnreachableError(fmt.Sprintf("Capture call for order %q failed", orderID), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayPalResponseSize))
	if err != nil {
		return CaptureResult{}, NewProviderUnreachableError("Failed to read capture response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return CaptureResult{}, NewCaptureRejectedError(resp.StatusCode, body)
	}

	event, err := captureResponseToEvent(orderID, body)
	if err != nil {
		return CaptureResult{}, err
	}

	return CaptureResult{
		Event:       event,
		StatusCode:  resp.StatusCode,
		RawResponse: body,
	}, nil
}

type paypalAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalAddress struct {
	CountryCode string `json:"country_code"`
}

type paypalCaptureResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Payer  struct {
		EmailAddress string `json:"email_address"`
		Name         struct {
			GivenName string `json:"given_name"`
			Surname   string `json:"surname"`
		} `json:"name"`
		Address paypalAddress `json:"address"`
	} `json:"payer"`
	PurchaseUnits []struct {
		CustomID string `json:"custom_id"`
		Shipping struct {
			Name struct {
				FullName string `json:"full_name"`
			} `json:"name"`
			Address paypalAddress `json:"address"`
		} `json:"shipping"`
		Payments struct {
			Captures []struct {
				ID     string       `json:"id"`
				Status string       `json:"status"`
				Amount paypalAmount `json:"amount"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

func captureResponseToEvent(orderID string, body []byte) (Event, error) {
	var resp paypalCaptureResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Event{}, NewMalformedPayloadError("Capture response is not valid JSON", err)
	}

	if len(resp.PurchaseUnits) == 0 || len(resp.PurchaseUnits[0].Payments.Captures) == 0 {
		return Event{}, NewMalformedPayloadError(fmt.Sprintf("Capture response for order %q has no captures", orderID), nil)
	}
	unit := resp.PurchaseUnits[0]
	capture := unit.Payments.Captures[0]

	eventType := EVENT_FAILED
	if capture.Status == paypalCaptureCompleted {
		eventType = EVENT_COMPLETED
	}

	event := Event{
		Provider:          PROVIDER_PAYPAL,
		Type:              eventType,
		ExternalEventID:   capture.ID,
		ExternalPaymentID: orderID,
		PayerEmail:        resp.Payer.EmailAddress,
		PayerName:         strings.TrimSpace(resp.Payer.Name.GivenName + " " + resp.Payer.Name.Surname),
		PayerCountry:      resp.Payer.Address.CountryCode,
		Metadata:          map[string]string{},
	}

	if event.PayerName == "" {
		event.PayerName = unit.Shipping.Name.FullName
	}
	if event.PayerCountry == "" {
		event.PayerCountry = unit.Shipping.Address.CountryCode
	}
	if unit.CustomID != "" {
		event.Metadata["custom_id"] = unit.CustomID
	}

	if eventType == EVENT_COMPLETED {
		amount, err := ParseMajorUnits(capture.Amount.Value, capture.Amount.CurrencyCode)
		if err != nil {
			return Event{}, NewMalformedPayloadError(fmt.Sprintf("Capture %q has an invalid amount", capture.ID), err)
		}
		event.Amount = amount
	}

	return event, nil
}
