package merchant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"fuego-wallet/go-agent/internal/x402"
	"fuego-wallet/go-agent/pkg/models"
)

const defaultTimeout = 60 * time.Second

var (
	// ErrUnreachable marks transport failures talking to the merchant.
	ErrUnreachable = errors.New("merchant: unreachable")
	// ErrProtocol marks an unexpected status or a missing required field.
	ErrProtocol = errors.New("merchant: protocol violation")
	// ErrPaymentRequired is returned when the merchant still demands payment
	// after a payment proof was submitted.
	ErrPaymentRequired = errors.New("merchant: payment still required")
)

// Client drives the merchant's x402 order endpoint. The same order body is
// posted on both legs; only the payment header differs.
type Client struct {
	url        string
	httpClient *http.Client
}

func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{url: url, httpClient: &http.Client{Timeout: timeout}}
}

// Outcome is one merchant response: exactly one of Receipt or Challenge is
// set on success paths.
type Outcome struct {
	Receipt   *models.OrderReceipt
	Challenge *models.PaymentChallenge
}

// CreateOrder posts the order. A 201 means no payment was needed; a 402 with
// a well-formed challenge header starts the payment flow.
func (c *Client) CreateOrder(ctx context.Context, order models.OrderRequest) (*Outcome, error) {
	resp, body, err := c.post(ctx, order, "")
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode {
	case http.StatusCreated:
		receipt, err := decodeReceipt(body)
		if err != nil {
			return nil, err
		}
		return &Outcome{Receipt: receipt}, nil
	case http.StatusPaymentRequired:
		header := resp.Header.Get(x402.HeaderPaymentRequired)
		if header == "" {
			return nil, fmt.Errorf("%w: 402 without %s header", ErrProtocol, x402.HeaderPaymentRequired)
		}
		challenge, err := x402.ParseChallenge(header)
		if err != nil {
			return nil, err
		}
		return &Outcome{Challenge: challenge}, nil
	default:
		return nil, fmt.Errorf("%w: unexpected status %d", ErrProtocol, resp.StatusCode)
	}
}

// SubmitPayment re-posts the original order with the payment proof header.
// A 201 carries the settlement transaction; a repeated 402 is a rejection.
func (c *Client) SubmitPayment(ctx context.Context, order models.OrderRequest, paymentHeader string) (*models.OrderReceipt, error) {
	resp, body, err := c.post(ctx, order, paymentHeader)
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode {
	case http.StatusCreated:
		return decodeReceipt(body)
	case http.StatusPaymentRequired:
		return nil, ErrPaymentRequired
	default:
		return nil, fmt.Errorf("%w: unexpected status %d", ErrProtocol, resp.StatusCode)
	}
}

func (c *Client) post(ctx context.Context, order models.OrderRequest, paymentHeader string) (*http.Response, []byte, error) {
	payload, err := json.Marshal(order)
	if err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if paymentHeader != "" {
		req.Header.Set(x402.HeaderPaymentSignature, paymentHeader)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return resp, body, nil
}

func decodeReceipt(body []byte) (*models.OrderReceipt, error) {
	var receipt models.OrderReceipt
	if err := json.Unmarshal(body, &receipt); err != nil {
		return nil, fmt.Errorf("%w: unparseable order response", ErrProtocol)
	}
	return &receipt, nil
}
