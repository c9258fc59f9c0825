package facilitator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	headerContentType = "Content-Type"
	contentTypeJSON   = "application/json"

	defaultTimeout = 30 * time.Second
)

// Client talks to the local transaction facilitator: the service that turns
// transfer intents into unsigned transaction bytes and broadcasts signed
// ones. Network is the facilitator's cluster alias (e.g. "mainnet-beta").
type Client struct {
	baseURL    string
	network    string
	httpClient *http.Client
}

// NewClient builds a facilitator client with a bounded request timeout.
func NewClient(baseURL, network string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		network:    network,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// PaymentIntent describes the payment transaction to build.
type PaymentIntent struct {
	PayerAddress string
	PayToAddress string
	Amount       string
	Asset        string
	FeePayer     string
}

type buildPaymentRequest struct {
	Network      string `json:"network"`
	PayerAddress string `json:"payer_address"`
	PayToAddress string `json:"pay_to_address"`
	Amount       string `json:"amount"`
	Asset        string `json:"asset"`
	FeePayer     string `json:"fee_payer,omitempty"`
}

type buildTransferRequest struct {
	Network     string `json:"network"`
	FromAddress string `json:"from_address"`
	ToAddress   string `json:"to_address"`
	Amount      string `json:"amount"`
}

type submitRequest struct {
	Network     string `json:"network"`
	Transaction string `json:"transaction"`
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type transactionData struct {
	Transaction string `json:"transaction"`
	Blockhash   string `json:"blockhash"`
	Memo        string `json:"memo"`
}

// BroadcastResult is the facilitator's confirmation of an on-chain submit.
type BroadcastResult struct {
	Signature    string `json:"signature"`
	ExplorerLink string `json:"explorer_link"`
}

// BuildPayment asks the facilitator for an unsigned payment transaction
// matching an x402 requirement. Returns the base64 transaction bytes.
func (c *Client) BuildPayment(ctx context.Context, intent PaymentIntent) (string, error) {
	req := buildPaymentRequest{
		Network:      c.network,
		PayerAddress: intent.PayerAddress,
		PayToAddress: intent.PayToAddress,
		Amount:       intent.Amount,
		Asset:        intent.Asset,
		FeePayer:     intent.FeePayer,
	}
	var data transactionData
	if err := c.post(ctx, "/build-x402-purch-payment", req, &data); err != nil {
		return "", err
	}
	if data.Transaction == "" {
		return "", &APIError{Op: "build-payment", Reason: "facilitator returned no transaction"}
	}
	return data.Transaction, nil
}

// BuildTransfer asks for an unsigned plain transfer (usdc, sol, usdt).
func (c *Client) BuildTransfer(ctx context.Context, token, from, to, amount string) (string, error) {
	path := "/build-transfer-" + strings.ToLower(token)
	req := buildTransferRequest{
		Network:     c.network,
		FromAddress: from,
		ToAddress:   to,
		Amount:      amount,
	}
	var data transactionData
	if err := c.post(ctx, path, req, &data); err != nil {
		return "", err
	}
	if data.Transaction == "" {
		return "", &APIError{Op: "build-transfer", Reason: "facilitator returned no transaction"}
	}
	return data.Transaction, nil
}

// SubmitTransaction broadcasts a signed base64 transaction.
func (c *Client) SubmitTransaction(ctx context.Context, signedTxBase64 string) (*BroadcastResult, error) {
	req := submitRequest{Network: c.network, Transaction: signedTxBase64}
	var data BroadcastResult
	if err := c.post(ctx, "/submit-transaction", req, &data); err != nil {
		return nil, err
	}
	if data.Signature == "" {
		return nil, &APIError{Op: "submit-transaction", Reason: "facilitator returned no signature"}
	}
	return &data, nil
}

// post performs one JSON request. Each call is attempted exactly once; the
// caller owns any retry decision.
func (c *Client) post(ctx context.Context, path string, body, result any) error {
	op := strings.TrimPrefix(path, "/")
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set(headerContentType, contentTypeJSON)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Reason: "unparseable response"}
	}
	if resp.StatusCode != http.StatusOK || !envelope.Success {
		reason := envelope.Error
		if reason == "" {
			reason = http.StatusText(resp.StatusCode)
		}
		return &APIError{Op: op, StatusCode: resp.StatusCode, Reason: reason}
	}
	if result != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, result); err != nil {
			return &APIError{Op: op, StatusCode: resp.StatusCode, Reason: "unparseable response data"}
		}
	}
	return nil
}
