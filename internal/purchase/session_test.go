package purchase

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"fuego-wallet/go-agent/internal/facilitator"
	"fuego-wallet/go-agent/internal/keystore"
	"fuego-wallet/go-agent/internal/merchant"
	"fuego-wallet/go-agent/internal/wallet"
	"fuego-wallet/go-agent/internal/x402"
	"fuego-wallet/go-agent/pkg/models"
)

type fakeMerchant struct {
	createOrder   func(ctx context.Context, order models.OrderRequest) (*merchant.Outcome, error)
	submitPayment func(ctx context.Context, order models.OrderRequest, header string) (*models.OrderReceipt, error)
}

func (f *fakeMerchant) CreateOrder(ctx context.Context, order models.OrderRequest) (*merchant.Outcome, error) {
	return f.createOrder(ctx, order)
}

func (f *fakeMerchant) SubmitPayment(ctx context.Context, order models.OrderRequest, header string) (*models.OrderReceipt, error) {
	return f.submitPayment(ctx, order, header)
}

type fakeBuilder struct {
	build func(ctx context.Context, intent facilitator.PaymentIntent) (string, error)
}

func (f *fakeBuilder) BuildPayment(ctx context.Context, intent facilitator.PaymentIntent) (string, error) {
	return f.build(ctx, intent)
}

type fakeBroadcaster struct {
	calls  int
	submit func(ctx context.Context, signed string) (*facilitator.BroadcastResult, error)
}

func (f *fakeBroadcaster) SubmitTransaction(ctx context.Context, signed string) (*facilitator.BroadcastResult, error) {
	f.calls++
	return f.submit(ctx, signed)
}

func testIdentity() *wallet.Identity {
	var secret keystore.Secret
	copy(secret.Seed[:], bytes.Repeat([]byte{0x51}, 32))
	return wallet.NewIdentity(&secret)
}

// unsignedTxBase64 builds a minimal transaction whose only required signer is
// the identity's key.
func unsignedTxBase64(id *wallet.Identity) string {
	msg := []byte{1, 0, 1}
	msg = append(msg, 2)
	msg = append(msg, id.PublicKey()...)
	msg = append(msg, bytes.Repeat([]byte{0x09}, 32)...)
	msg = append(msg, bytes.Repeat([]byte{0xAA}, 32)...)
	msg = append(msg, 0)

	raw := []byte{1}
	raw = append(raw, make([]byte, 64)...)
	raw = append(raw, msg...)
	return base64.StdEncoding.EncodeToString(raw)
}

func testChallenge(maxTimeout int) *merchant.Outcome {
	amount := models.Amount(10000)
	return &merchant.Outcome{Challenge: &models.PaymentChallenge{
		Accepts: []models.PaymentRequirement{{
			Scheme:            "exact",
			Network:           "solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp",
			Amount:            &amount,
			Asset:             "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
			PayTo:             "Addr1",
			MaxTimeoutSeconds: maxTimeout,
		}},
	}}
}

var testOrder = models.OrderRequest{
	Email:      "agent@example.com",
	ProductURL: "https://shop.example/widget",
	PhysicalAddress: models.PhysicalAddress{
		Name: "A Buyer", Line1: "1 Main St", City: "Springfield",
		State: "CA", PostalCode: "90000", Country: "US",
	},
}

func TestHappyPath(t *testing.T) {
	id := testIdentity()
	defer id.Zero()
	settlement := unsignedTxBase64(id)

	var paymentHeader string
	m := &fakeMerchant{
		createOrder: func(ctx context.Context, order models.OrderRequest) (*merchant.Outcome, error) {
			if order.PayerAddress != id.Address() {
				t.Errorf("payer address not filled from identity: %q", order.PayerAddress)
			}
			return testChallenge(300), nil
		},
		submitPayment: func(ctx context.Context, order models.OrderRequest, header string) (*models.OrderReceipt, error) {
			paymentHeader = header
			return &models.OrderReceipt{OrderID: "O1", SerializedTransaction: settlement}, nil
		},
	}
	b := &fakeBuilder{build: func(ctx context.Context, intent facilitator.PaymentIntent) (string, error) {
		if intent.Amount != "10000" || intent.PayToAddress != "Addr1" {
			t.Errorf("intent not derived from requirement: %+v", intent)
		}
		return unsignedTxBase64(id), nil
	}}
	bc := &fakeBroadcaster{submit: func(ctx context.Context, signed string) (*facilitator.BroadcastResult, error) {
		return &facilitator.BroadcastResult{Signature: "5sig", ExplorerLink: "https://explorer.example/tx/5sig"}, nil
	}}

	o := New(m, b, bc, id)
	result, err := o.Run(context.Background(), testOrder)
	if err != nil {
		t.Fatalf("happy path failed: %v", err)
	}
	if result.Signature == "" || result.OrderID != "O1" {
		t.Fatalf("unexpected result: %+v", result)
	}

	raw, err := base64.StdEncoding.DecodeString(paymentHeader)
	if err != nil {
		t.Fatalf("payment header is not base64: %v", err)
	}
	var proof x402.PaymentProof
	if err := json.Unmarshal(raw, &proof); err != nil {
		t.Fatalf("payment header is not a proof payload: %v", err)
	}
	if proof.X402Version != 2 || proof.Payload.Transaction == "" {
		t.Fatalf("proof payload incomplete: %+v", proof)
	}
	if bc.calls != 1 {
		t.Fatalf("settlement must broadcast exactly once, got %d", bc.calls)
	}
}

func TestNoPaymentPathCompletesImmediately(t *testing.T) {
	id := testIdentity()
	defer id.Zero()
	m := &fakeMerchant{
		createOrder: func(ctx context.Context, order models.OrderRequest) (*merchant.Outcome, error) {
			return &merchant.Outcome{Receipt: &models.OrderReceipt{OrderID: "O-free"}}, nil
		},
	}
	bc := &fakeBroadcaster{submit: func(ctx context.Context, signed string) (*facilitator.BroadcastResult, error) {
		t.Fatal("broadcaster must not be called on the no-payment path")
		return nil, nil
	}}
	b := &fakeBuilder{build: func(ctx context.Context, intent facilitator.PaymentIntent) (string, error) {
		t.Fatal("builder must not be called on the no-payment path")
		return "", nil
	}}

	result, err := New(m, b, bc, id).Run(context.Background(), testOrder)
	if err != nil {
		t.Fatalf("no-payment path failed: %v", err)
	}
	if !result.PaymentSkipped || result.OrderID != "O-free" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestChallengeLogCarriesHumanReadableAmount(t *testing.T) {
	id := testIdentity()
	defer id.Zero()
	settlement := unsignedTxBase64(id)
	m := &fakeMerchant{
		createOrder: func(ctx context.Context, order models.OrderRequest) (*merchant.Outcome, error) {
			return testChallenge(300), nil
		},
		submitPayment: func(ctx context.Context, order models.OrderRequest, header string) (*models.OrderReceipt, error) {
			return &models.OrderReceipt{OrderID: "O1", SerializedTransaction: settlement}, nil
		},
	}
	b := &fakeBuilder{build: func(ctx context.Context, intent facilitator.PaymentIntent) (string, error) {
		return unsignedTxBase64(id), nil
	}}
	bc := &fakeBroadcaster{submit: func(ctx context.Context, signed string) (*facilitator.BroadcastResult, error) {
		return &facilitator.BroadcastResult{Signature: "5sig"}, nil
	}}

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	if _, err := New(m, b, bc, id, WithLogger(logger)).Run(context.Background(), testOrder); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	// 10000 units of a 6-decimal asset.
	if !strings.Contains(logs.String(), `"amount":"0.01"`) {
		t.Fatalf("challenge log lacks formatted amount: %s", logs.String())
	}
	if !strings.Contains(logs.String(), `"amount_units":"10000"`) {
		t.Fatalf("challenge log lacks raw units: %s", logs.String())
	}
}

func TestPaymentOnlyStopsAfterAcceptance(t *testing.T) {
	id := testIdentity()
	defer id.Zero()
	settlement := unsignedTxBase64(id)
	m := &fakeMerchant{
		createOrder: func(ctx context.Context, order models.OrderRequest) (*merchant.Outcome, error) {
			return testChallenge(300), nil
		},
		submitPayment: func(ctx context.Context, order models.OrderRequest, header string) (*models.OrderReceipt, error) {
			return &models.OrderReceipt{OrderID: "O-dry", SerializedTransaction: settlement}, nil
		},
	}
	b := &fakeBuilder{build: func(ctx context.Context, intent facilitator.PaymentIntent) (string, error) {
		return unsignedTxBase64(id), nil
	}}
	bc := &fakeBroadcaster{submit: func(ctx context.Context, signed string) (*facilitator.BroadcastResult, error) {
		return &facilitator.BroadcastResult{Signature: "never"}, nil
	}}

	result, err := New(m, b, bc, id, WithPaymentOnly()).Run(context.Background(), testOrder)
	if err != nil {
		t.Fatalf("payment-only run failed: %v", err)
	}
	if result.OrderID != "O-dry" || result.Signature != "" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if bc.calls != 0 {
		t.Fatalf("payment-only run must not broadcast settlement")
	}
}

func TestPaymentRejectionNeverReachesSettlement(t *testing.T) {
	id := testIdentity()
	defer id.Zero()
	m := &fakeMerchant{
		createOrder: func(ctx context.Context, order models.OrderRequest) (*merchant.Outcome, error) {
			return testChallenge(300), nil
		},
		submitPayment: func(ctx context.Context, order models.OrderRequest, header string) (*models.OrderReceipt, error) {
			return nil, merchant.ErrPaymentRequired
		},
	}
	b := &fakeBuilder{build: func(ctx context.Context, intent facilitator.PaymentIntent) (string, error) {
		return unsignedTxBase64(id), nil
	}}
	bc := &fakeBroadcaster{submit: func(ctx context.Context, signed string) (*facilitator.BroadcastResult, error) {
		return &facilitator.BroadcastResult{Signature: "never"}, nil
	}}

	_, err := New(m, b, bc, id).Run(context.Background(), testOrder)
	if KindOf(err) != FailPaymentRejected {
		t.Fatalf("expected FailPaymentRejected, got %v", err)
	}
	if bc.calls != 0 {
		t.Fatalf("settlement leg must never run after a payment rejection")
	}
}

func TestExpiredBudgetFailsWithTimeoutBeforeSubmission(t *testing.T) {
	id := testIdentity()
	defer id.Zero()
	submitted := false
	m := &fakeMerchant{
		createOrder: func(ctx context.Context, order models.OrderRequest) (*merchant.Outcome, error) {
			return testChallenge(1), nil
		},
		submitPayment: func(ctx context.Context, order models.OrderRequest, header string) (*models.OrderReceipt, error) {
			submitted = true
			return &models.OrderReceipt{OrderID: "O1"}, nil
		},
	}
	b := &fakeBuilder{build: func(ctx context.Context, intent facilitator.PaymentIntent) (string, error) {
		return unsignedTxBase64(id), nil
	}}
	bc := &fakeBroadcaster{submit: func(ctx context.Context, signed string) (*facilitator.BroadcastResult, error) {
		return nil, nil
	}}

	o := New(m, b, bc, id)
	base := time.Now()
	calls := 0
	// First two reads anchor the session and the budget; afterwards the
	// clock has drifted past the 1s budget.
	o.now = func() time.Time {
		calls++
		if calls <= 2 {
			return base
		}
		return base.Add(2 * time.Second)
	}

	_, err := o.Run(context.Background(), testOrder)
	if KindOf(err) != FailTimeout {
		t.Fatalf("expected FailTimeout, got %v", err)
	}
	if submitted {
		t.Fatalf("a late payment proof must never be submitted")
	}
}

func TestBuilderDownClassifiedUnavailable(t *testing.T) {
	id := testIdentity()
	defer id.Zero()
	m := &fakeMerchant{
		createOrder: func(ctx context.Context, order models.OrderRequest) (*merchant.Outcome, error) {
			return testChallenge(300), nil
		},
	}
	b := &fakeBuilder{build: func(ctx context.Context, intent facilitator.PaymentIntent) (string, error) {
		return "", facilitator.ErrUnavailable
	}}
	bc := &fakeBroadcaster{submit: func(ctx context.Context, signed string) (*facilitator.BroadcastResult, error) {
		return nil, nil
	}}

	_, err := New(m, b, bc, id).Run(context.Background(), testOrder)
	if KindOf(err) != FailBuilderUnavailable {
		t.Fatalf("expected FailBuilderUnavailable, got %v", err)
	}
}

func TestSettlementBroadcastRejectionIsSettlementFailed(t *testing.T) {
	id := testIdentity()
	defer id.Zero()
	settlement := unsignedTxBase64(id)
	m := &fakeMerchant{
		createOrder: func(ctx context.Context, order models.OrderRequest) (*merchant.Outcome, error) {
			return testChallenge(300), nil
		},
		submitPayment: func(ctx context.Context, order models.OrderRequest, header string) (*models.OrderReceipt, error) {
			return &models.OrderReceipt{OrderID: "O1", SerializedTransaction: settlement}, nil
		},
	}
	b := &fakeBuilder{build: func(ctx context.Context, intent facilitator.PaymentIntent) (string, error) {
		return unsignedTxBase64(id), nil
	}}
	bc := &fakeBroadcaster{submit: func(ctx context.Context, signed string) (*facilitator.BroadcastResult, error) {
		return nil, &facilitator.APIError{Op: "submit-transaction", Reason: "blockhash expired"}
	}}

	_, err := New(m, b, bc, id).Run(context.Background(), testOrder)
	if KindOf(err) != FailSettlementFailed {
		t.Fatalf("expected FailSettlementFailed, got %v", err)
	}
}

func TestMissingSettlementTransactionIsProtocolError(t *testing.T) {
	id := testIdentity()
	defer id.Zero()
	m := &fakeMerchant{
		createOrder: func(ctx context.Context, order models.OrderRequest) (*merchant.Outcome, error) {
			return testChallenge(300), nil
		},
		submitPayment: func(ctx context.Context, order models.OrderRequest, header string) (*models.OrderReceipt, error) {
			return &models.OrderReceipt{OrderID: "O1"}, nil
		},
	}
	b := &fakeBuilder{build: func(ctx context.Context, intent facilitator.PaymentIntent) (string, error) {
		return unsignedTxBase64(id), nil
	}}
	bc := &fakeBroadcaster{submit: func(ctx context.Context, signed string) (*facilitator.BroadcastResult, error) {
		return nil, nil
	}}

	_, err := New(m, b, bc, id).Run(context.Background(), testOrder)
	if KindOf(err) != FailProtocol {
		t.Fatalf("expected FailProtocol, got %v", err)
	}
}

func TestCanceledContextStopsBetweenSteps(t *testing.T) {
	id := testIdentity()
	defer id.Zero()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := &fakeMerchant{
		createOrder: func(ctx context.Context, order models.OrderRequest) (*merchant.Outcome, error) {
			t.Fatal("no step may run after cancellation")
			return nil, nil
		},
	}
	b := &fakeBuilder{build: func(ctx context.Context, intent facilitator.PaymentIntent) (string, error) {
		return "", nil
	}}
	bc := &fakeBroadcaster{submit: func(ctx context.Context, signed string) (*facilitator.BroadcastResult, error) {
		return nil, nil
	}}

	_, err := New(m, b, bc, id).Run(ctx, testOrder)
	if KindOf(err) != FailCanceled {
		t.Fatalf("expected FailCanceled, got %v", err)
	}
}
