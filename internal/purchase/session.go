package purchase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fuego-wallet/go-agent/internal/facilitator"
	"fuego-wallet/go-agent/internal/merchant"
	"fuego-wallet/go-agent/internal/wallet"
	"fuego-wallet/go-agent/internal/x402"
	"fuego-wallet/go-agent/pkg/models"
)

// assetDecimals is the smallest-unit scale of the stablecoin assets the
// merchant quotes in; used only for human-readable log output.
const assetDecimals = 6

// State names one step of the purchase machine. Transitions run strictly
// forward; any failure is terminal.
type State string

const (
	StateRequesting          State = "requesting"
	StateChallengeReceived   State = "challenge_received"
	StatePaymentBuilt        State = "payment_built"
	StatePaymentSigned       State = "payment_signed"
	StatePaymentSubmitted    State = "payment_submitted"
	StateSettlementReceived  State = "settlement_received"
	StateSettlementSigned    State = "settlement_signed"
	StateSettlementSubmitted State = "settlement_submitted"
	StateComplete            State = "complete"
	StateFailed              State = "failed"
)

// Merchant is the order endpoint the orchestrator drives.
type Merchant interface {
	CreateOrder(ctx context.Context, order models.OrderRequest) (*merchant.Outcome, error)
	SubmitPayment(ctx context.Context, order models.OrderRequest, paymentHeader string) (*models.OrderReceipt, error)
}

// Orchestrator runs purchase sessions. It may be shared across concurrent
// sessions: each Run owns its own session state, and the one shared piece,
// the signing identity, serializes access internally.
type Orchestrator struct {
	merchant    Merchant
	pipeline    *Pipeline
	selector    x402.RequirementSelector
	logger      *slog.Logger
	metrics     *Metrics
	paymentOnly bool
	now         func() time.Time
}

// Option tweaks orchestrator construction.
type Option func(*Orchestrator)

func WithSelector(s x402.RequirementSelector) Option {
	return func(o *Orchestrator) { o.selector = s }
}

func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithPaymentOnly stops a session once the merchant accepts the payment,
// leaving the settlement transaction unsigned. Used for dry runs against
// test merchants.
func WithPaymentOnly() Option {
	return func(o *Orchestrator) { o.paymentOnly = true }
}

func New(m Merchant, builder Builder, broadcaster Broadcaster, identity *wallet.Identity, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		merchant: m,
		pipeline: &Pipeline{Builder: builder, Identity: identity, Broadcaster: broadcaster},
		selector: x402.FirstAccept{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Result is the outcome of a completed session.
type Result struct {
	OrderID        string
	Signature      string
	ExplorerLink   string
	PaymentSkipped bool
}

// session is the working state of one purchase run, never shared.
type session struct {
	order           models.OrderRequest
	state           State
	requirement     models.PaymentRequirement
	paymentDeadline time.Time
	startedAt       time.Time
}

// Run drives one order through the machine:
// Requesting -> ChallengeReceived -> payment leg -> SettlementReceived ->
// settlement leg -> Complete. Cancellation is checked between steps only;
// each build/sign/submit call is atomic from the machine's point of view.
func (o *Orchestrator) Run(ctx context.Context, order models.OrderRequest) (*Result, error) {
	if order.PayerAddress == "" {
		order.PayerAddress = o.pipeline.Identity.Address()
	}
	s := &session{order: order, state: StateRequesting, startedAt: o.now()}
	o.metrics.started()

	result, err := o.run(ctx, s)
	elapsed := o.now().Sub(s.startedAt)
	if err != nil {
		s.state = StateFailed
		kind := KindOf(err)
		o.metrics.failedKind(kind, elapsed)
		o.logger.Error("purchase session failed",
			slog.String("kind", string(kind)),
			slog.String("order_url", order.ProductURL))
		return nil, err
	}
	o.metrics.completed(elapsed)
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, s *session) (*Result, error) {
	if err := o.checkCancel(ctx, s); err != nil {
		return nil, err
	}

	// Requesting: a 201 here means the rare no-payment path.
	outcome, err := o.merchant.CreateOrder(ctx, s.order)
	if err != nil {
		return nil, failed(classifyMerchantErr(err), s.state, err)
	}
	if outcome.Receipt != nil {
		s.state = StateComplete
		o.logger.Info("order created without payment", slog.String("order_id", outcome.Receipt.OrderID))
		return &Result{OrderID: outcome.Receipt.OrderID, PaymentSkipped: true}, nil
	}

	s.state = StateChallengeReceived
	req, err := o.selector.Select(outcome.Challenge)
	if err != nil {
		return nil, failed(FailMalformedChallenge, s.state, err)
	}
	s.requirement = req
	// The challenge starts the payment budget: the proof must be submitted
	// before it expires or not at all.
	s.paymentDeadline = o.now().Add(time.Duration(req.MaxTimeoutSeconds) * time.Second)
	o.logger.Info("payment challenge received",
		slog.String("network", req.Network),
		slog.String("amount", x402.FormatAmount(req.AmountUnits(), assetDecimals)),
		slog.String("amount_units", req.Amount.String()),
		slog.Int("timeout_seconds", req.MaxTimeoutSeconds))

	receipt, err := o.paymentLeg(ctx, s)
	if err != nil {
		return nil, err
	}
	if o.paymentOnly {
		s.state = StateComplete
		o.logger.Info("payment accepted, settlement skipped", slog.String("order_id", receipt.OrderID))
		return &Result{OrderID: receipt.OrderID}, nil
	}
	return o.settlementLeg(ctx, s, receipt)
}

func (o *Orchestrator) paymentLeg(ctx context.Context, s *session) (*models.OrderReceipt, error) {
	if err := o.checkCancel(ctx, s); err != nil {
		return nil, err
	}
	intent := facilitator.PaymentIntent{
		PayerAddress: s.order.PayerAddress,
		PayToAddress: s.requirement.PayTo,
		Amount:       s.requirement.Amount.String(),
		Asset:        s.requirement.Asset,
		FeePayer:     s.requirement.FeePayer(),
	}
	unsigned, err := o.pipeline.Build(ctx, s.state, intent)
	if err != nil {
		return nil, err
	}
	s.state = StatePaymentBuilt

	signed, blockhash, err := o.pipeline.Sign(s.state, unsigned)
	if err != nil {
		return nil, err
	}
	s.state = StatePaymentSigned
	o.logger.Debug("payment transaction signed", slog.String("blockhash", blockhash))

	if err := o.checkCancel(ctx, s); err != nil {
		return nil, err
	}
	// A proof past its budget would be rejected anyway; never submit late.
	if o.now().After(s.paymentDeadline) {
		return nil, failed(FailTimeout, s.state, fmt.Errorf("payment budget of %ds exhausted", s.requirement.MaxTimeoutSeconds))
	}

	header, err := x402.EncodePaymentHeader(s.requirement.Network, signed)
	if err != nil {
		return nil, failed(FailProtocol, s.state, err)
	}
	receipt, err := o.merchant.SubmitPayment(ctx, s.order, header)
	if err != nil {
		if errors.Is(err, merchant.ErrPaymentRequired) {
			return nil, failed(FailPaymentRejected, s.state, err)
		}
		return nil, failed(classifyMerchantErr(err), s.state, err)
	}
	s.state = StatePaymentSubmitted
	o.logger.Info("payment accepted", slog.String("order_id", receipt.OrderID))
	return receipt, nil
}

func (o *Orchestrator) settlementLeg(ctx context.Context, s *session, receipt *models.OrderReceipt) (*Result, error) {
	s.state = StateSettlementReceived
	if receipt.SerializedTransaction == "" {
		return nil, failed(FailProtocol, s.state, errors.New("order response lacks serializedTransaction"))
	}
	if err := o.checkCancel(ctx, s); err != nil {
		return nil, err
	}

	signed, blockhash, err := o.pipeline.Sign(s.state, receipt.SerializedTransaction)
	if err != nil {
		// The settlement bytes come from the merchant, not the builder.
		var se *SessionError
		if errors.As(err, &se) {
			se.Kind = FailProtocol
		}
		return nil, err
	}
	s.state = StateSettlementSigned
	o.logger.Debug("settlement transaction signed", slog.String("blockhash", blockhash))

	if err := o.checkCancel(ctx, s); err != nil {
		return nil, err
	}
	broadcast, err := o.pipeline.Broadcast(ctx, s.state, signed)
	if err != nil {
		var se *SessionError
		if errors.As(err, &se) && se.Kind == FailSubmissionRejected {
			se.Kind = FailSettlementFailed
		}
		return nil, err
	}
	s.state = StateSettlementSubmitted

	s.state = StateComplete
	o.logger.Info("purchase complete",
		slog.String("order_id", receipt.OrderID),
		slog.String("signature", broadcast.Signature))
	return &Result{
		OrderID:      receipt.OrderID,
		Signature:    broadcast.Signature,
		ExplorerLink: broadcast.ExplorerLink,
	}, nil
}

func (o *Orchestrator) checkCancel(ctx context.Context, s *session) error {
	if err := ctx.Err(); err != nil {
		return failed(FailCanceled, s.state, err)
	}
	return nil
}

func classifyMerchantErr(err error) FailureKind {
	if errors.Is(err, x402.ErrMalformedChallenge) {
		return FailMalformedChallenge
	}
	return FailProtocol
}
