package purchase

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"fuego-wallet/go-agent/internal/facilitator"
	"fuego-wallet/go-agent/internal/solana"
	"fuego-wallet/go-agent/internal/wallet"
)

// Builder turns a transfer intent into unsigned transaction bytes.
type Builder interface {
	BuildPayment(ctx context.Context, intent facilitator.PaymentIntent) (string, error)
}

// Broadcaster submits a signed transaction to the chain.
type Broadcaster interface {
	SubmitTransaction(ctx context.Context, signedTxBase64 string) (*facilitator.BroadcastResult, error)
}

// Pipeline is the build -> sign -> submit chain for one transaction. Each
// step runs its external call exactly once per invocation; retrying, if any,
// is the caller's decision.
type Pipeline struct {
	Builder     Builder
	Identity    *wallet.Identity
	Broadcaster Broadcaster
}

// Build requests unsigned transaction bytes for the intent.
func (p *Pipeline) Build(ctx context.Context, state State, intent facilitator.PaymentIntent) (string, error) {
	unsigned, err := p.Builder.BuildPayment(ctx, intent)
	if err != nil {
		return "", failed(classifyBuilderErr(err), state, err)
	}
	return unsigned, nil
}

// Sign deserializes the unsigned transaction, signs its message with the
// ordering token already embedded, and re-serializes. The blockhash is read
// from the transaction itself and returned for logging; it is never fetched
// separately.
func (p *Pipeline) Sign(state State, unsignedBase64 string) (signedBase64, blockhash string, err error) {
	raw, err := base64.StdEncoding.DecodeString(unsignedBase64)
	if err != nil {
		return "", "", failed(FailBuilderRejected, state, fmt.Errorf("unsigned transaction is not base64: %w", err))
	}
	tx, err := solana.Parse(raw)
	if err != nil {
		return "", "", failed(FailBuilderRejected, state, err)
	}
	blockhash, err = tx.RecentBlockhash()
	if err != nil {
		return "", "", failed(FailBuilderRejected, state, err)
	}
	if err := tx.Sign(p.Identity); err != nil {
		return "", "", failed(FailBuilderRejected, state, err)
	}
	return base64.StdEncoding.EncodeToString(tx.Serialize()), blockhash, nil
}

// Broadcast submits the signed transaction on-chain.
func (p *Pipeline) Broadcast(ctx context.Context, state State, signedBase64 string) (*facilitator.BroadcastResult, error) {
	result, err := p.Broadcaster.SubmitTransaction(ctx, signedBase64)
	if err != nil {
		if errors.Is(err, facilitator.ErrUnavailable) {
			return nil, failed(FailBuilderUnavailable, state, err)
		}
		return nil, failed(FailSubmissionRejected, state, err)
	}
	return result, nil
}

func classifyBuilderErr(err error) FailureKind {
	if errors.Is(err, facilitator.ErrUnavailable) {
		return FailBuilderUnavailable
	}
	return FailBuilderRejected
}
