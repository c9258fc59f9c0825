package x402

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"fuego-wallet/go-agent/pkg/models"
)

// PaymentProof is the structured payload carried in the payment-signature
// header when the order request is retried with a signed transaction.
type PaymentProof struct {
	X402Version int          `json:"x402Version"`
	Scheme      string       `json:"scheme"`
	Network     string       `json:"network"`
	Payload     proofPayload `json:"payload"`
}

type proofPayload struct {
	Transaction string `json:"transaction"`
}

// EncodePaymentHeader builds the base64 header value proving payment on the
// given network with the given base64-serialized signed transaction.
func EncodePaymentHeader(network, signedTxBase64 string) (string, error) {
	proof := PaymentProof{
		X402Version: protocolVersion,
		Scheme:      schemeExact,
		Network:     network,
		Payload:     proofPayload{Transaction: signedTxBase64},
	}
	raw, err := json.Marshal(proof)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// RequirementSelector picks the active payment option from a challenge.
// Selection is a policy point, not a negotiation; swapping the selector must
// not touch the purchase state machine.
type RequirementSelector interface {
	Select(challenge *models.PaymentChallenge) (models.PaymentRequirement, error)
}

// FirstAccept selects entry 0, the documented protocol tie-break.
type FirstAccept struct{}

func (FirstAccept) Select(challenge *models.PaymentChallenge) (models.PaymentRequirement, error) {
	if challenge == nil || len(challenge.Accepts) == 0 {
		return models.PaymentRequirement{}, ErrMalformedChallenge
	}
	return challenge.Accepts[0], nil
}

// FormatAmount renders a smallest-unit amount as a two-decimal human figure,
// e.g. 10000 units of a 6-decimal asset is "0.01".
func FormatAmount(units uint64, decimals uint8) string {
	scale := uint64(1)
	for i := uint8(0); i < decimals; i++ {
		scale *= 10
	}
	var cents uint64
	if scale <= 100 {
		cents = units * (100 / scale)
	} else {
		cents = (units*100 + scale/2) / scale
	}
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
