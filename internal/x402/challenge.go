package x402

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"fuego-wallet/go-agent/pkg/models"
)

const (
	// HeaderPaymentRequired carries the base64 challenge on a 402 response.
	HeaderPaymentRequired = "payment-required"
	// HeaderPaymentSignature carries the base64 payment proof on the retry.
	HeaderPaymentSignature = "X-PAYMENT-SIGNATURE"

	// DefaultMaxTimeoutSeconds applies when the merchant omits a deadline.
	DefaultMaxTimeoutSeconds = 300

	protocolVersion = 2
	schemeExact     = "exact"
)

// ErrMalformedChallenge covers every way a challenge can be unusable:
// bad base64, bad JSON, missing accepts, or a first entry missing required
// fields. Callers never need to tell transport damage from structural damage.
var ErrMalformedChallenge = errors.New("x402: malformed payment challenge")

// ParseChallenge decodes the payment-required header value.
func ParseChallenge(headerValue string) (*models.PaymentChallenge, error) {
	raw, err := base64.StdEncoding.DecodeString(headerValue)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedChallenge, err)
	}
	var challenge models.PaymentChallenge
	if err := json.Unmarshal(raw, &challenge); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedChallenge, err)
	}
	if len(challenge.Accepts) == 0 {
		return nil, fmt.Errorf("%w: no accepted payment options", ErrMalformedChallenge)
	}
	for i := range challenge.Accepts {
		normalizeRequirement(&challenge.Accepts[i])
	}
	if err := validateRequirement(challenge.Accepts[0]); err != nil {
		return nil, err
	}
	return &challenge, nil
}

func normalizeRequirement(r *models.PaymentRequirement) {
	if r.MaxTimeoutSeconds <= 0 {
		r.MaxTimeoutSeconds = DefaultMaxTimeoutSeconds
	}
}

func validateRequirement(r models.PaymentRequirement) error {
	switch {
	case r.Scheme == "":
		return fmt.Errorf("%w: missing scheme", ErrMalformedChallenge)
	case r.Network == "":
		return fmt.Errorf("%w: missing network", ErrMalformedChallenge)
	case r.Amount == nil:
		return fmt.Errorf("%w: missing amount", ErrMalformedChallenge)
	case r.Asset == "":
		return fmt.Errorf("%w: missing asset", ErrMalformedChallenge)
	case r.PayTo == "":
		return fmt.Errorf("%w: missing payTo", ErrMalformedChallenge)
	}
	return nil
}
