package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// PhysicalAddress is the shipping destination sent with an order.
type PhysicalAddress struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// OrderRequest is the order-creation body POSTed to the merchant. The same
// body is re-sent unchanged on the payment leg.
type OrderRequest struct {
	Email           string          `json:"email"`
	PayerAddress    string          `json:"payerAddress"`
	ProductURL      string          `json:"productUrl"`
	PhysicalAddress PhysicalAddress `json:"physicalAddress"`
}

// OrderReceipt is the merchant's 201 response body. SerializedTransaction
// carries the settlement leg the buyer must sign and broadcast.
type OrderReceipt struct {
	OrderID               string `json:"orderId"`
	SerializedTransaction string `json:"serializedTransaction"`
	Status                string `json:"status,omitempty"`
}

// Amount is an integer amount in the asset's smallest unit. Merchants encode
// it either as a JSON string or a bare number, so it unmarshals from both.
type Amount uint64

func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if strings.HasPrefix(s, `"`) {
		var quoted string
		if err := json.Unmarshal(data, &quoted); err != nil {
			return err
		}
		s = quoted
	}
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return fmt.Errorf("amount %q is not a non-negative integer", s)
	}
	*a = Amount(v)
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatUint(uint64(a), 10))
}

func (a Amount) String() string {
	return strconv.FormatUint(uint64(a), 10)
}

// PaymentRequirement is one accepted payment option from an x402 challenge.
// Network and Asset are opaque identifiers; they are only ever compared.
type PaymentRequirement struct {
	Scheme            string             `json:"scheme"`
	Network           string             `json:"network"`
	Amount            *Amount            `json:"amount"`
	Asset             string             `json:"asset"`
	PayTo             string             `json:"payTo"`
	MaxTimeoutSeconds int                `json:"maxTimeoutSeconds,omitempty"`
	Extra             *RequirementExtras `json:"extra,omitempty"`
}

// AmountUnits returns the amount in smallest units; zero when absent.
func (r PaymentRequirement) AmountUnits() uint64 {
	if r.Amount == nil {
		return 0
	}
	return uint64(*r.Amount)
}

// RequirementExtras holds optional scheme-specific fields.
type RequirementExtras struct {
	FeePayer string `json:"feePayer,omitempty"`
}

// FeePayer returns the sponsoring fee payer, or "" when the buyer pays fees.
func (r PaymentRequirement) FeePayer() string {
	if r.Extra == nil {
		return ""
	}
	return r.Extra.FeePayer
}

// PaymentChallenge is the decoded payment-required header.
type PaymentChallenge struct {
	Accepts []PaymentRequirement `json:"accepts"`
}
