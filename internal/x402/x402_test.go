package x402

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
)

func encodeChallenge(t *testing.T, body string) string {
	t.Helper()
	return base64.StdEncoding.EncodeToString([]byte(body))
}

func TestParseChallengeSelectsFields(t *testing.T) {
	header := encodeChallenge(t, `{"accepts":[{
		"scheme":"exact",
		"network":"solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp",
		"amount":"10000",
		"asset":"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		"payTo":"Addr1",
		"extra":{"feePayer":"FeeAddr"}
	}]}`)
	challenge, err := ParseChallenge(header)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	req, err := FirstAccept{}.Select(challenge)
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if req.Scheme != "exact" || req.PayTo != "Addr1" {
		t.Fatalf("unexpected requirement: %+v", req)
	}
	if req.AmountUnits() != 10000 {
		t.Fatalf("expected 10000 units, got %d", req.AmountUnits())
	}
	if req.MaxTimeoutSeconds != DefaultMaxTimeoutSeconds {
		t.Fatalf("expected default timeout %d, got %d", DefaultMaxTimeoutSeconds, req.MaxTimeoutSeconds)
	}
	if req.FeePayer() != "FeeAddr" {
		t.Fatalf("expected feePayer FeeAddr, got %q", req.FeePayer())
	}
}

func TestParseChallengeNumericAmount(t *testing.T) {
	header := encodeChallenge(t, `{"accepts":[{"scheme":"exact","network":"n","amount":10000,"asset":"a","payTo":"p"}]}`)
	challenge, err := ParseChallenge(header)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if challenge.Accepts[0].AmountUnits() != 10000 {
		t.Fatalf("numeric amount not accepted")
	}
}

func TestParseChallengeAlwaysSelectsFirstEntry(t *testing.T) {
	header := encodeChallenge(t, `{"accepts":[
		{"scheme":"exact","network":"n1","amount":"1","asset":"a1","payTo":"p1"},
		{"scheme":"other","network":"n2","amount":"999999","asset":"a2","payTo":"p2"}
	]}`)
	challenge, err := ParseChallenge(header)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	req, err := FirstAccept{}.Select(challenge)
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if req.Network != "n1" {
		t.Fatalf("selector must pick entry 0, got network %q", req.Network)
	}
}

func TestParseChallengeMalformed(t *testing.T) {
	cases := map[string]string{
		"invalid base64":  "%%%not-base64%%%",
		"invalid json":    encodeChallenge(t, `{"accepts"`),
		"missing accepts": encodeChallenge(t, `{}`),
		"empty accepts":   encodeChallenge(t, `{"accepts":[]}`),
		"missing scheme":  encodeChallenge(t, `{"accepts":[{"network":"n","amount":"1","asset":"a","payTo":"p"}]}`),
		"missing network": encodeChallenge(t, `{"accepts":[{"scheme":"s","amount":"1","asset":"a","payTo":"p"}]}`),
		"missing amount":  encodeChallenge(t, `{"accepts":[{"scheme":"s","network":"n","asset":"a","payTo":"p"}]}`),
		"missing asset":   encodeChallenge(t, `{"accepts":[{"scheme":"s","network":"n","amount":"1","payTo":"p"}]}`),
		"missing payTo":   encodeChallenge(t, `{"accepts":[{"scheme":"s","network":"n","amount":"1","asset":"a"}]}`),
		"negative amount": encodeChallenge(t, `{"accepts":[{"scheme":"s","network":"n","amount":"-5","asset":"a","payTo":"p"}]}`),
	}
	for name, header := range cases {
		if _, err := ParseChallenge(header); !errors.Is(err, ErrMalformedChallenge) {
			t.Fatalf("%s: expected ErrMalformedChallenge, got %v", name, err)
		}
	}
}

func TestEncodePaymentHeader(t *testing.T) {
	header, err := EncodePaymentHeader("solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp", "c2lnbmVk")
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		t.Fatalf("header is not base64: %v", err)
	}
	var proof PaymentProof
	if err := json.Unmarshal(raw, &proof); err != nil {
		t.Fatalf("header is not JSON: %v", err)
	}
	if proof.X402Version != 2 || proof.Scheme != "exact" {
		t.Fatalf("unexpected proof envelope: %+v", proof)
	}
	if proof.Payload.Transaction != "c2lnbmVk" {
		t.Fatalf("signed transaction not carried through")
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		units    uint64
		decimals uint8
		want     string
	}{
		{10000, 6, "0.01"},
		{1000000, 6, "1.00"},
		{1234999, 6, "1.23"},
		{0, 6, "0.00"},
		{15, 1, "1.50"},
		{3, 0, "3.00"},
	}
	for _, tc := range cases {
		if got := FormatAmount(tc.units, tc.decimals); got != tc.want {
			t.Fatalf("FormatAmount(%d, %d) = %s, want %s", tc.units, tc.decimals, got, tc.want)
		}
	}
}
