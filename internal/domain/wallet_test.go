package domain

import (
	"errors"
	"testing"
)

func TestValidateWallet_Valid(t *testing.T) {
	// Real ed25519 public keys.
	wallets := []string{
		"FVen3X669xLzsi6N2V91DoiyzHzg1uAgqiT8jZ9nS96Z",
		"586Z7H2vpX9qNhN2T4e9Utugie3ogjbxzGaMtM3E6HR5",
		"Hyx62wPQGyvXCoihZq1BrbUjBRh2LuNxWiiqMkfAuSZr",
	}
	for _, w := range wallets {
		if err := ValidateWallet(w); err != nil {
			t.Errorf("ValidateWallet(%s) failed: %v", w, err)
		}
	}
}

func TestValidateWallet_Invalid(t *testing.T) {
	cases := []struct {
		name   string
		wallet string
	}{
		{"empty", ""},
		{"too short", "abc"},
		{"too long", "FVen3X669xLzsi6N2V91DoiyzHzg1uAgqiT8jZ9nS96ZFVen3X669x"},
		{"bad base58 chars", "0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl"},
		{"wrong byte length", "zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateWallet(tc.wallet)
			if !errors.Is(err, ErrInvalidWallet) {
				t.Errorf("Expected ErrInvalidWallet, got %v", err)
			}
		})
	}
}
