package domain

import (
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ErrInvalidWallet is returned for addresses that are not valid
// base58-encoded ed25519 public keys.
var ErrInvalidWallet = errors.New("invalid wallet address")

// ValidateWallet checks that an address is base58 and decodes to a
// 32-byte ed25519 point. Applied where an address names a holder
// (streak signals). Exclusion entries skip the curve check: pool and
// LP addresses are PDAs and legitimately off the curve.
func ValidateWallet(wallet string) error {
	if len(wallet) < 32 || len(wallet) > 44 {
		return fmt.Errorf("%w: bad length %d", ErrInvalidWallet, len(wallet))
	}
	raw, err := base58.Decode(wallet)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWallet, err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("%w: decodes to %d bytes", ErrInvalidWallet, len(raw))
	}
	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return fmt.Errorf("%w: not on curve", ErrInvalidWallet)
	}
	return nil
}
