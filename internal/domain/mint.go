package domain

import (
	"fmt"
	"regexp"

	"github.com/gagliardetto/solana-go"
)

// base58 run of mint length, also matches mints embedded in explorer links
var mintPattern = regexp.MustCompile(`[1-9A-HJ-NP-Za-km-z]{32,44}`)

// ParseMint validates s as a base58 Solana public key.
func ParseMint(s string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid mint %q: %w", s, err)
	}
	return pk, nil
}

// ExtractMint finds the first valid mint in free text such as a bare mint,
// a Birdeye/Solscan link or "SYMBOL (MINT)".
func ExtractMint(text string) (string, bool) {
	for _, candidate := range mintPattern.FindAllString(text, -1) {
		if _, err := ParseMint(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}
