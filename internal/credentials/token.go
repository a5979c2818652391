package credentials

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"ocpigw/pkg/ocpi"
)

const (
	tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	tokenLength   = 64
)

// GenerateToken produces a fresh access token from a cryptographically
// secure random source. 64 characters over a 62-symbol alphabet is ~381 bits
// of entropy, comfortably above any guessing budget.
func GenerateToken() (ocpi.AccessToken, error) {
	alphabetSize := big.NewInt(int64(len(tokenAlphabet)))
	buf := make([]byte, tokenLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("generate access token: %w", err)
		}
		buf[i] = tokenAlphabet[n.Int64()]
	}
	return ocpi.AccessToken(buf), nil
}
