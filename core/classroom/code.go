package classroom

import (
	"crypto/rand"
	"math/big"

	"github.com/pkg/errors"
)

const (
	joinCodeLength   = 6
	joinCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// joinCodeMaxAttempts bounds the regeneration loop on join-code collisions.
	// With a 36^6 keyspace a single retry is already astronomically unlikely.
	joinCodeMaxAttempts = 5

	otpMin = 100000
	otpMax = 999999
)

// generateJoinCode returns 6 independent uniformly-random characters from [A-Z0-9].
func generateJoinCode() (string, error) {
	max := big.NewInt(int64(len(joinCodeAlphabet)))
	code := make([]byte, joinCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", errors.Wrap(err, "reading random bytes")
		}
		code[i] = joinCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// generateOTP returns a 6-digit numeric one-time code in [100000, 999999].
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpMax-otpMin+1))
	if err != nil {
		return "", errors.Wrap(err, "reading random bytes")
	}
	return big.NewInt(otpMin + n.Int64()).String(), nil
}
