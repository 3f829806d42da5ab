package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is the shared adaptive cost for passwords, OTPs, secret answers
// and session tokens.
const bcryptCost = 10

// Random6 returns a 6-digit code uniformly distributed over 100000-999999,
// from crypto/rand.
func Random6() string {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		// crypto/rand only fails when the OS entropy source is broken;
		// nothing sensible can continue from here.
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return fmt.Sprintf("%06d", n.Int64()+100000)
}

// HashSecret hashes a short secret (password, OTP, secret answer) with
// bcrypt.
func HashSecret(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CompareSecret reports whether plain matches a HashSecret result. bcrypt's
// comparison does not short-circuit on the first differing byte.
func CompareSecret(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// HashSessionToken hashes a full bearer token. bcrypt truncates input at 72
// bytes, which would leave most of a JWT unauthenticated, so the token is
// digested with SHA-256 first and the digest is what bcrypt salts and
// stretches.
func HashSessionToken(token string) (string, error) {
	return HashSecret(digestToken(token))
}

// CompareSessionToken reports whether token matches a HashSessionToken
// result.
func CompareSessionToken(token, hash string) bool {
	return CompareSecret(digestToken(token), hash)
}

func digestToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ExpMinutes returns now + minutes, clamped to 10 minutes when the argument
// is not positive.
func ExpMinutes(minutes int) time.Time {
	if minutes <= 0 {
		minutes = 10
	}
	return time.Now().Add(time.Duration(minutes) * time.Minute)
}
