package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// ChallengeLength is the size in bytes of an authentication challenge.
	ChallengeLength = 64

	// SaltLength is the size in bytes of a password salt.
	SaltLength = 16

	keyIterations = 1000
	keyLength     = 32
)

// defaultPassword replaces an empty password so that open tables still run
// the full challenge-response exchange. It is not a secret.
var defaultPassword = []rune("GameTableDefaultPassword")

// CreateChallenge returns a new random authentication challenge.
func CreateChallenge() ([]byte, error) {
	return randomBytes(ChallengeLength)
}

// CreateSalt returns a new random password salt.
func CreateSalt() ([]byte, error) {
	return randomBytes(SaltLength)
}

// CreateResponse computes the response to an authentication challenge. A key
// is derived from the password and salt with PBKDF2, and the response is the
// HMAC of the challenge under that key. Both ends of a connection compute the
// response independently, so the password never crosses the wire.
func CreateResponse(challenge []byte, password *SecureString, salt []byte) ([]byte, error) {
	if password == nil {
		return nil, fmt.Errorf("nil password")
	}

	chars := password.ToCharArray()
	if len(chars) == 0 {
		chars = append(chars, defaultPassword...)
	}
	secret := []byte(string(chars))
	wipeRunes(chars)
	defer wipeBytes(secret)

	key := pbkdf2.Key(secret, salt, keyIterations, keyLength, sha256.New)
	defer wipeBytes(key)

	mac := hmac.New(sha256.New, key)
	if _, err := mac.Write(challenge); err != nil {
		return nil, fmt.Errorf("computing challenge response: %v", err)
	}

	return mac.Sum(nil), nil
}

// VerifyResponse reports whether two challenge responses are identical. The
// comparison runs in constant time.
func VerifyResponse(expected, actual []byte) bool {
	if len(expected) == 0 || len(expected) != len(actual) {
		return false
	}
	return subtle.ConstantTimeCompare(expected, actual) == 1
}

func randomBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("secure random source unavailable: %v", err)
	}
	return buf, nil
}

func wipeBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func wipeRunes(r []rune) {
	for i := range r {
		r[i] = 0
	}
}
