// Package utils holds the password hashing helpers shared by the usecase
// layer. Plaintext passwords never leave this package in any logged or
// returned value.
package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword returns a bcrypt digest using the given cost. The digest is
// self-describing (algorithm, cost, and salt are embedded), so verification
// needs no extra stored state.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword compares a bcrypt digest and a plaintext password in
// constant time. A malformed digest verifies as false rather than
// surfacing an error to the caller's control flow.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// fakeDigest is a bcrypt hash of an unguessable throwaway value. It exists
// only to burn the same CPU as a real comparison.
const fakeDigest = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// FakeVerify runs one bcrypt comparison against a fixed digest and discards
// the result. Login paths call it when the email is unknown so a failed
// lookup costs the same as a failed password check, keeping response timing
// from revealing whether an account exists.
func FakeVerify(plain string) {
	_ = bcrypt.CompareHashAndPassword([]byte(fakeDigest), []byte(plain))
}
