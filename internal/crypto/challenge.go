package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"io"
	mrand "math/rand"
)

// GenerateChallenge samples a random-length plaintext in [minSize, maxSize],
// fills it from a CSPRNG, and seals it with the supplied AEAD and nonce.
// It returns the plaintext (the expected answer) and the ciphertext (what
// goes on the wire). Callers must ensure 1 <= minSize <= maxSize.
func GenerateChallenge(aead cipher.AEAD, nonce [NonceSize]byte, minSize, maxSize int) (plaintext, ciphertext []byte, err error) {
	if minSize < 1 || maxSize < minSize {
		return nil, nil, fmt.Errorf("invalid challenge size range [%d, %d]", minSize, maxSize)
	}

	size := minSize
	if maxSize > minSize {
		size = minSize + mrand.Intn(maxSize-minSize+1)
	}

	plaintext = make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, plaintext); err != nil {
		return nil, nil, fmt.Errorf("sample challenge bytes: %w", err)
	}

	ciphertext = aead.Seal(nil, nonce[:], plaintext, nil)
	return plaintext, ciphertext, nil
}

// VerifyChallenge reports whether answer matches expected, in constant time
// with respect to the position of the first differing byte. It compares
// SHA-256 digests of both inputs rather than the raw bytes so differing
// lengths never leak through an early-exit comparison.
func VerifyChallenge(expected, answer []byte) bool {
	expectedDigest := sha256.Sum256(expected)
	answerDigest := sha256.Sum256(answer)
	return subtle.ConstantTimeCompare(expectedDigest[:], answerDigest[:]) == 1
}
