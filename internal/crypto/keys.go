// Package crypto provides the key derivation, nonce construction, and
// challenge primitives that back the encrypted session codec.
//
// It derives handshake and traffic keys from a user's password secret with
// HKDF-SHA256, and builds the deterministic per-message nonces AES-256-GCM
// uses for every framed record. Spec reference: handshake key secures only
// the login-time challenge; the traffic key secures everything after.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the size of AES-256 keys and password secrets, in bytes.
	KeySize = 32

	// NonceSize is the size of AES-GCM nonces, in bytes.
	NonceSize = 12

	// TagSize is the size of the GCM authentication tag, in bytes.
	TagSize = 16

	handshakeKeyInfo = "handshake-key"
	trafficKeyInfo   = "traffic"
)

// Direction tags mixed into the per-message nonce so that client->server and
// server->client traffic never share a nonce even at the same counter value.
var (
	DirectionClientToServer = [4]byte{0x00, 0x00, 0x00, 0x01}
	DirectionServerToClient = [4]byte{0x00, 0x00, 0x00, 0x02}
)

// DeriveHandshakeKey derives the ephemeral key used to encrypt the
// login-time challenge: HKDF-Expand(secret, "handshake-key", 32).
func DeriveHandshakeKey(passwordSecret []byte) ([KeySize]byte, error) {
	return expand(passwordSecret, []byte(handshakeKeyInfo))
}

// DeriveTrafficKey derives the session key used for all post-handshake
// frames: HKDF-Expand(secret, "traffic" || clientNonce || serverNonce, 32).
// Binding both nonces ties the key to this specific session.
func DeriveTrafficKey(passwordSecret []byte, clientNonce, serverNonce [NonceSize]byte) ([KeySize]byte, error) {
	info := make([]byte, 0, len(trafficKeyInfo)+2*NonceSize)
	info = append(info, trafficKeyInfo...)
	info = append(info, clientNonce[:]...)
	info = append(info, serverNonce[:]...)
	return expand(passwordSecret, info)
}

func expand(secret, info []byte) ([KeySize]byte, error) {
	var key [KeySize]byte
	reader := hkdf.New(sha256.New, secret, nil, info)
	if _, err := reader.Read(key[:]); err != nil {
		return key, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// NewGCM constructs an AES-256-GCM AEAD from a 32-byte key.
func NewGCM(key [KeySize]byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return gcm, nil
}

// MessageNonce builds the deterministic per-message nonce: a 4-byte
// direction tag followed by the 8-byte big-endian record counter. Counters
// are independent per direction and per session; overflow is the caller's
// responsibility to detect (spec: counter overflow is session-fatal).
func MessageNonce(counter uint64, direction [4]byte) [NonceSize]byte {
	var nonce [NonceSize]byte
	copy(nonce[:4], direction[:])
	binary.BigEndian.PutUint64(nonce[4:], counter)
	return nonce
}
