package codec

import (
	"context"
	"fmt"
	"io"

	"github.com/postalsys/protolink/internal/crypto"
	"github.com/postalsys/protolink/internal/framing"
)

// minChallengeRecordLen is the floor for a handshake challenge record: the
// smallest possible challenge plaintext (128 bytes) plus the GCM tag (16),
// which is the 144-byte floor spec.md §4.4 states for the ciphertext alone,
// plus the trailing 12-byte nonce that rides along in the same record.
const minChallengeRecordLen = 128 + crypto.TagSize + crypto.NonceSize

// ClientCodec runs the client side of the handshake and, once established,
// frames and encrypts every subsequent message.
type ClientCodec struct {
	codec
}

// NewClientCodec wraps rw with the length-delimited framing layer.
func NewClientCodec(rw io.ReadWriter) *ClientCodec {
	return &ClientCodec{codec{
		conn: rw,
		fr:   framing.NewReader(rw),
		fw:   framing.NewWriter(rw),
	}}
}

// Handshake runs the client view of the two-phase handshake (spec.md
// §4.4), proving possession of passwordSecret and agreeing a fresh
// traffic key with the server.
func (c *ClientCodec) Handshake(ctx context.Context, login string, passwordSecret []byte) error {
	applyDeadline(c.conn, ctx)

	if err := c.fw.WriteRecord([]byte(login)); err != nil {
		return fmt.Errorf("send login: %w", err)
	}

	challengeRecord, err := c.fr.ReadRecord()
	if err != nil {
		return fmt.Errorf("read handshake challenge: %w", err)
	}
	if len(challengeRecord) < minChallengeRecordLen {
		return fmt.Errorf("%w: handshake challenge too short", ErrHandshakeRejected)
	}

	split := len(challengeRecord) - crypto.NonceSize
	ciphertext := challengeRecord[:split]
	var handshakeNonce [crypto.NonceSize]byte
	copy(handshakeNonce[:], challengeRecord[split:])

	handshakeKey, err := crypto.DeriveHandshakeKey(passwordSecret)
	if err != nil {
		return fmt.Errorf("derive handshake key: %w", err)
	}
	handshakeAEAD, err := crypto.NewGCM(handshakeKey)
	if err != nil {
		return fmt.Errorf("build handshake cipher: %w", err)
	}

	plaintext, err := handshakeAEAD.Open(nil, handshakeNonce[:], ciphertext, nil)
	if err != nil {
		return fmt.Errorf("%w: decrypt handshake challenge: %v", ErrHandshakeRejected, err)
	}

	if err := c.fw.WriteRecord(plaintext); err != nil {
		return fmt.Errorf("send handshake answer: %w", err)
	}

	var clientNonce [crypto.NonceSize]byte
	if err := randomNonce(&clientNonce); err != nil {
		return fmt.Errorf("sample client traffic nonce: %w", err)
	}
	if err := c.fw.WriteRecord(clientNonce[:]); err != nil {
		return fmt.Errorf("send client traffic nonce: %w", err)
	}

	serverNonceBytes, err := c.fr.ReadRecord()
	if err != nil {
		return fmt.Errorf("read server traffic nonce: %w", err)
	}
	if len(serverNonceBytes) != crypto.NonceSize {
		return fmt.Errorf("%w: malformed server traffic nonce", ErrHandshakeRejected)
	}
	var serverNonce [crypto.NonceSize]byte
	copy(serverNonce[:], serverNonceBytes)

	trafficKey, err := crypto.DeriveTrafficKey(passwordSecret, clientNonce, serverNonce)
	if err != nil {
		return fmt.Errorf("derive traffic key: %w", err)
	}
	trafficAEAD, err := crypto.NewGCM(trafficKey)
	if err != nil {
		return fmt.Errorf("build traffic cipher: %w", err)
	}

	c.sess = &session{
		aead:    trafficAEAD,
		sendDir: crypto.DirectionClientToServer,
		recvDir: crypto.DirectionServerToClient,
	}

	return nil
}
