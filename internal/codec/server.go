package codec

import (
	"context"
	"errors"
	"fmt"
	"io"
	mrand "math/rand"

	"github.com/postalsys/protolink/internal/crypto"
	"github.com/postalsys/protolink/internal/framing"
	"github.com/postalsys/protolink/internal/store/model"
)

// ServerCodec runs the server side of the handshake and, once established,
// frames and encrypts every subsequent message.
type ServerCodec struct {
	codec
}

// NewServerCodec wraps rw with the length-delimited framing layer. The
// codec is a framing-only passthrough until Handshake succeeds.
func NewServerCodec(rw io.ReadWriter) *ServerCodec {
	return &ServerCodec{codec{
		conn: rw,
		fr:   framing.NewReader(rw),
		fw:   framing.NewWriter(rw),
	}}
}

// Handshake runs the server view of the two-phase handshake (spec.md
// §4.4): resolve the claimed login, prove possession of the password
// secret via an encrypted challenge, then agree a fresh traffic key bound
// to both peers' nonces. A rejected handshake wraps ErrHandshakeRejected;
// callers must close the connection without sending anything further.
func (c *ServerCodec) Handshake(ctx context.Context, users model.UserStore) (*model.User, error) {
	applyDeadline(c.conn, ctx)

	loginBytes, err := c.fr.ReadRecord()
	if err != nil {
		return nil, fmt.Errorf("read login: %w", err)
	}
	login := string(loginBytes)

	user, err := users.FindByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown login", ErrHandshakeRejected)
		}
		return nil, fmt.Errorf("resolve login: %w", err)
	}

	handshakeKey, err := crypto.DeriveHandshakeKey(user.PasswordSecret[:])
	if err != nil {
		return nil, fmt.Errorf("derive handshake key: %w", err)
	}
	handshakeAEAD, err := crypto.NewGCM(handshakeKey)
	if err != nil {
		return nil, fmt.Errorf("build handshake cipher: %w", err)
	}

	var handshakeNonce [crypto.NonceSize]byte
	if err := randomNonce(&handshakeNonce); err != nil {
		return nil, fmt.Errorf("sample handshake nonce: %w", err)
	}

	r1 := 128 + mrand.Intn(256-128+1)
	r2 := 257 + mrand.Intn(1024-257+1)
	solution, ciphertext, err := crypto.GenerateChallenge(handshakeAEAD, handshakeNonce, r1, r2)
	if err != nil {
		return nil, fmt.Errorf("generate handshake challenge: %w", err)
	}

	challengeRecord := append(append([]byte(nil), ciphertext...), handshakeNonce[:]...)
	if err := c.fw.WriteRecord(challengeRecord); err != nil {
		return nil, fmt.Errorf("send handshake challenge: %w", err)
	}

	answer, err := c.fr.ReadRecord()
	if err != nil {
		return nil, fmt.Errorf("read handshake answer: %w", err)
	}
	if !crypto.VerifyChallenge(solution, answer) {
		return nil, fmt.Errorf("%w: incorrect handshake answer", ErrHandshakeRejected)
	}

	clientNonceBytes, err := c.fr.ReadRecord()
	if err != nil {
		return nil, fmt.Errorf("read client traffic nonce: %w", err)
	}
	if len(clientNonceBytes) != crypto.NonceSize {
		return nil, fmt.Errorf("%w: malformed client traffic nonce", ErrHandshakeRejected)
	}
	var clientNonce [crypto.NonceSize]byte
	copy(clientNonce[:], clientNonceBytes)

	var serverNonce [crypto.NonceSize]byte
	if err := randomNonce(&serverNonce); err != nil {
		return nil, fmt.Errorf("sample server traffic nonce: %w", err)
	}
	if err := c.fw.WriteRecord(serverNonce[:]); err != nil {
		return nil, fmt.Errorf("send server traffic nonce: %w", err)
	}

	trafficKey, err := crypto.DeriveTrafficKey(user.PasswordSecret[:], clientNonce, serverNonce)
	if err != nil {
		return nil, fmt.Errorf("derive traffic key: %w", err)
	}
	trafficAEAD, err := crypto.NewGCM(trafficKey)
	if err != nil {
		return nil, fmt.Errorf("build traffic cipher: %w", err)
	}

	c.sess = &session{
		aead:    trafficAEAD,
		sendDir: crypto.DirectionServerToClient,
		recvDir: crypto.DirectionClientToServer,
	}

	return user, nil
}
