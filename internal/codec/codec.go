// Package codec implements the two-phase encrypted session protocol: a
// handshake that authenticates the peer by proof of possession of a shared
// password secret and establishes a fresh traffic key, followed by
// steady-state AES-256-GCM framing with per-direction counters.
//
// Until the handshake completes a codec only understands the framing
// layer; ReadMessage and WriteMessage refuse to operate before that point.
package codec

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/postalsys/protolink/internal/crypto"
	"github.com/postalsys/protolink/internal/framing"
	"github.com/postalsys/protolink/internal/message"
)

// Sentinel errors distinguishing the three error tiers the core recognizes.
var (
	// ErrNotEstablished is returned by ReadMessage/WriteMessage before the
	// handshake has completed.
	ErrNotEstablished = errors.New("codec: session not established")

	// ErrCounterOverflow is transport-fatal: a direction's record counter
	// has been exhausted and the session can no longer be used.
	ErrCounterOverflow = errors.New("codec: direction counter overflow")

	// ErrHandshakeRejected is protocol-fatal: the handshake failed
	// verification and the connection must be closed without a reply.
	ErrHandshakeRejected = errors.New("codec: handshake rejected")

	// ErrMalformedMessage wraps a post-decrypt message.Decode failure (an
	// unknown tag or an undecodable body). It is never transport-fatal: the
	// frame authenticated and the session counters already advanced, so the
	// caller should answer in-band and keep reading (spec.md §4.5, §4.6, §7).
	ErrMalformedMessage = errors.New("codec: malformed message")
)

// session holds the established traffic cipher and the independent
// per-direction counters. It is never shared across connections.
type session struct {
	aead    cipher.AEAD
	sendCtr uint64
	recvCtr uint64
	sendDir [4]byte
	recvDir [4]byte
}

func (s *session) seal(plaintext []byte) ([]byte, error) {
	if s.sendCtr == math.MaxUint64 {
		return nil, ErrCounterOverflow
	}
	nonce := crypto.MessageNonce(s.sendCtr, s.sendDir)
	ciphertext := s.aead.Seal(nil, nonce[:], plaintext, nil)
	s.sendCtr++
	return ciphertext, nil
}

func (s *session) open(ciphertext []byte) ([]byte, error) {
	if s.recvCtr == math.MaxUint64 {
		return nil, ErrCounterOverflow
	}
	nonce := crypto.MessageNonce(s.recvCtr, s.recvDir)
	plaintext, err := s.aead.Open(nil, nonce[:], ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt frame: %w", err)
	}
	s.recvCtr++
	return plaintext, nil
}

// codec is the shared post-handshake behavior embedded by ServerCodec and
// ClientCodec. Before the handshake completes, sess is nil.
type codec struct {
	conn io.ReadWriter
	fr   *framing.Reader
	fw   *framing.Writer
	sess *session
}

// Established reports whether the handshake has completed.
func (c *codec) Established() bool { return c.sess != nil }

// WriteMessage encrypts and frames a single message body.
func (c *codec) WriteMessage(body message.Body) error {
	if c.sess == nil {
		return ErrNotEstablished
	}
	plaintext := message.Encode(body)
	ciphertext, err := c.sess.seal(plaintext)
	if err != nil {
		return err
	}
	return c.fw.WriteRecord(ciphertext)
}

// ReadMessage reads, decrypts, and decodes a single message body. A
// framing or decrypt failure is transport-fatal and returned as-is; a
// failure past that point (unknown tag, undecodable body) authenticated
// fine and is wrapped in ErrMalformedMessage so the caller can answer
// in-band instead of tearing the session down.
func (c *codec) ReadMessage() (message.Tag, message.Body, error) {
	if c.sess == nil {
		return 0, nil, ErrNotEstablished
	}
	frame, err := c.fr.ReadRecord()
	if err != nil {
		return 0, nil, err
	}
	plaintext, err := c.sess.open(frame)
	if err != nil {
		return 0, nil, err
	}
	tag, body, err := message.Decode(plaintext)
	if err != nil {
		return tag, nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return tag, body, nil
}

// Close closes the underlying connection, if it supports that.
func (c *codec) Close() error {
	if closer, ok := c.conn.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// deadliner is satisfied by net.Conn (including net.Pipe in tests);
// applyDeadline is a no-op for readers/writers that don't support it.
type deadliner interface {
	SetDeadline(time.Time) error
}

func applyDeadline(conn io.ReadWriter, ctx context.Context) {
	d, ok := conn.(deadliner)
	if !ok {
		return
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = d.SetDeadline(deadline)
	}
}

// randomNonce fills a fresh handshake or traffic nonce from a CSPRNG.
func randomNonce(nonce *[crypto.NonceSize]byte) error {
	_, err := io.ReadFull(rand.Reader, nonce[:])
	return err
}

// Connection mode marker. Registration has no user secret yet to run the
// handshake over, so it runs a separate unencrypted exchange on the same
// listener; this single leading byte tells the server which one a fresh
// connection wants before either sub-protocol's own framing begins. Not
// part of the handshake or steady-state wire formats themselves.
const (
	ModeRegister byte = 0x00
	ModeAuth     byte = 0x01
)

// WriteMode writes the one-byte connection mode marker.
func WriteMode(w io.Writer, mode byte) error {
	_, err := w.Write([]byte{mode})
	return err
}

// ReadMode reads the one-byte connection mode marker.
func ReadMode(r io.Reader) (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("read connection mode: %w", err)
	}
	return buf[0], nil
}
