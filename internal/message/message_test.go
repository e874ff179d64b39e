package message

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeDecode_AuthRequest(t *testing.T) {
	req := &AuthRequest{Login: "alice"}
	frame := Encode(req)

	tag, body, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if tag != TagAuthRequest {
		t.Fatalf("tag = %v, want TagAuthRequest", tag)
	}
	got, ok := body.(*AuthRequest)
	if !ok {
		t.Fatalf("body type = %T, want *AuthRequest", body)
	}
	if got.Login != "alice" {
		t.Fatalf("Login = %q, want alice", got.Login)
	}
}

func TestEncodeDecode_AuthChallenge(t *testing.T) {
	orig := &AuthChallenge{
		Challenge: []byte{1, 2, 3, 4, 5},
		Login:     "bob",
	}
	copy(orig.Nonce[:], []byte("abcdefghijkl"))

	frame := Encode(orig)
	tag, body, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if tag != TagAuthChallenge {
		t.Fatalf("tag = %v, want TagAuthChallenge", tag)
	}
	got := body.(*AuthChallenge)
	if !bytes.Equal(got.Challenge, orig.Challenge) {
		t.Fatalf("Challenge = %v, want %v", got.Challenge, orig.Challenge)
	}
	if got.Nonce != orig.Nonce {
		t.Fatalf("Nonce = %v, want %v", got.Nonce, orig.Nonce)
	}
	if got.Login != "bob" {
		t.Fatalf("Login = %q, want bob", got.Login)
	}
}

func TestEncodeDecode_RegisterRequest(t *testing.T) {
	var secret [32]byte
	copy(secret[:], bytes.Repeat([]byte{0x42}, 32))
	orig := &RegisterRequest{Name: "Alice", Login: "alice", PasswordSecret: secret}

	frame := Encode(orig)
	tag, body, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if tag != TagRegisterRequest {
		t.Fatalf("tag = %v, want TagRegisterRequest", tag)
	}
	got := body.(*RegisterRequest)
	if got.Name != "Alice" || got.Login != "alice" || got.PasswordSecret != secret {
		t.Fatalf("RegisterRequest round trip mismatch: %+v", got)
	}
}

func TestEncodeDecode_AuthResponse(t *testing.T) {
	orig := &AuthResponse{Success: true, Message: "123456"}
	frame := Encode(orig)

	tag, body, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if tag != TagAuthResponse {
		t.Fatalf("tag = %v, want TagAuthResponse", tag)
	}
	got := body.(*AuthResponse)
	if !got.Success || got.Message != "123456" {
		t.Fatalf("AuthResponse round trip mismatch: %+v", got)
	}
}

func TestDecode_UnknownTag(t *testing.T) {
	_, _, err := Decode([]byte{0xFF})
	if !errors.Is(err, ErrUnknownTag) {
		t.Fatalf("got err %v, want ErrUnknownTag", err)
	}
}

func TestDecode_EmptyFrame(t *testing.T) {
	if _, _, err := Decode(nil); err == nil {
		t.Fatal("expected error decoding empty frame")
	}
}

func TestDecode_TruncatedBody(t *testing.T) {
	frame := []byte{byte(TagAuthRequest), 0, 5, 'a', 'b'} // claims 5-byte string, has 2
	if _, _, err := Decode(frame); err == nil {
		t.Fatal("expected error for truncated body")
	}
}

func TestEmptyAuthChallenge(t *testing.T) {
	s := EmptyAuthChallenge()
	if len(s.Challenge) != 0 || s.Login != "" {
		t.Fatalf("sentinel not empty: %+v", s)
	}
	var zero [12]byte
	if s.Nonce != zero {
		t.Fatal("sentinel nonce must be all zero")
	}
}
