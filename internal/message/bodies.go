package message

import "fmt"

// Body is implemented by every message kind: it knows its own tag and how
// to serialize itself. Decoding goes through the package-level Decode
// function, which resolves the tag to the matching decoder.
type Body interface {
	Tag() Tag
	Encode() []byte
}

// RegisterRequest is the register-user request body (tag 0).
type RegisterRequest struct {
	Name           string
	Login          string
	PasswordSecret [32]byte
}

func (m *RegisterRequest) Tag() Tag { return TagRegisterRequest }

func (m *RegisterRequest) Encode() []byte {
	var w wireBuffer
	w.putString(m.Name)
	w.putString(m.Login)
	w.putFixed(m.PasswordSecret[:])
	return w.bytes()
}

func decodeRegisterRequest(data []byte) (Body, error) {
	r := newWireReader(data)
	m := &RegisterRequest{}
	var err error
	if m.Name, err = r.getString(); err != nil {
		return nil, err
	}
	if m.Login, err = r.getString(); err != nil {
		return nil, err
	}
	secret, err := r.getFixed(32)
	if err != nil {
		return nil, fmt.Errorf("RegisterRequest.password_secret: %w", err)
	}
	copy(m.PasswordSecret[:], secret)
	return m, nil
}

// AuthRequest is the first message of the auth handshake (tag 1).
type AuthRequest struct {
	Login string
}

func (m *AuthRequest) Tag() Tag { return TagAuthRequest }

func (m *AuthRequest) Encode() []byte {
	var w wireBuffer
	w.putString(m.Login)
	return w.bytes()
}

func decodeAuthRequest(data []byte) (Body, error) {
	r := newWireReader(data)
	m := &AuthRequest{}
	var err error
	if m.Login, err = r.getString(); err != nil {
		return nil, err
	}
	return m, nil
}

// AuthResponse carries the outcome of auth_challenge (tag 2). The wire
// schema includes a redundant one-byte tag field alongside the tag byte
// the framing layer already carries; it is preserved for wire compatibility
// and always mirrors TagAuthResponse.
type AuthResponse struct {
	Success bool
	Message string
}

func (m *AuthResponse) Tag() Tag { return TagAuthResponse }

func (m *AuthResponse) Encode() []byte {
	var w wireBuffer
	w.putBool(m.Success)
	w.putByte(byte(TagAuthResponse))
	w.putString(m.Message)
	return w.bytes()
}

func decodeAuthResponse(data []byte) (Body, error) {
	r := newWireReader(data)
	m := &AuthResponse{}
	var err error
	if m.Success, err = r.getBool(); err != nil {
		return nil, err
	}
	if _, err = r.getByte(); err != nil { // redundant tag field, discarded
		return nil, err
	}
	if m.Message, err = r.getString(); err != nil {
		return nil, err
	}
	return m, nil
}

// AuthChallenge is used both as the server's challenge (tag 3) and as the
// client's answer to it; the schema is shared in both directions.
type AuthChallenge struct {
	Challenge []byte
	Nonce     [12]byte
	Login     string
}

func (m *AuthChallenge) Tag() Tag { return TagAuthChallenge }

func (m *AuthChallenge) Encode() []byte {
	var w wireBuffer
	w.putBytes32(m.Challenge)
	w.putFixed(m.Nonce[:])
	w.putString(m.Login)
	return w.bytes()
}

func decodeAuthChallenge(data []byte) (Body, error) {
	r := newWireReader(data)
	m := &AuthChallenge{}
	challenge, err := r.getBytes32()
	if err != nil {
		return nil, err
	}
	m.Challenge = append([]byte(nil), challenge...)
	nonce, err := r.getFixed(12)
	if err != nil {
		return nil, fmt.Errorf("AuthChallenge.nonce: %w", err)
	}
	copy(m.Nonce[:], nonce)
	if m.Login, err = r.getString(); err != nil {
		return nil, err
	}
	return m, nil
}

// EmptyAuthChallenge is the observable failure sentinel returned by
// auth_request when the login is unknown or the challenge could not be
// persisted (spec.md §4.7): an empty challenge, a zeroed nonce, empty login.
func EmptyAuthChallenge() *AuthChallenge {
	return &AuthChallenge{Challenge: []byte{}, Nonce: [12]byte{}, Login: ""}
}

// CreateChat (tag 4) has no fields the core cares about; it exists so the
// registry has a non-auth tag to dispatch, per spec.md §3's frozen mapping.
type CreateChat struct {
	Raw []byte
}

func (m *CreateChat) Tag() Tag { return TagCreateChat }

func (m *CreateChat) Encode() []byte {
	return append([]byte(nil), m.Raw...)
}

func decodeCreateChat(data []byte) (Body, error) {
	return &CreateChat{Raw: append([]byte(nil), data...)}, nil
}
