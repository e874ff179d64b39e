package main

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/postalsys/protolink/internal/codec"
	"github.com/postalsys/protolink/internal/crypto"
	"github.com/postalsys/protolink/internal/message"
)

func loginCmd() *cobra.Command {
	var addr, login, password string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Complete the handshake and the auth_request/auth_challenge exchange",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(addr, login, password, timeout)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "authserver address")
	cmd.Flags().StringVar(&login, "login", "", "login (required)")
	cmd.Flags().StringVar(&password, "password", "", "password (required)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "handshake timeout")
	_ = cmd.MarkFlagRequired("login")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func runLogin(addr, login, password string, timeout time.Duration) error {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	if err := codec.WriteMode(conn, codec.ModeAuth); err != nil {
		return fmt.Errorf("write connection mode: %w", err)
	}

	secret := sha256.Sum256([]byte(password))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cc := codec.NewClientCodec(conn)
	if err := cc.Handshake(ctx, login, secret[:]); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}

	if err := cc.WriteMessage(&message.AuthRequest{Login: login}); err != nil {
		return fmt.Errorf("send auth request: %w", err)
	}

	tag, body, err := cc.ReadMessage()
	if err != nil {
		return fmt.Errorf("read auth challenge: %w", err)
	}
	if tag != message.TagAuthChallenge {
		return fmt.Errorf("unexpected reply tag %s", tag.Name())
	}
	challenge, ok := body.(*message.AuthChallenge)
	if !ok {
		return fmt.Errorf("unexpected reply type %T", body)
	}
	if len(challenge.Challenge) == 0 {
		return fmt.Errorf("unknown login %q", login)
	}

	aead, err := crypto.NewGCM(secret)
	if err != nil {
		return fmt.Errorf("build challenge cipher: %w", err)
	}
	answer, err := aead.Open(nil, challenge.Nonce[:], challenge.Challenge, nil)
	if err != nil {
		return fmt.Errorf("decrypt challenge: %w", err)
	}

	if err := cc.WriteMessage(&message.AuthChallenge{Challenge: answer, Login: login}); err != nil {
		return fmt.Errorf("send challenge answer: %w", err)
	}

	tag, body, err = cc.ReadMessage()
	if err != nil {
		return fmt.Errorf("read auth response: %w", err)
	}
	if tag != message.TagAuthResponse {
		return fmt.Errorf("unexpected reply tag %s", tag.Name())
	}
	resp, ok := body.(*message.AuthResponse)
	if !ok {
		return fmt.Errorf("unexpected reply type %T", body)
	}
	if !resp.Success {
		return fmt.Errorf("auth failed: %s", resp.Message)
	}

	fmt.Printf("authenticated %q, token=%s\n", login, resp.Message)
	return nil
}
