package main

import (
	"crypto/sha256"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/postalsys/protolink/internal/codec"
	"github.com/postalsys/protolink/internal/framing"
	"github.com/postalsys/protolink/internal/message"
)

func registerCmd() *cobra.Command {
	var addr, name, login, password string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(addr, name, login, password, timeout)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "authserver address")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&login, "login", "", "login (required)")
	cmd.Flags().StringVar(&password, "password", "", "password (required)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "connection timeout")
	_ = cmd.MarkFlagRequired("login")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func runRegister(addr, name, login, password string, timeout time.Duration) error {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(timeout)
	_ = conn.SetDeadline(deadline)

	if err := codec.WriteMode(conn, codec.ModeRegister); err != nil {
		return fmt.Errorf("write connection mode: %w", err)
	}

	secret := sha256.Sum256([]byte(password))
	req := &message.RegisterRequest{Name: name, Login: login, PasswordSecret: secret}

	fw := framing.NewWriter(conn)
	if err := fw.WriteRecord(message.Encode(req)); err != nil {
		return fmt.Errorf("send register request: %w", err)
	}

	fr := framing.NewReader(conn)
	frame, err := fr.ReadRecord()
	if err != nil {
		return fmt.Errorf("read register reply: %w", err)
	}

	_, body, err := message.Decode(frame)
	if err != nil {
		return fmt.Errorf("decode register reply: %w", err)
	}

	resp, ok := body.(*message.AuthResponse)
	if !ok {
		return fmt.Errorf("unexpected reply type %T", body)
	}
	if !resp.Success {
		return fmt.Errorf("registration failed: %s", resp.Message)
	}

	fmt.Printf("registered %q\n", login)
	return nil
}
