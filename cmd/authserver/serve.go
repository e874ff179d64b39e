package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/postalsys/protolink/internal/auth"
	"github.com/postalsys/protolink/internal/chat"
	"github.com/postalsys/protolink/internal/codec"
	"github.com/postalsys/protolink/internal/config"
	"github.com/postalsys/protolink/internal/framing"
	"github.com/postalsys/protolink/internal/logging"
	"github.com/postalsys/protolink/internal/message"
	"github.com/postalsys/protolink/internal/metrics"
	"github.com/postalsys/protolink/internal/recovery"
	"github.com/postalsys/protolink/internal/register"
	"github.com/postalsys/protolink/internal/router"
	"github.com/postalsys/protolink/internal/store/postgres"
)

func serveCmd() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the auth core server",
		Long:  "serve starts the TCP listener, accepts connections, and runs the handshake-then-dispatch loop for each one.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(metricsAddr)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to expose Prometheus metrics on (disabled if empty)")

	return cmd
}

func serve(metricsAddr string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect store: %w", err)
	}
	defer store.Close()

	m := metrics.Default()

	rtr := router.New()
	if err := rtr.Register("auth", auth.New(store, logger, m)); err != nil {
		return fmt.Errorf("register auth handler: %w", err)
	}
	if err := rtr.Register("register", register.New(store.Users(), logger, m)); err != nil {
		return fmt.Errorf("register register handler: %w", err)
	}
	if err := rtr.Register("chat", chat.New()); err != nil {
		return fmt.Errorf("register chat handler: %w", err)
	}

	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddr, err)
	}
	logger.Info("listening", logging.KeyComponent, "authserver", "addr", cfg.ListenAddr)

	var metricsSrv *http.Server
	if metricsAddr != "" {
		metricsSrv = &http.Server{Addr: metricsAddr, Handler: promhttp.Handler()}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server", logging.KeyError, err)
			}
		}()
		logger.Info("metrics listening", "addr", metricsAddr)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go acceptLoop(ctx, listener, rtr, store, m, cfg.HandshakeTimeout, logger, &wg)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig.String())

	cancel()
	_ = listener.Close()
	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = metricsSrv.Shutdown(shutdownCtx)
		shutdownCancel()
	}
	wg.Wait()

	logger.Info("stopped")
	return nil
}

// acceptLoop accepts connections until ctx is cancelled or the listener is
// closed, spawning one goroutine per connection (spec.md §4.8).
func acceptLoop(ctx context.Context, listener net.Listener, rtr *router.Router, store *postgres.Store, m *metrics.Metrics, handshakeTimeout time.Duration, logger *slog.Logger, wg *sync.WaitGroup) {
	defer wg.Done()

	var connWG sync.WaitGroup
	defer connWG.Wait()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				logger.Error("accept", logging.KeyError, err)
				return
			}
		}

		m.ConnectionsAccepted.Inc()
		connWG.Add(1)
		go func() {
			defer connWG.Done()
			defer recovery.RecoverWithLog(logger, "serveConn")
			serveConn(ctx, conn, rtr, store, m, handshakeTimeout, logger)
		}()
	}
}

// serveConn dispatches on the leading connection-mode byte, then either
// handles a single unencrypted registration exchange or runs the handshake
// and dispatch loop for an authenticated session (spec.md §4.4, §4.8).
func serveConn(ctx context.Context, conn net.Conn, rtr *router.Router, store *postgres.Store, m *metrics.Metrics, handshakeTimeout time.Duration, logger *slog.Logger) {
	defer conn.Close()

	remoteAddr := conn.RemoteAddr().String()

	mode, err := codec.ReadMode(conn)
	if err != nil {
		logger.Debug("read connection mode", logging.KeyRemoteAddr, remoteAddr, logging.KeyError, err)
		return
	}

	if mode == codec.ModeRegister {
		serveRegister(ctx, conn, rtr, remoteAddr, logger)
		return
	}

	sc := codec.NewServerCodec(conn)

	handshakeCtx, handshakeCancel := context.WithTimeout(ctx, handshakeTimeout)
	start := time.Now()
	user, err := sc.Handshake(handshakeCtx, store.Users())
	handshakeCancel()
	m.HandshakeLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		m.HandshakeErrors.WithLabelValues("handshake_failed").Inc()
		logger.Warn("handshake failed", logging.KeyRemoteAddr, remoteAddr, logging.KeyError, err)
		return
	}
	// The handshake deadline bounds the handshake only, not the dispatch loop.
	_ = conn.SetDeadline(time.Time{})

	m.ConnectionsActive.Inc()
	defer m.ConnectionsActive.Dec()

	logger.Info("session established", logging.KeyRemoteAddr, remoteAddr, logging.KeyLogin, user.Login, logging.KeyUserID, user.ID)

	meta := router.ClientMeta{RemoteAddr: remoteAddr}

	for {
		tag, body, err := sc.ReadMessage()
		if err != nil {
			if errors.Is(err, codec.ErrMalformedMessage) {
				logger.Debug("malformed message", logging.KeyRemoteAddr, remoteAddr, logging.KeyError, err)
				if err := sc.WriteMessage(router.MalformedRequest()); err != nil {
					logger.Debug("write failed", logging.KeyRemoteAddr, remoteAddr, logging.KeyError, err)
					return
				}
				continue
			}
			logger.Debug("session ended", logging.KeyRemoteAddr, remoteAddr, logging.KeyError, err)
			return
		}

		reply, err := rtr.Dispatch(ctx, meta, tag, body)
		if err != nil {
			logger.Error("dispatch failed", logging.KeyRemoteAddr, remoteAddr, logging.KeyTag, tag.Name(), logging.KeyError, err)
			return
		}

		if err := sc.WriteMessage(reply); err != nil {
			logger.Debug("write failed", logging.KeyRemoteAddr, remoteAddr, logging.KeyError, err)
			return
		}
	}
}

// serveRegister handles a single plaintext RegisterRequest/AuthResponse
// exchange. Registration has no password secret to derive a handshake key
// from yet, so it never goes through the encrypted codec.
func serveRegister(ctx context.Context, conn net.Conn, rtr *router.Router, remoteAddr string, logger *slog.Logger) {
	fr := framing.NewReader(conn)
	fw := framing.NewWriter(conn)

	frame, err := fr.ReadRecord()
	if err != nil {
		logger.Debug("read register frame", logging.KeyRemoteAddr, remoteAddr, logging.KeyError, err)
		return
	}

	tag, body, err := message.Decode(frame)
	if err != nil {
		logger.Debug("decode register frame", logging.KeyRemoteAddr, remoteAddr, logging.KeyError, err)
		return
	}
	if tag != message.TagRegisterRequest {
		logger.Debug("non-register message on register connection", logging.KeyRemoteAddr, remoteAddr, logging.KeyTag, tag.Name())
		return
	}

	meta := router.ClientMeta{RemoteAddr: remoteAddr}
	reply, err := rtr.Dispatch(ctx, meta, tag, body)
	if err != nil {
		logger.Error("register dispatch failed", logging.KeyRemoteAddr, remoteAddr, logging.KeyError, err)
		return
	}

	if err := fw.WriteRecord(message.Encode(reply)); err != nil {
		logger.Debug("write register reply", logging.KeyRemoteAddr, remoteAddr, logging.KeyError, err)
	}
}
