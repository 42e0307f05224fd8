package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	handler "github.com/Wyydra/pairlink/internal/adapter/driving/http"
	"github.com/Wyydra/pairlink/internal/config"
	"github.com/Wyydra/pairlink/internal/core/service"
	"github.com/Wyydra/pairlink/internal/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var opts config.Options
	var notifyPeerLeft, echoToSender bool

	cmd := &cobra.Command{
		Use:   "pairlink",
		Short: "WebRTC signaling relay pairing two peers per room",
		Long: `pairlink relays WebRTC signaling (offers, answers, ICE candidates) between
exactly two peers that connect to /ws/{roomId} with the same room id.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("notify-peer-left") {
				opts.NotifyPeerLeft = &notifyPeerLeft
			}
			if cmd.Flags().Changed("echo-to-sender") {
				opts.EchoToSender = &echoToSender
			}
			cfg, err := config.Load(opts)
			if err != nil {
				return err
			}
			logging.Init(cfg.LogLevel, cfg.LogFormat)
			return serve(cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Addr, "addr", "", "listen address (env RELAY_ADDR)")
	f.StringVar(&opts.StaticDir, "static-dir", "", "directory served at / and /public (env RELAY_STATIC_DIR)")
	f.StringVar(&opts.LogLevel, "log-level", "", "debug, info, warn, error (env LOG_LEVEL)")
	f.StringVar(&opts.LogFormat, "log-format", "", "console or json (env LOG_FORMAT)")
	f.StringSliceVar(&opts.AllowedOrigins, "allowed-origins", nil, "browser origins allowed to connect, empty for any (env RELAY_ALLOWED_ORIGINS)")
	f.Int64Var(&opts.MaxMessageSize, "max-message-size", 0, "largest inbound frame in bytes (env RELAY_MAX_MESSAGE_SIZE)")
	f.IntVar(&opts.BroadcastBuffer, "broadcast-buffer", 0, "frames buffered per subscriber before it is dropped (env RELAY_BROADCAST_BUFFER)")
	f.DurationVar(&opts.PingInterval, "ping-interval", 0, "keepalive ping period (env RELAY_PING_INTERVAL)")
	f.DurationVar(&opts.PongWait, "pong-wait", 0, "how long a silent peer is tolerated (env RELAY_PONG_WAIT)")
	f.DurationVar(&opts.WriteWait, "write-wait", 0, "per-frame write timeout (env RELAY_WRITE_WAIT)")
	f.DurationVar(&opts.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown budget (env RELAY_SHUTDOWN_TIMEOUT)")
	f.BoolVar(&notifyPeerLeft, "notify-peer-left", false, "tell the remaining peer when the other one leaves (env RELAY_NOTIFY_PEER_LEFT)")
	f.BoolVar(&echoToSender, "echo-to-sender", false, "deliver a peer's own frames back to it (env RELAY_ECHO_TO_SENDER)")

	cmd.AddCommand(newProbeCmd())
	return cmd
}

func serve(cfg *config.Config) error {
	registry := service.NewRegistry(cfg.BroadcastBuffer)
	relay := service.NewRelayService(registry, service.SessionConfig{
		PingInterval:   cfg.PingInterval,
		NotifyPeerLeft: cfg.NotifyPeerLeft,
		EchoToSender:   cfg.EchoToSender,
	})
	h := handler.NewHandler(relay, cfg)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: h.NewRouter(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		log.Error().Err(err).Msg("Failed to start server")
		return err
	case <-quit:
	}
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := relay.Stop(ctx); err != nil {
		log.Error().Err(err).Msg("Relay sessions did not drain in time")
	}

	log.Info().Msg("Server exited")
	return nil
}
