package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Wyydra/pairlink/internal/core/domain"
	"github.com/Wyydra/pairlink/internal/logging"
	"github.com/Wyydra/pairlink/internal/signalclient"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newProbeCmd() *cobra.Command {
	var server, logLevel string

	cmd := &cobra.Command{
		Use:   "probe ROOM_ID",
		Short: "Join a room, announce readiness and log every envelope received",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.Init(logLevel, "console")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return probe(ctx, server, domain.RoomID(args[0]))
		},
	}
	cmd.Flags().StringVar(&server, "server", "http://127.0.0.1:9000", "relay base URL")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level")
	return cmd
}

func probe(ctx context.Context, server string, roomID domain.RoomID) error {
	url, err := signalclient.RoomURL(server, roomID)
	if err != nil {
		return err
	}

	client, err := signalclient.Dial(ctx, url, nil)
	if err != nil {
		return err
	}
	defer client.Close()

	log.Info().Str("url", url).Msg("Connected")
	if err := client.Send(ctx, domain.Ready{}); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-client.Incoming():
			if !ok {
				return fmt.Errorf("relay closed the connection")
			}
			logEnvelope(env)
			if a, isAlert := env.(domain.Alert); isAlert && a.Detail == domain.AlertFull {
				return fmt.Errorf("room %q is full", roomID)
			}
		}
	}
}

func logEnvelope(env domain.Envelope) {
	ev := log.Info().Str("kind", string(env.Kind()))
	switch v := env.(type) {
	case domain.Alert:
		ev = ev.Str("detail", v.Detail)
	case domain.Text:
		ev = ev.Str("body", v.Body)
	case domain.Offer:
		ev = ev.Int("sdp_len", len(v.SDP))
	case domain.Answer:
		ev = ev.Int("sdp_len", len(v.SDP))
	case domain.Candidate:
		ev = ev.Str("candidate", v.Candidate)
	}
	ev.Msg("Envelope received")
}
