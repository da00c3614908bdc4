package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/gossipbft/node/consensus"
	"github.com/gossipbft/node/logging"
	"github.com/gossipbft/node/node"
	"github.com/gossipbft/node/telemetry"
	"github.com/gossipbft/node/transport"
)

type runFlags struct {
	topic        string
	tickInterval time.Duration
	roundTimeout time.Duration
	telemetryDSN string
	dev          bool
}

// runCmd builds the "run <id> <f>" subcommand: id is this replica's logical
// identity, f the Byzantine fault count this deployment tolerates.
func runCmd() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run <id> <f>",
		Short: "Starts a replica and joins the gossip topic",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q: %w", args[0], err)
			}

			f, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid f %q: %w", args[1], err)
			}

			return runNode(cmd.Context(), consensus.Config{ID: id, F: f, Timeout: flags.roundTimeout}, flags)
		},
	}

	cmd.Flags().StringVar(&flags.topic, "topic", "gossipbft", "gossip topic to join")
	cmd.Flags().DurationVar(&flags.tickInterval, "tick-interval", 0, "timer tick cadence (default 200ms)")
	cmd.Flags().DurationVar(&flags.roundTimeout, "round-timeout", 0, "round stall timeout (default 5s)")
	cmd.Flags().StringVar(&flags.telemetryDSN, "telemetry-dsn", "", "MySQL DSN for edge telemetry (disabled if empty)")
	cmd.Flags().BoolVar(&flags.dev, "dev", false, "use a human-readable development logger instead of JSON")

	return cmd
}

func runNode(ctx context.Context, replicaCfg consensus.Config, flags *runFlags) error {
	log, err := buildLogger(flags.dev)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	sink, closeSink, err := buildSink(ctx, flags.telemetryDSN)
	if err != nil {
		return fmt.Errorf("build telemetry sink: %w", err)
	}
	defer closeSink()

	tr, err := transport.NewGossip(ctx)
	if err != nil {
		return fmt.Errorf("start gossip transport: %w", err)
	}
	defer tr.Close() //nolint:errcheck

	log.Info("local host ready", "peer_id", tr.Host().ID().String())

	loop := node.New(node.Config{
		Replica:      replicaCfg,
		Topic:        flags.topic,
		TickInterval: flags.tickInterval,
	}, tr, sink, log)

	return loop.Run(ctx)
}

func buildLogger(dev bool) (*logging.Zap, error) {
	if dev {
		return logging.NewZapDevelopment()
	}

	return logging.NewZap()
}

func buildSink(ctx context.Context, dsn string) (telemetry.Sink, func(), error) {
	if dsn == "" {
		return telemetry.Noop{}, func() {}, nil
	}

	sink, err := telemetry.OpenMySQL(ctx, dsn)
	if err != nil {
		return nil, func() {}, err
	}

	return sink, func() { _ = sink.Close() }, nil
}
