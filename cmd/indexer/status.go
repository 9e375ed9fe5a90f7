package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goran-ethernal/MarketIndexor/internal/config"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the checkpoint and projection row counts",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, network, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, network.GenesisBlock)
	if err != nil {
		return err
	}
	defer st.Close()

	last, err := st.checkpoint.Read(ctx)
	if err != nil {
		return fmt.Errorf("failed to read checkpoint: %w", err)
	}

	counts, err := st.projection.Counts(ctx)
	if err != nil {
		return fmt.Errorf("failed to count rows: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "network:              %s\n", cfg.Network)
	fmt.Fprintf(out, "storage driver:       %s\n", cfg.Storage.Driver)
	fmt.Fprintf(out, "last processed block: %d\n", last)
	fmt.Fprintf(out, "proposals:            %d (%d resolved)\n", counts.Proposals, counts.ResolvedProposals)
	fmt.Fprintf(out, "bets:                 %d\n", counts.Bets)
	fmt.Fprintf(out, "agents:               %d\n", counts.Agents)

	return nil
}
