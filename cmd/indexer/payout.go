package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/MarketIndexor/internal/config"
	"github.com/goran-ethernal/MarketIndexor/internal/projector"
	"github.com/spf13/cobra"
)

var payoutCmd = &cobra.Command{
	Use:   "payout <proposal-id> <bettor>",
	Short: "Estimate the claimable payout of a bettor on a resolved proposal",
	Args:  cobra.ExactArgs(2),
	RunE:  runPayout,
}

func runPayout(cmd *cobra.Command, args []string) error {
	proposalID, bettor := args[0], args[1]
	if !common.IsHexAddress(bettor) {
		return fmt.Errorf("invalid bettor address %q", bettor)
	}

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

	payout, err := projector.ClaimablePayout(ctx, st.projection, proposalID, bettor)
	if errors.Is(err, projector.ErrNothingToClaim) {
		fmt.Fprintf(cmd.OutOrStdout(), "nothing to claim: %v\n", err)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), payout.String())
	return nil
}
