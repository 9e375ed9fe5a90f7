package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goran-ethernal/MarketIndexor/internal/common"
	"github.com/goran-ethernal/MarketIndexor/internal/config"
	"github.com/goran-ethernal/MarketIndexor/internal/decoder"
	"github.com/goran-ethernal/MarketIndexor/internal/logger"
	"github.com/goran-ethernal/MarketIndexor/internal/metrics"
	"github.com/goran-ethernal/MarketIndexor/internal/notifier"
	"github.com/goran-ethernal/MarketIndexor/internal/poller"
	"github.com/goran-ethernal/MarketIndexor/internal/projector"
	"github.com/goran-ethernal/MarketIndexor/internal/rpc"
	pkgrpc "github.com/goran-ethernal/MarketIndexor/pkg/rpc"
	"github.com/spf13/cobra"
)

const (
	version = "1.0.0"
	banner  = `
╔═══════════════════════════════════════════╗
║         MarketIndexor v%s              ║
║   Governance & Prediction Market Indexer  ║
╚═══════════════════════════════════════════╝
`
	shutdownTimeout = 10 * time.Second
)

var (
	configPath string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "indexer",
	Short: "MarketIndexor - governance and prediction market event indexer",
	Long: `MarketIndexor polls the governance, prediction market and agent registry contracts,
projects their events into a relational store and pushes changes to WebSocket subscribers.`,
	Version:      version,
	SilenceUsage: true,
	RunE:         runIndexer,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the indexer (default command)",
	RunE:  runIndexer,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to configuration file")
	rootCmd.AddCommand(runCmd, statusCmd, payoutCmd, schemaCmd)
}

func runIndexer(cmd *cobra.Command, args []string) error {
	fmt.Printf(banner, version)

	cfg, network, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.NewComponentLoggerFromConfig(common.ComponentPoller, cfg.Logging)
	defer log.Close() //nolint:errcheck

	dec, err := decoder.New(
		decoder.ContractsFromConfig(network.Contracts),
		logger.NewComponentLoggerFromConfig(common.ComponentDecoder, cfg.Logging),
	)
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}

	log.Infof("Connecting to Ethereum node %s...", cfg.Indexer.RPCURL)
	client, err := rpc.NewClient(ctx, cfg.Indexer,
		logger.NewComponentLoggerFromConfig(common.ComponentLogSource, cfg.Logging))
	if err != nil {
		return fmt.Errorf("failed to create RPC client: %w", err)
	}
	defer client.Close()

	if err := checkChainID(ctx, client, cfg.Network, network.ChainID); err != nil {
		return err
	}

	st, err := openStores(ctx, cfg, network.GenesisBlock)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.maintenance.Start(ctx); err != nil {
		return fmt.Errorf("failed to start maintenance: %w", err)
	}
	defer func() {
		if err := st.maintenance.Stop(); err != nil {
			log.Warnf("Failed to stop maintenance: %v", err)
		}
	}()

	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics, log)
		if err := metricsServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer stopWithTimeout(log, "metrics server", metricsServer.Stop)
	}

	var notify poller.Notifier
	if cfg.Notifier != nil && cfg.Notifier.Enabled {
		notifierServer := notifier.NewServer(cfg.Notifier,
			logger.NewComponentLoggerFromConfig(common.ComponentNotifier, cfg.Logging))
		if err := notifierServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start notifier: %w", err)
		}
		defer stopWithTimeout(log, "notifier", notifierServer.Stop)
		notify = notifierServer
	}

	proj := projector.New(st.projection,
		logger.NewComponentLoggerFromConfig(common.ComponentProjector, cfg.Logging))

	loop, err := poller.New(cfg.Indexer, client, st.checkpoint, dec, proj, notify, log)
	if err != nil {
		return fmt.Errorf("failed to create poll loop: %w", err)
	}

	log.Infof("Starting MarketIndexor on network %s", cfg.Network)

	if err := loop.Run(ctx); err != nil {
		return fmt.Errorf("poll loop failed: %w", err)
	}

	log.Info("MarketIndexor stopped successfully")
	return nil
}

func checkChainID(ctx context.Context, client pkgrpc.ChainIDReader, network string, expected uint64) error {
	if expected == 0 {
		return nil
	}

	actual, err := client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to read chain id: %w", err)
	}
	if actual != expected {
		return fmt.Errorf("network %s expects chain id %d but the node reports %d", network, expected, actual)
	}

	return nil
}

func stopWithTimeout(log *logger.Logger, name string, stop func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := stop(ctx); err != nil {
		log.Warnf("Failed to stop %s: %v", name, err)
	}
}
