package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goran-ethernal/MarketIndexor/pkg/config"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFile_Examples(t *testing.T) {
	for _, path := range []string{
		"../../config.example.yaml",
		"../../config.example.json",
		"../../config.example.toml",
	} {
		t.Run(filepath.Ext(path), func(t *testing.T) {
			cfg, network, err := LoadFromFile(path)
			require.NoError(t, err)

			validateConfig(t, cfg, filepath.Ext(path))
			require.Equal(t, uint64(31337), network.ChainID)
		})
	}
}

func TestLoadFromFile_UnsupportedFormat(t *testing.T) {
	_, _, err := LoadFromFile("config.txt")
	require.ErrorContains(t, err, "unsupported config file format")
}

func TestLoadFromFile_UnknownNetwork(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
network: mainnet
networks:
  local:
    contracts:
      governance: "0x5FbDB2315678afecb367f032d93F642f64180aa3"
      prediction_market: "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
      agent_registry: "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0"
indexer:
  rpc_url: "http://localhost:8545"
storage:
  db:
    path: "./test.db"
`), 0o600))

	_, _, err := LoadFromFile(path)
	require.ErrorContains(t, err, `unknown network "mainnet"`)
}

func TestParse_ResolvesActiveNetwork(t *testing.T) {
	const (
		governance = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
		market     = "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
		registry   = "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0"
	)

	tests := []struct {
		ext  string
		data string
	}{
		{
			ext: ".yml",
			data: `network: sepolia
networks:
  local:
    chain_id: 31337
    contracts:
      governance: "` + governance + `"
      prediction_market: "` + market + `"
      agent_registry: "` + registry + `"
  sepolia:
    chain_id: 11155111
    genesis_block: 500
    contracts:
      governance: "` + governance + `"
      prediction_market: "` + market + `"
      agent_registry: "` + registry + `"
indexer:
  rpc_url: "http://localhost:8545"
storage:
  db:
    path: "./test.db"
`,
		},
		{
			ext: ".json",
			data: `{
  "network": "sepolia",
  "networks": {
    "sepolia": {
      "chain_id": 11155111,
      "genesis_block": 500,
      "contracts": {
        "governance": "` + governance + `",
        "prediction_market": "` + market + `",
        "agent_registry": "` + registry + `"
      }
    }
  },
  "indexer": {"rpc_url": "http://localhost:8545"},
  "storage": {"db": {"path": "./test.db"}}
}`,
		},
		{
			ext: ".TOML",
			data: `network = "sepolia"

[networks.sepolia]
chain_id = 11155111
genesis_block = 500

[networks.sepolia.contracts]
governance = "` + governance + `"
prediction_market = "` + market + `"
agent_registry = "` + registry + `"

[indexer]
rpc_url = "http://localhost:8545"

[storage.db]
path = "./test.db"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			cfg, network, err := Parse([]byte(tt.data), tt.ext)
			require.NoError(t, err)

			require.Equal(t, "sepolia", cfg.Network)
			require.Equal(t, uint64(11155111), network.ChainID)
			require.Equal(t, uint64(500), network.GenesisBlock)
			require.Equal(t, registry, network.Contracts.AgentRegistry)
			require.Equal(t, uint64(config.DefaultSafetyBuffer), cfg.Indexer.GetSafetyBuffer())
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		ext     string
		data    string
		wantErr string
	}{
		{name: "unsupported", ext: ".ini", data: "a=b", wantErr: "unsupported config file format: .ini"},
		{name: "malformed yaml", ext: ".yaml", data: "network: [", wantErr: "failed to parse YAML config"},
		{name: "malformed json", ext: ".json", data: "{", wantErr: "failed to parse JSON config"},
		{name: "malformed toml", ext: ".toml", data: "network = ", wantErr: "failed to parse TOML config"},
		{name: "missing network", ext: ".json", data: "{}", wantErr: "invalid configuration: network is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, _, err := Parse([]byte(tt.data), tt.ext)
			require.ErrorContains(t, err, tt.wantErr)
			require.Nil(t, cfg)
		})
	}
}

// validateConfig checks that the loaded config has expected values
func validateConfig(t *testing.T, cfg *config.Config, format string) {
	t.Helper()

	require.Equal(t, "local", cfg.Network, "[%s] network", format)

	network, err := cfg.ActiveNetwork()
	require.NoError(t, err)
	require.Equal(t, uint64(31337), network.ChainID, "[%s] chain_id", format)
	require.NotEmpty(t, network.Contracts.Governance, "[%s] governance address", format)
	require.NotEmpty(t, network.Contracts.PredictionMarket, "[%s] market address", format)
	require.NotEmpty(t, network.Contracts.AgentRegistry, "[%s] registry address", format)

	require.Equal(t, "http://localhost:8545", cfg.Indexer.RPCURL, "[%s] rpc_url", format)
	require.Equal(t, 5*time.Second, cfg.Indexer.PollInterval.Duration, "[%s] poll_interval", format)
	require.Equal(t, uint64(2000), cfg.Indexer.ChunkSize, "[%s] chunk_size", format)
	require.Equal(t, uint64(10), cfg.Indexer.GetSafetyBuffer(), "[%s] safety_buffer", format)

	require.Equal(t, config.StorageDriverSQLite, cfg.Storage.Driver, "[%s] driver", format)
	require.NotEmpty(t, cfg.Storage.DB.Path, "[%s] db.path", format)
	require.Equal(t, "WAL", cfg.Storage.DB.JournalMode, "[%s] journal_mode default", format)

	require.NotNil(t, cfg.Notifier, "[%s] notifier", format)
	require.Equal(t, "/ws", cfg.Notifier.Path, "[%s] notifier.path", format)
	require.Equal(t, 64, cfg.Notifier.SendBuffer, "[%s] notifier.send_buffer default", format)

	require.Equal(t, "debug", cfg.Logging.GetComponentLevel("poller"), "[%s] poller level", format)
	require.Equal(t, "info", cfg.Logging.GetComponentLevel("projector"), "[%s] projector level", format)
}
