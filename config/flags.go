package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Version is reported by --version.
const Version = "0.1.0"

// Flags holds parsed command-line flags.
type Flags struct {
	// Commands
	Help    bool
	Version bool

	// Core
	Network string
	DataDir string
	Config  string

	// EVM
	EVMRPC    string
	EVMWS     string
	EVMAPIKey string
	EVMStream bool

	// Solana
	SolanaRPC    string
	SolanaAPIKey string

	// Discovery
	DiscoveryPolicy string

	// Polling
	Poll         bool
	PollInterval time.Duration

	// Metrics
	Metrics     bool
	MetricsAddr string

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Remaining args
	Args []string

	// Explicitly-set bool flags (for true/false overrides).
	SetEVMStream bool
	SetPoll      bool
	SetMetrics   bool
	SetLogJSON   bool
}

// ParseArgs parses args (without the program name) into Flags.
func ParseArgs(args []string) (*Flags, error) {
	f := &Flags{}
	fs := flag.NewFlagSet("klingnet-walletd", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	// Commands
	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")
	fs.BoolVar(&f.Version, "v", false, "Show version (shorthand)")

	// Core
	fs.StringVar(&f.Network, "network", "", "Network type (mainnet or testnet)")
	testnet := fs.Bool("testnet", false, "Use testnet (shorthand for --network=testnet)")
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")

	// EVM
	fs.StringVar(&f.EVMRPC, "evm-rpc", "", "EVM JSON-RPC URL prefix")
	fs.StringVar(&f.EVMWS, "evm-ws", "", "EVM websocket URL prefix")
	fs.StringVar(&f.EVMAPIKey, "evm-apikey", "", "EVM provider API key")
	fs.BoolVar(&f.EVMStream, "evm-stream", false, "Subscribe to EVM new heads")

	// Solana
	fs.StringVar(&f.SolanaRPC, "solana-rpc", "", "Solana JSON-RPC URL prefix")
	fs.StringVar(&f.SolanaAPIKey, "solana-apikey", "", "Solana provider API key")

	// Discovery
	fs.StringVar(&f.DiscoveryPolicy, "discovery-policy", "", "Import boundary policy: independent or shared-max")

	// Polling
	fs.BoolVar(&f.Poll, "poll", true, "Refresh active accounts in the background")
	fs.DurationVar(&f.PollInterval, "poll-interval", 0, "Background refresh interval")

	// Metrics
	fs.BoolVar(&f.Metrics, "metrics", false, "Serve Prometheus metrics")
	fs.StringVar(&f.MetricsAddr, "metrics-addr", "", "Metrics listen address")

	// Logging
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *testnet {
		f.Network = string(Testnet)
	}
	f.SetEVMStream = isFlagSet(fs, "evm-stream")
	f.SetPoll = isFlagSet(fs, "poll")
	f.SetMetrics = isFlagSet(fs, "metrics")
	f.SetLogJSON = isFlagSet(fs, "log-json")

	f.Args = fs.Args()

	// Detect unparsed flags caused by positional arguments stopping the parser.
	for _, arg := range f.Args {
		if strings.HasPrefix(arg, "-") {
			return nil, fmt.Errorf("flag %q was not parsed (positional argument stopped parsing)", arg)
		}
	}
	return f, nil
}

// ParseFlags parses os.Args and exits on error.
func ParseFlags() *Flags {
	f, err := ParseArgs(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage()
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return f
}

// ApplyFlags applies command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) {
	// Core
	if f.Network != "" {
		cfg.Network = NetworkType(f.Network)
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}

	// EVM
	if f.EVMRPC != "" {
		cfg.EVM.RPCURL = f.EVMRPC
	}
	if f.EVMWS != "" {
		cfg.EVM.WSURL = f.EVMWS
	}
	if f.EVMAPIKey != "" {
		cfg.EVM.APIKey = f.EVMAPIKey
	}
	if f.SetEVMStream {
		cfg.EVM.Stream = f.EVMStream
	}

	// Solana
	if f.SolanaRPC != "" {
		cfg.Solana.RPCURL = f.SolanaRPC
	}
	if f.SolanaAPIKey != "" {
		cfg.Solana.APIKey = f.SolanaAPIKey
	}

	// Discovery
	if f.DiscoveryPolicy != "" {
		cfg.Discovery.Policy = strings.ToLower(f.DiscoveryPolicy)
	}

	// Polling
	if f.SetPoll {
		cfg.Poll.Enabled = f.Poll
	}
	if f.PollInterval != 0 {
		cfg.Poll.Interval = f.PollInterval
	}

	// Metrics
	if f.SetMetrics {
		cfg.Metrics.Enabled = f.Metrics
	}
	if f.MetricsAddr != "" {
		cfg.Metrics.Addr = f.MetricsAddr
	}

	// Logging
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
}

// isFlagSet checks if a flag was explicitly set.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func printUsage() {
	usage := `Klingnet Wallet - non-custodial EVM and Solana wallet daemon

Usage:
  klingnet-walletd [options]
  klingnet-walletd --help

Commands:
  --help, -h      Show this help message
  --version, -v   Show version information

Core Options:
  --network       Network type: mainnet (default) or testnet
  --testnet       Shorthand for --network=testnet
  --datadir       Data directory (default: ~/.klingnet-wallet)
  --config, -c    Config file path (default: <datadir>/wallet.conf)

Chain Options:
  --evm-rpc         EVM JSON-RPC URL prefix (API key is appended)
  --evm-ws          EVM websocket URL prefix
  --evm-apikey      EVM provider API key
  --evm-stream      Refresh on every new EVM block
  --solana-rpc      Solana JSON-RPC URL prefix (API key is appended)
  --solana-apikey   Solana provider API key

Wallet Options:
  --discovery-policy  independent (default) or shared-max
  --poll              Refresh active accounts in the background (default: true)
  --poll-interval     Refresh interval (default: 15s)

Metrics Options:
  --metrics       Serve Prometheus metrics
  --metrics-addr  Metrics listen address (mainnet: 127.0.0.1:9464)

Logging Options:
  --log-level     Log level: debug, info, warn, error (default: info)
  --log-file      Log file path (default: stdout)
  --log-json      Output logs as JSON

Environment:
  KLINGNET_WALLET_PASSPHRASE  Secret store passphrase (name configurable
                              with secrets.passphrase_env)

Examples:
  # Start on mainnet
  klingnet-walletd --evm-apikey=<key> --solana-apikey=<key>

  # Start on testnet with metrics
  klingnet-walletd --testnet --metrics
`
	fmt.Print(usage)
}

// Load loads configuration with the following precedence:
// 1. Default values
// 2. Auto-create data dirs + default config (idempotent)
// 3. Config file
// 4. Command-line flags
func Load() (*Config, *Flags, error) {
	flags := ParseFlags()

	// Handle help/version
	if flags.Help {
		printUsage()
		os.Exit(0)
	}
	if flags.Version {
		fmt.Println("klingnet-walletd version " + Version)
		os.Exit(0)
	}

	cfg, err := LoadWithFlags(flags)
	if err != nil {
		return nil, nil, err
	}
	return cfg, flags, nil
}

// LoadWithFlags runs the defaults, file and flag layers for already parsed
// flags.
func LoadWithFlags(flags *Flags) (*Config, error) {
	// Determine network first (needed for defaults)
	network := Mainnet
	if strings.ToLower(flags.Network) == string(Testnet) {
		network = Testnet
	}

	cfg := Default(network)
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	// Auto-create data directories and default config on first start.
	if err := EnsureDataDirs(cfg); err != nil {
		return nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}

	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, fmt.Errorf("applying config file: %w", err)
	}

	// Apply flags (highest precedence)
	ApplyFlags(cfg, flags)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// EnsureDataDirs creates the data directory structure and a default config
// file if they don't already exist. Safe to call on every startup.
func EnsureDataDirs(cfg *Config) error {
	dirs := []string{
		cfg.DataDir,
		cfg.NetworkDataDir(),
		cfg.StateDir(),
		cfg.LogsDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath, cfg.Network); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}
	return nil
}
