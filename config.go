package main

import (
	"fmt"
	"os"
	"path/filepath"

	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename  = "coinswapd.conf"
	defaultDataDirname     = "data"
	defaultLogDirname      = "logs"
	defaultLogFilename     = "coinswapd.log"
	defaultRPCPort         = 10019
	defaultWalletName      = "wallet"
	defaultHopCount        = 2
	defaultTxsPerHop       = 1
	defaultMinGap          = 36
	defaultBaseTimelock    = 144
	defaultMaxFeeSats      = 50_000
	defaultMaxLogFileSize  = 10
	defaultMaxLogFiles     = 3
	defaultTorProxy        = "127.0.0.1:9050"
	defaultBondAmountSats  = 100_000
	defaultBondLockBlocks  = 52_560 // ~1 year at mainnet's 10-minute spacing
)

func defaultDataDir() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, ".coinswapd")
}

// config mirrors lnd's own config loader: an INI file plus CLI flags,
// unmarshaled in one pass by jessevdk/go-flags. Field order matches the
// CLI surface of the protocol spec's external-interfaces section, plus
// swap-specific knobs appended at the end.
type config struct {
	ShowVersion bool `short:"V" long:"version" description:"Display version information and exit"`

	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir    string `short:"d" long:"datadir" description:"The directory to store coinswapd's data within"`
	LogDir     string `long:"logdir" description:"Directory to log output"`

	DebugLevel string `short:"v" long:"debuglevel" description:"Logging level for all subsystems {off, error, warn, info, debug, trace}"`

	WalletName string `short:"w" long:"walletname" description:"Wallet name to load on startup"`
	RPCHost    string `short:"r" long:"rpchost" description:"The host[:port] of the chain backend's RPC server"`
	RPCUser    string `short:"a" long:"rpcuser" description:"Username for chain backend RPC authentication"`
	RPCPass    string `long:"rpcpass" description:"Password for chain backend RPC authentication"`

	DaemonRPCPort int `short:"p" long:"rpcport" description:"The port coinswapd's own control-plane RPC listens on"`

	OnionAddress string `long:"onionaddress" description:"This node's advertised .onion address"`
	ListenPort   int    `long:"listenport" description:"Port the session acceptor listens on, reachable via the hidden service above"`
	TorProxy     string `long:"torproxy" description:"host:port of the local SOCKS5 proxy used to dial other Makers' .onion addresses"`

	HopCount      int    `long:"hopcount" description:"Default number of Makers to route a swap through"`
	TxsPerHop     int    `long:"txsperhop" description:"Default number of parallel funding transactions per hop"`
	MinGap        uint32 `long:"mingap" description:"Minimum per-hop timelock gap, in blocks"`
	BaseTimelock  uint32 `long:"basetimelock" description:"Timelock granted to the last hop, in blocks"`
	MinConfs      uint32 `long:"minconfs" description:"Confirmations a funding tx must reach before the next hop starts"`
	MaxFeeSats    uint64 `long:"maxfeesats" description:"Maximum total routing fee, in satoshis, a taker will pay across the whole route"`

	BondAmountSats uint64 `long:"bondamountsats" description:"Satoshis to lock in this node's own fidelity bond"`
	BondLockBlocks uint32 `long:"bondlockblocks" description:"Blocks to lock this node's own fidelity bond for"`

	MaxLogFileSize int `long:"maxlogfilesize" description:"Maximum log file size in MB before rotation"`
	MaxLogFiles    int `long:"maxlogfiles" description:"Maximum number of rotated log files to keep"`

	NoMacaroons bool `long:"no-macaroons" description:"Disable macaroon authentication on the control-plane RPC (development only)"`

	Net string `long:"net" description:"Bitcoin network to use {mainnet, testnet, signet, regtest}"`
}

func defaultConfig() config {
	return config{
		ConfigFile:     defaultConfigFilename,
		DataDir:        defaultDataDir(),
		LogDir:         defaultLogDirname,
		DebugLevel:     "info",
		WalletName:     defaultWalletName,
		DaemonRPCPort:  defaultRPCPort,
		HopCount:       defaultHopCount,
		TxsPerHop:      defaultTxsPerHop,
		MinGap:         defaultMinGap,
		BaseTimelock:   defaultBaseTimelock,
		MinConfs:       1,
		MaxFeeSats:     defaultMaxFeeSats,
		BondAmountSats: defaultBondAmountSats,
		BondLockBlocks: defaultBondLockBlocks,
		MaxLogFileSize: defaultMaxLogFileSize,
		MaxLogFiles:    defaultMaxLogFiles,
		TorProxy:       defaultTorProxy,
		Net:            "mainnet",
	}
}

// loadConfig parses coinswapd.conf (if present) and then the command line,
// command line flags taking priority, and validates the combined result.
// It also initializes file logging, matching lnd's loadConfig contract:
// by the time it returns, logging is fully usable.
func loadConfig() (*config, error) {
	cfg := defaultConfig()

	preCfg := cfg
	if _, err := flags.NewParser(&preCfg, flags.Default).Parse(); err != nil {
		return nil, err
	}
	if preCfg.ShowVersion {
		fmt.Println("coinswapd", version())
		os.Exit(0)
	}

	confFile := filepath.Join(preCfg.DataDir, preCfg.ConfigFile)
	if preCfg.DataDir == "" {
		confFile = defaultConfigFilename
	}
	if _, err := os.Stat(confFile); err == nil {
		parser := flags.NewParser(&cfg, flags.Default)
		if err := flags.NewIniParser(parser).ParseFile(confFile); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", confFile, err)
		}
	}

	if _, err := flags.NewParser(&cfg, flags.Default).Parse(); err != nil {
		return nil, err
	}

	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir()
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	logDir := cfg.LogDir
	if !filepath.IsAbs(logDir) {
		logDir = filepath.Join(cfg.DataDir, logDir)
	}
	if err := initLogRotator(filepath.Join(logDir, defaultLogFilename),
		cfg.MaxLogFileSize, cfg.MaxLogFiles); err != nil {
		return nil, err
	}
	SetLogLevels(cfg.DebugLevel)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validateConfig(cfg *config) error {
	if cfg.HopCount < 2 {
		return fmt.Errorf("hopcount must be >= 2, got %d", cfg.HopCount)
	}
	if cfg.TxsPerHop < 1 {
		return fmt.Errorf("txsperhop must be >= 1, got %d", cfg.TxsPerHop)
	}
	if cfg.MinConfs < 1 {
		return fmt.Errorf("minconfs must be >= 1, got %d", cfg.MinConfs)
	}
	switch cfg.Net {
	case "mainnet", "testnet", "signet", "regtest":
	default:
		return fmt.Errorf("unknown net %q", cfg.Net)
	}
	return nil
}
